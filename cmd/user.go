/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/course-pilot/apiserver/config"
	"github.com/course-pilot/apiserver/internal/db"
	"github.com/course-pilot/apiserver/internal/services"
	"github.com/course-pilot/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var promoteEmail string

// userCmd groups account administration commands.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userPromoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Grant the Admin role to an existing account",
	Long: `Grant the Admin role to an existing account. The account's next
credential carries the new role. Usage:

	apiserver user promote --email admin@example.com
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if promoteEmail == "" {
			return errors.New("--email is required")
		}

		cfg := config.LoadConfig()
		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		accounts := services.NewAccountService(store.NewUserRepository(conn), nil)
		user, err := accounts.Promote(cmd.Context(), promoteEmail)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now %s\n", user.Email, user.ID, user.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userPromoteCmd)
	userPromoteCmd.Flags().StringVar(&promoteEmail, "email", "", "email of the account to promote")
}
