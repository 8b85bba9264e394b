package types

import "time"

// Role is the authorization level of an account.
type Role string

// Supported roles.
const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents an account in the system.
// It contains identity, role, enrollments and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"_id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. It is unique across accounts
	// and used as the login name.
	Email string `json:"email" db:"email"`

	// Profile is a reference to the user's profile picture in object storage.
	Profile string `json:"profile,omitempty" db:"profile"`

	// Role indicates the user's authorization level within the system.
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Enrollments holds one record per enrolled course. It is only
	// populated by operations that explicitly load the ledger.
	Enrollments []EnrollmentRecord `json:"enrolledCourses" db:"-"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
