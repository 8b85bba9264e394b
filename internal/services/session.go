package services

import (
	"context"
	"fmt"

	"github.com/course-pilot/apiserver/internal/auth"
	"github.com/course-pilot/apiserver/types"
)

// CredentialMinter signs principal snapshots.
type CredentialMinter interface {
	Mint(p types.Principal) (auth.Credential, error)
}

// UserReader loads accounts by id.
type UserReader interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

// EnrollmentLister lists a user's ledger entries.
type EnrollmentLister interface {
	ListByUser(ctx context.Context, userID string) ([]types.EnrollmentRecord, error)
}

// SessionService builds credentials from live store state. It is the only
// place a principal snapshot is assembled for minting, so every credential
// reflects the enrollment set as of its issuance.
type SessionService struct {
	users       UserReader
	enrollments EnrollmentLister
	codec       CredentialMinter
}

func NewSessionService(users UserReader, enrollments EnrollmentLister, codec CredentialMinter) *SessionService {
	return &SessionService{users: users, enrollments: enrollments, codec: codec}
}

// Refresh re-reads the user and its enrollments and mints a new credential.
func (s *SessionService) Refresh(ctx context.Context, userID string) (auth.Credential, types.Principal, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return auth.Credential{}, types.Principal{}, err
	}
	return s.Issue(ctx, user)
}

// Issue mints a credential for an already loaded user.
func (s *SessionService) Issue(ctx context.Context, user types.User) (auth.Credential, types.Principal, error) {
	records, err := s.enrollments.ListByUser(ctx, user.ID)
	if err != nil {
		return auth.Credential{}, types.Principal{}, fmt.Errorf("list enrollments of %s: %w", user.ID, err)
	}
	principal := types.NewPrincipal(user, records)
	cred, err := s.codec.Mint(principal)
	if err != nil {
		return auth.Credential{}, types.Principal{}, fmt.Errorf("mint credential for %s: %w", user.ID, err)
	}
	return cred, principal, nil
}
