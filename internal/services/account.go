package services

import (
	"context"
	"errors"
	"strings"

	"github.com/course-pilot/apiserver/internal/auth"
	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/types"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SetRoleByEmail(ctx context.Context, email string, role types.Role) (types.User, error)
	Delete(ctx context.Context, id string) error
}

// RegisterInput is the payload for a new account. Passwords are hashed
// exactly as given; bcrypt caps them at 72 bytes.
type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Profile  string `json:"profile"`
}

// LoginInput is the payload for a login attempt.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is a signed-in principal with the credential that carries it.
type Session struct {
	Credential auth.Credential `json:"credential"`
	Principal  types.Principal `json:"user"`
}

var errBadLogin = errs.New(errs.ErrUnauthorized, "invalid email or password")

// AccountService encapsulates registration, login and account lifecycle.
type AccountService struct {
	repo     UserRepository
	sessions *SessionService
	cost     int
}

func NewAccountService(repo UserRepository, sessions *SessionService) *AccountService {
	return &AccountService{repo: repo, sessions: sessions, cost: bcrypt.DefaultCost}
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validateInput(in); err != nil {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return Session{}, errs.Validationf("password must be at most 72 bytes")
	}
	if err != nil {
		return Session{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		Profile:      strings.TrimSpace(in.Profile),
		Role:         types.RoleUser,
		PasswordHash: string(hash),
	})
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, user)
}

func (s *AccountService) Login(ctx context.Context, in LoginInput) (Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateInput(in); err != nil {
		return Session{}, err
	}

	user, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return Session{}, errBadLogin
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return Session{}, errBadLogin
	}
	return s.issue(ctx, user)
}

// Exists reports whether the account behind a credential is still present.
func (s *AccountService) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *AccountService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Promote grants the Admin role to the account registered under email.
func (s *AccountService) Promote(ctx context.Context, email string) (types.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return types.User{}, errs.Validationf("email is required")
	}
	return s.repo.SetRoleByEmail(ctx, email, types.RoleAdmin)
}

func (s *AccountService) issue(ctx context.Context, user types.User) (Session, error) {
	cred, principal, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return Session{}, err
	}
	return Session{Credential: cred, Principal: principal}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
