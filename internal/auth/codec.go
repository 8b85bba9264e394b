// Package auth mints and verifies the signed session credential and binds it
// to HTTP cookies. Verification never touches the store.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the credential lifetime when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// Verification failures. All of them are Unauthorized.
var (
	ErrMalformedCredential = fmt.Errorf("malformed credential: %w", errs.ErrUnauthorized)
	ErrInvalidSignature    = fmt.Errorf("invalid credential signature: %w", errs.ErrUnauthorized)
	ErrCredentialExpired   = fmt.Errorf("credential expired: %w", errs.ErrUnauthorized)
)

// Credential is a minted, signed token together with its validity window.
type Credential struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type claims struct {
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Role              types.Role `json:"role"`
	Profile           string     `json:"profile,omitempty"`
	EnrolledCourseIDs []string   `json:"enrolledCourseIds"`
	jwt.RegisteredClaims
}

// Codec signs principal snapshots with a process-wide HS256 secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec constructs a Codec. A ttl outside (0, 24h] falls back to 24h.
func NewCodec(secret string, ttl time.Duration, opts ...Option) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("credential signing secret is required")
	}
	if ttl <= 0 || ttl > DefaultTokenTTL {
		ttl = DefaultTokenTTL
	}
	c := &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the configured credential lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Mint signs a credential for the given snapshot.
func (c *Codec) Mint(p types.Principal) (Credential, error) {
	if p.ID == "" {
		return Credential{}, errors.New("cannot mint a credential for an anonymous principal")
	}

	// Registered claims carry second precision; truncate so the returned
	// window matches what Verify will see.
	now := c.now().UTC().Truncate(time.Second)
	exp := now.Add(c.ttl)

	courseIDs := p.EnrolledCourseIDs
	if courseIDs == nil {
		courseIDs = []string{}
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name:              p.Name,
		Email:             p.Email,
		Role:              p.Role,
		Profile:           p.Profile,
		EnrolledCourseIDs: courseIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return Credential{}, fmt.Errorf("sign credential: %w", err)
	}
	return Credential{Token: signed, IssuedAt: now, ExpiresAt: exp}, nil
}

// Verify checks the signature and expiry of token and returns the embedded
// snapshot. A token is expired once the current time reaches its expiry.
func (c *Codec) Verify(token string) (types.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return types.Principal{}, ErrMalformedCredential
	}

	var cl claims
	_, err := jwt.ParseWithClaims(token, &cl, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return types.Principal{}, ErrCredentialExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return types.Principal{}, ErrInvalidSignature
	default:
		return types.Principal{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	if strings.TrimSpace(cl.Subject) == "" || !cl.Role.Valid() {
		return types.Principal{}, ErrMalformedCredential
	}

	courseIDs := cl.EnrolledCourseIDs
	if courseIDs == nil {
		courseIDs = []string{}
	}
	return types.Principal{
		ID:                cl.Subject,
		Name:              cl.Name,
		Email:             cl.Email,
		Role:              cl.Role,
		Profile:           cl.Profile,
		EnrolledCourseIDs: courseIDs,
	}, nil
}
