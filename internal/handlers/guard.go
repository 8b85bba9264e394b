package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/course-pilot/apiserver/internal/auth"
	"github.com/course-pilot/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CredentialVerifier decodes a credential into its principal snapshot.
type CredentialVerifier interface {
	Verify(token string) (types.Principal, error)
}

// AccountChecker confirms that the account behind a credential still exists.
type AccountChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

var errAccountGone = errors.New("account no longer exists")

// Guard resolves the request credential into a principal and enforces
// role and entitlement checks. Decisions are made on the credential
// snapshot; the store is consulted only to confirm the account exists.
type Guard struct {
	verifier CredentialVerifier
	accounts AccountChecker
	cookies  auth.CookieConfig
	logger   *zap.Logger
}

// NewGuard constructs a Guard. A nil logger is replaced with a no-op one.
func NewGuard(verifier CredentialVerifier, accounts AccountChecker, cookies auth.CookieConfig, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{verifier: verifier, accounts: accounts, cookies: cookies, logger: logger}
}

// resolve returns the principal for r. No credential yields the anonymous
// principal and no error.
func (g *Guard) resolve(r *http.Request) (types.Principal, error) {
	token := g.cookies.TokenFromRequest(r)
	if token == "" {
		return types.Anonymous(), nil
	}
	p, err := g.verifier.Verify(token)
	if err != nil {
		return types.Anonymous(), err
	}
	exists, err := g.accounts.Exists(r.Context(), p.ID)
	if err != nil {
		return types.Anonymous(), err
	}
	if !exists {
		return types.Anonymous(), errAccountGone
	}
	return p, nil
}

// Authenticate attaches the principal to the request context. Anonymous
// requests pass through; a rejected credential is answered with 401 and
// the cookie is cleared.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := g.resolve(r)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrCredentialExpired):
			g.cookies.ClearCookie(w)
			writeError(w, http.StatusUnauthorized, "session expired, please log in again")
			return
		case errors.Is(err, auth.ErrMalformedCredential), errors.Is(err, auth.ErrInvalidSignature):
			g.cookies.ClearCookie(w)
			writeError(w, http.StatusUnauthorized, "invalid credential")
			return
		case errors.Is(err, errAccountGone):
			g.cookies.ClearCookie(w)
			writeError(w, http.StatusUnauthorized, "account no longer exists")
			return
		default:
			g.logger.Error("resolve principal", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireUser rejects anonymous requests.
func (g *Guard) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()).IsAnonymous() {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects principals that do not hold role. It composes after
// Authenticate.
func (g *Guard) RequireRole(role types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p.IsAnonymous() {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !p.HasRole(role) {
				writeError(w, http.StatusForbidden, string(role)+" access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireEnrollment admits admins and principals whose snapshot lists the
// course named by the param route parameter.
func (g *Guard) RequireEnrollment(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p.IsAnonymous() {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !p.HasRole(types.RoleAdmin) && !p.IsEnrolled(chi.URLParam(r, param)) {
				writeError(w, http.StatusForbidden, "not enrolled in this course")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
