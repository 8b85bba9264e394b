package auth

import (
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName is used when no cookie name is configured.
const DefaultCookieName = "auth_token"

// CookieConfig controls how the credential is carried by the browser.
type CookieConfig struct {
	Name     string
	Secure   bool
	SameSite string
}

func (c CookieConfig) name() string {
	if strings.TrimSpace(c.Name) == "" {
		return DefaultCookieName
	}
	return c.Name
}

func (c CookieConfig) sameSite() http.SameSite {
	switch strings.ToLower(strings.TrimSpace(c.SameSite)) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

// SetCookie writes cred as an HTTP-only cookie that expires with the credential.
func (c CookieConfig) SetCookie(w http.ResponseWriter, cred Credential) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    cred.Token,
		Path:     "/",
		Expires:  cred.ExpiresAt,
		HttpOnly: true,
		Secure:   c.Secure || c.sameSite() == http.SameSiteNoneMode,
		SameSite: c.sameSite(),
	})
}

// ClearCookie expires the credential cookie on the client.
func (c CookieConfig) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure || c.sameSite() == http.SameSiteNoneMode,
		SameSite: c.sameSite(),
	})
}

// TokenFromRequest returns the credential presented with r. The cookie wins
// over an Authorization bearer header.
func (c CookieConfig) TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(c.name()); err == nil {
		if v := strings.TrimSpace(cookie.Value); v != "" {
			return v
		}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}
