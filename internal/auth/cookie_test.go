package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetCookie(t *testing.T) {
	t.Parallel()

	cfg := CookieConfig{Secure: true, SameSite: "lax"}
	exp := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	rec := httptest.NewRecorder()
	cfg.SetCookie(rec, Credential{Token: "tok", ExpiresAt: exp})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, DefaultCookieName, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.True(t, exp.Equal(c.Expires))
}

func TestClearCookie(t *testing.T) {
	t.Parallel()

	cfg := CookieConfig{Name: "session"}
	rec := httptest.NewRecorder()
	cfg.ClearCookie(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "session", c.Name)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
}

func TestTokenFromRequest(t *testing.T) {
	t.Parallel()

	cfg := CookieConfig{}
	tests := []struct {
		name   string
		cookie string
		header string
		want   string
	}{
		{"none", "", "", ""},
		{"cookie", "from-cookie", "", "from-cookie"},
		{"bearer", "", "Bearer from-header", "from-header"},
		{"lowercase bearer", "", "bearer from-header", "from-header"},
		{"cookie wins", "from-cookie", "Bearer from-header", "from-cookie"},
		{"basic ignored", "", "Basic dXNlcjpwYXNz", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, cfg.TokenFromRequest(r))
		})
	}
}
