package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("STORE_BACKEND", "MEMORY")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173, ,https://app.example.com")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, MaxTokenTTL, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"http://localhost:5173", "https://app.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoadConfigTokenTTL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{"custom horizon", "2h", 2 * time.Hour},
		{"above cap", "72h", MaxTokenTTL},
		{"negative", "-1h", MaxTokenTTL},
		{"garbage", "soon", MaxTokenTTL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TOKEN_TTL", tt.raw)
			assert.Equal(t, tt.want, LoadConfig().Auth.TokenTTL)
		})
	}
}

func TestLoadConfigCookieDefaults(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("COOKIE_SECURE", "")
	t.Setenv("COOKIE_SAMESITE", "Lax")

	cfg := LoadConfig()

	assert.Equal(t, "auth_token", cfg.Auth.CookieName)
	assert.True(t, cfg.Auth.CookieSecure)
	assert.Equal(t, "lax", cfg.Auth.CookieSameSite)
}
