package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/course-pilot/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestCodec(t *testing.T, ttl time.Duration) (*Codec, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	c, err := NewCodec("test-secret", ttl, WithClock(clock.Now))
	require.NoError(t, err)
	return c, clock
}

func samplePrincipal() types.Principal {
	return types.Principal{
		ID:                "u-1",
		Name:              "Ada",
		Email:             "ada@example.com",
		Role:              types.RoleUser,
		Profile:           "https://cdn.example.com/ada.png",
		EnrolledCourseIDs: []string{"c-1", "c-2"},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	c, clock := newTestCodec(t, time.Hour)
	cred, err := c.Mint(samplePrincipal())
	require.NoError(t, err)
	assert.Equal(t, clock.t, cred.IssuedAt)
	assert.Equal(t, clock.t.Add(time.Hour), cred.ExpiresAt)

	got, err := c.Verify(cred.Token)
	require.NoError(t, err)
	assert.Equal(t, samplePrincipal(), got)
}

func TestCodecEmptyEnrollmentSet(t *testing.T) {
	t.Parallel()

	c, _ := newTestCodec(t, time.Hour)
	p := samplePrincipal()
	p.EnrolledCourseIDs = nil

	cred, err := c.Mint(p)
	require.NoError(t, err)
	got, err := c.Verify(cred.Token)
	require.NoError(t, err)
	assert.NotNil(t, got.EnrolledCourseIDs)
	assert.Empty(t, got.EnrolledCourseIDs)
}

func TestCodecExpiry(t *testing.T) {
	t.Parallel()

	c, clock := newTestCodec(t, time.Hour)
	cred, err := c.Mint(samplePrincipal())
	require.NoError(t, err)

	clock.t = cred.ExpiresAt.Add(-time.Second)
	_, err = c.Verify(cred.Token)
	require.NoError(t, err)

	clock.t = cred.ExpiresAt
	_, err = c.Verify(cred.Token)
	assert.ErrorIs(t, err, ErrCredentialExpired)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestCodecTamperedPayload(t *testing.T) {
	t.Parallel()

	c, _ := newTestCodec(t, time.Hour)
	cred, err := c.Mint(samplePrincipal())
	require.NoError(t, err)

	parts := strings.Split(cred.Token, ".")
	require.Len(t, parts, 3)

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	payload["role"] = string(types.RoleAdmin)
	forged, err := json.Marshal(payload)
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)

	_, err = c.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestCodecWrongSecret(t *testing.T) {
	t.Parallel()

	c, clock := newTestCodec(t, time.Hour)
	other, err := NewCodec("another-secret", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)

	cred, err := other.Mint(samplePrincipal())
	require.NoError(t, err)

	_, err = c.Verify(cred.Token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCodecMalformed(t *testing.T) {
	t.Parallel()

	c, _ := newTestCodec(t, time.Hour)
	for _, token := range []string{"", "   ", "not-a-token", "a.b.c", "a.b"} {
		_, err := c.Verify(token)
		assert.ErrorIs(t, err, ErrMalformedCredential, "token %q", token)
		assert.ErrorIs(t, err, errs.ErrUnauthorized, "token %q", token)
	}
}

func TestNewCodec(t *testing.T) {
	t.Parallel()

	_, err := NewCodec("  ", time.Hour)
	assert.Error(t, err)

	c, err := NewCodec("s", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, c.TTL())

	c, err = NewCodec("s", 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, c.TTL())
}

func TestMintRejectsAnonymous(t *testing.T) {
	t.Parallel()

	c, _ := newTestCodec(t, time.Hour)
	_, err := c.Mint(types.Anonymous())
	assert.Error(t, err)
}
