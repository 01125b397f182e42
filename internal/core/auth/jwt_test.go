package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memorial-site/internal/core/config"
)

func newTestJWTer() *JWTer {
	return NewJWTer(config.JWT{Secret: "s3cret", Issuer: "memorial-site", AccessTokenTTLMin: 7 * 24 * 60})
}

func TestIssueAndParse(t *testing.T) {
	j := newTestJWTer()
	tok, err := j.Issue("u-1", "")
	require.NoError(t, err)

	c, err := j.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UID)
	assert.Equal(t, RoleUser, c.Role)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), c.ExpiresAt.Time, time.Minute)
}

func TestParse_WrongSecret(t *testing.T) {
	tok, err := newTestJWTer().Issue("u-1", RoleAdmin)
	require.NoError(t, err)

	other := newTestJWTer()
	other.Secret = []byte("another")
	_, err = other.Parse(tok)
	assert.Error(t, err)
}

func TestParse_Expired(t *testing.T) {
	j := newTestJWTer()
	j.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	tok, err := j.Issue("u-1", RoleUser)
	require.NoError(t, err)

	j.now = nil
	_, err = j.Parse(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParse_WrongIssuer(t *testing.T) {
	j := newTestJWTer()
	tok, err := j.Issue("u-1", RoleUser)
	require.NoError(t, err)

	j.Issuer = "someone-else"
	_, err = j.Parse(tok)
	assert.Error(t, err)
}

func TestParse_Garbage(t *testing.T) {
	_, err := newTestJWTer().Parse("not-a-token")
	assert.Error(t, err)
}
