package utils

import (
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	at, err := NewAccessToken("secret", 42, "DRIVER", 5)
	require.NoError(t, err)

	c, err := ParseAccessToken("secret", at.Token)
	require.NoError(t, err)
	assert.Equal(t, Claims{UserID: 42, Role: "DRIVER"}, c)

	_, err = ParseAccessToken("other", at.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejects(t *testing.T) {
	expired, err := NewAccessToken("secret", 1, "DRIVER", -1)
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "ADMIN"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", noSub)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAccessToken("secret", "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken(t *testing.T) {
	a, err := NewRefreshToken(1)
	require.NoError(t, err)
	b, err := NewRefreshToken(1)
	require.NoError(t, err)

	assert.Len(t, a.Raw, 96)
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.Len(t, HashRefreshRaw(a.Raw), 64)
	assert.Equal(t, HashRefreshRaw(a.Raw), HashRefreshRaw(a.Raw))
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("hunter2", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, "hunter2"))
	assert.False(t, VerifyPassword(h, "hunter3"))
}

func TestPasswordEdgeCases(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", 73), bcrypt.MinCost)
	assert.ErrorIs(t, err, bcrypt.ErrPasswordTooLong)

	h, err := HashPassword("hunter2", 99)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(h))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)

	assert.False(t, VerifyPassword("", "hunter2"))
	assert.False(t, VerifyPassword("not-a-hash", "hunter2"))
}
