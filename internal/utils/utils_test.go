package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", "user-1", 5)
	require.NoError(t, err)

	sub, err := ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)

	_, err = ParseAccessToken("other", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewAccessToken("secret", "user-1", -1)
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejectsForeignTokens(t *testing.T) {
	sign := func(m jwt.SigningMethod, claims jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(m, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(time.Now().Add(time.Minute))

	other := sign(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "someone-else", Audience: jwt.ClaimStrings{ownerAudience}, Subject: "u", ExpiresAt: exp})
	_, err := ParseAccessToken("secret", other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs512 := sign(jwt.SigningMethodHS512, jwt.RegisteredClaims{Issuer: tokenIssuer, Audience: jwt.ClaimStrings{ownerAudience}, Subject: "u", ExpiresAt: exp})
	_, err = ParseAccessToken("secret", hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject := sign(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: tokenIssuer, Audience: jwt.ClaimStrings{ownerAudience}, ExpiresAt: exp})
	_, err = ParseAccessToken("secret", noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestShareTokenIsURLSafe(t *testing.T) {
	a, err := NewShareToken()
	require.NoError(t, err)
	b, err := NewShareToken()
	require.NoError(t, err)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
	assert.NotContains(t, a, "=")
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "hunter22"))
	assert.False(t, VerifyPassword(hash, "hunter23"))
}

func TestHashPasswordPolicy(t *testing.T) {
	_, err := HashPassword("short", 4)
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = HashPassword(strings.Repeat("a", 73), 4)
	assert.ErrorIs(t, err, ErrWeakPassword)

	// Out-of-range cost falls back to the default instead of failing.
	hash, err := HashPassword("long enough", 99)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "long enough"))
}

func TestHashRefreshRawIsStable(t *testing.T) {
	assert.Equal(t, HashRefreshRaw("abc"), HashRefreshRaw("abc"))
	assert.Len(t, HashRefreshRaw("abc"), 64)
}
