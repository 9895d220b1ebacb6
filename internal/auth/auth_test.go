package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter2hunter2"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := MakeToken("u1", "ada@test.com", "secret")
	require.NoError(t, err)

	claims, err := ParseToken(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "ada@test.com", claims.Email)
}

func TestParseTokenWrongSecret(t *testing.T) {
	tok, err := MakeToken("u1", "ada@test.com", "secret")
	require.NoError(t, err)

	_, err = ParseToken(tok, "other")
	assert.Error(t, err)
}

func TestParseTokenRejectsNone(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(raw, "secret")
	assert.Error(t, err)
}

func TestRefreshTokenHashing(t *testing.T) {
	raw, hash, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.NotEqual(t, raw, hash)
	assert.Equal(t, hash, HashRefreshToken(raw))

	raw2, _, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
}
