package craftlink_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	craftlink "github.com/craftlink/craftlink-go/client"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestStaticCredentials(t *testing.T) {
	creds := craftlink.StaticCredentials{
		BearerToken: "abc",
		User:        craftlink.UserRef{ID: 42, Username: "ada"},
	}

	tok, err := creds.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	user, err := creds.Identity()
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
}

func TestStaticCredentialsEmpty(t *testing.T) {
	creds := craftlink.StaticCredentials{}

	_, err := creds.Token()
	assert.ErrorIs(t, err, craftlink.ErrNoCredential)
	_, err = creds.Identity()
	assert.ErrorIs(t, err, craftlink.ErrNoCredential)
}

func TestIdentityFromTokenClaims(t *testing.T) {
	t.Run("numeric subject", func(t *testing.T) {
		raw := signToken(t, jwt.MapClaims{"sub": "42", "exp": time.Now().Add(time.Hour).Unix()})
		user, err := craftlink.IdentityFromToken(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(42), user.ID)
	})

	t.Run("userId and username claims", func(t *testing.T) {
		raw := signToken(t, jwt.MapClaims{"userId": 7, "username": "ada"})
		user, err := craftlink.IdentityFromToken(raw)
		require.NoError(t, err)
		assert.Equal(t, int64(7), user.ID)
		assert.Equal(t, "ada", user.Username)
	})

	t.Run("non-numeric subject becomes username", func(t *testing.T) {
		raw := signToken(t, jwt.MapClaims{"sub": "ada@example.com"})
		user, err := craftlink.IdentityFromToken(raw)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", user.Username)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := craftlink.IdentityFromToken("not-a-jwt")
		assert.Error(t, err)
	})

	t.Run("no identity claims", func(t *testing.T) {
		raw := signToken(t, jwt.MapClaims{"scope": "chat"})
		_, err := craftlink.IdentityFromToken(raw)
		assert.ErrorIs(t, err, craftlink.ErrNoCredential)
	})
}

func TestTokenSourceCredentials(t *testing.T) {
	raw := signToken(t, jwt.MapClaims{"sub": "42", "username": "ada"})
	creds := craftlink.TokenSourceCredentials{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: raw}),
	}

	tok, err := creds.Token()
	require.NoError(t, err)
	assert.Equal(t, raw, tok)

	user, err := creds.Identity()
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "ada", user.Username)
}

func TestTokenSourceCredentialsNilSource(t *testing.T) {
	creds := craftlink.TokenSourceCredentials{}
	_, err := creds.Token()
	assert.ErrorIs(t, err, craftlink.ErrNoCredential)
}
