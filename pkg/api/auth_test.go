package api

import (
	"net/http/httptest"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, uid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username: "alice",
		UID:      uid,
	})
	tokenStr, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return tokenStr
}

func TestActorFromRequestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/posts/search?q=hello", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-a"))

	actorUID, err := actorFromRequest(req, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-a", actorUID)
}

func TestActorFromRequestWrongSecret(t *testing.T) {
	req := httptest.NewRequest("GET", "/posts/search?q=hello", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "user-a"))

	_, err := actorFromRequest(req, testSecret)
	assert.Error(t, err)
}

func TestActorFromRequestQueryFallback(t *testing.T) {
	req := httptest.NewRequest("GET", "/posts/search?q=hello&actor=user-b", nil)

	actorUID, err := actorFromRequest(req, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-b", actorUID)
}

func TestActorFromRequestAnonymous(t *testing.T) {
	req := httptest.NewRequest("GET", "/posts/search?q=hello", nil)

	actorUID, err := actorFromRequest(req, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "", actorUID)
}
