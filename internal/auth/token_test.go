package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewTokenService([]byte("secret"))
	token, err := svc.GenerateToken(Identity{UserID: "u1", Username: "ada", IsAdmin: true})
	require.NoError(t, err)

	id, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "ada", id.Username)
	assert.True(t, id.IsAdmin)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService([]byte("one")).GenerateToken(Identity{UserID: "u1"})
	require.NoError(t, err)

	_, err = NewTokenService([]byte("two")).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredAndMissingClaims(t *testing.T) {
	secret := []byte("secret")
	svc := NewTokenService(secret)

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u1",
		"exp":     time.Now().Add(-time.Minute).Unix(),
	}).SignedString(secret)
	_, err := svc.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u1"}).SignedString(secret)
	_, err = svc.ValidateToken(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString(secret)
	_, err = svc.ValidateToken(noUser)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=abc", nil)
	token, err := TokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	r.Header.Set("Authorization", "Bearer xyz")
	token, err = TokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "xyz", token)

	_, err = TokenFromRequest(httptest.NewRequest("GET", "/ws", nil))
	assert.ErrorIs(t, err, ErrNoToken)
}
