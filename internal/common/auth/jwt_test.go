package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"cakeshop-notifier/internal/common/errors"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("s3cret", "cakeshop")

	token, err := v.Issue(42, RoleDelivery, "rider@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := v.VerifyRole(token, RoleDelivery)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "rider@example.com", claims.Email)
}

func TestVerifier_Rejections(t *testing.T) {
	v := NewVerifier("s3cret", "cakeshop")

	t.Run("empty", func(t *testing.T) {
		_, err := v.Verify("")
		assert.True(t, errors.Is(err, errors.ErrCodeUnauthorized))
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewVerifier("other", "cakeshop").Issue(1, RoleAdmin, "", time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.True(t, errors.Is(err, errors.ErrCodeUnauthorized))
	})

	t.Run("expired", func(t *testing.T) {
		token, err := v.Issue(1, RoleAdmin, "", -time.Minute)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.True(t, errors.Is(err, errors.ErrCodeUnauthorized))
	})

	t.Run("wrong role", func(t *testing.T) {
		token, err := v.Issue(1, RoleAdmin, "", time.Hour)
		require.NoError(t, err)
		_, err = v.VerifyRole(token, RoleDelivery)
		assert.True(t, errors.Is(err, errors.ErrCodeForbidden))
	})

	t.Run("none algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1, Role: RoleAdmin}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.Error(t, err)
	})
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, BearerToken(r))

	r.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", BearerToken(r))
}
