// internal/pkg/auth/jwt_test.go
package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier(t *testing.T) {
	verifier := NewVerifier("test-secret")
	payload := TokenPayload{UserID: "user-1", Email: "u1@example.com", Role: RoleAdmin}

	t.Run("round trip", func(t *testing.T) {
		token, err := verifier.SignAccessToken(payload, time.Minute)
		require.NoError(t, err)

		got, err := verifier.VerifyAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, payload, *got)
	})

	t.Run("rejects the wrong secret", func(t *testing.T) {
		token, err := NewVerifier("other-secret").SignAccessToken(payload, time.Minute)
		require.NoError(t, err)

		_, err = verifier.VerifyAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		token, err := verifier.SignAccessToken(payload, -time.Minute)
		require.NoError(t, err)

		_, err = verifier.VerifyAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := verifier.VerifyAccessToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
