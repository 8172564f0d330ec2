// internal/service/order/interfaces/middleware_test.go
package interfaces

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/pkg/auth"
)

func TestAuthenticate(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")

	var gotUser *auth.TokenPayload
	handler := Authenticate(verifier, func(w http.ResponseWriter, r *http.Request) {
		gotUser = CurrentUser(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("passes a valid token through", func(t *testing.T) {
		token, err := verifier.SignAccessToken(auth.TokenPayload{UserID: "user-1", Role: auth.RoleUser}, time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotUser)
		assert.Equal(t, "user-1", gotUser.UserID)
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a forged token", func(t *testing.T) {
		forged, err := auth.NewVerifier("other-secret").
			SignAccessToken(auth.TokenPayload{UserID: "user-1"}, time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set("Authorization", "Bearer "+forged)
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
