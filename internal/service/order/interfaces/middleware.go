// internal/service/order/interfaces/middleware.go
package interfaces

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"orderflow/internal/pkg/auth"
	"orderflow/internal/pkg/httpx"
)

type contextKey string

const userContextKey contextKey = "auth.user"

// Authenticate 校验 Authorization: Bearer <token>，把身份放进请求上下文。
func Authenticate(verifier *auth.Verifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			httpx.WriteError(w, http.StatusUnauthorized, "missing access token")
			return
		}
		payload, err := verifier.VerifyAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid or expired access token")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, payload)
		next(w, r.WithContext(ctx))
	}
}

// CurrentUser 取出经过认证的调用方身份。
// 只在 Authenticate 包裹过的 handler 内调用。
func CurrentUser(ctx context.Context) *auth.TokenPayload {
	payload, _ := ctx.Value(userContextKey).(*auth.TokenPayload)
	return payload
}

// WithTracing 从入站请求头还原上游链路上下文。
func WithTracing(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next(w, r.WithContext(ctx))
	}
}
