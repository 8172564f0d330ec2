// internal/service/order/infrastructure/adapter/stripe_adapter_test.go
package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/port"
)

const testWebhookSecret = "whsec_test_secret"

func newTestStripeAdapter(apiBase string) *StripeAdapter {
	return NewStripeAdapter(
		httpclient.NewClient(otel.Tracer("test")),
		apiBase,
		"sk_test_key",
		testWebhookSecret,
		"http://localhost:8080",
	)
}

func signStripePayload(t *testing.T, secret string, timestamp int64, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeInitiate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates checkout session", func(t *testing.T) {
		var gotForm map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
			require.Equal(t, "Bearer sk_test_key", r.Header.Get("Authorization"))
			require.NoError(t, r.ParseForm())
			gotForm = r.PostForm

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"cs_test_123","url":"https://checkout.stripe.com/pay/cs_test_123"}`)
		}))
		defer server.Close()

		adapter := newTestStripeAdapter(server.URL)
		order, err := domain.NewOrder("user-1", domain.ProviderStripe, []domain.OrderItem{
			{Title: "Widget", UnitPrice: 19.99, Quantity: 2},
		})
		require.NoError(t, err)

		intent, err := adapter.Initiate(ctx, order)
		require.NoError(t, err)

		assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_123", intent.RedirectURL)
		assert.Equal(t, "cs_test_123", intent.ProviderRef)

		assert.Equal(t, []string{order.ID}, gotForm["metadata[orderId]"])
		// 19.99 美元转为 1999 美分
		assert.Equal(t, []string{"1999"}, gotForm["line_items[0][price_data][unit_amount]"])
		assert.Equal(t, []string{"2"}, gotForm["line_items[0][quantity]"])
	})

	t.Run("wraps provider failures", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
		}))
		defer server.Close()

		adapter := newTestStripeAdapter(server.URL)
		order, err := domain.NewOrder("user-1", domain.ProviderStripe, []domain.OrderItem{
			{Title: "Widget", UnitPrice: 10, Quantity: 1},
		})
		require.NoError(t, err)

		_, err = adapter.Initiate(ctx, order)
		assert.True(t, domain.IsProviderError(err))
	})

	t.Run("rejects orders past pending", func(t *testing.T) {
		adapter := newTestStripeAdapter("http://unused")
		order, err := domain.NewOrder("user-1", domain.ProviderStripe, []domain.OrderItem{
			{Title: "Widget", UnitPrice: 10, Quantity: 1},
		})
		require.NoError(t, err)
		require.True(t, order.ApplyPaymentOutcome(domain.OutcomeSucceeded))

		_, err = adapter.Initiate(ctx, order)
		assert.ErrorIs(t, err, domain.ErrOrderNotPending)
	})
}

func TestStripeVerifyWebhook(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	body := []byte(`{
		"id": "evt_test_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_123", "metadata": {"orderId": "order-42"}}}
	}`)

	newRequest := func(sig string) *port.WebhookRequest {
		header := http.Header{}
		header.Set("Stripe-Signature", sig)
		return &port.WebhookRequest{Body: body, Header: header}
	}

	newAdapter := func() *StripeAdapter {
		adapter := newTestStripeAdapter("http://unused")
		adapter.now = func() time.Time { return now }
		return adapter
	}

	t.Run("accepts a valid signature", func(t *testing.T) {
		adapter := newAdapter()
		sig := signStripePayload(t, testWebhookSecret, now.Unix(), body)

		event, err := adapter.VerifyWebhook(ctx, newRequest(sig))
		require.NoError(t, err)

		assert.Equal(t, "evt_test_1", event.EventID)
		assert.True(t, event.Relevant)
		assert.Equal(t, domain.OutcomeSucceeded, event.Outcome)
		assert.Equal(t, "order-42", event.OrderID)
		assert.Equal(t, "cs_test_123", event.ProviderRef)
	})

	t.Run("rejects a tampered body", func(t *testing.T) {
		adapter := newAdapter()
		sig := signStripePayload(t, testWebhookSecret, now.Unix(), []byte(`{"different":"payload"}`))

		_, err := adapter.VerifyWebhook(ctx, newRequest(sig))
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("rejects the wrong secret", func(t *testing.T) {
		adapter := newAdapter()
		sig := signStripePayload(t, "whsec_other", now.Unix(), body)

		_, err := adapter.VerifyWebhook(ctx, newRequest(sig))
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("rejects a stale timestamp", func(t *testing.T) {
		adapter := newAdapter()
		stale := now.Add(-10 * time.Minute).Unix()
		sig := signStripePayload(t, testWebhookSecret, stale, body)

		_, err := adapter.VerifyWebhook(ctx, newRequest(sig))
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		adapter := newAdapter()
		_, err := adapter.VerifyWebhook(ctx, &port.WebhookRequest{Body: body, Header: http.Header{}})
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("maps payment failure events", func(t *testing.T) {
		adapter := newAdapter()
		failedBody := []byte(`{"id":"evt_2","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_1","metadata":{"orderId":"order-42"}}}}`)
		header := http.Header{}
		header.Set("Stripe-Signature", signStripePayload(t, testWebhookSecret, now.Unix(), failedBody))

		event, err := adapter.VerifyWebhook(ctx, &port.WebhookRequest{Body: failedBody, Header: header})
		require.NoError(t, err)
		assert.True(t, event.Relevant)
		assert.Equal(t, domain.OutcomeFailed, event.Outcome)
	})

	t.Run("marks unrelated event types irrelevant", func(t *testing.T) {
		adapter := newAdapter()
		otherBody := []byte(`{"id":"evt_3","type":"charge.updated","data":{"object":{"id":"ch_1"}}}`)
		header := http.Header{}
		header.Set("Stripe-Signature", signStripePayload(t, testWebhookSecret, now.Unix(), otherBody))

		event, err := adapter.VerifyWebhook(ctx, &port.WebhookRequest{Body: otherBody, Header: header})
		require.NoError(t, err)
		assert.False(t, event.Relevant)
	})
}
