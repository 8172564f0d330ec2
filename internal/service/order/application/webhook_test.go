// internal/service/order/application/webhook_test.go
package application

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/infrastructure"
	"orderflow/internal/service/order/port"
)

type dispatcherFixture struct {
	*serviceFixture
	dispatcher *WebhookDispatcher
	seen       *memSeen
}

func newDispatcherFixture(gateway *fakeGateway) *dispatcherFixture {
	sf := newServiceFixture(gateway)
	seen := newMemSeen()
	dispatcher := NewWebhookDispatcher(
		port.NewGatewayRegistry(gateway),
		sf.sessionRepo,
		seen,
		sf.svc,
		otel.Tracer("test"),
	)
	return &dispatcherFixture{serviceFixture: sf, dispatcher: dispatcher, seen: seen}
}

func webhookReq() *port.WebhookRequest {
	return &port.WebhookRequest{Body: []byte(`{}`), Header: http.Header{}}
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()

	createPending := func(t *testing.T, f *dispatcherFixture) string {
		resp, err := f.svc.CreateOrder(ctx, "user-1", &CreateOrderRequest{
			Provider: "STRIPE",
			Items:    []domain.OrderItem{{Title: "A", UnitPrice: 10, Quantity: 1}},
		})
		require.NoError(t, err)
		return resp.Order.ID
	}

	t.Run("verified event transitions the order", func(t *testing.T) {
		f := newDispatcherFixture(stripeGateway())
		orderID := createPending(t, f)
		f.gateway.parsedEvent = &port.ParsedEvent{
			EventID:   "evt-1",
			EventType: "checkout.session.completed",
			Relevant:  true,
			Outcome:   domain.OutcomeSucceeded,
			OrderID:   orderID,
		}

		require.NoError(t, f.dispatcher.HandleWebhook(ctx, "STRIPE", webhookReq()))

		order, err := f.orderRepo.FindByID(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
	})

	t.Run("invalid signature leaves state untouched", func(t *testing.T) {
		f := newDispatcherFixture(stripeGateway())
		orderID := createPending(t, f)
		f.gateway.verifyErr = domain.ErrInvalidSignature

		err := f.dispatcher.HandleWebhook(ctx, "STRIPE", webhookReq())
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)

		order, findErr := f.orderRepo.FindByID(ctx, orderID)
		require.NoError(t, findErr)
		assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
		assert.Equal(t, 0, f.notifier.count())
	})

	t.Run("duplicate delivery applies exactly once", func(t *testing.T) {
		f := newDispatcherFixture(stripeGateway())
		orderID := createPending(t, f)
		f.gateway.parsedEvent = &port.ParsedEvent{
			EventID:  "evt-dup",
			Relevant: true,
			Outcome:  domain.OutcomeSucceeded,
			OrderID:  orderID,
		}

		// 服务商按 at-least-once 重试，两次投递同一 event id
		require.NoError(t, f.dispatcher.HandleWebhook(ctx, "STRIPE", webhookReq()))
		require.NoError(t, f.dispatcher.HandleWebhook(ctx, "STRIPE", webhookReq()))

		assert.Equal(t, 1, f.notifier.count())
		order, err := f.orderRepo.FindByID(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderProcessing, order.OrderStatus)
	})

	t.Run("irrelevant event type is acknowledged", func(t *testing.T) {
		f := newDispatcherFixture(stripeGateway())
		createPending(t, f)
		f.gateway.parsedEvent = &port.ParsedEvent{
			EventID:   "evt-2",
			EventType: "charge.updated",
			Relevant:  false,
		}

		assert.NoError(t, f.dispatcher.HandleWebhook(ctx, "STRIPE", webhookReq()))
		assert.Equal(t, 0, f.notifier.count())
	})

	t.Run("resolves order through checkout session lookup", func(t *testing.T) {
		f := newDispatcherFixture(stripeGateway())
		orderID := createPending(t, f)
		// 事件不带订单 id，只带服务商对象 id
		f.gateway.parsedEvent = &port.ParsedEvent{
			EventID:     "evt-3",
			Relevant:    true,
			Outcome:     domain.OutcomeFailed,
			ProviderRef: "ref-" + orderID,
		}

		require.NoError(t, f.dispatcher.HandleWebhook(ctx, "STRIPE", webhookReq()))

		order, err := f.orderRepo.FindByID(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentFailed, order.PaymentStatus)
		assert.Equal(t, domain.OrderPending, order.OrderStatus)
	})

	t.Run("retry after a transient apply failure still transitions", func(t *testing.T) {
		gateway := stripeGateway()
		flaky := &flakyOrderRepo{memOrderRepo: newMemOrderRepo(), updateFails: 1}
		sessionRepo := newMemSessionRepo()
		notifier := &recordingNotifier{}
		registry := port.NewGatewayRegistry(gateway)
		svc := NewOrderService(flaky, sessionRepo, registry,
			infrastructure.NewKeyedMutex(), notifier, &recordingStream{}, otel.Tracer("test"))
		seen := newMemSeen()
		dispatcher := NewWebhookDispatcher(registry, sessionRepo, seen, svc, otel.Tracer("test"))

		resp, err := svc.CreateOrder(ctx, "user-1", &CreateOrderRequest{
			Provider: "STRIPE",
			Items:    []domain.OrderItem{{Title: "A", UnitPrice: 10, Quantity: 1}},
		})
		require.NoError(t, err)
		gateway.parsedEvent = &port.ParsedEvent{
			EventID:  "evt-flaky",
			Relevant: true,
			Outcome:  domain.OutcomeSucceeded,
			OrderID:  resp.Order.ID,
		}

		// 第一次投递撞上数据库抖动，应答 5xx
		err = dispatcher.HandleWebhook(ctx, "STRIPE", webhookReq())
		require.ErrorIs(t, err, errMockStorage)

		// 服务商带同一 event id 重试，必须重新生效而不是被当成重复确认掉
		require.NoError(t, dispatcher.HandleWebhook(ctx, "STRIPE", webhookReq()))

		order, err := flaky.FindByID(ctx, resp.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
		assert.Equal(t, domain.OrderProcessing, order.OrderStatus)
		assert.Equal(t, 1, notifier.count())
	})

	t.Run("missing order reference is rejected", func(t *testing.T) {
		f := newDispatcherFixture(stripeGateway())
		f.gateway.parsedEvent = &port.ParsedEvent{
			EventID:     "evt-4",
			Relevant:    true,
			Outcome:     domain.OutcomeSucceeded,
			ProviderRef: "ref-unknown",
		}

		err := f.dispatcher.HandleWebhook(ctx, "STRIPE", webhookReq())
		assert.ErrorIs(t, err, domain.ErrOrderReferenceMissing)
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		f := newDispatcherFixture(stripeGateway())
		err := f.dispatcher.HandleWebhook(ctx, "BITCOIN", webhookReq())
		assert.True(t, domain.IsValidation(err))
	})
}
