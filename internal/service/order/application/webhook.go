// internal/service/order/application/webhook.go
package application

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/port"
)

var (
	webhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_webhooks_received_total",
		Help: "Inbound provider webhooks by provider and disposition.",
	}, []string{"provider", "disposition"})
)

// WebhookDispatcher 负责服务商回调的验证、归一化与分发。
// 它只提议状态变更，真正的写入全部委托给 OrderService。
type WebhookDispatcher struct {
	gateways    *port.GatewayRegistry
	sessionRepo domain.CheckoutSessionRepository
	seen        port.IdempotencyStore
	lifecycle   *OrderService
	tracer      trace.Tracer
}

func NewWebhookDispatcher(
	gateways *port.GatewayRegistry,
	sessionRepo domain.CheckoutSessionRepository,
	seen port.IdempotencyStore,
	lifecycle *OrderService,
	tracer trace.Tracer,
) *WebhookDispatcher {
	return &WebhookDispatcher{
		gateways:    gateways,
		sessionRepo: sessionRepo,
		seen:        seen,
		lifecycle:   lifecycle,
		tracer:      tracer,
	}
}

// HandleWebhook 处理一次服务商回调投递。
//
// 返回 nil 表示应答 200 {received:true}，包括三种情况:
// 事件生效、事件与我们无关、窗口内的重复投递。
// 返回错误时由接口层按错误分类映射状态码；验签失败和引用缺失是 400，
// 服务商会按 at-least-once 语义重试，幂等集保证重试不会二次生效。
func (d *WebhookDispatcher) HandleWebhook(ctx context.Context, providerName string, req *port.WebhookRequest) error {
	ctx, span := d.tracer.Start(ctx, "app.HandleWebhook", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	span.SetAttributes(attribute.String("webhook.provider", providerName))

	provider, err := domain.ParseProvider(providerName)
	if err != nil {
		webhooksReceived.WithLabelValues(providerName, "unknown_provider").Inc()
		return err
	}

	gateway, err := d.gateways.Lookup(provider)
	if err != nil {
		return err
	}

	// 1. 验签。签名覆盖原始字节，req.Body 必须未经任何改写。
	event, err := gateway.VerifyWebhook(ctx, req)
	if err != nil {
		webhooksReceived.WithLabelValues(string(provider), "rejected").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook verification failed")
		return err
	}
	span.SetAttributes(
		attribute.String("webhook.event_id", event.EventID),
		attribute.String("webhook.event_type", event.EventType),
	)

	// 2. 与支付结果无关的事件类型: 确认但不产生任何状态变更
	if !event.Relevant {
		webhooksReceived.WithLabelValues(string(provider), "ignored").Inc()
		logger.Ctx(ctx).Info().
			Str("provider", string(provider)).
			Str("event_type", event.EventType).
			Msg("unhandled webhook event type, acknowledged")
		return nil
	}

	// 3. 解析订单引用: metadata -> reference 字段 -> checkout session 反查
	orderID, err := d.resolveOrderID(ctx, provider, event)
	if err != nil {
		webhooksReceived.WithLabelValues(string(provider), "rejected").Inc()
		span.RecordError(err)
		return err
	}

	// 4. 幂等去重: 窗口内的重复投递确认成功，不再生效
	first, err := d.seen.MarkIfFirst(ctx, provider, event.EventID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !first {
		webhooksReceived.WithLabelValues(string(provider), "duplicate").Inc()
		logger.Ctx(ctx).Info().
			Str("provider", string(provider)).
			Str("event_id", event.EventID).
			Str("order_id", orderID).
			Msg("duplicate webhook delivery, acknowledged")
		return nil
	}

	// 5. 分发给生命周期控制器。
	// 生效失败时补偿撤销占位: 本次应答 5xx，服务商会带同一 event id 重试，
	// 重试必须重新走完整的生效路径而不是被当成重复投递确认掉。
	if err := d.lifecycle.ApplyPaymentOutcome(ctx, &domain.WebhookEvent{
		Provider: provider,
		EventID:  event.EventID,
		OrderID:  orderID,
		Outcome:  event.Outcome,
	}); err != nil {
		webhooksReceived.WithLabelValues(string(provider), "failed").Inc()
		if unmarkErr := d.seen.Unmark(ctx, provider, event.EventID); unmarkErr != nil {
			// 撤销失败会把这条事件卡到 TTL 过期，必须显眼地暴露出来
			logger.Ctx(ctx).Error().Err(unmarkErr).
				Str("provider", string(provider)).
				Str("event_id", event.EventID).
				Msg("failed to unmark webhook after apply error, retries will be swallowed until the dedup record expires")
		}
		return err
	}

	webhooksReceived.WithLabelValues(string(provider), "applied").Inc()
	return nil
}

func (d *WebhookDispatcher) resolveOrderID(ctx context.Context, provider domain.Provider, event *port.ParsedEvent) (string, error) {
	if event.OrderID != "" {
		return event.OrderID, nil
	}
	if event.ProviderRef != "" {
		orderID, err := d.sessionRepo.FindOrderID(ctx, provider, event.ProviderRef)
		if err != nil {
			return "", err
		}
		if orderID != "" {
			return orderID, nil
		}
	}
	return "", domain.ErrOrderReferenceMissing
}
