// internal/service/order/application/service.go
package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/auth"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/port"
)

// statusMessages 是各履约状态推送给用户的文案
var statusMessages = map[domain.OrderStatus]string{
	domain.OrderPending:    "Your order is pending.",
	domain.OrderProcessing: "Your order is being processed.",
	domain.OrderShipped:    "Your order has been shipped!",
	domain.OrderDelivered:  "Your order has been delivered!",
}

// OrderService 是订单生命周期的唯一写入方。
// 所有状态变更都经过它，在订单粒度的锁内完成 read-check-write。
type OrderService struct {
	orderRepo   domain.OrderRepository
	sessionRepo domain.CheckoutSessionRepository
	gateways    *port.GatewayRegistry
	locker      port.OrderLocker
	notifier    port.NotificationPublisher
	stream      port.EventStream
	tracer      trace.Tracer
}

func NewOrderService(
	orderRepo domain.OrderRepository,
	sessionRepo domain.CheckoutSessionRepository,
	gateways *port.GatewayRegistry,
	locker port.OrderLocker,
	notifier port.NotificationPublisher,
	stream port.EventStream,
	tracer trace.Tracer,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		sessionRepo: sessionRepo,
		gateways:    gateways,
		locker:      locker,
		notifier:    notifier,
		stream:      stream,
		tracer:      tracer,
	}
}

// CreateOrder 创建订单并发起服务商托管支付。
// 订单先以 PENDING/PENDING 落库；支付发起失败时订单保留原状态，
// 客户端可以通过重新获取支付链接安全重试。
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()

	provider, err := domain.ParseProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	order, err := domain.NewOrder(userID, provider, req.Items)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("payment.provider", string(provider)),
		attribute.Float64("order.total_amount", order.TotalAmount),
	)

	if err := s.orderRepo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist new order")
		return nil, err
	}

	intent, err := s.initiateCheckout(ctx, order)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, &domain.OrderEvent{
		Type:          domain.OrderEventCreated,
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentStatus: order.PaymentStatus,
		OrderStatus:   order.OrderStatus,
		TotalAmount:   order.TotalAmount,
		OccurredAt:    order.CreatedAt,
	})

	return &CreateOrderResponse{
		Order: ToOrderView(order),
		Payment: &PaymentView{
			OrderID:     order.ID,
			RedirectURL: intent.RedirectURL,
			ProviderRef: intent.ProviderRef,
		},
	}, nil
}

// RequestCheckoutURL 为一笔已存在的订单重新获取支付跳转链接。
// 只有订单属主可以调用，订单必须仍处于待支付状态。
func (s *OrderService) RequestCheckoutURL(ctx context.Context, userID, orderID string) (*PaymentView, error) {
	ctx, span := s.tracer.Start(ctx, "app.RequestCheckoutURL")
	defer span.End()

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrForbidden
	}

	intent, err := s.initiateCheckout(ctx, order)
	if err != nil {
		return nil, err
	}
	return &PaymentView{OrderID: order.ID, RedirectURL: intent.RedirectURL, ProviderRef: intent.ProviderRef}, nil
}

// initiateCheckout 调用服务商网关创建托管支付流程并落库关联记录。
// 网关调用是阻塞网络 IO，绝不在订单锁内进行。
func (s *OrderService) initiateCheckout(ctx context.Context, order *domain.Order) (*port.CheckoutIntent, error) {
	gateway, err := s.gateways.Lookup(order.Provider)
	if err != nil {
		return nil, err
	}

	intent, err := gateway.Initiate(ctx, order)
	if err != nil {
		return nil, err
	}

	session := domain.NewCheckoutSession(order.ID, order.Provider, intent.ProviderRef)
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("provider", string(order.Provider)).
		Str("provider_ref", intent.ProviderRef).
		Msg("checkout session created")
	return intent, nil
}

// GetOrder 读取订单，属主校验由调用方的身份决定: 管理员可读任意订单。
func (s *OrderService) GetOrder(ctx context.Context, actor *auth.TokenPayload, orderID string) (*OrderView, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.UserID && actor.Role != auth.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	return ToOrderView(order), nil
}

// LandingSnapshot 返回支付回跳落地页用的只读快照。
// 回跳链接可以被伪造，这条路径绝不写状态，状态真相只来自 webhook。
func (s *OrderService) LandingSnapshot(ctx context.Context, orderID string) (*LandingView, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &LandingView{
		OrderID:       order.ID,
		PaymentStatus: string(order.PaymentStatus),
		OrderStatus:   string(order.OrderStatus),
	}, nil
}

// ListOrders 返回当前用户的全部订单。
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*OrderView, error) {
	orders, err := s.orderRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]*OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, ToOrderView(o))
	}
	return views, nil
}

// ApplyPaymentOutcome 把一个已验证的支付结果作用到订单上。
// 这是 webhook 分发器唯一的状态变更入口:
//   - 锁内只做单行事务的 read-check-write
//   - 事件不适用于当前状态时为 no-op，确认成功且不发任何通知
//   - 通知和事件流发布在锁外进行，失败只记日志，绝不影响已提交的状态变更
func (s *OrderService) ApplyPaymentOutcome(ctx context.Context, event *domain.WebhookEvent) error {
	ctx, span := s.tracer.Start(ctx, "app.ApplyPaymentOutcome")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("webhook.event_id", event.EventID),
		attribute.String("webhook.outcome", string(event.Outcome)),
	)

	unlock, err := s.locker.Lock(ctx, event.OrderID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to acquire order lock: %w", err)
	}

	var changed bool
	order, err := s.orderRepo.UpdateInTx(ctx, event.OrderID, func(o *domain.Order) error {
		changed = o.ApplyPaymentOutcome(event.Outcome)
		return nil
	})
	unlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to apply payment outcome")
		return err
	}

	if !changed {
		// 重复或乱序投递: 确认事件，不产生任何副作用
		logger.Ctx(ctx).Info().
			Str("order_id", event.OrderID).
			Str("event_id", event.EventID).
			Msg("payment event not applicable to current state, acknowledged as no-op")
		return nil
	}

	s.notifyPaymentOutcome(ctx, order, event.Outcome)
	s.publishEvent(ctx, &domain.OrderEvent{
		Type:          paymentEventType(event.Outcome),
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentStatus: order.PaymentStatus,
		OrderStatus:   order.OrderStatus,
		TotalAmount:   order.TotalAmount,
		OccurredAt:    order.UpdatedAt,
	})

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("payment_status", string(order.PaymentStatus)).
		Str("order_status", string(order.OrderStatus)).
		Msg("payment outcome applied")
	return nil
}

// ApplyAdminTransition 执行管理员驱动的履约状态推进。
func (s *OrderService) ApplyAdminTransition(ctx context.Context, actor *auth.TokenPayload, orderID string, target domain.OrderStatus) (*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.ApplyAdminTransition")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.target_status", string(target)),
	)

	if actor.Role != auth.RoleAdmin {
		return nil, domain.ErrForbidden
	}

	unlock, err := s.locker.Lock(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to acquire order lock: %w", err)
	}

	order, err := s.orderRepo.UpdateInTx(ctx, orderID, func(o *domain.Order) error {
		return o.AdvanceTo(target)
	})
	unlock()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.notify(ctx, domain.NewNotificationMessage(
		order.UserID, order.ID, order.PaymentStatus, order.OrderStatus, statusMessages[order.OrderStatus],
	))
	s.publishEvent(ctx, &domain.OrderEvent{
		Type:          domain.OrderEventStatusChanged,
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentStatus: order.PaymentStatus,
		OrderStatus:   order.OrderStatus,
		TotalAmount:   order.TotalAmount,
		OccurredAt:    order.UpdatedAt,
	})

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("order_status", string(order.OrderStatus)).
		Str("actor", actor.UserID).
		Msg("admin transition applied")
	return ToOrderView(order), nil
}

func (s *OrderService) notifyPaymentOutcome(ctx context.Context, order *domain.Order, outcome domain.PaymentOutcome) {
	var text string
	switch outcome {
	case domain.OutcomeSucceeded:
		text = "Payment successful! Your order is now processing."
	case domain.OutcomeFailed:
		text = "Payment failed. Please try again."
	}
	s.notify(ctx, domain.NewNotificationMessage(
		order.UserID, order.ID, order.PaymentStatus, order.OrderStatus, text,
	))
}

// notify 尽力投递通知。通知链路故障和订单事务之间是强制隔离的。
func (s *OrderService) notify(ctx context.Context, msg *domain.NotificationMessage) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, msg); err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("user_id", msg.UserID).
			Str("order_id", msg.OrderID).
			Msg("notification dropped")
	}
}

// publishEvent 尽力发布生命周期事件，失败只记日志。
func (s *OrderService) publishEvent(ctx context.Context, event *domain.OrderEvent) {
	if s.stream == nil {
		return
	}
	if err := s.stream.Publish(ctx, event); err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("order_id", event.OrderID).
			Str("event_type", string(event.Type)).
			Msg("order event publish failed")
	}
}

func paymentEventType(outcome domain.PaymentOutcome) domain.OrderEventType {
	if outcome == domain.OutcomeSucceeded {
		return domain.OrderEventPaymentPaid
	}
	return domain.OrderEventPaymentFailed
}
