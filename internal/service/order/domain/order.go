// internal/service/order/domain/order.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem 是下单时的商品快照，创建后不可变。
type OrderItem struct {
	Title     string  `json:"title"`
	UnitPrice float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Order 是订单聚合的根实体。
// TotalAmount 在创建时按商品快照计算一次，之后永不重算。
type Order struct {
	ID          string
	UserID      string
	Provider    Provider
	Items       []OrderItem
	TotalAmount float64

	PaymentStatus PaymentStatus
	OrderStatus   OrderStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder 工厂函数: 校验商品快照并创建一个双状态均为 PENDING 的新订单。
func NewOrder(userID string, provider Provider, items []OrderItem) (*Order, error) {
	if userID == "" {
		return nil, NewValidationError("userId is required")
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Order{
		ID:            uuid.New().String(),
		UserID:        userID,
		Provider:      provider,
		Items:         items,
		TotalAmount:   totalOf(items),
		PaymentStatus: PaymentPending,
		OrderStatus:   OrderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func validateItems(items []OrderItem) error {
	if len(items) == 0 {
		return NewValidationError("order must have at least one item")
	}
	for _, item := range items {
		if item.Title == "" {
			return NewValidationError("each item must have a valid title")
		}
		if item.UnitPrice <= 0 {
			return NewValidationError("each item must have a valid price greater than 0")
		}
		if item.Quantity <= 0 {
			return NewValidationError("each item must have a valid quantity greater than 0")
		}
	}
	return nil
}

func totalOf(items []OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

// IsPaymentPending 判断订单是否还在等待支付结果。
func (o *Order) IsPaymentPending() bool {
	return o.PaymentStatus == PaymentPending
}

// ApplyPaymentOutcome 把一个已验证的支付结果作用到订单上。
// 返回 false 表示该事件不适用于当前状态（重复投递或乱序投递），调用方应当
// 直接确认事件而不报错。
func (o *Order) ApplyPaymentOutcome(outcome PaymentOutcome) bool {
	if !o.IsPaymentPending() {
		// 支付状态已经到达终态，防御重复/乱序的 webhook
		return false
	}

	switch outcome {
	case OutcomeSucceeded:
		o.PaymentStatus = PaymentPaid
		o.OrderStatus = OrderProcessing
	case OutcomeFailed:
		o.PaymentStatus = PaymentFailed
		// 履约状态保持 PENDING，允许用户重新发起支付
	default:
		return false
	}
	o.UpdatedAt = time.Now()
	return true
}

// AdvanceTo 执行管理员驱动的履约状态推进。
// 只允许表定义的相邻推进，其余一律 ErrInvalidTransition。
func (o *Order) AdvanceTo(target OrderStatus) error {
	next, ok := adminNext[o.OrderStatus]
	if !ok || next != target {
		return ErrInvalidTransition
	}
	o.OrderStatus = target
	o.UpdatedAt = time.Now()
	return nil
}

// CheckoutSession 记录服务商侧支付对象和领域订单的关联，创建后只读。
// webhook 里只带服务商自己的对象 id 时，靠它反查订单。
type CheckoutSession struct {
	ID          string
	OrderID     string
	Provider    Provider
	ProviderRef string // 服务商侧对象 id: Stripe session id / PayPal order id
	CreatedAt   time.Time
}

func NewCheckoutSession(orderID string, provider Provider, providerRef string) *CheckoutSession {
	return &CheckoutSession{
		ID:          uuid.New().String(),
		OrderID:     orderID,
		Provider:    provider,
		ProviderRef: providerRef,
		CreatedAt:   time.Now(),
	}
}
