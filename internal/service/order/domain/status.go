// internal/service/order/domain/status.go
package domain

import "fmt"

// PaymentStatus 定义了一次支付尝试的生命周期状态。
// 只允许 PENDING -> PAID 或 PENDING -> FAILED，到达终态后不再变化。
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// OrderStatus 定义了订单的履约状态。
// PENDING -> PROCESSING 由支付成功事件自动驱动；
// PROCESSING -> SHIPPED -> DELIVERED 只能由管理员操作逐级推进。
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
)

// adminNext 是管理员操作的合法推进表，不允许跳级
var adminNext = map[OrderStatus]OrderStatus{
	OrderProcessing: OrderShipped,
	OrderShipped:    OrderDelivered,
}

// ParseOrderStatus 把外部输入解析为 OrderStatus。
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered:
		return OrderStatus(s), nil
	}
	return "", NewValidationError(fmt.Sprintf("unknown order status: %q", s))
}

// Provider 枚举接入的支付服务商。
type Provider string

const (
	ProviderStripe Provider = "STRIPE"
	ProviderPaypal Provider = "PAYPAL"
)

// ParseProvider 把外部输入解析为 Provider。
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderStripe, ProviderPaypal:
		return Provider(s), nil
	}
	return "", NewValidationError(fmt.Sprintf("unsupported payment provider: %q", s))
}
