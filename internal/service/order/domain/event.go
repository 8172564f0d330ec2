// internal/service/order/domain/event.go
package domain

import "time"

// PaymentOutcome 是各服务商事件类型归一化之后的两种业务结果。
type PaymentOutcome string

const (
	OutcomeSucceeded PaymentOutcome = "SUCCEEDED"
	OutcomeFailed    PaymentOutcome = "FAILED"
)

// WebhookEvent 是验签并解析后的、与服务商无关的支付回调事件。
// 只在一次分发过程中存活，不做长期持久化。
// (Provider, EventID) 是幂等键，保证 at-least-once 投递下的 at-most-once 生效。
type WebhookEvent struct {
	Provider Provider
	EventID  string
	OrderID  string
	Outcome  PaymentOutcome
}

// NotificationMessage 是推送给用户实时会话的通知载体，尽力投递、从不落库。
type NotificationMessage struct {
	UserID        string `json:"userId"`
	OrderID       string `json:"orderId"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
	OrderStatus   string `json:"orderStatus,omitempty"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp"`
}

// NewNotificationMessage 构造一条带当前时间戳的通知。
func NewNotificationMessage(userID, orderID string, paymentStatus PaymentStatus, orderStatus OrderStatus, message string) *NotificationMessage {
	return &NotificationMessage{
		UserID:        userID,
		OrderID:       orderID,
		PaymentStatus: string(paymentStatus),
		OrderStatus:   string(orderStatus),
		Message:       message,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

// OrderEventType 标记生命周期事件流中的事件种类。
type OrderEventType string

const (
	OrderEventCreated       OrderEventType = "ORDER_CREATED"
	OrderEventPaymentPaid   OrderEventType = "PAYMENT_PAID"
	OrderEventPaymentFailed OrderEventType = "PAYMENT_FAILED"
	OrderEventStatusChanged OrderEventType = "STATUS_CHANGED"
)

// OrderEvent 是发布到 Kafka 生命周期事件流的载体，供下游系统
// (对账、风控、数仓) 消费；发布失败不影响订单事务。
type OrderEvent struct {
	Type          OrderEventType `json:"type"`
	OrderID       string         `json:"orderId"`
	UserID        string         `json:"userId"`
	PaymentStatus PaymentStatus  `json:"paymentStatus"`
	OrderStatus   OrderStatus    `json:"orderStatus"`
	TotalAmount   float64        `json:"totalAmount"`
	OccurredAt    time.Time      `json:"occurredAt"`
}
