// internal/service/order/application/dto.go
package application

import (
	"time"

	"orderflow/internal/service/order/domain"
)

// CreateOrderRequest 是创建订单用例的输入数据。
type CreateOrderRequest struct {
	Items    []domain.OrderItem `json:"items"`
	Provider string             `json:"paymentMethod"`
}

// OrderView 是订单在 API 响应里的形态。
type OrderView struct {
	ID            string             `json:"id"`
	UserID        string             `json:"userId"`
	Items         []domain.OrderItem `json:"items"`
	TotalAmount   float64            `json:"totalAmount"`
	PaymentMethod string             `json:"paymentMethod"`
	PaymentStatus string             `json:"paymentStatus"`
	OrderStatus   string             `json:"orderStatus"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// PaymentView 是支付发起结果在 API 响应里的形态。
type PaymentView struct {
	OrderID     string `json:"orderId"`
	RedirectURL string `json:"redirectUrl"`
	ProviderRef string `json:"providerRef"`
}

// LandingView 是支付回跳落地页展示的只读状态快照。
type LandingView struct {
	OrderID       string `json:"orderId"`
	PaymentStatus string `json:"paymentStatus"`
	OrderStatus   string `json:"orderStatus"`
}

// CreateOrderResponse 聚合了新订单和支付跳转信息。
type CreateOrderResponse struct {
	Order   *OrderView   `json:"order"`
	Payment *PaymentView `json:"payment"`
}

// ToOrderView 把领域实体转换为响应视图。
func ToOrderView(order *domain.Order) *OrderView {
	return &OrderView{
		ID:            order.ID,
		UserID:        order.UserID,
		Items:         order.Items,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: string(order.Provider),
		PaymentStatus: string(order.PaymentStatus),
		OrderStatus:   string(order.OrderStatus),
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}
