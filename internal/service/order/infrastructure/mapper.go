// internal/service/order/infrastructure/mapper.go
package infrastructure

import (
	"encoding/json"

	"github.com/pkg/errors"

	"orderflow/internal/service/order/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型
func ToDomainOrder(model *OrderModel) (*domain.Order, error) {
	if model == nil {
		return nil, nil
	}
	var items []domain.OrderItem
	if err := json.Unmarshal([]byte(model.Items), &items); err != nil {
		return nil, errors.Wrapf(err, "corrupt items snapshot for order %s", model.ID)
	}
	return &domain.Order{
		ID:            model.ID,
		UserID:        model.UserID,
		Provider:      domain.Provider(model.Provider),
		Items:         items,
		TotalAmount:   model.TotalAmount,
		PaymentStatus: model.PaymentStatus,
		OrderStatus:   model.OrderStatus,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}, nil
}

// FromDomainOrder 将领域模型转换为数据库模型
func FromDomainOrder(order *domain.Order) (*OrderModel, error) {
	if order == nil {
		return nil, nil
	}
	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot marshal items for order %s", order.ID)
	}
	return &OrderModel{
		ID:            order.ID,
		UserID:        order.UserID,
		Provider:      string(order.Provider),
		Items:         string(items),
		TotalAmount:   order.TotalAmount,
		PaymentStatus: order.PaymentStatus,
		OrderStatus:   order.OrderStatus,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}, nil
}

// ToDomainCheckoutSession 将数据库模型转换为领域模型
func ToDomainCheckoutSession(model *CheckoutSessionModel) *domain.CheckoutSession {
	if model == nil {
		return nil
	}
	return &domain.CheckoutSession{
		ID:          model.ID,
		OrderID:     model.OrderID,
		Provider:    domain.Provider(model.Provider),
		ProviderRef: model.ProviderRef,
		CreatedAt:   model.CreatedAt,
	}
}

// FromDomainCheckoutSession 将领域模型转换为数据库模型
func FromDomainCheckoutSession(session *domain.CheckoutSession) *CheckoutSessionModel {
	if session == nil {
		return nil
	}
	return &CheckoutSessionModel{
		ID:          session.ID,
		OrderID:     session.OrderID,
		Provider:    string(session.Provider),
		ProviderRef: session.ProviderRef,
		CreatedAt:   session.CreatedAt,
	}
}
