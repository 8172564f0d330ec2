// internal/service/order/domain/order_test.go
package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	t.Run("computes total from item snapshot", func(t *testing.T) {
		order, err := NewOrder("user-1", ProviderStripe, []OrderItem{
			{Title: "Widget A", UnitPrice: 10, Quantity: 2},
			{Title: "Widget B", UnitPrice: 5.5, Quantity: 1},
		})
		require.NoError(t, err)

		assert.NotEmpty(t, order.ID)
		assert.Equal(t, 25.5, order.TotalAmount)
		assert.Equal(t, PaymentPending, order.PaymentStatus)
		assert.Equal(t, OrderPending, order.OrderStatus)
	})

	t.Run("rejects invalid item snapshots", func(t *testing.T) {
		cases := []struct {
			name  string
			items []OrderItem
		}{
			{"empty items", nil},
			{"missing title", []OrderItem{{UnitPrice: 10, Quantity: 1}}},
			{"zero price", []OrderItem{{Title: "A", UnitPrice: 0, Quantity: 1}}},
			{"negative price", []OrderItem{{Title: "A", UnitPrice: -1, Quantity: 1}}},
			{"zero quantity", []OrderItem{{Title: "A", UnitPrice: 10, Quantity: 0}}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := NewOrder("user-1", ProviderStripe, tc.items)
				assert.True(t, IsValidation(err))
			})
		}
	})

	t.Run("rejects empty user", func(t *testing.T) {
		_, err := NewOrder("", ProviderStripe, []OrderItem{{Title: "A", UnitPrice: 1, Quantity: 1}})
		assert.True(t, IsValidation(err))
	})
}

func TestApplyPaymentOutcome(t *testing.T) {
	newPending := func(t *testing.T) *Order {
		order, err := NewOrder("user-1", ProviderStripe, []OrderItem{{Title: "A", UnitPrice: 10, Quantity: 1}})
		require.NoError(t, err)
		return order
	}

	t.Run("success moves order to PAID and PROCESSING", func(t *testing.T) {
		order := newPending(t)
		changed := order.ApplyPaymentOutcome(OutcomeSucceeded)

		assert.True(t, changed)
		assert.Equal(t, PaymentPaid, order.PaymentStatus)
		assert.Equal(t, OrderProcessing, order.OrderStatus)
	})

	t.Run("failure keeps fulfilment status PENDING", func(t *testing.T) {
		// 支付失败后用户可以重新发起支付，履约状态不动
		order := newPending(t)
		changed := order.ApplyPaymentOutcome(OutcomeFailed)

		assert.True(t, changed)
		assert.Equal(t, PaymentFailed, order.PaymentStatus)
		assert.Equal(t, OrderPending, order.OrderStatus)
	})

	t.Run("events after terminal state are no-ops", func(t *testing.T) {
		order := newPending(t)
		require.True(t, order.ApplyPaymentOutcome(OutcomeSucceeded))

		assert.False(t, order.ApplyPaymentOutcome(OutcomeSucceeded))
		assert.False(t, order.ApplyPaymentOutcome(OutcomeFailed))
		assert.Equal(t, PaymentPaid, order.PaymentStatus)
		assert.Equal(t, OrderProcessing, order.OrderStatus)
	})
}

func TestAdvanceTo(t *testing.T) {
	paidOrder := func(t *testing.T) *Order {
		order, err := NewOrder("user-1", ProviderPaypal, []OrderItem{{Title: "A", UnitPrice: 10, Quantity: 1}})
		require.NoError(t, err)
		require.True(t, order.ApplyPaymentOutcome(OutcomeSucceeded))
		return order
	}

	t.Run("advances PROCESSING to SHIPPED to DELIVERED", func(t *testing.T) {
		order := paidOrder(t)

		require.NoError(t, order.AdvanceTo(OrderShipped))
		assert.Equal(t, OrderShipped, order.OrderStatus)

		require.NoError(t, order.AdvanceTo(OrderDelivered))
		assert.Equal(t, OrderDelivered, order.OrderStatus)
	})

	t.Run("rejects skipping a step", func(t *testing.T) {
		order := paidOrder(t)
		assert.ErrorIs(t, order.AdvanceTo(OrderDelivered), ErrInvalidTransition)
		assert.Equal(t, OrderProcessing, order.OrderStatus)
	})

	t.Run("rejects advancing an unpaid order", func(t *testing.T) {
		order, err := NewOrder("user-1", ProviderStripe, []OrderItem{{Title: "A", UnitPrice: 10, Quantity: 1}})
		require.NoError(t, err)
		assert.ErrorIs(t, order.AdvanceTo(OrderShipped), ErrInvalidTransition)
	})

	t.Run("rejects leaving the terminal state", func(t *testing.T) {
		order := paidOrder(t)
		require.NoError(t, order.AdvanceTo(OrderShipped))
		require.NoError(t, order.AdvanceTo(OrderDelivered))
		assert.ErrorIs(t, order.AdvanceTo(OrderShipped), ErrInvalidTransition)
	})
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("SHIPPED")
	require.NoError(t, err)
	assert.Equal(t, OrderShipped, status)

	// 状态枚举大小写敏感
	_, err = ParseOrderStatus("shipped")
	assert.True(t, IsValidation(err))
}
