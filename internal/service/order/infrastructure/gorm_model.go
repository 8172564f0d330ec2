// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"orderflow/internal/service/order/domain"
)

// OrderModel 对应数据库中的 orders 表。
// 商品快照以 JSON 形式整体存储，订单创建后不可变。
type OrderModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	UserID        string `gorm:"size:36;index"`
	Provider      string `gorm:"size:16"`
	Items         string `gorm:"type:json"`
	TotalAmount   float64
	PaymentStatus domain.PaymentStatus `gorm:"size:16"`
	OrderStatus   domain.OrderStatus   `gorm:"size:16"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}

// CheckoutSessionModel 对应数据库中的 checkout_session 表。
// (provider, provider_ref) 唯一，webhook 按它反查订单。
type CheckoutSessionModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	OrderID     string `gorm:"size:36;index"`
	Provider    string `gorm:"size:16;uniqueIndex:uk_provider_ref"`
	ProviderRef string `gorm:"size:255;uniqueIndex:uk_provider_ref"`
	CreatedAt   time.Time
}

// TableName 指定 GORM 应该使用的表名
func (CheckoutSessionModel) TableName() string {
	return "checkout_session"
}
