// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单数据的持久化接口。
// 这是领域层与基础设施层之间的"插座"。
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	FindByUserID(ctx context.Context, userID string) ([]*Order, error)

	// UpdateInTx 在单行事务中执行 read-modify-write:
	// 行锁内读出订单、执行 mutate、写回。mutate 返回错误时整个事务回滚。
	// 订单不存在时返回 ErrOrderNotFound。
	UpdateInTx(ctx context.Context, id string, mutate func(*Order) error) (*Order, error)
}

// CheckoutSessionRepository 持久化服务商关联记录，只有写入和按服务商引用反查。
type CheckoutSessionRepository interface {
	Save(ctx context.Context, session *CheckoutSession) error
	// FindOrderID 按 (provider, providerRef) 反查领域订单 id，查不到返回空串。
	FindOrderID(ctx context.Context, provider Provider, providerRef string) (string, error)
}
