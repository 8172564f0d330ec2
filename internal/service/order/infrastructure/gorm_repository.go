// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orderflow/internal/service/order/domain"
)

// MySQL 唯一键冲突
const mysqlErrDuplicateEntry = 1062

// GormOrderRepository 是 OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository 创建一个新的 GORM 仓储实例
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create 落库一笔新订单
func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	model, err := FromDomainOrder(order)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByID 按 id 查找订单
func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return ToDomainOrder(&model)
}

// FindByUserID 返回用户的全部订单，新的在前
func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		order, err := ToDomainOrder(&models[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdateInTx 在单行事务中执行 read-modify-write。
// SELECT ... FOR UPDATE 保证即使进程级锁失效（比如持锁进程崩溃后另一副本接管），
// 同一订单行上也不会出现交错的写入。
func (r *GormOrderRepository) UpdateInTx(ctx context.Context, id string, mutate func(*domain.Order) error) (*domain.Order, error) {
	var updated *domain.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model OrderModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&model).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOrderNotFound
			}
			return err
		}

		order, err := ToDomainOrder(&model)
		if err != nil {
			return err
		}
		if err := mutate(order); err != nil {
			return err
		}

		// 商品快照不可变，只写回状态字段
		err = tx.Model(&OrderModel{}).Where("id = ?", id).Updates(map[string]interface{}{
			"payment_status": order.PaymentStatus,
			"order_status":   order.OrderStatus,
			"updated_at":     order.UpdatedAt,
		}).Error
		if err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GormCheckoutSessionRepository 是 CheckoutSessionRepository 的 GORM 实现
type GormCheckoutSessionRepository struct {
	db *gorm.DB
}

func NewGormCheckoutSessionRepository(db *gorm.DB) *GormCheckoutSessionRepository {
	return &GormCheckoutSessionRepository{db: db}
}

// Save 写入一条关联记录，记录创建后只读。
// 同一 (provider, provider_ref) 的重复写入按幂等成功处理。
func (r *GormCheckoutSessionRepository) Save(ctx context.Context, session *domain.CheckoutSession) error {
	err := r.db.WithContext(ctx).Create(FromDomainCheckoutSession(session)).Error
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
		return nil
	}
	return err
}

// FindOrderID 按 (provider, providerRef) 反查订单 id，查不到返回空串
func (r *GormCheckoutSessionRepository) FindOrderID(ctx context.Context, provider domain.Provider, providerRef string) (string, error) {
	var model CheckoutSessionModel
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_ref = ?", string(provider), providerRef).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return model.OrderID, nil
}
