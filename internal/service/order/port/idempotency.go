// internal/service/order/port/idempotency.go
package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// IdempotencyStore 是 webhook 去重的有界 seen-set。
// 记录按保留窗口过期，窗口必须大于服务商的最大重试窗口。
type IdempotencyStore interface {
	// MarkIfFirst 原子地记录 (provider, eventID)。
	// 第一次见到返回 true；窗口内重复返回 false，调用方应确认事件但不再生效。
	MarkIfFirst(ctx context.Context, provider domain.Provider, eventID string) (bool, error)

	// Unmark 撤销一条记录。事件生效失败时必须补偿撤销，
	// 否则服务商的重试会被当成重复投递吞掉，订单永远停在中间状态。
	Unmark(ctx context.Context, provider domain.Provider, eventID string) error
}
