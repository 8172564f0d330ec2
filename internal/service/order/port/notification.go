// internal/service/order/port/notification.go
package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// NotificationPublisher 把通知投递给目标用户的实时会话。
// 投递是尽力而为的: 实现不得阻塞订单事务，链路断开时丢弃并记日志即可。
type NotificationPublisher interface {
	Publish(ctx context.Context, msg *domain.NotificationMessage) error
	Close() error
}

// EventStream 把订单生命周期事件发布给下游消费者 (Kafka)。
// 与 NotificationPublisher 同样是旁路: 失败不回滚订单状态。
type EventStream interface {
	Publish(ctx context.Context, event *domain.OrderEvent) error
	Close() error
}
