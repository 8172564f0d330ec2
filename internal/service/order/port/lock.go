// internal/service/order/port/lock.go
package port

import "context"

// OrderLocker 提供以订单 id 为粒度的互斥锁。
// 生命周期控制器在锁内完成 read-check-write，保证同一订单的状态变更串行化；
// 对外部服务商的网络调用一律在锁外进行。
type OrderLocker interface {
	// Lock 获取 orderID 的锁，返回释放函数。
	Lock(ctx context.Context, orderID string) (unlock func(), err error)
}
