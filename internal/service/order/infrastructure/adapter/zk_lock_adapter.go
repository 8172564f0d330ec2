// internal/service/order/infrastructure/adapter/zk_lock_adapter.go
package adapter

import (
	"context"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/zookeeper"
)

// ZkLockAdapter 是 port.OrderLocker 的 ZooKeeper 实现。
// 订单服务多副本部署时，用它把订单粒度的串行化扩展到跨进程。
type ZkLockAdapter struct {
	conn *zookeeper.Conn
}

func NewZkLockAdapter(conn *zookeeper.Conn) *ZkLockAdapter {
	return &ZkLockAdapter{conn: conn}
}

// Lock 获取 orderID 对应的分布式锁，返回释放函数。
func (a *ZkLockAdapter) Lock(ctx context.Context, orderID string) (func(), error) {
	lock, err := zookeeper.NewDistributedLock(a.conn, "order-"+orderID)
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(); err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			// 临时节点会随会话过期自动清理，这里只记日志
			logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Msg("failed to release zk lock")
		}
	}, nil
}
