// internal/service/order/infrastructure/memory_lock.go
package infrastructure

import (
	"context"
	"sync"
)

// KeyedMutex 是 OrderLocker 的进程内实现: 每个订单 id 一把互斥锁。
// 订单服务单副本部署时足够；多副本时用 ZooKeeper 分布式锁适配器替换。
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu sync.Mutex
	// refs 统计持有者+等待者数量，归零时回收 map 条目，防止无界增长
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*lockEntry)}
}

// Lock 获取 orderID 的锁，返回释放函数。
func (k *KeyedMutex) Lock(ctx context.Context, orderID string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[orderID]
	if !ok {
		entry = &lockEntry{}
		k.locks[orderID] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			entry.mu.Unlock()
			k.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(k.locks, orderID)
			}
			k.mu.Unlock()
		})
	}
	return unlock, nil
}
