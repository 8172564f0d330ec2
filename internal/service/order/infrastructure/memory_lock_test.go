// internal/service/order/infrastructure/memory_lock_test.go
package infrastructure

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex(t *testing.T) {
	ctx := context.Background()

	t.Run("serializes access per key", func(t *testing.T) {
		km := NewKeyedMutex()
		counter := 0

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := km.Lock(ctx, "order-1")
				if !assert.NoError(t, err) {
					return
				}
				counter++
				unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, 50, counter)
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		km := NewKeyedMutex()

		unlockA, err := km.Lock(ctx, "order-a")
		require.NoError(t, err)
		defer unlockA()

		// order-a 持锁期间 order-b 仍然能拿到锁
		unlockB, err := km.Lock(ctx, "order-b")
		require.NoError(t, err)
		unlockB()
	})

	t.Run("double unlock is harmless", func(t *testing.T) {
		km := NewKeyedMutex()

		unlock, err := km.Lock(ctx, "order-1")
		require.NoError(t, err)
		unlock()
		unlock()

		unlock2, err := km.Lock(ctx, "order-1")
		require.NoError(t, err)
		unlock2()
	})

	t.Run("reclaims entries when no holders remain", func(t *testing.T) {
		km := NewKeyedMutex()
		unlock, err := km.Lock(ctx, "order-1")
		require.NoError(t, err)
		unlock()

		km.mu.Lock()
		defer km.mu.Unlock()
		assert.Empty(t, km.locks)
	})
}
