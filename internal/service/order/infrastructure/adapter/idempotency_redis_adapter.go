// internal/service/order/infrastructure/adapter/idempotency_redis_adapter.go
package adapter

import (
	"context"
	"fmt"
	"time"

	"orderflow/internal/pkg/redis"
	"orderflow/internal/service/order/domain"
)

// IdempotencyRedisAdapter 是 port.IdempotencyStore 的 Redis 实现。
// SETNX + TTL: 第一次写入成功即占位，TTL 到期后记录自动淘汰，
// 保证 seen-set 有界且覆盖服务商的重试窗口。
type IdempotencyRedisAdapter struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewIdempotencyRedisAdapter(redisClient *redis.Client, ttl time.Duration) *IdempotencyRedisAdapter {
	return &IdempotencyRedisAdapter{redisClient: redisClient, ttl: ttl}
}

// MarkIfFirst 原子记录 (provider, eventID)，重复时返回 false。
func (a *IdempotencyRedisAdapter) MarkIfFirst(ctx context.Context, provider domain.Provider, eventID string) (bool, error) {
	first, err := a.redisClient.SetNX(ctx, seenKey(provider, eventID), 1, a.ttl)
	if err != nil {
		return false, fmt.Errorf("idempotency store failed: %w", err)
	}
	return first, nil
}

// Unmark 删除占位记录，让同一事件的重试重新走完整的生效路径。
func (a *IdempotencyRedisAdapter) Unmark(ctx context.Context, provider domain.Provider, eventID string) error {
	if err := a.redisClient.Del(ctx, seenKey(provider, eventID)); err != nil {
		return fmt.Errorf("idempotency unmark failed: %w", err)
	}
	return nil
}

func seenKey(provider domain.Provider, eventID string) string {
	return fmt.Sprintf("webhook:seen:{%s}:%s", provider, eventID)
}
