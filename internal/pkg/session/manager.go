// internal/pkg/session/manager.go
package session

import (
	"context"
	"fmt"
	"time"

	"orderflow/internal/pkg/redis"
)

const (
	userGatewayKeyPrefix = "session:user_gateway:"
	// 会话记录必须续期，否则网关节点宕机后会留下指向死节点的脏数据
	sessionTTL = 2 * time.Minute
)

// Manager 维护 "用户 -> 网关节点" 的在线会话映射。
// push-gateway 在客户端连接/断开时写入和删除，供多节点部署时做消息路由。
type Manager struct {
	redisClient *redis.Client
}

func NewManager(redisClient *redis.Client) *Manager {
	return &Manager{redisClient: redisClient}
}

// SetUserGateway 记录用户当前挂在哪个网关节点上。
func (m *Manager) SetUserGateway(ctx context.Context, userID, nodeID string) error {
	return m.redisClient.Set(ctx, userGatewayKeyPrefix+userID, nodeID, sessionTTL)
}

// RefreshUserGateway 心跳续期，保持会话存活。
func (m *Manager) RefreshUserGateway(ctx context.Context, userID, nodeID string) error {
	return m.SetUserGateway(ctx, userID, nodeID)
}

// GetUserGateway 查询用户所在网关节点，用户离线时返回空串。
func (m *Manager) GetUserGateway(ctx context.Context, userID string) (string, error) {
	nodeID, err := m.redisClient.Get(ctx, userGatewayKeyPrefix+userID)
	if err != nil {
		return "", fmt.Errorf("failed to get session for user %s: %w", userID, err)
	}
	return nodeID, nil
}

// RemoveUserGateway 在客户端断开时清理会话。
func (m *Manager) RemoveUserGateway(ctx context.Context, userID string) error {
	return m.redisClient.Del(ctx, userGatewayKeyPrefix+userID)
}
