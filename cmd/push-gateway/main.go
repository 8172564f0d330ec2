// cmd/push-gateway/main.go
package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"orderflow/internal/pkg/auth"
	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/redis"
	"orderflow/internal/pkg/session"
	"orderflow/internal/service/relay"
)

const serviceName = "push-gateway"

// main 是推送网关的组装根。
// 网关自身无状态: 连接路由信息在 Redis，进程可以随时重启，
// 客户端断线重连后会落到存活的节点上。
func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	verifier := auth.NewVerifier(cfg.App.Auth.JWTSecret)
	sessions := session.NewManager(redisClient)
	server := relay.NewServer(verifier, sessions, cfg.App.Relay.InternalToken)

	var g errgroup.Group
	g.Go(func() error {
		server.Run()
		return nil
	})

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8088,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
			server.RegisterRoutes(appCtx.Mux)
		},
		Cleanup: func(ctx context.Context) {
			server.Shutdown()
			if err := redisClient.Close(); err != nil {
				logger.Logger.Error().Err(err).Msg("failed to close redis client")
			}
		},
	})

	// 等 Hub 事件循环退出，保证所有客户端通道都被关闭
	_ = g.Wait()
	logger.Logger.Info().Str("node_id", server.NodeID()).Msg("push gateway stopped")
}
