// cmd/order-service/main.go
package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"orderflow/internal/pkg/auth"
	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/pkg/redis"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/infrastructure"
	"orderflow/internal/service/order/infrastructure/adapter"
	"orderflow/internal/service/order/interfaces"
	"orderflow/internal/service/order/port"
	"orderflow/internal/zookeeper"
)

const serviceName = "order-service"

// main 是订单服务的组装根: 创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	// MySQL
	db, err := gorm.Open(gormmysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{})
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	if err := db.AutoMigrate(&infrastructure.OrderModel{}, &infrastructure.CheckoutSessionModel{}); err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to migrate database schema")
	}

	// Redis
	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	// 订单锁: 单副本用进程内锁，配置了 ZK 地址则切换到分布式锁
	var locker port.OrderLocker = infrastructure.NewKeyedMutex()
	var zkConn *zookeeper.Conn
	if len(cfg.Infra.Zookeeper.Addrs) > 0 {
		zkConn, err = zookeeper.Connect(cfg.Infra.Zookeeper.Addrs)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		locker = adapter.NewZkLockAdapter(zkConn)
		logger.Logger.Info().Strs("addrs", cfg.Infra.Zookeeper.Addrs).Msg("using zookeeper distributed order lock")
	}

	tracer := otel.Tracer(serviceName)
	httpClient := httpclient.NewClient(tracer)

	// 支付网关
	stripe := adapter.NewStripeAdapter(
		httpClient,
		cfg.App.Providers.Stripe.APIBase,
		cfg.App.Providers.Stripe.SecretKey,
		cfg.App.Providers.Stripe.WebhookSecret,
		cfg.App.BaseURL,
	)
	paypal := adapter.NewPaypalAdapter(
		httpClient,
		cfg.App.Providers.Paypal.APIBase,
		cfg.App.Providers.Paypal.ClientID,
		cfg.App.Providers.Paypal.ClientSecret,
		cfg.App.Providers.Paypal.WebhookID,
		cfg.App.BaseURL,
	)
	gateways := port.NewGatewayRegistry(stripe, paypal)

	// 出站适配器
	notifier := adapter.NewRelayWsAdapter(cfg.App.Relay.URL, cfg.App.Relay.InternalToken)
	kafkaWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OrderEventsTopic)
	stream := adapter.NewEventsKafkaAdapter(kafkaWriter)
	seen := adapter.NewIdempotencyRedisAdapter(redisClient, cfg.App.Webhook.DedupTTL)

	// 应用层
	orderRepo := infrastructure.NewGormOrderRepository(db)
	sessionRepo := infrastructure.NewGormCheckoutSessionRepository(db)
	orders := application.NewOrderService(orderRepo, sessionRepo, gateways, locker, notifier, stream, tracer)
	dispatcher := application.NewWebhookDispatcher(gateways, sessionRepo, seen, orders, tracer)

	verifier := auth.NewVerifier(cfg.App.Auth.JWTSecret)
	handler := interfaces.NewHandler(orders, dispatcher, verifier)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8080,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
			handler.RegisterRoutes(appCtx.Mux)
		},
		Cleanup: func(ctx context.Context) {
			if err := notifier.Close(); err != nil {
				logger.Logger.Error().Err(err).Msg("failed to close relay publisher")
			}
			if err := stream.Close(); err != nil {
				logger.Logger.Error().Err(err).Msg("failed to close kafka writer")
			}
			if err := redisClient.Close(); err != nil {
				logger.Logger.Error().Err(err).Msg("failed to close redis client")
			}
			if zkConn != nil {
				zkConn.Close()
			}
		},
	})
}
