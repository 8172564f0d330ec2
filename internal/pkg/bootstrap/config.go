// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是两个服务共享的全部配置。
// 来源优先级: 环境变量 > yaml 配置文件 > 默认值。
type Config struct {
	App   AppConfig   `yaml:"app"`
	Infra InfraConfig `yaml:"infra"`
}

type AppConfig struct {
	LogLevel string `yaml:"log_level"`
	// BaseURL 用于拼接支付成功/取消的回跳地址
	BaseURL string `yaml:"base_url"`

	Auth      AuthConfig      `yaml:"auth"`
	Providers ProvidersConfig `yaml:"providers"`
	Relay     RelayConfig     `yaml:"relay"`
	Webhook   WebhookConfig   `yaml:"webhook"`
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
}

type ProvidersConfig struct {
	Stripe StripeConfig `yaml:"stripe"`
	Paypal PaypalConfig `yaml:"paypal"`
}

type StripeConfig struct {
	APIBase       string `yaml:"api_base"`
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type PaypalConfig struct {
	APIBase      string `yaml:"api_base"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	WebhookID    string `yaml:"webhook_id"`
}

type RelayConfig struct {
	// URL 是 push-gateway 内部生产者端点, 例如 ws://push-gateway:8088/internal/ws
	URL           string `yaml:"url"`
	InternalToken string `yaml:"internal_token"`
}

type WebhookConfig struct {
	// DedupTTL 是幂等去重记录的保留窗口，必须大于 provider 的最大重试窗口
	DedupTTL time.Duration `yaml:"dedup_ttl"`
}

type InfraConfig struct {
	Mysql     MysqlConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
}

type MysqlConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers          []string `yaml:"brokers"`
	OrderEventsTopic string   `yaml:"order_events_topic"`
}

type ZookeeperConfig struct {
	// Addrs 为空时使用进程内锁；多副本部署时配置后切换到 ZK 分布式锁
	Addrs []string `yaml:"addrs"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

var currentConfig atomic.Pointer[Config]

// Init 加载配置。配置文件路径从 CONFIG_PATH 读取，文件不存在时仅依赖环境变量和默认值。
func Init() {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("FATAL: cannot read config file %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Fatalf("FATAL: cannot parse config file %s: %v", path, err)
		}
	}

	applyEnvOverrides(cfg)
	currentConfig.Store(cfg)
}

// GetCurrentConfig 返回当前生效的配置快照。
func GetCurrentConfig() *Config {
	cfg := currentConfig.Load()
	if cfg == nil {
		// 允许测试场景下不调用 Init
		cfg = defaultConfig()
		currentConfig.Store(cfg)
	}
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel: "info",
			BaseURL:  "http://localhost:8080",
			Auth: AuthConfig{
				AccessTokenTTL: 15 * time.Minute,
			},
			Providers: ProvidersConfig{
				Stripe: StripeConfig{APIBase: "https://api.stripe.com"},
				Paypal: PaypalConfig{APIBase: "https://api-m.sandbox.paypal.com"},
			},
			Relay: RelayConfig{URL: "ws://localhost:8088/internal/ws"},
			Webhook: WebhookConfig{
				DedupTTL: 72 * time.Hour,
			},
		},
		Infra: InfraConfig{
			Mysql: MysqlConfig{DSN: "root:root@tcp(localhost:3306)/orderflow?charset=utf8mb4&parseTime=True&loc=Local"},
			Redis: RedisConfig{Addr: "localhost:6379"},
			Kafka: KafkaConfig{
				Brokers:          []string{"localhost:9092"},
				OrderEventsTopic: "order-events-v1",
			},
			Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Infra.Mysql.DSN, "MYSQL_DSN")
	setString(&cfg.Infra.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Infra.Jaeger.Endpoint, "JAEGER_ENDPOINT")
	setString(&cfg.App.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.App.BaseURL, "APP_BASE_URL")
	setString(&cfg.App.Providers.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setString(&cfg.App.Providers.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setString(&cfg.App.Providers.Paypal.ClientID, "PAYPAL_CLIENT_ID")
	setString(&cfg.App.Providers.Paypal.ClientSecret, "PAYPAL_CLIENT_SECRET")
	setString(&cfg.App.Providers.Paypal.WebhookID, "PAYPAL_WEBHOOK_ID")
	setString(&cfg.App.Relay.URL, "RELAY_URL")
	setString(&cfg.App.Relay.InternalToken, "RELAY_INTERNAL_TOKEN")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ZK_ADDRS"); v != "" {
		cfg.Infra.Zookeeper.Addrs = strings.Split(v, ",")
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}
