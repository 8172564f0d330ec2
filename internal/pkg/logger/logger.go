// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger 是全局的根日志实例，由 Init 初始化
var Logger zerolog.Logger

func init() {
	// 未显式 Init 时也要有可用的兜底实例
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Init 初始化全局日志实例，并打上服务名标签。
// level 为空时默认为 info。
func Init(serviceName string, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	Logger = zerolog.New(os.Stderr).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回一个绑定了链路追踪信息的日志实例。
// 如果上下文中存在有效的 Span，会自动附加 trace_id/span_id，
// 方便在日志系统里和 Jaeger 互相跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return &Logger
	}
	l := Logger.With().
		Str("trace_id", spanCtx.TraceID().String()).
		Str("span_id", spanCtx.SpanID().String()).
		Logger()
	return &l
}
