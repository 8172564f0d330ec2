// internal/service/order/infrastructure/adapter/relay_ws_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
)

var (
	relayPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_relay_messages_published_total",
		Help: "Notifications successfully written to the push gateway.",
	})
	relayDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_relay_messages_dropped_total",
		Help: "Notifications dropped because the relay was unreachable or the buffer was full.",
	})
)

const (
	relayBufferSize    = 256
	relayWriteWait     = 5 * time.Second
	relayDialTimeout   = 5 * time.Second
	relayBackoffBase   = 500 * time.Millisecond
	relayBackoffCeil   = 30 * time.Second
)

// RelayWsAdapter 是 port.NotificationPublisher 的 websocket 实现。
// 它作为受信生产者连接推送网关的内部端点，由网关扇出给浏览器。
// 投递是尽力而为: 网关不可达时丢弃消息并计数，绝不把失败冒泡给订单主流程。
type RelayWsAdapter struct {
	relayURL      string
	internalToken string

	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func NewRelayWsAdapter(relayURL, internalToken string) *RelayWsAdapter {
	a := &RelayWsAdapter{
		relayURL:      relayURL,
		internalToken: internalToken,
		sendCh:        make(chan []byte, relayBufferSize),
		done:          make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Publish 把通知塞进发送缓冲，缓冲满时丢弃。
func (a *RelayWsAdapter) Publish(ctx context.Context, msg *domain.NotificationMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case a.sendCh <- payload:
		return nil
	default:
		relayDroppedTotal.Inc()
		logger.Ctx(ctx).Warn().Str("user_id", msg.UserID).Msg("relay send buffer full, notification dropped")
		return nil
	}
}

func (a *RelayWsAdapter) Close() error {
	a.once.Do(func() { close(a.done) })
	a.wg.Wait()
	return nil
}

// run 维护到推送网关的长连接，断线后指数退避重连。
func (a *RelayWsAdapter) run() {
	defer a.wg.Done()

	backoff := relayBackoffBase
	for {
		select {
		case <-a.done:
			return
		default:
		}

		conn, err := a.dial()
		if err != nil {
			logger.Logger.Warn().Err(err).Str("relay_url", a.relayURL).Dur("retry_in", backoff).Msg("failed to connect to push gateway")
			a.drainDuring(backoff)
			if backoff *= 2; backoff > relayBackoffCeil {
				backoff = relayBackoffCeil
			}
			continue
		}

		logger.Logger.Info().Str("relay_url", a.relayURL).Msg("✅ connected to push gateway")
		backoff = relayBackoffBase
		a.pump(conn)
		conn.Close()
	}
}

func (a *RelayWsAdapter) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: relayDialTimeout}
	header := http.Header{}
	header.Set("X-Internal-Token", a.internalToken)
	conn, _, err := dialer.Dial(a.relayURL, header)
	return conn, err
}

// pump 把缓冲里的消息写到连接上，写失败即返回触发重连。
func (a *RelayWsAdapter) pump(conn *websocket.Conn) {
	for {
		select {
		case <-a.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(relayWriteWait))
			return
		case payload := <-a.sendCh:
			conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				relayDroppedTotal.Inc()
				logger.Logger.Warn().Err(err).Msg("relay write failed, reconnecting")
				return
			}
			relayPublishedTotal.Inc()
		}
	}
}

// drainDuring 在重连等待期内继续消费缓冲并丢弃，防止生产侧长期阻塞。
func (a *RelayWsAdapter) drainDuring(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-timer.C:
			return
		case <-a.sendCh:
			relayDroppedTotal.Inc()
		}
	}
}
