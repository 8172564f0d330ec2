// internal/service/relay/hub.go
package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"orderflow/internal/pkg/logger"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderflow_relay_active_connections",
		Help: "Currently connected websocket clients.",
	})
	deliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_relay_delivered_total",
		Help: "Notifications delivered to at least one client connection.",
	})
	noRecipientTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_relay_no_recipient_total",
		Help: "Notifications dropped because the target user had no open connection.",
	})
	backlogDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_relay_backlog_dropped_total",
		Help: "Notifications dropped because the hub delivery queue was full.",
	})
)

// delivery 是一次路由请求: 按 userID 找到房间，把原始字节转发给房间内所有连接。
type delivery struct {
	userID  string
	payload []byte
}

// Hub 维护所有活跃连接并按用户路由消息。
// 同一用户可以有多个并发连接 (多标签页、多设备)，它们组成一个房间，
// 每条通知扇出给房间内的全部连接。
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	done       chan struct{}

	// onUserOnline / onUserOffline 在用户的第一条连接建立和最后一条
	// 连接断开时回调，用于维护 Redis 里的会话映射。
	onUserOnline  func(userID string)
	onUserOffline func(userID string)
}

func NewHub(onUserOnline, onUserOffline func(userID string)) *Hub {
	return &Hub{
		rooms:         make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		deliver:       make(chan delivery, 256),
		done:          make(chan struct{}),
		onUserOnline:  onUserOnline,
		onUserOffline: onUserOffline,
	}
}

// Run 是 Hub 的事件循环，所有对 rooms 的读写都在这一个 goroutine 里完成。
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for _, room := range h.rooms {
				for client := range room {
					close(client.send)
				}
			}
			return

		case client := <-h.register:
			room, ok := h.rooms[client.userID]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[client.userID] = room
			}
			room[client] = true
			activeConnections.Inc()
			if len(room) == 1 && h.onUserOnline != nil {
				h.onUserOnline(client.userID)
			}
			logger.Logger.Info().
				Str("user_id", client.userID).
				Int("connections", len(room)).
				Msg("client registered")

		case client := <-h.unregister:
			room, ok := h.rooms[client.userID]
			if !ok {
				continue
			}
			if _, ok := room[client]; !ok {
				continue
			}
			h.dropFromRoom(room, client)
			logger.Logger.Info().
				Str("user_id", client.userID).
				Int("connections", len(room)).
				Msg("client unregistered")

		case d := <-h.deliver:
			room, ok := h.rooms[d.userID]
			if !ok || len(room) == 0 {
				noRecipientTotal.Inc()
				continue
			}
			delivered := false
			for client := range room {
				select {
				case client.send <- d.payload:
					delivered = true
				default:
					// 写入积压说明连接已不健康，踢掉等它重连
					h.dropFromRoom(room, client)
				}
			}
			if delivered {
				deliveredTotal.Inc()
			} else {
				noRecipientTotal.Inc()
			}
		}
	}
}

// dropFromRoom 把连接移出房间并关闭发送通道。
// 注销和踢出两条路径都走这里，保证空房间一定被回收、
// offline 回调一定触发，不会留下指向幽灵房间的 Redis 会话。
func (h *Hub) dropFromRoom(room map[*Client]bool, client *Client) {
	delete(room, client)
	close(client.send)
	activeConnections.Dec()
	if len(room) == 0 {
		delete(h.rooms, client.userID)
		if h.onUserOffline != nil {
			h.onUserOffline(client.userID)
		}
	}
}

// Deliver 把一条通知路由给目标用户的所有连接，用户离线时静默丢弃。
func (h *Hub) Deliver(userID string, payload []byte) {
	select {
	case h.deliver <- delivery{userID: userID, payload: payload}:
	default:
		backlogDroppedTotal.Inc()
		logger.Logger.Warn().Str("user_id", userID).Msg("hub delivery queue full, notification dropped")
	}
}

// Shutdown 停止事件循环并关闭所有客户端发送通道。
func (h *Hub) Shutdown() {
	close(h.done)
}
