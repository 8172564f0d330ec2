// internal/service/relay/handler.go
package relay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"orderflow/internal/pkg/auth"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 网关不靠 Origin 做安全边界，客户端靠 token 认证
		return true
	},
}

// Server 是推送网关的接入层: 南向接受浏览器连接，北向接受
// 订单服务的受信生产者连接，消息经 Hub 按用户路由。
type Server struct {
	hub           *Hub
	verifier      *auth.Verifier
	sessions      *session.Manager
	internalToken string
	nodeID        string
}

func NewServer(verifier *auth.Verifier, sessions *session.Manager, internalToken string) *Server {
	nodeID := "push-gateway-" + uuid.New().String()[:8]
	s := &Server{
		verifier:      verifier,
		sessions:      sessions,
		internalToken: internalToken,
		nodeID:        nodeID,
	}
	s.hub = NewHub(s.markUserOnline, s.markUserOffline)
	return s
}

func (s *Server) NodeID() string { return s.nodeID }

// Run 启动 Hub 事件循环，阻塞直到 Shutdown。
func (s *Server) Run() {
	s.hub.Run()
}

func (s *Server) Shutdown() {
	s.hub.Shutdown()
}

// RegisterRoutes 注册 websocket 接入点。
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.serveClient)
	mux.HandleFunc("GET /internal/ws", s.serveProducer)
}

type greeting struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	NodeID  string `json:"nodeId"`
}

// serveClient 处理浏览器连接: ?token= 里的 access token 决定连接归属的用户。
func (s *Server) serveClient(w http.ResponseWriter, r *http.Request) {
	payload, err := s.verifier.VerifyAccessToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: payload.UserID,
		onPong: s.refreshSession,
	}
	s.hub.register <- client

	// 握手成功先发一条问候，客户端以此确认通道就绪
	if hello, err := json.Marshal(greeting{Type: "connected", Message: "Connected to notification service", NodeID: s.nodeID}); err == nil {
		client.send <- hello
	}

	go client.writePump()
	go client.readPump()
}

// producerEnvelope 只为取路由键，载荷原样转发不重新序列化。
type producerEnvelope struct {
	UserID string `json:"userId"`
}

// serveProducer 处理订单服务的内部连接。
// 认证靠共享密钥头，这个端点只应暴露在内网。
func (s *Server) serveProducer(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Internal-Token")
	if s.internalToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.internalToken)) != 1 {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("producer upgrade failed")
		return
	}
	defer conn.Close()

	logger.Logger.Info().Str("remote", r.RemoteAddr).Msg("✅ producer connected")

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			logger.Logger.Info().Err(err).Str("remote", r.RemoteAddr).Msg("producer disconnected")
			return
		}

		var envelope producerEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil || envelope.UserID == "" {
			logger.Logger.Warn().Str("remote", r.RemoteAddr).Msg("producer message missing userId, discarded")
			continue
		}
		s.hub.Deliver(envelope.UserID, payload)
	}
}

func (s *Server) markUserOnline(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.sessions.SetUserGateway(ctx, userID, s.nodeID); err != nil {
		logger.Logger.Warn().Err(err).Str("user_id", userID).Msg("failed to record user session")
	}
}

func (s *Server) markUserOffline(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.sessions.RemoveUserGateway(ctx, userID); err != nil {
		logger.Logger.Warn().Err(err).Str("user_id", userID).Msg("failed to clear user session")
	}
}

func (s *Server) refreshSession(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.sessions.RefreshUserGateway(ctx, userID, s.nodeID); err != nil {
		logger.Logger.Warn().Err(err).Str("user_id", userID).Msg("failed to refresh user session")
	}
}
