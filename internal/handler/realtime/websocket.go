package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	chatService "github.com/zhouzirui/pulse-hr/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/simulator"
	"github.com/zhouzirui/pulse-hr/backend/pkg/utils"
)

const (
	defaultPingInterval = 54 * time.Second
	defaultReadTimeout  = 60 * time.Second
	writeTimeout        = 10 * time.Second
	subscriberBuffer    = 32
	maxMessageBytes     = 8 << 10
)

// WebSocketHandler WebSocket聊天处理器
type WebSocketHandler struct {
	chatSvc      *chatService.Service
	log          *zap.Logger
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	readTimeout  time.Duration
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatService.Service, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		chatSvc: chatSvc,
		log:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pingInterval: defaultPingInterval,
		readTimeout:  defaultReadTimeout,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// client serialises writes to one connection; gorilla allows a single concurrent writer.
type client struct {
	conn      *websocket.Conn
	sessionID string
	log       *zap.Logger
	writeMu   sync.Mutex
}

func (c *client) write(msg outgoingMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *client) sendInfo(data map[string]any) {
	msg := outgoingMessage{
		Type:      "result",
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := c.write(msg); err != nil {
		c.log.Debug("write info failed", zap.Error(err))
	}
}

func (c *client) sendError(message string) {
	msg := outgoingMessage{
		Type:      "error",
		SessionID: c.sessionID,
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := c.write(msg); err != nil {
		c.log.Debug("write error failed", zap.Error(err))
	}
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("session", sessionID), zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	log := h.log.With(zap.String("session", sessionID))
	c := &client{conn: conn, sessionID: sessionID, log: log}

	ctx, cancel := context.WithCancel(r.Context())
	events, unsubscribe, err := h.chatSvc.Subscribe(ctx, sessionID, subscriberBuffer)
	if err != nil {
		cancel()
		c.sendError(err.Error())
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	defer func() {
		cancel()
		unsubscribe()
		if err := g.Wait(); err != nil {
			log.Debug("websocket ping failed", zap.Error(err))
		}
		log.Debug("websocket connection closed")
	}()

	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	snapshot, err := h.chatSvc.Snapshot(ctx, sessionID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.sendInfo(map[string]any{
		"type":      "connected",
		"companion": session.CompanionID,
		"snapshot":  snapshot,
	})
	log.Debug("websocket connection opened")

	g.Go(func() error {
		h.forwardEvents(ctx, c, events)
		return nil
	})
	g.Go(func() error {
		return h.pingLoop(gctx, c)
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("invalid message")
			continue
		}
		if msg.SessionID != "" && msg.SessionID != sessionID {
			c.sendError("session mismatch")
			continue
		}

		h.handleMessage(ctx, c, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, c *client, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		h.handleTextMessage(ctx, c, msg.Data)
	case "reset":
		h.handleReset(ctx, c)
	default:
		c.sendError("unsupported message type: " + msg.Type)
	}
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, c *client, raw json.RawMessage) {
	var payload TextMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError("invalid text payload")
		return
	}

	msg, accepted, err := h.chatSvc.Submit(ctx, c.sessionID, payload.Text)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if !accepted {
		c.sendInfo(map[string]any{"type": "ignored"})
		return
	}
	c.sendInfo(map[string]any{"type": "accepted", "message": msg})
}

func (h *WebSocketHandler) handleReset(ctx context.Context, c *client) {
	if err := h.chatSvc.Reset(ctx, c.sessionID); err != nil {
		c.sendError(err.Error())
		return
	}
	snapshot, err := h.chatSvc.Snapshot(ctx, c.sessionID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.sendInfo(map[string]any{"type": "snapshot", "snapshot": snapshot})
}

// forwardEvents relays simulator events until the subscription ends. A subscription
// closed while the connection is still live means the session was torn down.
func (h *WebSocketHandler) forwardEvents(ctx context.Context, c *client, events <-chan simulator.Event) {
	for ev := range events {
		c.sendInfo(map[string]any{"type": string(ev.Type), "event": ev})
	}
	if ctx.Err() != nil {
		return
	}

	c.log.Debug("session closed, ending websocket")
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
	_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeTimeout))
	_ = c.conn.Close()
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, c *client) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		}
	}
}
