// Package ws pushes replies to renderers over WebSocket and accepts comments on the same socket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/aituber/backend/internal/handler/apierr"
	"github.com/zhouzirui/aituber/backend/internal/model/live"
	"github.com/zhouzirui/aituber/backend/internal/service/broadcast"
	"github.com/zhouzirui/aituber/backend/internal/service/pipeline"
	"github.com/zhouzirui/aituber/backend/pkg/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
	queueSize  = 16
)

// Message types.
const (
	TypeConnected = "connected"
	TypeComment   = "comment"
	TypeReply     = "reply"
	TypeSkipped   = "skipped"
	TypeError     = "error"
)

// Handler WebSocket 回复推送处理器
type Handler struct {
	pipeline pipeline.Processor
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(p pipeline.Processor, hub *broadcast.Hub) *Handler {
	return &Handler{
		pipeline: p,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// CommentData is the payload of an inbound comment message.
type CommentData struct {
	Username string `json:"username"`
	Comment  string `json:"comment"`
}

// Message is every frame the server writes.
type Message struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// handleWebSocket 处理WebSocket连接。回复经 hub 广播给同一会话的所有连接，
// 被过滤和失败的结果只发给提交评论的连接。
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionID is required")
		return
	}
	if h.hub == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "broadcast unavailable")
		return
	}

	sub := h.hub.Subscribe(sessionID)
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "ws").Msg("upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.With().Str("component", "ws").Str("session", sessionID).Logger()
	logger.Info().Msg("renderer connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan Message, queueSize)
	writerDone := make(chan struct{})
	send := func(msg Message) {
		msg.SessionID = sessionID
		msg.Timestamp = time.Now().UnixMilli()
		select {
		case outbound <- msg:
		case <-ctx.Done():
		case <-writerDone:
		}
	}

	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, conn, sub, outbound)
	}()

	send(Message{Type: TypeConnected})

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var wg sync.WaitGroup
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("read failed")
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if msg.Type != TypeComment {
			send(Message{Type: TypeError, Data: ErrorData{Status: http.StatusBadRequest, Message: "unsupported message type: " + msg.Type}})
			continue
		}
		var data CommentData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			send(Message{Type: TypeError, Data: ErrorData{Status: http.StatusBadRequest, Message: "invalid comment payload"}})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			h.processComment(ctx, live.CommentInput{SessionID: sessionID, Username: data.Username, Comment: data.Comment}, send)
		}()
	}

	cancel()
	wg.Wait()
	<-writerDone
	logger.Info().Msg("renderer disconnected")
}

func (h *Handler) processComment(ctx context.Context, in live.CommentInput, send func(Message)) {
	out, err := h.pipeline.Process(ctx, in)
	if err != nil {
		status := apierr.Status(err)
		message := "internal error"
		if status != http.StatusInternalServerError {
			message = err.Error()
		}
		send(Message{Type: TypeError, Data: ErrorData{Status: status, Message: message}})
		return
	}
	if !out.ShouldRespond {
		send(Message{Type: TypeSkipped, Data: out})
		return
	}
	h.hub.Publish(out)
}

// writeLoop is the only writer on conn.
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *broadcast.Subscription, outbound <-chan Message) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	// Unblocks the read loop when writing stops first.
	defer conn.Close()

	write := func(msg Message) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Debug().Err(err).Str("component", "ws").Msg("write failed")
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case out, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if !write(Message{Type: TypeReply, SessionID: out.SessionID, Data: out, Timestamp: time.Now().UnixMilli()}) {
				return
			}
		case msg := <-outbound:
			if !write(msg) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
