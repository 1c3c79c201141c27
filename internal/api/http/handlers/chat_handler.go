package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-chat/internal/api/dto"
	"github.com/spec-kit/helpdesk-chat/internal/auth"
	"github.com/spec-kit/helpdesk-chat/internal/domain"
	"github.com/spec-kit/helpdesk-chat/internal/events"
	"github.com/spec-kit/helpdesk-chat/internal/realtime"
	"github.com/spec-kit/helpdesk-chat/internal/service"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

const senderLocal = "ws_sender"

// ChatHandler bridges websocket connections to the realtime hub and chat service.
type ChatHandler struct {
	hub          *realtime.Hub
	chat         *service.ChatService
	writeTimeout time.Duration
	opTimeout    time.Duration
	logger       *zap.Logger
}

// NewChatHandler constructs handler.
func NewChatHandler(hub *realtime.Hub, chat *service.ChatService, writeTimeout time.Duration, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &ChatHandler{
		hub:          hub,
		chat:         chat,
		writeTimeout: writeTimeout,
		opTimeout:    15 * time.Second,
		logger:       logger,
	}
}

// frame is what a websocket client receives for each event.
type frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Upgrade admits authenticated websocket upgrades and records the caller identity.
func (h *ChatHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	c.Locals(senderLocal, principal.Sender())
	return c.Next()
}

// Serve returns the websocket endpoint.
func (h *ChatHandler) Serve() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *ChatHandler) serve(conn *websocket.Conn) {
	sender, ok := conn.Locals(senderLocal).(domain.Sender)
	if !ok {
		_ = conn.Close()
		return
	}
	session := h.hub.Register(sender)
	writerDone := make(chan struct{})
	go h.writeLoop(conn, session, writerDone)

	defer func() {
		h.hub.Unregister(session.ID)
		<-writerDone
		h.logger.Debug("websocket closed", zap.String("session_id", session.ID))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Info("websocket read failed", zap.String("session_id", session.ID), zap.Error(err))
			}
			return
		}
		var msg dto.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(session.ID, apperrors.NewValidationError("malformed message", nil))
			continue
		}
		h.dispatch(session, msg)
	}
}

// writeLoop is the only goroutine writing to conn.
func (h *ChatHandler) writeLoop(conn *websocket.Conn, session *realtime.Session, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case env := <-session.Outbox():
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteJSON(frame{Event: env.Event, Payload: env.Payload}); err != nil {
				h.logger.Debug("websocket write failed", zap.String("session_id", session.ID), zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-session.Done():
			deadline := time.Now().Add(h.writeTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"), deadline)
			_ = conn.Close()
			return
		}
	}
}

func (h *ChatHandler) dispatch(session *realtime.Session, msg dto.ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), h.opTimeout)
	defer cancel()

	sender := session.Identity
	var err error
	switch msg.Action {
	case dto.ActionJoin:
		if err = h.chat.Join(ctx, session.ID, msg.TicketID); err == nil {
			_ = h.hub.Send(session.ID, events.Joined, events.TicketRef{TicketID: msg.TicketID})
		}
	case dto.ActionSendMessage:
		_, err = h.chat.SendMessage(ctx, sender, msg.TicketID, msg.Content)
	case dto.ActionSendFileMessage:
		_, err = h.chat.SendFileMessage(ctx, sender, msg.TicketID, msg.FileURL)
	case dto.ActionRequestClose:
		err = h.chat.RequestClose(ctx, sender, msg.TicketID)
	case dto.ActionConfirmClose:
		_, err = h.chat.ConfirmClose(ctx, sender, msg.TicketID)
	case dto.ActionDeclineClose:
		err = h.chat.DeclineClose(ctx, sender, msg.TicketID)
	default:
		err = apperrors.NewValidationError("unknown action", map[string]any{"action": msg.Action})
	}
	if err != nil {
		h.reply(session.ID, err)
	}
}

// reply sends an error to the calling session only.
func (h *ChatHandler) reply(sessionID string, err error) {
	de := apperrors.ToDomainError(err)
	if de.HTTPStatus >= 500 {
		h.logger.Error("chat operation failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	_ = h.hub.Send(sessionID, events.Error, events.ErrorPayload{
		Code:    de.Code,
		Message: de.Message,
		Details: de.Details,
	})
}
