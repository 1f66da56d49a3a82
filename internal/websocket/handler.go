package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"opschat/internal/events"
	"opschat/internal/observability"
	"opschat/internal/services"
	"opschat/internal/transport/httpdto"
	"opschat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client-emitted event names.
const (
	eventJoinConversation  = "join_conversation"
	eventLeaveConversation = "leave_conversation"
	eventSendMessage       = "message:send"
)

type joinPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type sendPayload struct {
	ConversationID   uuid.UUID     `json:"conversation_id"`
	Content          string        `json:"content"`
	MessageType      string        `json:"message_type"`
	ReplyToMessageID uuid.NullUUID `json:"reply_to_message_id"`
	MediaURL         string        `json:"media_url"`
	ThumbnailURL     string        `json:"thumbnail_url"`
	FileName         string        `json:"file_name"`
	FileSize         int64         `json:"file_size"`
	DurationSecs     int32         `json:"duration_secs"`
	Latitude         *float64      `json:"latitude"`
	Longitude        *float64      `json:"longitude"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type Handler struct {
	auth       *services.AuthService
	hub        *Hub
	authorizer *ChannelAuthorizer
	messages   *services.MessageService
	log        *logger.Logger
}

func NewHandler(auth *services.AuthService, hub *Hub, authorizer *ChannelAuthorizer, messages *services.MessageService, log *logger.Logger) *Handler {
	return &Handler{auth: auth, hub: hub, authorizer: authorizer, messages: messages, log: log}
}

// Connect upgrades an authenticated request and runs the read loop until the
// peer goes away. Browsers cannot set headers on the ws handshake, so the
// token travels as a query parameter.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	claims, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID.String())
	ctx, cancel := context.WithCancel(services.WithUserContext(context.Background(), userID))
	defer cancel()

	h.hub.Register(client)
	go client.WriteLoop(ctx)

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		h.handleFrame(ctx, client, userID, raw)
	}

	h.hub.Unregister(client)
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, userID uuid.UUID, raw []byte) {
	frame, err := events.DecodeFrame(raw)
	if err != nil {
		h.sendError(client, "malformed frame")
		return
	}
	observability.IncWSEvent("inbound", frame.Event)

	switch frame.Event {
	case eventJoinConversation:
		var p joinPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.ConversationID == uuid.Nil {
			h.sendError(client, "conversation_id is required")
			return
		}
		channel := events.ConversationChannel(p.ConversationID)
		ok, err := h.authorizer.CanSubscribe(ctx, userID, channel)
		if err != nil || !ok {
			h.sendError(client, "cannot join conversation")
			return
		}
		h.hub.Subscribe(client, channel)

	case eventLeaveConversation:
		var p joinPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.ConversationID == uuid.Nil {
			h.sendError(client, "conversation_id is required")
			return
		}
		h.hub.Unsubscribe(client, events.ConversationChannel(p.ConversationID))

	case eventSendMessage:
		var p sendPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.ConversationID == uuid.Nil {
			h.sendError(client, "conversation_id is required")
			return
		}
		in := services.SendMessageInput{
			ConversationID:   p.ConversationID,
			SenderID:         userID,
			Content:          p.Content,
			Type:             p.MessageType,
			ReplyToMessageID: p.ReplyToMessageID,
			MediaURL:         p.MediaURL,
			ThumbnailURL:     p.ThumbnailURL,
			FileName:         p.FileName,
			FileSize:         p.FileSize,
			DurationSecs:     p.DurationSecs,
		}
		if p.Latitude != nil && p.Longitude != nil {
			in.Latitude = *p.Latitude
			in.Longitude = *p.Longitude
			in.HasLocation = true
		}
		if _, err := h.messages.SendMessage(ctx, in); err != nil {
			if h.log != nil {
				h.log.ErrorfCtx(ctx, "ws send message: %v", err)
			}
			h.sendError(client, "message rejected")
			return
		}

	default:
		h.sendError(client, "unknown event")
	}
}

func (h *Handler) sendError(client *Client, msg string) {
	data, err := json.Marshal(errorPayload{Message: msg})
	if err != nil {
		return
	}
	payload, err := events.WrapPayload("error", data)
	if err != nil {
		return
	}
	client.SendMessage(payload)
}
