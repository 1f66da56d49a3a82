package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

// Wire-level event names, shared by the redis bus, the websocket layer and the
// realtime client.
const (
	EventNewMessage          EventType = "new_message"
	EventMessageStatusUpdate EventType = "message_status_update"
	EventConversationRead    EventType = "conversation_messages_read"
)

type Event interface {
	EventType() EventType
	OccurredAt() time.Time
}

type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

type EventHandlerFunc func(ctx context.Context, event Event) error

func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// BaseEvent is embedded in every concrete event so the bus can sniff the type
// before full unmarshalling.
type BaseEvent struct {
	EventTypeVal EventType `json:"event_type"`
	At           time.Time `json:"occurred_at"`
}

func (b BaseEvent) EventType() EventType  { return b.EventTypeVal }
func (b BaseEvent) OccurredAt() time.Time { return b.At }

// NewMessageEvent fans a freshly persisted message out to conversation rooms.
type NewMessageEvent struct {
	BaseEvent
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageStatusUpdateEvent covers edit, delete, reaction and star changes:
// anything that should make members refresh a single message.
type MessageStatusUpdateEvent struct {
	BaseEvent
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	Change         string    `json:"change"` // edited | deleted | reaction_added | reaction_removed | status
	ActorID        uuid.UUID `json:"actor_id"`
}

// ConversationReadEvent signals a bulk mark-read by one member.
type ConversationReadEvent struct {
	BaseEvent
	ConversationID uuid.UUID `json:"conversation_id"`
	ReaderID       uuid.UUID `json:"reader_id"`
	Count          int64     `json:"count"`
}

func NewNewMessageEvent(conversationID, messageID, senderID uuid.UUID, senderName, content, msgType string, createdAt time.Time) *NewMessageEvent {
	return &NewMessageEvent{
		BaseEvent:      BaseEvent{EventTypeVal: EventNewMessage, At: time.Now()},
		ConversationID: conversationID,
		MessageID:      messageID,
		SenderID:       senderID,
		SenderName:     senderName,
		Content:        content,
		MessageType:    msgType,
		CreatedAt:      createdAt,
	}
}

func NewMessageStatusUpdateEvent(conversationID, messageID, actorID uuid.UUID, change string) *MessageStatusUpdateEvent {
	return &MessageStatusUpdateEvent{
		BaseEvent:      BaseEvent{EventTypeVal: EventMessageStatusUpdate, At: time.Now()},
		ConversationID: conversationID,
		MessageID:      messageID,
		Change:         change,
		ActorID:        actorID,
	}
}

func NewConversationReadEvent(conversationID, readerID uuid.UUID, count int64) *ConversationReadEvent {
	return &ConversationReadEvent{
		BaseEvent:      BaseEvent{EventTypeVal: EventConversationRead, At: time.Now()},
		ConversationID: conversationID,
		ReaderID:       readerID,
		Count:          count,
	}
}
