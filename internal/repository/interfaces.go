package repository

import (
	"context"
	"database/sql"
	"time"

	"opschat/internal/domain/conversation"
	"opschat/internal/domain/message"
	"opschat/internal/domain/user"

	"github.com/google/uuid"
)

// ReactionView is a reaction attributed to the reacting user.
type ReactionView struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Reaction    string    `json:"reaction"`
}

// ReplySnapshot embeds one level of the quoted parent, never a full chain.
type ReplySnapshot struct {
	ID          uuid.UUID      `json:"id"`
	Content     sql.NullString `json:"-"`
	SenderName  string         `json:"sender_name"`
	MessageType string         `json:"message_type"`
}

// MessageView is a message decorated for the read API.
type MessageView struct {
	Message    message.Message
	SenderName string
	Reactions  []ReactionView
	ReplyTo    *ReplySnapshot
}

// SearchResult carries conversation context so global matches can be
// disambiguated client-side.
type SearchResult struct {
	Message          message.Message
	SenderName       string
	ConversationName sql.NullString
	IsGroup          bool
}

// StarredView is a bookmark joined with its message.
type StarredView struct {
	Message    message.Message
	SenderName string
	StarredAt  time.Time
}

// ConversationSummary backs the conversation list: one row per conversation
// the user belongs to, with the denormalized last-message fields and the
// caller's own pinned flag.
type ConversationSummary struct {
	Conversation conversation.Conversation
	Pinned       bool
	Members      []MemberView
}

// MemberView is a member joined with display data.
type MemberView struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	ListConversationMessages(ctx context.Context, conversationID, readerID uuid.UUID, limit, offset int) ([]MessageView, error)
	Search(ctx context.Context, readerID uuid.UUID, conversationID uuid.NullUUID, query string, limit int) ([]SearchResult, error)
	AddReaction(ctx context.Context, r *message.Reaction) error
	RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, reaction string) error
	Star(ctx context.Context, s *message.StarredMessage) error
	Unstar(ctx context.Context, userID, messageID uuid.UUID) error
	ListStarred(ctx context.Context, userID uuid.UUID) ([]StarredView, error)
	Edit(ctx context.Context, messageID, senderID uuid.UUID, content string) (message.Message, error)
	SoftDelete(ctx context.Context, messageID, senderID uuid.UUID, forAll bool) (message.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) (int64, error)
}

type ConversationRepository interface {
	CreateWithMembers(ctx context.Context, c *conversation.Conversation, memberIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetDirectConversation(ctx context.Context, userID1, userID2 uuid.UUID) (conversation.Conversation, error)
	ListUserSummaries(ctx context.Context, userID uuid.UUID) ([]ConversationSummary, error)
	IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	GetMemberIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	SetPinned(ctx context.Context, conversationID, userID uuid.UUID, pinned bool) error
	UpdateLastMessage(ctx context.Context, conversationID uuid.UUID, preview string, senderID uuid.UUID, at time.Time) error
}

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
}
