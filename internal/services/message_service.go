package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"opschat/internal/domain/message"
	"opschat/internal/events"
	"opschat/internal/observability"
	"opschat/internal/proxy"
	"opschat/internal/redis"
	"opschat/internal/repository"
	opschat_errors "opschat/pkg/errors"
	"opschat/pkg/logger"

	"github.com/google/uuid"
)

const (
	defaultPageLimit   = 50
	defaultSearchLimit = 25
	previewMaxLen      = 120
)

// SendMessageInput is the one write that arrives over the socket rather than
// REST.
type SendMessageInput struct {
	ConversationID   uuid.UUID
	SenderID         uuid.UUID
	Content          string
	Type             string
	ReplyToMessageID uuid.NullUUID
	MediaURL         string
	ThumbnailURL     string
	FileName         string
	FileSize         int64
	DurationSecs     int32
	Latitude         float64
	Longitude        float64
	HasLocation      bool
}

type MessageService struct {
	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
	access           *proxy.AccessControl
	publisher        events.Publisher
	limiter          *redis.RateLimiter
	log              *logger.Logger
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	conversationRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	access *proxy.AccessControl,
	publisher events.Publisher,
	limiter *redis.RateLimiter,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		access:           access,
		publisher:        publisher,
		limiter:          limiter,
		log:              log,
	}
}

// ListMessages returns a membership-gated page, oldest to newest. The storage
// query pages from the latest message backwards; the page is reversed here so
// callers render top-down.
func (s *MessageService) ListMessages(ctx context.Context, conversationID, userID uuid.UUID, limit, offset int) ([]repository.MessageView, error) {
	if err := s.access.CanViewConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	views, err := s.messageRepo.ListConversationMessages(ctx, conversationID, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(views)-1; i < j; i, j = i+1, j-1 {
		views[i], views[j] = views[j], views[i]
	}
	return views, nil
}

// SearchMessages runs scoped search when conversationID is set, otherwise a
// global search across every conversation the caller belongs to.
func (s *MessageService) SearchMessages(ctx context.Context, userID uuid.UUID, conversationID uuid.NullUUID, query string, limit int) ([]repository.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, opschat_errors.ErrInvalidInput
	}
	if conversationID.Valid {
		if err := s.access.CanViewConversation(ctx, userID, conversationID.UUID); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.messageRepo.Search(ctx, userID, conversationID, query, limit)
}

func (s *MessageService) AddReaction(ctx context.Context, messageID, userID uuid.UUID, reaction string) error {
	if strings.TrimSpace(reaction) == "" {
		return opschat_errors.ErrInvalidInput
	}
	msg, err := s.gateMessage(ctx, messageID, userID)
	if err != nil {
		return err
	}
	err = s.messageRepo.AddReaction(ctx, &message.Reaction{
		ID:        uuid.New(),
		MessageID: messageID,
		UserID:    userID,
		Reaction:  reaction,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.NewMessageStatusUpdateEvent(msg.ConversationID, messageID, userID, "reaction_added"))
	return nil
}

func (s *MessageService) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, reaction string) error {
	msg, err := s.gateMessage(ctx, messageID, userID)
	if err != nil {
		return err
	}
	if err := s.messageRepo.RemoveReaction(ctx, messageID, userID, reaction); err != nil {
		return err
	}
	s.publish(ctx, events.NewMessageStatusUpdateEvent(msg.ConversationID, messageID, userID, "reaction_removed"))
	return nil
}

func (s *MessageService) StarMessage(ctx context.Context, messageID, userID uuid.UUID) error {
	if _, err := s.gateMessage(ctx, messageID, userID); err != nil {
		return err
	}
	return s.messageRepo.Star(ctx, &message.StarredMessage{
		UserID:    userID,
		MessageID: messageID,
		StarredAt: time.Now(),
	})
}

// UnstarMessage skips the membership gate: a bookmark outlives membership
// changes and unstar only touches the caller's own row.
func (s *MessageService) UnstarMessage(ctx context.Context, messageID, userID uuid.UUID) error {
	return s.messageRepo.Unstar(ctx, userID, messageID)
}

func (s *MessageService) ListStarred(ctx context.Context, userID uuid.UUID) ([]repository.StarredView, error) {
	return s.messageRepo.ListStarred(ctx, userID)
}

func (s *MessageService) EditMessage(ctx context.Context, messageID, userID uuid.UUID, content string) (message.Message, error) {
	if strings.TrimSpace(content) == "" {
		return message.Message{}, opschat_errors.ErrInvalidInput
	}
	msg, err := s.messageRepo.Edit(ctx, messageID, userID, content)
	if err != nil {
		return message.Message{}, err
	}
	s.publish(ctx, events.NewMessageStatusUpdateEvent(msg.ConversationID, messageID, userID, "edited"))
	return msg, nil
}

func (s *MessageService) DeleteMessage(ctx context.Context, messageID, userID uuid.UUID, deleteForAll bool) error {
	msg, err := s.messageRepo.SoftDelete(ctx, messageID, userID, deleteForAll)
	if err != nil {
		return err
	}
	s.publish(ctx, events.NewMessageStatusUpdateEvent(msg.ConversationID, messageID, userID, "deleted"))
	return nil
}

func (s *MessageService) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	if err := s.access.CanViewConversation(ctx, userID, conversationID); err != nil {
		return 0, err
	}
	count, err := s.messageRepo.MarkConversationRead(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, events.NewConversationReadEvent(conversationID, userID, count))
	return count, nil
}

// SendMessage persists a message, refreshes the conversation's denormalized
// last-message summary and fans the event out to connected members.
func (s *MessageService) SendMessage(ctx context.Context, in SendMessageInput) (message.Message, error) {
	if in.Type == "" {
		in.Type = message.TypeText
	}
	if in.Type == message.TypeText && strings.TrimSpace(in.Content) == "" {
		return message.Message{}, opschat_errors.ErrInvalidInput
	}
	if err := s.access.CanSendMessage(ctx, in.SenderID, in.ConversationID); err != nil {
		return message.Message{}, err
	}
	if s.limiter != nil {
		result, err := s.limiter.AllowMessage(ctx, in.SenderID.String())
		if err == nil && !result.Allowed {
			return message.Message{}, opschat_errors.ErrRateLimited
		}
	}

	now := time.Now()
	msg := message.Message{
		ID:               uuid.New(),
		ConversationID:   in.ConversationID,
		SenderID:         in.SenderID,
		Type:             in.Type,
		Content:          nullString(in.Content),
		MediaURL:         nullString(in.MediaURL),
		ThumbnailURL:     nullString(in.ThumbnailURL),
		FileName:         nullString(in.FileName),
		ReplyToMessageID: in.ReplyToMessageID,
		Status:           message.StatusSent,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.FileSize > 0 {
		msg.FileSize = sql.NullInt64{Int64: in.FileSize, Valid: true}
	}
	if in.DurationSecs > 0 {
		msg.DurationSecs = sql.NullInt32{Int32: in.DurationSecs, Valid: true}
	}
	if in.HasLocation {
		msg.Latitude = sql.NullFloat64{Float64: in.Latitude, Valid: true}
		msg.Longitude = sql.NullFloat64{Float64: in.Longitude, Valid: true}
	}

	if err := s.messageRepo.Create(ctx, &msg); err != nil {
		return message.Message{}, err
	}

	preview := in.Content
	if preview == "" {
		preview = strings.ToLower(in.Type)
	}
	if len(preview) > previewMaxLen {
		preview = preview[:previewMaxLen]
	}
	if err := s.conversationRepo.UpdateLastMessage(ctx, in.ConversationID, preview, in.SenderID, now); err != nil && s.log != nil {
		s.log.Errorf("update last message summary: %v", err)
	}

	senderName := ""
	if sender, err := s.userRepo.GetByID(ctx, in.SenderID); err == nil {
		senderName = sender.DisplayName
	}
	s.publish(ctx, events.NewNewMessageEvent(msg.ConversationID, msg.ID, msg.SenderID, senderName, in.Content, msg.Type, msg.CreatedAt))

	return msg, nil
}

// publish is best-effort: a bus failure must not fail the request, connected
// clients recover on their next REST fetch.
func (s *MessageService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		observability.IncPublishError()
		if s.log != nil {
			s.log.Errorf("publish %s: %v", event.EventType(), err)
		}
	}
}

func (s *MessageService) gateMessage(ctx context.Context, messageID, userID uuid.UUID) (message.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if err := s.access.CanViewConversation(ctx, userID, msg.ConversationID); err != nil {
		return message.Message{}, err
	}
	return msg, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
