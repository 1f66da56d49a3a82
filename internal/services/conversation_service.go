package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"opschat/internal/domain/conversation"
	"opschat/internal/repository"
	opschat_errors "opschat/pkg/errors"

	"github.com/google/uuid"
)

// Summary is the canonical conversation-list shape handed to clients. Direct
// conversations get their display name derived from the other member.
type Summary struct {
	ID                 uuid.UUID               `json:"id"`
	Name               string                  `json:"name"`
	IsGroup            bool                    `json:"is_group"`
	AvatarURL          string                  `json:"avatar_url,omitempty"`
	Pinned             bool                    `json:"pinned"`
	LastMessagePreview string                  `json:"last_message_preview,omitempty"`
	LastMessageAt      *time.Time              `json:"last_message_at,omitempty"`
	Members            []repository.MemberView `json:"members"`
}

type ConversationService struct {
	conversationRepo repository.ConversationRepository
}

func NewConversationService(conversationRepo repository.ConversationRepository) *ConversationService {
	return &ConversationService{conversationRepo: conversationRepo}
}

func (s *ConversationService) ListSummaries(ctx context.Context, userID uuid.UUID) ([]Summary, error) {
	rows, err := s.conversationRepo.ListUserSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, toSummary(row, userID))
	}
	return summaries, nil
}

func (s *ConversationService) CreateGroup(ctx context.Context, creatorID uuid.UUID, subject string, memberIDs []uuid.UUID) (conversation.Conversation, error) {
	if strings.TrimSpace(subject) == "" || len(memberIDs) == 0 {
		return conversation.Conversation{}, opschat_errors.ErrInvalidInput
	}
	now := time.Now()
	c := conversation.Conversation{
		ID:        uuid.New(),
		Type:      conversation.TypeGroup,
		Subject:   sql.NullString{String: subject, Valid: true},
		CreatedBy: uuid.NullUUID{UUID: creatorID, Valid: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	ids := append([]uuid.UUID{creatorID}, memberIDs...)
	if err := s.conversationRepo.CreateWithMembers(ctx, &c, dedupe(ids)); err != nil {
		return conversation.Conversation{}, err
	}
	return c, nil
}

// StartDirect returns the existing 1:1 conversation between the two users or
// creates it, mirroring "created on first direct message".
func (s *ConversationService) StartDirect(ctx context.Context, userID, otherID uuid.UUID) (conversation.Conversation, error) {
	if userID == otherID {
		return conversation.Conversation{}, opschat_errors.ErrInvalidInput
	}
	existing, err := s.conversationRepo.GetDirectConversation(ctx, userID, otherID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, opschat_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}

	now := time.Now()
	c := conversation.Conversation{
		ID:        uuid.New(),
		Type:      conversation.TypeDirect,
		CreatedBy: uuid.NullUUID{UUID: userID, Valid: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversationRepo.CreateWithMembers(ctx, &c, []uuid.UUID{userID, otherID}); err != nil {
		return conversation.Conversation{}, err
	}
	return c, nil
}

// SetPinned toggles the caller's own pin. A missing member row means the
// caller is not in the conversation.
func (s *ConversationService) SetPinned(ctx context.Context, conversationID, userID uuid.UUID, pinned bool) error {
	err := s.conversationRepo.SetPinned(ctx, conversationID, userID, pinned)
	if errors.Is(err, opschat_errors.ErrNotFound) {
		return opschat_errors.ErrForbidden
	}
	return err
}

func toSummary(row repository.ConversationSummary, viewerID uuid.UUID) Summary {
	c := row.Conversation
	s := Summary{
		ID:      c.ID,
		IsGroup: c.Type == conversation.TypeGroup,
		Pinned:  row.Pinned,
		Members: row.Members,
	}
	if c.Subject.Valid {
		s.Name = c.Subject.String
	} else {
		for _, m := range row.Members {
			if m.UserID != viewerID {
				s.Name = m.DisplayName
				break
			}
		}
	}
	if c.AvatarURL.Valid {
		s.AvatarURL = c.AvatarURL.String
	}
	if c.LastMessagePreview.Valid {
		s.LastMessagePreview = c.LastMessagePreview.String
	}
	if c.LastMessageAt.Valid {
		at := c.LastMessageAt.Time
		s.LastMessageAt = &at
	}
	return s
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
