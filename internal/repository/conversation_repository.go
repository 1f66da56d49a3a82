package repository

import (
	"context"
	"errors"
	"time"

	"opschat/internal/domain/conversation"
	"opschat/internal/domain/user"
	opschat_errors "opschat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) CreateWithMembers(ctx context.Context, c *conversation.Conversation, memberIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return opschat_errors.ErrAlreadyExists
			}
			return err
		}
		now := time.Now()
		for _, id := range memberIDs {
			role := "MEMBER"
			if c.CreatedBy.Valid && c.CreatedBy.UUID == id && c.Type == conversation.TypeGroup {
				role = "OWNER"
			}
			m := conversation.Member{
				ConversationID: c.ID,
				UserID:         id,
				Role:           role,
				JoinedAt:       now,
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, opschat_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetDirectConversation(ctx context.Context, userID1, userID2 uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation

	subQuery := r.db.Model(&conversation.Member{}).
		Select("conversation_id").
		Where("user_id IN (?, ?)", userID1, userID2).
		Group("conversation_id").
		Having("COUNT(DISTINCT user_id) = 2")

	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("id IN (?) AND type = ?", subQuery, conversation.TypeDirect).
		First(&c).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, opschat_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) ListUserSummaries(ctx context.Context, userID uuid.UUID) ([]ConversationSummary, error) {
	var own []conversation.Member
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&own).Error
	if err != nil {
		return nil, err
	}
	if len(own) == 0 {
		return []ConversationSummary{}, nil
	}

	ids := make([]uuid.UUID, 0, len(own))
	pinnedBy := make(map[uuid.UUID]bool, len(own))
	for _, m := range own {
		ids = append(ids, m.ConversationID)
		pinnedBy[m.ConversationID] = m.PinnedAt.Valid
	}

	var convs []conversation.Conversation
	err = r.db.WithContext(ctx).
		Preload("Members").
		Where("id IN ?", ids).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}

	userIDs := make([]uuid.UUID, 0)
	for _, c := range convs {
		for _, m := range c.Members {
			userIDs = append(userIDs, m.UserID)
		}
	}
	names, err := r.displayNames(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		members := make([]MemberView, 0, len(c.Members))
		for _, m := range c.Members {
			members = append(members, MemberView{
				UserID:      m.UserID,
				DisplayName: names[m.UserID],
				Role:        m.Role,
			})
		}
		summaries = append(summaries, ConversationSummary{
			Conversation: c,
			Pinned:       pinnedBy[c.ID],
			Members:      members,
		})
	}
	return summaries, nil
}

func (r *PostgresConversationRepository) IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Member{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresConversationRepository) GetMemberIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	var members []conversation.Member
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (r *PostgresConversationRepository) SetPinned(ctx context.Context, conversationID, userID uuid.UUID, pinned bool) error {
	var value interface{}
	if pinned {
		value = time.Now()
	}
	res := r.db.WithContext(ctx).
		Model(&conversation.Member{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("pinned_at", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return opschat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) UpdateLastMessage(ctx context.Context, conversationID uuid.UUID, preview string, senderID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_preview": preview,
			"last_message_at":      at,
			"last_sender_id":       senderID,
			"updated_at":           at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return opschat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) displayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string)
	if len(ids) == 0 {
		return names, nil
	}
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	var users []user.User
	if err := r.db.WithContext(ctx).Where("id IN ?", unique).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}
	return names, nil
}
