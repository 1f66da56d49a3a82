package repository

import (
	"context"
	"errors"
	"time"

	"opschat/internal/domain/message"
	"opschat/internal/domain/user"
	opschat_errors "opschat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// visibilityClause hides soft-deleted messages except a sender's own
// self-deleted ones. Applied identically on every read path.
const visibilityClause = "(deleted_at IS NULL OR (deleted_for_all = FALSE AND sender_id = ?))"

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return opschat_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, opschat_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

// ListConversationMessages returns the newest page first; the service reverses
// it so callers always receive oldest-to-newest within the page.
func (r *PostgresMessageRepository) ListConversationMessages(ctx context.Context, conversationID, readerID uuid.UUID, limit, offset int) ([]MessageView, error) {
	var msgs []message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND "+visibilityClause, conversationID, readerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return r.decorate(ctx, msgs)
}

func (r *PostgresMessageRepository) Search(ctx context.Context, readerID uuid.UUID, conversationID uuid.NullUUID, query string, limit int) ([]SearchResult, error) {
	var msgs []message.Message

	q := r.db.WithContext(ctx).
		Where("content_tsv @@ plainto_tsquery('english', ?)", query).
		Where(visibilityClause, readerID)

	if conversationID.Valid {
		q = q.Where("conversation_id = ?", conversationID.UUID)
	} else {
		memberOf := r.db.Table("conversation_members").
			Select("conversation_id").
			Where("user_id = ?", readerID)
		q = q.Where("conversation_id IN (?)", memberOf)
	}

	err := q.Order("created_at DESC").Limit(limit).Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	names, err := r.userNames(ctx, senderIDs(msgs))
	if err != nil {
		return nil, err
	}

	convInfo := map[uuid.UUID]struct {
		Subject string
		Valid   bool
		Group   bool
	}{}
	if len(msgs) > 0 {
		type convRow struct {
			ID      uuid.UUID
			Type    string
			Subject *string
		}
		var rows []convRow
		ids := make([]uuid.UUID, 0, len(msgs))
		seen := map[uuid.UUID]bool{}
		for _, m := range msgs {
			if !seen[m.ConversationID] {
				seen[m.ConversationID] = true
				ids = append(ids, m.ConversationID)
			}
		}
		if err := r.db.WithContext(ctx).Table("conversations").
			Select("id, type, subject").
			Where("id IN ?", ids).
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			info := convInfo[row.ID]
			info.Group = row.Type == "GROUP"
			if row.Subject != nil {
				info.Subject = *row.Subject
				info.Valid = true
			}
			convInfo[row.ID] = info
		}
	}

	results := make([]SearchResult, 0, len(msgs))
	for _, m := range msgs {
		info := convInfo[m.ConversationID]
		res := SearchResult{
			Message:    m,
			SenderName: names[m.SenderID],
			IsGroup:    info.Group,
		}
		if info.Valid {
			res.ConversationName.String = info.Subject
			res.ConversationName.Valid = true
		}
		results = append(results, res)
	}
	return results, nil
}

// AddReaction is an idempotent upsert: re-adding an identical triple is a
// silent no-op.
func (r *PostgresMessageRepository) AddReaction(ctx context.Context, reaction *message.Reaction) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}, {Name: "reaction"}},
			DoNothing: true,
		}).
		Create(reaction).Error
}

// RemoveReaction is idempotent: removing a non-existent reaction is not an error.
func (r *PostgresMessageRepository) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, reaction string) error {
	return r.db.WithContext(ctx).
		Delete(&message.Reaction{}, "message_id = ? AND user_id = ? AND reaction = ?", messageID, userID, reaction).Error
}

func (r *PostgresMessageRepository) Star(ctx context.Context, s *message.StarredMessage) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
			DoNothing: true,
		}).
		Create(s).Error
}

func (r *PostgresMessageRepository) Unstar(ctx context.Context, userID, messageID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&message.StarredMessage{}, "user_id = ? AND message_id = ?", userID, messageID).Error
}

func (r *PostgresMessageRepository) ListStarred(ctx context.Context, userID uuid.UUID) ([]StarredView, error) {
	var stars []message.StarredMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("starred_at DESC").
		Find(&stars).Error
	if err != nil {
		return nil, err
	}
	if len(stars) == 0 {
		return []StarredView{}, nil
	}

	ids := make([]uuid.UUID, 0, len(stars))
	for _, s := range stars {
		ids = append(ids, s.MessageID)
	}
	var msgs []message.Message
	err = r.db.WithContext(ctx).
		Where("id IN ? AND "+visibilityClause, ids, userID).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]message.Message, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
	}
	names, err := r.userNames(ctx, senderIDs(msgs))
	if err != nil {
		return nil, err
	}

	views := make([]StarredView, 0, len(stars))
	for _, s := range stars {
		m, ok := byID[s.MessageID]
		if !ok {
			continue
		}
		views = append(views, StarredView{
			Message:    m,
			SenderName: names[m.SenderID],
			StarredAt:  s.StarredAt,
		})
	}
	return views, nil
}

// Edit updates content for the original sender of a non-deleted message.
// RowsAffected == 0 maps to ErrNotOwner so missing and non-owned rows are
// indistinguishable to the caller.
func (r *PostgresMessageRepository) Edit(ctx context.Context, messageID, senderID uuid.UUID, content string) (message.Message, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND sender_id = ? AND deleted_at IS NULL", messageID, senderID).
		Updates(map[string]interface{}{
			"content":    content,
			"edited_at":  now,
			"updated_at": now,
		})
	if res.Error != nil {
		return message.Message{}, res.Error
	}
	if res.RowsAffected == 0 {
		return message.Message{}, opschat_errors.ErrNotOwner
	}
	return r.GetByID(ctx, messageID)
}

// SoftDelete marks a message deleted by its sender. forAll hides it from every
// member; otherwise the visibility rule keeps it readable by the sender only.
func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, messageID, senderID uuid.UUID, forAll bool) (message.Message, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"deleted_at": now,
		"updated_at": now,
	}
	if forAll {
		updates["deleted_for_all"] = true
	}
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND sender_id = ? AND deleted_at IS NULL", messageID, senderID).
		Updates(updates)
	if res.Error != nil {
		return message.Message{}, res.Error
	}
	if res.RowsAffected == 0 {
		return message.Message{}, opschat_errors.ErrNotOwner
	}
	return r.GetByID(ctx, messageID)
}

// MarkConversationRead bulk-transitions every message not sent by the reader
// and not already read. The reader's own messages are never touched.
func (r *PostgresMessageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND sender_id != ? AND status != ?", conversationID, readerID, message.StatusRead).
		Updates(map[string]interface{}{
			"status":     message.StatusRead,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// decorate attaches sender names, reaction aggregates and one-level reply
// snapshots to a page of messages.
func (r *PostgresMessageRepository) decorate(ctx context.Context, msgs []message.Message) ([]MessageView, error) {
	if len(msgs) == 0 {
		return []MessageView{}, nil
	}

	msgIDs := make([]uuid.UUID, 0, len(msgs))
	replyIDs := make([]uuid.UUID, 0)
	for _, m := range msgs {
		msgIDs = append(msgIDs, m.ID)
		if m.ReplyToMessageID.Valid {
			replyIDs = append(replyIDs, m.ReplyToMessageID.UUID)
		}
	}

	var reactions []message.Reaction
	if err := r.db.WithContext(ctx).
		Where("message_id IN ?", msgIDs).
		Order("created_at ASC").
		Find(&reactions).Error; err != nil {
		return nil, err
	}

	var parents []message.Message
	if len(replyIDs) > 0 {
		if err := r.db.WithContext(ctx).
			Where("id IN ?", replyIDs).
			Find(&parents).Error; err != nil {
			return nil, err
		}
	}

	userIDs := senderIDs(msgs)
	for _, re := range reactions {
		userIDs = append(userIDs, re.UserID)
	}
	userIDs = append(userIDs, senderIDs(parents)...)
	names, err := r.userNames(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	reactionsByMsg := make(map[uuid.UUID][]ReactionView)
	for _, re := range reactions {
		reactionsByMsg[re.MessageID] = append(reactionsByMsg[re.MessageID], ReactionView{
			UserID:      re.UserID,
			DisplayName: names[re.UserID],
			Reaction:    re.Reaction,
		})
	}

	parentByID := make(map[uuid.UUID]message.Message, len(parents))
	for _, p := range parents {
		parentByID[p.ID] = p
	}

	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		v := MessageView{
			Message:    m,
			SenderName: names[m.SenderID],
			Reactions:  reactionsByMsg[m.ID],
		}
		if m.ReplyToMessageID.Valid {
			if p, ok := parentByID[m.ReplyToMessageID.UUID]; ok {
				v.ReplyTo = &ReplySnapshot{
					ID:          p.ID,
					Content:     p.Content,
					SenderName:  names[p.SenderID],
					MessageType: p.Type,
				}
			}
		}
		views = append(views, v)
	}
	return views, nil
}

func (r *PostgresMessageRepository) userNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
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

func senderIDs(msgs []message.Message) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.SenderID)
	}
	return ids
}
