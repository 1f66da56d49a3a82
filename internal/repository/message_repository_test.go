package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"opschat/internal/domain/message"
	"opschat/internal/domain/user"
	opschat_errors "opschat/pkg/errors"
)

// Full-text search needs postgres; everything else, including the visibility
// rule and the idempotent upserts, runs against in-memory sqlite.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&user.User{},
		&message.Message{},
		&message.Reaction{},
		&message.StarredMessage{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) uuid.UUID {
	t.Helper()
	u := user.User{
		ID:          uuid.New(),
		Username:    name,
		DisplayName: name,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, db.Create(&u).Error)
	return u.ID
}

func seedTextMessage(t *testing.T, repo MessageRepository, conversationID, senderID uuid.UUID, content string, at time.Time) message.Message {
	t.Helper()
	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           message.TypeText,
		Content:        sql.NullString{String: content, Valid: true},
		Status:         message.StatusSent,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	require.NoError(t, repo.Create(context.Background(), &msg))
	return msg
}

func viewIDs(views []MessageView) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.Message.ID)
	}
	return ids
}

func TestListMessagesVisibilityAfterDeletes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	sender := seedUser(t, db, "rivera")
	reader := seedUser(t, db, "chen")
	conversationID := uuid.New()

	base := time.Now().Add(-time.Hour)
	kept := seedTextMessage(t, repo, conversationID, sender, "shift handover at six", base)
	selfDeleted := seedTextMessage(t, repo, conversationID, sender, "wrong room, ignore", base.Add(time.Minute))
	allDeleted := seedTextMessage(t, repo, conversationID, sender, "retracted estimate", base.Add(2*time.Minute))

	_, err := repo.SoftDelete(ctx, selfDeleted.ID, sender, false)
	require.NoError(t, err)
	_, err = repo.SoftDelete(ctx, allDeleted.ID, sender, true)
	require.NoError(t, err)

	// The sender keeps self-deleted messages but loses delete-for-all ones.
	senderViews, err := repo.ListConversationMessages(ctx, conversationID, sender, 50, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{kept.ID, selfDeleted.ID}, viewIDs(senderViews))

	// Other members see neither deleted branch.
	readerViews, err := repo.ListConversationMessages(ctx, conversationID, reader, 50, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{kept.ID}, viewIDs(readerViews))
}

func TestSoftDeleteByNonSenderReportsNotOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	sender := seedUser(t, db, "rivera")
	other := seedUser(t, db, "chen")
	conversationID := uuid.New()
	msg := seedTextMessage(t, repo, conversationID, sender, "still here", time.Now())

	_, err := repo.SoftDelete(ctx, msg.ID, other, true)
	assert.ErrorIs(t, err, opschat_errors.ErrNotOwner)

	views, err := repo.ListConversationMessages(ctx, conversationID, other, 50, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{msg.ID}, viewIDs(views))
}

func TestEditByNonSenderReportsNotOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	sender := seedUser(t, db, "rivera")
	other := seedUser(t, db, "chen")
	msg := seedTextMessage(t, repo, uuid.New(), sender, "original", time.Now())

	_, err := repo.Edit(ctx, msg.ID, other, "tampered")
	assert.ErrorIs(t, err, opschat_errors.ErrNotOwner)

	fresh, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", fresh.Content.String)
}

func TestAddReactionIsIdempotentPerTriple(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	sender := seedUser(t, db, "rivera")
	first := seedUser(t, db, "chen")
	second := seedUser(t, db, "ortiz")
	msg := seedTextMessage(t, repo, uuid.New(), sender, "done", time.Now())

	react := func(userID uuid.UUID, reaction string) error {
		return repo.AddReaction(ctx, &message.Reaction{
			ID:        uuid.New(),
			MessageID: msg.ID,
			UserID:    userID,
			Reaction:  reaction,
			CreatedAt: time.Now(),
		})
	}

	// Repeating an identical triple is a silent no-op.
	require.NoError(t, react(first, "👍"))
	require.NoError(t, react(first, "👍"))

	var count int64
	require.NoError(t, db.Model(&message.Reaction{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// A different reaction from the same user, and the same reaction from a
	// different user, both land.
	require.NoError(t, react(first, "🎉"))
	require.NoError(t, react(second, "👍"))
	require.NoError(t, db.Model(&message.Reaction{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestStarIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	sender := seedUser(t, db, "rivera")
	reader := seedUser(t, db, "chen")
	msg := seedTextMessage(t, repo, uuid.New(), sender, "keep this", time.Now())

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Star(ctx, &message.StarredMessage{
			UserID:    reader,
			MessageID: msg.ID,
			StarredAt: time.Now(),
		}))
	}

	views, err := repo.ListStarred(ctx, reader)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, msg.ID, views[0].Message.ID)
}

func TestListStarredAppliesVisibility(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	sender := seedUser(t, db, "rivera")
	reader := seedUser(t, db, "chen")
	conversationID := uuid.New()

	retracted := seedTextMessage(t, repo, conversationID, sender, "retracted", time.Now())
	own := seedTextMessage(t, repo, conversationID, sender, "note to self", time.Now())

	require.NoError(t, repo.Star(ctx, &message.StarredMessage{UserID: reader, MessageID: retracted.ID, StarredAt: time.Now()}))
	require.NoError(t, repo.Star(ctx, &message.StarredMessage{UserID: sender, MessageID: own.ID, StarredAt: time.Now()}))

	// Delete-for-all empties the other user's bookmark.
	_, err := repo.SoftDelete(ctx, retracted.ID, sender, true)
	require.NoError(t, err)
	views, err := repo.ListStarred(ctx, reader)
	require.NoError(t, err)
	assert.Empty(t, views)

	// A self-delete keeps the sender's own bookmark readable.
	_, err = repo.SoftDelete(ctx, own.ID, sender, false)
	require.NoError(t, err)
	views, err = repo.ListStarred(ctx, sender)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, own.ID, views[0].Message.ID)
}
