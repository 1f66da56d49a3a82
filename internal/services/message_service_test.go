package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"opschat/internal/domain/message"
	"opschat/internal/domain/user"
	"opschat/internal/events"
	"opschat/internal/mocks"
	"opschat/internal/proxy"
	"opschat/internal/repository"
	opschat_errors "opschat/pkg/errors"
)

type serviceFixture struct {
	messageRepo      *mocks.MessageRepositoryMock
	conversationRepo *mocks.ConversationRepositoryMock
	userRepo         *mocks.UserRepositoryMock
	publisher        *mocks.PublisherMock
	service          *MessageService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		messageRepo:      new(mocks.MessageRepositoryMock),
		conversationRepo: new(mocks.ConversationRepositoryMock),
		userRepo:         new(mocks.UserRepositoryMock),
		publisher:        new(mocks.PublisherMock),
	}
	access := proxy.NewAccessControl(f.conversationRepo)
	f.service = NewMessageService(f.messageRepo, f.conversationRepo, f.userRepo, access, f.publisher, nil, nil)
	return f
}

func textMessage(conversationID, senderID uuid.UUID) message.Message {
	now := time.Now()
	return message.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           message.TypeText,
		Content:        sql.NullString{String: "hello", Valid: true},
		Status:         message.StatusSent,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestListMessagesRequiresMembership(t *testing.T) {
	f := newServiceFixture()
	conversationID := uuid.New()
	userID := uuid.New()

	f.conversationRepo.On("IsMember", mock.Anything, conversationID, userID).Return(false, nil)

	_, err := f.service.ListMessages(context.Background(), conversationID, userID, 0, 0)
	assert.ErrorIs(t, err, opschat_errors.ErrForbidden)
	f.messageRepo.AssertNotCalled(t, "ListConversationMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListMessagesReversesPageToChronological(t *testing.T) {
	f := newServiceFixture()
	conversationID := uuid.New()
	userID := uuid.New()

	older := textMessage(conversationID, userID)
	newer := textMessage(conversationID, userID)
	newer.CreatedAt = older.CreatedAt.Add(time.Minute)

	f.conversationRepo.On("IsMember", mock.Anything, conversationID, userID).Return(true, nil)
	f.messageRepo.On("ListConversationMessages", mock.Anything, conversationID, userID, 50, 0).
		Return([]repository.MessageView{{Message: newer}, {Message: older}}, nil)

	views, err := f.service.ListMessages(context.Background(), conversationID, userID, 0, 0)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, older.ID, views[0].Message.ID)
	assert.Equal(t, newer.ID, views[1].Message.ID)
}

func TestSearchMessagesRejectsBlankQuery(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.SearchMessages(context.Background(), uuid.New(), uuid.NullUUID{}, "   ", 10)
	assert.ErrorIs(t, err, opschat_errors.ErrInvalidInput)
}

func TestSearchMessagesGatesScopedSearch(t *testing.T) {
	f := newServiceFixture()
	conversationID := uuid.New()
	userID := uuid.New()

	f.conversationRepo.On("IsMember", mock.Anything, conversationID, userID).Return(false, nil)

	_, err := f.service.SearchMessages(context.Background(), userID, uuid.NullUUID{UUID: conversationID, Valid: true}, "invoice", 10)
	assert.ErrorIs(t, err, opschat_errors.ErrForbidden)
}

func TestAddReactionPublishesStatusUpdate(t *testing.T) {
	f := newServiceFixture()
	conversationID := uuid.New()
	userID := uuid.New()
	msg := textMessage(conversationID, uuid.New())

	f.messageRepo.On("GetByID", mock.Anything, msg.ID).Return(msg, nil)
	f.conversationRepo.On("IsMember", mock.Anything, conversationID, userID).Return(true, nil)
	f.messageRepo.On("AddReaction", mock.Anything, mock.AnythingOfType("*message.Reaction")).Return(nil)
	f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		update, ok := e.(*events.MessageStatusUpdateEvent)
		return ok && update.Change == "reaction_added" && update.MessageID == msg.ID
	})).Return(nil)

	err := f.service.AddReaction(context.Background(), msg.ID, userID, "👍")
	require.NoError(t, err)
	f.publisher.AssertExpectations(t)
}

func TestAddReactionRejectsBlankReaction(t *testing.T) {
	f := newServiceFixture()

	err := f.service.AddReaction(context.Background(), uuid.New(), uuid.New(), " ")
	assert.ErrorIs(t, err, opschat_errors.ErrInvalidInput)
}

func TestUnstarSkipsMembershipGate(t *testing.T) {
	f := newServiceFixture()
	messageID := uuid.New()
	userID := uuid.New()

	f.messageRepo.On("Unstar", mock.Anything, userID, messageID).Return(nil)

	err := f.service.UnstarMessage(context.Background(), messageID, userID)
	require.NoError(t, err)
	f.conversationRepo.AssertNotCalled(t, "IsMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestEditMessageReportsOwnershipFailure(t *testing.T) {
	f := newServiceFixture()
	messageID := uuid.New()
	userID := uuid.New()

	f.messageRepo.On("Edit", mock.Anything, messageID, userID, "updated").
		Return(nil, opschat_errors.ErrNotOwner)

	_, err := f.service.EditMessage(context.Background(), messageID, userID, "updated")
	assert.ErrorIs(t, err, opschat_errors.ErrNotOwner)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestDeleteMessagePublishesStatusUpdate(t *testing.T) {
	f := newServiceFixture()
	conversationID := uuid.New()
	userID := uuid.New()
	msg := textMessage(conversationID, userID)

	f.messageRepo.On("SoftDelete", mock.Anything, msg.ID, userID, true).Return(msg, nil)
	f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		update, ok := e.(*events.MessageStatusUpdateEvent)
		return ok && update.Change == "deleted"
	})).Return(nil)

	err := f.service.DeleteMessage(context.Background(), msg.ID, userID, true)
	require.NoError(t, err)
	f.publisher.AssertExpectations(t)
}

func TestMarkConversationReadPublishesCount(t *testing.T) {
	f := newServiceFixture()
	conversationID := uuid.New()
	userID := uuid.New()

	f.conversationRepo.On("IsMember", mock.Anything, conversationID, userID).Return(true, nil)
	f.messageRepo.On("MarkConversationRead", mock.Anything, conversationID, userID).Return(int64(3), nil)
	f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		read, ok := e.(*events.ConversationReadEvent)
		return ok && read.Count == 3 && read.ReaderID == userID
	})).Return(nil)

	count, err := f.service.MarkConversationRead(context.Background(), conversationID, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	f.publisher.AssertExpectations(t)
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.SendMessage(context.Background(), SendMessageInput{
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		Content:        "  ",
	})
	assert.ErrorIs(t, err, opschat_errors.ErrInvalidInput)
}

func TestSendMessagePersistsAndPublishes(t *testing.T) {
	f := newServiceFixture()
	conversationID := uuid.New()
	senderID := uuid.New()

	f.conversationRepo.On("IsMember", mock.Anything, conversationID, senderID).Return(true, nil)
	f.messageRepo.On("Create", mock.Anything, mock.AnythingOfType("*message.Message")).Return(nil)
	f.conversationRepo.On("UpdateLastMessage", mock.Anything, conversationID, "on my way", senderID, mock.AnythingOfType("time.Time")).Return(nil)
	f.userRepo.On("GetByID", mock.Anything, senderID).Return(user.User{ID: senderID, DisplayName: "Agent 1"}, nil)
	f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		created, ok := e.(*events.NewMessageEvent)
		return ok && created.Content == "on my way" && created.SenderName == "Agent 1"
	})).Return(nil)

	msg, err := f.service.SendMessage(context.Background(), SendMessageInput{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        "on my way",
	})
	require.NoError(t, err)
	assert.Equal(t, message.TypeText, msg.Type)
	assert.Equal(t, message.StatusSent, msg.Status)
	f.publisher.AssertExpectations(t)
}

func TestSendMessageRequiresMembership(t *testing.T) {
	f := newServiceFixture()
	conversationID := uuid.New()
	senderID := uuid.New()

	f.conversationRepo.On("IsMember", mock.Anything, conversationID, senderID).Return(false, nil)

	_, err := f.service.SendMessage(context.Background(), SendMessageInput{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        "hi",
	})
	assert.ErrorIs(t, err, opschat_errors.ErrForbidden)
	f.messageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
