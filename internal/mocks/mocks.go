package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"opschat/internal/domain/conversation"
	"opschat/internal/domain/message"
	"opschat/internal/domain/user"
	"opschat/internal/events"
	"opschat/internal/repository"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg *message.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepositoryMock) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	args := m.Called(ctx, id)
	var msg message.Message
	if val := args.Get(0); val != nil {
		msg = val.(message.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListConversationMessages(ctx context.Context, conversationID, readerID uuid.UUID, limit, offset int) ([]repository.MessageView, error) {
	args := m.Called(ctx, conversationID, readerID, limit, offset)
	var views []repository.MessageView
	if val := args.Get(0); val != nil {
		views = val.([]repository.MessageView)
	}
	return views, args.Error(1)
}

func (m *MessageRepositoryMock) Search(ctx context.Context, readerID uuid.UUID, conversationID uuid.NullUUID, query string, limit int) ([]repository.SearchResult, error) {
	args := m.Called(ctx, readerID, conversationID, query, limit)
	var results []repository.SearchResult
	if val := args.Get(0); val != nil {
		results = val.([]repository.SearchResult)
	}
	return results, args.Error(1)
}

func (m *MessageRepositoryMock) AddReaction(ctx context.Context, r *message.Reaction) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MessageRepositoryMock) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, reaction string) error {
	args := m.Called(ctx, messageID, userID, reaction)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Star(ctx context.Context, s *message.StarredMessage) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Unstar(ctx context.Context, userID, messageID uuid.UUID) error {
	args := m.Called(ctx, userID, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ListStarred(ctx context.Context, userID uuid.UUID) ([]repository.StarredView, error) {
	args := m.Called(ctx, userID)
	var views []repository.StarredView
	if val := args.Get(0); val != nil {
		views = val.([]repository.StarredView)
	}
	return views, args.Error(1)
}

func (m *MessageRepositoryMock) Edit(ctx context.Context, messageID, senderID uuid.UUID, content string) (message.Message, error) {
	args := m.Called(ctx, messageID, senderID, content)
	var msg message.Message
	if val := args.Get(0); val != nil {
		msg = val.(message.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID, senderID uuid.UUID, forAll bool) (message.Message, error) {
	args := m.Called(ctx, messageID, senderID, forAll)
	var msg message.Message
	if val := args.Get(0); val != nil {
		msg = val.(message.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, conversationID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateWithMembers(ctx context.Context, c *conversation.Conversation, memberIDs []uuid.UUID) error {
	args := m.Called(ctx, c, memberIDs)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	args := m.Called(ctx, id)
	var c conversation.Conversation
	if val := args.Get(0); val != nil {
		c = val.(conversation.Conversation)
	}
	return c, args.Error(1)
}

func (m *ConversationRepositoryMock) GetDirectConversation(ctx context.Context, userID1, userID2 uuid.UUID) (conversation.Conversation, error) {
	args := m.Called(ctx, userID1, userID2)
	var c conversation.Conversation
	if val := args.Get(0); val != nil {
		c = val.(conversation.Conversation)
	}
	return c, args.Error(1)
}

func (m *ConversationRepositoryMock) ListUserSummaries(ctx context.Context, userID uuid.UUID) ([]repository.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var rows []repository.ConversationSummary
	if val := args.Get(0); val != nil {
		rows = val.([]repository.ConversationSummary)
	}
	return rows, args.Error(1)
}

func (m *ConversationRepositoryMock) IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) GetMemberIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, conversationID)
	var ids []uuid.UUID
	if val := args.Get(0); val != nil {
		ids = val.([]uuid.UUID)
	}
	return ids, args.Error(1)
}

func (m *ConversationRepositoryMock) SetPinned(ctx context.Context, conversationID, userID uuid.UUID, pinned bool) error {
	args := m.Called(ctx, conversationID, userID, pinned)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) UpdateLastMessage(ctx context.Context, conversationID uuid.UUID, preview string, senderID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, conversationID, preview, senderID, at)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Create(ctx context.Context, u *user.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	args := m.Called(ctx, id)
	var u user.User
	if val := args.Get(0); val != nil {
		u = val.(user.User)
	}
	return u, args.Error(1)
}

func (m *UserRepositoryMock) GetByUsername(ctx context.Context, username string) (user.User, error) {
	args := m.Called(ctx, username)
	var u user.User
	if val := args.Get(0); val != nil {
		u = val.(user.User)
	}
	return u, args.Error(1)
}

func (m *UserRepositoryMock) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error) {
	args := m.Called(ctx, ids)
	var users []user.User
	if val := args.Get(0); val != nil {
		users = val.([]user.User)
	}
	return users, args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
