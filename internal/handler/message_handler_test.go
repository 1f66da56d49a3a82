package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"opschat/internal/domain/message"
	"opschat/internal/mocks"
	"opschat/internal/proxy"
	"opschat/internal/repository"
	"opschat/internal/services"
	opschat_errors "opschat/pkg/errors"
)

type handlerFixture struct {
	messageRepo      *mocks.MessageRepositoryMock
	conversationRepo *mocks.ConversationRepositoryMock
	userRepo         *mocks.UserRepositoryMock
	publisher        *mocks.PublisherMock
	router           *gin.Engine
	userID           uuid.UUID
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		messageRepo:      new(mocks.MessageRepositoryMock),
		conversationRepo: new(mocks.ConversationRepositoryMock),
		userRepo:         new(mocks.UserRepositoryMock),
		publisher:        new(mocks.PublisherMock),
		userID:           uuid.New(),
	}

	access := proxy.NewAccessControl(f.conversationRepo)
	service := services.NewMessageService(f.messageRepo, f.conversationRepo, f.userRepo, access, f.publisher, nil, nil)

	f.router = gin.New()
	f.router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(services.WithUserContext(c.Request.Context(), f.userID))
		c.Next()
	})
	NewMessageHandler(service, nil).Register(f.router.Group("/api/messages"))
	return f
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestListMessagesRejectsInvalidConversationID(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/messages/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMessagesForbiddenForNonMember(t *testing.T) {
	f := newHandlerFixture(t)
	conversationID := uuid.New()

	f.conversationRepo.On("IsMember", mock.Anything, conversationID, f.userID).Return(false, nil)

	rec := f.do(t, http.MethodGet, "/api/messages/"+conversationID.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListMessagesReturnsEnvelope(t *testing.T) {
	f := newHandlerFixture(t)
	conversationID := uuid.New()
	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       f.userID,
		Type:           message.TypeText,
		Status:         message.StatusSent,
	}

	f.conversationRepo.On("IsMember", mock.Anything, conversationID, f.userID).Return(true, nil)
	f.messageRepo.On("ListConversationMessages", mock.Anything, conversationID, f.userID, 50, 0).
		Return([]repository.MessageView{{Message: msg, SenderName: "Agent 1"}}, nil)

	rec := f.do(t, http.MethodGet, "/api/messages/"+conversationID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Messages []struct {
				ID         uuid.UUID `json:"id"`
				SenderName string    `json:"sender_name"`
			} `json:"messages"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data.Messages, 1)
	assert.Equal(t, msg.ID, body.Data.Messages[0].ID)
	assert.Equal(t, "Agent 1", body.Data.Messages[0].SenderName)
}

func TestSearchRequiresQuery(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/messages/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddReactionValidatesBody(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/messages/"+uuid.NewString()+"/reactions", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditMessageMapsOwnershipToForbidden(t *testing.T) {
	f := newHandlerFixture(t)
	messageID := uuid.New()

	f.messageRepo.On("Edit", mock.Anything, messageID, f.userID, "new text").
		Return(nil, opschat_errors.ErrNotOwner)

	rec := f.do(t, http.MethodPut, "/api/messages/"+messageID.String(), map[string]string{"content": "new text"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteMessageDefaultsToDeleteForSelf(t *testing.T) {
	f := newHandlerFixture(t)
	messageID := uuid.New()
	msg := message.Message{ID: messageID, ConversationID: uuid.New(), SenderID: f.userID}

	f.messageRepo.On("SoftDelete", mock.Anything, messageID, f.userID, false).Return(msg, nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	rec := f.do(t, http.MethodDelete, "/api/messages/"+messageID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	f.messageRepo.AssertExpectations(t)
}

func TestMarkReadReturnsCount(t *testing.T) {
	f := newHandlerFixture(t)
	conversationID := uuid.New()

	f.conversationRepo.On("IsMember", mock.Anything, conversationID, f.userID).Return(true, nil)
	f.messageRepo.On("MarkConversationRead", mock.Anything, conversationID, f.userID).Return(int64(2), nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	rec := f.do(t, http.MethodPut, "/api/messages/"+conversationID.String()+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			MarkedRead int64 `json:"marked_read"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.Data.MarkedRead)
}
