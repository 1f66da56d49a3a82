package handler

import (
	"errors"
	"net/http"
	"strconv"

	"opschat/internal/services"
	"opschat/internal/transport/httpdto"
	opschat_errors "opschat/pkg/errors"
	"opschat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	service *services.MessageService
	log     *logger.Logger
}

func NewMessageHandler(service *services.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{service: service, log: log}
}

// Register mounts the message routes. Path params share the :id name because
// the history/read routes key on a conversation while the rest key on a
// message.
func (h *MessageHandler) Register(g *gin.RouterGroup) {
	g.GET("/search", h.Search)
	g.GET("/search/:id", h.Search)
	g.GET("/starred/all", h.ListStarred)
	g.GET("/:id", h.List)
	g.POST("/:id/reactions", h.AddReaction)
	g.DELETE("/:id/reactions/:reaction", h.RemoveReaction)
	g.POST("/:id/star", h.Star)
	g.DELETE("/:id/star", h.Unstar)
	g.PUT("/:id/read", h.MarkRead)
	g.PUT("/:id", h.Edit)
	g.DELETE("/:id", h.Delete)
}

func (h *MessageHandler) List(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "VALIDATION_ERROR"))
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	limit := parseIntDefault(c.Query("limit"), 0)
	offset := parseIntDefault(c.Query("offset"), 0)

	views, err := h.service.ListMessages(c.Request.Context(), conversationID, userID, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	messages := make([]httpdto.MessageDTO, 0, len(views))
	for _, v := range views {
		messages = append(messages, httpdto.FromMessageView(v))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"messages": messages}))
}

func (h *MessageHandler) Search(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var conversationID uuid.NullUUID
	if raw := c.Param("id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "VALIDATION_ERROR"))
			return
		}
		conversationID = uuid.NullUUID{UUID: parsed, Valid: true}
	}

	results, err := h.service.SearchMessages(c.Request.Context(), userID, conversationID, c.Query("query"), parseIntDefault(c.Query("limit"), 0))
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]httpdto.SearchResultDTO, 0, len(results))
	for _, r := range results {
		out = append(out, httpdto.FromSearchResult(r))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"results": out}))
}

func (h *MessageHandler) AddReaction(c *gin.Context) {
	messageID, userID, ok := h.messageAndUser(c)
	if !ok {
		return
	}
	var req httpdto.AddReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Reaction == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("reaction is required", "VALIDATION_ERROR"))
		return
	}
	if err := h.service.AddReaction(c.Request.Context(), messageID, userID, req.Reaction); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	messageID, userID, ok := h.messageAndUser(c)
	if !ok {
		return
	}
	if err := h.service.RemoveReaction(c.Request.Context(), messageID, userID, c.Param("reaction")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *MessageHandler) Star(c *gin.Context) {
	messageID, userID, ok := h.messageAndUser(c)
	if !ok {
		return
	}
	if err := h.service.StarMessage(c.Request.Context(), messageID, userID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *MessageHandler) Unstar(c *gin.Context) {
	messageID, userID, ok := h.messageAndUser(c)
	if !ok {
		return
	}
	if err := h.service.UnstarMessage(c.Request.Context(), messageID, userID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *MessageHandler) ListStarred(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	views, err := h.service.ListStarred(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	starred := make([]httpdto.StarredDTO, 0, len(views))
	for _, v := range views {
		starred = append(starred, httpdto.FromStarred(v))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"starred": starred}))
}

func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, userID, ok := h.messageAndUser(c)
	if !ok {
		return
	}
	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("content is required", "VALIDATION_ERROR"))
		return
	}
	msg, err := h.service.EditMessage(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": httpdto.FromMessage(msg)}))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, userID, ok := h.messageAndUser(c)
	if !ok {
		return
	}
	var req httpdto.DeleteMessageRequest
	_ = c.ShouldBindJSON(&req) // body optional; absent means delete-for-self
	if err := h.service.DeleteMessage(c.Request.Context(), messageID, userID, req.DeleteForAll); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "VALIDATION_ERROR"))
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	count, err := h.service.MarkConversationRead(c.Request.Context(), conversationID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"marked_read": count}))
}

func (h *MessageHandler) messageAndUser(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "VALIDATION_ERROR"))
		return uuid.Nil, uuid.Nil, false
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return uuid.Nil, uuid.Nil, false
	}
	return messageID, userID, true
}

// respondError maps service errors onto the wire contract. Not-found on a
// mutation is reported as forbidden so callers cannot probe for existence.
func (h *MessageHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, opschat_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "VALIDATION_ERROR"))
	case errors.Is(err, opschat_errors.ErrForbidden),
		errors.Is(err, opschat_errors.ErrNotOwner),
		errors.Is(err, opschat_errors.ErrNotFound):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse(err.Error(), "FORBIDDEN"))
	case errors.Is(err, opschat_errors.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(err.Error(), "RATE_LIMITED"))
	default:
		if h.log != nil {
			h.log.Errorf("message handler: %v", err)
		}
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal server error", "INTERNAL_ERROR"))
	}
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
