package handler

import (
	"errors"
	"net/http"

	"opschat/internal/services"
	"opschat/internal/transport/httpdto"
	opschat_errors "opschat/pkg/errors"
	"opschat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	service *services.ConversationService
	log     *logger.Logger
}

func NewConversationHandler(service *services.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{service: service, log: log}
}

func (h *ConversationHandler) Register(g *gin.RouterGroup) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.PUT("/:id/pin", h.Pin)
	g.DELETE("/:id/pin", h.Unpin)
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	summaries, err := h.service.ListSummaries(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"conversations": summaries}))
}

func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request body", "VALIDATION_ERROR"))
		return
	}

	memberIDs := make([]uuid.UUID, 0, len(req.MemberIDs))
	for _, raw := range req.MemberIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid member id", "VALIDATION_ERROR"))
			return
		}
		memberIDs = append(memberIDs, id)
	}

	switch req.Type {
	case "DIRECT":
		if len(memberIDs) != 1 {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("direct conversation needs exactly one other member", "VALIDATION_ERROR"))
			return
		}
		conv, err := h.service.StartDirect(c.Request.Context(), userID, memberIDs[0])
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(gin.H{"conversation_id": conv.ID}))
	case "GROUP":
		conv, err := h.service.CreateGroup(c.Request.Context(), userID, req.Subject, memberIDs)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(gin.H{"conversation_id": conv.ID}))
	default:
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("type must be DIRECT or GROUP", "VALIDATION_ERROR"))
	}
}

func (h *ConversationHandler) Pin(c *gin.Context) {
	h.setPinned(c, true)
}

func (h *ConversationHandler) Unpin(c *gin.Context) {
	h.setPinned(c, false)
}

func (h *ConversationHandler) setPinned(c *gin.Context, pinned bool) {
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
	if err := h.service.SetPinned(c.Request.Context(), conversationID, userID, pinned); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *ConversationHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, opschat_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "VALIDATION_ERROR"))
	case errors.Is(err, opschat_errors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse(err.Error(), "FORBIDDEN"))
	default:
		if h.log != nil {
			h.log.Errorf("conversation handler: %v", err)
		}
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal server error", "INTERNAL_ERROR"))
	}
}
