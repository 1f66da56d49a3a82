package proxy

import (
	"context"

	"opschat/internal/repository"
	opschat_errors "opschat/pkg/errors"

	"github.com/google/uuid"
)

// AccessControl is the membership gate: a user must be a member of a
// conversation before reading or acting on it.
type AccessControl struct {
	conversationRepo repository.ConversationRepository
}

func NewAccessControl(conversationRepo repository.ConversationRepository) *AccessControl {
	return &AccessControl{conversationRepo: conversationRepo}
}

func (a *AccessControl) CanViewConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	return a.ensureMember(ctx, conversationID, userID)
}

func (a *AccessControl) CanSendMessage(ctx context.Context, userID, conversationID uuid.UUID) error {
	return a.ensureMember(ctx, conversationID, userID)
}

func (a *AccessControl) ensureMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	if a.conversationRepo == nil {
		return opschat_errors.ErrForbidden
	}
	ok, err := a.conversationRepo.IsMember(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return opschat_errors.ErrForbidden
	}
	return nil
}
