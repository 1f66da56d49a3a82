package websocket

import (
	"context"
	"strings"

	"opschat/internal/repository"

	"github.com/google/uuid"
)

const conversationChannelPrefix = "channel:conversation:"

// ChannelAuthorizer gates channel subscriptions on conversation membership.
type ChannelAuthorizer struct {
	conversationRepo repository.ConversationRepository
}

func NewChannelAuthorizer(conversationRepo repository.ConversationRepository) *ChannelAuthorizer {
	return &ChannelAuthorizer{conversationRepo: conversationRepo}
}

func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID uuid.UUID, channel string) (bool, error) {
	if !strings.HasPrefix(channel, conversationChannelPrefix) {
		return false, nil
	}
	conversationID, err := uuid.Parse(strings.TrimPrefix(channel, conversationChannelPrefix))
	if err != nil {
		return false, nil
	}
	return a.conversationRepo.IsMember(ctx, conversationID, userID)
}
