package services

import (
	"context"

	"opschat/pkg/logger"

	"github.com/google/uuid"
)

type ctxKey string

const userIDKey ctxKey = "auth_user_id"

// WithUserContext stores the authenticated user on the request context and
// mirrors it into the logger's context fields.
func WithUserContext(ctx context.Context, userID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, logger.UserIDKey, userID.String())
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}
