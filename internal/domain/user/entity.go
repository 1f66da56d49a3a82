package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User represents the users table. Only the fields the messaging slice needs
// for sender attribution; account management lives in the platform core.
type User struct {
	ID           uuid.UUID
	Username     string
	DisplayName  string
	AvatarURL    sql.NullString
	PasswordHash string
	CreatedAt    time.Time
}

func (User) TableName() string {
	return "users"
}
