package conversation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	TypeDirect = "DIRECT"
	TypeGroup  = "GROUP"
)

// Conversation represents the conversations table
type Conversation struct {
	ID        uuid.UUID
	Type      string
	Subject   sql.NullString // nil for DIRECT; display name derived from the other member
	AvatarURL sql.NullString
	CreatedBy uuid.NullUUID
	CreatedAt time.Time
	UpdatedAt time.Time

	// Denormalized last-message summary for the conversation list
	LastMessagePreview sql.NullString
	LastMessageAt      sql.NullTime
	LastSenderID       uuid.NullUUID

	// Relationships
	Members []Member
}

// Member represents the conversation_members table
type Member struct {
	ConversationID uuid.UUID `gorm:"primaryKey"`
	UserID         uuid.UUID `gorm:"primaryKey"`
	Role           string
	JoinedAt       time.Time
	PinnedAt       sql.NullTime
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Member) TableName() string {
	return "conversation_members"
}
