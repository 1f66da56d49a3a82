package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Message types
const (
	TypeText     = "TEXT"
	TypeImage    = "IMAGE"
	TypeVideo    = "VIDEO"
	TypeAudio    = "AUDIO"
	TypeFile     = "FILE"
	TypeLocation = "LOCATION"
)

// Delivery statuses
const (
	StatusSent      = "SENT"
	StatusDelivered = "DELIVERED"
	StatusRead      = "READ"
)

// Message represents the messages table.
//
// Visibility invariant: a message is visible to a reader iff
// deleted_at IS NULL OR (deleted_for_all = FALSE AND sender_id = reader).
// Every read path (history, search, starred) applies the same rule.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Type           string
	Content        sql.NullString

	// Media fields, populated for IMAGE/VIDEO/AUDIO/FILE types
	MediaURL     sql.NullString
	ThumbnailURL sql.NullString
	FileName     sql.NullString
	FileSize     sql.NullInt64
	DurationSecs sql.NullInt32

	// Location fields, populated for LOCATION type
	Latitude  sql.NullFloat64
	Longitude sql.NullFloat64

	// One level of quoting only, never a reply chain
	ReplyToMessageID uuid.NullUUID

	Status        string
	EditedAt      sql.NullTime
	DeletedAt     sql.NullTime
	DeletedForAll bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Reaction represents message_reactions. A user may apply the same reaction
// only once per message (unique message_id+user_id+reaction), but may apply
// multiple distinct reactions.
type Reaction struct {
	ID        uuid.UUID
	MessageID uuid.UUID `gorm:"uniqueIndex:idx_reactions_message_user_reaction"`
	UserID    uuid.UUID `gorm:"uniqueIndex:idx_reactions_message_user_reaction"`
	Reaction  string    `gorm:"uniqueIndex:idx_reactions_message_user_reaction"`
	CreatedAt time.Time
}

// StarredMessage represents starred_messages, a per-user bookmark independent
// of conversation membership changes.
type StarredMessage struct {
	UserID    uuid.UUID `gorm:"primaryKey"`
	MessageID uuid.UUID `gorm:"primaryKey"`
	StarredAt time.Time
}

func (Message) TableName() string {
	return "messages"
}

func (Reaction) TableName() string {
	return "message_reactions"
}

func (StarredMessage) TableName() string {
	return "starred_messages"
}
