package httpdto

import (
	"time"

	"opschat/internal/domain/message"
	"opschat/internal/repository"

	"github.com/google/uuid"
)

// MessageDTO is the single canonical wire shape for a message. All
// normalization of nullable storage fields happens here, at the API boundary,
// so nothing downstream needs fallback chains.
type MessageDTO struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	SenderName     string     `json:"sender_name,omitempty"`
	MessageType    string     `json:"message_type"`
	Content        string     `json:"content"`
	MediaURL       string     `json:"media_url,omitempty"`
	ThumbnailURL   string     `json:"thumbnail_url,omitempty"`
	FileName       string     `json:"file_name,omitempty"`
	FileSize       int64      `json:"file_size,omitempty"`
	DurationSecs   int32      `json:"duration_secs,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	Status         string     `json:"status"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	Deleted        bool       `json:"deleted"`
	CreatedAt      time.Time  `json:"created_at"`

	Reactions []repository.ReactionView `json:"reactions"`
	ReplyTo   *ReplyDTO                 `json:"reply_to,omitempty"`
}

// ReplyDTO is the one-level parent snapshot, never a chain.
type ReplyDTO struct {
	ID          uuid.UUID `json:"id"`
	Content     string    `json:"content"`
	SenderName  string    `json:"sender_name"`
	MessageType string    `json:"message_type"`
}

// SearchResultDTO annotates a match with conversation context for global
// search disambiguation.
type SearchResultDTO struct {
	MessageDTO
	ConversationName string `json:"conversation_name,omitempty"`
	IsGroup          bool   `json:"is_group"`
}

// StarredDTO is a bookmark row.
type StarredDTO struct {
	MessageDTO
	StarredAt time.Time `json:"starred_at"`
}

type AddReactionRequest struct {
	Reaction string `json:"reaction"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type DeleteMessageRequest struct {
	DeleteForAll bool `json:"deleteForAll"`
}

// FromMessage normalizes a storage row into the canonical shape.
func FromMessage(m message.Message) MessageDTO {
	dto := MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		MessageType:    m.Type,
		Status:         m.Status,
		Deleted:        m.DeletedAt.Valid,
		CreatedAt:      m.CreatedAt,
		Reactions:      []repository.ReactionView{},
	}
	if m.Content.Valid {
		dto.Content = m.Content.String
	}
	if m.MediaURL.Valid {
		dto.MediaURL = m.MediaURL.String
	}
	if m.ThumbnailURL.Valid {
		dto.ThumbnailURL = m.ThumbnailURL.String
	}
	if m.FileName.Valid {
		dto.FileName = m.FileName.String
	}
	if m.FileSize.Valid {
		dto.FileSize = m.FileSize.Int64
	}
	if m.DurationSecs.Valid {
		dto.DurationSecs = m.DurationSecs.Int32
	}
	if m.Latitude.Valid {
		lat := m.Latitude.Float64
		dto.Latitude = &lat
	}
	if m.Longitude.Valid {
		lng := m.Longitude.Float64
		dto.Longitude = &lng
	}
	if m.EditedAt.Valid {
		at := m.EditedAt.Time
		dto.EditedAt = &at
	}
	return dto
}

// FromMessageView adds the read-path decorations on top of FromMessage.
func FromMessageView(v repository.MessageView) MessageDTO {
	dto := FromMessage(v.Message)
	dto.SenderName = v.SenderName
	if v.Reactions != nil {
		dto.Reactions = v.Reactions
	}
	if v.ReplyTo != nil {
		reply := &ReplyDTO{
			ID:          v.ReplyTo.ID,
			SenderName:  v.ReplyTo.SenderName,
			MessageType: v.ReplyTo.MessageType,
		}
		if v.ReplyTo.Content.Valid {
			reply.Content = v.ReplyTo.Content.String
		}
		dto.ReplyTo = reply
	}
	return dto
}

func FromSearchResult(r repository.SearchResult) SearchResultDTO {
	dto := SearchResultDTO{
		MessageDTO: FromMessage(r.Message),
		IsGroup:    r.IsGroup,
	}
	dto.SenderName = r.SenderName
	if r.ConversationName.Valid {
		dto.ConversationName = r.ConversationName.String
	}
	return dto
}

func FromStarred(v repository.StarredView) StarredDTO {
	dto := StarredDTO{
		MessageDTO: FromMessage(v.Message),
		StarredAt:  v.StarredAt,
	}
	dto.SenderName = v.SenderName
	return dto
}
