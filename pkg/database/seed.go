package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"opschat/internal/domain/conversation"
	"opschat/internal/domain/message"
	"opschat/internal/domain/user"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SeedConfig controls what demo data gets created.
type SeedConfig struct {
	AdminUsername    string
	AdminDisplayName string
	AdminPassword    string
	TeamUserCount    int
}

func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		AdminUsername:    "ops-admin",
		AdminDisplayName: "Ops Admin",
		AdminPassword:    "Admin@123!",
		TeamUserCount:    4,
	}
}

type SeedResult struct {
	Users         []*user.User
	Conversations []*conversation.Conversation
	Messages      []*message.Message
}

// Seed populates a development database with users, one direct conversation
// and one group, plus a few messages so the list and search endpoints have
// something to return.
func Seed(cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}

	result := &SeedResult{}
	log.Println("Starting database seeding...")

	admin, err := seedUser(cfg.AdminUsername, cfg.AdminDisplayName, cfg.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to seed admin user: %w", err)
	}
	result.Users = append(result.Users, admin)

	for i := 1; i <= cfg.TeamUserCount; i++ {
		u, err := seedUser(
			fmt.Sprintf("agent%d", i),
			fmt.Sprintf("Agent %d", i),
			cfg.AdminPassword,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to seed team user: %w", err)
		}
		result.Users = append(result.Users, u)
	}

	if len(result.Users) >= 2 {
		direct, err := seedConversation(conversation.TypeDirect, "", admin.ID, result.Users[:2])
		if err != nil {
			return nil, err
		}
		result.Conversations = append(result.Conversations, direct)

		msgs, err := seedMessages(direct, result.Users[:2])
		if err != nil {
			return nil, err
		}
		result.Messages = append(result.Messages, msgs...)
	}

	group, err := seedConversation(conversation.TypeGroup, "Dispatch Team", admin.ID, result.Users)
	if err != nil {
		return nil, err
	}
	result.Conversations = append(result.Conversations, group)

	msgs, err := seedMessages(group, result.Users)
	if err != nil {
		return nil, err
	}
	result.Messages = append(result.Messages, msgs...)

	log.Printf("Seeding complete: %d users, %d conversations, %d messages",
		len(result.Users), len(result.Conversations), len(result.Messages))
	return result, nil
}

func seedUser(username, displayName, password string) (*user.User, error) {
	var existing user.User
	if err := DB.Where("username = ?", username).First(&existing).Error; err == nil {
		return &existing, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := user.User{
		ID:           uuid.New(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := DB.Create(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func seedConversation(convType, subject string, creatorID uuid.UUID, members []*user.User) (*conversation.Conversation, error) {
	now := time.Now()
	c := conversation.Conversation{
		ID:        uuid.New(),
		Type:      convType,
		CreatedBy: uuid.NullUUID{UUID: creatorID, Valid: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if subject != "" {
		c.Subject = sql.NullString{String: subject, Valid: true}
	}
	if err := DB.Create(&c).Error; err != nil {
		return nil, fmt.Errorf("failed to seed conversation: %w", err)
	}

	for _, m := range members {
		role := "MEMBER"
		if convType == conversation.TypeGroup && m.ID == creatorID {
			role = "OWNER"
		}
		member := conversation.Member{
			ConversationID: c.ID,
			UserID:         m.ID,
			Role:           role,
			JoinedAt:       now,
		}
		if err := DB.Create(&member).Error; err != nil {
			return nil, fmt.Errorf("failed to seed conversation member: %w", err)
		}
	}
	return &c, nil
}

func seedMessages(c *conversation.Conversation, members []*user.User) ([]*message.Message, error) {
	samples := []string{
		"Morning, the overnight queue is clear.",
		"Customer on ticket 4821 asked for a callback before noon.",
		"Done, callback scheduled. Marking it resolved.",
	}

	var out []*message.Message
	base := time.Now().Add(-time.Hour)
	for i, content := range samples {
		sender := members[i%len(members)]
		at := base.Add(time.Duration(i) * time.Minute)
		m := message.Message{
			ID:             uuid.New(),
			ConversationID: c.ID,
			SenderID:       sender.ID,
			Type:           message.TypeText,
			Content:        sql.NullString{String: content, Valid: true},
			Status:         message.StatusSent,
			CreatedAt:      at,
			UpdatedAt:      at,
		}
		if err := DB.Create(&m).Error; err != nil {
			return nil, fmt.Errorf("failed to seed message: %w", err)
		}
		out = append(out, &m)
	}

	if len(out) > 0 {
		last := out[len(out)-1]
		preview := ""
		if last.Content.Valid {
			preview = last.Content.String
		}
		err := DB.Model(&conversation.Conversation{}).
			Where("id = ?", c.ID).
			Updates(map[string]any{
				"last_message_preview": preview,
				"last_message_at":      last.CreatedAt,
				"last_sender_id":       last.SenderID,
			}).Error
		if err != nil {
			return nil, fmt.Errorf("failed to update conversation summary: %w", err)
		}
	}
	return out, nil
}
