package main

import (
	"log"

	"opschat/config"
	"opschat/internal/domain/conversation"
	"opschat/internal/domain/message"
	"opschat/internal/domain/user"
	"opschat/pkg/database"
)

func main() {
	cfg := config.LoadConfig()
	database.Connect(cfg)

	if err := database.DB.AutoMigrate(
		&user.User{},
		&conversation.Conversation{},
		&conversation.Member{},
		&message.Message{},
		&message.Reaction{},
		&message.StarredMessage{},
	); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}

	if _, err := database.Seed(database.DefaultSeedConfig()); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
