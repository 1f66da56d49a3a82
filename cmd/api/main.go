package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"opschat/config"
	"opschat/internal/domain/conversation"
	"opschat/internal/domain/message"
	"opschat/internal/domain/user"
	"opschat/internal/events"
	"opschat/internal/handler"
	"opschat/internal/middleware"
	"opschat/internal/observability"
	"opschat/internal/proxy"
	opschat_redis "opschat/internal/redis"
	"opschat/internal/repository"
	"opschat/internal/services"
	"opschat/internal/websocket"
	"opschat/pkg/database"
	"opschat/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == "release" || cfg.AppMode == "production" {
		mode = logger.ProductionMode
		gin.SetMode(gin.ReleaseMode)
	}
	appLogger := logger.New(mode)
	logger.SetGlobalLogger(appLogger)

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
	if err := database.ApplyRawMigrations("migrations"); err != nil {
		log.Fatalf("Failed to apply raw migrations: %v", err)
	}

	redisClient := opschat_redis.NewClient(opschat_redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})

	bus := events.NewRedisEventBus(redisClient, events.NewRoomChannelResolver())
	if err := bus.Start(); err != nil {
		log.Fatalf("Failed to start event bus: %v", err)
	}
	defer bus.Stop()

	messageRepo := repository.NewMessageRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.DB)
	userRepo := repository.NewUserRepository(database.DB)

	access := proxy.NewAccessControl(conversationRepo)
	limiter := opschat_redis.NewRateLimiter(redisClient, opschat_redis.RateLimitConfig{
		MessageLimit:  cfg.MsgRateLimit,
		MessageWindow: 60 * time.Second,
	})

	authService := services.NewAuthService(cfg.JWTSecret, cfg.JWTExpiryMin)
	messageService := services.NewMessageService(messageRepo, conversationRepo, userRepo, access, bus, limiter, appLogger)
	conversationService := services.NewConversationService(conversationRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	subscriber := opschat_redis.NewSubscriber(redisClient)
	bridge := websocket.NewRedisBridge(subscriber, hub)
	go func() {
		if err := bridge.Run(ctx, []string{"channel:conversation:*"}); err != nil {
			appLogger.Errorf("redis bridge stopped: %v", err)
		}
	}()

	authorizer := websocket.NewChannelAuthorizer(conversationRepo)
	wsHandler := websocket.NewHandler(authService, hub, authorizer, messageService, appLogger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(appLogger))
	r.Use(observability.HTTPMetricsMiddleware())
	r.Use(middleware.ErrorHandler(appLogger))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", observability.MetricsHandler())
	r.GET("/ws", wsHandler.Connect)

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(authService))

	messageHandler := handler.NewMessageHandler(messageService, appLogger)
	messageHandler.Register(api.Group("/messages"))

	conversationHandler := handler.NewConversationHandler(conversationService, appLogger)
	conversationHandler.Register(api.Group("/conversations"))

	log.Printf("Starting server on port %s", cfg.AppPort)
	if err := r.Run(fmt.Sprintf(":%s", cfg.AppPort)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
