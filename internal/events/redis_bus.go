package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Publisher is the write side of the event bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RedisEventBus implements pub/sub fan-out over Redis so REST mutations reach
// websocket hubs on every instance.
type RedisEventBus struct {
	client   *redis.Client
	resolver ChannelResolver
	handlers map[EventType][]EventHandler
	pubsub   *redis.PubSub
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	running  bool
}

func NewRedisEventBus(client *redis.Client, resolver ChannelResolver) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:   client,
		resolver: resolver,
		handlers: make(map[EventType][]EventHandler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (b *RedisEventBus) Start() error {
	b.running = true
	b.pubsub = b.client.PSubscribe(b.ctx, "channel:*")
	go b.listen()
	return nil
}

func (b *RedisEventBus) Stop() error {
	b.cancel()
	b.running = false
	if b.pubsub != nil {
		b.pubsub.Close()
	}
	return nil
}

func (b *RedisEventBus) Publish(ctx context.Context, event Event) error {
	if !b.running {
		return fmt.Errorf("event bus not started")
	}

	channels := b.resolver.ResolveChannels(event)
	if len(channels) == 0 {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	for _, channel := range channels {
		if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", channel, err)
		}
	}
	return nil
}

func (b *RedisEventBus) Subscribe(eventType EventType, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

func (b *RedisEventBus) listen() {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg := <-ch:
			if msg == nil {
				continue
			}

			var base BaseEvent
			if err := json.Unmarshal([]byte(msg.Payload), &base); err != nil {
				continue
			}

			b.dispatch(base.EventTypeVal, []byte(msg.Payload))
		}
	}
}

func (b *RedisEventBus) dispatch(eventType EventType, data []byte) {
	b.mu.RLock()
	handlers := b.handlers[eventType]
	b.mu.RUnlock()

	for _, handler := range handlers {
		go func(h EventHandler) {
			event := UnmarshalEvent(eventType, data)
			if event != nil {
				_ = h.Handle(b.ctx, event)
			}
		}(handler)
	}
}

// UnmarshalEvent decodes a raw bus payload into its concrete event type.
func UnmarshalEvent(eventType EventType, data []byte) Event {
	switch eventType {
	case EventNewMessage:
		var e NewMessageEvent
		if err := json.Unmarshal(data, &e); err == nil {
			return &e
		}
	case EventMessageStatusUpdate:
		var e MessageStatusUpdateEvent
		if err := json.Unmarshal(data, &e); err == nil {
			return &e
		}
	case EventConversationRead:
		var e ConversationReadEvent
		if err := json.Unmarshal(data, &e); err == nil {
			return &e
		}
	}
	return nil
}
