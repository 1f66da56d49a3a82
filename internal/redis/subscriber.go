package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Subscriber drains pattern subscriptions off redis pub/sub. The websocket
// bridge runs one against channel:conversation:* so events published by any
// instance reach locally connected clients.
type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe blocks, handing every payload to handler. Context cancellation is
// a clean shutdown and returns nil; go-redis reconnects dropped pub/sub
// connections on its own.
func (s *Subscriber) Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error {
	sub := s.client.PSubscribe(ctx, patterns...)
	defer sub.Close()

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}
