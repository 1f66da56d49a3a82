package events

import "context"

// Subscriber is the bus-consumption side, fed by pattern subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}
