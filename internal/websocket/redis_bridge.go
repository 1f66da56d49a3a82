package websocket

import (
	"context"
	"encoding/json"

	"opschat/internal/events"
	"opschat/internal/observability"
)

// RedisBridge relays bus payloads into the local hub. The bus carries bare
// event structs; clients get them wrapped in the frame shape.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

func (b *RedisBridge) Run(ctx context.Context, patterns []string) error {
	return b.subscriber.Subscribe(ctx, patterns, func(channel string, payload []byte) {
		var base events.BaseEvent
		if err := json.Unmarshal(payload, &base); err != nil || base.EventTypeVal == "" {
			return
		}
		frame, err := events.WrapPayload(base.EventTypeVal, payload)
		if err != nil {
			return
		}
		observability.IncWSEvent("outbound", string(base.EventTypeVal))
		b.hub.Broadcast(channel, frame)
	})
}
