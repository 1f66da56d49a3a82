package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHubBroadcastReachesSubscribers(t *testing.T) {
	hub := startHub(t)
	subscribed := NewClient(nil, "user-a")
	other := NewClient(nil, "user-b")

	hub.Register(subscribed)
	hub.Register(other)
	hub.Subscribe(subscribed, "channel:conversation:1")

	require.Eventually(t, func() bool {
		return hub.ChannelSubscriberCount("channel:conversation:1") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast("channel:conversation:1", []byte("payload"))

	select {
	case msg := <-subscribed.Send:
		assert.Equal(t, "payload", string(msg))
	case <-time.After(time.Second):
		t.Fatal("subscribed client never received the broadcast")
	}

	select {
	case <-other.Send:
		t.Fatal("unsubscribed client received the broadcast")
	default:
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := startHub(t)
	client := NewClient(nil, "user-a")

	hub.Register(client)
	hub.Subscribe(client, "channel:conversation:1")
	require.Eventually(t, func() bool {
		return hub.ChannelSubscriberCount("channel:conversation:1") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Unsubscribe(client, "channel:conversation:1")
	require.Eventually(t, func() bool {
		return hub.ChannelSubscriberCount("channel:conversation:1") == 0
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast("channel:conversation:1", []byte("payload"))
	select {
	case <-client.Send:
		t.Fatal("client received a broadcast after unsubscribing")
	default:
	}
}

func TestHubUnregisterCleansUpSubscriptions(t *testing.T) {
	hub := startHub(t)
	client := NewClient(nil, "user-a")

	hub.Register(client)
	hub.Subscribe(client, "channel:conversation:1")
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1 && hub.ChannelSubscriberCount("channel:conversation:1") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Unregister(client)
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0 && hub.ChannelSubscriberCount("channel:conversation:1") == 0
	}, time.Second, 10*time.Millisecond)

	// Send channel is closed on unregister.
	_, open := <-client.Send
	assert.False(t, open)
}

func TestHubDropsSubscribeForUnregisteredClient(t *testing.T) {
	hub := startHub(t)
	client := NewClient(nil, "user-a")

	hub.Register(client)
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.Unregister(client)
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)

	// A join that was queued before the disconnect drains afterwards.
	hub.Subscribe(client, "channel:conversation:1")

	// Subscription requests drain in order, so once the marker's join is
	// visible the dead client's join has been processed too.
	marker := NewClient(nil, "user-b")
	hub.Register(marker)
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)
	hub.Subscribe(marker, "channel:conversation:2")
	require.Eventually(t, func() bool {
		return hub.ChannelSubscriberCount("channel:conversation:2") == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, hub.ChannelSubscriberCount("channel:conversation:1"))
	assert.NotPanics(t, func() {
		hub.Broadcast("channel:conversation:1", []byte("payload"))
	})
}
