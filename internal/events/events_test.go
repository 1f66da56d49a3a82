package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomChannelResolverRoutesToConversationChannel(t *testing.T) {
	conversationID := uuid.New()
	resolver := NewRoomChannelResolver()

	for _, event := range []Event{
		NewNewMessageEvent(conversationID, uuid.New(), uuid.New(), "Agent 1", "hi", "TEXT", time.Now()),
		NewMessageStatusUpdateEvent(conversationID, uuid.New(), uuid.New(), "edited"),
		NewConversationReadEvent(conversationID, uuid.New(), 2),
	} {
		channels := resolver.ResolveChannels(event)
		require.Len(t, channels, 1)
		assert.Equal(t, "channel:conversation:"+conversationID.String(), channels[0])
	}
}

func TestUnmarshalEventRestoresConcreteType(t *testing.T) {
	original := NewNewMessageEvent(uuid.New(), uuid.New(), uuid.New(), "Agent 1", "hello", "TEXT", time.Now())
	raw, err := json.Marshal(original)
	require.NoError(t, err)

	decoded := UnmarshalEvent(EventNewMessage, raw)
	restored, ok := decoded.(*NewMessageEvent)
	require.True(t, ok)
	assert.Equal(t, original.MessageID, restored.MessageID)
	assert.Equal(t, "hello", restored.Content)
}

func TestFrameWrapsEventForTheWire(t *testing.T) {
	event := NewConversationReadEvent(uuid.New(), uuid.New(), 3)

	raw, err := EncodeFrame(event)
	require.NoError(t, err)

	frame, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, string(EventConversationRead), frame.Event)

	var decoded ConversationReadEvent
	require.NoError(t, json.Unmarshal(frame.Data, &decoded))
	assert.Equal(t, int64(3), decoded.Count)
}
