package events

import (
	"fmt"
)

// ChannelResolver determines which redis channels an event is published to.
type ChannelResolver interface {
	ResolveChannels(event Event) []string
}

func ConversationChannel(conversationID fmt.Stringer) string {
	return fmt.Sprintf("channel:conversation:%s", conversationID)
}

// RoomChannelResolver routes every in-scope event to its conversation room;
// the websocket hub keys rooms by the same channel name.
type RoomChannelResolver struct{}

func NewRoomChannelResolver() *RoomChannelResolver {
	return &RoomChannelResolver{}
}

func (r *RoomChannelResolver) ResolveChannels(event Event) []string {
	switch e := event.(type) {
	case *NewMessageEvent:
		return []string{ConversationChannel(e.ConversationID)}
	case *MessageStatusUpdateEvent:
		return []string{ConversationChannel(e.ConversationID)}
	case *ConversationReadEvent:
		return []string{ConversationChannel(e.ConversationID)}
	}
	return nil
}
