package events

import (
	"encoding/json"
)

// Frame is the websocket wire shape, in both directions. The bus carries
// concrete event structs; the socket carries frames.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EncodeFrame wraps a bus event into its client-facing frame.
func EncodeFrame(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: string(event.EventType()), Data: data})
}

// WrapPayload frames an already-marshalled bus payload without re-decoding
// the concrete type.
func WrapPayload(eventType EventType, payload []byte) ([]byte, error) {
	return json.Marshal(Frame{Event: string(eventType), Data: payload})
}

func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(raw, &f)
	return f, err
}
