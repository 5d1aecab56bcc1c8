package chat

import (
	"encoding/json"
	"fmt"
)

// Websocket event names.
const (
	EventJoinRoom     = "joinRoom"
	EventLoadMessages = "loadMessages"
	EventMessage      = "message"
	EventUserPresence = "userPresence"
)

// Envelope is the websocket frame shape in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes payload as the data of an event.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// DecodeEnvelope parses a raw websocket frame.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", ErrMalformedEvent)
	}
	return env, nil
}

// MessagePayload is the client's message event. Sender falls back to the
// session's username when empty.
type MessagePayload struct {
	Content string `json:"content"`
	Room    string `json:"room"`
	Sender  string `json:"sender"`
}

// decodeRoom accepts a bare room string or {"room": "..."}.
func decodeRoom(data json.RawMessage) (string, error) {
	var room string
	if err := json.Unmarshal(data, &room); err == nil {
		return room, nil
	}

	var obj struct {
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", fmt.Errorf("%w: joinRoom expects a room name", ErrMalformedEvent)
	}
	return obj.Room, nil
}
