// Package server defines the named-event envelope exchanged over the
// WebSocket channel and the payload types carried inside it.
package server

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Client-to-server event names.
const (
	EventJoinRoom     = "joinRoom"
	EventLoadMessages = "loadMessages"
	EventNewMessage   = "newMessage"
)

// Server-to-client event names.
const (
	EventJoinRoomSuccess = "joinRoomSuccess"
	EventHistory         = "history"
	EventMessage         = "message"
	EventError           = "errorEvent"
)

// Envelope is the frame format for every event in either direction.
// Data is absent for events that carry no payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRoomPayload carries the joinRoom event data. Username stays nil when
// the client joins anonymously.
type JoinRoomPayload struct {
	Room     string  `json:"room"`
	Username *string `json:"username"`
}

// NewMessagePayload carries the newMessage event data. FileURL, when set,
// references a previously uploaded attachment.
type NewMessagePayload struct {
	Message string `json:"message"`
	FileURL string `json:"fileUrl,omitempty"`
}

// ErrorPayload is the data of an errorEvent sent back to the connection
// whose request failed.
type ErrorPayload struct {
	Error string `json:"error"`
}

// BroadcastMessage encapsulates a message being fanned out by the hub to
// every connection currently in Room, the sender included.
type BroadcastMessage struct {
	Room    string
	Payload []byte
}

// encodeEvent marshals an envelope with the given event name and payload.
func encodeEvent(event string, data any) ([]byte, error) {
	envelope := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
		}
		envelope.Data = raw
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", event, err)
	}
	return payload, nil
}

// appendDownloadLink appends the fixed-format attachment hyperlink to the
// message text. The label is literal and the link opens in a new viewing
// context.
func appendDownloadLink(text, fileURL string) string {
	return fmt.Sprintf(`%s <a href="%s" target="_blank">Download File</a>`, text, fileURL)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
