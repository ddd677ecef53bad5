// Package protocol defines the wire formats spoken between the host and
// its agents: binary UDP input packets and JSON control messages.
package protocol

import "encoding/json"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeHello is sent by an agent immediately after connection to name its screen
	TypeHello MessageType = "hello"

	// TypeScreen is broadcast by the host when the active screen changes
	TypeScreen MessageType = "screen"

	// TypeClipboard carries clipboard text in either direction
	TypeClipboard MessageType = "clipboard"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into a Message of the given type
func NewMessage(t MessageType, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: data}, nil
}

// Decode unmarshals the payload into v
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// HelloPayload is the payload for TypeHello
type HelloPayload struct {
	Screen       string `json:"screen"`
	AgentVersion string `json:"agent_version"`
}

// ScreenPayload is the payload for TypeScreen
type ScreenPayload struct {
	Active string `json:"active"` // screen name now holding input focus
	Origin string `json:"origin"` // "host" or agent screen name
}

// ClipboardPayload is the payload for TypeClipboard
type ClipboardPayload struct {
	Clipboard uint8  `json:"clipboard"` // 0 = clipboard, 1 = selection
	Text      string `json:"text"`
}
