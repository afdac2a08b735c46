// Package chatmessage defines the chat message exchanged between peers and
// its compact JSON text encoding.
package chatmessage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MessageType represents the kind of a chat message.
type MessageType int

const (
	Connect      MessageType = iota // Peer announced itself
	Disconnect                      // Peer announced it is leaving
	Message                         // Regular chat text
	Notification                    // Out-of-band system text
)

// String returns the name of the message type.
func (mt MessageType) String() string {
	switch mt {
	case Connect:
		return "Connect"
	case Disconnect:
		return "Disconnect"
	case Message:
		return "Message"
	case Notification:
		return "Notification"
	default:
		return "Unknown"
	}
}

// Valid reports whether mt is one of the defined message types.
func (mt MessageType) Valid() bool {
	return mt >= Connect && mt <= Notification
}

// UnmarshalJSON accepts either the numeric value or the case-insensitive
// name of the type. Unknown values are rejected.
func (mt *MessageType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}

		for t := Connect; t <= Notification; t++ {
			if strings.EqualFold(name, t.String()) {
				*mt = t
				return nil
			}
		}

		return fmt.Errorf("unknown message type %q", name)
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("message type must be a number or a name: %w", err)
	}

	if !MessageType(n).Valid() {
		return fmt.Errorf("unknown message type %d", n)
	}

	*mt = MessageType(n)
	return nil
}

// ChatMessage is a single chat message in flight. It has no identity beyond
// its fields.
type ChatMessage struct {
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Sender    string      `json:"sender"`
	Timestamp time.Time   `json:"timestamp"`
}

// New creates a ChatMessage stamped with the current UTC time.
//
// Parameters:
//   - mt: The message type
//   - content: The message text
//   - sender: The sender label (e.g. "Server" or "Client")
//
// Returns:
//   - The new ChatMessage
func New(mt MessageType, content, sender string) ChatMessage {
	return ChatMessage{
		Type:      mt,
		Content:   content,
		Sender:    sender,
		Timestamp: time.Now().UTC(),
	}
}

// Encode renders m as a compact JSON object with the keys type, content,
// sender and timestamp. The timestamp is written in RFC 3339 UTC form with
// nanosecond precision.
func Encode(m ChatMessage) (string, error) {
	m.Timestamp = m.Timestamp.UTC()
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode chat message: %w", err)
	}

	return string(data), nil
}

// wireMessage mirrors ChatMessage with pointer fields so missing keys can be
// told apart from zero values.
type wireMessage struct {
	Type      *MessageType `json:"type"`
	Content   *string      `json:"content"`
	Sender    *string      `json:"sender"`
	Timestamp *time.Time   `json:"timestamp"`
}

// Decode parses text produced by Encode. It returns nil when text is not a
// JSON object, when any of the four keys is missing or null, or when a value
// has the wrong shape. Malformed input never panics.
func Decode(text string) *ChatMessage {
	var w wireMessage
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return nil
	}

	if w.Type == nil || w.Content == nil || w.Sender == nil || w.Timestamp == nil {
		return nil
	}

	return &ChatMessage{
		Type:      *w.Type,
		Content:   *w.Content,
		Sender:    *w.Sender,
		Timestamp: w.Timestamp.UTC(),
	}
}
