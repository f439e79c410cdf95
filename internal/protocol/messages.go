// Package protocol defines the WebSocket frame types and structures exchanged
// between chat clients and the server. All frames are serialized as JSON and
// carry a "type" discriminator; server frames wrap their payload in a "data"
// envelope so clients can dispatch without inspecting the payload shape.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Frame type constants
// ---------------------------------------------------------------------------

// Client -> Server frame types.
const (
	TypeMessage   = "message"
	TypeTyping    = "typing"
	TypeJoinRoom  = "join_room"
	TypeLeaveRoom = "leave_room"
	TypePing      = "ping"
)

// Server -> Client frame types.
const (
	TypeConnected   = "connected"
	TypeOnlineUsers = "online_users"
	TypePresence    = "presence"
	TypeUserJoined  = "user_joined"
	TypeUserLeft    = "user_left"
	TypeError       = "error"
	TypePong        = "pong"
)

// ErrUnknownType is returned by ParseClientFrame for frames whose type is not
// part of the client protocol. The connection loop ignores such frames so the
// protocol stays forward-compatible.
var ErrUnknownType = errors.New("protocol: unknown frame type")

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the frame type and the raw JSON payload for deferred parsing
// into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full raw bytes and extracts only the "type"
// field so that the rest of the payload can be decoded later into the
// appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server frame structs
// ---------------------------------------------------------------------------

// MessageFrame is a chat message targeting either a room or a conversation.
// Exactly one of RoomID / ConversationID must be set.
type MessageFrame struct {
	Type           string `json:"type"`
	Content        string `json:"content"`
	RoomID         string `json:"roomId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// TypingFrame signals that the sender started or stopped typing in a room or
// conversation. It is relayed to the other participants, never persisted.
type TypingFrame struct {
	Type           string `json:"type"`
	RoomID         string `json:"roomId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	IsTyping       bool   `json:"isTyping"`
}

// JoinRoomFrame asks to join a public room.
type JoinRoomFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// LeaveRoomFrame asks to leave a room. Leaving is idempotent.
type LeaveRoomFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// PingFrame is a client-initiated keepalive ping.
type PingFrame struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client payload structs
// ---------------------------------------------------------------------------

// ConnectedPayload is sent once, immediately after successful registration.
type ConnectedPayload struct {
	UserID string `json:"userId"`
}

// OnlineUsersPayload is the snapshot of online user ids sent right after the
// connected frame.
type OnlineUsersPayload struct {
	UserIDs []string `json:"userIds"`
}

// PresencePayload announces an online/offline transition for a user.
type PresencePayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"` // "online" or "offline"
}

// TypingPayload relays a typing signal, attributed to the originating user.
type TypingPayload struct {
	UserID         string `json:"userId"`
	RoomID         string `json:"roomId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	IsTyping       bool   `json:"isTyping"`
}

// UserLeftPayload announces that a user left a room.
type UserLeftPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// serverFrame is the outbound envelope: a type discriminator plus the
// type-specific payload.
type serverFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// errorFrame is the one outbound shape without a data envelope; it is only
// ever sent to the user whose frame caused the error.
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientFrame parses raw WebSocket bytes into a typed client frame. It
// returns the frame type string, the decoded struct, and any error
// encountered during parsing. Unknown types yield ErrUnknownType.
func ParseClientFrame(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse frame: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeMessage:
		var m MessageFrame
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTyping:
		var m TypingFrame
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeJoinRoom:
		var m JoinRoomFrame
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLeaveRoom:
		var m LeaveRoomFrame
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingFrame
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, ErrUnknownType
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerFrame creates the JSON-encoded bytes for a server frame of the
// given type, with the payload nested under "data". The payload may be any
// JSON-marshalable value, including hydrated storage records.
func NewServerFrame(frameType string, payload interface{}) ([]byte, error) {
	out, err := json.Marshal(serverFrame{Type: frameType, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal %q frame: %w", frameType, err)
	}
	return out, nil
}

// NewErrorFrame creates the JSON-encoded bytes for an error frame. Error
// frames carry a flat message field instead of a data envelope.
func NewErrorFrame(message string) []byte {
	out, _ := json.Marshal(errorFrame{Type: TypeError, Message: message})
	return out
}
