// Package store is the durable storage gateway for users, rooms,
// conversations, and messages. The Store interface is the single point the
// real-time layer and the HTTP API consult; it is backed by PostgreSQL in
// production and by an in-memory implementation in tests.
package store

import (
	"context"
	"errors"
	"time"
)

// User status values persisted by UpdateUserStatus.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ErrDuplicateEmail is returned by CreateUser when the email is already
// registered.
var ErrDuplicateEmail = errors.New("store: email already registered")

// User is a registered chat user. The password hash never leaves the server.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	ProfileImageURL string    `json:"profileImageUrl"`
	Status          string    `json:"status"`
	LastSeen        time.Time `json:"lastSeen"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Room is a named, optionally private, multi-member broadcast scope.
// Membership is an explicit relation; public rooms accept messages from
// non-members.
type Room struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPrivate   bool      `json:"isPrivate"`
	CreatedByID string    `json:"createdById"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewRoom holds the caller-supplied fields for room creation.
type NewRoom struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
	CreatedByID string `json:"-"`
}

// Conversation is a two-participant private message scope. The participant
// slots carry no meaning beyond storage order; resolve the counterpart with
// OtherParticipant.
type Conversation struct {
	ID             string    `json:"id"`
	Participant1ID string    `json:"participant1Id"`
	Participant2ID string    `json:"participant2Id"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

// OtherParticipant returns the id of the participant that is not userID, or
// "" if userID is not a participant at all.
func (c *Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.Participant1ID:
		return c.Participant2ID
	case c.Participant2ID:
		return c.Participant1ID
	}
	return ""
}

// Message is a persisted chat message. Exactly one of RoomID and
// ConversationID is set. Messages are immutable once written.
type Message struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	SenderID       string    `json:"senderId"`
	RoomID         string    `json:"roomId,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewMessage holds the fields for message creation.
type NewMessage struct {
	Content        string
	SenderID       string
	RoomID         string
	ConversationID string
}

// MessageWithSender is a message hydrated with its sender's profile. Clients
// only ever receive hydrated messages.
type MessageWithSender struct {
	Message
	Sender User `json:"sender"`
}

// Store is the storage gateway consumed by the real-time layer and the HTTP
// API. All operations take a context and may fail; not-found lookups return
// (nil, nil).
type Store interface {
	// Users.
	CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetAllUsers(ctx context.Context) ([]User, error)
	UpdateUserStatus(ctx context.Context, id, status string) error

	// Rooms and membership.
	CreateRoom(ctx context.Context, room NewRoom) (*Room, error)
	GetRoom(ctx context.Context, id string) (*Room, error)
	GetAllRooms(ctx context.Context) ([]Room, error)
	GetUserRooms(ctx context.Context, userID string) ([]Room, error)
	AddRoomMember(ctx context.Context, roomID, userID string) error
	RemoveRoomMember(ctx context.Context, roomID, userID string) error
	GetRoomMembers(ctx context.Context, roomID string) ([]User, error)
	IsRoomMember(ctx context.Context, roomID, userID string) (bool, error)

	// Conversations.
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetUserConversations(ctx context.Context, userID string) ([]Conversation, error)
	FindOrCreateConversation(ctx context.Context, userID, otherUserID string) (*Conversation, error)

	// Messages.
	CreateMessage(ctx context.Context, msg NewMessage) (*Message, error)
	GetMessage(ctx context.Context, id string) (*MessageWithSender, error)
	GetRoomMessages(ctx context.Context, roomID string, limit int) ([]MessageWithSender, error)
	GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]MessageWithSender, error)
}
