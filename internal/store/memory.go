package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and local development. It
// mirrors the Postgres implementation's semantics, including normalized
// conversation pairs and insertion-ordered message history.
type Memory struct {
	mu            sync.Mutex
	users         map[string]*User
	rooms         map[string]*Room
	members       map[string]map[string]time.Time // roomID -> userID -> joinedAt
	conversations map[string]*Conversation
	pairIndex     map[[2]string]string // normalized pair -> conversation id
	messages      []*Message           // insertion order is the tie-break order
	messageIndex  map[string]*Message
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:         make(map[string]*User),
		rooms:         make(map[string]*Room),
		members:       make(map[string]map[string]time.Time),
		conversations: make(map[string]*Conversation),
		pairIndex:     make(map[[2]string]string),
		messageIndex:  make(map[string]*Message),
	}
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *Memory) CreateUser(_ context.Context, email, passwordHash, firstName, lastName string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return nil, ErrDuplicateEmail
		}
	}

	now := time.Now()
	user := &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Status:       StatusOffline,
		LastSeen:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[user.ID] = user
	out := *user
	return &out, nil
}

func (s *Memory) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	out := *user
	return &out, nil
}

func (s *Memory) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Memory) GetAllUsers(_ context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].FirstName != users[j].FirstName {
			return users[i].FirstName < users[j].FirstName
		}
		return users[i].Email < users[j].Email
	})
	return users, nil
}

func (s *Memory) UpdateUserStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[id]; ok {
		user.Status = status
		user.LastSeen = time.Now()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Rooms and membership
// ---------------------------------------------------------------------------

func (s *Memory) CreateRoom(_ context.Context, room NewRoom) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	created := &Room{
		ID:          uuid.New().String(),
		Name:        room.Name,
		Description: room.Description,
		IsPrivate:   room.IsPrivate,
		CreatedByID: room.CreatedByID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.rooms[created.ID] = created
	out := *created
	return &out, nil
}

func (s *Memory) GetRoom(_ context.Context, id string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	out := *room
	return &out, nil
}

func (s *Memory) GetAllRooms(_ context.Context) ([]Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rooms []Room
	for _, r := range s.rooms {
		if !r.IsPrivate {
			rooms = append(rooms, *r)
		}
	}
	sortRooms(rooms)
	return rooms, nil
}

func (s *Memory) GetUserRooms(_ context.Context, userID string) ([]Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rooms []Room
	for _, r := range s.rooms {
		if !r.IsPrivate {
			rooms = append(rooms, *r)
			continue
		}
		if _, ok := s.members[r.ID][userID]; ok {
			rooms = append(rooms, *r)
		}
	}
	sortRooms(rooms)
	return rooms, nil
}

func sortRooms(rooms []Room) {
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
}

func (s *Memory) AddRoomMember(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.members[roomID] == nil {
		s.members[roomID] = make(map[string]time.Time)
	}
	if _, ok := s.members[roomID][userID]; !ok {
		s.members[roomID][userID] = time.Now()
	}
	return nil
}

func (s *Memory) RemoveRoomMember(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.members[roomID], userID)
	return nil
}

func (s *Memory) GetRoomMembers(_ context.Context, roomID string) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type entry struct {
		user     User
		joinedAt time.Time
	}
	var entries []entry
	for userID, joinedAt := range s.members[roomID] {
		if user, ok := s.users[userID]; ok {
			entries = append(entries, entry{user: *user, joinedAt: joinedAt})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].joinedAt.Before(entries[j].joinedAt) })

	members := make([]User, 0, len(entries))
	for _, e := range entries {
		members = append(members, e.user)
	}
	return members, nil
}

func (s *Memory) IsRoomMember(_ context.Context, roomID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.members[roomID][userID]
	return ok, nil
}

// ---------------------------------------------------------------------------
// Conversations
// ---------------------------------------------------------------------------

func (s *Memory) GetConversation(_ context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	out := *conv
	return &out, nil
}

func (s *Memory) GetUserConversations(_ context.Context, userID string) ([]Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var convs []Conversation
	for _, c := range s.conversations {
		if c.HasParticipant(userID) {
			convs = append(convs, *c)
		}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].UpdatedAt.After(convs[j].UpdatedAt) })
	return convs, nil
}

func (s *Memory) FindOrCreateConversation(_ context.Context, userID, otherUserID string) (*Conversation, error) {
	p1, p2 := normalizePair(userID, otherUserID)
	key := [2]string{p1, p2}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.pairIndex[key]; ok {
		out := *s.conversations[id]
		return &out, nil
	}

	now := time.Now()
	conv := &Conversation{
		ID:             uuid.New().String(),
		Participant1ID: p1,
		Participant2ID: p2,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.conversations[conv.ID] = conv
	s.pairIndex[key] = conv.ID
	out := *conv
	return &out, nil
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

func (s *Memory) CreateMessage(_ context.Context, msg NewMessage) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := &Message{
		ID:             uuid.New().String(),
		Content:        msg.Content,
		SenderID:       msg.SenderID,
		RoomID:         msg.RoomID,
		ConversationID: msg.ConversationID,
		CreatedAt:      time.Now(),
	}
	s.messages = append(s.messages, created)
	s.messageIndex[created.ID] = created

	if msg.ConversationID != "" {
		if conv, ok := s.conversations[msg.ConversationID]; ok {
			conv.UpdatedAt = time.Now()
		}
	}

	out := *created
	return &out, nil
}

func (s *Memory) GetMessage(_ context.Context, id string) (*MessageWithSender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messageIndex[id]
	if !ok {
		return nil, nil
	}
	return s.hydrate(msg)
}

func (s *Memory) GetRoomMessages(_ context.Context, roomID string, limit int) ([]MessageWithSender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collectMessages(limit, func(m *Message) bool { return m.RoomID == roomID })
}

func (s *Memory) GetConversationMessages(_ context.Context, conversationID string, limit int) ([]MessageWithSender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collectMessages(limit, func(m *Message) bool { return m.ConversationID == conversationID })
}

func (s *Memory) collectMessages(limit int, match func(*Message) bool) ([]MessageWithSender, error) {
	limit = clampLimit(limit)

	var msgs []MessageWithSender
	for _, m := range s.messages {
		if len(msgs) >= limit {
			break
		}
		if !match(m) {
			continue
		}
		hydrated, err := s.hydrate(m)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *hydrated)
	}
	return msgs, nil
}

func (s *Memory) hydrate(msg *Message) (*MessageWithSender, error) {
	hydrated := &MessageWithSender{Message: *msg}
	if sender, ok := s.users[msg.SenderID]; ok {
		hydrated.Sender = *sender
	} else {
		hydrated.Sender = User{ID: msg.SenderID}
	}
	return hydrated, nil
}
