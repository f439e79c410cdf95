package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DefaultMessageLimit caps history queries when the caller does not supply a
// limit.
const DefaultMessageLimit = 100

// Postgres implements Store on top of a PostgreSQL database.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Store backed by the given database handle. The handle
// is expected to be opened with the lib/pq driver and already migrated.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Open connects to PostgreSQL with the lib/pq driver and verifies the
// connection.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return db, nil
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

const userColumns = `id, email, password_hash, first_name, last_name, profile_image_url, status, last_seen, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var (
		u                          User
		firstName, lastName, image sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &firstName, &lastName, &image,
		&u.Status, &u.LastSeen, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.ProfileImageURL = image.String
	return &u, nil
}

// CreateUser inserts a new user. A duplicate email yields ErrDuplicateEmail.
func (s *Postgres) CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (*User, error) {
	const query = `
		INSERT INTO users (email, password_hash, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query, email, passwordHash, firstName, lastName))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	return user, nil
}

func (s *Postgres) GetUser(ctx context.Context, id string) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return user, nil
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user by email: %w", err)
	}
	return user, nil
}

func (s *Postgres) GetAllUsers(ctx context.Context) ([]User, error) {
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY first_name ASC, email ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UpdateUserStatus records an online/offline transition and bumps last_seen.
func (s *Postgres) UpdateUserStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE users SET status = $2, last_seen = NOW() WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("store: update user status: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Rooms and membership
// ---------------------------------------------------------------------------

const roomColumns = `id, name, description, is_private, created_by_id, created_at, updated_at`

func scanRoom(row interface{ Scan(...interface{}) error }) (*Room, error) {
	var (
		r                    Room
		description, creator sql.NullString
	)
	err := row.Scan(&r.ID, &r.Name, &description, &r.IsPrivate, &creator, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Description = description.String
	r.CreatedByID = creator.String
	return &r, nil
}

func (s *Postgres) CreateRoom(ctx context.Context, room NewRoom) (*Room, error) {
	const query = `
		INSERT INTO rooms (name, description, is_private, created_by_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + roomColumns

	created, err := scanRoom(s.db.QueryRowContext(ctx, query,
		room.Name, room.Description, room.IsPrivate, room.CreatedByID))
	if err != nil {
		return nil, fmt.Errorf("store: create room: %w", err)
	}
	return created, nil
}

func (s *Postgres) GetRoom(ctx context.Context, id string) (*Room, error) {
	const query = `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`

	room, err := scanRoom(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get room: %w", err)
	}
	return room, nil
}

// GetAllRooms lists public rooms ordered by name.
func (s *Postgres) GetAllRooms(ctx context.Context) ([]Room, error) {
	const query = `SELECT ` + roomColumns + ` FROM rooms WHERE is_private = FALSE ORDER BY name ASC`
	return s.queryRooms(ctx, query)
}

// GetUserRooms lists the rooms visible to a user: every public room plus the
// private rooms the user is a member of, ordered by name.
func (s *Postgres) GetUserRooms(ctx context.Context, userID string) ([]Room, error) {
	const query = `
		SELECT DISTINCT r.id, r.name, r.description, r.is_private, r.created_by_id, r.created_at, r.updated_at
		FROM rooms r
		LEFT JOIN room_members rm ON rm.room_id = r.id AND rm.user_id = $1
		WHERE r.is_private = FALSE OR rm.user_id IS NOT NULL
		ORDER BY r.name ASC`
	return s.queryRooms(ctx, query, userID)
}

func (s *Postgres) queryRooms(ctx context.Context, query string, args ...interface{}) ([]Room, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list rooms: %w", err)
	}
	defer rows.Close()

	var roomList []Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan room: %w", err)
		}
		roomList = append(roomList, *room)
	}
	return roomList, rows.Err()
}

// AddRoomMember adds a membership row. Adding an existing member is a no-op.
func (s *Postgres) AddRoomMember(ctx context.Context, roomID, userID string) error {
	const query = `
		INSERT INTO room_members (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("store: add room member: %w", err)
	}
	return nil
}

// RemoveRoomMember deletes a membership row. Removing a non-member is a no-op.
func (s *Postgres) RemoveRoomMember(ctx context.Context, roomID, userID string) error {
	const query = `DELETE FROM room_members WHERE room_id = $1 AND user_id = $2`

	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("store: remove room member: %w", err)
	}
	return nil
}

func (s *Postgres) GetRoomMembers(ctx context.Context, roomID string) ([]User, error) {
	const query = `
		SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.profile_image_url,
		       u.status, u.last_seen, u.created_at, u.updated_at
		FROM room_members rm
		INNER JOIN users u ON u.id = rm.user_id
		WHERE rm.room_id = $1
		ORDER BY rm.joined_at ASC`

	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("store: room members: %w", err)
	}
	defer rows.Close()

	var members []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan member: %w", err)
		}
		members = append(members, *user)
	}
	return members, rows.Err()
}

func (s *Postgres) IsRoomMember(ctx context.Context, roomID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)`

	var isMember bool
	if err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&isMember); err != nil {
		return false, fmt.Errorf("store: is room member: %w", err)
	}
	return isMember, nil
}

// ---------------------------------------------------------------------------
// Conversations
// ---------------------------------------------------------------------------

const conversationColumns = `id, participant1_id, participant2_id, created_at, updated_at`

func scanConversation(row interface{ Scan(...interface{}) error }) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.Participant1ID, &c.Participant2ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Postgres) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	const query = `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get conversation: %w", err)
	}
	return conv, nil
}

func (s *Postgres) GetUserConversations(ctx context.Context, userID string) ([]Conversation, error) {
	const query = `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE participant1_id = $1 OR participant2_id = $1
		ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan conversation: %w", err)
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

// FindOrCreateConversation returns the conversation between the unordered
// pair (userID, otherUserID), creating it when missing. The participant pair
// is stored normalized and guarded by a unique constraint, so concurrent
// calls for the same pair converge on a single row.
func (s *Postgres) FindOrCreateConversation(ctx context.Context, userID, otherUserID string) (*Conversation, error) {
	p1, p2 := normalizePair(userID, otherUserID)

	const insert = `
		INSERT INTO conversations (participant1_id, participant2_id)
		VALUES ($1, $2)
		ON CONFLICT (participant1_id, participant2_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, insert, p1, p2); err != nil {
		return nil, fmt.Errorf("store: create conversation: %w", err)
	}

	const query = `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE participant1_id = $1 AND participant2_id = $2`
	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, p1, p2))
	if err != nil {
		return nil, fmt.Errorf("store: find conversation: %w", err)
	}
	return conv, nil
}

func normalizePair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// CreateMessage persists a message. Conversation messages also touch the
// conversation's updated_at so conversation lists sort by last activity.
func (s *Postgres) CreateMessage(ctx context.Context, msg NewMessage) (*Message, error) {
	const query = `
		INSERT INTO messages (content, sender_id, room_id, conversation_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, content, sender_id, room_id, conversation_id, created_at`

	created, err := scanMessage(s.db.QueryRowContext(ctx, query,
		msg.Content, msg.SenderID, nullString(msg.RoomID), nullString(msg.ConversationID)))
	if err != nil {
		return nil, fmt.Errorf("store: create message: %w", err)
	}

	if msg.ConversationID != "" {
		const touch = `UPDATE conversations SET updated_at = NOW() WHERE id = $1`
		if _, err := s.db.ExecContext(ctx, touch, msg.ConversationID); err != nil {
			return nil, fmt.Errorf("store: touch conversation: %w", err)
		}
	}
	return created, nil
}

// GetMessage returns a message hydrated with its sender's profile.
func (s *Postgres) GetMessage(ctx context.Context, id string) (*MessageWithSender, error) {
	const query = messageWithSenderSelect + ` WHERE m.id = $1`

	hydrated, err := scanMessageWithSender(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get message: %w", err)
	}
	return hydrated, nil
}

func (s *Postgres) GetRoomMessages(ctx context.Context, roomID string, limit int) ([]MessageWithSender, error) {
	const query = messageWithSenderSelect + `
		WHERE m.room_id = $1
		ORDER BY m.created_at ASC, m.id ASC
		LIMIT $2`
	return s.queryMessages(ctx, query, roomID, clampLimit(limit))
}

func (s *Postgres) GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]MessageWithSender, error) {
	const query = messageWithSenderSelect + `
		WHERE m.conversation_id = $1
		ORDER BY m.created_at ASC, m.id ASC
		LIMIT $2`
	return s.queryMessages(ctx, query, conversationID, clampLimit(limit))
}

const messageWithSenderSelect = `
	SELECT m.id, m.content, m.sender_id, m.room_id, m.conversation_id, m.created_at,
	       u.id, u.email, u.password_hash, u.first_name, u.last_name, u.profile_image_url,
	       u.status, u.last_seen, u.created_at, u.updated_at
	FROM messages m
	INNER JOIN users u ON u.id = m.sender_id`

func (s *Postgres) queryMessages(ctx context.Context, query string, args ...interface{}) ([]MessageWithSender, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var msgs []MessageWithSender
	for rows.Next() {
		hydrated, err := scanMessageWithSender(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		msgs = append(msgs, *hydrated)
	}
	return msgs, rows.Err()
}

func scanMessage(row interface{ Scan(...interface{}) error }) (*Message, error) {
	var (
		m              Message
		roomID, convID sql.NullString
	)
	err := row.Scan(&m.ID, &m.Content, &m.SenderID, &roomID, &convID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.RoomID = roomID.String
	m.ConversationID = convID.String
	return &m, nil
}

func scanMessageWithSender(row interface{ Scan(...interface{}) error }) (*MessageWithSender, error) {
	var (
		mws                        MessageWithSender
		roomID, convID             sql.NullString
		firstName, lastName, image sql.NullString
	)
	err := row.Scan(
		&mws.ID, &mws.Content, &mws.SenderID, &roomID, &convID, &mws.CreatedAt,
		&mws.Sender.ID, &mws.Sender.Email, &mws.Sender.PasswordHash,
		&firstName, &lastName, &image,
		&mws.Sender.Status, &mws.Sender.LastSeen, &mws.Sender.CreatedAt, &mws.Sender.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	mws.RoomID = roomID.String
	mws.ConversationID = convID.String
	mws.Sender.FirstName = firstName.String
	mws.Sender.LastName = lastName.String
	mws.Sender.ProfileImageURL = image.String
	return &mws, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultMessageLimit
	}
	return limit
}
