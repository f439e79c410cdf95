// Package session manages server-side login sessions backed by Redis. A
// session row is written when a token is issued and deleted on logout, which
// lets the server revoke tokens before they expire.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionPrefix is the Redis key prefix for all session hashes.
const SessionPrefix = "session:"

// Session is a login session stored in Redis, keyed by the token id.
type Session struct {
	TokenID   string `redis:"token_id"`
	UserID    string `redis:"user_id"`
	CreatedAt int64  `redis:"created_at"` // unix timestamp
}

// Store manages session state in Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a session store connected to Redis. The TTL should match
// the token lifetime so Redis evicts expired sessions on its own.
func NewStore(redisAddr string, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: redis connection failed: %w", err)
	}

	return &Store{client: client, ttl: ttl}, nil
}

// Create stores a new session keyed by tokenID.
func (s *Store) Create(ctx context.Context, tokenID, userID string) error {
	key := SessionPrefix + tokenID

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"token_id":   tokenID,
		"user_id":    userID,
		"created_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Get retrieves a session. Returns nil if not found or already expired.
func (s *Store) Get(ctx context.Context, tokenID string) (*Session, error) {
	key := SessionPrefix + tokenID
	var session Session
	if err := s.client.HGetAll(ctx, key).Scan(&session); err != nil {
		return nil, err
	}
	if session.TokenID == "" {
		return nil, nil // not found
	}
	return &session, nil
}

// Delete removes a session, revoking the token it belongs to.
func (s *Store) Delete(ctx context.Context, tokenID string) error {
	key := SessionPrefix + tokenID
	return s.client.Del(ctx, key).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (s *Store) Client() *redis.Client {
	return s.client
}
