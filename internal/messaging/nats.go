// Package messaging provides a NATS publisher for chat server events.
// Persisted messages and presence transitions are published to chat.events.*
// subjects for out-of-process consumers (moderation, analytics). Delivery to
// connected clients never goes through NATS; the publisher is strictly an
// outbound event tap and the server runs fine without it.
package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects published by the chat server.
const (
	SubjectMessageCreated = "chat.events.message"
	SubjectPresence       = "chat.events.presence"
)

// MessageEvent is the payload published when a chat message is persisted.
type MessageEvent struct {
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
	RoomID         string `json:"room_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content"`
	Ts             int64  `json:"ts"`
}

// PresenceEvent is the payload published on online/offline transitions.
type PresenceEvent struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
	Ts     int64  `json:"ts"`
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "chat-server",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Publisher wraps the NATS connection. A nil *Publisher is valid and drops
// every event, so event publishing stays optional.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to NATS with the given config and returns a ready
// publisher. It returns an error if the initial connection fails.
func NewPublisher(config Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("messaging: nats disconnected: %v", err)
			} else {
				log.Printf("messaging: nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("messaging: nats reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("messaging: nats connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}

	log.Printf("messaging: connected to %s", nc.ConnectedUrl())
	return &Publisher{conn: nc}, nil
}

// PublishMessageCreated publishes a persisted-message event. Failures are
// logged and swallowed; event publishing never gates message delivery.
func (p *Publisher) PublishMessageCreated(event MessageEvent) {
	p.publish(SubjectMessageCreated, event)
}

// PublishPresence publishes an online/offline transition event.
func (p *Publisher) PublishPresence(userID, status string) {
	p.publish(SubjectPresence, PresenceEvent{
		UserID: userID,
		Status: status,
		Ts:     time.Now().Unix(),
	})
}

func (p *Publisher) publish(subject string, payload interface{}) {
	if p == nil || p.conn == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("messaging: marshal %s event: %v", subject, err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		log.Printf("messaging: publish %s: %v", subject, err)
	}
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		log.Printf("messaging: connection drain: %v", err)
	}
}
