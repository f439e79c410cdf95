package ws

import (
	"context"
	"log"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/messaging"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/protocol"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/store"
)

// Presence maintains online/offline transitions. Status writes to storage
// are best-effort and never gate connectivity; the presence broadcast is
// eventually consistent with the registry, not atomic with it.
type Presence struct {
	registry    *Registry
	store       store.Store
	broadcaster *Broadcaster
	events      *messaging.Publisher
}

// NewPresence creates a presence tracker. The events publisher may be nil.
func NewPresence(registry *Registry, st store.Store, broadcaster *Broadcaster, events *messaging.Publisher) *Presence {
	return &Presence{
		registry:    registry,
		store:       st,
		broadcaster: broadcaster,
		events:      events,
	}
}

// HandleConnect runs after handle has been registered for userID: it marks
// the user online, announces the transition to everyone else, and sends the
// new connection its `connected` frame followed by the online-users
// snapshot. The snapshot is captured after registration so a concurrently
// connecting peer is never missed by both sides, but it excludes the
// connecting user itself.
func (p *Presence) HandleConnect(ctx context.Context, userID string, handle Handle) {
	if err := p.store.UpdateUserStatus(ctx, userID, store.StatusOnline); err != nil {
		log.Printf("ws: mark %s online: %v", userID, err)
	}

	if frame, err := protocol.NewServerFrame(protocol.TypePresence, protocol.PresencePayload{
		UserID: userID,
		Status: store.StatusOnline,
	}); err == nil {
		p.broadcaster.BroadcastAll(frame, userID)
	}
	p.events.PublishPresence(userID, store.StatusOnline)

	if frame, err := protocol.NewServerFrame(protocol.TypeConnected, protocol.ConnectedPayload{
		UserID: userID,
	}); err == nil {
		_ = handle.WriteMessage(frame)
	}

	online := make([]string, 0, p.registry.Count())
	for _, id := range p.registry.UserIDs() {
		if id != userID {
			online = append(online, id)
		}
	}
	if frame, err := protocol.NewServerFrame(protocol.TypeOnlineUsers, protocol.OnlineUsersPayload{
		UserIDs: online,
	}); err == nil {
		_ = handle.WriteMessage(frame)
	}
}

// HandleDisconnect runs after the connection has been deregistered: it marks
// the user offline and announces the transition to the remaining
// connections.
func (p *Presence) HandleDisconnect(ctx context.Context, userID string) {
	if err := p.store.UpdateUserStatus(ctx, userID, store.StatusOffline); err != nil {
		log.Printf("ws: mark %s offline: %v", userID, err)
	}

	if frame, err := protocol.NewServerFrame(protocol.TypePresence, protocol.PresencePayload{
		UserID: userID,
		Status: store.StatusOffline,
	}); err == nil {
		p.broadcaster.BroadcastAll(frame, userID)
	}
	p.events.PublishPresence(userID, store.StatusOffline)
}
