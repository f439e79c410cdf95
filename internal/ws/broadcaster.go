package ws

import (
	"context"
	"log"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/metrics"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/store"
)

// Broadcaster delivers a serialized frame to one user, to the members of a
// room, or to every online user. All sends are fire-and-forget: a dead
// connection is skipped and never aborts delivery to the remaining
// recipients. Callers serialize a frame once and pass the bytes, so every
// recipient sees an identical payload.
type Broadcaster struct {
	registry *Registry
	store    store.Store
}

// NewBroadcaster creates a Broadcaster over the given registry and storage
// gateway.
func NewBroadcaster(registry *Registry, st store.Store) *Broadcaster {
	return &Broadcaster{registry: registry, store: st}
}

// SendToUser writes frame to userID's live connection. It is a no-op when
// the user is offline or the write fails.
func (b *Broadcaster) SendToUser(userID string, frame []byte) {
	handle := b.registry.Lookup(userID)
	if handle == nil {
		return
	}
	_ = handle.WriteMessage(frame)
}

// BroadcastToRoom sends frame to every current member of roomID, skipping
// excludeUserID when non-empty. Membership is resolved through the storage
// gateway at call time, not cached.
func (b *Broadcaster) BroadcastToRoom(ctx context.Context, roomID string, frame []byte, excludeUserID string) {
	members, err := b.store.GetRoomMembers(ctx, roomID)
	if err != nil {
		log.Printf("ws: broadcast to room %s: resolve members: %v", roomID, err)
		return
	}

	sent := 0
	for _, member := range members {
		if member.ID == excludeUserID {
			continue
		}
		handle := b.registry.Lookup(member.ID)
		if handle == nil {
			continue
		}
		if err := handle.WriteMessage(frame); err != nil {
			// Dead connections are cleaned up by their own read loop.
			continue
		}
		sent++
	}
	metrics.BroadcastRecipients.Observe(float64(sent))
}

// BroadcastAll sends frame to every registered connection, skipping
// excludeUserID when non-empty.
func (b *Broadcaster) BroadcastAll(frame []byte, excludeUserID string) {
	conns := b.registry.All()

	sent := 0
	for userID, handle := range conns {
		if userID == excludeUserID {
			continue
		}
		if err := handle.WriteMessage(frame); err != nil {
			continue
		}
		sent++
	}
	metrics.BroadcastRecipients.Observe(float64(sent))
}
