package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/protocol"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/store"
)

func newPresenceFixture() (*store.Memory, *Registry, *Presence) {
	st := store.NewMemory()
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, st)
	return st, registry, NewPresence(registry, st, broadcaster, nil)
}

// ---------------------------------------------------------------------------
// Test: A new connection receives `connected` then `online_users`, in that
// order, before anything else; the snapshot excludes the connecting user
// ---------------------------------------------------------------------------

func TestPresence_ConnectFrameOrder(t *testing.T) {
	st, registry, presence := newPresenceFixture()
	ctx := context.Background()

	alice, _ := st.CreateUser(ctx, "alice@example.com", "hash", "", "")
	bob, _ := st.CreateUser(ctx, "bob@example.com", "hash", "", "")

	hBob := &fakeHandle{}
	registry.Register(bob.ID, hBob)

	hAlice := &fakeHandle{}
	registry.Register(alice.ID, hAlice)
	presence.HandleConnect(ctx, alice.ID, hAlice)

	frames := hAlice.decodedFrames(t)
	if len(frames) < 2 {
		t.Fatalf("expected at least 2 frames, got %d", len(frames))
	}
	if frames[0].Type != protocol.TypeConnected {
		t.Fatalf("frame[0]: expected %q, got %q", protocol.TypeConnected, frames[0].Type)
	}
	if frames[1].Type != protocol.TypeOnlineUsers {
		t.Fatalf("frame[1]: expected %q, got %q", protocol.TypeOnlineUsers, frames[1].Type)
	}

	var connected protocol.ConnectedPayload
	if err := json.Unmarshal(frames[0].Data, &connected); err != nil {
		t.Fatalf("decode connected payload: %v", err)
	}
	if connected.UserID != alice.ID {
		t.Errorf("connected payload: expected %s, got %s", alice.ID, connected.UserID)
	}

	var online protocol.OnlineUsersPayload
	if err := json.Unmarshal(frames[1].Data, &online); err != nil {
		t.Fatalf("decode online_users payload: %v", err)
	}
	if len(online.UserIDs) != 1 || online.UserIDs[0] != bob.ID {
		t.Errorf("expected snapshot [%s], got %v", bob.ID, online.UserIDs)
	}
}

// ---------------------------------------------------------------------------
// Test: Connect broadcasts presence online to the other connections and
// marks the user online in storage
// ---------------------------------------------------------------------------

func TestPresence_ConnectBroadcast(t *testing.T) {
	st, registry, presence := newPresenceFixture()
	ctx := context.Background()

	alice, _ := st.CreateUser(ctx, "alice@example.com", "hash", "", "")
	bob, _ := st.CreateUser(ctx, "bob@example.com", "hash", "", "")

	hBob := &fakeHandle{}
	registry.Register(bob.ID, hBob)

	hAlice := &fakeHandle{}
	registry.Register(alice.ID, hAlice)
	presence.HandleConnect(ctx, alice.ID, hAlice)

	presenceFrames := hBob.framesOfType(t, protocol.TypePresence)
	if len(presenceFrames) != 1 {
		t.Fatalf("expected 1 presence frame for bob, got %d", len(presenceFrames))
	}
	var payload protocol.PresencePayload
	if err := json.Unmarshal(presenceFrames[0].Data, &payload); err != nil {
		t.Fatalf("decode presence payload: %v", err)
	}
	if payload.UserID != alice.ID || payload.Status != store.StatusOnline {
		t.Errorf("unexpected presence payload: %+v", payload)
	}

	// The connecting user must not receive its own presence broadcast.
	if len(hAlice.framesOfType(t, protocol.TypePresence)) != 0 {
		t.Error("connecting user received its own presence broadcast")
	}

	stored, _ := st.GetUser(ctx, alice.ID)
	if stored.Status != store.StatusOnline {
		t.Errorf("expected stored status online, got %q", stored.Status)
	}
}

// ---------------------------------------------------------------------------
// Test: Disconnect broadcasts presence offline to the remaining connections
// ---------------------------------------------------------------------------

func TestPresence_Disconnect(t *testing.T) {
	st, registry, presence := newPresenceFixture()
	ctx := context.Background()

	alice, _ := st.CreateUser(ctx, "alice@example.com", "hash", "", "")
	bob, _ := st.CreateUser(ctx, "bob@example.com", "hash", "", "")

	hBob := &fakeHandle{}
	registry.Register(bob.ID, hBob)

	hAlice := &fakeHandle{}
	registry.Register(alice.ID, hAlice)
	registry.Deregister(alice.ID, hAlice)
	presence.HandleDisconnect(ctx, alice.ID)

	frames := hBob.framesOfType(t, protocol.TypePresence)
	if len(frames) != 1 {
		t.Fatalf("expected 1 presence frame, got %d", len(frames))
	}
	var payload protocol.PresencePayload
	if err := json.Unmarshal(frames[0].Data, &payload); err != nil {
		t.Fatalf("decode presence payload: %v", err)
	}
	if payload.UserID != alice.ID || payload.Status != store.StatusOffline {
		t.Errorf("unexpected presence payload: %+v", payload)
	}

	if registry.Lookup(alice.ID) != nil {
		t.Error("expected lookup to return nothing after disconnect")
	}
	stored, _ := st.GetUser(ctx, alice.ID)
	if stored.Status != store.StatusOffline {
		t.Errorf("expected stored status offline, got %q", stored.Status)
	}
}

// ---------------------------------------------------------------------------
// Test: Storage failure on the status write does not prevent the connection
// frames from being delivered
// ---------------------------------------------------------------------------

type failingStatusStore struct {
	*store.Memory
}

func (f *failingStatusStore) UpdateUserStatus(ctx context.Context, id, status string) error {
	return context.DeadlineExceeded
}

func TestPresence_ConnectSurvivesStatusWriteFailure(t *testing.T) {
	mem := store.NewMemory()
	st := &failingStatusStore{Memory: mem}
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, st)
	presence := NewPresence(registry, st, broadcaster, nil)
	ctx := context.Background()

	alice, _ := mem.CreateUser(ctx, "alice@example.com", "hash", "", "")

	h := &fakeHandle{}
	registry.Register(alice.ID, h)
	presence.HandleConnect(ctx, alice.ID, h)

	frames := h.decodedFrames(t)
	if len(frames) < 2 || frames[0].Type != protocol.TypeConnected {
		t.Fatalf("expected connected frames despite storage failure, got %+v", frames)
	}
}
