package ws

import (
	"bytes"
	"context"
	"testing"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/store"
)

func setupRoom(t *testing.T, st *store.Memory, memberIDs ...string) string {
	t.Helper()
	room, err := st.CreateRoom(context.Background(), store.NewRoom{Name: "general"})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, id := range memberIDs {
		if err := st.AddRoomMember(context.Background(), room.ID, id); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	return room.ID
}

func addUser(t *testing.T, st *store.Memory, email string) string {
	t.Helper()
	user, err := st.CreateUser(context.Background(), email, "hash", "", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user.ID
}

// ---------------------------------------------------------------------------
// Test: SendToUser is a no-op for offline users
// ---------------------------------------------------------------------------

func TestBroadcaster_SendToUser(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, store.NewMemory())

	h := &fakeHandle{}
	registry.Register("alice", h)

	b.SendToUser("alice", []byte(`{"type":"x"}`))
	b.SendToUser("nobody", []byte(`{"type":"x"}`)) // must not panic

	if h.frameCount() != 1 {
		t.Errorf("expected 1 frame, got %d", h.frameCount())
	}
}

// ---------------------------------------------------------------------------
// Test: Room broadcast resolves membership at call time and honors exclusion
// ---------------------------------------------------------------------------

func TestBroadcaster_BroadcastToRoom(t *testing.T) {
	st := store.NewMemory()
	registry := NewRegistry()
	b := NewBroadcaster(registry, st)

	alice := addUser(t, st, "alice@example.com")
	bob := addUser(t, st, "bob@example.com")
	carol := addUser(t, st, "carol@example.com")
	roomID := setupRoom(t, st, alice, bob, carol)

	hAlice := &fakeHandle{}
	hBob := &fakeHandle{}
	registry.Register(alice, hAlice)
	registry.Register(bob, hBob)
	// carol is a member but offline.

	frame := []byte(`{"type":"typing","data":{}}`)
	b.BroadcastToRoom(context.Background(), roomID, frame, alice)

	if hAlice.frameCount() != 0 {
		t.Errorf("excluded user received %d frames", hAlice.frameCount())
	}
	if hBob.frameCount() != 1 {
		t.Errorf("expected bob to receive 1 frame, got %d", hBob.frameCount())
	}
}

// ---------------------------------------------------------------------------
// Test: A dead connection never aborts delivery to the remaining recipients
// ---------------------------------------------------------------------------

func TestBroadcaster_DeadConnectionSkipped(t *testing.T) {
	st := store.NewMemory()
	registry := NewRegistry()
	b := NewBroadcaster(registry, st)

	alice := addUser(t, st, "alice@example.com")
	bob := addUser(t, st, "bob@example.com")
	carol := addUser(t, st, "carol@example.com")
	roomID := setupRoom(t, st, alice, bob, carol)

	hAlice := &fakeHandle{}
	hBob := &fakeHandle{broken: true}
	hCarol := &fakeHandle{}
	registry.Register(alice, hAlice)
	registry.Register(bob, hBob)
	registry.Register(carol, hCarol)

	b.BroadcastToRoom(context.Background(), roomID, []byte(`{"type":"x"}`), "")

	if hAlice.frameCount() != 1 || hCarol.frameCount() != 1 {
		t.Errorf("live recipients should receive the frame: alice=%d carol=%d",
			hAlice.frameCount(), hCarol.frameCount())
	}
}

// ---------------------------------------------------------------------------
// Test: BroadcastAll reaches every registered connection with identical bytes
// ---------------------------------------------------------------------------

func TestBroadcaster_BroadcastAll(t *testing.T) {
	registry := NewRegistry()
	b := NewBroadcaster(registry, store.NewMemory())

	handles := map[string]*fakeHandle{
		"alice": {},
		"bob":   {},
		"carol": {},
	}
	for id, h := range handles {
		registry.Register(id, h)
	}

	frame := []byte(`{"type":"presence","data":{"userId":"dave","status":"online"}}`)
	b.BroadcastAll(frame, "carol")

	if handles["carol"].frameCount() != 0 {
		t.Error("excluded user should not receive the broadcast")
	}
	for _, id := range []string{"alice", "bob"} {
		h := handles[id]
		if h.frameCount() != 1 {
			t.Fatalf("%s: expected 1 frame, got %d", id, h.frameCount())
		}
		if !bytes.Equal(h.frames[0], frame) {
			t.Errorf("%s: payload differs from the serialized frame", id)
		}
	}
}
