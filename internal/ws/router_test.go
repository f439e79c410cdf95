package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/protocol"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/store"
)

type routerFixture struct {
	store    *store.Memory
	registry *Registry
	router   *Router
}

func newRouterFixture() *routerFixture {
	st := store.NewMemory()
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, st)
	return &routerFixture{
		store:    st,
		registry: registry,
		router:   NewRouter(st, broadcaster, nil, nil),
	}
}

func (f *routerFixture) connectUser(t *testing.T, email string) (string, *fakeHandle) {
	t.Helper()
	user, err := f.store.CreateUser(context.Background(), email, "hash", "", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	h := &fakeHandle{}
	f.registry.Register(user.ID, h)
	return user.ID, h
}

func (f *routerFixture) createRoom(t *testing.T, name string, private bool, memberIDs ...string) string {
	t.Helper()
	room, err := f.store.CreateRoom(context.Background(), store.NewRoom{Name: name, IsPrivate: private})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, id := range memberIDs {
		if err := f.store.AddRoomMember(context.Background(), room.ID, id); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	return room.ID
}

// ---------------------------------------------------------------------------
// Test: Private room message by a non-member: exactly one error frame to the
// sender, zero broadcasts, zero persisted messages
// ---------------------------------------------------------------------------

func TestRouter_PrivateRoomNonMemberRejected(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	alice, hAlice := f.connectUser(t, "alice@example.com")
	bob, hBob := f.connectUser(t, "bob@example.com")
	roomID := f.createRoom(t, "secret", true, alice)

	f.router.HandleFrame(ctx, bob, hBob,
		[]byte(`{"type":"message","content":"let me in","roomId":"`+roomID+`"}`))

	errs := hBob.framesOfType(t, protocol.TypeError)
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 error frame, got %d", len(errs))
	}
	if errs[0].Message != "Not a member of this room" {
		t.Errorf("unexpected error message %q", errs[0].Message)
	}
	if hAlice.frameCount() != 0 {
		t.Errorf("member received %d frames, want 0", hAlice.frameCount())
	}
	msgs, _ := f.store.GetRoomMessages(ctx, roomID, 0)
	if len(msgs) != 0 {
		t.Errorf("expected no persisted messages, got %d", len(msgs))
	}
}

// ---------------------------------------------------------------------------
// Test: Public room message by a non-member succeeds, is persisted, and is
// delivered to every member plus the sender
// ---------------------------------------------------------------------------

func TestRouter_PublicRoomNonMemberDelivered(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	alice, hAlice := f.connectUser(t, "alice@example.com")
	bob, hBob := f.connectUser(t, "bob@example.com")
	roomID := f.createRoom(t, "lobby", false, alice)

	f.router.HandleFrame(ctx, bob, hBob,
		[]byte(`{"type":"message","content":"hi","roomId":"`+roomID+`"}`))

	msgs, _ := f.store.GetRoomMessages(ctx, roomID, 0)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(msgs))
	}
	if msgs[0].SenderID != bob || msgs[0].RoomID != roomID || msgs[0].Content != "hi" {
		t.Errorf("unexpected persisted message: %+v", msgs[0].Message)
	}

	for name, h := range map[string]*fakeHandle{"member": hAlice, "sender": hBob} {
		delivered := h.framesOfType(t, protocol.TypeMessage)
		if len(delivered) != 1 {
			t.Fatalf("%s: expected 1 message frame, got %d", name, len(delivered))
		}
		var hydrated store.MessageWithSender
		if err := json.Unmarshal(delivered[0].Data, &hydrated); err != nil {
			t.Fatalf("%s: decode message payload: %v", name, err)
		}
		if hydrated.Content != "hi" || hydrated.Sender.ID != bob {
			t.Errorf("%s: unexpected payload content=%q sender=%q", name, hydrated.Content, hydrated.Sender.ID)
		}
	}
}

// ---------------------------------------------------------------------------
// Test: A member's own room message comes back to them (their UI reflects
// persisted state) exactly once
// ---------------------------------------------------------------------------

func TestRouter_MemberSenderReceivesOwnMessageOnce(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	alice, hAlice := f.connectUser(t, "alice@example.com")
	roomID := f.createRoom(t, "lobby", false, alice)

	f.router.HandleFrame(ctx, alice, hAlice,
		[]byte(`{"type":"message","content":"echo","roomId":"`+roomID+`"}`))

	if n := len(hAlice.framesOfType(t, protocol.TypeMessage)); n != 1 {
		t.Errorf("expected sender to receive exactly 1 message frame, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// Test: Both or neither target set never persists or broadcasts
// ---------------------------------------------------------------------------

func TestRouter_MessageTargetValidation(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	alice, hAlice := f.connectUser(t, "alice@example.com")
	bob, _ := f.connectUser(t, "bob@example.com")
	roomID := f.createRoom(t, "lobby", false, alice)
	conv, _ := f.store.FindOrCreateConversation(ctx, alice, bob)

	cases := []string{
		`{"type":"message","content":"x"}`,
		`{"type":"message","content":"x","roomId":"` + roomID + `","conversationId":"` + conv.ID + `"}`,
	}
	for _, payload := range cases {
		f.router.HandleFrame(ctx, alice, hAlice, []byte(payload))
	}

	errs := hAlice.framesOfType(t, protocol.TypeError)
	if len(errs) != len(cases) {
		t.Fatalf("expected %d error frames, got %d", len(cases), len(errs))
	}
	roomMsgs, _ := f.store.GetRoomMessages(ctx, roomID, 0)
	convMsgs, _ := f.store.GetConversationMessages(ctx, conv.ID, 0)
	if len(roomMsgs)+len(convMsgs) != 0 {
		t.Errorf("expected no persisted messages, got %d", len(roomMsgs)+len(convMsgs))
	}
}

// ---------------------------------------------------------------------------
// Test: Unknown room and conversation targets produce sender-only errors
// ---------------------------------------------------------------------------

func TestRouter_MissingTargets(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	alice, hAlice := f.connectUser(t, "alice@example.com")

	f.router.HandleFrame(ctx, alice, hAlice,
		[]byte(`{"type":"message","content":"x","roomId":"nope"}`))
	f.router.HandleFrame(ctx, alice, hAlice,
		[]byte(`{"type":"message","content":"x","conversationId":"nope"}`))

	errs := hAlice.framesOfType(t, protocol.TypeError)
	if len(errs) != 2 {
		t.Fatalf("expected 2 error frames, got %d", len(errs))
	}
	if errs[0].Message != "Room not found" {
		t.Errorf("unexpected room error %q", errs[0].Message)
	}
	if errs[1].Message != "Conversation not found" {
		t.Errorf("unexpected conversation error %q", errs[1].Message)
	}
}

// ---------------------------------------------------------------------------
// Test: Conversation messages go to both participants individually and only
// participants may send
// ---------------------------------------------------------------------------

func TestRouter_ConversationMessage(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	alice, hAlice := f.connectUser(t, "alice@example.com")
	bob, hBob := f.connectUser(t, "bob@example.com")
	mallory, hMallory := f.connectUser(t, "mallory@example.com")
	conv, _ := f.store.FindOrCreateConversation(ctx, alice, bob)

	f.router.HandleFrame(ctx, alice, hAlice,
		[]byte(`{"type":"message","content":"psst","conversationId":"`+conv.ID+`"}`))

	for name, h := range map[string]*fakeHandle{"sender": hAlice, "recipient": hBob} {
		if n := len(h.framesOfType(t, protocol.TypeMessage)); n != 1 {
			t.Errorf("%s: expected 1 message frame, got %d", name, n)
		}
	}
	if hMallory.frameCount() != 0 {
		t.Errorf("outsider received %d frames", hMallory.frameCount())
	}

	// Outsiders cannot post into the conversation.
	f.router.HandleFrame(ctx, mallory, hMallory,
		[]byte(`{"type":"message","content":"hijack","conversationId":"`+conv.ID+`"}`))
	errs := hMallory.framesOfType(t, protocol.TypeError)
	if len(errs) != 1 || errs[0].Message != "Not a participant in this conversation" {
		t.Fatalf("expected participant rejection, got %+v", errs)
	}
	msgs, _ := f.store.GetConversationMessages(ctx, conv.ID, 0)
	if len(msgs) != 1 {
		t.Errorf("expected 1 persisted message, got %d", len(msgs))
	}
}

// ---------------------------------------------------------------------------
// Test: Room typing reaches every other member exactly once, never the sender
// ---------------------------------------------------------------------------

func TestRouter_TypingRoom(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	alice, hAlice := f.connectUser(t, "alice@example.com")
	bob, hBob := f.connectUser(t, "bob@example.com")
	carol, hCarol := f.connectUser(t, "carol@example.com")
	roomID := f.createRoom(t, "lobby", false, alice, bob, carol)

	f.router.HandleFrame(ctx, alice, hAlice,
		[]byte(`{"type":"typing","roomId":"`+roomID+`","isTyping":true}`))

	if n := len(hAlice.framesOfType(t, protocol.TypeTyping)); n != 0 {
		t.Errorf("sender received %d typing frames, want 0", n)
	}
	for name, h := range map[string]*fakeHandle{"bob": hBob, "carol": hCarol} {
		frames := h.framesOfType(t, protocol.TypeTyping)
		if len(frames) != 1 {
			t.Fatalf("%s: expected 1 typing frame, got %d", name, len(frames))
		}
		var payload protocol.TypingPayload
		if err := json.Unmarshal(frames[0].Data, &payload); err != nil {
			t.Fatalf("%s: decode typing payload: %v", name, err)
		}
		if payload.UserID != alice || !payload.IsTyping || payload.RoomID != roomID {
			t.Errorf("%s: unexpected typing payload: %+v", name, payload)
		}
	}
}

// ---------------------------------------------------------------------------
// Test: Conversation typing goes only to the other participant; nothing is
// persisted
// ---------------------------------------------------------------------------

func TestRouter_TypingConversation(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	alice, hAlice := f.connectUser(t, "alice@example.com")
	bob, hBob := f.connectUser(t, "bob@example.com")
	conv, _ := f.store.FindOrCreateConversation(ctx, alice, bob)

	f.router.HandleFrame(ctx, alice, hAlice,
		[]byte(`{"type":"typing","conversationId":"`+conv.ID+`","isTyping":false}`))

	frames := hBob.framesOfType(t, protocol.TypeTyping)
	if len(frames) != 1 {
		t.Fatalf("expected 1 typing frame for bob, got %d", len(frames))
	}
	var payload protocol.TypingPayload
	if err := json.Unmarshal(frames[0].Data, &payload); err != nil {
		t.Fatalf("decode typing payload: %v", err)
	}
	if payload.IsTyping {
		t.Error("expected isTyping false to be relayed as-is")
	}
	if n := len(hAlice.framesOfType(t, protocol.TypeTyping)); n != 0 {
		t.Errorf("sender received %d typing frames", n)
	}
	msgs, _ := f.store.GetConversationMessages(ctx, conv.ID, 0)
	if len(msgs) != 0 {
		t.Errorf("typing must never persist, found %d messages", len(msgs))
	}
}

// ---------------------------------------------------------------------------
// Test: join_room adds membership to public rooms and announces the join;
// private rooms ignore the request
// ---------------------------------------------------------------------------

func TestRouter_JoinRoom(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	alice, hAlice := f.connectUser(t, "alice@example.com")
	bob, hBob := f.connectUser(t, "bob@example.com")
	publicID := f.createRoom(t, "lobby", false, alice)
	privateID := f.createRoom(t, "secret", true, alice)

	f.router.HandleFrame(ctx, bob, hBob,
		[]byte(`{"type":"join_room","roomId":"`+publicID+`"}`))

	isMember, _ := f.store.IsRoomMember(ctx, publicID, bob)
	if !isMember {
		t.Fatal("expected bob to become a member of the public room")
	}
	// Both current members (alice and the freshly joined bob) see the join.
	for name, h := range map[string]*fakeHandle{"alice": hAlice, "bob": hBob} {
		if n := len(h.framesOfType(t, protocol.TypeUserJoined)); n != 1 {
			t.Errorf("%s: expected 1 user_joined frame, got %d", name, n)
		}
	}

	f.router.HandleFrame(ctx, bob, hBob,
		[]byte(`{"type":"join_room","roomId":"`+privateID+`"}`))
	isMember, _ = f.store.IsRoomMember(ctx, privateID, bob)
	if isMember {
		t.Error("join_room must not grant private room membership")
	}

	f.router.HandleFrame(ctx, bob, hBob,
		[]byte(`{"type":"join_room","roomId":"missing"}`))
	errs := hBob.framesOfType(t, protocol.TypeError)
	if len(errs) != 1 || errs[0].Message != "Room not found" {
		t.Errorf("expected a room-not-found error, got %+v", errs)
	}
}

// ---------------------------------------------------------------------------
// Test: leave_room is idempotent and announces the departure to the
// remaining members
// ---------------------------------------------------------------------------

func TestRouter_LeaveRoom(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	alice, hAlice := f.connectUser(t, "alice@example.com")
	bob, hBob := f.connectUser(t, "bob@example.com")
	roomID := f.createRoom(t, "lobby", false, alice, bob)

	f.router.HandleFrame(ctx, bob, hBob,
		[]byte(`{"type":"leave_room","roomId":"`+roomID+`"}`))

	isMember, _ := f.store.IsRoomMember(ctx, roomID, bob)
	if isMember {
		t.Fatal("expected bob to no longer be a member")
	}
	frames := hAlice.framesOfType(t, protocol.TypeUserLeft)
	if len(frames) != 1 {
		t.Fatalf("expected 1 user_left frame for alice, got %d", len(frames))
	}
	var payload protocol.UserLeftPayload
	if err := json.Unmarshal(frames[0].Data, &payload); err != nil {
		t.Fatalf("decode user_left payload: %v", err)
	}
	if payload.RoomID != roomID || payload.UserID != bob {
		t.Errorf("unexpected user_left payload: %+v", payload)
	}

	// Leaving again is a no-op, not an error.
	f.router.HandleFrame(ctx, bob, hBob,
		[]byte(`{"type":"leave_room","roomId":"`+roomID+`"}`))
	if n := len(hBob.framesOfType(t, protocol.TypeError)); n != 0 {
		t.Errorf("idempotent leave produced %d error frames", n)
	}
}

// ---------------------------------------------------------------------------
// Test: Unknown frame types and malformed data are ignored without closing
// the connection or emitting errors
// ---------------------------------------------------------------------------

func TestRouter_UnknownAndMalformedFrames(t *testing.T) {
	f := newRouterFixture()
	ctx := context.Background()

	alice, hAlice := f.connectUser(t, "alice@example.com")

	f.router.HandleFrame(ctx, alice, hAlice, []byte(`{"type":"video_call","roomId":"x"}`))
	f.router.HandleFrame(ctx, alice, hAlice, []byte(`this is not json`))
	f.router.HandleFrame(ctx, alice, hAlice, []byte(`{"no":"type"}`))

	if hAlice.frameCount() != 0 {
		t.Errorf("expected no frames back, got %d", hAlice.frameCount())
	}
	if hAlice.isClosed() {
		t.Error("bad frames must not close the connection")
	}

	// The connection keeps working afterwards.
	f.router.HandleFrame(ctx, alice, hAlice, []byte(`{"type":"ping"}`))
	if n := len(hAlice.framesOfType(t, protocol.TypePong)); n != 1 {
		t.Errorf("expected 1 pong after bad frames, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// Test: A storage failure during persistence yields no partial broadcast
// ---------------------------------------------------------------------------

type failingCreateStore struct {
	*store.Memory
}

func (f *failingCreateStore) CreateMessage(ctx context.Context, msg store.NewMessage) (*store.Message, error) {
	return nil, context.DeadlineExceeded
}

func TestRouter_PersistFailureNoBroadcast(t *testing.T) {
	mem := store.NewMemory()
	st := &failingCreateStore{Memory: mem}
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, st)
	router := NewRouter(st, broadcaster, nil, nil)
	ctx := context.Background()

	alice, _ := mem.CreateUser(ctx, "alice@example.com", "hash", "", "")
	bob, _ := mem.CreateUser(ctx, "bob@example.com", "hash", "", "")
	room, _ := mem.CreateRoom(ctx, store.NewRoom{Name: "lobby"})
	_ = mem.AddRoomMember(ctx, room.ID, alice.ID)
	_ = mem.AddRoomMember(ctx, room.ID, bob.ID)

	hAlice := &fakeHandle{}
	hBob := &fakeHandle{}
	registry.Register(alice.ID, hAlice)
	registry.Register(bob.ID, hBob)

	router.HandleFrame(ctx, alice.ID, hAlice,
		[]byte(`{"type":"message","content":"lost","roomId":"`+room.ID+`"}`))

	if hAlice.frameCount() != 0 || hBob.frameCount() != 0 {
		t.Errorf("persist failure must not broadcast: alice=%d bob=%d",
			hAlice.frameCount(), hBob.frameCount())
	}
}
