package ws

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/messaging"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/metrics"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/protocol"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/ratelimit"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/store"
)

// Error messages sent back to the offending sender. Never broadcast.
const (
	errRoomNotFound         = "Room not found"
	errNotRoomMember        = "Not a member of this room"
	errConversationNotFound = "Conversation not found"
	errNotParticipant       = "Not a participant in this conversation"
	errBadTarget            = "Message must target exactly one of roomId or conversationId"
	errRateLimited          = "Rate limit exceeded"
)

// Router is the protocol state machine behind every authenticated
// connection. It decodes inbound frames once at the boundary, applies
// authorization against the storage gateway, persists effects, and hands the
// computed recipient set to the broadcaster. A failure while processing one
// frame never tears down the connection.
type Router struct {
	store       store.Store
	broadcaster *Broadcaster
	limiter     *ratelimit.Limiter
	events      *messaging.Publisher
}

// NewRouter creates a Router. The limiter and events publisher may be nil.
func NewRouter(st store.Store, broadcaster *Broadcaster, limiter *ratelimit.Limiter, events *messaging.Publisher) *Router {
	return &Router{
		store:       st,
		broadcaster: broadcaster,
		limiter:     limiter,
		events:      events,
	}
}

// HandleFrame processes one inbound frame from userID's connection. Frames
// from a single connection arrive here strictly in order; suspension happens
// only on storage calls.
func (rt *Router) HandleFrame(ctx context.Context, userID string, handle Handle, data []byte) {
	frameType, msg, err := protocol.ParseClientFrame(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			// Forward compatibility: unknown frame types are ignored.
			metrics.FramesTotal.WithLabelValues("ignored").Inc()
			return
		}
		log.Printf("ws: discarding malformed frame from %s: %v", userID, err)
		metrics.FramesTotal.WithLabelValues("malformed").Inc()
		return
	}

	switch frame := msg.(type) {
	case protocol.MessageFrame:
		rt.handleMessage(ctx, userID, handle, frame)
	case protocol.TypingFrame:
		rt.handleTyping(ctx, userID, frame)
	case protocol.JoinRoomFrame:
		rt.handleJoinRoom(ctx, userID, handle, frame)
	case protocol.LeaveRoomFrame:
		rt.handleLeaveRoom(ctx, userID, frame)
	case protocol.PingFrame:
		rt.sendPong(handle)
	default:
		// Parsed but unhandled types should not happen; treat like unknown.
		log.Printf("ws: no handler for frame type %q", frameType)
		metrics.FramesTotal.WithLabelValues("ignored").Inc()
	}
}

// handleMessage validates, persists, hydrates, and broadcasts a chat
// message, strictly in that order: a failure before broadcast guarantees no
// recipient sees the message.
func (rt *Router) handleMessage(ctx context.Context, userID string, handle Handle, frame protocol.MessageFrame) {
	if allowed, _ := rt.limiter.Allow(ctx, userID, ratelimit.RuleMessage); !allowed {
		rt.sendError(handle, errRateLimited)
		metrics.FramesTotal.WithLabelValues("rate_limited").Inc()
		return
	}

	hasRoom := frame.RoomID != ""
	hasConversation := frame.ConversationID != ""
	if hasRoom == hasConversation {
		rt.sendError(handle, errBadTarget)
		metrics.FramesTotal.WithLabelValues("rejected").Inc()
		return
	}

	// Sender-echo bookkeeping for public rooms: a non-member may post to a
	// public room, and the sender must still see its own persisted message
	// even though the member fan-out will not include it.
	senderIsMember := false

	if hasRoom {
		room, err := rt.store.GetRoom(ctx, frame.RoomID)
		if err != nil {
			log.Printf("ws: message from %s: get room %s: %v", userID, frame.RoomID, err)
			return
		}
		if room == nil {
			rt.sendError(handle, errRoomNotFound)
			metrics.FramesTotal.WithLabelValues("rejected").Inc()
			return
		}

		senderIsMember, err = rt.store.IsRoomMember(ctx, frame.RoomID, userID)
		if err != nil {
			log.Printf("ws: message from %s: membership check: %v", userID, err)
			return
		}
		if room.IsPrivate && !senderIsMember {
			rt.sendError(handle, errNotRoomMember)
			metrics.FramesTotal.WithLabelValues("rejected").Inc()
			return
		}
	}

	var conversation *store.Conversation
	if hasConversation {
		var err error
		conversation, err = rt.store.GetConversation(ctx, frame.ConversationID)
		if err != nil {
			log.Printf("ws: message from %s: get conversation %s: %v", userID, frame.ConversationID, err)
			return
		}
		if conversation == nil {
			rt.sendError(handle, errConversationNotFound)
			metrics.FramesTotal.WithLabelValues("rejected").Inc()
			return
		}
		if !conversation.HasParticipant(userID) {
			rt.sendError(handle, errNotParticipant)
			metrics.FramesTotal.WithLabelValues("rejected").Inc()
			return
		}
	}

	created, err := rt.store.CreateMessage(ctx, store.NewMessage{
		Content:        frame.Content,
		SenderID:       userID,
		RoomID:         frame.RoomID,
		ConversationID: frame.ConversationID,
	})
	if err != nil {
		log.Printf("ws: message from %s: persist: %v", userID, err)
		return
	}

	// Hydrate before broadcast so recipients never see an unresolved sender.
	hydrated, err := rt.store.GetMessage(ctx, created.ID)
	if err != nil || hydrated == nil {
		log.Printf("ws: message %s: hydrate: %v", created.ID, err)
		return
	}

	out, err := protocol.NewServerFrame(protocol.TypeMessage, hydrated)
	if err != nil {
		log.Printf("ws: message %s: serialize: %v", created.ID, err)
		return
	}

	if hasRoom {
		rt.broadcaster.BroadcastToRoom(ctx, frame.RoomID, out, "")
		if !senderIsMember {
			rt.broadcaster.SendToUser(userID, out)
		}
		metrics.MessagesPersisted.WithLabelValues("room").Inc()
	} else {
		rt.broadcaster.SendToUser(conversation.Participant1ID, out)
		rt.broadcaster.SendToUser(conversation.Participant2ID, out)
		metrics.MessagesPersisted.WithLabelValues("conversation").Inc()
	}
	metrics.FramesTotal.WithLabelValues("handled").Inc()

	rt.events.PublishMessageCreated(messaging.MessageEvent{
		MessageID:      created.ID,
		SenderID:       userID,
		RoomID:         frame.RoomID,
		ConversationID: frame.ConversationID,
		Content:        frame.Content,
		Ts:             time.Now().Unix(),
	})
}

// handleTyping relays a typing signal. Nothing is persisted and no
// authorization is applied beyond resolving the target's recipient set; the
// server does not track or expire typing state itself.
func (rt *Router) handleTyping(ctx context.Context, userID string, frame protocol.TypingFrame) {
	out, err := protocol.NewServerFrame(protocol.TypeTyping, protocol.TypingPayload{
		UserID:         userID,
		RoomID:         frame.RoomID,
		ConversationID: frame.ConversationID,
		IsTyping:       frame.IsTyping,
	})
	if err != nil {
		return
	}

	switch {
	case frame.RoomID != "":
		rt.broadcaster.BroadcastToRoom(ctx, frame.RoomID, out, userID)
	case frame.ConversationID != "":
		conversation, err := rt.store.GetConversation(ctx, frame.ConversationID)
		if err != nil || conversation == nil {
			return
		}
		other := conversation.OtherParticipant(userID)
		if other == "" {
			return
		}
		rt.broadcaster.SendToUser(other, out)
	}
	metrics.FramesTotal.WithLabelValues("handled").Inc()
}

// handleJoinRoom adds the user to a public room and announces the join to
// the room's members. Private rooms only gain members through an invitation
// path outside this layer, so join requests against them are ignored.
func (rt *Router) handleJoinRoom(ctx context.Context, userID string, handle Handle, frame protocol.JoinRoomFrame) {
	room, err := rt.store.GetRoom(ctx, frame.RoomID)
	if err != nil {
		log.Printf("ws: join from %s: get room %s: %v", userID, frame.RoomID, err)
		return
	}
	if room == nil {
		rt.sendError(handle, errRoomNotFound)
		metrics.FramesTotal.WithLabelValues("rejected").Inc()
		return
	}
	if room.IsPrivate {
		return
	}

	if err := rt.store.AddRoomMember(ctx, frame.RoomID, userID); err != nil {
		log.Printf("ws: join from %s: add member: %v", userID, err)
		return
	}

	user, err := rt.store.GetUser(ctx, userID)
	if err != nil {
		log.Printf("ws: join from %s: get user: %v", userID, err)
		return
	}

	out, err := protocol.NewServerFrame(protocol.TypeUserJoined, map[string]interface{}{
		"roomId": frame.RoomID,
		"user":   user,
	})
	if err != nil {
		return
	}
	rt.broadcaster.BroadcastToRoom(ctx, frame.RoomID, out, "")
	metrics.FramesTotal.WithLabelValues("handled").Inc()
}

// handleLeaveRoom removes the membership unconditionally (leaving is
// idempotent) and announces the departure to the remaining members.
func (rt *Router) handleLeaveRoom(ctx context.Context, userID string, frame protocol.LeaveRoomFrame) {
	if err := rt.store.RemoveRoomMember(ctx, frame.RoomID, userID); err != nil {
		log.Printf("ws: leave from %s: remove member: %v", userID, err)
		return
	}

	out, err := protocol.NewServerFrame(protocol.TypeUserLeft, protocol.UserLeftPayload{
		RoomID: frame.RoomID,
		UserID: userID,
	})
	if err != nil {
		return
	}
	rt.broadcaster.BroadcastToRoom(ctx, frame.RoomID, out, "")
	metrics.FramesTotal.WithLabelValues("handled").Inc()
}

// sendError sends an error frame to the offending sender only.
func (rt *Router) sendError(handle Handle, message string) {
	_ = handle.WriteMessage(protocol.NewErrorFrame(message))
}

// sendPong answers a client keepalive ping.
func (rt *Router) sendPong(handle Handle) {
	if out, err := protocol.NewServerFrame(protocol.TypePong, struct{}{}); err == nil {
		_ = handle.WriteMessage(out)
	}
}
