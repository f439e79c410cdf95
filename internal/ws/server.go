package ws

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/metrics"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/ratelimit"
)

// StatusUnauthorized is the close code sent when a connection upgrade cannot
// be authenticated. No data frames are exchanged before the close.
const StatusUnauthorized ws.StatusCode = 4001

// Authenticator validates the credentials attached to an incoming upgrade
// request and yields the user id the connection belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Config holds tunable parameters for the connection layer.
type Config struct {
	WriteTimeout   time.Duration // timeout for outbound frame writes
	MaxConnections int           // hard cap on total connections; 0 = unlimited
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		MaxConnections: 100000,
	}
}

// Server owns the WebSocket upgrade path and the per-connection read loops.
// Each accepted connection runs as one goroutine reading frames in arrival
// order; registration, presence, routing, and teardown all happen on that
// goroutine.
type Server struct {
	config   Config
	auth     Authenticator
	registry *Registry
	presence *Presence
	router   *Router
	limiter  *ratelimit.Limiter
}

// NewServer wires the connection layer together. The limiter may be nil.
func NewServer(config Config, auth Authenticator, registry *Registry, presence *Presence, router *Router, limiter *ratelimit.Limiter) *Server {
	return &Server{
		config:   config,
		auth:     auth,
		registry: registry,
		presence: presence,
		router:   router,
		limiter:  limiter,
	}
}

// Registry exposes the connection registry (the HTTP API serves the online
// users list from it).
func (s *Server) Registry() *Registry {
	return s.registry
}

// HandleUpgrade upgrades an HTTP request to a WebSocket connection and runs
// its read loop. Authentication happens right after the upgrade: a rejected
// connection is closed with status 4001 before any frame is exchanged.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.config.MaxConnections > 0 && s.registry.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if allowed, _ := s.limiter.Allow(r.Context(), host, ratelimit.RuleConnect); !allowed {
			http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
			return
		}
	}

	token := tokenFromRequest(r)

	netConn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	conn := NewConn(netConn, s.config.WriteTimeout)

	userID, err := s.auth.Authenticate(r.Context(), token)
	if err != nil || userID == "" {
		log.Printf("ws: rejecting unauthenticated connection from %s", r.RemoteAddr)
		_ = conn.closeWithStatus(StatusUnauthorized, "Unauthorized")
		return
	}

	// The HTTP handler goroutine is the connection's task for its lifetime.
	s.serve(userID, netConn, conn)
}

// serve is the per-connection loop: register, announce presence, process
// frames in arrival order, and always clean up on the way out no matter how
// the loop exits.
func (s *Server) serve(userID string, netConn net.Conn, conn *Conn) {
	ctx := context.Background()

	s.registry.Register(userID, conn)
	metrics.Connections.Inc()
	log.Printf("ws: user %s connected (online=%d)", userID, s.registry.Count())

	defer func() {
		metrics.Connections.Dec()
		// Deregister only succeeds if this connection is still the user's
		// current one; a replaced connection must not mark its successor's
		// user offline.
		if s.registry.Deregister(userID, conn) {
			s.presence.HandleDisconnect(ctx, userID)
		}
		_ = conn.Close()
		log.Printf("ws: user %s disconnected (online=%d)", userID, s.registry.Count())
	}()

	s.presence.HandleConnect(ctx, userID, conn)

	for {
		header, reader, err := wsutil.NextReader(netConn, ws.StateServerSide)
		if err != nil {
			return
		}

		if header.OpCode.IsControl() {
			if header.OpCode == ws.OpClose {
				return
			}
			// Ping/pong control frames: drain the payload and move on.
			if _, err := io.Copy(io.Discard, reader); err != nil {
				return
			}
			continue
		}

		data := make([]byte, header.Length)
		if header.Length > 0 {
			if _, err := io.ReadFull(reader, data); err != nil {
				return
			}
		}
		if len(data) == 0 {
			continue
		}

		s.router.HandleFrame(ctx, userID, conn, data)
	}
}

// Shutdown force-closes every live connection. Each connection's read loop
// observes the close and runs its own cleanup.
func (s *Server) Shutdown() {
	for _, handle := range s.registry.All() {
		_ = handle.Close()
	}
	log.Printf("ws: all connections closed")
}

// tokenFromRequest extracts the bearer token from the upgrade request.
// Browsers cannot set headers on WebSocket upgrades, so the token usually
// arrives as a query parameter.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
