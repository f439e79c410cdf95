// Package ws is the real-time connection and message-routing layer. It
// authenticates WebSocket upgrades, tracks which users are online, routes
// inbound frames through authorization and persistence, and fans events out
// to the right set of live connections.
package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Handle is the send side of a live connection as seen by the registry,
// broadcaster, and presence tracker. Tests substitute fakes.
type Handle interface {
	WriteMessage(data []byte) error
	Close() error
}

// Conn is a live WebSocket connection with a write mutex serializing
// outbound frames. A connection belongs to exactly one user for its
// lifetime; the registry owns the mapping.
type Conn struct {
	conn         net.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
}

// NewConn wraps an upgraded network connection. A zero writeTimeout disables
// write deadlines.
func NewConn(conn net.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{conn: conn, writeTimeout: writeTimeout}
}

// WriteMessage sends a WebSocket text frame. The write mutex ensures that
// concurrent goroutines do not interleave frame bytes.
func (c *Conn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return wsutil.WriteServerMessage(c.conn, ws.OpText, data)
}

// Close closes the underlying network connection. Any blocked read on the
// connection's loop returns with an error, which triggers cleanup.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// closeWithStatus writes a close frame with the given status code and reason,
// then closes the connection. Used for the unauthorized close (4001) before
// any data frame is exchanged.
func (c *Conn) closeWithStatus(code ws.StatusCode, reason string) error {
	c.writeMu.Lock()
	frame := ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason))
	err := ws.WriteFrame(c.conn, frame)
	c.writeMu.Unlock()

	if closeErr := c.conn.Close(); err == nil {
		err = closeErr
	}
	return err
}
