package realtime

import (
	"sync"
	"time"

	"github.com/ProfMYK/chatappapi/cmd/identity/ids"
	"github.com/ProfMYK/chatappapi/cmd/internal/auth/session"
)

// Conn is one authenticated realtime connection.
//
// The outbound queue is never closed by the server; done signals shutdown.
// Close is idempotent.
type Conn struct {
	ID       string
	Identity session.Identity

	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// NewConn constructs a Conn with a bounded outbound queue and a fresh ULID.
func NewConn(ident session.Identity, queueSize int) *Conn {
	if queueSize <= 0 {
		queueSize = wsDefaultSendQueueSize
	}
	return &Conn{
		ID:       ids.MustULID(time.Now().UTC()),
		Identity: ident,
		send:     make(chan []byte, queueSize),
		done:     make(chan struct{}),
	}
}

// UserID is shorthand for c.Identity.UserID.
func (c *Conn) UserID() string { return c.Identity.UserID }

// Enqueue hands a frame to the connection's writer without blocking.
func (c *Conn) Enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrQueueFull
	}
}

// Outbound is drained by the writer goroutine.
func (c *Conn) Outbound() <-chan []byte { return c.send }

// Done returns a channel that is closed when the connection is shutting down.
func (c *Conn) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the connection goroutines to stop.
func (c *Conn) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
