package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthMissing means the opening request carried no usable session token.
	ErrAuthMissing = errors.New("realtime: missing session token")
	// ErrAuthInvalid means the session token was rejected by the verifier.
	ErrAuthInvalid = errors.New("realtime: invalid session token")

	// ErrQueueFull is returned by Conn.Enqueue when the outbound queue is saturated.
	ErrQueueFull = errors.New("realtime: outbound queue full")
	// ErrConnClosed is returned by Conn.Enqueue after the connection is closed.
	ErrConnClosed = errors.New("realtime: connection closed")

	// ErrPersisterClosed is returned when submitting after Close.
	ErrPersisterClosed = errors.New("realtime: persister closed")
)

// DeliveryFault reports a failed delivery to a single recipient connection.
// It never aborts fan-out to other recipients.
type DeliveryFault struct {
	ConnID string
	UserID string
	Err    error
}

func (e DeliveryFault) Error() string {
	return fmt.Sprintf("realtime: delivery to conn %s (user %s): %v", e.ConnID, e.UserID, e.Err)
}

func (e DeliveryFault) Unwrap() error { return e.Err }

// PersistenceFault reports a message the store failed to record.
// Live delivery is never rolled back because of it.
type PersistenceFault struct {
	SenderID   string
	ReceiverID string
	Err        error
}

func (e PersistenceFault) Error() string {
	return fmt.Sprintf("realtime: persist message %s->%s: %v", e.SenderID, e.ReceiverID, e.Err)
}

func (e PersistenceFault) Unwrap() error { return e.Err }
