// Package message persists chat messages and serves conversation history.
package message

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

// ErrInvalidInput is returned for drafts or queries missing required fields.
var ErrInvalidInput = errors.New("message: invalid input")

// Draft is a routed message waiting to be recorded.
type Draft struct {
	Text       string
	Sender     string // sender username
	SenderID   string
	ReceiverID string
	Now        time.Time
}

// Validate checks required fields.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.SenderID) == "" || strings.TrimSpace(d.ReceiverID) == "" {
		return ErrInvalidInput
	}
	if d.Text == "" {
		return ErrInvalidInput
	}
	return nil
}

// Stored is the persisted message record.
type Stored struct {
	ID         string    `json:"_id"`
	Text       string    `json:"text"`
	Sender     string    `json:"sender"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HistoryQuery selects the messages exchanged between two users, in either direction.
type HistoryQuery struct {
	UserID string
	PeerID string
	Limit  int
}

func (q HistoryQuery) normalized() (HistoryQuery, error) {
	q.UserID = strings.TrimSpace(q.UserID)
	q.PeerID = strings.TrimSpace(q.PeerID)
	if q.UserID == "" || q.PeerID == "" {
		return HistoryQuery{}, ErrInvalidInput
	}
	if q.Limit <= 0 {
		q.Limit = defaultHistoryLimit
	}
	if q.Limit > maxHistoryLimit {
		q.Limit = maxHistoryLimit
	}
	return q, nil
}

// Store is the append-only message persistence boundary.
//
// Save records exactly what it is given; deduplication is not its concern.
// History returns messages ordered by CreatedAt ascending (oldest first),
// keeping the most recent Limit entries.
type Store interface {
	Save(ctx context.Context, d Draft) (Stored, error)
	History(ctx context.Context, q HistoryQuery) ([]Stored, error)
	Close(ctx context.Context) error
}

func draftTime(d Draft) time.Time {
	if d.Now.IsZero() {
		return time.Now().UTC()
	}
	return d.Now.UTC()
}
