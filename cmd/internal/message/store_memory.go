package message

import (
	"context"
	"sort"
	"sync"

	"github.com/ProfMYK/chatappapi/cmd/identity/ids"
)

const memMaxMessages = 100_000

// MemoryStore is the dev fallback when no database is configured.
type MemoryStore struct {
	mu   sync.Mutex
	msgs []Stored
}

// NewMemoryStore constructs an in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{msgs: make([]Stored, 0, 256)}
}

// Close is a no-op.
func (s *MemoryStore) Close(_ context.Context) error { return nil }

// Save appends a message.
func (s *MemoryStore) Save(ctx context.Context, d Draft) (Stored, error) {
	if err := d.Validate(); err != nil {
		return Stored{}, err
	}
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}

	now := draftTime(d)
	m := Stored{
		ID:         ids.MustULID(now),
		Text:       d.Text,
		Sender:     d.Sender,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	s.msgs = append(s.msgs, m)
	if len(s.msgs) > memMaxMessages {
		s.msgs = s.msgs[len(s.msgs)-memMaxMessages:]
	}
	s.mu.Unlock()

	return m, nil
}

// History returns the conversation between q.UserID and q.PeerID.
func (s *MemoryStore) History(ctx context.Context, q HistoryQuery) ([]Stored, error) {
	q, err := q.normalized()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := make([]Stored, 0, 32)
	for _, m := range s.msgs {
		if between(m, q.UserID, q.PeerID) {
			out = append(out, m)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out, nil
}

// Len reports the number of stored messages.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func between(m Stored, a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}
