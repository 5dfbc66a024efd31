package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/ProfMYK/chatappapi/cmd/internal/message"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gatedStore wraps a MemoryStore; Save blocks while the gate is closed and
// can be made to fail.
type gatedStore struct {
	*message.MemoryStore

	gate chan struct{}
	once sync.Once
	fail error
}

func newGatedStore(open bool) *gatedStore {
	s := &gatedStore{MemoryStore: message.NewMemoryStore(), gate: make(chan struct{})}
	if open {
		s.release()
	}
	return s
}

func (s *gatedStore) release() { s.once.Do(func() { close(s.gate) }) }

func (s *gatedStore) Save(ctx context.Context, d message.Draft) (message.Stored, error) {
	select {
	case <-s.gate:
	case <-ctx.Done():
		return message.Stored{}, ctx.Err()
	}
	if s.fail != nil {
		return message.Stored{}, s.fail
	}
	return s.MemoryStore.Save(ctx, d)
}

var errStoreDown = errors.New("store down")
