package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ProfMYK/chatappapi/cmd/internal/message"
)

const (
	persistDefaultWorkers = 4
	persistDefaultQueue   = 1024
	persistDefaultTimeout = 5 * time.Second
)

// PersisterConfig sizes the write-behind pool.
type PersisterConfig struct {
	Workers     int
	QueueSize   int
	SaveTimeout time.Duration
}

// Persister records routed messages off the read path.
//
// Submit never blocks the caller: when the queue is full the draft is saved
// by a dedicated goroutine instead of being dropped, so every accepted
// submission reaches the store exactly once. Close drains both paths.
type Persister struct {
	log     *slog.Logger
	store   message.Store
	metrics *Metrics
	timeout time.Duration

	queue chan message.Draft

	mu     sync.RWMutex
	closed bool

	workers  sync.WaitGroup
	overflow sync.WaitGroup
}

// NewPersister starts cfg.Workers goroutines saving into store.
func NewPersister(log *slog.Logger, store message.Store, cfg PersisterConfig, metrics *Metrics) *Persister {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = persistDefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = persistDefaultQueue
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = persistDefaultTimeout
	}

	p := &Persister{
		log:     log,
		store:   store,
		metrics: metrics,
		timeout: cfg.SaveTimeout,
		queue:   make(chan message.Draft, cfg.QueueSize),
	}

	p.workers.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go func() {
			defer p.workers.Done()
			for d := range p.queue {
				p.save(d)
				p.metrics.queueDepth(len(p.queue))
			}
		}()
	}
	return p
}

// Submit schedules d for persistence.
func (p *Persister) Submit(d message.Draft) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPersisterClosed
	}

	select {
	case p.queue <- d:
		p.metrics.queueDepth(len(p.queue))
	default:
		p.overflow.Add(1)
		go func() {
			defer p.overflow.Done()
			p.save(d)
		}()
	}
	return nil
}

// Close stops accepting drafts and waits for pending saves or ctx expiry.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		p.overflow.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.log.Error("persist.drain.timeout", "pending", len(p.queue))
		return ctx.Err()
	}
}

func (p *Persister) save(d message.Draft) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	_, err := p.store.Save(ctx, d)
	p.metrics.persisted(err)
	if err != nil {
		fault := PersistenceFault{SenderID: d.SenderID, ReceiverID: d.ReceiverID, Err: err}
		p.log.Error("persist.fail", "sender_id", d.SenderID, "receiver_id", d.ReceiverID, "err", fault)
	}
}
