package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	v1 "github.com/ProfMYK/chatappapi/contracts/chat/v1"
)

// Presence pushes the online roster to every registered connection.
//
// Broadcasts are serialized so each connection observes rosters in the same
// order as the registry mutations that caused them.
type Presence struct {
	log      *slog.Logger
	registry *Registry
	metrics  *Metrics

	mu         sync.Mutex
	broadcasts atomic.Int64
}

// NewPresence constructs a Presence over registry.
func NewPresence(log *slog.Logger, registry *Registry, metrics *Metrics) *Presence {
	if log == nil {
		log = slog.Default()
	}
	return &Presence{log: log, registry: registry, metrics: metrics}
}

// NotifyOnline snapshots the registry and sends {type:"contacts"} to each
// connection in it. It returns the number of connections that accepted the frame.
func (p *Presence) NotifyOnline() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := p.registry.Snapshot()
	online := make([]v1.OnlineUser, 0, len(snap))
	for _, c := range snap {
		online = append(online, v1.OnlineUser{UserID: c.Identity.UserID, Username: c.Identity.Username})
	}

	frame, err := json.Marshal(v1.NewContacts(online))
	if err != nil {
		p.log.Error("presence.encode.fail", "err", err)
		return 0
	}

	sent := 0
	for _, c := range snap {
		if err := c.Enqueue(frame); err != nil {
			p.log.Info("presence.deliver.fail", "err", DeliveryFault{ConnID: c.ID, UserID: c.UserID(), Err: err})
			continue
		}
		sent++
	}

	p.broadcasts.Add(1)
	p.metrics.presenceBroadcast()
	p.log.Debug("presence.broadcast", "online", len(snap), "delivered", sent)
	return sent
}

// Broadcasts reports how many roster broadcasts have been performed.
func (p *Presence) Broadcasts() int64 { return p.broadcasts.Load() }
