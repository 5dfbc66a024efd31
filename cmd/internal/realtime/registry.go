package realtime

import (
	"slices"
	"sync"
)

// Registry is the set of live, authenticated connections.
//
// Insert, Remove and Snapshot are serialized by one mutex that is held only
// for the structural operation, never across I/O. Snapshots are ordered by
// insertion so fan-out and rosters are deterministic.
type Registry struct {
	mu    sync.Mutex
	seq   uint64
	conns map[string]registryEntry
}

type registryEntry struct {
	seq  uint64
	conn *Conn
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]registryEntry)}
}

// Insert adds c. It reports false when c is nil or already present.
func (r *Registry) Insert(c *Conn) bool {
	if c == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c.ID]; ok {
		return false
	}
	r.seq++
	r.conns[c.ID] = registryEntry{seq: r.seq, conn: c}
	return true
}

// Remove deletes c. A second call for the same connection is a no-op and reports false.
func (r *Registry) Remove(c *Conn) bool {
	if c == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[c.ID]
	if !ok || e.conn != c {
		return false
	}
	delete(r.conns, c.ID)
	return true
}

// Snapshot returns the live connections in insertion order.
func (r *Registry) Snapshot() []*Conn {
	r.mu.Lock()
	entries := make([]registryEntry, 0, len(r.conns))
	for _, e := range r.conns {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	slices.SortFunc(entries, func(a, b registryEntry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})

	out := make([]*Conn, len(entries))
	for i, e := range entries {
		out[i] = e.conn
	}
	return out
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
