package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ProfMYK/chatappapi/cmd/internal/message"
	v1 "github.com/ProfMYK/chatappapi/contracts/chat/v1"
)

// Submitter accepts drafts for write-behind persistence.
type Submitter interface {
	Submit(d message.Draft) error
}

// RouteResult describes one fan-out pass.
type RouteResult struct {
	// Delivered holds the ids of connections that accepted the frame.
	Delivered []string
	Faults    []DeliveryFault
	Persisted bool
}

// Router fans a chat message out to its participants and hands it to persistence.
type Router struct {
	log      *slog.Logger
	registry *Registry
	persist  Submitter
	metrics  *Metrics
}

// NewRouter constructs a Router.
func NewRouter(log *slog.Logger, registry *Registry, persist Submitter, metrics *Metrics) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{log: log, registry: registry, persist: persist, metrics: metrics}
}

// Route delivers in to the connections of its sender and receiver.
//
// Candidates are matched by userId against receiverId or senderId, then
// reduced to one connection per distinct userId: the earliest registered.
// A user with several tabs therefore gets the frame on exactly one of them.
// The message is submitted to persistence whether or not anyone was online.
func (r *Router) Route(in v1.Inbound) RouteResult {
	r.metrics.routed()

	var res RouteResult

	frame, err := json.Marshal(v1.NewMessage(in))
	if err != nil {
		r.log.Error("router.encode.fail", "err", err)
	} else {
		sentTo := make(map[string]struct{}, 2)
		for _, c := range r.registry.Snapshot() {
			uid := c.UserID()
			if uid != in.ReceiverID && uid != in.SenderID {
				continue
			}
			if _, dup := sentTo[uid]; dup {
				continue
			}
			sentTo[uid] = struct{}{}

			err := c.Enqueue(frame)
			r.metrics.delivered(err)
			if err != nil {
				fault := DeliveryFault{ConnID: c.ID, UserID: uid, Err: err}
				res.Faults = append(res.Faults, fault)
				r.log.Info("router.deliver.fail", "conn_id", c.ID, "user_id", uid, "err", fault)
				continue
			}
			res.Delivered = append(res.Delivered, c.ID)
		}
	}

	if r.persist == nil {
		return res
	}
	d := message.Draft{
		Text:       in.Text,
		Sender:     in.SenderUsername,
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Now:        time.Now().UTC(),
	}
	if err := r.persist.Submit(d); err != nil {
		r.log.Error("router.persist.fail", "err", PersistenceFault{SenderID: in.SenderID, ReceiverID: in.ReceiverID, Err: err})
		return res
	}
	res.Persisted = true
	return res
}
