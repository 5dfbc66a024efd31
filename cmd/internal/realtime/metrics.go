package realtime

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "chat"

// Metrics holds the realtime collectors. All methods are nil-safe.
type Metrics struct {
	Connections        prometheus.Gauge
	AuthFailures       *prometheus.CounterVec
	PresenceBroadcasts prometheus.Counter
	MessagesRouted     prometheus.Counter
	Deliveries         *prometheus.CounterVec
	Persisted          *prometheus.CounterVec
	PersistQueue       prometheus.Gauge
}

// NewMetrics builds and registers the realtime collectors on reg.
// A nil reg leaves them unregistered (useful in tests).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "ws", Name: "connections",
			Help: "Authenticated connections currently registered.",
		}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "ws", Name: "auth_failures_total",
			Help: "Connections rejected during authentication.",
		}, []string{"reason"}),
		PresenceBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "presence", Name: "broadcasts_total",
			Help: "Online roster broadcasts.",
		}),
		MessagesRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "router", Name: "messages_total",
			Help: "Inbound chat messages routed.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "router", Name: "deliveries_total",
			Help: "Per-recipient frame deliveries by result.",
		}, []string{"result"}),
		Persisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "persist", Name: "messages_total",
			Help: "Write-behind persistence results.",
		}, []string{"result"}),
		PersistQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "persist", Name: "queue_depth",
			Help: "Messages waiting for the store.",
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.Connections, m.AuthFailures, m.PresenceBroadcasts, m.MessagesRouted,
		m.Deliveries, m.Persisted, m.PersistQueue,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) connAdded() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) connRemoved() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) authFailed(reason string) {
	if m != nil {
		m.AuthFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) presenceBroadcast() {
	if m != nil {
		m.PresenceBroadcasts.Inc()
	}
}

func (m *Metrics) routed() {
	if m != nil {
		m.MessagesRouted.Inc()
	}
}

func (m *Metrics) delivered(err error) {
	if m == nil {
		return
	}
	switch {
	case err == nil:
		m.Deliveries.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrQueueFull):
		m.Deliveries.WithLabelValues("queue_full").Inc()
	default:
		m.Deliveries.WithLabelValues("closed").Inc()
	}
}

func (m *Metrics) persisted(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Persisted.WithLabelValues("error").Inc()
		return
	}
	m.Persisted.WithLabelValues("ok").Inc()
}

func (m *Metrics) queueDepth(n int) {
	if m != nil {
		m.PersistQueue.Set(float64(n))
	}
}
