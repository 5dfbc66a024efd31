package app

import (
	"net/http"

	authapi "github.com/ProfMYK/chatappapi/cmd/internal/auth/api"
	"github.com/ProfMYK/chatappapi/cmd/internal/realtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	stores *backends,
	gather prometheus.Gatherer,
	ws *realtime.Gateway,
	auth *authapi.Handler,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !stores.durable() {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if err := stores.ping(r.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			log.Info("readyz.db.not_ready", "store", stores.kind, "err", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if gather != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gather, promhttp.HandlerOpts{}))
	}

	auth.Register(mux)

	mux.HandleFunc("/ws", ws.HandleWS)
}
