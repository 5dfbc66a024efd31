// Package app wires the chat relay process: config, logging, storage
// backends, HTTP routes and the realtime gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	authapi "github.com/ProfMYK/chatappapi/cmd/internal/auth/api"
	"github.com/ProfMYK/chatappapi/cmd/internal/auth/session"
	"github.com/ProfMYK/chatappapi/cmd/internal/realtime"
	"github.com/ProfMYK/chatappapi/cmd/security/password"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// App owns the HTTP servers and everything they depend on.
type App struct {
	cfg Config
	log Logger

	stores  *backends
	redis   *redis.Client
	metrics *prometheus.Registry

	ws   *realtime.Gateway
	auth *authapi.Handler
}

// New constructs a fully wired App from cfg.
// Session and password settings are read from their own env variables.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewServiceFromConfig(sessCfg)
	if err != nil {
		return nil, err
	}
	passwords, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	return build(ctx, cfg, log, sessions, passwords, realtime.LoadGatewayConfigFromEnv(), authapi.LoadConfigFromEnv())
}

// build wires the App from already-loaded subsystem configs.
func build(
	ctx context.Context,
	cfg Config,
	log Logger,
	sessions *session.Service,
	passwords password.Config,
	gwCfg realtime.GatewayConfig,
	authCfg authapi.Config,
) (*App, error) {
	stores, err := openBackends(ctx, cfg, log, passwords)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, stores: stores}
	ok := false
	defer func() {
		if !ok {
			a.closeResources(context.Background())
		}
	}()

	var opts []authapi.HandlerOption
	if cfg.RedisAddr != "" {
		rdb, err := NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.redis = rdb

		throttle, err := authapi.NewRedisThrottle(rdb, authCfg.LoginMax, authCfg.LoginWindow)
		if err != nil {
			return nil, err
		}
		opts = append(opts, authapi.WithLoginThrottle(throttle))
		log.Info("auth.throttle.redis", "addr", cfg.RedisAddr)
	}

	a.auth, err = authapi.NewHandler(log, authCfg, stores.users, sessions, stores.messages, passwords, opts...)
	if err != nil {
		return nil, err
	}

	a.metrics = prometheus.NewRegistry()
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rtMetrics, err := realtime.NewMetrics(a.metrics)
	if err != nil {
		return nil, err
	}

	a.ws, err = realtime.NewGateway(log, gwCfg, sessions, stores.messages, rtMetrics)
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

// Handler returns the full middleware-wrapped route tree.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.stores, a.metrics, a.ws, a.auth)
	return WithSecurityHeaders(WithCORS(WithRequestLogging(mux, a.log), a.cfg, a.log))
}

// Run serves until ctx is canceled or a listener fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	h := a.Handler()

	servers := []*http.Server{a.newServer(a.cfg.HTTPAddr, h)}
	if a.cfg.HTTPSAddr != "" {
		servers = append(servers, a.newServer(a.cfg.HTTPSAddr, h))
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"tls_addr", a.cfg.HTTPSAddr,
		"store", a.stores.kind,
	)

	errCh := make(chan error, len(servers))
	for i, srv := range servers {
		tls := i > 0
		go func() {
			var err error
			if tls {
				err = srv.ListenAndServeTLS(a.cfg.TLSCertFile, a.cfg.TLSKeyFile)
			} else {
				err = srv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case runErr = <-errCh:
		a.log.Error("server.fail", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "addr", srv.Addr, "err", err)
			runErr = errors.Join(runErr, err)
		}
	}

	a.closeResources(shutdownCtx)
	a.log.Info("server.stopped")
	return runErr
}

// closeResources stops the gateway (draining pending writes) before the
// stores it writes to are closed.
func (a *App) closeResources(ctx context.Context) {
	if a.ws != nil {
		if err := a.ws.Close(ctx); err != nil {
			a.log.Error("ws.close.fail", "err", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
	if a.stores != nil {
		if err := a.stores.Close(ctx); err != nil {
			a.log.Error("store.close.fail", "err", err)
		}
	}
}

func (a *App) newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
