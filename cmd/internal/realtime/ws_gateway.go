// Package realtime is the chat relay core: the connection registry, presence
// broadcasts, message fan-out and write-behind persistence behind /ws.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ProfMYK/chatappapi/cmd/internal/auth/session"
	"github.com/ProfMYK/chatappapi/cmd/internal/message"
	v1 "github.com/ProfMYK/chatappapi/contracts/chat/v1"

	"github.com/coder/websocket"
)

// Verifier resolves a session token into the identity it was issued for.
type Verifier interface {
	VerifySession(ctx context.Context, token string) (session.Identity, error)
}

// Gateway is the WebSocket entrypoint.
//
// Per connection it runs CONNECTING -> AUTHENTICATING -> ONLINE -> CLOSED:
// the token cookie is verified once, the connection is registered and the
// roster broadcast, inbound frames are routed until the transport closes,
// and cleanup deregisters and re-broadcasts exactly once.
type Gateway struct {
	log     *slog.Logger
	cfg     GatewayConfig
	origins originPolicy

	verifier  Verifier
	registry  *Registry
	presence  *Presence
	router    *Router
	persister *Persister
	metrics   *Metrics

	baseCtx    context.Context
	baseCancel context.CancelFunc
	active     sync.WaitGroup
}

// NewGateway wires a Gateway around verifier and store.
// A nil store falls back to message.NewMemoryStore; metrics may be nil.
func NewGateway(log *slog.Logger, cfg GatewayConfig, verifier Verifier, store message.Store, metrics *Metrics) (*Gateway, error) {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if verifier == nil {
		return nil, errors.New("realtime: nil verifier")
	}
	if store == nil {
		store = message.NewMemoryStore()
	}
	cfg = cfg.normalized()

	reg := NewRegistry()
	persister := NewPersister(log, store, cfg.Persist, metrics)

	ctx, cancel := context.WithCancel(context.Background())

	return &Gateway{
		log:        log,
		cfg:        cfg,
		origins:    originPolicy{required: cfg.OriginRequired, allowed: cfg.AllowedOrigins},
		verifier:   verifier,
		registry:   reg,
		presence:   NewPresence(log, reg, metrics),
		router:     NewRouter(log, reg, persister, metrics),
		persister:  persister,
		metrics:    metrics,
		baseCtx:    ctx,
		baseCancel: cancel,
	}, nil
}

// Registry exposes the live connection set.
func (g *Gateway) Registry() *Registry { return g.registry }

// Presence exposes the roster broadcaster.
func (g *Gateway) Presence() *Presence { return g.presence }

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// Close disconnects every connection, then drains the persistence queue.
func (g *Gateway) Close(ctx context.Context) error {
	g.baseCancel()

	done := make(chan struct{})
	go func() {
		g.active.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		g.log.Error("ws.close.timeout", "connections", g.registry.Len())
	}

	return g.persister.Close(ctx)
}

// HandleWS upgrades the request and runs the connection until it closes.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if g.baseCtx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if err := g.origins.check(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     g.origins.acceptPatterns(),
		InsecureSkipVerify: g.cfg.DevInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}

	g.active.Add(1)
	defer g.active.Done()

	// CONNECTING -> AUTHENTICATING
	token, ok := tokenFromRequest(r, g.cfg.CookieName)
	if !ok {
		g.rejectAuth(conn, r, ErrAuthMissing)
		return
	}
	ident, err := g.verify(r.Context(), token)
	if err != nil {
		g.rejectAuth(conn, r, err)
		return
	}

	// AUTHENTICATING -> ONLINE
	g.serve(r.Context(), conn, ident)
}

func (g *Gateway) serve(parent context.Context, conn *websocket.Conn, ident session.Identity) {
	conn.SetReadLimit(maxFrameBytes)

	c := NewConn(ident, g.cfg.SendQueueSize)
	log := g.log.With("conn_id", c.ID, "user_id", ident.UserID)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stopBase := context.AfterFunc(g.baseCtx, cancel)
	defer stopBase()

	var closeOnce sync.Once

	// shutdown is the single ONLINE -> CLOSED transition. It never closes the
	// outbound queue; removal happens before Close so broadcasters stay safe.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			if g.registry.Remove(c) {
				g.metrics.connRemoved()
				g.presence.NotifyOnline()
			}
			c.Close()
			_ = conn.Close(code, reason)
			cancel()
			log.Info("ws.closed", "reason", reason)
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		g.writeLoop(ctx, conn, c, log, shutdown)
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		g.heartbeat(ctx, conn, c, log, shutdown)
	}()

	g.registry.Insert(c)
	g.metrics.connAdded()
	log.Info("ws.online", "username", ident.Username)
	g.presence.NotifyOnline()

	g.readLoop(ctx, conn, c, log, shutdown)

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, c *Conn, log *slog.Logger, shutdown func(websocket.StatusCode, string)) {
	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

	for {
		readCtx, readCancel := ctx, context.CancelFunc(func() {})
		if g.cfg.ReadIdleTimeout > 0 {
			readCtx, readCancel = context.WithTimeout(ctx, g.cfg.ReadIdleTimeout)
		}
		mt, data, err := conn.Read(readCtx)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
			case readErrCtxDone:
				shutdown(websocket.StatusGoingAway, "context done")
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
			default:
				log.Info("ws.read.fail", "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
			}
			return
		}

		if !rl.Allow(time.Now()) {
			g.trySendError(c, "rate_limited", "too many messages")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			return
		}

		if mt != websocket.MessageText {
			g.trySendError(c, "unsupported", "text frames only")
			continue
		}

		in, err := v1.DecodeInbound(data)
		if err != nil {
			g.trySendError(c, "bad_json", "invalid JSON")
			continue
		}
		in, err = bindSender(in, c.Identity)
		if err != nil {
			g.trySendError(c, "bad_message", err.Error())
			continue
		}

		g.router.Route(in)
	}
}

func (g *Gateway) writeLoop(ctx context.Context, conn *websocket.Conn, c *Conn, log *slog.Logger, shutdown func(websocket.StatusCode, string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		case frame := <-c.Outbound():
			wctx, wcancel := context.WithTimeout(ctx, g.cfg.WriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, frame)
			wcancel()
			if err != nil {
				log.Info("ws.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
				shutdown(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}

func (g *Gateway) heartbeat(ctx context.Context, conn *websocket.Conn, c *Conn, log *slog.Logger, shutdown func(websocket.StatusCode, string)) {
	t := time.NewTicker(g.cfg.HeartbeatEvery)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		case <-t.C:
			hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
			err := conn.Ping(hbCtx)
			hbCancel()

			if err == nil {
				failures = 0
				continue
			}
			failures++
			log.Info("ws.ping.fail", "failures", failures, "err", err)
			if failures >= wsMaxPingFailures {
				shutdown(websocket.StatusGoingAway, "heartbeat failed")
				return
			}
		}
	}
}

// verify calls the verifier and converts both errors and panics into ErrAuthInvalid.
func (g *Gateway) verify(parent context.Context, token string) (ident session.Identity, err error) {
	ctx, cancel := context.WithTimeout(parent, authTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			g.log.Error("ws.auth.panic", "panic", fmt.Sprint(rec))
			ident, err = session.Identity{}, ErrAuthInvalid
		}
	}()

	ident, err = g.verifier.VerifySession(ctx, token)
	if err != nil {
		return session.Identity{}, fmt.Errorf("%w: %v", ErrAuthInvalid, err)
	}
	if strings.TrimSpace(ident.UserID) == "" {
		return session.Identity{}, ErrAuthInvalid
	}
	return ident, nil
}

// rejectAuth ends a connection that never reached ONLINE: no registry entry, no presence.
func (g *Gateway) rejectAuth(conn *websocket.Conn, r *http.Request, err error) {
	reason := "invalid token"
	label := "invalid"
	if errors.Is(err, ErrAuthMissing) {
		reason = "missing token"
		label = "missing"
	}
	g.metrics.authFailed(label)
	g.log.Info("ws.reject.auth", "reason", label, "remote", r.RemoteAddr, "err", err)
	_ = conn.Close(closeUnauthorized, reason)
}

// bindSender checks an inbound frame against the identity bound at connect time.
func bindSender(in v1.Inbound, ident session.Identity) (v1.Inbound, error) {
	if err := in.Validate(); err != nil {
		return v1.Inbound{}, err
	}
	if in.SenderID != ident.UserID {
		return v1.Inbound{}, errors.New("senderId does not match session")
	}
	in.Type = v1.TypeMessage
	in.SenderUsername = ident.Username
	return in, nil
}

func (g *Gateway) trySendError(c *Conn, code, msg string) {
	b, err := json.Marshal(v1.NewError(code, msg))
	if err != nil {
		return
	}
	_ = c.Enqueue(b)
}

// tokenFromRequest returns the session token cookie value, if any.
func tokenFromRequest(r *http.Request, name string) (string, bool) {
	ck, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(ck.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}
