// Package authapi serves account registration, cookie login and the
// authenticated HTTP reads (profile and message history).
package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ProfMYK/chatappapi/cmd/identity"
	"github.com/ProfMYK/chatappapi/cmd/internal/auth/session"
	"github.com/ProfMYK/chatappapi/cmd/internal/message"
	"github.com/ProfMYK/chatappapi/cmd/security/password"
)

const maxHistoryLimit = 500

// Handler wires HTTP auth endpoints to identity/session services.
type Handler struct {
	log *slog.Logger
	cfg Config

	users     identity.Store
	sessions  *session.Service
	messages  message.Store
	passwords password.Config
	throttle  LoginThrottle

	dummyHash string
	now       func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithLoginThrottle overrides the default in-memory login throttle.
func WithLoginThrottle(t LoginThrottle) HandlerOption {
	return func(h *Handler) {
		if h == nil || t == nil {
			return
		}
		h.throttle = t
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Service, messages message.Store, passwords password.Config, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil {
		return nil, errors.New("authapi: nil user store")
	}
	if sessions == nil {
		return nil, errors.New("authapi: nil session service")
	}
	if messages == nil {
		return nil, errors.New("authapi: nil message store")
	}
	if strings.TrimSpace(cfg.CookieName) == "" {
		cfg.CookieName = "token"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	h := &Handler{
		log:       log,
		cfg:       cfg,
		users:     users,
		sessions:  sessions,
		messages:  messages,
		passwords: passwords,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	if h.throttle == nil {
		h.throttle = NewMemoryThrottle(cfg.LoginMax, cfg.LoginWindow)
	}

	// Dummy hash for timing-resistant login checks.
	if hash, err := passwords.Hash("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/register", h.handleRegister)
	mux.HandleFunc("/login", h.handleLogin)
	mux.HandleFunc("/logout", h.handleLogout)
	mux.HandleFunc("/profile", h.handleProfile)
	mux.HandleFunc("/messages/{id}", h.handleMessages)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	now := h.now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)

	u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Now:      now,
	})
	if err != nil {
		var opErr identity.OpError
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "conflict", "username already exists")
		case errors.As(err, &opErr) && errors.Is(opErr.Kind, identity.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_request", opErr.Msg)
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid input")
		default:
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	if !h.issueCookie(w, u, now, "auth.register") {
		return
	}
	h.auditRegister(ctx, u.ID, ip)
	writeJSON(w, http.StatusCreated, idResponse{ID: u.ID})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	ctx := r.Context()
	now := h.now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	identifier := identity.NormalizeUsername(username)

	ipKey := ""
	if ip != nil {
		ipKey = ip.String()
	}
	key := throttleKey(identifier, ipKey)

	if blocked, retryAfter, err := h.throttle.Blocked(ctx, key, now); err != nil {
		h.log.Error("auth.login.throttle.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	} else if blocked {
		h.auditLoginRateLimited(ctx, ip, identifier, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	u, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		if !identity.IsNotFound(err) && !identity.IsInvalidInput(err) {
			h.log.Error("auth.login.lookup.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		// Timing resistance: perform a dummy verify when user is missing.
		if h.dummyHash != "" {
			_, _ = h.passwords.Verify(h.dummyHash, req.Password)
		}
		h.recordFailure(r, key)
		h.auditLoginFailed(ctx, "", ip, identifier, "not_found")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	ok, err := h.passwords.Verify(u.PasswordHash, req.Password)
	if err != nil {
		h.log.Error("auth.login.verify.fail", "err", err, "user_id", u.ID)
	}
	if err != nil || !ok {
		h.recordFailure(r, key)
		h.auditLoginFailed(ctx, u.ID, ip, identifier, "bad_password")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	if err := h.throttle.Reset(ctx, key); err != nil {
		h.log.Warn("auth.login.throttle_reset.fail", "err", err)
	}

	rehashed := false
	if h.passwords.NeedsRehash(u.PasswordHash) {
		if hash, err := h.passwords.Hash(req.Password); err != nil {
			h.log.Warn("auth.login.rehash.fail", "err", err, "user_id", u.ID)
		} else if err := h.users.UpdatePasswordHash(ctx, u.ID, hash, now); err != nil {
			h.log.Warn("auth.login.rehash.fail", "err", err, "user_id", u.ID)
		} else {
			rehashed = true
		}
	}

	if !h.issueCookie(w, u, now, "auth.login") {
		return
	}
	h.auditLoginSuccess(ctx, u.ID, ip, rehashed)
	writeJSON(w, http.StatusOK, idResponse{ID: u.ID})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if tok := h.tokenFromCookie(r); tok != "" {
		if id, err := h.sessions.VerifySession(r.Context(), tok); err == nil {
			h.auditLogout(r.Context(), id.UserID, clientIP(r, h.cfg.TrustProxy))
		}
	}
	h.expireSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{UserID: id.UserID, Username: id.Username})
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	peer := strings.TrimSpace(r.PathValue("id"))
	if peer == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing peer id")
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	msgs, err := h.messages.History(r.Context(), message.HistoryQuery{
		UserID: id.UserID,
		PeerID: peer,
		Limit:  limit,
	})
	if err != nil {
		h.log.Error("auth.messages.history.fail", "err", err, "user_id", id.UserID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if msgs == nil {
		msgs = []message.Stored{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// ---- helpers ----

func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) (session.Identity, bool) {
	tok := h.tokenFromCookie(r)
	if tok == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return session.Identity{}, false
	}
	id, err := h.sessions.VerifySession(r.Context(), tok)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return session.Identity{}, false
	}
	return id, true
}

func (h *Handler) issueCookie(w http.ResponseWriter, u identity.User, now time.Time, op string) bool {
	tok, exp, err := h.sessions.Issue(session.Identity{UserID: u.ID, Username: u.Username}, now)
	if err != nil {
		h.log.Error(op+".issue_token.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return false
	}
	h.setSessionCookie(w, tok, exp)
	return true
}

func (h *Handler) recordFailure(r *http.Request, key string) {
	if err := h.throttle.Fail(r.Context(), key, h.now().UTC()); err != nil {
		h.log.Warn("auth.login.throttle_fail.fail", "err", err)
	}
}
