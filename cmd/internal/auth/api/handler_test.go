package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ProfMYK/chatappapi/cmd/identity"
	"github.com/ProfMYK/chatappapi/cmd/internal/auth/session"
	"github.com/ProfMYK/chatappapi/cmd/internal/message"
	"github.com/ProfMYK/chatappapi/cmd/security/password"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	srv      *httptest.Server
	users    *identity.MemoryStore
	messages *message.MemoryStore
	sessions *session.Service
}

func fastPasswords() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func newTestEnv(t *testing.T, opts ...HandlerOption) *testEnv {
	t.Helper()

	pw := fastPasswords()
	scfg := session.DefaultConfig()
	scfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	sessions, err := session.NewServiceFromConfig(scfg)
	require.NoError(t, err)

	users := identity.NewMemoryStore(pw)
	messages := message.NewMemoryStore()

	cfg := DefaultConfig()
	cfg.LoginMax = 3
	h, err := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, users, sessions, messages, pw, opts...)
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, users: users, messages: messages, sessions: sessions}
}

func (e *testEnv) post(t *testing.T, path string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	require.NoError(t, err)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func tokenCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	t.Fatalf("no token cookie in response")
	return nil
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRegister_IssuesCookieAndID(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp := env.post(t, "/register", credentialsRequest{Username: "alice", Password: "correct horse"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody[idResponse](t, resp)
	require.NotEmpty(t, body.ID)

	c := tokenCookie(t, resp)
	assert.True(t, c.HttpOnly)

	id, err := env.sessions.VerifySession(context.Background(), c.Value)
	require.NoError(t, err)
	assert.Equal(t, session.Identity{UserID: body.ID, Username: "alice"}, id)
}

func TestRegister_Errors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp := env.post(t, "/register", credentialsRequest{Username: "alice", Password: "correct horse"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	cases := []struct {
		name string
		body any
		want int
	}{
		{"duplicate case-insensitive", credentialsRequest{Username: "ALICE", Password: "correct horse"}, http.StatusConflict},
		{"short password", credentialsRequest{Username: "bob", Password: "short"}, http.StatusBadRequest},
		{"bad username", credentialsRequest{Username: "b b", Password: "correct horse"}, http.StatusBadRequest},
		{"unknown field", map[string]string{"username": "carol", "password": "correct horse", "admin": "1"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := env.post(t, "/register", tc.body)
		assert.Equal(t, tc.want, resp.StatusCode, tc.name)
	}

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/register", nil)
	require.NoError(t, err)
	getResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = getResp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, getResp.StatusCode)
}

func TestLogin_SuccessAndWrongPassword(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	reg := env.post(t, "/register", credentialsRequest{Username: "alice", Password: "correct horse"})
	require.Equal(t, http.StatusCreated, reg.StatusCode)
	regID := decodeBody[idResponse](t, reg).ID

	ok := env.post(t, "/login", credentialsRequest{Username: "Alice", Password: "correct horse"})
	require.Equal(t, http.StatusOK, ok.StatusCode)
	assert.Equal(t, regID, decodeBody[idResponse](t, ok).ID)
	tokenCookie(t, ok)

	bad := env.post(t, "/login", credentialsRequest{Username: "alice", Password: "wrong horse"})
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)

	missing := env.post(t, "/login", credentialsRequest{Username: "nobody", Password: "whatever"})
	assert.Equal(t, http.StatusUnauthorized, missing.StatusCode)
}

func TestLogin_Throttled(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	reg := env.post(t, "/register", credentialsRequest{Username: "alice", Password: "correct horse"})
	require.Equal(t, http.StatusCreated, reg.StatusCode)

	for i := 0; i < 3; i++ {
		resp := env.post(t, "/login", credentialsRequest{Username: "alice", Password: "wrong horse"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	// Correct password is refused while the window is exhausted.
	resp := env.post(t, "/login", credentialsRequest{Username: "alice", Password: "correct horse"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestLogin_UpgradesLegacyBcryptHash(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.users.CreateUser(ctx, identity.CreateUserInput{Username: "legacy", Password: "old password"})
	require.NoError(t, err)

	legacy, err := bcrypt.GenerateFromPassword([]byte("old password"), password.LegacyBcryptCost)
	require.NoError(t, err)
	require.NoError(t, env.users.UpdatePasswordHash(ctx, u.ID, string(legacy), time.Now()))

	resp := env.post(t, "/login", credentialsRequest{Username: "legacy", Password: "old password"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := env.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.PasswordHash, "$argon2id$"), "hash not upgraded: %s", got.PasswordHash)
}

func TestProfile(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	reg := env.post(t, "/register", credentialsRequest{Username: "alice", Password: "correct horse"})
	require.Equal(t, http.StatusCreated, reg.StatusCode)
	id := decodeBody[idResponse](t, reg).ID
	c := tokenCookie(t, reg)

	resp := env.get(t, "/profile", c)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, profileResponse{UserID: id, Username: "alice"}, decodeBody[profileResponse](t, resp))

	assert.Equal(t, http.StatusUnauthorized, env.get(t, "/profile").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, env.get(t, "/profile", &http.Cookie{Name: "token", Value: "forged"}).StatusCode)
}

func TestMessagesHistory(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	reg := env.post(t, "/register", credentialsRequest{Username: "alice", Password: "correct horse"})
	require.Equal(t, http.StatusCreated, reg.StatusCode)
	alice := decodeBody[idResponse](t, reg).ID
	c := tokenCookie(t, reg)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, d := range []message.Draft{
		{Text: "hi bob", Sender: "alice", SenderID: alice, ReceiverID: "bob"},
		{Text: "hi alice", Sender: "bob", SenderID: "bob", ReceiverID: alice},
		{Text: "hi carol", Sender: "alice", SenderID: alice, ReceiverID: "carol"},
		{Text: "again", Sender: "alice", SenderID: alice, ReceiverID: "bob"},
	} {
		d.Now = base.Add(time.Duration(i) * time.Minute)
		_, err := env.messages.Save(ctx, d)
		require.NoError(t, err)
	}

	resp := env.get(t, "/messages/bob", c)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[[]message.Stored](t, resp)
	require.Len(t, got, 3)
	assert.Equal(t, "hi bob", got[0].Text)
	assert.Equal(t, "hi alice", got[1].Text)
	assert.Equal(t, "again", got[2].Text)

	limited := env.get(t, "/messages/bob?limit=1", c)
	require.Equal(t, http.StatusOK, limited.StatusCode)
	one := decodeBody[[]message.Stored](t, limited)
	require.Len(t, one, 1)
	assert.Equal(t, "again", one[0].Text)

	empty := env.get(t, "/messages/dave", c)
	require.Equal(t, http.StatusOK, empty.StatusCode)
	raw, err := io.ReadAll(empty.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(raw)))

	assert.Equal(t, http.StatusBadRequest, env.get(t, "/messages/bob?limit=zero", c).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, env.get(t, "/messages/bob").StatusCode)
}

func TestLogout_ExpiresCookie(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	reg := env.post(t, "/register", credentialsRequest{Username: "alice", Password: "correct horse"})
	require.Equal(t, http.StatusCreated, reg.StatusCode)

	resp := env.post(t, "/logout", struct{}{}, tokenCookie(t, reg))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	c := tokenCookie(t, resp)
	assert.Empty(t, c.Value)
	assert.Less(t, c.MaxAge, 0)
}
