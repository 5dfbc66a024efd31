// Package main is a smoke test against a running chat relay.
//
// It validates:
//   - register (or login) of two users and the token cookie
//   - cookie-authenticated WebSocket handshake
//   - contacts roster after both connect
//   - message delivery to the receiver plus the sender echo
//   - write-behind persistence via GET /messages/{id}
//   - roster update after one side leaves
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "github.com/ProfMYK/chatappapi/contracts/chat/v1"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeClient struct {
	name   string
	id     string
	token  string
	conn   *websocket.Conn
	frames chan []byte
	errCh  chan error
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:4001", "Server base URL")
		origin   = flag.String("origin", "http://localhost:5173", "Origin header to send (browser-like WS handshake)")
		password = flag.String("password", "smoke-Test-pass-1", "Password for both smoke users")
		text     = flag.String("text", "hello from smoke 👋", "Message text to send")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	root := context.Background()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano()%1_000_000)

	a := mustAuth(root, *baseURL, "smoke_a"+suffix, *password, *origin, *timeout)
	b := mustAuth(root, *baseURL, "smoke_b"+suffix, *password, *origin, *timeout)

	wsURL := "ws" + strings.TrimPrefix(strings.TrimRight(*baseURL, "/"), "http") + "/ws"

	mustConnect(root, a, wsURL, *origin, *timeout)
	defer closeWS(a.conn)
	mustConnect(root, b, wsURL, *origin, *timeout)
	defer closeWS(b.conn)

	// Each side must eventually see a roster with both users.
	for _, c := range []*smokeClient{a, b} {
		c.mustWaitRoster(root, *timeout, a.id, b.id)
	}
	if *verbose {
		fmt.Printf("online: A=%s B=%s\n", a.id, b.id)
	}

	mustSend(root, a, v1.Inbound{SenderID: a.id, ReceiverID: b.id, Text: *text}, *timeout)
	for _, c := range []*smokeClient{b, a} {
		var m v1.Message
		mustDecode(c.mustReadUntilType(root, v1.TypeMessage, *timeout), &m)
		if m.SenderID != a.id || m.ReceiverID != b.id || m.Text != *text || m.SenderUsername != a.name {
			fatalf("unexpected message (%s): %+v", c.name, m)
		}
	}

	mustHistoryContains(root, *baseURL, b, a.id, *text, *origin, *timeout)

	closeWS(b.conn)
	a.mustWaitRoster(root, *timeout, a.id)

	fmt.Printf("OK: A=%s B=%s\n", a.id, b.id)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

// mustAuth registers username, falling back to login when it already exists.
func mustAuth(parent context.Context, baseURL, username, password, origin string, stepTimeout time.Duration) *smokeClient {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		fatalf("marshal credentials: %v", err)
	}

	for _, path := range []string{"/register", "/login"} {
		resp := mustDo(parent, http.MethodPost, baseURL+path, body, origin, "", stepTimeout)
		_ = resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated:
		case http.StatusConflict:
			continue
		default:
			fatalf("%s %s: status %d", path, username, resp.StatusCode)
		}

		for _, ck := range resp.Cookies() {
			if ck.Name == "token" {
				c := &smokeClient{name: username, token: ck.Value}
				c.id = mustProfileID(parent, baseURL, c, origin, stepTimeout)
				return c
			}
		}
		fatalf("%s %s: no token cookie", path, username)
	}
	fatalf("auth %s: register and login both refused", username)
	return nil
}

func mustProfileID(parent context.Context, baseURL string, c *smokeClient, origin string, stepTimeout time.Duration) string {
	resp := mustDo(parent, http.MethodGet, baseURL+"/profile", nil, origin, c.token, stepTimeout)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fatalf("profile %s: status %d", c.name, resp.StatusCode)
	}
	var p struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		fatalf("decode profile (%s): %v", c.name, err)
	}
	if p.UserID == "" || p.Username != c.name {
		fatalf("profile mismatch (%s): %+v", c.name, p)
	}
	return p.UserID
}

func mustHistoryContains(parent context.Context, baseURL string, c *smokeClient, peerID, text, origin string, stepTimeout time.Duration) {
	deadline := time.Now().Add(stepTimeout)
	for {
		resp := mustDo(parent, http.MethodGet, baseURL+"/messages/"+url.PathEscape(peerID), nil, origin, c.token, stepTimeout)
		var msgs []struct {
			Text     string `json:"text"`
			SenderID string `json:"senderId"`
		}
		err := json.NewDecoder(resp.Body).Decode(&msgs)
		_ = resp.Body.Close()
		if err != nil {
			fatalf("decode history (%s): %v", c.name, err)
		}
		for _, m := range msgs {
			if m.Text == text && m.SenderID == peerID {
				return
			}
		}
		if time.Now().After(deadline) {
			fatalf("history (%s): message not persisted after %v", c.name, stepTimeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func mustDo(parent context.Context, method, target string, body []byte, origin, token string, stepTimeout time.Duration) *http.Response {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		fatalf("build request %s %s: %v", method, target, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, target, err)
	}
	return resp
}

func mustConnect(parent context.Context, c *smokeClient, wsURL, origin string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}
	h.Set("Cookie", "token="+c.token)

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: h})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", c.name, err)
	}
	conn.SetReadLimit(maxReadBytes)

	c.conn = conn
	c.frames = make(chan []byte, 512)
	c.errCh = make(chan error, 1)
	c.startReadLoop()
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.frames)
		for {
			_, data, err := c.conn.Read(context.Background())
			if err != nil {
				c.errCh <- err
				return
			}
			c.frames <- data
		}
	}()
}

// mustWaitRoster reads frames until a contacts roster equals want (as a set).
func (c *smokeClient) mustWaitRoster(parent context.Context, stepTimeout time.Duration, want ...string) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		var roster v1.Contacts
		mustDecode(c.mustReadUntilTypeCtx(ctx, v1.TypeContacts), &roster)

		got := map[string]bool{}
		for _, u := range roster.Online {
			got[u.UserID] = true
		}
		match := len(got) == len(want)
		for _, id := range want {
			match = match && got[id]
		}
		if match {
			return
		}
	}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration) []byte {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()
	return c.mustReadUntilTypeCtx(ctx, wantType)
}

func (c *smokeClient) mustReadUntilTypeCtx(ctx context.Context, wantType string) []byte {
	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case data, ok := <-c.frames:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			var head struct {
				Type    string `json:"type"`
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			mustDecode(data, &head)
			switch head.Type {
			case wantType:
				return data
			case v1.TypeError:
				fatalf("server error (%s): code=%q msg=%q", c.name, head.Code, head.Message)
			}
		}
	}
}

func mustSend(parent context.Context, c *smokeClient, in v1.Inbound, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(in)
	if err != nil {
		fatalf("marshal message: %v", err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed (%s): %v", c.name, err)
	}
}

func mustDecode(data []byte, v any) {
	if err := json.Unmarshal(data, v); err != nil {
		fatalf("decode frame: %v", err)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
