package realtime

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// originPolicy is checked before the upgrade; websocket.Accept applies its own
// host-pattern check afterwards, so both are derived from the same allowlist.
type originPolicy struct {
	required bool
	allowed  []string
}

func (p originPolicy) check(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if p.required {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(p.allowed) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)
	for _, a := range p.allowed {
		switch {
		case a == "*":
			return nil
		case strings.EqualFold(origin, a):
			return nil
		case originHost != "" && originHost == originHostOnly(a):
			return nil
		}
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

// acceptPatterns returns the host patterns for websocket.AcceptOptions.OriginPatterns.
func (p originPolicy) acceptPatterns() []string {
	out := make([]string, 0, len(p.allowed))
	for _, a := range p.allowed {
		if a == "*" {
			return []string{"*"}
		}
		if h := originHostOnly(a); h != "" && !slices.Contains(out, h) {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return out
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = u.Host
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}
