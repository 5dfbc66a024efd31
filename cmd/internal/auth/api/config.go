package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	// Failed logins allowed per username+IP within LoginWindow.
	LoginMax    int
	LoginWindow time.Duration
}

// DefaultConfig returns the defaults used when no env overrides are set.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   64 << 10,
		CookieName:     "token",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		LoginMax:       5,
		LoginWindow:    15 * time.Minute,
	}
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		TrustProxy:     envBool("CHAT_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:   envInt64("CHAT_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		CookieName:     envString("CHAT_AUTH_COOKIE_NAME", def.CookieName),
		CookiePath:     envString("CHAT_AUTH_COOKIE_PATH", def.CookiePath),
		CookieDomain:   envString("CHAT_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:   envBool("CHAT_AUTH_COOKIE_SECURE", false),
		CookieSameSite: parseSameSite(os.Getenv("CHAT_AUTH_COOKIE_SAMESITE"), def.CookieSameSite),
		LoginMax:       envInt("CHAT_AUTH_LOGIN_MAX", def.LoginMax),
		LoginWindow:    envDuration("CHAT_AUTH_LOGIN_WINDOW", def.LoginWindow),
	}

	// Browsers drop SameSite=None cookies that are not Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	return cfg
}

func parseSameSite(v string, def http.SameSite) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return def
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
