package realtime

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3

	wsDefaultCookieName     = "token"
	wsDefaultAllowedOrigins = "http://localhost:5173"
)

// GatewayConfig controls the realtime endpoint.
type GatewayConfig struct {
	// CookieName is the cookie carrying the session token on the opening request.
	CookieName string

	OriginRequired bool
	AllowedOrigins []string
	// DevInsecure disables websocket.Accept origin verification. Dev only.
	DevInsecure bool

	WriteTimeout time.Duration
	// ReadIdleTimeout closes connections that send nothing for this long.
	// Zero disables it; dead peers are then detected by heartbeats.
	ReadIdleTimeout time.Duration
	SendQueueSize   int

	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration

	RateEvents int
	RateWindow time.Duration

	Persist PersisterConfig
}

// DefaultGatewayConfig returns the settings used when no env overrides are present.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		CookieName:       wsDefaultCookieName,
		OriginRequired:   false,
		AllowedOrigins:   splitCSV(wsDefaultAllowedOrigins),
		WriteTimeout:     wsDefaultWriteTimeout,
		SendQueueSize:    wsDefaultSendQueueSize,
		HeartbeatEvery:   heartbeatInterval,
		HeartbeatTimeout: heartbeatTimeout,
		RateEvents:       rateLimitEvents,
		RateWindow:       rateLimitWindow,
		Persist: PersisterConfig{
			Workers:     persistDefaultWorkers,
			QueueSize:   persistDefaultQueue,
			SaveTimeout: persistDefaultTimeout,
		},
	}
}

// LoadGatewayConfigFromEnv reads CHAT_WS_* and CHAT_PERSIST_* overrides.
// Allowed origins fall back to CHAT_CORS_ALLOWED_ORIGINS so HTTP and WS agree.
func LoadGatewayConfigFromEnv() GatewayConfig {
	cfg := DefaultGatewayConfig()

	cfg.CookieName = envString("CHAT_AUTH_COOKIE_NAME", cfg.CookieName)
	cfg.OriginRequired = envBool("CHAT_WS_ORIGIN_REQUIRED", cfg.OriginRequired)
	cfg.DevInsecure = envBool("CHAT_WS_DEV_INSECURE", false)

	origins := envString("CHAT_WS_ALLOWED_ORIGINS", envString("CHAT_CORS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins))
	cfg.AllowedOrigins = splitCSV(origins)

	cfg.WriteTimeout = envDuration("CHAT_WS_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.ReadIdleTimeout = envDuration("CHAT_WS_READ_IDLE_TIMEOUT", 0)
	cfg.SendQueueSize = envInt("CHAT_WS_SEND_QUEUE", cfg.SendQueueSize)

	cfg.HeartbeatEvery = envDuration("CHAT_WS_HEARTBEAT_INTERVAL", cfg.HeartbeatEvery)
	cfg.HeartbeatTimeout = envDuration("CHAT_WS_HEARTBEAT_TIMEOUT", cfg.HeartbeatTimeout)

	cfg.RateEvents = envInt("CHAT_WS_RATE_EVENTS", cfg.RateEvents)
	cfg.RateWindow = envDuration("CHAT_WS_RATE_WINDOW", cfg.RateWindow)

	cfg.Persist.Workers = envInt("CHAT_PERSIST_WORKERS", cfg.Persist.Workers)
	cfg.Persist.QueueSize = envInt("CHAT_PERSIST_QUEUE", cfg.Persist.QueueSize)
	cfg.Persist.SaveTimeout = envDuration("CHAT_PERSIST_TIMEOUT", cfg.Persist.SaveTimeout)

	return cfg.normalized()
}

func (c GatewayConfig) normalized() GatewayConfig {
	if strings.TrimSpace(c.CookieName) == "" {
		c.CookieName = wsDefaultCookieName
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = wsDefaultWriteTimeout
	}
	if c.SendQueueSize < wsMinSendQueueSize {
		c.SendQueueSize = wsMinSendQueueSize
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = heartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = heartbeatTimeout
	}
	return c
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

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
