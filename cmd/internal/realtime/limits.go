package realtime

import "time"

const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 64 << 10 // 64 KiB

	// Close code sent when the session cookie is missing or rejected.
	// 4000-4999 is reserved for applications; 4401 mirrors HTTP 401.
	closeUnauthorized = 4401

	authTimeout = 5 * time.Second
)

const (
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection inbound rate limit (frames per window).
	rateLimitEvents = 120
	rateLimitWindow = 10 * time.Second
)
