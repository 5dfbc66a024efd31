package authapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle counts failed logins per key in fixed windows.
type LoginThrottle interface {
	// Blocked reports whether key has used up its failures for the current
	// window, and how long until the window ends.
	Blocked(ctx context.Context, key string, now time.Time) (bool, time.Duration, error)
	// Fail records one failed attempt.
	Fail(ctx context.Context, key string, now time.Time) error
	// Reset forgets key after a successful login.
	Reset(ctx context.Context, key string) error
}

func throttleKey(username, ip string) string {
	return strings.ToLower(strings.TrimSpace(username)) + "|" + ip
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter / time.Second)
		if retryAfter%time.Second != 0 {
			secs++
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}

// ---- memory ----

const memThrottleMaxKeys = 100_000

type throttleWindow struct {
	count   int
	resetAt time.Time
}

// MemoryThrottle is a process-local LoginThrottle.
type MemoryThrottle struct {
	max    int
	window time.Duration

	mu   sync.Mutex
	hits map[string]throttleWindow
}

// NewMemoryThrottle allows max failures per window.
func NewMemoryThrottle(max int, window time.Duration) *MemoryThrottle {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &MemoryThrottle{max: max, window: window, hits: make(map[string]throttleWindow)}
}

func (t *MemoryThrottle) Blocked(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.hits[key]
	if !ok || !now.Before(w.resetAt) {
		return false, 0, nil
	}
	if w.count >= t.max {
		return true, w.resetAt.Sub(now), nil
	}
	return false, 0, nil
}

func (t *MemoryThrottle) Fail(_ context.Context, key string, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.hits[key]
	if !ok || !now.Before(w.resetAt) {
		if len(t.hits) >= memThrottleMaxKeys {
			t.sweepLocked(now)
		}
		w = throttleWindow{resetAt: now.Add(t.window)}
	}
	w.count++
	t.hits[key] = w
	return nil
}

func (t *MemoryThrottle) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	delete(t.hits, key)
	t.mu.Unlock()
	return nil
}

func (t *MemoryThrottle) sweepLocked(now time.Time) {
	for k, w := range t.hits {
		if !now.Before(w.resetAt) {
			delete(t.hits, k)
		}
	}
}

// ---- redis ----

const redisThrottlePrefix = "chat:login:fail:"

// RedisThrottle shares failure counters across instances via Redis.
type RedisThrottle struct {
	rdb    redis.Cmdable
	max    int
	window time.Duration
}

// NewRedisThrottle allows max failures per window using rdb.
func NewRedisThrottle(rdb redis.Cmdable, max int, window time.Duration) (*RedisThrottle, error) {
	if rdb == nil {
		return nil, errors.New("authapi: nil redis client")
	}
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisThrottle{rdb: rdb, max: max, window: window}, nil
}

func (t *RedisThrottle) Blocked(ctx context.Context, key string, _ time.Time) (bool, time.Duration, error) {
	k := redisThrottlePrefix + key
	n, err := t.rdb.Get(ctx, k).Int()
	if errors.Is(err, redis.Nil) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if n < t.max {
		return false, 0, nil
	}

	ttl, err := t.rdb.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		// A counter without expiry would lock the key out for good.
		if err := t.rdb.PExpire(ctx, k, t.window).Err(); err != nil {
			return false, 0, err
		}
		ttl = t.window
	}
	return true, ttl, nil
}

// Fail counts a failure. INCR and PTTL go out in one MULTI so the expiry
// check sees the counter it just bumped; any counter found without expiry is
// given one.
func (t *RedisThrottle) Fail(ctx context.Context, key string, _ time.Time) error {
	k := redisThrottlePrefix + key

	var ttl *redis.DurationCmd
	_, err := t.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, k)
		ttl = p.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return err
	}
	if ttl.Val() < 0 {
		return t.rdb.PExpire(ctx, k, t.window).Err()
	}
	return nil
}

func (t *RedisThrottle) Reset(ctx context.Context, key string) error {
	return t.rdb.Del(ctx, redisThrottlePrefix+key).Err()
}
