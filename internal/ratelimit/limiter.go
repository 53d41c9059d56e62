// Package ratelimit implements sliding-window request counting keyed by a
// caller identifier and a logical bucket. Counter state lives either in a
// shared Redis instance (correct for any number of service instances) or in
// an in-process map (correct only for a single instance).
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result reports the outcome of one counted request. Remaining and ResetAt
// are returned on allowed requests too so clients can pace themselves.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the interval a rejected caller should wait, never
// negative.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Limiter counts one request against the window for key and reports whether
// it is allowed. The increment and read are atomic per key, so concurrent
// bursts never undercount.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// windowScript increments the per-key counter and arms the window expiry on
// first hit, atomically. Returns the running count and remaining window in
// milliseconds.
var windowScript = redis.NewScript(`
    local count = redis.call('INCR', KEYS[1])
    if count == 1 then
        redis.call('PEXPIRE', KEYS[1], ARGV[1])
    end
    local ttl = redis.call('PTTL', KEYS[1])
    if ttl < 0 then
        redis.call('PEXPIRE', KEYS[1], ARGV[1])
        ttl = tonumber(ARGV[1])
    end
    return { count, ttl }
`)

// RedisLimiter keeps counters in a shared Redis instance so every service
// instance sees the same view.
type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	vals, err := windowScript.Run(ctx, l.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil || len(vals) != 2 {
		if err == nil {
			err = redis.Nil
		}
		return Result{}, err
	}
	count, ttlMs := int(vals[0]), vals[1]
	resetAt := time.Now().Add(time.Duration(ttlMs) * time.Millisecond)
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: count <= limit, Remaining: remaining, ResetAt: resetAt}, nil
}

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in an in-process map. It is only correct for
// a single-instance deployment: with multiple instances each process counts
// independently and the effective limit multiplies. Expired entries are
// evicted lazily on each check.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{entries: make(map[string]*memoryEntry), now: time.Now}
}

func (l *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, e := range l.entries {
		if e.resetAt.Before(now) {
			delete(l.entries, k)
		}
	}

	e, ok := l.entries[key]
	if !ok {
		e = &memoryEntry{resetAt: now.Add(window)}
		l.entries[key] = e
	}
	e.count++

	remaining := limit - e.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: e.count <= limit, Remaining: remaining, ResetAt: e.resetAt}, nil
}
