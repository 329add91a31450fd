// Package ratelimit implements a sliding-window admission gate keyed by caller identity and request path.
package ratelimit

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultLimit is the number of requests per window a key may issue.
	DefaultLimit = 15

	// DefaultWindow is the width of the sliding window.
	DefaultWindow = 60 * time.Second
)

// Options configures a Limiter. Zero values are replaced with defaults.
type Options struct {
	Now    func() time.Time
	Limit  int
	Window time.Duration
}

// Decision is the outcome of a single admission check.
type Decision struct {
	// RetryAfter is how long until the key would be admitted again; zero when allowed.
	RetryAfter time.Duration

	// Count is the number of requests in the window, this one included.
	Count int

	Allowed bool
}

// shardCount splits the key space so callers on different keys rarely contend.
const shardCount = 16

// Limiter counts requests per (identity, path) in a trailing window.
// Denied requests occupy a slot just like admitted ones.
type Limiter struct {
	now    func() time.Time
	shards [shardCount]shard
	limit  int
	window time.Duration
}

type shard struct {
	windows map[string][]time.Time
	mu      sync.Mutex
}

// New creates a Limiter.
func New(opts Options) *Limiter {
	l := &Limiter{
		now:    opts.Now,
		limit:  opts.Limit,
		window: opts.Window,
	}
	for i := range l.shards {
		l.shards[i].windows = make(map[string][]time.Time)
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.limit <= 0 {
		l.limit = DefaultLimit
	}
	if l.window <= 0 {
		l.window = DefaultWindow
	}

	return l
}

// Limit returns the configured request count per window.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured window width.
func (l *Limiter) Window() time.Duration { return l.window }

// Admit records the request and reports whether it may proceed.
func (l *Limiter) Admit(identity, path string) bool {
	return l.Check(identity, path).Allowed
}

// Check records the request and returns the full admission decision.
func (l *Limiter) Check(identity, path string) Decision {
	key := compositeKey(identity, path)
	sh := l.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := l.now()
	hits := prune(append(sh.windows[key], now), now, l.window)
	sh.windows[key] = hits

	d := Decision{Count: len(hits), Allowed: len(hits) <= l.limit}
	if !d.Allowed {
		d.RetryAfter = hits[len(hits)-l.limit].Add(l.window).Sub(now)
	}

	return d
}

// Sweep drops keys whose most recent request has left the window and returns how many were dropped.
func (l *Limiter) Sweep() int {
	now := l.now()

	var dropped int
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.Lock()
		for key, hits := range sh.windows {
			if len(hits) == 0 || now.Sub(hits[len(hits)-1]) >= l.window {
				delete(sh.windows, key)
				dropped++
			}
		}
		sh.mu.Unlock()
	}

	return dropped
}

// Keys returns the number of tracked (identity, path) keys.
func (l *Limiter) Keys() int {
	var n int
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.Lock()
		n += len(sh.windows)
		sh.mu.Unlock()
	}

	return n
}

// prune removes leading timestamps that fell out of the window, reusing the backing array.
func prune(hits []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(hits) && now.Sub(hits[i]) >= window {
		i++
	}
	if i == 0 {
		return hits
	}

	n := copy(hits, hits[i:])
	return hits[:n]
}

// compositeKey joins identity and path with a NUL byte. Identities never contain NUL,
// so the first NUL separates the parts.
func compositeKey(identity, path string) string {
	return identity + "\x00" + path
}

func (l *Limiter) shardFor(key string) *shard {
	return &l.shards[xxhash.Sum64String(key)%shardCount]
}
