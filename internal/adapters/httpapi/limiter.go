package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"
)

const limiterShards = 64 // Must be a power of two.

func shardIndex(h uint64) uint64 {
	return h & (limiterShards - 1)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterShard struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
}

// RateLimiter keeps one token bucket per client key. Each bucket holds
// requests tokens and refills them evenly over window. Buckets idle for longer
// than the idle TTL are dropped by Sweep.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
	shards  [limiterShards]limiterShard
}

func NewRateLimiter(requests int, window, idleTTL time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 100
	}
	if window <= 0 {
		window = time.Hour
	}
	// A bucket idle for a full window is full again, so dropping it earlier
	// would not change any decision.
	idleTTL = max(idleTTL, window)

	l := &RateLimiter{
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
		idleTTL: idleTTL,
		now:     time.Now,
	}
	for i := range l.shards {
		l.shards[i].entries = make(map[string]*limiterEntry)
	}

	return l
}

func (l *RateLimiter) shard(key string) *limiterShard {
	return &l.shards[shardIndex(xxhash.Sum64String(key))]
}

// Allow consumes one token for key and reports whether one was available.
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()
	s := l.shard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		s.entries[key] = entry
	}
	entry.lastSeen = now

	return entry.limiter.AllowN(now, 1)
}

// RetryAfter is how long key has to wait for its next token.
func (l *RateLimiter) RetryAfter(key string) time.Duration {
	now := l.now()
	s := l.shard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return 0
	}
	r := entry.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)

	return delay
}

// Sweep drops idle buckets and returns how many were removed.
func (l *RateLimiter) Sweep() int {
	cutoff := l.now().Add(-l.idleTTL)
	removed := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		for key, entry := range s.entries {
			if entry.lastSeen.Before(cutoff) {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}

	return removed
}

func (l *RateLimiter) Len() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}

	return n
}

// Run sweeps idle buckets until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(max(l.idleTTL/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Sweep()
		}
	}
}
