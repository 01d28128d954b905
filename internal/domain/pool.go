package domain

import (
	"fmt"
	"sync"
	"time"
)

// Pool is the shared entropy reservoir. Bytes are appended at the back by the
// refresh scheduler and consumed destructively from the front by extraction.
// Every read and write happens under a single mutex that is held only for the
// duration of a buffer copy.
type Pool struct {
	mu              sync.Mutex
	buf             []byte
	capacity        int
	refreshInterval time.Duration
	lastRefresh     time.Time
}

type PoolSnapshot struct {
	Size        int
	Capacity    int
	LastRefresh time.Time
}

func NewPool(capacity int, refreshInterval time.Duration) *Pool {
	if capacity < 0 {
		capacity = 0
	}

	return &Pool{
		buf:             make([]byte, 0, capacity),
		capacity:        capacity,
		refreshInterval: refreshInterval,
	}
}

// Append extends the pool. It never fails.
func (p *Pool) Append(b []byte) {
	if len(b) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, b...)
}

// Take removes and returns the first n bytes. When fewer than n bytes are
// available the pool is left untouched and an *InsufficientError is returned.
func (p *Pool) Take(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: take size %d", ErrInvalidRequest, n)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buf) < n {
		return nil, &InsufficientError{Requested: n, Available: len(p.buf)}
	}

	out := make([]byte, n)
	copy(out, p.buf[:n])
	// consumed bytes must not linger in the backing array
	clear(p.buf[:n])
	p.buf = p.buf[n:]

	if len(p.buf) == 0 {
		p.buf = p.buf[:0:0]
	}

	return out, nil
}

func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.buf)
}

func (p *Pool) Capacity() int {
	return p.capacity
}

// IsLow reports whether the pool holds less than half of its capacity target.
func (p *Pool) IsLow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.buf) < p.capacity/2
}

// IsStale reports whether the last refresh is older than the refresh interval.
// A pool that was never refreshed is stale.
func (p *Pool) IsStale(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastRefresh.IsZero() {
		return true
	}

	return now.Sub(p.lastRefresh) > p.refreshInterval
}

func (p *Pool) MarkRefreshed(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastRefresh = at
}

func (p *Pool) LastRefresh() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lastRefresh
}

// Deficit returns how many bytes are missing to reach the capacity target.
func (p *Pool) Deficit() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if missing := p.capacity - len(p.buf); missing > 0 {
		return missing
	}

	return 0
}

func (p *Pool) Snapshot() PoolSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolSnapshot{
		Size:        len(p.buf),
		Capacity:    p.capacity,
		LastRefresh: p.lastRefresh,
	}
}

// Utilization is the fill ratio of the snapshot, 0 when capacity is unset.
func (s PoolSnapshot) Utilization() float64 {
	if s.Capacity <= 0 {
		return 0
	}

	return float64(s.Size) / float64(s.Capacity)
}
