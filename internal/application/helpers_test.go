package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/seedpool/internal/ports"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubMonitor struct {
	inProgress atomic.Bool
	triggers   atomic.Int32
}

func (m *stubMonitor) InProgress() bool {
	return m.inProgress.Load()
}

func (m *stubMonitor) Trigger() {
	m.triggers.Add(1)
}

// repeatReader yields the same byte forever.
type repeatReader byte

func (r repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

// stallingSource ignores its context and only returns once released.
type stallingSource struct {
	name    string
	release chan struct{}
	calls   atomic.Int32
}

func newStallingSource(name string) *stallingSource {
	return &stallingSource{name: name, release: make(chan struct{})}
}

func (s *stallingSource) Name() string {
	return s.name
}

func (s *stallingSource) Collect(context.Context) ([]byte, error) {
	s.calls.Add(1)
	<-s.release
	return []byte("late"), nil
}

type staticRegistry []ports.EntropySource

func (r staticRegistry) Sources() []ports.EntropySource {
	return r
}

func testSettings() Settings {
	return Settings{
		PoolCapacity:           8 * 1024,
		RefreshInterval:        time.Minute,
		Budget:                 2 * time.Second,
		Watchdog:               2 * time.Second,
		SourceTimeout:          time.Second,
		SourceReserve:          0,
		PollFloor:              15 * time.Second,
		PollCeiling:            10 * time.Minute,
		FailureSkipThreshold:   3,
		FailureCooldown:        2 * time.Minute,
		BootstrapBytes:         1024,
		CollectorFallbackBytes: 512,
		FailureTopUpBytes:      2048,
		TimeoutTopUpBytes:      4096,
		NoMediaBytes:           1024,
		PaddingBytes:           32,
	}
}
