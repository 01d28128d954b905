package application

import (
	"context"
	"log/slog"

	"github.com/bnema/seedpool/internal/domain"
	"github.com/bnema/seedpool/internal/observability"
	"github.com/bnema/seedpool/internal/ports"
)

// PoolManager owns the pool, its refresh scheduler and the extractor. Build one
// per process and share it with every request handler.
type PoolManager struct {
	pool      *domain.Pool
	scheduler *RefreshScheduler
	extractor *Extractor
	fallback  *FallbackGenerator
	settings  Settings
	clock     ports.Clock
	logger    *slog.Logger
	media     ports.SourceRegistry
}

type ManagerOption func(*managerOptions)

type managerOptions struct {
	clock    ports.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	fallback *FallbackGenerator
}

func WithClock(clock ports.Clock) ManagerOption {
	return func(o *managerOptions) { o.clock = clock }
}

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(o *managerOptions) { o.logger = logger }
}

func WithMetrics(metrics *observability.Metrics) ManagerOption {
	return func(o *managerOptions) { o.metrics = metrics }
}

func WithFallbackGenerator(g *FallbackGenerator) ManagerOption {
	return func(o *managerOptions) { o.fallback = g }
}

// NewPoolManager wires an empty pool to the given sources. fixed sources run in
// every cycle; media is consulted at the start of each cycle and may be nil.
func NewPoolManager(settings Settings, fixed []ports.EntropySource, media ports.SourceRegistry, opts ...ManagerOption) *PoolManager {
	o := managerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = ports.SystemClock{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.fallback == nil {
		o.fallback = NewFallbackGenerator(nil)
	}

	settings = settings.withDefaults()
	pool := domain.NewPool(settings.PoolCapacity, settings.RefreshInterval)
	scheduler := NewRefreshScheduler(pool, fixed, media, o.fallback, settings, o.clock, o.logger.With("component", "scheduler"), o.metrics)
	extractor := NewExtractor(pool, scheduler, o.fallback, settings.PaddingBytes, o.clock, o.logger.With("component", "extractor"), o.metrics)

	o.metrics.RegisterPool(
		func() float64 { return float64(pool.Size()) },
		func() float64 { return float64(pool.Capacity()) },
	)

	return &PoolManager{
		pool:      pool,
		scheduler: scheduler,
		extractor: extractor,
		fallback:  o.fallback,
		settings:  settings,
		clock:     o.clock,
		logger:    o.logger,
		media:     media,
	}
}

// Bootstrap fills the pool with secure-random bytes so that it is never empty
// once requests are accepted. Call it before serving.
func (m *PoolManager) Bootstrap() {
	m.pool.Append(m.fallback.Bytes(m.settings.BootstrapBytes))
	m.pool.MarkRefreshed(m.clock.Now())
	m.logger.Info("entropy pool bootstrapped", "bytes", m.settings.BootstrapBytes)
}

// Run drives the refresh scheduler until ctx is done.
func (m *PoolManager) Run(ctx context.Context) error {
	return m.scheduler.Run(ctx)
}

// Refresh runs one cycle now, returning domain.ErrRefreshInProgress when one
// is already running.
func (m *PoolManager) Refresh(ctx context.Context) error {
	return m.scheduler.RunCycle(ctx)
}

func (m *PoolManager) Extract(ctx context.Context, req domain.SeedRequest, credential string) (domain.SeedResult, error) {
	return m.extractor.Extract(ctx, req, credential)
}

func (m *PoolManager) FallbackSeed(size int, credential string) domain.SeedResult {
	return m.extractor.FallbackSeed(size, credential)
}

func (m *PoolManager) Stats() Stats {
	snapshot := m.pool.Snapshot()
	state := m.scheduler.State()

	stats := Stats{
		PoolSize:              snapshot.Size,
		PoolCapacity:          snapshot.Capacity,
		PoolUtilization:       snapshot.Utilization(),
		ConfiguredSourceCount: len(m.scheduler.Sources()),
		MediaSources:          []string{},
		RefreshInProgress:     state.InProgress,
		RefreshState:          state.Phase,
		ConsecutiveFailures:   state.ConsecutiveFailures,
		Timestamp:             m.clock.Now(),
	}
	if !snapshot.LastRefresh.IsZero() {
		last := snapshot.LastRefresh
		stats.LastRefresh = &last
	}
	if m.media != nil {
		for _, src := range m.media.Sources() {
			stats.MediaSources = append(stats.MediaSources, src.Name())
		}
	}

	return stats
}

func (m *PoolManager) Pool() *domain.Pool {
	return m.pool
}

func (m *PoolManager) Scheduler() *RefreshScheduler {
	return m.scheduler
}
