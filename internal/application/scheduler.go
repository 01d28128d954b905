package application

import (
	"context"
	"crypto/sha512"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/bnema/seedpool/internal/domain"
	"github.com/bnema/seedpool/internal/mixer"
	"github.com/bnema/seedpool/internal/observability"
	"github.com/bnema/seedpool/internal/ports"
)

// RefreshScheduler owns the refresh state machine. At most one cycle runs at a
// time; extra triggers while a cycle runs are dropped.
type RefreshScheduler struct {
	pool     *domain.Pool
	fixed    []ports.EntropySource
	media    ports.SourceRegistry
	fallback *FallbackGenerator
	settings Settings
	clock    ports.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	inProgress atomic.Bool
	kick       chan struct{}

	mu           sync.Mutex
	phase        domain.RefreshPhase
	failures     int
	lastAttempt  time.Time
	lastSuccess  time.Time
	coolingUntil time.Time
}

// NewRefreshScheduler builds a scheduler over the fixed sources plus whatever
// the media registry yields at the start of each cycle. media may be nil.
func NewRefreshScheduler(pool *domain.Pool, fixed []ports.EntropySource, media ports.SourceRegistry, fallback *FallbackGenerator, settings Settings, clock ports.Clock, logger *slog.Logger, metrics *observability.Metrics) *RefreshScheduler {
	if fallback == nil {
		fallback = NewFallbackGenerator(nil)
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RefreshScheduler{
		pool:     pool,
		fixed:    fixed,
		media:    media,
		fallback: fallback,
		settings: settings.withDefaults(),
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		kick:     make(chan struct{}, 1),
		phase:    domain.RefreshIdle,
	}
}

func (s *RefreshScheduler) InProgress() bool {
	return s.inProgress.Load()
}

// Trigger asks the loop to evaluate the pool now. It never blocks.
func (s *RefreshScheduler) Trigger() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *RefreshScheduler) State() domain.RefreshState {
	s.mu.Lock()
	defer s.mu.Unlock()

	phase := s.phase
	if phase == domain.RefreshCoolingDown && !s.clock.Now().Before(s.coolingUntil) {
		phase = domain.RefreshIdle
	}

	return domain.RefreshState{
		Phase:               phase,
		InProgress:          s.inProgress.Load(),
		ConsecutiveFailures: s.failures,
		LastAttempt:         s.lastAttempt,
		LastSuccess:         s.lastSuccess,
		CoolingUntil:        s.coolingUntil,
	}
}

// Sources returns the sources the next cycle would run.
func (s *RefreshScheduler) Sources() []ports.EntropySource {
	sources := make([]ports.EntropySource, 0, len(s.fixed))
	sources = append(sources, s.fixed...)
	return append(sources, s.mediaSources()...)
}

func (s *RefreshScheduler) mediaSources() []ports.EntropySource {
	if s.media == nil {
		return nil
	}
	return s.media.Sources()
}

// Run performs an initial cycle and then polls until ctx is done, sleeping
// for NextDelay between checks or until Trigger is called.
func (s *RefreshScheduler) Run(ctx context.Context) error {
	if err := s.RunCycle(ctx); err != nil && !errors.Is(err, domain.ErrRefreshInProgress) {
		s.logger.Warn("initial refresh failed", "error", err)
	}

	timer := time.NewTimer(s.NextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-s.kick:
		}

		timer.Reset(s.Tick(ctx))
	}
}

// Tick evaluates the pool once, running a cycle when it is low or stale, and
// returns how long to wait before the next evaluation.
func (s *RefreshScheduler) Tick(ctx context.Context) time.Duration {
	now := s.clock.Now()

	if wait, skip := s.cooldownRemaining(now); skip {
		s.logger.Warn("skipping refresh after consecutive failures",
			"failures", s.State().ConsecutiveFailures,
			"next_attempt_in", wait.Round(time.Second),
		)
		s.metrics.ObserveRefresh(observability.RefreshSkipped, 0)
		return wait
	}

	if wait, cooling := s.coolingRemaining(now); cooling {
		s.logger.Debug("refresh cooling down", "next_attempt_in", wait.Round(time.Second))
		return wait
	}

	low, stale := s.pool.IsLow(), s.pool.IsStale(now)
	if low || stale {
		s.logger.Info("background refresh triggered", "pool_low", low, "refresh_due", stale)
		if err := s.RunCycle(ctx); err != nil && !errors.Is(err, domain.ErrRefreshInProgress) {
			s.logger.Warn("refresh cycle failed", "error", err)
		}
	}

	delay := s.NextDelay()
	snapshot := s.pool.Snapshot()
	if failures := s.State().ConsecutiveFailures; snapshot.Utilization() < 0.3 || failures > s.settings.FailureSkipThreshold {
		s.logger.Info("adaptive poll", "utilization", snapshot.Utilization(), "failures", failures, "sleep", delay)
	}

	return delay
}

func (s *RefreshScheduler) cooldownRemaining(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures <= s.settings.FailureSkipThreshold {
		return 0, false
	}

	since := now.Sub(s.lastAttempt)
	if since >= s.settings.FailureCooldown {
		return 0, false
	}

	return max(s.settings.FailureCooldown-since, time.Second), true
}

// coolingRemaining reports how long the back-off set by the last failed cycle
// still has to run.
func (s *RefreshScheduler) coolingRemaining(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.RefreshCoolingDown || !now.Before(s.coolingUntil) {
		return 0, false
	}

	return s.coolingUntil.Sub(now), true
}

// NextDelay picks the poll interval from the failure count and the pool fill
// ratio: long back-off once failures pile up, shorter sleeps for emptier pools.
func (s *RefreshScheduler) NextDelay() time.Duration {
	s.mu.Lock()
	failures := s.failures
	s.mu.Unlock()

	return pollDelay(failures, s.pool.Snapshot().Utilization(), s.settings)
}

func pollDelay(failures int, utilization float64, settings Settings) time.Duration {
	switch {
	case failures > 5:
		return min(time.Duration(failures)*time.Minute, settings.PollCeiling)
	case utilization > 0.9:
		return 6 * settings.PollFloor
	case utilization > 0.7:
		return 3 * settings.PollFloor
	case utilization > 0.5:
		return 2 * settings.PollFloor
	default:
		return settings.PollFloor
	}
}

// RunCycle runs one refresh cycle under the watchdog. It returns
// domain.ErrRefreshInProgress without doing anything when a cycle is already
// running. A failed or abandoned cycle still tops up the pool.
func (s *RefreshScheduler) RunCycle(ctx context.Context) error {
	if !s.inProgress.CompareAndSwap(false, true) {
		return domain.ErrRefreshInProgress
	}
	defer s.inProgress.Store(false)

	cycleID := ulid.Make().String()
	logger := s.logger.With("cycle", cycleID)
	start := s.clock.Now()
	began := time.Now()

	s.mu.Lock()
	s.phase = domain.RefreshRunning
	s.lastAttempt = start
	s.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, "refresh.cycle",
		trace.WithAttributes(observability.AttrCycleID.String(cycleID)),
	)
	defer func() {
		span.SetAttributes(observability.AttrPoolSize.Int(s.pool.Size()))
		span.End()
	}()

	before := s.pool.Size()
	logger.Info("refreshing entropy pool", "pool_size", before)

	cycleCtx, cancel := context.WithTimeout(ctx, s.settings.Watchdog)
	defer cancel()

	_, err := RunDetached(cycleCtx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.collect(ctx, logger)
	})
	elapsed := time.Since(began)

	if err != nil {
		observability.RecordError(ctx, err)
		timedOut := errors.Is(err, domain.ErrSourceAbandoned) || cycleCtx.Err() != nil
		return s.fail(logger, err, timedOut, elapsed)
	}

	s.mu.Lock()
	s.failures = max(0, s.failures-1)
	s.lastSuccess = s.clock.Now()
	s.phase = domain.RefreshIdle
	s.mu.Unlock()

	s.metrics.ObserveRefresh(observability.RefreshSuccess, elapsed)
	logger.Info("entropy pool refreshed", "pool_size", s.pool.Size(), "duration", elapsed.Round(time.Millisecond))

	return nil
}

func (s *RefreshScheduler) fail(logger *slog.Logger, err error, timedOut bool, elapsed time.Duration) error {
	size := s.settings.FailureTopUpBytes
	outcome := observability.RefreshFailure
	if timedOut {
		size = s.settings.TimeoutTopUpBytes
		outcome = observability.RefreshTimeout
		err = fmt.Errorf("%w: %w", domain.ErrRefreshBudgetExceeded, err)
	}

	s.pool.Append(s.fallback.Bytes(size))
	now := s.clock.Now()
	s.pool.MarkRefreshed(now)

	s.mu.Lock()
	s.failures++
	failures := s.failures
	s.phase = domain.RefreshCoolingDown
	s.mu.Unlock()

	delay := pollDelay(failures, s.pool.Snapshot().Utilization(), s.settings)
	s.mu.Lock()
	s.coolingUntil = now.Add(delay)
	s.mu.Unlock()

	s.metrics.ObserveRefresh(outcome, elapsed)
	s.metrics.ObserveEmergencyBytes(size)
	logger.Error("refresh cycle failed, added emergency entropy",
		"error", err,
		"emergency_bytes", size,
		"failures", failures,
		"cooldown", delay,
	)

	return err
}

// collect runs every source in random order, appending each condensed output
// as soon as it is available, then folds the pool up to capacity. It stops
// touching the pool as soon as ctx ends so an abandoned cycle cannot append
// after its deadline.
func (s *RefreshScheduler) collect(ctx context.Context, logger *slog.Logger) error {
	fixed := s.fixed
	media := s.mediaSources()

	sources := make([]ports.EntropySource, 0, len(fixed)+len(media))
	sources = append(sources, fixed...)
	sources = append(sources, media...)
	rand.Shuffle(len(sources), func(i, j int) {
		sources[i], sources[j] = sources[j], sources[i]
	})
	trace.SpanFromContext(ctx).SetAttributes(observability.AttrSourceCount.Int(len(sources)))

	budgetCtx, cancel := context.WithTimeout(ctx, s.settings.Budget)
	defer cancel()
	deadline, _ := budgetCtx.Deadline()

	digest := sha512.New()
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		timeout := min(s.settings.SourceTimeout, time.Until(deadline)-s.settings.SourceReserve)
		if timeout <= 0 {
			logger.Warn("refresh budget reached, skipping remaining sources", "skipped", len(sources)-i)
			break
		}

		data := s.runSource(budgetCtx, logger, src, timeout)
		if err := ctx.Err(); err != nil {
			return err
		}

		digest.Write(data)
		condensed := mixer.Condense(data)
		s.pool.Append(condensed)
		logger.Debug("source contributed", "source", src.Name(), "raw_bytes", len(data), "pool_bytes", len(condensed))
	}

	if s.media != nil && len(media) == 0 {
		logger.Warn("no media sources available, using system randomness only")
		digest.Write(s.fallback.Bytes(s.settings.NoMediaBytes))
	}

	digest.Write([]byte(s.clock.Now().Format(time.RFC3339Nano)))
	seed := digest.Sum(nil)

	if err := ctx.Err(); err != nil {
		return err
	}
	s.pool.Append(seed)

	fill, err := mixer.Fold(seed, s.pool.Deficit(), s.fallback)
	if err != nil {
		return fmt.Errorf("fold pool to capacity: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.pool.Append(fill)
	s.pool.MarkRefreshed(s.clock.Now())

	return nil
}

// runSource collects from one source under its own deadline. The source runs
// detached so a collector stuck in blocking I/O cannot hold the cycle past
// its deadline; any failure yields fallback bytes instead.
func (s *RefreshScheduler) runSource(ctx context.Context, logger *slog.Logger, src ports.EntropySource, timeout time.Duration) []byte {
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	jobCtx, span := observability.StartSpan(jobCtx, "refresh.source",
		trace.WithAttributes(observability.AttrSourceName.String(src.Name())),
	)
	defer span.End()

	data, err := WithFallback(jobCtx, func(ctx context.Context) ([]byte, error) {
		out, err := RunDetached(ctx, src.Collect)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoEntropy, src.Name())
		}
		return out, nil
	}, func() []byte {
		return s.fallback.Bytes(s.settings.CollectorFallbackBytes)
	})
	if err != nil {
		observability.RecordError(jobCtx, err)
		s.metrics.ObserveCollectorFailure(src.Name())
		logger.Warn("entropy source failed, using fallback bytes",
			"source", src.Name(),
			"error", err,
			"fallback_bytes", len(data),
		)
	}

	return data
}
