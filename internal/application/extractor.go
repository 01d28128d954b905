package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/bnema/seedpool/internal/domain"
	"github.com/bnema/seedpool/internal/mixer"
	"github.com/bnema/seedpool/internal/observability"
	"github.com/bnema/seedpool/internal/ports"
)

// RefreshMonitor is the part of the scheduler the extractor may see: it can
// read the in-progress flag and nudge the loop, never wait on it.
type RefreshMonitor interface {
	InProgress() bool
	Trigger()
}

type Extractor struct {
	pool     *domain.Pool
	refresh  RefreshMonitor
	fallback *FallbackGenerator
	padding  int
	clock    ports.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	newID    func() string
}

func NewExtractor(pool *domain.Pool, refresh RefreshMonitor, fallback *FallbackGenerator, paddingBytes int, clock ports.Clock, logger *slog.Logger, metrics *observability.Metrics) *Extractor {
	if fallback == nil {
		fallback = NewFallbackGenerator(nil)
	}
	if paddingBytes <= 0 {
		paddingBytes = DefaultSettings().PaddingBytes
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		pool:     pool,
		refresh:  refresh,
		fallback: fallback,
		padding:  paddingBytes,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		newID:    uuid.NewString,
	}
}

// Extract produces a seed of req.Size bytes. It never waits on a refresh:
// latency-critical purposes skip the pool while a cycle runs, and a pool too
// small for the request degrades to secure-random bytes. The only error is
// domain.ErrInvalidRequest for a size outside the accepted range.
func (e *Extractor) Extract(ctx context.Context, req domain.SeedRequest, credential string) (domain.SeedResult, error) {
	if req.Size < domain.MinSeedSize || req.Size > domain.MaxSeedSize {
		return domain.SeedResult{}, fmt.Errorf("%w: size %d outside [%d, %d]", domain.ErrInvalidRequest, req.Size, domain.MinSeedSize, domain.MaxSeedSize)
	}

	now := e.clock.Now()
	result := domain.SeedResult{
		Timestamp: now,
		RequestID: e.newID(),
	}
	logger := e.logger.With("request_id", result.RequestID)

	ctx, span := observability.StartSpan(ctx, "seed.extract", trace.WithAttributes(
		observability.AttrRequestID.String(result.RequestID),
		observability.AttrSeedSize.Int(req.Size),
		observability.AttrPurpose.String(string(req.Purpose)),
	))
	defer span.End()

	if (e.pool.IsLow() || e.pool.IsStale(now)) && e.pool.Size() < 2*req.Size {
		logger.Info("pool critically low, requesting refresh", "pool_size", e.pool.Size(), "size", req.Size)
		e.refresh.Trigger()
	}

	path := observability.SeedPathPool
	if req.Purpose.IsLatencyCritical() && e.refresh.InProgress() {
		path = observability.SeedPathFast
		result.Seed = e.randomSeed(req)
		result.Degraded = true
	} else {
		seed, err := WithFallback(ctx, func(context.Context) ([]byte, error) {
			return e.poolSeed(req)
		}, func() []byte {
			return e.randomSeed(req)
		})
		if err != nil {
			path = observability.SeedPathDegraded
			result.Degraded = true
			logger.Warn("entropy pool depleted, serving degraded seed", "error", err)
		}
		result.Seed = seed
	}

	result.Signature = domain.SignSeed(result.Seed, credential)
	span.SetAttributes(observability.AttrSeedPath.String(path))
	e.metrics.ObserveSeed(path)
	logger.Info("seed request fulfilled", "size", req.Size, "purpose", req.Purpose, "path", path)

	return result, nil
}

// FallbackSeed builds a degraded seed without touching the pool. Sizes outside
// the accepted range are replaced by the default size.
func (e *Extractor) FallbackSeed(size int, credential string) domain.SeedResult {
	if size < domain.MinSeedSize {
		size = domain.DefaultSeedSize
	}
	size = min(size, domain.MaxSeedSize)

	seed := e.fallback.Bytes(size)
	e.metrics.ObserveSeed(observability.SeedPathFallback)

	return domain.SeedResult{
		Seed:      seed,
		Signature: domain.SignSeed(seed, credential),
		Timestamp: e.clock.Now(),
		RequestID: e.newID(),
		Degraded:  true,
	}
}

func (e *Extractor) poolSeed(req domain.SeedRequest) ([]byte, error) {
	taken, err := e.pool.Take(req.Size)
	if err != nil {
		return nil, err
	}

	mixed := mixer.XORFold(taken, req.ClientEntropy)
	clear(taken)

	return mixer.Expand(append(mixed, e.fallback.Bytes(e.padding)...), req.Size), nil
}

func (e *Extractor) randomSeed(req domain.SeedRequest) []byte {
	mixed := mixer.XORFold(e.fallback.Bytes(req.Size), req.ClientEntropy)
	return mixer.Expand(mixed, req.Size)
}
