package application

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/bnema/seedpool/internal/domain"
)

// WithFallback runs op and substitutes fallback() when op fails or panics.
// The op error is still returned so callers can log it; the value is always
// usable.
func WithFallback[T any](ctx context.Context, op func(context.Context) (T, error), fallback func() T) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = fallback()
			err = fmt.Errorf("%w: panic: %v", domain.ErrCollectorFailed, r)
		}
	}()

	value, err = op(ctx)
	if err != nil {
		return fallback(), err
	}

	return value, nil
}

// RunDetached runs op on its own goroutine and races it against ctx. When
// ctx ends first the goroutine is abandoned: its result is dropped and the
// caller gets an error wrapping domain.ErrSourceAbandoned without waiting.
func RunDetached[T any](ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: panic: %v", domain.ErrCollectorFailed, r)}
			}
		}()

		value, err := op(ctx)
		done <- result{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", domain.ErrSourceAbandoned, context.Cause(ctx))
	}
}

// FallbackGenerator produces secure-random bytes for every degraded path. It
// is an io.Reader so it can also salt the mixer.
type FallbackGenerator struct {
	random io.Reader
}

func NewFallbackGenerator(random io.Reader) *FallbackGenerator {
	if random == nil {
		random = rand.Reader
	}

	return &FallbackGenerator{random: random}
}

func (g *FallbackGenerator) Read(p []byte) (int, error) {
	return io.ReadFull(g.random, p)
}

// Bytes returns n random bytes. A failing custom reader is replaced by
// crypto/rand, which does not fail.
func (g *FallbackGenerator) Bytes(n int) []byte {
	if n <= 0 {
		return nil
	}

	out := make([]byte, n)
	if _, err := io.ReadFull(g.random, out); err != nil {
		_, _ = rand.Read(out)
	}

	return out
}
