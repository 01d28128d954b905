package ports

import "context"

// EntropySource is one noise channel. Collect returns the raw bytes gathered
// before the context deadline; callers treat any error or empty result as a
// collector failure and substitute fallback bytes.
type EntropySource interface {
	Name() string
	Collect(ctx context.Context) ([]byte, error)
}

// SourceRegistry yields the sources to run in the next refresh cycle. The set
// may change between cycles, for example when media files appear on disk.
type SourceRegistry interface {
	Sources() []EntropySource
}
