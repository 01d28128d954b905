package toml

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/seedpool/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "keys.toml"))
	require.NoError(t, err)
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	dev := domain.Credential{Name: "dev", Key: "development-only-key", CreatedAt: created}
	prod := domain.Credential{Name: "prod", Key: "prod-key", CreatedAt: created}
	require.NoError(t, store.Add(ctx, dev))
	require.NoError(t, store.Add(ctx, prod))

	creds, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Credential{dev, prod}, creds)

	got, err := store.Lookup(ctx, "prod-key")
	require.NoError(t, err)
	assert.Equal(t, prod, got)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(keysFileMode), info.Mode().Perm())
}

func TestStoreMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	creds, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, creds)

	_, err = store.Lookup(context.Background(), "anything")
	assert.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestStoreAddRejectsDuplicates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Add(ctx, domain.Credential{Name: "dev", Key: "k1"}))

	err := store.Add(ctx, domain.Credential{Name: "dev", Key: "k2"})
	assert.ErrorIs(t, err, domain.ErrCredentialExists)

	err = store.Add(ctx, domain.Credential{Name: "other", Key: "k1"})
	assert.ErrorIs(t, err, domain.ErrCredentialExists)

	err = store.Add(ctx, domain.Credential{Name: "", Key: "k3"})
	assert.Error(t, err)
}

func TestStoreRemove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Add(ctx, domain.Credential{Name: "dev", Key: "k1"}))
	require.NoError(t, store.Add(ctx, domain.Credential{Name: "ci", Key: "k2"}))

	require.NoError(t, store.Remove(ctx, "dev"))
	_, err := store.Lookup(ctx, "k1")
	assert.ErrorIs(t, err, domain.ErrCredentialNotFound)

	got, err := store.Lookup(ctx, "k2")
	require.NoError(t, err)
	assert.Equal(t, "ci", got.Name)

	assert.ErrorIs(t, store.Remove(ctx, "dev"), domain.ErrCredentialNotFound)
}

func TestStoreRejectsNewerSchema(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o700))
	require.NoError(t, os.WriteFile(store.Path(), []byte("version = 9\n"), 0o600))

	_, err := store.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported keys schema version 9")
}

func TestStoreHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Add(ctx, domain.Credential{Name: "dev", Key: "k"}), context.Canceled)
}

func TestStoreConcurrentAddsAreSerialized(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.toml")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store, err := NewStore(path)
			if err != nil {
				return
			}
			name := string(rune('a' + i))
			_ = store.Add(ctx, domain.Credential{Name: name, Key: "key-" + name})
		}(i)
	}
	wg.Wait()

	store, err := NewStore(path)
	require.NoError(t, err)
	creds, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, creds, 8)
}

func TestNewStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewStore("  ")
	assert.Error(t, err)
}
