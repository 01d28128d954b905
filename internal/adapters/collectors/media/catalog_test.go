package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestCatalogScanFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.MP4"))
	touch(t, filepath.Join(dir, "a.mkv"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "loop.gif"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.mp4"), 0o700))

	cfg := DefaultConfig()
	cfg.Dir = dir
	catalog := NewCatalog(cfg, &fakeDecoder{}, nil)
	require.NoError(t, catalog.Scan())

	assert.Equal(t, []string{
		filepath.Join(dir, "a.mkv"),
		filepath.Join(dir, "b.MP4"),
		filepath.Join(dir, "loop.gif"),
	}, catalog.Files())
}

func TestCatalogMissingDirIsEmpty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "absent")
	catalog := NewCatalog(cfg, nil, nil)

	require.NoError(t, catalog.Scan())
	assert.Empty(t, catalog.Files())
	assert.Empty(t, catalog.Sources())
}

func TestCatalogSourcesAssignRangesAndDecoders(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.mp4", "b.mp4", "c.gif", "d.mp4"} {
		touch(t, filepath.Join(dir, name))
	}

	video := &fakeDecoder{}
	cfg := DefaultConfig()
	cfg.Dir = dir
	catalog := NewCatalog(cfg, video, nil)
	require.NoError(t, catalog.Scan())

	sources := catalog.Sources()
	require.Len(t, sources, 4)

	wantRanges := []FrameSkipRange{{30, 50}, {40, 60}, {20, 40}, {30, 50}}
	for i, src := range sources {
		fs, ok := src.(*FileSource)
		require.True(t, ok)
		assert.Equal(t, wantRanges[i], fs.skip)
	}

	assert.Equal(t, "c.gif", sources[2].Name())
	assert.IsType(t, GIFDecoder{}, sources[2].(*FileSource).decoder)
	assert.Same(t, video, sources[0].(*FileSource).decoder)
}

func TestConfigDropsInvalidRanges(t *testing.T) {
	cfg := Config{FrameSkip: []FrameSkipRange{{Min: 0, Max: 5}, {Min: 9, Max: 3}, {Min: 2, Max: 4}}}.withDefaults()
	assert.Equal(t, []FrameSkipRange{{Min: 2, Max: 4}}, cfg.FrameSkip)

	cfg = Config{FrameSkip: []FrameSkipRange{{Min: 0, Max: 0}}}.withDefaults()
	assert.Equal(t, DefaultConfig().FrameSkip, cfg.FrameSkip)
}

func TestCatalogWatchPicksUpNewFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "videos")
	cfg := DefaultConfig()
	cfg.Dir = dir
	catalog := NewCatalog(cfg, &fakeDecoder{}, nil)
	require.NoError(t, catalog.Scan())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- catalog.Watch(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(dir)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	// the watch may not be registered yet right after the directory appears
	attempt := 0
	require.Eventually(t, func() bool {
		attempt++
		touch(t, filepath.Join(dir, fmt.Sprintf("new-%d.webm", attempt)))
		return len(catalog.Files()) > 0
	}, 3*time.Second, 50*time.Millisecond)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		require.NoError(t, os.Remove(filepath.Join(dir, entry.Name())))
	}
	require.Eventually(t, func() bool { return len(catalog.Files()) == 0 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
