package status

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/seedpool/internal/application"
	"github.com/bnema/seedpool/internal/domain"
)

func TestRenderHealthyPool(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)
	last := now.Add(-2 * time.Minute)

	output, err := Render(application.Stats{
		PoolSize:              786432,
		PoolCapacity:          1048576,
		PoolUtilization:       0.75,
		LastRefresh:           &last,
		ConfiguredSourceCount: 3,
		MediaSources:          []string{"a.mp4", "loop.gif"},
		RefreshState:          domain.RefreshIdle,
	}, RenderOptions{Now: now, StaleAfter: 5 * time.Minute, Source: "http://127.0.0.1:5000"})

	require.NoError(t, err)
	assert.Contains(t, output, "Entropy Pool")
	assert.Contains(t, output, "server: http://127.0.0.1:5000")
	assert.Contains(t, output, "75% full")
	assert.Contains(t, output, "(768.0 KiB / 1.0 MiB)")
	assert.Contains(t, output, "idle")
	assert.Contains(t, output, "2 minutes ago")
	assert.Contains(t, output, "3 configured")
	assert.Contains(t, output, "media: a.mp4, loop.gif")
	assert.NotContains(t, output, "[stale]")
	assert.NotContains(t, output, "[low]")
}

func TestRenderDegradedPool(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)
	last := now.Add(-3 * time.Hour)

	output, err := Render(application.Stats{
		PoolSize:            100,
		PoolCapacity:        4096,
		PoolUtilization:     100.0 / 4096,
		LastRefresh:         &last,
		RefreshState:        domain.RefreshCoolingDown,
		ConsecutiveFailures: 4,
		MediaSources:        []string{},
	}, RenderOptions{Now: now, StaleAfter: 5 * time.Minute})

	require.NoError(t, err)
	assert.Contains(t, output, "[low]")
	assert.Contains(t, output, "cooling down")
	assert.Contains(t, output, "(4 consecutive failures)")
	assert.Contains(t, output, "3 hours ago")
	assert.Contains(t, output, "[stale]")
	assert.Contains(t, output, "media: none")
	assert.Contains(t, output, "100 B")
}

func TestRenderNeverRefreshed(t *testing.T) {
	output, err := Render(application.Stats{PoolCapacity: 1024, RefreshInProgress: true}, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "never")
	assert.Contains(t, output, "running")
}

func TestRenderProgressBar(t *testing.T) {
	s := newStyles()

	bar := renderProgressBar(50, 10, s)
	assert.Equal(t, 5, strings.Count(bar, "="))
	assert.Equal(t, 5, strings.Count(bar, "-"))

	assert.Equal(t, 10, strings.Count(renderProgressBar(150, 10, s), "="))
	assert.Empty(t, renderProgressBar(50, 0, s))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "1.5 MiB", formatBytes(1536*1024))
}
