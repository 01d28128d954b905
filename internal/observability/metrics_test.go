package observability

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.ObserveSeed(SeedPathPool)
	m.ObserveSeed(SeedPathPool)
	m.ObserveSeed(SeedPathFast)
	m.ObserveRefresh(RefreshSuccess, time.Second)
	m.ObserveCollectorFailure("system")
	m.ObserveEmergencyBytes(1024)
	m.ObserveRateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.seeds.WithLabelValues(SeedPathPool)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.seeds.WithLabelValues(SeedPathFast)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshCycles.WithLabelValues(RefreshSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.collectorFailures.WithLabelValues("system")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.emergencyBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
}

func TestMetricsNilReceiverIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveSeed(SeedPathPool)
		m.ObserveRefresh(RefreshFailure, time.Second)
		m.ObserveCollectorFailure("media")
		m.ObserveEmergencyBytes(10)
		m.ObserveRateLimited()
		m.ObserveAuthFailure()
		m.RegisterPool(func() float64 { return 0 }, func() float64 { return 0 })
	})
	assert.Nil(t, m.Registry())
}

func TestMetricsHandlerExposesPoolGauges(t *testing.T) {
	m := NewMetrics()
	m.RegisterPool(func() float64 { return 512 }, func() float64 { return 1024 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "seedpool_pool_bytes 512")
	assert.Contains(t, string(body), "seedpool_pool_capacity_bytes 1024")
}

func TestTracerProviderWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewTracerProvider("seedpool-test", "dev", &buf)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "test.span")
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "test.span")
}
