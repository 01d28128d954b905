package httpapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/seedpool/internal/adapters/credentials/static"
	"github.com/bnema/seedpool/internal/application"
	"github.com/bnema/seedpool/internal/domain"
	"github.com/bnema/seedpool/internal/logging"
	"github.com/bnema/seedpool/internal/observability"
)

const testKey = "development-only-key"

type testEnv struct {
	server  *Server
	manager *application.PoolManager
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T, limiter *RateLimiter) testEnv {
	t.Helper()

	settings := application.DefaultSettings()
	settings.PoolCapacity = 4096
	settings.BootstrapBytes = 1024

	metrics := observability.NewMetrics()
	manager := application.NewPoolManager(settings, nil, nil,
		application.WithLogger(logging.Discard()),
		application.WithMetrics(metrics),
	)
	manager.Bootstrap()

	server, err := New(Options{
		Seeds:       manager,
		Credentials: static.NewStore(map[string]string{"silent_client_dev": testKey}),
		Limiter:     limiter,
		Metrics:     metrics,
		Logger:      logging.Discard(),
	})
	require.NoError(t, err)

	return testEnv{server: server, manager: manager, metrics: metrics}
}

func doRequest(t *testing.T, h http.Handler, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.7:41000"
	if key != "" {
		req.Header.Set(HeaderAPIKey, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSeed(t *testing.T, rec *httptest.ResponseRecorder) seedResponse {
	t.Helper()

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp seedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthNeedsNoCredential(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := doRequest(t, env.server.Handler(), http.MethodGet, "/health", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestProtectedRoutesRejectMissingOrUnknownKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	h := env.server.Handler()

	for _, tc := range []struct{ method, path, key string }{
		{http.MethodPost, "/api/get-seed", ""},
		{http.MethodPost, "/api/get-seed", "wrong-key"},
		{http.MethodGet, "/api/entropy-stats", ""},
		{http.MethodGet, "/metrics", "wrong-key"},
	} {
		rec := doRequest(t, h, tc.method, tc.path, tc.key, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestGetSeedFromPool(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	before := env.manager.Pool().Size()

	rec := doRequest(t, env.server.Handler(), http.MethodPost, "/api/get-seed", testKey, `{"size": 32}`)
	resp := decodeSeed(t, rec)

	seed, err := hex.DecodeString(resp.Seed)
	require.NoError(t, err)
	assert.Len(t, seed, 32)
	assert.Equal(t, domain.SignSeed(seed, testKey), resp.Signature)
	assert.NotEmpty(t, resp.RequestID)
	assert.False(t, resp.Fallback)
	assert.False(t, resp.Degraded)
	assert.Equal(t, before-32, env.manager.Pool().Size())

	_, err = time.Parse(time.RFC3339Nano, resp.Timestamp)
	assert.NoError(t, err)
}

func TestGetSeedDefaultsAndClamp(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	h := env.server.Handler()

	resp := decodeSeed(t, doRequest(t, h, http.MethodPost, "/api/get-seed", testKey, ""))
	assert.Len(t, resp.Seed, 64, "empty body yields the default 32-byte seed")

	resp = decodeSeed(t, doRequest(t, h, http.MethodPost, "/api/get-seed", testKey, `{"size": 4096, "clientEntropy": "00ff", "purpose": "backup"}`))
	assert.Len(t, resp.Seed, 256, "size is clamped to 128 bytes")
	assert.False(t, resp.Fallback)
}

func TestGetSeedInvalidRequestFallsBack(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	h := env.server.Handler()

	for name, body := range map[string]string{
		"zero size":     `{"size": 0}`,
		"bad entropy":   `{"clientEntropy": "zz"}`,
		"malformed":     `{"size": `,
		"wrong type":    `{"size": "big"}`,
		"negative size": `{"size": -4}`,
		"trailing data": `{"size": 16} {"size": 32}`,
		"oversized":     `{"purpose": "` + strings.Repeat("a", int(maxSeedBodyBytes)) + `"}`,
	} {
		resp := decodeSeed(t, doRequest(t, h, http.MethodPost, "/api/get-seed", testKey, body))
		assert.True(t, resp.Fallback, name)
		assert.NotEmpty(t, resp.Error, name)
		assert.Len(t, resp.Seed, 64, name)
		assert.NotEmpty(t, resp.RequestID, name)
	}
}

func TestDecodeSeedBody(t *testing.T) {
	t.Parallel()

	decode := func(body string) (seedRequestBody, error) {
		req := httptest.NewRequest(http.MethodPost, "/api/get-seed", strings.NewReader(body))
		return decodeSeedBody(httptest.NewRecorder(), req)
	}

	body, err := decode("")
	require.NoError(t, err)
	assert.Nil(t, body.Size)

	body, err = decode(`{"size": 16, "purpose": "login"}` + "\n")
	require.NoError(t, err)
	require.NotNil(t, body.Size)
	assert.Equal(t, 16, *body.Size)
	assert.Equal(t, "login", body.Purpose)

	_, err = decode(`{"size": 16} {}`)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = decode(`{"purpose": "` + strings.Repeat("a", int(maxSeedBodyBytes)) + `"}`)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "exceeds")

	_, err = decode(`{"size": `)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

type panickingSeeds struct {
	fallbacks int
}

func (p *panickingSeeds) Extract(context.Context, domain.SeedRequest, string) (domain.SeedResult, error) {
	panic("pool exploded")
}

func (p *panickingSeeds) FallbackSeed(size int, credential string) domain.SeedResult {
	p.fallbacks++
	seed := make([]byte, size)
	return domain.SeedResult{Seed: seed, Signature: domain.SignSeed(seed, credential), Timestamp: time.Now(), RequestID: "fallback-id", Degraded: true}
}

func (p *panickingSeeds) Stats() application.Stats {
	return application.Stats{}
}

func TestGetSeedRecoversFromPanic(t *testing.T) {
	t.Parallel()

	seeds := &panickingSeeds{}
	server, err := New(Options{
		Seeds:       seeds,
		Credentials: static.NewStore(map[string]string{"dev": testKey}),
		Logger:      logging.Discard(),
	})
	require.NoError(t, err)

	resp := decodeSeed(t, doRequest(t, server.Handler(), http.MethodPost, "/api/get-seed", testKey, `{"size": 16}`))
	assert.True(t, resp.Fallback)
	assert.Contains(t, resp.Error, "pool exploded")
	assert.Len(t, resp.Seed, 32)
	assert.Equal(t, 1, seeds.fallbacks)
}

func TestEntropyStats(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := doRequest(t, env.server.Handler(), http.MethodGet, "/api/entropy-stats", testKey, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 1024, stats["poolSize"])
	assert.EqualValues(t, 4096, stats["poolCapacity"])
	assert.InDelta(t, 0.25, stats["poolUtilization"], 1e-9)
	assert.NotNil(t, stats["lastRefresh"])
	assert.Contains(t, stats, "configuredSourceCount")
	assert.Contains(t, stats, "timestamp")
}

func TestRateLimitRejectsExcessRequests(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, NewRateLimiter(2, time.Hour, time.Hour))
	h := env.server.Handler()

	for i := 0; i < 2; i++ {
		rec := doRequest(t, h, http.MethodPost, "/api/get-seed", testKey, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(t, h, http.MethodPost, "/api/get-seed", testKey, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	stats := doRequest(t, h, http.MethodGet, "/api/entropy-stats", testKey, "")
	assert.Equal(t, http.StatusOK, stats.Code, "stats are not rate limited")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	h := env.server.Handler()
	decodeSeed(t, doRequest(t, h, http.MethodPost, "/api/get-seed", testKey, ""))

	rec := doRequest(t, h, http.MethodGet, "/metrics", testKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `seedpool_seeds_served_total{path="pool"} 1`)
	assert.Contains(t, rec.Body.String(), "seedpool_pool_bytes")
}

func TestUnknownRouteIsJSON(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := doRequest(t, env.server.Handler(), http.MethodGet, "/nope", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestServeShutsDownWithContext(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Credentials: static.NewStore(nil)})
	assert.ErrorIs(t, err, errNilSeedService)

	_, err = New(Options{Seeds: &panickingSeeds{}})
	assert.ErrorIs(t, err, errNilCredentialStore)
}
