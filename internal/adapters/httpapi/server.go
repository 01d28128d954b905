// Package httpapi serves seeds and pool statistics over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bnema/seedpool/internal/application"
	"github.com/bnema/seedpool/internal/domain"
	"github.com/bnema/seedpool/internal/observability"
	"github.com/bnema/seedpool/internal/ports"
)

// SeedService is the part of the pool manager the handlers need.
type SeedService interface {
	Extract(ctx context.Context, req domain.SeedRequest, credential string) (domain.SeedResult, error)
	FallbackSeed(size int, credential string) domain.SeedResult
	Stats() application.Stats
}

type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustProxy      bool

	Seeds       SeedService
	Credentials ports.CredentialStore
	// Limiter may be nil to disable rate limiting.
	Limiter *RateLimiter
	Metrics *observability.Metrics
	Logger  *slog.Logger
	Clock   ports.Clock
}

type Server struct {
	seeds           SeedService
	credentials     ports.CredentialStore
	limiter         *RateLimiter
	metrics         *observability.Metrics
	logger          *slog.Logger
	clock           ports.Clock
	shutdownTimeout time.Duration

	router     chi.Router
	httpServer *http.Server
}

var (
	errNilSeedService     = errors.New("seed service is nil")
	errNilCredentialStore = errors.New("credential store is nil")
)

func New(opts Options) (*Server, error) {
	if opts.Seeds == nil {
		return nil, errNilSeedService
	}
	if opts.Credentials == nil {
		return nil, errNilCredentialStore
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		seeds:           opts.Seeds,
		credentials:     opts.Credentials,
		limiter:         opts.Limiter,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		clock:           opts.Clock,
		shutdownTimeout: opts.ShutdownTimeout,
	}
	s.router = s.routes(opts.TrustProxy)
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

func (s *Server) routes(trustProxy bool) chi.Router {
	router := chi.NewRouter()
	if trustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(s.requestLogger)
	router.Use(middleware.Recoverer)

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, nil)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, nil)
	})

	router.Get("/health", s.handleHealth)

	router.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/api/entropy-stats", s.handleStats)
		r.With(s.rateLimitMiddleware).Post("/api/get-seed", s.handleGetSeed)
		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		}
	})

	return router
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}

	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}

	return nil
}
