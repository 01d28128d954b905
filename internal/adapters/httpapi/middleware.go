package httpapi

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/bnema/seedpool/internal/domain"
)

// HeaderAPIKey carries the caller credential.
const HeaderAPIKey = "X-API-Key"

type contextKey string

const credentialContextKey contextKey = "seedpool.credential"

var errUnauthorized = errors.New("unauthorized")

func credentialFromContext(ctx context.Context) domain.Credential {
	if cred, ok := ctx.Value(credentialContextKey).(domain.Credential); ok {
		return cred
	}
	return domain.Credential{}
}

// clientKey identifies the caller for rate limiting. With a trusted proxy,
// middleware.RealIP has already rewritten RemoteAddr.
func clientKey(r *http.Request) string {
	raw := strings.TrimSpace(r.RemoteAddr)
	if raw == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(raw)
	if err != nil {
		host = raw
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
		if key == "" {
			s.metrics.ObserveAuthFailure()
			respondError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}

		cred, err := s.credentials.Lookup(r.Context(), key)
		if err != nil {
			if errors.Is(err, domain.ErrCredentialNotFound) {
				s.metrics.ObserveAuthFailure()
				s.logger.Warn("rejected unknown api key", "remote", clientKey(r), "path", r.URL.Path)
				respondError(w, http.StatusUnauthorized, errUnauthorized)
				return
			}
			s.logger.Error("credential lookup failed", "error", err)
			respondError(w, http.StatusServiceUnavailable, errors.New("credential store unavailable"))
			return
		}

		ctx := context.WithValue(r.Context(), credentialContextKey, cred)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := clientKey(r)
		if !s.limiter.Allow(key) {
			s.metrics.ObserveRateLimited()
			s.logger.Warn("rate limit exceeded", "remote", key)
			if wait := s.limiter.RetryAfter(key); wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			respondError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"remote", clientKey(r),
			"duration", s.clock.Now().Sub(start),
		)
	})
}
