package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/seedpool/internal/adapters/httpapi"
	"github.com/bnema/seedpool/internal/config"
	"github.com/bnema/seedpool/internal/logging"
	"github.com/bnema/seedpool/internal/observability"
	"github.com/bnema/seedpool/internal/version"
)

func newServeCmd(app *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the seed HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.config()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.serve(ctx, cfg, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

func (a *app) serve(ctx context.Context, cfg config.Config, stderr io.Writer) error {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	if cfg.Telemetry.Metrics {
		metrics = observability.NewMetrics()
	}

	if cfg.Telemetry.Tracing {
		tp, err := observability.NewTracerProvider("seedpool", version.Version, stderr)
		if err != nil {
			return err
		}
		defer func() {
			if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("trace provider shutdown failed", "error", err)
			}
		}()
	}

	svc, err := wireServices(cfg, logger, metrics)
	if err != nil {
		return err
	}

	credentials, _, err := wireCredentials(cfg)
	if err != nil {
		return err
	}

	var limiter *httpapi.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = httpapi.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.IdleTTL)
	}

	server, err := httpapi.New(httpapi.Options{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		TrustProxy:      cfg.Server.TrustProxy,
		Seeds:           svc.manager,
		Credentials:     credentials,
		Limiter:         limiter,
		Metrics:         metrics,
		Logger:          logger.With("component", "http"),
	})
	if err != nil {
		return fmt.Errorf("build http server: %w", err)
	}

	svc.manager.Bootstrap()
	logger.Info("seedpool starting",
		"addr", cfg.Server.Addr,
		"version", version.Version,
		"config", cfg.File,
		"media_sources", len(svc.manager.Stats().MediaSources),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svc.manager.Run(gctx)
	})

	if svc.catalog != nil && cfg.Media.Watch {
		g.Go(func() error {
			// Losing the watcher only freezes the media catalog; keep serving.
			if err := svc.catalog.Watch(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("media directory watch stopped", "dir", svc.catalog.Dir(), "error", err)
			}
			return nil
		})
	}

	if limiter != nil {
		g.Go(func() error {
			return limiter.Run(gctx)
		})
	}

	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("seedpool stopped")
	return nil
}
