package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bnema/seedpool/internal/adapters/collectors/media"
	"github.com/bnema/seedpool/internal/adapters/collectors/system"
	chainstore "github.com/bnema/seedpool/internal/adapters/credentials/chain"
	staticstore "github.com/bnema/seedpool/internal/adapters/credentials/static"
	tomlstore "github.com/bnema/seedpool/internal/adapters/credentials/toml"
	statusadapter "github.com/bnema/seedpool/internal/adapters/render/status"
	"github.com/bnema/seedpool/internal/application"
	"github.com/bnema/seedpool/internal/config"
	"github.com/bnema/seedpool/internal/observability"
	"github.com/bnema/seedpool/internal/ports"
)

type app struct {
	configPath     string
	loaded         *config.Config
	statusRenderer func(application.Stats, statusadapter.RenderOptions) (string, error)
	httpClient     *http.Client
	now            func() time.Time
}

func newApp() *app {
	return &app{
		statusRenderer: statusadapter.Render,
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		now:            time.Now,
	}
}

// config loads the configuration once per invocation.
func (a *app) config() (config.Config, error) {
	if a.loaded != nil {
		return *a.loaded, nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return config.Config{}, err
	}
	a.loaded = &cfg

	return cfg, nil
}

type services struct {
	manager *application.PoolManager
	// catalog is nil when media collection is disabled.
	catalog *media.Catalog
}

func wireServices(cfg config.Config, logger *slog.Logger, metrics *observability.Metrics) (services, error) {
	fixed := []ports.EntropySource{
		system.New(systemConfig(cfg), nil, logger.With("component", "system_collector")),
	}

	var registry ports.SourceRegistry
	var catalog *media.Catalog
	if cfg.Media.Enabled {
		mediaCfg, err := mediaConfig(cfg)
		if err != nil {
			return services{}, err
		}
		catalog = media.NewCatalog(mediaCfg, nil, logger.With("component", "media_catalog"))
		if err := catalog.Scan(); err != nil {
			return services{}, fmt.Errorf("wire media catalog: %w", err)
		}
		registry = catalog
	}

	manager := application.NewPoolManager(settingsFromConfig(cfg), fixed, registry,
		application.WithLogger(logger),
		application.WithMetrics(metrics),
	)

	return services{manager: manager, catalog: catalog}, nil
}

func settingsFromConfig(cfg config.Config) application.Settings {
	settings := application.DefaultSettings()
	settings.PoolCapacity = cfg.Pool.Capacity
	settings.BootstrapBytes = cfg.Pool.BootstrapBytes
	settings.RefreshInterval = cfg.Refresh.Interval
	settings.Budget = cfg.Refresh.Budget
	settings.Watchdog = cfg.Refresh.Watchdog
	settings.SourceTimeout = cfg.Refresh.SourceTimeout
	settings.SourceReserve = cfg.Refresh.SourceReserve
	settings.PollFloor = cfg.Refresh.PollFloor
	settings.PollCeiling = cfg.Refresh.PollCeiling
	settings.FailureSkipThreshold = cfg.Refresh.FailureSkipThreshold
	settings.FailureCooldown = cfg.Refresh.FailureCooldown
	return settings
}

func systemConfig(cfg config.Config) system.Config {
	return system.Config{
		Dir:           cfg.System.Dir,
		TimingSamples: cfg.System.TimingSamples,
		SampledFiles:  cfg.System.SampledFiles,
		RandomBytes:   cfg.System.RandomBytes,
	}
}

func mediaConfig(cfg config.Config) (media.Config, error) {
	ranges, err := cfg.Media.FrameSkipRanges()
	if err != nil {
		return media.Config{}, err
	}

	skips := make([]media.FrameSkipRange, 0, len(ranges))
	for _, r := range ranges {
		skips = append(skips, media.FrameSkipRange{Min: r.Min, Max: r.Max})
	}

	return media.Config{
		Dir:             cfg.Media.Dir,
		Extensions:      cfg.Media.Extensions,
		FrameSkip:       skips,
		MaxPixels:       cfg.Media.MaxPixels,
		FileBudget:      cfg.Media.FileBudget,
		FrameReadGuard:  cfg.Media.FrameReadGuard,
		WatchdogGrace:   cfg.Media.WatchdogGrace,
		ShortFileFrames: cfg.Media.ShortFileFrames,
		MaxFramesShort:  cfg.Media.MaxFramesShort,
		MaxFrames:       cfg.Media.MaxFrames,
		ProbeTimeout:    cfg.Media.ProbeTimeout,
	}, nil
}

// wireCredentials consults the keys file first and the config api_keys table
// second.
func wireCredentials(cfg config.Config) (*chainstore.Store, *tomlstore.Store, error) {
	fileStore, err := tomlstore.NewStore(cfg.Auth.KeysFile)
	if err != nil {
		return nil, nil, fmt.Errorf("wire keys file store: %w", err)
	}

	store, err := chainstore.NewStoreChecked(fileStore, staticstore.NewStore(cfg.Auth.APIKeys))
	if err != nil {
		return nil, nil, fmt.Errorf("wire credential chain: %w", err)
	}

	return store, fileStore, nil
}

// localURL turns a listen address into a URL a local client can dial.
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return "http://" + net.JoinHostPort(host, port)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func trimURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
