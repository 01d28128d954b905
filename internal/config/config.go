// Package config loads the service configuration from a TOML file and
// SEEDPOOL_* environment variables. A loaded Config is never mutated.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix       = "SEEDPOOL"
	DefaultFileName = "seedpool.toml"
	configName      = "seedpool"
	configType      = "toml"
	configDir       = "seedpool"
)

// DevKeyName and DevKey form the credential used when the api_keys table is
// absent. An empty [auth.api_keys] table disables it.
const (
	DevKeyName = "silent_client_dev"
	DevKey     = "development-only-key"
)

type Config struct {
	Pool      PoolConfig      `mapstructure:"pool"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Media     MediaConfig     `mapstructure:"media"`
	System    SystemConfig    `mapstructure:"system"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// File is the config file the values were read from, empty when none was found.
	File string `mapstructure:"-"`
}

type PoolConfig struct {
	Capacity       int `mapstructure:"capacity"`
	BootstrapBytes int `mapstructure:"bootstrap_bytes"`
}

type RefreshConfig struct {
	Interval             time.Duration `mapstructure:"interval"`
	Budget               time.Duration `mapstructure:"budget"`
	Watchdog             time.Duration `mapstructure:"watchdog"`
	SourceTimeout        time.Duration `mapstructure:"source_timeout"`
	SourceReserve        time.Duration `mapstructure:"source_reserve"`
	PollFloor            time.Duration `mapstructure:"poll_floor"`
	PollCeiling          time.Duration `mapstructure:"poll_ceiling"`
	FailureSkipThreshold int           `mapstructure:"failure_skip_threshold"`
	FailureCooldown      time.Duration `mapstructure:"failure_cooldown"`
}

type MediaConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Dir             string        `mapstructure:"dir"`
	Extensions      []string      `mapstructure:"extensions"`
	FrameSkip       []string      `mapstructure:"frame_skip"`
	MaxPixels       int           `mapstructure:"max_pixels"`
	FileBudget      time.Duration `mapstructure:"file_budget"`
	FrameReadGuard  time.Duration `mapstructure:"frame_read_guard"`
	WatchdogGrace   time.Duration `mapstructure:"watchdog_grace"`
	ShortFileFrames int           `mapstructure:"short_file_frames"`
	MaxFramesShort  int           `mapstructure:"max_frames_short"`
	MaxFrames       int           `mapstructure:"max_frames"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	Watch           bool          `mapstructure:"watch"`
}

type SystemConfig struct {
	Dir           string `mapstructure:"dir"`
	TimingSamples int    `mapstructure:"timing_samples"`
	SampledFiles  int    `mapstructure:"sampled_files"`
	RandomBytes   int    `mapstructure:"random_bytes"`
}

type AuthConfig struct {
	// APIKeys maps a credential name to its key. Names are lower-cased on load.
	APIKeys  map[string]string `mapstructure:"api_keys"`
	KeysFile string            `mapstructure:"keys_file"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	IdleTTL  time.Duration `mapstructure:"idle_ttl"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	Metrics bool `mapstructure:"metrics"`
	Tracing bool `mapstructure:"tracing"`
}

// FrameSkipRange is an inclusive [Min, Max] range of frames between samples.
type FrameSkipRange struct {
	Min int
	Max int
}

func Default() Config {
	return Config{
		Pool: PoolConfig{
			Capacity:       1024 * 1024,
			BootstrapBytes: 100 * 1024,
		},
		Refresh: RefreshConfig{
			Interval:             5 * time.Minute,
			Budget:               90 * time.Second,
			Watchdog:             75 * time.Second,
			SourceTimeout:        25 * time.Second,
			SourceReserve:        5 * time.Second,
			PollFloor:            15 * time.Second,
			PollCeiling:          10 * time.Minute,
			FailureSkipThreshold: 3,
			FailureCooldown:      2 * time.Minute,
		},
		Media: MediaConfig{
			Enabled:         true,
			Dir:             "videos",
			Extensions:      []string{".mp4", ".avi", ".mov", ".mkv", ".webm", ".wmv", ".flv", ".m4v", ".gif"},
			FrameSkip:       []string{"30-50", "40-60", "20-40"},
			MaxPixels:       15000,
			FileBudget:      10 * time.Second,
			FrameReadGuard:  300 * time.Millisecond,
			WatchdogGrace:   2 * time.Second,
			ShortFileFrames: 1000,
			MaxFramesShort:  30,
			MaxFrames:       50,
			ProbeTimeout:    5 * time.Second,
			Watch:           true,
		},
		System: SystemConfig{
			Dir:           ".",
			TimingSamples: 64,
			SampledFiles:  5,
			RandomBytes:   256,
		},
		Auth: AuthConfig{
			APIKeys:  map[string]string{DevKeyName: DevKey},
			KeysFile: defaultKeysFile(),
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 100,
			Window:   time.Hour,
			IdleTTL:  2 * time.Hour,
		},
		Server: ServerConfig{
			Addr:            "0.0.0.0:5000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			TrustProxy:      false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Metrics: true,
			Tracing: false,
		},
	}
}

// Load reads path, or searches ./seedpool.toml then
// $HOME/.config/seedpool/seedpool.toml when path is empty. A missing file is
// only an error when path was given explicitly.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigType(configType)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if dir, err := userConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if !v.IsSet("auth.api_keys") {
		cfg.Auth.APIKeys = map[string]string{DevKeyName: DevKey}
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override it. The
// api_keys table is left out: viper merges nested maps key by key, which would
// keep the development key alive next to configured ones.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("pool.capacity", d.Pool.Capacity)
	v.SetDefault("pool.bootstrap_bytes", d.Pool.BootstrapBytes)

	v.SetDefault("refresh.interval", d.Refresh.Interval)
	v.SetDefault("refresh.budget", d.Refresh.Budget)
	v.SetDefault("refresh.watchdog", d.Refresh.Watchdog)
	v.SetDefault("refresh.source_timeout", d.Refresh.SourceTimeout)
	v.SetDefault("refresh.source_reserve", d.Refresh.SourceReserve)
	v.SetDefault("refresh.poll_floor", d.Refresh.PollFloor)
	v.SetDefault("refresh.poll_ceiling", d.Refresh.PollCeiling)
	v.SetDefault("refresh.failure_skip_threshold", d.Refresh.FailureSkipThreshold)
	v.SetDefault("refresh.failure_cooldown", d.Refresh.FailureCooldown)

	v.SetDefault("media.enabled", d.Media.Enabled)
	v.SetDefault("media.dir", d.Media.Dir)
	v.SetDefault("media.extensions", d.Media.Extensions)
	v.SetDefault("media.frame_skip", d.Media.FrameSkip)
	v.SetDefault("media.max_pixels", d.Media.MaxPixels)
	v.SetDefault("media.file_budget", d.Media.FileBudget)
	v.SetDefault("media.frame_read_guard", d.Media.FrameReadGuard)
	v.SetDefault("media.watchdog_grace", d.Media.WatchdogGrace)
	v.SetDefault("media.short_file_frames", d.Media.ShortFileFrames)
	v.SetDefault("media.max_frames_short", d.Media.MaxFramesShort)
	v.SetDefault("media.max_frames", d.Media.MaxFrames)
	v.SetDefault("media.probe_timeout", d.Media.ProbeTimeout)
	v.SetDefault("media.watch", d.Media.Watch)

	v.SetDefault("system.dir", d.System.Dir)
	v.SetDefault("system.timing_samples", d.System.TimingSamples)
	v.SetDefault("system.sampled_files", d.System.SampledFiles)
	v.SetDefault("system.random_bytes", d.System.RandomBytes)

	v.SetDefault("auth.keys_file", d.Auth.KeysFile)

	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.requests", d.RateLimit.Requests)
	v.SetDefault("rate_limit.window", d.RateLimit.Window)
	v.SetDefault("rate_limit.idle_ttl", d.RateLimit.IdleTTL)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.trust_proxy", d.Server.TrustProxy)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("telemetry.metrics", d.Telemetry.Metrics)
	v.SetDefault("telemetry.tracing", d.Telemetry.Tracing)
}

// Validate checks configuration validity.
func (c Config) Validate() error {
	var errs []error

	if c.Pool.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("pool.capacity must be positive, got %d", c.Pool.Capacity))
	}
	if c.Pool.BootstrapBytes < 0 {
		errs = append(errs, fmt.Errorf("pool.bootstrap_bytes must not be negative, got %d", c.Pool.BootstrapBytes))
	}

	durations := map[string]time.Duration{
		"refresh.interval":       c.Refresh.Interval,
		"refresh.budget":         c.Refresh.Budget,
		"refresh.watchdog":       c.Refresh.Watchdog,
		"refresh.source_timeout": c.Refresh.SourceTimeout,
		"refresh.poll_floor":     c.Refresh.PollFloor,
		"refresh.poll_ceiling":   c.Refresh.PollCeiling,
	}
	for key, d := range durations {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", key, d))
		}
	}
	if c.Refresh.SourceReserve < 0 {
		errs = append(errs, fmt.Errorf("refresh.source_reserve must not be negative, got %s", c.Refresh.SourceReserve))
	}
	if c.Refresh.PollCeiling > 0 && c.Refresh.PollCeiling < c.Refresh.PollFloor {
		errs = append(errs, fmt.Errorf("refresh.poll_ceiling %s is below refresh.poll_floor %s", c.Refresh.PollCeiling, c.Refresh.PollFloor))
	}

	if _, err := c.Media.FrameSkipRanges(); err != nil {
		errs = append(errs, err)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.requests must be positive, got %d", c.RateLimit.Requests))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window))
		}
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// FrameSkipRanges parses media.frame_skip entries of the form "min-max".
func (m MediaConfig) FrameSkipRanges() ([]FrameSkipRange, error) {
	ranges := make([]FrameSkipRange, 0, len(m.FrameSkip))
	for _, raw := range m.FrameSkip {
		lo, hi, ok := strings.Cut(strings.TrimSpace(raw), "-")
		if !ok {
			return nil, fmt.Errorf("media.frame_skip entry %q: expected min-max", raw)
		}
		minSkip, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("media.frame_skip entry %q: %w", raw, err)
		}
		maxSkip, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("media.frame_skip entry %q: %w", raw, err)
		}
		if minSkip < 1 || maxSkip < minSkip {
			return nil, fmt.Errorf("media.frame_skip entry %q: need 1 <= min <= max", raw)
		}
		ranges = append(ranges, FrameSkipRange{Min: minSkip, Max: maxSkip})
	}

	return ranges, nil
}

func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, ".config", configDir), nil
}

func defaultKeysFile() string {
	dir, err := userConfigDir()
	if err != nil {
		return "keys.toml"
	}

	return filepath.Join(dir, "keys.toml")
}

// DefaultPath is where `config init` writes when no path is given.
func DefaultPath() string {
	dir, err := userConfigDir()
	if err != nil {
		return DefaultFileName
	}

	return filepath.Join(dir, DefaultFileName)
}
