package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	configFileMode = 0o600
	configDirMode  = 0o700
)

// fileSchema is the on-disk layout. Durations are written as strings such as
// "1m30s" so the file stays readable and reloads through viper's duration hook.
type fileSchema struct {
	Pool      poolSchema      `toml:"pool" yaml:"pool"`
	Refresh   refreshSchema   `toml:"refresh" yaml:"refresh"`
	Media     mediaSchema     `toml:"media" yaml:"media"`
	System    systemSchema    `toml:"system" yaml:"system"`
	Auth      authSchema      `toml:"auth" yaml:"auth"`
	RateLimit rateLimitSchema `toml:"rate_limit" yaml:"rate_limit"`
	Server    serverSchema    `toml:"server" yaml:"server"`
	Log       logSchema       `toml:"log" yaml:"log"`
	Telemetry telemetrySchema `toml:"telemetry" yaml:"telemetry"`
}

type poolSchema struct {
	Capacity       int `toml:"capacity" yaml:"capacity"`
	BootstrapBytes int `toml:"bootstrap_bytes" yaml:"bootstrap_bytes"`
}

type refreshSchema struct {
	Interval             string `toml:"interval" yaml:"interval"`
	Budget               string `toml:"budget" yaml:"budget"`
	Watchdog             string `toml:"watchdog" yaml:"watchdog"`
	SourceTimeout        string `toml:"source_timeout" yaml:"source_timeout"`
	SourceReserve        string `toml:"source_reserve" yaml:"source_reserve"`
	PollFloor            string `toml:"poll_floor" yaml:"poll_floor"`
	PollCeiling          string `toml:"poll_ceiling" yaml:"poll_ceiling"`
	FailureSkipThreshold int    `toml:"failure_skip_threshold" yaml:"failure_skip_threshold"`
	FailureCooldown      string `toml:"failure_cooldown" yaml:"failure_cooldown"`
}

type mediaSchema struct {
	Enabled         bool     `toml:"enabled" yaml:"enabled"`
	Dir             string   `toml:"dir" yaml:"dir"`
	Extensions      []string `toml:"extensions" yaml:"extensions"`
	FrameSkip       []string `toml:"frame_skip" yaml:"frame_skip"`
	MaxPixels       int      `toml:"max_pixels" yaml:"max_pixels"`
	FileBudget      string   `toml:"file_budget" yaml:"file_budget"`
	FrameReadGuard  string   `toml:"frame_read_guard" yaml:"frame_read_guard"`
	WatchdogGrace   string   `toml:"watchdog_grace" yaml:"watchdog_grace"`
	ShortFileFrames int      `toml:"short_file_frames" yaml:"short_file_frames"`
	MaxFramesShort  int      `toml:"max_frames_short" yaml:"max_frames_short"`
	MaxFrames       int      `toml:"max_frames" yaml:"max_frames"`
	ProbeTimeout    string   `toml:"probe_timeout" yaml:"probe_timeout"`
	Watch           bool     `toml:"watch" yaml:"watch"`
}

type systemSchema struct {
	Dir           string `toml:"dir" yaml:"dir"`
	TimingSamples int    `toml:"timing_samples" yaml:"timing_samples"`
	SampledFiles  int    `toml:"sampled_files" yaml:"sampled_files"`
	RandomBytes   int    `toml:"random_bytes" yaml:"random_bytes"`
}

type authSchema struct {
	APIKeys  map[string]string `toml:"api_keys" yaml:"api_keys"`
	KeysFile string            `toml:"keys_file" yaml:"keys_file"`
}

type rateLimitSchema struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	Requests int    `toml:"requests" yaml:"requests"`
	Window   string `toml:"window" yaml:"window"`
	IdleTTL  string `toml:"idle_ttl" yaml:"idle_ttl"`
}

type serverSchema struct {
	Addr            string `toml:"addr" yaml:"addr"`
	ReadTimeout     string `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
	TrustProxy      bool   `toml:"trust_proxy" yaml:"trust_proxy"`
}

type logSchema struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

type telemetrySchema struct {
	Metrics bool `toml:"metrics" yaml:"metrics"`
	Tracing bool `toml:"tracing" yaml:"tracing"`
}

func toSchema(c Config) fileSchema {
	d := func(v time.Duration) string { return v.String() }

	return fileSchema{
		Pool: poolSchema{
			Capacity:       c.Pool.Capacity,
			BootstrapBytes: c.Pool.BootstrapBytes,
		},
		Refresh: refreshSchema{
			Interval:             d(c.Refresh.Interval),
			Budget:               d(c.Refresh.Budget),
			Watchdog:             d(c.Refresh.Watchdog),
			SourceTimeout:        d(c.Refresh.SourceTimeout),
			SourceReserve:        d(c.Refresh.SourceReserve),
			PollFloor:            d(c.Refresh.PollFloor),
			PollCeiling:          d(c.Refresh.PollCeiling),
			FailureSkipThreshold: c.Refresh.FailureSkipThreshold,
			FailureCooldown:      d(c.Refresh.FailureCooldown),
		},
		Media: mediaSchema{
			Enabled:         c.Media.Enabled,
			Dir:             c.Media.Dir,
			Extensions:      c.Media.Extensions,
			FrameSkip:       c.Media.FrameSkip,
			MaxPixels:       c.Media.MaxPixels,
			FileBudget:      d(c.Media.FileBudget),
			FrameReadGuard:  d(c.Media.FrameReadGuard),
			WatchdogGrace:   d(c.Media.WatchdogGrace),
			ShortFileFrames: c.Media.ShortFileFrames,
			MaxFramesShort:  c.Media.MaxFramesShort,
			MaxFrames:       c.Media.MaxFrames,
			ProbeTimeout:    d(c.Media.ProbeTimeout),
			Watch:           c.Media.Watch,
		},
		System: systemSchema{
			Dir:           c.System.Dir,
			TimingSamples: c.System.TimingSamples,
			SampledFiles:  c.System.SampledFiles,
			RandomBytes:   c.System.RandomBytes,
		},
		Auth: authSchema{
			APIKeys:  c.Auth.APIKeys,
			KeysFile: c.Auth.KeysFile,
		},
		RateLimit: rateLimitSchema{
			Enabled:  c.RateLimit.Enabled,
			Requests: c.RateLimit.Requests,
			Window:   d(c.RateLimit.Window),
			IdleTTL:  d(c.RateLimit.IdleTTL),
		},
		Server: serverSchema{
			Addr:            c.Server.Addr,
			ReadTimeout:     d(c.Server.ReadTimeout),
			WriteTimeout:    d(c.Server.WriteTimeout),
			ShutdownTimeout: d(c.Server.ShutdownTimeout),
			TrustProxy:      c.Server.TrustProxy,
		},
		Log: logSchema{
			Level:  c.Log.Level,
			Format: c.Log.Format,
		},
		Telemetry: telemetrySchema{
			Metrics: c.Telemetry.Metrics,
			Tracing: c.Telemetry.Tracing,
		},
	}
}

// EncodeTOML renders c in the layout Load reads back.
func EncodeTOML(c Config) ([]byte, error) {
	data, err := toml.Marshal(toSchema(c))
	if err != nil {
		return nil, fmt.Errorf("encode config toml: %w", err)
	}

	return data, nil
}

func EncodeYAML(c Config) ([]byte, error) {
	data, err := yaml.Marshal(toSchema(c))
	if err != nil {
		return nil, fmt.Errorf("encode config yaml: %w", err)
	}

	return data, nil
}

// ErrFileExists is returned by WriteFile when path exists and overwrite is false.
var ErrFileExists = errors.New("config file already exists")

// WriteFile writes c to path as TOML with mode 0600.
func WriteFile(path string, c Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrFileExists, path)
		}
	}

	data, err := EncodeTOML(c)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), configDirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, configFileMode); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}
