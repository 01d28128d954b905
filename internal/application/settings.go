package application

import "time"

// Settings holds the pool manager tuning. Non-positive fields are replaced by
// the defaults in DefaultSettings, except SourceReserve which may be zero.
type Settings struct {
	PoolCapacity    int
	RefreshInterval time.Duration

	// Budget bounds source collection within a cycle. Watchdog bounds the
	// whole cycle; past it the cycle is abandoned and counted as failed.
	Budget        time.Duration
	Watchdog      time.Duration
	SourceTimeout time.Duration
	SourceReserve time.Duration

	PollFloor            time.Duration
	PollCeiling          time.Duration
	FailureSkipThreshold int
	FailureCooldown      time.Duration

	BootstrapBytes         int
	CollectorFallbackBytes int
	FailureTopUpBytes      int
	TimeoutTopUpBytes      int
	NoMediaBytes           int
	PaddingBytes           int
}

func DefaultSettings() Settings {
	return Settings{
		PoolCapacity:    1024 * 1024,
		RefreshInterval: 5 * time.Minute,

		Budget:        90 * time.Second,
		Watchdog:      75 * time.Second,
		SourceTimeout: 25 * time.Second,
		SourceReserve: 5 * time.Second,

		PollFloor:            15 * time.Second,
		PollCeiling:          10 * time.Minute,
		FailureSkipThreshold: 3,
		FailureCooldown:      2 * time.Minute,

		BootstrapBytes:         100 * 1024,
		CollectorFallbackBytes: 10 * 1024,
		FailureTopUpBytes:      20 * 1024,
		TimeoutTopUpBytes:      64 * 1024,
		NoMediaBytes:           100 * 1024,
		PaddingBytes:           32,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()

	if s.PoolCapacity <= 0 {
		s.PoolCapacity = d.PoolCapacity
	}
	if s.RefreshInterval <= 0 {
		s.RefreshInterval = d.RefreshInterval
	}
	if s.Budget <= 0 {
		s.Budget = d.Budget
	}
	if s.Watchdog <= 0 {
		s.Watchdog = d.Watchdog
	}
	if s.SourceTimeout <= 0 {
		s.SourceTimeout = d.SourceTimeout
	}
	if s.SourceReserve < 0 {
		s.SourceReserve = d.SourceReserve
	}
	if s.PollFloor <= 0 {
		s.PollFloor = d.PollFloor
	}
	if s.PollCeiling <= 0 {
		s.PollCeiling = d.PollCeiling
	}
	if s.FailureSkipThreshold <= 0 {
		s.FailureSkipThreshold = d.FailureSkipThreshold
	}
	if s.FailureCooldown <= 0 {
		s.FailureCooldown = d.FailureCooldown
	}
	if s.BootstrapBytes <= 0 {
		s.BootstrapBytes = d.BootstrapBytes
	}
	if s.CollectorFallbackBytes <= 0 {
		s.CollectorFallbackBytes = d.CollectorFallbackBytes
	}
	if s.FailureTopUpBytes <= 0 {
		s.FailureTopUpBytes = d.FailureTopUpBytes
	}
	if s.TimeoutTopUpBytes <= 0 {
		s.TimeoutTopUpBytes = d.TimeoutTopUpBytes
	}
	if s.NoMediaBytes <= 0 {
		s.NoMediaBytes = d.NoMediaBytes
	}
	if s.PaddingBytes <= 0 {
		s.PaddingBytes = d.PaddingBytes
	}

	return s
}
