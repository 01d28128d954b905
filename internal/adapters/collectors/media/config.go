package media

import "time"

// FrameSkipRange bounds the random stride between sampled frames.
type FrameSkipRange struct {
	Min int
	Max int
}

type Config struct {
	Dir        string
	Extensions []string
	FrameSkip  []FrameSkipRange

	MaxPixels       int
	FileBudget      time.Duration
	FrameReadGuard  time.Duration
	WatchdogGrace   time.Duration
	ShortFileFrames int
	MaxFramesShort  int
	MaxFrames       int
	ProbeTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Dir:             "videos",
		Extensions:      []string{".mp4", ".avi", ".mov", ".mkv", ".webm", ".wmv", ".flv", ".m4v", ".gif"},
		FrameSkip:       []FrameSkipRange{{Min: 30, Max: 50}, {Min: 40, Max: 60}, {Min: 20, Max: 40}},
		MaxPixels:       15000,
		FileBudget:      10 * time.Second,
		FrameReadGuard:  300 * time.Millisecond,
		WatchdogGrace:   2 * time.Second,
		ShortFileFrames: 1000,
		MaxFramesShort:  30,
		MaxFrames:       50,
		ProbeTimeout:    5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()

	if c.Dir == "" {
		c.Dir = d.Dir
	}
	if len(c.Extensions) == 0 {
		c.Extensions = d.Extensions
	}
	valid := c.FrameSkip[:0:0]
	for _, r := range c.FrameSkip {
		if r.Min >= 1 && r.Max >= r.Min {
			valid = append(valid, r)
		}
	}
	c.FrameSkip = valid
	if len(c.FrameSkip) == 0 {
		c.FrameSkip = d.FrameSkip
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = d.MaxPixels
	}
	if c.FileBudget <= 0 {
		c.FileBudget = d.FileBudget
	}
	if c.FrameReadGuard <= 0 {
		c.FrameReadGuard = d.FrameReadGuard
	}
	if c.WatchdogGrace <= 0 {
		c.WatchdogGrace = d.WatchdogGrace
	}
	if c.ShortFileFrames <= 0 {
		c.ShortFileFrames = d.ShortFileFrames
	}
	if c.MaxFramesShort <= 0 {
		c.MaxFramesShort = d.MaxFramesShort
	}
	if c.MaxFrames <= 0 {
		c.MaxFrames = d.MaxFrames
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}

	return c
}
