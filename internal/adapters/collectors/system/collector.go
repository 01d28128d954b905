// Package system gathers noise from the running process: clock readings,
// process identifiers and resource usage, scheduling jitter, filesystem
// metadata and a block of operating system randomness. Bytes are concatenated
// unmixed; mixing happens in the pool manager.
package system

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const Name = "system"

type Config struct {
	Dir           string
	TimingSamples int
	SampledFiles  int
	RandomBytes   int
}

func DefaultConfig() Config {
	return Config{
		Dir:           ".",
		TimingSamples: 64,
		SampledFiles:  5,
		RandomBytes:   256,
	}
}

type Collector struct {
	cfg    Config
	random io.Reader
	logger *slog.Logger
}

func New(cfg Config, random io.Reader, logger *slog.Logger) *Collector {
	def := DefaultConfig()
	if cfg.Dir == "" {
		cfg.Dir = def.Dir
	}
	if cfg.TimingSamples <= 0 {
		cfg.TimingSamples = def.TimingSamples
	}
	if cfg.SampledFiles <= 0 {
		cfg.SampledFiles = def.SampledFiles
	}
	if cfg.RandomBytes <= 0 {
		cfg.RandomBytes = def.RandomBytes
	}
	if random == nil {
		random = rand.Reader
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Collector{cfg: cfg, random: random, logger: logger}
}

func (c *Collector) Name() string {
	return Name
}

func (c *Collector) Collect(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	now := time.Now()
	buf.WriteString(now.Format(time.RFC3339Nano))
	buf.Write(binary.BigEndian.AppendUint64(nil, uint64(now.UnixNano())))

	buf.WriteString(strconv.Itoa(os.Getpid()))
	buf.WriteByte('-')
	buf.WriteString(strconv.Itoa(os.Getppid()))
	buf.Write(processTimes())

	jitter, err := c.timingJitter(ctx)
	if err != nil {
		return nil, err
	}
	buf.Write(jitter)

	buf.Write(c.fileMetadata())

	block := make([]byte, c.cfg.RandomBytes)
	if _, err := io.ReadFull(c.random, block); err != nil {
		return nil, fmt.Errorf("read system randomness: %w", err)
	}
	buf.Write(block)

	return buf.Bytes(), nil
}

// timingJitter times a short busy loop of random length and keeps the least
// significant byte of each elapsed duration.
func (c *Collector) timingJitter(ctx context.Context) ([]byte, error) {
	out := make([]byte, 0, c.cfg.TimingSamples)

	for range c.cfg.TimingSamples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		for range 10 + mrand.IntN(91) {
			_ = mrand.Float64()
		}
		out = append(out, byte(time.Since(start).Nanoseconds()))
	}

	return out, nil
}

// fileMetadata stats a random sample of regular files in the configured
// directory. Unreadable entries are skipped.
func (c *Collector) fileMetadata() []byte {
	entries, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		c.logger.Debug("skip file metadata", "dir", c.cfg.Dir, "error", err)
		return nil
	}

	files := make([]os.DirEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, entry)
		}
	}

	var out []byte
	for _, i := range mrand.Perm(len(files))[:min(c.cfg.SampledFiles, len(files))] {
		info, err := os.Stat(filepath.Join(c.cfg.Dir, files[i].Name()))
		if err != nil {
			continue
		}
		out = fmt.Appendf(out, "%d-%d", info.Size(), info.ModTime().UnixNano())
	}

	return out
}
