// Package media turns video and animated image files into entropy sources.
package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bnema/seedpool/internal/ports"
)

// Catalog tracks the media files in one directory and hands out one source
// per file. It implements ports.SourceRegistry.
type Catalog struct {
	cfg    Config
	video  Decoder
	image  Decoder
	logger *slog.Logger

	mu    sync.RWMutex
	files []string
}

// NewCatalog builds a catalog; video decodes everything but GIFs and defaults
// to ffmpeg.
func NewCatalog(cfg Config, video Decoder, logger *slog.Logger) *Catalog {
	cfg = cfg.withDefaults()
	if video == nil {
		video = NewFFmpegDecoder(cfg.ProbeTimeout)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Catalog{
		cfg:    cfg,
		video:  video,
		image:  GIFDecoder{},
		logger: logger,
	}
}

func (c *Catalog) Dir() string {
	return c.cfg.Dir
}

// Scan re-reads the directory. A missing directory yields an empty catalog.
func (c *Catalog) Scan() error {
	entries, err := os.ReadDir(c.cfg.Dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("scan media dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !c.matches(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(c.cfg.Dir, entry.Name()))
	}
	slices.Sort(files)

	c.mu.Lock()
	c.files = files
	c.mu.Unlock()

	if len(files) == 0 {
		c.logger.Warn("no media files found, using system entropy only", "dir", c.cfg.Dir)
	} else {
		c.logger.Info("media catalog scanned", "dir", c.cfg.Dir, "files", len(files))
	}

	return nil
}

func (c *Catalog) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.files)
}

// Sources returns one source per catalogued file. File i samples with frame
// skip range i modulo the configured ranges.
func (c *Catalog) Sources() []ports.EntropySource {
	files := c.Files()

	sources := make([]ports.EntropySource, 0, len(files))
	for i, path := range files {
		skip := c.cfg.FrameSkip[i%len(c.cfg.FrameSkip)]
		sources = append(sources, NewFileSource(path, skip, c.cfg, c.decoderFor(path), c.logger))
	}

	return sources
}

func (c *Catalog) decoderFor(path string) Decoder {
	if strings.EqualFold(filepath.Ext(path), ".gif") {
		return c.image
	}
	return c.video
}

func (c *Catalog) matches(name string) bool {
	ext := filepath.Ext(name)
	for _, want := range c.cfg.Extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// Watch rescans the catalog whenever a matching file appears, disappears or is
// renamed in the directory, until ctx is done. The directory is created when
// missing.
func (c *Catalog) Watch(ctx context.Context) error {
	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create media watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(c.cfg.Dir); err != nil {
		return fmt.Errorf("watch media dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !c.matches(event.Name) || !event.Has(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			c.logger.Debug("media directory changed", "file", filepath.Base(event.Name), "op", event.Op.String())
			if err := c.Scan(); err != nil {
				c.logger.Warn("media rescan failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("media watcher error", "error", err)
		}
	}
}
