package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bnema/seedpool/internal/domain"
)

// FileSource samples pixels from one media file. Three guards bound it: the
// file budget stops reading new frames, the frame read guard abandons the file
// after one slow read, and a watchdog closes the decoder if the read loop is
// still running past the budget plus a grace period.
type FileSource struct {
	path    string
	skip    FrameSkipRange
	cfg     Config
	decoder Decoder
	logger  *slog.Logger
}

func NewFileSource(path string, skip FrameSkipRange, cfg Config, decoder Decoder, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}

	return &FileSource{
		path:    path,
		skip:    skip,
		cfg:     cfg.withDefaults(),
		decoder: decoder,
		logger:  logger,
	}
}

func (s *FileSource) Name() string {
	return filepath.Base(s.path)
}

func (s *FileSource) Path() string {
	return s.path
}

func (s *FileSource) Collect(ctx context.Context) ([]byte, error) {
	start := time.Now()
	fileCtx, cancel := context.WithTimeout(ctx, s.cfg.FileBudget)
	defer cancel()

	reader, err := s.decoder.Open(fileCtx, s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrCollectorFailed, s.Name(), err)
	}
	defer reader.Close()

	watchdog := time.AfterFunc(s.cfg.FileBudget+s.cfg.WatchdogGrace, func() {
		s.logger.Warn("media watchdog released decoder", "file", s.Name())
		_ = reader.Close()
	})
	defer watchdog.Stop()

	// an abandoning caller releases the decoder too
	stop := context.AfterFunc(ctx, func() { _ = reader.Close() })
	defer stop()

	info := reader.Info()
	maxFrames := s.cfg.MaxFrames
	if info.Frames > 0 && info.Frames < s.cfg.ShortFileFrames {
		maxFrames = min(info.Frames, s.cfg.MaxFramesShort)
	}
	stride := s.skip.Min + rand.IntN(s.skip.Max-s.skip.Min+1)

	s.logger.Debug("processing media file",
		"file", s.Name(),
		"frames", info.Frames,
		"width", info.Width,
		"height", info.Height,
		"limit", maxFrames,
		"frame_skip", stride,
	)

	var out []byte
	read := 0
	for read < maxFrames {
		if fileCtx.Err() != nil {
			s.logger.Warn("media time budget reached", "file", s.Name(), "frames", read)
			break
		}

		readStart := time.Now()
		frame, err := reader.ReadFrame()
		if elapsed := time.Since(readStart); elapsed > s.cfg.FrameReadGuard {
			s.logger.Warn("frame read too slow, abandoning file", "file", s.Name(), "read_time", elapsed)
			break
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Warn("frame read failed", "file", s.Name(), "error", err)
			break
		}

		if read%stride == 0 {
			if pixels := samplePixels(frame, s.cfg.MaxPixels); len(pixels) > 0 {
				out = strconv.AppendInt(out, int64(read), 10)
				out = append(out, pixels...)
			}
		}
		read++
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s after %d frames", domain.ErrNoEntropy, s.Name(), read)
	}

	s.logger.Debug("media file sampled", "file", s.Name(), "frames", read, "bytes", len(out), "duration", time.Since(start))

	return out, nil
}
