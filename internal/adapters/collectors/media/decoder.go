package media

import (
	"context"
	"errors"
)

var errReaderClosed = errors.New("frame reader closed")

// VideoInfo describes the decoded stream. Frames is zero when the container
// does not report a frame count.
type VideoInfo struct {
	Width  int
	Height int
	Frames int
}

// FrameReader yields rgb24 frames in stream order and io.EOF after the last
// one. Close releases the decode resource; it is safe to call concurrently
// with ReadFrame and more than once.
type FrameReader interface {
	Info() VideoInfo
	ReadFrame() ([]byte, error)
	Close() error
}

type Decoder interface {
	Open(ctx context.Context, path string) (FrameReader, error)
}
