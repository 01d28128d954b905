package media

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"sync/atomic"
)

// GIFDecoder decodes animated GIFs in process. Frames are composited onto a
// canvas of the logical screen size so every frame has the same geometry.
type GIFDecoder struct{}

func (GIFDecoder) Open(ctx context.Context, path string) (FrameReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gif: %w", err)
	}
	defer f.Close()

	anim, err := gif.DecodeAll(f)
	if err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}
	if len(anim.Image) == 0 {
		return nil, fmt.Errorf("decode gif: no frames")
	}

	bounds := image.Rect(0, 0, anim.Config.Width, anim.Config.Height)
	if bounds.Empty() {
		bounds = anim.Image[0].Bounds()
	}

	return &gifReader{
		anim:   anim,
		canvas: image.NewRGBA(bounds),
	}, nil
}

type gifReader struct {
	anim   *gif.GIF
	canvas *image.RGBA
	next   int
	closed atomic.Bool
}

func (r *gifReader) Info() VideoInfo {
	b := r.canvas.Bounds()
	return VideoInfo{Width: b.Dx(), Height: b.Dy(), Frames: len(r.anim.Image)}
}

func (r *gifReader) ReadFrame() ([]byte, error) {
	if r.closed.Load() {
		return nil, errReaderClosed
	}
	if r.next >= len(r.anim.Image) {
		return nil, io.EOF
	}

	frame := r.anim.Image[r.next]
	r.next++
	draw.Draw(r.canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

	pix := r.canvas.Pix
	out := make([]byte, 0, len(pix)/4*3)
	for i := 0; i+3 < len(pix); i += 4 {
		out = append(out, pix[i], pix[i+1], pix[i+2])
	}

	return out, nil
}

func (r *gifReader) Close() error {
	r.closed.Store(true)
	return nil
}
