package media

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestGIF(t *testing.T, path string, frames int) {
	t.Helper()

	palette := color.Palette{color.Black, color.White, color.RGBA{R: 200, G: 10, B: 60, A: 255}}
	anim := &gif.GIF{Config: image.Config{Width: 6, Height: 4, ColorModel: palette}}
	for i := 0; i < frames; i++ {
		img := image.NewPaletted(image.Rect(0, 0, 6, 4), palette)
		for p := range img.Pix {
			img.Pix[p] = uint8((p + i) % len(palette))
		}
		anim.Image = append(anim.Image, img)
		anim.Delay = append(anim.Delay, 1)
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gif.EncodeAll(f, anim))
}

func TestGIFDecoderReadsAllFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.gif")
	writeTestGIF(t, path, 3)

	reader, err := GIFDecoder{}.Open(context.Background(), path)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, VideoInfo{Width: 6, Height: 4, Frames: 3}, reader.Info())

	for i := 0; i < 3; i++ {
		frame, err := reader.ReadFrame()
		require.NoError(t, err)
		assert.Len(t, frame, 6*4*3)
	}

	_, err = reader.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestGIFDecoderClosedReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.gif")
	writeTestGIF(t, path, 2)

	reader, err := GIFDecoder{}.Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, reader.Close())

	_, err = reader.ReadFrame()
	assert.ErrorIs(t, err, errReaderClosed)
}

func TestGIFDecoderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.gif")
	require.NoError(t, os.WriteFile(path, []byte("not a gif"), 0o600))

	_, err := GIFDecoder{}.Open(context.Background(), path)
	assert.Error(t, err)
}

func TestFileSourceWithGIF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.gif")
	writeTestGIF(t, path, 4)

	source := NewFileSource(path, FrameSkipRange{Min: 2, Max: 2}, fastConfig(), GIFDecoder{}, nil)
	out, err := source.Collect(context.Background())
	require.NoError(t, err)

	// frames 0 and 2 sampled, four pixels each
	assert.Len(t, out, 2*(1+4*3))
}

func TestParseProbe(t *testing.T) {
	raw := `{"streams":[{"codec_type":"audio"},{"codec_type":"video","width":640,"height":360,"nb_frames":"742"}]}`

	info, err := parseProbe(raw)
	require.NoError(t, err)
	assert.Equal(t, VideoInfo{Width: 640, Height: 360, Frames: 742}, info)

	info, err = parseProbe(`{"streams":[{"codec_type":"video","width":2,"height":2}]}`)
	require.NoError(t, err)
	assert.Zero(t, info.Frames)

	_, err = parseProbe(`{"streams":[{"codec_type":"audio"}]}`)
	assert.Error(t, err)

	_, err = parseProbe(`not json`)
	assert.Error(t, err)
}

func TestFFmpegDecoderStreamsRawFrames(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	dir := t.TempDir()
	media := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(media, []byte("container"), 0o600))
	raw := filepath.Join(dir, "frames.rgb")
	require.NoError(t, os.WriteFile(raw, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}, 0o600))

	decoder := NewFFmpegDecoder(time.Second)
	decoder.probe = func(string, time.Duration) (string, error) {
		return `{"streams":[{"codec_type":"video","width":2,"height":1,"nb_frames":"2"}]}`, nil
	}
	decoder.command = func(string) *exec.Cmd {
		return exec.Command("cat", raw)
	}

	reader, err := decoder.Open(context.Background(), media)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, VideoInfo{Width: 2, Height: 1, Frames: 2}, reader.Info())

	first, err := reader.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, first)

	second, err := reader.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8, 9, 10, 11, 12}, second)

	_, err = reader.ReadFrame()
	assert.ErrorIs(t, err, io.EOF, "trailing partial frame is treated as end of stream")
}

func TestFFmpegDecoderMissingFile(t *testing.T) {
	decoder := NewFFmpegDecoder(time.Second)
	decoder.probe = func(string, time.Duration) (string, error) {
		t.Fatal("probe must not run for a missing file")
		return "", nil
	}

	_, err := decoder.Open(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
