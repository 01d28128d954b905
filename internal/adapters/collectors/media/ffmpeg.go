package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpegDecoder probes a file with ffprobe and streams raw rgb24 frames out of
// an ffmpeg child process.
type FFmpegDecoder struct {
	probeTimeout time.Duration
	probe        func(path string, timeout time.Duration) (string, error)
	command      func(path string) *exec.Cmd
}

func NewFFmpegDecoder(probeTimeout time.Duration) *FFmpegDecoder {
	return &FFmpegDecoder{
		probeTimeout: probeTimeout,
		probe: func(path string, timeout time.Duration) (string, error) {
			return ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{"select_streams": "v:0"})
		},
		command: func(path string) *exec.Cmd {
			return ffmpeg.Input(path).
				Output("pipe:", ffmpeg.KwArgs{"format": "rawvideo", "pix_fmt": "rgb24"}).
				Compile()
		},
	}
}

func (d *FFmpegDecoder) Open(ctx context.Context, path string) (FrameReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat media file: %w", err)
	}

	raw, err := d.probe(path, d.probeTimeout)
	if err != nil {
		return nil, fmt.Errorf("probe media file: %w", err)
	}
	info, err := parseProbe(raw)
	if err != nil {
		return nil, err
	}

	cmd := d.command(path)
	cmd.Stderr = io.Discard
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attach ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &ffmpegReader{
		cmd:    cmd,
		stdout: stdout,
		info:   info,
	}, nil
}

type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		NbFrames  string `json:"nb_frames"`
	} `json:"streams"`
}

func parseProbe(raw string) (VideoInfo, error) {
	var result probeResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return VideoInfo{}, fmt.Errorf("decode probe output: %w", err)
	}

	for _, stream := range result.Streams {
		if stream.CodecType != "video" || stream.Width <= 0 || stream.Height <= 0 {
			continue
		}
		frames, _ := strconv.Atoi(stream.NbFrames)
		return VideoInfo{Width: stream.Width, Height: stream.Height, Frames: frames}, nil
	}

	return VideoInfo{}, errors.New("no video stream in probe output")
}

type ffmpegReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	info   VideoInfo

	closeOnce sync.Once
}

func (r *ffmpegReader) Info() VideoInfo {
	return r.info
}

func (r *ffmpegReader) ReadFrame() ([]byte, error) {
	frame := make([]byte, r.info.Width*r.info.Height*3)
	if _, err := io.ReadFull(r.stdout, frame); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read ffmpeg frame: %w", err)
	}

	return frame, nil
}

// Close kills the ffmpeg process, which unblocks any pending ReadFrame, and
// reaps it.
func (r *ffmpegReader) Close() error {
	r.closeOnce.Do(func() {
		if r.cmd.Process != nil {
			_ = r.cmd.Process.Kill()
		}
		_ = r.cmd.Wait()
	})

	return nil
}
