package media

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// scriptedReader replays frames with optional per-frame delays. A negative
// delay blocks until Close.
type scriptedReader struct {
	info   VideoInfo
	frames [][]byte
	delays []time.Duration

	mu     sync.Mutex
	next   int
	closed chan struct{}
	once   sync.Once
	closes atomic.Int32
	reads  atomic.Int32
}

func newScriptedReader(info VideoInfo, frames [][]byte) *scriptedReader {
	return &scriptedReader{info: info, frames: frames, closed: make(chan struct{})}
}

func (r *scriptedReader) Info() VideoInfo {
	return r.info
}

func (r *scriptedReader) ReadFrame() ([]byte, error) {
	r.mu.Lock()
	idx := r.next
	r.next++
	r.mu.Unlock()
	r.reads.Add(1)

	if idx < len(r.delays) {
		switch d := r.delays[idx]; {
		case d < 0:
			<-r.closed
			return nil, errReaderClosed
		case d > 0:
			time.Sleep(d)
		}
	}

	select {
	case <-r.closed:
		return nil, errReaderClosed
	default:
	}

	if idx >= len(r.frames) {
		return nil, io.EOF
	}
	return r.frames[idx], nil
}

func (r *scriptedReader) Close() error {
	r.closes.Add(1)
	r.once.Do(func() { close(r.closed) })
	return nil
}

type fakeDecoder struct {
	reader *scriptedReader
	err    error
	opened atomic.Int32
}

func (d *fakeDecoder) Open(context.Context, string) (FrameReader, error) {
	d.opened.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	if d.reader == nil {
		return nil, errors.New("no reader scripted")
	}
	return d.reader, nil
}

func solidFrames(count, pixels int) [][]byte {
	frames := make([][]byte, count)
	for i := range frames {
		frame := make([]byte, pixels*3)
		for j := range frame {
			frame[j] = byte(i + j)
		}
		frames[i] = frame
	}
	return frames
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.FileBudget = time.Second
	cfg.FrameReadGuard = 200 * time.Millisecond
	cfg.WatchdogGrace = 100 * time.Millisecond
	cfg.MaxPixels = 4
	return cfg
}
