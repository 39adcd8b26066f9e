package img2ascii

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"
)

// DefaultFrameInterval paces the loop at roughly 60 frames per second.
const DefaultFrameInterval = 16 * time.Millisecond

// Surface receives painted frames. The frame buffer is only valid for the
// duration of the call.
type Surface interface {
	Present(frame *image.RGBA) error
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(frame *image.RGBA) error

// Present calls f(frame).
func (f SurfaceFunc) Present(frame *image.RGBA) error { return f(frame) }

// CellSurface receives resolved character frames, for surfaces that draw
// glyphs themselves such as terminals. f is nil while there is nothing to
// draw; status is the message to show, empty when there is none.
type CellSurface interface {
	PresentCells(f *Frame, a *Artifact, status string) error
}

// ErrLoopRunning is returned by Start on a loop that is already running.
var ErrLoopRunning = errors.New("render loop already running")

// Loop drives a Renderer: one frame per tick, never overlapping, until
// closed. Surface errors are logged and do not stop the loop.
type Loop struct {
	frame    func(t float64) error
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop creates a stopped loop presenting painted frames to s. Ticks
// while the surface has no area present nothing. A non-positive interval
// selects DefaultFrameInterval.
func NewLoop(r *Renderer, s Surface, interval time.Duration) *Loop {
	return newLoop(interval, func(t float64) error {
		frame := r.RenderFrame(t)
		if frame == nil {
			return nil
		}
		return s.Present(frame)
	})
}

// NewCellLoop creates a stopped loop presenting the character grid of
// every frame to s, including ticks without an artifact so the status
// can be shown.
func NewCellLoop(r *Renderer, s CellSurface, interval time.Duration) *Loop {
	return newLoop(interval, func(t float64) error {
		return s.PresentCells(r.CellFrame(t))
	})
}

func newLoop(interval time.Duration, frame func(t float64) error) *Loop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Loop{frame: frame, interval: interval}
}

// Start begins scheduling frames on a new goroutine. The frame clock
// starts at zero. The loop stops when ctx ends or Close is called.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return ErrLoopRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
	return nil
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t := float64(now.Sub(start)) / float64(time.Millisecond)
			if err := l.frame(t); err != nil {
				Logger().Warn("present failed", "err", err)
			}
		}
	}
}

// Close stops scheduling frames and waits for the current frame to
// finish. Closing a stopped loop is a no-op.
func (l *Loop) Close() error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
