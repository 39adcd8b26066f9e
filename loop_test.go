package img2ascii

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopPresentsFrames(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	r.SetArtifact(newTestArtifact())
	r.Resize(64, 48)

	var presented atomic.Int64
	got := make(chan struct{}, 1)
	loop := NewLoop(r, SurfaceFunc(func(frame *image.RGBA) error {
		if frame.Bounds().Dx() != 64 {
			t.Errorf("Unexpected frame size %v", frame.Bounds())
		}
		if presented.Add(1) == 3 {
			got <- struct{}{}
		}
		return errors.New("surface lost")
	}), time.Millisecond)

	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := loop.Start(context.Background()); !errors.Is(err, ErrLoopRunning) {
		t.Errorf("Expected ErrLoopRunning, got %v", err)
	}

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("Loop did not present frames")
	}
	if err := loop.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	stopped := presented.Load()
	time.Sleep(20 * time.Millisecond)
	if presented.Load() != stopped {
		t.Error("Frames presented after Close")
	}
	if err := loop.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}

	// A closed loop can be started again.
	if err := loop.Start(context.Background()); err != nil {
		t.Errorf("Restart failed: %v", err)
	}
	loop.Close()
}

func TestLoopSkipsEmptySurface(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	var presented atomic.Int64
	loop := NewLoop(r, SurfaceFunc(func(*image.RGBA) error {
		presented.Add(1)
		return nil
	}), 0)
	if loop.interval != DefaultFrameInterval {
		t.Errorf("Expected default interval, got %v", loop.interval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := loop.Start(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)
	cancel()
	loop.Close()
	if presented.Load() != 0 {
		t.Errorf("Expected no frames for a zero-size surface, got %d", presented.Load())
	}
}

type cellRecorder struct {
	mu       sync.Mutex
	frames   int
	statuses []string
	got      chan struct{}
}

func (c *cellRecorder) PresentCells(f *Frame, a *Artifact, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f != nil {
		c.frames++
	}
	c.statuses = append(c.statuses, status)
	if len(c.statuses) == 3 {
		c.got <- struct{}{}
	}
	return nil
}

func TestCellLoopPresentsStatus(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	r.Resize(120, 80)
	r.LoadArtifact([]byte(`{"version": 1, "asciiLines": "nope"}`))

	rec := &cellRecorder{got: make(chan struct{}, 1)}
	loop := NewCellLoop(r, rec, time.Millisecond)
	if err := loop.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case <-rec.got:
	case <-time.After(5 * time.Second):
		t.Fatal("Cell loop did not present")
	}
	loop.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.frames != 0 {
		t.Errorf("Expected no frames without an artifact, got %d", rec.frames)
	}
	if rec.statuses[0] != r.Status() || rec.statuses[0] == "" {
		t.Errorf("Expected the parse error status, got %q", rec.statuses[0])
	}
}

func TestCellLoopPresentsFrames(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	r.SetArtifact(newTestArtifact())
	r.Resize(120, 80)

	rec := &cellRecorder{got: make(chan struct{}, 1)}
	loop := NewCellLoop(r, rec, time.Millisecond)
	if err := loop.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case <-rec.got:
	case <-time.After(5 * time.Second):
		t.Fatal("Cell loop did not present")
	}
	loop.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.frames < 3 {
		t.Errorf("Expected cell frames, got %d", rec.frames)
	}
}
