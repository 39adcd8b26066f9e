package img2ascii

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a Renderer.
type State int

const (
	// StateIdle means no artifact has been supplied yet.
	StateIdle State = iota
	// StateGenerating means a rasterization is in flight.
	StateGenerating
	// StateReady means a valid artifact is being painted.
	StateReady
	// StateError means the last artifact was rejected or no artifact
	// could be produced.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	loadFailedStatus = "Could not load the selected image"
	generatingStatus = "Generating..."
)

// snapshot is swapped atomically so a frame never observes a partially
// updated artifact.
type snapshot struct {
	artifact *Artifact
	state    State
	status   string
}

// Renderer paints an artifact onto an RGBA surface once per frame,
// applying the artifact's animated effects. Pointer and resize updates may
// arrive from any goroutine and take effect on the next frame.
type Renderer struct {
	painter    *Painter
	background string

	// current is read lock-free by frames; stateMu serializes writers
	// and the generation token.
	current atomic.Pointer[snapshot]
	stateMu sync.Mutex
	token   uint64

	// Session state and framing written by event callbacks (guarded by mu).
	mu      sync.Mutex
	session Session
	opts    FrameOptions

	// Frame state, owned by whichever goroutine runs frames.
	frameMu       sync.Mutex
	buffer        *image.RGBA
	frames        uint64
	reallocations uint64
}

// RendererOption is a functional option for configuring a Renderer.
type RendererOption func(*Renderer)

// NewRenderer creates an idle Renderer. Defaults: contain fit, no trim,
// bleed framing enabled, embedded mono font.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		opts:       FrameOptions{Fit: FitContain, Bleed: true},
		background: DefaultBackground,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.painter == nil {
		r.painter = NewPainter(nil)
	}
	r.current.Store(&snapshot{state: StateIdle})
	return r
}

// WithFit sets the fit policy.
func WithFit(fit FitMode) RendererOption {
	return func(r *Renderer) {
		r.opts.Fit = fit
	}
}

// WithTrim crops artifacts to their non-space bounding box.
func WithTrim(trim bool) RendererOption {
	return func(r *Renderer) {
		r.opts.Trim = trim
	}
}

// WithBleed toggles extending the frame over the whole surface.
func WithBleed(bleed bool) RendererOption {
	return func(r *Renderer) {
		r.opts.Bleed = bleed
	}
}

// WithFont draws glyphs with fm instead of the embedded mono font. The
// face cache of fm is shared with every other user of it.
func WithFont(fm *FontMetrics) RendererOption {
	return func(r *Renderer) {
		r.painter = NewPainter(fm)
	}
}

// WithBackground sets the colour painted while no valid artifact is
// available.
func WithBackground(color string) RendererOption {
	return func(r *Renderer) {
		r.background = color
	}
}

// State returns the current lifecycle state.
func (r *Renderer) State() State {
	return r.current.Load().state
}

// Status returns the inline status message, empty when there is none.
func (r *Renderer) Status() string {
	return r.current.Load().status
}

// Artifact returns the artifact currently painted, or nil.
func (r *Renderer) Artifact() *Artifact {
	return r.current.Load().artifact
}

// SetArtifact validates a and makes it current. An invalid artifact moves
// the renderer to StateError and is returned as an error. Pending
// generations are superseded.
func (r *Renderer) SetArtifact(a *Artifact) error {
	var err error
	if a == nil {
		err = fmt.Errorf("%w: nil artifact", ErrArtifactParse)
	} else {
		err = a.Validate()
	}
	r.install(a, err)
	return err
}

// LoadArtifact parses interchange JSON and makes it current.
func (r *Renderer) LoadArtifact(data []byte) error {
	a, err := ParseArtifact(data)
	r.install(a, err)
	return err
}

func (r *Renderer) install(a *Artifact, err error) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.token++
	if err != nil {
		Logger().Warn("artifact rejected", "err", err)
		r.swap(&snapshot{state: StateError, status: err.Error()})
		return
	}
	r.swap(&snapshot{artifact: a, state: StateReady})
}

// swap publishes s. Callers hold stateMu.
func (r *Renderer) swap(s *snapshot) {
	prev := r.current.Swap(s)
	if prev.state != s.state {
		Logger().Info("renderer state", "from", prev.state, "to", s.state)
	}
}

// Generate runs job on a new goroutine and installs its artifact when it
// finishes, unless another generation or artifact arrived, or ctx ended,
// in the meantime. The returned channel yields exactly one value: nil on
// success, ErrSuperseded for a discarded result, or the job's error. A
// failed job leaves the previous artifact in place.
func (r *Renderer) Generate(ctx context.Context, job func() (*Artifact, error)) <-chan error {
	r.stateMu.Lock()
	r.token++
	token := r.token
	r.swap(&snapshot{artifact: r.current.Load().artifact, state: StateGenerating})
	r.stateMu.Unlock()

	done := make(chan error, 1)
	go func() {
		a, err := job()
		if err == nil && a == nil {
			err = fmt.Errorf("%w: generation produced no artifact", ErrArtifactParse)
		}
		if err == nil {
			err = a.Validate()
		}
		done <- r.finish(ctx, token, a, err)
	}()
	return done
}

func (r *Renderer) finish(ctx context.Context, token uint64, a *Artifact, err error) error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.token != token {
		return ErrSuperseded
	}
	last := r.current.Load().artifact
	if ctx.Err() != nil {
		r.swap(settled(last, ""))
		return ErrSuperseded
	}
	if err != nil {
		Logger().Warn("generation failed", "err", err)
		msg := err.Error()
		if errors.Is(err, ErrImageLoadFailed) {
			msg = loadFailedStatus
		}
		r.swap(settled(last, msg))
		return err
	}
	r.swap(&snapshot{artifact: a, state: StateReady})
	return nil
}

// settled is the state after a generation ends without a new artifact.
func settled(last *Artifact, msg string) *snapshot {
	if last != nil {
		return &snapshot{artifact: last, state: StateReady, status: msg}
	}
	if msg == "" {
		return &snapshot{state: StateIdle}
	}
	return &snapshot{state: StateError, status: msg}
}

// GenerateImage rasterizes img in the background.
func (r *Renderer) GenerateImage(ctx context.Context, rz *Rasterizer, img image.Image, p Params, vp Viewport) <-chan error {
	return r.Generate(ctx, func() (*Artifact, error) {
		return rz.Rasterize(img, p, vp)
	})
}

// GenerateReader decodes and rasterizes src in the background.
func (r *Renderer) GenerateReader(ctx context.Context, rz *Rasterizer, src io.Reader, p Params, vp Viewport) <-chan error {
	return r.Generate(ctx, func() (*Artifact, error) {
		return rz.RasterizeReader(src, p, vp)
	})
}

// PointerMove records the pointer position in surface pixels.
func (r *Renderer) PointerMove(x, y float64) {
	r.mu.Lock()
	r.session.PointerX, r.session.PointerY, r.session.Inside = x, y, true
	r.mu.Unlock()
}

// PointerLeave marks the pointer as outside the surface.
func (r *Renderer) PointerLeave() {
	r.mu.Lock()
	r.session.PointerX, r.session.PointerY, r.session.Inside = -1000, -1000, false
	r.mu.Unlock()
}

// Resize sets the surface size used from the next frame on.
func (r *Renderer) Resize(width, height int) {
	r.mu.Lock()
	r.session.Width, r.session.Height = max(0, width), max(0, height)
	r.mu.Unlock()
}

// Session returns a copy of the current session state.
func (r *Renderer) Session() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// FrameOptions returns the framing used for every frame.
func (r *Renderer) FrameOptions() FrameOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts
}

// SetFrameOptions changes the framing from the next frame on. An unknown
// fit mode keeps the current one.
func (r *Renderer) SetFrameOptions(o FrameOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !o.Fit.Valid() {
		o.Fit = r.opts.Fit
	}
	r.opts = o
}

// CellFrame resolves the character grid of one frame for clock reading t
// without painting it, for surfaces that draw cells themselves. It
// returns the artifact the frame was computed from and the status line
// to show. The frame is nil while there is no artifact or the surface
// has no area.
func (r *Renderer) CellFrame(t float64) (*Frame, *Artifact, string) {
	r.mu.Lock()
	s, o := r.session, r.opts
	r.mu.Unlock()
	s.Time = t

	snap := r.current.Load()
	status := snap.status
	if snap.state == StateGenerating && status == "" {
		status = generatingStatus
	}
	if snap.artifact == nil || s.Width <= 0 || s.Height <= 0 {
		return nil, snap.artifact, status
	}
	return ComputeFrame(snap.artifact, s, o), snap.artifact, status
}

// RenderFrame paints one frame for clock reading t (milliseconds) and
// returns the backing buffer. The buffer is reused by the next frame and
// is reallocated only when the surface size changes. RenderFrame returns
// nil while the surface has no area.
func (r *Renderer) RenderFrame(t float64) *image.RGBA {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()

	r.mu.Lock()
	s, o := r.session, r.opts
	r.mu.Unlock()
	s.Time = t
	if s.Width <= 0 || s.Height <= 0 {
		return nil
	}
	if r.buffer == nil || r.buffer.Bounds().Dx() != s.Width || r.buffer.Bounds().Dy() != s.Height {
		r.buffer = image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
		r.reallocations++
		Logger().Debug("surface reallocated", "width", s.Width, "height", s.Height)
	}
	r.frames++

	snap := r.current.Load()
	if snap.artifact == nil {
		msg := snap.status
		if snap.state == StateGenerating {
			msg = generatingStatus
		}
		r.painter.PaintStatus(r.buffer, colorOr(r.background, DefaultBackground), msg)
		return r.buffer
	}

	f := ComputeFrame(snap.artifact, s, o)
	r.painter.Paint(r.buffer, snap.artifact, f, t)
	if snap.status != "" {
		r.painter.metrics.DrawString(r.buffer, image.NewUniform(statusColor),
			statusFontSize, statusInset, statusInset, snap.status)
	}
	return r.buffer
}

// Stats returns the number of frames painted and buffer reallocations.
func (r *Renderer) Stats() (frames, reallocations uint64) {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	return r.frames, r.reallocations
}

// Close discards any in-flight generation.
func (r *Renderer) Close() {
	r.stateMu.Lock()
	r.token++
	r.stateMu.Unlock()
}
