package img2ascii

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wbrown/img2ascii/imageutil"
)

var backgroundRGBA = color.RGBA{R: 0x02, G: 0x05, B: 0x0b, A: 255}

func waitResult(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not finish")
		return nil
	}
}

func copyPix(img *image.RGBA) []byte {
	return append([]byte(nil), img.Pix...)
}

func TestRendererInitialState(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	if r.State() != StateIdle {
		t.Errorf("Expected idle, got %v", r.State())
	}
	if r.Artifact() != nil || r.Status() != "" {
		t.Error("New renderer should have no artifact or status")
	}
	if o := r.FrameOptions(); o != (FrameOptions{Fit: FitContain, Bleed: true}) {
		t.Errorf("Unexpected defaults: %+v", o)
	}
	if frame := r.RenderFrame(0); frame != nil {
		t.Error("Expected nil frame for a zero-size surface")
	}

	r.Resize(64, 48)
	frame := r.RenderFrame(0)
	if frame == nil {
		t.Fatal("Expected a frame after resize")
	}
	if got := frame.RGBAAt(0, 0); got != backgroundRGBA {
		t.Errorf("Expected background %v, got %v", backgroundRGBA, got)
	}
}

func TestRendererOptions(t *testing.T) {
	t.Parallel()

	r := NewRenderer(
		WithFit(FitCover),
		WithTrim(true),
		WithBleed(false),
		WithBackground("#102030"),
		WithFont(DefaultFontMetrics()),
	)
	if o := r.FrameOptions(); o != (FrameOptions{Fit: FitCover, Trim: true}) {
		t.Errorf("Options not applied: %+v", o)
	}

	r.SetFrameOptions(FrameOptions{Fit: "stretch", Bleed: true})
	if o := r.FrameOptions(); o != (FrameOptions{Fit: FitCover, Bleed: true}) {
		t.Errorf("Unknown fit should keep cover: %+v", o)
	}
	r.Resize(10, 10)
	if got := r.RenderFrame(0).RGBAAt(5, 5); got != (color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 255}) {
		t.Errorf("Expected custom background, got %v", got)
	}
}

func TestRendererSetArtifact(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	a := newTestArtifact()
	if err := r.SetArtifact(a); err != nil {
		t.Fatalf("SetArtifact failed: %v", err)
	}
	if r.State() != StateReady || r.Artifact() != a {
		t.Errorf("Expected ready with artifact, got %v", r.State())
	}

	if err := r.SetArtifact(nil); !errors.Is(err, ErrArtifactParse) {
		t.Errorf("Expected ErrArtifactParse for nil, got %v", err)
	}
	if r.State() != StateError || r.Artifact() != nil {
		t.Errorf("Expected error state without artifact, got %v", r.State())
	}
}

func TestRendererLoadArtifactInvalid(t *testing.T) {
	t.Parallel()

	r := NewRenderer(WithBleed(false))
	r.Resize(200, 120)
	if err := r.LoadArtifact([]byte(`{"version": 1, "asciiLines": "nope"}`)); !errors.Is(err, ErrArtifactParse) {
		t.Fatalf("Expected ErrArtifactParse, got %v", err)
	}
	if r.State() != StateError {
		t.Errorf("Expected error state, got %v", r.State())
	}
	if r.Status() == "" {
		t.Error("Expected a status message")
	}
	frame := r.RenderFrame(0)
	if frame == nil {
		t.Fatal("Error state should still paint a frame")
	}
	if got := frame.RGBAAt(frame.Bounds().Dx()-1, 0); got != backgroundRGBA {
		t.Errorf("Expected background in the corner, got %v", got)
	}

	// A valid artifact recovers.
	data, _ := newTestArtifact().MarshalIndent()
	if err := r.LoadArtifact(data); err != nil {
		t.Fatalf("LoadArtifact failed: %v", err)
	}
	if r.State() != StateReady || r.Status() != "" {
		t.Errorf("Expected ready without status, got %v %q", r.State(), r.Status())
	}
}

func TestRendererGenerate(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	release := make(chan struct{})
	ch := r.Generate(context.Background(), func() (*Artifact, error) {
		<-release
		return newTestArtifact(), nil
	})
	if r.State() != StateGenerating {
		t.Errorf("Expected generating, got %v", r.State())
	}
	r.Resize(120, 80)
	r.RenderFrame(0)

	close(release)
	if err := waitResult(t, ch); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if r.State() != StateReady || r.Artifact() == nil {
		t.Errorf("Expected ready with artifact, got %v", r.State())
	}
}

func TestRendererGenerateSuperseded(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	release := make(chan struct{})
	stale := newTestArtifact()
	stale.Label = "stale"
	first := r.Generate(context.Background(), func() (*Artifact, error) {
		<-release
		return stale, nil
	})

	fresh := newTestArtifact()
	fresh.Label = "fresh"
	second := r.Generate(context.Background(), func() (*Artifact, error) {
		return fresh, nil
	})
	if err := waitResult(t, second); err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}

	close(release)
	if err := waitResult(t, first); !errors.Is(err, ErrSuperseded) {
		t.Errorf("Expected ErrSuperseded, got %v", err)
	}
	if got := r.Artifact(); got == nil || got.Label != "fresh" {
		t.Errorf("Stale result replaced the current artifact: %+v", got)
	}
}

func TestRendererGenerateCancelled(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	ch := r.Generate(ctx, func() (*Artifact, error) {
		<-release
		return newTestArtifact(), nil
	})
	cancel()
	close(release)
	if err := waitResult(t, ch); !errors.Is(err, ErrSuperseded) {
		t.Errorf("Expected ErrSuperseded, got %v", err)
	}
	if r.State() != StateIdle || r.Artifact() != nil {
		t.Errorf("Expected idle without artifact, got %v", r.State())
	}
}

func TestRendererGenerateFailureKeepsArtifact(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	prev := newTestArtifact()
	if err := r.SetArtifact(prev); err != nil {
		t.Fatal(err)
	}
	ch := r.Generate(context.Background(), func() (*Artifact, error) {
		return nil, fmt.Errorf("%w: truncated file", ErrImageLoadFailed)
	})
	if err := waitResult(t, ch); !errors.Is(err, ErrImageLoadFailed) {
		t.Fatalf("Expected ErrImageLoadFailed, got %v", err)
	}
	if r.State() != StateReady || r.Artifact() != prev {
		t.Errorf("Failed generation dropped the previous artifact: %v", r.State())
	}
	if r.Status() != loadFailedStatus {
		t.Errorf("Expected status %q, got %q", loadFailedStatus, r.Status())
	}
}

func TestRendererGenerateFailureWithoutArtifact(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	ch := r.Generate(context.Background(), func() (*Artifact, error) {
		return nil, ErrImageProcessingUnavailable
	})
	if err := waitResult(t, ch); !errors.Is(err, ErrImageProcessingUnavailable) {
		t.Fatalf("Expected ErrImageProcessingUnavailable, got %v", err)
	}
	if r.State() != StateError {
		t.Errorf("Expected error state, got %v", r.State())
	}

	// A job returning neither artifact nor error is rejected.
	ch = r.Generate(context.Background(), func() (*Artifact, error) { return nil, nil })
	if err := waitResult(t, ch); !errors.Is(err, ErrArtifactParse) {
		t.Errorf("Expected ErrArtifactParse, got %v", err)
	}
}

func TestRendererGenerateReader(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := imageutil.EncodeAnimatedGIF(&buf,
		[]*image.RGBA{imageutil.CreateCheckerboardImage(40, 40, 8).RGBA}, 0); err != nil {
		t.Fatal(err)
	}
	r := NewRenderer()
	ch := r.GenerateReader(context.Background(), NewRasterizer(), &buf, DefaultParams(),
		Viewport{Width: 320, Height: 240})
	if err := waitResult(t, ch); err != nil {
		t.Fatalf("GenerateReader failed: %v", err)
	}
	if r.State() != StateReady {
		t.Errorf("Expected ready, got %v", r.State())
	}

	ch = r.GenerateReader(context.Background(), NewRasterizer(), strings.NewReader("junk"),
		DefaultParams(), Viewport{Width: 320, Height: 240})
	if err := waitResult(t, ch); !errors.Is(err, ErrImageLoadFailed) {
		t.Errorf("Expected ErrImageLoadFailed, got %v", err)
	}
}

func TestRendererReallocatesOnResizeOnly(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	r.SetArtifact(newTestArtifact())
	r.Resize(100, 80)
	for i := 0; i < 3; i++ {
		r.RenderFrame(float64(i) * 16)
	}
	if frames, reallocs := r.Stats(); frames != 3 || reallocs != 1 {
		t.Errorf("Expected 3 frames and 1 reallocation, got %d and %d", frames, reallocs)
	}

	r.Resize(120, 80)
	frame := r.RenderFrame(64)
	if frame.Bounds().Dx() != 120 || frame.Bounds().Dy() != 80 {
		t.Errorf("Frame size %v after resize", frame.Bounds())
	}
	if _, reallocs := r.Stats(); reallocs != 2 {
		t.Errorf("Expected 2 reallocations, got %d", reallocs)
	}
}

func TestRendererStableWithoutEffects(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	r.SetArtifact(quietArtifact())
	r.Resize(160, 120)
	first := copyPix(r.RenderFrame(0))
	second := copyPix(r.RenderFrame(16))
	if !bytes.Equal(first, second) {
		t.Error("Consecutive frames differ with effects disabled")
	}
}

func TestRendererPaintsGlyphsOnly(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	r.Resize(160, 120)

	r.SetArtifact(quietArtifact("    ", "    "))
	frame := r.RenderFrame(0)
	b := frame.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if got := frame.RGBAAt(x, y); got != backgroundRGBA {
				t.Fatalf("Blank artifact painted %v at %d,%d", got, x, y)
			}
		}
	}

	r.SetArtifact(quietArtifact("@@@@", "@@@@"))
	frame = r.RenderFrame(0)
	inked := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if frame.RGBAAt(x, y) != backgroundRGBA {
				inked++
			}
		}
	}
	if inked == 0 {
		t.Error("Expected glyph pixels for a dense artifact")
	}
}

func TestRendererGlyphPositions(t *testing.T) {
	t.Parallel()

	fm, err := NewFontMetrics(nil)
	if err != nil {
		t.Fatal(err)
	}
	a := quietArtifact("@.#@", "-=+*")
	r := NewRenderer(WithFont(fm), WithBleed(false))
	if err := r.SetArtifact(a); err != nil {
		t.Fatal(err)
	}
	const w, h = 160, 120
	r.Resize(w, h)
	got := r.RenderFrame(0)

	// Unscaled block centred on the surface, one cell per rune.
	font := a.Generation.FontSize
	charWidth, lineHeight := font*CharWidthFactor, font*LineHeightFactor
	originX := math.Floor((w - 4*charWidth) / 2)
	originY := math.Floor((h - 2*lineHeight) / 2)
	want := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(want, want.Bounds(), image.NewUniform(backgroundRGBA), image.Point{}, draw.Src)
	fg := image.NewUniform(colorOr(a.Render.Foreground, DefaultForeground))
	for i, line := range a.Lines {
		fm.DrawRunes(want, fg, font, originX, originY+float64(i)*lineHeight, charWidth, []rune(line))
	}
	if !bytes.Equal(got.Pix, want.Pix) {
		t.Error("Glyphs not painted at their grid positions")
	}
}

func TestRendererTrimFullSpan(t *testing.T) {
	t.Parallel()

	a := newTestArtifact("@..@", "....", "@..@")
	a.Effects.CharDynamism = 70
	a.Effects.GlitchIntensity = 60
	a.Effects.NoiseIntensity = 30

	frames := make([][]byte, 2)
	for i, trim := range []bool{false, true} {
		r := NewRenderer(WithTrim(trim))
		if err := r.SetArtifact(a); err != nil {
			t.Fatal(err)
		}
		r.Resize(180, 140)
		r.PointerMove(90, 70)
		frames[i] = copyPix(r.RenderFrame(1234))
	}
	if !bytes.Equal(frames[0], frames[1]) {
		t.Error("Trim changed the frame of an artifact without blank margins")
	}
}

func TestRendererRejectsOutOfRangeEffects(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	a := newTestArtifact()
	a.Effects.GlitchIntensity = 5000
	a.Effects.CharDynamism = -40
	if err := r.SetArtifact(a); !errors.Is(err, ErrArtifactParse) {
		t.Fatalf("Expected ErrArtifactParse, got %v", err)
	}
	if r.State() != StateError || r.Artifact() != nil {
		t.Errorf("Expected error state without artifact, got %v", r.State())
	}

	prev := newTestArtifact()
	if err := r.SetArtifact(prev); err != nil {
		t.Fatal(err)
	}
	bad := newTestArtifact()
	bad.Render.CharWidthFactor = 0
	ch := r.Generate(context.Background(), func() (*Artifact, error) { return bad, nil })
	if err := waitResult(t, ch); !errors.Is(err, ErrArtifactParse) {
		t.Fatalf("Expected ErrArtifactParse, got %v", err)
	}
	if r.Artifact() != prev || r.State() != StateReady || r.Status() == "" {
		t.Errorf("Expected previous artifact with a status, got %v %q", r.State(), r.Status())
	}
}

func TestRendererOwnFontMetrics(t *testing.T) {
	t.Parallel()

	r1, r2 := NewRenderer(), NewRenderer()
	if r1.painter.metrics == r2.painter.metrics {
		t.Error("Renderers share font metrics")
	}
	fm := DefaultFontMetrics()
	if r := NewRenderer(WithFont(fm)); r.painter.metrics != fm {
		t.Error("WithFont metrics not used")
	}
}

func TestRendererCellFrame(t *testing.T) {
	t.Parallel()

	r := NewRenderer(WithBleed(false))
	if f, a, status := r.CellFrame(0); f != nil || a != nil || status != "" {
		t.Errorf("Expected nothing from an idle renderer, got %v %v %q", f, a, status)
	}

	r.Resize(200, 100)
	if err := r.LoadArtifact([]byte("{")); err == nil {
		t.Fatal("Expected a parse error")
	}
	f, _, status := r.CellFrame(0)
	if f != nil || !strings.Contains(status, ErrArtifactParse.Error()) {
		t.Errorf("Expected the parse error as status, got %v %q", f, status)
	}

	a := quietArtifact()
	r.SetArtifact(a)
	f, got, status := r.CellFrame(16)
	if got != a || status != "" || f == nil {
		t.Fatalf("Expected a frame of the current artifact, got %v %q", f, status)
	}
	want := ComputeFrame(a, Session{Width: 200, Height: 100, Time: 16},
		FrameOptions{Fit: FitContain})
	if !reflect.DeepEqual(f, want) {
		t.Errorf("CellFrame differs from ComputeFrame:\n got %+v\nwant %+v", f, want)
	}
}

func TestRendererPointer(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	r.PointerMove(10, 20)
	if s := r.Session(); !s.Inside || s.PointerX != 10 || s.PointerY != 20 {
		t.Errorf("Unexpected session %+v", s)
	}
	r.PointerLeave()
	if s := r.Session(); s.Inside || s.PointerX != -1000 {
		t.Errorf("Unexpected session after leave %+v", s)
	}
}

func TestRendererConcurrent(t *testing.T) {
	t.Parallel()

	r := NewRenderer()
	a := newTestArtifact()
	a.Effects.CharDynamism = 60
	a.Effects.NoiseIntensity = 40
	r.SetArtifact(a)
	r.Resize(200, 150)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.PointerMove(float64(idx*10+j), float64(j))
				if j%10 == 0 {
					r.Resize(200+idx, 150)
				}
			}
			r.PointerLeave()
		}(i)
	}
	for i := 0; i < 20; i++ {
		r.RenderFrame(float64(i) * 16)
	}
	wg.Wait()
	if frames, _ := r.Stats(); frames == 0 {
		t.Error("Expected frames to be painted")
	}
}
