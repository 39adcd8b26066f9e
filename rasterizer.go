package img2ascii

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strings"
	"time"

	"github.com/wbrown/img2ascii/imageutil"
)

// Detail boost weights. Edges pull harder than flat texture.
const (
	edgeWeight     = 1.1
	varianceWeight = 0.9
	detailStrength = 0.28
)

// DefaultMaxSurfacePixels caps the supersampled buffer the default surface
// factory will allocate (520 cols x 10 fidelity x a tall grid fits).
const DefaultMaxSurfacePixels = 64 << 20

// Decoder turns encoded bytes into a bitmap.
type Decoder interface {
	Decode(r io.Reader) (image.Image, error)
}

// SurfaceFactory allocates off-screen drawing surfaces.
type SurfaceFactory interface {
	NewSurface(width, height int) (*image.RGBA, error)
}

// MemorySurfaces allocates in-memory RGBA buffers up to MaxPixels.
type MemorySurfaces struct {
	MaxPixels int
}

// NewSurface returns a transparent buffer, or ErrImageProcessingUnavailable
// when the size is empty or over budget.
func (m MemorySurfaces) NewSurface(width, height int) (*image.RGBA, error) {
	limit := m.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxSurfacePixels
	}
	if width <= 0 || height <= 0 || width*height > limit {
		return nil, fmt.Errorf("%w: cannot allocate %dx%d surface",
			ErrImageProcessingUnavailable, width, height)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

// Params is the rasterization parameter bundle.
type Params struct {
	Label             string
	FontSize          float64
	Contrast          float64 // percent, 100 = unchanged
	WhiteThreshold    float64 // 0..255
	EdgeThreshold     float64 // 0..255
	VarianceThreshold float64 // 0..255
	Fidelity          int     // 1..10
	Transform         Transform
}

// DefaultParams returns the generator defaults.
func DefaultParams() Params {
	return Params{
		Label:             "default",
		FontSize:          7,
		Contrast:          160,
		WhiteThreshold:    228,
		EdgeThreshold:     32,
		VarianceThreshold: 28,
		Fidelity:          6,
		Transform: Transform{
			Fit:   FitContain,
			Scale: 100,
		},
	}
}

// Viewport is the pixel size of the area the grid is sized for, padding
// included.
type Viewport struct {
	Width  int
	Height int
}

// Rasterizer converts bitmaps into artifacts. It holds no per-call state
// and may be shared between goroutines.
type Rasterizer struct {
	decoder  Decoder
	surfaces SurfaceFactory
	metrics  *FontMetrics
	interp   imageutil.Interpolation
	paddingX float64
	paddingY float64
	now      func() time.Time
}

// RasterizerOption is a functional option for configuring a Rasterizer.
type RasterizerOption func(*Rasterizer)

// NewRasterizer creates a Rasterizer. Defaults: imageutil decoder,
// in-memory surfaces, 12px padding, fixed cell factors.
func NewRasterizer(opts ...RasterizerOption) *Rasterizer {
	r := &Rasterizer{
		decoder:  imageutil.Decoder{},
		surfaces: MemorySurfaces{},
		paddingX: DefaultPaddingX,
		paddingY: DefaultPaddingY,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithDecoder replaces the image decoder.
func WithDecoder(d Decoder) RasterizerOption {
	return func(r *Rasterizer) {
		r.decoder = d
	}
}

// WithSurfaceFactory replaces the off-screen surface allocator.
func WithSurfaceFactory(f SurfaceFactory) RasterizerOption {
	return func(r *Rasterizer) {
		r.surfaces = f
	}
}

// WithPadding sets the padding removed from each side of the viewport.
func WithPadding(x, y float64) RasterizerOption {
	return func(r *Rasterizer) {
		r.paddingX = x
		r.paddingY = y
	}
}

// WithMeasuredCells sizes cell width from the font's advance instead of
// the fixed 0.62 factor.
func WithMeasuredCells(fm *FontMetrics) RasterizerOption {
	return func(r *Rasterizer) {
		r.metrics = fm
	}
}

// WithInterpolation selects the resampling kernel used to draw the source
// image into the supersample buffer. The default is bilinear.
func WithInterpolation(interp imageutil.Interpolation) RasterizerOption {
	return func(r *Rasterizer) {
		r.interp = interp
	}
}

// WithClock sets the clock used to stamp artifacts.
func WithClock(now func() time.Time) RasterizerOption {
	return func(r *Rasterizer) {
		r.now = now
	}
}

// RasterizeReader decodes an image and rasterizes it. Decode failures
// wrap ErrImageLoadFailed.
func (r *Rasterizer) RasterizeReader(src io.Reader, p Params, vp Viewport) (*Artifact, error) {
	img, err := r.decoder.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageLoadFailed, err)
	}
	return r.Rasterize(img, p, vp)
}

// Rasterize converts img into an artifact sized for vp. Output depends only
// on the pixels, p and vp.
func (r *Rasterizer) Rasterize(img image.Image, p Params, vp Viewport) (*Artifact, error) {
	start := time.Now()
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrImageLoadFailed)
	}
	p = p.normalized()

	ramp, err := NewRamp(BuildRamp(p.Fidelity))
	if err != nil {
		return nil, err
	}

	charWidth, lineHeight := CellSize(p.FontSize, CharWidthFactor, LineHeightFactor)
	widthFactor := CharWidthFactor
	if r.metrics != nil {
		charWidth = r.metrics.MeasureAdvance(p.FontSize)
		widthFactor = charWidth / p.FontSize
	}
	size := img.Bounds().Size()
	grid := ComputeGrid(GridInput{
		AvailableWidth:  math.Max(1, float64(vp.Width)-r.paddingX*2),
		AvailableHeight: math.Max(1, float64(vp.Height)-r.paddingY*2),
		CharWidth:       charWidth,
		LineHeight:      lineHeight,
		ImageWidth:      size.X,
		ImageHeight:     size.Y,
	})

	sample := p.Fidelity
	surface, err := r.surfaces.NewSurface(grid.Cols*sample, grid.Rows*sample)
	if err != nil {
		if !errors.Is(err, ErrImageProcessingUnavailable) {
			err = fmt.Errorf("%w: %v", ErrImageProcessingUnavailable, err)
		}
		return nil, err
	}
	drawSource(surface, img, p.Transform, r.interp)

	lines := toneLines(imageutil.NewLumaPlane(surface), grid, ramp, p)

	render := DefaultRenderMetrics()
	render.CharWidthFactor = widthFactor
	render.PaddingX = r.paddingX
	render.PaddingY = r.paddingY

	a := &Artifact{
		Version:    ArtifactVersion,
		Label:      p.Label,
		CreatedAt:  r.now().UTC().Truncate(time.Millisecond),
		Dimensions: Dimensions{Cols: grid.Cols, Rows: grid.Rows},
		Lines:      lines,
		Generation: Generation{
			FontSize:          p.FontSize,
			AspectCorrection:  100,
			Contrast:          p.Contrast,
			WhiteThreshold:    p.WhiteThreshold,
			EdgeThreshold:     p.EdgeThreshold,
			VarianceThreshold: p.VarianceThreshold,
			Complexity:        p.Fidelity,
			Ramp:              ramp.String(),
			Transform:         p.Transform,
		},
		Effects: DefaultEffects(),
		Render:  render,
	}
	Logger().Debug("rasterized image",
		"label", p.Label, "cols", grid.Cols, "rows", grid.Rows,
		"fidelity", p.Fidelity, "elapsed", time.Since(start))
	return a, nil
}

func (p Params) normalized() Params {
	p.Fidelity = clampInt(p.Fidelity, MinFidelity, MaxFidelity)
	if p.FontSize <= 0 {
		p.FontSize = DefaultParams().FontSize
	}
	if !p.Transform.Fit.Valid() {
		p.Transform.Fit = FitContain
	}
	return p
}

// drawSource renders img into the supersample buffer. The default contain
// transform stretches to fill; every other transform letterboxes or crops
// on white.
func drawSource(dst *image.RGBA, img image.Image, t Transform, interp imageutil.Interpolation) {
	if t.IsIdentity() {
		imageutil.Stretch(dst, img, interp)
		return
	}
	src := imageutil.RGBAImageFromImage(img)
	imageutil.Place(dst, src.RGBA, imageutil.Placement{
		Cover:    t.Fit == FitCover,
		Scale:    t.Scale / 100,
		Rotation: t.Rotation,
		OffsetX:  t.OffsetX,
		OffsetY:  t.OffsetY,
		Interp:   interp,
	}, color.White)
}

// cellTone holds the measurements of one supersampled block.
type cellTone struct {
	Mean     float64
	Variance float64
	Edge     float64
}

func measureCell(luma *imageutil.LumaPlane, x0, y0, sample int) cellTone {
	var sum, sumSquares float64
	for sy := 0; sy < sample; sy++ {
		for sx := 0; sx < sample; sx++ {
			l := luma.At(x0+sx, y0+sy)
			sum += l
			sumSquares += l * l
		}
	}
	count := float64(sample * sample)
	mean := sum / count
	cx, cy := x0+sample/2, y0+sample/2
	return cellTone{
		Mean:     mean,
		Variance: math.Max(0, sumSquares/count-mean*mean),
		Edge: (math.Abs(luma.At(cx+1, cy)-luma.At(cx-1, cy)) +
			math.Abs(luma.At(cx, cy+1)-luma.At(cx, cy-1))) * 0.5,
	}
}

// tone maps cell measurements to a darkness value in [0, 1], 0 being
// black. Detail above the thresholds darkens the cell in proportion to
// fidelity.
func (p Params) tone(c cellTone) float64 {
	edgeGate := clampFloat((c.Edge*255-p.EdgeThreshold)/255, 0, 1)
	varianceGate := clampFloat((math.Sqrt(c.Variance)*255-p.VarianceThreshold)/255, 0, 1)

	tone := (c.Mean-0.5)*(p.Contrast/100) + 0.5
	detail := (edgeGate*edgeWeight + varianceGate*varianceWeight) *
		(float64(p.Fidelity-1) / float64(MaxFidelity-1))
	return clampFloat(tone-detail*detailStrength, 0, 1)
}

func toneLines(luma *imageutil.LumaPlane, grid Grid, ramp Ramp, p Params) []string {
	whiteCutoff := p.WhiteThreshold / 255
	sample := p.Fidelity
	lines := make([]string, grid.Rows)
	var b strings.Builder
	for row := 0; row < grid.Rows; row++ {
		b.Reset()
		for col := 0; col < grid.Cols; col++ {
			tone := p.tone(measureCell(luma, col*sample, row*sample, sample))
			if tone >= whiteCutoff {
				b.WriteByte(' ')
				continue
			}
			b.WriteRune(ramp.ForTone(tone))
		}
		lines[row] = b.String()
	}
	return lines
}
