package img2ascii

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

const (
	scanlineOpacity = 0.3
	noiseArea       = 8000
	statusFontSize  = 12
	statusInset     = 12
)

var (
	scanlineRGB = [3]uint8{2, 8, 18}
	noiseRGB    = [3]uint8{216, 230, 255}
	statusColor = color.RGBA{R: 0x95, G: 0xa2, B: 0xbd, A: 255}
)

// Painter draws frames onto RGBA surfaces.
type Painter struct {
	metrics *FontMetrics
}

// NewPainter returns a painter drawing glyphs with fm. A nil fm gives the
// painter its own metrics for the embedded mono font, so painters share no
// face cache.
func NewPainter(fm *FontMetrics) *Painter {
	if fm == nil {
		var err error
		if fm, err = NewFontMetrics(nil); err != nil {
			Logger().Warn("embedded font unavailable, using shared metrics", "err", err)
			fm = DefaultFontMetrics()
		}
	}
	return &Painter{metrics: fm}
}

// Paint clears dst to the artifact background, draws every non-space cell
// of f and applies the scanline and pixel noise post effects. t is the
// frame clock in milliseconds.
func (p *Painter) Paint(dst *image.RGBA, a *Artifact, f *Frame, t float64) {
	bg := colorOr(a.Render.Background, DefaultBackground)
	fg := image.NewUniform(colorOr(a.Render.Foreground, DefaultForeground))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	for _, row := range f.Rows {
		p.metrics.DrawRunes(dst, fg, f.FontSize, f.FrameX+row.ShiftX, row.Y, f.CharWidth, row.Cells)
	}

	if a.Effects.ScanlineIntensity > 0 {
		paintScanlines(dst, a.Effects.ScanlineIntensity, f.Scale)
	}
	if a.Effects.NoiseIntensity > 0 {
		paintNoise(dst, a.Effects.NoiseIntensity, t)
	}
}

// PaintStatus fills dst with bg and writes msg at the left edge, vertically
// centred. An empty msg paints the background only.
func (p *Painter) PaintStatus(dst *image.RGBA, bg color.Color, msg string) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	if msg == "" {
		return
	}
	// Centre the ascent on the middle row.
	y := float64(dst.Bounds().Dy())/2 - p.metrics.Ascent(statusFontSize)/2
	p.metrics.DrawString(dst, image.NewUniform(statusColor), statusFontSize, statusInset, y, msg)
}

func paintScanlines(dst *image.RGBA, intensity, scale float64) {
	b := dst.Bounds()
	stripe := image.NewUniform(translucent(scanlineRGB[0], scanlineRGB[1], scanlineRGB[2],
		intensity/100*scanlineOpacity))
	step := max(2, int(math.Round(3*scale)))
	for y := b.Min.Y; y < b.Max.Y; y += step {
		draw.Draw(dst, image.Rect(b.Min.X, y, b.Max.X, y+1), stripe, image.Point{}, draw.Over)
	}
}

// paintNoise scatters 1x1 light speckles. Count scales with surface area;
// position and opacity come from Hash3 so a given clock reading always
// produces the same speckles.
func paintNoise(dst *image.RGBA, intensity, t float64) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	level := intensity / 100
	count := int(math.Floor(float64(w*h) * level / noiseArea))
	for i := 0; i < count; i++ {
		n := float64(i)
		x := int(math.Floor(Hash3(n, math.Floor(t*0.05), 91.9) * float64(w)))
		y := int(math.Floor(Hash3(n, math.Floor(t*0.07), 12.4) * float64(h)))
		alpha := (0.08 + Hash3(n, math.Floor(t*0.09), 55.3)*0.22) * level
		speck := image.NewUniform(translucent(noiseRGB[0], noiseRGB[1], noiseRGB[2], alpha))
		px := image.Pt(b.Min.X+x, b.Min.Y+y)
		draw.Draw(dst, image.Rectangle{Min: px, Max: px.Add(image.Pt(1, 1))}, speck, image.Point{}, draw.Over)
	}
}
