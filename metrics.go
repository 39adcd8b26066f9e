package img2ascii

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"os"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

const (
	advanceSample    = "MMMMMMMMMMMM"
	maxVisualSamples = 64

	// maxCachedFaces bounds the per-size face cache. Each face holds its
	// own glyph mask cache.
	maxCachedFaces = 8
)

// FontMetrics measures and draws glyphs of one monospace TrueType font.
// Faces are cached per pixel size, least recently used evicted first. All
// methods are safe for concurrent use;
// truetype faces are not, so access is serialized.
type FontMetrics struct {
	font           *truetype.Font
	name           string
	fallbackFactor float64

	mu    sync.Mutex
	faces map[fixed.Int26_6]font.Face
	order []fixed.Int26_6 // oldest first
}

// NewFontMetrics parses ttf. A nil slice selects the embedded Go Mono font.
func NewFontMetrics(ttf []byte) (*FontMetrics, error) {
	name := "file"
	if ttf == nil {
		ttf = gomono.TTF
		name = "Go Mono"
	}
	f, err := freetype.ParseFont(ttf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &FontMetrics{
		font:           f,
		name:           name,
		fallbackFactor: CharWidthFactor,
		faces:          make(map[fixed.Int26_6]font.Face),
	}, nil
}

// LoadFontMetrics reads a TrueType font file.
func LoadFontMetrics(path string) (*FontMetrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font: %w", err)
	}
	fm, err := NewFontMetrics(data)
	if err != nil {
		return nil, err
	}
	fm.name = path
	return fm, nil
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *FontMetrics
)

// DefaultFontMetrics returns shared metrics for the embedded Go Mono font.
func DefaultFontMetrics() *FontMetrics {
	defaultMetricsOnce.Do(func() {
		fm, err := NewFontMetrics(nil)
		if err != nil {
			// gomono.TTF is compiled in; failure means a broken build.
			panic(err)
		}
		defaultMetrics = fm
	})
	return defaultMetrics
}

// Name identifies the font source.
func (fm *FontMetrics) Name() string { return fm.name }

// face returns the cached face for size. Callers hold fm.mu.
func (fm *FontMetrics) face(size float64) font.Face {
	key := fixed.Int26_6(math.Round(size * 64))
	if f, ok := fm.faces[key]; ok {
		fm.touch(key)
		return f
	}
	if len(fm.order) >= maxCachedFaces {
		delete(fm.faces, fm.order[0])
		fm.order = fm.order[1:]
	}
	f := truetype.NewFace(fm.font, &truetype.Options{
		Size:    float64(key) / 64,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	fm.faces[key] = f
	fm.order = append(fm.order, key)
	return f
}

// touch marks key as most recently used.
func (fm *FontMetrics) touch(key fixed.Int26_6) {
	for i, k := range fm.order {
		if k == key {
			copy(fm.order[i:], fm.order[i+1:])
			fm.order[len(fm.order)-1] = key
			return
		}
	}
}

// MeasureAdvance returns the advance width of one cell at fontSize pixels,
// or fontSize times the fallback factor when the font reports nonsense.
func (fm *FontMetrics) MeasureAdvance(fontSize float64) float64 {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.advance(fontSize)
}

func (fm *FontMetrics) advance(fontSize float64) float64 {
	fallback := fontSize * fm.fallbackFactor
	if fontSize <= 0 {
		return fallback
	}
	w := fixedToFloat(font.MeasureString(fm.face(fontSize), advanceSample)) /
		float64(len(advanceSample))
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return fallback
	}
	return w
}

// MeasureVisualWidth estimates the inked width of the glyphs on ramp.
// The average ink extent of up to 64 distinct non-space glyphs is widened
// by 4% and kept within 52%..96% of the advance width.
func (fm *FontMetrics) MeasureVisualWidth(fontSize float64, ramp string) float64 {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	advance := fm.advance(fontSize)
	if fontSize <= 0 {
		return advance
	}
	face := fm.face(fontSize)

	seen := make(map[rune]bool)
	var sum float64
	var count int
	for _, r := range ramp {
		if r == ' ' || r == '\t' || r == '\n' || seen[r] {
			continue
		}
		seen[r] = true
		if len(seen) > maxVisualSamples {
			break
		}
		bounds, _, ok := face.GlyphBounds(r)
		if !ok {
			continue
		}
		ink := fixedToFloat(bounds.Max.X - bounds.Min.X)
		if ink > 0 && !math.IsInf(ink, 0) {
			sum += ink
			count++
		}
	}
	if count == 0 {
		return advance
	}
	return clampFloat(sum/float64(count)*1.04, advance*0.52, advance*0.96)
}

// Ascent returns the distance from the top of a line to the baseline.
func (fm *FontMetrics) Ascent(fontSize float64) float64 {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fixedToFloat(fm.face(fontSize).Metrics().Ascent)
}

// DrawRunes draws runes left to right starting at the top-left corner
// (x, y), one cell of width advance per rune, skipping spaces.
func (fm *FontMetrics) DrawRunes(dst draw.Image, src image.Image, fontSize, x, y, advance float64, runes []rune) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	face := fm.face(fontSize)
	baseline := y + fixedToFloat(face.Metrics().Ascent)
	for i, r := range runes {
		if r == ' ' {
			continue
		}
		dot := fixed.Point26_6{
			X: floatToFixed(x + float64(i)*advance),
			Y: floatToFixed(baseline),
		}
		dr, mask, maskp, _, ok := face.Glyph(dot, r)
		if !ok {
			continue
		}
		draw.DrawMask(dst, dr, src, image.Point{}, mask, maskp, draw.Over)
	}
}

// DrawString draws s with natural advances, top-left anchored.
func (fm *FontMetrics) DrawString(dst draw.Image, src image.Image, fontSize, x, y float64, s string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	face := fm.face(fontSize)
	d := &font.Drawer{
		Dst:  dst,
		Src:  src,
		Face: face,
		Dot: fixed.Point26_6{
			X: floatToFixed(x),
			Y: floatToFixed(y + fixedToFloat(face.Metrics().Ascent)),
		},
	}
	d.DrawString(s)
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

func floatToFixed(v float64) fixed.Int26_6 { return fixed.Int26_6(math.Round(v * 64)) }
