package img2ascii

import "math"

// Effect tuning. Probabilities are scaled by the matching percentage.
const (
	dynamismChance   = 0.16
	whitespaceChance = 0.22
	pointerFillRate  = 0.5
	pointerDenseRate = 0.24
	glitchChance     = 0.18
	glitchSpan       = 26 // total swing, so +/-13px at full intensity
	fillerGlyph      = '.'

	// maxFrameFontSize caps the scaled font size of a frame.
	maxFrameFontSize = 256
)

// Session is the per-frame input of a renderer: viewport size, pointer
// and clock. Time is in milliseconds on a monotonic clock.
type Session struct {
	Width    int
	Height   int
	PointerX float64
	PointerY float64
	Inside   bool
	Time     float64
}

// FrameOptions select how an artifact is framed.
type FrameOptions struct {
	Fit FitMode

	// Trim crops the artifact to its non-space bounding box first.
	Trim bool

	// Bleed extends the frame with blank cells to cover the whole
	// surface so noise and pointer effects reach beyond the artifact.
	Bleed bool
}

// FrameRow is one resolved row ready to paint.
type FrameRow struct {
	Y      float64
	ShiftX float64
	Cells  []rune
}

// Frame is the transient character grid derived from an artifact for one
// paint. It never aliases artifact memory.
type Frame struct {
	Scale      float64
	FontSize   float64
	CharWidth  float64
	LineHeight float64

	// OriginX and OriginY locate the artifact block; FrameX and FrameY
	// locate cell (0, 0) of Rows, which differ when bleeding.
	OriginX float64
	OriginY float64
	FrameX  float64
	FrameY  float64

	BlockWidth  float64
	BlockHeight float64

	Cols int
	Rows []FrameRow
}

// layout is the geometry shared by ComputeFrame and BlockSize.
type layout struct {
	lines      []string
	cols, rows int
	scale      float64
	fontSize   float64
	charWidth  float64
	lineHeight float64
}

func computeLayout(a *Artifact, s Session, o FrameOptions) layout {
	lines := a.Lines
	cols, rows := a.Dimensions.Cols, a.Dimensions.Rows
	if o.Trim {
		lines = TrimLines(lines)
		rows = len(lines)
		cols = 0
		for _, line := range lines {
			cols = max(cols, len([]rune(line)))
		}
	}

	baseFont := positiveOr(a.Generation.FontSize, 1)
	baseCharWidth := baseFont * positiveOr(a.Render.CharWidthFactor, CharWidthFactor)
	baseLineHeight := baseFont * positiveOr(a.Render.LineHeightFactor, LineHeightFactor)
	availW := math.Max(1, float64(s.Width)-positiveOr(a.Render.PaddingX, 0)*2)
	availH := math.Max(1, float64(s.Height)-positiveOr(a.Render.PaddingY, 0)*2)
	scaleX := availW / math.Max(1, float64(cols)*baseCharWidth)
	scaleY := availH / math.Max(1, float64(rows)*baseLineHeight)

	scale := math.Min(1, math.Min(scaleX, scaleY))
	if o.Fit == FitCover {
		scale = math.Max(scaleX, scaleY)
	}
	scale = math.Min(scale, maxFrameFontSize/baseFont)
	return layout{
		lines:      lines,
		cols:       cols,
		rows:       rows,
		scale:      scale,
		fontSize:   math.Max(1, baseFont*scale),
		charWidth:  math.Max(0.5, baseCharWidth*scale),
		lineHeight: math.Max(1, baseLineHeight*scale),
	}
}

// positiveOr returns v when it is a positive finite number, else def.
func positiveOr(v, def float64) float64 {
	if v > 0 && !math.IsInf(v, 0) {
		return v
	}
	return def
}

// BlockSize returns the scaled pixel size of the artifact block for s.
func BlockSize(a *Artifact, s Session, o FrameOptions) (width, height float64) {
	l := computeLayout(a, s, o)
	return float64(l.cols) * l.charWidth, float64(l.rows) * l.lineHeight
}

// ComputeFrame resolves every cell of one frame: scale and framing, then
// per cell character dynamism, whitespace noise and pointer expansion in
// that order, then the per-row glitch shift. It is a pure function of its
// inputs.
func ComputeFrame(a *Artifact, s Session, o FrameOptions) *Frame {
	l := computeLayout(a, s, o)
	f := &Frame{
		Scale:       l.scale,
		FontSize:    l.fontSize,
		CharWidth:   l.charWidth,
		LineHeight:  l.lineHeight,
		BlockWidth:  float64(l.cols) * l.charWidth,
		BlockHeight: float64(l.rows) * l.lineHeight,
	}
	if l.cols == 0 || l.rows == 0 {
		return f
	}

	width, height := float64(s.Width), float64(s.Height)
	f.OriginX = math.Floor((width - f.BlockWidth) / 2)
	f.OriginY = math.Floor((height - f.BlockHeight) / 2)

	leftCols, topRows := 0, 0
	frameCols, frameRows := l.cols, l.rows
	if o.Bleed {
		leftCols = max(0, int(math.Ceil(f.OriginX/l.charWidth)))
		topRows = max(0, int(math.Ceil(f.OriginY/l.lineHeight)))
		rightCols := max(1, int(math.Ceil((width-f.OriginX)/l.charWidth)))
		bottomRows := max(1, int(math.Ceil((height-f.OriginY)/l.lineHeight)))
		frameCols = leftCols + rightCols
		frameRows = topRows + bottomRows
	}
	f.Cols = frameCols
	f.FrameX = f.OriginX - float64(leftCols)*l.charWidth
	f.FrameY = f.OriginY - float64(topRows)*l.lineHeight

	ramp, err := NewRamp(a.Generation.Ramp)
	if err != nil {
		// Validated artifacts always carry a usable ramp.
		ramp, _ = NewRamp(" " + string(fillerGlyph))
	}
	var fx *cellEffects
	if !a.Effects.Disabled() {
		fx = newCellEffects(a.Effects, ramp, s, f, l)
	}

	source := make([][]rune, len(l.lines))
	for i, line := range l.lines {
		source[i] = []rune(line)
	}

	f.Rows = make([]FrameRow, frameRows)
	for row := 0; row < frameRows; row++ {
		var src []rune
		if sr := row - topRows; sr >= 0 && sr < len(source) {
			src = source[sr]
		}
		cells := make([]rune, frameCols)
		for col := range cells {
			ch := ' '
			if sc := col - leftCols; sc >= 0 && sc < len(src) {
				ch = src[sc]
			}
			cells[col] = fx.resolve(ch, col, row)
		}
		f.Rows[row] = FrameRow{
			Y:      f.FrameY + float64(row)*l.lineHeight,
			ShiftX: fx.glitch(row),
			Cells:  cells,
		}
	}
	return f
}

// cellEffects holds the per-frame constants of the cell effects.
type cellEffects struct {
	e        Effects
	ramp     Ramp
	time     float64
	timeSeed float64
	scale    float64

	pointer      bool
	pointerCol   float64
	pointerRow   float64
	radiusInCell float64
}

func newCellEffects(e Effects, ramp Ramp, s Session, f *Frame, l layout) *cellEffects {
	return &cellEffects{
		e:            e,
		ramp:         ramp,
		time:         s.Time,
		timeSeed:     s.Time * (0.0008 + e.DynamismSpeed*0.0004),
		scale:        f.Scale,
		pointer:      e.MouseExpandEnabled && s.Inside,
		pointerCol:   (s.PointerX - f.FrameX) / l.charWidth,
		pointerRow:   (s.PointerY - f.FrameY) / l.lineHeight,
		radiusInCell: e.MouseRadius / math.Max(l.charWidth, l.lineHeight),
	}
}

func (fx *cellEffects) resolve(ch rune, col, row int) rune {
	if fx == nil {
		return ch
	}
	c, r := float64(col), float64(row)

	if fx.e.CharDynamism > 0 && ch != ' ' {
		p := fx.e.CharDynamism / 100 * dynamismChance
		if Hash3(c, r, math.Floor(fx.timeSeed*60)) < p && fx.ramp.Contains(ch) {
			dir := 1
			if Hash3(r, c, math.Floor(fx.timeSeed*80)+1) < 0.5 {
				dir = -1
			}
			ch = fx.ramp.Step(ch, dir)
		}
	}

	if fx.e.WhitespaceNoise > 0 && ch == ' ' {
		p := fx.e.WhitespaceNoise / 100 * whitespaceChance
		if Hash3(c*1.7, r*2.1, math.Floor(fx.timeSeed*90)+7) < p {
			ch = fillerGlyph
		}
	}

	if fx.pointer && fx.radiusInCell > 0 {
		dx, dy := c-fx.pointerCol, r-fx.pointerRow
		influence := math.Max(0, 1-math.Sqrt(dx*dx+dy*dy)/fx.radiusInCell)
		if influence > 0 {
			strength := fx.e.MouseStrength / 100 * influence
			h := Hash3(c, r, math.Floor(fx.timeSeed*120)+41)
			if ch == ' ' && h < strength*pointerFillRate {
				ch = fillerGlyph
			} else if ch != ' ' && h < strength*pointerDenseRate {
				ch = fx.ramp.Step(ch, 1)
			}
		}
	}
	return ch
}

func (fx *cellEffects) glitch(row int) float64 {
	if fx == nil || fx.e.GlitchIntensity <= 0 {
		return 0
	}
	g := fx.e.GlitchIntensity / 100
	r := float64(row)
	if Hash3(r, math.Floor(fx.time*0.025), 13.3) >= g*glitchChance {
		return 0
	}
	return (Hash3(r, math.Floor(fx.time*0.032), 89.1) - 0.5) * g * glitchSpan * fx.scale
}
