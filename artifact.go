package img2ascii

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// ArtifactVersion is the only interchange version understood.
const ArtifactVersion = 1

// FitMode selects how an image or grid is scaled into a target area.
type FitMode string

const (
	// FitContain scales to fit entirely inside the target, letterboxed.
	FitContain FitMode = "contain"
	// FitCover scales to fill the target entirely, cropping overflow.
	FitCover FitMode = "cover"
)

// Valid reports whether m is a known fit mode.
func (m FitMode) Valid() bool {
	return m == FitContain || m == FitCover
}

// MonoFontStack is the font family recorded in artifacts by default.
const MonoFontStack = `"Geist Mono","SFMono-Regular",Menlo,Monaco,Consolas,"Liberation Mono",monospace`

const (
	DefaultForeground = "#d8e6ff"
	DefaultBackground = "#02050b"
	DefaultPaddingX   = 12
	DefaultPaddingY   = 12
)

// Dimensions is the grid shape of an artifact.
type Dimensions struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Transform places the source image inside the supersampled buffer.
type Transform struct {
	Fit      FitMode `json:"fit"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
	OffsetX  float64 `json:"offsetX"`
	OffsetY  float64 `json:"offsetY"`
}

// IsIdentity reports whether t is the default contain transform, which
// takes the stretch-to-fill path in the rasterizer.
func (t Transform) IsIdentity() bool {
	return t.Fit == FitContain && t.Scale == 100 && t.Rotation == 0 &&
		t.OffsetX == 0 && t.OffsetY == 0
}

// Generation records the parameters an artifact was rasterized with.
type Generation struct {
	FontSize          float64   `json:"fontSize"`
	AspectCorrection  float64   `json:"aspectCorrection"`
	Contrast          float64   `json:"contrast"`
	WhiteThreshold    float64   `json:"whiteThreshold"`
	EdgeThreshold     float64   `json:"edgeThreshold"`
	VarianceThreshold float64   `json:"varianceThreshold"`
	Complexity        int       `json:"complexity"`
	Ramp              string    `json:"ramp"`
	Transform         Transform `json:"transform"`
}

// Effects are the animated effect parameters. Percentages are in [0, 100].
type Effects struct {
	CharDynamism       float64 `json:"charDynamism"`
	DynamismSpeed      float64 `json:"dynamismSpeed"`
	WhitespaceNoise    float64 `json:"whitespaceNoise"`
	MouseExpandEnabled bool    `json:"mouseExpandEnabled"`
	MouseRadius        float64 `json:"mouseRadius"`
	MouseStrength      float64 `json:"mouseStrength"`
	GlitchIntensity    float64 `json:"glitchIntensity"`
	NoiseIntensity     float64 `json:"noiseIntensity"`
	ScanlineIntensity  float64 `json:"scanlineIntensity"`
}

// DefaultEffects returns the effect settings a fresh artifact carries.
func DefaultEffects() Effects {
	return Effects{
		DynamismSpeed:      14,
		MouseExpandEnabled: true,
		MouseRadius:        180,
		MouseStrength:      44,
	}
}

// Disabled reports whether no effect can perturb a frame.
func (e Effects) Disabled() bool {
	return e.CharDynamism == 0 && e.WhitespaceNoise == 0 && !e.MouseExpandEnabled &&
		e.GlitchIntensity == 0 && e.NoiseIntensity == 0 && e.ScanlineIntensity == 0
}

type percentField struct {
	name  string
	value *float64
}

// percentages lists the fields kept within [0, 100].
func (e *Effects) percentages() []percentField {
	return []percentField{
		{"charDynamism", &e.CharDynamism},
		{"whitespaceNoise", &e.WhitespaceNoise},
		{"mouseStrength", &e.MouseStrength},
		{"glitchIntensity", &e.GlitchIntensity},
		{"noiseIntensity", &e.NoiseIntensity},
		{"scanlineIntensity", &e.ScanlineIntensity},
	}
}

func (e *Effects) clamp() {
	for _, p := range e.percentages() {
		*p.value = clampFloat(*p.value, 0, 100)
	}
	e.DynamismSpeed = math.Max(0, e.DynamismSpeed)
	e.MouseRadius = math.Max(0, e.MouseRadius)
}

func (e *Effects) validate() error {
	for _, p := range e.percentages() {
		if v := *p.value; math.IsNaN(v) || v < 0 || v > 100 {
			return fmt.Errorf("%w: %s %v outside [0, 100]", ErrArtifactParse, p.name, v)
		}
	}
	if !finite(e.DynamismSpeed) || e.DynamismSpeed < 0 {
		return fmt.Errorf("%w: dynamismSpeed %v", ErrArtifactParse, e.DynamismSpeed)
	}
	if !finite(e.MouseRadius) || e.MouseRadius < 0 {
		return fmt.Errorf("%w: mouseRadius %v", ErrArtifactParse, e.MouseRadius)
	}
	return nil
}

// RenderMetrics describe how an artifact is laid out and coloured.
type RenderMetrics struct {
	CharWidthFactor  float64 `json:"charWidthFactor"`
	LineHeightFactor float64 `json:"lineHeightFactor"`
	PaddingX         float64 `json:"paddingX"`
	PaddingY         float64 `json:"paddingY"`
	Foreground       string  `json:"foreground"`
	Background       string  `json:"background"`
	FontFamily       string  `json:"fontFamily"`
}

func (m RenderMetrics) validate() error {
	if !finite(m.CharWidthFactor) || m.CharWidthFactor <= 0 {
		return fmt.Errorf("%w: charWidthFactor %v", ErrArtifactParse, m.CharWidthFactor)
	}
	if !finite(m.LineHeightFactor) || m.LineHeightFactor <= 0 {
		return fmt.Errorf("%w: lineHeightFactor %v", ErrArtifactParse, m.LineHeightFactor)
	}
	if !finite(m.PaddingX) || !finite(m.PaddingY) || m.PaddingX < 0 || m.PaddingY < 0 {
		return fmt.Errorf("%w: padding %v,%v", ErrArtifactParse, m.PaddingX, m.PaddingY)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// DefaultRenderMetrics returns the metrics the rasterizer records.
func DefaultRenderMetrics() RenderMetrics {
	return RenderMetrics{
		CharWidthFactor:  CharWidthFactor,
		LineHeightFactor: LineHeightFactor,
		PaddingX:         DefaultPaddingX,
		PaddingY:         DefaultPaddingY,
		Foreground:       DefaultForeground,
		Background:       DefaultBackground,
		FontFamily:       MonoFontStack,
	}
}

// Artifact is the serializable result of rasterization and the only value
// exchanged between the Rasterizer and the Renderer. It is treated as
// immutable once built.
type Artifact struct {
	Version    int           `json:"version"`
	Label      string        `json:"label"`
	CreatedAt  time.Time     `json:"createdAt"`
	Dimensions Dimensions    `json:"dimensions"`
	Lines      []string      `json:"asciiLines"`
	Generation Generation    `json:"generation"`
	Effects    Effects       `json:"effects"`
	Render     RenderMetrics `json:"render"`
}

// ParseArtifact decodes interchange JSON, pads short lines to the column
// count, clamps effect percentages, fills missing cell factors and
// validates the result. All failures
// wrap ErrArtifactParse.
func ParseArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactParse, err)
	}
	a.normalize()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

func (a *Artifact) normalize() {
	a.Effects.clamp()
	if a.Render.CharWidthFactor == 0 {
		a.Render.CharWidthFactor = CharWidthFactor
	}
	if a.Render.LineHeightFactor == 0 {
		a.Render.LineHeightFactor = LineHeightFactor
	}
	if a.Dimensions.Cols < 1 {
		return
	}
	for i, line := range a.Lines {
		if n := len([]rune(line)); n < a.Dimensions.Cols {
			a.Lines[i] = line + strings.Repeat(" ", a.Dimensions.Cols-n)
		}
	}
}

// Validate checks the artifact invariants. Unlike ParseArtifact it never
// repairs: out-of-range effect percentages are rejected.
func (a *Artifact) Validate() error {
	if a.Version != ArtifactVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrArtifactParse, a.Version)
	}
	cols, rows := a.Dimensions.Cols, a.Dimensions.Rows
	if cols < 1 || rows < 1 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrArtifactParse, cols, rows)
	}
	if len(a.Lines) != rows {
		return fmt.Errorf("%w: %d lines for %d rows", ErrArtifactParse, len(a.Lines), rows)
	}
	ramp, err := NewRamp(a.Generation.Ramp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactParse, err)
	}
	if !a.Generation.Transform.Fit.Valid() {
		return fmt.Errorf("%w: unknown fit %q", ErrArtifactParse, a.Generation.Transform.Fit)
	}
	if !finite(a.Generation.FontSize) || a.Generation.FontSize <= 0 {
		return fmt.Errorf("%w: font size %v", ErrArtifactParse, a.Generation.FontSize)
	}
	if err := a.Render.validate(); err != nil {
		return err
	}
	if err := a.Effects.validate(); err != nil {
		return err
	}
	for row, line := range a.Lines {
		runes := []rune(line)
		if len(runes) != cols {
			return fmt.Errorf("%w: line %d has %d cells, want %d",
				ErrArtifactParse, row, len(runes), cols)
		}
		for col, r := range runes {
			if r != ' ' && !ramp.Contains(r) {
				return fmt.Errorf("%w: %q at %d,%d is not on the ramp",
					ErrArtifactParse, r, col, row)
			}
		}
	}
	return nil
}

// Text returns the grid as newline separated rows.
func (a *Artifact) Text() string {
	return strings.Join(a.Lines, "\n")
}

// MarshalIndent encodes the artifact as two-space indented JSON.
func (a *Artifact) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// Clone returns a deep copy.
func (a *Artifact) Clone() *Artifact {
	c := *a
	c.Lines = append([]string(nil), a.Lines...)
	return &c
}
