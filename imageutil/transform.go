package imageutil

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// MinPlacementScale keeps a placed image from collapsing to nothing.
const MinPlacementScale = 0.05

// Placement positions a source image inside a destination buffer: the
// image is scaled to contain or cover the buffer, multiplied by Scale,
// rotated by Rotation degrees about its centre and moved by the offset.
type Placement struct {
	Cover    bool
	Scale    float64 // 1 = fitted size
	Rotation float64 // degrees, clockwise on screen
	OffsetX  float64
	OffsetY  float64
	Interp   Interpolation
}

// Matrix returns the source-to-destination affine transform for placing
// an image of size src into a buffer of size dst.
func (p Placement) Matrix(src, dst image.Point) f64.Aff3 {
	sw, sh := float64(max(1, src.X)), float64(max(1, src.Y))
	dw, dh := float64(dst.X), float64(dst.Y)

	base := math.Min(dw/sw, dh/sh)
	if p.Cover {
		base = math.Max(dw/sw, dh/sh)
	}
	s := math.Max(MinPlacementScale, p.Scale*base)

	theta := p.Rotation * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)

	// Scale about the image centre, rotate, then move to buffer centre.
	hx, hy := float64(src.X)*s/2, float64(src.Y)*s/2
	tx := dw/2 + p.OffsetX - (cos*hx - sin*hy)
	ty := dh/2 + p.OffsetY - (sin*hx + cos*hy)
	return f64.Aff3{
		cos * s, -sin * s, tx,
		sin * s, cos * s, ty,
	}
}

// Place fills dst with background and draws src according to p, sampled
// with p.Interp.
func Place(dst draw.Image, src image.Image, p Placement, background color.Color) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	b := dst.Bounds()
	m := p.Matrix(src.Bounds().Size(), b.Size())
	m[2] += float64(b.Min.X)
	m[5] += float64(b.Min.Y)
	p.Interp.scaler().Transform(dst, m, src, src.Bounds(), draw.Over, nil)
}
