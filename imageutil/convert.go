package imageutil

import "image"

// Luminance returns the BT.601 luma of an 8-bit RGB triple on a 0..1 scale.
func Luminance(r, g, b uint8) float64 {
	return 0.299*float64(r)/255 + 0.587*float64(g)/255 + 0.114*float64(b)/255
}

// LumaPlane is a dense grid of per-pixel luminance values.
type LumaPlane struct {
	Width  int
	Height int
	Values []float64
}

// NewLumaPlane computes the luminance of every pixel of img. Colour
// channels are read as stored, so fully transparent pixels count as black.
func NewLumaPlane(img *image.RGBA) *LumaPlane {
	b := img.Bounds()
	plane := &LumaPlane{
		Width:  b.Dx(),
		Height: b.Dy(),
		Values: make([]float64, b.Dx()*b.Dy()),
	}
	for y := 0; y < plane.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < plane.Width; x++ {
			i := x * 4
			plane.Values[y*plane.Width+x] = Luminance(row[i], row[i+1], row[i+2])
		}
	}
	return plane
}

// At returns the luminance at (x, y), clamping coordinates to the plane.
func (p *LumaPlane) At(x, y int) float64 {
	x = min(max(x, 0), p.Width-1)
	y = min(max(y, 0), p.Height-1)
	return p.Values[y*p.Width+x]
}
