package imageutil

import (
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"
)

// Interpolation specifies the interpolation method for resizing.
type Interpolation int

const (
	// InterpolationLinear uses bilinear interpolation. It is the closest
	// match to a browser canvas with image smoothing enabled.
	InterpolationLinear Interpolation = iota

	// InterpolationArea uses Catmull-Rom, the highest quality kernel.
	InterpolationArea

	// InterpolationNearest uses nearest-neighbor interpolation.
	InterpolationNearest
)

func (interp Interpolation) scaler() draw.Interpolator {
	switch interp {
	case InterpolationArea:
		return draw.CatmullRom
	case InterpolationNearest:
		return draw.NearestNeighbor
	default:
		return draw.BiLinear
	}
}

// ParseInterpolation maps "linear", "area" or "nearest" to an
// Interpolation.
func ParseInterpolation(name string) (Interpolation, error) {
	switch strings.ToLower(name) {
	case "linear", "":
		return InterpolationLinear, nil
	case "area":
		return InterpolationArea, nil
	case "nearest":
		return InterpolationNearest, nil
	}
	return 0, fmt.Errorf("unknown interpolation %q", name)
}

func (interp Interpolation) String() string {
	switch interp {
	case InterpolationLinear:
		return "linear"
	case InterpolationArea:
		return "area"
	case InterpolationNearest:
		return "nearest"
	}
	return fmt.Sprintf("Interpolation(%d)", int(interp))
}

// Stretch scales src over the whole of dst, ignoring aspect ratio.
func Stretch(dst draw.Image, src image.Image, interp Interpolation) {
	interp.scaler().Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
}
