package img2ascii

import (
	"fmt"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ParseColor parses a #rgb or #rrggbb colour into an opaque RGBA value.
func ParseColor(s string) (color.RGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// colorOr parses s, falling back to def when s is not a colour.
func colorOr(s, def string) color.RGBA {
	if c, err := ParseColor(s); err == nil {
		return c
	}
	c, _ := ParseColor(def)
	return c
}

// translucent returns an unpremultiplied colour at opacity alpha in [0, 1].
func translucent(r, g, b uint8, alpha float64) color.NRGBA {
	return color.NRGBA{R: r, G: g, B: b, A: uint8(clampFloat(alpha, 0, 1)*255 + 0.5)}
}
