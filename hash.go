package img2ascii

import "math"

// Hash3 is a stateless pseudo-random function of three inputs returning a
// value in [0, 1). Identical inputs always produce identical output.
func Hash3(a, b, c float64) float64 {
	x := math.Sin(a*127.1+b*311.7+c*74.7) * 43758.5453123
	return x - math.Floor(x)
}
