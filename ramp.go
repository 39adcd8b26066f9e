package img2ascii

import (
	"fmt"
	"math"
	"strings"
)

// MasterRamp is the full tone scale, ordered from the lightest glyph (space)
// to the densest. Working ramps are evenly spaced subsets of it.
const MasterRamp = " .'`^\",:;Il!i~+_-?][}{1)(|\\/*tfjrxnuvczXYUJCLQ0OZmwqpdbkhao*#MW&8%B@$"

const (
	// MinFidelity and MaxFidelity bound the fidelity knob.
	MinFidelity = 1
	MaxFidelity = 10

	minRampLength = 12
)

// BuildRamp returns the working ramp for a fidelity between 1 and 10.
// Fidelity 1 yields 12 evenly spaced glyphs, fidelity 10 yields the whole
// master ramp. Duplicate glyphs are dropped, keeping the first occurrence.
func BuildRamp(fidelity int) string {
	fidelity = clampInt(fidelity, MinFidelity, MaxFidelity)
	master := []rune(MasterRamp)
	maxLen := len(master)

	t := float64(fidelity-1) / float64(MaxFidelity-MinFidelity)
	targetLen := int(math.Round(minRampLength + t*float64(maxLen-minRampLength)))

	seen := make(map[rune]bool, targetLen)
	var b strings.Builder
	for i := 0; i < targetLen; i++ {
		idx := int(math.Round(float64(i*(maxLen-1)) / float64(targetLen-1)))
		r := master[idx]
		if seen[r] {
			continue
		}
		seen[r] = true
		b.WriteRune(r)
	}
	return b.String()
}

// Ramp is an indexed tone ramp. The zero value is an empty ramp.
type Ramp struct {
	runes []rune
	index map[rune]int
}

// NewRamp indexes s. It fails when s is empty or repeats a glyph.
func NewRamp(s string) (Ramp, error) {
	runes := []rune(s)
	if len(runes) == 0 {
		return Ramp{}, fmt.Errorf("ramp is empty")
	}
	index := make(map[rune]int, len(runes))
	for i, r := range runes {
		if _, dup := index[r]; dup {
			return Ramp{}, fmt.Errorf("ramp repeats %q", r)
		}
		index[r] = i
	}
	return Ramp{runes: runes, index: index}, nil
}

// Len returns the number of glyphs.
func (r Ramp) Len() int { return len(r.runes) }

// At returns the glyph at position i.
func (r Ramp) At(i int) rune { return r.runes[i] }

// Index returns the position of c, or -1 if c is not on the ramp.
func (r Ramp) Index(c rune) int {
	if i, ok := r.index[c]; ok {
		return i
	}
	return -1
}

// Contains reports whether c is on the ramp.
func (r Ramp) Contains(c rune) bool {
	_, ok := r.index[c]
	return ok
}

// Step moves c by dir positions, clamped to the ends of the ramp. Glyphs
// not on the ramp are returned unchanged.
func (r Ramp) Step(c rune, dir int) rune {
	i := r.Index(c)
	if i < 0 {
		return c
	}
	return r.runes[clampInt(i+dir, 0, len(r.runes)-1)]
}

// Densest returns the last glyph of the ramp.
func (r Ramp) Densest() rune { return r.runes[len(r.runes)-1] }

// ForTone maps a tone in [0, 1] (0 = black) to a glyph.
func (r Ramp) ForTone(tone float64) rune {
	idx := int(math.Floor((1 - tone) * float64(len(r.runes)-1)))
	return r.runes[clampInt(idx, 0, len(r.runes)-1)]
}

func (r Ramp) String() string { return string(r.runes) }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
