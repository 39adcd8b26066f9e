package img2ascii

import (
	"bytes"
	"image"
	"testing"
)

func paintBlank(t *testing.T, e Effects, tm float64) *image.RGBA {
	t.Helper()
	a := quietArtifact("    ", "    ")
	a.Effects = e
	dst := image.NewRGBA(image.Rect(0, 0, 200, 150))
	f := ComputeFrame(a, Session{Width: 200, Height: 150}, FrameOptions{Fit: FitContain})
	NewPainter(nil).Paint(dst, a, f, tm)
	return dst
}

func TestPaintScanlines(t *testing.T) {
	t.Parallel()

	dst := paintBlank(t, Effects{ScanlineIntensity: 100}, 0)
	// Stripes every 3px at scale 1, starting at the top row.
	if got := dst.RGBAAt(10, 0); got == backgroundRGBA {
		t.Error("Expected a scanline on row 0")
	}
	if got := dst.RGBAAt(10, 1); got != backgroundRGBA {
		t.Errorf("Expected background between scanlines, got %v", got)
	}
	if got := dst.RGBAAt(10, 3); got == backgroundRGBA {
		t.Error("Expected a scanline on row 3")
	}
}

func TestPaintNoise(t *testing.T) {
	t.Parallel()

	first := paintBlank(t, Effects{NoiseIntensity: 100}, 500)
	second := paintBlank(t, Effects{NoiseIntensity: 100}, 500)
	if !bytes.Equal(first.Pix, second.Pix) {
		t.Error("Noise differs for the same clock reading")
	}
	lit := 0
	b := first.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if first.RGBAAt(x, y) != backgroundRGBA {
				lit++
			}
		}
	}
	// 200*150/8000 speckles, some may overlap.
	if lit == 0 || lit > 3 {
		t.Errorf("Expected 1 to 3 noise pixels, got %d", lit)
	}
}

func TestPaintStatus(t *testing.T) {
	t.Parallel()

	dst := image.NewRGBA(image.Rect(0, 0, 300, 60))
	NewPainter(nil).PaintStatus(dst, backgroundRGBA, loadFailedStatus)
	if dst.RGBAAt(299, 0) != backgroundRGBA {
		t.Error("Expected background outside the message")
	}
	lit := 0
	for x := 0; x < 300; x++ {
		for y := 0; y < 60; y++ {
			if dst.RGBAAt(x, y) != backgroundRGBA {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("Expected status text pixels")
	}
}

func TestPaintStatusCentred(t *testing.T) {
	t.Parallel()

	dst := image.NewRGBA(image.Rect(0, 0, 300, 60))
	NewPainter(nil).PaintStatus(dst, backgroundRGBA, "Generating...")
	top, bottom := -1, -1
	for y := 0; y < 60; y++ {
		for x := 0; x < 300; x++ {
			if dst.RGBAAt(x, y) != backgroundRGBA {
				if top < 0 {
					top = y
				}
				bottom = y
				break
			}
		}
	}
	if top < 0 {
		t.Fatal("Expected status text pixels")
	}
	if top >= 30 || bottom < 30 {
		t.Errorf("Status ink rows %d..%d do not straddle the middle row", top, bottom)
	}
}
