package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wbrown/img2ascii"
	"github.com/wbrown/img2ascii/imageutil"
	"github.com/wbrown/img2ascii/store"
)

func main() {
	defaults := img2ascii.DefaultParams()
	effects := img2ascii.DefaultEffects()

	inputFile := flag.String("input", "",
		"Path to the input image file (required)")
	outputFile := flag.String("output", "",
		"Path to save the output: .json artifact, .txt grid, .png frame "+
			"or .gif animation (if not specified, prints the grid to stdout)")
	width := flag.Int("width", 1280, "Viewport width in pixels")
	height := flag.Int("height", 800, "Viewport height in pixels")
	label := flag.String("label", "", "Artifact label (default: input file name)")
	fontSize := flag.Float64("fontsize", defaults.FontSize, "Font size in pixels")
	contrast := flag.Float64("contrast", defaults.Contrast, "Contrast percentage")
	white := flag.Float64("white", defaults.WhiteThreshold,
		"White threshold (0-255), lighter cells become blank")
	edge := flag.Float64("edge", defaults.EdgeThreshold, "Edge threshold (0-255)")
	variance := flag.Float64("variance", defaults.VarianceThreshold,
		"Variance threshold (0-255)")
	fidelity := flag.Int("fidelity", defaults.Fidelity, "Fidelity (1-10)")
	fit := flag.String("fit", string(img2ascii.FitContain), "Image fit: contain or cover")
	scale := flag.Float64("scale", 100, "Image scale percentage")
	rotation := flag.Float64("rotation", 0, "Image rotation in degrees")
	offsetX := flag.Float64("offsetx", 0, "Horizontal image offset in pixels")
	offsetY := flag.Float64("offsety", 0, "Vertical image offset in pixels")
	measured := flag.Bool("measured", false,
		"Size cells from the font's advance instead of the fixed factor")
	fontPath := flag.String("font", "",
		"Path to a TTF file (default: embedded Go Mono)")
	interp := flag.String("interp", "linear",
		"Source resampling: linear, area (Catmull-Rom) or nearest")

	dynamism := flag.Float64("dynamism", effects.CharDynamism, "Character dynamism (0-100)")
	speed := flag.Float64("speed", effects.DynamismSpeed, "Dynamism speed")
	wsNoise := flag.Float64("wsnoise", effects.WhitespaceNoise, "Whitespace noise (0-100)")
	glitch := flag.Float64("glitch", effects.GlitchIntensity, "Glitch intensity (0-100)")
	noise := flag.Float64("noise", effects.NoiseIntensity, "Pixel noise intensity (0-100)")
	scanlines := flag.Float64("scanlines", effects.ScanlineIntensity, "Scanline intensity (0-100)")

	frames := flag.Int("frames", 24, "Number of frames in .gif output")
	frameDelay := flag.Duration("delay", 40*time.Millisecond, "Delay between .gif frames")
	bleed := flag.Bool("bleed", true, "Extend effects over the whole frame")
	trim := flag.Bool("trim", false, "Crop blank margins before framing")
	dbPath := flag.String("db", "", "Also save the artifact to this library database")
	verbose := flag.Bool("v", false, "Log progress to stderr")
	flag.Parse()

	if *verbose {
		img2ascii.SetLogger(slog.New(slog.NewTextHandler(os.Stderr,
			&slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if *inputFile == "" {
		fmt.Println("Please provide the image using the -input flag")
		flag.PrintDefaults()
		return
	}
	if *label == "" {
		*label = strings.TrimSuffix(filepath.Base(*inputFile), filepath.Ext(*inputFile))
	}

	var fm *img2ascii.FontMetrics
	if *fontPath != "" {
		var err error
		fm, err = img2ascii.LoadFontMetrics(*fontPath)
		if err != nil {
			fmt.Printf("Error loading font: %v\n", err)
			os.Exit(1)
		}
	}

	params := img2ascii.Params{
		Label:             *label,
		FontSize:          *fontSize,
		Contrast:          *contrast,
		WhiteThreshold:    *white,
		EdgeThreshold:     *edge,
		VarianceThreshold: *variance,
		Fidelity:          *fidelity,
		Transform: img2ascii.Transform{
			Fit:      img2ascii.FitMode(strings.ToLower(*fit)),
			Scale:    *scale,
			Rotation: *rotation,
			OffsetX:  *offsetX,
			OffsetY:  *offsetY,
		},
	}
	if !params.Transform.Fit.Valid() {
		fmt.Println("Invalid fit, options are contain or cover")
		os.Exit(1)
	}

	interpolation, err := imageutil.ParseInterpolation(*interp)
	if err != nil {
		fmt.Println("Invalid interp, options are linear, area or nearest")
		os.Exit(1)
	}
	opts := []img2ascii.RasterizerOption{img2ascii.WithInterpolation(interpolation)}
	if *measured {
		m := fm
		if m == nil {
			m = img2ascii.DefaultFontMetrics()
		}
		opts = append(opts, img2ascii.WithMeasuredCells(m))
	}

	src, err := os.Open(*inputFile)
	if err != nil {
		fmt.Printf("Error opening image: %v\n", err)
		os.Exit(1)
	}
	start := time.Now()
	artifact, err := img2ascii.NewRasterizer(opts...).RasterizeReader(src, params,
		img2ascii.Viewport{Width: *width, Height: *height})
	src.Close()
	if err != nil {
		fmt.Printf("Error processing image: %v\n", err)
		os.Exit(1)
	}
	endComputation := time.Now()

	artifact.Effects.CharDynamism = *dynamism
	artifact.Effects.DynamismSpeed = *speed
	artifact.Effects.WhitespaceNoise = *wsNoise
	artifact.Effects.GlitchIntensity = *glitch
	artifact.Effects.NoiseIntensity = *noise
	artifact.Effects.ScanlineIntensity = *scanlines
	// Round-trip through the interchange format so clamping applies.
	data, err := artifact.MarshalIndent()
	if err == nil {
		artifact, err = img2ascii.ParseArtifact(data)
	}
	if err != nil {
		fmt.Printf("Error building artifact: %v\n", err)
		os.Exit(1)
	}

	if *dbPath != "" {
		lib, err := store.Open(*dbPath)
		if err != nil {
			fmt.Printf("Error opening library: %v\n", err)
			os.Exit(1)
		}
		id, err := lib.Save(context.Background(), artifact)
		lib.Close()
		if err != nil {
			fmt.Printf("Error saving to library: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Saved %q to %s (id %d)\n", artifact.Label, *dbPath, id)
	}

	if err := writeOutput(*outputFile, artifact, fm, *width, *height,
		*frames, *frameDelay, *bleed, *trim); err != nil {
		fmt.Printf("Error writing output: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Grid: %dx%d, ramp %q\n", artifact.Dimensions.Cols,
		artifact.Dimensions.Rows, artifact.Generation.Ramp)
	if *verbose {
		m := fm
		if m == nil {
			m = img2ascii.DefaultFontMetrics()
		}
		fmt.Fprintf(os.Stderr, "Cell: %.2fpx advance, %.2fpx ink (%s)\n",
			m.MeasureAdvance(*fontSize),
			m.MeasureVisualWidth(*fontSize, artifact.Generation.Ramp), m.Name())
	}
	fmt.Fprintf(os.Stderr, "Computation time: %v\n", endComputation.Sub(start))
}

func writeOutput(path string, a *img2ascii.Artifact, fm *img2ascii.FontMetrics,
	width, height, frames int, delay time.Duration, bleed, trim bool) error {
	if path == "" {
		fmt.Println(a.Text())
		return nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := a.MarshalIndent()
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	case ".png", ".gif":
		return writeImage(path, a, fm, width, height, frames, delay, bleed, trim)
	default:
		return os.WriteFile(path, []byte(a.Text()+"\n"), 0644)
	}
}

// writeImage paints frames with a Renderer at the viewport size. A .png
// gets the first frame, a .gif gets frames evenly spaced by delay.
func writeImage(path string, a *img2ascii.Artifact, fm *img2ascii.FontMetrics,
	width, height, frames int, delay time.Duration, bleed, trim bool) error {
	r := img2ascii.NewRenderer(img2ascii.WithFont(fm),
		img2ascii.WithBleed(bleed), img2ascii.WithTrim(trim))
	defer r.Close()
	if err := r.SetArtifact(a); err != nil {
		return err
	}
	r.Resize(width, height)

	if strings.ToLower(filepath.Ext(path)) == ".png" {
		frame := r.RenderFrame(0)
		if frame == nil {
			return fmt.Errorf("empty viewport %dx%d", width, height)
		}
		return imageutil.SaveImage(frame, path)
	}

	frames = max(1, frames)
	step := float64(delay) / float64(time.Millisecond)
	painted := make([]*image.RGBA, 0, frames)
	for i := 0; i < frames; i++ {
		frame := r.RenderFrame(float64(i) * step)
		if frame == nil {
			return fmt.Errorf("empty viewport %dx%d", width, height)
		}
		// RenderFrame reuses its buffer.
		painted = append(painted, (&imageutil.RGBAImage{RGBA: frame}).Clone().RGBA)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := imageutil.EncodeAnimatedGIF(f, painted, int(delay/(10*time.Millisecond))); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
