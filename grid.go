package img2ascii

import (
	"image"
	"math"
)

const (
	// CharWidthFactor and LineHeightFactor convert a font size into the
	// pixel size of one character cell.
	CharWidthFactor  = 0.62
	LineHeightFactor = 1.2

	// CharAspect corrects the image aspect ratio for non-square cells
	// when choosing the row count.
	CharAspect = 0.56

	// MinCols, MinRows and MaxCols bound every rasterized grid.
	MinCols = 24
	MinRows = 24
	MaxCols = 520

	minRowsPerCol = 0.0001
)

// Grid is the shape of a character grid.
type Grid struct {
	Cols int
	Rows int
}

// CellSize returns the pixel width and height of one character cell.
func CellSize(fontSize, widthFactor, heightFactor float64) (float64, float64) {
	return fontSize * widthFactor, fontSize * heightFactor
}

// GridInput describes the space a rasterized grid must fit in.
type GridInput struct {
	// AvailableWidth and AvailableHeight are the drawing area in pixels
	// with padding already removed.
	AvailableWidth  float64
	AvailableHeight float64

	CharWidth  float64
	LineHeight float64

	ImageWidth  int
	ImageHeight int
}

// ComputeGrid sizes the rasterizer grid. Both dimensions are floored at 24
// even when the available area is degenerate, columns are capped at 520 and
// rows follow the image aspect ratio corrected by CharAspect.
func ComputeGrid(in GridInput) Grid {
	maxCols := max(MinCols, int(math.Floor(in.AvailableWidth/math.Max(1, in.CharWidth))))
	maxRows := max(MinRows, int(math.Floor(in.AvailableHeight/math.Max(1, in.LineHeight))))

	imageRatio := float64(in.ImageHeight) / float64(max(1, in.ImageWidth))
	rowsPerCol := math.Max(imageRatio*CharAspect, minRowsPerCol)
	colsByHeight := max(1, int(math.Floor(float64(maxRows)/rowsPerCol)))

	cols := clampInt(min(maxCols, colsByHeight), MinCols, MaxCols)
	rows := clampInt(int(math.Round(rowsPerCol*float64(cols))), MinRows, maxRows)
	return Grid{Cols: cols, Rows: rows}
}

// FitInput parameterises FitGrid. Zero floors and ceiling take the
// rasterizer defaults.
type FitInput struct {
	AvailableWidth  float64
	AvailableHeight float64
	CharWidth       float64
	LineHeight      float64
	ImageWidth      int
	ImageHeight     int

	MinCols int
	MinRows int
	MaxCols int
}

// FitGrid fits an image into an area using the measured cell ratio instead
// of CharAspect. When the result falls below a floor both dimensions are
// scaled up together, never past the area or MaxCols.
func FitGrid(in FitInput) Grid {
	minCols, minRows, maxCols := in.MinCols, in.MinRows, in.MaxCols
	if minCols <= 0 {
		minCols = MinCols
	}
	if minRows <= 0 {
		minRows = MinRows
	}
	if maxCols <= 0 {
		maxCols = MaxCols
	}

	charWidth := math.Max(0.001, in.CharWidth)
	lineHeight := math.Max(0.001, in.LineHeight)
	maxByWidth := max(1, int(math.Floor(in.AvailableWidth/charWidth)))
	maxByHeight := max(1, int(math.Floor(in.AvailableHeight/lineHeight)))
	limitedMaxCols := min(maxByWidth, maxCols)

	imageRatio := float64(in.ImageHeight) / float64(max(1, in.ImageWidth))
	target := math.Max(minRowsPerCol, imageRatio*(charWidth/lineHeight))

	cols := limitedMaxCols
	rows := max(1, int(math.Round(float64(cols)*target)))
	if rows > maxByHeight {
		rows = maxByHeight
		cols = max(1, int(math.Round(float64(rows)/target)))
	}
	cols = clampInt(cols, 1, limitedMaxCols)
	rows = clampInt(rows, 1, maxByHeight)

	if cols < minCols || rows < minRows {
		upscale := math.Max(float64(minCols)/float64(cols), float64(minRows)/float64(rows))
		cols = clampInt(int(math.Round(float64(cols)*upscale)), 1, limitedMaxCols)
		rows = clampInt(int(math.Round(float64(cols)*target)), 1, maxByHeight)
	}
	return Grid{Cols: cols, Rows: rows}
}

// TrimBounds returns the tight bounding box of non-space cells. The second
// result is false when every cell is blank.
func TrimBounds(lines []string) (image.Rectangle, bool) {
	minRow, minCol := math.MaxInt, math.MaxInt
	maxRow, maxCol := -1, -1
	for row, line := range lines {
		for col, r := range []rune(line) {
			if r == ' ' {
				continue
			}
			minRow = min(minRow, row)
			maxRow = max(maxRow, row)
			minCol = min(minCol, col)
			maxCol = max(maxCol, col)
		}
	}
	if maxRow < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minCol, minRow, maxCol+1, maxRow+1), true
}

// TrimLines crops lines to their bounding box of non-space cells. All-blank
// input is returned unchanged.
func TrimLines(lines []string) []string {
	bounds, ok := TrimBounds(lines)
	if !ok {
		return lines
	}
	out := make([]string, 0, bounds.Dy())
	for row := bounds.Min.Y; row < bounds.Max.Y; row++ {
		src := []rune(lines[row])
		line := make([]rune, bounds.Dx())
		for col := bounds.Min.X; col < bounds.Max.X; col++ {
			if col < len(src) {
				line[col-bounds.Min.X] = src[col]
			} else {
				line[col-bounds.Min.X] = ' '
			}
		}
		out = append(out, string(line))
	}
	return out
}
