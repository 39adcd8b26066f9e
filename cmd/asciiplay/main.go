package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/wbrown/img2ascii"
	"github.com/wbrown/img2ascii/store"
)

func main() {
	inputFile := flag.String("input", "", "Path to an artifact JSON file")
	dbPath := flag.String("db", "", "Library database to load from")
	label := flag.String("label", "", "Artifact label to load from -db")
	list := flag.Bool("list", false, "List the artifacts in -db and exit")
	fit := flag.String("fit", string(img2ascii.FitContain), "Fit: contain or cover")
	trim := flag.Bool("trim", false, "Crop blank margins before framing")
	bleed := flag.Bool("bleed", true, "Extend effects over the whole terminal")
	fps := flag.Int("fps", 60, "Frames per second")
	flag.Parse()

	if *list {
		if err := listLibrary(*dbPath); err != nil {
			fmt.Printf("Error listing library: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fitMode := img2ascii.FitMode(*fit)
	if !fitMode.Valid() {
		fmt.Println("Invalid fit, options are contain or cover")
		os.Exit(1)
	}
	r := img2ascii.NewRenderer(img2ascii.WithFit(fitMode),
		img2ascii.WithTrim(*trim), img2ascii.WithBleed(*bleed))
	defer r.Close()

	// A malformed artifact is shown as the renderer's error status.
	if err := loadArtifact(r, *inputFile, *dbPath, *label); err != nil &&
		!errors.Is(err, img2ascii.ErrArtifactParse) {
		fmt.Printf("Error loading artifact: %v\n", err)
		os.Exit(1)
	}

	p, err := newPlayer(r)
	if err != nil {
		fmt.Printf("Error initializing terminal: %v\n", err)
		os.Exit(1)
	}
	interval := time.Second / time.Duration(max(1, *fps))
	p.run(interval)
}

func loadArtifact(r *img2ascii.Renderer, path, dbPath, label string) error {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return r.LoadArtifact(data)
	}
	if dbPath == "" || label == "" {
		return fmt.Errorf("provide -input, or -db with -label")
	}
	lib, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer lib.Close()
	a, err := lib.Get(context.Background(), label)
	if err != nil {
		return err
	}
	return r.SetArtifact(a)
}

func listLibrary(dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("-list needs -db")
	}
	lib, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer lib.Close()
	entries, err := lib.List(context.Background())
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%-24s %4dx%-4d %s\n", e.Label, e.Cols, e.Rows,
			e.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// player maps the pixel-space frame model onto terminal cells. One
// terminal cell stands for one artifact cell at its generated size.
type player struct {
	screen   tcell.Screen
	renderer *img2ascii.Renderer

	cellW, cellH float64
	height       float64
}

func newPlayer(r *img2ascii.Renderer) (*player, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse(tcell.MouseMotionEvents)
	screen.EnableFocus()
	screen.HideCursor()

	fontSize := img2ascii.DefaultParams().FontSize
	widthFactor, heightFactor := img2ascii.CharWidthFactor, img2ascii.LineHeightFactor
	if a := r.Artifact(); a != nil {
		fontSize = a.Generation.FontSize
		widthFactor, heightFactor = a.Render.CharWidthFactor, a.Render.LineHeightFactor
	}
	cellW, cellH := img2ascii.CellSize(fontSize, widthFactor, heightFactor)
	p := &player{
		screen:   screen,
		renderer: r,
		cellW:    math.Max(0.5, cellW),
		cellH:    math.Max(1, cellH),
	}
	p.resize(screen.Size())
	r.PointerLeave()
	return p, nil
}

func tcellColor(s, def string) tcell.Color {
	c, err := img2ascii.ParseColor(s)
	if err != nil {
		c, _ = img2ascii.ParseColor(def)
	}
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

// resize keeps the bottom row for the status line.
func (p *player) resize(cols, rows int) {
	width := int(float64(cols) * p.cellW)
	height := int(float64(max(0, rows-1)) * p.cellH)
	p.height = float64(height)
	p.renderer.Resize(width, height)
}

func (p *player) run(interval time.Duration) {
	loop := img2ascii.NewCellLoop(p.renderer, p, interval)
	if err := loop.Start(context.Background()); err != nil {
		p.screen.Fini()
		fmt.Printf("Error starting render loop: %v\n", err)
		return
	}
	for {
		ev := p.screen.PollEvent()
		if ev == nil || !p.handleEvent(ev) {
			break
		}
	}
	loop.Close()
	p.screen.Fini()
}

// handleEvent returns false when the player should exit.
func (p *player) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		p.resize(ev.Size())
		p.screen.Sync()
	case *tcell.EventKey:
		o := p.renderer.FrameOptions()
		switch {
		case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC, ev.Rune() == 'q':
			return false
		case ev.Rune() == 't':
			o.Trim = !o.Trim
		case ev.Rune() == 'b':
			o.Bleed = !o.Bleed
		case ev.Rune() == 'f':
			if o.Fit == img2ascii.FitCover {
				o.Fit = img2ascii.FitContain
			} else {
				o.Fit = img2ascii.FitCover
			}
		}
		p.renderer.SetFrameOptions(o)
	case *tcell.EventMouse:
		x, y := ev.Position()
		py := (float64(y) + 0.5) * p.cellH
		if py >= p.height {
			p.renderer.PointerLeave()
			break
		}
		p.renderer.PointerMove((float64(x)+0.5)*p.cellW, py)
	case *tcell.EventFocus:
		if !ev.Focused {
			p.renderer.PointerLeave()
		}
	}
	return true
}

// PresentCells draws one frame. It runs on the render loop goroutine.
func (p *player) PresentCells(f *img2ascii.Frame, a *img2ascii.Artifact, status string) error {
	fg, bg := img2ascii.DefaultForeground, img2ascii.DefaultBackground
	if a != nil {
		fg, bg = a.Render.Foreground, a.Render.Background
	}
	style := tcell.StyleDefault.
		Foreground(tcellColor(fg, img2ascii.DefaultForeground)).
		Background(tcellColor(bg, img2ascii.DefaultBackground))
	p.screen.SetStyle(style)
	p.screen.Clear()

	cols, rows := p.screen.Size()
	if f != nil {
		for _, row := range f.Rows {
			y := int(math.Floor(row.Y / p.cellH))
			if y < 0 || y >= rows-1 {
				continue
			}
			for i, ch := range row.Cells {
				if ch == ' ' {
					continue
				}
				x := int(math.Floor((f.FrameX + row.ShiftX + float64(i)*f.CharWidth) / p.cellW))
				if x < 0 || x >= cols {
					continue
				}
				p.screen.SetContent(x, y, ch, nil, style)
			}
		}
	}
	p.drawStatus(cols, rows, a, status, style.Foreground(tcell.NewRGBColor(0x95, 0xa2, 0xbd)))
	p.screen.Show()
	return nil
}

func (p *player) drawStatus(cols, rows int, a *img2ascii.Artifact, status string, style tcell.Style) {
	if rows < 1 {
		return
	}
	o := p.renderer.FrameOptions()
	msg := " " + status
	if a != nil {
		msg = fmt.Sprintf(" %s  %dx%d  fit:%s trim:%t bleed:%t  [f]it [t]rim [b]leed [q]uit",
			a.Label, a.Dimensions.Cols, a.Dimensions.Rows, o.Fit, o.Trim, o.Bleed)
		if status != "" {
			msg = " " + status + " |" + msg
		}
	}
	msg = runewidth.Truncate(msg, cols, "…")
	x := 0
	for _, r := range msg {
		p.screen.SetContent(x, rows-1, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
}
