package canvas

import (
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Default figure size in inches.
const (
	DefaultWidth  = 10.0
	DefaultHeight = 7.0
)

// Figure is the top-level drawing: a grid of axes plus an optional title.
type Figure struct {
	Width, Height float64
	Facecolor     drawing.Color
	Suptitle      string

	rows, cols int
	axes       []*Axes
	current    int
}

// NewFigure returns an empty figure. Non-positive sizes fall back to defaults.
func NewFigure(width, height float64) *Figure {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Figure{Width: width, Height: height, Facecolor: drawing.ColorWhite}
}

// Subplots replaces the figure's axes with a rows x cols grid, row-major.
func (f *Figure) Subplots(rows, cols int) []*Axes {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	f.rows, f.cols = rows, cols
	f.axes = make([]*Axes, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			f.axes = append(f.axes, newAxes(f, r, c))
		}
	}
	f.current = 0
	return f.axes
}

// Gca returns the current axes, creating a single one if needed.
func (f *Figure) Gca() *Axes {
	if len(f.axes) == 0 {
		f.Subplots(1, 1)
	}
	return f.axes[f.current]
}

// SetCurrent makes a the target of module-level plotting calls.
func (f *Figure) SetCurrent(a *Axes) {
	for i, x := range f.axes {
		if x == a {
			f.current = i
			return
		}
	}
}

// Axes returns the figure's axes in grid order.
func (f *Figure) Axes() []*Axes { return f.axes }

// Grid returns the subplot layout.
func (f *Figure) Grid() (rows, cols int) { return f.rows, f.cols }

// Limit is an optional fixed axis range.
type Limit struct {
	Lo, Hi float64
	Set    bool
}

// Axes is one plotting area with its artists.
type Axes struct {
	fig      *Figure
	row, col int

	Title, XLabel, YLabel string
	XLim, YLim            Limit
	InvertY               bool
	AxisOff               bool
	Grid                  bool
	Legend                bool
	Facecolor             *drawing.Color
	Pitch                 *Pitch
	XTickLabels           []string
	YTickLabels           []string

	artists []Artist
	nextCol int
}

func newAxes(f *Figure, row, col int) *Axes {
	return &Axes{fig: f, row: row, col: col}
}

// Figure returns the owning figure.
func (a *Axes) Figure() *Figure { return a.fig }

// Add appends an artist.
func (a *Axes) Add(art Artist) { a.artists = append(a.artists, art) }

// Artists returns the artists in drawing order.
func (a *Axes) Artists() []Artist { return a.artists }

// NextColor advances the axes' colour cycle.
func (a *Axes) NextColor() drawing.Color {
	c := CycleColor(a.nextCol)
	a.nextCol++
	return c
}

// DataBounds merges the extents of every artist, padded by 5%.
func (a *Axes) DataBounds() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, art := range a.artists {
		x0, x1, y0, y1, ok := art.Bounds()
		if !ok {
			continue
		}
		xmin, xmax = math.Min(xmin, x0), math.Max(xmax, x1)
		ymin, ymax = math.Min(ymin, y0), math.Max(ymax, y1)
	}
	if math.IsInf(xmin, 1) {
		xmin, xmax = 0, 1
	}
	if math.IsInf(ymin, 1) {
		ymin, ymax = 0, 1
	}
	xmin, xmax = pad(xmin, xmax)
	ymin, ymax = pad(ymin, ymax)
	if a.XLim.Set {
		xmin, xmax = a.XLim.Lo, a.XLim.Hi
	}
	if a.YLim.Set {
		ymin, ymax = a.YLim.Lo, a.YLim.Hi
	}
	return xmin, xmax, ymin, ymax
}

func pad(lo, hi float64) (float64, float64) {
	if lo == hi {
		return lo - 0.5, hi + 0.5
	}
	d := (hi - lo) * 0.05
	return lo - d, hi + d
}
