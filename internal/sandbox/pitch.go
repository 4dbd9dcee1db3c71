package sandbox

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"

	"github.com/KaramelBytes/scoutdeck-cli/internal/canvas"
)

// pitchConstructor builds Pitch(pitch_type=..., pitch_color=..., ...).
func pitchConstructor(env *plotEnv) *starlark.Builtin {
	return starlark.NewBuiltin("Pitch", callFunc(func(c *call) (starlark.Value, error) {
		kind, err := c.str(-1, "statsbomb", "pitch_type")
		if err != nil {
			return nil, err
		}
		length, err := c.float(-1, 0, "pitch_length")
		if err != nil {
			return nil, err
		}
		width, err := c.float(-1, 0, "pitch_width")
		if err != nil {
			return nil, err
		}
		p, err := canvas.NewPitch(kind, length, width)
		if err != nil {
			return nil, c.errorf("%v", err)
		}
		if p.PitchColor, err = c.color(-1, p.PitchColor, "pitch_color"); err != nil {
			return nil, err
		}
		if p.LineColor, err = c.color(-1, p.LineColor, "line_color"); err != nil {
			return nil, err
		}
		if p.LineWidth, err = c.float(-1, p.LineWidth, "linewidth"); err != nil {
			return nil, err
		}
		return &pitchValue{env: env, p: p}, nil
	}))
}

type pitchValue struct {
	env *plotEnv
	p   *canvas.Pitch
}

func (v *pitchValue) String() string        { return fmt.Sprintf("Pitch(pitch_type=%q)", v.p.Type) }
func (v *pitchValue) Type() string          { return "Pitch" }
func (v *pitchValue) Freeze()               {}
func (v *pitchValue) Truth() starlark.Bool  { return true }
func (v *pitchValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Pitch") }
func (v *pitchValue) AttrNames() []string {
	return []string{"annotate", "arrows", "bin_statistic", "dim", "draw", "heatmap", "kdeplot", "label_heatmap", "lines", "plot", "scatter"}
}

func (v *pitchValue) Attr(name string) (starlark.Value, error) {
	var fn func(c *call) (starlark.Value, error)
	switch name {
	case "draw":
		fn = v.draw
	case "scatter":
		fn = v.scatter
	case "plot":
		fn = func(c *call) (starlark.Value, error) { return drawPlot(v.env.axesFor(c), c) }
	case "lines":
		fn = v.lines
	case "arrows":
		fn = v.arrows
	case "annotate":
		fn = func(c *call) (starlark.Value, error) { return drawAnnotate(v.env.axesFor(c), c) }
	case "bin_statistic":
		fn = v.binStatistic
	case "heatmap":
		fn = v.heatmap
	case "label_heatmap":
		fn = v.labelHeatmap
	case "kdeplot":
		fn = v.kdeplot
	case "dim":
		return starlark.Tuple{starlark.Float(v.p.Length), starlark.Float(v.p.Width)}, nil
	default:
		return nil, nil
	}
	return starlark.NewBuiltin(name, callFunc(fn)), nil
}

// draw paints the pitch onto ax, or onto a fresh figure it returns as
// (fig, ax) when no ax is given.
func (v *pitchValue) draw(c *call) (starlark.Value, error) {
	if a, ok := c.get(-1, "ax").(*axesValue); ok {
		a.ax.Pitch = v.p
		return starlark.None, nil
	}
	rows, err := c.int(-1, 1, "nrows")
	if err != nil {
		return nil, err
	}
	cols, err := c.int(-1, 1, "ncols")
	if err != nil {
		return nil, err
	}
	if rows < 1 || cols < 1 || rows*cols > 36 {
		return nil, c.errorf("unsupported pitch grid %dx%d", rows, cols)
	}
	fig, err := v.env.newFigure(c)
	if err != nil {
		return nil, err
	}
	axes := fig.Subplots(rows, cols)
	for _, ax := range axes {
		ax.Pitch = v.p
	}
	return starlark.Tuple{&figureValue{env: v.env, fig: fig}, axesGrid(v.env, axes, rows, cols)}, nil
}

func (v *pitchValue) scatter(c *call) (starlark.Value, error) {
	xs, err := c.floats(0, "x")
	if err != nil {
		return nil, err
	}
	ys, err := c.floats(1, "y")
	if err != nil {
		return nil, err
	}
	ax := v.env.axesFor(c)
	sc, err := scatterArtist(ax, c, xs, ys, -1, -1)
	if err != nil {
		return nil, err
	}
	ax.Add(sc)
	return starlark.None, nil
}

// segments reads xstart, ystart, xend, yend as equal-length vectors.
func segments(c *call) (x1, y1, x2, y2 []float64, err error) {
	vecs := make([][]float64, 4)
	for i, name := range []string{"xstart", "ystart", "xend", "yend"} {
		if vecs[i], err = c.floats(i, name); err != nil {
			return nil, nil, nil, nil, err
		}
		if len(vecs[i]) != len(vecs[0]) {
			return nil, nil, nil, nil, c.errorf("%s has %d values, xstart has %d", name, len(vecs[i]), len(vecs[0]))
		}
	}
	return vecs[0], vecs[1], vecs[2], vecs[3], nil
}

func (v *pitchValue) lines(c *call) (starlark.Value, error) {
	x1, y1, x2, y2, err := segments(c)
	if err != nil {
		return nil, err
	}
	ax := v.env.axesFor(c)
	color, err := c.color(-1, ax.NextColor(), "color", "c")
	if err != nil {
		return nil, err
	}
	width, err := c.float(-1, 2, "lw", "linewidth")
	if err != nil {
		return nil, err
	}
	alpha, err := c.float(-1, 0, "alpha")
	if err != nil {
		return nil, err
	}
	label, err := c.str(-1, "", "label")
	if err != nil {
		return nil, err
	}
	for i := range x1 {
		l := &canvas.Line{X: []float64{x1[i], x2[i]}, Y: []float64{y1[i], y2[i]}, Color: color, Width: width, Alpha: alpha}
		if i == 0 {
			l.Label = label
		}
		ax.Add(l)
	}
	return starlark.None, nil
}

func (v *pitchValue) arrows(c *call) (starlark.Value, error) {
	x1, y1, x2, y2, err := segments(c)
	if err != nil {
		return nil, err
	}
	ax := v.env.axesFor(c)
	a := &canvas.Arrows{X1: x1, Y1: y1, X2: x2, Y2: y2}
	if a.Color, err = c.color(-1, ax.NextColor(), "color", "c"); err != nil {
		return nil, err
	}
	if a.Width, err = c.float(-1, 1.5, "width", "lw"); err != nil {
		return nil, err
	}
	if a.Alpha, err = c.float(-1, 0, "alpha"); err != nil {
		return nil, err
	}
	if a.Label, err = c.str(-1, "", "label"); err != nil {
		return nil, err
	}
	ax.Add(a)
	return starlark.None, nil
}

func (v *pitchValue) bins(c *call, defX, defY int) (int, int, error) {
	nx, ny, ok, err := c.pair(-1, "bins")
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return defX, defY, nil
	}
	return int(nx), int(ny), nil
}

func (v *pitchValue) binStatistic(c *call) (starlark.Value, error) {
	xs, err := c.floats(0, "x")
	if err != nil {
		return nil, err
	}
	ys, err := c.floats(1, "y")
	if err != nil {
		return nil, err
	}
	var values []float64
	if c.has(2, "values") {
		if values, err = c.floats(2, "values"); err != nil {
			return nil, err
		}
	}
	statistic, err := c.str(-1, "count", "statistic")
	if err != nil {
		return nil, err
	}
	nx, ny, err := v.bins(c, 6, 4)
	if err != nil {
		return nil, err
	}
	stat, err := v.p.BinStatistic(xs, ys, values, statistic, nx, ny)
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	if c.bool(-1, false, "normalize") {
		total := 0.0
		for _, row := range stat.Statistic {
			for _, x := range row {
				if !math.IsNaN(x) {
					total += x
				}
			}
		}
		if total > 0 {
			for _, row := range stat.Statistic {
				for i := range row {
					row[i] /= total
				}
			}
		}
	}
	return &binStatValue{stat: stat}, nil
}

func (v *pitchValue) heatmap(c *call) (starlark.Value, error) {
	bs, ok := c.get(0, "stats").(*binStatValue)
	if !ok {
		return nil, c.errorf("stats must be the result of bin_statistic")
	}
	cmap, err := colormapArg(c)
	if err != nil {
		return nil, err
	}
	h := &canvas.Heatmap{XEdges: bs.stat.XEdges, YEdges: bs.stat.YEdges, Values: bs.stat.Statistic, Cmap: cmap}
	if h.Alpha, err = c.float(-1, 0, "alpha"); err != nil {
		return nil, err
	}
	if h.Edge, err = c.optColor("edgecolors", "edgecolor", "ec"); err != nil {
		return nil, err
	}
	v.env.axesFor(c).Add(h)
	return starlark.None, nil
}

func (v *pitchValue) labelHeatmap(c *call) (starlark.Value, error) {
	bs, ok := c.get(0, "stats").(*binStatValue)
	if !ok {
		return nil, c.errorf("stats must be the result of bin_statistic")
	}
	ax := v.env.axesFor(c)
	stat := bs.stat
	for j, row := range stat.Statistic {
		for i, val := range row {
			if math.IsNaN(val) {
				continue
			}
			label := fmt.Sprintf("%.0f", val)
			if val != math.Trunc(val) {
				label = fmt.Sprintf("%.2f", val)
			}
			cx := (stat.XEdges[i] + stat.XEdges[i+1]) / 2
			cy := (stat.YEdges[j] + stat.YEdges[j+1]) / 2
			t, err := textArtist(c, cx, cy, label)
			if err != nil {
				return nil, err
			}
			if !c.has(-1, "ha", "horizontalalignment") {
				t.HAlign = "center"
			}
			ax.Add(t)
		}
	}
	return starlark.None, nil
}

// kdeplot approximates a density surface: a fine point count smoothed with
// a few box-blur passes, drawn as a heatmap with empty cells left clear.
func (v *pitchValue) kdeplot(c *call) (starlark.Value, error) {
	xs, err := c.floats(0, "x")
	if err != nil {
		return nil, err
	}
	ys, err := c.floats(1, "y")
	if err != nil {
		return nil, err
	}
	stat, err := v.p.BinStatistic(xs, ys, nil, "count", 30, 20)
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	grid := stat.Statistic
	for pass := 0; pass < 3; pass++ {
		grid = boxBlur(grid)
	}
	peak := 0.0
	for _, row := range grid {
		for _, x := range row {
			peak = math.Max(peak, x)
		}
	}
	for _, row := range grid {
		for i := range row {
			if row[i] <= peak*0.05 {
				row[i] = math.NaN()
			}
		}
	}
	cmap, err := colormapArg(c)
	if err != nil {
		return nil, err
	}
	alpha, err := c.float(-1, 0.8, "alpha")
	if err != nil {
		return nil, err
	}
	v.env.axesFor(c).Add(&canvas.Heatmap{XEdges: stat.XEdges, YEdges: stat.YEdges, Values: grid, Cmap: cmap, Alpha: alpha})
	return starlark.None, nil
}

func boxBlur(in [][]float64) [][]float64 {
	out := make([][]float64, len(in))
	for j := range in {
		out[j] = make([]float64, len(in[j]))
		for i := range in[j] {
			sum, n := 0.0, 0.0
			for dj := -1; dj <= 1; dj++ {
				for di := -1; di <= 1; di++ {
					y, x := j+dj, i+di
					if y < 0 || y >= len(in) || x < 0 || x >= len(in[y]) {
						continue
					}
					sum += in[y][x]
					n++
				}
			}
			out[j][i] = sum / n
		}
	}
	return out
}

// binStatValue is the dict-like result of bin_statistic.
type binStatValue struct {
	stat *canvas.BinStat
}

var _ starlark.Mapping = (*binStatValue)(nil)

func (b *binStatValue) String() string        { return "<BinnedStatistic>" }
func (b *binStatValue) Type() string          { return "BinnedStatistic" }
func (b *binStatValue) Freeze()               {}
func (b *binStatValue) Truth() starlark.Bool  { return true }
func (b *binStatValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: BinnedStatistic") }

func (b *binStatValue) Get(k starlark.Value) (starlark.Value, bool, error) {
	key, ok := starlark.AsString(k)
	if !ok {
		return nil, false, nil
	}
	switch key {
	case "statistic":
		rows := make([]starlark.Value, len(b.stat.Statistic))
		for i, row := range b.stat.Statistic {
			rows[i] = floatList(row)
		}
		return starlark.NewList(rows), true, nil
	case "x_grid":
		return floatList(b.stat.XEdges), true, nil
	case "y_grid":
		return floatList(b.stat.YEdges), true, nil
	case "cx":
		return floatList(centres(b.stat.XEdges)), true, nil
	case "cy":
		return floatList(centres(b.stat.YEdges)), true, nil
	}
	return nil, false, nil
}

func centres(edges []float64) []float64 {
	if len(edges) < 2 {
		return nil
	}
	out := make([]float64, len(edges)-1)
	for i := range out {
		out[i] = (edges[i] + edges[i+1]) / 2
	}
	return out
}
