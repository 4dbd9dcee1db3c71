package sandbox

import (
	"fmt"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/KaramelBytes/scoutdeck-cli/internal/canvas"
)

// plotEnv ties plotting values to the surface the executor holds.
type plotEnv struct {
	surface *canvas.Surface
}

func (e *plotEnv) gca() *canvas.Axes { return e.surface.Current().Gca() }

// axesFor resolves an ax= keyword, falling back to the current axes.
func (e *plotEnv) axesFor(c *call) *canvas.Axes {
	if a, ok := c.get(-1, "ax").(*axesValue); ok {
		return a.ax
	}
	return e.gca()
}

type axesFunc func(ax *canvas.Axes, c *call) (starlark.Value, error)

// axesOps are the drawing and decoration calls shared by Axes methods and
// their module-level plt counterparts.
var axesOps = map[string]axesFunc{
	"scatter":         drawScatter,
	"plot":            drawPlot,
	"bar":             drawBar(false),
	"barh":            drawBar(true),
	"hist":            drawHist,
	"text":            drawText,
	"annotate":        drawAnnotate,
	"axhline":         drawRefLine(false),
	"axvline":         drawRefLine(true),
	"set_title":       setString(func(ax *canvas.Axes, s string) { ax.Title = s }, "label"),
	"set_xlabel":      setString(func(ax *canvas.Axes, s string) { ax.XLabel = s }, "xlabel"),
	"set_ylabel":      setString(func(ax *canvas.Axes, s string) { ax.YLabel = s }, "ylabel"),
	"set_xlim":        setLimit(func(ax *canvas.Axes) *canvas.Limit { return &ax.XLim }, "left", "right"),
	"set_ylim":        setLimit(func(ax *canvas.Axes) *canvas.Limit { return &ax.YLim }, "bottom", "top"),
	"set_xticks":      setTicks(func(ax *canvas.Axes, l []string) { ax.XTickLabels = l }, 1),
	"set_yticks":      setTicks(func(ax *canvas.Axes, l []string) { ax.YTickLabels = l }, 1),
	"set_xticklabels": setTicks(func(ax *canvas.Axes, l []string) { ax.XTickLabels = l }, 0),
	"set_yticklabels": setTicks(func(ax *canvas.Axes, l []string) { ax.YTickLabels = l }, 0),
	"legend":          func(ax *canvas.Axes, _ *call) (starlark.Value, error) { ax.Legend = true; return starlark.None, nil },
	"grid":            setGrid,
	"axis":            setAxis,
	"invert_yaxis":    func(ax *canvas.Axes, _ *call) (starlark.Value, error) { ax.InvertY = !ax.InvertY; return starlark.None, nil },
	"set_facecolor":   setFacecolor,
	"set_aspect":      noop,
	"tick_params":     noop,
	"set_axis_off":    func(ax *canvas.Axes, _ *call) (starlark.Value, error) { ax.AxisOff = true; return starlark.None, nil },
}

func noop(*canvas.Axes, *call) (starlark.Value, error) { return starlark.None, nil }

// pltAliases maps module-level names onto axes operations.
var pltAliases = map[string]string{
	"title":       "set_title",
	"xlabel":      "set_xlabel",
	"ylabel":      "set_ylabel",
	"xlim":        "set_xlim",
	"ylim":        "set_ylim",
	"xticks":      "set_xticks",
	"yticks":      "set_yticks",
	"set_aspect":  "set_aspect",
	"tick_params": "tick_params",
}

func pyplotModule(env *plotEnv) *starlarkstruct.Module {
	members := starlark.StringDict{}
	for name, op := range axesOps {
		if strings.HasPrefix(name, "set_") || name == "invert_yaxis" {
			continue
		}
		members[name] = pltFunc(env, name, op)
	}
	for alias, target := range pltAliases {
		members[alias] = pltFunc(env, alias, axesOps[target])
	}
	fns := map[string]func(c *call) (starlark.Value, error){
		"figure":          env.figure,
		"subplots":        env.subplots,
		"subplot":         env.subplot,
		"gca":             func(*call) (starlark.Value, error) { return &axesValue{env: env, ax: env.gca()}, nil },
		"gcf":             func(*call) (starlark.Value, error) { return &figureValue{env: env, fig: env.surface.Current()}, nil },
		"suptitle":        func(c *call) (starlark.Value, error) { return setSuptitle(env.surface.Current(), c) },
		"close":           env.reset,
		"clf":             env.reset,
		"show":            noopCall,
		"savefig":         noopCall,
		"tight_layout":    noopCall,
		"colorbar":        noopCall,
		"subplots_adjust": noopCall,
		"draw":            noopCall,
	}
	for name, fn := range fns {
		members[name] = starlark.NewBuiltin(name, callFunc(fn))
	}
	members["style"] = &starlarkstruct.Module{Name: "style", Members: starlark.StringDict{
		"use": starlark.NewBuiltin("use", callFunc(noopCall)),
	}}
	cm := starlark.StringDict{}
	for _, name := range []string{"viridis", "magma", "hot", "Reds", "Blues", "Greens", "YlOrRd", "coolwarm"} {
		cm[name] = starlark.String(name)
		cm[name+"_r"] = starlark.String(name + "_r")
	}
	members["cm"] = &starlarkstruct.Module{Name: "cm", Members: cm}
	members["rcParams"] = starlark.NewDict(0)
	return &starlarkstruct.Module{Name: "plt", Members: members}
}

func noopCall(*call) (starlark.Value, error) { return starlark.None, nil }

func pltFunc(env *plotEnv, name string, op axesFunc) *starlark.Builtin {
	return starlark.NewBuiltin(name, callFunc(func(c *call) (starlark.Value, error) {
		return op(env.gca(), c)
	}))
}

func figsize(c *call) (float64, float64, error) {
	w, h, ok, err := c.pair(-1, "figsize")
	if err != nil || !ok {
		return 0, 0, err
	}
	return w, h, nil
}

func (e *plotEnv) newFigure(c *call) (*canvas.Figure, error) {
	w, h, err := figsize(c)
	if err != nil {
		return nil, err
	}
	fig := canvas.NewFigure(w, h)
	if c.has(-1, "facecolor") {
		col, err := c.color(-1, drawing.ColorWhite, "facecolor")
		if err != nil {
			return nil, err
		}
		fig.Facecolor = col
	}
	e.surface.Replace(fig)
	return fig, nil
}

func (e *plotEnv) figure(c *call) (starlark.Value, error) {
	fig, err := e.newFigure(c)
	if err != nil {
		return nil, err
	}
	return &figureValue{env: e, fig: fig}, nil
}

func (e *plotEnv) subplots(c *call) (starlark.Value, error) {
	rows, err := c.int(0, 1, "nrows")
	if err != nil {
		return nil, err
	}
	cols, err := c.int(1, 1, "ncols")
	if err != nil {
		return nil, err
	}
	if rows < 1 || cols < 1 || rows*cols > 36 {
		return nil, c.errorf("unsupported subplot grid %dx%d", rows, cols)
	}
	fig, err := e.newFigure(c)
	if err != nil {
		return nil, err
	}
	axes := fig.Subplots(rows, cols)
	return starlark.Tuple{&figureValue{env: e, fig: fig}, axesGrid(e, axes, rows, cols)}, nil
}

// axesGrid shapes axes like matplotlib's subplots return value.
func axesGrid(e *plotEnv, axes []*canvas.Axes, rows, cols int) starlark.Value {
	if rows == 1 && cols == 1 {
		return &axesValue{env: e, ax: axes[0]}
	}
	wrap := func(list []*canvas.Axes) *starlark.List {
		items := make([]starlark.Value, len(list))
		for i, a := range list {
			items[i] = &axesValue{env: e, ax: a}
		}
		return starlark.NewList(items)
	}
	if rows == 1 || cols == 1 {
		return wrap(axes)
	}
	grid := make([]starlark.Value, rows)
	for r := 0; r < rows; r++ {
		grid[r] = wrap(axes[r*cols : (r+1)*cols])
	}
	return starlark.NewList(grid)
}

// subplot selects cell index (1-based) of a rows x cols grid, creating the
// grid when the layout changes.
func (e *plotEnv) subplot(c *call) (starlark.Value, error) {
	rows, err := c.int(0, 1, "nrows")
	if err != nil {
		return nil, err
	}
	cols, err := c.int(1, 1, "ncols")
	if err != nil {
		return nil, err
	}
	idx, err := c.int(2, 1, "index")
	if err != nil {
		return nil, err
	}
	fig := e.surface.Current()
	ax, err := selectSubplot(fig, rows, cols, idx)
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	return &axesValue{env: e, ax: ax}, nil
}

func selectSubplot(fig *canvas.Figure, rows, cols, idx int) (*canvas.Axes, error) {
	if rows < 1 || cols < 1 || rows*cols > 36 {
		return nil, fmt.Errorf("unsupported subplot grid %dx%d", rows, cols)
	}
	if idx < 1 || idx > rows*cols {
		return nil, fmt.Errorf("num must be 1 <= num <= %d, not %d", rows*cols, idx)
	}
	if r, cl := fig.Grid(); r != rows || cl != cols {
		fig.Subplots(rows, cols)
	}
	ax := fig.Axes()[idx-1]
	fig.SetCurrent(ax)
	return ax, nil
}

func (e *plotEnv) reset(*call) (starlark.Value, error) {
	e.surface.Replace(canvas.NewFigure(0, 0))
	return starlark.None, nil
}

func setSuptitle(fig *canvas.Figure, c *call) (starlark.Value, error) {
	s, err := c.str(0, "", "t")
	if err != nil {
		return nil, err
	}
	fig.Suptitle = s
	return starlark.None, nil
}

var fontSizes = map[string]float64{
	"xx-small": 5.8, "x-small": 6.9, "small": 8.3, "medium": 10,
	"large": 12, "x-large": 14.4, "xx-large": 17.3,
}

func fontSize(c *call, def float64) (float64, error) {
	v := c.get(-1, "fontsize", "size")
	if s, ok := v.(starlark.String); ok {
		if f, known := fontSizes[string(s)]; known {
			return f, nil
		}
		return 0, c.errorf("unknown fontsize %q", string(s))
	}
	return c.float(-1, def, "fontsize", "size")
}

func seriesLabel(v starlark.Value) string {
	if s, ok := v.(*Series); ok {
		return s.name
	}
	return ""
}

func drawScatter(ax *canvas.Axes, c *call) (starlark.Value, error) {
	xs, err := c.floats(0, "x")
	if err != nil {
		return nil, err
	}
	ys, err := c.floats(1, "y")
	if err != nil {
		return nil, err
	}
	sc, err := scatterArtist(ax, c, xs, ys, 2, 3)
	if err != nil {
		return nil, err
	}
	ax.Add(sc)
	return starlark.None, nil
}

// scatterArtist reads marker styling. sizePos and colorPos are the
// positional slots of s and c, negative when keyword-only.
func scatterArtist(ax *canvas.Axes, c *call, xs, ys []float64, sizePos, colorPos int) (*canvas.Scatter, error) {
	if len(xs) != len(ys) {
		return nil, c.errorf("x and y must be the same size (%d vs %d)", len(xs), len(ys))
	}
	sc := &canvas.Scatter{X: xs, Y: ys}
	var err error
	if v := c.get(sizePos, "s"); v != nil && v != starlark.None {
		if sc.Sizes, err = toFloats(v); err != nil {
			return nil, c.errorf("s: %v", err)
		}
	}
	if sc.Alpha, err = c.float(-1, 0, "alpha"); err != nil {
		return nil, err
	}
	if sc.Marker, err = c.str(-1, "o", "marker"); err != nil {
		return nil, err
	}
	if sc.Label, err = c.str(-1, "", "label"); err != nil {
		return nil, err
	}
	if sc.Edge, err = c.optColor("edgecolors", "edgecolor", "ec"); err != nil {
		return nil, err
	}
	sc.Color = ax.NextColor()
	if cv := c.get(colorPos, "c"); cv != nil && cv != starlark.None {
		if err := applyPointColors(sc, c, cv); err != nil {
			return nil, err
		}
	}
	if c.has(-1, "color") {
		if sc.Color, err = c.color(-1, sc.Color, "color"); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

// applyPointColors handles c=: one colour, a list of colours, or numbers
// mapped through cmap.
func applyPointColors(sc *canvas.Scatter, c *call, cv starlark.Value) error {
	if _, ok := starlark.AsString(cv); ok {
		col, err := toColor(cv)
		if err != nil {
			return c.errorf("%v", err)
		}
		sc.Color = col
		return nil
	}
	if isTextual(cv) {
		labels, _ := toLabels(cv)
		sc.Colors = make([]drawing.Color, len(labels))
		for i, l := range labels {
			col, err := canvas.ParseColor(l)
			if err != nil {
				return c.errorf("%v", err)
			}
			sc.Colors[i] = col
		}
		return nil
	}
	vals, err := toFloats(cv)
	if err != nil {
		return c.errorf("c: %v", err)
	}
	cmap, err := colormapArg(c)
	if err != nil {
		return err
	}
	lo, hi := minOf(finiteOnly(vals)), maxOf(finiteOnly(vals))
	sc.Colors = make([]drawing.Color, len(vals))
	for i, v := range vals {
		norm := 0.0
		if hi > lo {
			norm = (v - lo) / (hi - lo)
		}
		sc.Colors[i] = cmap.At(norm)
	}
	return nil
}

func colormapArg(c *call) (*canvas.Colormap, error) {
	name, err := c.str(-1, "viridis", "cmap")
	if err != nil {
		return nil, err
	}
	cmap, err := canvas.ParseColormap(name)
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	return cmap, nil
}

// lineFormat is a parsed matplotlib format string such as "r--" or "o-".
type lineFormat struct {
	color  *drawing.Color
	marker string
	style  string
}

func parseFormat(f string) lineFormat {
	var out lineFormat
	switch {
	case strings.Contains(f, "--"):
		out.style = "--"
	case strings.Contains(f, "-.") || strings.Contains(f, ":"):
		out.style = "--"
	case strings.Contains(f, "-"):
		out.style = "-"
	}
	for _, r := range f {
		switch r {
		case 'o', 's', '^', 'x', '+':
			out.marker = string(r)
		case '.':
			if !strings.Contains(f, "-.") {
				out.marker = "o"
			}
		case 'b', 'g', 'r', 'c', 'm', 'y', 'k', 'w':
			col, _ := canvas.ParseColor(string(r))
			out.color = &col
		}
	}
	return out
}

func drawPlot(ax *canvas.Axes, c *call) (starlark.Value, error) {
	if len(c.pos) == 0 {
		return nil, c.errorf("missing data")
	}
	var xs, ys []float64
	var xv starlark.Value
	yv := c.pos[0]
	rest := c.pos[1:]
	if len(rest) > 0 {
		if _, isFmt := rest[0].(starlark.String); !isFmt {
			xv, yv, rest = c.pos[0], rest[0], rest[1:]
		}
	}
	var fmtSpec lineFormat
	if len(rest) > 0 {
		if s, ok := rest[0].(starlark.String); ok {
			fmtSpec = parseFormat(string(s))
		}
	}
	var err error
	if ys, err = toFloats(yv); err != nil {
		return nil, c.errorf("y: %v", err)
	}
	if xv != nil {
		if isTextual(xv) {
			ax.XTickLabels, _ = toLabels(xv)
			xv = nil
		} else if xs, err = toFloats(xv); err != nil {
			return nil, c.errorf("x: %v", err)
		}
	}
	if xv == nil {
		xs = make([]float64, len(ys))
		for i := range xs {
			xs[i] = float64(i)
		}
	}
	if len(xs) != len(ys) {
		return nil, c.errorf("x and y must have same first dimension, but have shapes (%d,) and (%d,)", len(xs), len(ys))
	}
	color := ax.NextColor()
	if fmtSpec.color != nil {
		color = *fmtSpec.color
	}
	if color, err = c.color(-1, color, "color", "c"); err != nil {
		return nil, err
	}
	label, err := c.str(-1, "", "label")
	if err != nil {
		return nil, err
	}
	alpha, err := c.float(-1, 0, "alpha")
	if err != nil {
		return nil, err
	}
	marker, err := c.str(-1, fmtSpec.marker, "marker")
	if err != nil {
		return nil, err
	}
	if fmtSpec.marker != "" && fmtSpec.style == "" {
		ax.Add(&canvas.Scatter{X: xs, Y: ys, Color: color, Marker: marker, Alpha: alpha, Label: label, Sizes: []float64{36}})
		return starlark.None, nil
	}
	width, err := c.float(-1, 1.5, "linewidth", "lw")
	if err != nil {
		return nil, err
	}
	style, err := c.str(-1, fmtSpec.style, "linestyle", "ls")
	if err != nil {
		return nil, err
	}
	ax.Add(&canvas.Line{
		X: xs, Y: ys, Color: color, Width: width, Marker: marker, Alpha: alpha, Label: label,
		Dashed: style == "--" || style == ":" || style == "-." || style == "dashed" || style == "dotted",
	})
	return starlark.None, nil
}

func drawBar(horizontal bool) axesFunc {
	return func(ax *canvas.Axes, c *call) (starlark.Value, error) {
		posName, lenName, widthName, baseName := "x", "height", "width", "bottom"
		if horizontal {
			posName, lenName, widthName, baseName = "y", "width", "height", "left"
		}
		pv := c.get(0, posName)
		if pv == nil {
			return nil, c.errorf("missing argument %s", posName)
		}
		lengths, err := c.floats(1, lenName)
		if err != nil {
			return nil, err
		}
		var pos []float64
		if isTextual(pv) {
			labels, _ := toLabels(pv)
			if horizontal {
				ax.YTickLabels = labels
			} else {
				ax.XTickLabels = labels
			}
			pos = make([]float64, len(labels))
			for i := range pos {
				pos[i] = float64(i)
			}
		} else if pos, err = toFloats(pv); err != nil {
			return nil, c.errorf("%s: %v", posName, err)
		}
		if len(lengths) == 1 && len(pos) > 1 {
			lengths = repeat(lengths[0], len(pos))
		}
		if len(pos) != len(lengths) {
			return nil, c.errorf("shape mismatch: %s has %d values, %s has %d", posName, len(pos), lenName, len(lengths))
		}
		width, err := c.float(2, 0.8, widthName)
		if err != nil {
			return nil, err
		}
		var base []float64
		if c.has(-1, baseName) {
			if base, err = toFloats(c.get(-1, baseName)); err != nil {
				return nil, c.errorf("%s: %v", baseName, err)
			}
			if len(base) == 1 {
				base = repeat(base[0], len(pos))
			}
		}
		label, err := c.str(-1, "", "label")
		if err != nil {
			return nil, err
		}
		alpha, err := c.float(-1, 0, "alpha")
		if err != nil {
			return nil, err
		}
		edge, err := c.optColor("edgecolor", "ec")
		if err != nil {
			return nil, err
		}
		bars := &canvas.Bars{Pos: pos, Lengths: lengths, Base: base, Width: width, Horizontal: horizontal, Edge: edge, Alpha: alpha, Label: label}
		if cv := c.get(-1, "color"); cv != nil && isTextual(cv) && lenOf(cv) > 1 {
			// one colour per bar
			names, _ := toLabels(cv)
			for i := range pos {
				col, err := canvas.ParseColor(names[i%len(names)])
				if err != nil {
					return nil, c.errorf("%v", err)
				}
				one := *bars
				one.Pos, one.Lengths, one.Color = pos[i:i+1], lengths[i:i+1], col
				if base != nil {
					one.Base = base[i : i+1]
				}
				if i > 0 {
					one.Label = ""
				}
				ax.Add(&one)
			}
			return starlark.None, nil
		}
		if bars.Color, err = c.color(-1, ax.NextColor(), "color"); err != nil {
			return nil, err
		}
		ax.Add(bars)
		return starlark.None, nil
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func drawHist(ax *canvas.Axes, c *call) (starlark.Value, error) {
	vals, err := c.floats(0, "x")
	if err != nil {
		return nil, err
	}
	bins, err := c.int(1, 10, "bins")
	if err != nil {
		return nil, err
	}
	edges, counts := canvas.HistBins(vals, bins)
	pos := make([]float64, len(counts))
	for i := range pos {
		pos[i] = (edges[i] + edges[i+1]) / 2
	}
	bars := &canvas.Bars{Pos: pos, Lengths: counts, Width: edges[1] - edges[0]}
	if bars.Color, err = c.color(-1, ax.NextColor(), "color"); err != nil {
		return nil, err
	}
	if bars.Alpha, err = c.float(-1, 0, "alpha"); err != nil {
		return nil, err
	}
	if bars.Label, err = c.str(-1, seriesLabel(c.get(0)), "label"); err != nil {
		return nil, err
	}
	if bars.Edge, err = c.optColor("edgecolor", "ec"); err != nil {
		return nil, err
	}
	ax.Add(bars)
	return starlark.Tuple{floatList(counts), floatList(edges), starlark.None}, nil
}

func textArtist(c *call, x, y float64, s string) (*canvas.Text, error) {
	size, err := fontSize(c, 10)
	if err != nil {
		return nil, err
	}
	color, err := c.color(-1, drawing.ColorBlack, "color", "c")
	if err != nil {
		return nil, err
	}
	align, err := c.str(-1, "left", "ha", "horizontalalignment")
	if err != nil {
		return nil, err
	}
	return &canvas.Text{X: x, Y: y, S: s, Color: color, Size: size, HAlign: align}, nil
}

func drawText(ax *canvas.Axes, c *call) (starlark.Value, error) {
	x, err := c.float(0, math.NaN(), "x")
	if err != nil {
		return nil, err
	}
	y, err := c.float(1, math.NaN(), "y")
	if err != nil {
		return nil, err
	}
	s, err := textValue(c, 2, "s")
	if err != nil {
		return nil, err
	}
	t, err := textArtist(c, x, y, s)
	if err != nil {
		return nil, err
	}
	ax.Add(t)
	return starlark.None, nil
}

// textValue reads a label, stringifying numbers the way str() does.
func textValue(c *call, i int, name string) (string, error) {
	v := c.get(i, name)
	if v == nil {
		return "", c.errorf("missing argument %s", name)
	}
	if s, ok := starlark.AsString(v); ok {
		return s, nil
	}
	return v.String(), nil
}

func drawAnnotate(ax *canvas.Axes, c *call) (starlark.Value, error) {
	s, err := textValue(c, 0, "text")
	if err != nil {
		return nil, err
	}
	x, y, ok, err := c.pair(1, "xy")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, c.errorf("missing argument xy")
	}
	tx, ty, hasText, err := c.pair(2, "xytext")
	if err != nil {
		return nil, err
	}
	if !hasText || c.get(-1, "textcoords") != nil {
		tx, ty = x, y
	}
	if c.has(-1, "arrowprops") && (tx != x || ty != y) {
		ax.Add(&canvas.Arrows{X1: []float64{tx}, Y1: []float64{ty}, X2: []float64{x}, Y2: []float64{y}, Color: drawing.ColorBlack, Width: 1})
	}
	t, err := textArtist(c, tx, ty, s)
	if err != nil {
		return nil, err
	}
	ax.Add(t)
	return starlark.None, nil
}

func drawRefLine(vertical bool) axesFunc {
	return func(ax *canvas.Axes, c *call) (starlark.Value, error) {
		name := "y"
		if vertical {
			name = "x"
		}
		at, err := c.float(0, 0, name)
		if err != nil {
			return nil, err
		}
		line := &canvas.RefLine{At: at, Vertical: vertical}
		if line.Color, err = c.color(-1, ax.NextColor(), "color", "c"); err != nil {
			return nil, err
		}
		if line.Width, err = c.float(-1, 1.5, "linewidth", "lw"); err != nil {
			return nil, err
		}
		style, err := c.str(-1, "-", "linestyle", "ls")
		if err != nil {
			return nil, err
		}
		line.Dashed = style != "-" && style != "solid"
		if line.Alpha, err = c.float(-1, 0, "alpha"); err != nil {
			return nil, err
		}
		if line.Label, err = c.str(-1, "", "label"); err != nil {
			return nil, err
		}
		ax.Add(line)
		return starlark.None, nil
	}
}

func setString(apply func(*canvas.Axes, string), name string) axesFunc {
	return func(ax *canvas.Axes, c *call) (starlark.Value, error) {
		s, err := textValue(c, 0, name)
		if err != nil {
			return nil, err
		}
		apply(ax, s)
		return starlark.None, nil
	}
}

// setLimit accepts (lo, hi), a single (lo, hi) pair, or keywords. With no
// arguments it returns the current range.
func setLimit(limit func(*canvas.Axes) *canvas.Limit, loName, hiName string) axesFunc {
	return func(ax *canvas.Axes, c *call) (starlark.Value, error) {
		l := limit(ax)
		if len(c.pos) == 0 && !c.has(-1, loName) && !c.has(-1, hiName) {
			return starlark.Tuple{starlark.Float(l.Lo), starlark.Float(l.Hi)}, nil
		}
		if len(c.pos) == 1 {
			lo, hi, _, err := c.pair(0)
			if err != nil {
				return nil, err
			}
			*l = canvas.Limit{Lo: lo, Hi: hi, Set: true}
			return starlark.None, nil
		}
		lo, err := c.float(0, l.Lo, loName)
		if err != nil {
			return nil, err
		}
		hi, err := c.float(1, l.Hi, hiName)
		if err != nil {
			return nil, err
		}
		*l = canvas.Limit{Lo: lo, Hi: hi, Set: true}
		return starlark.None, nil
	}
}

// setTicks reads tick labels from argument labelPos (or labels=). Tick
// positions are taken to be category indices.
func setTicks(apply func(*canvas.Axes, []string), labelPos int) axesFunc {
	return func(ax *canvas.Axes, c *call) (starlark.Value, error) {
		v := c.get(labelPos, "labels")
		if v == nil || v == starlark.None {
			return starlark.None, nil
		}
		labels, ok := toLabels(v)
		if !ok {
			return nil, c.errorf("labels must be a sequence")
		}
		apply(ax, labels)
		return starlark.None, nil
	}
}

func setGrid(ax *canvas.Axes, c *call) (starlark.Value, error) {
	ax.Grid = c.bool(0, true, "visible", "b")
	return starlark.None, nil
}

func setAxis(ax *canvas.Axes, c *call) (starlark.Value, error) {
	v := c.get(0, "option")
	if s, ok := v.(starlark.String); ok {
		switch string(s) {
		case "off":
			ax.AxisOff = true
		case "on":
			ax.AxisOff = false
		}
		return starlark.None, nil
	}
	if v != nil && v != starlark.None {
		if lims, err := toFloats(v); err == nil && len(lims) == 4 {
			ax.XLim = canvas.Limit{Lo: lims[0], Hi: lims[1], Set: true}
			ax.YLim = canvas.Limit{Lo: lims[2], Hi: lims[3], Set: true}
		}
	}
	return starlark.None, nil
}

func setFacecolor(ax *canvas.Axes, c *call) (starlark.Value, error) {
	col, err := c.color(0, drawing.ColorWhite, "color", "c")
	if err != nil {
		return nil, err
	}
	ax.Facecolor = &col
	return starlark.None, nil
}

// axesValue is a matplotlib Axes handle.
type axesValue struct {
	env *plotEnv
	ax  *canvas.Axes
}

func (a *axesValue) String() string        { return "<Axes>" }
func (a *axesValue) Type() string          { return "Axes" }
func (a *axesValue) Freeze()               {}
func (a *axesValue) Truth() starlark.Bool  { return true }
func (a *axesValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Axes") }

func (a *axesValue) Attr(name string) (starlark.Value, error) {
	if name == "figure" {
		return &figureValue{env: a.env, fig: a.ax.Figure()}, nil
	}
	op, ok := axesOps[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, callFunc(func(c *call) (starlark.Value, error) {
		a.ax.Figure().SetCurrent(a.ax)
		return op(a.ax, c)
	})), nil
}

func (a *axesValue) AttrNames() []string {
	names := []string{"figure"}
	for n := range axesOps {
		names = append(names, n)
	}
	return names
}

// figureValue is a matplotlib Figure handle.
type figureValue struct {
	env *plotEnv
	fig *canvas.Figure
}

func (f *figureValue) String() string        { return fmt.Sprintf("<Figure size %gx%g>", f.fig.Width, f.fig.Height) }
func (f *figureValue) Type() string          { return "Figure" }
func (f *figureValue) Freeze()               {}
func (f *figureValue) Truth() starlark.Bool  { return true }
func (f *figureValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Figure") }
func (f *figureValue) AttrNames() []string {
	return []string{"add_subplot", "gca", "savefig", "set_facecolor", "set_size_inches", "subplots_adjust", "suptitle", "tight_layout"}
}

func (f *figureValue) Attr(name string) (starlark.Value, error) {
	var fn func(c *call) (starlark.Value, error)
	switch name {
	case "suptitle":
		fn = func(c *call) (starlark.Value, error) { return setSuptitle(f.fig, c) }
	case "set_facecolor":
		fn = func(c *call) (starlark.Value, error) {
			col, err := c.color(0, drawing.ColorWhite, "color", "c")
			if err != nil {
				return nil, err
			}
			f.fig.Facecolor = col
			return starlark.None, nil
		}
	case "set_size_inches":
		fn = func(c *call) (starlark.Value, error) {
			w, h, ok, err := c.pair(0, "w")
			if err != nil {
				return nil, err
			}
			if len(c.pos) >= 2 {
				if h, err = c.float(1, h, "h"); err != nil {
					return nil, err
				}
			}
			if ok && w > 0 && h > 0 {
				f.fig.Width, f.fig.Height = w, h
			}
			return starlark.None, nil
		}
	case "gca":
		fn = func(*call) (starlark.Value, error) { return &axesValue{env: f.env, ax: f.fig.Gca()}, nil }
	case "add_subplot":
		fn = func(c *call) (starlark.Value, error) {
			rows, cols, idx := 1, 1, 1
			if v, ok := c.get(0).(starlark.Int); ok && len(c.pos) == 1 {
				// three-digit form, add_subplot(121)
				n, _ := starlark.AsInt32(v)
				rows, cols, idx = n/100, n/10%10, n%10
			} else {
				var err error
				if rows, err = c.int(0, 1, "nrows"); err != nil {
					return nil, err
				}
				if cols, err = c.int(1, 1, "ncols"); err != nil {
					return nil, err
				}
				if idx, err = c.int(2, 1, "index"); err != nil {
					return nil, err
				}
			}
			ax, err := selectSubplot(f.fig, rows, cols, idx)
			if err != nil {
				return nil, c.errorf("%v", err)
			}
			return &axesValue{env: f.env, ax: ax}, nil
		}
	case "savefig", "tight_layout", "subplots_adjust":
		fn = noopCall
	default:
		return nil, nil
	}
	return starlark.NewBuiltin(name, callFunc(fn)), nil
}
