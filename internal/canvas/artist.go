package canvas

import (
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Artist is anything drawn inside an axes.
type Artist interface {
	// Bounds reports the data extent; ok is false when the artist has none.
	Bounds() (xmin, xmax, ymin, ymax float64, ok bool)
	Draw(p *Painter)
	// LegendEntry reports the label shown in a legend, if any.
	LegendEntry() (label string, color drawing.Color, ok bool)
}

// Painter draws in data coordinates on a renderer.
type Painter struct {
	R   chart.Renderer
	DPI float64

	toPx func(x, y float64) (float64, float64)
	view [4]float64
}

// View returns the data range visible in the axes.
func (p *Painter) View() (xmin, xmax, ymin, ymax float64) {
	return p.view[0], p.view[1], p.view[2], p.view[3]
}

// Map converts data coordinates to pixels.
func (p *Painter) Map(x, y float64) (int, int) {
	px, py := p.toPx(x, y)
	return int(math.Round(px)), int(math.Round(py))
}

// Pt converts typographic points to pixels.
func (p *Painter) Pt(v float64) float64 { return v * p.DPI / 72 }

// Polygon fills and/or strokes a closed pixel path.
func (p *Painter) Polygon(pts [][2]int, fill, stroke *drawing.Color, width float64) {
	if len(pts) < 2 {
		return
	}
	p.R.ResetStyle()
	if fill != nil {
		p.R.SetFillColor(*fill)
	}
	if stroke != nil {
		p.R.SetStrokeColor(*stroke)
		p.R.SetStrokeWidth(width)
	}
	p.R.MoveTo(pts[0][0], pts[0][1])
	for _, pt := range pts[1:] {
		p.R.LineTo(pt[0], pt[1])
	}
	p.R.Close()
	switch {
	case fill != nil && stroke != nil:
		p.R.FillStroke()
	case fill != nil:
		p.R.Fill()
	default:
		p.R.Stroke()
	}
}

// Polyline strokes an open pixel path.
func (p *Painter) Polyline(pts [][2]int, color drawing.Color, width float64, dash []float64) {
	if len(pts) < 2 {
		return
	}
	p.R.ResetStyle()
	p.R.SetStrokeColor(color)
	p.R.SetStrokeWidth(width)
	if len(dash) > 0 {
		p.R.SetStrokeDashArray(dash)
	}
	p.R.MoveTo(pts[0][0], pts[0][1])
	for _, pt := range pts[1:] {
		p.R.LineTo(pt[0], pt[1])
	}
	p.R.Stroke()
}

// Dot draws a filled marker centred on a pixel.
func (p *Painter) Dot(x, y int, radius float64, marker string, fill drawing.Color, edge *drawing.Color) {
	p.R.ResetStyle()
	p.R.SetFillColor(fill)
	if edge != nil {
		p.R.SetStrokeColor(*edge)
		p.R.SetStrokeWidth(1)
	} else {
		p.R.SetStrokeColor(fill)
		p.R.SetStrokeWidth(0.5)
	}
	r := int(math.Round(radius))
	switch marker {
	case "s":
		p.R.MoveTo(x-r, y-r)
		p.R.LineTo(x+r, y-r)
		p.R.LineTo(x+r, y+r)
		p.R.LineTo(x-r, y+r)
		p.R.Close()
		p.R.FillStroke()
	case "^":
		p.R.MoveTo(x, y-r)
		p.R.LineTo(x+r, y+r)
		p.R.LineTo(x-r, y+r)
		p.R.Close()
		p.R.FillStroke()
	case "x", "+":
		p.R.SetStrokeColor(fill)
		p.R.SetStrokeWidth(math.Max(1, radius/3))
		if marker == "x" {
			p.R.MoveTo(x-r, y-r)
			p.R.LineTo(x+r, y+r)
			p.R.MoveTo(x+r, y-r)
			p.R.LineTo(x-r, y+r)
		} else {
			p.R.MoveTo(x-r, y)
			p.R.LineTo(x+r, y)
			p.R.MoveTo(x, y-r)
			p.R.LineTo(x, y+r)
		}
		p.R.Stroke()
	default:
		p.R.Circle(radius, x, y)
		p.R.FillStroke()
	}
}

// Scatter is a set of markers.
type Scatter struct {
	X, Y   []float64
	Sizes  []float64 // marker area in points squared; one value or one per point
	Color  drawing.Color
	Colors []drawing.Color // per-point override
	Edge   *drawing.Color
	Alpha  float64
	Marker string
	Label  string
}

func (s *Scatter) Bounds() (float64, float64, float64, float64, bool) { return bounds(s.X, s.Y) }

func (s *Scatter) Draw(p *Painter) {
	for i := range s.X {
		if i >= len(s.Y) || !finite(s.X[i], s.Y[i]) {
			continue
		}
		size := 36.0
		switch {
		case len(s.Sizes) == 1:
			size = s.Sizes[0]
		case i < len(s.Sizes):
			size = s.Sizes[i]
		}
		c := s.Color
		if i < len(s.Colors) {
			c = s.Colors[i]
		}
		x, y := p.Map(s.X[i], s.Y[i])
		p.Dot(x, y, p.Pt(math.Sqrt(math.Max(size, 1))/2), s.Marker, WithAlpha(c, alphaOr(s.Alpha)), s.Edge)
	}
}

func (s *Scatter) LegendEntry() (string, drawing.Color, bool) { return s.Label, s.Color, s.Label != "" }

// Line is a polyline through data points.
type Line struct {
	X, Y   []float64
	Color  drawing.Color
	Width  float64 // points
	Dashed bool
	Marker string
	Alpha  float64
	Label  string
}

func (l *Line) Bounds() (float64, float64, float64, float64, bool) { return bounds(l.X, l.Y) }

func (l *Line) Draw(p *Painter) {
	w := l.Width
	if w <= 0 {
		w = 1.5
	}
	var dash []float64
	if l.Dashed {
		dash = []float64{p.Pt(4), p.Pt(2)}
	}
	c := WithAlpha(l.Color, alphaOr(l.Alpha))
	var seg [][2]int
	flush := func() {
		p.Polyline(seg, c, p.Pt(w), dash)
		seg = seg[:0]
	}
	for i := range l.X {
		if i >= len(l.Y) || !finite(l.X[i], l.Y[i]) {
			flush()
			continue
		}
		x, y := p.Map(l.X[i], l.Y[i])
		seg = append(seg, [2]int{x, y})
		if l.Marker != "" {
			p.Dot(x, y, p.Pt(3), l.Marker, c, nil)
		}
	}
	flush()
}

func (l *Line) LegendEntry() (string, drawing.Color, bool) { return l.Label, l.Color, l.Label != "" }

// Bars draws vertical bars, or horizontal ones when Horizontal is set.
type Bars struct {
	Pos        []float64
	Lengths    []float64
	Base       []float64
	Width      float64
	Horizontal bool
	Color      drawing.Color
	Edge       *drawing.Color
	Alpha      float64
	Label      string
}

func (b *Bars) base(i int) float64 {
	if i < len(b.Base) {
		return b.Base[i]
	}
	return 0
}

func (b *Bars) Bounds() (float64, float64, float64, float64, bool) {
	if len(b.Pos) == 0 {
		return 0, 0, 0, 0, false
	}
	w := b.width() / 2
	pmin, pmax := math.Inf(1), math.Inf(-1)
	lmin, lmax := 0.0, 0.0
	for i, pos := range b.Pos {
		pmin, pmax = math.Min(pmin, pos-w), math.Max(pmax, pos+w)
		if i < len(b.Lengths) && !math.IsNaN(b.Lengths[i]) {
			end := b.base(i) + b.Lengths[i]
			lmin, lmax = math.Min(lmin, math.Min(end, b.base(i))), math.Max(lmax, math.Max(end, b.base(i)))
		}
	}
	if b.Horizontal {
		return lmin, lmax, pmin, pmax, true
	}
	return pmin, pmax, lmin, lmax, true
}

func (b *Bars) width() float64 {
	if b.Width > 0 {
		return b.Width
	}
	return 0.8
}

func (b *Bars) Draw(p *Painter) {
	w := b.width() / 2
	fill := WithAlpha(b.Color, alphaOr(b.Alpha))
	for i, pos := range b.Pos {
		if i >= len(b.Lengths) || math.IsNaN(b.Lengths[i]) {
			continue
		}
		lo, hi := b.base(i), b.base(i)+b.Lengths[i]
		var x0, y0, x1, y1 int
		if b.Horizontal {
			x0, y0 = p.Map(lo, pos-w)
			x1, y1 = p.Map(hi, pos+w)
		} else {
			x0, y0 = p.Map(pos-w, lo)
			x1, y1 = p.Map(pos+w, hi)
		}
		p.Polygon([][2]int{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}, &fill, b.Edge, 1)
	}
}

func (b *Bars) LegendEntry() (string, drawing.Color, bool) { return b.Label, b.Color, b.Label != "" }

// Text is a string anchored at a data point.
type Text struct {
	X, Y   float64
	S      string
	Color  drawing.Color
	Size   float64 // points
	HAlign string  // left, center or right
}

func (t *Text) Bounds() (float64, float64, float64, float64, bool) {
	return t.X, t.X, t.Y, t.Y, finite(t.X, t.Y)
}

func (t *Text) Draw(p *Painter) {
	if !finite(t.X, t.Y) {
		return
	}
	x, y := p.Map(t.X, t.Y)
	size := t.Size
	if size <= 0 {
		size = 10
	}
	drawLabel(p.R, t.S, x, y, size, t.Color, t.HAlign)
}

func (t *Text) LegendEntry() (string, drawing.Color, bool) { return "", drawing.Color{}, false }

// Arrows connects start and end points with arrow heads.
type Arrows struct {
	X1, Y1, X2, Y2 []float64
	Color          drawing.Color
	Width          float64 // points
	Alpha          float64
	Label          string
}

func (a *Arrows) Bounds() (float64, float64, float64, float64, bool) {
	xs := append(append([]float64{}, a.X1...), a.X2...)
	ys := append(append([]float64{}, a.Y1...), a.Y2...)
	return bounds(xs, ys)
}

func (a *Arrows) Draw(p *Painter) {
	w := a.Width
	if w <= 0 {
		w = 1.5
	}
	c := WithAlpha(a.Color, alphaOr(a.Alpha))
	for i := range a.X1 {
		if i >= len(a.Y1) || i >= len(a.X2) || i >= len(a.Y2) {
			break
		}
		if !finite(a.X1[i], a.Y1[i]) || !finite(a.X2[i], a.Y2[i]) {
			continue
		}
		x0, y0 := p.Map(a.X1[i], a.Y1[i])
		x1, y1 := p.Map(a.X2[i], a.Y2[i])
		p.Polyline([][2]int{{x0, y0}, {x1, y1}}, c, p.Pt(w), nil)
		ang := math.Atan2(float64(y1-y0), float64(x1-x0))
		head := p.Pt(w * 4)
		l := [2]int{x1 - int(head*math.Cos(ang-0.4)), y1 - int(head*math.Sin(ang-0.4))}
		r := [2]int{x1 - int(head*math.Cos(ang+0.4)), y1 - int(head*math.Sin(ang+0.4))}
		p.Polygon([][2]int{{x1, y1}, l, r}, &c, nil, 0)
	}
}

func (a *Arrows) LegendEntry() (string, drawing.Color, bool) { return a.Label, a.Color, a.Label != "" }

// RefLine spans the whole axes at a fixed y, or a fixed x when Vertical.
type RefLine struct {
	At       float64
	Vertical bool
	Color    drawing.Color
	Width    float64 // points
	Dashed   bool
	Alpha    float64
	Label    string
}

func (l *RefLine) Bounds() (float64, float64, float64, float64, bool) { return 0, 0, 0, 0, false }

func (l *RefLine) Draw(p *Painter) {
	xmin, xmax, ymin, ymax := p.View()
	line := &Line{X: []float64{xmin, xmax}, Y: []float64{l.At, l.At}, Color: l.Color, Width: l.Width, Dashed: l.Dashed, Alpha: l.Alpha}
	if l.Vertical {
		line.X, line.Y = []float64{l.At, l.At}, []float64{ymin, ymax}
	}
	line.Draw(p)
}

func (l *RefLine) LegendEntry() (string, drawing.Color, bool) { return l.Label, l.Color, l.Label != "" }

// Heatmap fills grid cells by value through a colormap. Values is indexed
// [y][x] over the given edges.
type Heatmap struct {
	XEdges, YEdges []float64
	Values         [][]float64
	Cmap           *Colormap
	Alpha          float64
	Edge           *drawing.Color
}

func (h *Heatmap) Bounds() (float64, float64, float64, float64, bool) {
	if len(h.XEdges) < 2 || len(h.YEdges) < 2 {
		return 0, 0, 0, 0, false
	}
	return h.XEdges[0], h.XEdges[len(h.XEdges)-1], h.YEdges[0], h.YEdges[len(h.YEdges)-1], true
}

func (h *Heatmap) Draw(p *Painter) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range h.Values {
		for _, v := range row {
			if !math.IsNaN(v) {
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
		}
	}
	cmap := h.Cmap
	if cmap == nil {
		cmap, _ = ParseColormap("viridis")
	}
	for j, row := range h.Values {
		if j+1 >= len(h.YEdges) {
			break
		}
		for i, v := range row {
			if i+1 >= len(h.XEdges) || math.IsNaN(v) {
				continue
			}
			norm := 0.0
			if hi > lo {
				norm = (v - lo) / (hi - lo)
			}
			fill := WithAlpha(cmap.At(norm), alphaOr(h.Alpha))
			x0, y0 := p.Map(h.XEdges[i], h.YEdges[j])
			x1, y1 := p.Map(h.XEdges[i+1], h.YEdges[j+1])
			p.Polygon([][2]int{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}, &fill, h.Edge, 1)
		}
	}
}

func (h *Heatmap) LegendEntry() (string, drawing.Color, bool) { return "", drawing.Color{}, false }

// HistBins splits finite values into equal-width bins.
func HistBins(values []float64, bins int) (edges, counts []float64) {
	if bins < 1 {
		bins = 10
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 1
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	edges = make([]float64, bins+1)
	step := (hi - lo) / float64(bins)
	for i := range edges {
		edges[i] = lo + float64(i)*step
	}
	counts = make([]float64, bins)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		i := int((v - lo) / step)
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}
	return edges, counts
}

func bounds(xs, ys []float64) (xmin, xmax, ymin, ymax float64, ok bool) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for i := range xs {
		if i >= len(ys) || !finite(xs[i], ys[i]) {
			continue
		}
		ok = true
		xmin, xmax = math.Min(xmin, xs[i]), math.Max(xmax, xs[i])
		ymin, ymax = math.Min(ymin, ys[i]), math.Max(ymax, ys[i])
	}
	return
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func alphaOr(a float64) float64 {
	if a <= 0 {
		return 1
	}
	return a
}
