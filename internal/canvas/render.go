package canvas

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// DefaultDPI is the capture resolution for rendered figures.
const DefaultDPI = 150

var (
	fontOnce sync.Once
	font     *truetype.Font
	fontErr  error
)

func defaultFont() (*truetype.Font, error) {
	fontOnce.Do(func() { font, fontErr = chart.GetDefaultFont() })
	return font, fontErr
}

type rect struct{ left, top, right, bottom float64 }

func (r rect) w() float64 { return r.right - r.left }
func (r rect) h() float64 { return r.bottom - r.top }

// RenderPNG rasterizes a figure at dpi and returns the encoded PNG.
func RenderPNG(f *Figure, dpi float64) ([]byte, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	fnt, err := defaultFont()
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	width := int(math.Round(f.Width * dpi))
	height := int(math.Round(f.Height * dpi))
	r, err := chart.PNG(width, height)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	r.SetDPI(dpi)
	r.SetFont(fnt)

	full := &Painter{R: r, DPI: dpi}
	face := f.Facecolor
	full.Polygon([][2]int{{0, 0}, {width, 0}, {width, height}, {0, height}}, &face, nil, 0)

	top := 0.0
	if f.Suptitle != "" {
		top = float64(height) * 0.07
		drawLabel(r, f.Suptitle, width/2, int(top*0.7), 16, drawing.ColorBlack, "center")
	}
	rows, cols := f.Grid()
	if rows == 0 {
		rows, cols = 1, 1
	}
	cw := float64(width) / float64(cols)
	ch := (float64(height) - top) / float64(rows)
	for _, ax := range f.axes {
		cellRect := rect{
			left:   float64(ax.col) * cw,
			top:    top + float64(ax.row)*ch,
			right:  float64(ax.col+1) * cw,
			bottom: top + float64(ax.row+1)*ch,
		}
		renderAxes(r, ax, cellRect, dpi)
	}

	var buf bytes.Buffer
	if err := r.Save(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func renderAxes(r chart.Renderer, ax *Axes, cell rect, dpi float64) {
	var plot rect
	if ax.Pitch != nil || ax.AxisOff {
		padX, padY := cell.w()*0.03, cell.h()*0.03
		plot = rect{cell.left + padX, cell.top + padY, cell.right - padX, cell.bottom - padY}
	} else {
		plot = rect{cell.left + cell.w()*0.11, cell.top + cell.h()*0.09, cell.right - cell.w()*0.04, cell.bottom - cell.h()*0.12}
	}
	if ax.Title != "" {
		plot.top += cell.h() * 0.04
	}

	var xmin, xmax, ymin, ymax float64
	invert := ax.InvertY
	if ax.Pitch != nil {
		xmin, xmax, ymin, ymax = ax.Pitch.Extent()
		invert = invert != ax.Pitch.InvertY
		plot = fitAspect(plot, metresLength/metresWidth)
	} else {
		xmin, xmax, ymin, ymax = ax.DataBounds()
	}
	if xmax == xmin {
		xmax = xmin + 1
	}
	if ymax == ymin {
		ymax = ymin + 1
	}
	p := &Painter{R: r, DPI: dpi, view: [4]float64{xmin, xmax, ymin, ymax}}
	p.toPx = func(x, y float64) (float64, float64) {
		px := plot.left + (x-xmin)/(xmax-xmin)*plot.w()
		fy := (y - ymin) / (ymax - ymin)
		if invert {
			return px, plot.top + fy*plot.h()
		}
		return px, plot.bottom - fy*plot.h()
	}
	box := [][2]int{
		{int(plot.left), int(plot.top)}, {int(plot.right), int(plot.top)},
		{int(plot.right), int(plot.bottom)}, {int(plot.left), int(plot.bottom)},
	}

	switch {
	case ax.Pitch != nil:
		bg := ax.Pitch.PitchColor
		if ax.Facecolor != nil {
			bg = *ax.Facecolor
		}
		pad := 3.0 / metresLength * plot.w()
		p.Polygon([][2]int{
			{int(plot.left - pad), int(plot.top - pad)}, {int(plot.right + pad), int(plot.top - pad)},
			{int(plot.right + pad), int(plot.bottom + pad)}, {int(plot.left - pad), int(plot.bottom + pad)},
		}, &bg, nil, 0)
		drawPitch(p, ax.Pitch, plot)
	case ax.Facecolor != nil:
		p.Polygon(box, ax.Facecolor, nil, 0)
	}

	if ax.Pitch == nil && !ax.AxisOff {
		drawTicks(p, ax, plot, xmin, xmax, ymin, ymax)
	}
	for _, art := range ax.artists {
		art.Draw(p)
	}
	if ax.Pitch == nil && !ax.AxisOff {
		frame := drawing.ColorBlack
		p.Polygon(box, nil, &frame, p.Pt(0.8))
	}
	if ax.Title != "" {
		drawLabel(r, ax.Title, int((plot.left+plot.right)/2), int(plot.top-cell.h()*0.025), 13, drawing.ColorBlack, "center")
	}
	if ax.Legend {
		drawLegend(p, ax, plot)
	}
}

// fitAspect shrinks r to the largest centred rectangle with width/height = aspect.
func fitAspect(r rect, aspect float64) rect {
	if r.w()/r.h() > aspect {
		w := r.h() * aspect
		cx := (r.left + r.right) / 2
		return rect{cx - w/2, r.top, cx + w/2, r.bottom}
	}
	h := r.w() / aspect
	cy := (r.top + r.bottom) / 2
	return rect{r.left, cy - h/2, r.right, cy + h/2}
}

func drawPitch(p *Painter, pitch *Pitch, plot rect) {
	toPx := func(mx, my float64) [2]int {
		return [2]int{
			int(math.Round(plot.left + mx/metresLength*plot.w())),
			int(math.Round(plot.bottom - my/metresWidth*plot.h())),
		}
	}
	width := p.Pt(pitch.LineWidth)
	for _, line := range markings() {
		pts := make([][2]int, len(line))
		for i, m := range line {
			pts[i] = toPx(m[0], m[1])
		}
		p.Polyline(pts, pitch.LineColor, width, nil)
	}
	for _, s := range spots() {
		pt := toPx(s[0], s[1])
		p.Dot(pt[0], pt[1], p.Pt(2), "o", pitch.LineColor, nil)
	}
}

func drawTicks(p *Painter, ax *Axes, plot rect, xmin, xmax, ymin, ymax float64) {
	tickColor := drawing.ColorBlack
	gridColor := drawing.ColorFromHex("b0b0b0")
	xt, xl := ticks(xmin, xmax, ax.XTickLabels)
	for i, v := range xt {
		x, _ := p.Map(v, ymin)
		if ax.Grid {
			p.Polyline([][2]int{{x, int(plot.top)}, {x, int(plot.bottom)}}, gridColor, p.Pt(0.5), nil)
		}
		p.Polyline([][2]int{{x, int(plot.bottom)}, {x, int(plot.bottom + p.Pt(3.5))}}, tickColor, p.Pt(0.8), nil)
		drawLabel(p.R, xl[i], x, int(plot.bottom+p.Pt(14)), 9, tickColor, "center")
	}
	yt, yl := ticks(ymin, ymax, ax.YTickLabels)
	for i, v := range yt {
		_, y := p.Map(xmin, v)
		if ax.Grid {
			p.Polyline([][2]int{{int(plot.left), y}, {int(plot.right), y}}, gridColor, p.Pt(0.5), nil)
		}
		p.Polyline([][2]int{{int(plot.left - p.Pt(3.5)), y}, {int(plot.left), y}}, tickColor, p.Pt(0.8), nil)
		drawLabel(p.R, yl[i], int(plot.left-p.Pt(5)), y+int(p.Pt(3)), 9, tickColor, "right")
	}
	if ax.XLabel != "" {
		drawLabel(p.R, ax.XLabel, int((plot.left+plot.right)/2), int(plot.bottom+p.Pt(28)), 11, tickColor, "center")
	}
	if ax.YLabel != "" {
		p.R.SetTextRotation(-math.Pi / 2)
		drawLabel(p.R, ax.YLabel, int(plot.left-p.Pt(36)), int((plot.top+plot.bottom)/2), 11, tickColor, "center")
		p.R.ClearTextRotation()
	}
}

// ticks picks about five round tick values inside [lo, hi], or category
// positions when labels are given.
func ticks(lo, hi float64, labels []string) ([]float64, []string) {
	if len(labels) > 0 {
		var vals []float64
		var out []string
		for i, l := range labels {
			if v := float64(i); v >= lo && v <= hi {
				vals = append(vals, v)
				out = append(out, l)
			}
		}
		return vals, out
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	span := hi - lo
	if span <= 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		return nil, nil
	}
	raw := span / 5
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	step := mag
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if m*mag >= raw {
			step = m * mag
			break
		}
	}
	var vals []float64
	var out []string
	for v := math.Ceil(lo/step) * step; v <= hi+step*1e-9; v += step {
		vals = append(vals, v)
		out = append(out, strconv.FormatFloat(roundTo(v, step), 'f', -1, 64))
	}
	return vals, out
}

func roundTo(v, step float64) float64 {
	digits := math.Max(0, -math.Floor(math.Log10(step))+1)
	f := math.Pow(10, digits)
	return math.Round(v*f) / f
}

func drawLegend(p *Painter, ax *Axes, plot rect) {
	type entry struct {
		label string
		color drawing.Color
	}
	var entries []entry
	for _, art := range ax.artists {
		if l, c, ok := art.LegendEntry(); ok {
			entries = append(entries, entry{l, c})
		}
	}
	if len(entries) == 0 {
		return
	}
	line := p.Pt(14)
	boxW := p.Pt(120)
	x0 := plot.right - boxW - p.Pt(6)
	y0 := plot.top + p.Pt(6)
	bg := WithAlpha(drawing.ColorWhite, 0.86)
	edge := drawing.ColorFromHex("cccccc")
	p.Polygon([][2]int{
		{int(x0), int(y0)}, {int(x0 + boxW), int(y0)},
		{int(x0 + boxW), int(y0 + line*float64(len(entries)) + p.Pt(6))}, {int(x0), int(y0 + line*float64(len(entries)) + p.Pt(6))},
	}, &bg, &edge, 1)
	for i, e := range entries {
		cy := int(y0 + p.Pt(10) + line*float64(i))
		p.Dot(int(x0+p.Pt(10)), cy-int(p.Pt(3)), p.Pt(4), "s", e.color, nil)
		drawLabel(p.R, e.label, int(x0+p.Pt(20)), cy, 9, drawing.ColorBlack, "left")
	}
}

func drawLabel(r chart.Renderer, s string, x, y int, size float64, color drawing.Color, align string) {
	if s == "" {
		return
	}
	if fnt, err := defaultFont(); err == nil {
		r.SetFont(fnt)
	}
	r.SetFontSize(size)
	r.SetFontColor(color)
	box := r.MeasureText(s)
	switch align {
	case "center":
		x -= box.Width() / 2
	case "right":
		x -= box.Width()
	}
	r.Text(s, x, y)
}
