package canvas

import (
	"fmt"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Real pitch dimensions in metres. Markings are laid out on this grid and
// scaled onto the data coordinates of the chosen provider.
const (
	metresLength = 105.0
	metresWidth  = 68.0
)

// Pitch describes a football pitch coordinate system and its styling.
type Pitch struct {
	Type          string
	Length, Width float64 // data units
	InvertY       bool
	PitchColor    drawing.Color
	LineColor     drawing.Color
	LineWidth     float64 // points
}

// NewPitch returns a pitch for a provider coordinate system. length and
// width apply only to the custom type; zero values default to metres.
func NewPitch(kind string, length, width float64) (*Pitch, error) {
	p := &Pitch{
		Type:       strings.ToLower(strings.TrimSpace(kind)),
		PitchColor: drawing.ColorWhite,
		LineColor:  drawing.ColorFromHex("000000"),
		LineWidth:  1.5,
	}
	switch p.Type {
	case "", "statsbomb":
		p.Type, p.Length, p.Width, p.InvertY = "statsbomb", 120, 80, true
	case "opta":
		p.Length, p.Width = 100, 100
	case "wyscout":
		p.Length, p.Width, p.InvertY = 100, 100, true
	case "uefa":
		p.Length, p.Width = metresLength, metresWidth
	case "custom":
		p.Length, p.Width = length, width
		if p.Length <= 0 {
			p.Length = metresLength
		}
		if p.Width <= 0 {
			p.Width = metresWidth
		}
	default:
		return nil, fmt.Errorf("unknown pitch_type %q (want statsbomb, opta, wyscout, uefa or custom)", kind)
	}
	return p, nil
}

// Extent returns the data range covered by the pitch.
func (p *Pitch) Extent() (xmin, xmax, ymin, ymax float64) { return 0, p.Length, 0, p.Width }

// BinStat is a 2D binned statistic over the pitch. Statistic is indexed [y][x].
type BinStat struct {
	Statistic      [][]float64
	XEdges, YEdges []float64
}

// BinStatistic bins points into nx by ny cells and reduces values per cell
// with count, sum or mean. A nil values slice counts points.
func (p *Pitch) BinStatistic(xs, ys, values []float64, statistic string, nx, ny int) (*BinStat, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("bins must be positive, got (%d, %d)", nx, ny)
	}
	stat := strings.ToLower(statistic)
	switch stat {
	case "", "count":
		stat = "count"
	case "sum", "mean":
	default:
		return nil, fmt.Errorf("unsupported statistic %q (want count, sum or mean)", statistic)
	}
	if values != nil && len(values) != len(xs) {
		return nil, fmt.Errorf("values has %d entries, want %d", len(values), len(xs))
	}
	sums := grid(ny, nx)
	counts := grid(ny, nx)
	for i := range xs {
		if i >= len(ys) || !finite(xs[i], ys[i]) {
			continue
		}
		cx := cell(xs[i], p.Length, nx)
		cy := cell(ys[i], p.Width, ny)
		if cx < 0 || cy < 0 {
			continue
		}
		v := 1.0
		if values != nil {
			if math.IsNaN(values[i]) {
				continue
			}
			v = values[i]
		}
		sums[cy][cx] += v
		counts[cy][cx]++
	}
	out := grid(ny, nx)
	for j := range out {
		for i := range out[j] {
			switch stat {
			case "count":
				out[j][i] = counts[j][i]
			case "sum":
				out[j][i] = sums[j][i]
			case "mean":
				if counts[j][i] == 0 {
					out[j][i] = math.NaN()
				} else {
					out[j][i] = sums[j][i] / counts[j][i]
				}
			}
		}
	}
	return &BinStat{Statistic: out, XEdges: edges(p.Length, nx), YEdges: edges(p.Width, ny)}, nil
}

func grid(rows, cols int) [][]float64 {
	g := make([][]float64, rows)
	for i := range g {
		g[i] = make([]float64, cols)
	}
	return g
}

func cell(v, extent float64, n int) int {
	if v < 0 || v > extent {
		return -1
	}
	i := int(v / extent * float64(n))
	if i == n {
		i--
	}
	return i
}

func edges(extent float64, n int) []float64 {
	out := make([]float64, n+1)
	for i := range out {
		out[i] = extent * float64(i) / float64(n)
	}
	return out
}

// markings returns the standard pitch lines as polylines in metres.
func markings() [][][2]float64 {
	const (
		l, w      = metresLength, metresWidth
		boxDepth  = 16.5
		boxWidth  = 40.32
		sixDepth  = 5.5
		sixWidth  = 18.32
		spotDist  = 11.0
		arcRadius = 9.15
		goalWidth = 7.32
		goalDepth = 2.0
	)
	rect := func(x0, y0, x1, y1 float64) [][2]float64 {
		return [][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
	}
	arc := func(cx, cy, r, from, to float64) [][2]float64 {
		const steps = 48
		pts := make([][2]float64, 0, steps+1)
		for i := 0; i <= steps; i++ {
			a := from + (to-from)*float64(i)/steps
			pts = append(pts, [2]float64{cx + r*math.Cos(a), cy + r*math.Sin(a)})
		}
		return pts
	}
	mid := w / 2
	// the penalty arc is the part of the spot circle outside the box
	arcAngle := math.Acos((boxDepth - spotDist) / arcRadius)
	return [][][2]float64{
		rect(0, 0, l, w),
		{{l / 2, 0}, {l / 2, w}},
		arc(l/2, mid, arcRadius, 0, 2*math.Pi),
		rect(0, mid-boxWidth/2, boxDepth, mid+boxWidth/2),
		rect(l-boxDepth, mid-boxWidth/2, l, mid+boxWidth/2),
		rect(0, mid-sixWidth/2, sixDepth, mid+sixWidth/2),
		rect(l-sixDepth, mid-sixWidth/2, l, mid+sixWidth/2),
		rect(-goalDepth, mid-goalWidth/2, 0, mid+goalWidth/2),
		rect(l, mid-goalWidth/2, l+goalDepth, mid+goalWidth/2),
		arc(spotDist, mid, arcRadius, -arcAngle, arcAngle),
		arc(l-spotDist, mid, arcRadius, math.Pi-arcAngle, math.Pi+arcAngle),
	}
}

// spots returns the centre and penalty spots in metres.
func spots() [][2]float64 {
	return [][2]float64{{metresLength / 2, metresWidth / 2}, {11, metresWidth / 2}, {metresLength - 11, metresWidth / 2}}
}
