package canvas

import (
	"bytes"
	"image/png"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	c, err := ParseColor("red")
	require.NoError(t, err)
	assert.Equal(t, uint8(255), c.R)

	c, err = ParseColor("#0f0")
	require.NoError(t, err)
	assert.Equal(t, uint8(255), c.G)

	c, err = ParseColor("#00000080")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x80), c.A)

	c, err = ParseColor("C1")
	require.NoError(t, err)
	assert.Equal(t, CycleColor(1), c)

	_, err = ParseColor("not-a-colour")
	assert.Error(t, err)
}

func TestColormapEndpoints(t *testing.T) {
	m, err := ParseColormap("Reds")
	require.NoError(t, err)
	r, err := ParseColormap("reds_r")
	require.NoError(t, err)
	assert.Equal(t, m.At(0), r.At(1))
	assert.Equal(t, m.At(1), r.At(0))
	_, err = ParseColormap("nope")
	assert.Error(t, err)
}

func TestPitchTypes(t *testing.T) {
	p, err := NewPitch("", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "statsbomb", p.Type)
	assert.True(t, p.InvertY)
	_, xmax, _, ymax := p.Extent()
	assert.Equal(t, 120.0, xmax)
	assert.Equal(t, 80.0, ymax)

	p, err = NewPitch("custom", 100, 64)
	require.NoError(t, err)
	assert.Equal(t, 64.0, p.Width)

	_, err = NewPitch("tracab", 0, 0)
	assert.Error(t, err)
}

func TestBinStatistic(t *testing.T) {
	p, _ := NewPitch("opta", 0, 0)
	stat, err := p.BinStatistic([]float64{10, 20, 90, math.NaN(), 150}, []float64{10, 10, 90, 5, 5}, nil, "count", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 0}, {0, 1}}, stat.Statistic)
	assert.Equal(t, []float64{0, 50, 100}, stat.XEdges)

	mean, err := p.BinStatistic([]float64{10, 20}, []float64{10, 10}, []float64{1, 3}, "mean", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, mean.Statistic[0][0])
	assert.True(t, math.IsNaN(mean.Statistic[0][1]))

	_, err = p.BinStatistic(nil, nil, nil, "median", 2, 2)
	assert.Error(t, err)
}

func TestHistBins(t *testing.T) {
	edges, counts := HistBins([]float64{0, 1, 2, 3, 4, math.NaN()}, 2)
	assert.Equal(t, []float64{0, 2, 4}, edges)
	assert.Equal(t, []float64{2, 3}, counts)
}

func TestTicks(t *testing.T) {
	vals, labels := ticks(0, 100, nil)
	assert.Equal(t, []float64{0, 20, 40, 60, 80, 100}, vals)
	assert.Equal(t, "40", labels[2])
	vals, labels = ticks(-0.5, 2.5, []string{"a", "b", "c"})
	assert.Equal(t, []float64{0, 1, 2}, vals)
	assert.Equal(t, []string{"a", "b", "c"}, labels)
}

func TestDataBoundsPadsAndHonoursLimits(t *testing.T) {
	f := NewFigure(0, 0)
	ax := f.Gca()
	ax.Add(&Scatter{X: []float64{0, 10}, Y: []float64{0, 20}})
	xmin, xmax, ymin, ymax := ax.DataBounds()
	assert.InDelta(t, -0.5, xmin, 1e-9)
	assert.InDelta(t, 10.5, xmax, 1e-9)
	assert.InDelta(t, -1, ymin, 1e-9)
	assert.InDelta(t, 21, ymax, 1e-9)

	ax.XLim = Limit{Lo: 0, Hi: 120, Set: true}
	xmin, xmax, _, _ = ax.DataBounds()
	assert.Equal(t, 0.0, xmin)
	assert.Equal(t, 120.0, xmax)
}

func TestRenderPNGProducesImageOfFigureSize(t *testing.T) {
	f := NewFigure(4, 3)
	f.Suptitle = "Shots"
	axes := f.Subplots(1, 2)
	pitch, _ := NewPitch("statsbomb", 0, 0)
	axes[0].Pitch = pitch
	axes[0].Add(&Scatter{X: []float64{100, 110}, Y: []float64{40, 30}, Color: CycleColor(0), Label: "shots"})
	axes[0].Add(&Arrows{X1: []float64{60}, Y1: []float64{40}, X2: []float64{90}, Y2: []float64{20}, Color: CycleColor(1)})
	axes[0].Legend = true
	axes[1].Title = "Minutes"
	axes[1].Add(&Bars{Pos: []float64{0, 1}, Lengths: []float64{3, 5}, Color: CycleColor(2)})
	axes[1].XTickLabels = []string{"A", "B"}
	axes[1].Grid = true
	axes[1].YLabel = "count"

	data, err := RenderPNG(f, 50)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 150, img.Bounds().Dy())
}

func TestSurfaceSerializesAndResets(t *testing.T) {
	s := NewSurface()
	_, err := s.Capture(50)
	assert.ErrorIs(t, err, ErrNotAcquired)

	fig := s.Acquire()
	fig.Gca().Title = "dirty"
	s.Release()

	var wg sync.WaitGroup
	order := make(chan int, 2)
	s.Acquire()
	wg.Add(1)
	go func() {
		defer wg.Done()
		f := s.Acquire()
		order <- 2
		assert.Empty(t, f.Axes(), "next holder starts blank")
		s.Release()
	}()
	time.Sleep(20 * time.Millisecond)
	order <- 1
	s.Release()
	wg.Wait()
	assert.Equal(t, 1, <-order)
	assert.Equal(t, 2, <-order)
}
