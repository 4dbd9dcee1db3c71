package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

// Options controls profiling.
type Options struct {
	// Name labels the report, usually the file name.
	Name string
	// MaxRows limits rows processed; 0 means unlimited.
	MaxRows int
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// GroupBy computes per-group summaries for the given column names.
	GroupBy []string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultOptions returns reasonable defaults for dataset analysis.
func DefaultOptions() Options {
	return Options{
		MaxRows:    100000,
		SampleRows: 5,
		Outliers:   true,
	}
}

// Report is a markdown-friendly profile of a table.
type Report struct {
	Name      string
	Rows      int
	Processed int
	Cols      []ColumnSummary
	Samples   [][]string
	Warnings  []string
	Groups    []GroupResult
	Corr      *CorrMatrix
}

// ColumnSummary captures inferred kind and statistics per column.
type ColumnSummary struct {
	Name    string
	DType   string
	Kind    string // numeric|datetime|categorical|text|unknown
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	// Categorical top values
	TopValues    []CategoryCount
	ExampleTexts []string
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key     string
	Size    int
	Metrics map[string]NumSummary // by column name
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// maxCategories is the unique-value ceiling for treating text as categorical.
const maxCategories = 50

// Profile computes per-column statistics over the first opt.MaxRows rows.
func Profile(t *table.Table, opt Options) *Report {
	rep := &Report{Name: opt.Name, Rows: t.Len()}
	maxRows := opt.MaxRows
	if maxRows <= 0 || maxRows > t.Len() {
		maxRows = t.Len()
	}
	rep.Processed = maxRows
	sampleRows := opt.SampleRows
	if sampleRows <= 0 {
		sampleRows = 5
	}
	view := t.Head(maxRows)

	for i := 0; i < view.Len() && i < sampleRows; i++ {
		row := make([]string, view.Width())
		for j := range row {
			if v := view.ColumnAt(j).Values[i]; !table.IsNull(v) {
				row[j] = table.Str(v)
			}
		}
		rep.Samples = append(rep.Samples, row)
	}

	var numeric []int
	values := make(map[int][]float64)
	for j := 0; j < view.Width(); j++ {
		c := view.ColumnAt(j)
		s := summarizeColumn(c, opt)
		if s.Kind == "numeric" {
			numeric = append(numeric, j)
			values[j], _ = c.Floats()
		}
		rep.Cols = append(rep.Cols, s)
	}

	if rep.Processed < rep.Rows {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", rep.Processed, rep.Rows))
	}
	if len(opt.GroupBy) > 0 {
		groups, err := groupBy(view, opt.GroupBy, numeric, values)
		if err != nil {
			rep.Warnings = append(rep.Warnings, err.Error())
		}
		rep.Groups = groups
	}
	if opt.Correlations && len(numeric) >= 2 {
		rep.Corr = correlations(view, numeric, values)
	}
	return rep
}

func summarizeColumn(c *table.Column, opt Options) ColumnSummary {
	s := ColumnSummary{Name: c.Name, DType: string(c.DType), Missing: c.NullCount()}
	s.NonNull = c.Len() - s.Missing
	s.Unique = c.NUnique()
	if s.NonNull == 0 {
		s.Kind = "unknown"
		return s
	}
	switch c.DType {
	case table.Int64, table.Float64:
		s.Kind = "numeric"
		vals, _ := c.Floats()
		numericStats(&s, vals, opt)
	case table.Bool:
		s.Kind = "categorical"
		s.TopValues = topValues(c)
	default:
		switch {
		case allDates(c):
			s.Kind = "datetime"
		case s.Unique <= maxCategories:
			s.Kind = "categorical"
			s.TopValues = topValues(c)
		default:
			s.Kind = "text"
			for _, v := range c.NonNull() {
				if len(s.ExampleTexts) == 3 {
					break
				}
				s.ExampleTexts = append(s.ExampleTexts, table.Str(v))
			}
		}
	}
	return s
}

// numericStats fills min/max/mean/std with Welford's update and counts
// MAD outliers.
func numericStats(s *ColumnSummary, vals []float64, opt Options) {
	var n int
	var mean, m2 float64
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	present := make([]float64, 0, len(vals))
	for _, x := range vals {
		if math.IsNaN(x) {
			continue
		}
		present = append(present, x)
		n++
		if x < s.Min {
			s.Min = x
		}
		if x > s.Max {
			s.Max = x
		}
		delta := x - mean
		mean += delta / float64(n)
		m2 += delta * (x - mean)
	}
	s.Mean = mean
	if n > 1 {
		s.Std = math.Sqrt(m2 / float64(n-1))
	}
	if !opt.Outliers || len(present) < 8 {
		return
	}
	median, mad := medianMAD(present)
	thr := opt.OutlierThreshold
	if thr <= 0 {
		thr = 3.5
	}
	if mad > 0 {
		for _, v := range present {
			az := math.Abs(0.6745 * (v - median) / mad)
			if az > thr {
				s.OutliersCount++
			}
			if az > s.OutliersMaxAbsZ {
				s.OutliersMaxAbsZ = az
			}
		}
	}
	s.OutlierThreshold = thr
}

func topValues(c *table.Column) []CategoryCount {
	counts := map[string]int{}
	for _, v := range c.NonNull() {
		counts[table.Str(v)]++
	}
	tops := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > 8 {
		tops = tops[:8]
	}
	return tops
}

var dateLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
}

func parseTimeMaybe(s string) (time.Time, bool) {
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func allDates(c *table.Column) bool {
	vals := c.NonNull()
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			return false
		}
		if _, ok := parseTimeMaybe(s); !ok {
			return false
		}
	}
	return len(vals) > 0
}

// groupBy aggregates numeric columns per distinct key of the named columns.
func groupBy(t *table.Table, names []string, numeric []int, values map[int][]float64) ([]GroupResult, error) {
	var keyCols []*table.Column
	for _, name := range names {
		c := lookupFold(t, name)
		if c == nil {
			return nil, fmt.Errorf("group-by column %q not found", name)
		}
		keyCols = append(keyCols, c)
	}
	type gAcc struct {
		size int
		sum  map[int]float64
		cnt  map[int]int
		min  map[int]float64
		max  map[int]float64
	}
	groups := map[string]*gAcc{}
	for i := 0; i < t.Len(); i++ {
		parts := make([]string, len(keyCols))
		for k, c := range keyCols {
			val := ""
			if v := c.Values[i]; !table.IsNull(v) {
				val = table.Str(v)
			}
			parts[k] = fmt.Sprintf("%s=%s", c.Name, safeVal(val))
		}
		key := strings.Join(parts, " | ")
		ga := groups[key]
		if ga == nil {
			ga = &gAcc{sum: map[int]float64{}, cnt: map[int]int{}, min: map[int]float64{}, max: map[int]float64{}}
			groups[key] = ga
		}
		ga.size++
		for _, j := range numeric {
			x := values[j][i]
			if math.IsNaN(x) {
				continue
			}
			ga.sum[j] += x
			ga.cnt[j]++
			if _, ok := ga.min[j]; !ok || x < ga.min[j] {
				ga.min[j] = x
			}
			if _, ok := ga.max[j]; !ok || x > ga.max[j] {
				ga.max[j] = x
			}
		}
	}
	out := make([]GroupResult, 0, len(groups))
	for k, ga := range groups {
		gr := GroupResult{Key: k, Size: ga.size, Metrics: map[string]NumSummary{}}
		for _, j := range numeric {
			if ga.cnt[j] == 0 {
				continue
			}
			gr.Metrics[t.ColumnAt(j).Name] = NumSummary{Count: ga.cnt[j], Min: ga.min[j], Max: ga.max[j], Mean: ga.sum[j] / float64(ga.cnt[j])}
		}
		out = append(out, gr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	if len(out) > 20 {
		out = out[:20]
	}
	return out, nil
}

func lookupFold(t *table.Table, name string) *table.Column {
	want := strings.ToLower(strings.TrimSpace(name))
	for i := 0; i < t.Width(); i++ {
		if c := t.ColumnAt(i); strings.ToLower(strings.TrimSpace(c.Name)) == want {
			return c
		}
	}
	return nil
}

// correlations computes pairwise Pearson r over rows where both values are
// present.
func correlations(t *table.Table, numeric []int, values map[int][]float64) *CorrMatrix {
	n := len(numeric)
	m := &CorrMatrix{Columns: make([]string, n), Values: make([][]float64, n)}
	for a, j := range numeric {
		m.Columns[a] = t.ColumnAt(j).Name
		m.Values[a] = make([]float64, n)
	}
	for a := 0; a < n; a++ {
		m.Values[a][a] = 1
		for b := a + 1; b < n; b++ {
			r := pearson(values[numeric[a]], values[numeric[b]])
			m.Values[a][b], m.Values[b][a] = r, r
		}
	}
	return m
}

func pearson(xs, ys []float64) float64 {
	var n, sumX, sumY, sumXX, sumYY, sumXY float64
	for i := range xs {
		x, y := xs[i], ys[i]
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		n++
		sumX += x
		sumY += y
		sumXX += x * x
		sumYY += y * y
		sumXY += x * y
	}
	if n < 2 {
		return 0
	}
	denom := math.Sqrt((n*sumXX - sumX*sumX) * (n*sumYY - sumY*sumY))
	if denom == 0 {
		return 0
	}
	r := (n*sumXY - sumX*sumY) / denom
	switch {
	case r > 1:
		r = 1
	case r < -1:
		r = -1
	case math.IsNaN(r) || math.IsInf(r, 0):
		r = 0
	}
	return r
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
