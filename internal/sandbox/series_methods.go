package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"go.starlark.net/starlark"

	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

type seriesFunc func(s *Series, c *call) (starlark.Value, error)

var comparators = map[string]seriesFunc{
	"eq": compareMethod(func(c int) bool { return c == 0 }, true),
	"ne": compareMethod(func(c int) bool { return c != 0 }, true),
	"gt": compareMethod(func(c int) bool { return c > 0 }, false),
	"ge": compareMethod(func(c int) bool { return c >= 0 }, false),
	"lt": compareMethod(func(c int) bool { return c < 0 }, false),
	"le": compareMethod(func(c int) bool { return c <= 0 }, false),
}

var seriesMethods = buildMethods(map[string]seriesFunc{
	"eq":           comparators["eq"],
	"ne":           comparators["ne"],
	"gt":           comparators["gt"],
	"ge":           comparators["ge"],
	"lt":           comparators["lt"],
	"le":           comparators["le"],
	"between":      seriesBetween,
	"isin":         seriesIsin,
	"isna":         nullMask(true),
	"isnull":       nullMask(true),
	"notna":        nullMask(false),
	"notnull":      nullMask(false),
	"dropna":       seriesDropna,
	"fillna":       seriesFillna,
	"count":        func(s *Series, _ *call) (starlark.Value, error) { return starlark.MakeInt(s.count()), nil },
	"sum":          reduceMethod(reduceSum),
	"mean":         reduceMethod(reduceMean),
	"median":       reduceMethod(reduceMedian),
	"std":          reduceMethod(reduceStd),
	"min":          extremeMethod(-1),
	"max":          extremeMethod(1),
	"idxmin":       idxMethod(-1),
	"idxmax":       idxMethod(1),
	"quantile":     seriesQuantile,
	"nunique":      func(s *Series, _ *call) (starlark.Value, error) { return starlark.MakeInt(len(uniqueCells(s.vals))), nil },
	"unique":       func(s *Series, _ *call) (starlark.Value, error) { return cellList(uniqueCells(s.vals)), nil },
	"value_counts": seriesValueCounts,
	"head":         seriesHead,
	"tail":         seriesTail,
	"tolist":       func(s *Series, _ *call) (starlark.Value, error) { return cellList(s.vals), nil },
	"to_list":      func(s *Series, _ *call) (starlark.Value, error) { return cellList(s.vals), nil },
	"copy":         func(s *Series, _ *call) (starlark.Value, error) { return s.take(allRows(len(s.vals))), nil },
	"reset_index":  func(s *Series, _ *call) (starlark.Value, error) { return newSeries(s.name, s.vals), nil },
	"astype":       seriesAstype,
	"abs":          mapFloat(math.Abs),
	"round":        seriesRound,
	"cumsum":       seriesCumsum,
	"sort_values":  seriesSortValues,
	"nlargest":     extremesMethod(false),
	"nsmallest":    extremesMethod(true),
})

func buildMethods(fns map[string]seriesFunc) map[string]*starlark.Builtin {
	out := make(map[string]*starlark.Builtin, len(fns))
	for name, fn := range fns {
		fn := fn
		out[name] = starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return fn(b.Receiver().(*Series), newCall(b, args, kwargs))
		})
	}
	return out
}

func allRows(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func boolSeries(s *Series, pred func(v any) bool) *Series {
	out := make([]any, len(s.vals))
	for i, v := range s.vals {
		out[i] = pred(v)
	}
	return s.derive(out)
}

// compareMethod builds eq/ne/gt/... . Equality works across kinds; ordering
// across kinds is an error, null cells compare false.
func compareMethod(test func(int) bool, equality bool) seriesFunc {
	return func(s *Series, c *call) (starlark.Value, error) {
		arg := c.get(0, "other")
		if arg == nil {
			return nil, c.errorf("missing argument other")
		}
		other, err := operand(arg, len(s.vals))
		if err != nil {
			return nil, c.errorf("%v", err)
		}
		out := make([]any, len(s.vals))
		for i, v := range s.vals {
			w := other[i]
			if table.IsNull(v) || table.IsNull(w) {
				out[i] = equality && test(1)
				continue
			}
			if equality {
				if cellEqual(v, w) {
					out[i] = test(0)
				} else {
					out[i] = test(1)
				}
				continue
			}
			cmp, ok := cellCompare(v, w)
			if !ok {
				return nil, c.errorf("cannot order %s and %s", table.Repr(v), table.Repr(w))
			}
			out[i] = test(cmp)
		}
		return s.derive(out), nil
	}
}

func seriesBetween(s *Series, c *call) (starlark.Value, error) {
	lo, err := c.float(0, math.Inf(-1), "left")
	if err != nil {
		return nil, err
	}
	hi, err := c.float(1, math.Inf(1), "right")
	if err != nil {
		return nil, err
	}
	return boolSeries(s, func(v any) bool {
		f, ok := table.ToFloat(v)
		return ok && f >= lo && f <= hi
	}), nil
}

func seriesIsin(s *Series, c *call) (starlark.Value, error) {
	arg := c.get(0, "values")
	seq, ok := arg.(starlark.Iterable)
	if !ok {
		return nil, c.errorf("values must be a list")
	}
	var wanted []any
	it := seq.Iterate()
	defer it.Done()
	var x starlark.Value
	for it.Next(&x) {
		v, err := fromValue(x)
		if err != nil {
			return nil, c.errorf("%v", err)
		}
		wanted = append(wanted, v)
	}
	return boolSeries(s, func(v any) bool {
		for _, w := range wanted {
			if cellEqual(v, w) {
				return true
			}
		}
		return false
	}), nil
}

func nullMask(isNull bool) seriesFunc {
	return func(s *Series, _ *call) (starlark.Value, error) {
		return boolSeries(s, func(v any) bool { return table.IsNull(v) == isNull }), nil
	}
}

func seriesDropna(s *Series, _ *call) (starlark.Value, error) {
	var idx []int
	for i, v := range s.vals {
		if !table.IsNull(v) {
			idx = append(idx, i)
		}
	}
	return s.take(idx), nil
}

func seriesFillna(s *Series, c *call) (starlark.Value, error) {
	arg := c.get(0, "value")
	if arg == nil {
		return nil, c.errorf("missing argument value")
	}
	fill, err := fromValue(arg)
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	out := make([]any, len(s.vals))
	for i, v := range s.vals {
		if table.IsNull(v) {
			out[i] = fill
		} else {
			out[i] = v
		}
	}
	return s.derive(out), nil
}

func (s *Series) count() int {
	n := 0
	for _, v := range s.vals {
		if !table.IsNull(v) {
			n++
		}
	}
	return n
}

// finiteValues returns the non-null numeric cells; allInt reports whether
// every one was an integer.
func (s *Series) finiteValues() (vals []float64, allInt bool, err error) {
	allInt = true
	for _, v := range s.vals {
		if table.IsNull(v) {
			continue
		}
		f, ok := table.ToFloat(v)
		if !ok {
			return nil, false, fmt.Errorf("Series %q holds non-numeric value %s", s.name, table.Repr(v))
		}
		if _, isInt := v.(int64); !isInt {
			allInt = false
		}
		vals = append(vals, f)
	}
	return vals, allInt, nil
}

func reduceMethod(fn func(vals []float64) float64) seriesFunc {
	return func(s *Series, c *call) (starlark.Value, error) {
		vals, allInt, err := s.finiteValues()
		if err != nil {
			return nil, c.errorf("%v", err)
		}
		r := fn(vals)
		if allInt && c.name == "sum" {
			return starlark.MakeInt64(int64(r)), nil
		}
		return starlark.Float(r), nil
	}
}

func reduceSum(vals []float64) float64 {
	t := 0.0
	for _, v := range vals {
		t += v
	}
	return t
}

func reduceMean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	return reduceSum(vals) / float64(len(vals))
}

func reduceMedian(vals []float64) float64 { return quantile(vals, 0.5) }

func reduceStd(vals []float64) float64 {
	if len(vals) < 2 {
		return math.NaN()
	}
	m := reduceMean(vals)
	ss := 0.0
	for _, v := range vals {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

// quantile interpolates linearly between closest ranks.
func quantile(vals []float64, q float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func seriesQuantile(s *Series, c *call) (starlark.Value, error) {
	q, err := c.float(0, 0.5, "q")
	if err != nil {
		return nil, err
	}
	vals, _, err := s.finiteValues()
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	return starlark.Float(quantile(vals, q)), nil
}

// extremeIndex returns the position of the min (dir -1) or max (dir 1) cell.
func (s *Series) extremeIndex(dir int) (int, error) {
	best := -1
	for i, v := range s.vals {
		if table.IsNull(v) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		cmp, ok := cellCompare(v, s.vals[best])
		if !ok {
			return 0, fmt.Errorf("cannot order %s and %s", table.Repr(v), table.Repr(s.vals[best]))
		}
		if cmp == dir {
			best = i
		}
	}
	return best, nil
}

func extremeMethod(dir int) seriesFunc {
	return func(s *Series, c *call) (starlark.Value, error) {
		i, err := s.extremeIndex(dir)
		if err != nil {
			return nil, c.errorf("%v", err)
		}
		if i < 0 {
			return starlark.Float(math.NaN()), nil
		}
		return toValue(s.vals[i]), nil
	}
}

func idxMethod(dir int) seriesFunc {
	return func(s *Series, c *call) (starlark.Value, error) {
		i, err := s.extremeIndex(dir)
		if err != nil {
			return nil, c.errorf("%v", err)
		}
		if i < 0 {
			return nil, c.errorf("attempt to get %s of an empty sequence", c.name)
		}
		return toValue(s.label(i)), nil
	}
}

func uniqueCells(vals []any) []any {
	var out []any
	seen := map[any]struct{}{}
	for _, v := range vals {
		if table.IsNull(v) {
			continue
		}
		key := v
		if f, ok := v.(float64); ok && f == math.Trunc(f) {
			key = int64(f)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// seriesValueCounts counts distinct values, most frequent first. Ties keep
// first-appearance order.
func seriesValueCounts(s *Series, c *call) (starlark.Value, error) {
	uniq := uniqueCells(s.vals)
	counts := make([]int64, len(uniq))
	for _, v := range s.vals {
		for j, u := range uniq {
			if cellEqual(v, u) {
				counts[j]++
				break
			}
		}
	}
	order := allRows(len(uniq))
	ascending := c.bool(-1, false, "ascending")
	sort.SliceStable(order, func(a, b int) bool {
		if ascending {
			return counts[order[a]] < counts[order[b]]
		}
		return counts[order[a]] > counts[order[b]]
	})
	total := float64(s.count())
	normalize := c.bool(-1, false, "normalize")
	vals := make([]any, len(order))
	labels := make([]any, len(order))
	for i, j := range order {
		labels[i] = uniq[j]
		if normalize {
			vals[i] = float64(counts[j]) / total
		} else {
			vals[i] = counts[j]
		}
	}
	return &Series{name: "count", vals: vals, labels: labels}, nil
}

func seriesHead(s *Series, c *call) (starlark.Value, error) {
	n, err := c.int(0, 5, "n")
	if err != nil {
		return nil, err
	}
	if n > len(s.vals) {
		n = len(s.vals)
	}
	if n < 0 {
		n = 0
	}
	return s.take(allRows(n)), nil
}

func seriesTail(s *Series, c *call) (starlark.Value, error) {
	n, err := c.int(0, 5, "n")
	if err != nil {
		return nil, err
	}
	if n > len(s.vals) {
		n = len(s.vals)
	}
	if n < 0 {
		n = 0
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = len(s.vals) - n + i
	}
	return s.take(idx), nil
}

func typeName(v starlark.Value) string {
	if b, ok := v.(*starlark.Builtin); ok {
		return b.Name()
	}
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

func seriesAstype(s *Series, c *call) (starlark.Value, error) {
	arg := c.get(0, "dtype")
	if arg == nil {
		return nil, c.errorf("missing argument dtype")
	}
	kind := typeName(arg)
	out := make([]any, len(s.vals))
	for i, v := range s.vals {
		if table.IsNull(v) {
			out[i] = v
			continue
		}
		switch kind {
		case "float", "float64", "float32":
			f, err := cellFloat(v)
			if err != nil {
				return nil, c.errorf("%v", err)
			}
			out[i] = f
		case "int", "int64", "int32":
			f, err := cellFloat(v)
			if err != nil {
				return nil, c.errorf("%v", err)
			}
			out[i] = int64(f)
		case "str", "string", "object":
			if str, ok := v.(string); ok {
				out[i] = str
			} else {
				out[i] = table.Repr(v)
			}
		case "bool":
			out[i] = bool(toValue(v).Truth())
		default:
			return nil, c.errorf("unsupported dtype %q", kind)
		}
	}
	return s.derive(out), nil
}

func cellFloat(v any) (float64, error) {
	if f, ok := table.ToFloat(v); ok {
		return f, nil
	}
	if str, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(str, 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("could not convert %s to float", table.Repr(v))
}

func mapFloat(fn func(float64) float64) seriesFunc {
	return func(s *Series, c *call) (starlark.Value, error) {
		vals, err := s.floats()
		if err != nil {
			return nil, c.errorf("%v", err)
		}
		for i := range vals {
			vals[i] = fn(vals[i])
		}
		out := floatSeries(s.name, vals)
		out.labels = s.labels
		return out, nil
	}
}

func seriesRound(s *Series, c *call) (starlark.Value, error) {
	digits, err := c.int(0, 0, "decimals")
	if err != nil {
		return nil, err
	}
	f := math.Pow(10, float64(digits))
	return mapFloat(func(v float64) float64 { return math.Round(v*f) / f })(s, c)
}

func seriesCumsum(s *Series, c *call) (starlark.Value, error) {
	vals, err := s.floats()
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	total := 0.0
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		total += v
		vals[i] = total
	}
	out := floatSeries(s.name, vals)
	out.labels = s.labels
	return out, nil
}

// sortedOrder returns row positions ordered by value; nulls go last.
func (s *Series) sortedOrder(ascending bool) ([]int, error) {
	order := allRows(len(s.vals))
	var sortErr error
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := s.vals[order[a]], s.vals[order[b]]
		if table.IsNull(va) || table.IsNull(vb) {
			return !table.IsNull(va) && table.IsNull(vb)
		}
		cmp, ok := cellCompare(va, vb)
		if !ok && sortErr == nil {
			sortErr = fmt.Errorf("cannot order %s and %s", table.Repr(va), table.Repr(vb))
		}
		if ascending {
			return cmp < 0
		}
		return cmp > 0
	})
	return order, sortErr
}

func seriesSortValues(s *Series, c *call) (starlark.Value, error) {
	order, err := s.sortedOrder(c.bool(-1, true, "ascending"))
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	out := s.take(order)
	if out.labels == nil {
		out.labels = make([]any, len(order))
		for i, j := range order {
			out.labels[i] = int64(j)
		}
	}
	return out, nil
}

func extremesMethod(ascending bool) seriesFunc {
	return func(s *Series, c *call) (starlark.Value, error) {
		n, err := c.int(0, 5, "n")
		if err != nil {
			return nil, err
		}
		sorted, err := seriesSortValues(s, &call{name: c.name, kw: map[string]starlark.Value{"ascending": starlark.Bool(ascending)}})
		if err != nil {
			return nil, err
		}
		ss := sorted.(*Series)
		var idx []int
		for i := 0; i < len(ss.vals) && len(idx) < n; i++ {
			if !table.IsNull(ss.vals[i]) {
				idx = append(idx, i)
			}
		}
		return ss.take(idx), nil
	}
}
