package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.starlark.net/starlark"

	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

// DataFrame exposes a table to snippets under the name df. Item assignment
// swaps in a new table; the caller's table is never written.
type DataFrame struct {
	t *table.Table
}

var (
	_ starlark.HasAttrs  = (*DataFrame)(nil)
	_ starlark.Mapping   = (*DataFrame)(nil)
	_ starlark.HasSetKey = (*DataFrame)(nil)
	_ starlark.Sequence  = (*DataFrame)(nil)
)

// NewDataFrame wraps t for use as a snippet value.
func NewDataFrame(t *table.Table) *DataFrame { return &DataFrame{t: t} }

// Table returns the frame's current table.
func (d *DataFrame) Table() *table.Table { return d.t }

func (d *DataFrame) String() string {
	return fmt.Sprintf("DataFrame(%d rows x %d columns: %s)", d.t.Len(), d.t.Width(), strings.Join(d.t.Columns(), ", "))
}
func (d *DataFrame) Type() string          { return "DataFrame" }
func (d *DataFrame) Freeze()               {}
func (d *DataFrame) Truth() starlark.Bool  { return starlark.Bool(!d.t.Empty()) }
func (d *DataFrame) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: DataFrame") }
func (d *DataFrame) Len() int              { return d.t.Len() }

// Iterate yields column names, as iterating a pandas frame does.
func (d *DataFrame) Iterate() starlark.Iterator {
	names := d.t.Columns()
	vals := make([]any, len(names))
	for i, n := range names {
		vals[i] = n
	}
	return &cellIterator{vals: vals}
}

func (d *DataFrame) Get(k starlark.Value) (starlark.Value, bool, error) {
	switch key := k.(type) {
	case starlark.String:
		c, ok := d.t.Column(string(key))
		if !ok {
			return nil, false, nil
		}
		return seriesOf(c), true, nil
	case *Series:
		mask, err := key.mask()
		if err != nil {
			return nil, false, err
		}
		if len(mask) != d.t.Len() {
			return nil, false, fmt.Errorf("boolean mask has %d entries, frame has %d rows", len(mask), d.t.Len())
		}
		t, err := d.t.Filter(mask)
		if err != nil {
			return nil, false, err
		}
		return &DataFrame{t: t}, true, nil
	case *starlark.List, starlark.Tuple:
		names, ok := toLabels(key)
		if !ok {
			return nil, false, fmt.Errorf("column selection must be a list of names")
		}
		t, err := d.t.Select(names...)
		if err != nil {
			return nil, false, err
		}
		return &DataFrame{t: t}, true, nil
	}
	return nil, false, fmt.Errorf("unsupported DataFrame key of type %s", k.Type())
}

func (d *DataFrame) SetKey(k, v starlark.Value) error {
	name, ok := starlark.AsString(k)
	if !ok {
		return fmt.Errorf("column name must be a string, got %s", k.Type())
	}
	vals, err := operand(v, d.t.Len())
	if err != nil {
		return fmt.Errorf("assign column %q: %w", name, err)
	}
	col := table.NewColumn(name, append([]any(nil), vals...))
	cols := make([]*table.Column, 0, d.t.Width()+1)
	replaced := false
	for i := 0; i < d.t.Width(); i++ {
		c := d.t.ColumnAt(i)
		if c.Name == name {
			cols = append(cols, col)
			replaced = true
			continue
		}
		cols = append(cols, c)
	}
	if !replaced {
		cols = append(cols, col)
	}
	t, err := table.New(cols...)
	if err != nil {
		return err
	}
	d.t = t
	return nil
}

func (d *DataFrame) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		names := d.t.Columns()
		vals := make([]any, len(names))
		for i, n := range names {
			vals[i] = n
		}
		return cellList(vals), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(d.t.Len()), starlark.MakeInt(d.t.Width())}, nil
	case "empty":
		return starlark.Bool(d.t.Empty()), nil
	case "size":
		return starlark.MakeInt(d.t.Len() * d.t.Width()), nil
	case "index":
		return cellList(seriesIndex(d.t.Len())), nil
	}
	if b, ok := frameMethods[name]; ok {
		return b.BindReceiver(d), nil
	}
	if c, ok := d.t.Column(name); ok {
		return seriesOf(c), nil
	}
	return nil, nil
}

func (d *DataFrame) AttrNames() []string {
	names := []string{"columns", "empty", "index", "shape", "size"}
	for n := range frameMethods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func seriesIndex(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = int64(i)
	}
	return out
}

type frameFunc func(d *DataFrame, c *call) (starlark.Value, error)

var frameMethods = buildFrameMethods(map[string]frameFunc{
	"head":            frameHead,
	"tail":            frameTail,
	"copy":            func(d *DataFrame, _ *call) (starlark.Value, error) { return &DataFrame{t: d.t.Clone()}, nil },
	"reset_index":     func(d *DataFrame, _ *call) (starlark.Value, error) { return &DataFrame{t: d.t}, nil },
	"dropna":          frameDropna,
	"drop_duplicates": frameDropDuplicates,
	"sort_values":     frameSortValues,
	"nlargest":        frameExtremes(false),
	"nsmallest":       frameExtremes(true),
	"groupby":         frameGroupby,
	"iterrows":        frameIterrows,
	"to_dict":         frameToDict,
	"rename":          frameRename,
	"count":           frameReduce("count"),
	"mean":            frameReduce("mean"),
	"sum":             frameReduce("sum"),
	"nunique":         frameReduce("nunique"),
})

func buildFrameMethods(fns map[string]frameFunc) map[string]*starlark.Builtin {
	out := make(map[string]*starlark.Builtin, len(fns))
	for name, fn := range fns {
		fn := fn
		out[name] = starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return fn(b.Receiver().(*DataFrame), newCall(b, args, kwargs))
		})
	}
	return out
}

func frameHead(d *DataFrame, c *call) (starlark.Value, error) {
	n, err := c.int(0, 5, "n")
	if err != nil {
		return nil, err
	}
	return &DataFrame{t: d.t.Head(n)}, nil
}

func frameTail(d *DataFrame, c *call) (starlark.Value, error) {
	n, err := c.int(0, 5, "n")
	if err != nil {
		return nil, err
	}
	return &DataFrame{t: d.t.Tail(n)}, nil
}

// names reads a column name or list of names from an argument.
func (d *DataFrame) names(c *call, v starlark.Value) ([]string, error) {
	if v == nil || v == starlark.None {
		return d.t.Columns(), nil
	}
	if s, ok := starlark.AsString(v); ok {
		if !d.t.Has(s) {
			return nil, c.errorf("column %q not found", s)
		}
		return []string{s}, nil
	}
	names, ok := toLabels(v)
	if !ok {
		return nil, c.errorf("expected a column name or list of names")
	}
	for _, n := range names {
		if !d.t.Has(n) {
			return nil, c.errorf("column %q not found", n)
		}
	}
	return names, nil
}

func frameDropna(d *DataFrame, c *call) (starlark.Value, error) {
	subset, err := d.names(c, c.get(-1, "subset"))
	if err != nil {
		return nil, err
	}
	how, err := c.str(-1, "any", "how")
	if err != nil {
		return nil, err
	}
	keep := make([]bool, d.t.Len())
	for i := range keep {
		nulls := 0
		for _, n := range subset {
			col, _ := d.t.Column(n)
			if col.IsNull(i) {
				nulls++
			}
		}
		if how == "all" {
			keep[i] = nulls < len(subset)
		} else {
			keep[i] = nulls == 0
		}
	}
	t, err := d.t.Filter(keep)
	if err != nil {
		return nil, err
	}
	return &DataFrame{t: t}, nil
}

func frameDropDuplicates(d *DataFrame, c *call) (starlark.Value, error) {
	subset, err := d.names(c, c.get(0, "subset"))
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	keep := make([]bool, d.t.Len())
	for i := range keep {
		parts := make([]string, len(subset))
		for j, n := range subset {
			col, _ := d.t.Column(n)
			parts[j] = table.Repr(col.Values[i])
		}
		key := strings.Join(parts, "\x00")
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			keep[i] = true
		}
	}
	t, err := d.t.Filter(keep)
	if err != nil {
		return nil, err
	}
	return &DataFrame{t: t}, nil
}

func frameSortValues(d *DataFrame, c *call) (starlark.Value, error) {
	by, err := d.names(c, c.get(0, "by"))
	if err != nil {
		return nil, err
	}
	ascending := c.bool(-1, true, "ascending")
	order := allRows(d.t.Len())
	var sortErr error
	sort.SliceStable(order, func(a, b int) bool {
		for _, n := range by {
			col, _ := d.t.Column(n)
			va, vb := col.Values[order[a]], col.Values[order[b]]
			na, nb := table.IsNull(va), table.IsNull(vb)
			if na || nb {
				if na == nb {
					continue
				}
				return nb
			}
			cmp, ok := cellCompare(va, vb)
			if !ok && sortErr == nil {
				sortErr = fmt.Errorf("cannot order %s and %s", table.Repr(va), table.Repr(vb))
			}
			if cmp == 0 {
				continue
			}
			if ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	if sortErr != nil {
		return nil, c.errorf("%v", sortErr)
	}
	return &DataFrame{t: d.t.Take(order)}, nil
}

func frameExtremes(ascending bool) frameFunc {
	return func(d *DataFrame, c *call) (starlark.Value, error) {
		n, err := c.int(0, 5, "n")
		if err != nil {
			return nil, err
		}
		by := c.get(1, "columns")
		sorted, err := frameSortValues(d, &call{name: c.name, pos: starlark.Tuple{by}, kw: map[string]starlark.Value{"ascending": starlark.Bool(ascending)}})
		if err != nil {
			return nil, err
		}
		return &DataFrame{t: sorted.(*DataFrame).t.Head(n)}, nil
	}
}

func frameIterrows(d *DataFrame, _ *call) (starlark.Value, error) {
	recs := d.t.Records()
	out := make([]starlark.Value, len(recs))
	for i, rec := range recs {
		out[i] = starlark.Tuple{starlark.MakeInt(i), recordDict(rec)}
	}
	return starlark.NewList(out), nil
}

func recordDict(rec table.Record) *starlark.Dict {
	row := starlark.NewDict(len(rec))
	for _, f := range rec {
		_ = row.SetKey(starlark.String(f.Name), toValue(f.Value))
	}
	return row
}

func frameToDict(d *DataFrame, c *call) (starlark.Value, error) {
	orient, err := c.str(0, "dict", "orient")
	if err != nil {
		return nil, err
	}
	if orient != "records" && orient != "list" {
		return nil, c.errorf("orient %q is not supported (use 'records' or 'list')", orient)
	}
	if orient == "records" {
		recs := d.t.Records()
		out := make([]starlark.Value, len(recs))
		for i, rec := range recs {
			out[i] = recordDict(rec)
		}
		return starlark.NewList(out), nil
	}
	out := starlark.NewDict(d.t.Width())
	for i := 0; i < d.t.Width(); i++ {
		col := d.t.ColumnAt(i)
		_ = out.SetKey(starlark.String(col.Name), cellList(col.Values))
	}
	return out, nil
}

func frameRename(d *DataFrame, c *call) (starlark.Value, error) {
	mapping, ok := c.get(-1, "columns").(*starlark.Dict)
	if !ok {
		return nil, c.errorf("columns must be a dict")
	}
	cols := make([]*table.Column, d.t.Width())
	for i := range cols {
		col := d.t.ColumnAt(i).Clone()
		if v, found, _ := mapping.Get(starlark.String(col.Name)); found {
			if s, ok := starlark.AsString(v); ok {
				col.Name = s
			}
		}
		cols[i] = col
	}
	t, err := table.New(cols...)
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	return &DataFrame{t: t}, nil
}

// frameReduce applies a per-column reduction and returns a series indexed
// by column name. mean and sum skip non-numeric columns.
func frameReduce(op string) frameFunc {
	return func(d *DataFrame, c *call) (starlark.Value, error) {
		var labels, vals []any
		for i := 0; i < d.t.Width(); i++ {
			s := seriesOf(d.t.ColumnAt(i))
			switch op {
			case "count":
				vals = append(vals, int64(s.count()))
			case "nunique":
				vals = append(vals, int64(len(uniqueCells(s.vals))))
			default:
				nums, allInt, err := s.finiteValues()
				if err != nil {
					continue
				}
				if op == "sum" {
					total := reduceSum(nums)
					if allInt {
						vals = append(vals, int64(total))
					} else {
						vals = append(vals, total)
					}
				} else {
					vals = append(vals, reduceMean(nums))
				}
			}
			labels = append(labels, s.name)
		}
		return &Series{vals: vals, labels: labels}, nil
	}
}

// GroupBy is the result of df.groupby(col). Groups are ordered by key and
// rows with a null key are dropped.
type GroupBy struct {
	df   *DataFrame
	by   string
	keys []any
	rows [][]int
}

var (
	_ starlark.HasAttrs = (*GroupBy)(nil)
	_ starlark.Mapping  = (*GroupBy)(nil)
	_ starlark.Iterable = (*GroupBy)(nil)
)

func frameGroupby(d *DataFrame, c *call) (starlark.Value, error) {
	by, err := d.names(c, c.get(0, "by"))
	if err != nil {
		return nil, err
	}
	if len(by) != 1 {
		return nil, c.errorf("grouping by %d columns is not supported; group by a single column", len(by))
	}
	col, _ := d.t.Column(by[0])
	g := &GroupBy{df: d, by: by[0]}
	for i, v := range col.Values {
		if table.IsNull(v) {
			continue
		}
		found := false
		for j, k := range g.keys {
			if cellEqual(k, v) {
				g.rows[j] = append(g.rows[j], i)
				found = true
				break
			}
		}
		if !found {
			g.keys = append(g.keys, v)
			g.rows = append(g.rows, []int{i})
		}
	}
	order := allRows(len(g.keys))
	sort.SliceStable(order, func(a, b int) bool {
		cmp, ok := cellCompare(g.keys[order[a]], g.keys[order[b]])
		if !ok {
			return table.Repr(g.keys[order[a]]) < table.Repr(g.keys[order[b]])
		}
		return cmp < 0
	})
	keys := make([]any, len(order))
	rows := make([][]int, len(order))
	for i, j := range order {
		keys[i], rows[i] = g.keys[j], g.rows[j]
	}
	g.keys, g.rows = keys, rows
	return g, nil
}

func (g *GroupBy) String() string        { return fmt.Sprintf("<DataFrameGroupBy by %q>", g.by) }
func (g *GroupBy) Type() string          { return "DataFrameGroupBy" }
func (g *GroupBy) Freeze()               {}
func (g *GroupBy) Truth() starlark.Bool  { return true }
func (g *GroupBy) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: DataFrameGroupBy") }

// Iterate yields (key, frame) pairs.
func (g *GroupBy) Iterate() starlark.Iterator {
	items := make([]starlark.Value, len(g.keys))
	for i, k := range g.keys {
		items[i] = starlark.Tuple{toValue(k), &DataFrame{t: g.df.t.Take(g.rows[i])}}
	}
	return starlark.NewList(items).Iterate()
}

func (g *GroupBy) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("group column must be a string")
	}
	c, found := g.df.t.Column(name)
	if !found {
		return nil, false, nil
	}
	return &SeriesGroupBy{g: g, col: c}, true, nil
}

func (g *GroupBy) Attr(name string) (starlark.Value, error) {
	switch name {
	case "size":
		return starlark.NewBuiltin("size", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			vals := make([]any, len(g.keys))
			for i, r := range g.rows {
				vals[i] = int64(len(r))
			}
			return &Series{name: "size", vals: vals, labels: g.keys}, nil
		}), nil
	case "mean", "sum", "count", "max", "min", "median", "nunique":
		return starlark.NewBuiltin(name, func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			return g.aggregate(name)
		}), nil
	}
	if c, ok := g.df.t.Column(name); ok {
		return &SeriesGroupBy{g: g, col: c}, nil
	}
	return nil, nil
}

func (g *GroupBy) AttrNames() []string {
	return []string{"count", "max", "mean", "median", "min", "nunique", "size", "sum"}
}

// aggregate reduces every other column per group into a frame led by the
// key column. Columns the reduction cannot handle are left out.
func (g *GroupBy) aggregate(op string) (starlark.Value, error) {
	keyCol := table.NewColumn(g.by, append([]any(nil), g.keys...))
	cols := []*table.Column{keyCol}
	for i := 0; i < g.df.t.Width(); i++ {
		col := g.df.t.ColumnAt(i)
		if col.Name == g.by {
			continue
		}
		s, err := (&SeriesGroupBy{g: g, col: col}).reduce(op)
		if err != nil {
			continue
		}
		cols = append(cols, table.NewColumn(col.Name, s.vals))
	}
	t, err := table.New(cols...)
	if err != nil {
		return nil, err
	}
	return &DataFrame{t: t}, nil
}

// SeriesGroupBy is df.groupby(key)[col].
type SeriesGroupBy struct {
	g   *GroupBy
	col *table.Column
}

func (s *SeriesGroupBy) String() string {
	return fmt.Sprintf("<SeriesGroupBy %q by %q>", s.col.Name, s.g.by)
}
func (s *SeriesGroupBy) Type() string          { return "SeriesGroupBy" }
func (s *SeriesGroupBy) Freeze()               {}
func (s *SeriesGroupBy) Truth() starlark.Bool  { return true }
func (s *SeriesGroupBy) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: SeriesGroupBy") }
func (s *SeriesGroupBy) AttrNames() []string {
	return []string{"count", "first", "last", "max", "mean", "median", "min", "nunique", "size", "std", "sum"}
}

func (s *SeriesGroupBy) Attr(name string) (starlark.Value, error) {
	for _, n := range s.AttrNames() {
		if n == name {
			return starlark.NewBuiltin(name, func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
				out, err := s.reduce(name)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				return out, nil
			}), nil
		}
	}
	return nil, nil
}

func (s *SeriesGroupBy) reduce(op string) (*Series, error) {
	vals := make([]any, len(s.g.keys))
	for i, rows := range s.g.rows {
		part := make([]any, len(rows))
		for j, r := range rows {
			part[j] = s.col.Values[r]
		}
		ps := newSeries(s.col.Name, part)
		switch op {
		case "size":
			vals[i] = int64(len(rows))
		case "count":
			vals[i] = int64(ps.count())
		case "nunique":
			vals[i] = int64(len(uniqueCells(part)))
		case "first", "last":
			vals[i] = nil
			for j := range part {
				k := j
				if op == "last" {
					k = len(part) - 1 - j
				}
				if !table.IsNull(part[k]) {
					vals[i] = part[k]
					break
				}
			}
		case "min", "max":
			dir := -1
			if op == "max" {
				dir = 1
			}
			idx, err := ps.extremeIndex(dir)
			if err != nil {
				return nil, err
			}
			if idx < 0 {
				vals[i] = math.NaN()
			} else {
				vals[i] = part[idx]
			}
		default:
			nums, allInt, err := ps.finiteValues()
			if err != nil {
				return nil, err
			}
			switch op {
			case "sum":
				if allInt {
					vals[i] = int64(reduceSum(nums))
				} else {
					vals[i] = reduceSum(nums)
				}
			case "mean":
				vals[i] = reduceMean(nums)
			case "median":
				vals[i] = reduceMedian(nums)
			case "std":
				vals[i] = reduceStd(nums)
			default:
				return nil, fmt.Errorf("unsupported aggregation %q", op)
			}
		}
	}
	return &Series{name: s.col.Name, vals: vals, labels: s.g.keys}, nil
}
