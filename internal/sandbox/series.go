package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

// Series is a one-dimensional labelled vector, the value df['col'] yields.
// Cells use the table cell types. labels is nil for a positional index.
type Series struct {
	name   string
	vals   []any
	labels []any
}

var (
	_ starlark.HasAttrs  = (*Series)(nil)
	_ starlark.Mapping   = (*Series)(nil)
	_ starlark.Sequence  = (*Series)(nil)
	_ starlark.HasBinary = (*Series)(nil)
	_ starlark.HasUnary  = (*Series)(nil)
)

func newSeries(name string, vals []any) *Series { return &Series{name: name, vals: vals} }

func seriesOf(c *table.Column) *Series {
	vals := make([]any, len(c.Values))
	copy(vals, c.Values)
	return newSeries(c.Name, vals)
}

func floatSeries(name string, vals []float64) *Series {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return newSeries(name, out)
}

func (s *Series) String() string {
	var b strings.Builder
	n := len(s.vals)
	show := n
	if show > 10 {
		show = 10
	}
	for i := 0; i < show; i++ {
		fmt.Fprintf(&b, "%s    %s\n", table.Repr(s.label(i)), table.Repr(s.vals[i]))
	}
	if show < n {
		fmt.Fprintf(&b, "... (%d more)\n", n-show)
	}
	fmt.Fprintf(&b, "Name: %s, Length: %d", s.name, n)
	return b.String()
}

func (s *Series) Type() string          { return "Series" }
func (s *Series) Freeze()               {}
func (s *Series) Truth() starlark.Bool  { return len(s.vals) > 0 }
func (s *Series) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Series") }
func (s *Series) Len() int              { return len(s.vals) }

func (s *Series) label(i int) any {
	if s.labels != nil {
		return s.labels[i]
	}
	return int64(i)
}

func (s *Series) Iterate() starlark.Iterator { return &cellIterator{vals: s.vals} }

type cellIterator struct {
	vals []any
	i    int
}

func (it *cellIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.vals) {
		return false
	}
	*p = toValue(it.vals[it.i])
	it.i++
	return true
}

func (it *cellIterator) Done() {}

// Get looks a key up by label; positional series also accept negative ints.
func (s *Series) Get(k starlark.Value) (starlark.Value, bool, error) {
	key, err := fromValue(k)
	if err != nil {
		return nil, false, err
	}
	if s.labels == nil {
		i, ok := key.(int64)
		if !ok {
			return nil, false, nil
		}
		if i < 0 {
			i += int64(len(s.vals))
		}
		if i < 0 || i >= int64(len(s.vals)) {
			return nil, false, fmt.Errorf("index %d out of range for Series of length %d", i, len(s.vals))
		}
		return toValue(s.vals[i]), true, nil
	}
	for i, l := range s.labels {
		if cellEqual(l, key) {
			return toValue(s.vals[i]), true, nil
		}
	}
	return nil, false, nil
}

func (s *Series) Attr(name string) (starlark.Value, error) {
	switch name {
	case "values":
		return cellList(s.vals), nil
	case "index":
		if s.labels == nil {
			idx := make([]any, len(s.vals))
			for i := range idx {
				idx[i] = int64(i)
			}
			return cellList(idx), nil
		}
		return cellList(s.labels), nil
	case "name":
		if s.name == "" {
			return starlark.None, nil
		}
		return starlark.String(s.name), nil
	case "size":
		return starlark.MakeInt(len(s.vals)), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(len(s.vals))}, nil
	case "empty":
		return starlark.Bool(len(s.vals) == 0), nil
	case "dtype":
		return starlark.String(string(table.InferDType(s.vals))), nil
	case "str":
		return &strAccessor{s: s}, nil
	}
	if b, ok := seriesMethods[name]; ok {
		return b.BindReceiver(s), nil
	}
	return nil, nil
}

func (s *Series) AttrNames() []string {
	names := []string{"dtype", "empty", "index", "name", "shape", "size", "str", "values"}
	for n := range seriesMethods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// floats returns the numeric view of the series; nulls become NaN.
func (s *Series) floats() ([]float64, error) {
	out := make([]float64, len(s.vals))
	for i, v := range s.vals {
		if table.IsNull(v) {
			out[i] = math.NaN()
			continue
		}
		f, ok := table.ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("Series %q holds non-numeric value %s", s.name, table.Repr(v))
		}
		out[i] = f
	}
	return out, nil
}

// mask interprets the series as a boolean row selector.
func (s *Series) mask() ([]bool, error) {
	out := make([]bool, len(s.vals))
	for i, v := range s.vals {
		b, ok := v.(bool)
		if !ok && !table.IsNull(v) {
			return nil, fmt.Errorf("boolean mask expected, Series %q holds %s", s.name, table.Repr(v))
		}
		out[i] = b
	}
	return out, nil
}

func (s *Series) derive(vals []any) *Series {
	return &Series{name: s.name, vals: vals, labels: s.labels}
}

func (s *Series) take(idx []int) *Series {
	vals := make([]any, len(idx))
	var labels []any
	if s.labels != nil {
		labels = make([]any, len(idx))
	}
	for j, i := range idx {
		vals[j] = s.vals[i]
		if labels != nil {
			labels[j] = s.labels[i]
		}
	}
	if labels == nil && len(idx) != len(s.vals) {
		labels = make([]any, len(idx))
		for j, i := range idx {
			labels[j] = int64(i)
		}
	}
	return &Series{name: s.name, vals: vals, labels: labels}
}

func (s *Series) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	other, err := operand(y, len(s.vals))
	if err != nil {
		if _, isSeries := y.(*Series); isSeries {
			return nil, err
		}
		return nil, nil
	}
	out := make([]any, len(s.vals))
	for i, v := range s.vals {
		a, b := v, other[i]
		if side == starlark.Right {
			a, b = b, a
		}
		r, err := applyOp(op, a, b)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return s.derive(out), nil
}

func (s *Series) Unary(op syntax.Token) (starlark.Value, error) {
	out := make([]any, len(s.vals))
	for i, v := range s.vals {
		switch op {
		case syntax.TILDE:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("~ needs a boolean Series")
			}
			out[i] = !b
		case syntax.MINUS:
			f, ok := table.ToFloat(v)
			if !ok {
				out[i] = math.NaN()
				continue
			}
			if n, isInt := v.(int64); isInt {
				out[i] = -n
			} else {
				out[i] = -f
			}
		case syntax.PLUS:
			out[i] = v
		default:
			return nil, nil
		}
	}
	return s.derive(out), nil
}

// operand broadcasts a scalar or aligns another series or list of length n.
func operand(y starlark.Value, n int) ([]any, error) {
	switch x := y.(type) {
	case *Series:
		if len(x.vals) != n {
			return nil, fmt.Errorf("length mismatch: %d vs %d", len(x.vals), n)
		}
		return x.vals, nil
	case *starlark.List, starlark.Tuple:
		seq := x.(starlark.Indexable)
		if seq.Len() != n {
			return nil, fmt.Errorf("length mismatch: %d vs %d", seq.Len(), n)
		}
		out := make([]any, n)
		for i := range out {
			v, err := fromValue(seq.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	v, err := fromValue(y)
	if err != nil {
		return nil, err
	}
	out := make([]any, n)
	for i := range out {
		out[i] = v
	}
	return out, nil
}

func applyOp(op syntax.Token, a, b any) (any, error) {
	switch op {
	case syntax.AMP, syntax.PIPE:
		x, _ := a.(bool)
		y, _ := b.(bool)
		if op == syntax.AMP {
			return x && y, nil
		}
		return x || y, nil
	}
	if sa, ok := a.(string); ok && op == syntax.PLUS {
		if sb, ok := b.(string); ok {
			return sa + sb, nil
		}
	}
	x, okx := table.ToFloat(a)
	y, oky := table.ToFloat(b)
	if !okx || !oky {
		if table.IsNull(a) || table.IsNull(b) {
			return math.NaN(), nil
		}
		return nil, fmt.Errorf("unsupported operand values %s %s %s", table.Repr(a), op, table.Repr(b))
	}
	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	bothInt := aInt && bInt
	switch op {
	case syntax.PLUS:
		if bothInt {
			return ia + ib, nil
		}
		return x + y, nil
	case syntax.MINUS:
		if bothInt {
			return ia - ib, nil
		}
		return x - y, nil
	case syntax.STAR:
		if bothInt {
			return ia * ib, nil
		}
		return x * y, nil
	case syntax.SLASH:
		if y == 0 {
			return math.NaN(), nil
		}
		return x / y, nil
	case syntax.SLASHSLASH:
		if y == 0 {
			return math.NaN(), nil
		}
		return math.Floor(x / y), nil
	case syntax.PERCENT:
		if y == 0 {
			return math.NaN(), nil
		}
		return x - y*math.Floor(x/y), nil
	}
	return nil, fmt.Errorf("unsupported operator %s for Series", op)
}

// cellEqual compares cells the way pandas == does; nulls never match.
func cellEqual(a, b any) bool {
	if table.IsNull(a) || table.IsNull(b) {
		return false
	}
	if x, ok := table.ToFloat(a); ok {
		if _, isBool := a.(bool); !isBool {
			if y, ok := table.ToFloat(b); ok {
				if _, isBool := b.(bool); !isBool {
					return x == y
				}
			}
		}
	}
	return a == b
}

// cellCompare orders two non-null cells; ok is false for incomparable kinds.
func cellCompare(a, b any) (int, bool) {
	if x, ok := table.ToFloat(a); ok {
		if y, ok := table.ToFloat(b); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func toValue(v any) starlark.Value {
	switch x := v.(type) {
	case nil:
		return starlark.None
	case int64:
		return starlark.MakeInt64(x)
	case int:
		return starlark.MakeInt(x)
	case float64:
		return starlark.Float(x)
	case bool:
		return starlark.Bool(x)
	case string:
		return starlark.String(x)
	}
	return starlark.String(fmt.Sprint(v))
}

func fromValue(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i, nil
		}
		f, _ := starlark.AsFloat(x)
		return f, nil
	case starlark.Float:
		return float64(x), nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.String:
		return string(x), nil
	}
	return nil, fmt.Errorf("unsupported value of type %s", v.Type())
}

func cellList(vals []any) *starlark.List {
	items := make([]starlark.Value, len(vals))
	for i, v := range vals {
		items[i] = toValue(v)
	}
	return starlark.NewList(items)
}

// strAccessor backs series.str.<method>.
type strAccessor struct{ s *Series }

func (a *strAccessor) String() string        { return "<StringMethods>" }
func (a *strAccessor) Type() string          { return "StringMethods" }
func (a *strAccessor) Freeze()               {}
func (a *strAccessor) Truth() starlark.Bool  { return true }
func (a *strAccessor) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: StringMethods") }
func (a *strAccessor) AttrNames() []string {
	return []string{"contains", "endswith", "lower", "startswith", "strip", "upper"}
}

func (a *strAccessor) Attr(name string) (starlark.Value, error) {
	var fn func(s, arg string) any
	switch name {
	case "lower":
		fn = func(s, _ string) any { return strings.ToLower(s) }
	case "upper":
		fn = func(s, _ string) any { return strings.ToUpper(s) }
	case "strip":
		fn = func(s, _ string) any { return strings.TrimSpace(s) }
	case "contains":
		fn = func(s, arg string) any { return strings.Contains(s, arg) }
	case "startswith":
		fn = func(s, arg string) any { return strings.HasPrefix(s, arg) }
	case "endswith":
		fn = func(s, arg string) any { return strings.HasSuffix(s, arg) }
	default:
		return nil, nil
	}
	return starlark.NewBuiltin("str."+name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		c := newCall(b, args, kwargs)
		arg, err := c.str(0, "", "pat", "prefix", "suffix")
		if err != nil {
			return nil, err
		}
		caseSensitive := c.bool(-1, true, "case")
		out := make([]any, len(a.s.vals))
		for i, v := range a.s.vals {
			str, ok := v.(string)
			if !ok {
				if _, isPredicate := fn("", "").(bool); isPredicate {
					out[i] = false
				}
				continue
			}
			if !caseSensitive {
				str, arg = strings.ToLower(str), strings.ToLower(arg)
			}
			out[i] = fn(str, arg)
		}
		return a.s.derive(out), nil
	}), nil
}
