package sandbox

import (
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"
	"go.starlark.net/starlark"

	"github.com/KaramelBytes/scoutdeck-cli/internal/canvas"
)

// call gives lenient access to builtin arguments. Plotting code passes many
// cosmetic keywords (zorder, linewidths, ...) that are accepted and ignored.
type call struct {
	name string
	pos  starlark.Tuple
	kw   map[string]starlark.Value
}

func newCall(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) *call {
	c := &call{name: b.Name(), pos: args, kw: make(map[string]starlark.Value, len(kwargs))}
	for _, kv := range kwargs {
		c.kw[string(kv[0].(starlark.String))] = kv[1]
	}
	return c
}

// get returns the positional argument i (when i >= 0) or the first present
// keyword among names. nil means absent.
func (c *call) get(i int, names ...string) starlark.Value {
	if i >= 0 && i < len(c.pos) {
		return c.pos[i]
	}
	for _, n := range names {
		if v, ok := c.kw[n]; ok {
			return v
		}
	}
	return nil
}

func (c *call) has(i int, names ...string) bool {
	v := c.get(i, names...)
	return v != nil && v != starlark.None
}

func (c *call) errorf(format string, args ...any) error {
	return fmt.Errorf("%s: %s", c.name, fmt.Sprintf(format, args...))
}

func (c *call) float(i int, def float64, names ...string) (float64, error) {
	v := c.get(i, names...)
	if v == nil || v == starlark.None {
		return def, nil
	}
	f, ok := scalar(v)
	if !ok {
		return 0, c.errorf("%s must be a number, got %s", argName(i, names), v.Type())
	}
	return f, nil
}

func (c *call) int(i int, def int, names ...string) (int, error) {
	f, err := c.float(i, float64(def), names...)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func (c *call) str(i int, def string, names ...string) (string, error) {
	v := c.get(i, names...)
	if v == nil || v == starlark.None {
		return def, nil
	}
	s, ok := starlark.AsString(v)
	if !ok {
		return "", c.errorf("%s must be a string, got %s", argName(i, names), v.Type())
	}
	return s, nil
}

func (c *call) bool(i int, def bool, names ...string) bool {
	v := c.get(i, names...)
	if v == nil || v == starlark.None {
		return def
	}
	return bool(v.Truth())
}

func (c *call) floats(i int, names ...string) ([]float64, error) {
	v := c.get(i, names...)
	if v == nil {
		return nil, c.errorf("missing argument %s", argName(i, names))
	}
	out, err := toFloats(v)
	if err != nil {
		return nil, c.errorf("%s: %v", argName(i, names), err)
	}
	return out, nil
}

func (c *call) color(i int, def drawing.Color, names ...string) (drawing.Color, error) {
	v := c.get(i, names...)
	if v == nil || v == starlark.None {
		return def, nil
	}
	col, err := toColor(v)
	if err != nil {
		return drawing.Color{}, c.errorf("%v", err)
	}
	return col, nil
}

func (c *call) optColor(names ...string) (*drawing.Color, error) {
	if !c.has(-1, names...) {
		return nil, nil
	}
	v := c.get(-1, names...)
	if s, ok := starlark.AsString(v); ok && (s == "none" || s == "None") {
		return nil, nil
	}
	col, err := toColor(v)
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	return &col, nil
}

// pair reads a 2-sequence such as figsize=(10, 7) or bins=(6, 4).
func (c *call) pair(i int, names ...string) (float64, float64, bool, error) {
	v := c.get(i, names...)
	if v == nil || v == starlark.None {
		return 0, 0, false, nil
	}
	if f, ok := scalar(v); ok {
		return f, f, true, nil
	}
	vals, err := toFloats(v)
	if err != nil || len(vals) != 2 {
		return 0, 0, false, c.errorf("%s must be a pair of numbers", argName(i, names))
	}
	return vals[0], vals[1], true, nil
}

func argName(i int, names []string) string {
	if len(names) > 0 {
		return names[0]
	}
	return fmt.Sprintf("argument %d", i+1)
}

// scalar converts a number-like value to float64.
func scalar(v starlark.Value) (float64, bool) {
	switch x := v.(type) {
	case starlark.Int:
		f, _ := starlark.AsFloat(x)
		return f, true
	case starlark.Float:
		return float64(x), true
	case starlark.Bool:
		if x {
			return 1, true
		}
		return 0, true
	case starlark.NoneType:
		return math.NaN(), true
	}
	return 0, false
}

// toFloats flattens a series, list, tuple or scalar into float64s.
func toFloats(v starlark.Value) ([]float64, error) {
	switch x := v.(type) {
	case *Series:
		return x.floats()
	case starlark.Indexable:
		out := make([]float64, x.Len())
		for i := range out {
			f, ok := scalar(x.Index(i))
			if !ok {
				return nil, fmt.Errorf("element %d is %s, not a number", i, x.Index(i).Type())
			}
			out[i] = f
		}
		return out, nil
	}
	if f, ok := scalar(v); ok {
		return []float64{f}, nil
	}
	return nil, fmt.Errorf("expected numbers, got %s", v.Type())
}

// toLabels reads a sequence as display labels.
func toLabels(v starlark.Value) ([]string, bool) {
	var items []starlark.Value
	switch x := v.(type) {
	case *Series:
		for _, c := range x.vals {
			items = append(items, toValue(c))
		}
	case starlark.Indexable:
		for i := 0; i < x.Len(); i++ {
			items = append(items, x.Index(i))
		}
	default:
		return nil, false
	}
	out := make([]string, len(items))
	for i, it := range items {
		if s, ok := starlark.AsString(it); ok {
			out[i] = s
		} else {
			out[i] = it.String()
		}
	}
	return out, true
}

// isTextual reports whether a sequence holds strings (categorical axis).
func isTextual(v starlark.Value) bool {
	switch x := v.(type) {
	case *Series:
		for _, c := range x.vals {
			if _, ok := c.(string); ok {
				return true
			}
		}
	case starlark.Indexable:
		for i := 0; i < x.Len(); i++ {
			if _, ok := x.Index(i).(starlark.String); ok {
				return true
			}
		}
	}
	return false
}

func toColor(v starlark.Value) (drawing.Color, error) {
	if s, ok := starlark.AsString(v); ok {
		return canvas.ParseColor(s)
	}
	vals, err := toFloats(v)
	if err != nil || (len(vals) != 3 && len(vals) != 4) {
		return drawing.Color{}, fmt.Errorf("invalid color %s", v.String())
	}
	ch := func(f float64) uint8 { return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255)) }
	c := drawing.Color{R: ch(vals[0]), G: ch(vals[1]), B: ch(vals[2]), A: 255}
	if len(vals) == 4 {
		c.A = ch(vals[3])
	}
	return c, nil
}

func floatList(vals []float64) *starlark.List {
	items := make([]starlark.Value, len(vals))
	for i, v := range vals {
		items[i] = starlark.Float(v)
	}
	return starlark.NewList(items)
}
