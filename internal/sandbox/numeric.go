package sandbox

import (
	"math"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

type builtinFunc func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

func callFunc(fn func(c *call) (starlark.Value, error)) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return fn(newCall(b, args, kwargs))
	}
}

func module(name string, fns map[string]func(c *call) (starlark.Value, error), consts starlark.StringDict) *starlarkstruct.Module {
	members := make(starlark.StringDict, len(fns)+len(consts))
	for n, fn := range fns {
		members[n] = starlark.NewBuiltin(n, callFunc(fn))
	}
	for n, v := range consts {
		members[n] = v
	}
	return &starlarkstruct.Module{Name: name, Members: members}
}

// numpyModule is the np subset: vector constructors, reductions and
// element-wise maths over sequences and series.
func numpyModule() *starlarkstruct.Module {
	return module("np", map[string]func(c *call) (starlark.Value, error){
		"array":    npArray,
		"asarray":  npArray,
		"zeros":    npFilled(0),
		"ones":     npFilled(1),
		"linspace": npLinspace,
		"arange":   npArange,
		"mean":     npReduce(reduceMean),
		"nanmean":  npReduce(reduceMean),
		"sum":      npReduce(reduceSum),
		"nansum":   npReduce(reduceSum),
		"median":   npReduce(reduceMedian),
		"std":      npReduce(populationStd),
		"min":      npReduce(minOf),
		"max":      npReduce(maxOf),
		"percentile": func(c *call) (starlark.Value, error) {
			vals, err := c.floats(0, "a")
			if err != nil {
				return nil, err
			}
			q, err := c.float(1, 50, "q")
			if err != nil {
				return nil, err
			}
			return starlark.Float(quantile(finiteOnly(vals), q/100)), nil
		},
		"sqrt":  npMap(math.Sqrt),
		"abs":   npMap(math.Abs),
		"log":   npMap(math.Log),
		"exp":   npMap(math.Exp),
		"round": npRound,
		"isnan": npMap(func(v float64) float64 {
			if math.IsNaN(v) {
				return 1
			}
			return 0
		}),
		"hypot": func(c *call) (starlark.Value, error) {
			xs, err := c.floats(0, "x1")
			if err != nil {
				return nil, err
			}
			ys, err := c.floats(1, "x2")
			if err != nil {
				return nil, err
			}
			if len(xs) != len(ys) {
				return nil, c.errorf("operands have lengths %d and %d", len(xs), len(ys))
			}
			out := make([]float64, len(xs))
			for i := range xs {
				out[i] = math.Hypot(xs[i], ys[i])
			}
			return vectorOrScalar(c.get(0), out), nil
		},
	}, starlark.StringDict{
		"pi":  starlark.Float(math.Pi),
		"e":   starlark.Float(math.E),
		"nan": starlark.Float(math.NaN()),
		"inf": starlark.Float(math.Inf(1)),
	})
}

func npArray(c *call) (starlark.Value, error) {
	v := c.get(0, "object")
	if v == nil {
		return nil, c.errorf("missing argument object")
	}
	vals, err := operand(v, lenOf(v))
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	return newSeries("", append([]any(nil), vals...)), nil
}

func lenOf(v starlark.Value) int {
	if s, ok := v.(starlark.Sequence); ok {
		return s.Len()
	}
	return 1
}

func npFilled(fill float64) func(c *call) (starlark.Value, error) {
	return func(c *call) (starlark.Value, error) {
		n, err := c.int(0, 0, "shape")
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, c.errorf("negative dimensions are not allowed")
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = fill
		}
		return floatSeries("", out), nil
	}
}

func npLinspace(c *call) (starlark.Value, error) {
	start, err := c.float(0, 0, "start")
	if err != nil {
		return nil, err
	}
	stop, err := c.float(1, 1, "stop")
	if err != nil {
		return nil, err
	}
	n, err := c.int(2, 50, "num")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, c.errorf("number of samples, %d, must be non-negative", n)
	}
	out := make([]float64, n)
	for i := range out {
		if n == 1 {
			out[i] = start
			break
		}
		out[i] = start + (stop-start)*float64(i)/float64(n-1)
	}
	return floatSeries("", out), nil
}

func npArange(c *call) (starlark.Value, error) {
	start, err := c.float(0, 0, "start")
	if err != nil {
		return nil, err
	}
	stop, err := c.float(1, math.NaN(), "stop")
	if err != nil {
		return nil, err
	}
	if math.IsNaN(stop) {
		start, stop = 0, start
	}
	step, err := c.float(2, 1, "step")
	if err != nil {
		return nil, err
	}
	if step == 0 {
		return nil, c.errorf("step must not be zero")
	}
	n := int(math.Ceil((stop - start) / step))
	if n < 0 {
		n = 0
	}
	if n > 1_000_000 {
		return nil, c.errorf("range of %d elements is too large", n)
	}
	allInt := start == math.Trunc(start) && step == math.Trunc(step)
	out := make([]any, n)
	for i := range out {
		v := start + float64(i)*step
		if allInt {
			out[i] = int64(v)
		} else {
			out[i] = v
		}
	}
	return newSeries("", out), nil
}

func finiteOnly(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func npReduce(fn func([]float64) float64) func(c *call) (starlark.Value, error) {
	return func(c *call) (starlark.Value, error) {
		vals, err := c.floats(0, "a")
		if err != nil {
			return nil, err
		}
		return starlark.Float(fn(finiteOnly(vals))), nil
	}
}

// populationStd matches numpy's default ddof=0.
func populationStd(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	m := reduceMean(vals)
	ss := 0.0
	for _, v := range vals {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(vals)))
}

func minOf(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Min(m, v)
	}
	return m
}

func maxOf(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Max(m, v)
	}
	return m
}

// vectorOrScalar returns a scalar when the input was a scalar.
func vectorOrScalar(in starlark.Value, out []float64) starlark.Value {
	if _, ok := scalar(in); ok && len(out) == 1 {
		return starlark.Float(out[0])
	}
	name := ""
	if s, ok := in.(*Series); ok {
		name = s.name
	}
	return floatSeries(name, out)
}

func npMap(fn func(float64) float64) func(c *call) (starlark.Value, error) {
	return func(c *call) (starlark.Value, error) {
		vals, err := c.floats(0, "x")
		if err != nil {
			return nil, err
		}
		for i := range vals {
			vals[i] = fn(vals[i])
		}
		return vectorOrScalar(c.get(0), vals), nil
	}
}

func npRound(c *call) (starlark.Value, error) {
	digits, err := c.int(1, 0, "decimals")
	if err != nil {
		return nil, err
	}
	f := math.Pow(10, float64(digits))
	return npMap(func(v float64) float64 { return math.Round(v*f) / f })(c)
}

// pandasModule is the pd subset: coercion, null tests and Series construction.
func pandasModule() *starlarkstruct.Module {
	return module("pd", map[string]func(c *call) (starlark.Value, error){
		"to_numeric": pdToNumeric,
		"isna":       pdNullTest(true),
		"isnull":     pdNullTest(true),
		"notna":      pdNullTest(false),
		"notnull":    pdNullTest(false),
		"Series": func(c *call) (starlark.Value, error) {
			name, err := c.str(-1, "", "name")
			if err != nil {
				return nil, err
			}
			data := c.get(0, "data")
			if data == nil {
				return newSeries(name, nil), nil
			}
			vals, err := operand(data, lenOf(data))
			if err != nil {
				return nil, c.errorf("%v", err)
			}
			return newSeries(name, append([]any(nil), vals...)), nil
		},
	}, starlark.StringDict{"NA": starlark.None, "NaT": starlark.None})
}

// pdToNumeric parses cells as numbers. errors='coerce' turns failures into
// NaN; otherwise the first failure is an error.
func pdToNumeric(c *call) (starlark.Value, error) {
	arg := c.get(0, "arg")
	if arg == nil {
		return nil, c.errorf("missing argument arg")
	}
	mode, err := c.str(-1, "raise", "errors")
	if err != nil {
		return nil, err
	}
	parse := func(v any) (any, error) {
		switch x := v.(type) {
		case nil, int64, float64:
			return x, nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			s := strings.TrimSpace(x)
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i, nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, nil
			}
		}
		if mode == "coerce" {
			return math.NaN(), nil
		}
		return nil, c.errorf("unable to parse string %s", table.Repr(v))
	}
	if s, ok := arg.(*Series); ok {
		out := make([]any, len(s.vals))
		for i, v := range s.vals {
			p, err := parse(v)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		col := table.NewColumn(s.name, out)
		return s.derive(col.Values), nil
	}
	v, err := fromValue(arg)
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	p, err := parse(v)
	if err != nil {
		return nil, err
	}
	return toValue(p), nil
}

func pdNullTest(wantNull bool) func(c *call) (starlark.Value, error) {
	return func(c *call) (starlark.Value, error) {
		arg := c.get(0, "obj")
		if s, ok := arg.(*Series); ok {
			return nullMask(wantNull)(s, c)
		}
		if arg == nil {
			return nil, c.errorf("missing argument obj")
		}
		null := arg == starlark.None
		if f, ok := arg.(starlark.Float); ok && math.IsNaN(float64(f)) {
			null = true
		}
		return starlark.Bool(null == wantNull), nil
	}
}
