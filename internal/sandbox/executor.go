// Package sandbox runs generated visualization snippets against a table
// and captures the resulting figure.
//
// Snippets are executed by a Starlark interpreter whose only bindings are
// plt, df, Pitch, np and pd. Every snippet passes the safety gate before it
// runs and holds the drawing surface exclusively while it runs.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.uber.org/zap"

	"github.com/KaramelBytes/scoutdeck-cli/internal/audit"
	"github.com/KaramelBytes/scoutdeck-cli/internal/canvas"
	"github.com/KaramelBytes/scoutdeck-cli/internal/codesafety"
	"github.com/KaramelBytes/scoutdeck-cli/internal/repair"
	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

// Defaults for Executor fields left zero.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxCodeLength = 5000
	DefaultMaxSteps      = 50_000_000
)

// Result is the outcome of one execution attempt. Image is nil unless OK.
type Result struct {
	OK          bool
	Message     string
	Image       []byte
	Code        string
	Corrections []string
}

// Executor gates, repairs and runs snippets.
type Executor struct {
	Gate          *codesafety.Gate
	Repairer      *repair.Repairer
	Surface       *canvas.Surface
	Timeout       time.Duration
	MaxCodeLength int
	MaxSteps      uint64
	DPI           float64
	Logger        *zap.Logger
}

// New returns an executor with the narrow safety profile, default repairs
// and its own drawing surface.
func New(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		Gate:          codesafety.NewGate(codesafety.ProfileNarrow),
		Repairer:      repair.New(),
		Surface:       canvas.NewSurface(),
		Timeout:       DefaultTimeout,
		MaxCodeLength: DefaultMaxCodeLength,
		MaxSteps:      DefaultMaxSteps,
		DPI:           canvas.DefaultDPI,
		Logger:        logger,
	}
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Execute runs code against t. Repair entries are appended to log when it
// is non-nil. It never returns a Go error: every failure is a Result.
func (e *Executor) Execute(ctx context.Context, code string, t *table.Table, log *audit.Log) Result {
	logger := e.logger()
	if verdict := e.Gate.Check(code); !verdict.Safe {
		logger.Warn("snippet blocked", zap.Strings("violations", verdict.Violations))
		return Result{Message: "Code blocked for security reasons: " + verdict.Reason(), Code: code}
	}
	limit := e.MaxCodeLength
	if limit <= 0 {
		limit = DefaultMaxCodeLength
	}
	if len([]rune(code)) > limit {
		return Result{Message: fmt.Sprintf("Code exceeds maximum length of %d characters", limit), Code: code}
	}

	fixed, corrections := e.Repairer.Repair(code, t)
	if log != nil {
		log.Append(corrections...)
	}
	res := e.run(ctx, fixed, t)
	res.Code = fixed
	res.Corrections = corrections
	if res.OK {
		res.Message = fmt.Sprintf("Code executed successfully. Corrections made: %d", len(corrections))
		logger.Debug("snippet executed", zap.Int("corrections", len(corrections)), zap.Int("png_bytes", len(res.Image)))
	} else {
		logger.Info("snippet failed", zap.String("error", res.Message))
	}
	return res
}

func (e *Executor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// run holds the surface for the whole execution; the deferred release also
// covers panics raised by bindings.
func (e *Executor) run(ctx context.Context, code string, t *table.Table) (res Result) {
	e.Surface.Acquire()
	defer e.Surface.Release()
	defer func() {
		if r := recover(); r != nil {
			res = failure(fmt.Sprint(r), string(debug.Stack()))
		}
	}()

	src, err := stripImports(code)
	if err != nil {
		return failure(err.Error(), err.Error())
	}
	src = rewriteComparisons(src)

	thread := &starlark.Thread{
		Name: "snippet",
		Print: func(_ *starlark.Thread, msg string) {
			e.logger().Debug("snippet output", zap.String("msg", msg))
		},
	}
	steps := e.MaxSteps
	if steps == 0 {
		steps = DefaultMaxSteps
	}
	thread.SetMaxExecutionSteps(steps)

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.AfterFunc(timeout, func() {
		thread.Cancel(fmt.Sprintf("execution timed out after %s", timeout))
	})
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { thread.Cancel(ctx.Err().Error()) })
	defer stop()

	if _, err := starlark.ExecFileOptions(fileOptions, thread, "snippet.py", src, e.namespace(t)); err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return failure(evalErr.Msg, evalErr.Backtrace())
		}
		return failure(err.Error(), err.Error())
	}

	dpi := e.DPI
	if dpi <= 0 {
		dpi = canvas.DefaultDPI
	}
	img, err := e.Surface.Capture(dpi)
	if err != nil {
		return failure("render: "+err.Error(), err.Error())
	}
	return Result{OK: true, Image: img}
}

func failure(msg, trace string) Result {
	return Result{Message: fmt.Sprintf("Execution error: %s\nTraceback: %s", msg, trace)}
}

// namespace builds the snippet globals. Each execution gets a fresh frame
// over t, so assignments never leak between runs.
func (e *Executor) namespace(t *table.Table) starlark.StringDict {
	env := &plotEnv{surface: e.Surface}
	return starlark.StringDict{
		"plt":   pyplotModule(env),
		"df":    NewDataFrame(t),
		"Pitch": pitchConstructor(env),
		"np":    numpyModule(),
		"pd":    pandasModule(),
		"sum":   starlark.NewBuiltin("sum", callFunc(builtinSum)),
		"round": starlark.NewBuiltin("round", callFunc(builtinRound)),
		"abs":   starlark.NewBuiltin("abs", callFunc(builtinAbs)),

		compareFunc: starlark.NewBuiltin(compareFunc, callFunc(builtinCompare)),
	}
}

// swapped maps a comparison to the one it becomes with its operands exchanged.
var swapped = map[string]string{"eq": "eq", "ne": "ne", "gt": "lt", "ge": "le", "lt": "gt", "le": "ge"}

// builtinCompare evaluates a rewritten comparison operator. A Series on
// either side compares elementwise; other operands compare as usual.
func builtinCompare(c *call) (starlark.Value, error) {
	name, err := c.str(0, "")
	if err != nil {
		return nil, err
	}
	x, y := c.get(1), c.get(2)
	if x == nil || y == nil {
		return nil, c.errorf("missing operand")
	}
	if s, ok := x.(*Series); ok {
		return comparators[name](s, &call{name: name, pos: starlark.Tuple{y}})
	}
	if s, ok := y.(*Series); ok {
		name = swapped[name]
		return comparators[name](s, &call{name: name, pos: starlark.Tuple{x}})
	}
	var op syntax.Token
	for tok, n := range comparisonNames {
		if n == name {
			op = tok
		}
	}
	if op == syntax.ILLEGAL {
		return nil, c.errorf("unknown comparison %q", name)
	}
	ok, err := starlark.Compare(op, x, y)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(ok), nil
}

// builtinSum is Python's sum over numbers or a Series.
func builtinSum(c *call) (starlark.Value, error) {
	seq := c.get(0, "iterable")
	if seq == nil {
		return nil, c.errorf("missing argument iterable")
	}
	if s, ok := seq.(*Series); ok {
		return reduceMethod(reduceSum)(s, &call{name: "sum"})
	}
	iter, ok := seq.(starlark.Iterable)
	if !ok {
		return nil, c.errorf("%s is not iterable", seq.Type())
	}
	var total starlark.Value = starlark.MakeInt(0)
	if start := c.get(1, "start"); start != nil {
		total = start
	}
	it := iter.Iterate()
	defer it.Done()
	var x starlark.Value
	for it.Next(&x) {
		v, err := starlark.Binary(syntax.PLUS, total, x)
		if err != nil {
			return nil, c.errorf("%v", err)
		}
		total = v
	}
	return total, nil
}

// builtinRound is Python's round; ndigits=None yields an int.
func builtinRound(c *call) (starlark.Value, error) {
	x, err := c.float(0, math.NaN(), "number")
	if err != nil {
		return nil, err
	}
	if !c.has(1, "ndigits") {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, c.errorf("cannot convert float %v to integer", x)
		}
		return starlark.MakeInt64(int64(math.RoundToEven(x))), nil
	}
	n, err := c.int(1, 0, "ndigits")
	if err != nil {
		return nil, err
	}
	f := math.Pow(10, float64(n))
	return starlark.Float(math.RoundToEven(x*f) / f), nil
}

func builtinAbs(c *call) (starlark.Value, error) {
	v := c.get(0, "x")
	switch x := v.(type) {
	case starlark.Int:
		if x.Sign() < 0 {
			return zeroInt.Sub(x), nil
		}
		return x, nil
	case starlark.Float:
		return starlark.Float(math.Abs(float64(x))), nil
	case *Series:
		return mapFloat(math.Abs)(x, c)
	}
	return nil, c.errorf("bad operand type for abs()")
}

var zeroInt = starlark.MakeInt(0)
