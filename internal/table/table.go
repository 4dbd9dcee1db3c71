// Package table holds the in-memory tabular model shared by the normalizer,
// the validators, the prompt builder and the sandbox bindings.
package table

import (
	"fmt"
	"math"
)

// DType is the inferred scalar type of a column. Names follow pandas so the
// column-info text reads the way model prompts expect.
type DType string

const (
	Int64   DType = "int64"
	Float64 DType = "float64"
	Bool    DType = "bool"
	Object  DType = "object"
)

// Column is a named, typed sequence of cells. A cell is nil (null), int64,
// float64, bool or string.
type Column struct {
	Name   string
	DType  DType
	Values []any
}

// NewColumn builds a column and infers its dtype from the values. Integer
// cells are widened in place when the column is float64.
func NewColumn(name string, values []any) *Column {
	for i, v := range values {
		if x, ok := v.(int); ok {
			values[i] = int64(x)
		}
	}
	dt := InferDType(values)
	if dt == Float64 {
		for i, v := range values {
			switch x := v.(type) {
			case int64:
				values[i] = float64(x)
			case int:
				values[i] = float64(x)
			}
		}
	}
	return &Column{Name: name, DType: dt, Values: values}
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Values) }

// IsNull reports whether cell i is null. NaN floats count as null.
func (c *Column) IsNull(i int) bool { return IsNull(c.Values[i]) }

// NullCount returns the number of null cells.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if IsNull(v) {
			n++
		}
	}
	return n
}

// NonNull returns the non-null cells in order.
func (c *Column) NonNull() []any {
	out := make([]any, 0, len(c.Values))
	for _, v := range c.Values {
		if !IsNull(v) {
			out = append(out, v)
		}
	}
	return out
}

// Unique returns distinct non-null values in order of first appearance.
func (c *Column) Unique() []any {
	seen := make(map[any]struct{}, len(c.Values))
	var out []any
	for _, v := range c.Values {
		if IsNull(v) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// NUnique counts distinct non-null values.
func (c *Column) NUnique() int { return len(c.Unique()) }

// Floats converts the column to float64 with NaN for nulls. ok is false when
// any non-null cell is not numeric.
func (c *Column) Floats() (out []float64, ok bool) {
	out = make([]float64, len(c.Values))
	for i, v := range c.Values {
		f, isNum := ToFloat(v)
		if !isNum {
			if IsNull(v) {
				out[i] = math.NaN()
				continue
			}
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// Clone returns a deep copy of the column header and cell slice.
func (c *Column) Clone() *Column {
	vals := make([]any, len(c.Values))
	copy(vals, c.Values)
	return &Column{Name: c.Name, DType: c.DType, Values: vals}
}

// Table is an ordered set of equal-length columns. Operations that change the
// shape return a new table and leave the receiver untouched.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a table from columns. All columns must share one length and
// names must be unique.
func New(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), t.rows)
		}
		t.index[c.Name] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustNew is New for literals in tests and fixtures.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the row count.
func (t *Table) Len() int { return t.rows }

// Width returns the column count.
func (t *Table) Width() int { return len(t.cols) }

// Empty reports whether the table has no rows or no columns (pandas semantics).
func (t *Table) Empty() bool { return t.rows == 0 || len(t.cols) == 0 }

// Columns returns column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Has reports whether a column with exactly this name exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// ColumnAt returns the column at position i.
func (t *Table) ColumnAt(i int) *Column { return t.cols[i] }

// Clone copies the table so the copy can be extended independently.
func (t *Table) Clone() *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.Clone()
	}
	out, _ := New(cols...)
	if len(cols) == 0 {
		out.rows = t.rows
	}
	return out
}

// WithColumn returns a copy of t with a new trailing column holding a copy of
// src's values. An existing column of the same name is an error.
func (t *Table) WithColumn(name string, src *Column) (*Table, error) {
	if t.Has(name) {
		return nil, fmt.Errorf("column %q already exists", name)
	}
	if len(t.cols) > 0 && src.Len() != t.rows {
		return nil, fmt.Errorf("column %q has %d rows, want %d", name, src.Len(), t.rows)
	}
	c := src.Clone()
	c.Name = name
	cols := append(append([]*Column{}, t.cols...), c)
	return New(cols...)
}

// Drop returns a copy of t without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}
	var cols []*Column
	for _, c := range t.cols {
		if _, ok := skip[c.Name]; ok {
			continue
		}
		cols = append(cols, c.Clone())
	}
	out, _ := New(cols...)
	if len(cols) == 0 {
		out.rows = t.rows
	}
	return out
}

// Select returns a copy holding only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("column %q not found", n)
		}
		cols = append(cols, c.Clone())
	}
	return New(cols...)
}

// Filter keeps the rows where mask is true. Dtypes are preserved.
func (t *Table) Filter(mask []bool) (*Table, error) {
	if len(mask) != t.rows {
		return nil, fmt.Errorf("mask has %d entries, table has %d rows", len(mask), t.rows)
	}
	idx := make([]int, 0, len(mask))
	for i, keep := range mask {
		if keep {
			idx = append(idx, i)
		}
	}
	return t.Take(idx), nil
}

// Take returns the rows at the given positions, in that order.
func (t *Table) Take(idx []int) *Table {
	cols := make([]*Column, len(t.cols))
	for j, c := range t.cols {
		vals := make([]any, len(idx))
		for k, i := range idx {
			vals[k] = c.Values[i]
		}
		cols[j] = &Column{Name: c.Name, DType: c.DType, Values: vals}
	}
	out, _ := New(cols...)
	if len(cols) == 0 {
		out.rows = len(idx)
	}
	return out
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if n > t.rows {
		n = t.rows
	}
	if n < 0 {
		n = 0
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.Take(idx)
}

// Tail returns the last n rows.
func (t *Table) Tail(n int) *Table {
	if n > t.rows {
		n = t.rows
	}
	if n < 0 {
		n = 0
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = t.rows - n + i
	}
	return t.Take(idx)
}

// Field is one named cell of a record.
type Field struct {
	Name  string
	Value any
}

// Record is one row with its fields in column order.
type Record []Field

// Records returns every row as an ordered record.
func (t *Table) Records() []Record {
	out := make([]Record, t.rows)
	for i := 0; i < t.rows; i++ {
		rec := make(Record, len(t.cols))
		for j, c := range t.cols {
			rec[j] = Field{Name: c.Name, Value: c.Values[i]}
		}
		out[i] = rec
	}
	return out
}

// IsNull reports whether v is a null cell.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	}
	return false
}

// ToFloat converts numeric and bool cells to float64.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		if math.IsNaN(x) {
			return x, false
		}
		return x, true
	case int:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// InferDType derives the pandas dtype for a slice of cells. Integer columns
// with nulls widen to float64; bool columns with nulls become object.
func InferDType(values []any) DType {
	var ints, floats, bools, others, nulls int
	for _, v := range values {
		switch v.(type) {
		case nil:
			nulls++
		case int64, int:
			ints++
		case float64:
			floats++
		case bool:
			bools++
		default:
			others++
		}
	}
	switch {
	case others > 0:
		return Object
	case bools > 0 && ints+floats == 0 && nulls == 0:
		return Bool
	case bools > 0:
		return Object
	case floats > 0 || (ints > 0 && nulls > 0):
		return Float64
	case ints > 0:
		return Int64
	case nulls > 0:
		return Float64
	}
	return Object
}
