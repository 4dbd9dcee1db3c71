// Package analysis summarizes and profiles tables for the CLI and prompts.
package analysis

import (
	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

// Summary is the headline description of a dataset.
type Summary struct {
	Rows           int            `json:"rows"`
	Columns        int            `json:"columns"`
	MemoryMB       float64        `json:"memory_usage_mb"`
	NullPercentage float64        `json:"null_percentage"`
	ColumnTypes    map[string]int `json:"column_types"`
	SampleColumns  []string       `json:"sample_columns"`
}

// Summarize computes row/column counts, null share, dtype counts and an
// approximate in-memory size.
func Summarize(t *table.Table) Summary {
	s := Summary{
		Rows:        t.Len(),
		Columns:     t.Width(),
		ColumnTypes: map[string]int{},
	}
	names := t.Columns()
	if len(names) > 5 {
		names = names[:5]
	}
	s.SampleColumns = names

	nulls := 0
	bytes := 128 // range index
	for i := 0; i < t.Width(); i++ {
		c := t.ColumnAt(i)
		s.ColumnTypes[string(c.DType)]++
		nulls += c.NullCount()
		bytes += columnBytes(c)
	}
	if cells := t.Len() * t.Width(); cells > 0 {
		s.NullPercentage = float64(nulls) / float64(cells) * 100
	}
	s.MemoryMB = float64(bytes) / (1024 * 1024)
	return s
}

// columnBytes approximates pandas' deep memory usage for one column.
func columnBytes(c *table.Column) int {
	switch c.DType {
	case table.Bool:
		return c.Len()
	case table.Object:
		n := 0
		for _, v := range c.Values {
			n += 8
			switch x := v.(type) {
			case string:
				n += 49 + len(x)
			case bool:
				n += 28
			default:
				n += 24
			}
		}
		return n
	}
	return 8 * c.Len()
}
