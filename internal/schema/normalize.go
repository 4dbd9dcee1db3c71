package schema

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/scoutdeck-cli/internal/audit"
	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

// Normalize returns a copy of t extended with a shadow canonical column for
// every alias present in t whose canonical name is still missing. Existing
// columns are never removed or overwritten. Each applied mapping is recorded
// in log when log is non-nil.
func Normalize(t *table.Table, aliases []Alias, log *audit.Log) *table.Table {
	out := t.Clone()
	for _, a := range aliases {
		src, ok := out.Column(a.Raw)
		if !ok || out.Has(a.Canonical) {
			continue
		}
		next, err := out.WithColumn(a.Canonical, src)
		if err != nil {
			continue
		}
		out = next
		if log != nil {
			log.Addf("Column mapping: %q → %q", a.Raw, a.Canonical)
		}
	}
	return out
}

// ColumnInfo describes each column as "- name (dtype): [samples]" using up to
// three leading non-null values.
func ColumnInfo(t *table.Table) string {
	lines := make([]string, 0, t.Width())
	for i := 0; i < t.Width(); i++ {
		c := t.ColumnAt(i)
		samples := c.NonNull()
		if len(samples) > 3 {
			samples = samples[:3]
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", c.Name, c.DType, table.ReprList(samples)))
	}
	return strings.Join(lines, "\n")
}
