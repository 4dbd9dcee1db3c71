package table

import (
	"strings"

	"go.uber.org/zap"
)

var sensitiveFragments = []string{"password", "token", "key", "secret", "id", "email"}

// footballIDs survive sanitization even though they contain "id".
var footballIDs = map[string]struct{}{"player id": {}, "team id": {}, "match id": {}}

// Sanitize returns a copy of t without columns whose names look sensitive and
// with surrounding whitespace trimmed from text cells. Nulls stay null. It
// also returns the names of the removed columns.
func Sanitize(t *Table, logger *zap.Logger) (*Table, []string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var removed []string
	for _, name := range t.Columns() {
		lower := strings.ToLower(name)
		if _, keep := footballIDs[lower]; keep {
			continue
		}
		for _, frag := range sensitiveFragments {
			if strings.Contains(lower, frag) {
				removed = append(removed, name)
				break
			}
		}
	}
	out := t.Drop(removed...)
	if len(removed) > 0 {
		logger.Info("removed potentially sensitive columns", zap.Strings("columns", removed))
	}
	for _, c := range out.cols {
		if c.DType != Object {
			continue
		}
		for i, v := range c.Values {
			if s, ok := v.(string); ok {
				c.Values[i] = strings.TrimSpace(s)
			}
		}
	}
	return out, removed
}
