// Package repair corrects common mistakes in generated plotting code before
// it reaches the sandbox.
package repair

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

// Replacement is one exact substring rewrite.
type Replacement struct {
	Wrong string
	Right string
}

// DefaultReplacements are applied in order.
var DefaultReplacements = []Replacement{
	{"mplsoccer()", "Pitch()"},
	{"mplsoccer.Pitch()", "Pitch()"},
	{"from mplsoccer import *", "from mplsoccer import Pitch"},
	{"plt.show()()", "plt.show()"},
	{"plt.plt.", "plt."},
	{"plt..", "plt."},
}

var columnRef = regexp.MustCompile(`df\[['"](.*?)['"]\]`)

// Repairer applies substitutions, column-name fixes and formatting.
type Repairer struct {
	Replacements []Replacement
	Threshold    float64
	Formatter    Formatter
}

// New returns a Repairer with the default rules.
func New() *Repairer {
	return &Repairer{
		Replacements: DefaultReplacements,
		Threshold:    DefaultThreshold,
		Formatter:    SyntaxFormatter{},
	}
}

// Repair returns the corrected code and one log entry per change, in the
// order applied. Problems downgrade to log entries; Repair never fails.
func (r *Repairer) Repair(code string, t *table.Table) (fixed string, log []string) {
	fixed = code
	for _, rep := range r.Replacements {
		if strings.Contains(fixed, rep.Wrong) {
			fixed = strings.ReplaceAll(fixed, rep.Wrong, rep.Right)
			log = append(log, fmt.Sprintf("Code fix: '%s' → '%s'", rep.Wrong, rep.Right))
		}
	}

	var columns []string
	if t != nil {
		columns = t.Columns()
	}
	threshold := r.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	seen := map[string]bool{}
	for _, m := range columnRef.FindAllStringSubmatch(fixed, -1) {
		name := m[1]
		if seen[name] || (t != nil && t.Has(name)) {
			continue
		}
		seen[name] = true
		match, ok := Closest(name, columns, threshold)
		if !ok {
			log = append(log, fmt.Sprintf("Warning: Column '%s' not found and no close match available", name))
			continue
		}
		ref := regexp.MustCompile(`df\[['"]` + regexp.QuoteMeta(name) + `['"]\]`)
		fixed = ref.ReplaceAllLiteralString(fixed, "df['"+match+"']")
		log = append(log, fmt.Sprintf("Column fix: '%s' → '%s'", name, match))
	}

	if r.Formatter == nil {
		return fixed, log
	}
	formatted, err := r.format(fixed)
	if err != nil {
		log = append(log, fmt.Sprintf("Auto-formatting failed: %v", err))
		return fixed, log
	}
	log = append(log, "Code auto-formatted")
	return formatted, log
}

func (r *Repairer) format(code string) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("formatter panic: %v", p)
		}
	}()
	return r.Formatter.Format(code)
}
