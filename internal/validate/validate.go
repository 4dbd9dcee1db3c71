// Package validate checks uploads, report requirements and credentials
// before any remote call is made.
package validate

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/scoutdeck-cli/internal/report"
	"github.com/KaramelBytes/scoutdeck-cli/internal/schema"
	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

// DefaultMaxFileSizeMB caps uploads when callers pass zero.
const DefaultMaxFileSizeMB = 50

// vizColumns are the coordinates plotting code usually needs.
var vizColumns = []string{"x", "y", "end_x", "end_y"}

// ValidationError aborts a run with a user-facing message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Errorf builds a ValidationError.
func Errorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// FileResult is the outcome of File. Table is set only when Valid.
type FileResult struct {
	Valid   bool
	Message string
	Table   *table.Table
}

// Err returns the result as a ValidationError, or nil when valid.
func (r FileResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Message: r.Message}
}

// File checks an uploaded file and parses it.
func File(name string, data []byte, maxMB int) FileResult {
	if data == nil && name == "" {
		return FileResult{Message: "No file uploaded"}
	}
	if maxMB <= 0 {
		maxMB = DefaultMaxFileSizeMB
	}
	if float64(len(data))/(1024*1024) > float64(maxMB) {
		return FileResult{Message: fmt.Sprintf("File too large. Maximum size is %dMB", maxMB)}
	}
	if strings.ToLower(filepath.Ext(name)) != ".csv" {
		return FileResult{Message: "Unsupported file type. Please upload a CSV file."}
	}
	t, err := table.ReadCSV(bytes.NewReader(data))
	if err != nil {
		return FileResult{Message: fmt.Sprintf("Error reading file: %v", err)}
	}
	if t.Empty() {
		return FileResult{Message: "File is empty"}
	}
	if t.Width() < 2 {
		return FileResult{Message: "File must have at least 2 columns"}
	}
	return FileResult{Valid: true, Message: "File validated successfully", Table: t}
}

// ReportColumns checks that t can feed reportType. When valid, the returned
// messages are data-quality warnings; otherwise the single message explains
// the failure.
func ReportColumns(t *table.Table, reportType string) (bool, []string) {
	rt, ok := report.Lookup(reportType)
	if !ok {
		return false, []string{"Invalid report type: " + reportType}
	}
	names := t.Columns()
	var missing []string
	for _, c := range rt.RequiredColumns {
		if !schema.HasCanonical(names, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return false, []string{fmt.Sprintf("Missing required columns for %s: %s", reportType, strings.Join(missing, ", "))}
	}
	return true, QualityWarnings(t)
}

// QualityWarnings flags mostly-null and constant columns.
func QualityWarnings(t *table.Table) []string {
	var warnings []string
	if t.Len() == 0 {
		return warnings
	}
	for i := 0; i < t.Width(); i++ {
		c := t.ColumnAt(i)
		if pct := float64(c.NullCount()) / float64(t.Len()) * 100; pct > 50 {
			warnings = append(warnings, fmt.Sprintf("Column '%s' has %.1f%% null values", c.Name, pct))
		}
		if c.NUnique() == 1 {
			warnings = append(warnings, fmt.Sprintf("Column '%s' has only one unique value", c.Name))
		}
	}
	return warnings
}

// VisualizationColumns reports whether the coordinate columns can be resolved and
// which are missing, in fixed order.
func VisualizationColumns(t *table.Table) (bool, []string) {
	names := t.Columns()
	var missing []string
	for _, c := range vizColumns {
		if !schema.HasCanonical(names, c) {
			missing = append(missing, c)
		}
	}
	return len(missing) == 0, missing
}

// APIKey checks that a key is present and plausibly formed.
func APIKey(key string) (bool, string) {
	switch {
	case key == "":
		return false, "OpenRouter API key not found. Please set OPENROUTER_API_KEY in your environment or config."
	case len(key) < 10:
		return false, "API key appears to be invalid (too short)."
	}
	return true, "API key validated"
}
