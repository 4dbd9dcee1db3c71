package report

import (
	"strings"

	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

// FileType classifies an uploaded table.
type FileType string

const (
	ScoutReport FileType = "scout_report"
	EventData   FileType = "event_data"
	Unknown     FileType = "unknown"
)

// Title renders the file type for display, e.g. "Scout Report".
func (f FileType) Title() string {
	words := strings.Split(string(f), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// scoutColumns match exactly; eventColumns match lowercased, trimmed names.
var (
	scoutColumns = []string{"Strengths", "Weaknesses", "Summary"}
	eventColumns = map[string]bool{"x": true, "y": true, "end_x": true, "end_y": true, "event type": true}
)

// DetectFileType tells qualitative scout reports from event data.
func DetectFileType(t *table.Table) FileType {
	for _, c := range scoutColumns {
		if t.Has(c) {
			return ScoutReport
		}
	}
	for _, c := range t.Columns() {
		if eventColumns[strings.ToLower(strings.TrimSpace(c))] {
			return EventData
		}
	}
	return Unknown
}
