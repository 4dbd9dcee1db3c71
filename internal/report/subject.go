package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

// MatchSubject is used when a report covers the whole table.
const MatchSubject = "the match"

// Selection is the subject a report is written about and the rows sent with
// the prompt.
type Selection struct {
	Subject string
	Column  string
	Options []string
	Data    *table.Table
}

var (
	scoutPlayerColumns = map[string]bool{"player": true, "player name": true, "name": true}
	scoutTeamColumns   = map[string]bool{"team": true, "team name": true, "squad": true, "club": true}
)

// SelectSubject picks the report subject from t. An empty requested value
// picks the first option.
func SelectSubject(t *table.Table, reportType string, fileType FileType, requested string) (Selection, error) {
	switch {
	case reportType == "Player Report" && fileType == ScoutReport:
		col := findColumn(t, scoutPlayerColumns)
		if col == "" {
			return Selection{}, errors.New("This scout report file does not contain a recognizable player name column. Please check your file.")
		}
		sel, choice, err := choose(t, col, requested)
		if err != nil {
			return Selection{}, err
		}
		want := strings.ToLower(strings.TrimSpace(table.Str(choice)))
		sel.Data = filter(t, col, func(v any) bool {
			return strings.ToLower(strings.TrimSpace(table.Str(v))) == want
		})
		if sel.Data.Len() == 0 {
			return Selection{}, fmt.Errorf("No data found for player '%s'. Please check your file.", sel.Subject)
		}
		return sel, nil
	case reportType == "Opposition Report" && fileType == ScoutReport:
		col := findColumn(t, scoutTeamColumns)
		if col == "" {
			return Selection{}, errors.New("This scout report file does not contain a recognizable team column. Please check your file.")
		}
		return exactSelection(t, col, requested)
	case reportType == "Player Report" && t.Has("Player"):
		return exactSelection(t, "Player", requested)
	case reportType == "Opposition Report" && t.Has("Team"):
		return exactSelection(t, "Team", requested)
	}
	return Selection{Subject: MatchSubject, Data: t}, nil
}

// Options lists the subjects SelectSubject would offer for t.
func Options(t *table.Table, reportType string, fileType FileType) []string {
	sel, err := SelectSubject(t, reportType, fileType, "")
	if err != nil {
		return nil
	}
	return sel.Options
}

func findColumn(t *table.Table, names map[string]bool) string {
	for _, c := range t.Columns() {
		if names[strings.ToLower(c)] {
			return c
		}
	}
	return ""
}

func exactSelection(t *table.Table, col, requested string) (Selection, error) {
	sel, choice, err := choose(t, col, requested)
	if err != nil {
		return Selection{}, err
	}
	sel.Data = filter(t, col, func(v any) bool { return v == choice })
	return sel, nil
}

// choose resolves requested against the unique non-null values of col.
func choose(t *table.Table, col, requested string) (Selection, any, error) {
	c, _ := t.Column(col)
	values := c.Unique()
	sel := Selection{Column: col, Options: make([]string, len(values))}
	for i, v := range values {
		sel.Options[i] = table.Str(v)
	}
	if len(values) == 0 {
		return Selection{}, nil, fmt.Errorf("column %q has no values to report on", col)
	}
	if requested == "" {
		sel.Subject = sel.Options[0]
		return sel, values[0], nil
	}
	for i, o := range sel.Options {
		if o == requested {
			sel.Subject = o
			return sel, values[i], nil
		}
	}
	for i, o := range sel.Options {
		if strings.EqualFold(strings.TrimSpace(o), strings.TrimSpace(requested)) {
			sel.Subject = o
			return sel, values[i], nil
		}
	}
	return Selection{}, nil, fmt.Errorf("subject %q not found in column %q (available: %s)", requested, col, strings.Join(sel.Options, ", "))
}

func filter(t *table.Table, col string, keep func(any) bool) *table.Table {
	c, _ := t.Column(col)
	mask := make([]bool, c.Len())
	for i, v := range c.Values {
		mask[i] = !table.IsNull(v) && keep(v)
	}
	out, _ := t.Filter(mask)
	return out
}

// DownloadFilename names the saved report, e.g. player_report_Saka.txt.
func DownloadFilename(reportType, subject string) string {
	return fmt.Sprintf("%s_%s.txt", strings.ToLower(strings.ReplaceAll(reportType, " ", "_")), subject)
}
