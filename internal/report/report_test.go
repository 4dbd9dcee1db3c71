package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/scoutdeck-cli/internal/extract"
	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

func scoutTable() *table.Table {
	return table.MustNew(
		table.NewColumn("Player Name", []any{"Bukayo Saka", " bukayo saka ", "Declan Rice", nil}),
		table.NewColumn("Club", []any{"Arsenal", "Arsenal", "Arsenal", "Chelsea"}),
		table.NewColumn("Strengths", []any{"Dribbling", "Crossing", "Passing", "Pace"}),
	)
}

func eventTable() *table.Table {
	return table.MustNew(
		table.NewColumn("Player", []any{"Saka", "Rice", "Saka"}),
		table.NewColumn("Team", []any{"Arsenal", "Arsenal", "Arsenal"}),
		table.NewColumn(" X ", []any{10.0, 20.0, 30.0}),
	)
}

func TestLookupAndNames(t *testing.T) {
	assert.Equal(t, []string{"Player Report", "Match Report", "Opposition Report"}, Names())
	pr, ok := Lookup("Player Report")
	require.True(t, ok)
	assert.Equal(t, []string{"Player"}, pr.RequiredColumns)
	assert.True(t, strings.HasPrefix(pr.SystemPrompt, "You are a senior professional football scout"))
	_, ok = Lookup("player report")
	assert.False(t, ok)
}

func TestDetectFileType(t *testing.T) {
	assert.Equal(t, ScoutReport, DetectFileType(scoutTable()))
	assert.Equal(t, EventData, DetectFileType(eventTable()))
	assert.Equal(t, Unknown, DetectFileType(table.MustNew(table.NewColumn("summary", []any{"a"}))))
	assert.Equal(t, "Scout Report", ScoutReport.Title())
	assert.Equal(t, "Event Data", EventData.Title())
	assert.Equal(t, "Unknown", Unknown.Title())
}

func TestSelectSubjectScoutPlayerIsCaseInsensitive(t *testing.T) {
	sel, err := SelectSubject(scoutTable(), "Player Report", ScoutReport, "")
	require.NoError(t, err)
	assert.Equal(t, "Bukayo Saka", sel.Subject)
	assert.Equal(t, "Player Name", sel.Column)
	assert.Equal(t, []string{"Bukayo Saka", " bukayo saka ", "Declan Rice"}, sel.Options)
	assert.Equal(t, 2, sel.Data.Len())
}

func TestSelectSubjectScoutWithoutPlayerColumn(t *testing.T) {
	tbl := table.MustNew(table.NewColumn("Summary", []any{"ok"}), table.NewColumn("Club", []any{"A"}))
	_, err := SelectSubject(tbl, "Player Report", ScoutReport, "")
	require.Error(t, err)
	assert.Equal(t, "This scout report file does not contain a recognizable player name column. Please check your file.", err.Error())
}

func TestSelectSubjectScoutTeamIsExact(t *testing.T) {
	sel, err := SelectSubject(scoutTable(), "Opposition Report", ScoutReport, "Chelsea")
	require.NoError(t, err)
	assert.Equal(t, "Club", sel.Column)
	assert.Equal(t, 1, sel.Data.Len())
}

func TestSelectSubjectEventData(t *testing.T) {
	sel, err := SelectSubject(eventTable(), "Player Report", EventData, "Saka")
	require.NoError(t, err)
	assert.Equal(t, "Saka", sel.Subject)
	assert.Equal(t, 2, sel.Data.Len())

	sel, err = SelectSubject(eventTable(), "Match Report", EventData, "ignored")
	require.NoError(t, err)
	assert.Equal(t, MatchSubject, sel.Subject)
	assert.Equal(t, 3, sel.Data.Len())

	_, err = SelectSubject(eventTable(), "Player Report", EventData, "Odegaard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Saka, Rice")
}

func TestOptions(t *testing.T) {
	assert.Equal(t, []string{"Arsenal"}, Options(eventTable(), "Opposition Report", EventData))
	assert.Nil(t, Options(eventTable(), "Match Report", EventData))
}

func TestBuildPromptEventWithVisuals(t *testing.T) {
	p := BuildPrompt(PromptInput{
		ReportType:     "Player Report",
		SampleData:     "[{'Player': 'Saka'}]",
		VisualsEnabled: true,
		ColumnsInfo:    "- Player (object): ['Saka']",
		FileType:       EventData,
	})
	assert.True(t, strings.HasPrefix(p, "\nYou are a professional football staff member"))
	assert.Contains(t, p, "write a comprehensive, insightful, and professional player report.")
	assert.Contains(t, p, "AVAILABLE DATA COLUMNS:\n- Player (object): ['Saka']\n")
	assert.Contains(t, p, "DATA TO ANALYZE:\n[{'Player': 'Saka'}]\n")
	assert.Contains(t, p, "\n"+extract.Marker+"\n")
	assert.Contains(t, p, "```python\n# Create pitch")
	assert.Contains(t, p, "No f-strings")
	assert.NotContains(t, p, "~~~")
	assert.NotContains(t, p, "Complete written report only")
}

func TestBuildPromptScoutTextOnly(t *testing.T) {
	p := BuildPrompt(PromptInput{ReportType: "Opposition Report", FileType: ScoutReport, SampleData: "[]"})
	assert.Contains(t, p, "key insights for a opposition report.")
	assert.NotContains(t, p, extract.Marker)
	assert.True(t, strings.HasSuffix(p, "\n\nRESPONSE FORMAT:\nComplete written report only - no code blocks or visualization sections needed.\n"))
}

func TestDownloadFilename(t *testing.T) {
	assert.Equal(t, "player_report_Saka.txt", DownloadFilename("Player Report", "Saka"))
	assert.Equal(t, "match_report_the match.txt", DownloadFilename("Match Report", MatchSubject))
}
