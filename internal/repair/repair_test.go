package repair

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

func players() *table.Table {
	return table.MustNew(
		table.NewColumn("Player", []any{"Saka"}),
		table.NewColumn("Team", []any{"Arsenal"}),
		table.NewColumn("end_x", []any{80.0}),
	)
}

func TestRatioMatchesSequenceMatcher(t *testing.T) {
	assert.InDelta(t, 0.75, Ratio("abcd", "bcde"), 1e-9)
	assert.InDelta(t, 12.0/13.0, Ratio("Player", "Players"), 1e-9)
	assert.InDelta(t, 8.0/9.0, Ratio("end_x", "endx"), 1e-9)
	assert.Equal(t, 1.0, Ratio("", ""))
	// popular characters are dropped from long second sequences
	assert.Equal(t, 0.0, Ratio(strings.Repeat("qwerty", 40), "a"+strings.Repeat("qwerty", 40)))
	// runes, not bytes
	assert.InDelta(t, 0.875, Ratio("Ødegaard", "Odegaard"), 1e-9)
}

func TestClosestMatchesGetCloseMatches(t *testing.T) {
	// difflib.get_close_matches('appel', ['ape', 'apple', 'peach', 'puppy']) == ['apple', 'ape']
	assert.InDelta(t, 0.8, Ratio("apple", "appel"), 1e-9)
	assert.InDelta(t, 0.75, Ratio("ape", "appel"), 1e-9)
	got, ok := Closest("appel", []string{"ape", "apple", "peach", "puppy"}, DefaultThreshold)
	require.True(t, ok)
	assert.Equal(t, "apple", got)
}

func TestClosest(t *testing.T) {
	got, ok := Closest("Players", []string{"Player", "Team"}, DefaultThreshold)
	require.True(t, ok)
	assert.Equal(t, "Player", got)

	_, ok = Closest("zzz", []string{"Player", "Team"}, DefaultThreshold)
	assert.False(t, ok)

	got, ok = Closest("Teem", []string{"Team", "Tees"}, DefaultThreshold)
	require.True(t, ok)
	assert.Equal(t, "Tees", got, "ties resolve to the greater name")

	got, _ = Closest("Event", []string{"Event Type", "Even", "Player"}, DefaultThreshold)
	assert.Equal(t, "Even", got)
}

func TestRepairFixesMisspelledColumn(t *testing.T) {
	r := New()
	r.Formatter = nil
	fixed, log := r.Repair("plt.scatter(df['Players'], df[\"Team\"])", players())
	assert.Equal(t, "plt.scatter(df['Player'], df[\"Team\"])", fixed)
	assert.Equal(t, []string{"Column fix: 'Players' → 'Player'"}, log)
}

func TestRepairRewritesEveryOccurrenceOnce(t *testing.T) {
	r := New()
	r.Formatter = nil
	fixed, log := r.Repair(`a = df["Players"]`+"\n"+`b = df['Players']`, players())
	assert.Equal(t, "a = df['Player']\nb = df['Player']", fixed)
	assert.Len(t, log, 1)
}

func TestRepairLeavesUnknownColumnWithWarning(t *testing.T) {
	r := New()
	r.Formatter = nil
	code := "plt.plot(df['zzz'])"
	fixed, log := r.Repair(code, players())
	assert.Equal(t, code, fixed)
	assert.Equal(t, []string{"Warning: Column 'zzz' not found and no close match available"}, log)
}

func TestRepairAppliesReplacementsInOrder(t *testing.T) {
	r := New()
	r.Formatter = nil
	fixed, log := r.Repair("from mplsoccer import *\np = mplsoccer()\nplt.plt.show()()", players())
	assert.Equal(t, "from mplsoccer import Pitch\np = Pitch()\nplt.show()", fixed)
	assert.Equal(t, []string{
		"Code fix: 'mplsoccer()' → 'Pitch()'",
		"Code fix: 'from mplsoccer import *' → 'from mplsoccer import Pitch'",
		"Code fix: 'plt.show()()' → 'plt.show()'",
		"Code fix: 'plt.plt.' → 'plt.'",
	}, log)
}

func TestRepairFormats(t *testing.T) {
	fixed, log := New().Repair("import numpy as np\nfor v in df['Player']:\n\tplt.text(1, 2, v)   \n\n\n\n\nplt.show()", players())
	assert.Equal(t, "import numpy as np\nfor v in df['Player']:\n    plt.text(1, 2, v)\n\n\nplt.show()\n", fixed)
	assert.Equal(t, []string{"Code auto-formatted"}, log)
}

func TestSyntaxFormatterReindentsBlocks(t *testing.T) {
	in := "for v in df['Player']:\n  if v == 'Saka':\n    plt.text(1, 2,\n             v)\n  elif v:\n    pass\n  else:\n    x = '''a\n  b'''\n"
	want := "for v in df['Player']:\n    if v == 'Saka':\n        plt.text(1, 2,\n                 v)\n    elif v:\n        pass\n    else:\n        x = '''a\n  b'''\n"
	got, err := SyntaxFormatter{}.Format(in)
	require.NoError(t, err)
	assert.Equal(t, want, got, "four spaces per level; string contents untouched")
}

func TestRepairKeepsCodeWhenFormattingFails(t *testing.T) {
	code := "plt.title(f'{x}'"
	fixed, log := New().Repair(code, players())
	assert.Equal(t, code, fixed)
	require.Len(t, log, 1)
	assert.True(t, strings.HasPrefix(log[0], "Auto-formatting failed: "), log[0])
}

func TestRepairSurvivesFormatterPanic(t *testing.T) {
	r := New()
	r.Formatter = FormatterFunc(func(string) (string, error) { panic("boom") })
	fixed, log := r.Repair("x = 1", players())
	assert.Equal(t, "x = 1", fixed)
	assert.Equal(t, []string{"Auto-formatting failed: formatter panic: boom"}, log)

	r.Formatter = FormatterFunc(func(string) (string, error) { return "", errors.New("nope") })
	_, log = r.Repair("x = 1", players())
	assert.Equal(t, []string{"Auto-formatting failed: nope"}, log)
}
