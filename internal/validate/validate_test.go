package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
)

func TestFile(t *testing.T) {
	cases := []struct {
		name string
		file string
		data []byte
		max  int
		want string
		ok   bool
	}{
		{"nothing", "", nil, 0, "No file uploaded", false},
		{"too large", "big.csv", make([]byte, 2*1024*1024+1), 2, "File too large. Maximum size is 2MB", false},
		{"extension", "data.xlsx", []byte("a,b\n1,2\n"), 0, "Unsupported file type. Please upload a CSV file.", false},
		{"upper extension", "DATA.CSV", []byte("a,b\n1,2\n"), 0, "File validated successfully", true},
		{"header only", "data.csv", []byte("a,b\n"), 0, "File is empty", false},
		{"one column", "data.csv", []byte("a\n1\n"), 0, "File must have at least 2 columns", false},
		{"no columns", "data.csv", []byte(""), 0, "Error reading file: ", false},
		{"ragged", "data.csv", []byte("a,b\n1,2,3\n"), 0, "Error reading file: ", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := File(tc.file, tc.data, tc.max)
			assert.Equal(t, tc.ok, res.Valid)
			assert.True(t, strings.HasPrefix(res.Message, tc.want), res.Message)
			if tc.ok {
				require.NotNil(t, res.Table)
				assert.NoError(t, res.Err())
			} else {
				assert.Nil(t, res.Table)
				var ve *ValidationError
				assert.True(t, errors.As(res.Err(), &ve))
			}
		})
	}
}

func TestReportColumns(t *testing.T) {
	tbl := table.MustNew(
		table.NewColumn("Player Name", []any{"Saka", "Rice", "Saka"}),
		table.NewColumn("League", []any{"EPL", "EPL", "EPL"}),
		table.NewColumn("Notes", []any{nil, nil, "ok"}),
	)

	ok, msgs := ReportColumns(tbl, "Scouting Report")
	assert.False(t, ok)
	assert.Equal(t, []string{"Invalid report type: Scouting Report"}, msgs)

	ok, msgs = ReportColumns(tbl, "Opposition Report")
	assert.False(t, ok)
	assert.Equal(t, []string{"Missing required columns for Opposition Report: Team"}, msgs)

	ok, msgs = ReportColumns(tbl, "Player Report")
	assert.True(t, ok)
	assert.Equal(t, []string{
		"Column 'League' has only one unique value",
		"Column 'Notes' has 66.7% null values",
		"Column 'Notes' has only one unique value",
	}, msgs)
}

func TestVisualizationColumns(t *testing.T) {
	tbl := table.MustNew(
		table.NewColumn("X", []any{1.0}),
		table.NewColumn("y", []any{2.0}),
	)
	ok, missing := VisualizationColumns(tbl)
	assert.False(t, ok)
	assert.Equal(t, []string{"end_x", "end_y"}, missing)
}

func TestAPIKey(t *testing.T) {
	ok, msg := APIKey("")
	assert.False(t, ok)
	assert.Contains(t, msg, "OPENROUTER_API_KEY")

	ok, msg = APIKey("short")
	assert.False(t, ok)
	assert.Equal(t, "API key appears to be invalid (too short).", msg)

	ok, msg = APIKey("sk-or-v1-abcdef")
	assert.True(t, ok)
	assert.Equal(t, "API key validated", msg)
}
