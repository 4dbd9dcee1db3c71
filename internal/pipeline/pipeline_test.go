package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/scoutdeck-cli/internal/ai"
	"github.com/KaramelBytes/scoutdeck-cli/internal/sandbox"
	"github.com/KaramelBytes/scoutdeck-cli/internal/validate"
)

const eventsCSV = `Player,Squad Name,Event Type,x,y,end_x,end_y,minute
Saka,Arsenal,Shot,100,40,120,40,10
Odegaard,Arsenal,Pass,60,30,80,35,22
Palmer,Chelsea,Shot,105,35,120,38,41
Rice,Arsenal,Pass,40,50,55,45,63
`

const reply = "## Overview\nArsenal pressed high.\n```python\nprint('stray')\n```\n" +
	"## SUGGESTED VISUALIZATIONS\n" +
	"```python\nfig, ax = plt.subplots(figsize=(6, 4))\ncounts = df['Player'].value_counts()\nax.bar(counts.index, counts.values)\n```\n" +
	"```python\nimport os\nos.system('ls')\n```\n"

type stubRuntime struct {
	deltas []string
	err    error
	calls  int
	last   ai.GenerateRequest
}

func (s *stubRuntime) Generate(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
	return nil, errors.New("not used")
}

func (s *stubRuntime) GenerateStream(_ context.Context, req ai.GenerateRequest, onDelta func(string)) error {
	s.calls++
	s.last = req
	for _, d := range s.deltas {
		onDelta(d)
	}
	return s.err
}

// chunk splits text into pieces of n bytes to mimic streaming.
func chunk(text string, n int) []string {
	var out []string
	for len(text) > n {
		out = append(out, text[:n])
		text = text[n:]
	}
	return append(out, text)
}

func newPipeline(rt *stubRuntime) *Pipeline {
	exec := sandbox.New(nil)
	exec.DPI = 20
	return New(ai.NewService(rt, "sk-or-test", true, nil), exec, nil)
}

func TestRunOppositionReportEndToEnd(t *testing.T) {
	rt := &stubRuntime{deltas: chunk(reply, 17)}
	var streamed strings.Builder
	out, err := newPipeline(rt).Run(context.Background(), Request{
		FileName:   "events.csv",
		Data:       []byte(eventsCSV),
		ReportType: "Opposition Report",
		Subject:    "Arsenal",
		Visuals:    true,
		OnFragment: func(s string) { streamed.WriteString(s) },
	})
	require.NoError(t, err)
	require.Equal(t, 1, rt.calls)

	assert.Equal(t, reply, streamed.String())
	assert.Equal(t, reply, out.Report)
	assert.Empty(t, out.GenerationError)
	assert.Equal(t, "Arsenal", out.Subject())
	assert.Equal(t, 3, out.Selection.Data.Len())
	assert.Equal(t, "event_data", string(out.FileType))
	assert.Equal(t, "opposition_report_Arsenal.txt", out.Filename)
	assert.Contains(t, out.Log.Entries(), `Column mapping: "Squad Name" → "Team"`)

	assert.Contains(t, out.Prose, "Arsenal pressed high.")
	assert.NotContains(t, out.Prose, "```")
	assert.NotContains(t, out.Prose, "SUGGESTED VISUALIZATIONS")

	require.Len(t, out.Blocks, 2)
	assert.True(t, out.Blocks[0].Result.OK, out.Blocks[0].Result.Message)
	assert.True(t, bytes.HasPrefix(out.Blocks[0].Result.Image, []byte("\x89PNG")))
	assert.False(t, out.Blocks[1].Result.OK)
	assert.True(t, strings.HasPrefix(out.Blocks[1].Result.Message, "Code blocked for security reasons"))

	assert.Equal(t, "system", rt.last.Messages[0].Role)
	assert.Contains(t, rt.last.Messages[1].Content, "'Team': 'Arsenal'")
	assert.NotContains(t, rt.last.Messages[1].Content, "'Team': 'Chelsea'")
	assert.Equal(t, ai.DefaultModel, rt.last.Model)
}

func TestRunHaltsOnMissingColumnsBeforeGeneration(t *testing.T) {
	rt := &stubRuntime{deltas: []string{"never"}}
	_, err := newPipeline(rt).Run(context.Background(), Request{
		FileName:   "teams.csv",
		Data:       []byte("Team,Goals\nArsenal,2\nChelsea,1\n"),
		ReportType: "Player Report",
	})
	var verr *validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Missing required columns for Player Report: Player", verr.Message)
	assert.Zero(t, rt.calls)
}

func TestRunRejectsUnsupportedFile(t *testing.T) {
	rt := &stubRuntime{}
	_, err := newPipeline(rt).Run(context.Background(), Request{FileName: "events.xlsx", Data: []byte("x"), ReportType: "Match Report"})
	var verr *validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Unsupported file type. Please upload a CSV file.", verr.Message)
	assert.Zero(t, rt.calls)
}

func TestRunUnknownSubject(t *testing.T) {
	rt := &stubRuntime{}
	_, err := newPipeline(rt).Run(context.Background(), Request{
		FileName: "events.csv", Data: []byte(eventsCSV), ReportType: "Player Report", Subject: "Henry",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Henry")
	assert.Zero(t, rt.calls)
}

func TestRunGenerationFailure(t *testing.T) {
	rt := &stubRuntime{deltas: []string{"## Overview\n"}, err: errors.New("stream dropped")}
	out, err := newPipeline(rt).Run(context.Background(), Request{
		FileName: "events.csv", Data: []byte(eventsCSV), ReportType: "Match Report", Visuals: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "❌ Error generating report: stream dropped", out.GenerationError)
	assert.Equal(t, "the match", out.Subject())
	assert.Empty(t, out.Blocks)
}

func TestPrepareWarnsAboutMissingCoordinates(t *testing.T) {
	p := newPipeline(&stubRuntime{})
	prep, err := p.Prepare(Request{
		FileName:   "players.csv",
		Data:       []byte("Player,Team,Goals\nSaka,Arsenal,1\nRice,Arsenal,0\n"),
		ReportType: "Player Report",
		Visuals:    true,
	})
	require.NoError(t, err)
	assert.Contains(t, prep.Warnings, VizColumnsWarning)
	assert.Equal(t, "Saka", prep.Selection.Subject)
	assert.Equal(t, "player_report_Saka.txt", prep.Filename)
	assert.Contains(t, prep.UserPrompt, "## SUGGESTED VISUALIZATIONS")

	prep, err = p.Prepare(Request{
		FileName:   "players.csv",
		Data:       []byte("Player,Team,Goals\nSaka,Arsenal,1\nRice,Arsenal,0\n"),
		ReportType: "Player Report",
	})
	require.NoError(t, err)
	assert.NotContains(t, prep.Warnings, VizColumnsWarning)
}

func TestPrepareDropsSensitiveColumns(t *testing.T) {
	prep, err := newPipeline(&stubRuntime{}).Prepare(Request{
		FileName:   "players.csv",
		Data:       []byte("Player,Email,Player ID,Goals\nSaka,s@a.com,7,1\nRice,r@a.com,41,0\n"),
		ReportType: "Match Report",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Email"}, prep.Removed)
	assert.False(t, prep.Table.Has("Email"))
	assert.True(t, prep.Table.Has("Player ID"))
	assert.NotContains(t, prep.UserPrompt, "s@a.com")
}
