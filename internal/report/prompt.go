package report

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/scoutdeck-cli/internal/extract"
)

// PromptInput carries everything BuildPrompt needs.
type PromptInput struct {
	ReportType     string
	SampleData     string
	VisualsEnabled bool
	ColumnsInfo    string
	FileType       FileType
}

const scoutTemplate = `
You are a professional football staff member working for a professional football club.
You have been provided with a table of existing scout reports or qualitative observations (not raw event data).
Your job is to synthesize, summarize, and rephrase the key insights for a %[1]s.

IMPORTANT:
- Do NOT copy-paste the text verbatim from the data.
- Instead, extract the most important points, combine similar observations, and write a concise, professional summary in your own words.
- Avoid repetition and focus on actionable insights.
- Do NOT include any code, code blocks, or visualization sections in the written report.

AVAILABLE DATA COLUMNS:
%[2]s

DATA TO ANALYZE:
%[3]s
`

const eventTemplate = `
You are a professional football staff member working for a professional football club.
Use the data below to write a comprehensive, insightful, and professional %[1]s.

AVAILABLE DATA COLUMNS:
%[2]s

WRITTEN REPORT REQUIREMENTS:
- Write a detailed, professional %[1]s in the style of a football scout/analyst/coach
- Focus on performance insights, key stats, strengths, weaknesses, and tactical observations
- Use bullet points where appropriate for clarity
- Keep the tone analytical but accessible
- Avoid just listing raw numbers — interpret and explain their meaning
- Provide actionable insights and recommendations
- Structure your report with clear sections and headings
- **DO NOT include any Python code, code blocks, or visualization sections/headings in the written report.**
- **DO NOT use headings like 'Visualization', 'Visualization 1', or similar in the written report.**
- **DO NOT include any code blocks in the written report.**

DATA TO ANALYZE:
%[3]s
`

// vizInstruction uses ~~~ for code fences; they are swapped for backticks
// at init.
var vizInstruction = strings.ReplaceAll(`

`+extract.Marker+`
After completing your written report above, generate 1-2 relevant matplotlib/mplsoccer visualizations that support your analysis.

VISUALIZATION GUIDELINES:
- Use ONLY the columns listed above - do not reference non-existent columns
- Do NOT import any modules (plt, Pitch, numpy, pandas are already available)
- Output each visualization as a complete Python code block using ~~~python
- Focus on meaningful insights: heatmaps, pass maps, shot locations, etc.
- Ensure code is complete and executable
- Use the DataFrame 'df' as your data source
- **DO NOT embed code or code blocks in the written report.**
- **DO NOT use 'Visualization' headings in the written report. Only use them after the '`+extract.Marker+`' marker.**

CODE CONSTRAINTS (the code runs in a restricted interpreter):
- No f-strings and no ** operator; build labels with + or % formatting
- Filter with comparisons such as df[df['Event Type'] == 'Shot'] or df['x'] > df['end_x'], combined with & and | (the methods .eq(), .gt() and so on also work)
- groupby takes a single column name
- Supported plotting calls: plt.subplots, plt.figure, ax.scatter, ax.plot, ax.bar, ax.barh, ax.hist, ax.text, ax.annotate, ax.axhline, ax.axvline, ax.legend, ax.set_title, ax.set_xlabel, ax.set_ylabel
- mplsoccer Pitch supports draw, scatter, plot, lines, arrows, annotate, bin_statistic, heatmap, label_heatmap and kdeplot

EXAMPLE CODE BLOCK (after the report):
~~~python
# Create pitch
pitch = Pitch()
fig, ax = pitch.draw()
# Your visualization code here using df['column_name']
plt.show()
~~~

RESPONSE FORMAT:
1. Complete written report (detailed analysis, NO code or visualization sections/headings)
2. After the report, start a new section with '`+extract.Marker+`' and output only the code blocks there.
`, "~~~", "```")

const textOnlyInstruction = `

RESPONSE FORMAT:
Complete written report only - no code blocks or visualization sections needed.
`

// BuildPrompt assembles the user prompt for a report.
func BuildPrompt(in PromptInput) string {
	tmpl := eventTemplate
	if in.FileType == ScoutReport {
		tmpl = scoutTemplate
	}
	var b strings.Builder
	fmt.Fprintf(&b, tmpl, strings.ToLower(in.ReportType), in.ColumnsInfo, in.SampleData)
	if in.VisualsEnabled {
		b.WriteString(vizInstruction)
	} else {
		b.WriteString(textOnlyInstruction)
	}
	return b.String()
}
