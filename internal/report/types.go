// Package report holds the report catalogue, file-type detection, subject
// selection and prompt construction.
package report

import "fmt"

// Type describes one kind of report the service can write.
type Type struct {
	Name            string
	Description     string
	RequiredColumns []string
	SystemPrompt    string
}

// Types lists the supported reports in display order.
var Types = []Type{
	{
		Name:            "Player Report",
		Description:     "Detailed analysis of individual player performance",
		RequiredColumns: []string{"Player"},
		SystemPrompt: `You are a senior professional football scout preparing reports for coaching and recruitment staff. 
Your writing should be concise, insightful, and focused on decision-making. Evaluate players in terms of:
- Technical ability
- Tactical intelligence  
- Physical performance
- Psychological attributes

Use analytical language but avoid unnecessary jargon. Summarize performance without just listing raw stats.`,
	},
	{
		Name:            "Match Report",
		Description:     "Comprehensive analysis of match events and performance",
		RequiredColumns: []string{},
		SystemPrompt: `You are a match analyst writing a post-match report for technical staff. 
Summarize key events, trends, standout performers, and tactical observations using the provided match data. 
Be objective, insightful, and provide interpretation rather than raw numbers.`,
	},
	{
		Name:            "Opposition Report",
		Description:     "Tactical analysis of opponent team and players",
		RequiredColumns: []string{"Team"},
		SystemPrompt: `You are a tactical analyst preparing an opposition scouting report for coaches. 
Your focus is on team shape, strengths, weaknesses, key players, transitions, set pieces, and tendencies. 
Use bullet points where appropriate and provide actionable insights backed by data.`,
	},
}

// Names returns the report names in display order.
func Names() []string {
	out := make([]string, len(Types))
	for i, t := range Types {
		out[i] = t.Name
	}
	return out
}

// Lookup finds a report type by exact name.
func Lookup(name string) (Type, bool) {
	for _, t := range Types {
		if t.Name == name {
			return t, true
		}
	}
	return Type{}, false
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) Type {
	t, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("report: unknown type %q", name))
	}
	return t
}
