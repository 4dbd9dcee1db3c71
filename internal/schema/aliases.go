// Package schema reconciles provider-specific column names onto the canonical
// names the rest of the tool relies on.
package schema

// Alias maps one raw provider column name onto a canonical name.
type Alias struct {
	Raw       string
	Canonical string
}

// DefaultAliases is applied in order. Raw names are case-sensitive.
var DefaultAliases = []Alias{
	{"Squad", "Team"},
	{"Team Name", "Team"},
	{"Squad Name", "Team"},
	{"Club", "Team"},
	{"Club Name", "Team"},
	{"squadName", "Team"},

	{"Player Name", "Player"},
	{"Player_Name", "Player"},
	{"Name", "Player"},
	{"Full Name", "Player"},
	{"playerName", "Player"},

	{"Position", "Pos"},
	{"Player Position", "Pos"},
	{"Role", "Pos"},

	{"X", "x"},
	{"Y", "y"},
	{"End X", "end_x"},
	{"End Y", "end_y"},
	{"Start X", "start_x"},
	{"Start Y", "start_y"},

	{"Event", "Event Type"},
	{"Action", "Event Type"},
	{"Type", "Event Type"},

	{"Match", "Match ID"},
	{"Game", "Match ID"},
	{"Fixture", "Match ID"},
}

var defaultLookup = func() map[string]string {
	m := make(map[string]string, len(DefaultAliases))
	for _, a := range DefaultAliases {
		if _, ok := m[a.Raw]; !ok {
			m[a.Raw] = a.Canonical
		}
	}
	return m
}()

// Canonical returns the canonical name for raw, or raw itself when unmapped.
func Canonical(raw string) string {
	if c, ok := defaultLookup[raw]; ok {
		return c
	}
	return raw
}

// HasCanonical reports whether any column of names resolves to canonical.
func HasCanonical(names []string, canonical string) bool {
	for _, n := range names {
		if Canonical(n) == canonical {
			return true
		}
	}
	return false
}
