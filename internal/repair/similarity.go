package repair

import "github.com/pmezard/go-difflib/difflib"

// DefaultThreshold is the minimum similarity ratio for a column fix.
const DefaultThreshold = 0.6

// Closest returns the candidate most similar to name whose ratio is at least
// threshold. Ties go to the lexicographically greatest candidate.
func Closest(name string, candidates []string, threshold float64) (string, bool) {
	best, bestScore, found := "", 0.0, false
	for _, c := range candidates {
		score := Ratio(c, name)
		if score < threshold {
			continue
		}
		if !found || score > bestScore || (score == bestScore && c > best) {
			best, bestScore, found = c, score, true
		}
	}
	return best, found
}

// Ratio is difflib's SequenceMatcher ratio 2*M/T over the runes of a and b,
// with b as the indexed sequence, the way get_close_matches scores a
// candidate a against the word b.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(runeStrings(a), runeStrings(b)).Ratio()
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
