// Package codesafety screens generated plotting code against a deny-list
// before anything is executed. Pattern matching on source text is a filter,
// not a security boundary: composed or obfuscated expressions slip through.
//
// The narrow profile anchors bare-name patterns such as eval( and compile(
// so method names that merely end in them pass, which also lets attribute
// calls like pd.eval( or np.compile( through. The strict profile blocks
// them. Only the sandbox namespace decides what such calls can reach.
package codesafety

import (
	"fmt"
	"regexp"
	"strings"
)

// Profile names a deny-list.
type Profile string

const (
	// ProfileNarrow blocks imports, I/O, dynamic evaluation and reflection.
	ProfileNarrow Profile = "narrow"
	// ProfileStrict also blocks common builtin calls such as len( and int(,
	// which rejects most real plotting code.
	ProfileStrict Profile = "strict"
)

// dangerousPatterns is the tier every profile blocks, in reporting order.
var dangerousPatterns = []string{
	`import\s+os`,
	`import\s+subprocess`,
	`import\s+sys`,
	`open\(`,
	`eval\(`,
	`exec\(`,
	`__import__`,
	`globals\(`,
	`locals\(`,
	`compile\(`,
	`file\(`,
	`input\(`,
	`raw_input\(`,
	`help\(`,
	`vars\(`,
	`dir\(`,
	`type\(`,
	`getattr\(`,
	`setattr\(`,
	`delattr\(`,
	`hasattr\(`,
	`property\(`,
	`super\(`,
	`staticmethod\(`,
	`classmethod\(`,
	`issubclass\(`,
	`isinstance\(`,
	`callable\(`,
	`hash\(`,
	`id\(`,
}

// builtinPatterns are the broad call shapes only the strict profile blocks.
var builtinPatterns = []string{
	`len\(`,
	`abs\(`,
	`all\(`,
	`any\(`,
	`bin\(`,
	`bool\(`,
	`chr\(`,
	`complex\(`,
	`dict\(`,
	`divmod\(`,
	`enumerate\(`,
	`filter\(`,
	`float\(`,
	`format\(`,
	`frozenset\(`,
	`hex\(`,
	`int\(`,
	`list\(`,
	`map\(`,
	`max\(`,
	`min\(`,
	`next\(`,
	`oct\(`,
	`ord\(`,
	`pow\(`,
	`print\(`,
	`range\(`,
	`repr\(`,
	`reversed\(`,
	`round\(`,
	`set\(`,
	`slice\(`,
	`sorted\(`,
	`str\(`,
	`sum\(`,
	`tuple\(`,
	`zip\(`,
}

// narrowBoundary lists the dangerous-tier patterns that, matched bare, also
// hit harmless method calls (grid( contains id(, .hist( ends in t(). The
// narrow profile anchors them on a word boundary.
var narrowBoundary = map[string]bool{
	`open\(`: true, `eval\(`: true, `exec\(`: true, `compile\(`: true, `file\(`: true,
	`input\(`: true, `help\(`: true, `vars\(`: true, `dir\(`: true, `type\(`: true,
	`hash\(`: true, `id\(`: true, `property\(`: true, `super\(`: true, `callable\(`: true,
}

// Verdict is the outcome of a safety check. Any violation makes it unsafe.
type Verdict struct {
	Safe       bool
	Violations []string
}

// Reason joins the violations the way execution results report them.
func (v Verdict) Reason() string { return strings.Join(v.Violations, "; ") }

type rule struct {
	source string
	re     *regexp.Regexp
}

// Gate checks code against a compiled, ordered deny-list.
type Gate struct {
	profile Profile
	rules   []rule
}

// ParseProfile maps a config value onto a Profile.
func ParseProfile(s string) (Profile, error) {
	switch Profile(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProfileNarrow:
		return ProfileNarrow, nil
	case ProfileStrict:
		return ProfileStrict, nil
	}
	return "", fmt.Errorf("unknown safety profile %q (want narrow or strict)", s)
}

// NewGate compiles the deny-list for a profile.
func NewGate(p Profile) *Gate {
	g := &Gate{profile: p}
	for _, src := range dangerousPatterns {
		expr := src
		if p != ProfileStrict && narrowBoundary[src] {
			expr = `(?:^|[^\w.])` + src
		}
		g.rules = append(g.rules, rule{source: src, re: regexp.MustCompile(`(?i)` + expr)})
	}
	if p == ProfileStrict {
		for _, src := range builtinPatterns {
			g.rules = append(g.rules, rule{source: src, re: regexp.MustCompile(`(?i)` + src)})
		}
	}
	return g
}

// Profile reports which deny-list the gate uses.
func (g *Gate) Profile() Profile { return g.profile }

// Patterns returns the pattern sources in checking order.
func (g *Gate) Patterns() []string {
	out := make([]string, len(g.rules))
	for i, r := range g.rules {
		out[i] = r.source
	}
	return out
}

// Check scans code and reports every matched pattern.
func (g *Gate) Check(code string) Verdict {
	var violations []string
	for _, r := range g.rules {
		if r.re.MatchString(code) {
			violations = append(violations, "Blocked dangerous pattern: "+r.source)
		}
	}
	return Verdict{Safe: len(violations) == 0, Violations: violations}
}
