package sandbox

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"go.starlark.net/syntax"
)

// allowedModules are the libraries whose names the namespace already binds.
var allowedModules = map[string]bool{
	"matplotlib": true,
	"mplsoccer":  true,
	"numpy":      true,
	"pandas":     true,
}

var importStmt = regexp.MustCompile(`^(\s*)(?:import\s+([\w.]+)|from\s+([\w.]+)\s+import\b)`)

// stripImports replaces imports of pre-bound libraries with pass so line
// numbers survive. Importing anything else is an error.
func stripImports(code string) (string, error) {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		m := importStmt.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		for _, mod := range importedModules(line, m) {
			root := strings.SplitN(mod, ".", 2)[0]
			if !allowedModules[root] {
				return "", fmt.Errorf("line %d: module %q is not available; use the pre-loaded plt, df, Pitch, np and pd", i+1, mod)
			}
		}
		lines[i] = m[1] + "pass"
	}
	return strings.Join(lines, "\n"), nil
}

func importedModules(line string, m []string) []string {
	if m[3] != "" {
		return []string{m[3]}
	}
	// import a as x, b.c
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "import"))
	var mods []string
	for _, part := range strings.Split(rest, ",") {
		fields := strings.Fields(part)
		if len(fields) > 0 {
			mods = append(mods, fields[0])
		}
	}
	return mods
}

// compareFunc is the predeclared builtin comparisons are routed through.
const compareFunc = "_compare"

var comparisonNames = map[syntax.Token]string{
	syntax.EQL: "eq", syntax.NEQ: "ne", syntax.GT: "gt", syntax.GE: "ge", syntax.LT: "lt", syntax.LE: "le",
}

type edit struct {
	start, end int
	text       string
}

// rewriteComparisons turns every comparison operator into a call to
// compareFunc, so Series operands compare elementwise. The interpreter's own
// comparison operators return a single bool. Code that does not parse is
// returned unchanged for the interpreter to report.
func rewriteComparisons(code string) string {
	f, err := fileOptions.Parse("snippet.py", code, 0)
	if err != nil {
		return code
	}
	lines := lineStarts(code)
	at := func(p syntax.Position) int { return byteOffset(code, lines, p) }
	var edits []edit
	syntax.Walk(f, func(n syntax.Node) bool {
		b, ok := n.(*syntax.BinaryExpr)
		if !ok {
			return true
		}
		name, ok := comparisonNames[b.Op]
		if !ok {
			return true
		}
		xs, xe := b.X.Span()
		ys, ye := b.Y.Span()
		// keep line breaks between the operands so line numbers survive
		gap := strings.Repeat("\n", strings.Count(code[at(xe):at(ys)], "\n"))
		edits = append(edits,
			edit{at(xs), at(xs), compareFunc + `("` + name + `", `},
			edit{at(xe), at(ys), ", " + gap},
			edit{at(ye), at(ye), ")"},
		)
		return true
	})
	if len(edits) == 0 {
		return code
	}
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	out := code
	for _, e := range edits {
		out = out[:e.start] + e.text + out[e.end:]
	}
	return out
}

func lineStarts(code string) []int {
	starts := []int{0}
	for i := 0; i < len(code); i++ {
		if code[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// byteOffset converts a 1-based line and rune column into an index into code.
func byteOffset(code string, lines []int, p syntax.Position) int {
	if p.Line < 1 || int(p.Line) > len(lines) {
		return len(code)
	}
	off := lines[p.Line-1]
	for col := int32(1); col < p.Col && off < len(code); col++ {
		_, size := utf8.DecodeRuneInString(code[off:])
		off += size
	}
	return off
}
