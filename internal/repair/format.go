package repair

import (
	"fmt"
	"regexp"
	"strings"

	"go.starlark.net/syntax"
)

// Formatter rewrites code into canonical layout.
type Formatter interface {
	Format(code string) (string, error)
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(code string) (string, error)

// Format calls f.
func (f FormatterFunc) Format(code string) (string, error) { return f(code) }

var (
	importLine = regexp.MustCompile(`^(\s*)(?:from\s+\S+\s+)?import\s+.*$`)
	blankRun   = regexp.MustCompile(`\n{4,}`)
)

// parseOptions accepts the Python subset generated plotting code uses.
var parseOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// SyntaxFormatter parses code as the sandbox dialect and lays it out
// canonically: every block is indented four spaces per level, continuation
// lines move with their statement, trailing blanks go, runs of blank lines
// collapse to two and the text ends in one newline. Multi-line string
// contents are left alone. Import lines are masked during the parse since
// the sandbox binds those modules.
type SyntaxFormatter struct{}

// Format implements Formatter.
func (SyntaxFormatter) Format(code string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(code, "\r\n", "\n"), "\n")
	masked := make([]string, len(lines))
	for i, ln := range lines {
		ln = strings.TrimRight(strings.ReplaceAll(ln, "\t", "    "), " \f\v")
		lines[i] = ln
		if m := importLine.FindStringSubmatch(ln); m != nil {
			masked[i] = m[1] + "pass"
			continue
		}
		masked[i] = ln
	}
	f, err := parseOptions.Parse("<snippet>", strings.Join(masked, "\n")+"\n", 0)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	reindent(lines, f)
	out := strings.Join(lines, "\n")
	out = blankRun.ReplaceAllString(out, "\n\n\n")
	out = strings.Trim(out, "\n")
	return out + "\n", nil
}

// reindent rewrites leading whitespace in place from the block depth of
// each statement. Lines that start no statement shift by the same amount as
// the statement above them.
func reindent(lines []string, f *syntax.File) {
	depth := map[int32]int{}
	mark := func(line int32, d int) {
		if _, ok := depth[line]; !ok {
			depth[line] = d
		}
	}
	blockDepths(f.Stmts, 0, mark)

	inString := map[int32]bool{}
	syntax.Walk(f, func(n syntax.Node) bool {
		if lit, ok := n.(*syntax.Literal); ok && lit.Token == syntax.STRING {
			start, end := lit.Span()
			for l := start.Line + 1; l <= end.Line; l++ {
				inString[l] = true
			}
		}
		return true
	})

	shift := 0
	for i, ln := range lines {
		no := int32(i + 1)
		body := strings.TrimLeft(ln, " ")
		if inString[no] || body == "" {
			if body == "" && !inString[no] {
				lines[i] = ""
			}
			continue
		}
		cur := len(ln) - len(body)
		want := cur + shift
		if d, ok := depth[no]; ok {
			want = 4 * d
			shift = want - cur
		}
		if want < 0 {
			want = 0
		}
		lines[i] = strings.Repeat(" ", want) + body
	}
}

func blockDepths(stmts []syntax.Stmt, d int, mark func(int32, int)) {
	for _, st := range stmts {
		start, _ := st.Span()
		mark(start.Line, d)
		switch st := st.(type) {
		case *syntax.DefStmt:
			blockDepths(st.Body, d+1, mark)
		case *syntax.ForStmt:
			blockDepths(st.Body, d+1, mark)
		case *syntax.WhileStmt:
			blockDepths(st.Body, d+1, mark)
		case *syntax.IfStmt:
			blockDepths(st.True, d+1, mark)
			if len(st.False) == 0 {
				continue
			}
			if elif, ok := st.False[0].(*syntax.IfStmt); ok && len(st.False) == 1 && elif.If == st.ElsePos {
				blockDepths(st.False, d, mark)
				continue
			}
			mark(st.ElsePos.Line, d)
			blockDepths(st.False, d+1, mark)
		}
	}
}
