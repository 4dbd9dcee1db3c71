package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Repr renders a cell as a Python literal, the form prompts show data in.
func Repr(v any) string {
	switch x := v.(type) {
	case nil:
		return "nan"
	case string:
		return reprString(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return reprFloat(x)
	}
	return reprString(fmt.Sprint(v))
}

// ReprList renders values as a Python list literal.
func ReprList(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = Repr(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ReprRecords renders rows as a Python list of dicts.
func ReprRecords(recs []Record) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, rec := range recs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('{')
		for j, f := range rec {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(reprString(f.Name))
			b.WriteString(": ")
			b.WriteString(Repr(f.Value))
		}
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return b.String()
}

func reprFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return e
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

func reprString(s string) string {
	quote := byte('\'')
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		quote = '"'
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(quote):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r > 0x7f && !unicode.IsPrint(r):
			if r <= 0xff {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else if r <= 0xffff {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				fmt.Fprintf(&b, `\U%08x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

// Str renders a cell the way Python's str() does: strings are bare, other
// cells use their literal form.
func Str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return Repr(v)
}
