// Package extract pulls visualization code blocks out of generated reports
// and cleans the prose around them.
package extract

import (
	"regexp"
	"strings"
)

// Marker opens the section of a response that carries code blocks.
const Marker = "## SUGGESTED VISUALIZATIONS"

var (
	pythonBlock = regexp.MustCompile("(?s)```python(.*?)```")
	pythonFence = regexp.MustCompile("```python[\\s\\S]*?```")
	anyFence    = regexp.MustCompile("```[\\s\\S]*?```")
)

// CodeBlocks returns the trimmed, non-empty python blocks found after the
// first marker, in order. Without a marker the whole text is scanned.
func CodeBlocks(text, marker string) []string {
	if i := strings.Index(text, marker); marker != "" && i >= 0 {
		text = text[i:]
	}
	var out []string
	for _, m := range pythonBlock.FindAllStringSubmatch(text, -1) {
		if block := strings.TrimSpace(m[1]); block != "" {
			out = append(out, block)
		}
	}
	return out
}

// Split cuts text at the first marker. viz is empty when the marker is
// absent; otherwise it starts with the marker.
func Split(text, marker string) (prose, viz string) {
	if marker == "" {
		return text, ""
	}
	i := strings.Index(text, marker)
	if i < 0 {
		return text, ""
	}
	return text[:i], text[i:]
}

// CleanProse strips fenced blocks from the written report, python ones
// first.
func CleanProse(prose string) string {
	prose = pythonFence.ReplaceAllString(prose, "")
	return anyFence.ReplaceAllString(prose, "")
}
