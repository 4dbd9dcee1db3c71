package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeBlocksAfterMarker(t *testing.T) {
	text := "Report\n```python\nignored()\n```\n" + Marker + "\n```python\n\nfirst()\n```\ntext\n```python\nsecond()\n```"
	assert.Equal(t, []string{"first()", "second()"}, CodeBlocks(text, Marker))
}

func TestCodeBlocksWithoutMarkerScansAll(t *testing.T) {
	text := "```python\na = 1\n```\n```python\n   \n```\n```js\nno()\n```"
	assert.Equal(t, []string{"a = 1"}, CodeBlocks(text, Marker))
}

func TestCodeBlocksNone(t *testing.T) {
	assert.Empty(t, CodeBlocks("plain report", Marker))
	assert.Empty(t, CodeBlocks(Marker+"\nno code here", Marker))
}

func TestSplit(t *testing.T) {
	prose, viz := Split("intro\n"+Marker+"\nA\n"+Marker+"\nB", Marker)
	assert.Equal(t, "intro\n", prose)
	assert.Equal(t, Marker+"\nA\n"+Marker+"\nB", viz)

	prose, viz = Split("only prose", Marker)
	assert.Equal(t, "only prose", prose)
	assert.Empty(t, viz)
}

func TestCleanProse(t *testing.T) {
	in := "Heading\n```python\nplt.show()\n```\nmiddle\n```\nraw\n```\nend"
	assert.Equal(t, "Heading\n\nmiddle\n\nend", CleanProse(in))
}
