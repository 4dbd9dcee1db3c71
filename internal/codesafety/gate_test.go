package codesafety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDangerousCodeIsRejectedByEveryProfile(t *testing.T) {
	snippets := []string{
		"import os\nos.remove('x')",
		"IMPORT   SUBPROCESS",
		"x = eval('1+1')",
		"f = open('/etc/passwd')",
		"__import__('sys')",
		"getattr(df, 'x')",
	}
	for _, p := range []Profile{ProfileNarrow, ProfileStrict} {
		g := NewGate(p)
		for _, code := range snippets {
			v := g.Check(code)
			assert.False(t, v.Safe, "%s: %q", p, code)
			assert.NotEmpty(t, v.Violations, "%s: %q", p, code)
		}
	}
}

func TestStrictReportsEveryMatchInOrder(t *testing.T) {
	v := NewGate(ProfileStrict).Check("import os\nprint(len(df))")
	require.False(t, v.Safe)
	assert.Equal(t, []string{
		`Blocked dangerous pattern: import\s+os`,
		`Blocked dangerous pattern: len\(`,
		`Blocked dangerous pattern: int\(`, // inside print(
		`Blocked dangerous pattern: print\(`,
	}, v.Violations)
	assert.Equal(t, `Blocked dangerous pattern: import\s+os; Blocked dangerous pattern: len\(; Blocked dangerous pattern: int\(; Blocked dangerous pattern: print\(`, v.Reason())
}

func TestCleanCodeIsSafe(t *testing.T) {
	code := "pitch = Pitch()\nfig, ax = pitch.draw()\npitch.scatter(df['x'], df['y'], ax=ax)\nplt.show()"
	for _, p := range []Profile{ProfileNarrow, ProfileStrict} {
		v := NewGate(p).Check(code)
		assert.True(t, v.Safe, p)
		assert.Empty(t, v.Violations)
	}
}

func TestNarrowAllowsBuiltinsAndMethodNames(t *testing.T) {
	code := "n = len(df)\nplt.grid(True)\nplt.hist(df['x'].tolist())\nprint(max(1, 2))"
	assert.True(t, NewGate(ProfileNarrow).Check(code).Safe)

	strict := NewGate(ProfileStrict).Check("plt.grid(True)")
	assert.False(t, strict.Safe, "strict keeps the bare id( match inside grid(")
	assert.Equal(t, []string{`Blocked dangerous pattern: id\(`}, strict.Violations)
}

func TestNarrowPassesAttributeCallsOfBlockedNames(t *testing.T) {
	code := "v = pd.eval('1 + 1')\nr = np.compile('x')"
	assert.True(t, NewGate(ProfileNarrow).Check(code).Safe)

	strict := NewGate(ProfileStrict).Check(code)
	require.False(t, strict.Safe)
	assert.Contains(t, strict.Violations, `Blocked dangerous pattern: eval\(`)
	assert.Contains(t, strict.Violations, `Blocked dangerous pattern: compile\(`)
}

func TestStrictPatternListIsComplete(t *testing.T) {
	assert.Len(t, NewGate(ProfileStrict).Patterns(), 67)
	assert.Len(t, NewGate(ProfileNarrow).Patterns(), 30)
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile("")
	require.NoError(t, err)
	assert.Equal(t, ProfileNarrow, p)
	p, err = ParseProfile(" STRICT ")
	require.NoError(t, err)
	assert.Equal(t, ProfileStrict, p)
	_, err = ParseProfile("loose")
	assert.Error(t, err)
}
