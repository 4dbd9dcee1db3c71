package audit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogKeepsOrderAndCopies(t *testing.T) {
	l := New(nil)
	_, err := uuid.Parse(l.SessionID())
	require.NoError(t, err)

	assert.Equal(t, "No corrections were made.", l.Summary())
	l.Add("first")
	l.Addf("Column fix: '%s' → '%s'", "Players", "Player")
	l.Append("third", "fourth")

	got := l.Entries()
	assert.Equal(t, []string{"first", "Column fix: 'Players' → 'Player'", "third", "fourth"}, got)
	got[0] = "mutated"
	assert.Equal(t, "first", l.Entries()[0])
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, "• first\n• Column fix: 'Players' → 'Player'\n• third\n• fourth", l.Summary())
}

func TestSessionsAreDistinct(t *testing.T) {
	assert.NotEqual(t, New(nil).SessionID(), New(nil).SessionID())
}
