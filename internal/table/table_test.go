package table

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventsCSV = `Player Name,Squad,X,Y,Minute,Pass OK,Note
Saka,Arsenal,50.5,40,12,True, key pass
Odegaard,Arsenal,,12.5,,False,
Saka,Arsenal,80,NA,30,True,cross
`

func TestReadCSVInfersPandasDtypes(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(eventsCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"Player Name", "Squad", "X", "Y", "Minute", "Pass OK", "Note"}, tbl.Columns())

	want := map[string]DType{
		"Player Name": Object,
		"Squad":       Object,
		"X":           Float64,
		"Y":           Float64,
		"Minute":      Float64, // ints with a null widen
		"Pass OK":     Bool,
		"Note":        Object,
	}
	for name, dt := range want {
		c, ok := tbl.Column(name)
		require.True(t, ok, name)
		assert.Equal(t, dt, c.DType, name)
	}
	minute, _ := tbl.Column("Minute")
	assert.Equal(t, 12.0, minute.Values[0])
	assert.Nil(t, minute.Values[1])
	y, _ := tbl.Column("Y")
	assert.Equal(t, 1, y.NullCount())
}

func TestReadCSVRejectsRaggedRowsAndDuplicates(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)
	_, err = ReadCSV(strings.NewReader("a,a\n1,2\n"))
	assert.Error(t, err)
	_, err = ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestReadCSVStripsByteOrderMark(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("\ufeffPlayer,x\nSaka,50\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Player", "x"}, tbl.Columns())
}

func TestWithColumnCopiesAndLeavesSourceAlone(t *testing.T) {
	src := MustNew(NewColumn("Squad", []any{"A", "B"}), NewColumn("x", []any{int64(1), int64(2)}))
	squad, _ := src.Column("Squad")
	out, err := src.WithColumn("Team", squad)
	require.NoError(t, err)
	assert.False(t, src.Has("Team"))
	team, _ := out.Column("Team")
	team.Values[0] = "changed"
	assert.Equal(t, "A", squad.Values[0])

	_, err = out.WithColumn("Team", squad)
	assert.Error(t, err)
}

func TestFilterHeadTail(t *testing.T) {
	tbl := MustNew(NewColumn("n", []any{int64(1), int64(2), int64(3), int64(4)}))
	f, err := tbl.Filter([]bool{true, false, true, false})
	require.NoError(t, err)
	c, _ := f.Column("n")
	assert.Equal(t, []any{int64(1), int64(3)}, c.Values)
	assert.Equal(t, 2, tbl.Head(2).Len())
	last, _ := tbl.Tail(1).Column("n")
	assert.Equal(t, []any{int64(4)}, last.Values)
	_, err = tbl.Filter([]bool{true})
	assert.Error(t, err)
}

func TestUniqueKeepsFirstAppearance(t *testing.T) {
	c := NewColumn("p", []any{"b", nil, "a", "b", "c", "a"})
	assert.Equal(t, []any{"b", "a", "c"}, c.Unique())
	assert.Equal(t, 3, c.NUnique())
}

func TestRepr(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"Saka", "'Saka'"},
		{"O'Neil", `"O'Neil"`},
		{`it's "x"`, `'it\'s "x"'`},
		{"line\nbreak", `'line\nbreak'`},
		{int64(7), "7"},
		{3.0, "3.0"},
		{0.1, "0.1"},
		{1e16, "1e+16"},
		{0.00001, "1e-05"},
		{math.NaN(), "nan"},
		{nil, "nan"},
		{true, "True"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Repr(tc.in), "%v", tc.in)
	}
}

func TestReprRecords(t *testing.T) {
	tbl := MustNew(
		NewColumn("Player", []any{"Saka"}),
		NewColumn("x", []any{50.0}),
		NewColumn("Minute", []any{int64(12)}),
	)
	assert.Equal(t, "[{'Player': 'Saka', 'x': 50.0, 'Minute': 12}]", ReprRecords(tbl.Records()))
	assert.Equal(t, "[]", ReprRecords(nil))
}

func TestSanitizeDropsSensitiveColumnsAndTrims(t *testing.T) {
	tbl := MustNew(
		NewColumn("Player", []any{"  Saka ", nil}),
		NewColumn("Player ID", []any{int64(1), int64(2)}),
		NewColumn("Email", []any{"a@b", "c@d"}),
		NewColumn("API Key", []any{"k", "k"}),
		NewColumn("Video", []any{"v", "w"}), // contains "id"
	)
	out, removed := Sanitize(tbl, nil)
	assert.Equal(t, []string{"Email", "API Key", "Video"}, removed)
	assert.Equal(t, []string{"Player", "Player ID"}, out.Columns())
	p, _ := out.Column("Player")
	assert.Equal(t, []any{"Saka", nil}, p.Values)

	orig, _ := tbl.Column("Player")
	assert.Equal(t, "  Saka ", orig.Values[0])
	assert.Equal(t, 5, tbl.Width())
}
