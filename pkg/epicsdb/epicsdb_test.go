package epicsdb

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile(t *testing.T) {
	recs, err := ParseFile(filepath.Join("testdata", "ioc", "motor.db"))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Sec-Sub1:Mot-Axis-01:SP", recs[0].Name)
	assert.Equal(t, "ao", recs[0].Type)
	assert.Equal(t, map[string]string{"DESC": "Setpoint", "EGU": "mm"}, recs[0].Fields)
	assert.Equal(t, 2, recs[0].Line)
	assert.Equal(t, "Sec-Sub1:Mot-Axis-01:SP CP", recs[1].Fields["INP"])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name, content, msg string
	}{
		{"bad record", `record(ai "X")`, "Did not find the new record"},
		{"bad field", "record(ai, \"X\")\nfield(VAL)", "Did not find the new field"},
		{"orphan field", `field(VAL, 1)`, "did not start a record"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.content), "inline.db")
			var pe *ParsingError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Contains(t, pe.Msg, tt.msg)
			assert.Equal(t, "inline.db", pe.File)
		})
	}
}

func TestParse_CommentsAndRedefinition(t *testing.T) {
	recs, err := Parse(strings.NewReader(`
  # record(ai, "Commented")
record(calc, "A")
field(CALC, "1")
field(CALC, "2")
`), "inline.db")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2", recs[0].Fields["CALC"])
}

func TestFromPaths(t *testing.T) {
	dir := filepath.Join("testdata", "ioc")
	recs, err := FromPaths(context.Background(), []string{dir, filepath.Join(dir, "missing.db")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Sec-Sub1:Mot-Axis-01:SP",
		"Sec-Sub1:Mot-Axis-01:RB",
		"Sec-Sub1:Mot-Axis-01:Moving",
	}, Names(recs))
}

func TestFromPaths_ExplicitFileAnyExtension(t *testing.T) {
	recs, err := FromPaths(context.Background(), []string{filepath.Join("testdata", "ioc", "notes.txt")}, WithParallel(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"Not:A:Record"}, Names(recs))
}

func TestFromPaths_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FromPaths(ctx, []string{filepath.Join("testdata", "ioc")})
	assert.ErrorIs(t, err, context.Canceled)
}
