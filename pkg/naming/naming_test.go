package naming

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, id := range []string{"none", "SARAF", "ess", "rds-81346", ""} {
		_, err := New(id)
		assert.NoError(t, err, id)
	}
	_, err := New("ITER")
	assert.ErrorContains(t, err, `unknown naming "ITER"`)
}

func TestNoNaming(t *testing.T) {
	n, err := New(None)
	require.NoError(t, err)
	parts, err := n.Split("A:B:C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A:B:C"}, parts)
	assert.Equal(t, []string{"A:B:C"}, n.SortKey("A:B:C"))
	assert.Equal(t, "Undefined", n.Name())
}

func TestColonNaming(t *testing.T) {
	n, err := New(ESS)
	require.NoError(t, err)
	parts, err := n.Split("Sec-Sub1:Dis-Dev-01:Signal")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sec-Sub1", "Dis-Dev-01", "Signal"}, parts)

	_, err = n.Split("Sec-Sub1:Signal")
	var ne *Error
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "Sec-Sub1:Signal incompatible with ESS naming.", err.Error())

	assert.Equal(t, []string{"A", "B"}, n.SortKey("A:B"))
}

func TestRDSNaming(t *testing.T) {
	n, err := New(RDS81346)
	require.NoError(t, err)

	tests := []struct {
		pv   string
		want []string
	}{
		{"A1-B1-C1:Temp", []string{"A1", "B1", "C1", "Temp"}},
		{"-A1--SL-B1:Temp", []string{"A1", "SL-B1", "Temp"}},
		{"A1-SL:Temp", []string{"A1", "Temp"}},
	}
	for _, tt := range tests {
		got, err := n.Split(tt.pv)
		require.NoError(t, err, tt.pv)
		assert.Equal(t, tt.want, got, tt.pv)
	}

	_, err = n.Split("A1-B1")
	assert.EqualError(t, err, "A1-B1 incompatible with RDS-81346 naming.")
	_, err = n.Split("A:B:C")
	assert.Error(t, err)
}
