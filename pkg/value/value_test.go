package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "abc", "abc"},
		{"int", 42, "42"},
		{"int64", int64(-3), "-3"},
		{"bool", true, "true"},
		{"nil", nil, "null"},
		{"float integral", 2.0, "2.0"},
		{"float fraction", 0.1, "0.1"},
		{"float small", 0.00001, "1e-05"},
		{"float large", 1e16, "1e+16"},
		{"float below large", 123456789.0, "123456789.0"},
		{"inf", math.Inf(1), "inf"},
		{"neg inf", math.Inf(-1), "-inf"},
		{"list", []any{1, "a", 2.5}, "[1, 'a', 2.5]"},
		{"map", map[string]any{"b": 1, "a": "x"}, "{'a': 'x', 'b': 1}"},
		{"nested", []any{[]any{1}, map[string]any{"k": true}}, "[[1], {'k': true}]"},
		{"quote escaping", []any{"it's"}, "['it''s']"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Stringify(tt.in))
		})
	}
}

func TestStringifyNaN(t *testing.T) {
	assert.Equal(t, "nan", Stringify(math.NaN()))
}

func TestFloatAndInt(t *testing.T) {
	f, ok := Float("1.5")
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)

	_, ok = Float("abc")
	assert.False(t, ok)

	_, ok = Float(true)
	assert.False(t, ok, "booleans are not numbers")

	n, ok := Int(3.9)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = Int("7")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = Int(math.Inf(1))
	assert.False(t, ok)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(0))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy([]any{}))
	assert.True(t, Truthy("false"), "non-empty strings are truthy")
	assert.True(t, Truthy(0.5))
	assert.True(t, Truthy(map[string]any{"a": 1}))
}

func TestNormalize(t *testing.T) {
	in := map[any]any{1: []any{map[any]any{"x": 2}}}
	want := map[string]any{"1": []any{map[string]any{"x": 2}}}
	assert.Equal(t, want, Normalize(in))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(2, 2.0))
	assert.True(t, Equal("a", "a"))
	assert.False(t, Equal("1", 1))
}
