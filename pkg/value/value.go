// Package value holds the small set of conversions every stage of the
// scenario pipeline needs: turning decoded YAML values back into text for
// macro substitution, coercing numbers and booleans, and normalising decoded
// trees into JSON-compatible shapes.
package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Stringify renders v the way it is spliced into a string during macro
// substitution. The output is chosen so that re-reading it as YAML yields a
// value of the same kind: floats keep a decimal point, sequences and mappings
// are written in flow style.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case float32:
		return FormatFloat(float64(x))
	case float64:
		return FormatFloat(x)
	case []any, map[string]any, map[any]any:
		return flow(x)
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		return flow(items)
	default:
		return fmt.Sprint(x)
	}
}

// FormatFloat writes f in shortest round-trip form, switching to exponent
// notation below 1e-4 and from 1e16 upward. Integral values keep a ".0"
// suffix so they are not mistaken for integers when parsed back.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	if exp := exponent(e); exp < -4 || exp >= 16 {
		return e
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func exponent(e string) int {
	i := strings.IndexByte(e, 'e')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(e[i+1:])
	if err != nil {
		return 0
	}
	return n
}

func flow(v any) string {
	switch x := v.(type) {
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = flowItem(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = quote(k) + ": " + flowItem(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case map[any]any:
		return flow(Normalize(x))
	}
	return Stringify(v)
}

func flowItem(v any) string {
	if s, ok := v.(string); ok {
		return quote(s)
	}
	return flow(v)
}

// quote wraps s in YAML single quotes.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// IsNumber reports whether v holds an integer or floating point number.
// Booleans are not numbers.
func IsNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// IsInt reports whether v holds an integer type.
func IsInt(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// Float converts numbers and numeric strings to float64.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Int converts v to an int, truncating floats toward zero.
func Int(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err == nil {
			return n, true
		}
	}
	f, ok := Float(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// Truthy applies the usual scripting truthiness: nil, false, zero, empty
// strings and empty collections are false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	if f, ok := Float(v); ok && IsNumber(v) {
		return f != 0
	}
	return true
}

// Normalize converts a decoded YAML tree into JSON-compatible shapes:
// mappings become map[string]any (keys stringified) and nested values are
// normalised recursively.
func Normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[Stringify(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Normalize(val)
		}
		return out
	}
	return v
}

// Equal compares two scalar values, treating integers and floats with the
// same numeric value as equal.
func Equal(a, b any) bool {
	if IsNumber(a) && IsNumber(b) {
		fa, _ := Float(a)
		fb, _ := Float(b)
		return fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b) && fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b)
}
