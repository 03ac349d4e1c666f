// Package assertions compares the value read back from a getter PV with the
// value a test expects.
package assertions

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ormasoftchile/wetest/pkg/value"
)

// Result is the outcome of one comparison.
type Result struct {
	Type     string `json:"type"` // string, array, exact, tolerance
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
	// Err is set when the values could not be compared at all.
	Err error `json:"-"`
}

// Evaluate picks the comparison matching the expected value: strings
// compare as text, lists element-wise, numbers exactly unless a margin or
// delta is given.
func Evaluate(pv string, expected, measured any, margin, delta *float64) *Result {
	switch exp := expected.(type) {
	case string:
		return EvalString(pv, exp, measured)
	case []any:
		return EvalArray(pv, exp, measured, margin, delta)
	}
	if isZero(margin) && isZero(delta) {
		return EvalExact(pv, expected, measured)
	}
	return EvalTolerance(pv, expected, measured, margin, delta)
}

// EvalString compares measured, read as text, with expected.
func EvalString(pv, expected string, measured any) *Result {
	actual := asString(measured)
	passed := actual == expected
	msg := fmt.Sprintf("%s is %s", pv, expected)
	if !passed {
		msg = fmt.Sprintf("Expected %s to be %s, but got %s", pv, expected, actual)
	}
	return &Result{Type: "string", Expected: expected, Actual: actual, Passed: passed, Message: msg}
}

// EvalExact compares numbers and booleans for equality.
func EvalExact(pv string, expected, measured any) *Result {
	passed := value.Equal(numeric(expected), numeric(measured))
	msg := fmt.Sprintf("%s is %s", pv, value.Stringify(expected))
	if !passed {
		msg = fmt.Sprintf("Expected %s to be %s, but got %s", pv, value.Stringify(expected), value.Stringify(measured))
	}
	return &Result{
		Type:     "exact",
		Expected: value.Stringify(expected),
		Actual:   value.Stringify(measured),
		Passed:   passed,
		Message:  msg,
	}
}

// EvalTolerance accepts measured within the larger of the relative margin
// and the absolute delta around expected.
func EvalTolerance(pv string, expected, measured any, margin, delta *float64) *Result {
	r := &Result{Type: "tolerance", Expected: value.Stringify(expected), Actual: value.Stringify(measured)}
	exp, ok := value.Float(numeric(expected))
	if !ok {
		exp = math.NaN()
	}
	got, ok := value.Float(numeric(measured))
	if !ok {
		got = math.NaN()
	}

	var byMargin, byDelta float64
	if margin != nil {
		byMargin = math.Abs(exp * *margin)
	}
	if delta != nil {
		byDelta = math.Abs(*delta)
	}
	maxDelta, label := byDelta, fmt.Sprintf("±%.3G", byDelta)
	if byMargin > byDelta {
		maxDelta, label = byMargin, fmt.Sprintf("±%.3G%%", *margin*100)
	}

	r.Passed = exp == got || math.Abs(exp-got) <= maxDelta
	if r.Passed {
		r.Message = fmt.Sprintf("%s is %.3G %s", pv, exp, label)
	} else {
		r.Message = fmt.Sprintf("Expected %s to be %.3G %s (ie. within [%.3G,%.3G]), but got %.3G",
			pv, exp, label, exp-maxDelta, exp+maxDelta, got)
	}
	return r
}

// EvalArray compares a waveform element-wise. Missing expected elements are
// zeros, one-character strings stand for their character code.
func EvalArray(pv string, expected []any, measured any, margin, delta *float64) *Result {
	r := &Result{Type: "array", Expected: value.Stringify(expected)}

	got, ok := measured.([]any)
	if !ok {
		if len(expected) != 1 {
			r.Actual = value.Stringify(measured)
			r.Err = fmt.Errorf("Expected %s to be an array but got %s", pv, r.Actual)
			r.Message = r.Err.Error()
			return r
		}
		got = []any{measured}
	}
	r.Actual = value.Stringify(got)

	want := make([]float64, 0, len(got))
	for _, v := range expected {
		f, err := element(v)
		if err != nil {
			r.Err = fmt.Errorf("%s: %w", pv, err)
			r.Message = r.Err.Error()
			return r
		}
		want = append(want, f)
	}
	for len(want) < len(got) {
		want = append(want, 0)
	}
	if len(want) != len(got) {
		r.Message = fmt.Sprintf("Expected %s to be %d elements long, and not %d: %s", pv, len(want), len(got), r.Actual)
		return r
	}

	label := ""
	if margin != nil {
		label += fmt.Sprintf(" ±%.3G%%", *margin*100)
	}
	if margin != nil && delta != nil {
		label += " or"
	}
	if delta != nil {
		label += fmt.Sprintf(" ±%.3G", *delta)
	}

	diffs := make([]any, len(got))
	r.Passed = true
	for i, g := range got {
		m, ok := value.Float(numeric(g))
		if !ok {
			m = math.NaN()
		}
		if isClose(m, want[i], margin, delta) {
			diffs[i] = "OK"
			continue
		}
		r.Passed = false
		diffs[i] = math.Abs(m - want[i])
	}

	if r.Passed {
		r.Message = fmt.Sprintf("%s is %s%s", pv, value.Stringify(floatsToAny(want)), label)
	} else {
		r.Message = fmt.Sprintf("Expected %s to be %s%s,\nbut got %s,\ndifference is %s",
			pv, value.Stringify(floatsToAny(want)), label, r.Actual, value.Stringify(diffs))
	}
	return r
}

// isClose reports whether measured is equal to expected, within margin
// relative to expected, or within delta absolute.
func isClose(measured, expected float64, margin, delta *float64) bool {
	if measured == expected {
		return true
	}
	d := math.Abs(measured - expected)
	if margin != nil && d <= *margin*math.Abs(expected) {
		return true
	}
	return delta != nil && d <= *delta
}

// element converts an expected waveform element to a number.
func element(v any) (float64, error) {
	if s, ok := v.(string); ok {
		if r := []rune(s); len(r) == 1 {
			return float64(r[0]), nil
		}
		if n, err := strconv.Atoi(s); err == nil {
			return float64(n), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("could not convert string to float: %q", s)
		}
		return f, nil
	}
	f, ok := value.Float(numeric(v))
	if !ok {
		return 0, fmt.Errorf("could not convert %s to float", value.Stringify(v))
	}
	return f, nil
}

// numeric turns booleans into 0 or 1 so they compare like numbers.
func numeric(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func asString(v any) string {
	if b, ok := v.([]byte); ok {
		return strings.TrimRight(string(b), "\x00")
	}
	return value.Stringify(v)
}

func isZero(f *float64) bool { return f == nil || *f == 0 }

func floatsToAny(fs []float64) []any {
	out := make([]any, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}
