package assertions

import (
	"strings"
	"testing"
)

func ptr(f float64) *float64 { return &f }

func TestStringAssertion(t *testing.T) {
	r := Evaluate("PV", "ON", "ON", nil, nil)
	if !r.Passed || r.Type != "string" {
		t.Errorf("expected string pass, got %+v", r)
	}
	r = Evaluate("PV", "ON", "OFF", nil, nil)
	if r.Passed {
		t.Error("expected fail for ON != OFF")
	}
	if r.Message != "Expected PV to be ON, but got OFF" {
		t.Errorf("message = %q", r.Message)
	}
	// numbers are read as text when a string is expected
	r = Evaluate("PV", "2.5", 2.5, nil, nil)
	if !r.Passed {
		t.Errorf("expected pass for 2.5 read as text: %s", r.Message)
	}
}

func TestExactAssertion(t *testing.T) {
	if r := Evaluate("PV", 3, 3.0, nil, nil); !r.Passed {
		t.Errorf("3 == 3.0 should pass: %s", r.Message)
	}
	if r := Evaluate("PV", true, 1, nil, nil); !r.Passed {
		t.Errorf("true == 1 should pass: %s", r.Message)
	}
	r := Evaluate("PV", 3, 4, ptr(0), ptr(0))
	if r.Passed || r.Type != "exact" {
		t.Errorf("zero tolerances compare exactly, got %+v", r)
	}
}

func TestToleranceAssertion(t *testing.T) {
	tests := []struct {
		name          string
		expected      any
		measured      any
		margin, delta *float64
		pass          bool
	}{
		{"margin inside", 100, 109.9, ptr(0.1), nil, true},
		{"margin outside", 100, 111, ptr(0.1), nil, false},
		{"delta inside", 1, 1.4, nil, ptr(0.5), true},
		{"delta outside", 1, 1.6, nil, ptr(0.5), false},
		{"largest wins", 10, 11.5, ptr(0.1), ptr(2), true},
		{"negative expected", -10, -10.9, ptr(0.1), nil, true},
		{"missing reading", 1, nil, nil, ptr(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Evaluate("PV", tt.expected, tt.measured, tt.margin, tt.delta)
			if r.Type != "tolerance" {
				t.Fatalf("type = %s", r.Type)
			}
			if r.Passed != tt.pass {
				t.Errorf("passed = %v, want %v: %s", r.Passed, tt.pass, r.Message)
			}
		})
	}

	r := Evaluate("PV", 100, 120, ptr(0.1), nil)
	if !strings.Contains(r.Message, "±10%") || !strings.Contains(r.Message, "within [90,110]") {
		t.Errorf("message = %q", r.Message)
	}
}

func TestArrayAssertion(t *testing.T) {
	r := Evaluate("WF", []any{1, 2}, []any{1, 2, 0, 0}, nil, nil)
	if !r.Passed {
		t.Errorf("expected zero padding to pass: %s", r.Message)
	}
	r = Evaluate("WF", []any{1, 2}, []any{1, 3}, nil, nil)
	if r.Passed {
		t.Fatal("expected fail for [1, 2] != [1, 3]")
	}
	if !strings.Contains(r.Message, "difference is ['OK', 1.0]") {
		t.Errorf("message = %q", r.Message)
	}
	r = Evaluate("WF", []any{100, 10}, []any{105, 10.4}, ptr(0.1), ptr(0.5))
	if !r.Passed {
		t.Errorf("expected tolerance pass: %s", r.Message)
	}
	r = Evaluate("WF", []any{1, 2, 3}, []any{1, 2}, nil, nil)
	if r.Passed || !strings.Contains(r.Message, "3 elements long, and not 2") {
		t.Errorf("length mismatch not reported: %+v", r)
	}
}

func TestArrayAssertionConversions(t *testing.T) {
	r := Evaluate("WF", []any{"A", "12", "1.5"}, []any{65, 12, 1.5}, nil, nil)
	if !r.Passed {
		t.Errorf("expected character code and numeric strings to pass: %s", r.Message)
	}
	r = Evaluate("WF", []any{7}, 7, nil, nil)
	if !r.Passed {
		t.Errorf("single element waveform read as scalar should pass: %s", r.Message)
	}
	r = Evaluate("WF", []any{1, 2}, 7, nil, nil)
	if r.Err == nil {
		t.Error("expected an error for a scalar reading of a two element array")
	}
	r = Evaluate("WF", []any{"abc"}, []any{1}, nil, nil)
	if r.Err == nil {
		t.Error("expected an error for a non numeric element")
	}
}
