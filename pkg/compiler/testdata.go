package compiler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NoKind is the subtest title of a block that declares no test kind.
const NoKind = "Missing test kind (values, range or commands)"

// FinalTitle is the subtest title of a finally statement.
const FinalTitle = "Final statement"

// RetryForever marks a test retried until it passes.
const RetryForever = -1

// Kind is the declaration a unit was compiled from.
type Kind string

// Test kinds.
const (
	KindRange    Kind = "range"
	KindValues   Kind = "values"
	KindCommands Kind = "commands"
	KindFinally  Kind = "finally"
	KindNone     Kind = ""
)

// Sentinel errors for defective units. They are reported when the unit runs.
var (
	ErrEmptyTest        = errors.New("empty test")
	ErrInconsistentTest = errors.New("inconsistent test")
	ErrInvalidTest      = errors.New("invalid test")
)

// TestError describes a defective unit.
type TestError struct {
	Kind error
	Msg  string
}

func (e *TestError) Error() string { return e.Msg }

func (e *TestError) Unwrap() error { return e.Kind }

func emptyTest(msg string) *TestError { return &TestError{Kind: ErrEmptyTest, Msg: msg} }

func inconsistentTest(msg string) *TestError {
	return &TestError{Kind: ErrInconsistentTest, Msg: msg}
}

func invalidTest(format string, args ...any) *TestError {
	return &TestError{Kind: ErrInvalidTest, Msg: fmt.Sprintf(format, args...)}
}

// ID locates a unit by scenario, test block and subtest position.
type ID struct {
	Scenario int `json:"scenario"`
	Test     int `json:"test"`
	Subtest  int `json:"subtest"`
}

func (id ID) String() string {
	return fmt.Sprintf("test-%d-%d-%d", id.Scenario, id.Test, id.Subtest)
}

// ParseID reads an identifier written as test-<s>-<t>-<n>.
func ParseID(s string) (ID, error) {
	rest, ok := strings.CutPrefix(s, "test-")
	if !ok {
		return ID{}, fmt.Errorf("invalid test id %q", s)
	}
	parts := strings.Split(rest, "-")
	if len(parts) != 3 {
		return ID{}, fmt.Errorf("invalid test id %q", s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return ID{}, fmt.Errorf("invalid test id %q", s)
		}
		n[i] = v
	}
	return ID{Scenario: n[0], Test: n[1], Subtest: n[2]}, nil
}

// TestData is one executable check: an optional write to Setter followed by
// an optional read of Getter compared with GetValue.
type TestData struct {
	ID           ID     `json:"id"`
	Source       string `json:"source,omitempty"`
	Kind         Kind   `json:"kind,omitempty"`
	TestTitle    string `json:"test_title"`
	SubtestTitle string `json:"subtest_title"`

	OnFailure string `json:"on_failure"`
	// Retry is the number of extra attempts, or RetryForever.
	Retry int  `json:"retry"`
	Skip  bool `json:"skip,omitempty"`

	// Setter and Getter carry the prefix. Empty means absent.
	Setter   string `json:"setter,omitempty"`
	Getter   string `json:"getter,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	SetValue any    `json:"set_value,omitempty"`
	GetValue any    `json:"get_value,omitempty"`

	// Delay is the pause in seconds between the write and the read.
	Delay float64 `json:"delay"`
	// Margin is a relative tolerance (fraction), Delta an absolute one.
	Margin *float64 `json:"margin,omitempty"`
	Delta  *float64 `json:"delta,omitempty"`

	TestMessage    string `json:"test_message,omitempty"`
	SubtestMessage string `json:"subtest_message,omitempty"`

	// Err is a defect found while compiling; see Check.
	Err error `json:"-"`
}

// Desc is the one-line description shown for the unit.
func (t *TestData) Desc() string {
	return strings.ReplaceAll(t.TestTitle+": "+t.SubtestTitle, "\n", " ")
}

// HasSetter reports whether the unit writes a PV.
func (t *TestData) HasSetter() bool { return t.Setter != "" }

// HasGetter reports whether the unit reads a PV.
func (t *TestData) HasGetter() bool { return t.Getter != "" }

// Check returns the defect that makes the unit impossible to run, or nil.
func (t *TestData) Check() error {
	if t.Err != nil {
		return t.Err
	}
	if t.SubtestTitle == NoKind && t.Kind == KindNone {
		return emptyTest("Test has no range, values nor commands.")
	}
	switch {
	case !t.HasSetter() && !t.HasGetter():
		return emptyTest("No setter nor getter set for this test.")
	case t.HasSetter() && t.SetValue == nil:
		return inconsistentTest("[setter error] No value associated to setter.")
	case t.HasGetter() && t.GetValue == nil:
		return inconsistentTest("[getter error] No value associated to getter.")
	case t.SetValue != nil && !t.HasSetter():
		return inconsistentTest("[setter error] No setter associated to set value.")
	case t.GetValue != nil && !t.HasGetter():
		return inconsistentTest("[getter error] No getter associated to get value.")
	}
	return nil
}

// Forever reports whether the unit is retried until it passes.
func (t *TestData) Forever() bool { return t.Retry == RetryForever }

// Attempts is the number of runs allowed, or -1 when unbounded.
func (t *TestData) Attempts() int {
	if t.Forever() {
		return -1
	}
	return t.Retry + 1
}
