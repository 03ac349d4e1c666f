package validate

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/wetest/pkg/scenario"
)

const header = "version: {major: 1, minor: 2, bugfix: 0}\n"

func load(t *testing.T, files map[string]string, root string) *scenario.Document {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	doc, err := scenario.Load(filepath.Join(dir, root), scenario.WithWorkDir(dir))
	require.NoError(t, err)
	return doc
}

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func messages(errs []*ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Message
	}
	return out
}

func TestValidate_ValidFile(t *testing.T) {
	doc := load(t, map[string]string{"s.yaml": header + `
macros:
  P: "SYS:"
config:
  name: ok
  prefix: $(P)
tests:
  - name: ranged
    setter: SP
    getter: RB
    range: {start: 0, stop: 4, step: 2}
  - name: commanded
    commands:
      - {name: c1, setter: SP, value: 1}
      - {name: c2, getter: RB, get_value: 2}
`}, "s.yaml")

	r := newValidator(t).Validate(doc)
	assert.Empty(t, r.Issues())
	assert.True(t, r.Valid())
	assert.False(t, r.Fatal())
}

func TestMandatory_TestsWithoutConfig(t *testing.T) {
	doc := load(t, map[string]string{"s.yaml": header + "tests:\n  - {name: t, getter: X, values: [1]}\n"}, "s.yaml")
	r := newValidator(t).Validate(doc)
	assert.True(t, r.Fatal())
	assert.Equal(t, []string{"`tests` found but no `config`"}, messages(r.Mandatory))
}

func TestMandatory_ConfigWithoutTests(t *testing.T) {
	errs := Mandatory(map[string]any{"config": map[string]any{"name": "n"}})
	assert.Equal(t, []string{"`config` found but no `tests`"}, messages(errs))
}

func TestMandatory_ConfigTypes(t *testing.T) {
	content := map[string]any{
		"tests": []any{},
		"config": map[string]any{
			"name":       12,
			"type":       "integration",
			"prefix":     3,
			"use_prefix": "yes",
			"delay":      "soon",
			"ignore":     1,
			"skip":       "no",
			"on_failure": "explode",
			"retry":      1.5,
		},
	}
	got := messages(Mandatory(content))
	assert.Equal(t, []string{
		"`name` in `config` is supposed to be a string but got: 12",
		"`type` in `config` is supposed to be either `unit` or `functional` but got: integration",
		"`prefix` in `config` is supposed to be a string but got: 3",
		"`use_prefix` in `config` is supposed to be a boolean but got: yes",
		"`delay` in `config` is supposed to be a numerical value but got: soon",
		"`ignore` in `config` is supposed to be a boolean but got: 1",
		"`skip` in `config` is supposed to be a boolean but got: no",
		"`on_failure` in `config` is supposed to be either `continue`, `pause` or `abort` but got: explode",
		"`retry` in `config` is supposed to be an integer but got: 1.5",
	}, got)
}

func TestMandatory_MissingName(t *testing.T) {
	errs := Mandatory(map[string]any{"tests": []any{}, "config": map[string]any{"type": "unit"}})
	require.Len(t, errs, 1)
	assert.Equal(t, "`name` is mandatory in `config`: {'type': 'unit'}", errs[0].Message)
}

func TestMandatory_OnFailureOfSkippedTestsIgnored(t *testing.T) {
	content := map[string]any{
		"config": map[string]any{"name": "n"},
		"tests": []any{
			map[string]any{"name": "bad", "on_failure": "stop"},
			map[string]any{"name": "skipped", "on_failure": "stop", "skip": true},
		},
	}
	assert.Equal(t, []string{"'bad' requires unknown on_failure mode: stop"}, messages(Mandatory(content)))
}

func TestAdvisory_TestKinds(t *testing.T) {
	doc := load(t, map[string]string{"s.yaml": header + `
config: {name: kinds}
tests:
  - name: none
    getter: X
  - name: both
    getter: X
    values: [1]
    range: {start: 0, stop: 1}
  - name: lonely
    values: [1]
  - name: cmds
    commands:
      - {name: mixed-set, setter: A, value: 1, set_value: 2}
      - {name: mixed-get, getter: A, value: 1, get_value: 2}
      - {name: empty, setter: A}
  - name: skipped
    skip: true
`}, "s.yaml")

	r := newValidator(t).Validate(doc)
	assert.False(t, r.Fatal())
	assert.Equal(t, []string{
		"'none' should have a at least one of range, commands, values",
		"'both' should have a uniq kind but has 2 (['range', 'values'])",
		"'lonely' is of kind 'values' but has no setter or getter",
		"'cmds'>'mixed-set' should not have a 'value' and a 'set_value'",
		"'cmds'>'mixed-get' should not have a 'value' and a 'get_value'",
		"'cmds'>'empty' should have one of 'value', 'set_value' or 'get_value'",
	}, messages(r.Advisory))
}

func TestAdvisory_MacroAccounting(t *testing.T) {
	doc := load(t, map[string]string{"s.yaml": header + `
macros:
  USED: 1
  IDLE: idle
config: {name: macros}
tests:
  - name: t
    getter: $(MISSING)
    values: [$(USED), $(MISSING), "${OTHER}"]
`}, "s.yaml")

	r := newValidator(t).Validate(doc)
	assert.Equal(t, []string{
		`Unused macro "IDLE": idle`,
		`Unknown macro "MISSING" (2 occurrences)`,
		`Unknown macro "OTHER" (1 occurrence)`,
	}, messages(r.Advisory))
	assert.False(t, r.Valid())
}

func TestValidateTree_SuiteMacrosAreExempt(t *testing.T) {
	doc := load(t, map[string]string{
		"child.yaml": header + "config: {name: child}\ntests:\n  - {name: t, getter: $(PV), values: [1]}\n",
		"suite.yaml": header + `
macros:
  PV: "SYS:PV"
include:
  - [child.yaml, {PV: $(PV), EXTRA: 1}]
`,
	}, "suite.yaml")

	reports := newValidator(t).ValidateTree(doc)
	require.Len(t, reports, 2)
	assert.Equal(t, doc.Children[0].Path, reports[0].File, "included files are reported first")
	assert.Equal(t, doc.Path, reports[1].File)

	// EXTRA is unused in the child; PV is known to the suite so it would be
	// exempt there, and the suite's own PV was consumed at the include site.
	assert.Equal(t, []string{`Unused macro "EXTRA": 1`}, messages(reports[0].Advisory))
	assert.Empty(t, reports[1].Advisory)
	assert.False(t, reports.Fatal())
	assert.False(t, reports.Valid())
}

func TestValidateTree_TestsOnlyInclude(t *testing.T) {
	doc := load(t, map[string]string{
		"tests-only.yaml": header + "tests:\n  - {name: borrowed, getter: X, values: [1]}\n",
		"parent.yaml": header + `
config: {name: host}
include: [tests-only.yaml]
tests: []
`,
	}, "parent.yaml")

	reports := newValidator(t).ValidateTree(doc)
	require.Len(t, reports, 2)
	assert.Empty(t, reports[0].Mandatory, "tests run under the including file's config")
	assert.False(t, reports.Fatal())

	// the same file given as a root still needs its own config
	root := load(t, map[string]string{"tests-only.yaml": header + "tests:\n  - {name: borrowed, getter: X, values: [1]}\n"}, "tests-only.yaml")
	assert.True(t, newValidator(t).ValidateTree(root).Fatal())

	// config without tests stays fatal for included files
	assert.Equal(t, []string{"`config` found but no `tests`"},
		messages(mandatory(map[string]any{"config": map[string]any{"name": "n"}}, true)))
}

func TestSchema_ReportsStructuralIssues(t *testing.T) {
	doc := load(t, map[string]string{"s.yaml": header + `
config: {name: schema}
tests:
  - name: t
    getter: X
    values: [1]
    colour: blue
`}, "s.yaml")

	r := newValidator(t).Validate(doc)
	require.NotEmpty(t, r.Schema)
	assert.Equal(t, PhaseSchema, r.Schema[0].Phase)
	assert.Equal(t, "warning", r.Schema[0].Severity)
	assert.False(t, r.Fatal(), "schema issues are advisory")
	assert.False(t, r.Valid())
}

func TestSchema_NonFiniteNumbers(t *testing.T) {
	doc := load(t, map[string]string{"s.yaml": header + `
config: {name: schema}
tests:
  - name: forever
    getter: X
    retry: .inf
    values: [1, .nan, -.inf]
  - name: broken
    getter: X
    values: 3
    unknown_key: 1
`}, "s.yaml")

	r := newValidator(t).Validate(doc)
	var paths []string
	for _, e := range r.Schema {
		assert.NotContains(t, e.Message, "marshal")
		paths = append(paths, e.Path)
	}
	assert.Contains(t, paths, "tests/1/values")
	assert.Contains(t, paths, "tests/1")
	for _, p := range paths {
		assert.NotContains(t, p, "tests/0", "retry .inf and non-finite values are valid")
	}
}

func TestFinite(t *testing.T) {
	in := map[string]any{
		"a": []any{math.Inf(1), math.Inf(-1), math.NaN(), 1.5, "x"},
		"b": map[string]any{"c": math.Inf(1)},
	}
	want := map[string]any{
		"a": []any{math.MaxFloat64, -math.MaxFloat64, 0.0, 1.5, "x"},
		"b": map[string]any{"c": math.MaxFloat64},
	}
	assert.Equal(t, want, finite(in))
	assert.True(t, math.IsInf(in["b"].(map[string]any)["c"].(float64), 1), "input is not modified")
}

func TestWithSchemaFile(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`
type: object
required: [version, owner]
`), 0o644))

	v, err := New(WithSchemaFile(schemaPath))
	require.NoError(t, err)

	doc := load(t, map[string]string{"s.yaml": header + "config: {name: n}\ntests: []\n"}, "s.yaml")
	r := v.Validate(doc)
	require.Len(t, r.Schema, 1)
	assert.Contains(t, r.Schema[0].Error(), "[schema]")
}

func TestWithSchemaFile_Missing(t *testing.T) {
	_, err := New(WithSchemaFile(filepath.Join(t.TempDir(), "none.json")))
	assert.Error(t, err)
}
