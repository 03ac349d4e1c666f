package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/wetest/pkg/macros"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

const header = "version: {major: 1, minor: 2, bugfix: 0}\n"

func TestLoad_DefaultsAndLocalTests(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "s.yaml", header+`
config:
  type: unit
tests:
  - name: t1
    getter: PV
    values: [1, 2]
`)
	doc, err := Load(p)
	require.NoError(t, err)

	cfg := doc.Config()
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultName, cfg["name"])
	assert.Equal(t, "", cfg["prefix"])
	assert.Equal(t, true, cfg["use_prefix"])
	assert.Equal(t, 1, cfg["delay"])
	assert.Equal(t, Continue, cfg["on_failure"], "unit scenarios continue on failure by default")
	assert.Equal(t, 0, cfg["retry"])

	assert.Equal(t, []any{LocalTests}, doc.Content["include"])
	require.Len(t, doc.Scenarios, 1)
	assert.Equal(t, p, doc.Scenarios[0].Source)
	assert.Len(t, doc.Scenarios[0].Tests, 1)
	assert.Equal(t, Version{1, 2, 0}, doc.Version)
}

func TestLoad_FunctionalDefaultsToPause(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "s.yaml", header+"config: {name: f}\ntests: []\n")
	doc, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, Pause, doc.Config()["on_failure"])
	assert.Equal(t, TypeFunctional, doc.Config()["type"])
}

func TestLoad_NoConfigNoDefaults(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "s.yaml", header+"tests:\n  - name: t\n")
	doc, err := Load(p)
	require.NoError(t, err)
	assert.Nil(t, doc.Config())
	assert.False(t, doc.Has("config"))
}

func TestLoad_MacrosSubstituted(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "s.yaml", header+`
macros:
  P: "SYS:"
  N: 5
config:
  name: "scenario $(P)"
  prefix: $(P)
tests:
  - name: t
    getter: ${P}PV
    range: {start: 0, stop: $(N)}
`)
	doc, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "scenario SYS:", doc.Config()["name"])
	assert.Equal(t, "SYS:", doc.Config()["prefix"])
	test := doc.Tests()[0].(map[string]any)
	assert.Equal(t, "SYS:PV", test["getter"])
	assert.Equal(t, 5, test["range"].(map[string]any)["stop"])
	assert.NotContains(t, doc.Content, "macros")
	assert.Empty(t, doc.Macros.Unused())
}

func TestLoad_CommandLineMacrosWin(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "s.yaml", header+`
macros:
  P: file
config:
  name: $(P)
tests: []
`)
	doc, err := Load(p, WithMacros(macros.Def{Name: "P", Value: "cli"}))
	require.NoError(t, err)
	assert.Equal(t, "cli", doc.Config()["name"])
}

func TestLoad_IncludeRelativeToIncludingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sub/child.yaml", header+`
config: {name: child}
tests:
  - name: child test
    getter: $(PV)
    values: [1]
`)
	parent := writeFile(t, dir, "sub/parent.yaml", header+`
config: {name: parent}
include:
  - [child.yaml, {PV: "A:B"}]
  - tests
tests:
  - name: parent test
    getter: X
    values: [1]
`)
	// The working directory holds neither file.
	doc, err := Load(parent, WithWorkDir(t.TempDir()))
	require.NoError(t, err)

	require.Len(t, doc.Scenarios, 2)
	assert.Equal(t, "child", doc.Scenarios[0].Config["name"])
	assert.Equal(t, "parent", doc.Scenarios[1].Config["name"])
	assert.Equal(t, "A:B", doc.Scenarios[0].Tests[0].(map[string]any)["getter"])
	require.Len(t, doc.Children, 1)
	assert.Equal(t, filepath.Join(dir, "sub", "child.yaml"), doc.Children[0].Path)
}

func TestLoad_IncludeMappingEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "child.yaml", header+"config: {name: $(NAME)}\ntests: []\n")
	parent := writeFile(t, dir, "parent.yaml", header+`
include:
  - {path: child.yaml, NAME: from-parent}
`)
	doc, err := Load(parent, WithWorkDir(dir))
	require.NoError(t, err)

	require.Len(t, doc.Scenarios, 1)
	assert.Equal(t, "from-parent", doc.Scenarios[0].Config["name"])
	child := doc.Children[0]
	assert.Contains(t, child.Macros.Used(), "path")
	assert.Equal(t, []macros.Def{{Name: "path", Value: "child.yaml"}, {Name: "NAME", Value: "from-parent"}}, doc.Includes[0].Macros)
}

func TestLoad_IncludeFirstItemMustBePath(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "s.yaml", header+"include:\n  - [{A: 1}]\n")
	_, err := Load(p)
	var ice *InvalidFileContentError
	require.ErrorAs(t, err, &ice)
	assert.Contains(t, ice.Error(), "First item of include should be a file path.")
}

func TestLoad_FileNotFoundListsAttempts(t *testing.T) {
	dir := t.TempDir()
	work := t.TempDir()
	p := writeFile(t, dir, "s.yaml", header+"include: [missing.yaml]\n")
	_, err := Load(p, WithWorkDir(work))

	var fnf *FileNotFoundError
	require.ErrorAs(t, err, &fnf)
	assert.Equal(t, []string{filepath.Join(work, "missing.yaml"), filepath.Join(dir, "missing.yaml")}, fnf.Tried)
	assert.Contains(t, fnf.Error(), "Could not find either of these files:")

	_, err = Load(filepath.Join(dir, "nope.yaml"))
	assert.True(t, errors.As(err, &fnf))
}

func TestLoad_Propagate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "child.yaml", header+"config: {name: $(SHARED)}\ntests: []\n")
	parent := writeFile(t, dir, "parent.yaml", header+`
macros:
  SHARED: shared
include: [child.yaml]
`)

	isolated, err := Load(parent, WithWorkDir(dir))
	require.NoError(t, err)
	assert.Equal(t, "$(SHARED)", isolated.Scenarios[0].Config["name"])
	assert.Equal(t, map[string]int{"SHARED": 1}, isolated.Children[0].Macros.Unknown())
	assert.Equal(t, []macros.Def{{Name: "SHARED", Value: "shared"}}, isolated.Macros.Unused())

	shared, err := Load(parent, WithWorkDir(dir), WithPropagate(true))
	require.NoError(t, err)
	assert.Equal(t, "shared", shared.Scenarios[0].Config["name"])
	assert.Empty(t, shared.Macros.Unused(), "usage in the included file counts for the parent")
	assert.Equal(t, []string{"SHARED"}, shared.Children[0].SuiteMacros)
}

func TestLoad_TestsOnlyIncludeInheritsConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tests-only.yaml", header+"tests:\n  - name: borrowed\n")
	parent := writeFile(t, dir, "parent.yaml", header+`
config: {name: host, prefix: "H:"}
include: [tests-only.yaml]
tests: []
`)
	doc, err := Load(parent, WithWorkDir(dir))
	require.NoError(t, err)
	require.Len(t, doc.Scenarios, 2)
	assert.Equal(t, "host", doc.Scenarios[0].Config["name"])
	assert.Equal(t, "H:", doc.Scenarios[0].Config["prefix"])
}

func TestLoad_MacroCycleIsFatal(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "s.yaml", header+`
macros:
  A: $(B)
  B: $(A)
config: {name: $(A)}
tests: []
`)
	_, err := Load(p)
	var merr *macros.MacroError
	require.ErrorAs(t, err, &merr)
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "s.yaml", "version: {major: 2, minor: 0, bugfix: 0}\nconfig: {}\ntests: []\n")
	_, err := Load(p)
	var ufe *UnsupportedFileFormatError
	require.ErrorAs(t, err, &ufe)
	assert.Contains(t, ufe.Error(), "Scenario version '2.0.0' not supported")
}

func TestLoad_NotAMapping(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "s.yaml", "- a\n- b\n")
	_, err := Load(p)
	var ice *InvalidFileContentError
	assert.ErrorAs(t, err, &ice)
}

func TestSupportsVersion(t *testing.T) {
	supported := []Version{{1, 0, 0}, {1, 1, 0}, {1, 2, 0}, {1, 2, 2}}
	for _, v := range supported {
		assert.NoError(t, SupportsVersion(v, ToolVersion, nil), v.String())
	}
	unsupported := []Version{{0, 0, 0}, {2, 1, 0}, {1, 3, 1}, {1, -1, 0}}
	for _, v := range unsupported {
		var ufe *UnsupportedFileFormatError
		assert.ErrorAs(t, SupportsVersion(v, ToolVersion, nil), &ufe, v.String())
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	require.NoError(t, err)
	assert.Contains(t, string(data), SchemaID)
	assert.Contains(t, string(data), `"on_failure"`)
	assert.Contains(t, string(data), `"include_start"`)
}
