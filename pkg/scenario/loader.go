// Package scenario loads WeTest scenario files: YAML decoding, macro
// substitution, include resolution and configuration defaults.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/wetest/pkg/macros"
	"github.com/ormasoftchile/wetest/pkg/value"
)

// LocalTests is the include entry standing for the file's own tests.
const LocalTests = "tests"

// Scenario types.
const (
	TypeUnit       = "unit"
	TypeFunctional = "functional"
)

// Failure policies.
const (
	Abort    = "abort"
	Pause    = "pause"
	Continue = "continue"
)

// DefaultName is given to a scenario whose config has no name.
const DefaultName = "Unnamed scenario."

// Scenario is one resolved {config, tests} unit ready for compilation.
type Scenario struct {
	// Source is the file the tests were read from.
	Source string
	// Config is nil for tests that never met a config.
	Config map[string]any
	Tests  []any
}

// Include is one normalised include entry.
type Include struct {
	// Local marks the file's own tests.
	Local  bool
	Path   string
	Macros []macros.Def
	// FromMapping is set when the entry was written as {path: ..., ...}.
	FromMapping bool
}

// Document is a loaded scenario file.
type Document struct {
	Path    string
	Version Version
	// Content is the substituted document without its macros key.
	Content  map[string]any
	Includes []Include
	// Scenarios lists every {config, tests} unit in include order.
	Scenarios []Scenario
	// Children are the documents loaded for includes, in order.
	Children []*Document
	// Macros is the manager the file was resolved with.
	Macros *macros.Manager
	// SuiteMacros are the names known to the including file.
	SuiteMacros []string
}

// Config returns the file's config mapping, or nil.
func (d *Document) Config() map[string]any {
	c, _ := d.Content["config"].(map[string]any)
	return c
}

// Tests returns the file's own test blocks.
func (d *Document) Tests() []any {
	t, _ := d.Content["tests"].([]any)
	return t
}

// Has reports whether the document defines a top-level key.
func (d *Document) Has(key string) bool {
	_, ok := d.Content[key]
	return ok
}

// Name returns the config name, falling back to the file name.
func (d *Document) Name() string {
	if c := d.Config(); c != nil {
		if n, ok := c["name"].(string); ok {
			return n
		}
	}
	return filepath.Base(d.Path)
}

// Walk visits d and every included document, depth first.
func (d *Document) Walk(fn func(*Document)) {
	fn(d)
	for _, c := range d.Children {
		c.Walk(fn)
	}
}

type options struct {
	macros      []macros.Def
	manager     *macros.Manager
	suiteMacros []string
	propagate   bool
	workDir     string
	logger      *zap.Logger
	toolVersion string
}

// Option configures Load.
type Option func(*options)

// WithMacros seeds the macro table. These definitions win over the ones
// declared in the file.
func WithMacros(defs ...macros.Def) Option {
	return func(o *options) { o.macros = append(o.macros, defs...) }
}

// WithManager resolves the file with an existing macro manager.
func WithManager(m *macros.Manager) Option {
	return func(o *options) { o.manager = m }
}

// WithSuiteMacros exempts names from the unused macro check.
func WithSuiteMacros(names ...string) Option {
	return func(o *options) { o.suiteMacros = append(o.suiteMacros, names...) }
}

// WithPropagate shares the whole macro table with included files.
func WithPropagate(p bool) Option {
	return func(o *options) { o.propagate = p }
}

// WithWorkDir sets the directory relative paths are first resolved against.
func WithWorkDir(dir string) Option {
	return func(o *options) { o.workDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithToolVersion overrides the tool version used for the file version check.
func WithToolVersion(v string) Option {
	return func(o *options) { o.toolVersion = v }
}

// Load reads a scenario file and every file it includes.
func Load(path string, opts ...Option) (*Document, error) {
	o := options{logger: zap.NewNop(), toolVersion: ToolVersion}
	for _, fn := range opts {
		fn(&o)
	}
	if o.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
		o.workDir = wd
	}
	m := o.manager
	if m == nil {
		m = macros.New(macros.WithLogger(o.logger.Named("macros")))
	}
	m.AddNewMacros(o.macros, false)

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(o.workDir, path)
	}
	if !fileExists(abs) {
		return nil, &FileNotFoundError{Path: path, Tried: []string{abs}}
	}
	l := &loader{opts: o}
	return l.load(abs, m, o.suiteMacros)
}

type loader struct {
	opts options
}

func (l *loader) load(path string, m *macros.Manager, suite []string) (*Document, error) {
	log := l.opts.logger.With(zap.String("file", path))
	log.Info("Reading file")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	root, err := decodeNode(bytes.NewReader(data))
	if err != nil {
		return nil, &InvalidFileContentError{Path: path, Msg: "structural decode", Err: err}
	}
	if root == nil || root.Kind != yaml.MappingNode {
		return nil, invalidContent(path, "a scenario file should be a mapping")
	}

	doc := &Document{Path: path, Macros: m, SuiteMacros: suite}

	// Macros are declared before anything else is resolved.
	var includeNode *yaml.Node
	raw := make(map[string]any, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		switch key {
		case "macros":
			defs, err := macros.DefsFromNode(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			m.AddNewMacros(defs, true)
			continue
		case "include":
			includeNode = val
		}
		var v any
		if err := val.Decode(&v); err != nil {
			return nil, &InvalidFileContentError{Path: path, Msg: fmt.Sprintf("decode `%s`", key), Err: err}
		}
		raw[key] = value.Normalize(v)
	}

	content, _ := m.Substitute(raw).(map[string]any)
	if err := m.Err(); err != nil {
		log.Error("Issue when dealing with macros", zap.Error(err))
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info("Read file")
	doc.Content = content

	if err := l.normalizeInclude(doc, includeNode); err != nil {
		return nil, err
	}
	if err := applyDefaults(doc); err != nil {
		return nil, err
	}

	doc.Version, err = versionOf(path, content)
	if err != nil {
		return nil, err
	}
	if err := SupportsVersion(doc.Version, l.opts.toolVersion, log); err != nil {
		return nil, err
	}

	log.Info("Reading scenario file(s)")
	for _, inc := range doc.Includes {
		if inc.Local {
			doc.Scenarios = append(doc.Scenarios, Scenario{
				Source: path,
				Config: doc.Config(),
				Tests:  doc.Tests(),
			})
			continue
		}
		if err := l.include(doc, inc, log); err != nil {
			return nil, err
		}
	}
	log.Debug("Read scenario file(s)", zap.Int("scenarios", len(doc.Scenarios)))
	return doc, nil
}

func (l *loader) include(parent *Document, inc Include, log *zap.Logger) error {
	var child *macros.Manager
	if l.opts.propagate {
		child = parent.Macros.Clone()
	} else {
		child = macros.New(macros.WithLogger(l.opts.logger.Named("macros")))
	}
	if inc.FromMapping {
		child.MarkUsed("path")
	}
	child.AddNewMacros(inc.Macros, false)

	full, err := ResolvePath(inc.Path, l.opts.workDir, filepath.Dir(parent.Path))
	if err != nil {
		return err
	}
	log.Debug("Processing include", zap.String("include", full), zap.Strings("macros", child.Names()))

	doc, err := l.load(full, child, parent.Macros.Names())
	if err != nil {
		return err
	}
	parent.Children = append(parent.Children, doc)
	parent.Macros.MarkUsed(child.Used()...)

	// Tests-only files run under the including file's settings.
	for _, sc := range doc.Scenarios {
		if sc.Config == nil {
			sc.Config = parent.Config()
		}
		parent.Scenarios = append(parent.Scenarios, sc)
	}
	return nil
}

// normalizeInclude parses the substituted include list, keeping the file
// order of macro keys from the YAML node, and appends the local tests entry
// when the file has tests that are not listed explicitly.
func (l *loader) normalizeInclude(doc *Document, node *yaml.Node) error {
	c := doc.Content
	rawList, present := c["include"]
	var list []any
	switch v := rawList.(type) {
	case nil:
	case []any:
		list = v
	default:
		return invalidContent(doc.Path, "`include` should be a list but got: %s", value.Stringify(rawList))
	}
	if !present || list == nil {
		list = []any{}
	}

	hasLocal := false
	for i, entry := range list {
		var n *yaml.Node
		if node != nil && node.Kind == yaml.SequenceNode && i < len(node.Content) {
			n = node.Content[i]
		}
		inc, err := parseInclude(doc.Path, entry, n)
		if err != nil {
			return err
		}
		hasLocal = hasLocal || inc.Local
		doc.Includes = append(doc.Includes, inc)
	}
	if _, ok := c["tests"]; ok && !hasLocal {
		list = append(list, LocalTests)
		doc.Includes = append(doc.Includes, Include{Local: true})
	}
	c["include"] = list
	return nil
}

func parseInclude(path string, entry any, node *yaml.Node) (Include, error) {
	switch v := entry.(type) {
	case string:
		if v == LocalTests {
			return Include{Local: true}, nil
		}
		return Include{Path: v}, nil
	case []any:
		if len(v) == 0 {
			return Include{}, invalidContent(path, "First item of include should be a file path.")
		}
		p, ok := v[0].(string)
		if !ok {
			return Include{}, invalidContent(path, "First item of include should be a file path.")
		}
		inc := Include{Path: p}
		for j, item := range v[1:] {
			var n *yaml.Node
			if node != nil && node.Kind == yaml.SequenceNode && j+1 < len(node.Content) {
				n = node.Content[j+1]
			}
			defs, err := orderedDefs(item, n)
			if err != nil {
				return Include{}, fmt.Errorf("%s: %w", path, err)
			}
			inc.Macros = append(inc.Macros, defs...)
		}
		return inc, nil
	case map[string]any:
		p, ok := v["path"].(string)
		if !ok {
			return Include{}, invalidContent(path, "include entry %s should have a `path`", value.Stringify(v))
		}
		defs, err := orderedDefs(v, node)
		if err != nil {
			return Include{}, fmt.Errorf("%s: %w", path, err)
		}
		return Include{Path: p, Macros: defs, FromMapping: true}, nil
	}
	return Include{}, invalidContent(path, "include entry should be a path but got: %s", value.Stringify(entry))
}

// orderedDefs turns a substituted macro mapping into definitions, ordered as
// the keys appear in node when node is a mapping.
func orderedDefs(resolved any, node *yaml.Node) ([]macros.Def, error) {
	mapping, ok := resolved.(map[string]any)
	if !ok || node == nil || node.Kind != yaml.MappingNode {
		return macros.DefsFrom(resolved)
	}
	defs := make([]macros.Def, 0, len(mapping))
	seen := make(map[string]bool, len(mapping))
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := node.Content[i].Value
		if v, ok := mapping[k]; ok && !seen[k] {
			seen[k] = true
			defs = append(defs, macros.Def{Name: k, Value: v})
		}
	}
	// Keys the node did not spell the same way (merge keys, aliases).
	rest, _ := macros.DefsFrom(mapping)
	for _, d := range rest {
		if !seen[d.Name] {
			defs = append(defs, d)
		}
	}
	return defs, nil
}

// applyDefaults fills the config block of a file that has one.
func applyDefaults(doc *Document) error {
	raw, ok := doc.Content["config"]
	if !ok {
		return nil
	}
	if raw == nil {
		raw = map[string]any{}
	}
	c, ok := raw.(map[string]any)
	if !ok {
		return invalidContent(doc.Path, "`config` should be a mapping but got: %s", value.Stringify(raw))
	}
	setDefault(c, "name", DefaultName)
	setDefault(c, "type", TypeFunctional)
	setDefault(c, "prefix", "")
	setDefault(c, "use_prefix", true)
	setDefault(c, "delay", 1)
	setDefault(c, "ignore", false)
	setDefault(c, "skip", false)
	if c["type"] == TypeUnit {
		setDefault(c, "on_failure", Continue)
	} else {
		setDefault(c, "on_failure", Pause)
	}
	setDefault(c, "retry", 0)
	doc.Content["config"] = c
	return nil
}

func setDefault(m map[string]any, key string, v any) {
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}

// DefaultConfig returns the settings applied to an empty config block.
func DefaultConfig() map[string]any {
	d := &Document{Content: map[string]any{"config": map[string]any{}}}
	_ = applyDefaults(d)
	return d.Config()
}

// ResolvePath finds an include target: absolute or relative to workDir
// first, then relative to the including file's directory.
func ResolvePath(p, workDir, fileDir string) (string, error) {
	first := p
	if !filepath.IsAbs(first) {
		first = filepath.Join(workDir, p)
	}
	first = filepath.Clean(first)
	if fileExists(first) {
		return first, nil
	}
	second := filepath.Clean(filepath.Join(fileDir, p))
	if filepath.IsAbs(p) {
		second = first
	}
	if fileExists(second) {
		return second, nil
	}
	return "", &FileNotFoundError{Path: p, Tried: []string{first, second}}
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// decodeNode reads the first YAML document of r. An empty stream yields nil.
func decodeNode(r io.Reader) (*yaml.Node, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		n := doc.Content[0]
		if n.Kind == yaml.AliasNode {
			n = n.Alias
		}
		return n, nil
	}
	return nil, nil
}
