// Package macros implements the $(NAME) / ${NAME} substitution engine used
// while loading scenario files.
//
// A Manager keeps the table of known macros together with usage accounting:
// which names were resolved at least once and which referenced names were
// never defined (with occurrence counts). Substitution walks sequences and
// mappings, rewrites tokens inside strings and re-types the resulting text so
// that a macro can inject a number, a boolean or a list.
package macros

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/wetest/pkg/value"
)

// maxDepth bounds the re-scans of text whose substitution spells new
// references. Nested definitions are bounded by cycle detection instead.
const maxDepth = 32

var (
	// tokenRe matches one macro reference. Delimiters are forbidden inside
	// the name so that nested references resolve innermost first.
	tokenRe = regexp.MustCompile(`\$[({][^${}()]*[)}]`)
	nameRe  = regexp.MustCompile(`^\$[({]\s*(\S+)\s*[)}]$`)
)

// Def is one macro definition in declaration order.
type Def struct {
	Name  string
	Value any
}

// table is the copyable state of a Manager.
type table struct {
	Known   map[string]any
	Order   []string
	Used    map[string]bool
	Unknown map[string]int
}

// Manager resolves macros and tracks their usage. It is not safe for
// concurrent use.
type Manager struct {
	tbl    table
	errs   []string
	logger *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for substitution tracing.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New returns an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		tbl: table{
			Known:   map[string]any{},
			Used:    map[string]bool{},
			Unknown: map[string]int{},
		},
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Clone returns an independent copy of the macro table. Collected errors are
// not carried over.
func (m *Manager) Clone() *Manager {
	var tbl table
	if err := deepcopy.Copy(&tbl, &m.tbl); err != nil {
		// Fall back to a shallow copy of each map; values are only read.
		tbl = table{
			Known:   make(map[string]any, len(m.tbl.Known)),
			Order:   slices.Clone(m.tbl.Order),
			Used:    make(map[string]bool, len(m.tbl.Used)),
			Unknown: make(map[string]int, len(m.tbl.Unknown)),
		}
		for k, v := range m.tbl.Known {
			tbl.Known[k] = v
		}
		for k, v := range m.tbl.Used {
			tbl.Used[k] = v
		}
		for k, v := range m.tbl.Unknown {
			tbl.Unknown[k] = v
		}
	}
	if tbl.Known == nil {
		tbl.Known = map[string]any{}
	}
	if tbl.Used == nil {
		tbl.Used = map[string]bool{}
	}
	if tbl.Unknown == nil {
		tbl.Unknown = map[string]int{}
	}
	return &Manager{tbl: tbl, logger: m.logger}
}

// Lookup returns the stored value of a macro.
func (m *Manager) Lookup(name string) (any, bool) {
	v, ok := m.tbl.Known[name]
	return v, ok
}

// Names returns the known macro names in definition order.
func (m *Manager) Names() []string {
	return slices.Clone(m.tbl.Order)
}

// Known returns a copy of the known macro table.
func (m *Manager) Known() map[string]any {
	out := make(map[string]any, len(m.tbl.Known))
	for k, v := range m.tbl.Known {
		out[k] = v
	}
	return out
}

// Used returns the sorted names of macros resolved at least once.
func (m *Manager) Used() []string {
	out := make([]string, 0, len(m.tbl.Used))
	for k := range m.tbl.Used {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Unknown returns referenced but undefined names with their occurrence
// counts.
func (m *Manager) Unknown() map[string]int {
	out := make(map[string]int, len(m.tbl.Unknown))
	for k, v := range m.tbl.Unknown {
		out[k] = v
	}
	return out
}

// UnknownNames returns the undefined names sorted alphabetically.
func (m *Manager) UnknownNames() []string {
	out := make([]string, 0, len(m.tbl.Unknown))
	for k := range m.tbl.Unknown {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Unused returns the known macros never resolved, in definition order,
// leaving out any name listed in exempt.
func (m *Manager) Unused(exempt ...string) []Def {
	var out []Def
	for _, name := range m.tbl.Order {
		if m.tbl.Used[name] || slices.Contains(exempt, name) {
			continue
		}
		out = append(out, Def{Name: name, Value: m.tbl.Known[name]})
	}
	return out
}

// MarkUsed records names as used without resolving them.
func (m *Manager) MarkUsed(names ...string) {
	for _, n := range names {
		m.tbl.Used[n] = true
	}
}

// AddNewMacros stores defs in order. When priorityToKnown is set an existing
// definition is kept; otherwise it is replaced. Each stored value is first
// resolved against the macros already known, without counting forward
// references as unknown.
func (m *Manager) AddNewMacros(defs []Def, priorityToKnown bool) {
	for _, d := range defs {
		if _, exists := m.tbl.Known[d.Name]; exists {
			if priorityToKnown {
				continue
			}
		} else {
			m.tbl.Order = append(m.tbl.Order, d.Name)
		}
		m.tbl.Known[d.Name] = m.substitute(d.Value, false)
	}
}

// Substitute resolves every macro reference inside v. Unknown references are
// left in place and counted.
func (m *Manager) Substitute(v any) any {
	return m.substitute(v, true)
}

// SubstituteQuiet resolves v like Substitute without counting unknown
// references.
func (m *Manager) SubstituteQuiet(v any) any {
	return m.substitute(v, false)
}

// Err returns every problem collected since the Manager was created, or nil.
func (m *Manager) Err() error {
	if len(m.errs) == 0 {
		return nil
	}
	return &MacroError{Problems: slices.Clone(m.errs)}
}

func (m *Manager) substitute(v any, trace bool) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = m.substitute(item, trace)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = m.substitute(item, trace)
		}
		return out
	case map[any]any:
		return m.substitute(value.Normalize(x), trace)
	case string:
		return m.substituteString(x, trace)
	}
	return v
}

func (m *Manager) substituteString(s string, trace bool) any {
	var out any = s
	cur, last := s, s
	for depth := 0; ; depth++ {
		if depth == maxDepth {
			m.recursionIssue([]string{cur})
			break
		}
		text, n := m.expand(cur, nil)
		if n == 0 {
			break
		}
		last = text
		m.logger.Debug("substitute found", zap.String("text", text))
		out = retype(text)
		m.logger.Debug("cast", zap.Any("value", out), zap.String("type", fmt.Sprintf("%T", out)))
		// Substituted text may itself spell new references.
		if str, isStr := out.(string); !isStr || str == cur {
			break
		}
		cur = text
	}
	if trace {
		m.countUnknown(last)
	}
	return out
}

// countUnknown records the undefined references left in s.
func (m *Manager) countUnknown(s string) {
	for _, tok := range tokenRe.FindAllString(s, -1) {
		sub := nameRe.FindStringSubmatch(tok)
		if sub == nil {
			continue
		}
		if _, known := m.tbl.Known[sub[1]]; !known {
			m.tbl.Unknown[sub[1]]++
		}
	}
}

// expand replaces every token of s once. stack holds the names whose values
// are currently being expanded.
func (m *Manager) expand(s string, stack []string) (string, int) {
	count := 0
	out := tokenRe.ReplaceAllStringFunc(s, func(tok string) string {
		count++
		sub := nameRe.FindStringSubmatch(tok)
		if sub == nil {
			m.logger.Debug("invalid macro syntax", zap.String("token", tok))
			return tok
		}
		name := sub[1]
		v, known := m.tbl.Known[name]
		if !known {
			m.logger.Debug("unknown macro", zap.String("token", tok))
			return tok
		}
		m.tbl.Used[name] = true

		text := value.Stringify(v)
		if !tokenRe.MatchString(text) {
			return text
		}
		chain := append(slices.Clip(stack), name)
		if slices.Contains(stack, name) {
			m.recursionIssue(chain)
			return tok
		}
		expanded, _ := m.expand(text, chain)
		return expanded
	})
	return out, count
}

func (m *Manager) recursionIssue(chain []string) {
	msg := "- Recursivity issue with macros: " + strings.Join(chain, " -> ")
	if slices.Contains(m.errs, msg) {
		return
	}
	m.errs = append(m.errs, msg)
}

// retype turns substituted text back into a typed value: YAML first, unless
// the text ends with a colon, then float, then int.
func retype(s string) any {
	if s == "" {
		return s
	}
	var out any = s
	if !strings.HasSuffix(s, ":") {
		var parsed any
		if err := yaml.Unmarshal([]byte(s), &parsed); err == nil {
			out = value.Normalize(parsed)
		}
	}
	if _, isStr := out.(string); !isStr {
		return out
	}
	out = s
	trimmed := strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		out = f
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		out = n
	}
	return out
}

// DefsFrom reads definitions from a mapping or a list of mappings (nested
// lists allowed). Mapping keys are taken in sorted order.
func DefsFrom(v any) ([]Def, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []Def:
		return x, nil
	case []any:
		var out []Def
		for _, item := range x {
			defs, err := DefsFrom(item)
			if err != nil {
				return nil, err
			}
			out = append(out, defs...)
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]Def, 0, len(keys))
		for _, k := range keys {
			out = append(out, Def{Name: k, Value: x[k]})
		}
		return out, nil
	case map[any]any:
		return DefsFrom(value.Normalize(x))
	}
	return nil, &MacroError{Problems: []string{fmt.Sprintf("Input can not be read as a macro: %s", value.Stringify(v))}}
}

// DefsFromNode reads definitions from a YAML node keeping the file order of
// mapping keys.
func DefsFromNode(n *yaml.Node) ([]Def, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return DefsFromNode(n.Content[0])
	case yaml.AliasNode:
		return DefsFromNode(n.Alias)
	case yaml.SequenceNode:
		var out []Def
		for _, item := range n.Content {
			defs, err := DefsFromNode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, defs...)
		}
		return out, nil
	case yaml.MappingNode:
		out := make([]Def, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			var v any
			if err := n.Content[i+1].Decode(&v); err != nil {
				return nil, fmt.Errorf("macro %q: %w", n.Content[i].Value, err)
			}
			out = append(out, Def{Name: n.Content[i].Value, Value: value.Normalize(v)})
		}
		return out, nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
	}
	return nil, &MacroError{Problems: []string{fmt.Sprintf("Input can not be read as a macro: %s", n.Value)}}
}

// MacroError aggregates the problems found during one substitution pass.
type MacroError struct {
	Problems []string
}

func (e *MacroError) Error() string {
	if len(e.Problems) == 1 {
		return "macro error: " + strings.TrimPrefix(e.Problems[0], "- ")
	}
	return "macro errors:\n" + strings.Join(e.Problems, "\n")
}
