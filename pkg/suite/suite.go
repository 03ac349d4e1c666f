// Package suite assembles compiled scenarios into one ordered collection of
// test units, tracks which units are selected to run and collects their
// results.
package suite

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"go.uber.org/zap"

	"github.com/ormasoftchile/wetest/pkg/compiler"
	"github.com/ormasoftchile/wetest/pkg/scenario"
)

// DefaultTitle names a suite built from several root files.
const DefaultTitle = "WeTest Suite"

// SkippedFromFile is the skip reason of units marked skip in their file.
const SkippedFromFile = "Test skipped from file."

// State tells whether a unit will run.
type State string

// Selection states.
const (
	Selected State = "selected"
	Skipped  State = "skipped"
)

// Entry is a unit with its selection state.
type Entry struct {
	Test   *compiler.TestData
	State  State
	Reason string
	// Scenario indexes Suite.Scenarios.
	Scenario int
}

// ScenarioInfo is the display config of one compiled scenario.
type ScenarioInfo struct {
	Index  int
	Name   string
	Type   string
	Source string
	Config map[string]any
	Result *compiler.Result
}

// Suite is an ordered, identifiable collection of test units.
type Suite struct {
	Title     string
	Scenarios []ScenarioInfo

	entries []*Entry
	index   map[compiler.ID]*Entry

	mu      sync.Mutex
	results map[compiler.ID]Result
	logger  *zap.Logger
}

type options struct {
	compiler *compiler.Compiler
	logger   *zap.Logger
	title    string
}

// Option configures Assemble.
type Option func(*options)

// WithCompiler sets the compiler used for every scenario.
func WithCompiler(c *compiler.Compiler) Option {
	return func(o *options) { o.compiler = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTitle overrides the suite title.
func WithTitle(t string) Option {
	return func(o *options) { o.title = t }
}

// Assemble compiles the scenarios of every root document, in order, and
// assigns each unit its scenario position.
func Assemble(docs []*scenario.Document, opts ...Option) (*Suite, error) {
	o := options{logger: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.compiler == nil {
		o.compiler = compiler.New(compiler.WithLogger(o.logger.Named("compiler")))
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("assemble suite: no scenario file")
	}

	s := &Suite{
		Title:   o.title,
		index:   make(map[compiler.ID]*Entry),
		results: make(map[compiler.ID]Result),
		logger:  o.logger,
	}
	if s.Title == "" {
		s.Title = title(docs)
	}

	for _, doc := range docs {
		for _, sc := range doc.Scenarios {
			if sc.Config == nil {
				o.logger.Warn("Tests without config are not run", zap.String("file", sc.Source))
				continue
			}
			idx := len(s.Scenarios)
			res := o.compiler.Compile(sc)
			info := ScenarioInfo{
				Index:  idx,
				Name:   stringOr(sc.Config["name"], scenario.DefaultName),
				Type:   stringOr(sc.Config["type"], ""),
				Source: sc.Source,
				Config: sc.Config,
				Result: res,
			}
			s.Scenarios = append(s.Scenarios, info)

			for _, u := range res.Tests() {
				u.ID.Scenario = idx
				e := &Entry{Test: u, State: Selected, Scenario: idx}
				if u.Skip {
					e.State, e.Reason = Skipped, SkippedFromFile
				}
				s.entries = append(s.entries, e)
				s.index[u.ID] = e
				o.logger.Debug("Add test", zap.Stringer("id", u.ID), zap.String("desc", u.Desc()))
			}
		}
	}

	o.logger.Info("Created tests suite", zap.Int("tests", len(s.entries)), zap.String("title", s.Title))
	for _, sc := range s.Scenarios {
		o.logger.Info("Loaded scenario", zap.String("kind", typeLabel(sc.Type)), zap.String("name", sc.Name))
	}
	return s, nil
}

// title names the suite after its only root file.
func title(docs []*scenario.Document) string {
	if len(docs) != 1 {
		return DefaultTitle
	}
	if n, ok := docs[0].Content["name"].(string); ok && n != "" {
		return n
	}
	if c := docs[0].Config(); c != nil {
		if n, ok := c["name"].(string); ok && n != "" {
			return n
		}
	}
	return DefaultTitle
}

func typeLabel(t string) string {
	switch strings.ToLower(t) {
	case scenario.TypeUnit:
		return "unit tests (random)"
	case scenario.TypeFunctional:
		return "functional (ordered)"
	}
	return t + " (??)"
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// Entries returns every unit in execution order.
func (s *Suite) Entries() []*Entry { return s.entries }

// Tests returns every unit in execution order.
func (s *Suite) Tests() []*compiler.TestData {
	out := make([]*compiler.TestData, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Test
	}
	return out
}

// Lookup finds a unit by identifier.
func (s *Suite) Lookup(id compiler.ID) (*Entry, bool) {
	e, ok := s.index[id]
	return e, ok
}

// Count returns the number of units.
func (s *Suite) Count() int { return len(s.entries) }

// Select marks a skipped unit to run again. Unknown ids are ignored.
func (s *Suite) Select(id compiler.ID) {
	if e, ok := s.index[id]; ok && e.State == Skipped {
		e.State, e.Reason = Selected, ""
	}
}

// Skip marks a selected unit as skipped. Unknown ids are ignored.
func (s *Suite) Skip(id compiler.ID, reason string) {
	if e, ok := s.index[id]; ok && e.State == Selected {
		e.State, e.Reason = Skipped, reason
	}
}

// ApplySelection runs exactly the units in ids: selected units outside ids
// are skipped with reason and skipped units inside ids are selected.
func (s *Suite) ApplySelection(ids []compiler.ID, reason string) {
	keep := make(map[compiler.ID]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	var wasSkipped []compiler.ID
	for _, e := range s.entries {
		if e.State == Skipped {
			wasSkipped = append(wasSkipped, e.Test.ID)
		}
	}
	for _, e := range s.entries {
		if e.State == Selected && !keep[e.Test.ID] {
			s.Skip(e.Test.ID, reason)
		}
	}
	for _, id := range wasSkipped {
		if keep[id] {
			s.Select(id)
		}
	}
}

// SelectWhere keeps the units for which the boolean expression holds, as
// ApplySelection does. The expression sees the fields listed by Env.
func (s *Suite) SelectWhere(condition, reason string) ([]compiler.ID, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return nil, fmt.Errorf("empty selection")
	}
	program, err := expr.Compile(condition, expr.Env(Env(&compiler.TestData{}, ScenarioInfo{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile selection %q: %w", condition, err)
	}

	var ids []compiler.ID
	for _, e := range s.entries {
		env := Env(e.Test, s.Scenarios[e.Scenario])
		out, err := expr.Run(program, env)
		if err != nil {
			return nil, fmt.Errorf("eval selection %q on %s: %w", condition, e.Test.ID, err)
		}
		if ok, _ := out.(bool); ok {
			ids = append(ids, e.Test.ID)
		}
	}
	s.ApplySelection(ids, reason)
	return ids, nil
}

// Env is the variable set a selection expression is evaluated against.
func Env(t *compiler.TestData, sc ScenarioInfo) map[string]any {
	return map[string]any{
		"id":         t.ID.String(),
		"scenario":   t.ID.Scenario,
		"test":       t.ID.Test,
		"subtest":    t.ID.Subtest,
		"title":      t.TestTitle,
		"subtitle":   t.SubtestTitle,
		"desc":       t.Desc(),
		"kind":       string(t.Kind),
		"setter":     t.Setter,
		"getter":     t.Getter,
		"skip":       t.Skip,
		"on_failure": t.OnFailure,
		"retry":      t.Retry,
		"delay":      t.Delay,
		"name":       sc.Name,
		"type":       sc.Type,
		"source":     sc.Source,
	}
}

// Selected returns the units that will run, in execution order.
func (s *Suite) Selected() []*compiler.TestData {
	var out []*compiler.TestData
	for _, e := range s.entries {
		if e.State == Selected {
			out = append(out, e.Test)
		}
	}
	return out
}

// Status of a unit reported by the execution engine.
type Status string

// Unit statuses.
const (
	StatusRunning  Status = "running"
	StatusRetrying Status = "retrying"
	StatusSkipped  Status = "skipped"
	StatusError    Status = "error"
	StatusFailed   Status = "failed"
	StatusSuccess  Status = "success"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusRunning, StatusRetrying, StatusSkipped, StatusError, StatusFailed, StatusSuccess}

// ParseStatus reads a status name. "retry" is accepted for retrying.
func ParseStatus(s string) (Status, error) {
	switch v := Status(strings.ToLower(strings.TrimSpace(s))); v {
	case StatusRunning, StatusRetrying, StatusSkipped, StatusError, StatusFailed, StatusSuccess:
		return v, nil
	case "retry":
		return StatusRetrying, nil
	}
	return "", fmt.Errorf("unknown test status %q", s)
}

// Result is the latest report of the execution engine for one unit.
type Result struct {
	ID       compiler.ID   `json:"id"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Trace    string        `json:"trace,omitempty"`
}

// Record stores the latest result of a unit. It is safe for concurrent use.
func (s *Suite) Record(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.ID] = r
	s.logger.Debug("Test status", zap.Stringer("id", r.ID), zap.String("status", string(r.Status)),
		zap.Duration("duration", r.Duration))
}

// Status returns the latest result of a unit.
func (s *Suite) Status(id compiler.ID) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	return r, ok
}

// Summary counts units per latest status.
func (s *Suite) Summary() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Status]int, len(Statuses))
	for _, r := range s.results {
		out[r.Status]++
	}
	return out
}
