// Package compiler expands resolved scenario test blocks into executable
// test units.
//
// Every block gives one list of units: one per range point, literal value
// or command, followed by the block's finally statement. An ignored block
// gives a nil list so positions, and therefore identifiers, stay stable.
package compiler

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/ormasoftchile/wetest/pkg/scenario"
	"github.com/ormasoftchile/wetest/pkg/value"
)

// Compiler turns scenarios into test units.
type Compiler struct {
	rnd    *rand.Rand
	logger *zap.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRand sets the random source used to shuffle unit scenarios and
// randomly sorted ranges.
func WithRand(r *rand.Rand) Option {
	return func(c *Compiler) { c.rnd = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{logger: zap.NewNop()}
	for _, fn := range opts {
		fn(c)
	}
	return c
}

func (c *Compiler) shuffle(n int, swap func(i, j int)) {
	if c.rnd != nil {
		c.rnd.Shuffle(n, swap)
		return
	}
	rand.Shuffle(n, swap)
}

// Result is a compiled scenario.
type Result struct {
	Source string
	Config map[string]any
	// Blocks holds the units of each test block in file order. Ignored
	// blocks are nil.
	Blocks [][]*TestData
	// Order is the execution order of Blocks.
	Order []int
}

// Tests returns the units in execution order.
func (r *Result) Tests() []*TestData {
	var out []*TestData
	for _, i := range r.Order {
		out = append(out, r.Blocks[i]...)
	}
	return out
}

// Count returns the number of units.
func (r *Result) Count() int {
	n := 0
	for _, b := range r.Blocks {
		n += len(b)
	}
	return n
}

// Compile expands every test block of sc. Units get their test and subtest
// positions; the scenario position is left to the caller.
func (c *Compiler) Compile(sc scenario.Scenario) *Result {
	cfg := sc.Config
	if cfg == nil {
		cfg = scenario.DefaultConfig()
	}
	log := c.logger.With(zap.String("file", sc.Source))
	log.Debug("Initializing test list")

	res := &Result{Source: sc.Source, Config: cfg}
	for i, raw := range sc.Tests {
		var units []*TestData
		if test, ok := raw.(map[string]any); ok {
			units = c.block(cfg, test, log)
		} else {
			units = []*TestData{{
				TestTitle:    value.Stringify(raw),
				SubtestTitle: NoKind,
				OnFailure:    normalizeOnFailure(cfg["on_failure"], log),
				Err:          invalidTest("test block should be a mapping but got: %s", value.Stringify(raw)),
			}}
		}
		for j, u := range units {
			u.ID = ID{Test: i, Subtest: j}
			u.Source = sc.Source
		}
		res.Blocks = append(res.Blocks, units)
	}
	log.Info("Test list initialized", zap.Int("blocks", len(res.Blocks)), zap.Int("units", res.Count()))

	res.Order = make([]int, len(res.Blocks))
	for i := range res.Order {
		res.Order[i] = i
	}
	if cfg["type"] == scenario.TypeUnit {
		c.shuffle(len(res.Order), func(i, j int) { res.Order[i], res.Order[j] = res.Order[j], res.Order[i] })
	}
	log.Info("Tests will be executed in that order", zap.Any("type", cfg["type"]), zap.Ints("order", res.Order))
	return res
}

// block compiles one test block.
func (c *Compiler) block(cfg, test map[string]any, log *zap.Logger) []*TestData {
	tl := Layers{test, cfg}
	name := optString(test["name"])
	if value.Truthy(tl.Get("ignore")) {
		log.Info("Ignoring test", zap.String("test", name))
		return nil
	}

	prefix := ""
	if p, ok := test["prefix"]; ok && p != nil {
		prefix = value.Stringify(p)
	}
	if value.Truthy(tl.Get("use_prefix")) {
		if p := cfg["prefix"]; p != nil {
			prefix = value.Stringify(p) + prefix
		}
	}

	base := TestData{
		TestTitle:   name,
		Prefix:      prefix,
		TestMessage: optString(test["message"]),
	}
	c.policies(&base, tl, log)

	var units []*TestData
	switch {
	case has(test, "range"):
		units = c.sampled(base, test, KindRange, log)
	case has(test, "values"):
		units = c.sampled(base, test, KindValues, log)
	case has(test, "commands"):
		units = c.commands(base, cfg, test, log)
	case !has(test, "finally"):
		u := base
		u.Retry = 0
		u.Delay = 0
		u.SubtestTitle = NoKind
		units = append(units, &u)
	}

	if fin, ok := test["finally"]; ok {
		units = append(units, c.final(base, test, fin))
	}
	return units
}

// policies sets the inherited run settings of u from layers.
func (c *Compiler) policies(u *TestData, l Layers, log *zap.Logger) {
	u.OnFailure = normalizeOnFailure(l.Get("on_failure"), log)
	u.Skip = value.Truthy(l.Get("skip"))

	retry, err := normalizeRetry(l.Get("retry"))
	if err != nil {
		u.Err = err
	}
	u.Retry = retry

	if d, ok := l.Lookup("delay"); ok {
		f, isNum := value.Float(d)
		if !isNum || !value.IsNumber(d) {
			u.Err = invalidTest("delay should be a number but got: %s", value.Stringify(d))
		}
		u.Delay = f
	}

	if m, ok := l.Lookup("margin"); ok {
		f, isNum := value.Float(m)
		if !isNum {
			u.Err = invalidTest("margin should be a number but got: %s", value.Stringify(m))
		} else {
			f /= 100
			u.Margin = &f
		}
	}
	if d, ok := l.Lookup("delta"); ok {
		f, isNum := value.Float(d)
		if !isNum {
			u.Err = invalidTest("delta should be a number but got: %s", value.Stringify(d))
		} else {
			u.Delta = &f
		}
	}
}

// sampled compiles range and values blocks: one unit per point.
func (c *Compiler) sampled(base TestData, test map[string]any, kind Kind, log *zap.Logger) []*TestData {
	setter := optString(test["setter"])
	getter := optString(test["getter"])
	if setter == "" {
		log.Debug("No setter", zap.String("test", base.TestTitle))
	}
	if getter == "" {
		log.Debug("No getter", zap.String("test", base.TestTitle))
	}

	var points []any
	var err error
	if kind == KindRange {
		points, err = c.rangePoints(test["range"], log)
	} else {
		var ok bool
		points, ok = test["values"].([]any)
		if !ok {
			err = invalidTest("values should be a list but got: %s", value.Stringify(test["values"]))
		}
	}
	if err != nil {
		u := base
		u.Kind = kind
		u.SubtestTitle = NoKind
		u.Err = err
		return []*TestData{&u}
	}

	units := make([]*TestData, 0, len(points))
	for _, p := range points {
		u := base
		u.Kind = kind
		u.Setter, u.Getter = withPrefix(base.Prefix, setter), withPrefix(base.Prefix, getter)
		if setter != "" {
			u.SetValue = p
		}
		if getter != "" {
			u.GetValue = p
		}
		u.SubtestTitle = pointTitle(setter != "", getter != "", p)
		units = append(units, &u)
	}
	return units
}

func (c *Compiler) rangePoints(raw any, log *zap.Logger) ([]any, error) {
	r, ok := raw.(map[string]any)
	if !ok {
		return nil, invalidTest("range should be a mapping but got: %s", value.Stringify(raw))
	}
	spec, err := ParseRange(r)
	if err != nil {
		return nil, err
	}
	points, err := spec.Values()
	if err != nil {
		return nil, err
	}
	if !Order(points, spec.Sort, c.shuffle) {
		log.Error("Unexpected value for `sort` field", zap.String("sort", spec.Sort))
	}
	return points, nil
}

// commands compiles one unit per command that is not ignored.
func (c *Compiler) commands(base TestData, cfg, test map[string]any, log *zap.Logger) []*TestData {
	list, ok := test["commands"].([]any)
	if !ok {
		u := base
		u.Kind = KindCommands
		u.SubtestTitle = NoKind
		u.Err = invalidTest("commands should be a list but got: %s", value.Stringify(test["commands"]))
		return []*TestData{&u}
	}

	var units []*TestData
	for _, raw := range list {
		cmd, ok := raw.(map[string]any)
		if !ok {
			u := base
			u.Kind = KindCommands
			u.SubtestTitle = value.Stringify(raw)
			u.Err = invalidTest("command should be a mapping but got: %s", value.Stringify(raw))
			units = append(units, &u)
			continue
		}
		if value.Truthy(cmd["ignore"]) {
			log.Debug("Ignoring command", zap.String("test", base.TestTitle), zap.Any("command", cmd["name"]))
			continue
		}

		u := base
		u.Err = nil
		u.Margin, u.Delta = nil, nil
		u.Kind = KindCommands
		u.SubtestTitle = optString(cmd["name"])
		u.SubtestMessage = optString(cmd["message"])
		c.policies(&u, Layers{cmd, test, cfg}, log)

		setter, getter := role(cmd, test, "setter"), role(cmd, test, "getter")
		if setter != "" {
			u.SetValue = firstOf(cmd, "value", "set_value")
		}
		if getter != "" {
			u.GetValue = firstOf(cmd, "value", "get_value")
		}
		u.Setter, u.Getter = withPrefix(base.Prefix, setter), withPrefix(base.Prefix, getter)
		units = append(units, &u)
	}
	return units
}

// final compiles the finally statement of a block: a single write.
func (c *Compiler) final(base TestData, test map[string]any, raw any) *TestData {
	u := base
	u.Kind = KindFinally
	u.SubtestTitle = FinalTitle
	u.Delay = 0
	u.Margin, u.Delta = nil, nil
	u.TestMessage = ""

	fin, ok := raw.(map[string]any)
	if !ok {
		u.Err = invalidTest("finally should be a mapping but got: %s", value.Stringify(raw))
		return &u
	}
	setter := optString(fin["setter"])
	if setter == "" {
		setter = optString(test["setter"])
	}
	if setter == "" {
		u.Err = invalidTest("Undefined setter for finally block")
		return &u
	}
	v, ok := fin["value"]
	if !ok {
		u.Err = invalidTest("Undefined value in finally block")
		return &u
	}
	u.Setter = withPrefix(base.Prefix, setter)
	u.SetValue = v
	return &u
}

// normalizeOnFailure lowercases a failure policy. Unknown policies abort.
func normalizeOnFailure(v any, log *zap.Logger) string {
	s, _ := v.(string)
	s = strings.ToLower(s)
	switch s {
	case scenario.Abort, scenario.Pause, scenario.Continue:
		return s
	}
	log.Error("Unexpected on_failure value", zap.String("on_failure", value.Stringify(v)))
	return scenario.Abort
}

// normalizeRetry converts a retry count. Negative and infinite counts mean
// forever.
func normalizeRetry(v any) (int, error) {
	if v == nil {
		return 0, nil
	}
	f, ok := value.Float(v)
	if !ok || math.IsNaN(f) {
		return 0, invalidTest("retry should be a number but got: %s", value.Stringify(v))
	}
	if f < 0 || math.IsInf(f, 1) {
		return RetryForever, nil
	}
	return int(f), nil
}

func pointTitle(set, get bool, v any) string {
	s := value.Stringify(v)
	switch {
	case set && get:
		return s
	case set:
		return " set " + s
	case get:
		return " get " + s
	}
	return "no setter nor getter"
}

func withPrefix(prefix, name string) string {
	if name == "" {
		return ""
	}
	return prefix + name
}

// role reads a setter or getter from the command, or from the test block
// when the command does not name it. An explicit null means no PV.
func role(cmd, test map[string]any, key string) string {
	if v, ok := cmd[key]; ok {
		return optString(v)
	}
	return optString(test[key])
}

// optString stringifies a present value; nil gives "".
func optString(v any) string {
	if v == nil {
		return ""
	}
	return value.Stringify(v)
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

// String renders the result for logs.
func (r *Result) String() string {
	return fmt.Sprintf("%s: %d blocks, %d units", r.Source, len(r.Blocks), r.Count())
}
