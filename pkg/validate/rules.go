package validate

import (
	"fmt"

	"github.com/ormasoftchile/wetest/pkg/scenario"
	"github.com/ormasoftchile/wetest/pkg/value"
)

// Test kinds, in the order they are reported.
var kinds = []string{"range", "commands", "values"}

var failurePolicies = []string{scenario.Continue, scenario.Pause, scenario.Abort}

// Mandatory checks the rules that make a file unusable. Skipped tests are
// not checked.
func Mandatory(content map[string]any) []*ValidationError {
	return mandatory(content, false)
}

// mandatory checks content; an included file may hold tests without config.
func mandatory(content map[string]any, included bool) []*ValidationError {
	var errs []*ValidationError
	_, hasConfig := content["config"]
	_, hasTests := content["tests"]

	if hasConfig && !hasTests {
		errs = append(errs, errorf(PhaseMandatory, "config", "`config` found but no `tests`"))
	}
	if hasTests && !hasConfig && !included {
		errs = append(errs, errorf(PhaseMandatory, "tests", "`tests` found but no `config`"))
	}

	for _, b := range testBlocks(content) {
		i, test := b.index, b.test
		if value.Truthy(test["skip"]) {
			continue
		}
		if of, ok := test["on_failure"]; ok && !isPolicy(of) {
			errs = append(errs, errorf(PhaseMandatory, fmt.Sprintf("tests[%d].on_failure", i),
				"'%s' requires unknown on_failure mode: %s", value.Stringify(test["name"]), value.Stringify(of)))
		}
	}

	config, ok := content["config"].(map[string]any)
	if !ok {
		return errs
	}

	if name, ok := config["name"]; !ok {
		errs = append(errs, errorf(PhaseMandatory, "config.name", "`name` is mandatory in `config`: %s", value.Stringify(config)))
	} else if _, isStr := name.(string); !isStr {
		errs = append(errs, errorf(PhaseMandatory, "config.name",
			"`name` in `config` is supposed to be a string but got: %s", value.Stringify(name)))
	}

	type check struct {
		field string
		ok    func(any) bool
		want  string
	}
	checks := []check{
		{"type", func(v any) bool { return v == scenario.TypeUnit || v == scenario.TypeFunctional }, "either `unit` or `functional`"},
		{"prefix", isString, "a string"},
		{"use_prefix", isBool, "a boolean"},
		{"delay", value.IsNumber, "a numerical value"},
		{"ignore", isBool, "a boolean"},
		{"skip", isBool, "a boolean"},
		{"on_failure", isPolicy, "either `continue`, `pause` or `abort`"},
		{"retry", value.IsInt, "an integer"},
	}
	for _, c := range checks {
		v, ok := config[c.field]
		if !ok || c.ok(v) {
			continue
		}
		errs = append(errs, errorf(PhaseMandatory, "config."+c.field,
			"`%s` in `config` is supposed to be %s but got: %s", c.field, c.want, value.Stringify(v)))
	}
	return errs
}

// Advisory checks the rules whose violation is reported but does not stop a
// run: test kinds, setter and getter presence, command value fields and
// macro accounting.
func Advisory(doc *scenario.Document) []*ValidationError {
	var errs []*ValidationError

	for _, b := range testBlocks(doc.Content) {
		test := b.test
		if value.Truthy(test["skip"]) {
			continue
		}
		path := fmt.Sprintf("tests[%d]", b.index)
		name := value.Stringify(test["name"])

		var found []any
		for _, k := range kinds {
			if _, ok := test[k]; ok {
				found = append(found, k)
			}
		}
		switch {
		case len(found) == 0:
			errs = append(errs, warningf(PhaseAdvisory, path, "'%s' should have a at least one of range, commands, values", name))
		case len(found) > 1:
			errs = append(errs, warningf(PhaseAdvisory, path, "'%s' should have a uniq kind but has %d (%s)",
				name, len(found), value.Stringify(found)))
		}

		if hasAny(found, "range", "values") && !has(test, "setter") && !has(test, "getter") {
			errs = append(errs, warningf(PhaseAdvisory, path, "'%s' is of kind '%s' but has no setter or getter", name, found[0]))
		}

		if !hasAny(found, "commands") {
			continue
		}
		cmds, _ := test["commands"].([]any)
		for j, raw := range cmds {
			cmd, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			cpath := fmt.Sprintf("%s.commands[%d]", path, j)
			cname := value.Stringify(cmd["name"])
			if has(cmd, "value") && has(cmd, "set_value") {
				errs = append(errs, warningf(PhaseAdvisory, cpath, "'%s'>'%s' should not have a 'value' and a 'set_value'", name, cname))
			}
			if has(cmd, "value") && has(cmd, "get_value") {
				errs = append(errs, warningf(PhaseAdvisory, cpath, "'%s'>'%s' should not have a 'value' and a 'get_value'", name, cname))
			}
			if !has(cmd, "value") && !has(cmd, "get_value") && !has(cmd, "set_value") {
				errs = append(errs, warningf(PhaseAdvisory, cpath, "'%s'>'%s' should have one of 'value', 'set_value' or 'get_value'", name, cname))
			}
		}
	}

	if doc.Macros == nil {
		return errs
	}
	for _, d := range doc.Macros.Unused(doc.SuiteMacros...) {
		errs = append(errs, warningf(PhaseAdvisory, "macros."+d.Name, "Unused macro \"%s\": %s", d.Name, value.Stringify(d.Value)))
	}
	unknown := doc.Macros.Unknown()
	for _, name := range doc.Macros.UnknownNames() {
		n := unknown[name]
		plural := "s"
		if n == 1 {
			plural = ""
		}
		errs = append(errs, warningf(PhaseAdvisory, "", "Unknown macro \"%s\" (%d occurrence%s)", name, n, plural))
	}
	return errs
}

type block struct {
	index int
	test  map[string]any
}

// testBlocks returns the mapping-shaped test blocks with their position.
func testBlocks(content map[string]any) []block {
	var out []block
	tests, _ := content["tests"].([]any)
	for i, t := range tests {
		if m, ok := t.(map[string]any); ok {
			out = append(out, block{index: i, test: m})
		}
	}
	return out
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func hasAny(found []any, names ...string) bool {
	for _, f := range found {
		for _, n := range names {
			if f == n {
				return true
			}
		}
	}
	return false
}

func isPolicy(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, p := range failurePolicies {
		if s == p {
			return true
		}
	}
	return false
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}
