package scenario

import (
	"github.com/invopop/jsonschema"
)

// The types below describe a scenario file after macro substitution. The
// loader keeps files as generic trees; these types exist to reflect the
// JSON schema the validator checks those trees against.

// File is the top-level scenario document. Name titles the suite when the
// file is the only one given.
type File struct {
	Version Version        `yaml:"version" json:"version" jsonschema:"required"`
	Name    string         `yaml:"name,omitempty" json:"name,omitempty"`
	Macros  map[string]any `yaml:"macros,omitempty" json:"macros,omitempty"`
	Config  *Config        `yaml:"config,omitempty" json:"config,omitempty"`
	Tests   []Test         `yaml:"tests,omitempty" json:"tests,omitempty"`
	Include []IncludeEntry `yaml:"include,omitempty" json:"include,omitempty"`
}

// Version is the file format version.
type Version struct {
	Major  int `yaml:"major" json:"major" jsonschema:"required,minimum=0"`
	Minor  int `yaml:"minor" json:"minor" jsonschema:"required,minimum=0"`
	Bugfix int `yaml:"bugfix" json:"bugfix" jsonschema:"required,minimum=0"`
}

// Config holds scenario-wide settings.
type Config struct {
	Name      string  `yaml:"name,omitempty" json:"name,omitempty"`
	Type      string  `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"enum=unit,enum=functional"`
	Prefix    string  `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	UsePrefix bool    `yaml:"use_prefix,omitempty" json:"use_prefix,omitempty"`
	Delay     float64 `yaml:"delay,omitempty" json:"delay,omitempty"`
	Ignore    bool    `yaml:"ignore,omitempty" json:"ignore,omitempty"`
	Skip      bool    `yaml:"skip,omitempty" json:"skip,omitempty"`
	OnFailure string  `yaml:"on_failure,omitempty" json:"on_failure,omitempty" jsonschema:"enum=continue,enum=pause,enum=abort"`
	Retry     int     `yaml:"retry,omitempty" json:"retry,omitempty"`
	Margin    float64 `yaml:"margin,omitempty" json:"margin,omitempty"`
	Delta     float64 `yaml:"delta,omitempty" json:"delta,omitempty"`
}

// Test is one declarative test block. Retry is a number so .inf (retry
// forever) is accepted.
type Test struct {
	Name      string    `yaml:"name" json:"name" jsonschema:"required"`
	Message   string    `yaml:"message,omitempty" json:"message,omitempty"`
	Setter    string    `yaml:"setter,omitempty" json:"setter,omitempty"`
	Getter    string    `yaml:"getter,omitempty" json:"getter,omitempty"`
	Prefix    string    `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	UsePrefix bool      `yaml:"use_prefix,omitempty" json:"use_prefix,omitempty"`
	Delay     float64   `yaml:"delay,omitempty" json:"delay,omitempty"`
	Ignore    bool      `yaml:"ignore,omitempty" json:"ignore,omitempty"`
	Skip      bool      `yaml:"skip,omitempty" json:"skip,omitempty"`
	OnFailure string    `yaml:"on_failure,omitempty" json:"on_failure,omitempty"`
	Retry     float64   `yaml:"retry,omitempty" json:"retry,omitempty"`
	Margin    float64   `yaml:"margin,omitempty" json:"margin,omitempty"`
	Delta     float64   `yaml:"delta,omitempty" json:"delta,omitempty"`
	Range     *Range    `yaml:"range,omitempty" json:"range,omitempty"`
	Values    []any     `yaml:"values,omitempty" json:"values,omitempty"`
	Commands  []Command `yaml:"commands,omitempty" json:"commands,omitempty"`
	Finally   *Finally  `yaml:"finally,omitempty" json:"finally,omitempty"`
}

// Range samples numeric values between Start and Stop.
type Range struct {
	Start        float64 `yaml:"start" json:"start" jsonschema:"required"`
	Stop         float64 `yaml:"stop" json:"stop" jsonschema:"required"`
	Step         float64 `yaml:"step,omitempty" json:"step,omitempty"`
	Lin          int     `yaml:"lin,omitempty" json:"lin,omitempty" jsonschema:"minimum=0"`
	Geom         int     `yaml:"geom,omitempty" json:"geom,omitempty" jsonschema:"minimum=0"`
	IncludeStart bool    `yaml:"include_start,omitempty" json:"include_start,omitempty"`
	IncludeStop  bool    `yaml:"include_stop,omitempty" json:"include_stop,omitempty"`
	Sort         any     `yaml:"sort,omitempty" json:"sort,omitempty"`
}

// Command is one explicit step of a commands test.
type Command struct {
	Name      string  `yaml:"name" json:"name" jsonschema:"required"`
	Message   string  `yaml:"message,omitempty" json:"message,omitempty"`
	Setter    string  `yaml:"setter,omitempty" json:"setter,omitempty"`
	Getter    string  `yaml:"getter,omitempty" json:"getter,omitempty"`
	Value     any     `yaml:"value,omitempty" json:"value,omitempty"`
	SetValue  any     `yaml:"set_value,omitempty" json:"set_value,omitempty"`
	GetValue  any     `yaml:"get_value,omitempty" json:"get_value,omitempty"`
	Delay     float64 `yaml:"delay,omitempty" json:"delay,omitempty"`
	Ignore    bool    `yaml:"ignore,omitempty" json:"ignore,omitempty"`
	Skip      bool    `yaml:"skip,omitempty" json:"skip,omitempty"`
	OnFailure string  `yaml:"on_failure,omitempty" json:"on_failure,omitempty"`
	Retry     float64 `yaml:"retry,omitempty" json:"retry,omitempty"`
	Margin    float64 `yaml:"margin,omitempty" json:"margin,omitempty"`
	Delta     float64 `yaml:"delta,omitempty" json:"delta,omitempty"`
}

// Finally is a write performed once the other subtests of a block ran.
type Finally struct {
	Setter string `yaml:"setter,omitempty" json:"setter,omitempty"`
	Value  any    `yaml:"value" json:"value" jsonschema:"required"`
	Ignore bool   `yaml:"ignore,omitempty" json:"ignore,omitempty"`
}

// IncludeEntry references another scenario file. It is either the literal
// "tests", a path, a list whose first item is a path followed by macro
// mappings, or a mapping with a path key and macro siblings.
type IncludeEntry struct{}

// JSONSchema implements jsonschema.JSONSchemer.
func (IncludeEntry) JSONSchema() *jsonschema.Schema {
	withPath := jsonschema.NewProperties()
	withPath.Set("path", &jsonschema.Schema{Type: "string"})
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{
				Type: "array",
				PrefixItems: []*jsonschema.Schema{
					{Type: "string"},
				},
				Items: &jsonschema.Schema{Type: "object"},
			},
			{
				Type:       "object",
				Properties: withPath,
				Required:   []string{"path"},
			},
		},
	}
}
