// Package validate checks loaded scenario files: a JSON schema phase, the
// mandatory rules whose violation stops a run, and advisory rules that are
// reported without stopping anything.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/wetest/pkg/scenario"
	"github.com/ormasoftchile/wetest/pkg/value"
)

// Validation phases.
const (
	PhaseSchema    = "schema"
	PhaseMandatory = "mandatory"
	PhaseAdvisory  = "advisory"
)

// ValidationError represents a single validation issue with location context.
type ValidationError struct {
	Phase    string `json:"phase"`
	Path     string `json:"path"` // e.g. "tests[0].commands[1]"
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// Report holds the outcome of validating one file.
type Report struct {
	File      string             `json:"file"`
	Schema    []*ValidationError `json:"schema,omitempty"`
	Mandatory []*ValidationError `json:"mandatory,omitempty"`
	Advisory  []*ValidationError `json:"advisory,omitempty"`
}

// Issues returns every issue of the report, schema first.
func (r *Report) Issues() []*ValidationError {
	out := make([]*ValidationError, 0, len(r.Schema)+len(r.Mandatory)+len(r.Advisory))
	out = append(out, r.Schema...)
	out = append(out, r.Mandatory...)
	return append(out, r.Advisory...)
}

// Valid reports whether the file passed every phase.
func (r *Report) Valid() bool {
	return len(r.Schema) == 0 && len(r.Mandatory) == 0 && len(r.Advisory) == 0
}

// Fatal reports whether a mandatory rule failed.
func (r *Report) Fatal() bool {
	return len(r.Mandatory) > 0
}

// Reports is the validation outcome of a file and its includes.
type Reports []*Report

// Fatal reports whether any file failed a mandatory rule.
func (rs Reports) Fatal() bool {
	for _, r := range rs {
		if r.Fatal() {
			return true
		}
	}
	return false
}

// Valid reports whether every file is valid.
func (rs Reports) Valid() bool {
	for _, r := range rs {
		if !r.Valid() {
			return false
		}
	}
	return true
}

// Validator checks documents against a compiled schema and the scenario
// rules. It is safe to reuse across documents.
type Validator struct {
	schema *sjsonschema.Schema
	logger *zap.Logger
}

type options struct {
	schemaFile string
	schemaDoc  []byte
	logger     *zap.Logger
}

// Option configures a Validator.
type Option func(*options)

// WithSchemaFile replaces the reflected schema with a JSON or YAML file.
func WithSchemaFile(path string) Option {
	return func(o *options) { o.schemaFile = path }
}

// WithSchema replaces the reflected schema with a JSON document.
func WithSchema(doc []byte) Option {
	return func(o *options) { o.schemaDoc = doc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

const schemaResource = "scenario.json"

// New compiles the schema once.
func New(opts ...Option) (*Validator, error) {
	o := options{logger: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}

	var schemaDoc any
	switch {
	case o.schemaFile != "":
		doc, err := readSchemaFile(o.schemaFile)
		if err != nil {
			return nil, err
		}
		schemaDoc = doc
	default:
		data := o.schemaDoc
		if data == nil {
			var err error
			data, err = scenario.GenerateJSONSchema()
			if err != nil {
				return nil, fmt.Errorf("generate schema: %w", err)
			}
		}
		if err := json.Unmarshal(data, &schemaDoc); err != nil {
			return nil, fmt.Errorf("unmarshal schema: %w", err)
		}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource(schemaResource, schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: sch, logger: o.logger}, nil
}

// readSchemaFile loads a schema written in JSON or YAML and returns it as a
// JSON-decoded tree.
func readSchemaFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var y any
		if err := yaml.Unmarshal(data, &y); err != nil {
			return nil, fmt.Errorf("decode schema: %w", err)
		}
		data, err = json.Marshal(value.Normalize(y))
		if err != nil {
			return nil, fmt.Errorf("convert schema: %w", err)
		}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return doc, nil
}

// ValidateTree validates doc and every included document. Included files are
// reported before the files including them, and may hold tests without a
// config since they run under the including file's config.
func (v *Validator) ValidateTree(doc *scenario.Document) Reports {
	return v.validateTree(doc, false)
}

func (v *Validator) validateTree(doc *scenario.Document, included bool) Reports {
	var out Reports
	for _, c := range doc.Children {
		out = append(out, v.validateTree(c, true)...)
	}
	return append(out, v.validate(doc, included))
}

// Validate runs every phase on one document.
func (v *Validator) Validate(doc *scenario.Document) *Report {
	return v.validate(doc, false)
}

func (v *Validator) validate(doc *scenario.Document, included bool) *Report {
	log := v.logger.With(zap.String("file", doc.Path), zap.Bool("included", included))
	log.Info("Validation of YAML scenario file")

	r := &Report{File: doc.Path}
	r.Schema = v.validateSchema(doc.Content)
	if len(r.Schema) == 0 {
		log.Info("Validated input file against schema")
	} else {
		for _, e := range r.Schema {
			log.Warn("Schema validation failed", zap.String("path", e.Path), zap.String("message", e.Message))
		}
	}

	r.Advisory = Advisory(doc)
	if len(r.Advisory) == 0 {
		log.Info("Validated non compulsory rules")
	} else {
		for _, e := range r.Advisory {
			log.Warn("Non-compulsory validation failed", zap.String("message", e.Message))
		}
	}

	r.Mandatory = mandatory(doc.Content, included)
	if len(r.Mandatory) == 0 {
		log.Info("Validated mandatory rules")
	} else {
		for _, e := range r.Mandatory {
			log.Error("Mandatory validation failed", zap.String("message", e.Message))
		}
	}
	return r
}

// validateSchema checks content against the compiled schema.
func (v *Validator) validateSchema(content map[string]any) []*ValidationError {
	data, err := json.Marshal(finite(content))
	if err != nil {
		return []*ValidationError{warningf(PhaseSchema, "", "marshal for schema validation: %v", err)}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{warningf(PhaseSchema, "", "unmarshal document: %v", err)}
	}

	if err := v.schema.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return []*ValidationError{warningf(PhaseSchema, "", "%s", err.Error())}
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, warningf(PhaseSchema, strings.Join(cause.InstanceLocation, "/"), "%v", cause.ErrorKind))
		}
		return errs
	}
	return nil
}

// finite returns a copy of v that JSON can carry: +Inf and -Inf become the
// largest finite values of the same sign and NaN becomes 0.
func finite(v any) any {
	switch x := v.(type) {
	case float64:
		switch {
		case math.IsNaN(x):
			return 0.0
		case math.IsInf(x, 1):
			return math.MaxFloat64
		case math.IsInf(x, -1):
			return -math.MaxFloat64
		}
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = finite(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = finite(val)
		}
		return out
	}
	return v
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

func errorf(phase, path, format string, args ...any) *ValidationError {
	return &ValidationError{Phase: phase, Path: path, Message: fmt.Sprintf(format, args...), Severity: "error"}
}

func warningf(phase, path, format string, args ...any) *ValidationError {
	return &ValidationError{Phase: phase, Path: path, Message: fmt.Sprintf(format, args...), Severity: "warning"}
}
