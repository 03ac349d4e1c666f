package scenario

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaID identifies the reflected scenario schema.
const SchemaID = "https://github.com/ormasoftchile/wetest/schemas/scenario.json"

// Schema reflects the scenario file schema from the Go types.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	s := r.Reflect(&File{})
	s.ID = SchemaID
	s.Title = "WeTest scenario"
	s.Description = "Schema for WeTest scenario YAML files after macro substitution (Draft 2020-12)"
	return s
}

// GenerateJSONSchema produces the scenario schema as indented JSON.
func GenerateJSONSchema() ([]byte, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal scenario schema: %w", err)
	}
	return data, nil
}
