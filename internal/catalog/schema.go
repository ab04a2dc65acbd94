package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compileSchema compiles a schema document into a validator.
func compileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	doc := normalizeJSON(schema)

	c := jsonschema.NewCompiler()
	if err := c.AddResource("template_schema.json", doc); err != nil {
		return nil, fmt.Errorf("compileSchema: %w", err)
	}
	sch, err := c.Compile("template_schema.json")
	if err != nil {
		return nil, fmt.Errorf("compileSchema: %w", err)
	}
	return sch, nil
}

// normalizeJSON round-trips a value through encoding/json so the validator
// sees plain JSON types (YAML decoding yields map[string]any with ints,
// which the schema library does handle, but numeric types must be uniform).
func normalizeJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
