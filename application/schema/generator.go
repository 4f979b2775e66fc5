// Package schema generates JSON schemas from Go types and validates
// documents against them.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Option adjusts schema reflection.
type Option func(*jsonschema.Reflector)

// Partial makes every property optional unless its field carries a
// `jsonschema:"required"` tag, for documents that only override some keys.
func Partial() Option {
	return func(r *jsonschema.Reflector) {
		r.RequiredFromJSONSchemaTags = true
	}
}

// GenerateSchema creates a JSON schema from a Go struct.
// It uses the `invopop/jsonschema` library to reflect on the struct
// and generate a standard JSON Schema (Draft 2020-12). Nested types are
// inlined, so the result has no $defs and no $id.
func GenerateSchema(v any, opts ...Option) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true, // Expand struct definitions inline
		DoNotReference: true,
		Anonymous:      true,
	}
	for _, opt := range opts {
		opt(&reflector)
	}
	schema := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return jsonBytes, nil
}
