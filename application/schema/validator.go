package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Violation is one failed schema constraint.
type Violation struct {
	// Path is the JSON pointer of the offending value, "" for the root.
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError lists every constraint a document violates.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		path := v.Path
		if path == "" {
			path = "/"
		}
		parts[i] = path + ": " + v.Message
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

// Validator checks documents against a compiled schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the schema of the Go type of v.
func NewValidator(v any, opts ...Option) (*Validator, error) {
	raw, err := GenerateSchema(v, opts...)
	if err != nil {
		return nil, err
	}
	return Compile(raw)
}

// Compile compiles a raw JSON schema.
func Compile(raw []byte) (*Validator, error) {
	const url = "schema.json"
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Validator{schema: sch}, nil
}

// Validate checks doc, which may be any JSON-marshalable value. Violations
// are reported as a *ValidationError.
func (v *Validator) Validate(doc any) error {
	// Round-trip through JSON so the validator sees plain JSON types.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to prepare validation object: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var obj any
	if err := dec.Decode(&obj); err != nil {
		return fmt.Errorf("failed to prepare validation object: %w", err)
	}

	err = v.schema.Validate(obj)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	out := &ValidationError{}
	collect(ve, &out.Violations)
	return out
}

// collect flattens the error tree into its leaves.
func collect(ve *jsonschema.ValidationError, out *[]Violation) {
	if len(ve.Causes) == 0 {
		*out = append(*out, Violation{Path: ve.InstanceLocation, Message: ve.Message})
		return
	}
	for _, c := range ve.Causes {
		collect(c, out)
	}
}
