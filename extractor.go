package agentry

import (
	"bytes"
	"encoding/json"
	"maps"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Extractor provides JSON Schema generation and two-layer validation (schema + Validatable)
// for type T. Tools use it for their arguments; structured outputs use it for the final answer.
type Extractor[T any] struct {
	schemaMap map[string]any
	compiled  *jsonschema.Schema
}

// NewExtractor creates an Extractor for type T. When strict is true, the generated schema
// has additionalProperties: false for all objects and all properties required.
func NewExtractor[T any](strict bool) (*Extractor[T], error) {
	schemaMap, compiled, err := generateSchema[T](strict)
	if err != nil {
		return nil, err
	}
	return &Extractor[T]{
		schemaMap: schemaMap,
		compiled:  compiled,
	}, nil
}

// Schema returns a shallow copy of the JSON Schema (top-level keys only).
// Nested maps are shared; callers must not mutate them.
func (e *Extractor[T]) Schema() map[string]any {
	return maps.Clone(e.schemaMap)
}

// Decode parses data into T and validates it. Exactly one of the results is meaningful:
// a nil *ValidationFailure means the value is valid.
func (e *Extractor[T]) Decode(data []byte) (T, *ValidationFailure) {
	var zero T
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return zero, e.failure(data, []FieldIssue{{Message: "invalid JSON: " + err.Error()}})
	}
	if issues := validateAgainstSchema(e.compiled, inst); len(issues) > 0 {
		return zero, e.failure(data, issues)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, e.failure(data, []FieldIssue{{Message: err.Error()}})
	}
	if err := runLayer2Validation(out); err != nil {
		return zero, e.failure(data, customIssues(err, inst))
	}
	return out, nil
}

// ParseAndValidate deserializes argsJSON into T, runs Layer 1 (schema validation) and
// Layer 2 (Validatable.Validate() if T implements it). Returns ClientError for invalid
// JSON or validation failures so the message can go back to the model. Empty input
// is treated as an empty object.
func (e *Extractor[T]) ParseAndValidate(argsJSON []byte) (T, error) {
	if len(bytes.TrimSpace(argsJSON)) == 0 {
		argsJSON = []byte("{}")
	}
	args, failure := e.Decode(argsJSON)
	if failure != nil {
		return args, &ClientError{Reason: failure.Error(), Err: failure}
	}
	return args, nil
}

func (e *Extractor[T]) failure(data []byte, issues []FieldIssue) *ValidationFailure {
	for i := range issues {
		if len(issues[i].Path) > 0 {
			issues[i].Description = describeField(e.schemaMap, issues[i].Path)
		}
	}
	return &ValidationFailure{Raw: string(data), Issues: issues}
}
