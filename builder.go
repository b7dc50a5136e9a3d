package agentry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// handlerFunc runs a tool against raw model arguments.
type handlerFunc func(context.Context, json.RawMessage) (any, error)

// tool is the Tool built by NewTool and NewDynamicTool.
type tool struct {
	name        string
	description string
	schema      map[string]any
	run         handlerFunc
	opts        toolOptions
}

func buildOptions(opts []ToolOption) toolOptions {
	var o toolOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewTool wraps a typed function as a Tool. Arguments are decoded into T and checked
// against the same schema that is declared to the model, then against T.Validate when
// T is Validatable. A struct or map result R reaches the model as its own object;
// any other result is wrapped as {"success": value}.
func NewTool[T any, R any](
	name, description string,
	fn func(ctx context.Context, args T) (R, error),
	opts ...ToolOption,
) (Tool, error) {
	if fn == nil {
		return nil, fmt.Errorf("tool %q: handler must not be nil", name)
	}
	o := buildOptions(opts)
	ext, err := NewExtractor[T](o.strict)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	run := func(ctx context.Context, argsJSON json.RawMessage) (any, error) {
		args, err := ext.ParseAndValidate(argsJSON)
		if err != nil {
			return nil, err
		}
		return fn(ctx, args)
	}
	return &tool{name: name, description: description, schema: ext.Schema(), run: run, opts: o}, nil
}

// MustTool calls NewTool and panics on error.
func MustTool[T any, R any](
	name, description string,
	fn func(ctx context.Context, args T) (R, error),
	opts ...ToolOption,
) Tool {
	t, err := NewTool(name, description, fn, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// NewDynamicTool builds a Tool from a JSON Schema known only at runtime, for example one
// published by a remote service. fn receives the arguments after schema validation.
// schemaMap is copied; the caller keeps ownership of it.
func NewDynamicTool(
	name, description string,
	schemaMap map[string]any,
	fn func(ctx context.Context, argsJSON json.RawMessage) (any, error),
	opts ...ToolOption,
) (Tool, error) {
	switch {
	case schemaMap == nil:
		return nil, fmt.Errorf("tool %q: schema must not be nil", name)
	case fn == nil:
		return nil, fmt.Errorf("tool %q: handler must not be nil", name)
	}
	o := buildOptions(opts)
	schema, err := deepCopySchema(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("tool %q: copy schema: %w", name, err)
	}
	if o.strict {
		applyStrictMode(schema)
	}
	stripSchemaIDs(schema)
	compiled, err := compileRawSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("tool %q: compile schema: %w", name, err)
	}
	run := func(ctx context.Context, argsJSON json.RawMessage) (any, error) {
		if len(bytes.TrimSpace(argsJSON)) == 0 {
			argsJSON = json.RawMessage("{}")
		}
		inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(argsJSON))
		if err != nil {
			return nil, wrapJSONParseError(err)
		}
		if issues := validateAgainstSchema(compiled, inst); len(issues) > 0 {
			failure := &ValidationFailure{Raw: string(argsJSON), Issues: issues}
			return nil, &ClientError{Reason: failure.Error(), Err: failure}
		}
		return fn(ctx, argsJSON)
	}
	return &tool{name: name, description: description, schema: schema, run: run, opts: o}, nil
}

// deepCopySchema round-trips m through JSON so no nested map is shared with the caller.
func deepCopySchema(m map[string]any) (map[string]any, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("schema is not an object")
	}
	return out, nil
}

func (t *tool) Name() string        { return t.name }
func (t *tool) Description() string { return t.description }

// Parameters returns a copy of the top-level schema keys. Nested maps are shared.
func (t *tool) Parameters() map[string]any { return maps.Clone(t.schema) }

func (t *tool) Execute(ctx context.Context, argsJSON json.RawMessage) (any, error) {
	return t.run(ctx, argsJSON)
}

func (t *tool) Timeout() time.Duration { return t.opts.timeout }
func (t *tool) Tags() []string         { return append([]string(nil), t.opts.tags...) }
func (t *tool) Version() string        { return t.opts.version }
func (t *tool) IsDangerous() bool      { return t.opts.dangerous }

// renamedTool serves a tool under the key it was given in a Task.ToolMap.
type renamedTool struct {
	toolBase
	name string
}

func (r *renamedTool) Name() string { return r.name }

func (r *renamedTool) Execute(ctx context.Context, argsJSON json.RawMessage) (any, error) {
	return r.next.Execute(ctx, argsJSON)
}

var (
	_ Tool         = (*tool)(nil)
	_ ToolMetadata = (*tool)(nil)
	_ Tool         = (*renamedTool)(nil)
)
