package agentry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"
)

// Registry indexes tools by unique name and invokes them safely: every failure becomes
// an {"error": ...} payload instead of an error or panic. It is read-only after
// construction and safe to share between goroutines and concurrent runs.
type Registry struct {
	tools  map[string]Tool // wrapped with middlewares
	names  []string        // sorted
	sem    chan struct{}
	opts   registryOptions
	logger *slog.Logger
}

// NewRegistry builds a registry from an ordered list of tools. Duplicate, empty, or nil
// entries are a configuration error; no registry is returned in that case.
func NewRegistry(tools []Tool, opts ...RegistryOption) (*Registry, error) {
	r := newRegistry(opts)
	for i, t := range tools {
		if t == nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("tool #%d is nil", i), Err: ErrInvalidTool}
		}
		name := t.Name()
		if strings.TrimSpace(name) == "" {
			return nil, &ConfigError{Reason: fmt.Sprintf("tool #%d has an empty name", i), Err: ErrInvalidTool}
		}
		if _, exists := r.tools[name]; exists {
			return nil, &ConfigError{Reason: fmt.Sprintf("tool %s already registered", name), Err: ErrDuplicateTool}
		}
		r.tools[name] = applyMiddlewares(t, r.opts.middlewares)
	}
	r.index()
	return r, nil
}

// NewRegistryFromMap builds a registry from a name→tool mapping. The map keys are the
// names exposed to the model, so duplicates cannot occur. Nil tools are skipped.
func NewRegistryFromMap(tools map[string]Tool, opts ...RegistryOption) *Registry {
	r := newRegistry(opts)
	for name, t := range tools {
		if t == nil {
			r.logger.Warn("skipping nil tool", "tool", name)
			continue
		}
		if t.Name() != name {
			t = &renamedTool{toolBase: toolBase{next: t}, name: name}
		}
		r.tools[name] = applyMiddlewares(t, r.opts.middlewares)
	}
	r.index()
	return r
}

func newRegistry(opts []RegistryOption) *Registry {
	o := defaultRegistryOptions()
	for _, opt := range opts {
		opt(&o)
	}
	var sem chan struct{}
	if o.maxConcurrency > 0 {
		sem = make(chan struct{}, o.maxConcurrency)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		sem:    sem,
		opts:   o,
		logger: logger,
	}
}

func (r *Registry) index() {
	r.names = slices.Sorted(maps.Keys(r.tools))
}

// HasTools reports whether at least one tool is registered.
func (r *Registry) HasTools() bool {
	return r != nil && len(r.tools) > 0
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tools)
}

// GetTool returns the tool with the given name (after middlewares are applied), or (nil, false) if not found.
func (r *Registry) GetTool(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Declarations describes every tool for the model transport, sorted by name for deterministic requests.
func (r *Registry) Declarations() []ToolDeclaration {
	if r == nil {
		return nil
	}
	out := make([]ToolDeclaration, 0, len(r.names))
	for _, name := range r.names {
		t := r.tools[name]
		out = append(out, ToolDeclaration{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return out
}

// Invoke runs one tool call. It never returns an error and never lets a panic escape
// (unless WithRecoverPanics(false)): unknown names, invalid arguments, tool errors, and
// timeouts all come back as {"error": message}. Non-mapping results are wrapped as
// {"success": value}; mapping results (maps, structs) are returned as they are.
func (r *Registry) Invoke(ctx context.Context, call ToolCall) (result ToolResult) {
	result = ToolResult{ID: call.ID, Name: call.Name}
	t, ok := r.GetTool(call.Name)
	if !ok {
		r.logger.WarnContext(ctx, "tool not found", "tool", call.Name)
		result.Payload = errorPayload(fmt.Sprintf("Function %s not found.", call.Name))
		if r.opts.onAfter != nil {
			r.opts.onAfter(ctx, call, ExecutionSummary{
				CallID:   call.ID,
				ToolName: call.Name,
				Payload:  result.Payload,
				Error:    ErrToolNotFound,
			})
		}
		return result
	}

	summary := ExecutionSummary{CallID: call.ID, ToolName: call.Name}
	start := time.Now()
	defer func() {
		summary.Payload = result.Payload
		summary.Duration = time.Since(start)
		if r.opts.onAfter != nil {
			r.opts.onAfter(ctx, call, summary)
		}
	}()
	if r.opts.onBefore != nil {
		r.opts.onBefore(ctx, call)
	}

	value, err := r.execute(ctx, t, call)
	if err == nil {
		var payload Payload
		payload, err = envelope(value)
		if err != nil {
			err = &SystemError{Err: err}
		} else {
			result.Payload = payload
			return result
		}
	}
	summary.Error = err
	r.logger.ErrorContext(ctx, "tool error", "tool", call.Name, "error", err)
	result.Payload = errorPayload(err.Error())
	return result
}

func (r *Registry) execute(ctx context.Context, t Tool, call ToolCall) (value any, err error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	timeout := r.opts.timeout
	if tm, ok := t.(ToolMetadata); ok && tm.Timeout() > 0 {
		timeout = tm.Timeout()
	}
	parent := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if r.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				value = nil
				err = &SystemError{Err: &panicError{p: p}}
			}
		}()
	}

	value, err = t.Execute(ctx, call.Args)
	if err != nil && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, ErrTimeout
	}
	return value, err
}

// acquire takes a concurrency slot. A cancelled ctx never gets one, even when a slot is free.
func (r *Registry) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.sem == nil {
		return func() {}, nil
	}
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// envelope converts a tool's return value into a result payload.
func envelope(v any) (Payload, error) {
	switch x := v.(type) {
	case nil:
		return Payload{PayloadSuccess: nil}, nil
	case Payload:
		return x, nil
	case map[string]any:
		return Payload(x), nil
	case json.RawMessage:
		return decodeRawResult(x)
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Payload{PayloadSuccess: nil}, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct && rv.Kind() != reflect.Map {
		return Payload{PayloadSuccess: v}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if !isJSONObject(data) {
		// e.g. time.Time marshals to a string
		return Payload{PayloadSuccess: v}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return Payload(m), nil
}

func decodeRawResult(data json.RawMessage) (Payload, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if m, ok := v.(map[string]any); ok {
		return Payload(m), nil
	}
	return Payload{PayloadSuccess: v}, nil
}

func isJSONObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}

// panicError wraps a recovered panic value for SystemError; used by Registry and WithRecovery middleware.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
