// Package testutil provides test helpers for agentry: a configurable MockTool, a
// registry constructor, and ScriptedTransport, which replays canned model replies.
package testutil

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/skosovsky/agentry"
)

// MockTool is a configurable Tool implementation for tests.
type MockTool struct {
	NameVal   string
	DescVal   string
	ParamsVal map[string]any
	ExecuteFn func(ctx context.Context, args json.RawMessage) (any, error)

	calls atomic.Int64
}

// Name returns the tool name.
func (m *MockTool) Name() string {
	if m.NameVal != "" {
		return m.NameVal
	}
	return "mock"
}

// Description returns the tool description.
func (m *MockTool) Description() string {
	return m.DescVal
}

// Parameters returns the parameters schema (or an empty object schema).
func (m *MockTool) Parameters() map[string]any {
	if m.ParamsVal != nil {
		return m.ParamsVal
	}
	return map[string]any{"type": "object"}
}

// Execute runs ExecuteFn if set, otherwise returns nil.
func (m *MockTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	m.calls.Add(1)
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, args)
	}
	return nil, nil
}

// Calls reports how many times Execute ran.
func (m *MockTool) Calls() int {
	return int(m.calls.Load())
}

var _ agentry.Tool = (*MockTool)(nil)
