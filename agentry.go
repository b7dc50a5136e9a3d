package agentry

import (
	"context"
	"encoding/json"
	"time"
)

// Payload keys and fixed messages used in tool results.
const (
	PayloadSuccess = "success"
	PayloadError   = "error"
	PayloadSkipped = "skipped"

	skippedMessage = "Previous function call failed."
)

// Tool is the contract for a model-callable function.
// It is provider-agnostic: it knows nothing about Gemini request formats.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema of the arguments object.
	Parameters() map[string]any
	// Execute runs the tool with the model-supplied JSON arguments. The returned
	// value becomes the tool result: maps and structs are passed to the model as
	// they are, anything else is wrapped as {"success": value}.
	Execute(ctx context.Context, argsJSON json.RawMessage) (any, error)
}

// ToolMetadata is implemented by tools created with NewTool and provides optional per-tool settings.
// Registry uses Timeout() to override the default execution timeout when set.
type ToolMetadata interface {
	Timeout() time.Duration
	Tags() []string
	Version() string
	IsDangerous() bool
}

// ToolCall is a single call request emitted by the model.
type ToolCall struct {
	// ID is propagated when the transport supplies one. Results are still
	// correlated with calls by position.
	ID   string
	Name string
	Args json.RawMessage
}

// ToolResult is the outcome of one ToolCall.
type ToolResult struct {
	ID      string
	Name    string
	Payload Payload
}

// Payload is the JSON object returned to the model for one tool call.
type Payload map[string]any

// IsError reports whether the payload carries an "error" key.
func (p Payload) IsError() bool {
	_, ok := p[PayloadError]
	return ok
}

// IsSkipped reports whether the call was skipped by the sequential dispatcher.
func (p Payload) IsSkipped() bool {
	_, ok := p[PayloadSkipped]
	return ok
}

func errorPayload(msg string) Payload { return Payload{PayloadError: msg} }

// ToolDeclaration describes a tool to the model transport.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ExecutionSummary is passed to the after-execution hook (WithOnAfterExecute) when a tool
// invocation finishes, whatever its outcome.
type ExecutionSummary struct {
	CallID   string
	ToolName string
	Payload  Payload
	// Error is the raw error behind an error payload; nil on success.
	Error    error
	Duration time.Duration
}
