package agentry

import (
	"context"
	"fmt"
	"sync"
)

// DispatchPolicy selects how the tool calls of one model turn are executed.
type DispatchPolicy int

const (
	// DispatchParallel runs independent calls concurrently.
	DispatchParallel DispatchPolicy = iota
	// DispatchSequential runs calls in order and skips the rest of the batch after the first error.
	DispatchSequential
)

func (p DispatchPolicy) String() string {
	switch p {
	case DispatchParallel:
		return "parallel"
	case DispatchSequential:
		return "sequential"
	default:
		return fmt.Sprintf("DispatchPolicy(%d)", int(p))
	}
}

// Dispatch executes calls with the given policy. The result has one entry per call, in call order.
func Dispatch(ctx context.Context, reg *Registry, policy DispatchPolicy, calls []ToolCall) []ToolResult {
	switch policy {
	case DispatchParallel:
		return DispatchConcurrent(ctx, reg, calls)
	case DispatchSequential:
		return DispatchOrdered(ctx, reg, calls)
	default:
		panic(fmt.Sprintf("agentry: unknown dispatch policy %s", policy))
	}
}

// DispatchConcurrent invokes all calls concurrently and waits for every one of them.
// A failing call does not cancel its siblings. Results are positioned like calls,
// whatever the completion order.
func DispatchConcurrent(ctx context.Context, reg *Registry, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Go(func() {
			if err := ctx.Err(); err != nil {
				results[i] = ToolResult{ID: call.ID, Name: call.Name, Payload: errorPayload(err.Error())}
				return
			}
			results[i] = reg.Invoke(ctx, call)
		})
	}
	wg.Wait()
	return results
}

// DispatchOrdered invokes calls one by one. Once a result carries an "error" key, the
// remaining calls are not executed and get {"skipped": "Previous function call failed."}.
func DispatchOrdered(ctx context.Context, reg *Registry, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	failed := false
	for i, call := range calls {
		switch {
		case failed:
			results[i] = ToolResult{ID: call.ID, Name: call.Name, Payload: Payload{PayloadSkipped: skippedMessage}}
			continue
		case ctx.Err() != nil:
			results[i] = ToolResult{ID: call.ID, Name: call.Name, Payload: errorPayload(ctx.Err().Error())}
		default:
			results[i] = reg.Invoke(ctx, call)
		}
		failed = results[i].Payload.IsError()
	}
	return results
}
