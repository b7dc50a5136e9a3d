package agentry

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

// toolOptions are the settings a ToolOption can change.
type toolOptions struct {
	strict    bool
	timeout   time.Duration
	tags      []string
	version   string
	dangerous bool
}

// ToolOption configures NewTool and NewDynamicTool.
type ToolOption func(*toolOptions)

// WithStrict closes every object in the argument schema and requires all properties.
// Arguments with unknown fields are then rejected.
func WithStrict() ToolOption {
	return func(o *toolOptions) { o.strict = true }
}

// WithTimeout bounds each execution of the tool, replacing the registry default.
func WithTimeout(d time.Duration) ToolOption {
	return func(o *toolOptions) { o.timeout = d }
}

// WithTags labels the tool, for example "mail" or "web".
func WithTags(tags ...string) ToolOption {
	return func(o *toolOptions) { o.tags = slices.Clone(tags) }
}

// WithVersion records a version string for the tool.
func WithVersion(version string) ToolOption {
	return func(o *toolOptions) { o.version = version }
}

// WithDangerous marks a tool with side effects outside the process, such as sending mail.
func WithDangerous() ToolOption {
	return func(o *toolOptions) { o.dangerous = true }
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	timeout        time.Duration
	maxConcurrency int
	recoverPanics  bool
	logger         *slog.Logger
	middlewares    []Middleware
	onBefore       func(context.Context, ToolCall)
	onAfter        func(context.Context, ToolCall, ExecutionSummary)
}

func defaultRegistryOptions() registryOptions {
	return registryOptions{
		timeout:        60 * time.Second,
		maxConcurrency: 10,
		recoverPanics:  true,
	}
}

// WithDefaultTimeout bounds tools that set no timeout of their own. Zero means no bound.
func WithDefaultTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		o.timeout = d
	}
}

// WithMaxConcurrency caps how many tools run at once. n <= 0 removes the cap.
func WithMaxConcurrency(n int) RegistryOption {
	return func(o *registryOptions) {
		o.maxConcurrency = n
	}
}

// WithRecoverPanics controls whether a panicking tool yields an error payload instead of crashing.
func WithRecoverPanics(enable bool) RegistryOption {
	return func(o *registryOptions) {
		o.recoverPanics = enable
	}
}

// WithRegistryLogger sets where tool failures are logged. Defaults to slog.Default().
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(o *registryOptions) {
		o.logger = logger
	}
}

// WithMiddlewares decorates every registered tool. The first middleware is the outermost.
func WithMiddlewares(middlewares ...Middleware) RegistryOption {
	return func(o *registryOptions) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

// WithOnBeforeExecute runs fn before every tool call.
func WithOnBeforeExecute(fn func(context.Context, ToolCall)) RegistryOption {
	return func(o *registryOptions) {
		o.onBefore = fn
	}
}

// WithOnAfterExecute runs fn after every tool call with its summary.
func WithOnAfterExecute(fn func(context.Context, ToolCall, ExecutionSummary)) RegistryOption {
	return func(o *registryOptions) {
		o.onAfter = fn
	}
}
