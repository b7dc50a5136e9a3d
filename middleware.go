package agentry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName names the tracer used for agentry spans.
const instrumentationName = "github.com/skosovsky/agentry"

// Middleware decorates a Tool. Registries apply them in order, first outermost.
type Middleware func(Tool) Tool

// execFunc is the Execute step of a decorated tool.
type execFunc func(ctx context.Context, args json.RawMessage) (any, error)

// toolBase forwards the descriptive half of Tool and ToolMetadata to next.
type toolBase struct{ next Tool }

func (b *toolBase) Name() string               { return b.next.Name() }
func (b *toolBase) Description() string        { return b.next.Description() }
func (b *toolBase) Parameters() map[string]any { return b.next.Parameters() }

func (b *toolBase) meta() (ToolMetadata, bool) {
	tm, ok := b.next.(ToolMetadata)
	return tm, ok
}

func (b *toolBase) Timeout() time.Duration {
	if tm, ok := b.meta(); ok {
		return tm.Timeout()
	}
	return 0
}

func (b *toolBase) Tags() []string {
	if tm, ok := b.meta(); ok {
		return tm.Tags()
	}
	return nil
}

func (b *toolBase) Version() string {
	if tm, ok := b.meta(); ok {
		return tm.Version()
	}
	return ""
}

func (b *toolBase) IsDangerous() bool {
	if tm, ok := b.meta(); ok {
		return tm.IsDangerous()
	}
	return false
}

// decorated is a Tool whose Execute is replaced by exec.
type decorated struct {
	toolBase
	exec execFunc
}

func (d *decorated) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	return d.exec(ctx, args)
}

func decorate(next Tool, exec execFunc) *decorated {
	return &decorated{toolBase: toolBase{next: next}, exec: exec}
}

// WithLogging logs each execution with its duration. A nil logger uses slog.Default().
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Tool) Tool {
		name := next.Name()
		return decorate(next, func(ctx context.Context, args json.RawMessage) (any, error) {
			logger.InfoContext(ctx, "tool start", "tool", name)
			start := time.Now()
			res, err := next.Execute(ctx, args)
			if err != nil {
				logger.ErrorContext(ctx, "tool error", "tool", name, "duration", time.Since(start), "error", err)
				return nil, err
			}
			logger.InfoContext(ctx, "tool end", "tool", name, "duration", time.Since(start))
			return res, nil
		})
	}
}

// WithRecovery turns a panic in the tool into a *SystemError.
func WithRecovery() Middleware {
	return func(next Tool) Tool {
		return decorate(next, func(ctx context.Context, args json.RawMessage) (res any, err error) {
			defer func() {
				if p := recover(); p != nil {
					res, err = nil, &SystemError{Err: &panicError{p: p}}
				}
			}()
			return next.Execute(ctx, args)
		})
	}
}

// WithTimeoutMiddleware bounds each execution by d. The registry timeout of the tool
// still applies, so the shorter of the two wins. Timeout() reports the wrapped tool's own.
func WithTimeoutMiddleware(d time.Duration) Middleware {
	return func(next Tool) Tool {
		return decorate(next, func(ctx context.Context, args json.RawMessage) (any, error) {
			if d <= 0 {
				return next.Execute(ctx, args)
			}
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Execute(ctx, args)
		})
	}
}

// WithTracing records an "agentry.tool" span per execution. A nil provider uses the global one.
func WithTracing(tp trace.TracerProvider) Middleware {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(instrumentationName)
	return func(next Tool) Tool {
		return decorate(next, func(ctx context.Context, args json.RawMessage) (any, error) {
			ctx, span := tracer.Start(ctx, "agentry.tool",
				trace.WithAttributes(attribute.String("agentry.tool.name", next.Name())))
			defer span.End()
			res, err := next.Execute(ctx, args)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return res, err
		})
	}
}

// applyMiddlewares wraps t so that middlewares[0] is the outermost layer.
func applyMiddlewares(t Tool, middlewares []Middleware) Tool {
	for i := len(middlewares) - 1; i >= 0; i-- {
		t = middlewares[i](t)
	}
	return t
}
