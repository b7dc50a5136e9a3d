package agentry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	scrape := &minTool{name: "web_scrape", execute: func(context.Context, json.RawMessage) (any, error) {
		return "URL: https://example.com\nTitle: Example\n", nil
	}}
	search := &minTool{name: "web_search", execute: func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("brave: 429")
	}}

	out, err := WithLogging(logger)(scrape).Execute(context.Background(), raw(`{}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Title: Example")
	assert.Contains(t, buf.String(), "tool start")
	assert.Contains(t, buf.String(), "tool end")
	assert.Contains(t, buf.String(), "tool=web_scrape")

	buf.Reset()
	_, err = WithLogging(logger)(search).Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "tool error")
	assert.Contains(t, buf.String(), "brave: 429")
	assert.NotContains(t, buf.String(), "tool end")
}

func TestWithRecovery(t *testing.T) {
	mail := &minTool{name: "send_mail", execute: func(context.Context, json.RawMessage) (any, error) {
		panic("smtp client is nil")
	}}
	res, err := WithRecovery()(mail).Execute(context.Background(), raw(`{}`))
	assert.Nil(t, res)
	var se *SystemError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Err.Error(), "smtp client is nil")
	assert.NotContains(t, err.Error(), "smtp")
}

func TestWithTimeoutMiddleware(t *testing.T) {
	hang := &minTool{name: "web_scrape", execute: func(ctx context.Context, _ json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	bounded := WithTimeoutMiddleware(5 * time.Millisecond)(hang)
	res, err := bounded.Execute(context.Background(), raw(`{}`))
	assert.Nil(t, res)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, bounded.(ToolMetadata).Timeout())

	tagged := MustTool("addNumbers", "Add", addNumbers, WithTimeout(time.Second), WithTags("math"))
	unbounded := WithTimeoutMiddleware(0)(tagged)
	sum, err := unbounded.Execute(context.Background(), raw(`{"a":1,"b":1}`))
	require.NoError(t, err)
	assert.Equal(t, 2, sum)
	assert.Equal(t, time.Second, unbounded.(ToolMetadata).Timeout())
	assert.Equal(t, []string{"math"}, unbounded.(ToolMetadata).Tags())
}

func TestWithTimeoutMiddleware_RegistryDefaultStillApplies(t *testing.T) {
	slow := &minTool{name: "web_scrape", execute: func(ctx context.Context, _ json.RawMessage) (any, error) {
		select {
		case <-time.After(300 * time.Millisecond):
			return "ok", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	reg, err := NewRegistry([]Tool{slow},
		WithDefaultTimeout(50*time.Millisecond),
		WithMiddlewares(WithTimeoutMiddleware(time.Second)),
	)
	require.NoError(t, err)
	res := reg.Invoke(context.Background(), ToolCall{Name: "web_scrape", Args: raw(`{}`)})
	assert.Equal(t, Payload{"error": ErrTimeout.Error()}, res.Payload)

	reg, err = NewRegistry([]Tool{slow},
		WithDefaultTimeout(time.Second),
		WithMiddlewares(WithTimeoutMiddleware(50*time.Millisecond)),
	)
	require.NoError(t, err)
	res = reg.Invoke(context.Background(), ToolCall{Name: "web_scrape", Args: raw(`{}`)})
	assert.True(t, res.Payload.IsError())
	assert.Contains(t, res.Payload["error"], "deadline exceeded")
}

func TestWithTracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ok := &minTool{name: "ok"}
	bad := &minTool{name: "bad", execute: func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("nope")
	}}
	_, err := WithTracing(tp)(ok).Execute(context.Background(), nil)
	require.NoError(t, err)
	_, err = WithTracing(tp)(bad).Execute(context.Background(), nil)
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "agentry.tool", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	var toolName string
	for _, kv := range spans[1].Attributes() {
		if kv.Key == "agentry.tool.name" {
			toolName = kv.Value.AsString()
		}
	}
	assert.Equal(t, "bad", toolName)
}

func TestRegistry_WithMiddlewares(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	tool := MustTool("addNumbers", "Add", addNumbers, WithTags("math"), WithVersion("1.0"))
	reg, err := NewRegistry([]Tool{tool}, WithMiddlewares(WithRecovery(), WithLogging(logger)))
	require.NoError(t, err)
	res := reg.Invoke(context.Background(), ToolCall{ID: "1", Name: "addNumbers", Args: raw(`{"a":2,"b":1}`)})
	assert.Equal(t, Payload{"success": 3}, res.Payload)
	assert.Equal(t, 1, strings.Count(buf.String(), "tool start"))

	wrapped, ok := reg.GetTool("addNumbers")
	require.True(t, ok)
	tm, ok := wrapped.(ToolMetadata)
	require.True(t, ok)
	assert.Equal(t, []string{"math"}, tm.Tags())
	assert.Equal(t, "1.0", tm.Version())
	assert.False(t, tm.IsDangerous())
}

func TestApplyMiddlewares_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Tool) Tool {
			return &minTool{name: next.Name(), execute: func(ctx context.Context, args json.RawMessage) (any, error) {
				order = append(order, name)
				return next.Execute(ctx, args)
			}}
		}
	}
	inner := &minTool{name: "t"}
	_, err := applyMiddlewares(inner, []Middleware{mark("outer"), mark("inner")}).Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}
