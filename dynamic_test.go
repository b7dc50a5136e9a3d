package agentry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// searchSchema is the schema a remote web_search tool would publish.
func searchSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":       map[string]any{"type": "string"},
			"num_results": map[string]any{"type": "integer"},
			"engine":      map[string]any{"type": "string", "enum": []any{"brave", "google"}},
		},
		"required": []any{"query"},
	}
}

func echoHandler(_ context.Context, argsJSON json.RawMessage) (any, error) {
	return argsJSON, nil
}

func TestNewDynamicTool_Invoke(t *testing.T) {
	t.Parallel()
	tool, err := NewDynamicTool("web_search", "Search the web", searchSchema(), echoHandler)
	require.NoError(t, err)
	assert.Equal(t, "web_search", tool.Name())
	assert.Equal(t, "Search the web", tool.Description())

	out, err := tool.Execute(context.Background(), raw(`{"query":"go","num_results":3}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"go","num_results":3}`, string(out.(json.RawMessage)))

	reg, err := NewRegistry([]Tool{tool})
	require.NoError(t, err)
	res := reg.Invoke(context.Background(), ToolCall{ID: "s1", Name: "web_search", Args: raw(`{"query":"go"}`)})
	assert.Equal(t, "s1", res.ID)
	assert.Equal(t, Payload{"query": "go"}, res.Payload)
}

func TestNewDynamicTool_RejectsInvalidArgs(t *testing.T) {
	t.Parallel()
	tool, err := NewDynamicTool("web_search", "Search the web", searchSchema(), echoHandler)
	require.NoError(t, err)

	for _, args := range []string{
		`{}`,
		`{"query":"go","engine":"bing"}`,
		`{"query":"go","num_results":"three"}`,
		`not json`,
	} {
		_, err := tool.Execute(context.Background(), raw(args))
		require.Error(t, err, args)
		assert.True(t, IsClientError(err), args)
	}
}

func TestNewDynamicTool_ConstructionErrors(t *testing.T) {
	t.Parallel()
	_, err := NewDynamicTool("bad", "Bad", map[string]any{"type": 123}, echoHandler)
	require.Error(t, err)

	_, err = NewDynamicTool("nil_schema", "Nil", nil, echoHandler)
	require.Error(t, err)

	_, err = NewDynamicTool("no_handler", "No handler", searchSchema(), nil)
	require.ErrorContains(t, err, "handler must not be nil")
}

func TestNewDynamicTool_HandlerErrorsBecomePayloads(t *testing.T) {
	t.Parallel()
	refuse, err := NewDynamicTool("refuse", "Refuses", searchSchema(), func(context.Context, json.RawMessage) (any, error) {
		return nil, &ClientError{Reason: "query too vague"}
	})
	require.NoError(t, err)
	broken, err := NewDynamicTool("broken", "Breaks", searchSchema(), func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("upstream 502")
	})
	require.NoError(t, err)

	_, err = refuse.Execute(context.Background(), raw(`{"query":"x"}`))
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "query too vague", ce.Reason)

	reg, err := NewRegistry([]Tool{refuse, broken})
	require.NoError(t, err)
	results := DispatchConcurrent(context.Background(), reg, []ToolCall{
		{Name: "refuse", Args: raw(`{"query":"x"}`)},
		{Name: "broken", Args: raw(`{"query":"x"}`)},
	})
	assert.Equal(t, Payload{"error": "invalid arguments: query too vague"}, results[0].Payload)
	assert.Equal(t, Payload{"error": "upstream 502"}, results[1].Payload)
}

func TestNewDynamicTool_Metadata(t *testing.T) {
	t.Parallel()
	tool, err := NewDynamicTool("send_mail", "Send mail", map[string]any{"type": "object", "properties": map[string]any{}}, echoHandler,
		WithTimeout(5*time.Second), WithTags("mail"), WithVersion("2"), WithDangerous())
	require.NoError(t, err)
	md, ok := tool.(ToolMetadata)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, md.Timeout())
	assert.Equal(t, []string{"mail"}, md.Tags())
	assert.Equal(t, "2", md.Version())
	assert.True(t, md.IsDangerous())
}

func TestNewDynamicTool_Strict(t *testing.T) {
	t.Parallel()
	tool, err := NewDynamicTool("web_search", "Search the web", searchSchema(), echoHandler, WithStrict())
	require.NoError(t, err)
	obj := objectSchema(tool.Parameters())
	require.NotNil(t, obj)
	assert.Equal(t, false, obj["additionalProperties"])
	assert.ElementsMatch(t, []any{"query", "num_results", "engine"}, obj["required"])

	_, err = tool.Execute(context.Background(), raw(`{"query":"go","num_results":1,"engine":"brave","safe":true}`))
	require.Error(t, err)
}

func TestNewDynamicTool_SchemaIsCopied(t *testing.T) {
	t.Parallel()
	nested := map[string]any{
		"type":       "object",
		"$id":        "https://example.com/filters",
		"id":         "filters",
		"properties": map[string]any{"site": map[string]any{"type": "string"}},
	}
	schema := map[string]any{
		"type": "object",
		"$id":  "https://example.com/search",
		"properties": map[string]any{
			"query":   map[string]any{"type": "string"},
			"filters": nested,
		},
	}
	tool, err := NewDynamicTool("web_search", "Search the web", schema, echoHandler, WithStrict())
	require.NoError(t, err)

	// strict mode and id stripping work on a copy
	assert.Equal(t, "https://example.com/search", schema["$id"])
	assert.NotContains(t, schema, "required")
	assert.NotContains(t, schema, "additionalProperties")
	assert.Equal(t, "filters", nested["id"])
	assert.NotContains(t, nested, "required")

	// later edits by the caller do not leak into the tool
	schema["properties"].(map[string]any)["page"] = map[string]any{"type": "integer"}
	schema["title"] = "changed"
	params := tool.Parameters()
	assert.NotContains(t, params, "title")
	assert.NotContains(t, params["properties"], "page")
}
