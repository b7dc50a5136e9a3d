// Package gemini implements agentry.Transport on top of the Google Gen AI SDK.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"

	"github.com/skosovsky/agentry"
)

// contentGenerator is the part of *genai.Models the transport uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Transport sends agentry requests to Gemini through Models.GenerateContent.
// It is stateless and safe for concurrent use.
type Transport struct {
	models contentGenerator
	logger *slog.Logger
}

type options struct {
	apiKey     string
	project    string
	location   string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures New.
type Option func(*options)

// WithAPIKey sets the Gemini API key. Without it the SDK reads GEMINI_API_KEY or GOOGLE_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithVertexAI selects the Vertex AI backend for the given project and location.
func WithVertexAI(project, location string) Option {
	return func(o *options) {
		o.project = project
		o.location = location
	}
}

// WithHTTPClient overrides the HTTP client of the SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithLogger sets the logger for request tracing at debug level. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates a Transport with a new genai client.
func New(ctx context.Context, opts ...Option) (*Transport, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cc := &genai.ClientConfig{
		APIKey:     o.apiKey,
		HTTPClient: o.httpClient,
		Backend:    genai.BackendGeminiAPI,
	}
	if o.project != "" {
		cc.Backend = genai.BackendVertexAI
		cc.Project = o.project
		cc.Location = o.location
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, &agentry.ConfigError{Reason: "create genai client", Err: err}
	}
	return newTransport(client.Models, o.logger), nil
}

// NewFromClient wraps an existing genai client.
func NewFromClient(client *genai.Client, opts ...Option) *Transport {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return newTransport(client.Models, o.logger)
}

func newTransport(models contentGenerator, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{models: models, logger: logger}
}

var _ agentry.Transport = (*Transport)(nil)

// Generate implements agentry.Transport. SDK failures with a retryable status come back
// as *agentry.ProviderError.
func (t *Transport) Generate(ctx context.Context, req *agentry.Request) (*agentry.Response, error) {
	contents, err := toContents(req.Turns)
	if err != nil {
		return nil, err
	}
	t.logger.DebugContext(ctx, "gemini request", "model", req.Model, "turns", len(contents), "tools", len(req.Tools))
	resp, err := t.models.GenerateContent(ctx, req.Model, contents, toConfig(req))
	if err != nil {
		return nil, mapError(err)
	}
	return fromResponse(resp)
}

func toConfig(req *agentry.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:      req.Generation.Temperature,
		ResponseMIMEType: req.Generation.ResponseMIMEType,
		MaxOutputTokens:  req.Generation.MaxOutputTokens,
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(req.Tools))
		for i, d := range req.Tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:                 d.Name,
				Description:          d.Description,
				ParametersJsonSchema: d.Parameters,
			}
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

func toContents(turns []agentry.Turn) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(turns))
	for i, turn := range turns {
		parts := make([]*genai.Part, 0, len(turn.Parts))
		for j, p := range turn.Parts {
			gp, err := toPart(p)
			if err != nil {
				return nil, fmt.Errorf("turn %d part %d: %w", i, j, err)
			}
			parts = append(parts, gp)
		}
		contents = append(contents, &genai.Content{Role: string(turn.Role), Parts: parts})
	}
	return contents, nil
}

func toPart(p agentry.Part) (*genai.Part, error) {
	switch p.Kind() {
	case agentry.PartText:
		return &genai.Part{Text: p.Text, Thought: p.Thought, ThoughtSignature: p.Signature}, nil
	case agentry.PartToolCall:
		var args map[string]any
		if len(p.ToolCall.Args) > 0 {
			if err := json.Unmarshal(p.ToolCall.Args, &args); err != nil {
				return nil, fmt.Errorf("function call %s args: %w", p.ToolCall.Name, err)
			}
		}
		return &genai.Part{
			FunctionCall:     &genai.FunctionCall{ID: p.ToolCall.ID, Name: p.ToolCall.Name, Args: args},
			ThoughtSignature: p.Signature,
		}, nil
	case agentry.PartToolResult:
		return &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       p.ToolResult.ID,
			Name:     p.ToolResult.Name,
			Response: p.ToolResult.Payload,
		}}, nil
	default:
		return nil, agentry.ErrInvalidPart
	}
}

func fromResponse(resp *genai.GenerateContentResponse) (*agentry.Response, error) {
	if resp == nil {
		return nil, agentry.ErrNoCandidates
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return &agentry.Response{
			Turn:        agentry.Turn{Role: agentry.RoleModel},
			BlockReason: string(fb.BlockReason),
		}, nil
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, agentry.ErrNoCandidates
	}
	cand := resp.Candidates[0]
	out := &agentry.Response{
		Turn:         agentry.Turn{Role: agentry.RoleModel},
		FinishReason: agentry.FinishReason(cand.FinishReason),
	}
	if cand.Content == nil {
		return out, nil
	}
	for _, gp := range cand.Content.Parts {
		if gp == nil {
			continue
		}
		switch {
		case gp.FunctionCall != nil:
			args, err := json.Marshal(gp.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("function call %s args: %w", gp.FunctionCall.Name, err)
			}
			if gp.FunctionCall.Args == nil {
				args = []byte("{}")
			}
			part := agentry.CallPart(agentry.ToolCall{ID: gp.FunctionCall.ID, Name: gp.FunctionCall.Name, Args: args})
			part.Signature = gp.ThoughtSignature
			out.Turn.Parts = append(out.Turn.Parts, part)
		case gp.Text != "" || gp.Thought:
			out.Turn.Parts = append(out.Turn.Parts, agentry.Part{
				Text:      gp.Text,
				Thought:   gp.Thought,
				Signature: gp.ThoughtSignature,
			})
		}
	}
	return out, nil
}

// mapError wraps SDK API errors in *agentry.ProviderError. Other errors pass through.
func mapError(err error) error {
	apiErr, ok := asAPIError(err)
	if !ok {
		return err
	}
	return &agentry.ProviderError{
		Kind:   errorKind(apiErr.Code, apiErr.Status),
		Code:   apiErr.Code,
		Status: apiErr.Status,
		Err:    err,
	}
}

func asAPIError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

func errorKind(code int, status string) agentry.ProviderErrorKind {
	switch {
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return agentry.ProviderErrorResourceExhausted
	case code == http.StatusInternalServerError || status == "INTERNAL":
		return agentry.ProviderErrorInternal
	case code == http.StatusServiceUnavailable || status == "UNAVAILABLE":
		return agentry.ProviderErrorUnavailable
	case code == http.StatusGatewayTimeout || status == "DEADLINE_EXCEEDED":
		return agentry.ProviderErrorDeadlineExceeded
	default:
		return agentry.ProviderErrorOther
	}
}
