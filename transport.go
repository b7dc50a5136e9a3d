package agentry

import "context"

// FinishReason is the provider status describing why generation stopped.
type FinishReason string

const (
	FinishReasonUnspecified FinishReason = "FINISH_REASON_UNSPECIFIED"
	FinishReasonStop        FinishReason = "STOP"
	FinishReasonMaxTokens   FinishReason = "MAX_TOKENS"
	FinishReasonSafety      FinishReason = "SAFETY"
	FinishReasonRecitation  FinishReason = "RECITATION"
	FinishReasonOther       FinishReason = "OTHER"
)

// acceptable reports whether a response with this finish reason can be used.
// An empty reason counts as unspecified.
func (r FinishReason) acceptable() bool {
	switch r {
	case "", FinishReasonUnspecified, FinishReasonStop, FinishReasonMaxTokens:
		return true
	default:
		return false
	}
}

// GenerationConfig carries per-request generation parameters. Zero values leave the
// provider defaults in place.
type GenerationConfig struct {
	Temperature      *float32 `yaml:"temperature,omitempty"`
	ResponseMIMEType string   `yaml:"response_mime_type,omitempty"`
	MaxOutputTokens  int32    `yaml:"max_output_tokens,omitempty"`
}

// Request is one model call: the whole conversation plus everything the model needs to answer it.
type Request struct {
	Model             string
	SystemInstruction string
	Turns             []Turn
	Tools             []ToolDeclaration
	Generation        GenerationConfig
}

// Response is the first candidate of a model reply.
type Response struct {
	Turn         Turn
	FinishReason FinishReason
	// BlockReason is set when the prompt itself was refused.
	BlockReason string
}

// Transport sends one request to the model backend. Implementations report retryable
// failures as *ProviderError so that Retry can classify them.
type Transport interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f TransportFunc) Generate(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
