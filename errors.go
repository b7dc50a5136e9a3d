package agentry

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for agentry. Use errors.Is to check.
var (
	ErrToolNotFound   = errors.New("tool not found")
	ErrTimeout        = errors.New("tool execution timeout")
	ErrValidation     = errors.New("validation failed")
	ErrDuplicateTool  = errors.New("duplicate tool name")
	ErrInvalidTool    = errors.New("invalid tool")
	ErrBlocked        = errors.New("response blocked")
	ErrIterationLimit = errors.New("tool-calling iteration limit exceeded")
	ErrTurnOrder      = errors.New("turn roles must alternate")
	ErrInvalidPart    = errors.New("part must carry exactly one of text, tool call, tool result")
	ErrInvalidOutput  = errors.New("output must be created with Text or Structured")
	ErrNoCandidates   = errors.New("response has no candidates")
)

// ClientError is an error that is sent back to the model for self-correction
// (e.g. invalid JSON arguments, schema validation failure, bad enum value).
// Err optionally wraps a sentinel (e.g. ErrValidation) for errors.Is/errors.As.
type ClientError struct {
	Reason string
	Err    error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("invalid arguments: %s", e.Reason)
}

// Unwrap supports errors.Is/errors.As on wrapped chains (e.g. errors.Is(err, ErrValidation)).
func (e *ClientError) Unwrap() error { return e.Err }

// SystemError represents an internal failure (panic, unmarshalable result).
// The model does not see the underlying error message.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return "internal system error during tool execution"
}

func (e *SystemError) Unwrap() error { return e.Err }

// IsClientError returns true if err is or wraps a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsSystemError returns true if err is or wraps a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// ConfigError reports an invalid setup detected before any model call,
// such as two tools sharing a name.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return "agentry: configuration error: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ProviderErrorKind classifies a failure reported by the model backend.
type ProviderErrorKind int

const (
	ProviderErrorOther ProviderErrorKind = iota
	ProviderErrorDeadlineExceeded
	ProviderErrorInternal
	ProviderErrorUnavailable
	ProviderErrorResourceExhausted
)

func (k ProviderErrorKind) String() string {
	switch k {
	case ProviderErrorDeadlineExceeded:
		return "deadline_exceeded"
	case ProviderErrorInternal:
		return "internal"
	case ProviderErrorUnavailable:
		return "unavailable"
	case ProviderErrorResourceExhausted:
		return "resource_exhausted"
	default:
		return "other"
	}
}

// ProviderError is a transport failure mapped onto the retry taxonomy.
// Transports wrap their SDK errors in it so that ClassifyError can decide
// how to retry.
type ProviderError struct {
	Kind   ProviderErrorKind
	Code   int
	Status string
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider error %d %s", e.Code, e.Status)
	}
	return fmt.Sprintf("provider error (%s): %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// BlockedError is returned when the model refuses the prompt or stops for a
// reason other than a normal stop or the token limit. It is never retried.
type BlockedError struct {
	BlockReason  string
	FinishReason FinishReason
	// Text is whatever text the blocked response carried.
	Text string
}

func (e *BlockedError) Error() string {
	if e.BlockReason != "" {
		return fmt.Sprintf("prompt blocked: %s", e.BlockReason)
	}
	return fmt.Sprintf("generation stopped: %s", e.FinishReason)
}

func (e *BlockedError) Unwrap() error { return ErrBlocked }

// FieldError pins a custom validation message to a field of a structured output.
// Return it from Validatable.Validate to get field-level feedback.
type FieldError struct {
	// Field is a dot-separated path such as "date.day".
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ExtractionError is returned when a structured output still fails validation
// after the last repair attempt.
type ExtractionError struct {
	Attempts int
	// Answer is the last free-text answer of the conversation.
	Answer string
	// Raw is the last output of the extraction call.
	Raw     string
	Failure *ValidationFailure
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "structured output rejected after %d attempts", e.Attempts)
	if e.Failure != nil {
		b.WriteString(": ")
		b.WriteString(e.Failure.Error())
	}
	if e.Answer != "" {
		b.WriteString("\nlast answer: ")
		b.WriteString(e.Answer)
	}
	return b.String()
}

func (e *ExtractionError) Unwrap() error { return ErrValidation }

// wrapJSONParseError returns a ClientError for JSON unmarshal failures.
func wrapJSONParseError(err error) error {
	return &ClientError{Reason: "json parse error: " + err.Error(), Err: ErrValidation}
}
