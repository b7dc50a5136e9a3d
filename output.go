package agentry

import (
	"context"
	"fmt"
	"reflect"
)

type outputKind int

const (
	outputInvalid outputKind = iota
	outputText
	outputStructured
)

func (k outputKind) String() string {
	switch k {
	case outputText:
		return "text"
	case outputStructured:
		return "structured"
	default:
		return "invalid"
	}
}

// Output selects what Run produces: free text (Text) or a schema-validated T (Structured).
// The zero value is invalid.
type Output[T any] struct {
	kind      outputKind
	extractor *Extractor[T]
	final     *finalResponse
}

// Text requests the final answer as plain text.
func Text() Output[string] {
	return Output[string]{kind: outputText}
}

// OutputOption configures a structured output.
type OutputOption func(*outputOptions)

type outputOptions struct {
	description string
	strict      bool
}

// WithDescription sets the description of the final response shown to the model.
func WithDescription(desc string) OutputOption {
	return func(o *outputOptions) {
		o.description = desc
	}
}

// WithStrictOutput makes every field required and forbids unknown fields.
func WithStrictOutput() OutputOption {
	return func(o *outputOptions) {
		o.strict = true
	}
}

// Structured requests the final answer as a T. The schema comes from T's struct tags
// (json, description, enum, jsonschema); T may implement Validatable for cross-field rules.
func Structured[T any](opts ...OutputOption) (Output[T], error) {
	var o outputOptions
	for _, opt := range opts {
		opt(&o)
	}
	ext, err := NewExtractor[T](o.strict)
	if err != nil {
		return Output[T]{}, fmt.Errorf("structured output %s: %w", reflect.TypeFor[T](), err)
	}
	final := &finalResponse{Description: o.description}
	for _, name := range topLevelFields(reflect.TypeFor[T]()) {
		final.Fields = append(final.Fields, fieldDoc{
			Name:        name,
			Description: describeField(ext.schemaMap, []string{name}),
		})
	}
	return Output[T]{kind: outputStructured, extractor: ext, final: final}, nil
}

// MustStructured is like Structured but panics on error. Intended for package-level outputs.
func MustStructured[T any](opts ...OutputOption) Output[T] {
	out, err := Structured[T](opts...)
	if err != nil {
		panic(err)
	}
	return out
}

// Run executes task on agent and returns the final answer as described by out.
// For structured outputs, a rejected answer is sent back to the conversation with
// field-level feedback until it validates or the repair cap is reached (*ExtractionError).
func Run[T any](ctx context.Context, a *Agent, out Output[T], task Task) (result T, err error) {
	var zero T
	if out.kind == outputInvalid || (out.kind == outputStructured && out.extractor == nil) {
		return zero, ErrInvalidOutput
	}
	s, err := a.newSession(task, out.final)
	if err != nil {
		return zero, err
	}
	ctx, span := a.startSpan(ctx, "agentry.run", s.model, out.kind.String())
	defer func() { endSpan(span, err) }()

	parts := []Part{TextPart(task.message())}
	switch out.kind {
	case outputText:
		answer, err := s.send(ctx, parts)
		if err != nil {
			return zero, err
		}
		text, _ := any(answer).(T)
		return text, nil
	case outputStructured:
		for attempt := 1; ; attempt++ {
			answer, err := s.send(ctx, parts)
			if err != nil {
				return zero, err
			}
			v, failure, err := extract(ctx, s, out.extractor, answer)
			if err != nil {
				return zero, err
			}
			if failure == nil {
				return v, nil
			}
			a.logger.WarnContext(ctx, "structured output rejected",
				"attempt", attempt, "max_attempts", a.opts.maxRepairAttempts, "error", failure)
			if attempt >= a.opts.maxRepairAttempts {
				return zero, &ExtractionError{Attempts: attempt, Answer: answer, Raw: failure.Raw, Failure: failure}
			}
			parts = []Part{TextPart(failure.Feedback())}
		}
	default:
		return zero, ErrInvalidOutput
	}
}

// extract runs the deterministic extraction call over answer on a scratch conversation
// and decodes its output. A non-nil error is fatal; a failure can be repaired.
func extract[T any](ctx context.Context, s *session, ext *Extractor[T], answer string) (T, *ValidationFailure, error) {
	var zero T
	ctx, span := s.agent.startSpan(ctx, "agentry.extract", s.model, outputStructured.String())
	var err error
	defer func() { endSpan(span, err) }()

	instruction, err := extractionInstruction(ext.Schema())
	if err != nil {
		return zero, nil, err
	}
	temperature := float32(0)
	req := &Request{
		Model:             s.model,
		SystemInstruction: instruction,
		Turns:             []Turn{UserText(answer)},
		Generation: GenerationConfig{
			Temperature:      &temperature,
			ResponseMIMEType: JSONMIMEType,
		},
	}
	resp, err := s.agent.generate(ctx, req)
	if err != nil {
		return zero, nil, err
	}
	if err = checkResponse(resp); err != nil {
		return zero, nil, err
	}
	raw := resp.Turn.Text()
	if s.debug {
		s.logger.InfoContext(ctx, "parsing", "raw", raw)
	}
	v, failure := ext.Decode([]byte(stripFences(raw)))
	if failure != nil {
		failure.Raw = raw
	}
	return v, failure, nil
}
