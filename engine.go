package agentry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultModel is used when neither the agent nor the task names a model.
const DefaultModel = "gemini-2.5-pro"

// Default engine limits.
const (
	DefaultMaxIterations     = 32
	DefaultMaxRepairAttempts = 4
)

// Agent runs tasks against one model transport. It holds no per-run state and is safe
// for concurrent use; every Run owns its own conversation.
type Agent struct {
	transport Transport
	opts      agentOptions
	logger    *slog.Logger
	tracer    trace.Tracer
}

type agentOptions struct {
	model             string
	logger            *slog.Logger
	debug             bool
	retry             RetryPolicy
	maxIterations     int
	maxRepairAttempts int
	dispatch          DispatchPolicy
	tracerProvider    trace.TracerProvider
	registryOpts      []RegistryOption
	generation        GenerationConfig
}

// Option configures an Agent.
type Option func(*agentOptions)

// WithModel sets the default model name.
func WithModel(model string) Option {
	return func(o *agentOptions) {
		o.model = model
	}
}

// WithLogger sets the logger for the agent and the registries it builds. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *agentOptions) {
		o.logger = logger
	}
}

// WithDebug logs the system instruction and the whole conversation after every exchange.
func WithDebug(enable bool) Option {
	return func(o *agentOptions) {
		o.debug = enable
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy for model calls.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *agentOptions) {
		o.retry = p
	}
}

// WithMaxIterations bounds the model calls of one send (the tool-calling loop).
func WithMaxIterations(n int) Option {
	return func(o *agentOptions) {
		o.maxIterations = n
	}
}

// WithMaxRepairAttempts bounds extraction attempts of a structured output, the first included.
func WithMaxRepairAttempts(n int) Option {
	return func(o *agentOptions) {
		o.maxRepairAttempts = n
	}
}

// WithDispatchPolicy selects how tool calls of one turn run. Defaults to DispatchParallel.
func WithDispatchPolicy(p DispatchPolicy) Option {
	return func(o *agentOptions) {
		o.dispatch = p
	}
}

// WithTracerProvider records spans for runs, model calls, extractions, and tool calls.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *agentOptions) {
		o.tracerProvider = tp
	}
}

// WithRegistryOptions applies opts to every registry the agent builds from a Task.
func WithRegistryOptions(opts ...RegistryOption) Option {
	return func(o *agentOptions) {
		o.registryOpts = append(o.registryOpts, opts...)
	}
}

// WithGeneration sets the default generation parameters of the primary conversation.
func WithGeneration(cfg GenerationConfig) Option {
	return func(o *agentOptions) {
		o.generation = cfg
	}
}

// New creates an Agent over transport.
func New(transport Transport, opts ...Option) (*Agent, error) {
	if transport == nil {
		return nil, &ConfigError{Reason: "transport is nil"}
	}
	o := agentOptions{
		model:             DefaultModel,
		retry:             DefaultRetryPolicy(),
		maxIterations:     DefaultMaxIterations,
		maxRepairAttempts: DefaultMaxRepairAttempts,
		dispatch:          DispatchParallel,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxIterations <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("max iterations must be positive, got %d", o.maxIterations)}
	}
	if o.maxRepairAttempts <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("max repair attempts must be positive, got %d", o.maxRepairAttempts)}
	}
	if o.dispatch != DispatchParallel && o.dispatch != DispatchSequential {
		return nil, &ConfigError{Reason: "unknown dispatch policy " + o.dispatch.String()}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.retry.Logger == nil {
		o.retry.Logger = o.logger
	}
	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Agent{
		transport: transport,
		opts:      o,
		logger:    o.logger,
		tracer:    tp.Tracer(instrumentationName),
	}, nil
}

// Task is one caller request.
type Task struct {
	// Instruction is the system prompt.
	Instruction string
	// Data is the first user message; empty means "Begin.".
	Data string
	// At most one of Tools, ToolMap, Registry may be set.
	Tools    []Tool
	ToolMap  map[string]Tool
	Registry *Registry
	// Model overrides the agent's model.
	Model string
	// Generation overrides the agent's generation parameters.
	Generation *GenerationConfig
}

func (t Task) message() string {
	if t.Data == "" {
		return defaultMessage
	}
	return t.Data
}

// Text runs task and returns the final answer as free text.
func (a *Agent) Text(ctx context.Context, task Task) (string, error) {
	return Run(ctx, a, Text(), task)
}

// registry builds the task's tool registry. A nil registry means no tools.
func (a *Agent) registry(task Task) (*Registry, error) {
	set := 0
	for _, ok := range []bool{len(task.Tools) > 0, len(task.ToolMap) > 0, task.Registry != nil} {
		if ok {
			set++
		}
	}
	if set > 1 {
		return nil, &ConfigError{Reason: "task sets more than one of Tools, ToolMap, Registry"}
	}
	opts := make([]RegistryOption, 0, len(a.opts.registryOpts)+2)
	opts = append(opts, WithRegistryLogger(a.logger))
	if a.opts.tracerProvider != nil {
		opts = append(opts, WithMiddlewares(WithTracing(a.opts.tracerProvider)))
	}
	opts = append(opts, a.opts.registryOpts...)
	switch {
	case task.Registry != nil:
		return task.Registry, nil
	case len(task.Tools) > 0:
		return NewRegistry(task.Tools, opts...)
	case len(task.ToolMap) > 0:
		return NewRegistryFromMap(task.ToolMap, opts...), nil
	default:
		return nil, nil
	}
}

// generate sends one request through the retry policy.
func (a *Agent) generate(ctx context.Context, req *Request) (resp *Response, err error) {
	ctx, span := a.tracer.Start(ctx, "agentry.generate", trace.WithAttributes(
		attribute.String("agentry.model", req.Model),
		attribute.Int("agentry.turns", len(req.Turns)),
	))
	defer func() {
		if resp != nil {
			span.SetAttributes(attribute.String("agentry.finish_reason", string(resp.FinishReason)))
		}
		endSpan(span, err)
	}()
	return Retry(ctx, a.opts.retry, func(ctx context.Context) (*Response, error) {
		return a.transport.Generate(ctx, req)
	})
}

func (a *Agent) startSpan(ctx context.Context, name, model, output string) (context.Context, trace.Span) {
	return a.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("agentry.model", model),
		attribute.String("agentry.output", output),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// checkResponse rejects blocked prompts and unusable finish reasons.
func checkResponse(resp *Response) error {
	if resp == nil {
		return ErrNoCandidates
	}
	if resp.BlockReason != "" {
		return &BlockedError{BlockReason: resp.BlockReason, FinishReason: resp.FinishReason, Text: resp.Turn.Text()}
	}
	if !resp.FinishReason.acceptable() {
		return &BlockedError{FinishReason: resp.FinishReason, Text: resp.Turn.Text()}
	}
	return nil
}

type state int

const (
	stateSending state = iota
	stateAwaitingResponse
	stateCheckingFinish
	stateDispatchingTools
	stateDone
	stateBlocked
)

func (s state) String() string {
	switch s {
	case stateSending:
		return "SENDING"
	case stateAwaitingResponse:
		return "AWAITING_RESPONSE"
	case stateCheckingFinish:
		return "CHECKING_FINISH"
	case stateDispatchingTools:
		return "DISPATCHING_TOOLS"
	case stateDone:
		return "DONE"
	case stateBlocked:
		return "BLOCKED"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// session is one conversation. It is owned by a single Run and never shared.
type session struct {
	agent       *Agent
	conv        Conversation
	registry    *Registry
	model       string
	instruction string
	tools       []ToolDeclaration
	generation  GenerationConfig
	policy      DispatchPolicy
	debug       bool
	logger      *slog.Logger
}

func (a *Agent) newSession(task Task, final *finalResponse) (*session, error) {
	reg, err := a.registry(task)
	if err != nil {
		return nil, err
	}
	s := &session{
		agent:       a,
		registry:    reg,
		model:       a.opts.model,
		instruction: systemInstruction(task.Instruction, final, reg.HasTools()),
		tools:       reg.Declarations(),
		generation:  a.opts.generation,
		policy:      a.opts.dispatch,
		debug:       a.opts.debug,
		logger:      a.logger,
	}
	if task.Model != "" {
		s.model = task.Model
	}
	if task.Generation != nil {
		s.generation = *task.Generation
	}
	return s, nil
}

// send appends a user turn holding parts and drives the conversation until the model
// answers without tool calls. It returns the answer text.
func (s *session) send(ctx context.Context, parts []Part) (string, error) {
	var (
		st    = stateSending
		resp  *Response
		err   error
		calls int
	)
	for {
		if st != stateDone && st != stateBlocked {
			if cerr := ctx.Err(); cerr != nil {
				err = cerr
				st = stateBlocked
			}
		}
		switch st {
		case stateSending:
			if err = s.conv.Append(Turn{Role: RoleUser, Parts: parts}); err != nil {
				st = stateBlocked
				continue
			}
			st = stateAwaitingResponse
		case stateAwaitingResponse:
			if calls >= s.agent.opts.maxIterations {
				err = fmt.Errorf("%w: %d model calls", ErrIterationLimit, calls)
				st = stateBlocked
				continue
			}
			calls++
			resp, err = s.agent.generate(ctx, &Request{
				Model:             s.model,
				SystemInstruction: s.instruction,
				Turns:             s.conv.Turns(),
				Tools:             s.tools,
				Generation:        s.generation,
			})
			if err != nil {
				st = stateBlocked
				continue
			}
			st = stateCheckingFinish
		case stateCheckingFinish:
			if err = checkResponse(resp); err != nil {
				st = stateBlocked
				continue
			}
			resp.Turn.Role = RoleModel
			if err = s.conv.Append(resp.Turn); err != nil {
				st = stateBlocked
				continue
			}
			s.logConversation(ctx)
			if !s.registry.HasTools() || len(resp.Turn.ToolCalls()) == 0 {
				st = stateDone
				continue
			}
			st = stateDispatchingTools
		case stateDispatchingTools:
			results := Dispatch(ctx, s.registry, s.policy, resp.Turn.ToolCalls())
			resultParts := make([]Part, len(results))
			for i, r := range results {
				resultParts[i] = ResultPart(r)
			}
			if err = s.conv.Append(Turn{Role: RoleUser, Parts: resultParts}); err != nil {
				st = stateBlocked
				continue
			}
			st = stateAwaitingResponse
		case stateDone:
			return resp.Turn.Text(), nil
		case stateBlocked:
			return "", err
		}
	}
}

func (s *session) logConversation(ctx context.Context) {
	if !s.debug {
		return
	}
	s.logger.InfoContext(ctx, "conversation",
		"model", s.model,
		"instruction", s.instruction,
		"turns", &s.conv,
	)
}
