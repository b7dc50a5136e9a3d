// Package agentry runs a generative model conversation that may call Go tools
// mid-conversation and returns either free text or a schema-validated value.
//
// # Overview
//
// Run drives one conversation through an explicit state machine: send the user
// turn, call the model (through Retry), check the finish reason, dispatch any
// tool calls (Dispatch), append the results, and repeat until the model answers
// without tool calls. For structured outputs the final answer goes through a
// deterministic extraction call; a rejected value is sent back to the same
// conversation with field-level feedback until it validates.
//
// Pipeline: Go function + argument struct → NewTool (schema + validation) → Tool →
// Registry → Invoke → Payload ({"success": v}, the tool's own object, or {"error": msg}).
//
// # Key concepts
//
//   - Single source of truth: one set of struct tags drives the schema shown to the
//     model and the validation of what comes back, for tool arguments and outputs alike.
//   - Failure isolation: Registry.Invoke never returns an error or panics; tool failures
//     are data the model can reason about.
//   - Retry classes: deadline/internal/unavailable errors are retried a bounded number of
//     times; rate limits back off exponentially and never give up.
//   - Self-correction: ValidationFailure.Feedback tells the model which field is wrong and why.
//
// # Packages
//
//   - gemini: the Transport for Google Gemini.
//   - toolkits/mathtool, toolkits/timetool, toolkits/web, toolkits/mail: ready-made tools
//     for arithmetic, dates, the current time, web search and scraping, and email.
//   - agents: a crew of specialised agents that delegate to each other through tools.
//   - testutil: a scripted Transport and mock tools for tests without a model.
//
// # Example
//
//	type Args struct {
//	    A int `json:"a"`
//	    B int `json:"b"`
//	}
//	add := agentry.MustTool("addNumbers", "Add two numbers", func(_ context.Context, a Args) (int, error) {
//	    return a.A + a.B, nil
//	})
//	agent, err := agentry.New(transport)
//	if err != nil { ... }
//	answer, err := agent.Text(ctx, agentry.Task{
//	    Instruction: "You are a calculator.",
//	    Data:        "What is 2+3?",
//	    Tools:       []agentry.Tool{add},
//	})
package agentry
