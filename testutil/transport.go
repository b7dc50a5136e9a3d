package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/skosovsky/agentry"
)

// ErrScriptExhausted is returned when no scripted reply is left for a request.
var ErrScriptExhausted = errors.New("testutil: no scripted reply left")

// Reply is one scripted model reply: a response or an error.
type Reply struct {
	Response *agentry.Response
	Err      error
}

// Text replies with a plain text answer.
func Text(text string) Reply {
	return Reply{Response: &agentry.Response{
		Turn:         agentry.Turn{Role: agentry.RoleModel, Parts: []agentry.Part{agentry.TextPart(text)}},
		FinishReason: agentry.FinishReasonStop,
	}}
}

// Call replies with a single tool call. args is a JSON object.
func Call(name, args string) Reply {
	return Calls(agentry.ToolCall{Name: name, Args: json.RawMessage(args)})
}

// Calls replies with several tool calls in one turn.
func Calls(calls ...agentry.ToolCall) Reply {
	parts := make([]agentry.Part, len(calls))
	for i, c := range calls {
		parts[i] = agentry.CallPart(c)
	}
	return Reply{Response: &agentry.Response{
		Turn:         agentry.Turn{Role: agentry.RoleModel, Parts: parts},
		FinishReason: agentry.FinishReasonStop,
	}}
}

// Fail replies with err.
func Fail(err error) Reply {
	return Reply{Err: err}
}

// Matcher selects the requests a script applies to.
type Matcher func(req *agentry.Request) bool

// InstructionPrefix matches requests whose system instruction starts with prefix.
func InstructionPrefix(prefix string) Matcher {
	return func(req *agentry.Request) bool {
		return strings.HasPrefix(req.SystemInstruction, prefix)
	}
}

// Extraction matches the JSON extraction calls of structured outputs.
func Extraction() Matcher {
	return func(req *agentry.Request) bool {
		return req.Generation.ResponseMIMEType == agentry.JSONMIMEType
	}
}

type script struct {
	match   Matcher
	replies []Reply
}

// ScriptedTransport is an agentry.Transport that replays scripted replies and records
// every request. Scripts added with On are tried in order before the default script.
// It is safe for concurrent use.
type ScriptedTransport struct {
	mu       sync.Mutex
	scripts  []*script
	fallback *script
	requests []*agentry.Request
}

// NewScriptedTransport returns a transport answering unmatched requests with replies, in order.
func NewScriptedTransport(replies ...Reply) *ScriptedTransport {
	return &ScriptedTransport{fallback: &script{replies: replies}}
}

// On answers requests selected by match with replies, in order.
func (s *ScriptedTransport) On(match Matcher, replies ...Reply) *ScriptedTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, &script{match: match, replies: replies})
	return s
}

var _ agentry.Transport = (*ScriptedTransport)(nil)

// Generate implements agentry.Transport.
func (s *ScriptedTransport) Generate(ctx context.Context, req *agentry.Request) (*agentry.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := *req
	rec.Turns = slices.Clone(req.Turns)
	s.requests = append(s.requests, &rec)

	sc := s.fallback
	for _, candidate := range s.scripts {
		if candidate.match(req) {
			sc = candidate
			break
		}
	}
	if len(sc.replies) == 0 {
		return nil, fmt.Errorf("%w: request %d (%.40q)", ErrScriptExhausted, len(s.requests), req.SystemInstruction)
	}
	r := sc.replies[0]
	sc.replies = sc.replies[1:]
	if r.Err != nil {
		return nil, r.Err
	}
	resp := *r.Response
	resp.Turn.Parts = slices.Clone(r.Response.Turn.Parts)
	return &resp, nil
}

// Requests returns the recorded requests in arrival order.
func (s *ScriptedTransport) Requests() []*agentry.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// RequestsMatching returns the recorded requests selected by match.
func (s *ScriptedTransport) RequestsMatching(match Matcher) []*agentry.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*agentry.Request
	for _, r := range s.requests {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Remaining reports how many scripted replies have not been used.
func (s *ScriptedTransport) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.fallback.replies)
	for _, sc := range s.scripts {
		n += len(sc.replies)
	}
	return n
}
