package agentry

import (
	"fmt"
	"log/slog"
	"strings"
)

// Role identifies who contributed a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// PartKind reports which variant a Part carries.
type PartKind int

const (
	PartInvalid PartKind = iota
	PartText
	PartToolCall
	PartToolResult
)

func (k PartKind) String() string {
	switch k {
	case PartText:
		return "text"
	case PartToolCall:
		return "tool_call"
	case PartToolResult:
		return "tool_result"
	default:
		return "invalid"
	}
}

// Part is the smallest unit of a turn. Exactly one of Text, ToolCall, ToolResult is set;
// build parts with TextPart, CallPart, or ResultPart.
type Part struct {
	Text       string
	ToolCall   *ToolCall
	ToolResult *ToolResult
	// Thought marks model reasoning text; it is never part of the answer.
	Thought bool
	// Signature is an opaque provider token that must be sent back unchanged.
	Signature []byte
}

func TextPart(text string) Part         { return Part{Text: text} }
func CallPart(call ToolCall) Part       { return Part{ToolCall: &call} }
func ResultPart(result ToolResult) Part { return Part{ToolResult: &result} }

// Kind returns the populated variant, or PartInvalid when zero or several are set.
// A part with empty text and nothing else is a text part.
func (p Part) Kind() PartKind {
	switch {
	case p.ToolCall != nil && p.ToolResult == nil && p.Text == "":
		return PartToolCall
	case p.ToolResult != nil && p.ToolCall == nil && p.Text == "":
		return PartToolResult
	case p.ToolCall == nil && p.ToolResult == nil:
		return PartText
	default:
		return PartInvalid
	}
}

// Turn is one role-tagged, ordered bundle of parts.
type Turn struct {
	Role  Role
	Parts []Part
}

// UserText builds a user turn with one text part.
func UserText(text string) Turn {
	return Turn{Role: RoleUser, Parts: []Part{TextPart(text)}}
}

// ToolCalls returns the tool-call requests of the turn in order.
func (t Turn) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range t.Parts {
		if p.Kind() == PartToolCall {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}

// Text joins the non-thought text parts of the turn.
func (t Turn) Text() string {
	var parts []string
	for _, p := range t.Parts {
		if p.Kind() == PartText && !p.Thought && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "")
}

// LogValue renders the turn for debug logging.
func (t Turn) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(t.Parts)+1)
	attrs = append(attrs, slog.String("role", string(t.Role)))
	for i, p := range t.Parts {
		key := fmt.Sprintf("part%d", i)
		switch p.Kind() {
		case PartText:
			if p.Thought {
				attrs = append(attrs, slog.String(key, "(thought) "+p.Text))
				continue
			}
			attrs = append(attrs, slog.String(key, p.Text))
		case PartToolCall:
			attrs = append(attrs, slog.Group(key,
				slog.String("call", p.ToolCall.Name),
				slog.String("args", string(p.ToolCall.Args))))
		case PartToolResult:
			attrs = append(attrs, slog.Group(key,
				slog.String("result", p.ToolResult.Name),
				slog.Any("payload", map[string]any(p.ToolResult.Payload))))
		default:
			attrs = append(attrs, slog.String(key, "invalid part"))
		}
	}
	return slog.GroupValue(attrs...)
}

var _ slog.LogValuer = Turn{}

// Conversation is an append-only sequence of turns whose roles alternate.
type Conversation struct {
	turns []Turn
}

// Append adds a turn. It rejects a turn with the same role as the previous one,
// an unknown role, or an invalid part.
func (c *Conversation) Append(t Turn) error {
	if t.Role != RoleUser && t.Role != RoleModel {
		return fmt.Errorf("%w: unknown role %q", ErrTurnOrder, t.Role)
	}
	if n := len(c.turns); n > 0 && c.turns[n-1].Role == t.Role {
		return fmt.Errorf("%w: two consecutive %s turns", ErrTurnOrder, t.Role)
	}
	for i, p := range t.Parts {
		if p.Kind() == PartInvalid {
			return fmt.Errorf("%w: part %d", ErrInvalidPart, i)
		}
	}
	c.turns = append(c.turns, t)
	return nil
}

// Turns returns a copy of the turn slice. Turns themselves are shared.
func (c *Conversation) Turns() []Turn {
	return append([]Turn(nil), c.turns...)
}

// Len returns the number of turns.
func (c *Conversation) Len() int { return len(c.turns) }

// Last returns the latest turn.
func (c *Conversation) Last() (Turn, bool) {
	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}

// LogValue renders the whole conversation, one group per turn.
func (c *Conversation) LogValue() slog.Value {
	attrs := make([]slog.Attr, len(c.turns))
	for i, t := range c.turns {
		attrs[i] = slog.Any(fmt.Sprintf("turn%d", i), t)
	}
	return slog.GroupValue(attrs...)
}
