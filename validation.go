package agentry

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Validatable is implemented by argument and output structs that need custom business validation
// (e.g. cross-field rules). Called after schema validation and unmarshaling. Return a *FieldError,
// or several joined with errors.Join, to attach the message to specific fields.
type Validatable interface {
	Validate() error
}

// schemaValidator validates a JSON-like value. *jsonschema.Schema implements it.
type schemaValidator interface {
	Validate(v any) error
}

// requiredMessage is reported for every missing required property.
const requiredMessage = "field required"

// FieldIssue is one validation problem of a structured value.
type FieldIssue struct {
	// Path locates the field; empty for problems with the value as a whole.
	Path        []string
	Description string
	// Value is the offending value; for a missing field it is the enclosing object.
	Value   any
	Message string
}

// Field returns the dot-joined path, or "(root)".
func (i FieldIssue) Field() string {
	if len(i.Path) == 0 {
		return "(root)"
	}
	return strings.Join(i.Path, ".")
}

// ValidationFailure is the explicit failure half of a decode result.
type ValidationFailure struct {
	// Raw is the text that failed to decode.
	Raw    string
	Issues []FieldIssue
}

func (f *ValidationFailure) Error() string {
	parts := make([]string, len(f.Issues))
	for i, issue := range f.Issues {
		parts[i] = issue.Field() + ": " + issue.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (f *ValidationFailure) Unwrap() error { return ErrValidation }

// Feedback renders the failure as a correction request for the model: one block per
// issue with its field, description, invalid value, and message.
func (f *ValidationFailure) Feedback() string {
	blocks := make([]string, 0, len(f.Issues)+2)
	blocks = append(blocks, "Failed to parse the final response.")
	for i, issue := range f.Issues {
		var b strings.Builder
		fmt.Fprintf(&b, "Error #%d:\n", i+1)
		if len(issue.Path) > 0 {
			fmt.Fprintf(&b, "Field: %s\n", issue.Field())
			fmt.Fprintf(&b, "Field description: %s\n", issue.Description)
			fmt.Fprintf(&b, "Invalid value: %s\n", formatValue(issue.Value))
		}
		fmt.Fprintf(&b, "Error message: %s\n", issue.Message)
		blocks = append(blocks, b.String())
	}
	blocks = append(blocks, "Please resolve the error and restate the final response.")
	return strings.Join(blocks, "\n\n")
}

func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

// schemaIssues flattens a jsonschema validation error into field issues. inst is the
// validated instance, used to report offending values.
func schemaIssues(err error, inst any) []FieldIssue {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []FieldIssue{{Message: err.Error()}}
	}
	printer := message.NewPrinter(language.English)
	var issues []FieldIssue
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		loc := slices.Clone(e.InstanceLocation)
		if req, ok := e.ErrorKind.(*kind.Required); ok {
			parent := valueAt(inst, loc)
			for _, name := range req.Missing {
				issues = append(issues, FieldIssue{
					Path:    append(slices.Clone(loc), name),
					Value:   parent,
					Message: requiredMessage,
				})
			}
			return
		}
		issues = append(issues, FieldIssue{
			Path:    loc,
			Value:   valueAt(inst, loc),
			Message: e.ErrorKind.LocalizedString(printer),
		})
	}
	walk(ve)
	return issues
}

// customIssues converts a Validatable error into field issues.
func customIssues(err error, inst any) []FieldIssue {
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	issues := make([]FieldIssue, 0, len(errs))
	for _, e := range errs {
		var fe *FieldError
		if errors.As(e, &fe) {
			path := strings.Split(fe.Field, ".")
			issues = append(issues, FieldIssue{Path: path, Value: valueAt(inst, path), Message: fe.Message})
			continue
		}
		issues = append(issues, FieldIssue{Message: e.Error()})
	}
	return issues
}

// valueAt walks a decoded JSON value along loc; nil when the path does not exist.
// Numbers in the result are float64.
func valueAt(v any, loc []string) any {
	return plainJSON(lookup(v, loc))
}

func lookup(v any, loc []string) any {
	for _, seg := range loc {
		switch node := v.(type) {
		case map[string]any:
			v = node[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			v = node[i]
		default:
			return nil
		}
	}
	return v
}

// plainJSON converts the json.Number values produced by jsonschema.UnmarshalJSON to float64.
func plainJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plainJSON(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plainJSON(e)
		}
		return out
	default:
		return v
	}
}

// validateAgainstSchema runs Layer 1 validation on an already-parsed value.
func validateAgainstSchema(validate schemaValidator, v any) []FieldIssue {
	if err := validate.Validate(v); err != nil {
		return schemaIssues(err, v)
	}
	return nil
}

// validateCustom runs Layer 2 (Validatable) if args implements it.
func validateCustom(args any) error {
	if v, ok := args.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// runLayer2Validation runs Validatable.Validate() on args; if args does not implement Validatable,
// it tries &args for value types (pointer receiver). Never calls Validate twice for the same receiver.
func runLayer2Validation[T any](args T) error {
	if err := validateCustom(any(args)); err != nil {
		return err
	}
	if _, ok := any(args).(Validatable); ok {
		return nil
	}
	typ := reflect.TypeOf(args)
	if typ == nil || typ.Kind() == reflect.Pointer {
		return nil
	}
	return validateCustom(any(&args))
}
