package agentry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCustom_NotImplemented(t *testing.T) {
	type plain struct {
		Start int `json:"start"`
		End   int `json:"end"`
	}
	assert.NoError(t, validateCustom(&plain{Start: 10, End: 1}))
}

// dateWindow validates with a value receiver.
type dateWindow struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (w dateWindow) Validate() error {
	if w.Start > w.End {
		return errors.New("start must not be after end")
	}
	return nil
}

// pageRange validates with a pointer receiver only.
type pageRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

func (r *pageRange) Validate() error {
	if r.First > r.Last {
		return errors.New("first must not be after last")
	}
	return nil
}

func TestValidatable_ToolArguments(t *testing.T) {
	days := MustTool("days_between", "Count days in a window", func(_ context.Context, w dateWindow) (int, error) {
		return w.End - w.Start, nil
	})
	pages := MustTool("page_count", "Count pages", func(_ context.Context, r pageRange) (int, error) {
		return r.Last - r.First + 1, nil
	})

	res, err := days.Execute(context.Background(), raw(`{"start":1,"end":10}`))
	require.NoError(t, err)
	assert.Equal(t, 9, res)
	res, err = days.Execute(context.Background(), raw(`{"start":10,"end":1}`))
	assert.Nil(t, res)
	require.ErrorIs(t, err, ErrValidation)
	assert.True(t, IsClientError(err))
	assert.ErrorContains(t, err, "start must not be after end")

	res, err = pages.Execute(context.Background(), raw(`{"first":2,"last":4}`))
	require.NoError(t, err)
	assert.Equal(t, 3, res)
	_, err = pages.Execute(context.Background(), raw(`{"first":4,"last":2}`))
	require.ErrorIs(t, err, ErrValidation)
	assert.ErrorContains(t, err, "first must not be after last")
}

func TestValidationFailure_Feedback(t *testing.T) {
	f := &ValidationFailure{
		Raw: `{"amount": 5}`,
		Issues: []FieldIssue{
			{
				Path:        []string{"recipient"},
				Description: "The person receiving the money",
				Value:       map[string]any{"amount": 5.0},
				Message:     "field required",
			},
			{Message: "invalid JSON: unexpected EOF"},
		},
	}
	want := "Failed to parse the final response.\n\n" +
		"Error #1:\n" +
		"Field: recipient\n" +
		"Field description: The person receiving the money\n" +
		"Invalid value: {\"amount\":5}\n" +
		"Error message: field required\n\n\n" +
		"Error #2:\n" +
		"Error message: invalid JSON: unexpected EOF\n\n\n" +
		"Please resolve the error and restate the final response."
	assert.Equal(t, want, f.Feedback())
	assert.Equal(t, "validation failed: recipient: field required; (root): invalid JSON: unexpected EOF", f.Error())
	assert.ErrorIs(t, f, ErrValidation)
}

func TestCustomIssues_Joined(t *testing.T) {
	inst := map[string]any{
		"date": map[string]any{"day": json.Number("31")},
	}
	err := errors.Join(
		&FieldError{Field: "date.day", Message: "no such day in February"},
		errors.New("dates must be in the future"),
	)
	issues := customIssues(err, inst)
	require.Len(t, issues, 2)
	assert.Equal(t, []string{"date", "day"}, issues[0].Path)
	assert.Equal(t, 31.0, issues[0].Value)
	assert.Equal(t, "no such day in February", issues[0].Message)
	assert.Empty(t, issues[1].Path)
	assert.Equal(t, "dates must be in the future", issues[1].Message)
}

func TestValueAt(t *testing.T) {
	doc := map[string]any{
		"items": []any{map[string]any{"n": json.Number("2")}},
	}
	assert.Equal(t, 2.0, valueAt(doc, []string{"items", "0", "n"}))
	assert.Nil(t, valueAt(doc, []string{"items", "5", "n"}))
	assert.Nil(t, valueAt(doc, []string{"items", "x"}))
	assert.Equal(t, map[string]any{"items": []any{map[string]any{"n": 2.0}}}, valueAt(doc, nil))
}

func TestFieldIssue_Field(t *testing.T) {
	assert.Equal(t, "(root)", FieldIssue{}.Field())
	assert.Equal(t, "a.0.b", FieldIssue{Path: []string{"a", "0", "b"}}.Field())
}
