package agentry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "invalid arguments: unknown unit", (&ClientError{Reason: "unknown unit"}).Error())
	assert.Equal(t, "invalid arguments: ", (&ClientError{}).Error())

	refused := errors.New("smtp: connection refused")
	se := &SystemError{Err: refused}
	assert.Equal(t, "internal system error during tool execution", se.Error())
	assert.Same(t, refused, se.Unwrap())
}

func TestErrorClassification(t *testing.T) {
	client := &ClientError{Reason: "date is not YYYY-MM-DD", Err: ErrValidation}
	system := &SystemError{Err: ErrTimeout}

	cases := []struct {
		name     string
		err      error
		sentinel error
		isClient bool
		isSystem bool
	}{
		{"client", client, ErrValidation, true, false},
		{"wrapped client", fmt.Errorf("diff_date: %w", client), ErrValidation, true, false},
		{"system", system, ErrTimeout, false, true},
		{"wrapped system", fmt.Errorf("web_scrape: %w", system), ErrTimeout, false, true},
		{"config", &ConfigError{Reason: "duplicate math", Err: ErrDuplicateTool}, ErrDuplicateTool, false, false},
		{"blocked", &BlockedError{BlockReason: "SAFETY"}, ErrBlocked, false, false},
		{"not found", ErrToolNotFound, ErrToolNotFound, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.err, tc.sentinel)
			assert.Equal(t, tc.isClient, IsClientError(tc.err))
			assert.Equal(t, tc.isSystem, IsSystemError(tc.err))
			var ce *ClientError
			assert.Equal(t, tc.isClient, errors.As(tc.err, &ce))
		})
	}
}

func TestBlockedError_Message(t *testing.T) {
	assert.Equal(t, "prompt blocked: SAFETY", (&BlockedError{BlockReason: "SAFETY"}).Error())
	assert.Equal(t, "generation stopped: RECITATION", (&BlockedError{FinishReason: FinishReasonRecitation}).Error())
}

func TestProviderError(t *testing.T) {
	inner := errors.New("quota")
	err := &ProviderError{Kind: ProviderErrorResourceExhausted, Code: 429, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "resource_exhausted")
}

func TestExtractionError(t *testing.T) {
	err := &ExtractionError{
		Attempts: 4,
		Answer:   "I paid Zoey.",
		Failure:  &ValidationFailure{Issues: []FieldIssue{{Path: []string{"recipient"}, Message: "field required"}}},
	}
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "4 attempts")
	assert.Contains(t, err.Error(), "recipient: field required")
	assert.Contains(t, err.Error(), "I paid Zoey.")
}
