package mathtool

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/agentry"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"2+3", 5},
		{"7/2", 3.5},
		{"7//2", 3},
		{"-7 % 3", 2},
		{"(1 + 2) * -3", -9},
		{"+4.5 - 0.5", 4},
		{"12.5 * 3.5 * 8", 350},
		{"pow(2, 10)", 1024},
		{"pow(2, -1) + 1", 1.5},
		{"3 * pow(pow(2, 2), 0.5)", 6},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := Evaluate(tc.expr)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestEvaluate_Rejected(t *testing.T) {
	for _, expr := range []string{
		`"a" + "b"`,
		"len([1])",
		"x + 1",
		"[1, 2]",
		"1 if True else 2",
		"1 < 2",
		"not 1",
		"2 +",
		"2**10",
		"2 ** 10",
		"pow(2)",
		"pow(2, 3, 4)",
		"pow(x=2, y=3)",
		"max(2, 3)",
		"pow(\"2\", 3)",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Evaluate(expr)
			require.ErrorIs(t, err, ErrInvalidExpression)
		})
	}
}

func TestEvaluate_DivisionByZero(t *testing.T) {
	_, err := Evaluate("1/0")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidExpression)
}

func TestDiffDate(t *testing.T) {
	days, err := DiffDate("2024-12-25", "2022-04-17")
	require.NoError(t, err)
	assert.Equal(t, 983, days)

	days, err = DiffDate("2024-01-01", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, -60, days)

	days, err = DiffDate("2500-01-01", "1900-01-01")
	require.NoError(t, err)
	assert.Equal(t, 219146, days)

	days, err = DiffDate("0001-01-01", "9999-12-31")
	require.NoError(t, err)
	assert.Equal(t, -3652058, days)

	_, err = DiffDate("2024-13-01", "2024-01-01")
	require.Error(t, err)
	_, err = DiffDate("2024-01-01", "yesterday")
	require.Error(t, err)
}

func TestEvaluate_PowOverflow(t *testing.T) {
	_, err := Evaluate("pow(10, 400)")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidExpression)
}

func TestTools(t *testing.T) {
	tools, err := Tools(WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	reg, err := agentry.NewRegistry(tools)
	require.NoError(t, err)

	res := reg.Invoke(context.Background(), agentry.ToolCall{Name: "math", Args: []byte(`{"expression":"2+3"}`)})
	assert.Equal(t, agentry.Payload{"success": 5.0}, res.Payload)

	res = reg.Invoke(context.Background(), agentry.ToolCall{Name: "diff_date", Args: []byte(`{"a":"2024-01-02","b":"2024-01-01"}`)})
	assert.Equal(t, agentry.Payload{"success": 1}, res.Payload)

	res = reg.Invoke(context.Background(), agentry.ToolCall{Name: "math", Args: []byte(`{"expression":"pow(2, 10)"}`)})
	assert.Equal(t, agentry.Payload{"success": 1024.0}, res.Payload)

	res = reg.Invoke(context.Background(), agentry.ToolCall{Name: "math", Args: []byte(`{"expression":"open('x')"}`)})
	assert.True(t, res.Payload.IsError())

	res = reg.Invoke(context.Background(), agentry.ToolCall{Name: "diff_date", Args: []byte(`{"a":"2024-01-02"}`)})
	assert.True(t, res.Payload.IsError())
}
