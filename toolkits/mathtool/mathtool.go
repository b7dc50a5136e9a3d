// Package mathtool provides arithmetic and date-difference tools.
//
// Expressions are parsed as Starlark and restricted to numeric literals, unary plus and
// minus, the binary operators + - * / // %, parentheses and pow(base, exponent). Other
// names, calls and constructs are rejected before evaluation.
package mathtool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/skosovsky/agentry"
)

// DateLayout is the date format accepted by diff_date.
const DateLayout = "2006-01-02"

// maxSteps bounds evaluation of a single expression.
const maxSteps = 10_000

const secondsPerDay = 24 * 60 * 60

var predeclared = starlark.StringDict{
	"pow": starlark.NewBuiltin("pow", pow),
}

func pow(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var base, exp starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &base, &exp); err != nil {
		return nil, err
	}
	x, ok := starlark.AsFloat(base)
	if !ok {
		return nil, fmt.Errorf("pow: base %s is not a number", base.Type())
	}
	y, ok := starlark.AsFloat(exp)
	if !ok {
		return nil, fmt.Errorf("pow: exponent %s is not a number", exp.Type())
	}
	r := math.Pow(x, y)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil, fmt.Errorf("pow(%g, %g) is not a finite number", x, y)
	}
	return starlark.Float(r), nil
}

// ErrInvalidExpression is returned for expressions outside the arithmetic subset.
var ErrInvalidExpression = errors.New("invalid expression")

// MathArgs are the arguments of the math tool.
type MathArgs struct {
	Expression string `json:"expression" description:"The arithmetic expression to evaluate. Use pow(a, b) for powers."`
}

// DiffDateArgs are the arguments of the diff_date tool.
type DiffDateArgs struct {
	A string `json:"a" description:"The first date in YYYY-MM-DD."`
	B string `json:"b" description:"The second date in YYYY-MM-DD."`
}

type options struct {
	logger *slog.Logger
}

// Option configures Tools.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Tools returns the math and diff_date tools.
func Tools(opts ...Option) ([]agentry.Tool, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	mathTool, err := agentry.NewTool("math", "Evaluates a arithmetic expression. Supports + - * / // %, parentheses and pow(a, b).",
		func(ctx context.Context, args MathArgs) (float64, error) {
			o.logger.InfoContext(ctx, "evaluating expression", "expression", args.Expression)
			return Evaluate(args.Expression)
		})
	if err != nil {
		return nil, err
	}
	diffTool, err := agentry.NewTool("diff_date", "Calculates the difference between two dates. Returns the number of days from b to a.",
		func(ctx context.Context, args DiffDateArgs) (int, error) {
			o.logger.InfoContext(ctx, "calculating date difference", "a", args.A, "b", args.B)
			return DiffDate(args.A, args.B)
		})
	if err != nil {
		return nil, err
	}
	return []agentry.Tool{mathTool, diffTool}, nil
}

// Evaluate computes an arithmetic expression. Division always yields a float.
func Evaluate(expression string) (float64, error) {
	if strings.Contains(expression, "**") {
		return 0, fmt.Errorf("%w: use pow(a, b) instead of **", ErrInvalidExpression)
	}
	opts := &syntax.FileOptions{}
	expr, err := opts.ParseExpr("expression", expression, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	if err := checkArithmetic(expr); err != nil {
		return 0, err
	}
	thread := &starlark.Thread{Name: "math"}
	thread.SetMaxExecutionSteps(maxSteps)
	v, err := starlark.EvalExprOptions(opts, thread, expr, predeclared)
	if err != nil {
		return 0, err
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: result %s is not a number", ErrInvalidExpression, v.Type())
	}
	return f, nil
}

func checkArithmetic(e syntax.Expr) error {
	switch x := e.(type) {
	case *syntax.Literal:
		if x.Token != syntax.INT && x.Token != syntax.FLOAT {
			return fmt.Errorf("%w: literal %s", ErrInvalidExpression, x.Raw)
		}
		return nil
	case *syntax.ParenExpr:
		return checkArithmetic(x.X)
	case *syntax.UnaryExpr:
		if x.Op != syntax.PLUS && x.Op != syntax.MINUS {
			return fmt.Errorf("%w: operator %s", ErrInvalidExpression, x.Op)
		}
		return checkArithmetic(x.X)
	case *syntax.BinaryExpr:
		switch x.Op {
		case syntax.PLUS, syntax.MINUS, syntax.STAR, syntax.SLASH, syntax.SLASHSLASH, syntax.PERCENT:
		default:
			return fmt.Errorf("%w: operator %s", ErrInvalidExpression, x.Op)
		}
		if err := checkArithmetic(x.X); err != nil {
			return err
		}
		return checkArithmetic(x.Y)
	case *syntax.CallExpr:
		fn, ok := x.Fn.(*syntax.Ident)
		if !ok || fn.Name != "pow" || len(x.Args) != 2 {
			return fmt.Errorf("%w: only pow(base, exponent) may be called", ErrInvalidExpression)
		}
		for _, arg := range x.Args {
			if err := checkArithmetic(arg); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrInvalidExpression, e)
	}
}

// DiffDate returns the number of days from b to a (a - b). Dates use DateLayout.
func DiffDate(a, b string) (int, error) {
	ta, err := time.Parse(DateLayout, a)
	if err != nil {
		return 0, fmt.Errorf("date a: %w", err)
	}
	tb, err := time.Parse(DateLayout, b)
	if err != nil {
		return 0, fmt.Errorf("date b: %w", err)
	}
	// Duration overflows past about 292 years, so count in seconds.
	return int((ta.Unix() - tb.Unix()) / secondsPerDay), nil
}
