package agentry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryClass says how a failed model call is retried.
type RetryClass int

const (
	// RetryNever: the error is returned immediately.
	RetryNever RetryClass = iota
	// RetryBounded: retried immediately, up to RetryPolicy.MaxAttempts calls.
	RetryBounded
	// RetryBackoff: retried forever with exponential backoff.
	RetryBackoff
)

func (c RetryClass) String() string {
	switch c {
	case RetryBounded:
		return "bounded"
	case RetryBackoff:
		return "backoff"
	default:
		return "never"
	}
}

// ClassifyError maps a transport error onto a RetryClass. Only *ProviderError carries a
// retryable kind; everything else, context errors included, is RetryNever.
func ClassifyError(err error) RetryClass {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return RetryNever
	}
	switch pe.Kind {
	case ProviderErrorDeadlineExceeded, ProviderErrorInternal, ProviderErrorUnavailable:
		return RetryBounded
	case ProviderErrorResourceExhausted:
		return RetryBackoff
	default:
		return RetryNever
	}
}

// Default retry settings.
const (
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 1024 * time.Second
)

// RetryPolicy wraps one outbound model call. It holds no state between calls.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls allowed while failures are of the
	// bounded class. Rate-limit failures do not count.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// DefaultRetryPolicy returns the policy used by New when none is given.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}

// Retry calls op until it succeeds or fails with an error the policy gives up on.
// Bounded failures are retried without delay until MaxAttempts calls have failed, then
// the last error is returned. Backoff failures sleep InitialBackoff, doubling each time
// up to MaxBackoff, and never give up; only ctx ends them.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	var zero T
	bounded := 0
	delay := p.InitialBackoff
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}
		switch class := ClassifyError(err); class {
		case RetryBounded:
			bounded++
			if bounded >= p.MaxAttempts {
				return zero, err
			}
			p.Logger.WarnContext(ctx, "retrying model call",
				"class", class, "attempt", bounded, "max_attempts", p.MaxAttempts, "error", err)
		case RetryBackoff:
			p.Logger.WarnContext(ctx, "retrying model call",
				"class", class, "delay", delay, "error", err)
			if serr := p.Sleep(ctx, delay); serr != nil {
				return zero, serr
			}
			delay = min(delay*2, p.MaxBackoff)
		case RetryNever:
			return zero, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
