// Package timetool provides the current_datetime tool.
package timetool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skosovsky/agentry"
)

// DefaultTimezone is used when the model omits the timezone.
const DefaultTimezone = "America/New_York"

// Layout is the format of the returned timestamp.
const Layout = "2006-01-02 15:04:05"

// Args are the arguments of current_datetime.
type Args struct {
	Timezone string `json:"timezone,omitempty" description:"The IANA timezone to use, e.g. America/New_York."`
}

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option configures Tool.
type Option func(*options)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Tool returns current_datetime.
func Tool(opts ...Option) (agentry.Tool, error) {
	o := options{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return agentry.NewTool("current_datetime", "Returns the current date and time.",
		func(ctx context.Context, args Args) (string, error) {
			tz := args.Timezone
			if tz == "" {
				tz = DefaultTimezone
			}
			o.logger.InfoContext(ctx, "getting current date and time", "timezone", tz)
			return Now(o.now(), tz)
		})
}

// Now formats t in the named timezone using Layout.
func Now(t time.Time, timezone string) (string, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return "", fmt.Errorf("timezone %q: %w", timezone, err)
	}
	return t.In(loc).Format(Layout), nil
}
