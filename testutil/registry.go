package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skosovsky/agentry"
)

// NewTestRegistry returns a Registry with a long timeout and panic recovery enabled,
// suitable for tests. It fails tb when the tools cannot be registered.
func NewTestRegistry(tb testing.TB, tools ...agentry.Tool) *agentry.Registry {
	tb.Helper()
	reg, err := agentry.NewRegistry(tools,
		agentry.WithDefaultTimeout(30*time.Second),
		agentry.WithRecoverPanics(true),
	)
	require.NoError(tb, err)
	return reg
}
