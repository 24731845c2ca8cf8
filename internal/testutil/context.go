// Package testutil provides testing utilities for stackprof.
package testutil

import (
	"context"
	"testing"
	"time"
)

// NewTestContext returns a context bounded by a 30-second timeout that is
// cancelled when the test ends.
func NewTestContext(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
