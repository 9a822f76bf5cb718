// Package testutil provides shared test helpers for the asynchronous parts
// of the sync components.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeout constants.
const (
	// DefaultTestTimeout is the standard timeout for most async test operations.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout is for asserting that something does not happen.
	ShortTestTimeout = 100 * time.Millisecond
)

// Waiter blocks until its background work has finished. tasks.Coordinator
// implements it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// WaitForChannel waits for a signal on the channel or fails after timeout.
// Use this for waiting on done channels, job completion signals, etc.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
		// Success
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}

// WaitForIdle waits up to DefaultTestTimeout for w to finish its work.
func WaitForIdle(t *testing.T, w Waiter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)
	defer cancel()
	require.NoError(t, w.Wait(ctx), "background tasks did not finish")
}
