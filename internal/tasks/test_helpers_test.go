// test_helpers_test.go - Shared test helpers for tasks package
package tasks

import (
	"context"
)

// blockingWork returns a work function that signals started and then blocks
// until release is closed or its context is cancelled.
func blockingWork(started chan<- struct{}, release <-chan struct{}, result any) WorkFunc {
	return func(ctx context.Context) (any, error) {
		close(started)
		select {
		case <-release:
			return result, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
