// Package tasks coordinates named background tasks with cooperative
// cancellation and at-most-once completion callbacks.
package tasks

import (
	"context"
	"errors"
)

// Common errors reported by task execution
var (
	ErrNilWork       = errors.New("cannot start task with nil work function")
	ErrTaskPanicked  = errors.New("task panicked")
	// ErrTaskCancelled lets work that gives up on its own context report a
	// cancellation instead of a failure.
	ErrTaskCancelled = errors.New("task was cancelled")
)

// WorkFunc is the body of a task. It should return promptly once ctx is done.
type WorkFunc func(ctx context.Context) (any, error)

// Callback receives the result of a task that finished without error and
// without being cancelled.
type Callback func(result any)

// Status represents the lifecycle state of a task
type Status int

const (
	// StatusCreated indicates the task is registered but not yet executing
	StatusCreated Status = iota
	// StatusRunning indicates the work function is executing
	StatusRunning
	// StatusCompleted indicates the work succeeded and the callback is delivered
	StatusCompleted
	// StatusCancelled indicates the task was cancelled and its result discarded
	StatusCancelled
	// StatusFailed indicates the work returned an error or panicked
	StatusFailed
	// StatusCleanedUp indicates all tracking state was released
	StatusCleanedUp
)

// String returns a string representation of the task status
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "Created"
	case StatusRunning:
		return "Running"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	case StatusFailed:
		return "Failed"
	case StatusCleanedUp:
		return "CleanedUp"
	default:
		return "Unknown"
	}
}
