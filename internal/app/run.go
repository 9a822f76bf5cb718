package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// WaitForTasks waits up to timeout for background tasks. On timeout the
// remaining tasks are cancelled and false is returned.
func (a *App) WaitForTasks(ctx context.Context, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := a.Tasks.Wait(waitCtx); err != nil {
		running := a.Tasks.Running()
		a.Tasks.CancelAll()
		logger.Warn("Background tasks did not finish", "timeout", timeout, "running", running, "error", err)
		return false
	}
	return true
}
