package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrGangrene/bgg-flashcards/internal/observability/metrics"
)

// task is the tracking state of one running task
type task struct {
	id         string
	ctx        context.Context
	cancel     context.CancelFunc
	onComplete Callback
	status     Status
	cancelled  bool
	done       chan struct{}
	startedAt  time.Time
}

// Coordinator runs tasks in their own goroutines and tracks them by id.
// A task stays registered from Start until its cleanup, so a second Start
// with the same id in that window is a no-op.
type Coordinator struct {
	mu      sync.Mutex
	tasks   map[string]*task
	running sync.WaitGroup
	metrics *metrics.TaskMetrics
}

// New creates an empty coordinator.
func New() *Coordinator {
	return &Coordinator{
		tasks: make(map[string]*task),
	}
}

// WithMetrics attaches task metrics and returns the coordinator.
func (c *Coordinator) WithMetrics(m *metrics.TaskMetrics) *Coordinator {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
	return c
}

// TaskID builds a task id from prefix and parts, suffixed with the unix time
// and a short random token so concurrent ids never collide.
func TaskID(prefix string, parts ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range parts {
		b.WriteByte('_')
		b.WriteString(p)
	}
	fmt.Fprintf(&b, "_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
	return b.String()
}

// Start launches work under id and returns immediately. It returns false
// without doing anything when a task with the same id is still registered.
// onComplete may be nil.
func (c *Coordinator) Start(id string, work WorkFunc, onComplete Callback) bool {
	if work == nil {
		logger.Error("Refusing to start task", "task_id", id, "error", ErrNilWork)
		return false
	}

	c.mu.Lock()
	if _, exists := c.tasks[id]; exists {
		c.mu.Unlock()
		logger.Debug("Task already running", "task_id", id)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		id:         id,
		ctx:        ctx,
		cancel:     cancel,
		onComplete: onComplete,
		status:     StatusCreated,
		done:       make(chan struct{}),
		startedAt:  time.Now(),
	}
	c.tasks[id] = t
	m := c.metrics
	c.running.Add(1)
	c.mu.Unlock()

	if m != nil {
		m.TaskStarted()
	}
	logger.Debug("Task started", "task_id", id)

	go c.execute(t, work)
	return true
}

// Run is the typed form of Start.
func Run[T any](c *Coordinator, id string, work func(ctx context.Context) (T, error), onComplete func(T)) bool {
	if work == nil {
		return c.Start(id, nil, nil)
	}
	var cb Callback
	if onComplete != nil {
		cb = func(result any) {
			typed, _ := result.(T)
			onComplete(typed)
		}
	}
	return c.Start(id, func(ctx context.Context) (any, error) {
		return work(ctx)
	}, cb)
}

// execute runs the task body and always cleans up exactly once.
func (c *Coordinator) execute(t *task, work WorkFunc) {
	defer c.running.Done()

	outcome := metrics.TaskOutcomeFailed
	defer func() {
		c.Cleanup(t.id)
		close(t.done)
		c.mu.Lock()
		m := c.metrics
		c.mu.Unlock()
		if m != nil {
			m.TaskFinished(outcome)
		}
	}()

	if !c.transition(t, StatusRunning) {
		outcome = metrics.TaskOutcomeCancelled
		logger.Debug("Task cancelled before start", "task_id", t.id)
		return
	}

	result, err := runProtected(t.ctx, work)

	c.mu.Lock()
	switch {
	case t.cancelled, errors.Is(err, ErrTaskCancelled):
		t.status = StatusCancelled
	case err != nil:
		t.status = StatusFailed
	default:
		t.status = StatusCompleted
	}
	status := t.status
	callback := t.onComplete
	c.mu.Unlock()

	switch status {
	case StatusCancelled:
		outcome = metrics.TaskOutcomeCancelled
		logger.Debug("Task cancelled during execution, result discarded",
			"task_id", t.id,
			"duration", time.Since(t.startedAt))
	case StatusFailed:
		logger.Warn("Background task failed",
			"task_id", t.id,
			"duration", time.Since(t.startedAt),
			"error", err)
	case StatusCompleted:
		outcome = metrics.TaskOutcomeCompleted
		logger.Debug("Task completed",
			"task_id", t.id,
			"duration", time.Since(t.startedAt))
		if callback != nil {
			c.deliver(t.id, callback, result)
		}
	}
}

// runProtected calls work, converting a panic into an error.
func runProtected(ctx context.Context, work WorkFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return work(ctx)
}

// deliver invokes a completion callback, containing any panic it raises.
func (c *Coordinator) deliver(id string, callback Callback, result any) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Task callback panicked", "task_id", id, "panic", r)
		}
	}()
	callback(result)
}

// transition moves t to status unless it was already cancelled.
func (c *Coordinator) transition(t *task, status Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.status = status
	return true
}

// Cancel marks the task cancelled and cancels its context. Its result will
// be discarded and its callback never invoked. Unknown ids are ignored.
func (c *Coordinator) Cancel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tasks[id]; ok {
		c.cancelLocked(t)
	}
}

func (c *Coordinator) cancelLocked(t *task) bool {
	if t.cancelled || t.status == StatusCompleted || t.status == StatusFailed {
		return false
	}
	t.cancelled = true
	t.cancel()
	logger.Debug("Task cancelled", "task_id", t.id)
	return true
}

// CancelByPrefix cancels every registered task whose id starts with prefix
// and returns how many were cancelled.
func (c *Coordinator) CancelByPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, t := range c.tasks {
		if strings.HasPrefix(id, prefix) && c.cancelLocked(t) {
			n++
		}
	}
	return n
}

// CancelAll cancels every registered task and returns how many were cancelled.
func (c *Coordinator) CancelAll() int {
	return c.CancelByPrefix("")
}

// IsRunning reports whether a task with id is registered.
func (c *Coordinator) IsRunning(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tasks[id]
	return ok
}

// IsCancelled reports whether the registered task with id has been cancelled.
func (c *Coordinator) IsCancelled(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[id]
	return ok && t.cancelled
}

// Status returns the status of a registered task.
func (c *Coordinator) Status(id string) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[id]
	if !ok {
		return StatusCleanedUp, false
	}
	return t.status, true
}

// Running returns the ids of all registered tasks, sorted.
func (c *Coordinator) Running() []string {
	c.mu.Lock()
	ids := make([]string, 0, len(c.tasks))
	for id := range c.tasks {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// IsBusy reports whether any task is registered.
func (c *Coordinator) IsBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks) > 0
}

// Cleanup releases all tracking state of a task. It is idempotent.
func (c *Coordinator) Cleanup(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tasks[id]
	if !ok {
		return
	}
	delete(c.tasks, id)
	t.onComplete = nil
	t.cancel()
	t.status = StatusCleanedUp
}

// Done returns a channel closed when the task with id has been cleaned up,
// or nil for an unknown id.
func (c *Coordinator) Done(id string) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tasks[id]; ok {
		return t.done
	}
	return nil
}

// Wait blocks until all tasks have finished or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}
