package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MrGangrene/bgg-flashcards/internal/observability/metrics"
	"github.com/MrGangrene/bgg-flashcards/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStartDeliversResult(t *testing.T) {
	c := New()
	got := make(chan any, 1)

	ok := c.Start("bgg_search_catan_1", func(ctx context.Context) (any, error) {
		return []int{13, 926}, nil
	}, func(result any) {
		got <- result
	})
	require.True(t, ok)

	testutil.WaitForIdle(t, c)
	select {
	case result := <-got:
		assert.Equal(t, []int{13, 926}, result)
	default:
		require.Fail(t, "callback was not invoked")
	}
	assert.False(t, c.IsRunning("bgg_search_catan_1"))
	assert.Empty(t, c.Running())
}

func TestStartRejectsDuplicateID(t *testing.T) {
	c := New()
	started := make(chan struct{})
	release := make(chan struct{})

	require.True(t, c.Start("dup", blockingWork(started, release, "first"), nil))
	testutil.WaitForChannel(t, started, testutil.DefaultTestTimeout, "first task did not start")

	var secondRan atomic.Bool
	ok := c.Start("dup", func(ctx context.Context) (any, error) {
		secondRan.Store(true)
		return nil, nil
	}, nil)
	assert.False(t, ok)

	close(release)
	testutil.WaitForIdle(t, c)
	assert.False(t, secondRan.Load())

	// id is reusable after cleanup
	assert.True(t, c.Start("dup", func(ctx context.Context) (any, error) { return nil, nil }, nil))
	testutil.WaitForIdle(t, c)
}

func TestStartRejectsNilWork(t *testing.T) {
	c := New()
	assert.False(t, c.Start("nil", nil, nil))
	assert.False(t, c.IsBusy())
}

func TestCancelDiscardsResult(t *testing.T) {
	c := New()
	started := make(chan struct{})
	release := make(chan struct{})
	var called atomic.Bool

	// work ignores ctx so cancellation only affects delivery
	work := func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "late", nil
	}
	require.True(t, c.Start("expansions_13_1", work, func(any) { called.Store(true) }))
	testutil.WaitForChannel(t, started, testutil.DefaultTestTimeout, "task did not start")

	c.Cancel("expansions_13_1")
	assert.True(t, c.IsCancelled("expansions_13_1"))
	assert.True(t, c.IsRunning("expansions_13_1"))

	close(release)
	testutil.WaitForIdle(t, c)
	assert.False(t, called.Load(), "callback must not run for a cancelled task")
	assert.False(t, c.IsCancelled("expansions_13_1"))
}

func TestCancelPropagatesToContext(t *testing.T) {
	c := New()
	started := make(chan struct{})
	require.True(t, c.Start("ctx", blockingWork(started, nil, nil), nil))
	testutil.WaitForChannel(t, started, testutil.DefaultTestTimeout, "task did not start")

	done := c.Done("ctx")
	require.NotNil(t, done)
	c.Cancel("ctx")
	testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout, "cancelled task did not exit")
}

func TestCancelUnknownIsNoop(t *testing.T) {
	c := New()
	c.Cancel("missing")
	assert.False(t, c.IsCancelled("missing"))
	assert.Nil(t, c.Done("missing"))
}

func TestCancelByPrefix(t *testing.T) {
	c := New()
	release := make(chan struct{})
	ids := []string{"bgg_search_a_1", "bgg_search_b_1", "expansions_5_1"}
	for _, id := range ids {
		started := make(chan struct{})
		require.True(t, c.Start(id, blockingWork(started, release, nil), nil))
		testutil.WaitForChannel(t, started, testutil.DefaultTestTimeout, id+" did not start")
	}

	n := c.CancelByPrefix("bgg_search_")
	assert.Equal(t, 2, n)
	assert.True(t, c.IsCancelled("bgg_search_a_1"))
	assert.True(t, c.IsCancelled("bgg_search_b_1"))
	assert.False(t, c.IsCancelled("expansions_5_1"))

	// already cancelled tasks are not counted twice
	assert.Equal(t, 0, c.CancelByPrefix("bgg_search_"))

	close(release)
	testutil.WaitForIdle(t, c)
}

func TestFailedTaskSkipsCallback(t *testing.T) {
	c := New()
	var called atomic.Bool
	require.True(t, c.Start("fail", func(ctx context.Context) (any, error) {
		return nil, errors.New("catalog unavailable")
	}, func(any) { called.Store(true) }))

	testutil.WaitForIdle(t, c)
	assert.False(t, called.Load())
	assert.False(t, c.IsRunning("fail"))
}

func TestWorkReportingCancellationIsNotAFailure(t *testing.T) {
	m, err := metrics.NewTaskMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	c := New().WithMetrics(m)

	var called atomic.Bool
	require.True(t, c.Start("gave_up", func(ctx context.Context) (any, error) {
		return nil, fmt.Errorf("%w: %w", ErrTaskCancelled, context.DeadlineExceeded)
	}, func(any) { called.Store(true) }))

	testutil.WaitForIdle(t, c)
	assert.False(t, called.Load())
	assert.InDelta(t, 1, promtest.ToFloat64(m.Finished.WithLabelValues(metrics.TaskOutcomeCancelled)), 0)
	assert.InDelta(t, 0, promtest.ToFloat64(m.Finished.WithLabelValues(metrics.TaskOutcomeFailed)), 0)
}

func TestPanickingTaskIsCleanedUp(t *testing.T) {
	c := New()
	var called atomic.Bool
	require.True(t, c.Start("panic", func(ctx context.Context) (any, error) {
		panic("boom")
	}, func(any) { called.Store(true) }))

	testutil.WaitForIdle(t, c)
	assert.False(t, called.Load())
	assert.False(t, c.IsBusy())
}

func TestPanickingCallbackIsContained(t *testing.T) {
	c := New()
	require.True(t, c.Start("cb", func(ctx context.Context) (any, error) {
		return 1, nil
	}, func(any) { panic("callback boom") }))

	testutil.WaitForIdle(t, c)
	assert.False(t, c.IsBusy())
}

func TestCallbackMayStartAnotherTask(t *testing.T) {
	c := New()
	second := make(chan struct{})

	require.True(t, c.Start("first", func(ctx context.Context) (any, error) {
		return 1, nil
	}, func(any) {
		c.Start("second", func(ctx context.Context) (any, error) { return nil, nil }, func(any) {
			close(second)
		})
	}))

	testutil.WaitForChannel(t, second, testutil.DefaultTestTimeout, "nested task did not complete")
	testutil.WaitForIdle(t, c)
}

func TestCleanupIsIdempotent(t *testing.T) {
	c := New()
	started := make(chan struct{})
	var called atomic.Bool
	require.True(t, c.Start("cleanup", blockingWork(started, nil, nil), func(any) { called.Store(true) }))
	testutil.WaitForChannel(t, started, testutil.DefaultTestTimeout, "task did not start")

	c.Cleanup("cleanup")
	c.Cleanup("cleanup")
	assert.False(t, c.IsRunning("cleanup"))

	testutil.WaitForIdle(t, c)
	assert.False(t, called.Load())
}

func TestStatusLifecycle(t *testing.T) {
	c := New()
	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, c.Start("status", blockingWork(started, release, nil), nil))
	testutil.WaitForChannel(t, started, testutil.DefaultTestTimeout, "task did not start")

	status, ok := c.Status("status")
	require.True(t, ok)
	assert.Equal(t, StatusRunning, status)

	close(release)
	testutil.WaitForIdle(t, c)
	status, ok = c.Status("status")
	assert.False(t, ok)
	assert.Equal(t, StatusCleanedUp, status)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Created", StatusCreated.String())
	assert.Equal(t, "Running", StatusRunning.String())
	assert.Equal(t, "Completed", StatusCompleted.String())
	assert.Equal(t, "Cancelled", StatusCancelled.String())
	assert.Equal(t, "Failed", StatusFailed.String())
	assert.Equal(t, "CleanedUp", StatusCleanedUp.String())
	assert.Equal(t, "Unknown", Status(42).String())
}

func TestRunTyped(t *testing.T) {
	c := New()
	got := make(chan []string, 1)

	ok := Run(c, "typed", func(ctx context.Context) ([]string, error) {
		return []string{"Catan", "Seafarers"}, nil
	}, func(names []string) {
		got <- names
	})
	require.True(t, ok)
	testutil.WaitForIdle(t, c)
	assert.Equal(t, []string{"Catan", "Seafarers"}, <-got)
}

func TestTaskIDFormat(t *testing.T) {
	id := TaskID("bgg_search", "catan")
	parts := strings.Split(id, "_")
	require.Len(t, parts, 5)
	assert.True(t, strings.HasPrefix(id, "bgg_search_catan_"))
	assert.Len(t, parts[4], 8)
	assert.NotEqual(t, id, TaskID("bgg_search", "catan"))
}

func TestConcurrentStartAndCancel(t *testing.T) {
	c := New()
	var completed atomic.Int32
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Go(func() {
			id := TaskID("bgg_search", string(rune('a'+i%26)))
			c.Start(id, func(ctx context.Context) (any, error) {
				return i, nil
			}, func(any) { completed.Add(1) })
			if i%2 == 0 {
				c.Cancel(id)
			}
		})
	}
	wg.Wait()
	testutil.WaitForIdle(t, c)
	assert.LessOrEqual(t, completed.Load(), int32(50))
	assert.False(t, c.IsBusy())
}

func TestWaitHonoursContext(t *testing.T) {
	c := New()
	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, c.Start("slow", blockingWork(started, release, nil), nil))
	testutil.WaitForChannel(t, started, testutil.DefaultTestTimeout, "task did not start")

	ctx, cancel := context.WithTimeout(context.Background(), testutil.ShortTestTimeout)
	defer cancel()
	err := c.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	testutil.WaitForIdle(t, c)
}

func TestMetricsRecordOutcomes(t *testing.T) {
	m, err := metrics.NewTaskMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	c := New().WithMetrics(m)

	c.Start("ok", func(ctx context.Context) (any, error) { return nil, nil }, nil)
	c.Start("bad", func(ctx context.Context) (any, error) { return nil, errors.New("x") }, nil)
	testutil.WaitForIdle(t, c)

	assert.InDelta(t, 2, promtest.ToFloat64(m.Started), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.Finished.WithLabelValues(metrics.TaskOutcomeCompleted)), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.Finished.WithLabelValues(metrics.TaskOutcomeFailed)), 0)
	assert.InDelta(t, 0, promtest.ToFloat64(m.Running), 0)
}
