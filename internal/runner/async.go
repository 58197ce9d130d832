package runner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"querybench/internal/domain"
)

// asyncTracker bounds and accounts for fire-and-forget query
// dispatches. The scheduler reserves a slot with acquire before each
// dispatch; the completion goroutine releases it. wait drains all
// outstanding work.
type asyncTracker struct {
	sem       *semaphore.Weighted // nil when unlimited
	wg        sync.WaitGroup
	inFlight  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	verbose   domain.AsyncVerbose
	log       *slog.Logger
}

func newAsyncTracker(limit int64, verbose domain.AsyncVerbose, log *slog.Logger) *asyncTracker {
	t := &asyncTracker{verbose: verbose, log: log}
	if limit > 0 {
		t.sem = semaphore.NewWeighted(limit)
	}
	return t
}

// acquire blocks until the in-flight limit admits one more dispatch.
func (t *asyncTracker) acquire(ctx context.Context) error {
	if t.sem == nil {
		return nil
	}
	return t.sem.Acquire(ctx, 1)
}

// launch runs fn in the background, releasing the slot reserved by
// acquire when it reaches a terminal state.
func (t *asyncTracker) launch(traceID string, fn func() error) {
	t.wg.Add(1)
	t.inFlight.Add(1)

	go func() {
		defer func() {
			t.inFlight.Add(-1)
			if t.sem != nil {
				t.sem.Release(1)
			}
			t.wg.Done()
		}()

		err := fn()
		if err != nil {
			t.failed.Add(1)
			if t.verbose == domain.VerboseEachQuery {
				t.log.Error("async query failed", "trace_id", traceID, "error", err)
			}
			return
		}
		t.succeeded.Add(1)
		if t.verbose == domain.VerboseEachQuery {
			t.log.Info("async query succeeded", "trace_id", traceID)
		}
	}()
}

// wait blocks until every launched query has reached a terminal state.
func (t *asyncTracker) wait() {
	t.wg.Wait()
}

func (t *asyncTracker) stats() (succeeded, failed int64) {
	return t.succeeded.Load(), t.failed.Load()
}
