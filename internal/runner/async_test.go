package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querybench/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAsyncTracker_UnlimitedAcquireNeverBlocks(t *testing.T) {
	tr := newAsyncTracker(0, domain.VerboseFinal, discardLogger())
	for i := 0; i < 100; i++ {
		require.NoError(t, tr.acquire(context.Background()))
	}
}

func TestAsyncTracker_CountsOutcomes(t *testing.T) {
	tr := newAsyncTracker(0, domain.VerboseFinal, discardLogger())

	for i := 0; i < 5; i++ {
		tr.launch("t", func() error { return nil })
	}
	for i := 0; i < 3; i++ {
		tr.launch("t", func() error { return errors.New("boom") })
	}
	tr.wait()

	succeeded, failed := tr.stats()
	assert.Equal(t, int64(5), succeeded)
	assert.Equal(t, int64(3), failed)
	assert.Equal(t, int64(0), tr.inFlight.Load())
}

func TestAsyncTracker_LimitBoundsConcurrency(t *testing.T) {
	const limit = 2
	const total = 8

	tr := newAsyncTracker(limit, domain.VerboseFinal, discardLogger())

	var current, peak atomic.Int64
	var mu sync.Mutex
	updatePeak := func(v int64) {
		mu.Lock()
		defer mu.Unlock()
		if v > peak.Load() {
			peak.Store(v)
		}
	}

	ctx := context.Background()
	for i := 0; i < total; i++ {
		require.NoError(t, tr.acquire(ctx))
		tr.launch("t", func() error {
			updatePeak(current.Add(1))
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			return nil
		})
	}
	tr.wait()

	assert.LessOrEqual(t, peak.Load(), int64(limit))
	succeeded, failed := tr.stats()
	assert.Equal(t, int64(total), succeeded)
	assert.Equal(t, int64(0), failed)
}

func TestAsyncTracker_AcquireHonorsContext(t *testing.T) {
	tr := newAsyncTracker(1, domain.VerboseFinal, discardLogger())
	require.NoError(t, tr.acquire(context.Background()))

	release := make(chan struct{})
	tr.launch("t", func() error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := tr.acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	tr.wait()
}

func TestAsyncTracker_WaitDrainsEverything(t *testing.T) {
	tr := newAsyncTracker(0, domain.VerboseFinal, discardLogger())

	var finished atomic.Int64
	for i := 0; i < 20; i++ {
		tr.launch("t", func() error {
			time.Sleep(time.Millisecond)
			finished.Add(1)
			return nil
		})
	}
	tr.wait()

	assert.Equal(t, int64(20), finished.Load())
	assert.Equal(t, int64(0), tr.inFlight.Load())
}
