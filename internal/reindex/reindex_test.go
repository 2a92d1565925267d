package reindex

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestMaybeReindex_StampedeCollapsesToOneRun mirrors spec §8 end-to-end
// scenario 5: ten concurrent callers on a stale project trigger exactly one
// reparse, and all ten calls observe its result.
func TestMaybeReindex_StampedeCollapsesToOneRun(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	reindexer := func(ctx context.Context, projectPath string, lastIndexedMS int64) error {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			close(started)
		}
		<-release
		return nil
	}

	s := NewScheduler(time.Hour, reindexer, zap.NewNop())

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-started // ensure the first caller has already entered the reindex func
			errs[i] = s.MaybeReindex(context.Background(), "/repo/demo")
		}(i)
	}

	// Kick off the first call, which starts the in-flight reparse the other
	// nine will be waiting on by the time they enter MaybeReindex.
	go func() {
		_ = s.MaybeReindex(context.Background(), "/repo/demo")
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

// TestMaybeReindex_CooldownSuppressesSubsequentRuns covers the second half
// of spec §8 scenario 5: during the cooldown window after a successful run,
// further callers trigger no additional reparse.
func TestMaybeReindex_CooldownSuppressesSubsequentRuns(t *testing.T) {
	var calls int32
	reindexer := func(ctx context.Context, projectPath string, lastIndexedMS int64) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}

	s := NewScheduler(time.Hour, reindexer, zap.NewNop())

	require.NoError(t, s.MaybeReindex(context.Background(), "/repo/demo"))
	require.NoError(t, s.MaybeReindex(context.Background(), "/repo/demo"))
	require.NoError(t, s.MaybeReindex(context.Background(), "/repo/demo"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// TestMaybeReindex_FailureDoesNotPoisonNextAttempt ensures a failed reparse
// lets the next eligible caller retry (spec §4.9).
func TestMaybeReindex_FailureDoesNotPoisonNextAttempt(t *testing.T) {
	var calls int32
	reindexer := func(ctx context.Context, projectPath string, lastIndexedMS int64) error {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return assertError("boom")
		}
		return nil
	}

	s := NewScheduler(0, reindexer, zap.NewNop())

	err := s.MaybeReindex(context.Background(), "/repo/demo")
	require.Error(t, err)

	err = s.MaybeReindex(context.Background(), "/repo/demo")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

type assertError string

func (e assertError) Error() string { return string(e) }
