package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pricecmp/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCleaner struct{ calls atomic.Int32 }

func (f *fakeCleaner) Cleanup() int { f.calls.Add(1); return 2 }

type fakeSweeper struct{ calls atomic.Int32 }

func (f *fakeSweeper) Sweep() int { f.calls.Add(1); return 1 }

type fakeDirectory struct {
	mu       sync.Mutex
	failures int
	calls    int
	block    chan struct{}
}

func (f *fakeDirectory) RefreshDirectory(context.Context) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("aggregation service down")
	}
	return nil
}

func (f *fakeDirectory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestScheduler(cfg *config.SchedulerConfig, dir *fakeDirectory) (*Scheduler, *fakeCleaner, *fakeSweeper) {
	c, sw := &fakeCleaner{}, &fakeSweeper{}
	s := New(cfg, c, dir, sw, testLogger())
	s.backoff = func(int) time.Duration { return time.Millisecond }
	return s, c, sw
}

func TestTriggerRefresh_RetriesUntilSuccess(t *testing.T) {
	dir := &fakeDirectory{failures: 2}
	s, _, _ := newTestScheduler(&config.SchedulerConfig{}, dir)

	require.NoError(t, s.TriggerRefresh(context.Background()))
	require.Equal(t, 3, dir.count())
	require.False(t, s.LastRefresh().IsZero())
}

func TestTriggerRefresh_GivesUpAfterMaxRetries(t *testing.T) {
	dir := &fakeDirectory{failures: 10}
	s, _, _ := newTestScheduler(&config.SchedulerConfig{}, dir)

	require.Error(t, s.TriggerRefresh(context.Background()))
	require.Equal(t, 4, dir.count())
	require.True(t, s.LastRefresh().IsZero())
}

func TestRetry_StopsOnCancel(t *testing.T) {
	dir := &fakeDirectory{failures: 10}
	s, _, _ := newTestScheduler(&config.SchedulerConfig{}, dir)
	s.backoff = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	require.ErrorIs(t, s.TriggerRefresh(ctx), context.Canceled)
	require.Equal(t, 1, dir.count())
}

func TestRunTask_SkipsWhenAlreadyRunning(t *testing.T) {
	dir := &fakeDirectory{block: make(chan struct{})}
	s, _, _ := newTestScheduler(&config.SchedulerConfig{}, dir)

	done := make(chan error, 1)
	go func() { done <- s.TriggerRefresh(context.Background()) }()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.running["vendor_list_refresh"]
	}, time.Second, time.Millisecond)

	require.NoError(t, s.TriggerRefresh(context.Background()))
	close(dir.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, dir.count())
}

func TestStart_RunsPeriodicTasks(t *testing.T) {
	dir := &fakeDirectory{}
	s, c, sw := newTestScheduler(&config.SchedulerConfig{
		CacheCleanup:  5 * time.Millisecond,
		VendorRefresh: 5 * time.Millisecond,
		SessionSweep:  5 * time.Millisecond,
	}, dir)

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return c.calls.Load() >= 2 && sw.calls.Load() >= 2 && dir.count() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStart_ZeroIntervalDisablesTask(t *testing.T) {
	dir := &fakeDirectory{}
	s, c, _ := newTestScheduler(&config.SchedulerConfig{SessionSweep: 5 * time.Millisecond}, dir)

	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(30 * time.Millisecond)
	require.Zero(t, c.calls.Load())
	require.Zero(t, dir.count())
}
