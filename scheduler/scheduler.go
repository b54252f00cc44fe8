package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pricecmp/config"
)

// Cleaner drops expired cache entries and reports how many it removed.
type Cleaner interface {
	Cleanup() int
}

type DirectoryRefresher interface {
	RefreshDirectory(ctx context.Context) error
}

type Sweeper interface {
	Sweep() int
}

type Scheduler struct {
	cfg       *config.SchedulerConfig
	cache     Cleaner
	directory DirectoryRefresher
	sessions  Sweeper
	log       *slog.Logger

	// backoff returns the wait before retry attempt i.
	backoff    func(i int) time.Duration
	maxRetries int

	mu          sync.Mutex
	running     map[string]bool
	cancel      context.CancelFunc
	lastRefresh time.Time
}

func New(cfg *config.SchedulerConfig, c Cleaner, dir DirectoryRefresher, sessions Sweeper, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		cache:      c,
		directory:  dir,
		sessions:   sessions,
		log:        logger,
		backoff:    func(i int) time.Duration { return time.Duration(i*i) * time.Second },
		maxRetries: 3,
		running:    make(map[string]bool),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.loop(ctx, "cache_cleanup", s.cfg.CacheCleanup, s.taskCacheCleanup)
	go s.loop(ctx, "vendor_list_refresh", s.cfg.VendorRefresh, s.taskVendorRefresh)
	go s.loop(ctx, "session_sweep", s.cfg.SessionSweep, s.taskSessionSweep)

	s.log.Info("scheduler started",
		"cache_cleanup", s.cfg.CacheCleanup,
		"vendor_list_refresh", s.cfg.VendorRefresh,
		"session_sweep", s.cfg.SessionSweep,
	)
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// TriggerRefresh reloads the vendor directory now, outside the schedule.
func (s *Scheduler) TriggerRefresh(ctx context.Context) error {
	return s.runTask(ctx, "vendor_list_refresh", func() error {
		return s.taskVendorRefresh(ctx)
	})
}

func (s *Scheduler) LastRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) {
	if interval <= 0 {
		s.log.Info("scheduled task disabled", "task", name)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runTask(ctx, name, func() error { return task(ctx) }); err != nil {
				s.log.Error("scheduled task failed", "task", name, "err", err)
			}
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, name string, fn func() error) error {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.log.Debug("task already running, skipping", "task", name)
		return nil
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	s.log.Debug("running scheduled task", "task", name)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	if err != nil {
		s.log.Error("task failed", "task", name, "elapsed", elapsed, "err", err)
		return s.retry(ctx, name, fn)
	}

	s.log.Debug("task completed", "task", name, "elapsed", elapsed)
	return nil
}

func (s *Scheduler) retry(ctx context.Context, name string, fn func() error) error {
	var lastErr error
	for i := 1; i <= s.maxRetries; i++ {
		delay := s.backoff(i)
		s.log.Info("retrying task", "task", name, "attempt", i, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := fn(); err != nil {
			lastErr = err
			s.log.Warn("retry failed", "task", name, "attempt", i, "err", err)
			continue
		}
		s.log.Info("retry succeeded", "task", name, "attempt", i)
		return nil
	}
	return lastErr
}

func (s *Scheduler) taskCacheCleanup(_ context.Context) error {
	removed := s.cache.Cleanup()
	if removed > 0 {
		s.log.Info("cache cleanup", "removed", removed)
	}
	return nil
}

func (s *Scheduler) taskVendorRefresh(ctx context.Context) error {
	if err := s.directory.RefreshDirectory(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastRefresh = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) taskSessionSweep(_ context.Context) error {
	closed := s.sessions.Sweep()
	if closed > 0 {
		s.log.Info("idle page sessions closed", "closed", closed)
	}
	return nil
}
