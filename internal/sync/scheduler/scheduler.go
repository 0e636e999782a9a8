// Package scheduler polls connectivity in the background and runs a full sync
// whenever the server becomes reachable again.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/logging"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/metrics"
	syncpkg "github.com/akilamadhufin/lets-donate-mobile-app/internal/sync"
)

// Syncer runs full sync passes. *syncpkg.SyncEngine implements it.
type Syncer interface {
	SyncAll(ctx context.Context) (*syncpkg.SyncResult, error)
	IsSyncing() bool
}

// Monitor is the connectivity source. *network.Monitor implements it.
type Monitor interface {
	CheckOnlineStatus(ctx context.Context) bool
	IsOnline() bool
	OnOnline(fn func()) func()
	OnChange(fn func(online bool)) func()
}

// Scheduler manages background sync operations.
type Scheduler struct {
	engine       Syncer
	monitor      Monitor
	pollInterval time.Duration
	syncTimeout  time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
	mu           sync.RWMutex
	isRunning    bool
	stopped      bool
	lastSyncTime time.Time
	unsubscribe  []func()
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	PollInterval time.Duration // How often connectivity is probed (default: 10 seconds)
	SyncTimeout  time.Duration // Upper bound of one pass (default: 5 minutes)
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		PollInterval: 10 * time.Second,
		SyncTimeout:  5 * time.Minute,
	}
}

// NewScheduler creates a new Scheduler.
func NewScheduler(engine Syncer, monitor Monitor, config *SchedulerConfig) *Scheduler {
	defaults := DefaultSchedulerConfig()
	if config == nil {
		config = defaults
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.SyncTimeout <= 0 {
		config.SyncTimeout = defaults.SyncTimeout
	}

	return &Scheduler{
		engine:       engine,
		monitor:      monitor,
		pollInterval: config.PollInterval,
		syncTimeout:  config.SyncTimeout,
		stopCh:       make(chan struct{}),
	}
}

// Start subscribes to online transitions and starts the polling loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning || s.stopped {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.unsubscribe = append(s.unsubscribe,
		s.monitor.OnOnline(func() {
			logging.Info("Back online, triggering sync")
			s.TriggerSync(ctx)
		}),
		s.monitor.OnChange(metrics.SetOnline),
	)
	s.wg.Add(1)
	s.mu.Unlock()

	metrics.SetOnline(s.monitor.IsOnline())
	go s.pollLoop(ctx)

	logging.Info("Background sync scheduler started",
		map[string]interface{}{"poll_interval_ms": s.pollInterval.Milliseconds()})
}

// Stop stops polling and waits for running syncs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	wasRunning := s.isRunning
	s.isRunning = false
	s.stopped = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}

	// Signal stop to all goroutines
	close(s.stopCh)

	// Wait for goroutines to finish
	s.wg.Wait()

	if wasRunning {
		logging.Info("Background sync scheduler stopped")
	}
}

// pollLoop probes connectivity on every tick. The monitor turns an
// offline to online edge into an OnOnline callback.
func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.monitor.CheckOnlineStatus(ctx)
		}
	}
}

// TriggerSync starts a sync in the background.
// Returns true if sync was started, false if one is running or the
// scheduler has been stopped.
func (s *Scheduler) TriggerSync(ctx context.Context) bool {
	if s.engine.IsSyncing() {
		return false
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if _, err := s.SyncNow(ctx); err != nil {
			logging.ErrorWithCode("Background sync failed", string(errors.ErrSyncFailed), err)
		}
	}()
	return true
}

// SyncNow runs a sync and waits for it.
func (s *Scheduler) SyncNow(ctx context.Context) (*syncpkg.SyncResult, error) {
	syncCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	result, err := s.engine.SyncAll(syncCtx)
	if err != nil {
		return result, err
	}
	if result != nil && result.Skipped != "" {
		logging.Debug("Sync skipped", map[string]interface{}{"reason": result.Skipped})
		return result, nil
	}

	s.mu.Lock()
	s.lastSyncTime = time.Now()
	s.mu.Unlock()
	return result, nil
}

// SchedulerStatus is a snapshot of the scheduler.
type SchedulerStatus struct {
	IsRunning      bool       `json:"is_running"`
	IsOnline       bool       `json:"is_online"`
	LastSyncTime   *time.Time `json:"last_sync_time,omitempty"`
	SyncInProgress bool       `json:"sync_in_progress"`
}

// GetStatus returns the current status of the scheduler.
func (s *Scheduler) GetStatus() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		IsRunning:      s.isRunning,
		IsOnline:       s.monitor.IsOnline(),
		SyncInProgress: s.engine.IsSyncing(),
	}
	if !s.lastSyncTime.IsZero() {
		last := s.lastSyncTime
		status.LastSyncTime = &last
	}
	return status
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
