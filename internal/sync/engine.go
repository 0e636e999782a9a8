// Package sync keeps the local store and the donation server in step.
//
// Reads are hybrid: refresh from the server when reachable, then answer from
// the local store. Writes are offline-first: applied locally at once and
// either sent to the server or queued for the next full pass.
package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/db"
	apperrors "github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/logging"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/metrics"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/sync/conflict"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/sync/queue"
)

// SyncStatus represents the current sync status.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
)

// Skip reasons of a pass that did not run.
const (
	SkipOffline    = "offline"
	SkipInProgress = "in_progress"
)

// SyncResult describes one full pass.
type SyncResult struct {
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`
	Uploaded     int           `json:"uploaded"`
	UploadFailed int           `json:"upload_failed"`
	Downloaded   int           `json:"downloaded"`
	Conflicts    int           `json:"conflicts"`
	Purged       int64         `json:"purged"`
	Skipped      string        `json:"skipped,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Option configures a SyncEngine.
type Option func(*SyncEngine)

// WithStrategy sets the download merge strategy.
func WithStrategy(s conflict.Strategy) Option {
	return func(e *SyncEngine) {
		e.strategy = s
	}
}

// WithLogger sets the logger. The default is the global logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *SyncEngine) {
		e.log = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *SyncEngine) {
		e.now = now
	}
}

// SyncEngine runs sync passes and the hybrid read and offline-first write
// operations. It holds no entity state between calls.
type SyncEngine struct {
	store    db.Store
	remote   Remote
	conn     Connectivity
	log      *logging.Logger
	now      func() time.Time
	strategy conflict.Strategy

	resolver  *conflict.Resolver
	processor *queue.Processor
	events    *eventBus

	syncing atomic.Bool

	mu       stdsync.RWMutex
	lastSync *time.Time
	lastErr  error
}

// NewSyncEngine creates a new SyncEngine.
func NewSyncEngine(store db.Store, remote Remote, conn Connectivity, opts ...Option) *SyncEngine {
	e := &SyncEngine{
		store:    store,
		remote:   remote,
		conn:     conn,
		log:      logging.Get(),
		now:      time.Now,
		strategy: conflict.StrategyLastWriteWins,
		events:   newEventBus(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resolver = conflict.NewResolver(e.strategy, e.log)
	e.processor = queue.NewProcessor(store, e.log)
	e.registerHandlers()
	return e
}

// Store returns the local store.
func (e *SyncEngine) Store() db.Store {
	return e.store
}

// Subscribe registers fn for sync events.
func (e *SyncEngine) Subscribe(fn func(Event)) func() {
	return e.events.subscribe(fn)
}

// Status returns the current sync status.
func (e *SyncEngine) Status() SyncStatus {
	if e.syncing.Load() {
		return SyncStatusSyncing
	}
	return SyncStatusIdle
}

// IsSyncing reports whether a pass is running.
func (e *SyncEngine) IsSyncing() bool {
	return e.syncing.Load()
}

// LastSync returns the timestamp of the last successful sync.
func (e *SyncEngine) LastSync() *time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSync
}

// LastError returns the last sync error.
func (e *SyncEngine) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// PendingChanges counts queue entries that are pending or failed.
func (e *SyncEngine) PendingChanges(ctx context.Context) (int, error) {
	stats, err := e.store.SyncQueueStats(ctx)
	if err != nil {
		return 0, err
	}
	return stats[models.QueueStatusPending] + stats[models.QueueStatusFailed], nil
}

// SyncAll runs one full pass. A pass already running or an unreachable
// server yields a result with Skipped set and no error. A failed pass returns
// its error after publishing sync_error.
func (e *SyncEngine) SyncAll(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{StartTime: e.now()}

	if e.syncing.Load() {
		return e.skip(result, SkipInProgress), nil
	}

	// The probe runs outside the guard so an offline pass never reports
	// syncing. Two callers racing past it still meet at the CAS.
	if !e.conn.CheckOnlineStatus(ctx) {
		return e.skip(result, SkipOffline), nil
	}

	if !e.syncing.CompareAndSwap(false, true) {
		return e.skip(result, SkipInProgress), nil
	}
	defer e.syncing.Store(false)

	e.events.publish(Event{Type: EventSyncStart, Time: result.StartTime})
	e.log.Info("Sync started")

	err := e.runPass(ctx, result)

	result.EndTime = e.now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.lastErr = err
	if err == nil {
		end := result.EndTime
		e.lastSync = &end
	}
	e.mu.Unlock()

	if err != nil {
		result.Error = err.Error()
		metrics.SyncPasses.WithLabelValues(metrics.OutcomeFailed).Inc()
		if apperrors.IsNetworkError(err) {
			e.log.Info("Sync interrupted, server unreachable", map[string]interface{}{"error": err.Error()})
		} else {
			e.log.ErrorWithCode("Sync failed", string(apperrors.ErrSyncFailed), err)
		}
		e.events.publish(Event{Type: EventSyncError, Message: err.Error(), Time: result.EndTime})
		return result, err
	}

	metrics.SyncPasses.WithLabelValues(metrics.OutcomeCompleted).Inc()
	e.log.Info("Sync completed", map[string]interface{}{
		"uploaded":      result.Uploaded,
		"upload_failed": result.UploadFailed,
		"downloaded":    result.Downloaded,
		"conflicts":     result.Conflicts,
		"purged":        result.Purged,
		"duration_ms":   result.Duration.Milliseconds(),
	})
	e.events.publish(Event{Type: EventSyncComplete, Result: result, Time: result.EndTime})
	return result, nil
}

func (e *SyncEngine) skip(result *SyncResult, reason string) *SyncResult {
	if reason == SkipOffline {
		e.log.Info("Offline, skipping sync")
	} else {
		e.log.Info("Sync already in progress, skipping")
	}
	result.Skipped = reason
	metrics.SyncPasses.WithLabelValues(metrics.OutcomeSkipped).Inc()
	return result
}

func (e *SyncEngine) runPass(ctx context.Context, result *SyncResult) error {
	// Step 1: Upload local changes
	stats, err := e.processor.Drain(ctx)
	result.Uploaded = stats.Processed
	result.UploadFailed = stats.Failed
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	// Step 2: Download remote changes
	donations, err := e.remote.ListDonations(ctx)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	applied, err := e.resolver.Apply(ctx, e.store, donations)
	result.Downloaded = applied.Applied
	result.Conflicts = applied.Skipped
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	// Step 3: Drop confirmed queue entries
	purged, err := e.store.ClearSyncQueue(ctx)
	result.Purged = purged
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	return nil
}
