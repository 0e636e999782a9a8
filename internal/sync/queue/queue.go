// Package queue drains the persisted sync queue against the remote server.
package queue

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/logging"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/metrics"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
)

// Store is the part of the local store the processor needs.
type Store interface {
	GetPendingSyncItems(ctx context.Context) ([]*models.SyncQueueEntry, error)
	MarkSyncItemCompleted(ctx context.Context, id int64) error
	MarkSyncItemFailed(ctx context.Context, id int64, errMsg string) error
}

// Handler replays one queued mutation against the server.
type Handler func(ctx context.Context, entry *models.SyncQueueEntry) error

// Stats summarizes one drain.
type Stats struct {
	Processed int
	Failed    int
}

// Processor dispatches pending entries by "entity.operation".
type Processor struct {
	store    Store
	log      *logging.Logger
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewProcessor creates a Processor over store.
func NewProcessor(store Store, log *logging.Logger) *Processor {
	if log == nil {
		log = logging.Get()
	}
	return &Processor{
		store:    store,
		log:      log,
		handlers: make(map[string]Handler),
	}
}

// Register installs the handler for (entity, op), replacing any previous one.
func (p *Processor) Register(entity models.EntityType, op models.Operation, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[key(entity, op)] = h
}

func (p *Processor) handler(entity models.EntityType, op models.Operation) (Handler, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handlers[key(entity, op)]
	return h, ok
}

func key(entity models.EntityType, op models.Operation) string {
	return fmt.Sprintf("%s.%s", entity, op)
}

// Drain processes every pending entry in FIFO order. A failing entry is
// marked failed and the drain moves on; only store faults and context
// cancellation stop it early.
func (p *Processor) Drain(ctx context.Context) (Stats, error) {
	var stats Stats

	entries, err := p.store.GetPendingSyncItems(ctx)
	if err != nil {
		return stats, err
	}
	if len(entries) == 0 {
		return stats, nil
	}

	p.log.Info("Processing sync queue", map[string]interface{}{
		"pending": len(entries),
	})

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if err := p.dispatch(ctx, entry); err != nil {
			stats.Failed++
			metrics.QueueFailed.Inc()
			p.logFailure(entry, err)
			if markErr := p.store.MarkSyncItemFailed(ctx, entry.ID, err.Error()); markErr != nil {
				return stats, markErr
			}
			continue
		}

		stats.Processed++
		metrics.QueueProcessed.Inc()
		if err := p.store.MarkSyncItemCompleted(ctx, entry.ID); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

func (p *Processor) dispatch(ctx context.Context, entry *models.SyncQueueEntry) error {
	h, ok := p.handler(entry.EntityType, entry.Operation)
	if !ok {
		return apperrors.Newf(apperrors.ErrUnknownEntity, "no handler for %s", entry.Key())
	}
	return h(ctx, entry)
}

func (p *Processor) logFailure(entry *models.SyncQueueEntry, err error) {
	fields := map[string]interface{}{
		"entry_id": entry.ID,
		"key":      entry.Key(),
		"retries":  entry.Retries + 1,
	}
	if apperrors.IsNetworkError(err) {
		fields["error"] = err.Error()
		p.log.Info("Sync item deferred, server unreachable", fields)
		return
	}
	p.log.ErrorWithCode("Sync item failed", string(apperrors.ErrSyncFailed), err, fields)
}
