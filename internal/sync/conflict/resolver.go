// Package conflict applies downloaded server rows to the local store.
//
// The server is the authority. Under last-write-wins every downloaded row
// overwrites the local copy, including edits that have not been uploaded yet.
// Under preserve-unsynced such rows are left alone and their queued mutation
// wins on the next upload.
package conflict

import (
	"context"
	"fmt"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/logging"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
)

// Strategy selects how downloaded rows meet unsynced local edits.
type Strategy string

const (
	StrategyLastWriteWins    Strategy = "last_write_wins"
	StrategyPreserveUnsynced Strategy = "preserve_unsynced"
)

// StrategyFor maps the sync.preserve_unsynced setting to a Strategy.
func StrategyFor(preserveUnsynced bool) Strategy {
	if preserveUnsynced {
		return StrategyPreserveUnsynced
	}
	return StrategyLastWriteWins
}

// Store is the part of the local store the resolver writes through.
type Store interface {
	SaveDonation(ctx context.Context, d *models.Donation) error
	MergeDonation(ctx context.Context, d *models.Donation) (bool, error)
}

// Result counts what happened to a batch.
type Result struct {
	Applied int
	Skipped int
}

// Resolver applies server rows with a fixed strategy.
type Resolver struct {
	strategy Strategy
	log      *logging.Logger
}

// NewResolver creates a Resolver. Unknown strategies fall back to
// last-write-wins.
func NewResolver(strategy Strategy, log *logging.Logger) *Resolver {
	if strategy != StrategyPreserveUnsynced {
		strategy = StrategyLastWriteWins
	}
	if log == nil {
		log = logging.Get()
	}
	return &Resolver{strategy: strategy, log: log}
}

// Strategy returns the active strategy.
func (r *Resolver) Strategy() Strategy {
	return r.strategy
}

// Apply writes donations to store. It stops at the first store fault.
func (r *Resolver) Apply(ctx context.Context, store Store, donations []*models.Donation) (Result, error) {
	var res Result
	for _, d := range donations {
		if d == nil || d.ServerID == "" {
			res.Skipped++
			continue
		}

		if r.strategy == StrategyLastWriteWins {
			if err := store.SaveDonation(ctx, d); err != nil {
				return res, fmt.Errorf("apply donation %s: %w", d.ServerID, err)
			}
			res.Applied++
			continue
		}

		applied, err := store.MergeDonation(ctx, d)
		if err != nil {
			return res, fmt.Errorf("merge donation %s: %w", d.ServerID, err)
		}
		if !applied {
			res.Skipped++
			r.log.Info("Kept unsynced local donation", map[string]interface{}{
				"server_id": d.ServerID,
				"strategy":  string(r.strategy),
			})
			continue
		}
		res.Applied++
	}
	return res, nil
}
