package sync

import (
	"context"
	"time"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/api"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/db"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
)

// Remote is the server side of synchronization. *api.Client implements it.
type Remote interface {
	ListDonations(ctx context.Context) ([]*models.Donation, error)
	ListUserDonations(ctx context.Context, userID string) ([]*models.Donation, error)
	CreateDonation(ctx context.Context, in models.DonationInput) (*models.Donation, error)
	UpdateDonation(ctx context.Context, id string, in models.DonationInput) (*models.Donation, error)
	DeleteDonation(ctx context.Context, id string) error
	GetCart(ctx context.Context, userID string) ([]api.CartEntry, error)
	BookItem(ctx context.Context, userID, itemID string) error
	RemoveFromCart(ctx context.Context, userID, itemID string) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdateUser(ctx context.Context, userID string, up models.UserUpdate) (*models.User, error)
}

// Connectivity reports reachability of the server. *network.Monitor
// implements it.
type Connectivity interface {
	IsOnline() bool
	CheckOnlineStatus(ctx context.Context) bool
}

// SyncEngineInterface is what the lifecycle glue and the CLI use.
type SyncEngineInterface interface {
	// SyncAll runs one full pass: upload queue, download donations, purge.
	SyncAll(ctx context.Context) (*SyncResult, error)

	// Subscribe registers fn for sync events and returns its unsubscribe.
	Subscribe(fn func(Event)) func()

	// Status returns the current state.
	Status() SyncStatus

	// IsSyncing reports whether a pass is running.
	IsSyncing() bool

	// LastSync returns the end time of the last successful pass.
	LastSync() *time.Time

	// LastError returns the error of the last pass, if any.
	LastError() error

	// PendingChanges counts queue entries still to upload.
	PendingChanges(ctx context.Context) (int, error)

	// Store exposes the local store.
	Store() db.Store
}

var (
	_ SyncEngineInterface = (*SyncEngine)(nil)
	_ Remote              = (*api.Client)(nil)
)
