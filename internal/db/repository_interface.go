package db

import (
	"context"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
)

// UserRepository defines operations for cached user persistence.
type UserRepository interface {
	SaveUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByServerID(ctx context.Context, serverID string) (*models.User, error)
	UpdateUser(ctx context.Context, serverID string, up models.UserUpdate) error
	MarkUserSynced(ctx context.Context, serverID string) error
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// DonationRepository defines operations for donation persistence.
type DonationRepository interface {
	SaveDonation(ctx context.Context, d *models.Donation) error
	MergeDonation(ctx context.Context, d *models.Donation) (bool, error)
	SaveLocalDonation(ctx context.Context, d *models.Donation) error
	GetAllDonations(ctx context.Context) ([]*models.Donation, error)
	GetDonationsByUserID(ctx context.Context, userID string) ([]*models.Donation, error)
	SearchDonations(ctx context.Context, q DonationQuery) ([]*models.Donation, error)
	GetDonationByServerID(ctx context.Context, serverID string) (*models.Donation, error)
	UpdateDonation(ctx context.Context, d *models.Donation) error
	SetDonationBooking(ctx context.Context, serverID, bookedBy string) (bool, error)
	DeleteDonation(ctx context.Context, serverID string) (bool, error)
	MarkDonationSynced(ctx context.Context, serverID, newServerID string) error
}

// CartRepository defines operations for cart persistence.
type CartRepository interface {
	AddToCart(ctx context.Context, userID, itemID string, synced bool) (bool, error)
	GetCartByUserID(ctx context.Context, userID string) ([]*models.CartItem, error)
	RemoveFromCart(ctx context.Context, userID, itemID string) (bool, error)
	ClearCart(ctx context.Context, userID string) error
	ReplaceCart(ctx context.Context, userID string, itemIDs []string) error
	GetCartCount(ctx context.Context, userID string) (int, error)
}

// SyncQueueRepository defines operations on the outbound mutation queue.
type SyncQueueRepository interface {
	AddToSyncQueue(ctx context.Context, op models.Operation, entity models.EntityType, entityID string, data interface{}) (int64, error)
	GetPendingSyncItems(ctx context.Context) ([]*models.SyncQueueEntry, error)
	ListSyncItems(ctx context.Context, status models.QueueStatus) ([]*models.SyncQueueEntry, error)
	MarkSyncItemCompleted(ctx context.Context, id int64) error
	MarkSyncItemFailed(ctx context.Context, id int64, errMsg string) error
	ClearSyncQueue(ctx context.Context) (int64, error)
	ResetFailedSyncItems(ctx context.Context) (int64, error)
	UpdateSyncItemData(ctx context.Context, op models.Operation, entity models.EntityType, entityID string, data interface{}) (int64, error)
	DeletePendingSyncItems(ctx context.Context, entity models.EntityType, entityID string) (int64, error)
	SyncQueueStats(ctx context.Context) (map[models.QueueStatus]int, error)
}

// Store combines every repository the sync engine needs.
type Store interface {
	UserRepository
	DonationRepository
	CartRepository
	SyncQueueRepository
	ClearAllData(ctx context.Context) error
}

// Ensure *Repository implements the interfaces at compile time.
var (
	_ UserRepository      = (*Repository)(nil)
	_ DonationRepository  = (*Repository)(nil)
	_ CartRepository      = (*Repository)(nil)
	_ SyncQueueRepository = (*Repository)(nil)
	_ Store               = (*Repository)(nil)
)
