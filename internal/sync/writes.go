package sync

import (
	"context"

	apperrors "github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/uuid"
)

var (
	sent     = models.WriteResult{Success: true}
	deferred = models.WriteResult{Success: true, Offline: true}
)

// BookItem books itemID for userID. The local cart and donation change at
// once; the server call is made now when reachable and queued otherwise.
func (e *SyncEngine) BookItem(ctx context.Context, userID, itemID string) (models.WriteResult, error) {
	if err := required("user id", userID); err != nil {
		return models.WriteResult{}, err
	}
	if err := required("item id", itemID); err != nil {
		return models.WriteResult{}, err
	}
	online := e.conn.CheckOnlineStatus(ctx)

	if _, err := e.store.AddToCart(ctx, userID, itemID, false); err != nil {
		return models.WriteResult{}, err
	}
	if _, err := e.store.SetDonationBooking(ctx, itemID, userID); err != nil {
		return models.WriteResult{}, err
	}

	return e.sendOrQueue(ctx, online, func() error {
		return e.remote.BookItem(ctx, userID, itemID)
	}, models.OperationAdd, models.EntityCart, itemID, models.CartPayload{UserID: userID, ItemID: itemID})
}

// RemoveFromCart releases a booking made with BookItem.
func (e *SyncEngine) RemoveFromCart(ctx context.Context, userID, itemID string) (models.WriteResult, error) {
	if err := required("user id", userID); err != nil {
		return models.WriteResult{}, err
	}
	if err := required("item id", itemID); err != nil {
		return models.WriteResult{}, err
	}
	online := e.conn.CheckOnlineStatus(ctx)

	if _, err := e.store.RemoveFromCart(ctx, userID, itemID); err != nil {
		return models.WriteResult{}, err
	}
	if _, err := e.store.SetDonationBooking(ctx, itemID, ""); err != nil {
		return models.WriteResult{}, err
	}

	return e.sendOrQueue(ctx, online, func() error {
		return ignoreGone(e.remote.RemoveFromCart(ctx, userID, itemID))
	}, models.OperationRemove, models.EntityCart, itemID, models.CartPayload{UserID: userID, ItemID: itemID})
}

// DeleteDonation removes a donation. Deleting a donation that never reached
// the server only drops its queued create.
func (e *SyncEngine) DeleteDonation(ctx context.Context, donationID string) (models.WriteResult, error) {
	if err := required("donation id", donationID); err != nil {
		return models.WriteResult{}, err
	}

	if uuid.IsLocalID(donationID) {
		if _, err := e.store.DeleteDonation(ctx, donationID); err != nil {
			return models.WriteResult{}, err
		}
		if _, err := e.store.DeletePendingSyncItems(ctx, models.EntityDonation, donationID); err != nil {
			return models.WriteResult{}, err
		}
		return sent, nil
	}

	online := e.conn.CheckOnlineStatus(ctx)
	if _, err := e.store.DeleteDonation(ctx, donationID); err != nil {
		return models.WriteResult{}, err
	}
	// Pending edits of a deleted donation would only fail upstream.
	if _, err := e.store.DeletePendingSyncItems(ctx, models.EntityDonation, donationID); err != nil {
		return models.WriteResult{}, err
	}

	return e.sendOrQueue(ctx, online, func() error {
		return ignoreGone(e.remote.DeleteDonation(ctx, donationID))
	}, models.OperationDelete, models.EntityDonation, donationID, nil)
}

// CreateDonation publishes a new donation. Offline it is stored under a
// placeholder id which the next sync replaces with the server id.
func (e *SyncEngine) CreateDonation(ctx context.Context, in models.DonationInput) (*models.Donation, models.WriteResult, error) {
	if err := required("user id", in.UserID); err != nil {
		return nil, models.WriteResult{}, err
	}
	if err := required("title", in.Title); err != nil {
		return nil, models.WriteResult{}, err
	}

	if e.conn.CheckOnlineStatus(ctx) {
		created, err := e.remote.CreateDonation(ctx, in)
		if err == nil && created != nil && created.ServerID != "" {
			if err := e.store.SaveDonation(ctx, created); err != nil {
				return nil, models.WriteResult{}, err
			}
			return created, sent, nil
		}
		if err != nil {
			e.logDeferred("create donation", err)
		}
	}

	d := &models.Donation{ServerID: uuid.NewLocalID()}
	in.ApplyTo(d)
	if err := e.store.SaveLocalDonation(ctx, d); err != nil {
		return nil, models.WriteResult{}, err
	}
	if _, err := e.store.AddToSyncQueue(ctx, models.OperationCreate, models.EntityDonation, d.ServerID, in); err != nil {
		return nil, models.WriteResult{}, err
	}
	return d, deferred, nil
}

// UpdateDonation edits donationID. Editing a donation that is still only
// local rewrites its queued create instead.
func (e *SyncEngine) UpdateDonation(ctx context.Context, donationID string, in models.DonationInput) (*models.Donation, models.WriteResult, error) {
	if err := required("donation id", donationID); err != nil {
		return nil, models.WriteResult{}, err
	}

	d, err := e.store.GetDonationByServerID(ctx, donationID)
	if err != nil {
		return nil, models.WriteResult{}, err
	}
	in.ApplyTo(d)
	if err := e.store.UpdateDonation(ctx, d); err != nil {
		return nil, models.WriteResult{}, err
	}

	if uuid.IsLocalID(donationID) {
		if in.UserID == "" {
			in.UserID = d.UserID
		}
		if _, err := e.store.UpdateSyncItemData(ctx, models.OperationCreate, models.EntityDonation, donationID, in); err != nil {
			return nil, models.WriteResult{}, err
		}
		return d, deferred, nil
	}

	if e.conn.CheckOnlineStatus(ctx) {
		updated, err := e.remote.UpdateDonation(ctx, donationID, in)
		if err == nil {
			if err := e.confirmDonation(ctx, donationID, updated); err != nil {
				return nil, models.WriteResult{}, err
			}
			if updated != nil && updated.ServerID != "" {
				return updated, sent, nil
			}
			d.Synced = true
			return d, sent, nil
		}
		e.logDeferred("update donation", err)
	}

	// A later edit supersedes a queued one.
	n, err := e.store.UpdateSyncItemData(ctx, models.OperationUpdate, models.EntityDonation, donationID, in)
	if err != nil {
		return nil, models.WriteResult{}, err
	}
	if n == 0 {
		if _, err := e.store.AddToSyncQueue(ctx, models.OperationUpdate, models.EntityDonation, donationID, in); err != nil {
			return nil, models.WriteResult{}, err
		}
	}
	return d, deferred, nil
}

// UpdateUser edits the profile of userID. Password changes are never queued:
// they need the server now.
func (e *SyncEngine) UpdateUser(ctx context.Context, userID string, up models.UserUpdate) (models.WriteResult, error) {
	if err := required("user id", userID); err != nil {
		return models.WriteResult{}, err
	}
	online := e.conn.CheckOnlineStatus(ctx)
	if up.Password != "" && !online {
		return models.WriteResult{}, apperrors.New(apperrors.ErrNetwork, "changing the password requires a connection")
	}

	if err := e.store.UpdateUser(ctx, userID, up); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return models.WriteResult{}, err
	}

	if online {
		updated, err := e.remote.UpdateUser(ctx, userID, up)
		if err == nil {
			return sent, e.confirmUser(ctx, userID, updated)
		}
		if up.Password != "" {
			return models.WriteResult{}, err
		}
		e.logDeferred("update user", err)
	}

	n, err := e.store.UpdateSyncItemData(ctx, models.OperationUpdate, models.EntityUser, userID, up)
	if err != nil {
		return models.WriteResult{}, err
	}
	if n == 0 {
		if _, err := e.store.AddToSyncQueue(ctx, models.OperationUpdate, models.EntityUser, userID, up); err != nil {
			return models.WriteResult{}, err
		}
	}
	return deferred, nil
}

// sendOrQueue runs send when online and queues the mutation when offline or
// when send fails.
func (e *SyncEngine) sendOrQueue(ctx context.Context, online bool, send func() error,
	op models.Operation, entity models.EntityType, entityID string, data interface{}) (models.WriteResult, error) {
	if online {
		err := send()
		if err == nil {
			return sent, nil
		}
		e.logDeferred(string(entity)+" "+string(op), err)
	}
	if _, err := e.store.AddToSyncQueue(ctx, op, entity, entityID, data); err != nil {
		return models.WriteResult{}, err
	}
	return deferred, nil
}

func (e *SyncEngine) logDeferred(action string, err error) {
	fields := map[string]interface{}{"action": action, "error": err.Error()}
	if apperrors.IsNetworkError(err) {
		e.log.Info("Server unreachable, queued for later", fields)
		return
	}
	e.log.Warn("Server rejected change, queued for later", fields)
}
