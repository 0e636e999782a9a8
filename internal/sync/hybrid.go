package sync

import (
	"context"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/db"
	apperrors "github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
)

// GetDonations refreshes the donation list when online and returns the
// local copy. A failed fetch is logged, never returned; store faults are.
func (e *SyncEngine) GetDonations(ctx context.Context) ([]*models.Donation, error) {
	if err := e.refreshDonations(ctx); err != nil {
		return nil, err
	}
	return e.store.GetAllDonations(ctx)
}

// GetMyDonations is GetDonations restricted to the donations of userID.
func (e *SyncEngine) GetMyDonations(ctx context.Context, userID string) ([]*models.Donation, error) {
	if err := required("user id", userID); err != nil {
		return nil, err
	}
	if e.conn.CheckOnlineStatus(ctx) {
		donations, err := e.remote.ListUserDonations(ctx, userID)
		if err != nil {
			e.logRefreshError("Fetching user donations failed, using local data", err, map[string]interface{}{"user_id": userID})
		} else if _, err := e.resolver.Apply(ctx, e.store, donations); err != nil {
			return nil, err
		}
	}
	return e.store.GetDonationsByUserID(ctx, userID)
}

// SearchDonations refreshes like GetDonations and then filters locally.
func (e *SyncEngine) SearchDonations(ctx context.Context, q db.DonationQuery) ([]*models.Donation, error) {
	if err := e.refreshDonations(ctx); err != nil {
		return nil, err
	}
	return e.store.SearchDonations(ctx, q)
}

// GetCart reconciles the cart of userID with the server when online and
// returns the local cart.
func (e *SyncEngine) GetCart(ctx context.Context, userID string) ([]*models.CartItem, error) {
	if err := required("user id", userID); err != nil {
		return nil, err
	}
	if e.conn.CheckOnlineStatus(ctx) {
		err := e.SyncCart(ctx, userID)
		if apperrors.Is(err, apperrors.ErrDatabase) {
			return nil, err
		}
		e.logRefreshError("Fetching cart failed, using local data", err, map[string]interface{}{"user_id": userID})
	}
	return e.store.GetCartByUserID(ctx, userID)
}

// GetUser returns the server copy of userID when reachable, caching it, and
// the local copy otherwise. It returns nil when the user is unknown locally.
func (e *SyncEngine) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if err := required("user id", userID); err != nil {
		return nil, err
	}
	if e.conn.CheckOnlineStatus(ctx) {
		u, err := e.remote.GetUser(ctx, userID)
		if err == nil && u != nil {
			if err := e.store.SaveUser(ctx, u); err != nil {
				return nil, err
			}
			return u, nil
		}
		e.logRefreshError("Fetching user failed, using local data", err, map[string]interface{}{"user_id": userID})
	}

	u, err := e.store.GetUserByServerID(ctx, userID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// SyncCart replaces the local cart of userID with the server cart. Donations
// the server sent populated are cached on the way.
func (e *SyncEngine) SyncCart(ctx context.Context, userID string) error {
	if err := required("user id", userID); err != nil {
		return err
	}
	entries, err := e.remote.GetCart(ctx, userID)
	if err != nil {
		return err
	}

	itemIDs := make([]string, 0, len(entries))
	populated := make([]*models.Donation, 0, len(entries))
	for _, entry := range entries {
		if entry.ItemID == "" {
			continue
		}
		itemIDs = append(itemIDs, entry.ItemID)
		if entry.Item != nil {
			populated = append(populated, entry.Item)
		}
	}

	if _, err := e.resolver.Apply(ctx, e.store, populated); err != nil {
		return err
	}
	return e.store.ReplaceCart(ctx, userID, itemIDs)
}

// refreshDonations downloads the donation list when online. Only store
// faults are returned.
func (e *SyncEngine) refreshDonations(ctx context.Context) error {
	if !e.conn.CheckOnlineStatus(ctx) {
		return nil
	}
	donations, err := e.remote.ListDonations(ctx)
	if err != nil {
		e.logRefreshError("Fetching donations failed, using local data", err)
		return nil
	}
	_, err = e.resolver.Apply(ctx, e.store, donations)
	return err
}

func (e *SyncEngine) logRefreshError(msg string, err error, fields ...map[string]interface{}) {
	if err == nil {
		return
	}
	if apperrors.IsNetworkError(err) {
		e.log.Info(msg, append(fields, map[string]interface{}{"error": err.Error()})...)
		return
	}
	e.log.Error(msg, err, fields...)
}

func required(name, value string) error {
	if value == "" {
		return apperrors.Newf(apperrors.ErrValidation, "%s is required", name)
	}
	return nil
}
