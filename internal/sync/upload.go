package sync

import (
	"context"
	"net/http"

	apperrors "github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
)

func (e *SyncEngine) registerHandlers() {
	e.processor.Register(models.EntityDonation, models.OperationCreate, e.uploadDonationCreate)
	e.processor.Register(models.EntityDonation, models.OperationUpdate, e.uploadDonationUpdate)
	e.processor.Register(models.EntityDonation, models.OperationDelete, e.uploadDonationDelete)
	e.processor.Register(models.EntityCart, models.OperationAdd, e.uploadCartAdd)
	e.processor.Register(models.EntityCart, models.OperationRemove, e.uploadCartRemove)
	e.processor.Register(models.EntityUser, models.OperationUpdate, e.uploadUserUpdate)
}

// uploadDonationCreate sends a donation created offline and swaps its
// placeholder id for the one the server assigned.
func (e *SyncEngine) uploadDonationCreate(ctx context.Context, entry *models.SyncQueueEntry) error {
	var in models.DonationInput
	if err := entry.DecodeData(&in); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "decode donation create", err)
	}
	created, err := e.remote.CreateDonation(ctx, in)
	if err != nil {
		return err
	}
	if created == nil || created.ServerID == "" {
		// The next download brings the server copy.
		_, err := e.store.DeleteDonation(ctx, entry.EntityID)
		return err
	}
	if err := e.store.MarkDonationSynced(ctx, entry.EntityID, created.ServerID); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return e.store.SaveDonation(ctx, created)
}

func (e *SyncEngine) uploadDonationUpdate(ctx context.Context, entry *models.SyncQueueEntry) error {
	var in models.DonationInput
	if err := entry.DecodeData(&in); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "decode donation update", err)
	}
	updated, err := e.remote.UpdateDonation(ctx, entry.EntityID, in)
	if err != nil {
		return err
	}
	return e.confirmDonation(ctx, entry.EntityID, updated)
}

func (e *SyncEngine) uploadDonationDelete(ctx context.Context, entry *models.SyncQueueEntry) error {
	return ignoreGone(e.remote.DeleteDonation(ctx, entry.EntityID))
}

func (e *SyncEngine) uploadCartAdd(ctx context.Context, entry *models.SyncQueueEntry) error {
	var p models.CartPayload
	if err := entry.DecodeData(&p); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "decode cart add", err)
	}
	return e.remote.BookItem(ctx, p.UserID, p.ItemID)
}

func (e *SyncEngine) uploadCartRemove(ctx context.Context, entry *models.SyncQueueEntry) error {
	var p models.CartPayload
	if err := entry.DecodeData(&p); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "decode cart remove", err)
	}
	return ignoreGone(e.remote.RemoveFromCart(ctx, p.UserID, p.ItemID))
}

func (e *SyncEngine) uploadUserUpdate(ctx context.Context, entry *models.SyncQueueEntry) error {
	var up models.UserUpdate
	if err := entry.DecodeData(&up); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "decode user update", err)
	}
	updated, err := e.remote.UpdateUser(ctx, entry.EntityID, up)
	if err != nil {
		return err
	}
	return e.confirmUser(ctx, entry.EntityID, updated)
}

// confirmDonation records a server acknowledgement of an update. A nil
// record means the server acked without echoing the row.
func (e *SyncEngine) confirmDonation(ctx context.Context, id string, rec *models.Donation) error {
	if rec != nil && rec.ServerID != "" {
		return e.store.SaveDonation(ctx, rec)
	}
	err := e.store.MarkDonationSynced(ctx, id, "")
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	return err
}

func (e *SyncEngine) confirmUser(ctx context.Context, id string, rec *models.User) error {
	if rec != nil && rec.ServerID != "" {
		return e.store.SaveUser(ctx, rec)
	}
	return e.store.MarkUserSynced(ctx, id)
}

// ignoreGone treats 404 on a removal as done: the server no longer has it.
func ignoreGone(err error) error {
	if apperrors.HTTPStatus(err) == http.StatusNotFound {
		return nil
	}
	return err
}
