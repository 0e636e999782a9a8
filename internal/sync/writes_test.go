package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/uuid"
)

func TestBookItem_offlineQueues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.seedDonation(t, "d1", "owner")

	res, err := f.engine.BookItem(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, models.WriteResult{Success: true, Offline: true}, res)

	d, err := f.store.GetDonationByServerID(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, d.Available)
	assert.Equal(t, "u1", d.BookedBy)

	cart, err := f.store.GetCartByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, "d1", cart[0].ItemID)

	q := f.queue(t)
	require.Len(t, q, 1)
	assert.Equal(t, models.OperationAdd, q[0].Operation)
	assert.Equal(t, models.EntityCart, q[0].EntityType)
	var p models.CartPayload
	require.NoError(t, q[0].DecodeData(&p))
	assert.Equal(t, models.CartPayload{UserID: "u1", ItemID: "d1"}, p)
	assert.Empty(t, f.remote.Calls())
}

func TestBookItem_online(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seedDonation(t, "d1", "owner")

	res, err := f.engine.BookItem(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, models.WriteResult{Success: true}, res)
	assert.Equal(t, []string{"BookItem u1 d1"}, f.remote.Calls())
	assert.Empty(t, f.queue(t))
}

func TestBookItem_remoteFailureQueues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seedDonation(t, "d1", "owner")
	f.remote.setErr(apperrors.Wrap(apperrors.ErrNetwork, "POST /api/cart/book", errors.New("Network request failed")))

	res, err := f.engine.BookItem(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Offline)
	assert.Len(t, f.queue(t), 1)
}

func TestBookItem_validation(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.engine.BookItem(context.Background(), "", "d1")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	_, err = f.engine.BookItem(context.Background(), "u1", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	assert.Empty(t, f.remote.Calls())
	assert.Empty(t, f.queue(t))
}

func TestRemoveFromCart_offlineRestoresAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.seedDonation(t, "d1", "owner")

	_, err := f.engine.BookItem(ctx, "u1", "d1")
	require.NoError(t, err)
	res, err := f.engine.RemoveFromCart(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.True(t, res.Offline)

	d, err := f.store.GetDonationByServerID(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, d.Available)
	assert.Empty(t, d.BookedBy)

	count, err := f.store.GetCartCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)

	q := f.queue(t)
	require.Len(t, q, 2)
	assert.Equal(t, models.OperationAdd, q[0].Operation)
	assert.Equal(t, models.OperationRemove, q[1].Operation)
}

func TestRemoveFromCart_goneOnServerIsDone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seedDonation(t, "d1", "owner")
	f.remote.setErr(apperrors.Status(404, "HTTP error! status: 404"))

	res, err := f.engine.RemoveFromCart(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.False(t, res.Offline)
	assert.Empty(t, f.queue(t))
}

func TestDeleteDonation_offline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.seedDonation(t, "d1", "owner")

	res, err := f.engine.DeleteDonation(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, res.Offline)

	_, err = f.store.GetDonationByServerID(ctx, "d1")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	q := f.queue(t)
	require.Len(t, q, 1)
	assert.Equal(t, models.OperationDelete, q[0].Operation)
	assert.Equal(t, "d1", q[0].EntityID)
}

func TestDeleteDonation_placeholderDropsQueuedCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	d, _, err := f.engine.CreateDonation(ctx, models.DonationInput{Title: "Desk", UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, f.queue(t), 1)

	f.conn.online.Store(true)
	res, err := f.engine.DeleteDonation(ctx, d.ServerID)
	require.NoError(t, err)
	assert.False(t, res.Offline)
	assert.Empty(t, f.queue(t))
	assert.Empty(t, f.remote.Calls())
}

func TestCreateDonation_online(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	d, res, err := f.engine.CreateDonation(ctx, models.DonationInput{Title: "Desk", Category: "Furniture", UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, res.Offline)
	assert.Equal(t, "srv-1", d.ServerID)

	got, err := f.store.GetDonationByServerID(ctx, "srv-1")
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assert.True(t, got.Available)
	assert.Empty(t, f.queue(t))
}

func TestCreateDonation_validation(t *testing.T) {
	f := newFixture(t, true)
	_, _, err := f.engine.CreateDonation(context.Background(), models.DonationInput{Title: "Desk"})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	_, _, err = f.engine.CreateDonation(context.Background(), models.DonationInput{UserID: "u1"})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestUpdateDonation_placeholderRewritesCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	d, _, err := f.engine.CreateDonation(ctx, models.DonationInput{Title: "Desk", UserID: "u1"})
	require.NoError(t, err)
	require.True(t, uuid.IsLocalID(d.ServerID))

	updated, res, err := f.engine.UpdateDonation(ctx, d.ServerID, models.DonationInput{Title: "Standing desk"})
	require.NoError(t, err)
	assert.True(t, res.Offline)
	assert.Equal(t, "Standing desk", updated.Title)

	q := f.queue(t)
	require.Len(t, q, 1)
	assert.Equal(t, models.OperationCreate, q[0].Operation)
	var in models.DonationInput
	require.NoError(t, q[0].DecodeData(&in))
	assert.Equal(t, "Standing desk", in.Title)
	assert.Equal(t, "u1", in.UserID)
}

func TestUpdateDonation_offlineEditsCoalesce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.seedDonation(t, "d1", "u1")

	for _, title := range []string{"First", "Second"} {
		_, res, err := f.engine.UpdateDonation(ctx, "d1", models.DonationInput{Title: title})
		require.NoError(t, err)
		assert.True(t, res.Offline)
	}

	q := f.queue(t)
	require.Len(t, q, 1)
	var in models.DonationInput
	require.NoError(t, q[0].DecodeData(&in))
	assert.Equal(t, "Second", in.Title)

	d, err := f.store.GetDonationByServerID(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, d.Synced)
	assert.Equal(t, "u1", d.UserID)
}

func TestUpdateDonation_online(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seedDonation(t, "d1", "u1")
	f.remote.donations = []*models.Donation{{ServerID: "d1", Title: "Old", UserID: "u1"}}

	d, res, err := f.engine.UpdateDonation(ctx, "d1", models.DonationInput{Title: "New"})
	require.NoError(t, err)
	assert.False(t, res.Offline)
	assert.Equal(t, "New", d.Title)

	got, err := f.store.GetDonationByServerID(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assert.Empty(t, f.queue(t))
}

func TestUpdateDonation_unknown(t *testing.T) {
	f := newFixture(t, true)
	_, _, err := f.engine.UpdateDonation(context.Background(), "missing", models.DonationInput{Title: "x"})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateUser_offlineQueues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	require.NoError(t, f.store.SaveUser(ctx, &models.User{ServerID: "u1", Firstname: "Ada", Email: "ada@example.com"}))

	res, err := f.engine.UpdateUser(ctx, "u1", models.UserUpdate{Firstname: "Grace", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.True(t, res.Offline)

	u, err := f.store.GetUserByServerID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Grace", u.Firstname)
	assert.False(t, u.Synced)

	q := f.queue(t)
	require.Len(t, q, 1)
	assert.Equal(t, models.EntityUser, q[0].EntityType)
}

func TestUpdateUser_passwordNeedsConnection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.engine.UpdateUser(ctx, "u1", models.UserUpdate{Firstname: "Ada", Password: "secret"})
	assert.True(t, apperrors.Is(err, apperrors.ErrNetwork))
	assert.Empty(t, f.queue(t))
}

func TestUpdateUser_online(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	require.NoError(t, f.store.SaveUser(ctx, &models.User{ServerID: "u1", Firstname: "Ada", Email: "ada@example.com"}))

	res, err := f.engine.UpdateUser(ctx, "u1", models.UserUpdate{Firstname: "Grace", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.False(t, res.Offline)

	u, err := f.store.GetUserByServerID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Grace", u.Firstname)
	assert.True(t, u.Synced)
}

func TestBooking_availabilityInvariant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	for _, id := range []string{"d1", "d2", "d3"} {
		f.seedDonation(t, id, "owner")
	}

	_, err := f.engine.BookItem(ctx, "u1", "d1")
	require.NoError(t, err)
	_, err = f.engine.BookItem(ctx, "u2", "d2")
	require.NoError(t, err)
	_, err = f.engine.RemoveFromCart(ctx, "u2", "d2")
	require.NoError(t, err)

	f.conn.online.Store(true)
	f.remote.donations = []*models.Donation{
		{ServerID: "d1", Title: "Item d1", UserID: "owner", BookedBy: "u1", Available: true},
		{ServerID: "d3", Title: "Item d3", UserID: "owner", Available: false},
	}
	_, err = f.engine.SyncAll(ctx)
	require.NoError(t, err)

	all, err := f.store.GetAllDonations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, d := range all {
		assert.Equal(t, d.BookedBy == "", d.Available, "donation %s", d.ServerID)
	}
}
