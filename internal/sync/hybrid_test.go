package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/api"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/db"
	apperrors "github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
)

func TestGetDonations_fallsBackToCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seedDonation(t, "d1", "owner")
	f.remote.setErr(errors.New("Network request failed"))

	got, err := f.engine.GetDonations(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ServerID)
	assert.Equal(t, []string{"ListDonations"}, f.remote.Calls())
}

func TestGetDonations_refreshesWhenOnline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.remote.donations = []*models.Donation{
		{ServerID: "d1", Title: "Chair", UserID: "u1"},
		{ServerID: "d2", Title: "Lamp", UserID: "u2"},
	}

	got, err := f.engine.GetDonations(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGetDonations_offlineSkipsServer(t *testing.T) {
	f := newFixture(t, false)
	f.seedDonation(t, "d1", "owner")

	got, err := f.engine.GetDonations(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Empty(t, f.remote.Calls())
}

func TestGetMyDonations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seedDonation(t, "d0", "u2")
	f.remote.donations = []*models.Donation{
		{ServerID: "d1", Title: "Chair", UserID: "u1"},
		{ServerID: "d2", Title: "Lamp", UserID: "u2"},
	}

	got, err := f.engine.GetMyDonations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ServerID)
	assert.Equal(t, []string{"ListUserDonations u1"}, f.remote.Calls())

	_, err = f.engine.GetMyDonations(ctx, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestSearchDonations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.remote.donations = []*models.Donation{
		{ServerID: "d1", Title: "Oak chair", Category: "Furniture", UserID: "u1"},
		{ServerID: "d2", Title: "Desk lamp", Category: "Electronics", UserID: "u2"},
		{ServerID: "d3", Title: "Rocking chair", Category: "Furniture", UserID: "u2", BookedBy: "u9"},
	}

	got, err := f.engine.SearchDonations(ctx, db.DonationQuery{Text: "chair", AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ServerID)
}

func TestGetCart_reconcilesWithServer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seedDonation(t, "d1", "owner")
	_, err := f.store.AddToCart(ctx, "u1", "d1", true)
	require.NoError(t, err)

	f.remote.carts["u1"] = []api.CartEntry{
		{ItemID: "d2", Item: &models.Donation{ServerID: "d2", Title: "Lamp", UserID: "owner", BookedBy: "u1"}},
		{ItemID: ""},
	}

	cart, err := f.engine.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, "d2", cart[0].ItemID)
	require.NotNil(t, cart[0].Item)
	assert.Equal(t, "Lamp", cart[0].Item.Title)
	assert.False(t, cart[0].Item.Available)
}

func TestGetCart_remoteFailureKeepsLocal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.seedDonation(t, "d1", "owner")
	_, err := f.store.AddToCart(ctx, "u1", "d1", true)
	require.NoError(t, err)
	f.remote.setErr(apperrors.Status(500, "HTTP error! status: 500"))

	cart, err := f.engine.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, "d1", cart[0].ItemID)
}

func TestGetUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.remote.users["u1"] = &models.User{ServerID: "u1", Firstname: "Ada", Email: "ada@example.com"}

	u, err := f.engine.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Ada", u.Firstname)

	// Offline answers come from the copy cached above.
	f.conn.online.Store(false)
	u, err = f.engine.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "ada@example.com", u.Email)

	u, err = f.engine.GetUser(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, u)
}
