// Package models tests for data model definitions.
package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDonation_Normalize(t *testing.T) {
	tests := []struct {
		name          string
		bookedBy      string
		available     bool
		wantAvailable bool
		wantBookedBy  string
	}{
		{"booked but flagged available", "user-1", true, false, "user-1"},
		{"free but flagged unavailable", "", false, true, ""},
		{"whitespace booking", "   ", false, true, ""},
		{"consistent booked", "user-2", false, false, "user-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Donation{BookedBy: tt.bookedBy, Available: tt.available}
			d.Normalize()

			assert.Equal(t, tt.wantAvailable, d.Available)
			assert.Equal(t, tt.wantBookedBy, d.BookedBy)
			assert.NotNil(t, d.Images)
		})
	}
}

func TestDonation_BookAndRelease(t *testing.T) {
	d := &Donation{ServerID: "d1"}
	d.Normalize()
	require.True(t, d.Available)

	d.Book("u1")
	assert.False(t, d.Available)
	assert.Equal(t, "u1", d.BookedBy)

	d.Release()
	assert.True(t, d.Available)
	assert.Empty(t, d.BookedBy)
}

func TestAddress_String(t *testing.T) {
	a := Address{Street: "1 Main St", City: "Helsinki", Country: "Finland"}
	assert.Equal(t, "1 Main St, Helsinki, Finland", a.String())
	assert.Equal(t, "", Address{}.String())
}

func TestDonationInput_ApplyTo(t *testing.T) {
	in := DonationInput{
		Title:          "Chair",
		Category:       "Furniture",
		ExistingImages: []string{"/uploads/a.jpg"},
		NewImages:      []string{"/tmp/b.jpg"},
	}
	d := &Donation{UserID: "owner"}
	in.ApplyTo(d)

	assert.Equal(t, "Chair", d.Title)
	assert.Equal(t, "owner", d.UserID, "empty input user must not clear the owner")
	assert.Equal(t, []string{"/uploads/a.jpg", "/tmp/b.jpg"}, d.Images)
}

func TestSyncQueueEntry_DecodeData(t *testing.T) {
	e := &SyncQueueEntry{ID: 7, Data: json.RawMessage(`{"userId":"u","itemId":"i"}`)}

	var p CartPayload
	require.NoError(t, e.DecodeData(&p))
	assert.Equal(t, CartPayload{UserID: "u", ItemID: "i"}, p)

	empty := &SyncQueueEntry{ID: 8, Data: json.RawMessage("null")}
	assert.Error(t, empty.DecodeData(&p))
}

func TestSyncQueueEntry_Key(t *testing.T) {
	e := &SyncQueueEntry{EntityType: EntityCart, Operation: OperationAdd}
	assert.Equal(t, "cart.add", e.Key())
}

func TestUser_FullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{Firstname: "Ada", Lastname: "Lovelace"}).FullName())
	assert.Equal(t, "Ada", (&User{Firstname: "Ada"}).FullName())
	assert.Equal(t, "Lovelace", (&User{Lastname: "Lovelace"}).FullName())
}
