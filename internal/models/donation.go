package models

import (
	"strings"
	"time"
)

// Address is the structured pickup address of a donation.
type Address struct {
	Street     string `db:"street" json:"street"`
	City       string `db:"city" json:"city"`
	State      string `db:"state" json:"state"`
	PostalCode string `db:"postalCode" json:"postalCode"`
	Country    string `db:"country" json:"country"`
}

// String formats the address on one line, skipping empty parts.
func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Street, a.City, a.State, a.PostalCode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Donation is a donated item listing.
//
// Available is false exactly when BookedBy is set. Normalize restores that
// invariant and is applied by the store on every write.
type Donation struct {
	ID          int64    `db:"id" json:"-"`
	ServerID    string   `db:"server_id" json:"_id"`
	Title       string   `db:"title" json:"title"`
	Description string   `db:"description" json:"description"`
	Category    string   `db:"category" json:"category"`
	Address              // flattened street/city/state/postalCode/country
	Latitude    *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude   *float64 `db:"longitude" json:"longitude,omitempty"`
	Images      []string `db:"image" json:"image"`
	UserID      string   `db:"user_id" json:"userId"`
	Available   bool     `db:"available" json:"available"`
	BookedBy    string   `db:"booked_by" json:"bookedBy,omitempty"`
	Synced      bool     `db:"synced" json:"-"`
	CreatedAt   int64    `db:"created_at" json:"-"`
	UpdatedAt   int64    `db:"updated_at" json:"-"`
}

// TableName returns the table name for Donation.
func (Donation) TableName() string {
	return "donations"
}

// Normalize derives Available from BookedBy.
func (d *Donation) Normalize() {
	d.BookedBy = strings.TrimSpace(d.BookedBy)
	d.Available = d.BookedBy == ""
	if d.Images == nil {
		d.Images = []string{}
	}
}

// Book marks the donation as booked by userID.
func (d *Donation) Book(userID string) {
	d.BookedBy = userID
	d.Normalize()
}

// Release clears the booking.
func (d *Donation) Release() {
	d.BookedBy = ""
	d.Normalize()
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (d *Donation) CreatedAtTime() time.Time {
	return time.UnixMilli(d.CreatedAt)
}

// UpdatedAtTime returns the UpdatedAt as time.Time.
func (d *Donation) UpdatedAtTime() time.Time {
	return time.UnixMilli(d.UpdatedAt)
}

// DonationInput is the form used to create or edit a donation.
//
// ExistingImages lists server-relative image paths to keep on update;
// NewImages are local file paths uploaded as multipart parts.
type DonationInput struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	Address
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	UserID         string   `json:"userId"`
	ExistingImages []string `json:"existingImages,omitempty"`
	NewImages      []string `json:"newImages,omitempty"`
}

// ApplyTo copies the editable fields onto d. Images become ExistingImages
// followed by NewImages so the local row shows every picture until the server
// returns its own paths.
func (in DonationInput) ApplyTo(d *Donation) {
	d.Title = in.Title
	d.Description = in.Description
	d.Category = in.Category
	d.Address = in.Address
	d.Latitude = in.Latitude
	d.Longitude = in.Longitude
	if in.UserID != "" {
		d.UserID = in.UserID
	}
	images := make([]string, 0, len(in.ExistingImages)+len(in.NewImages))
	images = append(images, in.ExistingImages...)
	images = append(images, in.NewImages...)
	d.Images = images
}
