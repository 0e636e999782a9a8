package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	apperrors "github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
)

const donationColumns = `id, server_id, title, description, category, street, city, state,
	postalCode, country, latitude, longitude, image, user_id, available, booked_by,
	synced, created_at, updated_at`

// upsertDonation inserts d or overwrites the row with the same server_id.
// created_at of an existing row is kept.
const upsertDonation = `
INSERT INTO donations (server_id, title, description, category, street, city, state,
	postalCode, country, latitude, longitude, image, user_id, available, booked_by,
	synced, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(server_id) DO UPDATE SET
	title = excluded.title,
	description = excluded.description,
	category = excluded.category,
	street = excluded.street,
	city = excluded.city,
	state = excluded.state,
	postalCode = excluded.postalCode,
	country = excluded.country,
	latitude = excluded.latitude,
	longitude = excluded.longitude,
	image = excluded.image,
	user_id = excluded.user_id,
	available = excluded.available,
	booked_by = excluded.booked_by,
	synced = excluded.synced,
	updated_at = excluded.updated_at`

// SaveDonation upserts a donation received from the server, marking it synced.
func (r *Repository) SaveDonation(ctx context.Context, d *models.Donation) error {
	d.Synced = true
	_, err := r.saveDonation(ctx, upsertDonation, d)
	return dbError("save donation", err)
}

// MergeDonation is SaveDonation except that a local row with unsynced edits
// is left untouched. It reports whether the row was written.
func (r *Repository) MergeDonation(ctx context.Context, d *models.Donation) (bool, error) {
	d.Synced = true
	n, err := r.saveDonation(ctx, upsertDonation+"\nWHERE donations.synced = 1", d)
	if err != nil {
		return false, dbError("merge donation", err)
	}
	return n > 0, nil
}

// SaveLocalDonation stores a donation created or edited on this device. The
// row stays unsynced until MarkDonationSynced.
func (r *Repository) SaveLocalDonation(ctx context.Context, d *models.Donation) error {
	if d.ServerID == "" {
		return apperrors.New(apperrors.ErrValidation, "local donation needs an id")
	}
	d.Synced = false
	_, err := r.saveDonation(ctx, upsertDonation, d)
	return dbError("save local donation", err)
}

func (r *Repository) saveDonation(ctx context.Context, query string, d *models.Donation) (int64, error) {
	d.Normalize()
	now := r.timestamp()
	if d.CreatedAt == 0 {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	images, err := json.Marshal(d.Images)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, query,
		nullString(d.ServerID), d.Title, d.Description, d.Category,
		d.Street, d.City, d.State, d.PostalCode, d.Country,
		nullFloat(d.Latitude), nullFloat(d.Longitude), string(images), d.UserID,
		boolInt(d.Available), nullString(d.BookedBy), boolInt(d.Synced),
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetAllDonations returns every donation, newest first.
func (r *Repository) GetAllDonations(ctx context.Context) ([]*models.Donation, error) {
	return r.SearchDonations(ctx, DonationQuery{Sort: SortNewest})
}

// GetDonationsByUserID returns the donations listed by userID, newest first.
func (r *Repository) GetDonationsByUserID(ctx context.Context, userID string) ([]*models.Donation, error) {
	if userID == "" {
		return []*models.Donation{}, nil
	}
	return r.SearchDonations(ctx, DonationQuery{UserID: userID, Sort: SortNewest})
}

// SearchDonations returns the donations matching q.
func (r *Repository) SearchDonations(ctx context.Context, q DonationQuery) ([]*models.Donation, error) {
	where, args := q.Builder().Build()
	query := "SELECT " + donationColumns + " FROM donations " + where + " " + q.Sort.orderBy()

	stmt, err := r.PrepareStmt(ctx, query)
	if err != nil {
		return nil, dbError("search donations", err)
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, dbError("search donations", err)
	}
	defer rows.Close()

	donations := make([]*models.Donation, 0)
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, dbError("scan donation", err)
		}
		donations = append(donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("search donations", err)
	}
	return donations, nil
}

// GetDonationByServerID returns the donation with serverID or a NOT_FOUND error.
func (r *Repository) GetDonationByServerID(ctx context.Context, serverID string) (*models.Donation, error) {
	stmt, err := r.PrepareStmt(ctx, "SELECT "+donationColumns+" FROM donations WHERE server_id = ?")
	if err != nil {
		return nil, dbError("get donation", err)
	}
	d, err := scanDonation(stmt.QueryRowContext(ctx, serverID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("donation %s not found", serverID)
	}
	if err != nil {
		return nil, dbError("get donation", err)
	}
	return d, nil
}

// UpdateDonation rewrites the editable fields of the donation with
// d.ServerID and marks it unsynced.
func (r *Repository) UpdateDonation(ctx context.Context, d *models.Donation) error {
	d.Normalize()
	d.UpdatedAt = r.timestamp()
	d.Synced = false

	images, err := json.Marshal(d.Images)
	if err != nil {
		return dbError("encode images", err)
	}

	res, err := r.db.ExecContext(ctx, `
	UPDATE donations
	SET title = ?, description = ?, category = ?, street = ?, city = ?, state = ?,
		postalCode = ?, country = ?, latitude = ?, longitude = ?, image = ?,
		available = ?, booked_by = ?, synced = 0, updated_at = ?
	WHERE server_id = ?`,
		d.Title, d.Description, d.Category, d.Street, d.City, d.State,
		d.PostalCode, d.Country, nullFloat(d.Latitude), nullFloat(d.Longitude), string(images),
		boolInt(d.Available), nullString(d.BookedBy), d.UpdatedAt, d.ServerID,
	)
	if err != nil {
		return dbError("update donation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("donation %s not found", d.ServerID)
	}
	return nil
}

// SetDonationBooking records who booked a donation. An empty bookedBy
// releases it. The synced flag is left alone because the cart queue entry,
// not the donation row, carries the change to the server.
func (r *Repository) SetDonationBooking(ctx context.Context, serverID, bookedBy string) (bool, error) {
	bookedBy = strings.TrimSpace(bookedBy)
	res, err := r.db.ExecContext(ctx,
		"UPDATE donations SET booked_by = ?, available = ?, updated_at = ? WHERE server_id = ?",
		nullString(bookedBy), boolInt(bookedBy == ""), r.timestamp(), serverID,
	)
	if err != nil {
		return false, dbError("set donation booking", err)
	}
	n, err := res.RowsAffected()
	return n > 0, dbError("set donation booking", err)
}

// DeleteDonation removes the donation with serverID and reports whether a
// row existed.
func (r *Repository) DeleteDonation(ctx context.Context, serverID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM donations WHERE server_id = ?", serverID)
	if err != nil {
		return false, dbError("delete donation", err)
	}
	n, err := res.RowsAffected()
	return n > 0, dbError("delete donation", err)
}

// MarkDonationSynced marks a donation synced. When the server assigned a new
// id (newServerID differs), the local placeholder id is replaced; a row that
// already holds newServerID is dropped first.
func (r *Repository) MarkDonationSynced(ctx context.Context, serverID, newServerID string) error {
	if newServerID == "" {
		newServerID = serverID
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("mark donation synced", err)
	}
	defer tx.Rollback()

	if newServerID != serverID {
		if _, err := tx.ExecContext(ctx, "DELETE FROM donations WHERE server_id = ?", newServerID); err != nil {
			return dbError("mark donation synced", err)
		}
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE donations SET server_id = ?, synced = 1, updated_at = ? WHERE server_id = ?",
		newServerID, r.timestamp(), serverID,
	)
	if err != nil {
		return dbError("mark donation synced", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("donation %s not found", serverID)
	}
	return dbError("mark donation synced", tx.Commit())
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDonation(s rowScanner) (*models.Donation, error) {
	var d models.Donation
	var serverID, description, category sql.NullString
	var street, city, state, postal, country sql.NullString
	var image, userID, bookedBy sql.NullString
	var lat, lng sql.NullFloat64
	err := s.Scan(
		&d.ID, &serverID, &d.Title, &description, &category,
		&street, &city, &state, &postal, &country,
		&lat, &lng, &image, &userID, &d.Available, &bookedBy,
		&d.Synced, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.ServerID = serverID.String
	d.Description = description.String
	d.Category = category.String
	d.Address = models.Address{
		Street:     street.String,
		City:       city.String,
		State:      state.String,
		PostalCode: postal.String,
		Country:    country.String,
	}
	d.Latitude = floatPtr(lat)
	d.Longitude = floatPtr(lng)
	d.Images = decodeImages(image.String)
	d.UserID = userID.String
	d.BookedBy = bookedBy.String
	d.Normalize()
	return &d, nil
}

// decodeImages reads the image column: a JSON array, or a bare path written
// by older clients.
func decodeImages(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	if strings.HasPrefix(raw, "[") {
		var images []string
		if err := json.Unmarshal([]byte(raw), &images); err == nil {
			return images
		}
	}
	return []string{raw}
}
