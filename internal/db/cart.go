package db

import (
	"context"
	"database/sql"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
)

// AddToCart books itemID for userID. A duplicate (userID, itemID) pair is
// ignored; the result reports whether a row was inserted.
func (r *Repository) AddToCart(ctx context.Context, userID, itemID string, synced bool) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO cart (user_id, item_id, synced, created_at) VALUES (?, ?, ?, ?)",
		userID, itemID, boolInt(synced), r.timestamp(),
	)
	if err != nil {
		return false, dbError("add to cart", err)
	}
	n, err := res.RowsAffected()
	return n > 0, dbError("add to cart", err)
}

// GetCartByUserID returns the cart of userID joined with the booked
// donations. Rows whose donation is no longer stored are deleted as a side
// effect and left out of the result.
func (r *Repository) GetCartByUserID(ctx context.Context, userID string) ([]*models.CartItem, error) {
	const query = `
	SELECT c.id, c.user_id, c.item_id, c.synced, c.created_at,
		d.id, d.server_id, d.title, d.description, d.category, d.street, d.city, d.state,
		d.postalCode, d.country, d.latitude, d.longitude, d.image, d.user_id, d.available,
		d.booked_by, d.synced, d.created_at, d.updated_at
	FROM cart c
	LEFT JOIN donations d ON d.server_id = c.item_id
	WHERE c.user_id = ?
	ORDER BY c.created_at DESC, c.id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, dbError("get cart", err)
	}

	items := make([]*models.CartItem, 0)
	var orphans []int64
	for rows.Next() {
		item, ok, err := scanCartRow(rows)
		if err != nil {
			rows.Close()
			return nil, dbError("scan cart item", err)
		}
		if !ok {
			orphans = append(orphans, item.ID)
			continue
		}
		items = append(items, item)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, dbError("get cart", err)
	}

	// The pool has a single connection, so rows must be closed before this.
	for _, id := range orphans {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM cart WHERE id = ?", id); err != nil {
			return nil, dbError("delete orphaned cart item", err)
		}
	}
	return items, nil
}

// scanCartRow scans one joined row. ok is false when the donation is missing.
func scanCartRow(s rowScanner) (*models.CartItem, bool, error) {
	var c models.CartItem
	var dID sql.NullInt64
	var serverID, title, description, category sql.NullString
	var street, city, state, postal, country sql.NullString
	var image, owner, bookedBy sql.NullString
	var lat, lng sql.NullFloat64
	var available, synced sql.NullBool
	var createdAt, updatedAt sql.NullInt64

	err := s.Scan(
		&c.ID, &c.UserID, &c.ItemID, &c.Synced, &c.CreatedAt,
		&dID, &serverID, &title, &description, &category, &street, &city, &state,
		&postal, &country, &lat, &lng, &image, &owner, &available,
		&bookedBy, &synced, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, false, err
	}
	if !dID.Valid {
		return &c, false, nil
	}

	d := &models.Donation{
		ID:          dID.Int64,
		ServerID:    serverID.String,
		Title:       title.String,
		Description: description.String,
		Category:    category.String,
		Address: models.Address{
			Street:     street.String,
			City:       city.String,
			State:      state.String,
			PostalCode: postal.String,
			Country:    country.String,
		},
		Latitude:  floatPtr(lat),
		Longitude: floatPtr(lng),
		Images:    decodeImages(image.String),
		UserID:    owner.String,
		Available: available.Bool,
		BookedBy:  bookedBy.String,
		Synced:    synced.Bool,
		CreatedAt: createdAt.Int64,
		UpdatedAt: updatedAt.Int64,
	}
	d.Normalize()
	c.Item = d
	return &c, true, nil
}

// RemoveFromCart deletes the (userID, itemID) booking and reports whether it
// existed.
func (r *Repository) RemoveFromCart(ctx context.Context, userID, itemID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cart WHERE user_id = ? AND item_id = ?", userID, itemID)
	if err != nil {
		return false, dbError("remove from cart", err)
	}
	n, err := res.RowsAffected()
	return n > 0, dbError("remove from cart", err)
}

// ClearCart deletes every cart row of userID.
func (r *Repository) ClearCart(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cart WHERE user_id = ?", userID)
	return dbError("clear cart", err)
}

// ReplaceCart makes the cart of userID exactly itemIDs, all synced, in one
// transaction.
func (r *Repository) ReplaceCart(ctx context.Context, userID string, itemIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("replace cart", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart WHERE user_id = ?", userID); err != nil {
		return dbError("replace cart", err)
	}
	now := r.timestamp()
	for _, itemID := range itemIDs {
		if itemID == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO cart (user_id, item_id, synced, created_at) VALUES (?, ?, 1, ?)",
			userID, itemID, now,
		); err != nil {
			return dbError("replace cart", err)
		}
	}
	return dbError("replace cart", tx.Commit())
}

// GetCartCount returns the number of cart rows of userID.
func (r *Repository) GetCartCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cart WHERE user_id = ?", userID).Scan(&n)
	return n, dbError("count cart", err)
}
