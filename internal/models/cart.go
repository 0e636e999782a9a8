package models

// CartItem is one booking: at most one per (UserID, ItemID).
type CartItem struct {
	ID        int64  `db:"id" json:"-"`
	UserID    string `db:"user_id" json:"userId"`
	ItemID    string `db:"item_id" json:"-"`
	Synced    bool   `db:"synced" json:"-"`
	CreatedAt int64  `db:"created_at" json:"-"`

	// Item is the joined donation. It is never nil for items returned by the
	// store because orphaned rows are dropped.
	Item *Donation `json:"itemId"`
}

// TableName returns the table name for CartItem.
func (CartItem) TableName() string {
	return "cart"
}
