package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
)

const userColumns = `id, server_id, firstname, lastname, email, contactnumber, address,
	synced, created_at, updated_at`

// SaveUser stores a user received from the server. A row holding the same
// server id or the same email is replaced; created_at survives.
func (r *Repository) SaveUser(ctx context.Context, u *models.User) error {
	now := r.timestamp()
	u.Email = strings.TrimSpace(u.Email)
	u.Synced = true
	u.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, `
	INSERT OR REPLACE INTO users (server_id, firstname, lastname, email, contactnumber,
		address, synced, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, 1,
		COALESCE((SELECT created_at FROM users WHERE server_id = ? OR email = ? ORDER BY id LIMIT 1), ?),
		?)
	RETURNING id, created_at`,
		nullString(u.ServerID), u.Firstname, u.Lastname, nullString(u.Email),
		u.ContactNumber, u.Address,
		u.ServerID, u.Email, now,
		now,
	).Scan(&u.ID, &u.CreatedAt)
	return dbError("save user", err)
}

// GetUserByEmail returns the user with email or a NOT_FOUND error.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email", strings.TrimSpace(email))
}

// GetUserByServerID returns the user with serverID or a NOT_FOUND error.
func (r *Repository) GetUserByServerID(ctx context.Context, serverID string) (*models.User, error) {
	return r.getUser(ctx, "server_id", serverID)
}

func (r *Repository) getUser(ctx context.Context, column, value string) (*models.User, error) {
	stmt, err := r.PrepareStmt(ctx, "SELECT "+userColumns+" FROM users WHERE "+column+" = ?")
	if err != nil {
		return nil, dbError("get user", err)
	}
	u, err := scanUser(stmt.QueryRowContext(ctx, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user %s=%s not found", column, value)
	}
	if err != nil {
		return nil, dbError("get user", err)
	}
	return u, nil
}

// UpdateUser applies a local profile edit and marks the row unsynced.
func (r *Repository) UpdateUser(ctx context.Context, serverID string, up models.UserUpdate) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE users
	SET firstname = ?, lastname = ?, email = ?, contactnumber = ?, address = ?,
		synced = 0, updated_at = ?
	WHERE server_id = ?`,
		up.Firstname, up.Lastname, nullString(strings.TrimSpace(up.Email)),
		up.ContactNumber, up.Address, r.timestamp(), serverID,
	)
	if err != nil {
		return dbError("update user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("user %s not found", serverID)
	}
	return nil
}

// MarkUserSynced flags the user row as matching the server.
func (r *Repository) MarkUserSynced(ctx context.Context, serverID string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET synced = 1 WHERE server_id = ?", serverID)
	return dbError("mark user synced", err)
}

// ListUsers returns every cached user.
func (r *Repository) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, dbError("list users", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, dbError("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list users", err)
	}
	return users, nil
}

func scanUser(s rowScanner) (*models.User, error) {
	var u models.User
	var serverID, firstname, lastname, email, contact, address sql.NullString
	err := s.Scan(&u.ID, &serverID, &firstname, &lastname, &email, &contact, &address,
		&u.Synced, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.ServerID = serverID.String
	u.Firstname = firstname.String
	u.Lastname = lastname.String
	u.Email = email.String
	u.ContactNumber = contact.String
	u.Address = address.String
	return &u, nil
}
