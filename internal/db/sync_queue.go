package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
)

const syncQueueColumns = `id, operation, entity_type, entity_id, data, status, error, retries, created_at`

// AddToSyncQueue appends a pending mutation. data is stored as JSON; nil
// stores no payload.
func (r *Repository) AddToSyncQueue(ctx context.Context, op models.Operation, entity models.EntityType, entityID string, data interface{}) (int64, error) {
	payload, err := encodePayload(data)
	if err != nil {
		return 0, dbError("encode sync payload", err)
	}

	res, err := r.db.ExecContext(ctx, `
	INSERT INTO sync_queue (operation, entity_type, entity_id, data, status, retries, created_at)
	VALUES (?, ?, ?, ?, 'pending', 0, ?)`,
		string(op), string(entity), nullString(entityID), payload, r.timestamp(),
	)
	if err != nil {
		return 0, dbError("add to sync queue", err)
	}
	id, err := res.LastInsertId()
	return id, dbError("add to sync queue", err)
}

// GetPendingSyncItems returns the entries still to be uploaded in creation
// order: pending entries and failed entries that have retries left.
func (r *Repository) GetPendingSyncItems(ctx context.Context) ([]*models.SyncQueueEntry, error) {
	stmt, err := r.PrepareStmt(ctx, "SELECT "+syncQueueColumns+` FROM sync_queue
	WHERE status IN ('pending', 'failed') AND retries < ?
	ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, dbError("get pending sync items", err)
	}
	rows, err := stmt.QueryContext(ctx, r.maxRetries)
	if err != nil {
		return nil, dbError("get pending sync items", err)
	}
	return collectSyncItems(rows)
}

// ListSyncItems returns all entries with status, or every entry when status
// is empty, oldest first.
func (r *Repository) ListSyncItems(ctx context.Context, status models.QueueStatus) ([]*models.SyncQueueEntry, error) {
	query := "SELECT " + syncQueueColumns + " FROM sync_queue"
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("list sync items", err)
	}
	return collectSyncItems(rows)
}

// MarkSyncItemCompleted flags an entry as uploaded.
func (r *Repository) MarkSyncItemCompleted(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sync_queue SET status = 'completed', error = NULL WHERE id = ?", id)
	return dbError("mark sync item completed", err)
}

// MarkSyncItemFailed records a failed attempt: the entry becomes failed, its
// retry counter grows by one and errMsg is kept for inspection.
func (r *Repository) MarkSyncItemFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sync_queue SET status = 'failed', error = ?, retries = retries + 1 WHERE id = ?",
		nullString(errMsg), id)
	return dbError("mark sync item failed", err)
}

// ClearSyncQueue deletes completed entries and returns how many went.
func (r *Repository) ClearSyncQueue(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE status = 'completed'")
	if err != nil {
		return 0, dbError("clear sync queue", err)
	}
	n, err := res.RowsAffected()
	return n, dbError("clear sync queue", err)
}

// ResetFailedSyncItems gives every failed entry a fresh retry budget.
func (r *Repository) ResetFailedSyncItems(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE sync_queue SET status = 'pending', retries = 0, error = NULL WHERE status = 'failed'")
	if err != nil {
		return 0, dbError("reset failed sync items", err)
	}
	n, err := res.RowsAffected()
	return n, dbError("reset failed sync items", err)
}

// UpdateSyncItemData replaces the payload of the not yet completed entries
// matching (op, entity, entityID). It returns the number of entries changed.
func (r *Repository) UpdateSyncItemData(ctx context.Context, op models.Operation, entity models.EntityType, entityID string, data interface{}) (int64, error) {
	payload, err := encodePayload(data)
	if err != nil {
		return 0, dbError("encode sync payload", err)
	}
	res, err := r.db.ExecContext(ctx, `
	UPDATE sync_queue SET data = ?
	WHERE operation = ? AND entity_type = ? AND entity_id = ? AND status != 'completed'`,
		payload, string(op), string(entity), entityID)
	if err != nil {
		return 0, dbError("update sync item data", err)
	}
	n, err := res.RowsAffected()
	return n, dbError("update sync item data", err)
}

// DeletePendingSyncItems drops the not yet completed entries for one entity.
func (r *Repository) DeletePendingSyncItems(ctx context.Context, entity models.EntityType, entityID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM sync_queue WHERE entity_type = ? AND entity_id = ? AND status != 'completed'",
		string(entity), entityID)
	if err != nil {
		return 0, dbError("delete pending sync items", err)
	}
	n, err := res.RowsAffected()
	return n, dbError("delete pending sync items", err)
}

// SyncQueueStats counts entries per status.
func (r *Repository) SyncQueueStats(ctx context.Context) (map[models.QueueStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM sync_queue GROUP BY status")
	if err != nil {
		return nil, dbError("sync queue stats", err)
	}
	defer rows.Close()

	stats := map[models.QueueStatus]int{
		models.QueueStatusPending:   0,
		models.QueueStatusCompleted: 0,
		models.QueueStatusFailed:    0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, dbError("sync queue stats", err)
		}
		stats[models.QueueStatus(status)] = n
	}
	return stats, dbError("sync queue stats", rows.Err())
}

func collectSyncItems(rows *sql.Rows) ([]*models.SyncQueueEntry, error) {
	defer rows.Close()

	items := make([]*models.SyncQueueEntry, 0)
	for rows.Next() {
		var e models.SyncQueueEntry
		var op, entity, status string
		var entityID, data, errMsg sql.NullString
		if err := rows.Scan(&e.ID, &op, &entity, &entityID, &data, &status, &errMsg, &e.Retries, &e.CreatedAt); err != nil {
			return nil, dbError("scan sync item", err)
		}
		e.Operation = models.Operation(op)
		e.EntityType = models.EntityType(entity)
		e.EntityID = entityID.String
		if data.Valid {
			e.Data = json.RawMessage(data.String)
		}
		e.Status = models.QueueStatus(status)
		e.Error = errMsg.String
		items = append(items, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("scan sync items", err)
	}
	return items, nil
}

func encodePayload(data interface{}) (sql.NullString, error) {
	switch v := data.(type) {
	case nil:
		return sql.NullString{}, nil
	case json.RawMessage:
		return sql.NullString{String: string(v), Valid: len(v) > 0}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
