package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operation is the mutation recorded by a queue entry.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationAdd    Operation = "add"
	OperationRemove Operation = "remove"
)

// EntityType is the kind of entity a queue entry targets.
type EntityType string

const (
	EntityDonation EntityType = "donation"
	EntityCart     EntityType = "cart"
	EntityUser     EntityType = "user"
)

// QueueStatus is the lifecycle state of a queue entry.
type QueueStatus string

const (
	QueueStatusPending   QueueStatus = "pending"
	QueueStatusCompleted QueueStatus = "completed"
	QueueStatusFailed    QueueStatus = "failed"
)

// DefaultMaxRetries is the retry budget of a queue entry.
const DefaultMaxRetries = 3

// SyncQueueEntry is one local mutation not yet confirmed by the server.
type SyncQueueEntry struct {
	ID         int64           `db:"id" json:"id"`
	Operation  Operation       `db:"operation" json:"operation"`
	EntityType EntityType      `db:"entity_type" json:"entity_type"`
	EntityID   string          `db:"entity_id" json:"entity_id,omitempty"`
	Data       json.RawMessage `db:"data" json:"data,omitempty"`
	Status     QueueStatus     `db:"status" json:"status"`
	Error      string          `db:"error" json:"error,omitempty"`
	Retries    int             `db:"retries" json:"retries"`
	CreatedAt  int64           `db:"created_at" json:"created_at"`
}

// TableName returns the table name for SyncQueueEntry.
func (SyncQueueEntry) TableName() string {
	return "sync_queue"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (e *SyncQueueEntry) CreatedAtTime() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

// Key identifies the dispatch target, e.g. "cart.add".
func (e *SyncQueueEntry) Key() string {
	return fmt.Sprintf("%s.%s", e.EntityType, e.Operation)
}

// DecodeData unmarshals the payload into v.
func (e *SyncQueueEntry) DecodeData(v interface{}) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return fmt.Errorf("sync item %d has no payload", e.ID)
	}
	return json.Unmarshal(e.Data, v)
}

// CartPayload is the queued payload of cart add/remove.
type CartPayload struct {
	UserID string `json:"userId"`
	ItemID string `json:"itemId"`
}

// WriteResult is returned by offline-first writes. Offline reports that the
// remote side was deferred to the sync queue.
type WriteResult struct {
	Success bool `json:"success"`
	Offline bool `json:"offline"`
}
