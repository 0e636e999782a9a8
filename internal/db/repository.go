package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/akilamadhufin/lets-donate-mobile-app/internal/errors"
	"github.com/akilamadhufin/lets-donate-mobile-app/internal/models"
)

// Repository is the local store. All methods are safe for concurrent use;
// each public write is a single statement or a single transaction.
type Repository struct {
	db *sql.DB

	now        func() time.Time
	maxRetries int

	// Prepared statements for the hot read paths, keyed by query text.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithMaxRetries sets how many failed attempts exclude a queue entry from
// GetPendingSyncItems.
func WithMaxRetries(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB, opts ...Option) *Repository {
	r := &Repository{
		db:         db,
		now:        time.Now,
		maxRetries: models.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PrepareStmt gets or creates a prepared statement from cache.
func (r *Repository) PrepareStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	// Another goroutine may have won the race; keep theirs.
	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements. The underlying *sql.DB is
// owned by the caller.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		if err := value.(*sql.Stmt).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.stmtCache.Delete(key)
		return true
	})
	return firstErr
}

// MaxRetries returns the retry budget of queue entries.
func (r *Repository) MaxRetries() int {
	return r.maxRetries
}

// ClearAllData empties every table in one transaction. Used on logout.
func (r *Repository) ClearAllData(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("clear all data", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"users", "donations", "cart", "sync_queue"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return dbError("clear "+table, err)
		}
	}
	return dbError("clear all data", tx.Commit())
}

func (r *Repository) timestamp() int64 {
	return r.now().UnixMilli()
}

func dbError(op string, err error) error {
	return apperrors.Wrap(apperrors.ErrDatabase, op, err)
}

func notFound(format string, args ...interface{}) error {
	return apperrors.Newf(apperrors.ErrNotFound, format, args...)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
