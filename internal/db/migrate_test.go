// Package db tests for database migration management.
package db

import (
	"strings"
	"testing"
	"testing/fstest"
)

func openMigrationDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestInitialize verifies schema_migrations table creation.
func TestInitialize(t *testing.T) {
	db := openMigrationDB(t)
	m := NewMigrator(db.DB, fstest.MapFS{})

	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	// Idempotent
	if err := m.Initialize(); err != nil {
		t.Fatalf("second Initialize() failed: %v", err)
	}

	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='schema_migrations'").Scan(&tableName)
	if err != nil {
		t.Errorf("schema_migrations table not found: %v", err)
	}
}

// TestCurrentVersion verifies version tracking.
func TestCurrentVersion(t *testing.T) {
	db := openMigrationDB(t)
	m := NewMigrator(db.DB, fstest.MapFS{})

	if _, err := m.CurrentVersion(); err == nil {
		t.Error("CurrentVersion() should fail before Initialize()")
	}
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}

	version, err := m.CurrentVersion()
	if err != nil || version != 0 {
		t.Errorf("CurrentVersion() = %d, %v; want 0", version, err)
	}

	_, err = db.Exec("INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
		1, 123456, "initial", strings.Repeat("a", 64))
	if err != nil {
		t.Fatalf("Failed to insert migration: %v", err)
	}

	version, err = m.CurrentVersion()
	if err != nil || version != 1 {
		t.Errorf("CurrentVersion() = %d, %v; want 1", version, err)
	}
}

// TestUp verifies ordered application and skipping of applied versions.
func TestUp(t *testing.T) {
	db := openMigrationDB(t)
	source := fstest.MapFS{
		"V2__add_b.up.sql":   {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"V1__add_a.up.sql":   {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"V1__add_a.down.sql": {Data: []byte("DROP TABLE a;")},
		"README.md":          {Data: []byte("not a migration")},
		"Vx__bad.up.sql":     {Data: []byte("garbage")},
	}
	m := NewMigrator(db.DB, source)
	if err := m.Initialize(); err != nil {
		t.Fatal(err)
	}

	if err := m.Up(); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("second Up() failed: %v", err)
	}

	applied, err := m.GetAppliedMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 2 {
		t.Fatalf("applied = %d, want 2", len(applied))
	}
	if applied[0].Version != 1 || applied[0].Description != "add_a" {
		t.Errorf("first migration = %+v", applied[0])
	}
	if len(applied[1].Checksum) != 64 {
		t.Errorf("checksum length = %d, want 64", len(applied[1].Checksum))
	}
}

// TestUp_modifiedMigration verifies that editing an applied file is rejected.
func TestUp_modifiedMigration(t *testing.T) {
	db := openMigrationDB(t)
	source := fstest.MapFS{
		"V1__add_a.up.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
	}
	m := NewMigrator(db.DB, source)
	if err := m.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := m.Up(); err != nil {
		t.Fatal(err)
	}

	source["V1__add_a.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE a (id TEXT);")}
	if err := m.Up(); err == nil {
		t.Error("Up() should reject a modified migration")
	}
}

// TestDown verifies rollback of the latest migration.
func TestDown(t *testing.T) {
	db := openMigrationDB(t)
	if err := Migrate(db.DB); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	m := NewMigrator(db.DB, Migrations())
	if err := m.Down(); err != nil {
		t.Fatalf("Down() failed: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='donations'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("donations table still exists after Down()")
	}
	if err := m.Down(); err == nil {
		t.Error("Down() with nothing applied should fail")
	}
}

// TestMigrate_schema verifies the embedded schema creates every table.
func TestMigrate_schema(t *testing.T) {
	db := openMigrationDB(t)
	if err := Migrate(db.DB); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if err := Migrate(db.DB); err != nil {
		t.Fatalf("second Migrate() failed: %v", err)
	}

	for _, table := range []string{"users", "donations", "cart", "sync_queue"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}
