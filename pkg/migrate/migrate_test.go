package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

var testMigrations = fstest.MapFS{
	"m/001_create_runs.up.sql":       {Data: []byte(`CREATE TABLE runs (id TEXT PRIMARY KEY);`)},
	"m/001_create_runs.down.sql":     {Data: []byte(`DROP TABLE runs;`)},
	"m/002_add_outputs.up.sql":       {Data: []byte(`CREATE TABLE outputs (run_id TEXT, path TEXT);`)},
	"m/002_add_outputs.down.sql":     {Data: []byte(`DROP TABLE outputs;`)},
	"m/README.md":                    {Data: []byte("not a migration")},
	"m/003_broken_name.sideways.sql": {Data: []byte("ignored")},
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n == 1
}

func TestGetMigrations(t *testing.T) {
	p := NewFSProvider(testMigrations, "m", "", "")
	migrations, err := p.GetMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "create runs" || migrations[0].Down == "" {
		t.Errorf("first migration = %+v", migrations[0])
	}
	if migrations[1].Version != 2 {
		t.Errorf("second migration version = %d", migrations[1].Version)
	}
}

func TestMigrateUpAndDown(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, NewFSProvider(testMigrations, "m", "", "sqlite"), nil)

	pending, err := m.GetPendingMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}

	if err := m.MigrateUp(); err != nil {
		t.Fatal(err)
	}
	v, err := m.GetCurrentVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != 2 {
		t.Errorf("version = %d, want 2", v)
	}
	if !tableExists(t, db, "runs") || !tableExists(t, db, "outputs") {
		t.Fatal("tables missing after migrate up")
	}

	// running again is a no-op
	if err := m.MigrateUp(); err != nil {
		t.Fatal(err)
	}

	if err := m.MigrateDown(1); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.GetCurrentVersion(); v != 1 {
		t.Errorf("version after rollback = %d, want 1", v)
	}
	if tableExists(t, db, "outputs") {
		t.Error("outputs table should be dropped")
	}
	if !tableExists(t, db, "runs") {
		t.Error("runs table should remain")
	}

	if err := m.MigrateDown(1); err == nil {
		t.Error("expected error rolling back to the current version")
	}
}
