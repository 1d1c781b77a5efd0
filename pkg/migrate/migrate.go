// Package migrate applies numbered SQL schema migrations and records the
// applied version in a tracking table.
package migrate

import (
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration is one numbered schema change and its rollback.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB is satisfied by both *sql.DB and *sql.Tx.
type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// MigrationProvider loads migrations and tracks the applied version.
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Migrator runs the migrations of a provider against a database.
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator returns a migrator. logger may be nil.
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{db: db, provider: provider, logger: logger}
}

// MigrateUp applies every pending migration.
func (m *Migrator) MigrateUp() error {
	return m.MigrateTo(-1)
}

// MigrateDown rolls back every migration above target.
func (m *Migrator) MigrateDown(target int) error {
	current, migrations, err := m.state()
	if err != nil {
		return err
	}
	if target >= current {
		return fmt.Errorf("target version %d must be less than current version %d", target, current)
	}
	for i := len(migrations) - 1; i >= 0; i-- {
		mig := migrations[i]
		if mig.Version <= target || mig.Version > current {
			continue
		}
		if err := m.apply(mig, false); err != nil {
			return fmt.Errorf("rollback migration %d: %w", mig.Version, err)
		}
	}
	return nil
}

// MigrateTo moves the schema to target, or to the newest migration when
// target is -1.
func (m *Migrator) MigrateTo(target int) error {
	current, migrations, err := m.state()
	if err != nil {
		return err
	}
	if target == -1 && len(migrations) > 0 {
		target = migrations[len(migrations)-1].Version
	}
	if target < current {
		return m.MigrateDown(target)
	}
	for _, mig := range migrations {
		if mig.Version <= current || mig.Version > target {
			continue
		}
		if err := m.apply(mig, true); err != nil {
			return fmt.Errorf("apply migration %d: %w", mig.Version, err)
		}
	}
	return nil
}

// GetCurrentVersion returns the applied version, 0 for a fresh database.
func (m *Migrator) GetCurrentVersion() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, err
	}
	return m.provider.GetCurrentVersion(m.db)
}

// GetPendingMigrations returns the migrations above the applied version in
// ascending order.
func (m *Migrator) GetPendingMigrations() ([]Migration, error) {
	current, migrations, err := m.state()
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, mig := range migrations {
		if mig.Version > current {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// state returns the applied version and every migration sorted ascending.
func (m *Migrator) state() (int, []Migration, error) {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return 0, nil, err
	}
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return 0, nil, err
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return current, migrations, nil
}

// apply runs one migration and its version update in a single transaction.
func (m *Migrator) apply(mig Migration, up bool) error {
	stmt, version, direction := mig.Up, mig.Version, "up"
	if !up {
		stmt, version, direction = mig.Down, mig.Version-1, "down"
	}
	if stmt == "" {
		return fmt.Errorf("migration %d has no %s SQL", mig.Version, direction)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return err
	}
	if err := m.provider.SetVersion(tx, version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	m.logger.Infow("applied migration", "version", mig.Version, "name", mig.Name, "direction", direction)
	return nil
}
