package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/ecocrop/pkg/migrate"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// Fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite is a Catalog backed by a single SQLite file.
type SQLite struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

var _ Catalog = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the catalog at path and applies any
// pending schema migrations.
func OpenSQLite(path string, logger *zap.SugaredLogger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure catalog: %w", err)
	}

	if err := SQLiteMigrator(db, logger).MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}

	logger.Debugf("opened run catalog %s", path)
	return &SQLite{db: db, logger: logger}, nil
}

// SQLiteMigrator returns a migrator for the catalog schema embedded in the
// binary.
func SQLiteMigrator(db *sql.DB, logger *zap.SugaredLogger) *migrate.Migrator {
	provider := migrate.NewFSProvider(sqliteMigrations, "migrations/sqlite", "", "sqlite")
	return migrate.NewMigrator(db, provider, logger)
}

func (s *SQLite) StartRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = StatusRunning

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, crop, method, year_aggregation, precip_shape, gmin, gmax, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Crop, run.Method, run.YearAggregation, run.PrecipShape, run.GMin, run.GMax,
		string(run.Status), run.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *SQLite) FinishRun(ctx context.Context, id string, status Status, runErr error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), errorText(runErr), time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) AddOutputs(ctx context.Context, id string, outputs []Output) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), -1) + 1 FROM run_outputs WHERE run_id = ?`, id).Scan(&next); err != nil {
			return err
		}
		for i, o := range outputs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO run_outputs (run_id, seq, kind, path) VALUES (?, ?, ?, ?)`,
				id, next+i, o.Kind, o.Path); err != nil {
				return fmt.Errorf("insert output %s: %w", o.Path, err)
			}
		}
		return nil
	})
}

func (s *SQLite) AddDecadeSummaries(ctx context.Context, id string, summaries []DecadeSummary) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, d := range summaries {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO decade_summaries (run_id, decade, mean_score, suitable_cells, valid_cells)
				VALUES (?, ?, ?, ?, ?)`,
				id, d.Decade, d.MeanScore, d.SuitableCells, d.ValidCells); err != nil {
				return fmt.Errorf("insert decade %d: %w", d.Decade, err)
			}
		}
		return nil
	})
}

func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

const runColumns = `id, crop, method, year_aggregation, precip_shape, gmin, gmax, status, error, started_at, finished_at`

func (s *SQLite) ListRuns(ctx context.Context, crop string, limit int) ([]Run, error) {
	limit, err := checkLimit(limit)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if crop != "" {
		query += ` WHERE crop = ?`
		args = append(args, crop)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *SQLite) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r        Run
		status   string
		started  string
		finished sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.Crop, &r.Method, &r.YearAggregation, &r.PrecipShape, &r.GMin, &r.GMax,
		&status, &r.Error, &started, &finished); err != nil {
		return nil, err
	}
	r.Status = Status(status)

	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad started_at %q: %w", r.ID, started, err)
	}
	r.StartedAt = t
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad finished_at %q: %w", r.ID, finished.String, err)
		}
		r.FinishedAt = &t
	}
	return &r, nil
}

func (s *SQLite) exists(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Outputs(ctx context.Context, id string) ([]Output, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT kind, path FROM run_outputs WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	defer rows.Close()

	outputs := []Output{}
	for rows.Next() {
		var o Output
		if err := rows.Scan(&o.Kind, &o.Path); err != nil {
			return nil, err
		}
		outputs = append(outputs, o)
	}
	return outputs, rows.Err()
}

func (s *SQLite) DecadeSummaries(ctx context.Context, id string) ([]DecadeSummary, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT decade, mean_score, suitable_cells, valid_cells
		FROM decade_summaries WHERE run_id = ? ORDER BY decade`, id)
	if err != nil {
		return nil, fmt.Errorf("list decade summaries: %w", err)
	}
	defer rows.Close()

	summaries := []DecadeSummary{}
	for rows.Next() {
		var d DecadeSummary
		if err := rows.Scan(&d.Decade, &d.MeanScore, &d.SuitableCells, &d.ValidCells); err != nil {
			return nil, err
		}
		summaries = append(summaries, d)
	}
	return summaries, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
