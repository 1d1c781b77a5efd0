// Package catalog records suitability runs, the files they wrote and a
// per-decade summary of their results.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one crop scored against one set of climate drivers.
type Run struct {
	ID              string     `json:"id" msgpack:"id"`
	Crop            string     `json:"crop" msgpack:"crop"`
	Method          string     `json:"method" msgpack:"method"`
	YearAggregation string     `json:"year_aggregation" msgpack:"year_aggregation"`
	PrecipShape     int        `json:"precip_score_shape" msgpack:"precip_score_shape"`
	GMin            int        `json:"gmin" msgpack:"gmin"`
	GMax            int        `json:"gmax" msgpack:"gmax"`
	Status          Status     `json:"status" msgpack:"status"`
	Error           string     `json:"error,omitempty" msgpack:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at" msgpack:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty" msgpack:"finished_at,omitempty"`
}

// Output is a file written by a run.
type Output struct {
	Kind string `json:"kind" msgpack:"kind"`
	Path string `json:"path" msgpack:"path"`
}

// DecadeSummary condenses one decade of combined scores over the valid
// (unmasked) cells.
type DecadeSummary struct {
	Decade        int     `json:"decade" msgpack:"decade"`
	MeanScore     float64 `json:"mean_score" msgpack:"mean_score"`
	SuitableCells int     `json:"suitable_cells" msgpack:"suitable_cells"`
	ValidCells    int     `json:"valid_cells" msgpack:"valid_cells"`
}

// Catalog stores runs.
type Catalog interface {
	// StartRun records a new run as running. An empty ID is filled in.
	StartRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, id string, status Status, runErr error) error
	AddOutputs(ctx context.Context, id string, outputs []Output) error
	AddDecadeSummaries(ctx context.Context, id string, summaries []DecadeSummary) error

	// ListRuns returns the newest runs first, optionally for one crop.
	ListRuns(ctx context.Context, crop string, limit int) ([]Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	Outputs(ctx context.Context, id string) ([]Output, error)
	DecadeSummaries(ctx context.Context, id string) ([]DecadeSummary, error)

	Close() error
}

// Config selects a backend. SQLite is used when both are set.
type Config struct {
	SQLitePath  string
	PostgresDSN string
}

// Open connects to the configured backend. It returns nil, nil when no
// backend is configured.
func Open(cfg Config, logger *zap.SugaredLogger) (Catalog, error) {
	switch {
	case cfg.SQLitePath != "":
		c, err := OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case cfg.PostgresDSN != "":
		c, err := OpenPostgres(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func checkLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, fmt.Errorf("limit must not be negative, got %d", limit)
	case limit == 0:
		return 100, nil
	}
	return limit, nil
}
