package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CandidatesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecocrop_season_candidates_processed_total",
			Help: "Total growing-season candidate lengths scored",
		},
		[]string{"crop"},
	)

	CandidatesResumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecocrop_season_candidates_resumed_total",
			Help: "Candidate lengths skipped because a checkpoint already covered them",
		},
		[]string{"crop"},
	)

	CandidateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecocrop_season_candidate_duration_seconds",
			Help:    "Time spent scoring one candidate season length",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"crop"},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecocrop_runs_total",
			Help: "Total suitability runs by final status",
		},
		[]string{"crop", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecocrop_run_duration_seconds",
			Help:    "Wall time of a complete suitability run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"crop"},
	)

	OutputsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecocrop_outputs_written_total",
			Help: "Total output files written",
		},
		[]string{"crop"},
	)

	SuitableCells = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecocrop_suitable_cells",
			Help: "Cells with a non-zero decadal combined score, by decade start year",
		},
		[]string{"crop", "decade"},
	)
)

// WriteTextfile writes every registered collector to path in the
// node-exporter textfile format. The parent directory is created if needed.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
