package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/ecocrop/internal/log"
)

type runRow struct {
	ID              string    `gorm:"primaryKey"`
	Crop            string    `gorm:"index:runs_crop_started,priority:1;not null"`
	Method          string    `gorm:"not null"`
	YearAggregation string    `gorm:"not null"`
	PrecipShape     int       `gorm:"not null"`
	GMin            int       `gorm:"column:gmin;not null"`
	GMax            int       `gorm:"column:gmax;not null"`
	Status          string    `gorm:"not null"`
	Error           string    `gorm:"not null;default:''"`
	StartedAt       time.Time `gorm:"index:runs_crop_started,priority:2;not null"`
	FinishedAt      *time.Time
}

func (runRow) TableName() string { return "runs" }

func (r *runRow) run() Run {
	return Run{
		ID:              r.ID,
		Crop:            r.Crop,
		Method:          r.Method,
		YearAggregation: r.YearAggregation,
		PrecipShape:     r.PrecipShape,
		GMin:            r.GMin,
		GMax:            r.GMax,
		Status:          Status(r.Status),
		Error:           r.Error,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
	}
}

type outputRow struct {
	RunID string `gorm:"primaryKey"`
	Seq   int    `gorm:"primaryKey;autoIncrement:false"`
	Kind  string `gorm:"not null"`
	Path  string `gorm:"not null"`
}

func (outputRow) TableName() string { return "run_outputs" }

type decadeRow struct {
	RunID         string `gorm:"primaryKey"`
	Decade        int    `gorm:"primaryKey;autoIncrement:false"`
	MeanScore     float64
	SuitableCells int
	ValidCells    int
}

func (decadeRow) TableName() string { return "decade_summaries" }

// Postgres is a Catalog backed by PostgreSQL through GORM.
type Postgres struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

var _ Catalog = (*Postgres)(nil)

// OpenPostgres connects to dsn and creates the catalog tables if needed.
func OpenPostgres(dsn string, logger *zap.SugaredLogger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, fmt.Errorf("connect to catalog database: %w", err)
	}
	if err := db.AutoMigrate(&runRow{}, &outputRow{}, &decadeRow{}); err != nil {
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	logger.Info("connected to PostgreSQL run catalog")
	return &Postgres{db: db, logger: logger}, nil
}

func gormLogger() logger.Interface {
	return logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func (p *Postgres) StartRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = StatusRunning

	row := runRow{
		ID:              run.ID,
		Crop:            run.Crop,
		Method:          run.Method,
		YearAggregation: run.YearAggregation,
		PrecipShape:     run.PrecipShape,
		GMin:            run.GMin,
		GMax:            run.GMax,
		Status:          string(run.Status),
		StartedAt:       run.StartedAt,
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (p *Postgres) FinishRun(ctx context.Context, id string, status Status, runErr error) error {
	res := p.db.WithContext(ctx).Model(&runRow{}).Where("id = ?", id).Updates(map[string]any{
		"status":      string(status),
		"error":       errorText(runErr),
		"finished_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("update run %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) AddOutputs(ctx context.Context, id string, outputs []Output) error {
	if len(outputs) == 0 {
		return nil
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		if err := tx.Model(&outputRow{}).Where("run_id = ?", id).
			Select("COALESCE(MAX(seq), -1) + 1").Scan(&next).Error; err != nil {
			return err
		}
		rows := make([]outputRow, len(outputs))
		for i, o := range outputs {
			rows[i] = outputRow{RunID: id, Seq: next + i, Kind: o.Kind, Path: o.Path}
		}
		return tx.Create(&rows).Error
	})
}

func (p *Postgres) AddDecadeSummaries(ctx context.Context, id string, summaries []DecadeSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	rows := make([]decadeRow, len(summaries))
	for i, d := range summaries {
		rows[i] = decadeRow{
			RunID:         id,
			Decade:        d.Decade,
			MeanScore:     d.MeanScore,
			SuitableCells: d.SuitableCells,
			ValidCells:    d.ValidCells,
		}
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

func (p *Postgres) ListRuns(ctx context.Context, crop string, limit int) ([]Run, error) {
	limit, err := checkLimit(limit)
	if err != nil {
		return nil, err
	}
	q := p.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if crop != "" {
		q = q.Where("crop = ?", crop)
	}
	var rows []runRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	runs := make([]Run, len(rows))
	for i := range rows {
		runs[i] = rows[i].run()
	}
	return runs, nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (*Run, error) {
	var row runRow
	err := p.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r := row.run()
	return &r, nil
}

func (p *Postgres) Outputs(ctx context.Context, id string) ([]Output, error) {
	if _, err := p.GetRun(ctx, id); err != nil {
		return nil, err
	}
	var rows []outputRow
	if err := p.db.WithContext(ctx).Where("run_id = ?", id).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	outputs := make([]Output, len(rows))
	for i, r := range rows {
		outputs[i] = Output{Kind: r.Kind, Path: r.Path}
	}
	return outputs, nil
}

func (p *Postgres) DecadeSummaries(ctx context.Context, id string) ([]DecadeSummary, error) {
	if _, err := p.GetRun(ctx, id); err != nil {
		return nil, err
	}
	var rows []decadeRow
	if err := p.db.WithContext(ctx).Where("run_id = ?", id).Order("decade").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list decade summaries: %w", err)
	}
	summaries := make([]DecadeSummary, len(rows))
	for i, r := range rows {
		summaries[i] = DecadeSummary{
			Decade:        r.Decade,
			MeanScore:     r.MeanScore,
			SuitableCells: r.SuitableCells,
			ValidCells:    r.ValidCells,
		}
	}
	return summaries, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
