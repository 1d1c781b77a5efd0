package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/ecocrop/internal/aggregate"
	"github.com/chrissnell/ecocrop/internal/catalog"
	"github.com/chrissnell/ecocrop/internal/checkpoint"
	"github.com/chrissnell/ecocrop/internal/crop"
	"github.com/chrissnell/ecocrop/internal/grid"
	"github.com/chrissnell/ecocrop/internal/metrics"
	"github.com/chrissnell/ecocrop/internal/ncio"
	"github.com/chrissnell/ecocrop/internal/score"
	"github.com/chrissnell/ecocrop/internal/season"
	"github.com/chrissnell/ecocrop/internal/suitability"
	"github.com/chrissnell/ecocrop/pkg/config"
)

// Settings are the run options parsed from the configuration.
type Settings struct {
	Method      season.Method
	YearMethod  aggregate.YearMethod
	PrecipShape score.PrecipShape
}

// ParseSettings validates cfg and parses its enum options.
func ParseSettings(cfg *config.ConfigData) (Settings, error) {
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	method, err := season.ParseMethod(cfg.Method)
	if err != nil {
		return Settings{}, &crop.ConfigError{Field: "method", Reason: err.Error()}
	}
	yearMethod, err := aggregate.ParseYearMethod(cfg.YearAggregation)
	if err != nil {
		return Settings{}, &crop.ConfigError{Field: "year_aggregation", Reason: err.Error()}
	}
	shape := score.PrecipShape(cfg.PrecipShape)
	if shape < score.PrecipTrapezoid || shape > score.PrecipSegmented {
		return Settings{}, &crop.ConfigError{Field: "precip_score_shape", Reason: fmt.Sprintf("unknown shape %d", cfg.PrecipShape)}
	}
	return Settings{Method: method, YearMethod: yearMethod, PrecipShape: shape}, nil
}

// LoadCrop reads the crop table and returns the validated parameters of
// the configured crop.
func LoadCrop(cfg config.CropData, shape score.PrecipShape) (*crop.Params, error) {
	table, err := crop.LoadTable(cfg.Table)
	if err != nil {
		return nil, err
	}

	var rec *crop.Record
	if cfg.Name != "" {
		rec, err = table.Find(cfg.Name)
	} else {
		rec, err = table.At(*cfg.Index)
	}
	if err != nil {
		return nil, err
	}

	p, err := rec.Params()
	if err != nil {
		return nil, fmt.Errorf("crop %s: %w", rec.CommonName, err)
	}
	if err := p.Validate(shape); err != nil {
		return nil, fmt.Errorf("crop %s: %w", p.Name, err)
	}
	return p, nil
}

// Report summarises a finished run.
type Report struct {
	RunID   string
	Crop    string
	Outputs []catalog.Output
	Decades []catalog.DecadeSummary
}

// Runner scores one crop against one set of climate drivers and writes
// every product to the output directory.
type Runner struct {
	cfg     *config.ConfigData
	catalog catalog.Catalog
	logger  *zap.SugaredLogger
}

// NewRunner returns a runner. cat may be nil.
func NewRunner(cfg *config.ConfigData, cat catalog.Catalog, logger *zap.SugaredLogger) *Runner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{cfg: cfg, catalog: cat, logger: logger}
}

// Run performs the whole run. Configuration problems are reported before
// any input is read or output written.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	settings, err := ParseSettings(r.cfg)
	if err != nil {
		return nil, err
	}
	params, err := LoadCrop(r.cfg.Crop, settings.PrecipShape)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{Crop: params.Name}
	logger := r.logger.With("crop", params.Name)
	logger.Infof("starting %s run for %s (gmin %d, gmax %d, %s years, precip shape %d)",
		settings.Method, params.Name, params.GMin, params.GMax, settings.YearMethod, settings.PrecipShape)

	if r.catalog != nil {
		run := &catalog.Run{
			Crop:            params.Name,
			Method:          settings.Method.String(),
			YearAggregation: settings.YearMethod.String(),
			PrecipShape:     int(settings.PrecipShape),
			GMin:            params.GMin,
			GMax:            params.GMax,
		}
		if err := r.catalog.StartRun(ctx, run); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		report.RunID = run.ID
		logger = logger.With("run", run.ID)
	}

	err = r.run(ctx, logger, params, settings, report)

	status := catalog.StatusSucceeded
	if err != nil {
		status = catalog.StatusFailed
	}
	metrics.Runs.WithLabelValues(params.Name, string(status)).Inc()
	metrics.RunDuration.WithLabelValues(params.Name).Observe(time.Since(start).Seconds())

	if r.catalog != nil {
		// record the outcome even when ctx was cancelled
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		if ferr := r.catalog.FinishRun(finishCtx, report.RunID, status, err); ferr != nil {
			logger.Errorf("could not record run status: %v", ferr)
		}
		cancel()
	}
	if path := r.cfg.Metrics.Textfile; path != "" {
		if merr := metrics.WriteTextfile(path); merr != nil {
			logger.Warnf("could not write metrics: %v", merr)
		}
	}

	if err != nil {
		logger.Errorf("run failed after %s: %v", time.Since(start).Round(time.Second), err)
		return report, err
	}
	logger.Infof("run finished in %s, wrote %d files", time.Since(start).Round(time.Second), len(report.Outputs))
	return report, nil
}

func (r *Runner) run(ctx context.Context, logger *zap.SugaredLogger, params *crop.Params, settings Settings, report *Report) error {
	masks, err := r.loadMasks(ctx, params.SoilGroups)
	if err != nil {
		return err
	}

	in, err := r.readInputs(ctx)
	if err != nil {
		return err
	}
	mask, err := buildMask(masks, in.Tas.Y, in.Tas.X)
	if err != nil {
		return err
	}
	logger.Infof("%d of %d cells remain after masking", mask.Valid(), len(mask.Data))

	searcher := season.NewSearcher(params, settings.Method, settings.PrecipShape, logger)
	if dir := r.cfg.Checkpoint.Dir; dir != "" {
		store, err := checkpoint.NewFileStore(dir)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s_%s_shape%d", params.Name, settings.Method, settings.PrecipShape)
		searcher.WithCheckpoints(store, key)
	}
	res, err := searcher.Run(ctx, in)
	if err != nil {
		return err
	}

	combined, err := suitability.Combine(res.Temp, res.Precip)
	if err != nil {
		return err
	}

	if err := applyMask(mask, []*grid.Cube[uint8]{combined, res.Temp, res.Precip},
		[]*grid.Cube[float32]{res.KillTempProp, res.KillMaxProp}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	w, err := ncio.NewWriter(r.cfg.Output.Dir, params.Name, logger)
	if err != nil {
		return err
	}
	p := &products{
		writer:     w,
		yearMethod: settings.YearMethod,
		daily:      r.cfg.Output.Daily,
		logger:     logger,
	}
	defer func() {
		report.Outputs = p.outputs
		metrics.OutputsWritten.WithLabelValues(params.Name).Add(float64(len(p.outputs)))
	}()

	decades, err := p.write(ctx, combined, res)
	if err != nil {
		r.recordOutputs(ctx, logger, report.RunID, p.outputs)
		return err
	}

	report.Decades = summarise(decades, mask)
	for _, d := range report.Decades {
		metrics.SuitableCells.WithLabelValues(params.Name, fmt.Sprint(d.Decade)).Set(float64(d.SuitableCells))
	}

	if err := r.recordOutputs(ctx, logger, report.RunID, p.outputs); err != nil {
		return err
	}
	if r.catalog != nil {
		if err := r.catalog.AddDecadeSummaries(ctx, report.RunID, report.Decades); err != nil {
			return fmt.Errorf("record decade summaries: %w", err)
		}
	}
	return nil
}

func applyMask(m *suitability.Mask, scores []*grid.Cube[uint8], props []*grid.Cube[float32]) error {
	for _, c := range scores {
		if err := suitability.Apply(m, c); err != nil {
			return err
		}
	}
	for _, c := range props {
		if err := suitability.Apply(m, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) recordOutputs(ctx context.Context, logger *zap.SugaredLogger, runID string, outputs []catalog.Output) error {
	if r.catalog == nil || len(outputs) == 0 {
		return nil
	}
	if err := r.catalog.AddOutputs(ctx, runID, outputs); err != nil {
		logger.Errorf("could not record outputs: %v", err)
		return fmt.Errorf("record outputs: %w", err)
	}
	return nil
}

func (r *Runner) readInputs(ctx context.Context) (season.Inputs, error) {
	ic := r.cfg.Inputs
	coords := ncio.Coords{Time: ic.Coords.Time, Y: ic.Coords.Y, X: ic.Coords.X}

	var in season.Inputs
	vars := []struct {
		name string
		v    config.VariableData
		dst  **grid.Cube[float32]
	}{
		{"tas", ic.Tas, &in.Tas},
		{"tasmin", ic.Tasmin, &in.Tasmin},
		{"tasmax", ic.Tasmax, &in.Tasmax},
		{"pr", ic.Pr, &in.Pr},
	}
	for _, v := range vars {
		r.logger.Infof("reading %s (%s) from %v", v.name, v.v.Variable, v.v.Paths)
		c, err := ncio.ReadCube(ctx, v.v.Paths, v.v.Variable, coords)
		if err != nil {
			return season.Inputs{}, fmt.Errorf("%s: %w", v.name, err)
		}
		*v.dst = c
	}
	return in, nil
}
