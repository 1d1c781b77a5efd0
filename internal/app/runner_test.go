package app

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chrissnell/ecocrop/internal/calendar"
	"github.com/chrissnell/ecocrop/internal/catalog"
	"github.com/chrissnell/ecocrop/internal/crop"
	"github.com/chrissnell/ecocrop/internal/grid"
	"github.com/chrissnell/ecocrop/internal/ncio"
	"github.com/chrissnell/ecocrop/pkg/config"
)

// Rain limits are season totals in mm: 1728 mm is 0.02 kg/m²/s summed
// over the days of a season.
const cropTable = `COMNAME,ScientificName,TOPMN,TOPMX,TMIN,TMAX,KTMPR,RMIN,RMAX,ROPMN,ROPMX,GMIN,GMAX,TEXT
"Test crop, other name",Testus cropus,12,32,-3,42,-5,0,5184,1728,3456,60,120,"light, medium"
Narrow crop,Angustus,12,32,-3,42,-5,0,5184,1728,3456,60,70,heavy
`

const days = 720

var (
	testY = []float64{1000, 2000}
	testX = []float64{500, 1500}
)

func writeDriver(t *testing.T, dir, name string, v float32) string {
	t.Helper()
	times := calendar.Day360.Series(calendar.Date{Year: 2020, Month: 1, Day: 1}, days)
	c := grid.NewCube[float32](calendar.Day360, times, testY, testX)
	for k := range c.Data {
		c.Data[k] = v
	}
	w, err := ncio.NewWriter(dir, name, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := ncio.WriteCube(w, "", name, c, ncio.Float32); err != nil {
		t.Fatal(err)
	}
	return w.Path("")
}

func writeLandCover(t *testing.T, dir string) string {
	t.Helper()
	s := grid.NewStack[float32]("band", []int{1}, testY, testX)
	copy(s.Data, []float32{1, 0, 1, 1})
	w, err := ncio.NewWriter(dir, "lcm", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := ncio.WriteStack(w, "", "arable", s, ncio.Float32); err != nil {
		t.Fatal(err)
	}
	return w.Path("")
}

func testConfig(t *testing.T) *config.ConfigData {
	t.Helper()
	dir := t.TempDir()
	table := filepath.Join(dir, "EcoCrop_DB.csv")
	if err := os.WriteFile(table, []byte(cropTable), 0o644); err != nil {
		t.Fatal(err)
	}
	in := filepath.Join(dir, "in")

	cfg := &config.ConfigData{
		Crop: config.CropData{Table: table, Name: "Test crop"},
		Inputs: config.InputsData{
			Tas:    config.VariableData{Paths: []string{writeDriver(t, in, "tas", 295)}},
			Tasmin: config.VariableData{Paths: []string{writeDriver(t, in, "tasmin", 290)}},
			Tasmax: config.VariableData{Paths: []string{writeDriver(t, in, "tasmax", 300)}},
			Pr:     config.VariableData{Paths: []string{filepath.Join(in, "pr*.nc")}},
		},
		Masks: config.MasksData{
			LandCover: &config.LandCoverData{Path: writeLandCover(t, in), Variable: "arable"},
		},
		Output:   config.OutputData{Dir: filepath.Join(dir, "out"), Daily: true},
		Catalog:  config.CatalogData{SQLite: filepath.Join(dir, "catalog.db")},
		Metrics:  config.MetricsData{Textfile: filepath.Join(dir, "metrics", "ecocrop.prom")},
	}
	writeDriver(t, in, "pr", 0.0005)
	cfg.ApplyDefaults()
	return cfg
}

func TestRunnerEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	cat, err := catalog.OpenSQLite(cfg.Catalog.SQLite, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()

	report, err := NewRunner(cfg, cat, nil).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Crop != "Test_crop" {
		t.Errorf("crop = %s", report.Crop)
	}

	for _, name := range []string{
		"Test_crop.nc", "Test_crop_temp.nc", "Test_crop_prec.nc",
		"Test_crop_years.nc", "Test_crop_tempscore_years.nc", "Test_crop_precscore_years.nc",
		"Test_crop_decades.nc", "Test_crop_max_doys.nc", "Test_crop_max_doys_decades.nc",
		"Test_crop_ktmp_days_avg_prop.nc", "Test_crop_kmax_days_avg_prop.nc",
		"Test_crop_ktmp_days_prop_monthly_climo.nc", "Test_crop_kmax_days_prop_monthly_climo.nc",
	} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
	// a single decade has no change to report
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, "Test_crop_decadal_changes.nc")); err == nil {
		t.Error("decadal changes written for a single decade")
	}
	leftovers, _ := filepath.Glob(filepath.Join(cfg.Output.Dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}

	if len(report.Decades) != 1 {
		t.Fatalf("decades = %+v", report.Decades)
	}
	d := report.Decades[0]
	if d.Decade != 2020 || d.ValidCells != 3 || d.SuitableCells != 3 || math.Abs(d.MeanScore-100) > 1e-9 {
		t.Errorf("decade summary = %+v", d)
	}

	run, err := cat.GetRun(ctx, report.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != catalog.StatusSucceeded || run.Method != "annual" || run.YearAggregation != "percentile" {
		t.Errorf("catalog run = %+v", run)
	}
	outputs, err := cat.Outputs(ctx, report.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(outputs) != len(report.Outputs) || outputs[0].Kind != "daily" {
		t.Errorf("catalog outputs = %+v", outputs)
	}

	if _, err := os.Stat(cfg.Metrics.Textfile); err != nil {
		t.Errorf("metrics textfile: %v", err)
	}
}

func TestRunnerConfigErrorWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crop.Name = "Narrow crop"

	_, err := NewRunner(cfg, nil, nil).Run(context.Background())
	var cerr *crop.ConfigError
	if !errors.As(err, &cerr) || cerr.Field != "gmax" {
		t.Fatalf("got %v, want gmax config error", err)
	}
	if _, err := os.Stat(cfg.Output.Dir); !os.IsNotExist(err) {
		t.Errorf("output directory should not exist: %v", err)
	}
}

func TestParseSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Method = "perennial"
	cfg.YearAggregation = "median"
	cfg.PrecipShape = 3

	s, err := ParseSettings(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if s.Method.String() != "perennial" || s.YearMethod.String() != "median" || s.PrecipShape != 3 {
		t.Errorf("settings = %+v", s)
	}

	cfg.YearAggregation = "mode"
	if _, err := ParseSettings(cfg); err == nil || !strings.Contains(err.Error(), "year_aggregation") {
		t.Errorf("got %v, want year_aggregation error", err)
	}
}

func TestRunnerCancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog = config.CatalogData{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRunner(cfg, nil, nil).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
