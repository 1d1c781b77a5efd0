package app

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/ecocrop/internal/aggregate"
	"github.com/chrissnell/ecocrop/internal/catalog"
	"github.com/chrissnell/ecocrop/internal/circular"
	"github.com/chrissnell/ecocrop/internal/grid"
	"github.com/chrissnell/ecocrop/internal/ncio"
	"github.com/chrissnell/ecocrop/internal/season"
	"github.com/chrissnell/ecocrop/internal/suitability"
)

// series names the files written for one daily score cube.
type series struct {
	variable string
	daily    string
	years    string
	decades  string
	changes  string
	doys     string
}

var (
	combinedSeries = series{
		variable: "crop_suitability_score",
		daily:    "",
		years:    "_years",
		decades:  "_decades",
		changes:  "_decadal_changes",
		doys:     "_max_doys",
	}
	tempSeries = series{
		variable: "temperature_suitability_score",
		daily:    "_temp",
		years:    "_tempscore_years",
		decades:  "_tempscore_decades",
		changes:  "_tempscore_decadal_changes",
		doys:     "_max_doys_temp",
	}
	precipSeries = series{
		variable: "precip_suitability_score",
		daily:    "_prec",
		years:    "_precscore_years",
		decades:  "_precscore_decades",
		changes:  "_precscore_decadal_changes",
		doys:     "_max_doys_prec",
	}
)

const (
	ktmpVariable = "average_proportion_of_ktmp_days_in_gtime"
	kmaxVariable = "average_proportion_of_kmax_days_in_gtime"
)

// products writes the output files of one run and remembers what it wrote.
type products struct {
	writer     *ncio.Writer
	yearMethod aggregate.YearMethod
	daily      bool
	logger     *zap.SugaredLogger
	outputs    []catalog.Output
}

// write emits every product and returns the decadal combined scores.
func (p *products) write(ctx context.Context, combined *grid.Cube[uint8], res *season.Result) (*grid.Stack[float32], error) {
	var combinedDecades *grid.Stack[float32]
	for _, s := range []struct {
		names series
		c     *grid.Cube[uint8]
	}{
		{combinedSeries, combined},
		{tempSeries, res.Temp},
		{precipSeries, res.Precip},
	} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		decades, err := p.writeSeries(s.names, s.c)
		if err != nil {
			return nil, err
		}
		if s.c == combined {
			combinedDecades = decades
		}
	}

	for _, k := range []struct {
		name     string
		variable string
		c        *grid.Cube[float32]
	}{
		{"ktmp", ktmpVariable, res.KillTempProp},
		{"kmax", kmaxVariable, res.KillMaxProp},
	} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.daily {
			if err := writeCube(p, "_"+k.name+"_days_avg_prop", k.variable, k.c, ncio.Float32); err != nil {
				return nil, err
			}
		}
		p.logger.Infof("calculating monthly climatology of %s day proportions", k.name)
		climo := aggregate.MonthlyDecadal(k.c)
		suffix := "_" + k.name + "_days_prop_monthly_climo"
		if err := p.writeClimatology(suffix, k.variable, climo); err != nil {
			return nil, err
		}
		if err := p.writeClimatology(suffix+"_decadal_changes", k.variable, climo.Change()); err != nil {
			return nil, err
		}
	}
	return combinedDecades, nil
}

func (p *products) writeSeries(s series, c *grid.Cube[uint8]) (*grid.Stack[float32], error) {
	if p.daily {
		if err := writeCube(p, s.daily, s.variable, c, ncio.Int8); err != nil {
			return nil, err
		}
	}

	p.logger.Infof("calculating yearly %s (%s)", s.variable, p.yearMethod)
	years := aggregate.Yearly(c, p.yearMethod)
	if err := writeStack(p, s.years, s.variable, years, ncio.Int8); err != nil {
		return nil, err
	}
	decades := aggregate.Decadal(years)
	if err := writeStack(p, s.decades, s.variable, decades, ncio.Int8); err != nil {
		return nil, err
	}
	if err := writeStack(p, s.changes, s.variable, aggregate.DecadalChange(decades), ncio.Int8); err != nil {
		return nil, err
	}

	p.logger.Infof("finding day of year of maximum %s", s.variable)
	doyVariable := "max_doy_" + s.variable
	doys := circular.DayOfMax(c)
	if err := writeStack(p, s.doys, doyVariable, doys, ncio.Float32); err != nil {
		return nil, err
	}
	doyDecades := circular.DecadalMean(doys)
	if err := writeStack(p, s.doys+"_decades", doyVariable, doyDecades, ncio.Float32); err != nil {
		return nil, err
	}
	if err := writeStack(p, s.doys+"_decadal_changes", doyVariable, circular.DecadalChange(doyDecades), ncio.Float32); err != nil {
		return nil, err
	}
	return decades, nil
}

func (p *products) note(before int, suffix string) {
	written := p.writer.Written()
	if len(written) == before {
		return
	}
	kind := strings.TrimPrefix(suffix, "_")
	if kind == "" {
		kind = "daily"
	}
	p.outputs = append(p.outputs, catalog.Output{Kind: kind, Path: written[len(written)-1]})
}

func writeCube[T grid.Number](p *products, suffix, variable string, c *grid.Cube[T], enc ncio.Encoding) error {
	n := len(p.writer.Written())
	if err := ncio.WriteCube(p.writer, suffix, variable, c, enc); err != nil {
		return err
	}
	p.note(n, suffix)
	return nil
}

func writeStack[T grid.Number](p *products, suffix, variable string, s *grid.Stack[T], enc ncio.Encoding) error {
	n := len(p.writer.Written())
	if err := ncio.WriteStack(p.writer, suffix, variable, s, enc); err != nil {
		return err
	}
	p.note(n, suffix)
	return nil
}

func (p *products) writeClimatology(suffix, variable string, c *aggregate.Climatology) error {
	n := len(p.writer.Written())
	if err := ncio.WriteClimatology(p.writer, suffix, variable, c); err != nil {
		return err
	}
	p.note(n, suffix)
	return nil
}

// summarise reduces each decade of combined scores to the mean over the
// cells the mask keeps and the number of those cells with a positive score.
func summarise(decades *grid.Stack[float32], mask *suitability.Mask) []catalog.DecadeSummary {
	if decades == nil {
		return nil
	}
	out := make([]catalog.DecadeSummary, 0, decades.Len())
	for l, label := range decades.Labels {
		layer := decades.Layer(l)
		vals := make([]float64, 0, len(layer))
		suitable := 0
		for k, v := range layer {
			if mask.Data[k] == 0 || math.IsNaN(float64(v)) {
				continue
			}
			vals = append(vals, float64(v))
			if v > 0 {
				suitable++
			}
		}
		d := catalog.DecadeSummary{Decade: label, SuitableCells: suitable, ValidCells: len(vals)}
		if len(vals) > 0 {
			d.MeanScore = stat.Mean(vals, nil)
		}
		out = append(out, d)
	}
	return out
}
