package ncio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"go.uber.org/zap"

	"github.com/chrissnell/ecocrop/internal/aggregate"
	"github.com/chrissnell/ecocrop/internal/constants"
	"github.com/chrissnell/ecocrop/internal/grid"
)

// Encoding is the on-disk element type of a written variable.
type Encoding int

const (
	// Int8 rounds half to even and stores missing values as Int8Fill.
	Int8 Encoding = iota
	// Float32 stores values unchanged, with NaN for missing.
	Float32
)

// Int8Fill marks missing values in Int8 variables.
const Int8Fill int8 = math.MinInt8

// Writer writes the products of one crop into a directory as
// <dir>/<crop><suffix>.nc. Each file is written to a temporary name and
// renamed into place once complete.
type Writer struct {
	dir     string
	crop    string
	logger  *zap.SugaredLogger
	written []string
}

// NewWriter creates dir if needed.
func NewWriter(dir, crop string, logger *zap.SugaredLogger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Writer{dir: dir, crop: crop, logger: logger}, nil
}

// Path returns the file a suffix is written to.
func (w *Writer) Path(suffix string) string {
	return filepath.Join(w.dir, w.crop+suffix+".nc")
}

// Written lists the files written so far, in order.
func (w *Writer) Written() []string {
	return append([]string(nil), w.written...)
}

// WriteCube writes a daily (time, y, x) cube.
func WriteCube[T grid.Number](w *Writer, suffix, variable string, c *grid.Cube[T], enc Encoding) error {
	if err := c.Validate(); err != nil {
		return err
	}
	offsets := make([]float64, c.NT())
	units := "days since 1970-01-01 00:00:00"
	if c.NT() > 0 {
		for t, d := range c.Times {
			offsets[t] = float64(c.Calendar.DaysBetween(c.Times[0], d))
		}
		units = fmt.Sprintf("days since %s 00:00:00", c.Times[0])
	}
	timeAttrs, err := attributes([]string{"units", "calendar", "standard_name"}, map[string]any{
		"units":         units,
		"calendar":      c.Calendar.String(),
		"standard_name": "time",
	})
	if err != nil {
		return err
	}

	vars := []namedVar{
		{"time", api.Variable{Values: offsets, Dimensions: []string{"time"}, Attributes: timeAttrs}},
	}
	vars = append(vars, spatialVars(c.Y, c.X)...)
	data, err := dataVar(c.Data, enc, []int{c.NT(), len(c.Y), len(c.X)}, []string{"time", "y", "x"})
	if err != nil {
		return err
	}
	vars = append(vars, namedVar{variable, data})
	return w.write(suffix, vars)
}

// WriteStack writes a (year|decade, y, x) stack. An empty stack is
// skipped with a warning.
func WriteStack[T grid.Number](w *Writer, suffix, variable string, s *grid.Stack[T], enc Encoding) error {
	if s.Len() == 0 {
		w.logger.Warnf("not writing %s: no %s layers", w.Path(suffix), s.Axis)
		return nil
	}
	if err := s.Validate(); err != nil {
		return err
	}
	labels := make([]int32, s.Len())
	for i, l := range s.Labels {
		labels[i] = int32(l)
	}

	vars := []namedVar{{s.Axis, api.Variable{Values: labels, Dimensions: []string{s.Axis}}}}
	vars = append(vars, spatialVars(s.Y, s.X)...)
	data, err := dataVar(s.Data, enc, []int{s.Len(), len(s.Y), len(s.X)}, []string{s.Axis, "y", "x"})
	if err != nil {
		return err
	}
	vars = append(vars, namedVar{variable, data})
	return w.write(suffix, vars)
}

// WriteClimatology writes a (decade, month, y, x) climatology as float32.
func WriteClimatology(w *Writer, suffix, variable string, c *aggregate.Climatology) error {
	if len(c.Decades) == 0 {
		w.logger.Warnf("not writing %s: no decades", w.Path(suffix))
		return nil
	}
	decades := make([]int32, len(c.Decades))
	for i, d := range c.Decades {
		decades[i] = int32(d)
	}
	months := make([]int32, aggregate.MonthsPerYear)
	for m := range months {
		months[m] = int32(m + 1)
	}

	vars := []namedVar{
		{"decade", api.Variable{Values: decades, Dimensions: []string{"decade"}}},
		{"month", api.Variable{Values: months, Dimensions: []string{"month"}}},
	}
	vars = append(vars, spatialVars(c.Y, c.X)...)
	data, err := dataVar(c.Data, Float32, []int{len(c.Decades), aggregate.MonthsPerYear, len(c.Y), len(c.X)}, []string{"decade", "month", "y", "x"})
	if err != nil {
		return err
	}
	vars = append(vars, namedVar{variable, data})
	return w.write(suffix, vars)
}

type namedVar struct {
	name string
	v    api.Variable
}

func (w *Writer) write(suffix string, vars []namedVar) error {
	path := w.Path(suffix)
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	cw, err := cdf.OpenWriter(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	abort := func(err error) error {
		cw.Close()
		os.Remove(tmp)
		return err
	}

	global, err := attributes([]string{"crop", "source"}, map[string]any{
		"crop":   w.crop,
		"source": "ecocrop " + constants.Version,
	})
	if err != nil {
		return abort(err)
	}
	if err := cw.AddGlobalAttrs(global); err != nil {
		return abort(fmt.Errorf("write %s: %w", path, err))
	}
	for _, nv := range vars {
		if err := cw.AddVar(nv.name, nv.v); err != nil {
			return abort(fmt.Errorf("write %s variable %s: %w", path, nv.name, err))
		}
	}
	if err := cw.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("move %s into place: %w", path, err)
	}

	w.written = append(w.written, path)
	w.logger.Debugf("wrote %s", path)
	return nil
}

func attributes(keys []string, vals map[string]any) (api.AttributeMap, error) {
	m, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return nil, fmt.Errorf("build attributes: %w", err)
	}
	return m, nil
}

func spatialVars(y, x []float64) []namedVar {
	yAttrs, _ := attributes([]string{"standard_name", "units"}, map[string]any{"standard_name": "projection_y_coordinate", "units": "m"})
	xAttrs, _ := attributes([]string{"standard_name", "units"}, map[string]any{"standard_name": "projection_x_coordinate", "units": "m"})
	return []namedVar{
		{"y", api.Variable{Values: y, Dimensions: []string{"y"}, Attributes: yAttrs}},
		{"x", api.Variable{Values: x, Dimensions: []string{"x"}, Attributes: xAttrs}},
	}
}

// dataVar encodes flat row-major data into the nested slices the writer
// expects for the given shape.
func dataVar[T grid.Number](data []T, enc Encoding, shape []int, dims []string) (api.Variable, error) {
	switch enc {
	case Int8:
		flat := make([]int8, len(data))
		for k, v := range data {
			flat[k] = toInt8(float64(v))
		}
		attrs, err := attributes([]string{"_FillValue"}, map[string]any{"_FillValue": Int8Fill})
		if err != nil {
			return api.Variable{}, err
		}
		return api.Variable{Values: nest(flat, shape), Dimensions: dims, Attributes: attrs}, nil
	case Float32:
		flat := make([]float32, len(data))
		for k, v := range data {
			flat[k] = float32(v)
		}
		return api.Variable{Values: nest(flat, shape), Dimensions: dims}, nil
	}
	return api.Variable{}, fmt.Errorf("unknown encoding %d", enc)
}

func toInt8(v float64) int8 {
	if math.IsNaN(v) {
		return Int8Fill
	}
	r := math.RoundToEven(v)
	switch {
	case r <= math.MinInt8+1:
		return math.MinInt8 + 1
	case r >= math.MaxInt8:
		return math.MaxInt8
	}
	return int8(r)
}

// nest reshapes a flat slice into nested slices of depth len(shape).
func nest[E int8 | float32](flat []E, shape []int) any {
	switch len(shape) {
	case 3:
		return nest3(flat, shape[0], shape[1], shape[2])
	case 4:
		out := make([][][][]E, shape[0])
		step := shape[1] * shape[2] * shape[3]
		for a := range out {
			out[a] = nest3(flat[a*step:(a+1)*step], shape[1], shape[2], shape[3])
		}
		return out
	}
	return flat
}

func nest3[E any](flat []E, a, b, c int) [][][]E {
	out := make([][][]E, a)
	for i := range out {
		out[i] = make([][]E, b)
		for j := range out[i] {
			off := (i*b + j) * c
			out[i][j] = flat[off : off+c]
		}
	}
	return out
}
