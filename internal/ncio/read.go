package ncio

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/chrissnell/ecocrop/internal/calendar"
	"github.com/chrissnell/ecocrop/internal/grid"
)

// Coords names the coordinate variables of the input files.
type Coords struct {
	Time string
	Y    string
	X    string
}

// DefaultCoords matches the CHESS-SCAPE driving data.
var DefaultCoords = Coords{Time: "time", Y: "y", X: "x"}

// chunkSteps is the number of time steps read from a variable at once.
const chunkSteps = 360

// ReadCube reads variable from every file matched by the glob patterns,
// in name order, and concatenates them along time. All files must share
// the same (y, x) grid and calendar, and time must increase across files.
// Packed values are unpacked and fill values become NaN.
func ReadCube(ctx context.Context, patterns []string, variable string, coords Coords) (*grid.Cube[float32], error) {
	paths, err := expand(patterns)
	if err != nil {
		return nil, err
	}

	var parts []*grid.Cube[float32]
	total := 0
	for _, path := range paths {
		part, err := readFile(ctx, path, variable, coords)
		if err != nil {
			return nil, err
		}
		if len(parts) > 0 {
			prev := parts[len(parts)-1]
			if part.Calendar != prev.Calendar {
				return nil, fmt.Errorf("%s: calendar %s differs from %s", path, part.Calendar, prev.Calendar)
			}
			if !grid.SameSpace(part, prev) {
				return nil, fmt.Errorf("%s: %w: grid differs from earlier files", path, grid.ErrShape)
			}
			if part.NT() > 0 && prev.NT() > 0 && !prev.Times[prev.NT()-1].Before(part.Times[0]) {
				return nil, fmt.Errorf("%s: starts on %s, not after %s", path, part.Times[0], prev.Times[prev.NT()-1])
			}
		}
		parts = append(parts, part)
		total += part.NT()
	}

	if len(parts) == 1 {
		return parts[0], nil
	}
	first := parts[0]
	out := &grid.Cube[float32]{
		Calendar: first.Calendar,
		Times:    make([]calendar.Date, 0, total),
		Y:        first.Y,
		X:        first.X,
		Data:     make([]float32, 0, total*first.Cells()),
	}
	for _, p := range parts {
		out.Times = append(out.Times, p.Times...)
		out.Data = append(out.Data, p.Data...)
	}
	return out, nil
}

func expand(patterns []string) ([]string, error) {
	var paths []string
	seen := map[string]bool{}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad input pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files match %s", strings.Join(patterns, ", "))
	}
	sort.Strings(paths)
	return paths, nil
}

func readFile(ctx context.Context, path, variable string, coords Coords) (*grid.Cube[float32], error) {
	nc, err := open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer nc.Close()

	cal, times, err := readTime(nc, coords.Time)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	y, err := readAxis(nc, coords.Y)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	x, err := readAxis(nc, coords.X)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	vg, err := nc.GetVarGetter(variable)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %s: %w", path, variable, err)
	}
	dims := vg.Dimensions()
	want := []string{coords.Time, coords.Y, coords.X}
	if !slices.Equal(dims, want) {
		return nil, fmt.Errorf("%s: variable %s has dimensions %v, want %v", path, variable, dims, want)
	}

	pack := packingOf(vg.Attributes())
	out := grid.NewCube[float32](cal, times, y, x)
	cells := out.Cells()
	nt := int64(len(times))
	for begin := int64(0); begin < nt; begin += chunkSteps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(begin+chunkSteps, nt)
		raw, err := vg.GetSlice(begin, end)
		if err != nil {
			return nil, fmt.Errorf("%s: read %s[%d:%d]: %w", path, variable, begin, end, err)
		}
		dst := out.Data[int(begin)*cells : int(end)*cells]
		n, err := flattenInto(dst, raw, pack)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, variable, err)
		}
		if n != len(dst) {
			return nil, fmt.Errorf("%s: %s: %w: read %d values, want %d", path, variable, grid.ErrShape, n, len(dst))
		}
	}
	return out, nil
}

// ReadPlane reads a two-dimensional variable such as a mask. A leading
// dimension of length one (a raster band) is dropped.
func ReadPlane(ctx context.Context, path, variable string, coords Coords) (*grid.Plane[float32], error) {
	nc, err := open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer nc.Close()

	y, err := readAxis(nc, coords.Y)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	x, err := readAxis(nc, coords.X)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	vg, err := nc.GetVarGetter(variable)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %s: %w", path, variable, err)
	}
	dims := vg.Dimensions()
	switch {
	case slices.Equal(dims, []string{coords.Y, coords.X}):
	case len(dims) == 3 && slices.Equal(dims[1:], []string{coords.Y, coords.X}) && vg.Len() == 1:
	default:
		return nil, fmt.Errorf("%s: variable %s has dimensions %v, want [%s %s]", path, variable, dims, coords.Y, coords.X)
	}

	raw, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", path, variable, err)
	}
	out := grid.NewPlane[float32](y, x)
	n, err := flattenInto(out.Data, raw, packingOf(vg.Attributes()))
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", path, variable, err)
	}
	if n != len(out.Data) {
		return nil, fmt.Errorf("%s: %s: %w: read %d values, want %d", path, variable, grid.ErrShape, n, len(out.Data))
	}
	return out, nil
}

func readAxis(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("coordinate %s: %w", name, err)
	}
	raw, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("coordinate %s: %w", name, err)
	}
	vals, err := floats64(raw)
	if err != nil {
		return nil, fmt.Errorf("coordinate %s: %w", name, err)
	}
	return vals, nil
}

func readTime(nc api.Group, name string) (calendar.Calendar, []calendar.Date, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return 0, nil, fmt.Errorf("time coordinate %s: %w", name, err)
	}
	attrs := vg.Attributes()
	units, _ := stringAttr(attrs, "units")
	u, err := calendar.ParseUnits(units)
	if err != nil {
		return 0, nil, fmt.Errorf("time coordinate %s: %w", name, err)
	}
	calName, _ := stringAttr(attrs, "calendar")
	cal, err := calendar.Parse(calName)
	if err != nil {
		return 0, nil, fmt.Errorf("time coordinate %s: %w", name, err)
	}

	raw, err := vg.Values()
	if err != nil {
		return 0, nil, fmt.Errorf("time coordinate %s: %w", name, err)
	}
	offsets, err := floats64(raw)
	if err != nil {
		return 0, nil, fmt.Errorf("time coordinate %s: %w", name, err)
	}
	return cal, cal.Dates(u, offsets), nil
}

// packing describes CF packing and missing-value attributes.
type packing struct {
	scale  float64
	offset float64
	fills  []float64
}

func packingOf(attrs api.AttributeMap) packing {
	p := packing{scale: 1}
	if v, ok := numberAttr(attrs, "scale_factor"); ok {
		p.scale = v
	}
	if v, ok := numberAttr(attrs, "add_offset"); ok {
		p.offset = v
	}
	for _, key := range []string{"_FillValue", "missing_value"} {
		if v, ok := numberAttr(attrs, key); ok {
			p.fills = append(p.fills, v)
		}
	}
	return p
}

func (p packing) apply(raw float64) float32 {
	for _, f := range p.fills {
		if raw == f || float32(raw) == float32(f) {
			return float32(math.NaN())
		}
	}
	return float32(raw*p.scale + p.offset)
}

// flattenInto walks a nested slice of numbers in row-major order, unpacks
// each value into dst and returns the number of values seen.
func flattenInto(dst []float32, raw any, p packing) (int, error) {
	n := 0
	var walk func(v reflect.Value) error
	walk = func(v reflect.Value) error {
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			f, ok := toFloat(v)
			if !ok {
				return fmt.Errorf("unsupported value type %s", v.Type())
			}
			if n < len(dst) {
				dst[n] = p.apply(f)
			}
			n++
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := walk(v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(reflect.ValueOf(raw)); err != nil {
		return n, err
	}
	return n, nil
}

func floats64(raw any) ([]float64, error) {
	var out []float64
	var walk func(v reflect.Value) error
	walk = func(v reflect.Value) error {
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			f, ok := toFloat(v)
			if !ok {
				return fmt.Errorf("unsupported value type %s", v.Type())
			}
			out = append(out, f)
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := walk(v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(reflect.ValueOf(raw)); err != nil {
		return nil, err
	}
	return out, nil
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Interface:
		return toFloat(v.Elem())
	}
	return 0, false
}

func numberAttr(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	vals, err := floats64(raw)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func stringAttr(attrs api.AttributeMap, key string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}
