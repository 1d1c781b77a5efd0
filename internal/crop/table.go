package crop

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/chrissnell/ecocrop/internal/constants"
)

// Record is one row of the EcoCrop trait table in its native units
// (°C, mm per season, days). Missing numeric cells are NaN.
type Record struct {
	Index          int
	CommonName     string
	ScientificName string
	TopMin         float64
	TopMax         float64
	TempMin        float64
	TempMax        float64
	KillTemp       float64
	RainMin        float64
	RainMax        float64
	RainOptMin     float64
	RainOptMax     float64
	GMin           float64
	GMax           float64
	Texture        string
}

// Table is the parsed EcoCrop database.
type Table struct {
	Records []Record
}

var tableColumns = []string{"COMNAME", "TOPMN", "TOPMX", "TMIN", "TMAX", "KTMPR", "RMIN", "RMAX", "ROPMN", "ROPMX", "GMIN", "GMAX", "TEXT"}

// LoadTable reads an EcoCrop CSV file.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open crop table: %w", err)
	}
	defer f.Close()
	return ReadTable(f)
}

// ReadTable parses EcoCrop CSV data. Columns are located by header name;
// extra columns are ignored.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read crop table header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range tableColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("crop table is missing column %s", name)
		}
	}

	t := &Table{}
	for row := 0; ; row++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read crop table row %d: %w", row, err)
		}

		text := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(fields) {
				return ""
			}
			return strings.TrimSpace(fields[i])
		}
		num := func(name string) float64 {
			s := text(name)
			if s == "" {
				return math.NaN()
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return math.NaN()
			}
			return v
		}

		t.Records = append(t.Records, Record{
			Index:          row,
			CommonName:     text("COMNAME"),
			ScientificName: text("ScientificName"),
			TopMin:         num("TOPMN"),
			TopMax:         num("TOPMX"),
			TempMin:        num("TMIN"),
			TempMax:        num("TMAX"),
			KillTemp:       num("KTMPR"),
			RainMin:        num("RMIN"),
			RainMax:        num("RMAX"),
			RainOptMin:     num("ROPMN"),
			RainOptMax:     num("ROPMX"),
			GMin:           num("GMIN"),
			GMax:           num("GMAX"),
			Texture:        text("TEXT"),
		})
	}
	return t, nil
}

// Find looks a crop up by sanitised common name (case-insensitive).
func (t *Table) Find(name string) (*Record, error) {
	want := strings.ToLower(SanitizeName(name))
	for i := range t.Records {
		if strings.ToLower(SanitizeName(t.Records[i].CommonName)) == want {
			return &t.Records[i], nil
		}
	}
	return nil, fmt.Errorf("crop %q not found in table", name)
}

// At returns the record at a zero-based row index.
func (t *Table) At(index int) (*Record, error) {
	if index < 0 || index >= len(t.Records) {
		return nil, fmt.Errorf("crop index %d out of range [0, %d)", index, len(t.Records))
	}
	return &t.Records[index], nil
}

// Params converts a record into SI units. Growing-season bounds that are
// missing are reported here because they cannot be represented as NaN.
func (r *Record) Params() (*Params, error) {
	if math.IsNaN(r.GMin) {
		return nil, &ConfigError{Field: "gmin", Reason: "missing value"}
	}
	if math.IsNaN(r.GMax) {
		return nil, &ConfigError{Field: "gmax", Reason: "missing value"}
	}

	p := &Params{
		Name:         SanitizeName(r.CommonName),
		TempMin:      r.TempMin + constants.CelsiusToKelvin,
		TopMin:       r.TopMin + constants.CelsiusToKelvin,
		TopMax:       r.TopMax + constants.CelsiusToKelvin,
		TempMax:      r.TempMax + constants.CelsiusToKelvin,
		KillTemp:     r.KillTemp + constants.CelsiusToKelvin,
		PrecipMin:    r.RainMin / constants.SecondsPerDay,
		PrecipMax:    r.RainMax / constants.SecondsPerDay,
		PrecipOptMin: r.RainOptMin / constants.SecondsPerDay,
		PrecipOptMax: r.RainOptMax / constants.SecondsPerDay,
		GMin:         int(r.GMin),
		GMax:         int(r.GMax),
		SoilGroups:   ParseSoilGroups(r.Texture),
	}
	p.ApplyDefaults()
	return p, nil
}
