package config

import (
	"fmt"
	"path/filepath"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// LoadConfig returns the configuration with defaults applied. It does
	// not validate it.
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData describes one suitability run and the catalog server.
type ConfigData struct {
	Crop            CropData       `json:"crop"`
	Method          string         `json:"method"`
	YearAggregation string         `json:"year_aggregation"`
	PrecipShape     int            `json:"precip_score_shape"`
	Inputs          InputsData     `json:"inputs"`
	Masks           MasksData      `json:"masks,omitempty"`
	Output          OutputData     `json:"output"`
	Checkpoint      CheckpointData `json:"checkpoint,omitempty"`
	Metrics         MetricsData    `json:"metrics,omitempty"`
	Catalog         CatalogData    `json:"catalog,omitempty"`
	Server          ServerData     `json:"server,omitempty"`
}

// CropData selects one record of an EcoCrop table, by name or by row.
type CropData struct {
	Table string `json:"table"`
	Name  string `json:"name,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// InputsData locates the four daily climate drivers.
type InputsData struct {
	Tas    VariableData `json:"tas"`
	Tasmin VariableData `json:"tasmin"`
	Tasmax VariableData `json:"tasmax"`
	Pr     VariableData `json:"pr"`
	Coords CoordsData   `json:"coords"`
}

// VariableData is a set of NetCDF files (glob patterns, concatenated along
// time) and the variable to read from them.
type VariableData struct {
	Paths    []string `json:"paths"`
	Variable string   `json:"variable"`
}

type CoordsData struct {
	Time string `json:"time"`
	Y    string `json:"y"`
	X    string `json:"x"`
}

type MasksData struct {
	LandCover    *LandCoverData `json:"land_cover,omitempty"`
	SoilDir      string         `json:"soil_dir,omitempty"`
	SoilVariable string         `json:"soil_variable,omitempty"`
}

type LandCoverData struct {
	Path     string `json:"path"`
	Variable string `json:"variable"`
}

type OutputData struct {
	Dir   string `json:"dir"`
	Daily bool   `json:"daily,omitempty"`
}

type CheckpointData struct {
	Dir string `json:"dir,omitempty"`
}

type MetricsData struct {
	Textfile string `json:"textfile,omitempty"`
}

// CatalogData selects the run catalog backend. Leave both empty to run
// without a catalog.
type CatalogData struct {
	SQLite   string `json:"sqlite,omitempty"`
	Postgres string `json:"postgres,omitempty"`
}

type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
}

// Defaults
const (
	DefaultMethod          = "annual"
	DefaultYearAggregation = "percentile"
	DefaultPrecipShape     = 2
	DefaultServerPort      = 8080
)

// ValidationError reports a configuration value that cannot be used.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// ApplyDefaults fills every optional setting that was left empty.
func (c *ConfigData) ApplyDefaults() {
	if c.Method == "" {
		c.Method = DefaultMethod
	}
	if c.YearAggregation == "" {
		c.YearAggregation = DefaultYearAggregation
	}
	if c.PrecipShape == 0 {
		c.PrecipShape = DefaultPrecipShape
	}

	vars := []struct {
		v    *VariableData
		name string
	}{
		{&c.Inputs.Tas, "tas"},
		{&c.Inputs.Tasmin, "tasmin"},
		{&c.Inputs.Tasmax, "tasmax"},
		{&c.Inputs.Pr, "pr"},
	}
	for _, iv := range vars {
		if iv.v.Variable == "" {
			iv.v.Variable = iv.name
		}
	}

	if c.Inputs.Coords.Time == "" {
		c.Inputs.Coords.Time = "time"
	}
	if c.Inputs.Coords.Y == "" {
		c.Inputs.Coords.Y = "y"
	}
	if c.Inputs.Coords.X == "" {
		c.Inputs.Coords.X = "x"
	}

	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}

// Validate checks the settings needed for a batch run. Enum values are
// checked for spelling here and parsed into their types by the run.
func (c *ConfigData) Validate() error {
	if c.Crop.Table == "" {
		return &ValidationError{Field: "crop.table", Reason: "required"}
	}
	if c.Crop.Name == "" && c.Crop.Index == nil {
		return &ValidationError{Field: "crop", Reason: "one of name or index is required"}
	}
	if c.Crop.Index != nil && *c.Crop.Index < 0 {
		return &ValidationError{Field: "crop.index", Reason: fmt.Sprintf("must not be negative, got %d", *c.Crop.Index)}
	}

	if err := oneOf("method", c.Method, "annual", "perennial"); err != nil {
		return err
	}
	if err := oneOf("year_aggregation", c.YearAggregation, "max", "mean", "median", "percentile", "min"); err != nil {
		return err
	}
	if c.PrecipShape < 1 || c.PrecipShape > 3 {
		return &ValidationError{Field: "precip_score_shape", Reason: fmt.Sprintf("must be 1, 2 or 3, got %d", c.PrecipShape)}
	}

	inputs := []struct {
		field string
		v     VariableData
	}{
		{"inputs.tas", c.Inputs.Tas},
		{"inputs.tasmin", c.Inputs.Tasmin},
		{"inputs.tasmax", c.Inputs.Tasmax},
		{"inputs.pr", c.Inputs.Pr},
	}
	for _, in := range inputs {
		if len(in.v.Paths) == 0 {
			return &ValidationError{Field: in.field + ".paths", Reason: "at least one path is required"}
		}
		for _, p := range in.v.Paths {
			if _, err := filepath.Match(p, ""); err != nil {
				return &ValidationError{Field: in.field + ".paths", Reason: fmt.Sprintf("bad pattern %q: %v", p, err)}
			}
		}
	}

	if lc := c.Masks.LandCover; lc != nil {
		if lc.Path == "" {
			return &ValidationError{Field: "masks.land_cover.path", Reason: "required when land_cover is set"}
		}
		if lc.Variable == "" {
			return &ValidationError{Field: "masks.land_cover.variable", Reason: "required when land_cover is set"}
		}
	}

	if c.Output.Dir == "" {
		return &ValidationError{Field: "output.dir", Reason: "required"}
	}
	if c.Catalog.SQLite != "" && c.Catalog.Postgres != "" {
		return &ValidationError{Field: "catalog", Reason: "set only one of sqlite or postgres"}
	}
	return nil
}

// ValidateServer checks the settings needed by the catalog server.
func (c *ConfigData) ValidateServer() error {
	if c.Catalog.SQLite == "" && c.Catalog.Postgres == "" {
		return &ValidationError{Field: "catalog", Reason: "a catalog backend is required to serve runs"}
	}
	if c.Catalog.SQLite != "" && c.Catalog.Postgres != "" {
		return &ValidationError{Field: "catalog", Reason: "set only one of sqlite or postgres"}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Reason: fmt.Sprintf("out of range: %d", c.Server.Port)}
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{Field: field, Reason: fmt.Sprintf("unknown value %q, want one of %v", value, allowed)}
}
