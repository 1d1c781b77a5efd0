package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig reads the YAML file once and caches the result.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := parseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

func parseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig ConfigYAML
	if err := yaml.UnmarshalStrict(data, &yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Crop: CropData{
			Table: yamlConfig.Crop.Table,
			Name:  yamlConfig.Crop.Name,
			Index: yamlConfig.Crop.Index,
		},
		Method:          yamlConfig.Method,
		YearAggregation: yamlConfig.YearAggregation,
		PrecipShape:     yamlConfig.PrecipShape,
		Inputs: InputsData{
			Tas:    yamlConfig.Inputs.Tas.data(),
			Tasmin: yamlConfig.Inputs.Tasmin.data(),
			Tasmax: yamlConfig.Inputs.Tasmax.data(),
			Pr:     yamlConfig.Inputs.Pr.data(),
			Coords: CoordsData{
				Time: yamlConfig.Inputs.Coords.Time,
				Y:    yamlConfig.Inputs.Coords.Y,
				X:    yamlConfig.Inputs.Coords.X,
			},
		},
		Masks: MasksData{
			SoilDir:      yamlConfig.Masks.SoilDir,
			SoilVariable: yamlConfig.Masks.SoilVariable,
		},
		Output: OutputData{
			Dir:   yamlConfig.Output.Dir,
			Daily: yamlConfig.Output.Daily,
		},
		Checkpoint: CheckpointData{Dir: yamlConfig.Checkpoint.Dir},
		Metrics:    MetricsData{Textfile: yamlConfig.Metrics.Textfile},
		Catalog: CatalogData{
			SQLite:   yamlConfig.Catalog.SQLite,
			Postgres: yamlConfig.Catalog.Postgres,
		},
		Server: ServerData{
			ListenAddr: yamlConfig.Server.ListenAddr,
			Port:       yamlConfig.Server.Port,
		},
	}
	if lc := yamlConfig.Masks.LandCover; lc != nil {
		config.Masks.LandCover = &LandCoverData{Path: lc.Path, Variable: lc.Variable}
	}

	config.ApplyDefaults()
	return config, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with the file's key names
type ConfigYAML struct {
	Crop            CropYAML       `yaml:"crop"`
	Method          string         `yaml:"method,omitempty"`
	YearAggregation string         `yaml:"year_aggregation,omitempty"`
	PrecipShape     int            `yaml:"precip_score_shape,omitempty"`
	Inputs          InputsYAML     `yaml:"inputs"`
	Masks           MasksYAML      `yaml:"masks,omitempty"`
	Output          OutputYAML     `yaml:"output"`
	Checkpoint      CheckpointYAML `yaml:"checkpoint,omitempty"`
	Metrics         MetricsYAML    `yaml:"metrics,omitempty"`
	Catalog         CatalogYAML    `yaml:"catalog,omitempty"`
	Server          ServerYAML     `yaml:"server,omitempty"`
}

type CropYAML struct {
	Table string `yaml:"table"`
	Name  string `yaml:"name,omitempty"`
	Index *int   `yaml:"index,omitempty"`
}

type InputsYAML struct {
	Tas    VariableYAML `yaml:"tas"`
	Tasmin VariableYAML `yaml:"tasmin"`
	Tasmax VariableYAML `yaml:"tasmax"`
	Pr     VariableYAML `yaml:"pr"`
	Coords CoordsYAML   `yaml:"coords,omitempty"`
}

type VariableYAML struct {
	Paths    []string `yaml:"paths"`
	Variable string   `yaml:"variable,omitempty"`
}

func (v VariableYAML) data() VariableData {
	return VariableData{Paths: v.Paths, Variable: v.Variable}
}

type CoordsYAML struct {
	Time string `yaml:"time,omitempty"`
	Y    string `yaml:"y,omitempty"`
	X    string `yaml:"x,omitempty"`
}

type MasksYAML struct {
	LandCover    *LandCoverYAML `yaml:"land_cover,omitempty"`
	SoilDir      string         `yaml:"soil_dir,omitempty"`
	SoilVariable string         `yaml:"soil_variable,omitempty"`
}

type LandCoverYAML struct {
	Path     string `yaml:"path"`
	Variable string `yaml:"variable"`
}

type OutputYAML struct {
	Dir   string `yaml:"dir"`
	Daily bool   `yaml:"daily,omitempty"`
}

type CheckpointYAML struct {
	Dir string `yaml:"dir,omitempty"`
}

type MetricsYAML struct {
	Textfile string `yaml:"textfile,omitempty"`
}

type CatalogYAML struct {
	SQLite   string `yaml:"sqlite,omitempty"`
	Postgres string `yaml:"postgres,omitempty"`
}

type ServerYAML struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
}
