package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/ecocrop/internal/app"
	"github.com/chrissnell/ecocrop/internal/constants"
	"github.com/chrissnell/ecocrop/internal/crop"
	"github.com/chrissnell/ecocrop/internal/log"
	"github.com/chrissnell/ecocrop/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "ecocrop.yaml", "Path to the YAML run configuration")
	cropName := flag.String("crop", "", "Score this crop instead of the one named in the configuration")
	listCrops := flag.Bool("list-crops", false, "List the crops in the configured crop table and exit")
	check := flag.Bool("check", false, "Validate the configuration and crop parameters and exit")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ecocrop %s\n", constants.Version)
		os.Exit(0)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	filename, _ := filepath.Abs(*cfgFile)
	provider := config.NewYAMLProvider(filename)
	defer provider.Close()

	if *listCrops {
		if err := printCrops(provider); err != nil {
			log.Errorf("Failed to list crops: %v", err)
			os.Exit(1)
		}
		return
	}

	var override func(*config.ConfigData)
	if *cropName != "" {
		override = func(cfg *config.ConfigData) {
			cfg.Crop.Name = *cropName
			cfg.Crop.Index = nil
		}
	}

	if *check {
		if err := checkConfig(provider, override); err != nil {
			log.Errorf("Configuration check failed: %v", err)
			os.Exit(1)
		}
		return
	}

	application := app.New(provider, log.GetSugaredLogger())
	report, err := application.Run(context.Background(), override)
	if err != nil {
		log.Errorf("Run failed: %v", err)
		os.Exit(1)
	}
	for _, d := range report.Decades {
		log.Infow("decade summary", "crop", report.Crop, "decade", d.Decade,
			"mean_score", d.MeanScore, "suitable_cells", d.SuitableCells, "valid_cells", d.ValidCells)
	}
}

func printCrops(provider config.ConfigProvider) error {
	cfg, err := provider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	if cfg.Crop.Table == "" {
		return fmt.Errorf("crop.table is not set")
	}
	table, err := crop.LoadTable(cfg.Crop.Table)
	if err != nil {
		return err
	}
	for i, r := range table.Records {
		fmt.Printf("%5d  %-40s %s\n", i, crop.SanitizeName(r.CommonName), r.ScientificName)
	}
	return nil
}

func checkConfig(provider config.ConfigProvider, override func(*config.ConfigData)) error {
	cfg, err := provider.LoadConfig()
	if err != nil {
		return err
	}
	if override != nil {
		override(cfg)
	}
	settings, err := app.ParseSettings(cfg)
	if err != nil {
		return err
	}
	p, err := app.LoadCrop(cfg.Crop, settings.PrecipShape)
	if err != nil {
		return err
	}

	fmt.Printf("crop:             %s\n", p.Name)
	fmt.Printf("method:           %s\n", settings.Method)
	fmt.Printf("year aggregation: %s\n", settings.YearMethod)
	fmt.Printf("precip shape:     %d\n", settings.PrecipShape)
	fmt.Printf("season length:    %d-%d days\n", p.GMin, p.GMax)
	fmt.Printf("temperature (K):  %.2f / %.2f / %.2f / %.2f, kill %.2f\n", p.TempMin, p.TopMin, p.TopMax, p.TempMax, p.KillTemp)
	fmt.Printf("rain (kg/m2/s):   %g / %g / %g / %g\n", p.PrecipMin, p.PrecipOptMin, p.PrecipOptMax, p.PrecipMax)
	fmt.Printf("soil groups:      %v\n", p.SoilGroups)
	return nil
}
