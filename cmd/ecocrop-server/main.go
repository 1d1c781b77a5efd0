package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/ecocrop/internal/app"
	"github.com/chrissnell/ecocrop/internal/constants"
	"github.com/chrissnell/ecocrop/internal/log"
	"github.com/chrissnell/ecocrop/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "ecocrop.yaml", "Path to the YAML configuration naming the run catalog and listen address")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ecocrop-server %s\n", constants.Version)
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

	application := app.New(provider, log.GetSugaredLogger())
	if err := application.Serve(context.Background()); err != nil {
		log.Errorf("Server error: %v", err)
		os.Exit(1)
	}
}
