// Package app wires configuration, the run catalog and the suitability
// pipeline together for the ecocrop commands.
package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chrissnell/ecocrop/internal/api"
	"github.com/chrissnell/ecocrop/internal/catalog"
	"github.com/chrissnell/ecocrop/internal/log"
	"github.com/chrissnell/ecocrop/pkg/config"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run performs one batch run and returns when it completes, fails or is
// interrupted. An interrupted run keeps its checkpoint, if one is
// configured, so it can be resumed.
func (a *App) Run(ctx context.Context, override func(*config.ConfigData)) (*Report, error) {
	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if override != nil {
		override(cfg)
	}
	// fail on configuration problems before touching the catalog
	if _, err := ParseSettings(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := withSignals(ctx)
	defer cancel()

	cat, err := catalog.Open(catalog.Config{SQLitePath: cfg.Catalog.SQLite, PostgresDSN: cfg.Catalog.Postgres}, log.Named("catalog"))
	if err != nil {
		return nil, err
	}
	if cat != nil {
		defer cat.Close()
	}

	return NewRunner(cfg, cat, a.logger).Run(ctx)
}

// Serve runs the catalog server until ctx is cancelled or a signal arrives.
func (a *App) Serve(ctx context.Context) error {
	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	cat, err := catalog.Open(catalog.Config{SQLitePath: cfg.Catalog.SQLite, PostgresDSN: cfg.Catalog.Postgres}, log.Named("catalog"))
	if err != nil {
		return err
	}
	defer cat.Close()

	ctx, cancel := withSignals(ctx)
	defer cancel()

	var wg sync.WaitGroup
	addr := net.JoinHostPort(cfg.Server.ListenAddr, strconv.Itoa(cfg.Server.Port))
	api.NewServer(cat, addr, a.logger).Start(ctx, &wg)

	<-ctx.Done()

	log.Info("waiting for the server to stop...")
	wg.Wait()
	log.Info("shutdown complete")
	return nil
}

// withSignals cancels the returned context on SIGINT or SIGTERM.
func withSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigs:
			log.Info("shutdown signal received, stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}()
	return ctx, cancel
}
