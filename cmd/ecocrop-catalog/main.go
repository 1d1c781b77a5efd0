package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/chrissnell/ecocrop/internal/catalog"
	"github.com/chrissnell/ecocrop/internal/log"
	"github.com/chrissnell/ecocrop/pkg/migrate"
)

func main() {
	dbPath := flag.String("db", "", "Path to the SQLite run catalog (required)")
	command := flag.String("command", "status", "Schema command: up, down, to, version, status")
	target := flag.Int("target", -1, "Target version for the down and to commands")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Usage = usage
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -db flag is required")
		usage()
		os.Exit(1)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}

	migrator := catalog.SQLiteMigrator(db, log.Named("migrate"))

	switch *command {
	case "up":
		err = migrator.MigrateUp()
	case "down", "to":
		if *target < 0 {
			fmt.Fprintf(os.Stderr, "Error: -target is required for the %s command\n", *command)
			os.Exit(1)
		}
		if *command == "down" {
			err = migrator.MigrateDown(*target)
		} else {
			err = migrator.MigrateTo(*target)
		}
	case "version":
		var v int
		if v, err = migrator.GetCurrentVersion(); err == nil {
			fmt.Printf("Current version: %d\n", v)
		}
	case "status":
		err = showStatus(migrator)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Catalog schema command %s failed: %v", *command, err)
	}
}

func showStatus(migrator *migrate.Migrator) error {
	current, err := migrator.GetCurrentVersion()
	if err != nil {
		return err
	}
	pending, err := migrator.GetPendingMigrations()
	if err != nil {
		return err
	}

	fmt.Printf("Current version: %d\n", current)
	fmt.Printf("Pending migrations: %d\n", len(pending))
	for _, m := range pending {
		fmt.Printf("  %d: %s\n", m.Version, m.Name)
	}
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "Manage the schema of an ecocrop SQLite run catalog")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  ecocrop-catalog -db catalog.db [-command up|down|to|version|status] [-target N]")
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}
