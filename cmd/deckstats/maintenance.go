package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ramonehamilton/deckstats/internal/aggregate"
	"github.com/ramonehamilton/deckstats/internal/config"
	"github.com/ramonehamilton/deckstats/internal/invalidate"
	"github.com/ramonehamilton/deckstats/internal/storage"
)

func runMigrate(cfg *config.Config, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: deckstats migrate <up|down|steps N|status>")
		os.Exit(1)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Invalid log config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatalf("Error creating database directory: %v", err)
	}
	mgr, err := storage.NewMigrationManager(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Error creating migration manager: %v", err)
	}
	mgr.SetLogger(logger)
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Printf("Error closing migration manager: %v", err)
		}
	}()

	switch args[0] {
	case "up":
		fmt.Println("Applying all pending migrations...")
		err = mgr.Up()
	case "down":
		fmt.Println("Rolling back all migrations...")
		err = mgr.Down()
	case "steps":
		if len(args) != 2 {
			log.Fatalf("Usage: deckstats migrate steps N")
		}
		n, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			log.Fatalf("Invalid step count: %s", args[1])
		}
		fmt.Printf("Migrating %+d steps...\n", n)
		err = mgr.Steps(n)
	case "status", "version":
	default:
		log.Fatalf("Unknown migrate command: %s", args[0])
	}
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	status, err := mgr.Status()
	if err != nil {
		log.Fatalf("Error getting version: %v", err)
	}
	fmt.Printf("Current schema: %s\n", status)
}

func runRefresh(cfg *config.Config, args []string) {
	a := mustApp(cfg)
	defer a.Close()
	ctx := context.Background()

	var (
		results []*aggregate.FamilyResult
		err     error
	)
	if len(args) > 0 {
		var res *aggregate.FamilyResult
		res, err = a.loader.Refresh(ctx, args[0])
		if res != nil {
			results = append(results, res)
		}
	} else {
		results, err = a.loader.RefreshAll(ctx)
	}

	for _, res := range results {
		fmt.Printf("%s (run %s) in %s\n", res.Family, res.RunID, res.Duration.Round(time.Millisecond))
		for _, t := range res.Tables {
			fmt.Printf("  %-32s %8d rows  %s\n", t.Table, t.Rows, t.Duration.Round(time.Millisecond))
		}
	}
	if err != nil {
		log.Fatalf("Refresh failed: %v", err)
	}
}

func runInvalidate(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("invalidate", flag.ExitOnError)
	viaSignal := fs.Bool("signal", false, "Write a signal file for a running watcher instead of dropping tables directly")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	if fs.NArg() != 1 {
		fmt.Println("Usage: deckstats invalidate [-signal] <family|all>")
		os.Exit(1)
	}
	family := fs.Arg(0)

	if *viaSignal {
		if err := invalidate.Signal(cfg.Refresh.WatchDir, family); err != nil {
			log.Fatalf("Failed to write signal: %v", err)
		}
		fmt.Printf("Signalled %s in %s\n", family, cfg.Refresh.WatchDir)
		return
	}

	a := mustApp(cfg)
	defer a.Close()
	ctx := context.Background()

	var err error
	if family == invalidate.All {
		err = a.loader.InvalidateAll(ctx)
	} else {
		err = a.loader.Invalidate(ctx, family)
	}
	if err != nil {
		log.Fatalf("Invalidate failed: %v", err)
	}
	fmt.Printf("Invalidated %s\n", family)
}

func runFamilies(cfg *config.Config, _ []string) {
	a := mustApp(cfg)
	defer a.Close()
	ctx := context.Background()

	engine := a.loader.Engine()
	for _, f := range engine.Registry().Families() {
		missing, err := engine.MissingTables(ctx, f.Name)
		if err != nil {
			log.Fatalf("Failed to check family %s: %v", f.Name, err)
		}
		if len(missing) == 0 {
			fmt.Printf("%-12s fresh (%d tables)\n", f.Name, len(f.Members))
			continue
		}
		fmt.Printf("%-12s stale, missing %s\n", f.Name, strings.Join(missing, ", "))
	}
}

func runWatch(cfg *config.Config, _ []string) {
	a := mustApp(cfg)
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := newWatcher(a)
	if err != nil {
		log.Fatalf("Failed to create watcher: %v", err)
	}
	if err := watcher.Run(ctx); err != nil {
		log.Fatalf("Watcher failed: %v", err)
	}
}

func newWatcher(a *app) (*invalidate.Watcher, error) {
	debounce, err := a.cfg.GetDebounce()
	if err != nil {
		return nil, fmt.Errorf("invalid debounce: %w", err)
	}
	poll, err := a.cfg.GetPollInterval()
	if err != nil {
		return nil, fmt.Errorf("invalid poll interval: %w", err)
	}
	return invalidate.NewWatcher(invalidate.WatcherConfig{
		Dir:          a.cfg.Refresh.WatchDir,
		Invalidator:  a.loader,
		Logger:       a.logger,
		Debounce:     debounce,
		UseFsnotify:  a.cfg.Refresh.UseFsnotify,
		PollInterval: poll,
	})
}

func runImportCards(cfg *config.Config, _ []string) {
	a := mustApp(cfg)
	defer a.Close()

	importer, err := a.newImporter()
	if err != nil {
		log.Fatalf("Failed to create importer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := importer.ImportMissing(ctx)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	fmt.Printf("Requested %d, imported %d\n", res.Requested, res.Imported)
	if len(res.NotFound) > 0 {
		fmt.Printf("Not found: %s\n", strings.Join(res.NotFound, ", "))
	}
}
