package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ramonehamilton/deckstats/internal/api"
	"github.com/ramonehamilton/deckstats/internal/config"
	"github.com/ramonehamilton/deckstats/internal/people"
)

func runServe(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", cfg.API.Port, "API server port")
	warm := fs.Bool("warm", cfg.Refresh.Warm, "Rebuild every aggregate family before serving")
	watch := fs.Bool("watch", true, "Apply invalidation signals from the signal directory")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}

	a := mustApp(cfg)
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *warm {
		a.logger.Info("Warming aggregate tables")
		if _, err := a.loader.RefreshAll(ctx); err != nil {
			// Readers rebuild stale families on demand, so serving can continue.
			a.logger.Error("Warm refresh failed", "error", err)
		}
	}

	importer, err := a.newImporter()
	if err != nil {
		log.Fatalf("Failed to create importer: %v", err)
	}

	timeout, err := cfg.GetRequestTimeout()
	if err != nil {
		log.Fatalf("Invalid request timeout: %v", err)
	}
	server, err := api.NewServer(&api.Config{
		Host:           cfg.API.Host,
		Port:           *port,
		RequestTimeout: timeout,
		AllowedOrigins: cfg.API.AllowedOrigins,
		Logger:         a.logger,
	}, &api.Services{
		Stats:    a.stats,
		Loader:   a.loader,
		People:   people.NewAliasService(a.store.People(), a.logger),
		Importer: importer,
	})
	if err != nil {
		log.Fatalf("Failed to create API server: %v", err)
	}

	var wg sync.WaitGroup
	if *watch {
		watcher, err := newWatcher(a)
		if err != nil {
			log.Fatalf("Failed to create watcher: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil {
				a.logger.Error("Invalidation watcher stopped", "error", err)
			}
		}()
	}

	if err := server.ListenAndServe(ctx); err != nil {
		a.logger.Error("API server failed", "error", err)
	}
	stop()
	wg.Wait()
	a.logger.Info("Shutdown complete")
}
