// Package main is the deckstats command: it migrates the fact store,
// refreshes and invalidates aggregate tables, prints statistics and serves
// the read API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ramonehamilton/deckstats/internal/config"
	"github.com/ramonehamilton/deckstats/internal/version"
)

var configPath = flag.String("config", "", "Config file path (default: ~/.deckstats/config.toml)")

type command struct {
	name    string
	summary string
	run     func(cfg *config.Config, args []string)
}

var commands = []command{
	{"migrate", "Apply or inspect fact store migrations (up, down, steps N, status)", runMigrate},
	{"refresh", "Rebuild one aggregate family, or all of them", runRefresh},
	{"invalidate", "Mark an aggregate family (or all) stale", runInvalidate},
	{"families", "Show whether each aggregate family is fresh", runFamilies},
	{"cards", "Print card stats", runCards},
	{"key-cards", "Print the key card of every archetype", runKeyCards},
	{"playability", "Print card playability for a season or archetype", runPlayability},
	{"chart", "Render archetype playability as an HTML chart", runChart},
	{"import-cards", "Fetch missing card metadata from Scryfall", runImportCards},
	{"watch", "Apply invalidation signals from the signal directory", runWatch},
	{"serve", "Serve the read API", runServe},
	{"version", "Print version information", runVersion},
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}

	name := flag.Arg(0)
	for _, c := range commands {
		if c.name != name {
			continue
		}
		cfg := loadConfig()
		c.run(cfg, flag.Args()[1:])
		return
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
	printUsage()
	os.Exit(1)
}

func loadConfig() *config.Config {
	path := *configPath
	if path == "" {
		path = os.Getenv("DECKSTATS_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func printUsage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "deckstats %s\n\n", version.Version)
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  deckstats [-config path] <command> [flags] [args]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-14s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Global flags:")
	flag.PrintDefaults()
}

func runVersion(_ *config.Config, _ []string) {
	info := version.Get()
	fmt.Printf("deckstats %s (%s", info.Version, info.GoVersion)
	if info.Revision != "" {
		fmt.Printf(", %s", info.Revision)
	}
	fmt.Println(")")
}
