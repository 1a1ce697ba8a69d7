package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/ramonehamilton/deckstats/internal/aggregate/query"
	"github.com/ramonehamilton/deckstats/internal/api/handlers"
	"github.com/ramonehamilton/deckstats/internal/charts"
	"github.com/ramonehamilton/deckstats/internal/config"
	"github.com/ramonehamilton/deckstats/internal/export"
	"github.com/ramonehamilton/deckstats/internal/people"
	"github.com/ramonehamilton/deckstats/internal/stats"
)

// outputFlags are shared by the commands that print rows.
type outputFlags struct {
	format *string
	out    *string
}

func addOutputFlags(fs *flag.FlagSet) outputFlags {
	return outputFlags{
		format: fs.String("format", "table", "Output format: table, csv or json"),
		out:    fs.String("out", "", "Write csv or json output to this file instead of stdout"),
	}
}

// emit prints rows in the chosen format. table renders the human readable
// form onto a tabwriter.
func (o outputFlags) emit(rows any, table func(w io.Writer)) {
	if *o.format == "table" {
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		table(tw)
		if err := tw.Flush(); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		return
	}

	format, err := export.ParseFormat(*o.format)
	if err != nil {
		log.Fatalf("Invalid format: %v", err)
	}
	if *o.out != "" {
		err = export.ToFile(export.Options{Format: format, FilePath: *o.out, Overwrite: true}, rows)
	} else {
		err = export.Write(os.Stdout, format, rows)
	}
	if err != nil {
		log.Fatalf("Failed to export: %v", err)
	}
}

func runCards(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("cards", flag.ExitOnError)
	season := fs.Int64("season", 0, "Season ID (0 for all seasons)")
	archetype := fs.Int64("archetype", 0, "Archetype ID")
	person := fs.String("person", "", "Person ID or username")
	tournament := fs.Bool("tournament", false, "Only count tournament decks")
	limit := fs.Int("limit", 50, "Maximum number of cards (0 for all)")
	sortBy := fs.String("sort", "", "Sort terms, e.g. \"win_percent desc,name\"")
	output := addOutputFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}

	a := mustApp(cfg)
	defer a.Close()
	ctx := context.Background()

	opts := stats.CardOptions{
		SeasonID:       *season,
		ArchetypeID:    *archetype,
		TournamentOnly: *tournament,
		Limit:          *limit,
	}
	if *person != "" {
		id, err := a.resolvePerson(ctx, *person)
		if err != nil {
			log.Fatalf("Failed to resolve person: %v", err)
		}
		opts.PersonID = id
	}
	if *sortBy != "" {
		orders, err := query.ParseOrder(*sortBy)
		if err != nil {
			log.Fatalf("Invalid sort: %v", err)
		}
		opts.OrderBy = orders
	}

	cards, err := a.stats.LoadCards(ctx, opts)
	if err != nil {
		log.Fatalf("Failed to load cards: %v", err)
	}
	output.emit(cards, func(w io.Writer) {
		fmt.Fprintln(w, "CARD\tDECKS\tW-L-D\tWIN%\tPERFECT\tT1\tT8")
		for _, c := range cards {
			fmt.Fprintf(w, "%s\t%d\t%d-%d-%d\t%s\t%d\t%d\t%d\n",
				c.Name, c.NumDecks, c.Wins, c.Losses, c.Draws, c.WinPercent, c.PerfectRuns, c.TournamentWins, c.TournamentTop8s)
		}
	})
}

// resolvePerson accepts a numeric person ID or any known username.
func (a *app) resolvePerson(ctx context.Context, s string) (int64, error) {
	if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	aliases := people.NewAliasService(a.store.People(), a.logger)
	id, ok, err := aliases.Resolve(ctx, s)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("unknown person %q", s)
	}
	return id, nil
}

func runKeyCards(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("key-cards", flag.ExitOnError)
	season := fs.Int64("season", 0, "Season ID (0 for all seasons)")
	output := addOutputFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}

	a := mustApp(cfg)
	defer a.Close()

	keyCards, err := a.stats.KeyCards(context.Background(), *season)
	if err != nil {
		log.Fatalf("Failed to load key cards: %v", err)
	}
	output.emit(keyCards, func(w io.Writer) {
		fmt.Fprintln(w, "ARCHETYPE\tCARD\tPLAYABILITY")
		for _, k := range keyCards {
			fmt.Fprintf(w, "%d\t%s\t%.3f\n", k.ArchetypeID, k.Name, k.Playability)
		}
	})
}

func runPlayability(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("playability", flag.ExitOnError)
	season := fs.Int64("season", 0, "Season ID")
	archetype := fs.Int64("archetype", 0, "Archetype ID")
	limit := fs.Int("limit", stats.DefaultPlayabilityLimit, "Maximum number of cards")
	output := addOutputFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}

	a := mustApp(cfg)
	defer a.Close()
	ctx := context.Background()

	var (
		cards []*stats.CardPlayability
		err   error
	)
	switch {
	case *archetype != 0:
		cards, err = a.stats.ArchetypePlayability(ctx, *archetype, *season, *limit)
	case *season != 0:
		cards, err = a.stats.SeasonPlayability(ctx, *season, *limit)
	default:
		cards, err = allTimePlayability(ctx, a.stats, *limit)
	}
	if err != nil {
		log.Fatalf("Failed to load playability: %v", err)
	}
	output.emit(cards, func(w io.Writer) {
		fmt.Fprintln(w, "#\tCARD\tPLAYABILITY")
		for i, c := range cards {
			fmt.Fprintf(w, "%d\t%s\t%.3f\n", i+1, c.Name, c.Playability)
		}
	})
}

// allTimePlayability orders the all-time playability map like the per-season
// listing: highest first, then by name.
func allTimePlayability(ctx context.Context, s *stats.Service, limit int) ([]*stats.CardPlayability, error) {
	scores, err := s.Playability(ctx)
	if err != nil {
		return nil, err
	}
	cards := make([]*stats.CardPlayability, 0, len(scores))
	for name, p := range scores {
		cards = append(cards, &stats.CardPlayability{Name: name, Playability: p})
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Playability != cards[j].Playability {
			return cards[i].Playability > cards[j].Playability
		}
		return cards[i].Name < cards[j].Name
	})
	if limit > 0 && len(cards) > limit {
		cards = cards[:limit]
	}
	return cards, nil
}

func runChart(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("chart", flag.ExitOnError)
	season := fs.Int64("season", 0, "Season ID (0 for all seasons)")
	limit := fs.Int("limit", 20, "Cards per archetype")
	out := fs.String("out", "", "Output file (default: playability.html in the working directory)")
	open := fs.Bool("open", false, "Open the chart in a browser")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	if fs.NArg() == 0 {
		fmt.Println("Usage: deckstats chart [flags] <archetype-id> [archetype-id...]")
		os.Exit(1)
	}

	var ids []int64
	for _, arg := range fs.Args() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			log.Fatalf("Invalid archetype ID: %s", arg)
		}
		ids = append(ids, id)
	}

	a := mustApp(cfg)
	defer a.Close()
	ctx := context.Background()

	var series []charts.SeriesData
	for _, id := range ids {
		cards, err := a.stats.ArchetypePlayability(ctx, id, *season, *limit)
		if err != nil {
			log.Fatalf("Failed to load playability for archetype %d: %v", id, err)
		}
		if len(cards) == 0 {
			log.Fatalf("No playability data for archetype %d", id)
		}
		series = append(series, charts.SeriesData{
			Name:   fmt.Sprintf("Archetype %d", id),
			Points: handlers.PlayabilityPoints(cards),
		})
	}

	chartConfig := charts.DefaultChartConfig()
	chartConfig.Title = "Archetype key cards"
	chartConfig.YAxisLabel = "Playability"
	if *season != 0 {
		chartConfig.Subtitle = fmt.Sprintf("Season %d", *season)
	}

	path := *out
	if path == "" {
		path = "playability.html"
	}
	err := charts.WriteFile(path, func(w io.Writer) error {
		if len(series) == 1 {
			return charts.RenderBarChart(w, "Playability", series[0].Points, chartConfig)
		}
		return charts.RenderMultiBarChart(w, series, chartConfig)
	})
	if err != nil {
		log.Fatalf("Failed to write chart: %v", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	fmt.Printf("Chart written to %s\n", abs)
	if *open {
		if err := charts.OpenInBrowser(abs); err != nil {
			log.Printf("Failed to open browser: %v", err)
		}
	}
}
