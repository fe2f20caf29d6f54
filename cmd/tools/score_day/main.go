package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"gkgtrends/internal/cache"
	"gkgtrends/internal/config"
	"gkgtrends/internal/gdelt"
	"gkgtrends/internal/ingester"
	"gkgtrends/internal/models"
	"gkgtrends/internal/repository"
	"gkgtrends/internal/scorer"
)

// Scores one day's trends on the spot and prints the ranked keywords
// as JSON. Missing baseline days are fetched inline, so wide windows
// against a cold database can take a while.
func main() {
	var (
		dateStr  string
		category string
		window   int
		topN     int
	)

	flag.StringVar(&dateStr, "date", models.DateOf(time.Now()), "day to score, YYYY-MM-DD")
	flag.StringVar(&category, "category", "themes", "themes, persons or orgs")
	flag.IntVar(&window, "window", 7, "baseline window in days")
	flag.IntVar(&topN, "top", 0, "result size (defaults to TOP_N)")
	flag.Parse()

	if _, err := models.ParseDate(dateStr); err != nil {
		log.Fatalf("invalid -date: %v", err)
	}
	cat := models.Category(category)
	if !models.ValidCategory(cat) || cat == models.CategoryDocuments {
		log.Fatalf("invalid -category %q, want themes, persons or orgs", category)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if topN <= 0 {
		topN = cfg.TopN
	}

	repo, err := repository.NewRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect repository: %v", err)
	}
	defer repo.Close()

	columns := gdelt.ColumnConfig{
		Themes:             cfg.ThemesIndex,
		Persons:            cfg.PersonsIndex,
		Orgs:               cfg.OrgsIndex,
		DocumentIdentifier: cfg.DocumentIdentifierIndex,
		Locations:          cfg.LocationsIndex,
		Tone:               cfg.ToneIndex,
		DateAdded:          cfg.DateAddedIndex,
	}
	client := gdelt.NewClient(cfg.GDELTBaseURL, cfg.GDELTDailyBaseURL, columns)
	agg := ingester.NewAggregator(repo, cache.NewMemory(), nil, cfg.TopN, cfg.RealtimeInterval())
	pipeline := ingester.NewPipeline(client, agg)
	sc := scorer.New(repo, pipeline, nil, topN)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := time.Now()
	keywords, err := sc.ScoreTrends(ctx, scorer.Request{
		Date:       dateStr,
		Category:   cat,
		WindowDays: window,
		TopN:       topN,
	})
	if err != nil {
		log.Fatalf("scoring failed: %v", err)
	}
	log.Printf("[score_day] %s %s window=%dd: %d keywords in %s",
		dateStr, cat, window, len(keywords), time.Since(started).Truncate(time.Millisecond))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(keywords); err != nil {
		log.Fatalf("encode output: %v", err)
	}
}
