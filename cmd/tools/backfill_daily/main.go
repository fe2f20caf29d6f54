package main

import (
	"context"
	"flag"
	"log"
	"time"

	"gkgtrends/internal/cache"
	"gkgtrends/internal/config"
	"gkgtrends/internal/gdelt"
	"gkgtrends/internal/ingester"
	"gkgtrends/internal/models"
	"gkgtrends/internal/repository"
)

// Re-ingests daily GKG rollups for a date range, oldest first. Days
// already present are skipped unless -force is set.
func main() {
	var (
		fromStr string
		toStr   string
		force   bool
	)

	flag.StringVar(&fromStr, "from", "", "first date to ingest, YYYY-MM-DD (required)")
	flag.StringVar(&toStr, "to", "", "last date to ingest, YYYY-MM-DD (defaults to -from)")
	flag.BoolVar(&force, "force", false, "re-ingest days that already have a daily trend")
	flag.Parse()

	if fromStr == "" {
		log.Fatal("-from is required")
	}
	if toStr == "" {
		toStr = fromStr
	}

	from, err := models.ParseDate(fromStr)
	if err != nil {
		log.Fatalf("invalid -from: %v", err)
	}
	to, err := models.ParseDate(toStr)
	if err != nil {
		log.Fatalf("invalid -to: %v", err)
	}
	if to.Before(from) {
		log.Fatalf("invalid range: -from %s is after -to %s", fromStr, toStr)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	repo, err := repository.NewRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect repository: %v", err)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	present := map[string]bool{}
	if !force {
		var dates []string
		for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
			dates = append(dates, models.DateOf(day))
		}
		present, err = repo.GetDailyDatesPresent(ctx, models.CategoryThemes, dates)
		if err != nil {
			log.Fatalf("failed to list present days: %v", err)
		}
	}

	started := time.Now()
	var done, skipped, failed int

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		date := models.DateOf(day)
		if present[date] {
			skipped++
			continue
		}
		if err := pipeline.FetchDailyFor(ctx, day); err != nil {
			failed++
			log.Printf("[backfill_daily] %s failed: %v", date, err)
			continue
		}
		done++
		log.Printf("[backfill_daily] %s done", date)
	}

	log.Printf("[backfill_daily] finished: %d ingested, %d skipped, %d failed in %s",
		done, skipped, failed, time.Since(started).Truncate(time.Second))
}
