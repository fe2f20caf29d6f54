package main

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gkgtrends/internal/api"
	"gkgtrends/internal/cache"
	"gkgtrends/internal/config"
	"gkgtrends/internal/eventbus"
	"gkgtrends/internal/gdelt"
	"gkgtrends/internal/ingester"
	"gkgtrends/internal/repository"
	"gkgtrends/internal/scorer"
)

// BuildCommit is set at build time via -ldflags.
var BuildCommit = "dev"

func main() {
	// 1. Environment and config
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, relying on process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	log.Println("Initializing GKG Trends Backend...")
	log.Printf("DB: %s", redactedDSN(cfg.DatabaseURL))
	log.Printf("GDELT feed: %s (daily: %s)", cfg.GDELTBaseURL, cfg.GDELTDailyBaseURL)
	log.Printf("API Port: %s", cfg.Port)

	// 2. Postgres
	repo, err := repository.NewRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Postgres pool: %v", err)
	}
	defer repo.Close()

	// 2a. Schema migration (SKIP_MIGRATION=true for read-only deployments)
	if cfg.SkipMigration {
		log.Println("Schema migration skipped (SKIP_MIGRATION=true)")
	} else {
		log.Println("Applying schema migration...")
		if err := repo.Migrate(cfg.SchemaPath); err != nil {
			log.Fatalf("Schema migration: %v", err)
		}
		log.Println("Schema migration complete.")
	}

	// 2b. Cache. Redis when REDIS_HOST is set, in-process TTL map otherwise.
	var kv cache.Cache
	if cfg.RedisHost != "" {
		kv, err = cache.NewRedis(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("Redis at %s:%s: %v", cfg.RedisHost, cfg.RedisPort, err)
		}
		log.Printf("Cache: redis at %s:%s", cfg.RedisHost, cfg.RedisPort)
	} else {
		kv = cache.NewMemory()
		log.Println("Cache: in-memory (REDIS_HOST not set)")
	}

	bus := eventbus.New()
	defer bus.Close()

	// 3. Ingestion and scoring services
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
	agg := ingester.NewAggregator(repo, kv, bus, cfg.TopN, cfg.RealtimeInterval())
	pipeline := ingester.NewPipeline(client, agg)
	backfill := ingester.NewBackfillPool(pipeline, cfg.BackfillWorkers, cfg.BackfillQueue)
	sc := scorer.New(repo, pipeline, backfill, cfg.TopN)

	api.BuildCommit = BuildCommit
	apiServer := api.NewServer(repo, sc, pipeline, kv, cfg.Port,
		api.WithEventBus(bus),
		api.WithBackfillPool(backfill),
		api.WithTopN(cfg.TopN),
		api.WithRealtimeTTL(cfg.RealtimeInterval()),
	)

	// 4. Run until signalled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backfill.Start(ctx)

	go func() {
		log.Printf("API server listening on :%s", cfg.Port)
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	var wg sync.WaitGroup

	if cfg.EnableRealtimeWorker {
		worker := ingester.NewRealtimeWorker(pipeline, cfg.RealtimeInterval())
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Start(ctx)
		}()
	} else {
		log.Println("Realtime worker is DISABLED (ENABLE_REALTIME_WORKER=false)")
	}

	if cfg.EnableDailyWorker {
		worker := ingester.NewDailyWorker(client, agg, cfg.DailyHourUTC)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Start(ctx)
		}()
	} else {
		log.Println("Daily worker is DISABLED (ENABLE_DAILY_WORKER=false)")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// With both workers disabled this still blocks and serves the API.
	<-sigChan
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("API shutdown: %v", err)
	}
	cancel()
	wg.Wait()
}

// redactedDSN strips credentials from a connection string for logging.
func redactedDSN(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		if u.User != nil {
			u.User = url.UserPassword(u.User.Username(), "****")
		}
		// Query params carry sslrootcert paths and passwords alike.
		u.RawQuery = ""
		return u.String()
	}

	// Key/value DSNs and URLs url.Parse refuses.
	masked := regexp.MustCompile(`(?i)(://[^:/?#]+):[^@]+@`).ReplaceAllString(raw, `$1:****@`)
	return regexp.MustCompile(`(?i)(password=)\S+`).ReplaceAllString(masked, `$1****`)
}
