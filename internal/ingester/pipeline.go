package ingester

import (
	"context"
	"fmt"
	"log"
	"time"

	"gkgtrends/internal/gdelt"
	"gkgtrends/internal/models"
)

// Pipeline fetches GDELT artifacts and hands them to the aggregator,
// walking down the fallback ladder when the primary artifact is
// missing.
type Pipeline struct {
	client *gdelt.Client
	agg    *Aggregator
}

func NewPipeline(client *gdelt.Client, agg *Aggregator) *Pipeline {
	return &Pipeline{client: client, agg: agg}
}

// FetchAndProcess runs one ingestion job. Realtime jobs try the
// 15-minute file, then today's daily rollup, then yesterday's; whatever
// artifact is found determines the type and date of the stored trends.
// Daily jobs fetch exactly their day with no fallback.
func (p *Pipeline) FetchAndProcess(ctx context.Context, ts time.Time, jobType models.TrendType) error {
	ts = ts.UTC()

	if jobType == models.TrendDaily {
		return p.FetchDailyFor(ctx, ts)
	}

	coll, err := p.client.FetchFifteenMinute(ctx, ts)
	if err == nil {
		return p.agg.AggregateFromFile(ctx, coll, ts.Truncate(15*time.Minute), models.CategoryAll)
	}
	log.Printf("[pipeline] 15-minute file %s unavailable: %v", gdelt.FifteenMinuteFilename(ts), err)

	lastErr := err
	for _, day := range []time.Time{ts, ts.AddDate(0, 0, -1)} {
		if err := p.FetchDailyFor(ctx, day); err != nil {
			lastErr = err
			log.Printf("[pipeline] daily rollup %s unavailable: %v", models.DateOf(day), err)
			continue
		}
		return nil
	}
	return fmt.Errorf("no artifact available for %s: %w", models.DateOf(ts), lastErr)
}

// FetchDailyFor ingests the daily rollup artifact for day's UTC date.
// The stored trends are keyed on that date regardless of when the
// fetch runs.
func (p *Pipeline) FetchDailyFor(ctx context.Context, day time.Time) error {
	coll, err := p.client.FetchDaily(ctx, day)
	if err != nil {
		return err
	}
	return p.agg.AggregateDaily(ctx, []*gdelt.Collector{coll}, day, models.CategoryAll)
}
