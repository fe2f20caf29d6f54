package ingester

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gkgtrends/internal/cache"
	"gkgtrends/internal/eventbus"
	"gkgtrends/internal/gdelt"
	"gkgtrends/internal/models"
	"gkgtrends/internal/rank"
)

// TrendStore is the slice of the repository the aggregator writes to.
type TrendStore interface {
	UpsertTrend(ctx context.Context, t models.Trend) error
}

// Aggregator turns collected GKG files into stored trend documents:
// rank the bags, upsert, refresh the cache, announce on the bus.
type Aggregator struct {
	store       TrendStore
	cache       cache.Cache
	bus         *eventbus.Bus
	topN        int
	realtimeTTL time.Duration
}

func NewAggregator(store TrendStore, kv cache.Cache, bus *eventbus.Bus, topN int, realtimeTTL time.Duration) *Aggregator {
	if topN <= 0 {
		topN = 50
	}
	if realtimeTTL <= 0 {
		realtimeTTL = 15 * time.Minute
	}
	return &Aggregator{
		store:       store,
		cache:       kv,
		bus:         bus,
		topN:        topN,
		realtimeTTL: realtimeTTL,
	}
}

// AggregateFromFile ranks one 15-minute collector into realtime trends
// stamped with the file instant. A re-run for the same day overwrites
// the previous snapshot.
func (a *Aggregator) AggregateFromFile(ctx context.Context, coll *gdelt.Collector, ts time.Time, category models.Category) error {
	ts = ts.UTC()
	date := models.DateOf(ts)

	for _, cat := range requestedCategories(category) {
		t := models.Trend{
			Type:      models.TrendRealtime,
			Date:      date,
			Category:  cat,
			Timestamp: ts,
			Keywords:  rank.Tokens(coll.Bag(cat), a.topN),
		}
		if err := a.commit(ctx, t, cache.RealtimeKey(date, cat), a.realtimeTTL, eventbus.TypeTrendRealtime); err != nil {
			return err
		}
	}

	if wantsDocuments(category) {
		if kws := documentKeywords(coll.DocumentIdentifiers, a.topN); len(kws) > 0 {
			t := models.Trend{
				Type:      models.TrendRealtime,
				Date:      date,
				Category:  models.CategoryDocuments,
				Timestamp: ts,
				Keywords:  kws,
			}
			if err := a.commit(ctx, t, cache.RealtimeKey(date, models.CategoryDocuments), a.realtimeTTL, eventbus.TypeTrendRealtime); err != nil {
				return err
			}
		}
	}
	return nil
}

// AggregateDaily merges a day's collectors into daily trends stamped at
// UTC noon of the day.
func (a *Aggregator) AggregateDaily(ctx context.Context, colls []*gdelt.Collector, day time.Time, category models.Category) error {
	date := models.DateOf(day)
	ts := models.MiddayOf(day)

	for _, cat := range requestedCategories(category) {
		var bag []string
		for _, coll := range colls {
			bag = append(bag, coll.Bag(cat)...)
		}
		t := models.Trend{
			Type:      models.TrendDaily,
			Date:      date,
			Category:  cat,
			Timestamp: ts,
			Keywords:  rank.Tokens(bag, a.topN),
		}
		if err := a.commit(ctx, t, cache.DailyKey(date, cat), 24*time.Hour, eventbus.TypeTrendDaily); err != nil {
			return err
		}
	}

	if wantsDocuments(category) {
		var ids []string
		for _, coll := range colls {
			ids = append(ids, coll.DocumentIdentifiers...)
		}
		if kws := documentKeywords(ids, a.topN); len(kws) > 0 {
			t := models.Trend{
				Type:      models.TrendDaily,
				Date:      date,
				Category:  models.CategoryDocuments,
				Timestamp: ts,
				Keywords:  kws,
			}
			if err := a.commit(ctx, t, cache.DailyKey(date, models.CategoryDocuments), 24*time.Hour, eventbus.TypeTrendDaily); err != nil {
				return err
			}
		}
	}
	return nil
}

// commit persists one trend, then best-effort refreshes the cache and
// publishes the event. Only the store write can fail the aggregation.
func (a *Aggregator) commit(ctx context.Context, t models.Trend, key string, ttl time.Duration, eventType string) error {
	if err := a.store.UpsertTrend(ctx, t); err != nil {
		return err
	}

	if body, err := json.Marshal(t); err == nil {
		if err := a.cache.SetWithTTL(ctx, key, body, ttl); err != nil {
			log.Printf("[aggregator] cache write %s: %v", key, err)
		}
	}

	if a.bus != nil {
		a.bus.Publish(eventbus.Event{
			Type:      eventType,
			Date:      t.Date,
			Category:  t.Category,
			Timestamp: t.Timestamp,
			Data:      t,
		})
	}
	return nil
}

func requestedCategories(cat models.Category) []models.Category {
	switch cat {
	case models.CategoryAll, "":
		return models.EntityCategories
	case models.CategoryDocuments:
		return nil
	}
	return []models.Category{cat}
}

func wantsDocuments(cat models.Category) bool {
	return cat == models.CategoryAll || cat == "" || cat == models.CategoryDocuments
}

// documentKeywords deduplicates identifiers keeping first-seen order.
// Each document appears once with count 1; the list is capped at topN.
func documentKeywords(ids []string, topN int) []models.Keyword {
	seen := make(map[string]bool, len(ids))
	var kws []models.Keyword
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		kws = append(kws, models.Keyword{Word: id, Count: 1})
		if len(kws) == topN {
			break
		}
	}
	return kws
}
