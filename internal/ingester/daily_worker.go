package ingester

import (
	"context"
	"log"
	"time"

	"gkgtrends/internal/gdelt"
	"gkgtrends/internal/models"
)

// DailyWorker rebuilds the current day's rollup once a day from the
// trailing 96 fifteen-minute files.
type DailyWorker struct {
	client         *gdelt.Client
	agg            *Aggregator
	hourUTC        int
	perFileTimeout time.Duration
}

func NewDailyWorker(client *gdelt.Client, agg *Aggregator, hourUTC int) *DailyWorker {
	if hourUTC < 0 || hourUTC > 23 {
		hourUTC = 0
	}
	return &DailyWorker{
		client:         client,
		agg:            agg,
		hourUTC:        hourUTC,
		perFileTimeout: time.Minute,
	}
}

func (w *DailyWorker) Start(ctx context.Context) {
	log.Printf("[daily_worker] Starting (runs daily at %02d:00 UTC)", w.hourUTC)

	for {
		wait := time.Until(NextRunUTC(time.Now(), w.hourUTC))
		select {
		case <-ctx.Done():
			log.Println("[daily_worker] Stopping")
			return
		case <-time.After(wait):
			w.runOnce(ctx, time.Now())
		}
	}
}

// runOnce fetches the trailing 96 slots sequentially. Missing files
// are skipped so one gap cannot void the whole rollup.
func (w *DailyWorker) runOnce(ctx context.Context, now time.Time) {
	started := time.Now()
	slots := DaySlots(now)
	colls := make([]*gdelt.Collector, 0, len(slots))

	for _, slot := range slots {
		if ctx.Err() != nil {
			return
		}
		fetchCtx, cancel := context.WithTimeout(ctx, w.perFileTimeout)
		coll, err := w.client.FetchFifteenMinute(fetchCtx, slot)
		cancel()
		if err != nil {
			log.Printf("[daily_worker] slot %s skipped: %v", slot.Format("2006-01-02 15:04"), err)
			continue
		}
		colls = append(colls, coll)
	}

	if len(colls) == 0 {
		log.Printf("[daily_worker] no files available for %s, keeping previous rollup", models.DateOf(now))
		return
	}

	if err := w.agg.AggregateDaily(ctx, colls, now, models.CategoryAll); err != nil {
		log.Printf("[daily_worker] aggregate %s: %v", models.DateOf(now), err)
		return
	}
	log.Printf("[daily_worker] rollup for %s done: %d/%d files in %v",
		models.DateOf(now), len(colls), len(slots), time.Since(started).Truncate(time.Second))
}

// DaySlots lists the 96 fifteen-minute instants ending at now's slot,
// newest first.
func DaySlots(now time.Time) []time.Time {
	head := now.UTC().Truncate(15 * time.Minute)
	slots := make([]time.Time, 0, 96)
	for i := 0; i < 96; i++ {
		slots = append(slots, head.Add(-time.Duration(i)*15*time.Minute))
	}
	return slots
}

// NextRunUTC returns the next hh:00 UTC strictly after now.
func NextRunUTC(now time.Time, hourUTC int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
