package ingester

import (
	"context"
	"log"
	"time"

	"gkgtrends/internal/models"
)

// DailyFetcher ingests the daily rollup for one day. *Pipeline is the
// production implementation.
type DailyFetcher interface {
	FetchDailyFor(ctx context.Context, day time.Time) error
}

// BackfillPool runs daily backfills in the background over a bounded
// queue. Submission never blocks: when the queue is full the day is
// dropped, and the next scoring pass that still misses it resubmits.
type BackfillPool struct {
	fetcher DailyFetcher
	jobs    chan time.Time
	workers int
	timeout time.Duration
}

func NewBackfillPool(fetcher DailyFetcher, workers, queueSize int) *BackfillPool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	return &BackfillPool{
		fetcher: fetcher,
		jobs:    make(chan time.Time, queueSize),
		workers: workers,
		timeout: 5 * time.Minute,
	}
}

func (p *BackfillPool) Start(ctx context.Context) {
	log.Printf("[backfill_pool] Starting %d workers (queue: %d)", p.workers, cap(p.jobs))
	for i := 0; i < p.workers; i++ {
		go p.run(ctx, i)
	}
}

func (p *BackfillPool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case day := <-p.jobs:
			fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
			if err := p.fetcher.FetchDailyFor(fetchCtx, day); err != nil {
				log.Printf("[backfill_pool] worker %d: backfill %s: %v", id, models.DateOf(day), err)
			}
			cancel()
		}
	}
}

// Submit queues a day for backfill, reporting false when the queue is
// full and the job was dropped.
func (p *BackfillPool) Submit(day time.Time) bool {
	select {
	case p.jobs <- day:
		return true
	default:
		log.Printf("[backfill_pool] queue full, dropping %s", models.DateOf(day))
		return false
	}
}

// QueueDepth reports how many jobs are waiting, for the status payload.
func (p *BackfillPool) QueueDepth() int {
	return len(p.jobs)
}
