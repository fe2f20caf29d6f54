package ingester

import (
	"context"
	"log"
	"time"

	"gkgtrends/internal/models"
)

// RealtimeWorker polls the newest GDELT 15-minute file on the
// publication cadence.
type RealtimeWorker struct {
	pipeline *Pipeline
	interval time.Duration
}

func NewRealtimeWorker(pipeline *Pipeline, interval time.Duration) *RealtimeWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &RealtimeWorker{pipeline: pipeline, interval: interval}
}

func (w *RealtimeWorker) Start(ctx context.Context) {
	log.Println("[realtime_worker] Starting (interval:", w.interval, ")")

	w.poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[realtime_worker] Stopping")
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *RealtimeWorker) poll(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if err := w.pipeline.FetchAndProcess(fetchCtx, time.Now(), models.TrendRealtime); err != nil {
		log.Printf("[realtime_worker] ingest error: %v", err)
	}
}
