package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	s.statusCache.mu.Lock()
	if now.Before(s.statusCache.expiresAt) && len(s.statusCache.payload) > 0 {
		cached := append([]byte(nil), s.statusCache.payload...)
		s.statusCache.mu.Unlock()
		w.Write(cached)
		return
	}
	s.statusCache.mu.Unlock()

	payload, err := s.buildStatusPayload(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.statusCache.mu.Lock()
	s.statusCache.payload = payload
	s.statusCache.expiresAt = time.Now().Add(10 * time.Second)
	s.statusCache.mu.Unlock()

	w.Write(payload)
}

func (s *Server) buildStatusPayload(ctx context.Context) ([]byte, error) {
	getEnvInt := func(key string, defaultVal int) int {
		if valStr := os.Getenv(key); valStr != "" {
			if val, err := strconv.Atoi(valStr); err == nil {
				return val
			}
		}
		return defaultVal
	}

	dbStatus := "ok"
	if err := s.store.Ping(ctx); err != nil {
		dbStatus = "unreachable"
	}

	type checkpointView struct {
		Type       string `json:"type"`
		Category   string `json:"category"`
		LatestDate string `json:"latest_date"`
		ObservedAt string `json:"observed_at"`
	}
	views := make([]checkpointView, 0)
	if cps, err := s.store.GetIngestCheckpoints(ctx); err == nil {
		for _, cp := range cps {
			views = append(views, checkpointView{
				Type:       string(cp.Type),
				Category:   string(cp.Category),
				LatestDate: cp.LatestDate,
				ObservedAt: cp.ObservedAt.UTC().Format(time.RFC3339),
			})
		}
	}

	workerEnabled := map[string]bool{
		"realtime_worker": os.Getenv("ENABLE_REALTIME_WORKER") != "false",
		"daily_worker":    os.Getenv("ENABLE_DAILY_WORKER") != "false",
	}

	workerConfig := map[string]interface{}{
		"realtime_interval_min": getEnvInt("REALTIME_INTERVAL_MIN", 15),
		"daily_hour_utc":        getEnvInt("DAILY_HOUR_UTC", 0),
		"top_n":                 getEnvInt("TOP_N", s.topN),
		"backfill_workers":      getEnvInt("BACKFILL_WORKERS", 2),
		"backfill_queue":        getEnvInt("BACKFILL_QUEUE", 16),
	}

	resp := map[string]interface{}{
		"status":         "ok",
		"database":       dbStatus,
		"checkpoints":    views,
		"worker_enabled": workerEnabled,
		"worker_config":  workerConfig,
		"build_commit":   BuildCommit,
		"generated_at":   time.Now().UTC().Format(time.RFC3339),
	}
	if s.backfill != nil {
		resp["backfill_queue_depth"] = s.backfill.QueueDepth()
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}

	return payload, nil
}
