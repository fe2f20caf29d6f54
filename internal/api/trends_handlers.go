package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"gkgtrends/internal/cache"
	"gkgtrends/internal/models"
	"gkgtrends/internal/scorer"
)

const (
	// recentSnapshotLimit bounds /trends/realtime when no date narrows
	// the query; the window may then span several days.
	recentSnapshotLimit = 20

	dailyCacheTTL  = 24 * time.Hour
	rankedCacheTTL = 10 * time.Minute
)

func (s *Server) handleTrendsRealtime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, err := parseDateParam(r, "")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	cat, err := parseCategoryParam(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	var cacheKey string
	if date != "" {
		cacheKey = cache.RealtimeKey(date, cat)
		if raw := s.cacheGet(ctx, cacheKey); raw != nil {
			results := interface{}(json.RawMessage(raw))
			if cat != models.CategoryAll {
				// Per-category entries hold a single snapshot.
				results = []json.RawMessage{raw}
			}
			writeJSON(w, trendsResponse{Date: date, Category: string(cat), Results: results})
			return
		}
	}

	trends, err := s.store.GetRecentTrends(ctx, models.TrendRealtime, date, cat, recentSnapshotLimit)
	if err != nil {
		log.Printf("[api] realtime trends %s/%s: %v", date, cat, err)
		writeAPIError(w, http.StatusInternalServerError, "failed to load realtime trends")
		return
	}
	if trends == nil {
		trends = []models.Trend{}
	}

	if cacheKey != "" {
		if cat == models.CategoryAll {
			s.cacheSet(ctx, cacheKey, trends, s.realtimeTTL)
		} else if len(trends) > 0 {
			s.cacheSet(ctx, cacheKey, trends[0], s.realtimeTTL)
		}
	}

	writeJSON(w, trendsResponse{Date: date, Category: string(cat), Results: trends})
}

func (s *Server) handleTrendsDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, err := parseDateParam(r, models.DateOf(time.Now()))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	cat, err := parseCategoryParam(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := cache.DailyKey(date, cat)
	if raw := s.cacheGet(ctx, key); raw != nil {
		writeJSON(w, trendsResponse{Date: date, Category: string(cat), Results: json.RawMessage(raw)})
		return
	}

	if cat == models.CategoryAll {
		trends, err := s.store.GetTrendsByDate(ctx, models.TrendDaily, date)
		if err != nil {
			log.Printf("[api] daily trends %s: %v", date, err)
			writeAPIError(w, http.StatusInternalServerError, "failed to load daily trends")
			return
		}
		if trends == nil {
			trends = []models.Trend{}
		}
		s.cacheSet(ctx, key, trends, dailyCacheTTL)
		writeJSON(w, trendsResponse{Date: date, Category: string(cat), Results: trends})
		return
	}

	trend, err := s.store.GetTrend(ctx, models.TrendDaily, date, cat)
	if err != nil {
		log.Printf("[api] daily trend %s/%s: %v", date, cat, err)
		writeAPIError(w, http.StatusInternalServerError, "failed to load daily trend")
		return
	}
	if trend != nil {
		s.cacheSet(ctx, key, trend, dailyCacheTTL)
	}
	// Missing data serializes as null, never a 404.
	writeJSON(w, trendsResponse{Date: date, Category: string(cat), Results: trend})
}

type topResponse struct {
	Date     string      `json:"date"`
	Category string      `json:"category"`
	Window   int         `json:"window"`
	Results  interface{} `json:"results"`
}

func (s *Server) handleTrendsTop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, err := parseDateParam(r, models.DateOf(time.Now()))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	cat, err := parseCategoryParam(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	if cat == models.CategoryAll {
		cat = models.CategoryThemes
	}
	window := parseWindowDays(r.URL.Query().Get("window"))
	limit := parseLimitParam(r, s.topN)
	nocache := r.URL.Query().Get("nocache") == "1"

	key := cache.RankedKey(date, cat, window, limit)
	if !nocache {
		if raw := s.cacheGet(ctx, key); raw != nil {
			writeJSON(w, topResponse{Date: date, Category: string(cat), Window: window, Results: json.RawMessage(raw)})
			return
		}
	}

	ranked, err := s.scorer.ScoreTrends(ctx, scorer.Request{
		Date:       date,
		Category:   cat,
		WindowDays: window,
		TopN:       limit,
	})
	if err != nil {
		log.Printf("[api] score trends %s/%s: %v", date, cat, err)
		writeAPIError(w, http.StatusInternalServerError, "failed to score trends")
		return
	}
	if ranked == nil {
		ranked = []models.Keyword{}
	}

	// A nocache read still refreshes the entry for later callers.
	s.cacheSet(ctx, key, ranked, rankedCacheTTL)

	writeJSON(w, topResponse{Date: date, Category: string(cat), Window: window, Results: ranked})
}

func (s *Server) handleTrendsDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, err := parseDateParam(r, models.DateOf(time.Now()))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := cache.DailyKey(date, models.CategoryDocuments)
	var trend *models.Trend
	if raw := s.cacheGet(ctx, key); raw != nil {
		var t models.Trend
		if err := json.Unmarshal(raw, &t); err == nil {
			trend = &t
		}
	}
	if trend == nil {
		t, err := s.store.GetTrend(ctx, models.TrendDaily, date, models.CategoryDocuments)
		if err != nil {
			log.Printf("[api] documents trend %s: %v", date, err)
			writeAPIError(w, http.StatusInternalServerError, "failed to load documents trend")
			return
		}
		if t != nil {
			s.cacheSet(ctx, key, t, dailyCacheTTL)
		}
		trend = t
	}

	ids := []string{}
	if trend != nil {
		for _, kw := range trend.Keywords {
			ids = append(ids, kw.Word)
		}
	}
	writeJSON(w, trendsResponse{Date: date, Category: string(models.CategoryDocuments), Results: ids})
}

func (s *Server) handleAdminFetchDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, err := parseDateParam(r, models.DateOf(time.Now()))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	day, err := models.ParseDate(date)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("[api] admin fetchDaily %s", date)
	if err := s.ingester.FetchDailyFor(ctx, day); err != nil {
		log.Printf("[api] admin fetchDaily %s: %v", date, err)
		writeAPIError(w, http.StatusBadGateway, "daily fetch failed: "+err.Error())
		return
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, cache.DailyKeysForDate(date)...); err != nil {
			log.Printf("[api] evict daily cache %s: %v", date, err)
		}
	}

	writeJSON(w, map[string]string{"status": "ok", "date": date})
}
