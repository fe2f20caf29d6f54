package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gkgtrends/internal/models"
)

// trendsResponse is the shared envelope of the trend read endpoints.
// Results is a list, a single trend, or null depending on the endpoint.
type trendsResponse struct {
	Date     string      `json:"date"`
	Category string      `json:"category"`
	Results  interface{} `json:"results"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// parseDateParam validates ?date=. Empty input falls back to def, which
// is "" for endpoints that treat an absent date as no filter.
func parseDateParam(r *http.Request, def string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	if v == "" {
		return def, nil
	}
	if _, err := models.ParseDate(v); err != nil {
		return "", fmt.Errorf("invalid date %q, want YYYY-MM-DD", v)
	}
	return v, nil
}

// parseCategoryParam reads ?category=, defaulting to all.
func parseCategoryParam(r *http.Request) (models.Category, error) {
	v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category")))
	if v == "" {
		return models.CategoryAll, nil
	}
	cat := models.Category(v)
	if cat != models.CategoryAll && !models.ValidCategory(cat) {
		return "", fmt.Errorf("unknown category %q", v)
	}
	return cat, nil
}

// parseWindowDays reads the baseline window grammar: a plain integer is
// days, "Nd"/"Nm"/"Ny" are days/months/years. Anything else means a week.
func parseWindowDays(raw string) int {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 7
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	if len(raw) > 1 {
		if n, err := strconv.Atoi(raw[:len(raw)-1]); err == nil && n > 0 {
			switch raw[len(raw)-1] {
			case 'd':
				return n
			case 'm':
				return n * 30
			case 'y':
				return n * 365
			}
		}
	}
	return 7
}

// parseLimitParam reads ?limit=, keeping def on absent or out-of-range
// input. The result is always within [1, 200].
func parseLimitParam(r *http.Request, def int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	return limit
}

// cacheGet treats every cache failure as a miss.
func (s *Server) cacheGet(ctx context.Context, key string) []byte {
	if s.cache == nil {
		return nil
	}
	val, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Printf("[api] cache get %s: %v", key, err)
		return nil
	}
	return val
}

// cacheSet backfills a cache entry; failures are logged and ignored.
func (s *Server) cacheSet(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.SetWithTTL(ctx, key, data, ttl); err != nil {
		log.Printf("[api] cache set %s: %v", key, err)
	}
}
