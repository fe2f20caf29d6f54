package cache

import (
	"context"
	"fmt"
	"time"

	"gkgtrends/internal/models"
)

// Cache is the lookaside store in front of Postgres. Implementations
// return (nil, nil) from Get on a miss so callers can fall through to
// the repository without inspecting sentinel errors.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RealtimeKey caches one realtime snapshot per day and category.
func RealtimeKey(date string, cat models.Category) string {
	return fmt.Sprintf("realtime:%s:%s", date, cat)
}

// DailyKey caches one daily rollup per day and category.
func DailyKey(date string, cat models.Category) string {
	return fmt.Sprintf("daily:%s:%s", date, cat)
}

// RankedKey caches a computed ranking, parameterised by the window and
// result size so different queries never collide.
func RankedKey(date string, cat models.Category, windowDays, limit int) string {
	return fmt.Sprintf("ranked:%s:%s:%d:%d", date, cat, windowDays, limit)
}

// DailyKeysForDate lists every daily cache key a re-ingest of the date
// invalidates.
func DailyKeysForDate(date string) []string {
	keys := []string{DailyKey(date, models.CategoryAll)}
	for _, cat := range models.EntityCategories {
		keys = append(keys, DailyKey(date, cat))
	}
	return append(keys, DailyKey(date, models.CategoryDocuments))
}
