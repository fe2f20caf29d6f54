package api

import (
	"context"
	"time"

	"gkgtrends/internal/models"
	"gkgtrends/internal/repository"
	"gkgtrends/internal/scorer"
)

// TrendStore abstracts the subset of the repository used by the API
// layer. This keeps handlers testable without a live Postgres pool.
type TrendStore interface {
	GetTrend(ctx context.Context, typ models.TrendType, date string, cat models.Category) (*models.Trend, error)
	GetTrendsByDate(ctx context.Context, typ models.TrendType, date string) ([]models.Trend, error)
	GetRecentTrends(ctx context.Context, typ models.TrendType, date string, cat models.Category, limit int) ([]models.Trend, error)
	GetIngestCheckpoints(ctx context.Context) ([]repository.IngestCheckpoint, error)
	Ping(ctx context.Context) error
}

// TrendScorer computes ranked keyword lists on demand.
type TrendScorer interface {
	ScoreTrends(ctx context.Context, req scorer.Request) ([]models.Keyword, error)
}

// DailyIngester triggers the daily-file ingest for one date.
type DailyIngester interface {
	FetchDailyFor(ctx context.Context, day time.Time) error
}

// QueueReporter exposes the backfill queue depth for the status payload.
type QueueReporter interface {
	QueueDepth() int
}
