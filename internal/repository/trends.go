package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"gkgtrends/internal/models"
)

const trendColumns = `trend_type, to_char(trend_date, 'YYYY-MM-DD'), category, observed_at, keywords`

// UpsertTrend writes one trend document. The (type, date, category) key
// makes the write idempotent: a re-run replaces the keyword list and
// observation time instead of inserting a sibling row.
func (r *Repository) UpsertTrend(ctx context.Context, t models.Trend) error {
	body, err := encodeKeywords(t.Keywords)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO gkg.trends (trend_type, trend_date, category, observed_at, keywords)
		VALUES ($1, $2::date, $3, $4, $5)
		ON CONFLICT (trend_type, trend_date, category) DO UPDATE
		SET observed_at = EXCLUDED.observed_at,
		    keywords    = EXCLUDED.keywords,
		    updated_at  = now()
	`, string(t.Type), t.Date, string(t.Category), t.Timestamp, body)
	if err != nil {
		return fmt.Errorf("upsert trend %s/%s/%s: %w", t.Type, t.Date, t.Category, err)
	}
	return nil
}

// GetTrend returns the trend for an exact (type, date, category) key,
// or nil when none is stored.
func (r *Repository) GetTrend(ctx context.Context, typ models.TrendType, date string, cat models.Category) (*models.Trend, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+trendColumns+`
		FROM gkg.trends
		WHERE trend_type = $1 AND trend_date = $2::date AND category = $3
	`, string(typ), date, string(cat))

	t, err := scanTrend(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trend %s/%s/%s: %w", typ, date, cat, err)
	}
	return t, nil
}

// GetTrendsByDate returns every category's trend of the given type for
// one date, ordered by category for stable output.
func (r *Repository) GetTrendsByDate(ctx context.Context, typ models.TrendType, date string) ([]models.Trend, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+trendColumns+`
		FROM gkg.trends
		WHERE trend_type = $1 AND trend_date = $2::date
		ORDER BY category
	`, string(typ), date)
	if err != nil {
		return nil, fmt.Errorf("get trends by date %s/%s: %w", typ, date, err)
	}
	defer rows.Close()
	return collectTrends(rows)
}

// GetRecentTrends returns up to limit trends of a type ordered by
// observation time, newest first. Empty date or category leaves that
// filter off.
func (r *Repository) GetRecentTrends(ctx context.Context, typ models.TrendType, date string, cat models.Category, limit int) ([]models.Trend, error) {
	query := `SELECT ` + trendColumns + ` FROM gkg.trends WHERE trend_type = $1`
	args := []interface{}{string(typ)}

	if date != "" {
		args = append(args, date)
		query += fmt.Sprintf(" AND trend_date = $%d::date", len(args))
	}
	if cat != "" && cat != models.CategoryAll {
		args = append(args, string(cat))
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY observed_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get recent trends %s: %w", typ, err)
	}
	defer rows.Close()
	return collectTrends(rows)
}

// GetDailyDatesPresent reports which of the given dates already have a
// stored daily trend for the category.
func (r *Repository) GetDailyDatesPresent(ctx context.Context, cat models.Category, dates []string) (map[string]bool, error) {
	present := make(map[string]bool, len(dates))
	if len(dates) == 0 {
		return present, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT to_char(trend_date, 'YYYY-MM-DD')
		FROM gkg.trends
		WHERE trend_type = $1 AND category = $2 AND trend_date = ANY($3::date[])
	`, string(models.TrendDaily), string(cat), dates)
	if err != nil {
		return nil, fmt.Errorf("get daily dates present %s: %w", cat, err)
	}
	defer rows.Close()

	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		present[d] = true
	}
	return present, rows.Err()
}

// GetDailyTrendsInRange returns the daily trends of a category with
// from <= date < to, oldest first.
func (r *Repository) GetDailyTrendsInRange(ctx context.Context, cat models.Category, from, to string) ([]models.Trend, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+trendColumns+`
		FROM gkg.trends
		WHERE trend_type = $1 AND category = $2
		  AND trend_date >= $3::date AND trend_date < $4::date
		ORDER BY trend_date
	`, string(models.TrendDaily), string(cat), from, to)
	if err != nil {
		return nil, fmt.Errorf("get daily trends %s [%s, %s): %w", cat, from, to, err)
	}
	defer rows.Close()
	return collectTrends(rows)
}

// IngestCheckpoint summarises how far ingestion has progressed for one
// (type, category) stream.
type IngestCheckpoint struct {
	Type       models.TrendType
	Category   models.Category
	LatestDate string
	ObservedAt time.Time
}

// GetIngestCheckpoints returns the newest stored date and observation
// time per (type, category), for the status endpoint.
func (r *Repository) GetIngestCheckpoints(ctx context.Context) ([]IngestCheckpoint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT trend_type, category, to_char(MAX(trend_date), 'YYYY-MM-DD'), MAX(observed_at)
		FROM gkg.trends
		GROUP BY trend_type, category
		ORDER BY trend_type, category
	`)
	if err != nil {
		return nil, fmt.Errorf("get ingest checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []IngestCheckpoint
	for rows.Next() {
		var (
			cp       IngestCheckpoint
			typ, cat string
		)
		if err := rows.Scan(&typ, &cat, &cp.LatestDate, &cp.ObservedAt); err != nil {
			return nil, err
		}
		cp.Type = models.TrendType(typ)
		cp.Category = models.Category(cat)
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

func collectTrends(rows pgx.Rows) ([]models.Trend, error) {
	var trends []models.Trend
	for rows.Next() {
		t, err := scanTrend(rows)
		if err != nil {
			return nil, err
		}
		trends = append(trends, *t)
	}
	return trends, rows.Err()
}

func scanTrend(row pgx.Row) (*models.Trend, error) {
	var (
		t        models.Trend
		typ, cat string
		kwBytes  []byte
	)
	if err := row.Scan(&typ, &t.Date, &cat, &t.Timestamp, &kwBytes); err != nil {
		return nil, err
	}
	t.Type = models.TrendType(typ)
	t.Category = models.Category(cat)
	t.Keywords = decodeKeywords(kwBytes)
	return &t, nil
}

// encodeKeywords marshals a keyword list for the JSONB column, mapping
// nil to the empty array so reads never see SQL null.
func encodeKeywords(kws []models.Keyword) ([]byte, error) {
	if kws == nil {
		return []byte("[]"), nil
	}
	body, err := json.Marshal(kws)
	if err != nil {
		return nil, fmt.Errorf("encode keywords: %w", err)
	}
	return body, nil
}

// decodeKeywords tolerates null, empty, and malformed payloads; a trend
// with an unreadable keyword list is served empty rather than failing
// the whole query.
func decodeKeywords(raw []byte) []models.Keyword {
	if len(raw) == 0 || string(raw) == "null" {
		return []models.Keyword{}
	}
	var kws []models.Keyword
	if err := json.Unmarshal(raw, &kws); err != nil {
		log.Printf("[repository] dropping unreadable keywords payload: %v", err)
		return []models.Keyword{}
	}
	if kws == nil {
		return []models.Keyword{}
	}
	return kws
}
