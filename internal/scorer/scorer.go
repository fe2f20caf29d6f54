package scorer

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"gkgtrends/internal/models"
	"gkgtrends/internal/tokenize"
)

// Composite score weights. Volume dominates so a keyword needs real
// presence before growth or deviation can lift it.
const (
	volumeWeight = 0.6
	growthWeight = 0.3
	zScoreWeight = 0.1
)

// Baseline-ensure bounds: at most maxAwaitedBackfills missing days are
// fetched synchronously, awaitedParallelism at a time; anything past
// that is queued on the background pool.
const (
	maxAwaitedBackfills = 31
	awaitedParallelism  = 8
)

// TrendStore is the slice of the repository the scorer reads daily
// trends from and writes ranked trends back to.
type TrendStore interface {
	GetTrend(ctx context.Context, typ models.TrendType, date string, cat models.Category) (*models.Trend, error)
	GetDailyDatesPresent(ctx context.Context, cat models.Category, dates []string) (map[string]bool, error)
	GetDailyTrendsInRange(ctx context.Context, cat models.Category, from, to string) ([]models.Trend, error)
	UpsertTrend(ctx context.Context, t models.Trend) error
}

// DailyFetcher ingests the daily rollup for one day; *ingester.Pipeline
// is the production implementation.
type DailyFetcher interface {
	FetchDailyFor(ctx context.Context, day time.Time) error
}

// Backfiller queues a day for background ingestion without blocking;
// *ingester.BackfillPool is the production implementation.
type Backfiller interface {
	Submit(day time.Time) bool
}

// Scorer turns a day's daily trend plus a sliding baseline window into
// a ranked trend of composite novelty/volume scores.
type Scorer struct {
	store    TrendStore
	fetcher  DailyFetcher
	backfill Backfiller
	topN     int
}

func New(store TrendStore, fetcher DailyFetcher, backfill Backfiller, topN int) *Scorer {
	if topN <= 0 {
		topN = 50
	}
	return &Scorer{
		store:    store,
		fetcher:  fetcher,
		backfill: backfill,
		topN:     topN,
	}
}

// Request selects what to score. Zero values mean: themes, a 7-day
// window, and the scorer's configured topN.
type Request struct {
	Date       string // YYYY-MM-DD, required
	Category   models.Category
	WindowDays int
	TopN       int
}

func (r *Request) normalize() {
	if r.Category == "" || r.Category == models.CategoryAll {
		r.Category = models.CategoryThemes
	}
	if r.WindowDays <= 0 {
		r.WindowDays = 7
	}
}

// ScoreTrends computes the ranked keyword list for one day and category.
//
// It first makes sure the baseline window has daily coverage, backfilling
// missing days through the fetcher; then loads the current day and its
// baselines and scores them through three tiers of decreasing strictness,
// so noisy upstream data degrades the ranking instead of emptying it.
// A non-empty result is persisted as the (ranked, date, category) trend.
func (s *Scorer) ScoreTrends(ctx context.Context, req Request) ([]models.Keyword, error) {
	req.normalize()
	if req.TopN <= 0 {
		req.TopN = s.topN
	}

	day, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("score trends: bad date %q: %w", req.Date, err)
	}

	if err := s.ensureBaseline(ctx, day, req.Category, req.WindowDays); err != nil {
		return nil, err
	}

	current, err := s.store.GetTrend(ctx, models.TrendDaily, req.Date, req.Category)
	if err != nil {
		return nil, err
	}
	if current == nil || len(current.Keywords) == 0 {
		return []models.Keyword{}, nil
	}

	from := models.DateOf(day.AddDate(0, 0, -req.WindowDays))
	baselines, err := s.store.GetDailyTrendsInRange(ctx, req.Category, from, req.Date)
	if err != nil {
		return nil, err
	}

	ranked := scoreTiers(current.Keywords, baselines, req.WindowDays, req.TopN)
	if len(ranked) == 0 {
		return []models.Keyword{}, nil
	}

	t := models.Trend{
		Type:      models.TrendRanked,
		Date:      req.Date,
		Category:  req.Category,
		Timestamp: time.Now().UTC(),
		Keywords:  ranked,
	}
	if err := s.store.UpsertTrend(ctx, t); err != nil {
		return nil, err
	}
	return ranked, nil
}

// ensureBaseline backfills daily coverage for the scoring day and its
// window. The newest missing days are fetched in parallel and awaited;
// the overflow is queued on the background pool.
func (s *Scorer) ensureBaseline(ctx context.Context, day time.Time, cat models.Category, windowDays int) error {
	dates := make([]string, 0, windowDays+1)
	for i := 0; i <= windowDays; i++ {
		dates = append(dates, models.DateOf(day.AddDate(0, 0, -i)))
	}

	present, err := s.store.GetDailyDatesPresent(ctx, cat, dates)
	if err != nil {
		return err
	}

	var missing []string
	for _, d := range dates {
		if !present[d] {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	awaited := missing
	var overflow []string
	if len(awaited) > maxAwaitedBackfills {
		overflow = awaited[maxAwaitedBackfills:]
		awaited = awaited[:maxAwaitedBackfills]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(awaitedParallelism)
	for _, d := range awaited {
		d := d
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			t, err := models.ParseDate(d)
			if err != nil {
				return nil
			}
			if err := s.fetcher.FetchDailyFor(gctx, t); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// Missing upstream artifacts are routine; score with
				// whatever coverage exists.
				log.Printf("[scorer] baseline backfill %s: %v", d, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, d := range overflow {
		t, err := models.ParseDate(d)
		if err != nil {
			continue
		}
		if s.backfill == nil || !s.backfill.Submit(t) {
			log.Printf("[scorer] baseline day %s left for a later pass", d)
		}
	}
	return nil
}

// scoreTiers runs the tiered scoring ladder: strict noise filtering,
// then numeric-vector-only filtering, then a volume-only ranking where
// everything scores 100. The first tier producing keywords wins.
func scoreTiers(current []models.Keyword, baselines []models.Trend, windowDays, topN int) []models.Keyword {
	strict := scoreCore(
		tokenize.FilterNoise(current),
		baselineCounts(baselines, tokenize.FilterNoise),
		windowDays, topN,
	)
	if len(strict) > 0 {
		return strict
	}

	loose := scoreCore(
		dropNumericVectors(current),
		baselineCounts(baselines, dropNumericVectors),
		windowDays, topN,
	)
	if len(loose) > 0 {
		return loose
	}

	return volumeOnly(current, topN)
}

// scoreCore computes the composite score for each current keyword
// against the summed baseline counts:
//
//	volume = ln(1+count)
//	growth = (count+1) / (base/windowDays + 1)
//	z      = (count-μ)/σ over the baseline counts, floored at 0
//	raw    = 0.6·volume + 0.3·ln(1+growth) + 0.1·z
//
// Raw scores are normalized so the maximum maps to 100, rounded to
// integers, sorted descending (first-seen order on ties) and truncated.
func scoreCore(current []models.Keyword, baseline map[string]int, windowDays, topN int) []models.Keyword {
	if len(current) == 0 {
		return nil
	}
	if windowDays < 1 {
		windowDays = 1
	}

	mean, stddev := baselineStats(baseline)

	raws := make([]float64, len(current))
	maxRaw := 0.0
	for i, kw := range current {
		count := float64(kw.Count)
		base := float64(baseline[kw.Word])

		volume := math.Log(1 + count)
		growth := (count + 1) / (base/float64(windowDays) + 1)
		z := 0.0
		if stddev > 0 {
			z = (count - mean) / stddev
		}

		raw := volumeWeight*volume + growthWeight*math.Log(1+growth) + zScoreWeight*math.Max(0, z)
		raws[i] = raw
		if raw > maxRaw {
			maxRaw = raw
		}
	}

	type entry struct {
		kw  models.Keyword
		raw float64
	}
	entries := make([]entry, len(current))
	for i, kw := range current {
		score := 0
		if maxRaw > 0 {
			score = int(math.Round(raws[i] / maxRaw * 100))
		}
		entries[i] = entry{
			kw:  models.Keyword{Word: kw.Word, Count: kw.Count, Score: &score},
			raw: raws[i],
		}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].raw > entries[b].raw
	})
	if len(entries) > topN {
		entries = entries[:topN]
	}

	out := make([]models.Keyword, len(entries))
	for i, e := range entries {
		out[i] = e.kw
	}
	return out
}

// volumeOnly is the last tier: non-noise current keywords by raw count,
// every survivor scored 100.
func volumeOnly(current []models.Keyword, topN int) []models.Keyword {
	kept := tokenize.FilterNoise(current)
	if len(kept) == 0 {
		return nil
	}

	sort.SliceStable(kept, func(a, b int) bool {
		return kept[a].Count > kept[b].Count
	})
	if len(kept) > topN {
		kept = kept[:topN]
	}

	out := make([]models.Keyword, len(kept))
	for i, kw := range kept {
		score := 100
		out[i] = models.Keyword{Word: kw.Word, Count: kw.Count, Score: &score}
	}
	return out
}

// baselineCounts sums keyword counts across the baseline window after
// passing each document through the tier's filter. Persisted documents
// are untrusted: older tokenizers may have let noise through, so the
// filter runs at read time.
func baselineCounts(baselines []models.Trend, filter func([]models.Keyword) []models.Keyword) map[string]int {
	counts := make(map[string]int)
	for _, t := range baselines {
		for _, kw := range filter(t.Keywords) {
			counts[kw.Word] += kw.Count
		}
	}
	return counts
}

// baselineStats returns the population mean and stddev of the baseline
// counts. An empty baseline behaves as the single observation 0.
func baselineStats(baseline map[string]int) (mean, stddev float64) {
	if len(baseline) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, c := range baseline {
		sum += float64(c)
	}
	mean = sum / float64(len(baseline))

	variance := 0.0
	for _, c := range baseline {
		d := float64(c) - mean
		variance += d * d
	}
	variance /= float64(len(baseline))
	return mean, math.Sqrt(variance)
}

func dropNumericVectors(kws []models.Keyword) []models.Keyword {
	out := make([]models.Keyword, 0, len(kws))
	for _, kw := range kws {
		if tokenize.IsNumericVector(kw.Word) {
			continue
		}
		out = append(out, kw)
	}
	return out
}
