package scorer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gkgtrends/internal/models"
)

type fakeStore struct {
	mu       sync.Mutex
	daily    map[string]models.Trend // "category|date"
	upserts  []models.Trend
	rangeReq []string // recorded "category|from|to"
}

func dailyKey(cat models.Category, date string) string {
	return string(cat) + "|" + date
}

func (s *fakeStore) put(cat models.Category, date string, kws []models.Keyword) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.daily == nil {
		s.daily = make(map[string]models.Trend)
	}
	s.daily[dailyKey(cat, date)] = models.Trend{
		Type:     models.TrendDaily,
		Date:     date,
		Category: cat,
		Keywords: kws,
	}
}

func (s *fakeStore) GetTrend(_ context.Context, typ models.TrendType, date string, cat models.Category) (*models.Trend, error) {
	if typ != models.TrendDaily {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.daily[dailyKey(cat, date)]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *fakeStore) GetDailyDatesPresent(_ context.Context, cat models.Category, dates []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	present := make(map[string]bool, len(dates))
	for _, d := range dates {
		if _, ok := s.daily[dailyKey(cat, d)]; ok {
			present[d] = true
		}
	}
	return present, nil
}

func (s *fakeStore) GetDailyTrendsInRange(_ context.Context, cat models.Category, from, to string) ([]models.Trend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rangeReq = append(s.rangeReq, string(cat)+"|"+from+"|"+to)
	var out []models.Trend
	// ISO dates order lexicographically, so string comparison is enough.
	for key, t := range s.daily {
		if key >= dailyKey(cat, from) && key < dailyKey(cat, to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertTrend(_ context.Context, t models.Trend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, t)
	return nil
}

func (s *fakeStore) rankedUpserts() []models.Trend {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Trend
	for _, t := range s.upserts {
		if t.Type == models.TrendRanked {
			out = append(out, t)
		}
	}
	return out
}

type fakeFetcher struct {
	mu    sync.Mutex
	days  []string
	err   error
	block chan struct{} // when set, FetchDailyFor waits until closed or ctx done
}

func (f *fakeFetcher) FetchDailyFor(ctx context.Context, day time.Time) error {
	f.mu.Lock()
	f.days = append(f.days, models.DateOf(day))
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeFetcher) fetched() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.days))
	for _, d := range f.days {
		out[d] = true
	}
	return out
}

type fakeBackfiller struct {
	mu   sync.Mutex
	days []string
	full bool
}

func (b *fakeBackfiller) Submit(day time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return false
	}
	b.days = append(b.days, models.DateOf(day))
	return true
}

func (b *fakeBackfiller) submitted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.days...)
}

func intp(v int) *int { return &v }

// Composite scoring against a flat baseline: zeta is new and large, xeno
// is large but established, yurt barely grew. σ=0 across the baseline,
// so the z term contributes nothing.
func TestScoreTrendsComposite(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	store.put(models.CategoryThemes, "2024-05-10", []models.Keyword{
		{Word: "xeno", Count: 50},
		{Word: "yurt", Count: 12},
		{Word: "zeta", Count: 40},
	})
	// Baseline totals across the window: xeno=10, yurt=10, zeta absent.
	store.put(models.CategoryThemes, "2024-05-09", []models.Keyword{
		{Word: "xeno", Count: 4}, {Word: "yurt", Count: 6},
	})
	store.put(models.CategoryThemes, "2024-05-07", []models.Keyword{
		{Word: "xeno", Count: 6}, {Word: "yurt", Count: 4},
	})

	sc := New(store, &fakeFetcher{}, nil, 50)
	got, err := sc.ScoreTrends(context.Background(), Request{
		Date:       "2024-05-10",
		Category:   models.CategoryThemes,
		WindowDays: 5,
	})
	if err != nil {
		t.Fatalf("ScoreTrends: %v", err)
	}

	want := []models.Keyword{
		{Word: "zeta", Count: 40, Score: intp(100)},
		{Word: "xeno", Count: 50, Score: intp(96)},
		{Word: "yurt", Count: 12, Score: intp(61)},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d keywords, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Word != want[i].Word || got[i].Count != want[i].Count {
			t.Errorf("got[%d] = {%s %d}, want {%s %d}", i, got[i].Word, got[i].Count, want[i].Word, want[i].Count)
		}
		if got[i].Score == nil {
			t.Fatalf("got[%d].Score is nil", i)
		}
		if *got[i].Score != *want[i].Score {
			t.Errorf("got[%d].Score = %d, want %d", i, *got[i].Score, *want[i].Score)
		}
	}

	ranked := store.rankedUpserts()
	if len(ranked) != 1 {
		t.Fatalf("ranked upserts = %d, want 1", len(ranked))
	}
	if ranked[0].Date != "2024-05-10" || ranked[0].Category != models.CategoryThemes {
		t.Errorf("ranked key = %s/%s", ranked[0].Date, ranked[0].Category)
	}
	if len(ranked[0].Keywords) != 3 || *ranked[0].Keywords[0].Score != 100 {
		t.Errorf("persisted keywords = %+v", ranked[0].Keywords)
	}
}

func TestScoreTrendsEmptyCurrentReturnsEmpty(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	sc := New(store, &fakeFetcher{}, nil, 50)

	got, err := sc.ScoreTrends(context.Background(), Request{Date: "2024-05-10"})
	if err != nil {
		t.Fatalf("ScoreTrends: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %+v, want empty", got)
	}
	if n := len(store.rankedUpserts()); n != 0 {
		t.Errorf("ranked upserts = %d, want none for an empty day", n)
	}
}

func TestScoreTrendsBadDate(t *testing.T) {
	t.Parallel()

	sc := New(&fakeStore{}, &fakeFetcher{}, nil, 50)
	if _, err := sc.ScoreTrends(context.Background(), Request{Date: "05/10/2024"}); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestScoreTrendsDefaultsToThemes(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	store.put(models.CategoryThemes, "2024-05-10", []models.Keyword{{Word: "climate", Count: 3}})

	sc := New(store, &fakeFetcher{}, nil, 50)
	got, err := sc.ScoreTrends(context.Background(), Request{Date: "2024-05-10", Category: models.CategoryAll})
	if err != nil {
		t.Fatalf("ScoreTrends: %v", err)
	}
	if len(got) != 1 || got[0].Word != "climate" {
		t.Errorf("got %+v, want the themes keyword", got)
	}
	// Default 7-day window: baselines span [date-7, date).
	store.mu.Lock()
	ranges := append([]string(nil), store.rangeReq...)
	store.mu.Unlock()
	if len(ranges) != 1 || ranges[0] != "themes|2024-05-03|2024-05-10" {
		t.Errorf("range queries = %v", ranges)
	}
}

func TestEnsureBaselineFetchesOnlyMissingDays(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	store.put(models.CategoryThemes, "2024-05-10", []models.Keyword{{Word: "climate", Count: 3}})
	store.put(models.CategoryThemes, "2024-05-08", []models.Keyword{{Word: "water", Count: 1}})

	fetcher := &fakeFetcher{}
	sc := New(store, fetcher, nil, 50)
	if _, err := sc.ScoreTrends(context.Background(), Request{Date: "2024-05-10", WindowDays: 3}); err != nil {
		t.Fatalf("ScoreTrends: %v", err)
	}

	fetched := fetcher.fetched()
	for _, d := range []string{"2024-05-09", "2024-05-07"} {
		if !fetched[d] {
			t.Errorf("missing day %s not backfilled; fetched %v", d, fetched)
		}
	}
	for _, d := range []string{"2024-05-10", "2024-05-08"} {
		if fetched[d] {
			t.Errorf("present day %s refetched", d)
		}
	}
}

func TestEnsureBaselineOverflowGoesToPool(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	store.put(models.CategoryThemes, "2024-05-10", []models.Keyword{{Word: "climate", Count: 3}})

	fetcher := &fakeFetcher{}
	pool := &fakeBackfiller{}
	sc := New(store, fetcher, pool, 50)

	// 40-day window: 41 dates, 40 missing. 31 awaited, 9 queued.
	if _, err := sc.ScoreTrends(context.Background(), Request{Date: "2024-05-10", WindowDays: 40}); err != nil {
		t.Fatalf("ScoreTrends: %v", err)
	}

	fetched := fetcher.fetched()
	if len(fetched) != maxAwaitedBackfills {
		t.Errorf("awaited fetches = %d, want %d", len(fetched), maxAwaitedBackfills)
	}
	// The awaited set is the newest missing days.
	if !fetched["2024-05-09"] || fetched["2024-04-05"] {
		t.Errorf("awaited set wrong: %v", fetched)
	}

	queued := pool.submitted()
	if len(queued) != 9 {
		t.Fatalf("queued = %v, want 9 overflow days", queued)
	}
	if queued[0] != "2024-04-08" || queued[len(queued)-1] != "2024-03-31" {
		t.Errorf("overflow days = %v", queued)
	}
}

func TestEnsureBaselineFetchFailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	store.put(models.CategoryThemes, "2024-05-10", []models.Keyword{{Word: "climate", Count: 3}})

	fetcher := &fakeFetcher{err: errors.New("artifact missing upstream")}
	sc := New(store, fetcher, nil, 50)

	got, err := sc.ScoreTrends(context.Background(), Request{Date: "2024-05-10", WindowDays: 3})
	if err != nil {
		t.Fatalf("backfill failures must not fail scoring: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %+v, want the current day scored on partial coverage", got)
	}
}

func TestScoreTrendsCancellationPropagates(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	store.put(models.CategoryThemes, "2024-05-10", []models.Keyword{{Word: "climate", Count: 3}})

	fetcher := &fakeFetcher{block: make(chan struct{})}
	sc := New(store, fetcher, nil, 50)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := sc.ScoreTrends(ctx, Request{Date: "2024-05-10", WindowDays: 3})
		done <- err
	}()

	// Give the awaited fetches a moment to start blocking, then cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ScoreTrends did not return after cancel")
	}
}

// Loose tier: when strict filtering drops every current keyword (bare
// domains are noise) the numeric-vector-only filter still produces a
// ranking instead of an empty day.
func TestScoreTiersLooseFallback(t *testing.T) {
	t.Parallel()

	current := []models.Keyword{
		{Word: "example.com", Count: 9},
		{Word: "other.org", Count: 4},
		{Word: "1,2,3,4", Count: 7},
	}
	got := scoreTiers(current, nil, 7, 50)
	if len(got) != 2 {
		t.Fatalf("got %+v, want the two domains", got)
	}
	if got[0].Word != "example.com" || *got[0].Score != 100 {
		t.Errorf("got[0] = %+v", got[0])
	}
	for _, kw := range got {
		if kw.Word == "1,2,3,4" {
			t.Error("numeric vector survived the loose tier")
		}
	}
}

func TestVolumeOnlyTier(t *testing.T) {
	t.Parallel()

	current := []models.Keyword{
		{Word: "beta", Count: 2},
		{Word: "http://x.test/a", Count: 50},
		{Word: "alpha", Count: 7},
	}
	got := volumeOnly(current, 1)
	if len(got) != 1 {
		t.Fatalf("got %+v, want exactly topN", got)
	}
	if got[0].Word != "alpha" || got[0].Count != 7 || *got[0].Score != 100 {
		t.Errorf("got[0] = %+v", got[0])
	}
}

// Invariant: scores are integers in [0,100] and a non-empty input always
// ranks its best keyword at exactly 100.
func TestScoreCoreRange(t *testing.T) {
	t.Parallel()

	current := []models.Keyword{
		{Word: "storm", Count: 1},
		{Word: "flood", Count: 300},
		{Word: "quake", Count: 42},
	}
	baseline := map[string]int{"storm": 90, "flood": 3, "drought": 55}

	got := scoreCore(current, baseline, 7, 50)
	if len(got) != 3 {
		t.Fatalf("got %d keywords", len(got))
	}
	sawMax := false
	for _, kw := range got {
		if kw.Score == nil || *kw.Score < 0 || *kw.Score > 100 {
			t.Errorf("score out of range: %+v", kw)
		}
		if *kw.Score == 100 {
			sawMax = true
		}
	}
	if !sawMax {
		t.Error("no keyword scored exactly 100")
	}
}

// Invariant: with a fixed baseline, raising one keyword's current count
// never drops it below a keyword it previously outranked.
func TestScoreCoreMonotonicity(t *testing.T) {
	t.Parallel()

	baseline := map[string]int{"storm": 20, "flood": 20}
	lower := scoreCore([]models.Keyword{
		{Word: "storm", Count: 25},
		{Word: "flood", Count: 20},
	}, baseline, 7, 50)
	higher := scoreCore([]models.Keyword{
		{Word: "storm", Count: 60},
		{Word: "flood", Count: 20},
	}, baseline, 7, 50)

	if lower[0].Word != "storm" {
		t.Fatalf("baseline case: storm should already lead, got %+v", lower)
	}
	if higher[0].Word != "storm" {
		t.Errorf("raising storm's count demoted it: %+v", higher)
	}
	if *higher[0].Score != 100 {
		t.Errorf("leader score = %d, want 100", *higher[0].Score)
	}
}

func TestScoreCoreTieKeepsFirstSeenOrder(t *testing.T) {
	t.Parallel()

	got := scoreCore([]models.Keyword{
		{Word: "alpha", Count: 5},
		{Word: "beta", Count: 5},
	}, nil, 7, 50)
	if got[0].Word != "alpha" || got[1].Word != "beta" {
		t.Errorf("tie order = [%s %s], want first-seen", got[0].Word, got[1].Word)
	}
}

func TestBaselineStats(t *testing.T) {
	t.Parallel()

	mean, stddev := baselineStats(map[string]int{"a": 10, "b": 10})
	if mean != 10 || stddev != 0 {
		t.Errorf("flat baseline: mean=%v stddev=%v, want 10, 0", mean, stddev)
	}

	mean, stddev = baselineStats(nil)
	if mean != 0 || stddev != 0 {
		t.Errorf("empty baseline: mean=%v stddev=%v, want zeros", mean, stddev)
	}

	// Population stddev of {2, 4}: mean 3, variance 1.
	mean, stddev = baselineStats(map[string]int{"a": 2, "b": 4})
	if mean != 3 || stddev != 1 {
		t.Errorf("mean=%v stddev=%v, want 3, 1", mean, stddev)
	}
}
