package ingester

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeFetcher struct {
	mu    sync.Mutex
	days  []time.Time
	block chan struct{} // when set, FetchDailyFor waits until closed
	done  chan time.Time
}

func (f *fakeFetcher) FetchDailyFor(ctx context.Context, day time.Time) error {
	f.mu.Lock()
	f.days = append(f.days, day)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.done != nil {
		f.done <- day
	}
	return nil
}

func (f *fakeFetcher) fetched() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.days...)
}

func TestBackfillPoolProcessesSubmissions(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{done: make(chan time.Time, 4)}
	pool := NewBackfillPool(fetcher, 2, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	day := time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)
	if !pool.Submit(day) {
		t.Fatal("Submit returned false with an empty queue")
	}

	select {
	case got := <-fetcher.done:
		if !got.Equal(day) {
			t.Errorf("fetched day = %v, want %v", got, day)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for backfill")
	}
}

func TestBackfillPoolDropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	// No workers started: the queue alone decides acceptance.
	pool := NewBackfillPool(&fakeFetcher{}, 1, 2)

	day := time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)
	if !pool.Submit(day) || !pool.Submit(day.AddDate(0, 0, 1)) {
		t.Fatal("queue rejected submissions below capacity")
	}
	if pool.Submit(day.AddDate(0, 0, 2)) {
		t.Fatal("Submit returned true on a full queue")
	}
	if pool.QueueDepth() != 2 {
		t.Errorf("QueueDepth = %d, want 2", pool.QueueDepth())
	}
}

func TestBackfillPoolStopsOnCancel(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{done: make(chan time.Time, 1)}
	pool := NewBackfillPool(fetcher, 1, 2)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	cancel()

	// Give the worker a moment to observe cancellation, then submit.
	time.Sleep(20 * time.Millisecond)
	pool.Submit(time.Now())

	select {
	case <-fetcher.done:
		t.Fatal("job processed after cancellation")
	case <-time.After(100 * time.Millisecond):
		// good
	}
}
