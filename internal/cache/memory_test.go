package cache

import (
	"context"
	"testing"
	"time"

	"gkgtrends/internal/models"
)

func TestMemoryGetSet(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	if got, err := m.Get(ctx, "absent"); err != nil || got != nil {
		t.Fatalf("Get miss = (%v, %v), want (nil, nil)", got, err)
	}

	if err := m.SetWithTTL(ctx, "k", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	if got, err := m.Get(ctx, "k"); err != nil || string(got) != "v1" {
		t.Fatalf("Get = (%s, %v), want v1", got, err)
	}

	// Overwrite replaces the value in place.
	if err := m.SetWithTTL(ctx, "k", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL overwrite: %v", err)
	}
	if got, _ := m.Get(ctx, "k"); string(got) != "v2" {
		t.Fatalf("Get after overwrite = %s, want v2", got)
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	if err := m.SetWithTTL(ctx, "short", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	if got, _ := m.Get(ctx, "short"); got == nil {
		t.Fatal("entry expired before its TTL")
	}

	time.Sleep(25 * time.Millisecond)

	if got, err := m.Get(ctx, "short"); err != nil || got != nil {
		t.Fatalf("Get after expiry = (%s, %v), want (nil, nil)", got, err)
	}
}

func TestMemoryDel(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	m.SetWithTTL(ctx, "a", []byte("1"), time.Minute)
	m.SetWithTTL(ctx, "b", []byte("2"), time.Minute)

	if err := m.Del(ctx, "a", "b", "missing"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if got, _ := m.Get(ctx, "a"); got != nil {
		t.Error("a survived Del")
	}
	if got, _ := m.Get(ctx, "b"); got != nil {
		t.Error("b survived Del")
	}
}

func TestKeyFormats(t *testing.T) {
	t.Parallel()

	if got, want := RealtimeKey("2024-05-01", models.CategoryThemes), "realtime:2024-05-01:themes"; got != want {
		t.Errorf("RealtimeKey = %q, want %q", got, want)
	}
	if got, want := DailyKey("2024-05-01", models.CategoryAll), "daily:2024-05-01:all"; got != want {
		t.Errorf("DailyKey = %q, want %q", got, want)
	}
	if got, want := RankedKey("2024-05-01", models.CategoryPersons, 7, 50), "ranked:2024-05-01:persons:7:50"; got != want {
		t.Errorf("RankedKey = %q, want %q", got, want)
	}

	keys := DailyKeysForDate("2024-05-01")
	want := []string{
		"daily:2024-05-01:all",
		"daily:2024-05-01:themes",
		"daily:2024-05-01:persons",
		"daily:2024-05-01:orgs",
		"daily:2024-05-01:documents",
	}
	if len(keys) != len(want) {
		t.Fatalf("DailyKeysForDate returned %d keys, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d = %q, want %q", i, keys[i], want[i])
		}
	}
}
