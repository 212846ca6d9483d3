package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/halcyondev/notchstat/internal/model"
)

func openTestCache(t *testing.T) *ParseCache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "parse-cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleStats(path string) model.FileStats {
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return model.FileStats{
		Path:           path,
		SessionID:      "s1",
		FirstTimestamp: ts,
		LastTimestamp:  ts.Add(time.Minute),
		MessageCount:   4,
		TokensByModel:  map[string]int64{"m1": 100},
	}
}

func TestLookup_RoundTrip(t *testing.T) {
	c := openTestCache(t)

	want := sampleStats("/logs/a.jsonl")
	if err := c.Store(want, 1000, 50); err != nil {
		t.Fatal(err)
	}

	got, ok := c.Lookup("/logs/a.jsonl", 1000, 50)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.SessionID != want.SessionID || got.MessageCount != want.MessageCount {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.TokensByModel["m1"] != 100 {
		t.Errorf("tokens[m1] = %d, want 100", got.TokensByModel["m1"])
	}
}

func TestLookup_MissOnChangedFingerprint(t *testing.T) {
	c := openTestCache(t)

	if err := c.Store(sampleStats("/logs/a.jsonl"), 1000, 50); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Lookup("/logs/a.jsonl", 2000, 50); ok {
		t.Error("expected miss after mtime change")
	}
	if _, ok := c.Lookup("/logs/a.jsonl", 1000, 60); ok {
		t.Error("expected miss after size change")
	}
	if _, ok := c.Lookup("/logs/b.jsonl", 1000, 50); ok {
		t.Error("expected miss for unknown path")
	}
}

func TestStore_Replaces(t *testing.T) {
	c := openTestCache(t)

	first := sampleStats("/logs/a.jsonl")
	if err := c.Store(first, 1000, 50); err != nil {
		t.Fatal(err)
	}

	second := first
	second.MessageCount = 9
	if err := c.Store(second, 2000, 80); err != nil {
		t.Fatal(err)
	}

	if n, err := c.Count(); err != nil || n != 1 {
		t.Fatalf("Count = %d (%v), want 1", n, err)
	}
	got, ok := c.Lookup("/logs/a.jsonl", 2000, 80)
	if !ok || got.MessageCount != 9 {
		t.Errorf("Lookup = (%+v, %v), want updated row", got, ok)
	}
}

func TestPrune(t *testing.T) {
	c := openTestCache(t)

	for _, path := range []string{"/logs/a.jsonl", "/logs/b.jsonl", "/logs/c.jsonl"} {
		if err := c.Store(sampleStats(path), 1000, 50); err != nil {
			t.Fatal(err)
		}
	}

	live := map[string]struct{}{"/logs/b.jsonl": {}}
	if err := c.Prune(live); err != nil {
		t.Fatal(err)
	}

	if n, err := c.Count(); err != nil || n != 1 {
		t.Fatalf("Count = %d (%v), want 1 after prune", n, err)
	}
	if _, ok := c.Lookup("/logs/b.jsonl", 1000, 50); !ok {
		t.Error("surviving row evicted by prune")
	}
}
