package snapshot

import (
	"testing"
	"time"

	"github.com/halcyondev/notchstat/internal/model"
	"github.com/halcyondev/notchstat/internal/pipeline"
)

var testNow = time.Date(2024, 3, 10, 15, 0, 0, 0, time.Local)

func fixedClock() time.Time { return testNow }

func dayKeyAgo(days int) string {
	return model.DateKey(testNow.AddDate(0, 0, -days))
}

// aggFor builds a one-file aggregation landing on the given date.
func aggFor(date string, messages int, tokens int64) model.AggregationResult {
	agg := model.NewAggregationResult()
	day, err := model.DayStart(date)
	if err != nil {
		panic(err)
	}
	f := model.FileStats{
		SessionID:      "sess-" + date,
		FirstTimestamp: day.Add(12 * time.Hour),
		LastTimestamp:  day.Add(13 * time.Hour),
		MessageCount:   messages,
		TokensByModel:  map[string]int64{},
		ModelUsage:     map[string]model.ModelUsage{},
	}
	if tokens > 0 {
		f.TokensByModel["m1"] = tokens
		f.ModelUsage["m1"] = model.ModelUsage{InputTokens: tokens}
	}
	agg.AddFile(f)
	return agg
}

// fakeScan serves canned per-day aggregations and records requested windows.
type fakeScan struct {
	days    map[string]model.AggregationResult
	windows []model.DateRange
}

func (f *fakeScan) scan(r model.DateRange) pipeline.ScanResult {
	f.windows = append(f.windows, r)
	out := model.NewAggregationResult()
	for date, agg := range f.days {
		if !r.Contains(date) {
			continue
		}
		out = mergeAgg(out, agg)
	}
	return pipeline.ScanResult{Agg: out}
}

func mergeAgg(a, b model.AggregationResult) model.AggregationResult {
	for date, act := range b.DailyActivity {
		cur := a.DailyActivity[date]
		cur.Date = date
		cur.MessageCount += act.MessageCount
		cur.SessionCount += act.SessionCount
		cur.ToolCallCount += act.ToolCallCount
		a.DailyActivity[date] = cur
	}
	for date, tokens := range b.DailyModelTokens {
		bucket := a.DailyModelTokens[date]
		if bucket == nil {
			bucket = map[string]int64{}
			a.DailyModelTokens[date] = bucket
		}
		for name, n := range tokens {
			bucket[name] += n
		}
	}
	for name, u := range b.ModelUsage {
		cur := a.ModelUsage[name]
		cur.Add(u)
		a.ModelUsage[name] = cur
	}
	a.Sessions = append(a.Sessions, b.Sessions...)
	a.TotalMessages += b.TotalMessages
	a.SpeculationSavedMs += b.SpeculationSavedMs
	return a
}

func newTestManager(t *testing.T, fs *fakeScan) *Manager {
	t.Helper()
	return &Manager{Dir: t.TempDir(), Scan: fs.scan, Now: fixedClock}
}

func TestRun_FullRebuildWhenNoBase(t *testing.T) {
	fs := &fakeScan{days: map[string]model.AggregationResult{
		dayKeyAgo(5): aggFor(dayKeyAgo(5), 4, 100),
		dayKeyAgo(1): aggFor(dayKeyAgo(1), 2, 50),
		dayKeyAgo(0): aggFor(dayKeyAgo(0), 1, 10),
	}}
	m := newTestManager(t, fs)

	summary, err := m.Run(false)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Mode != "full" {
		t.Errorf("Mode = %q, want full", summary.Mode)
	}

	base, err := Load(m.BasePath())
	if err != nil {
		t.Fatal(err)
	}
	if base.LastComputedDate != dayKeyAgo(1) {
		t.Errorf("base LastComputedDate = %q, want yesterday", base.LastComputedDate)
	}
	// Today's session must not be sealed into the base.
	if base.TotalMessages != 6 {
		t.Errorf("base TotalMessages = %d, want 6", base.TotalMessages)
	}

	live, err := Load(m.LivePath())
	if err != nil {
		t.Fatal(err)
	}
	if live.LastComputedDate != dayKeyAgo(0) {
		t.Errorf("live LastComputedDate = %q, want today", live.LastComputedDate)
	}
	if live.TotalMessages != 7 {
		t.Errorf("live TotalMessages = %d, want 7", live.TotalMessages)
	}
	if got := live.TokensFor(dayKeyAgo(0)); got != 10 {
		t.Errorf("live today tokens = %d, want 10", got)
	}
}

func TestRun_IncrementalExtendsBase(t *testing.T) {
	fs := &fakeScan{days: map[string]model.AggregationResult{
		dayKeyAgo(5): aggFor(dayKeyAgo(5), 4, 100),
		dayKeyAgo(2): aggFor(dayKeyAgo(2), 3, 30),
		dayKeyAgo(0): aggFor(dayKeyAgo(0), 1, 10),
	}}
	m := newTestManager(t, fs)

	// Seed a base sealed through three days ago, holding the old history.
	seed := Merge(Empty(), FromAggregation(aggFor(dayKeyAgo(5), 4, 100)), dayKeyAgo(3))
	if err := Save(m.BasePath(), seed); err != nil {
		t.Fatal(err)
	}

	summary, err := m.Run(false)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Mode != "incremental" {
		t.Errorf("Mode = %q, want incremental", summary.Mode)
	}

	// The history scan window must start after the seal, so the already
	// sealed day-5 session is not counted twice.
	if len(fs.windows) < 1 {
		t.Fatal("no scan windows recorded")
	}
	histWindow := fs.windows[0]
	if histWindow.From != dayKeyAgo(2) {
		t.Errorf("incremental window From = %q, want %q", histWindow.From, dayKeyAgo(2))
	}
	if histWindow.To != dayKeyAgo(1) {
		t.Errorf("incremental window To = %q, want %q", histWindow.To, dayKeyAgo(1))
	}

	base, err := Load(m.BasePath())
	if err != nil {
		t.Fatal(err)
	}
	if base.TotalMessages != 7 {
		t.Errorf("base TotalMessages = %d, want 7 (4 sealed + 3 new)", base.TotalMessages)
	}
	if got := base.TokensFor(dayKeyAgo(5)); got != 100 {
		t.Errorf("sealed day tokens = %d, want 100 (no double counting)", got)
	}

	live, err := Load(m.LivePath())
	if err != nil {
		t.Fatal(err)
	}
	if live.TotalMessages != 8 {
		t.Errorf("live TotalMessages = %d, want 8", live.TotalMessages)
	}
}

func TestRun_SealedBaseLeftAlone(t *testing.T) {
	fs := &fakeScan{days: map[string]model.AggregationResult{
		dayKeyAgo(0): aggFor(dayKeyAgo(0), 2, 20),
	}}
	m := newTestManager(t, fs)

	seed := Merge(Empty(), FromAggregation(aggFor(dayKeyAgo(3), 4, 100)), dayKeyAgo(1))
	if err := Save(m.BasePath(), seed); err != nil {
		t.Fatal(err)
	}

	summary, err := m.Run(false)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Mode != "none" {
		t.Errorf("Mode = %q, want none", summary.Mode)
	}

	// Only the live window should have been scanned.
	if len(fs.windows) != 1 {
		t.Fatalf("scan windows = %d, want 1 (today only)", len(fs.windows))
	}
	if fs.windows[0].From != dayKeyAgo(0) || fs.windows[0].To != dayKeyAgo(0) {
		t.Errorf("live window = %+v, want today..today", fs.windows[0])
	}
}

func TestRun_LiveRecomputedNotAccumulated(t *testing.T) {
	fs := &fakeScan{days: map[string]model.AggregationResult{
		dayKeyAgo(0): aggFor(dayKeyAgo(0), 2, 20),
	}}
	m := newTestManager(t, fs)

	seed := Merge(Empty(), FromAggregation(aggFor(dayKeyAgo(3), 4, 100)), dayKeyAgo(1))
	if err := Save(m.BasePath(), seed); err != nil {
		t.Fatal(err)
	}

	// Two runs in a row: the live overlay must not compound today's data.
	if _, err := m.Run(false); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Run(false); err != nil {
		t.Fatal(err)
	}

	live, err := Load(m.LivePath())
	if err != nil {
		t.Fatal(err)
	}
	if live.TotalMessages != 6 {
		t.Errorf("live TotalMessages = %d, want 6 (4 base + 2 today, once)", live.TotalMessages)
	}
	if got := live.TokensFor(dayKeyAgo(0)); got != 20 {
		t.Errorf("live today tokens = %d, want 20", got)
	}
}

func TestRun_ForceDiscardsBase(t *testing.T) {
	fs := &fakeScan{days: map[string]model.AggregationResult{
		dayKeyAgo(5): aggFor(dayKeyAgo(5), 4, 100),
	}}
	m := newTestManager(t, fs)

	// Seed a base containing a day the logs no longer have.
	stale := Merge(Empty(), FromAggregation(aggFor(dayKeyAgo(9), 50, 999)), dayKeyAgo(1))
	if err := Save(m.BasePath(), stale); err != nil {
		t.Fatal(err)
	}

	summary, err := m.Run(true)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Mode != "full" {
		t.Errorf("Mode = %q, want full", summary.Mode)
	}

	base, err := Load(m.BasePath())
	if err != nil {
		t.Fatal(err)
	}
	if base.TotalMessages != 4 {
		t.Errorf("base TotalMessages = %d, want 4 (stale data discarded)", base.TotalMessages)
	}
	if got := base.TokensFor(dayKeyAgo(9)); got != 0 {
		t.Errorf("deleted day tokens = %d, want 0 after force", got)
	}
}

func TestRun_LegacyMigration(t *testing.T) {
	fs := &fakeScan{days: map[string]model.AggregationResult{
		dayKeyAgo(0): aggFor(dayKeyAgo(0), 1, 10),
	}}
	m := newTestManager(t, fs)

	legacy := Merge(Empty(), FromAggregation(aggFor(dayKeyAgo(4), 6, 200)), dayKeyAgo(1))
	if err := Save(m.legacyPath(), legacy); err != nil {
		t.Fatal(err)
	}

	summary, err := m.Run(false)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Mode != "migrated" {
		t.Errorf("Mode = %q, want migrated", summary.Mode)
	}

	base, err := Load(m.BasePath())
	if err != nil {
		t.Fatal(err)
	}
	if base.TotalMessages != 6 {
		t.Errorf("base TotalMessages = %d, want 6 (adopted from legacy)", base.TotalMessages)
	}
	// Adoption must not trigger a history rescan when already sealed.
	if len(fs.windows) != 1 {
		t.Errorf("scan windows = %d, want 1 (today only)", len(fs.windows))
	}
}

func TestRun_LegacyFromTodayRejected(t *testing.T) {
	fs := &fakeScan{days: map[string]model.AggregationResult{
		dayKeyAgo(2): aggFor(dayKeyAgo(2), 3, 30),
		dayKeyAgo(0): aggFor(dayKeyAgo(0), 1, 10),
	}}
	m := newTestManager(t, fs)

	// A legacy cache computed today would bake today's partial data into
	// history; it must be ignored in favor of a full rebuild.
	legacy := Merge(Empty(), FromAggregation(aggFor(dayKeyAgo(0), 9, 900)), dayKeyAgo(0))
	if err := Save(m.legacyPath(), legacy); err != nil {
		t.Fatal(err)
	}

	summary, err := m.Run(false)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Mode != "full" {
		t.Errorf("Mode = %q, want full (legacy from today rejected)", summary.Mode)
	}

	live, err := Load(m.LivePath())
	if err != nil {
		t.Fatal(err)
	}
	if live.TotalMessages != 4 {
		t.Errorf("live TotalMessages = %d, want 4 (3 history + 1 today)", live.TotalMessages)
	}
}

func TestRun_CorruptBaseRebuilt(t *testing.T) {
	fs := &fakeScan{days: map[string]model.AggregationResult{
		dayKeyAgo(2): aggFor(dayKeyAgo(2), 3, 30),
	}}
	m := newTestManager(t, fs)

	if err := Save(m.BasePath(), Empty()); err != nil {
		t.Fatal(err)
	}
	// Overwrite with garbage.
	if err := Save(m.BasePath(), Snapshot{Version: 99}); err != nil {
		t.Fatal(err)
	}

	summary, err := m.Run(false)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Mode != "full" {
		t.Errorf("Mode = %q, want full after unreadable base", summary.Mode)
	}
}
