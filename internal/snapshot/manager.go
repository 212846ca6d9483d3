package snapshot

import (
	"path/filepath"
	"time"

	"github.com/halcyondev/notchstat/internal/model"
	"github.com/halcyondev/notchstat/internal/pipeline"
)

// Cache file names under the cache directory. stats.json is the legacy
// single-file layout from before the base/live split.
const (
	BaseFile   = "stats-base.json"
	LiveFile   = "stats-live.json"
	LegacyFile = "stats.json"
)

// ScanFunc runs a scan over the given date window.
type ScanFunc func(model.DateRange) pipeline.ScanResult

// Manager maintains the two-tier cache. Every Run seals history into the
// base snapshot as needed, then rebuilds the live overlay as base plus a
// fresh scan of today. The live overlay is recomputed from scratch each
// run and is never merged forward into anything.
type Manager struct {
	Dir  string
	Scan ScanFunc

	// Now is the clock, overridable in tests. Nil means time.Now.
	Now func() time.Time
}

// RunSummary describes what a single Run did, for one-line log output.
type RunSummary struct {
	Mode             string // "full", "incremental", "migrated", or "none"
	FilesParsed      int
	CacheHits        int
	ParseErrors      int
	TodaySessions    int
	TotalSessions    int
	TotalMessages    int
	LastComputedDate string
}

// BasePath returns the sealed base snapshot path.
func (m *Manager) BasePath() string { return filepath.Join(m.Dir, BaseFile) }

// LivePath returns the live overlay snapshot path.
func (m *Manager) LivePath() string { return filepath.Join(m.Dir, LiveFile) }

func (m *Manager) legacyPath() string { return filepath.Join(m.Dir, LegacyFile) }

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Run executes one refresh pass.
//
// Base handling: a missing or unreadable base first tries migration from the
// legacy single-file cache; failing that it is rebuilt from a full history
// scan. An existing base is extended incrementally over (lastComputedDate,
// yesterday], or with force discarded and rebuilt. A base already sealed
// through yesterday is left alone.
//
// The live overlay is then always recomputed as base merged with a fresh
// scan of today, and persisted. Persistence failures are the only fatal
// errors; scan problems degrade the result but never fail the run.
func (m *Manager) Run(force bool) (RunSummary, error) {
	now := m.now()
	today := model.DateKey(now)
	yesterday := model.DateKey(now.AddDate(0, 0, -1))

	var summary RunSummary
	summary.Mode = "none"

	base, ok := m.loadBase()
	if !ok {
		if migrated, found := m.loadLegacy(yesterday); found {
			base = migrated
			summary.Mode = "migrated"
			if err := Save(m.BasePath(), base); err != nil {
				return summary, err
			}
			ok = true
		}
	}

	switch {
	case force || !ok || base.LastComputedDate == "":
		// Full rebuild: everything through yesterday onto an empty base.
		res := m.Scan(model.DateRange{To: yesterday})
		base = Merge(Empty(), FromAggregation(res.Agg), yesterday)
		summary.Mode = "full"
		summary.absorb(res)
		if err := Save(m.BasePath(), base); err != nil {
			return summary, err
		}

	case base.LastComputedDate < yesterday:
		// Incremental: only the window after the seal, through yesterday.
		// File date attribution keeps this window disjoint from the base.
		from := model.NextDate(base.LastComputedDate)
		res := m.Scan(model.DateRange{From: from, To: yesterday})
		base = Merge(base, FromAggregation(res.Agg), yesterday)
		summary.Mode = "incremental"
		summary.absorb(res)
		if err := Save(m.BasePath(), base); err != nil {
			return summary, err
		}
	}

	// Live overlay: base plus today, computed fresh every run.
	todayRes := m.Scan(model.DateRange{From: today, To: today})
	live := Merge(base, FromAggregation(todayRes.Agg), today)
	summary.absorb(todayRes)
	summary.TodaySessions = len(todayRes.Agg.Sessions)
	summary.TotalSessions = live.TotalSessions
	summary.TotalMessages = live.TotalMessages
	summary.LastComputedDate = base.LastComputedDate

	if err := Save(m.LivePath(), live); err != nil {
		return summary, err
	}
	return summary, nil
}

// loadBase loads the sealed base snapshot. Any failure, including a version
// mismatch, reads as "no base".
func (m *Manager) loadBase() (Snapshot, bool) {
	s, err := Load(m.BasePath())
	if err != nil {
		return Snapshot{}, false
	}
	return s, true
}

// loadLegacy adopts the old single-file cache as the base, but only when its
// seal date does not reach into today. A legacy file computed today would
// bake today's partial data into history and double count once the live
// overlay rescans it.
func (m *Manager) loadLegacy(yesterday string) (Snapshot, bool) {
	s, err := Load(m.legacyPath())
	if err != nil {
		return Snapshot{}, false
	}
	if s.LastComputedDate == "" || s.LastComputedDate > yesterday {
		return Snapshot{}, false
	}
	return s, true
}

func (r *RunSummary) absorb(res pipeline.ScanResult) {
	r.FilesParsed += res.FilesParsed
	r.CacheHits += res.CacheHits
	r.ParseErrors += res.ParseErrors
}
