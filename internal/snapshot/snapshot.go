// Package snapshot owns the persisted statistics cache: the sealed base
// (all days through yesterday) and the live overlay (base plus a fresh scan
// of today), both stored as versioned JSON files with atomic-write semantics.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/halcyondev/notchstat/internal/model"

	"github.com/samber/lo"
)

// Version is the expected cache schema version. A snapshot with any other
// version is treated exactly like a missing file.
const Version = 2

// ErrVersion reports a cache file written with a different schema version.
var ErrVersion = errors.New("snapshot: version mismatch")

// Snapshot is the persisted aggregate state. It is created empty, grown only
// by additive merges, and never shrinks.
type Snapshot struct {
	Version                     int                          `json:"version"`
	LastComputedDate            string                       `json:"lastComputedDate,omitempty"`
	DailyActivity               []model.DailyActivity        `json:"dailyActivity"`
	DailyModelTokens            []model.DailyModelTokens     `json:"dailyModelTokens"`
	ModelUsage                  map[string]model.ModelUsage  `json:"modelUsage"`
	TotalSessions               int                          `json:"totalSessions"`
	TotalMessages               int                          `json:"totalMessages"`
	LongestSession              *model.SessionSummary        `json:"longestSession,omitempty"`
	FirstSessionDate            string                       `json:"firstSessionDate,omitempty"`
	HourCounts                  map[string]int               `json:"hourCounts"`
	TotalSpeculationTimeSavedMs int64                        `json:"totalSpeculationTimeSavedMs"`
}

// Empty returns a fresh snapshot with no data.
func Empty() Snapshot {
	return Snapshot{
		Version:    Version,
		ModelUsage: make(map[string]model.ModelUsage),
		HourCounts: make(map[string]int),
	}
}

// FromAggregation converts a scan reduction into snapshot form. The result
// carries no lastComputedDate; that is always assigned by Merge.
func FromAggregation(agg model.AggregationResult) Snapshot {
	s := Empty()

	for _, date := range sortedKeys(agg.DailyActivity) {
		s.DailyActivity = append(s.DailyActivity, agg.DailyActivity[date])
	}
	for _, date := range sortedKeys(agg.DailyModelTokens) {
		s.DailyModelTokens = append(s.DailyModelTokens, model.DailyModelTokens{
			Date:          date,
			TokensByModel: copyTokens(agg.DailyModelTokens[date]),
		})
	}
	for name, usage := range agg.ModelUsage {
		s.ModelUsage[name] = usage
	}
	for h, n := range agg.HourCounts {
		if n > 0 {
			s.HourCounts[strconv.Itoa(h)] = n
		}
	}

	s.TotalSessions = len(agg.Sessions)
	s.TotalMessages = agg.TotalMessages
	s.TotalSpeculationTimeSavedMs = agg.SpeculationSavedMs

	for _, sess := range agg.Sessions {
		sess := sess
		if s.LongestSession == nil || sess.DurationMs > s.LongestSession.DurationMs {
			s.LongestSession = &sess
		}
		date := model.DateKey(sess.FirstTimestamp)
		if s.FirstSessionDate == "" || date < s.FirstSessionDate {
			s.FirstSessionDate = date
		}
	}

	return s
}

// Merge combines two snapshots field by field: daily maps union with
// additive overlap, totals sum, capacity-like fields take the max, and the
// earliest first-session date and longest session win. The result's
// lastComputedDate is always the caller-supplied value, never derived.
//
// Merge is associative and commutative (ignoring lastComputedDate), which is
// what makes incremental cache updates safe to re-run.
func Merge(a, b Snapshot, lastComputedDate string) Snapshot {
	out := Empty()
	out.LastComputedDate = lastComputedDate

	out.DailyActivity = mergeActivity(a.DailyActivity, b.DailyActivity)
	out.DailyModelTokens = mergeModelTokens(a.DailyModelTokens, b.DailyModelTokens)

	for name, usage := range a.ModelUsage {
		out.ModelUsage[name] = usage
	}
	for name, usage := range b.ModelUsage {
		total := out.ModelUsage[name]
		total.Add(usage)
		out.ModelUsage[name] = total
	}

	out.TotalSessions = a.TotalSessions + b.TotalSessions
	out.TotalMessages = a.TotalMessages + b.TotalMessages
	out.TotalSpeculationTimeSavedMs = a.TotalSpeculationTimeSavedMs + b.TotalSpeculationTimeSavedMs

	out.LongestSession = longerSession(a.LongestSession, b.LongestSession)
	out.FirstSessionDate = earlierDate(a.FirstSessionDate, b.FirstSessionDate)

	for h, n := range a.HourCounts {
		out.HourCounts[h] += n
	}
	for h, n := range b.HourCounts {
		out.HourCounts[h] += n
	}

	return out
}

func mergeActivity(a, b []model.DailyActivity) []model.DailyActivity {
	byDate := make(map[string]model.DailyActivity, len(a)+len(b))
	for _, d := range a {
		byDate[d.Date] = d
	}
	for _, d := range b {
		cur := byDate[d.Date]
		cur.Date = d.Date
		cur.MessageCount += d.MessageCount
		cur.SessionCount += d.SessionCount
		cur.ToolCallCount += d.ToolCallCount
		byDate[d.Date] = cur
	}

	out := make([]model.DailyActivity, 0, len(byDate))
	for _, date := range sortedKeys(byDate) {
		out = append(out, byDate[date])
	}
	return out
}

func mergeModelTokens(a, b []model.DailyModelTokens) []model.DailyModelTokens {
	byDate := make(map[string]map[string]int64, len(a)+len(b))
	for _, d := range a {
		byDate[d.Date] = copyTokens(d.TokensByModel)
	}
	for _, d := range b {
		bucket := byDate[d.Date]
		if bucket == nil {
			bucket = make(map[string]int64, len(d.TokensByModel))
			byDate[d.Date] = bucket
		}
		for name, tokens := range d.TokensByModel {
			bucket[name] += tokens
		}
	}

	out := make([]model.DailyModelTokens, 0, len(byDate))
	for _, date := range sortedKeys(byDate) {
		out = append(out, model.DailyModelTokens{Date: date, TokensByModel: byDate[date]})
	}
	return out
}

func longerSession(a, b *model.SessionSummary) *model.SessionSummary {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.DurationMs > a.DurationMs:
		return b
	default:
		return a
	}
}

func earlierDate(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case b < a:
		return b
	default:
		return a
	}
}

// ActivityFor returns the day's activity entry, if any.
func (s Snapshot) ActivityFor(date string) (model.DailyActivity, bool) {
	for _, d := range s.DailyActivity {
		if d.Date == date {
			return d, true
		}
	}
	return model.DailyActivity{}, false
}

// TokensFor returns the day's summed token total across all models.
func (s Snapshot) TokensFor(date string) int64 {
	for _, d := range s.DailyModelTokens {
		if d.Date == date {
			return d.TotalTokens()
		}
	}
	return 0
}

// AllTimeTokens sums input+output tokens across all models.
func (s Snapshot) AllTimeTokens() int64 {
	return lo.SumBy(lo.Values(s.ModelUsage), func(u model.ModelUsage) int64 {
		return u.InputTokens + u.OutputTokens
	})
}

// Load reads and decodes a snapshot file. A version mismatch returns
// ErrVersion; callers treat any error as "no snapshot".
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // cache path is local configuration
	if err != nil {
		return Snapshot{}, err
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}
	if s.Version != Version {
		return Snapshot{}, fmt.Errorf("%w: got %d, want %d", ErrVersion, s.Version, Version)
	}
	if s.ModelUsage == nil {
		s.ModelUsage = make(map[string]model.ModelUsage)
	}
	if s.HourCounts == nil {
		s.HourCounts = make(map[string]int)
	}
	return s, nil
}

// Save writes a snapshot atomically: encode to a uniquely-named temp file in
// the target directory, then rename into place. A half-written cache file
// would poison every subsequent reader, so write failures clean up the temp
// file and propagate.
func Save(path string, s Snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(s); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func copyTokens(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
