// Package stats derives presentation-ready figures from the live snapshot.
package stats

import (
	"strconv"
	"time"

	"github.com/halcyondev/notchstat/internal/model"
	"github.com/halcyondev/notchstat/internal/snapshot"

	"github.com/samber/lo"
)

// recentDayCount is how many non-empty days back the recent-activity strip
// reaches.
const recentDayCount = 7

// heatmapDayCount is the size of the calendar heatmap window.
const heatmapDayCount = 84

// Reader produces derived statistics for display surfaces. Reads never
// mutate cache files; freshness for today comes from a rescan of today's
// logs layered over the snapshot.
type Reader struct {
	LivePath string
	Scan     snapshot.ScanFunc

	// Now is the clock, overridable in tests. Nil means time.Now.
	Now func() time.Time
}

func (r *Reader) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Read returns derived stats, or nil when no live snapshot exists yet (the
// caller shows an empty state and waits for the first refresh).
func (r *Reader) Read() (*model.DerivedStats, error) {
	live, err := snapshot.Load(r.LivePath)
	if err != nil {
		return nil, nil //nolint:nilnil // missing cache is an expected state
	}

	now := r.now()
	today := model.DateKey(now)

	// Fresh rescan of today. The snapshot's today entry may be minutes old;
	// token figures on screen should not be.
	fresh := r.Scan(model.DateRange{From: today, To: today})
	freshToday := dayTokens(fresh.Agg.DailyModelTokens[today])
	cachedToday := live.TokensFor(today)

	// The snapshot already includes its own (possibly stale) view of today,
	// so only the growth since then is added on top. A shrink (deleted log
	// files) is ignored rather than subtracted.
	extra := freshToday - cachedToday
	if extra < 0 {
		extra = 0
	}

	out := &model.DerivedStats{
		Date:               today,
		TodayTokens:        freshToday,
		AllTimeTokens:      live.AllTimeTokens() + extra,
		AllTimeSessions:    live.TotalSessions,
		AllTimeMessages:    live.TotalMessages,
		LongestSession:     live.LongestSession,
		FirstSessionDate:   live.FirstSessionDate,
		SpeculationSavedMs: live.TotalSpeculationTimeSavedMs,
		GeneratedAt:        now,
	}

	for h := range out.HourCounts {
		out.HourCounts[h] = live.HourCounts[strconv.Itoa(h)]
	}

	// Day-level counts come from the snapshot; only token figures get the
	// fresh-rescan treatment. When today has no entry yet, the most recent
	// day's counts are shown instead.
	if act, ok := live.ActivityFor(today); ok {
		out.MessageCount = act.MessageCount
		out.SessionCount = act.SessionCount
		out.ToolCallCount = act.ToolCallCount
	} else if n := len(live.DailyActivity); n > 0 {
		recent := live.DailyActivity[n-1]
		out.Date = recent.Date
		out.MessageCount = recent.MessageCount
		out.SessionCount = recent.SessionCount
		out.ToolCallCount = recent.ToolCallCount
	}

	// Last non-empty day before today.
	for i := len(live.DailyActivity) - 1; i >= 0; i-- {
		d := live.DailyActivity[i]
		if d.Date != today && (d.MessageCount > 0 || d.SessionCount > 0) {
			out.LastActiveDate = d.Date
			break
		}
	}

	out.Record = recordDay(live, today, freshToday)
	out.RecentDays = recentDays(live, today, freshToday)
	out.Heatmap = heatmap(live, now, today, freshToday)

	return out, nil
}

// recordDay finds the highest-token day, comparing sealed history against
// today's fresh count. Ties go to today so a matched record reads as "record
// day: today".
func recordDay(live snapshot.Snapshot, today string, freshToday int64) model.RecordDay {
	record := model.RecordDay{Date: today, Tokens: freshToday}
	for _, d := range live.DailyModelTokens {
		if d.Date == today {
			continue
		}
		if t := d.TotalTokens(); t > record.Tokens {
			record = model.RecordDay{Date: d.Date, Tokens: t}
		}
	}
	return record
}

// recentDays returns the last few days with any activity, most recent first.
func recentDays(live snapshot.Snapshot, today string, freshToday int64) []model.HeatmapEntry {
	nonEmpty := lo.Filter(live.DailyActivity, func(d model.DailyActivity, _ int) bool {
		return d.MessageCount > 0 || d.SessionCount > 0
	})
	if len(nonEmpty) > recentDayCount {
		nonEmpty = nonEmpty[len(nonEmpty)-recentDayCount:]
	}

	entries := lo.Map(nonEmpty, func(d model.DailyActivity, _ int) model.HeatmapEntry {
		tokens := live.TokensFor(d.Date)
		if d.Date == today {
			tokens = freshToday
		}
		return model.HeatmapEntry{Date: d.Date, Messages: d.MessageCount, Tokens: tokens}
	})
	return lo.Reverse(entries)
}

// heatmap builds a dense calendar window ending today. Days with no
// activity appear as zero entries so renderers need no gap logic.
func heatmap(live snapshot.Snapshot, now time.Time, today string, freshToday int64) []model.HeatmapEntry {
	activity := lo.SliceToMap(live.DailyActivity, func(d model.DailyActivity) (string, model.DailyActivity) {
		return d.Date, d
	})
	tokens := lo.SliceToMap(live.DailyModelTokens, func(d model.DailyModelTokens) (string, int64) {
		return d.Date, d.TotalTokens()
	})
	tokens[today] = freshToday

	entries := make([]model.HeatmapEntry, 0, heatmapDayCount)
	for i := heatmapDayCount - 1; i >= 0; i-- {
		date := model.DateKey(now.AddDate(0, 0, -i))
		entries = append(entries, model.HeatmapEntry{
			Date:     date,
			Messages: activity[date].MessageCount,
			Tokens:   tokens[date],
		})
	}
	return entries
}

func dayTokens(byModel map[string]int64) int64 {
	var total int64
	for _, n := range byModel {
		total += n
	}
	return total
}
