package pipeline

import (
	"os"
	"time"

	"github.com/halcyondev/notchstat/internal/model"
	"github.com/halcyondev/notchstat/internal/source"
	"github.com/halcyondev/notchstat/internal/store"
)

// ScanResult holds the aggregate plus bookkeeping counters for log output.
type ScanResult struct {
	Agg          model.AggregationResult
	FilesSeen    int
	FilesParsed  int
	FilesSkipped int // mtime cutoff or date out of range
	CacheHits    int
	ParseErrors  int
	FileErrors   int
}

// Scanner runs the discovery → parse → aggregate pipeline over the
// configured roots. Scanning is sequential: invocations are infrequent and
// a scan window's worth of logs is small.
type Scanner struct {
	Roots source.Roots

	// Cache, when set, skips reparsing files whose mtime+size fingerprint
	// is unchanged. Optional; all cache failures degrade to parsing.
	Cache *store.ParseCache
}

// Scan discovers and reduces all session files within the date range.
// Scanning is best-effort: unreadable files and malformed lines reduce the
// result, they never fail it.
func (s Scanner) Scan(r model.DateRange) ScanResult {
	discovered := source.Discover(s.Roots)
	result := ScanResult{FilesSeen: len(discovered)}

	// Files modified before the window start cannot contain a first message
	// inside it. This is an optimization only; the authoritative filter is
	// the parsed first-message date below.
	var cutoff time.Time
	if r.From != "" {
		if t, err := model.DayStart(r.From); err == nil {
			cutoff = t
		}
	}

	var collected []model.FileStats
	for _, df := range discovered {
		info, err := os.Stat(df.Path)
		if err != nil {
			result.FileErrors++
			continue
		}
		if !cutoff.IsZero() && info.ModTime().Before(cutoff) {
			result.FilesSkipped++
			continue
		}

		stats, ok := s.lookupCached(df.Path, info)
		if ok {
			result.CacheHits++
		} else {
			pr := source.ParseFile(df)
			if pr.Err != nil {
				result.FileErrors++
				continue
			}
			result.FilesParsed++
			result.ParseErrors += pr.ParseErrors
			stats = pr.Stats
			s.storeCached(stats, info)
		}

		if stats.MessageCount == 0 || !r.Contains(stats.Date()) {
			result.FilesSkipped++
			continue
		}
		collected = append(collected, stats)
	}

	result.Agg = Aggregate(collected, r)
	return result
}

func (s Scanner) lookupCached(path string, info os.FileInfo) (model.FileStats, bool) {
	if s.Cache == nil {
		return model.FileStats{}, false
	}
	return s.Cache.Lookup(path, info.ModTime().UnixNano(), info.Size())
}

func (s Scanner) storeCached(stats model.FileStats, info os.FileInfo) {
	if s.Cache == nil {
		return
	}
	_ = s.Cache.Store(stats, info.ModTime().UnixNano(), info.Size())
}
