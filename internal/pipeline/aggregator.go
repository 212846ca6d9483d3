// Package pipeline orchestrates session discovery, parsing, and aggregation.
package pipeline

import (
	"github.com/halcyondev/notchstat/internal/model"
)

// Aggregate reduces file statistics into daily and global aggregates,
// keeping only files whose first-message date falls inside the range.
//
// It is a pure function: every output field merges associatively and
// commutatively with the matching snapshot field, so aggregating any
// partition of a file set and merging the parts yields the same result
// as aggregating the whole set at once.
func Aggregate(files []model.FileStats, r model.DateRange) model.AggregationResult {
	agg := model.NewAggregationResult()
	for _, f := range files {
		// A file with no non-sidechain messages contributes nothing.
		if f.MessageCount == 0 {
			continue
		}
		if !r.Contains(f.Date()) {
			continue
		}
		agg.AddFile(f)
	}
	return agg
}
