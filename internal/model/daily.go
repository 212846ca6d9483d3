package model

// DailyActivity holds counts for one calendar day. Counts only ever grow:
// merges are additive per date.
type DailyActivity struct {
	Date          string `json:"date"`
	MessageCount  int    `json:"messageCount"`
	SessionCount  int    `json:"sessionCount"`
	ToolCallCount int    `json:"toolCallCount"`
}

// DailyModelTokens maps model name to summed input+output tokens for one day.
type DailyModelTokens struct {
	Date          string           `json:"date"`
	TokensByModel map[string]int64 `json:"tokensByModel"`
}

// TotalTokens sums across all models for the day.
func (d DailyModelTokens) TotalTokens() int64 {
	var total int64
	for _, n := range d.TokensByModel {
		total += n
	}
	return total
}

// AggregationResult is the reduction of a set of session files. Every field
// merges associatively and commutatively with the matching snapshot field, so
// aggregating a superset or a disjoint set and merging is always safe.
type AggregationResult struct {
	DailyActivity      map[string]DailyActivity
	DailyModelTokens   map[string]map[string]int64
	ModelUsage         map[string]ModelUsage
	Sessions           []SessionSummary
	HourCounts         [24]int
	TotalMessages      int
	SpeculationSavedMs int64
}

// NewAggregationResult returns an empty result with maps initialized.
func NewAggregationResult() AggregationResult {
	return AggregationResult{
		DailyActivity:    make(map[string]DailyActivity),
		DailyModelTokens: make(map[string]map[string]int64),
		ModelUsage:       make(map[string]ModelUsage),
	}
}

// AddFile folds one file reduction into the aggregate. The file's daily
// contributions land on its first-message date; one file counts as one
// session regardless of message count.
func (a *AggregationResult) AddFile(f FileStats) {
	day := f.Date()

	act := a.DailyActivity[day]
	act.Date = day
	act.MessageCount += f.MessageCount
	act.SessionCount++
	act.ToolCallCount += f.ToolCallCount
	a.DailyActivity[day] = act

	if len(f.TokensByModel) > 0 {
		bucket := a.DailyModelTokens[day]
		if bucket == nil {
			bucket = make(map[string]int64)
			a.DailyModelTokens[day] = bucket
		}
		for name, tokens := range f.TokensByModel {
			bucket[name] += tokens
		}
	}

	for name, usage := range f.ModelUsage {
		total := a.ModelUsage[name]
		total.Add(usage)
		a.ModelUsage[name] = total
	}

	for h, n := range f.HourCounts {
		a.HourCounts[h] += n
	}

	a.Sessions = append(a.Sessions, f.Summary())
	a.TotalMessages += f.MessageCount
	a.SpeculationSavedMs += f.SpeculationSavedMs
}
