package model

import "time"

// ModelUsage tracks cumulative token usage for one model.
// Additive fields sum on merge; ContextWindow and MaxOutputTokens are
// running maxima of the largest observed per-message footprint.
type ModelUsage struct {
	InputTokens              int64   `json:"inputTokens"`
	OutputTokens             int64   `json:"outputTokens"`
	CacheReadInputTokens     int64   `json:"cacheReadInputTokens"`
	CacheCreationInputTokens int64   `json:"cacheCreationInputTokens"`
	WebSearchRequests        int64   `json:"webSearchRequests"`
	CostUSD                  float64 `json:"costUSD"`
	ContextWindow            int64   `json:"contextWindow"`
	MaxOutputTokens          int64   `json:"maxOutputTokens"`
}

// Add merges another usage record into u, summing additive fields and
// keeping the max of capacity-like fields.
func (u *ModelUsage) Add(o ModelUsage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheReadInputTokens += o.CacheReadInputTokens
	u.CacheCreationInputTokens += o.CacheCreationInputTokens
	u.WebSearchRequests += o.WebSearchRequests
	u.CostUSD += o.CostUSD
	if o.ContextWindow > u.ContextWindow {
		u.ContextWindow = o.ContextWindow
	}
	if o.MaxOutputTokens > u.MaxOutputTokens {
		u.MaxOutputTokens = o.MaxOutputTokens
	}
}

// SessionSummary describes one session log file.
type SessionSummary struct {
	SessionID      string    `json:"sessionId"`
	FirstTimestamp time.Time `json:"firstTimestamp"`
	LastTimestamp  time.Time `json:"lastTimestamp"`
	DurationMs     int64     `json:"durationMs"`
	MessageCount   int       `json:"messageCount"`
}

// FileStats is the full per-file reduction produced by the parser.
// A file with MessageCount == 0 contributes nothing and is dropped.
// Serialized as JSON into the parse cache, so fields carry tags.
type FileStats struct {
	SessionID          string                `json:"sessionId"`
	Path               string                `json:"path"`
	FirstTimestamp     time.Time             `json:"firstTimestamp"`
	LastTimestamp      time.Time             `json:"lastTimestamp"`
	MessageCount       int                   `json:"messageCount"`
	ToolCallCount      int                   `json:"toolCallCount"`
	HourCounts         [24]int               `json:"hourCounts"`
	TokensByModel      map[string]int64      `json:"tokensByModel,omitempty"`
	ModelUsage         map[string]ModelUsage `json:"modelUsage,omitempty"`
	SpeculationSavedMs int64                 `json:"speculationSavedMs,omitempty"`
}

// Date returns the local calendar date of the first non-sidechain message.
// All of the file's daily contributions are attributed to this date, which
// keeps date-windowed scans disjoint across incremental cache updates.
func (f FileStats) Date() string {
	return DateKey(f.FirstTimestamp)
}

// DurationMs returns the wall-clock span between first and last message.
func (f FileStats) DurationMs() int64 {
	return f.LastTimestamp.Sub(f.FirstTimestamp).Milliseconds()
}

// Summary converts the file reduction into a session summary.
func (f FileStats) Summary() SessionSummary {
	return SessionSummary{
		SessionID:      f.SessionID,
		FirstTimestamp: f.FirstTimestamp,
		LastTimestamp:  f.LastTimestamp,
		DurationMs:     f.DurationMs(),
		MessageCount:   f.MessageCount,
	}
}
