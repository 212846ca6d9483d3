package model

import "time"

// HeatmapEntry is one point in the calendar activity heatmap.
type HeatmapEntry struct {
	Date     string `json:"date"`
	Messages int    `json:"messages"`
	Tokens   int64  `json:"tokens"`
}

// RecordDay is the single day with the highest observed token total.
type RecordDay struct {
	Date   string `json:"date"`
	Tokens int64  `json:"tokens"`
}

// DerivedStats is the presentation-ready projection handed to the display
// layer. Day-level counts come from the live snapshot; TodayTokens comes from
// a fresh rescan so it is never staler than the read itself.
type DerivedStats struct {
	Date          string `json:"date"`
	MessageCount  int    `json:"messageCount"`
	SessionCount  int    `json:"sessionCount"`
	ToolCallCount int    `json:"toolCallCount"`

	TodayTokens     int64 `json:"todayTokens"`
	AllTimeTokens   int64 `json:"allTimeTokens"`
	AllTimeSessions int   `json:"allTimeSessions"`
	AllTimeMessages int   `json:"allTimeMessages"`

	Record           RecordDay       `json:"record"`
	LastActiveDate   string          `json:"lastActiveDate,omitempty"`
	RecentDays       []HeatmapEntry  `json:"recentDays,omitempty"`
	Heatmap          []HeatmapEntry  `json:"heatmap,omitempty"`
	LongestSession   *SessionSummary `json:"longestSession,omitempty"`
	FirstSessionDate string          `json:"firstSessionDate,omitempty"`

	HourCounts         [24]int   `json:"hourCounts"`
	SpeculationSavedMs int64     `json:"speculationSavedMs"`
	GeneratedAt        time.Time `json:"generatedAt"`
}
