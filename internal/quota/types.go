package quota

import (
	"encoding/json"
	"time"
)

// Organization represents a claude.ai organization.
type Organization struct {
	UUID         string   `json:"uuid"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// usageResponse is the raw API response from the usage endpoint.
type usageResponse struct {
	FiveHour       *rawWindow `json:"five_hour"`
	SevenDay       *rawWindow `json:"seven_day"`
	SevenDayOpus   *rawWindow `json:"seven_day_opus"`
	SevenDaySonnet *rawWindow `json:"seven_day_sonnet"`
}

// rawWindow is a single rate-limit window from the API.
// Utilization can be int, float, or string, so it stays raw JSON until parse time.
type rawWindow struct {
	Utilization json.RawMessage `json:"utilization"`
	ResetsAt    *string         `json:"resets_at"`
}

// Window is a single rate-limit window, normalized for display.
type Window struct {
	Pct      float64   `json:"pct"` // 0.0-1.0
	ResetsAt time.Time `json:"resetsAt"`
}

// Usage holds the normalized rate-limit windows.
type Usage struct {
	FiveHour       *Window `json:"fiveHour,omitempty"`
	SevenDay       *Window `json:"sevenDay,omitempty"`
	SevenDayOpus   *Window `json:"sevenDayOpus,omitempty"`
	SevenDaySonnet *Window `json:"sevenDaySonnet,omitempty"`
}

// Status is the display-ready aggregate of quota data for one account.
type Status struct {
	Org       Organization `json:"org"`
	Usage     *Usage       `json:"usage,omitempty"`
	FetchedAt time.Time    `json:"fetchedAt"`
	Error     error        `json:"-"`
}
