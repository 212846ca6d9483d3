package source

import "encoding/json"

// RawEntry is one line of a session JSONL file. Only assistant and
// speculation-accept lines get a full decode; missing or mistyped fields
// simply stay zero.
type RawEntry struct {
	Type        string      `json:"type"`
	Timestamp   string      `json:"timestamp,omitempty"`
	IsSidechain bool        `json:"isSidechain,omitempty"`
	CostUSD     float64     `json:"costUSD,omitempty"`
	TimeSavedMs int64       `json:"timeSavedMs,omitempty"`
	Message     *RawMessage `json:"message,omitempty"`
}

// RawMessage is the assistant message envelope. Content is kept raw because
// user lines carry it as a plain string while assistant lines carry an array.
type RawMessage struct {
	Model   string          `json:"model,omitempty"`
	Usage   *RawUsage       `json:"usage,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// RawUsage holds token counts from the API response.
type RawUsage struct {
	InputTokens              int64             `json:"input_tokens"`
	OutputTokens             int64             `json:"output_tokens"`
	CacheCreationInputTokens int64             `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64             `json:"cache_read_input_tokens"`
	ServerToolUse            *RawServerToolUse `json:"server_tool_use,omitempty"`
}

// RawServerToolUse holds server-side tool counters from the usage block.
type RawServerToolUse struct {
	WebSearchRequests int64 `json:"web_search_requests"`
}

// DiscoveredFile is a JSONL session file found during directory walking.
type DiscoveredFile struct {
	Path          string
	SessionID     string
	IsSubagent    bool
	ParentSession string // for subagents: parent session ID
}
