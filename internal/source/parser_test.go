package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeSession creates a temp JSONL file and returns a DiscoveredFile for it.
func writeSession(t *testing.T, lines ...string) DiscoveredFile {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return DiscoveredFile{
		Path:      path,
		SessionID: "test-session",
	}
}

func TestParseFile_UserMessages(t *testing.T) {
	df := writeSession(t,
		`{"type":"user","timestamp":"2025-06-01T10:00:00Z"}`,
		`{"type":"user","timestamp":"2025-06-01T10:05:00Z"}`,
		`{"type":"user","timestamp":"2025-06-01T10:10:00Z"}`,
	)

	result := ParseFile(df)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	if result.Stats.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", result.Stats.MessageCount)
	}

	var hours int
	for _, n := range result.Stats.HourCounts {
		hours += n
	}
	if hours != 3 {
		t.Errorf("HourCounts sum = %d, want 3", hours)
	}
}

func TestParseFile_SidechainExcluded(t *testing.T) {
	df := writeSession(t,
		`{"type":"user","timestamp":"2025-06-01T10:00:00Z"}`,
		`{"type":"user","isSidechain":true,"timestamp":"2025-06-01T10:01:00Z"}`,
		`{"type":"assistant","isSidechain":true,"timestamp":"2025-06-01T10:02:00Z","message":{"model":"m1","usage":{"input_tokens":500,"output_tokens":500}}}`,
		`{"type":"assistant","timestamp":"2025-06-01T10:03:00Z","message":{"model":"m1","usage":{"input_tokens":100,"output_tokens":50}}}`,
	)

	result := ParseFile(df)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	if result.Stats.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2 (sidechain lines excluded)", result.Stats.MessageCount)
	}
	if got := result.Stats.TokensByModel["m1"]; got != 150 {
		t.Errorf("TokensByModel[m1] = %d, want 150 (sidechain tokens excluded)", got)
	}
}

func TestParseFile_TimeRange(t *testing.T) {
	df := writeSession(t,
		`{"type":"user","timestamp":"2025-06-01T08:00:00Z"}`,
		`{"type":"user","timestamp":"2025-06-01T12:00:00Z"}`,
		`{"type":"user","timestamp":"2025-06-01T10:00:00Z"}`,
	)

	result := ParseFile(df)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	wantStart := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if !result.Stats.FirstTimestamp.Equal(wantStart) {
		t.Errorf("FirstTimestamp = %v, want %v", result.Stats.FirstTimestamp, wantStart)
	}
	if !result.Stats.LastTimestamp.Equal(wantEnd) {
		t.Errorf("LastTimestamp = %v, want %v", result.Stats.LastTimestamp, wantEnd)
	}
	if got := result.Stats.DurationMs(); got != 4*60*60*1000 {
		t.Errorf("DurationMs = %d, want 4h", got)
	}
}

func TestParseFile_ToolCalls(t *testing.T) {
	df := writeSession(t,
		`{"type":"assistant","timestamp":"2025-06-01T10:00:00Z","message":{"model":"m1","usage":{"input_tokens":10,"output_tokens":5},"content":[{"type":"text","text":"hi"},{"type":"tool_use","name":"Bash"},{"type":"tool_use","name":"Read"}]}}`,
	)

	result := ParseFile(df)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	if result.Stats.ToolCallCount != 2 {
		t.Errorf("ToolCallCount = %d, want 2", result.Stats.ToolCallCount)
	}
}

func TestParseFile_TokenAccounting(t *testing.T) {
	df := writeSession(t,
		`{"type":"assistant","timestamp":"2025-06-01T10:00:00Z","message":{"model":"m1","usage":{"input_tokens":100,"output_tokens":50,"cache_read_input_tokens":2000,"cache_creation_input_tokens":300}}}`,
		`{"type":"assistant","timestamp":"2025-06-01T10:01:00Z","message":{"model":"m1","usage":{"input_tokens":40,"output_tokens":200}}}`,
		`{"type":"assistant","timestamp":"2025-06-01T10:02:00Z","message":{"model":"m1"}}`,
	)

	result := ParseFile(df)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	u := result.Stats.ModelUsage["m1"]
	if u.InputTokens != 140 || u.OutputTokens != 250 {
		t.Errorf("input/output = %d/%d, want 140/250", u.InputTokens, u.OutputTokens)
	}
	if u.CacheReadInputTokens != 2000 || u.CacheCreationInputTokens != 300 {
		t.Errorf("cache read/create = %d/%d, want 2000/300", u.CacheReadInputTokens, u.CacheCreationInputTokens)
	}
	// Capacity fields hold the largest single observation, not a sum.
	if u.ContextWindow != 2400 {
		t.Errorf("ContextWindow = %d, want 2400", u.ContextWindow)
	}
	if u.MaxOutputTokens != 200 {
		t.Errorf("MaxOutputTokens = %d, want 200", u.MaxOutputTokens)
	}
	if got := result.Stats.TokensByModel["m1"]; got != 390 {
		t.Errorf("TokensByModel[m1] = %d, want 390", got)
	}
	// The usage-less assistant line still counts as a message.
	if result.Stats.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", result.Stats.MessageCount)
	}
}

func TestParseFile_SpeculationAccept(t *testing.T) {
	df := writeSession(t,
		`{"type":"speculation-accept","timestamp":"2025-06-01T10:00:00Z","timeSavedMs":1500}`,
		`{"type":"speculation-accept","timestamp":"2025-06-01T10:01:00Z","timeSavedMs":2500}`,
		`{"type":"speculation-accept","isSidechain":true,"timestamp":"2025-06-01T10:02:00Z","timeSavedMs":9000}`,
	)

	result := ParseFile(df)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	if result.Stats.SpeculationSavedMs != 4000 {
		t.Errorf("SpeculationSavedMs = %d, want 4000", result.Stats.SpeculationSavedMs)
	}
	// Speculation lines are not messages.
	if result.Stats.MessageCount != 0 {
		t.Errorf("MessageCount = %d, want 0", result.Stats.MessageCount)
	}
}

func TestParseFile_EmptyFile(t *testing.T) {
	df := writeSession(t)
	result := ParseFile(df)
	if result.Err != nil {
		t.Fatalf("unexpected error on empty file: %v", result.Err)
	}
	if result.Stats.MessageCount != 0 || result.Stats.ToolCallCount != 0 {
		t.Error("expected zero stats for empty file")
	}
}

func TestParseFile_MalformedLines(t *testing.T) {
	// A truncated trailing line from a concurrent writer must not abort the
	// scan or taint surrounding lines.
	df := writeSession(t,
		`{"type":"user","timestamp":"2025-06-01T10:00:00Z"}`,
		`{"type":"assistant","timestamp":"2025-06-01T10:01:00Z","message":{"model":"m1","usage":{"inp`,
		`not json at all`,
		`{"type":"user","timestamp":"2025-06-01T10:02:00Z"}`,
	)

	result := ParseFile(df)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	if result.Stats.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", result.Stats.MessageCount)
	}
	if result.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", result.ParseErrors)
	}
}

func TestExtractTopLevelType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"user", `{"type":"user","foo":"bar"}`, "user"},
		{"assistant", `{"type":"assistant","message":{}}`, "assistant"},
		{"spaced", `{"type": "system","subtype":"x"}`, "system"},
		{"speculation", `{"type":"speculation-accept","timeSavedMs":5}`, "speculation-accept"},
		{"nested type ignored", `{"data":{"type":"progress"},"type":"user"}`, "user"},
		{"type as value", `{"kind":"type","type":"user"}`, "user"},
		{"no type field", `{"message":"hello"}`, ""},
		{"non-string type", `{"type":123}`, ""},
		{"empty", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractTopLevelType([]byte(tt.input))
			if got != tt.want {
				t.Errorf("extractTopLevelType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// FuzzExtractTopLevelType tests that the byte-level parser never panics
// on arbitrary input, which is important since it processes untrusted files.
func FuzzExtractTopLevelType(f *testing.F) {
	// Seed corpus with realistic patterns
	f.Add([]byte(`{"type":"user","timestamp":"2025-06-01T10:00:00Z"}`))
	f.Add([]byte(`{"type":"assistant","message":{"id":"x","usage":{}}}`))
	f.Add([]byte(`{"type":"speculation-accept","timeSavedMs":5000}`))
	f.Add([]byte(`{"data":{"type":"nested"},"type":"user"}`))
	f.Add([]byte(`not json`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"type":null}`))
	f.Add([]byte(`{"type":123}`))
	f.Add([]byte(``))
	f.Add([]byte(`{"type":"user`)) // unterminated string

	f.Fuzz(func(t *testing.T, data []byte) {
		// Must never panic, and values stay within the length bound.
		result := extractTopLevelType(data)
		if len(result) > 24 {
			t.Errorf("type value %q exceeds length bound", result)
		}
	})
}
