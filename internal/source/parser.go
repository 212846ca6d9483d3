// Package source discovers and parses agent JSONL session files.
package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/halcyondev/notchstat/internal/model"
)

// Byte patterns for cheap field extraction on non-assistant lines.
var (
	patTimestamp1 = []byte(`"timestamp":"`)
	patTimestamp2 = []byte(`"timestamp": "`)
	patSidechain1 = []byte(`"isSidechain":true`)
	patSidechain2 = []byte(`"isSidechain": true`)
)

// ParseResult holds the output of parsing a single JSONL file.
type ParseResult struct {
	Stats       model.FileStats
	ParseErrors int
	Err         error
}

// ParseFile reads a JSONL session file and reduces it to per-file statistics.
// Each non-empty line is parsed independently; a line that fails to parse is
// dropped silently, since a truncated trailing line from a concurrent writer
// is expected and must not abort the scan.
//
// Line routing by top-level "type":
//   - user/attachment/system/progress: byte-level extraction (sidechain
//     flag, timestamp), these only contribute message counts
//   - assistant: full JSON decode (tokens, model, tool calls)
//   - speculation-accept: full JSON decode (timeSavedMs only)
//   - everything else: skip
func ParseFile(df DiscoveredFile) ParseResult {
	f, err := os.Open(df.Path)
	if err != nil {
		return ParseResult{Err: err}
	}
	defer func() { _ = f.Close() }()

	stats := model.FileStats{
		SessionID:     df.SessionID,
		Path:          df.Path,
		TokensByModel: make(map[string]int64),
		ModelUsage:    make(map[string]model.ModelUsage),
	}
	var parseErrors int

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 2*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		switch extractTopLevelType(line) {
		case "user", "attachment", "system", "progress":
			if isSidechainLine(line) {
				continue
			}
			ts, ok := extractTimestampBytes(line)
			if !ok {
				continue
			}
			countMessage(&stats, ts)

		case "assistant":
			var entry RawEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				parseErrors++
				continue
			}
			if entry.IsSidechain {
				continue
			}
			ts, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
			if err != nil {
				continue
			}
			countMessage(&stats, ts)
			reduceAssistant(&stats, entry)

		case "speculation-accept":
			var entry RawEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				parseErrors++
				continue
			}
			if entry.IsSidechain {
				continue
			}
			stats.SpeculationSavedMs += entry.TimeSavedMs
		}
	}

	if err := scanner.Err(); err != nil {
		return ParseResult{Err: err}
	}

	return ParseResult{Stats: stats, ParseErrors: parseErrors}
}

// countMessage records one non-sidechain message: session time range,
// message count, and the hour-of-day histogram bucket.
func countMessage(stats *model.FileStats, ts time.Time) {
	if stats.FirstTimestamp.IsZero() || ts.Before(stats.FirstTimestamp) {
		stats.FirstTimestamp = ts
	}
	if stats.LastTimestamp.IsZero() || ts.After(stats.LastTimestamp) {
		stats.LastTimestamp = ts
	}
	stats.MessageCount++
	stats.HourCounts[ts.Local().Hour()]++
}

// reduceAssistant folds an assistant line's tool calls and token usage into
// the file stats. Token accounting requires both a model name and a usage
// block; zero-token responses stay out of the per-day token map so they do
// not pollute "days with activity".
func reduceAssistant(stats *model.FileStats, entry RawEntry) {
	msg := entry.Message
	if msg == nil {
		return
	}

	stats.ToolCallCount += countToolUse(msg.Content)

	if msg.Model == "" || msg.Usage == nil {
		return
	}
	u := msg.Usage

	usage := model.ModelUsage{
		InputTokens:              u.InputTokens,
		OutputTokens:             u.OutputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens,
		CostUSD:                  entry.CostUSD,
		ContextWindow:            u.InputTokens + u.CacheReadInputTokens + u.CacheCreationInputTokens,
		MaxOutputTokens:          u.OutputTokens,
	}
	if u.ServerToolUse != nil {
		usage.WebSearchRequests = u.ServerToolUse.WebSearchRequests
	}

	total := stats.ModelUsage[msg.Model]
	total.Add(usage)
	stats.ModelUsage[msg.Model] = total

	if sum := u.InputTokens + u.OutputTokens; sum > 0 {
		stats.TokensByModel[msg.Model] += sum
	}
}

// countToolUse counts tool_use items in an assistant content array.
// Content that is not an array (or not JSON at all) counts as zero.
func countToolUse(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var items []struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0
	}
	n := 0
	for _, item := range items {
		if item.Type == "tool_use" {
			n++
		}
	}
	return n
}

// typeKey is the byte sequence for a JSON key named "type" (with quotes).
var typeKey = []byte(`"type"`)

// extractTopLevelType finds the top-level "type" field in a JSONL line.
// Tracks brace depth and string boundaries so nested "type" keys are ignored.
// Early-exits once found, making cost O(1) vs line length.
func extractTopLevelType(line []byte) string {
	depth := 0
	for i := 0; i < len(line); {
		switch line[i] {
		case '"':
			if depth == 1 && bytes.HasPrefix(line[i:], typeKey) {
				val, isKey := classifyType(line, i+len(typeKey))
				if isKey {
					return val // found the "type" key — done regardless of value
				}
				// "type" appeared as a value, not a key. Continue scanning.
			}
			i = skipJSONString(line, i)
		case '{':
			depth++
			i++
		case '}':
			depth--
			i++
		default:
			i++
		}
	}
	return ""
}

// classifyType checks whether pos follows a JSON key (expects : then value).
// isKey=false means "type" appeared as a value, not a key — caller should
// continue scanning.
func classifyType(line []byte, pos int) (val string, isKey bool) {
	i := skipSpaces(line, pos)
	if i >= len(line) || line[i] != ':' {
		return "", false // no colon — this was a value, not a key
	}
	i = skipSpaces(line, i+1)
	if i >= len(line) || line[i] != '"' {
		return "", true // key with non-string value (null, number, etc.)
	}
	i++ // past opening quote

	end := bytes.IndexByte(line[i:], '"')
	if end < 0 || end > 24 {
		return "", true
	}
	return string(line[i : i+end]), true
}

// skipJSONString advances past a JSON string starting at the opening quote.
func skipJSONString(line []byte, i int) int {
	i++ // skip opening quote
	for i < len(line) {
		switch line[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return i
}

func skipSpaces(line []byte, i int) int {
	for i < len(line) && line[i] == ' ' {
		i++
	}
	return i
}

// extractTimestampBytes extracts the timestamp field via byte scanning.
func extractTimestampBytes(line []byte) (time.Time, bool) {
	for _, pat := range [][]byte{patTimestamp1, patTimestamp2} {
		idx := bytes.Index(line, pat)
		if idx < 0 {
			continue
		}
		start := idx + len(pat)
		end := bytes.IndexByte(line[start:], '"')
		if end < 0 || end > 40 {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, string(line[start:start+end]))
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	}
	return time.Time{}, false
}

// isSidechainLine detects the sidechain flag via byte scanning.
func isSidechainLine(line []byte) bool {
	return bytes.Contains(line, patSidechain1) || bytes.Contains(line, patSidechain2)
}
