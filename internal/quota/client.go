// Package quota fetches rate-limit utilization from the claude.ai web API,
// so the display can show how close the account is to its usage windows.
package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://claude.ai/api"
	requestTimeout = 10 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
	keyPrefix      = "sk-ant-sid"
)

var (
	// ErrUnauthorized indicates the session key is expired or invalid.
	ErrUnauthorized = errors.New("quota: unauthorized (session key expired or invalid)")
	// ErrRateLimited indicates the API rate limit was hit.
	ErrRateLimited = errors.New("quota: rate limited")
)

// Client fetches quota data from the claude.ai web API.
type Client struct {
	sessionKey string
	baseURL    string
	http       *http.Client
}

// NewClient creates a client for the given session key.
// Returns nil if the key is empty or has the wrong prefix.
func NewClient(sessionKey, baseURL string) *Client {
	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" || !strings.HasPrefix(sessionKey, keyPrefix) {
		return nil
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		sessionKey: sessionKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		http:       &http.Client{},
	}
}

// Fetch returns the quota status for the first organization on the account.
// Partial data is returned even if the usage request fails.
func (c *Client) Fetch(ctx context.Context) *Status {
	result := &Status{FetchedAt: time.Now()}

	orgs, err := c.fetchOrganizations(ctx)
	if err != nil {
		result.Error = err
		return result
	}
	if len(orgs) == 0 {
		result.Error = errors.New("quota: no organizations found")
		return result
	}

	result.Org = orgs[0]
	usage, err := c.fetchUsage(ctx, orgs[0].UUID)
	if err != nil {
		result.Error = err
		return result
	}
	result.Usage = usage
	return result
}

func (c *Client) fetchOrganizations(ctx context.Context) ([]Organization, error) {
	body, err := c.get(ctx, "/organizations")
	if err != nil {
		return nil, err
	}

	var orgs []Organization
	if err := json.Unmarshal(body, &orgs); err != nil {
		return nil, fmt.Errorf("quota: parsing organizations: %w", err)
	}
	return orgs, nil
}

func (c *Client) fetchUsage(ctx context.Context, orgID string) (*Usage, error) {
	body, err := c.get(ctx, fmt.Sprintf("/organizations/%s/usage", orgID))
	if err != nil {
		return nil, err
	}

	var raw usageResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("quota: parsing usage: %w", err)
	}

	return &Usage{
		FiveHour:       parseWindow(raw.FiveHour),
		SevenDay:       parseWindow(raw.SevenDay),
		SevenDayOpus:   parseWindow(raw.SevenDayOpus),
		SevenDaySonnet: parseWindow(raw.SevenDaySonnet),
	}, nil
}

// get performs an authenticated GET request and returns the response body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("quota: creating request: %w", err)
	}

	req.Header.Set("Cookie", "sessionKey="+c.sessionKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "github.com/halcyondev/notchstat/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quota: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("quota: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("quota: reading response: %w", err)
	}
	return body, nil
}

// parseWindow converts a raw window into a normalized one.
// Returns nil if the input is nil or unparseable.
func parseWindow(w *rawWindow) *Window {
	if w == nil {
		return nil
	}

	pct, ok := parseUtilization(w.Utilization)
	if !ok {
		return nil
	}

	pw := &Window{Pct: pct}

	if w.ResetsAt != nil {
		if t, err := time.Parse(time.RFC3339, *w.ResetsAt); err == nil {
			pw.ResetsAt = t
		}
	}

	return pw
}

// parseUtilization defensively parses the polymorphic utilization field.
// Handles int (75), float (0.75 or 75.0), and string ("75%" or "0.75").
// Returns value normalized to 0.0-1.0 range.
func parseUtilization(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	// Try number first (covers both int and float JSON)
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return normalizeUtilization(f), true
	}

	// Try string
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return normalizeUtilization(v), true
		}
	}

	return 0, false
}

// normalizeUtilization converts a value to 0.0-1.0 range.
// Values > 1.0 are assumed to be percentages (0-100 scale).
func normalizeUtilization(v float64) float64 {
	if v > 1.0 {
		return v / 100.0
	}
	return v
}
