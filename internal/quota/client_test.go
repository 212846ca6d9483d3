package quota

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient_RejectsBadKeys(t *testing.T) {
	if c := NewClient("", ""); c != nil {
		t.Error("expected nil client for empty key")
	}
	if c := NewClient("not-a-session-key", ""); c != nil {
		t.Error("expected nil client for wrong prefix")
	}
	if c := NewClient("  sk-ant-sid01-abc  ", ""); c == nil {
		t.Error("expected client for valid key with surrounding whitespace")
	}
}

func TestParseUtilization(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
		ok   bool
	}{
		{"int percent", `75`, 0.75, true},
		{"float fraction", `0.75`, 0.75, true},
		{"float percent", `75.0`, 0.75, true},
		{"string percent", `"75%"`, 0.75, true},
		{"string fraction", `"0.75"`, 0.75, true},
		{"string padded", `" 42 "`, 0.42, true},
		{"zero", `0`, 0, true},
		{"one", `1`, 1, true},
		{"garbage string", `"soon"`, 0, false},
		{"null decodes as zero", `null`, 0, true},
		{"object", `{"pct": 5}`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseUtilization(json.RawMessage(tt.raw))
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseUtilization(%s) = (%v, %v), want (%v, %v)", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseUtilization_Empty(t *testing.T) {
	if _, ok := parseUtilization(nil); ok {
		t.Error("expected not-ok for missing field")
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "sessionKey=sk-ant-sid01-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/organizations":
			_, _ = w.Write([]byte(`[{"uuid": "org-1", "name": "Acme"}]`))
		case "/organizations/org-1/usage":
			_, _ = w.Write([]byte(`{
				"five_hour": {"utilization": 42, "resets_at": "2024-03-10T18:00:00Z"},
				"seven_day": {"utilization": "80%"}
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("sk-ant-sid01-test", srv.URL)
	if c == nil {
		t.Fatal("client is nil")
	}

	status := c.Fetch(context.Background())
	if status.Error != nil {
		t.Fatal(status.Error)
	}
	if status.Org.UUID != "org-1" || status.Org.Name != "Acme" {
		t.Errorf("org = %+v, want org-1 / Acme", status.Org)
	}
	if status.Usage == nil || status.Usage.FiveHour == nil {
		t.Fatal("missing five-hour window")
	}
	if status.Usage.FiveHour.Pct != 0.42 {
		t.Errorf("five-hour pct = %v, want 0.42", status.Usage.FiveHour.Pct)
	}
	if status.Usage.FiveHour.ResetsAt.IsZero() {
		t.Error("five-hour reset time not parsed")
	}
	if status.Usage.SevenDay == nil || status.Usage.SevenDay.Pct != 0.8 {
		t.Errorf("seven-day window = %+v, want pct 0.8", status.Usage.SevenDay)
	}
	if status.Usage.SevenDayOpus != nil {
		t.Error("absent window should stay nil")
	}
}

func TestFetch_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("sk-ant-sid01-expired", srv.URL)
	status := c.Fetch(context.Background())
	if !errors.Is(status.Error, ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", status.Error)
	}
}
