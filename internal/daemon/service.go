// Package daemon provides the long-running background stats service the
// notch display polls instead of invoking the CLI on every repaint.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/halcyondev/notchstat/internal/logger"
	"github.com/halcyondev/notchstat/internal/model"
)

// Config controls the daemon runtime behavior.
type Config struct {
	// Refresh runs one cache refresh pass. A refresh skipped because
	// another process holds the lock must return nil.
	Refresh func() error

	// Read produces the current derived stats, nil when no cache exists.
	Read func() (*model.DerivedStats, error)

	Interval     time.Duration
	Addr         string
	EventsBuffer int
}

// Delta captures figure changes between ticks.
type Delta struct {
	Messages int   `json:"messages"`
	Sessions int   `json:"sessions"`
	Tokens   int64 `json:"tokens"`
}

func (d Delta) isZero() bool {
	return d.Messages == 0 && d.Sessions == 0 && d.Tokens == 0
}

// Event is emitted whenever the derived stats change.
type Event struct {
	ID        int64               `json:"id"`
	Type      string              `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Stats     *model.DerivedStats `json:"stats"`
	Delta     Delta               `json:"delta"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"startedAt"`
	LastTickAt      time.Time `json:"lastTickAt"`
	TickIntervalSec int       `json:"tickIntervalSec"`
	TickCount       int64     `json:"tickCount"`
	LastError       string    `json:"lastError,omitempty"`
	EventCount      int       `json:"eventCount"`
	SubscriberCount int       `json:"subscriberCount"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg Config

	mu          sync.RWMutex
	startedAt   time.Time
	lastTickAt  time.Time
	tickCount   int64
	lastError   string
	stats       *model.DerivedStats
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config) *Service {
	if cfg.Interval < 10*time.Second {
		cfg.Interval = 60 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:43110"
	}

	return &Service{
		cfg:       cfg,
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Run starts HTTP endpoints and the refresh ticker until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/stats", s.handleStats)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Seed an initial tick so status is useful immediately.
	s.tickOnce()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.tickOnce()
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

// tickOnce refreshes the cache and republishes stats if figures moved.
func (s *Service) tickOnce() {
	now := time.Now()

	if err := s.cfg.Refresh(); err != nil {
		s.recordError(now, err)
		logger.Error("refresh tick failed", "error", err)
		return
	}

	stats, err := s.cfg.Read()
	if err != nil {
		s.recordError(now, err)
		logger.Error("stats read failed", "error", err)
		return
	}

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.stats
	s.stats = stats
	s.lastTickAt = now
	s.tickCount++
	s.lastError = ""

	switch {
	case stats == nil:
		// Nothing to publish until the first snapshot lands on disk.
	case prev == nil:
		s.nextEventID++
		ev = Event{
			ID:        s.nextEventID,
			Type:      "snapshot",
			Timestamp: now,
			Stats:     stats,
		}
		publish = true
	default:
		delta := diffStats(prev, stats)
		if !delta.isZero() {
			s.nextEventID++
			ev = Event{
				ID:        s.nextEventID,
				Type:      "stats_delta",
				Timestamp: now,
				Stats:     stats,
				Delta:     delta,
			}
			publish = true
		}
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

func (s *Service) recordError(now time.Time, err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.lastTickAt = now
	s.tickCount++
	s.mu.Unlock()
}

func diffStats(prev, curr *model.DerivedStats) Delta {
	return Delta{
		Messages: curr.AllTimeMessages - prev.AllTimeMessages,
		Sessions: curr.AllTimeSessions - prev.AllTimeSessions,
		Tokens:   curr.AllTimeTokens - prev.AllTimeTokens,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastTickAt:      s.lastTickAt,
		TickIntervalSec: int(s.cfg.Interval.Seconds()),
		TickCount:       s.tickCount,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) currentStats() *model.DerivedStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.currentStats()
	if stats == nil {
		http.Error(w, "no stats yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current stats immediately.
	if stats := s.currentStats(); stats != nil {
		writeSSE(w, Event{Type: "snapshot", Timestamp: time.Now(), Stats: stats})
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
