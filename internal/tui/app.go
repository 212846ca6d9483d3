// Package tui implements the live watch view: the terminal rendition of the
// figures the notch display shows, updating as session logs change on disk.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/halcyondev/notchstat/internal/cli"
	"github.com/halcyondev/notchstat/internal/model"
	"github.com/halcyondev/notchstat/internal/quota"
	"github.com/halcyondev/notchstat/internal/tui/components"
	"github.com/halcyondev/notchstat/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
)

// Config wires the watch view to the rest of the system.
type Config struct {
	// Read produces current derived stats, nil when no cache exists yet.
	Read func() (*model.DerivedStats, error)

	// Refresh runs one cache refresh pass. Lock contention returns nil.
	Refresh func() error

	// Quota fetches rate-limit status; nil when no session key is set.
	Quota func(ctx context.Context) *quota.Status

	// LivePath is the live snapshot file to watch for changes.
	LivePath string
}

// App is the bubbletea model for the watch view.
type App struct {
	cfg Config

	width  int
	height int

	spin       spinner.Model
	stats      *model.DerivedStats
	quotaStat  *quota.Status
	refreshing bool
	lastLoad   time.Time
	err        error

	watcher *fsnotify.Watcher
}

type statsMsg struct {
	stats *model.DerivedStats
	err   error
}

type refreshDoneMsg struct{ err error }

type quotaMsg struct{ status *quota.Status }

type fileChangedMsg struct{}

type tickMsg struct{}

// refreshEvery is the fallback poll interval when fsnotify misses events
// (editors and atomic renames can confuse watchers).
const refreshEvery = 45 * time.Second

// NewApp creates the watch view model.
func NewApp(cfg Config) *App {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	return &App{cfg: cfg, spin: sp}
}

// Init starts the spinner, the file watcher, and the first refresh.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.spin.Tick, a.refreshCmd(), a.tickCmd()}

	if w, err := fsnotify.NewWatcher(); err == nil {
		// Watch the directory: the live file is replaced by rename, so
		// watching the file itself would break after the first update.
		if err := w.Add(filepath.Dir(a.cfg.LivePath)); err == nil {
			a.watcher = w
			cmds = append(cmds, a.watchCmd())
		} else {
			_ = w.Close()
		}
	}

	if a.cfg.Quota != nil {
		cmds = append(cmds, a.quotaCmd())
	}

	return tea.Batch(cmds...)
}

func (a *App) loadCmd() tea.Cmd {
	return func() tea.Msg {
		stats, err := a.cfg.Read()
		return statsMsg{stats: stats, err: err}
	}
}

func (a *App) refreshCmd() tea.Cmd {
	a.refreshing = true
	return func() tea.Msg {
		return refreshDoneMsg{err: a.cfg.Refresh()}
	}
}

func (a *App) quotaCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return quotaMsg{status: a.cfg.Quota(ctx)}
	}
}

func (a *App) watchCmd() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case ev, ok := <-a.watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(ev.Name) == filepath.Base(a.cfg.LivePath) {
					return fileChangedMsg{}
				}
			case _, ok := <-a.watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(refreshEvery, func(time.Time) tea.Msg { return tickMsg{} })
}

// Update handles messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if a.watcher != nil {
				_ = a.watcher.Close()
			}
			return a, tea.Quit
		case "r":
			if !a.refreshing {
				return a, a.refreshCmd()
			}
		}
		return a, nil

	case refreshDoneMsg:
		a.refreshing = false
		a.err = msg.err
		return a, a.loadCmd()

	case statsMsg:
		if msg.err != nil {
			a.err = msg.err
		} else {
			a.stats = msg.stats
			a.lastLoad = time.Now()
		}
		return a, nil

	case quotaMsg:
		a.quotaStat = msg.status
		return a, nil

	case fileChangedMsg:
		return a, tea.Batch(a.loadCmd(), a.watchCmd())

	case tickMsg:
		cmds := []tea.Cmd{a.tickCmd()}
		if !a.refreshing {
			cmds = append(cmds, a.refreshCmd())
		}
		if a.cfg.Quota != nil {
			cmds = append(cmds, a.quotaCmd())
		}
		return a, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}

	return a, nil
}

// View renders the watch layout.
func (a *App) View() string {
	t := theme.Active
	width := a.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder

	title := lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary).Render("notchstat")
	if a.refreshing {
		title += " " + a.spin.View()
	}
	b.WriteString(" " + title + "\n\n")

	if a.stats == nil {
		b.WriteString(lipgloss.NewStyle().Foreground(t.TextMuted).
			Render("  No stats yet. Waiting for the first refresh..."))
		if a.err != nil {
			b.WriteString("\n  " + lipgloss.NewStyle().Foreground(t.Red).Render(a.err.Error()))
		}
		return b.String()
	}

	s := a.stats
	b.WriteString(components.MetricCardRow([]components.Metric{
		{Label: "Today", Value: cli.FormatTokens(s.TodayTokens) + " tok", Sub: fmt.Sprintf("%d msgs, %d sessions", s.MessageCount, s.SessionCount)},
		{Label: "All time", Value: cli.FormatTokens(s.AllTimeTokens) + " tok", Sub: fmt.Sprintf("%s msgs", cli.FormatNumber(int64(s.AllTimeMessages)))},
		{Label: "Sessions", Value: cli.FormatNumber(int64(s.AllTimeSessions)), Sub: "since " + s.FirstSessionDate},
		{Label: "Record", Value: cli.FormatTokens(s.Record.Tokens) + " tok", Sub: s.Record.Date},
	}, width-2))
	b.WriteString("\n")

	b.WriteString(components.ContentCard("Recent days", a.renderRecent(), width-2))
	b.WriteString("\n")

	b.WriteString(components.ContentCard("Hour of day", cli.RenderHourBars(s.HourCounts), width-2))
	b.WriteString("\n")

	if q := a.renderQuota(width - 2); q != "" {
		b.WriteString(q)
		b.WriteString("\n")
	}

	age := ""
	if !a.lastLoad.IsZero() {
		age = time.Since(a.lastLoad).Round(time.Second).String() + " ago"
	}
	b.WriteString(components.RenderStatusBar(width, age))

	return b.String()
}

func (a *App) renderRecent() string {
	if len(a.stats.RecentDays) == 0 {
		return lipgloss.NewStyle().Foreground(theme.Active.TextDim).Render("no activity yet")
	}

	values := make([]float64, 0, len(a.stats.RecentDays))
	var lines []string
	// RecentDays is most recent first; render oldest at the top.
	for i := len(a.stats.RecentDays) - 1; i >= 0; i-- {
		d := a.stats.RecentDays[i]
		values = append(values, float64(d.Tokens))
		lines = append(lines, fmt.Sprintf("%s  %6s tok  %4d msgs",
			d.Date, cli.FormatTokens(d.Tokens), d.Messages))
	}

	return cli.RenderSparkline(values) + "\n" + strings.Join(lines, "\n")
}

func (a *App) renderQuota(width int) string {
	q := a.quotaStat
	if q == nil || q.Usage == nil {
		return ""
	}

	// Label, percentage, and countdown take ~22 cells of the card interior.
	barW := components.CardInnerWidth(width) - 22
	if barW < 10 {
		barW = 10
	}

	var lines []string
	add := func(label string, w *quota.Window) {
		if w != nil {
			lines = append(lines, components.RateLimitBar(label, w.Pct, w.ResetsAt, 8, barW))
		}
	}
	add("5h", q.Usage.FiveHour)
	add("7d", q.Usage.SevenDay)
	add("7d opus", q.Usage.SevenDayOpus)
	add("7d sonn", q.Usage.SevenDaySonnet)

	if len(lines) == 0 {
		return ""
	}
	return components.ContentCard("Rate limits", strings.Join(lines, "\n"), width)
}
