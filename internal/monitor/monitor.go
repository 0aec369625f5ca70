// Package monitor is the live terminal view of a running capture daemon. It
// polls the daemon's bridge stats endpoint and renders the pipeline counters.
package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/adeelakhani/swing-sdk/internal/output"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

type statsMsg output.Stats

type statsErrMsg struct{ err error }

type pollMsg struct{}

// Model polls one daemon and renders its stats.
type Model struct {
	addr     string
	url      string
	interval time.Duration
	client   *http.Client

	stats        *output.Stats
	lastErr      error
	lastUpdate   time.Time
	spinnerIndex int
	windowWidth  int
	windowHeight int
}

// New builds a Model polling the bridge at addr every interval.
func New(addr string, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{
		addr:     addr,
		url:      fmt.Sprintf("http://%s/stats", addr),
		interval: interval,
		client:   &http.Client{Timeout: 2 * time.Second},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.pollCmd())
}

func (m Model) fetchCmd() tea.Cmd {
	client, url := m.client, m.url
	return func() tea.Msg {
		resp, err := client.Get(url)
		if err != nil {
			return statsErrMsg{err: err}
		}
		defer resp.Body.Close()

		var line output.Stats
		if err := json.NewDecoder(resp.Body).Decode(&line); err != nil {
			return statsErrMsg{err: err}
		}
		return statsMsg(line)
	}
}

func (m Model) pollCmd() tea.Cmd {
	interval := m.interval
	return func() tea.Msg {
		<-time.After(interval)
		return pollMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = typed.Width
		m.windowHeight = typed.Height
		return m, nil

	case tea.KeyMsg:
		switch typed.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case pollMsg:
		m.spinnerIndex = (m.spinnerIndex + 1) % len(spinnerFrames)
		return m, tea.Batch(m.fetchCmd(), m.pollCmd())

	case statsMsg:
		line := output.Stats(typed)
		m.stats = &line
		m.lastErr = nil
		m.lastUpdate = time.Now()
		return m, nil

	case statsErrMsg:
		m.lastErr = typed.err
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	title := lipgloss.NewStyle().Reverse(true).Padding(0, 1).
		Render(fmt.Sprintf("swing monitor  %s", m.addr))
	bottom := lipgloss.NewStyle().Faint(true).Padding(0, 1).
		Render(fmt.Sprintf("[q]uit  refresh: %s", m.interval))

	body := m.renderBody()
	if m.windowWidth > 0 && m.windowHeight > 2 {
		view := viewport.New(m.windowWidth, m.windowHeight-2)
		view.SetContent(body)
		body = view.View()
	}
	return title + "\n" + body + "\n" + bottom
}

func (m Model) renderBody() string {
	labelStyle := lipgloss.NewStyle().Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	goodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("34"))

	var b strings.Builder
	b.WriteString("\n")

	if m.stats == nil {
		frame := spinnerFrames[m.spinnerIndex%len(spinnerFrames)]
		b.WriteString(fmt.Sprintf("  %s waiting for daemon at %s\n", frame, m.addr))
		if m.lastErr != nil {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  last error: %s", m.lastErr)))
			b.WriteString("\n")
		}
		return b.String()
	}

	s := m.stats
	stateStyle := mutedStyle
	if s.State == "recording" {
		stateStyle = goodStyle
	}

	writeStat(&b, labelStyle, "State", stateStyle.Render(s.State))
	writeStat(&b, labelStyle, "Session", orNone(s.SessionID))
	writeStat(&b, labelStyle, "Uptime", (time.Duration(s.UptimeSeconds) * time.Second).String())
	b.WriteString("\n")
	writeStat(&b, labelStyle, "Buffered", humanize.Comma(int64(s.Buffered)))
	writeStat(&b, labelStyle, "Captured", humanize.Comma(s.Captured))
	writeStat(&b, labelStyle, "Flushed", humanize.Comma(s.Flushed))
	writeStat(&b, labelStyle, "Chunks", humanize.Comma(s.Chunks))
	writeStat(&b, labelStyle, "Uploaded", humanize.Bytes(uint64(s.Bytes)))

	failed := humanize.Comma(s.FailedSends)
	if s.FailedSends > 0 {
		failed = badStyle.Render(failed)
	}
	writeStat(&b, labelStyle, "Failed sends", failed)

	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(badStyle.Render(fmt.Sprintf("  daemon unreachable: %s", m.lastErr)))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  showing stats from %s", m.lastUpdate.Format("15:04:05"))))
		b.WriteString("\n")
	}
	return b.String()
}

func writeStat(b *strings.Builder, labelStyle lipgloss.Style, label, value string) {
	b.WriteString("  ")
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-14s", label)))
	b.WriteString(value)
	b.WriteString("\n")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
