// Package synth turns low-level observations into semantic events. It owns
// the rules for what becomes an event at all: which console levels are worth
// keeping, when a click is a link click, and which navigation changes are
// real rather than repeats.
package synth

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/adeelakhani/swing-sdk/event"
)

const (
	// DefaultMaxMessageLen caps captured console messages.
	DefaultMaxMessageLen = 1000
	// maxTextLen caps captured interaction text such as button labels.
	maxTextLen = 200
)

// DefaultConsoleLevels are the console levels captured when none are
// configured.
var DefaultConsoleLevels = []string{"error", "warn"}

// Config configures a Synthesizer.
type Config struct {
	// Sink receives every synthesized event.
	Sink func(event.Event)
	// Clock defaults to the wall clock.
	Clock clock.Clock
	// Logger defaults to a nop logger.
	Logger *zap.Logger
	// ConsoleLevels lists the console levels to capture, case-insensitive.
	// Defaults to DefaultConsoleLevels.
	ConsoleLevels []string
	// MaxMessageLen defaults to DefaultMaxMessageLen.
	MaxMessageLen int
}

// Synthesizer builds semantic events from observations.
type Synthesizer struct {
	sink       func(event.Event)
	clock      clock.Clock
	logger     *zap.Logger
	levels     map[string]bool
	maxMessage int

	mu      sync.Mutex
	lastURL string
}

// New builds a Synthesizer from cfg.
func New(cfg Config) *Synthesizer {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = DefaultMaxMessageLen
	}
	levels := cfg.ConsoleLevels
	if len(levels) == 0 {
		levels = DefaultConsoleLevels
	}
	levelSet := make(map[string]bool, len(levels))
	for _, l := range lo.Uniq(levels) {
		levelSet[strings.ToLower(strings.TrimSpace(l))] = true
	}

	return &Synthesizer{
		sink:       cfg.Sink,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		levels:     levelSet,
		maxMessage: cfg.MaxMessageLen,
	}
}

// ObserveClick synthesizes a click on target. Anchors and anything carrying
// an href count as link clicks, everything else as button clicks.
func (s *Synthesizer) ObserveClick(target event.Target, text, href string) {
	text = truncate(text, maxTextLen)
	ts := s.clock.Now().UnixMilli()
	if href != "" || strings.EqualFold(target.Tag, "a") {
		s.emit(event.NewLinkClick(ts, target, text, href))
		return
	}
	s.emit(event.NewButtonClick(ts, target, text))
}

// ObserveSubmit synthesizes a form submission. Only field names travel,
// never their values.
func (s *Synthesizer) ObserveSubmit(target event.Target, fields []string) {
	s.emit(event.NewFormSubmit(s.clock.Now().UnixMilli(), target, fields))
}

// ObserveConsole synthesizes a console event when level is captured.
// Messages are truncated to the configured cap.
func (s *Synthesizer) ObserveConsole(level, message string) {
	level = strings.ToLower(strings.TrimSpace(level))
	if !s.levels[level] {
		return
	}
	s.emit(event.NewConsole(s.clock.Now().UnixMilli(), level, truncate(message, s.maxMessage)))
}

// ObserveNavigation synthesizes a navigation event when url differs from the
// last one seen. Repeats and empty urls are dropped.
func (s *Synthesizer) ObserveNavigation(url string) {
	if url == "" {
		return
	}

	s.mu.Lock()
	if url == s.lastURL {
		s.mu.Unlock()
		return
	}
	from := s.lastURL
	s.lastURL = url
	s.mu.Unlock()

	s.emit(event.NewNavigation(s.clock.Now().UnixMilli(), url, from))
}

// Hook adapts the synthesizer to zap so host log output doubles as console
// capture. Install it with zap.Hooks; entries keep flowing to their original
// sink either way.
func (s *Synthesizer) Hook() func(zapcore.Entry) error {
	return func(entry zapcore.Entry) error {
		s.ObserveConsole(entry.Level.String(), entry.Message)
		return nil
	}
}

// WatchURL polls source and reports changes as navigations until ctx is
// done. It blocks; run it on its own goroutine.
func (s *Synthesizer) WatchURL(ctx context.Context, source func() string, interval time.Duration) {
	if source == nil || interval <= 0 {
		return
	}
	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ObserveNavigation(source())
		}
	}
}

func (s *Synthesizer) emit(ev event.Event) {
	if s.sink == nil {
		return
	}
	s.sink(ev)
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
