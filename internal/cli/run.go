package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	swing "github.com/adeelakhani/swing-sdk"
	"github.com/adeelakhani/swing-sdk/event"
	"github.com/adeelakhani/swing-sdk/internal/bridge"
	"github.com/adeelakhani/swing-sdk/internal/config"
	"github.com/adeelakhani/swing-sdk/internal/filter"
	"github.com/adeelakhani/swing-sdk/internal/output"
	"github.com/adeelakhani/swing-sdk/internal/session"
	"github.com/adeelakhani/swing-sdk/internal/synth"
)

// RunCmd records a capture session: it starts the tracker, serves the local
// ingest bridge, and streams lifecycle lines until a signal or deadline stops
// it. SIGHUP ends the current session and starts a fresh one in place.
type RunCmd struct {
	APIKey    string `help:"Project API key (falls back to config / SWING_API_KEY)"`
	IngestURL string `help:"Ingestion backend origin (falls back to config / SWING_INGEST_URL)"`
	EntryURL  string `help:"URL the session starts on"`
	Referrer  string `help:"Referrer recorded for the session"`

	FlushInterval string   `help:"Upload cadence, e.g. 5s"`
	MaxBatch      int      `help:"Buffered events that force an early flush"`
	Redact        []string `help:"Redaction rule: field, tag.field, or #id.field (can be repeated)"`
	ConsoleLevel  []string `help:"Console level to capture as events (can be repeated)"`
	StateDir      string   `help:"Directory session identity is persisted under"`

	Filter       string   `help:"Only echo events matching this regex (uploads are unaffected)"`
	Exclude      []string `help:"Drop echoed events matching this regex (can be repeated)"`
	Where        []string `help:"Only echo events matching field=value (can be repeated, AND logic)"`
	Dedupe       bool     `help:"Collapse repeated identical semantic events in the echo stream"`
	DedupeWindow string   `help:"Dedupe across this window instead of consecutive events only"`

	Output        string `short:"o" help:"Tee the NDJSON stream to a file; {session} expands to the session id"`
	Bridge        string `help:"Bridge listen address (default from config)"`
	NoBridge      bool   `help:"Do not serve the local ingest bridge"`
	StatsInterval string `default:"30s" help:"Stats line cadence (0 disables)"`
	Duration      string `help:"Stop recording after this long, e.g. 30m"`
	SessionIdle   string `default:"30m" help:"Start a fresh session when no events arrive for this long (0 disables)"`
	Beacon        bool   `help:"Hand off the final batch best-effort instead of waiting for it"`
}

// Run executes the run command
func (c *RunCmd) Run(globals *Globals) error {
	if err := validateFlags(globals, false, 0); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals: INT/TERM shut down, HUP rotates the session
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)

	// Parse intervals
	statsInterval, err := parseOptionalDuration(c.StatsInterval)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_INTERVAL", fmt.Sprintf("invalid stats interval: %s", err))
	}
	duration, err := parseOptionalDuration(c.Duration)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_INTERVAL", fmt.Sprintf("invalid duration: %s", err))
	}
	idleWindow, err := parseOptionalDuration(c.SessionIdle)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_INTERVAL", fmt.Sprintf("invalid session idle window: %s", err))
	}

	// Resolve pipeline options from flags and config
	opts, err := c.buildOptions(globals)
	if err != nil {
		return err
	}
	// Keep the store's resume window in step with the rotation trigger, or a
	// rotation right after the idle gap would resume the session it just
	// closed.
	opts.SessionIdle = idleWindow
	pipe, dedupe, err := c.buildFilters(globals)
	if err != nil {
		return err
	}

	logger := buildLogger(globals)
	defer logger.Sync()
	opts.Logger = logger

	em := newRunEmitter(globals, c.Output, pipe, dedupe)
	defer em.close()
	opts.OnFlush = em.emitFlush

	// Watch the stream for idle gaps between events
	boundary := session.NewTracker(idleWindow, nil)
	idleCh := make(chan *session.Boundary, 1)
	opts.OnEvent = func(ev event.Event) {
		em.emitEvent(ev)
		if b := boundary.Observe(ev); b != nil {
			select {
			case idleCh <- b:
			default:
			}
		}
	}

	// Start the tracker
	tracker, err := swing.Init(ctx, opts)
	if err != nil {
		return outputErrorCommon(globals, "INIT_FAILED", err.Error())
	}
	live := newLivePipeline(tracker)
	agent := newAgentLogger(globals, uuid.NewString(), func() int { return live.Stats().Buffered })

	// Serve the local ingest bridge
	bridgeAddr := ""
	if !c.NoBridge {
		bridgeAddr = lo.CoalesceOrEmpty(c.Bridge, globals.Config.Bridge.Listen)
		srv := bridge.New(live, bridgeAddr, logger)
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Warn("bridge stopped", zap.Error(err))
			}
		}()
	}

	if err := em.sessionChanged(tracker, opts.IngestURL); err != nil {
		return outputErrorCommon(globals, "OUTPUT_FAILED", err.Error())
	}

	// Output run info
	if !globals.Quiet && globals.Format != "ndjson" {
		fmt.Fprintf(globals.Stderr, "Recording session %s\n", tracker.Session())
		fmt.Fprintf(globals.Stderr, "Ingest: %s\n", opts.IngestURL)
		if bridgeAddr != "" {
			fmt.Fprintf(globals.Stderr, "Bridge: http://%s\n", bridgeAddr)
		}
		fmt.Fprintln(globals.Stderr, "Press Ctrl+C to stop")
	}

	var statsCh <-chan time.Time
	if statsInterval > 0 {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		statsCh = ticker.C
	}
	var deadline <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return c.shutdown(globals, em, live, boundary, "signal")

		case <-deadline:
			return c.shutdown(globals, em, live, boundary, "duration")

		case <-hupCh:
			boundary.Reset()
			if err := c.rotate(ctx, globals, em, live, opts, "rotated", true); err != nil {
				return err
			}

		case b := <-idleCh:
			logger.Info("session idle window elapsed",
				zap.Duration("idle", b.Idle),
				zap.Int("events", b.Previous.Events),
				zap.Int("errors", b.Previous.Errors))
			if err := c.rotate(ctx, globals, em, live, opts, "idle", false); err != nil {
				return err
			}

		case <-statsCh:
			agent.Debug("stats tick")
			em.emitStats(live.Stats())
		}
	}
}

// buildOptions resolves tracker options, flags first, then config.
func (c *RunCmd) buildOptions(globals *Globals) (swing.Options, error) {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}

	apiKey := lo.CoalesceOrEmpty(c.APIKey, cfg.Ingest.APIKey)
	if apiKey == "" {
		return swing.Options{}, outputErrorCommon(globals, "MISSING_API_KEY", "no API key configured", "pass --api-key or set SWING_API_KEY")
	}
	ingestURL := lo.CoalesceOrEmpty(c.IngestURL, cfg.Ingest.URL)
	if ingestURL == "" {
		return swing.Options{}, outputErrorCommon(globals, "MISSING_INGEST_URL", "no ingestion URL configured", "pass --ingest-url or set SWING_INGEST_URL")
	}

	flushInterval, err := parseOptionalDuration(lo.CoalesceOrEmpty(c.FlushInterval, cfg.Capture.FlushInterval))
	if err != nil {
		return swing.Options{}, outputErrorCommon(globals, "INVALID_INTERVAL", fmt.Sprintf("invalid flush interval: %s", err))
	}

	opts := swing.Options{
		APIKey:         apiKey,
		IngestURL:      ingestURL,
		EntryURL:       lo.CoalesceOrEmpty(c.EntryURL, cfg.Capture.EntryURL),
		Referrer:       c.Referrer,
		UserAgent:      "swing/" + Version,
		FlushInterval:  flushInterval,
		MaxBatch:       c.MaxBatch,
		RedactedFields: c.Redact,
		ConsoleLevels:  c.ConsoleLevel,
		StatePath:      lo.CoalesceOrEmpty(c.StateDir, cfg.Capture.StatePath),
	}
	if opts.MaxBatch == 0 {
		opts.MaxBatch = cfg.Capture.MaxBatch
	}
	if len(opts.RedactedFields) == 0 {
		opts.RedactedFields = cfg.Capture.RedactedFields
	}
	if len(opts.ConsoleLevels) == 0 {
		opts.ConsoleLevels = cfg.Capture.ConsoleLevels
	}
	return opts, nil
}

// buildFilters compiles the echo-stream filters.
func (c *RunCmd) buildFilters(globals *Globals) (*filter.Pipeline, *filter.DedupeFilter, error) {
	var pattern *regexp.Regexp
	if c.Filter != "" {
		re, err := regexp.Compile(c.Filter)
		if err != nil {
			return nil, nil, outputErrorCommon(globals, "INVALID_FLAGS", fmt.Sprintf("invalid filter pattern: %s", err))
		}
		pattern = re
	}

	var excludes []*regexp.Regexp
	for _, raw := range c.Exclude {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, nil, outputErrorCommon(globals, "INVALID_FLAGS", fmt.Sprintf("invalid exclude pattern: %s", err))
		}
		excludes = append(excludes, re)
	}

	where, err := filter.NewWhereFilter(c.Where)
	if err != nil {
		return nil, nil, outputErrorCommon(globals, "INVALID_FLAGS", err.Error())
	}

	var dedupe *filter.DedupeFilter
	if c.Dedupe || c.DedupeWindow != "" {
		window, err := parseOptionalDuration(c.DedupeWindow)
		if err != nil {
			return nil, nil, outputErrorCommon(globals, "INVALID_INTERVAL", fmt.Sprintf("invalid dedupe window: %s", err))
		}
		dedupe = filter.NewDedupeFilter(window, nil)
	}

	return filter.NewPipeline(pattern, excludes, where), dedupe, nil
}

// shutdown ends the current session and reports how the final batch left.
func (c *RunCmd) shutdown(globals *Globals, em *runEmitter, live *livePipeline, boundary *session.Tracker, reason string) error {
	t := live.get()
	sessionID := t.Session()

	sum := boundary.Summary()
	globals.Debug("session closing: %d events, %d errors", sum.Events, sum.Errors)
	if em.dedupe != nil {
		globals.Debug("deduplication suppressed %d events", em.dedupe.Suppressed())
	}

	if c.Beacon {
		em.emitSessionEnd(sessionID, reason, t.Unload())
		return nil
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.Stop(stopCtx); err != nil {
		em.emitSessionEnd(sessionID, reason, false)
		return outputErrorCommon(globals, "FLUSH_FAILED", fmt.Sprintf("final flush failed: %s", err))
	}
	em.emitSessionEnd(sessionID, reason, true)
	return nil
}

// rotate flushes and closes the current session, then starts a fresh one.
// wipe also clears the persisted identity, so the next session gets a new end
// user; without it the end user carries over and only the session id changes.
func (c *RunCmd) rotate(ctx context.Context, globals *Globals, em *runEmitter, live *livePipeline, opts swing.Options, reason string, wipe bool) error {
	oldSession := live.get().Session()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var err error
	if wipe {
		err = swing.Reset(stopCtx)
	} else {
		err = live.get().Stop(stopCtx)
	}
	em.emitSessionEnd(oldSession, reason, err == nil)
	if err != nil {
		globals.Debug("rotation flush failed: %s", err)
	}

	next, err := swing.Init(ctx, opts)
	if err != nil {
		return outputErrorCommon(globals, "INIT_FAILED", fmt.Sprintf("rotation failed: %s", err))
	}
	live.set(next)
	if err := em.sessionChanged(next, opts.IngestURL); err != nil {
		return outputErrorCommon(globals, "OUTPUT_FAILED", err.Error())
	}
	if !globals.Quiet && globals.Format != "ndjson" {
		fmt.Fprintf(globals.Stderr, "Rotated to session %s\n", next.Session())
	}
	return nil
}

// livePipeline points the bridge at the current tracker so it survives
// SIGHUP session rotation.
type livePipeline struct {
	mu sync.RWMutex
	t  *swing.Tracker
}

func newLivePipeline(t *swing.Tracker) *livePipeline {
	return &livePipeline{t: t}
}

func (p *livePipeline) set(t *swing.Tracker) {
	p.mu.Lock()
	p.t = t
	p.mu.Unlock()
}

func (p *livePipeline) get() *swing.Tracker {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.t
}

func (p *livePipeline) Capture(ev event.Event)       { p.get().Capture(ev) }
func (p *livePipeline) Observer() *synth.Synthesizer { return p.get().Observer() }
func (p *livePipeline) Stats() swing.Stats           { return p.get().Stats() }

// runEmitter serializes the run's output stream. Stdout carries NDJSON or
// text depending on --format; the --output file always receives NDJSON so
// it can be replayed later. The filters narrow what is echoed, never what
// is uploaded.
type runEmitter struct {
	mu      sync.Mutex
	globals *Globals
	stdout  *output.NDJSONWriter
	rot     *rotation
	fileBuf *bufio.Writer
	fileND  *output.NDJSONWriter
	pipe    *filter.Pipeline
	dedupe  *filter.DedupeFilter
	session string
}

func newRunEmitter(globals *Globals, outputPath string, pipe *filter.Pipeline, dedupe *filter.DedupeFilter) *runEmitter {
	e := &runEmitter{
		globals: globals,
		stdout:  output.NewNDJSONWriter(globals.Stdout),
		pipe:    pipe,
		dedupe:  dedupe,
	}
	if outputPath != "" {
		e.rot = newRotation(outputPathBuilder(outputPath))
	}
	return e
}

// sessionChanged records the new session, rotates the output file, and
// announces readiness.
func (e *runEmitter) sessionChanged(t *swing.Tracker, ingestURL string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session = t.Session()
	if e.dedupe != nil {
		e.dedupe.Reset()
	}
	if e.rot != nil {
		w, _, path, err := e.rot.Open(e.session)
		if err != nil {
			return err
		}
		e.fileBuf = w
		e.fileND = output.NewNDJSONWriter(w)
		e.globals.Debug("writing stream to %s", path)
	}

	ts := time.Now().UTC().Format(time.RFC3339)
	if e.globals.Format == "ndjson" {
		e.stdout.WriteReady(ts, e.session, t.EndUser(), ingestURL)
	}
	if e.fileND != nil {
		e.fileND.WriteReady(ts, e.session, t.EndUser(), ingestURL)
	}
	return nil
}

func (e *runEmitter) emitEvent(ev event.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.pipe.Match(ev) {
		return
	}
	if e.dedupe != nil && !e.dedupe.Check(ev).ShouldEmit {
		return
	}

	if e.globals.Format == "ndjson" {
		e.stdout.WriteEvent(e.session, ev)
	} else {
		fmt.Fprintln(e.globals.Stdout, eventText(ev))
	}
	if e.fileND != nil {
		e.fileND.WriteEvent(e.session, ev)
	}
}

func (e *runEmitter) emitFlush(r swing.FlushReport) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.globals.Format == "ndjson" {
		e.stdout.WriteFlush(e.session, r.Reason, r.Events, r.Chunks, r.Bytes)
	} else if !e.globals.Quiet {
		fmt.Fprintf(e.globals.Stderr, "Flushed %d events in %d chunks (%d bytes, %s)\n", r.Events, r.Chunks, r.Bytes, r.Reason)
	}
	if e.fileND != nil {
		e.fileND.WriteFlush(e.session, r.Reason, r.Events, r.Chunks, r.Bytes)
		e.fileBuf.Flush()
	}
}

func (e *runEmitter) emitStats(s swing.Stats) {
	e.mu.Lock()
	defer e.mu.Unlock()

	line := statsLine(s)
	if e.globals.Format == "ndjson" {
		e.stdout.WriteStats(line)
	} else if !e.globals.Quiet {
		fmt.Fprintf(e.globals.Stderr, "Stats: %d buffered, %d captured, %d flushed, %d failed sends\n",
			s.Buffered, s.Captured, s.Flushed, s.FailedSends)
	}
	if e.fileND != nil {
		e.fileND.WriteStats(line)
		e.fileBuf.Flush()
	}
}

func (e *runEmitter) emitSessionEnd(sessionID, reason string, handedOff bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.globals.Format == "ndjson" {
		e.stdout.WriteSessionEnd(sessionID, reason, handedOff)
	} else if !e.globals.Quiet {
		fmt.Fprintf(e.globals.Stderr, "Session %s ended (%s)\n", sessionID, reason)
	}
	if e.fileND != nil {
		e.fileND.WriteSessionEnd(sessionID, reason, handedOff)
		e.fileBuf.Flush()
	}
}

func (e *runEmitter) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rot != nil {
		e.rot.Close()
	}
}

// outputPathBuilder expands the {session} placeholder and makes sure the
// parent directory exists.
func outputPathBuilder(pattern string) func(string) (string, error) {
	return func(sessionID string) (string, error) {
		path := strings.ReplaceAll(pattern, "{session}", sessionID)
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", err
			}
		}
		return path, nil
	}
}

// statsLine maps a tracker snapshot onto the stats output schema.
func statsLine(s swing.Stats) *output.Stats {
	line := &output.Stats{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		SessionID:   s.SessionID,
		State:       s.State,
		Buffered:    s.Buffered,
		Captured:    s.Captured,
		Flushed:     s.Flushed,
		Chunks:      s.Chunks,
		Bytes:       s.Bytes,
		FailedSends: s.FailedSends,
	}
	if !s.StartedAt.IsZero() {
		line.UptimeSeconds = int64(time.Since(s.StartedAt).Seconds())
	}
	return line
}

// parseOptionalDuration treats "" and "0" as disabled.
func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// eventText renders one event as a human-readable line.
func eventText(ev event.Event) string {
	ts := time.UnixMilli(ev.Timestamp).Format("15:04:05.000")
	sem, ok := ev.Data.(event.SemanticData)
	if !ok {
		return fmt.Sprintf("%s  %s", ts, kindLabel(ev.Kind))
	}

	detail := ""
	switch sem.Kind {
	case event.SemanticButtonClicked, event.SemanticLinkClicked:
		detail = sem.Text
		if sem.Href != "" {
			detail += " -> " + sem.Href
		}
	case event.SemanticFormSubmitted:
		detail = strings.Join(sem.Fields, ", ")
	case event.SemanticConsole:
		detail = sem.Level + ": " + sem.Message
	case event.SemanticNavigation:
		detail = sem.URL
	case event.SemanticCustom:
		detail = sem.Name
	}
	return fmt.Sprintf("%s  %-15s %s", ts, sem.Kind, detail)
}

// kindLabel names an event kind for text output.
func kindLabel(k event.Kind) string {
	switch k {
	case event.KindDocumentLoaded:
		return "document"
	case event.KindPageLoaded:
		return "page"
	case event.KindFullSnapshot:
		return "snapshot"
	case event.KindIncremental:
		return "incremental"
	case event.KindMeta:
		return "meta"
	case event.KindPlugin:
		return "plugin"
	case event.KindSemantic:
		return "semantic"
	}
	return fmt.Sprintf("type(%d)", int(k))
}
