package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"

	swing "github.com/adeelakhani/swing-sdk"
	"github.com/adeelakhani/swing-sdk/event"
	"github.com/adeelakhani/swing-sdk/internal/config"
	"github.com/adeelakhani/swing-sdk/internal/filter"
	"github.com/adeelakhani/swing-sdk/internal/output"
	"github.com/adeelakhani/swing-sdk/internal/storage"
)

// ReplayCmd replays a recorded event log through the pipeline, either paced
// by the original timestamps or as fast as possible. The file may hold bare
// wire events or a stream written by run --output; non-event lines are
// skipped.
type ReplayCmd struct {
	File    string   `arg:"" help:"Event log to replay (NDJSON, one event or stream line per row)"`
	Speed   float64  `default:"1" help:"Playback speed multiplier"`
	Instant bool     `help:"Replay without pacing"`
	DryRun  bool     `help:"Parse and echo events without uploading"`
	Where   []string `help:"Replay only events matching field=value (can be repeated, AND logic)"`

	APIKey    string `help:"Project API key (falls back to config / SWING_API_KEY)"`
	IngestURL string `help:"Ingestion backend origin (falls back to config / SWING_INGEST_URL)"`
}

// Run executes the replay command
func (c *ReplayCmd) Run(globals *Globals) error {
	if err := validateFlags(globals, c.Instant, c.Speed); err != nil {
		return err
	}
	where, err := filter.NewWhereFilter(c.Where)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_FLAGS", err.Error())
	}
	speed := c.Speed
	if speed == 0 {
		speed = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	events, err := readEventLog(c.File)
	if err != nil {
		return outputErrorCommon(globals, "REPLAY_PARSE_FAILED", err.Error())
	}
	if where != nil {
		events = lo.Filter(events, func(ev event.Event, _ int) bool { return where.Match(ev) })
	}

	if !globals.Quiet {
		fmt.Fprintf(globals.Stderr, "Replaying events from %s\n", c.File)
	}

	if c.DryRun {
		return c.dryRun(globals, events)
	}

	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}
	apiKey := lo.CoalesceOrEmpty(c.APIKey, cfg.Ingest.APIKey)
	if apiKey == "" {
		return outputErrorCommon(globals, "MISSING_API_KEY", "no API key configured", "pass --api-key or set SWING_API_KEY")
	}
	ingestURL := lo.CoalesceOrEmpty(c.IngestURL, cfg.Ingest.URL)
	if ingestURL == "" {
		return outputErrorCommon(globals, "MISSING_INGEST_URL", "no ingestion URL configured", "pass --ingest-url or set SWING_INGEST_URL")
	}

	logger := buildLogger(globals)
	defer logger.Sync()

	// Replay sessions are synthetic; keep identity off the real state dir.
	tracker, err := swing.Init(ctx, swing.Options{
		APIKey:    apiKey,
		IngestURL: ingestURL,
		Store:     storage.NewMemory(clock.New()),
		Logger:    logger,
	})
	if err != nil {
		return outputErrorCommon(globals, "INIT_FAILED", err.Error())
	}

	replayed := 0
	var prev int64
	for i, ev := range events {
		if i > 0 && !c.Instant {
			if gap := paceGap(prev, ev.Timestamp, speed); gap > 0 {
				select {
				case <-time.After(gap):
				case <-ctx.Done():
					return c.finish(globals, tracker, replayed)
				}
			}
		}
		prev = ev.Timestamp
		tracker.Capture(ev)
		replayed++
	}
	return c.finish(globals, tracker, replayed)
}

// finish flushes whatever is still buffered and reports the count.
func (c *ReplayCmd) finish(globals *Globals, tracker *swing.Tracker, replayed int) error {
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tracker.Stop(stopCtx); err != nil {
		return outputErrorCommon(globals, "FLUSH_FAILED", fmt.Sprintf("final flush failed: %s", err))
	}
	if !globals.Quiet {
		fmt.Fprintf(globals.Stderr, "Replayed %d events\n", replayed)
	}
	return nil
}

func (c *ReplayCmd) dryRun(globals *Globals, events []event.Event) error {
	w := output.NewNDJSONWriter(globals.Stdout)
	for _, ev := range events {
		if globals.Format == "ndjson" {
			if err := w.WriteEvent("replay", ev); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(globals.Stdout, eventText(ev))
		}
	}
	if !globals.Quiet {
		fmt.Fprintf(globals.Stderr, "Replayed %d events (dry run)\n", len(events))
	}
	return nil
}

// streamProbe sniffs one log line. Stream files wrap events in an envelope
// with a type tag; bare files hold wire events whose "type" is a number and
// therefore decodes to an empty string here.
type streamProbe struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event"`
}

// readEventLog loads every event in the file, in order.
func readEventLog(path string) ([]event.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []event.Event
	scanner := bufio.NewScanner(f)
	// Snapshot events can be large single lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var probe streamProbe
		if err := json.Unmarshal(line, &probe); err == nil && probe.Type != "" {
			if probe.Type != "event" || len(probe.Event) == 0 {
				continue
			}
			var ev event.Event
			if err := json.Unmarshal(probe.Event, &ev); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			events = append(events, ev)
			continue
		}

		var ev event.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// paceGap converts the timestamp delta between two events into a sleep,
// scaled by speed. Out-of-order timestamps replay back to back.
func paceGap(prev, next int64, speed float64) time.Duration {
	delta := next - prev
	if delta <= 0 || speed <= 0 {
		return 0
	}
	return time.Duration(float64(delta)/speed) * time.Millisecond
}
