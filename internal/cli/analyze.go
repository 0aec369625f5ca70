package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/adeelakhani/swing-sdk/event"
	"github.com/adeelakhani/swing-sdk/internal/filter"
	"github.com/adeelakhani/swing-sdk/internal/output"
)

// AnalyzeCmd summarizes a recorded event log offline
type AnalyzeCmd struct {
	File  string   `arg:"" help:"Event log to analyze (NDJSON, bare events or a run stream)"`
	Top   int      `default:"5" help:"How many top URLs and console errors to show"`
	Where []string `help:"Analyze only events matching field=value (can be repeated, AND logic)"`
}

type countEntry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type analysisSummary struct {
	TotalEvents   int            `json:"total_events"`
	ByKind        map[string]int `json:"by_kind"`
	Semantic      map[string]int `json:"semantic,omitempty"`
	ConsoleErrors int            `json:"console_errors"`
	ConsoleWarns  int            `json:"console_warns"`
	DurationMS    int64          `json:"duration_ms"`
	HasErrors     bool           `json:"has_errors"`
}

type analysisOutput struct {
	Type          string          `json:"type"`
	SchemaVersion int             `json:"schemaVersion"`
	File          string          `json:"file"`
	Summary       analysisSummary `json:"summary"`
	TopURLs       []countEntry    `json:"top_urls,omitempty"`
	TopErrors     []countEntry    `json:"top_errors,omitempty"`
}

// Run executes the analyze command
func (c *AnalyzeCmd) Run(globals *Globals) error {
	where, err := filter.NewWhereFilter(c.Where)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_FLAGS", err.Error())
	}

	events, err := readEventLog(c.File)
	if err != nil {
		return outputErrorCommon(globals, "REPLAY_PARSE_FAILED", err.Error())
	}
	if len(events) == 0 {
		return outputErrorCommon(globals, "REPLAY_PARSE_FAILED", fmt.Sprintf("no events in %s", c.File))
	}
	// Zero matches is not an error; the summary reports zeros.
	if where != nil {
		events = lo.Filter(events, func(ev event.Event, _ int) bool { return where.Match(ev) })
	}

	summary := analysisSummary{
		TotalEvents: len(events),
		ByKind:      lo.CountValuesBy(events, func(ev event.Event) string { return kindLabel(ev.Kind) }),
		Semantic:    map[string]int{},
	}

	urlCounts := map[string]int{}
	errorCounts := map[string]int{}
	var firstTS, lastTS int64
	for i, ev := range events {
		if i == 0 || ev.Timestamp < firstTS {
			firstTS = ev.Timestamp
		}
		if ev.Timestamp > lastTS {
			lastTS = ev.Timestamp
		}
		sem, ok := ev.Data.(event.SemanticData)
		if !ok {
			continue
		}
		summary.Semantic[string(sem.Kind)]++
		switch sem.Kind {
		case event.SemanticNavigation:
			if sem.URL != "" {
				urlCounts[sem.URL]++
			}
		case event.SemanticConsole:
			switch sem.Level {
			case "error":
				summary.ConsoleErrors++
				errorCounts[sem.Message]++
			case "warn":
				summary.ConsoleWarns++
			}
		}
	}
	summary.DurationMS = lastTS - firstTS
	summary.HasErrors = summary.ConsoleErrors > 0
	if len(summary.Semantic) == 0 {
		summary.Semantic = nil
	}

	top := c.Top
	if top <= 0 {
		top = 5
	}
	out := analysisOutput{
		Type:          "analysis",
		SchemaVersion: output.SchemaVersion,
		File:          c.File,
		Summary:       summary,
		TopURLs:       topCounts(urlCounts, top),
		TopErrors:     topCounts(errorCounts, top),
	}

	if globals.Format == "ndjson" {
		b, err := json.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Fprintln(globals.Stdout, string(b))
		return nil
	}

	fmt.Fprintf(globals.Stdout, "Analysis of %s\n\n", c.File)
	fmt.Fprintf(globals.Stdout, "Total events: %s\n", humanize.Comma(int64(summary.TotalEvents)))
	fmt.Fprintf(globals.Stdout, "Duration: %s\n", (time.Duration(summary.DurationMS) * time.Millisecond).Round(time.Second))
	fmt.Fprintln(globals.Stdout)
	fmt.Fprintln(globals.Stdout, "By kind:")
	for _, e := range topCounts(summary.ByKind, len(summary.ByKind)) {
		fmt.Fprintf(globals.Stdout, "  %-12s %d\n", e.Value, e.Count)
	}
	if summary.Semantic != nil {
		fmt.Fprintln(globals.Stdout)
		fmt.Fprintln(globals.Stdout, "Semantic:")
		for _, e := range topCounts(summary.Semantic, len(summary.Semantic)) {
			fmt.Fprintf(globals.Stdout, "  %-15s %d\n", e.Value, e.Count)
		}
	}
	if len(out.TopURLs) > 0 {
		fmt.Fprintln(globals.Stdout)
		fmt.Fprintln(globals.Stdout, "Top URLs:")
		for _, e := range out.TopURLs {
			fmt.Fprintf(globals.Stdout, "  %4d  %s\n", e.Count, e.Value)
		}
	}
	if len(out.TopErrors) > 0 {
		fmt.Fprintln(globals.Stdout)
		fmt.Fprintln(globals.Stdout, "Console errors:")
		for _, e := range out.TopErrors {
			fmt.Fprintf(globals.Stdout, "  %4d  %s\n", e.Count, e.Value)
		}
	}
	return nil
}

// topCounts returns the n most frequent entries, ties broken by value so
// output stays stable.
func topCounts(counts map[string]int, n int) []countEntry {
	entries := lo.MapToSlice(counts, func(value string, count int) countEntry {
		return countEntry{Value: value, Count: count}
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Value < entries[j].Value
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
