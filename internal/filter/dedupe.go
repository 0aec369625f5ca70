package filter

import (
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/adeelakhani/swing-sdk/event"
)

// DedupeFilter collapses repeated identical semantic events. Recording engine
// events are never deduplicated; every snapshot and mutation is distinct data.
type DedupeFilter struct {
	mu         sync.Mutex
	window     time.Duration // Time window for deduplication (0 = consecutive only)
	clk        clock.Clock
	seen       map[string]*dedupeEntry
	lastKey    string
	suppressed int64
}

type dedupeEntry struct {
	count     int
	firstSeen time.Time
	lastSeen  time.Time
}

// NewDedupeFilter creates a new deduplication filter
// window=0 means only collapse consecutive identical events
// window>0 means collapse identical events within the time window
func NewDedupeFilter(window time.Duration, clk clock.Clock) *DedupeFilter {
	if clk == nil {
		clk = clock.New()
	}
	return &DedupeFilter{
		window: window,
		clk:    clk,
		seen:   make(map[string]*dedupeEntry),
	}
}

// DedupeResult holds the result of a dedupe check
type DedupeResult struct {
	ShouldEmit bool      // Whether this event should be emitted
	Count      int       // Number of duplicates (1 = first occurrence)
	FirstSeen  time.Time // First occurrence timestamp
	LastSeen   time.Time // Last occurrence timestamp (same as FirstSeen if count=1)
}

// Check determines if an event should be emitted or suppressed
func (f *DedupeFilter) Check(ev event.Event) DedupeResult {
	sd, ok := ev.Data.(event.SemanticData)
	if !ok {
		return DedupeResult{ShouldEmit: true, Count: 1}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := dedupeKey(sd)
	now := f.clk.Now()

	// Clean up old entries if using window mode
	if f.window > 0 {
		f.cleanOldEntries(now)
	}

	// Check if we've seen this event
	if existing, ok := f.seen[key]; ok {
		existing.count++
		existing.lastSeen = now

		// In window mode, always suppress duplicates within window
		if f.window > 0 {
			f.suppressed++
			return DedupeResult{
				ShouldEmit: false,
				Count:      existing.count,
				FirstSeen:  existing.firstSeen,
				LastSeen:   existing.lastSeen,
			}
		}

		// In consecutive mode, only suppress if same as last event
		if f.lastKey == key {
			f.suppressed++
			return DedupeResult{
				ShouldEmit: false,
				Count:      existing.count,
				FirstSeen:  existing.firstSeen,
				LastSeen:   existing.lastSeen,
			}
		}
	}

	// New event or different from last (in consecutive mode)
	f.seen[key] = &dedupeEntry{
		count:     1,
		firstSeen: now,
		lastSeen:  now,
	}
	f.lastKey = key

	return DedupeResult{
		ShouldEmit: true,
		Count:      1,
		FirstSeen:  now,
		LastSeen:   now,
	}
}

// Suppressed returns how many events this filter has dropped so far.
func (f *DedupeFilter) Suppressed() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suppressed
}

// Reset clears the deduplication state. Called on session rotation so a new
// session starts with a clean slate.
func (f *DedupeFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = make(map[string]*dedupeEntry)
	f.lastKey = ""
}

// cleanOldEntries removes entries outside the time window
func (f *DedupeFilter) cleanOldEntries(now time.Time) {
	cutoff := now.Add(-f.window)
	for key, entry := range f.seen {
		if entry.lastSeen.Before(cutoff) {
			delete(f.seen, key)
		}
	}
}

// dedupeKey identifies a semantic event by its visible content.
func dedupeKey(sd event.SemanticData) string {
	return strings.Join([]string{string(sd.Kind), sd.Level, sd.Message, sd.Text, sd.Href, sd.URL, sd.Name}, "\x00")
}
