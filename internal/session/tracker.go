// Package session watches the live event stream for recording-session
// boundaries. A session that receives no events for the idle window is over;
// the next event belongs to a fresh one.
package session

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/adeelakhani/swing-sdk/event"
)

// Tracker counts events per session and detects idle gaps between them.
type Tracker struct {
	mu          sync.Mutex
	idle        time.Duration
	clk         clock.Clock
	initialized bool
	number      int
	startedAt   time.Time
	lastSeen    time.Time
	events      int
	errors      int
}

// Summary describes a completed or in-flight session.
type Summary struct {
	Events   int
	Errors   int
	Duration time.Duration
}

// Boundary is returned when an event arrives after the idle window elapsed.
// The triggering event is counted into the new session.
type Boundary struct {
	Number   int           // Ordinal of the session that just began (1-based)
	Idle     time.Duration // How long the stream was quiet
	Previous Summary       // The session the gap closed
}

// NewTracker creates a tracker. idle=0 disables gap detection; counting still
// works. clk may be nil.
func NewTracker(idle time.Duration, clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{idle: idle, clk: clk}
}

// Observe records one event and reports a Boundary when it ends an idle gap.
func (t *Tracker) Observe(ev event.Event) *Boundary {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clk.Now()

	// First event starts session 1
	if !t.initialized {
		t.initialized = true
		t.number = 1
		t.startedAt = now
		t.lastSeen = now
		t.events = 1
		t.countError(ev)
		return nil
	}

	// Idle gap crossed: close the previous session and start a new one
	if t.idle > 0 && now.Sub(t.lastSeen) > t.idle {
		gap := now.Sub(t.lastSeen)
		prev := Summary{
			Events:   t.events,
			Errors:   t.errors,
			Duration: t.lastSeen.Sub(t.startedAt),
		}

		t.number++
		t.startedAt = now
		t.lastSeen = now
		t.events = 1
		t.errors = 0
		t.countError(ev)

		return &Boundary{Number: t.number, Idle: gap, Previous: prev}
	}

	// Same session
	t.lastSeen = now
	t.events++
	t.countError(ev)
	return nil
}

// Summary returns the counts for the session in flight.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return Summary{}
	}
	return Summary{
		Events:   t.events,
		Errors:   t.errors,
		Duration: t.lastSeen.Sub(t.startedAt),
	}
}

// Reset starts the next session immediately. Called when rotation happens for
// reasons the tracker cannot see, like SIGHUP.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return
	}
	now := t.clk.Now()
	t.number++
	t.startedAt = now
	t.lastSeen = now
	t.events = 0
	t.errors = 0
}

// countError tallies console errors. Callers must hold the mutex.
func (t *Tracker) countError(ev event.Event) {
	if sd, ok := ev.Data.(event.SemanticData); ok && sd.Kind == event.SemanticConsole && sd.Level == "error" {
		t.errors++
	}
}
