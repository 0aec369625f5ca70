package filter

import (
	"regexp"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/adeelakhani/swing-sdk/event"
)

func TestPipeline_MatchOrder(t *testing.T) {
	pat := regexp.MustCompile("boom")
	ex1 := regexp.MustCompile("ignore")
	where, err := NewWhereFilter([]string{"level=error"})
	if err != nil {
		t.Fatalf("where build failed: %v", err)
	}
	p := NewPipeline(pat, []*regexp.Regexp{ex1}, where)

	ev := event.NewConsole(1, "error", "boom happened")
	if !p.Match(ev) {
		t.Fatalf("expected event to match pipeline")
	}

	ev2 := event.NewConsole(2, "error", "ignore this boom")
	if p.Match(ev2) {
		t.Fatalf("expected exclude to drop event")
	}

	ev3 := event.NewConsole(3, "warn", "boom happened")
	if p.Match(ev3) {
		t.Fatalf("expected where to drop non-error event")
	}
}

func TestPipeline_NilIsAllowAll(t *testing.T) {
	if NewPipeline(nil, nil, nil) != nil {
		t.Fatalf("expected nil pipeline when no filters provided")
	}
	p := NewPipeline(nil, nil, nil)
	ev := event.NewConsole(1, "log", "anything")
	if !p.Match(ev) {
		t.Fatalf("nil pipeline should allow all")
	}
	snap := event.Event{Kind: event.KindFullSnapshot, Data: event.OpaqueData{}, Timestamp: 1}
	if !p.Match(snap) {
		t.Fatalf("nil pipeline should allow engine events")
	}
}

func TestWhereClause_Operators(t *testing.T) {
	nav := event.NewNavigation(1, "https://app.example.com/checkout", "https://app.example.com/cart")

	cases := []struct {
		clause string
		want   bool
	}{
		{"url=https://app.example.com/checkout", true},
		{"url!=https://app.example.com/cart", true},
		{"url~checkout", true},
		{"url!~login", true},
		{"url^https://app.example.com", true},
		{"url$/checkout", true},
		{"semantic=navigation", true},
		{"kind=semantic", true},
		{"semantic=console", false},
		{"message~anything", false},
	}
	for _, tc := range cases {
		wc, err := ParseWhereClause(tc.clause)
		if err != nil {
			t.Fatalf("parse %q failed: %v", tc.clause, err)
		}
		if got := wc.Match(nav); got != tc.want {
			t.Fatalf("%q: got %v, want %v", tc.clause, got, tc.want)
		}
	}
}

func TestWhereClause_LevelRange(t *testing.T) {
	wc, err := ParseWhereClause("level>=warn")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if !wc.Match(event.NewConsole(1, "error", "x")) {
		t.Fatalf("error should satisfy level>=warn")
	}
	if wc.Match(event.NewConsole(2, "info", "x")) {
		t.Fatalf("info should not satisfy level>=warn")
	}
	// Engine events carry no level and never match a range
	snap := event.Event{Kind: event.KindFullSnapshot, Data: event.OpaqueData{}, Timestamp: 3}
	if wc.Match(snap) {
		t.Fatalf("snapshot should not satisfy a level comparison")
	}

	le, err := ParseWhereClause("level<=log")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !le.Match(event.NewConsole(4, "debug", "x")) {
		t.Fatalf("debug should satisfy level<=log")
	}
	if le.Match(event.NewConsole(5, "error", "x")) {
		t.Fatalf("error should not satisfy level<=log")
	}
}

func TestWhereClause_ParseErrors(t *testing.T) {
	if _, err := ParseWhereClause("nonsense"); err == nil {
		t.Fatalf("expected error for clause without operator")
	}
	if _, err := ParseWhereClause("message~["); err == nil {
		t.Fatalf("expected error for invalid regex")
	}
	if _, err := NewWhereFilter([]string{"level=error", "broken"}); err == nil {
		t.Fatalf("expected filter build to surface the bad clause")
	}
}

func TestDedupe_Consecutive(t *testing.T) {
	f := NewDedupeFilter(0, clock.NewMock())

	boom := event.NewConsole(1, "error", "boom")
	if res := f.Check(boom); !res.ShouldEmit {
		t.Fatalf("first occurrence should emit")
	}
	if res := f.Check(boom); res.ShouldEmit {
		t.Fatalf("consecutive duplicate should be suppressed")
	}

	// Engine events pass through without breaking the duplicate chain
	snap := event.Event{Kind: event.KindIncremental, Data: event.OpaqueData{}, Timestamp: 2}
	if res := f.Check(snap); !res.ShouldEmit {
		t.Fatalf("engine events are never deduplicated")
	}
	if res := f.Check(boom); res.ShouldEmit {
		t.Fatalf("duplicate after an engine event should stay suppressed")
	}

	if res := f.Check(event.NewConsole(3, "error", "different")); !res.ShouldEmit {
		t.Fatalf("different message should emit")
	}
	if res := f.Check(boom); !res.ShouldEmit {
		t.Fatalf("non-consecutive duplicate should emit in consecutive mode")
	}

	if got := f.Suppressed(); got != 2 {
		t.Fatalf("suppressed count = %d, want 2", got)
	}
}

func TestDedupe_Window(t *testing.T) {
	clk := clock.NewMock()
	f := NewDedupeFilter(10*time.Second, clk)

	boom := event.NewConsole(1, "error", "boom")
	if res := f.Check(boom); !res.ShouldEmit {
		t.Fatalf("first occurrence should emit")
	}

	clk.Add(2 * time.Second)
	if res := f.Check(event.NewConsole(2, "warn", "other")); !res.ShouldEmit {
		t.Fatalf("unrelated event should emit")
	}

	// Non-consecutive duplicate inside the window is still suppressed
	clk.Add(2 * time.Second)
	if res := f.Check(boom); res.ShouldEmit {
		t.Fatalf("duplicate within window should be suppressed")
	}

	clk.Add(11 * time.Second)
	if res := f.Check(boom); !res.ShouldEmit {
		t.Fatalf("duplicate after window expiry should emit again")
	}
}

func TestDedupe_Reset(t *testing.T) {
	f := NewDedupeFilter(0, clock.NewMock())

	boom := event.NewConsole(1, "error", "boom")
	f.Check(boom)
	if res := f.Check(boom); res.ShouldEmit {
		t.Fatalf("duplicate should be suppressed before reset")
	}

	f.Reset()
	if res := f.Check(boom); !res.ShouldEmit {
		t.Fatalf("reset should clear duplicate state")
	}
}
