// Package swing is the session capture SDK core: an event pipeline that
// redacts, buffers, and ships recording events plus the semantic events the
// SDK synthesizes around them.
//
// A host typically runs one tracker for the lifetime of a session:
//
//	tracker, err := swing.Init(ctx, swing.Options{
//		APIKey:    key,
//		IngestURL: "https://ingest.swing.rs",
//		EntryURL:  "https://app.example.com/home",
//	})
//
// then feeds it captured events and observations, and finally calls Stop for
// a clean final upload or Unload for the best-effort beacon path.
package swing

import (
	"context"
	"errors"
	"sync"
)

var (
	singletonMu sync.Mutex
	current     *Tracker
)

// Init starts the shared tracker. While one is already running, Init returns
// it unchanged; a stopped one is torn down and replaced.
func Init(ctx context.Context, opts Options) (*Tracker, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if current != nil {
		if current.running() {
			return current, nil
		}
		_ = current.close()
		current = nil
	}

	t, err := newTracker(opts)
	if err != nil {
		return nil, err
	}
	if err := t.start(ctx); err != nil {
		_ = t.close()
		return nil, err
	}
	current = t
	return t, nil
}

// Active returns the running tracker, or nil when none is recording.
func Active() *Tracker {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if current == nil || !current.running() {
		return nil
	}
	return current
}

// Reset stops the shared tracker and wipes stored identity, so the next Init
// starts a brand new session and end user.
func Reset(ctx context.Context) error {
	singletonMu.Lock()
	t := current
	current = nil
	singletonMu.Unlock()

	if t == nil {
		return nil
	}
	return errors.Join(t.Stop(ctx), t.identity.Clear(), t.close())
}
