package swing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/adeelakhani/swing-sdk/event"
	"github.com/adeelakhani/swing-sdk/internal/buffer"
	"github.com/adeelakhani/swing-sdk/internal/identity"
	"github.com/adeelakhani/swing-sdk/internal/redact"
	"github.com/adeelakhani/swing-sdk/internal/storage"
	"github.com/adeelakhani/swing-sdk/internal/synth"
	"github.com/adeelakhani/swing-sdk/internal/transport"
)

// ErrInactive reports an operation that needs a recording tracker.
var ErrInactive = errors.New("swing: tracker is not recording")

type state int

const (
	stateIdle state = iota
	stateStarting
	stateRecording
	stateStopping
)

func (s state) String() string {
	switch s {
	case stateStarting:
		return "starting"
	case stateRecording:
		return "recording"
	case stateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// FlushReport describes one successful upload, as seen by Options.OnFlush.
type FlushReport struct {
	Reason string
	Events int
	Chunks int
	Bytes  int
}

// Stats is a point-in-time snapshot of a tracker.
type Stats struct {
	State       string
	SessionID   string
	EndUserID   string
	StartedAt   time.Time
	Buffered    int
	Captured    int64
	Flushed     int64
	Chunks      int64
	Bytes       int64
	FailedSends int64
	LastFlushAt time.Time
	LastError   string
}

// Tracker runs one capture pipeline: events come in through Capture and the
// synthesizer, pass redaction, sit in the buffer, and leave through the
// transport on a fixed cadence, when the buffer fills, or on demand.
type Tracker struct {
	opts      Options
	logger    *zap.Logger
	clock     clock.Clock
	store     storage.Store
	identity  *identity.Manager
	engine    *redact.Engine
	buffer    *buffer.Buffer
	transport *transport.Client
	synth     *synth.Synthesizer

	flushSem chan struct{}

	mu         sync.Mutex
	state      state
	gen        int
	sessionID  string
	endUserID  string
	startedAt  time.Time
	cancel     context.CancelFunc
	stopRecord func()
	wg         sync.WaitGroup

	captured    int64
	flushed     int64
	chunks      int64
	bytes       int64
	failedSends int64
	lastFlushAt time.Time
	lastError   string
}

func newTracker(opts Options) (*Tracker, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	client, err := transport.NewClient(transport.Config{
		BaseURL:    opts.IngestURL,
		APIKey:     opts.APIKey,
		UserAgent:  opts.UserAgent,
		HTTPClient: opts.HTTPClient,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		dir := opts.StatePath
		if dir == "" {
			if dir, err = DefaultStatePath(); err != nil {
				return nil, fmt.Errorf("swing: resolve state path: %w", err)
			}
		}
		store = storage.Open(dir, opts.Clock, opts.Logger)
	}

	engine := redact.NewEngine(opts.Logger)
	engine.SetRules(opts.RedactedFields)

	t := &Tracker{
		opts:      opts,
		logger:    opts.Logger,
		clock:     opts.Clock,
		store:     store,
		identity:  identity.NewManager(store, opts.Clock, opts.Logger, opts.SessionIdle),
		engine:    engine,
		transport: client,
		flushSem:  make(chan struct{}, 1),
	}
	t.buffer = buffer.New(opts.MaxBatch, t.onBufferFull)
	t.synth = synth.New(synth.Config{
		Sink:          t.Capture,
		Clock:         opts.Clock,
		Logger:        opts.Logger,
		ConsoleLevels: opts.ConsoleLevels,
	})
	return t, nil
}

// start resolves identity, announces the session to the backend, and begins
// recording. A backend refusal leaves the tracker idle.
func (t *Tracker) start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != stateIdle {
		t.mu.Unlock()
		return nil
	}
	t.state = stateStarting
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	sessionID, resumed := t.identity.GetOrCreateSession()
	endUserID, _ := t.identity.GetOrCreateEndUser()

	res, err := t.transport.InitSession(ctx, sessionID, endUserID, t.opts.EntryURL, t.opts.Referrer)
	if err != nil {
		t.mu.Lock()
		t.state = stateIdle
		t.mu.Unlock()
		return fmt.Errorf("swing: %w", err)
	}
	if res.SessionID != "" && res.SessionID != sessionID {
		t.identity.AdoptSession(res.SessionID)
		sessionID = res.SessionID
	}
	if res.EndUserID != "" && res.EndUserID != endUserID {
		t.identity.AdoptEndUser(res.EndUserID)
		endUserID = res.EndUserID
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.sessionID = sessionID
	t.endUserID = endUserID
	t.startedAt = t.clock.Now()
	t.cancel = cancel
	t.state = stateRecording
	t.mu.Unlock()

	t.logger.Info("recording started",
		zap.String("sessionId", sessionID),
		zap.String("endUserId", endUserID),
		zap.Bool("resumed", resumed))

	if t.opts.EntryURL != "" {
		t.synth.ObserveNavigation(t.opts.EntryURL)
	}

	if t.opts.Record != nil {
		stop, err := t.opts.Record(t.Capture, RecordOptions{
			BlockSelectors: t.opts.BlockedFields,
			MaskSelectors:  t.opts.RedactedFields,
			SnapshotEvery:  t.opts.SnapshotEvery,
			Sampling:       t.opts.Sampling,
		})
		if err != nil {
			cancel()
			t.mu.Lock()
			t.state = stateIdle
			t.cancel = nil
			t.mu.Unlock()
			return fmt.Errorf("swing: attach recorder: %w", err)
		}
		t.mu.Lock()
		t.stopRecord = stop
		t.mu.Unlock()
	}

	t.wg.Add(1)
	go t.loop(loopCtx, gen)
	if t.opts.URLSource != nil {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.synth.WatchURL(loopCtx, t.opts.URLSource, t.opts.URLPollInterval)
		}()
	}
	return nil
}

// loop drives the fixed-interval flush until the tracker stops.
func (t *Tracker) loop(ctx context.Context, gen int) {
	defer t.wg.Done()
	ticker := t.clock.Ticker(t.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go func() { _ = t.flush(ctx, gen, "interval", false) }()
		}
	}
}

func (t *Tracker) onBufferFull() {
	t.mu.Lock()
	gen := t.gen
	recording := t.state == stateRecording
	t.mu.Unlock()
	if !recording {
		return
	}
	go func() { _ = t.flush(context.Background(), gen, "batch full", false) }()
}

// Capture redacts ev and buffers it for the next upload. Events arriving
// while the tracker is not recording are dropped.
func (t *Tracker) Capture(ev event.Event) {
	t.mu.Lock()
	if t.state != stateRecording {
		t.mu.Unlock()
		return
	}
	t.captured++
	t.mu.Unlock()

	ev = t.engine.Apply(ev)
	t.buffer.Append(ev)
	t.identity.RecordActivity()
	if t.opts.OnEvent != nil {
		t.opts.OnEvent(ev)
	}
}

// Track buffers a developer-defined business event. It travels with the
// session recording, unlike SendCustomEvent which posts immediately.
func (t *Tracker) Track(name string, properties map[string]any) {
	t.Capture(event.NewCustom(t.clock.Now().UnixMilli(), name, properties))
}

// Observer exposes the synthesizer so hosts can report clicks, submits,
// console lines, and navigations.
func (t *Tracker) Observer() *synth.Synthesizer {
	return t.synth
}

// Flush uploads everything buffered right now, waiting for any in-flight
// upload first. A failed upload requeues the batch and returns the error.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	gen := t.gen
	t.mu.Unlock()
	return t.flush(ctx, gen, "manual", true)
}

// flush drains the buffer and ships it. Non-waiting callers skip when an
// upload is already in flight; the drained batch goes back to the front of
// the buffer on failure so nothing is lost or reordered.
func (t *Tracker) flush(ctx context.Context, gen int, reason string, wait bool) error {
	if wait {
		t.flushSem <- struct{}{}
	} else {
		select {
		case t.flushSem <- struct{}{}:
		default:
			t.logger.Debug("flush already in flight, skipping", zap.String("reason", reason))
			return nil
		}
	}
	defer func() { <-t.flushSem }()

	t.mu.Lock()
	if gen != t.gen || (t.state != stateRecording && t.state != stateStopping) {
		t.mu.Unlock()
		return nil
	}
	sessionID, endUserID := t.sessionID, t.endUserID
	t.mu.Unlock()

	batch := t.buffer.Drain()
	if len(batch) == 0 {
		return nil
	}

	report, err := t.transport.SendChunked(ctx, batch, sessionID, endUserID)
	if err != nil {
		t.buffer.RequeueFront(batch)
		t.mu.Lock()
		t.failedSends++
		t.lastError = err.Error()
		t.mu.Unlock()
		t.logger.Warn("flush failed, batch requeued",
			zap.Int("events", len(batch)),
			zap.String("reason", reason),
			zap.Error(err))
		return err
	}

	t.mu.Lock()
	t.flushed += int64(report.Events)
	t.chunks += int64(report.Chunks)
	t.bytes += int64(report.Bytes)
	t.lastFlushAt = t.clock.Now()
	t.lastError = ""
	t.mu.Unlock()

	if t.opts.OnFlush != nil {
		t.opts.OnFlush(FlushReport{
			Reason: reason,
			Events: report.Events,
			Chunks: report.Chunks,
			Bytes:  report.Bytes,
		})
	}
	return nil
}

// Stop ends recording with a final synchronous flush. The tracker can be
// initialized again afterwards.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.state != stateRecording {
		t.mu.Unlock()
		return nil
	}
	t.state = stateStopping
	gen := t.gen
	cancel := t.cancel
	t.cancel = nil
	stopRecord := t.stopRecord
	t.stopRecord = nil
	t.mu.Unlock()

	if stopRecord != nil {
		stopRecord()
	}
	cancel()
	t.wg.Wait()

	err := t.flush(ctx, gen, "final", true)

	t.mu.Lock()
	t.state = stateIdle
	t.mu.Unlock()
	t.logger.Info("recording stopped", zap.Error(err))
	return err
}

// Unload ends recording with one best-effort beacon instead of a full flush.
// It reports whether the final batch was handed off to the network.
func (t *Tracker) Unload() bool {
	t.mu.Lock()
	if t.state != stateRecording {
		t.mu.Unlock()
		return false
	}
	t.state = stateStopping
	sessionID := t.sessionID
	cancel := t.cancel
	t.cancel = nil
	stopRecord := t.stopRecord
	t.stopRecord = nil
	t.mu.Unlock()

	if stopRecord != nil {
		stopRecord()
	}
	cancel()
	t.wg.Wait()

	// Serialize with any in-flight upload so the beacon carries exactly the
	// leftovers.
	t.flushSem <- struct{}{}
	batch := t.buffer.Drain()
	ok := t.transport.SendBeacon(batch, sessionID)
	<-t.flushSem

	t.mu.Lock()
	t.state = stateIdle
	t.mu.Unlock()
	t.logger.Info("recording unloaded", zap.Int("events", len(batch)), zap.Bool("handedOff", ok))
	return ok
}

// Identify makes userID the persisted end user from here on and attaches
// developer-known attributes to it.
func (t *Tracker) Identify(ctx context.Context, userID string, attributes map[string]any) error {
	sessionID, err := t.requireSession()
	if err != nil {
		return err
	}
	t.adoptEndUser(userID)
	return t.transport.SendUserData(ctx, userID, attributes, sessionID)
}

// AddUserInfo syncs extra attributes for the current end user without
// changing who that user is. Attribute keys overwrite earlier values.
func (t *Tracker) AddUserInfo(ctx context.Context, attributes map[string]any) error {
	sessionID, err := t.requireSession()
	if err != nil {
		return err
	}
	return t.transport.SendUserData(ctx, t.EndUser(), attributes, sessionID)
}

// AuthenticateUser reports a sign-in, naming which fields carried
// credentials so the backend can treat them accordingly. Like Identify it
// makes userID the persisted end user.
func (t *Tracker) AuthenticateUser(ctx context.Context, userID string, attributes map[string]any, authFields []string) error {
	sessionID, err := t.requireSession()
	if err != nil {
		return err
	}
	t.adoptEndUser(userID)
	return t.transport.SendUserAuth(ctx, userID, attributes, sessionID, authFields)
}

// SendCustomEvent posts one business event immediately, outside the buffered
// pipeline.
func (t *Tracker) SendCustomEvent(ctx context.Context, name string, properties map[string]any) error {
	sessionID, err := t.requireSession()
	if err != nil {
		return err
	}
	return t.transport.SendCustomEvent(ctx, sessionID, name, properties)
}

// SendCustomEventBatch posts several business events in one request.
func (t *Tracker) SendCustomEventBatch(ctx context.Context, events []transport.CustomEvent) error {
	sessionID, err := t.requireSession()
	if err != nil {
		return err
	}
	return t.transport.SendCustomEventBatch(ctx, sessionID, events)
}

// SetRedactedFields replaces the redaction rules for all future captures.
func (t *Tracker) SetRedactedFields(rules []string) {
	t.engine.SetRules(rules)
}

// Session returns the current session id, empty until recording starts.
func (t *Tracker) Session() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// EndUser returns the current end-user id, empty until recording starts.
func (t *Tracker) EndUser() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endUserID
}

// Stats snapshots the tracker.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		State:       t.state.String(),
		SessionID:   t.sessionID,
		EndUserID:   t.endUserID,
		StartedAt:   t.startedAt,
		Buffered:    t.buffer.Len(),
		Captured:    t.captured,
		Flushed:     t.flushed,
		Chunks:      t.chunks,
		Bytes:       t.bytes,
		FailedSends: t.failedSends,
		LastFlushAt: t.lastFlushAt,
		LastError:   t.lastError,
	}
}

func (t *Tracker) requireSession() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateRecording {
		return "", ErrInactive
	}
	return t.sessionID, nil
}

func (t *Tracker) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state != stateIdle
}

// adoptEndUser persists a developer-supplied end-user id and makes it the
// one outgoing batches carry.
func (t *Tracker) adoptEndUser(userID string) {
	if userID == "" {
		return
	}
	t.identity.AdoptEndUser(userID)
	t.mu.Lock()
	t.endUserID = userID
	t.mu.Unlock()
}

func (t *Tracker) close() error {
	return t.store.Close()
}
