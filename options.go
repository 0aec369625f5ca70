package swing

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/adeelakhani/swing-sdk/event"
	"github.com/adeelakhani/swing-sdk/internal/buffer"
	"github.com/adeelakhani/swing-sdk/internal/storage"
)

const (
	// DefaultFlushInterval is the cadence of the upload loop.
	DefaultFlushInterval = 5 * time.Second
	// DefaultMaxBatch is the buffered event count that forces an early flush.
	DefaultMaxBatch = buffer.DefaultMaxBatch
)

// Options configures a Tracker. APIKey and IngestURL are required; everything
// else has a usable default.
type Options struct {
	// APIKey identifies the project against the ingestion backend.
	APIKey string
	// IngestURL is the backend origin.
	IngestURL string

	// EntryURL is the page or screen the session starts on.
	EntryURL string
	// Referrer is where the visitor came from, if known.
	Referrer string
	// UserAgent identifies the capturing host on requests to the backend.
	UserAgent string

	// FlushInterval defaults to DefaultFlushInterval.
	FlushInterval time.Duration
	// MaxBatch defaults to DefaultMaxBatch.
	MaxBatch int

	// RedactedFields holds selector rules for fields to mask before events
	// are buffered.
	RedactedFields []string
	// ConsoleLevels lists console levels to capture as semantic events.
	ConsoleLevels []string

	// Record, when set, attaches an embedded recording engine on start; its
	// stop function runs on Stop or Unload.
	Record RecordFunc
	// BlockedFields holds selector rules for subtrees the engine must not
	// record at all.
	BlockedFields []string
	// SnapshotEvery is the periodic full-snapshot cadence requested from the
	// engine. Zero keeps the engine's own cadence.
	SnapshotEvery time.Duration
	// Sampling caps engine capture rates per interaction type, in events per
	// second.
	Sampling map[string]float64

	// URLSource, when set, is polled for the current URL so in-app route
	// changes surface as navigation events.
	URLSource func() string
	// URLPollInterval defaults to one second when URLSource is set.
	URLPollInterval time.Duration

	// StatePath is the directory identity is persisted under. Defaults to
	// ~/.swing.
	StatePath string
	// Store overrides the identity store entirely. Mostly for tests.
	Store storage.Store
	// SessionIdle is how long a session stays resumable with no activity.
	// Starting again after a longer gap mints a fresh session id. Zero means
	// the thirty-minute default.
	SessionIdle time.Duration

	// OnEvent, when set, observes every event right after redaction, in
	// buffer order.
	OnEvent func(event.Event)
	// OnFlush, when set, observes every successful upload.
	OnFlush func(FlushReport)

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Logger defaults to a nop logger.
	Logger *zap.Logger
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// RecordFunc attaches a recording engine to a starting tracker. The engine
// pushes every captured event into emit until the returned stop function is
// called; a non-nil error cancels the start.
type RecordFunc func(emit func(event.Event), opts RecordOptions) (stop func(), err error)

// RecordOptions carries the tracker's capture preferences to an attached
// recording engine.
type RecordOptions struct {
	// BlockSelectors name subtrees to leave out of the recording entirely.
	BlockSelectors []string
	// MaskSelectors mirror redaction rules so engines that can mask at
	// capture time do so early.
	MaskSelectors []string
	// SnapshotEvery requests periodic full snapshots. Zero keeps the
	// engine's own cadence.
	SnapshotEvery time.Duration
	// Sampling caps capture rates per interaction type, in events per
	// second.
	Sampling map[string]float64
}

func (o *Options) validate() error {
	if strings.TrimSpace(o.APIKey) == "" {
		return errors.New("swing: APIKey is required")
	}
	if strings.TrimSpace(o.IngestURL) == "" {
		return errors.New("swing: IngestURL is required")
	}
	return nil
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.FlushInterval <= 0 {
		out.FlushInterval = DefaultFlushInterval
	}
	if out.MaxBatch <= 0 {
		out.MaxBatch = DefaultMaxBatch
	}
	if out.URLSource != nil && out.URLPollInterval <= 0 {
		out.URLPollInterval = time.Second
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	if out.Clock == nil {
		out.Clock = clock.New()
	}
	return out
}

// DefaultStatePath returns the identity directory, ~/.swing unless
// overridden.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".swing"), nil
}
