// Package bridge exposes the capture pipeline over a localhost HTTP
// endpoint, so an instrumented page or app can hand events and interaction
// signals to a running capture daemon without linking the SDK.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	swing "github.com/adeelakhani/swing-sdk"
	"github.com/adeelakhani/swing-sdk/event"
	"github.com/adeelakhani/swing-sdk/internal/output"
	"github.com/adeelakhani/swing-sdk/internal/synth"
)

// Pipeline is the slice of the tracker the bridge needs.
type Pipeline interface {
	Capture(event.Event)
	Observer() *synth.Synthesizer
	Stats() swing.Stats
}

// Server is the localhost ingest bridge.
type Server struct {
	pipeline Pipeline
	address  string
	logger   *zap.Logger
	server   *http.Server
}

// New builds a Server. logger may be nil.
func New(pipeline Pipeline, address string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{pipeline: pipeline, address: address, logger: logger}
}

type eventsBatch struct {
	Events []event.Event `json:"events"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var batch eventsBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	for _, ev := range batch.Events {
		s.pipeline.Capture(ev)
	}
	w.WriteHeader(http.StatusNoContent)
}

// signal is one host observation. Kind selects which of the remaining
// fields matter.
type signal struct {
	Kind string `json:"kind"`

	Target event.Target `json:"target"`
	Text   string       `json:"text,omitempty"`
	Href   string       `json:"href,omitempty"`

	Fields []string `json:"fields,omitempty"`

	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`

	URL string `json:"url,omitempty"`
}

type signalsBatch struct {
	Signals []signal `json:"signals"`
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var batch signalsBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	obs := s.pipeline.Observer()
	for _, sig := range batch.Signals {
		switch sig.Kind {
		case "click":
			obs.ObserveClick(sig.Target, sig.Text, sig.Href)
		case "submit":
			obs.ObserveSubmit(sig.Target, sig.Fields)
		case "console":
			obs.ObserveConsole(sig.Level, sig.Message)
		case "navigation":
			obs.ObserveNavigation(sig.URL)
		default:
			s.logger.Warn("unknown signal kind dropped", zap.String("kind", sig.Kind))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.pipeline.Stats()
	line := output.Stats{
		Type:          "stats",
		SchemaVersion: output.SchemaVersion,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		SessionID:     stats.SessionID,
		State:         stats.State,
		Buffered:      stats.Buffered,
		Captured:      stats.Captured,
		Flushed:       stats.Flushed,
		Chunks:        stats.Chunks,
		Bytes:         stats.Bytes,
		FailedSends:   stats.FailedSends,
	}
	if !stats.StartedAt.IsZero() {
		line.UptimeSeconds = int64(time.Since(stats.StartedAt).Seconds())
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(line)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ingest/events", s.handleEvents)
	mux.HandleFunc("/ingest/signals", s.handleSignals)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Handler:      s.setupRoutes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(ln) }()
	s.logger.Info("bridge listening", zap.String("address", ln.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
