package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	swing "github.com/adeelakhani/swing-sdk"
	"github.com/adeelakhani/swing-sdk/event"
	"github.com/adeelakhani/swing-sdk/internal/synth"
)

type fakePipeline struct {
	mu       sync.Mutex
	captured []event.Event
	obs      *synth.Synthesizer
	stats    swing.Stats
}

func newFakePipeline() *fakePipeline {
	p := &fakePipeline{
		stats: swing.Stats{
			State:     "recording",
			SessionID: "swing_1714564800000_01HX0000000000000000000000",
			Buffered:  2,
			Captured:  7,
		},
	}
	p.obs = synth.New(synth.Config{Sink: p.Capture})
	return p
}

func (p *fakePipeline) Capture(ev event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captured = append(p.captured, ev)
}

func (p *fakePipeline) Observer() *synth.Synthesizer { return p.obs }

func (p *fakePipeline) Stats() swing.Stats { return p.stats }

func (p *fakePipeline) events() []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.Event(nil), p.captured...)
}

func newTestBridge(t *testing.T) (*fakePipeline, *httptest.Server) {
	t.Helper()
	pipeline := newFakePipeline()
	srv := httptest.NewServer(New(pipeline, "127.0.0.1:0", zap.NewNop()).setupRoutes())
	t.Cleanup(srv.Close)
	return pipeline, srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	_, srv := newTestBridge(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIngestEvents(t *testing.T) {
	t.Run("accepts a batch and feeds every event to the pipeline", func(t *testing.T) {
		pipeline, srv := newTestBridge(t)

		body := `{"events":[
			{"type":100,"data":{"kind":"custom","name":"checkout"},"timestamp":1714564800000},
			{"type":3,"data":{"source":0},"timestamp":1714564800500}
		]}`
		resp := postJSON(t, srv.URL+"/ingest/events", body)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		captured := pipeline.events()
		require.Len(t, captured, 2)
		assert.Equal(t, event.KindSemantic, captured[0].Kind)
		sem, ok := captured[0].Data.(event.SemanticData)
		require.True(t, ok)
		assert.Equal(t, "checkout", sem.Name)
		assert.Equal(t, event.KindIncremental, captured[1].Kind)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		pipeline, srv := newTestBridge(t)

		resp := postJSON(t, srv.URL+"/ingest/events", `{"events":[]}`)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Empty(t, pipeline.events())
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		_, srv := newTestBridge(t)

		resp := postJSON(t, srv.URL+"/ingest/events", `{"events":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects non-POST methods", func(t *testing.T) {
		_, srv := newTestBridge(t)

		resp, err := http.Get(srv.URL + "/ingest/events")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestIngestSignals(t *testing.T) {
	t.Run("dispatches each kind to the synthesizer", func(t *testing.T) {
		pipeline, srv := newTestBridge(t)

		body := `{"signals":[
			{"kind":"click","target":{"tag":"a"},"text":"Docs","href":"/docs"},
			{"kind":"submit","target":{"tag":"form","id":"signup"},"fields":["email","plan"]},
			{"kind":"console","level":"error","message":"boom"},
			{"kind":"navigation","url":"https://app.test/home"},
			{"kind":"navigation","url":"https://app.test/home"},
			{"kind":"scroll"}
		]}`
		resp := postJSON(t, srv.URL+"/ingest/signals", body)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		captured := pipeline.events()
		require.Len(t, captured, 4)

		kinds := make([]event.SemanticKind, 0, len(captured))
		for _, ev := range captured {
			sem, ok := ev.Data.(event.SemanticData)
			require.True(t, ok)
			kinds = append(kinds, sem.Kind)
		}
		assert.Equal(t, []event.SemanticKind{
			event.SemanticLinkClicked,
			event.SemanticFormSubmitted,
			event.SemanticConsole,
			event.SemanticNavigation,
		}, kinds)

		submit := captured[1].Data.(event.SemanticData)
		assert.Equal(t, []string{"email", "plan"}, submit.Fields)
		assert.Equal(t, "signup", submit.Target.ID)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		_, srv := newTestBridge(t)

		resp := postJSON(t, srv.URL+"/ingest/signals", `not json`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects non-POST methods", func(t *testing.T) {
		_, srv := newTestBridge(t)

		resp, err := http.Get(srv.URL + "/ingest/signals")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestStatsEndpoint(t *testing.T) {
	pipeline, srv := newTestBridge(t)

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var line map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&line))

	assert.Equal(t, "stats", line["type"])
	assert.Equal(t, float64(1), line["schemaVersion"])
	assert.Equal(t, "recording", line["state"])
	assert.Equal(t, pipeline.stats.SessionID, line["session_id"])
	assert.Equal(t, float64(7), line["captured"])
	assert.Equal(t, float64(2), line["buffered"])
}
