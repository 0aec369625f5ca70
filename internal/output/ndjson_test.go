package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adeelakhani/swing-sdk/event"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	dec := json.NewDecoder(buf)
	var m map[string]interface{}
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestWriteReady(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	err := w.WriteReady("2024-05-01T12:00:00Z", "swing_1_a", "user_1_b", "https://ingest.swing.rs")
	require.NoError(t, err)

	m := decodeLine(t, buf)
	require.Equal(t, "ready", m["type"])
	require.EqualValues(t, 1, m["schemaVersion"])
	require.Equal(t, "swing_1_a", m["session_id"])
	require.Equal(t, "user_1_b", m["end_user_id"])
	require.Equal(t, "https://ingest.swing.rs", m["ingest_url"])
}

func TestWriteEventCarriesWireForm(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	ev := event.NewCustom(42, "checkout", map[string]any{"total": 9.5})
	require.NoError(t, w.WriteEvent("swing_1_a", ev))

	m := decodeLine(t, buf)
	require.Equal(t, "event", m["type"])
	require.Equal(t, "swing_1_a", m["session_id"])

	wire, ok := m["event"].(map[string]interface{})
	require.True(t, ok)
	require.EqualValues(t, 100, wire["type"])
	require.EqualValues(t, 42, wire["timestamp"])
}

func TestWriteFlush(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteFlush("swing_1_a", "interval", 12, 2, 4096))

	m := decodeLine(t, buf)
	require.Equal(t, "flush", m["type"])
	require.Equal(t, "interval", m["reason"])
	require.EqualValues(t, 12, m["events"])
	require.EqualValues(t, 2, m["chunks"])
	require.EqualValues(t, 4096, m["bytes"])
}

func TestStatsContractFields(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	s := &Stats{Timestamp: "2024-05-01T12:01:00Z", SessionID: "swing_1_a", State: "recording", UptimeSeconds: 60, Buffered: 3, Captured: 120, Flushed: 117, FailedSends: 1}
	require.NoError(t, w.WriteStats(s))

	m := decodeLine(t, buf)
	require.Equal(t, "stats", m["type"])
	require.EqualValues(t, 1, m["schemaVersion"])
	require.Equal(t, "recording", m["state"])
	require.EqualValues(t, 60, m["uptime_seconds"])
	require.EqualValues(t, 3, m["buffered"])
	require.EqualValues(t, 1, m["failed_sends"])
}

func TestWriteSessionEnd(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteSessionEnd("swing_1_a", "unload", true))

	m := decodeLine(t, buf)
	require.Equal(t, "session_end", m["type"])
	require.Equal(t, "unload", m["reason"])
	require.Equal(t, true, m["handed_off"])
}

func TestWriteError(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteError("INIT_FAILED", "backend refused the session", "check the API key"))

	m := decodeLine(t, buf)
	require.Equal(t, "error", m["type"])
	require.Equal(t, "INIT_FAILED", m["code"])
	require.Equal(t, "backend refused the session", m["message"])
	require.Equal(t, "check the API key", m["hint"])
}
