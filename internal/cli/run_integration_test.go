package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{}"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// Run a short recording end to end. The tracker, buffer, and transport are
// real; only the ingestion origin is stubbed out.
func TestRunLifecycleStream(t *testing.T) {
	backend := stubBackend(t)

	globals, stdout, _ := testGlobals("ndjson")
	cmd := &RunCmd{
		APIKey:        "sk_test",
		IngestURL:     backend.URL,
		StateDir:      t.TempDir(),
		NoBridge:      true,
		StatsInterval: "0",
		Duration:      "150ms",
	}

	err := cmd.Run(globals)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)

	var ready map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ready))
	require.Equal(t, "ready", ready["type"])
	assert.True(t, strings.HasPrefix(ready["session_id"].(string), "swing_"))
	assert.Equal(t, backend.URL, ready["ingest_url"])

	var end map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &end))
	require.Equal(t, "session_end", end["type"])
	assert.Equal(t, "duration", end["reason"])
	assert.Equal(t, true, end["handed_off"])
	assert.Equal(t, ready["session_id"], end["session_id"])
}

// The --output file always carries NDJSON so 'swing replay' can consume it,
// regardless of the terminal format.
func TestRunTeesOutputFile(t *testing.T) {
	backend := stubBackend(t)
	outDir := t.TempDir()

	globals, _, _ := testGlobals("text")
	cmd := &RunCmd{
		APIKey:        "sk_test",
		IngestURL:     backend.URL,
		StateDir:      t.TempDir(),
		Output:        filepath.Join(outDir, "rec-{session}.ndjson"),
		NoBridge:      true,
		StatsInterval: "0",
		Duration:      "150ms",
	}

	err := cmd.Run(globals)
	require.NoError(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "rec-swing_"))

	data, err := os.ReadFile(filepath.Join(outDir, entries[0].Name()))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "ready", first["type"])

	var last map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, "session_end", last["type"])
}

func TestRunMissingAPIKey(t *testing.T) {
	globals, stdout, _ := testGlobals("ndjson")
	cmd := &RunCmd{StatsInterval: "0"}

	err := cmd.Run(globals)
	require.Error(t, err)
	assert.Contains(t, stdout.String(), "MISSING_API_KEY")
}

func TestRunRejectsBadDuration(t *testing.T) {
	globals, stdout, _ := testGlobals("ndjson")
	cmd := &RunCmd{APIKey: "sk_test", Duration: "soon"}

	err := cmd.Run(globals)
	require.Error(t, err)
	assert.Contains(t, stdout.String(), "INVALID_INTERVAL")
}
