package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adeelakhani/swing-sdk/event"
	"github.com/adeelakhani/swing-sdk/internal/config"
	"github.com/adeelakhani/swing-sdk/internal/identity"
	"github.com/adeelakhani/swing-sdk/internal/storage"
)

// testGlobals creates a Globals struct with captured stdout/stderr
func testGlobals(format string) (*Globals, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &Globals{
		Format:  format,
		Level:   "info",
		Quiet:   false,
		Verbose: false,
		Stdout:  stdout,
		Stderr:  stderr,
		Config:  config.Default(),
	}, stdout, stderr
}

// writeEventLog writes a small wire-format event log and returns its path.
func writeEventLog(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "events.ndjson")

	now := time.Now().UnixMilli()
	events := []event.Event{
		event.NewNavigation(now-3000, "https://app.example.com/home", ""),
		event.NewConsole(now-2000, "error", "boom"),
		event.NewCustom(now-1000, "checkout", map[string]any{"total": 42}),
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	encoder := json.NewEncoder(f)
	for _, ev := range events {
		require.NoError(t, encoder.Encode(ev))
	}
	require.NoError(t, f.Close())
	return path
}

// --- Config Command Tests ---

func TestConfigShowCmd_Run(t *testing.T) {
	t.Run("outputs config in text format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &ConfigShowCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.Contains(t, output, "Current Configuration:")
		assert.Contains(t, output, "format:")
		assert.Contains(t, output, "level:")
		assert.Contains(t, output, "Capture:")
		assert.Contains(t, output, "Bridge:")
	})

	t.Run("outputs config in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConfigShowCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "config", result["type"])
		assert.Contains(t, result, "format")
		assert.Contains(t, result, "capture")
		assert.Contains(t, result, "bridge")
	})

	t.Run("never prints the api key", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		globals.Config.Ingest.APIKey = "super-secret"
		cmd := &ConfigShowCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		assert.NotContains(t, stdout.String(), "super-secret")
		assert.Contains(t, stdout.String(), "***")
	})
}

func TestConfigPathCmd_Run(t *testing.T) {
	t.Run("outputs path info in text format when no config", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &ConfigPathCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		// Either shows the path or says no config found
		assert.True(t, strings.Contains(output, "Config file:") || strings.Contains(output, "No configuration file found"))
	})

	t.Run("outputs path in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConfigPathCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "config_path", result["type"])
		assert.Contains(t, result, "path")
	})
}

func TestConfigGenerateCmd_Run(t *testing.T) {
	t.Run("outputs sample config YAML", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &ConfigGenerateCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.Contains(t, output, "# swing configuration file")
		assert.Contains(t, output, "format: auto")
		assert.Contains(t, output, "flush_interval: 5s")
		assert.Contains(t, output, "listen: 127.0.0.1:8787")
	})
}

// --- Schema Command Tests ---

func TestSchemaCmd_Run(t *testing.T) {
	t.Run("outputs all schemas by default", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &SchemaCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "http://json-schema.org/draft-07/schema#", result["$schema"])
		assert.Equal(t, "Swing Output Schemas", result["title"])

		defs := result["definitions"].(map[string]interface{})
		assert.Contains(t, defs, "ready")
		assert.Contains(t, defs, "event")
		assert.Contains(t, defs, "flush")
		assert.Contains(t, defs, "stats")
		assert.Contains(t, defs, "session_end")
		assert.Contains(t, defs, "error")
		assert.Contains(t, defs, "doctor")
		assert.Contains(t, defs, "status")
	})

	t.Run("filters schemas by type", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &SchemaCmd{Type: []string{"event", "error"}}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		defs := result["definitions"].(map[string]interface{})
		assert.Len(t, defs, 2)
		assert.Contains(t, defs, "event")
		assert.Contains(t, defs, "error")
		assert.NotContains(t, defs, "stats")
	})

	t.Run("text format prints a quick reference", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &SchemaCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.Contains(t, output, "Swing Output Types:")
		assert.Contains(t, output, "session_end")
	})
}

func TestEventSchema(t *testing.T) {
	schema := eventSchema()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, "Event", schema["title"])

	props := schema["properties"].(map[string]interface{})
	assert.Contains(t, props, "session_id")
	assert.Contains(t, props, "event")

	wire := props["event"].(map[string]interface{})["properties"].(map[string]interface{})
	assert.Contains(t, wire, "type")
	assert.Contains(t, wire, "data")
	assert.Contains(t, wire, "timestamp")
}

func TestErrorSchema(t *testing.T) {
	schema := errorSchema()

	props := schema["properties"].(map[string]interface{})
	codes := props["code"].(map[string]interface{})["enum"].([]string)
	assert.Contains(t, codes, "MISSING_API_KEY")
	assert.Contains(t, codes, "INVALID_INTERVAL")
	assert.Contains(t, codes, "FLUSH_FAILED")
}

func TestDoctorSchema(t *testing.T) {
	schema := doctorSchema()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, "Doctor Report", schema["title"])

	props := schema["properties"].(map[string]interface{})
	assert.Contains(t, props, "checks")
	assert.Contains(t, props, "all_passed")
	assert.Contains(t, props, "error_count")
}

func TestStatusSchema(t *testing.T) {
	schema := statusSchema()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, "Status", schema["title"])

	props := schema["properties"].(map[string]interface{})
	assert.Contains(t, props, "state_dir")
	assert.Contains(t, props, "session_id")
	assert.Contains(t, props, "daemon")
}

// --- Doctor Command Tests ---

func TestDoctorCmd_checkResult(t *testing.T) {
	t.Run("check result struct", func(t *testing.T) {
		result := checkResult{
			Name:    "Test Check",
			Status:  "ok",
			Message: "Check passed",
			Details: "Additional info",
		}

		data, err := json.Marshal(result)
		require.NoError(t, err)

		var decoded checkResult
		err = json.Unmarshal(data, &decoded)
		require.NoError(t, err)

		assert.Equal(t, "Test Check", decoded.Name)
		assert.Equal(t, "ok", decoded.Status)
		assert.Equal(t, "Check passed", decoded.Message)
		assert.Equal(t, "Additional info", decoded.Details)
	})
}

func TestDoctorCmd_doctorReport(t *testing.T) {
	t.Run("doctor report struct", func(t *testing.T) {
		report := doctorReport{
			Type:      "doctor",
			Timestamp: time.Now().Format(time.RFC3339),
			Checks: []checkResult{
				{Name: "check1", Status: "ok", Message: "passed"},
				{Name: "check2", Status: "warning", Message: "needs attention"},
				{Name: "check3", Status: "error", Message: "failed"},
			},
			AllPassed:  false,
			ErrorCount: 1,
			WarnCount:  1,
		}

		data, err := json.Marshal(report)
		require.NoError(t, err)

		var decoded doctorReport
		err = json.Unmarshal(data, &decoded)
		require.NoError(t, err)

		assert.Equal(t, "doctor", decoded.Type)
		assert.Len(t, decoded.Checks, 3)
		assert.False(t, decoded.AllPassed)
		assert.Equal(t, 1, decoded.ErrorCount)
		assert.Equal(t, 1, decoded.WarnCount)
	})
}

func TestDoctorCmd_checkWritePermission(t *testing.T) {
	cmd := &DoctorCmd{}

	t.Run("returns true for writable directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		assert.True(t, cmd.checkWritePermission(tmpDir))
	})

	t.Run("returns false for non-writable directory", func(t *testing.T) {
		// Try a directory that doesn't exist
		assert.False(t, cmd.checkWritePermission("/nonexistent/path"))
	})
}

func TestDoctorCmd_checkStateDir(t *testing.T) {
	t.Run("writable directory passes all storage checks", func(t *testing.T) {
		globals, _, _ := testGlobals("text")
		cfg := config.Default()
		cmd := &DoctorCmd{StateDir: t.TempDir()}

		checks := cmd.checkStateDir(globals, cfg)
		require.Len(t, checks, 3)
		for _, check := range checks {
			assert.Equal(t, "ok", check.Status, check.Name)
		}
	})
}

func TestDoctorCmd_checkAPIKey(t *testing.T) {
	cmd := &DoctorCmd{}

	t.Run("configured key passes", func(t *testing.T) {
		cfg := config.Default()
		cfg.Ingest.APIKey = "k"
		assert.Equal(t, "ok", cmd.checkAPIKey(cfg).Status)
	})

	t.Run("missing key warns", func(t *testing.T) {
		check := cmd.checkAPIKey(config.Default())
		assert.Equal(t, "warning", check.Status)
		assert.Contains(t, check.Details, "SWING_API_KEY")
	})
}

// --- Status Command Tests ---

func TestStatusCmd_Run(t *testing.T) {
	t.Run("empty state dir reports no identity", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &StatusCmd{StateDir: t.TempDir(), NoDaemon: true}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "status", result["type"])
		assert.NotContains(t, result, "session_id")
		assert.NotContains(t, result, "end_user_id")
	})

	t.Run("shows persisted identity", func(t *testing.T) {
		dir := t.TempDir()
		clk := clock.New()
		store := storage.Open(dir, clk, zap.NewNop())
		manager := identity.NewManager(store, clk, zap.NewNop(), 0)
		sessionID, _ := manager.GetOrCreateSession()
		endUserID, _ := manager.GetOrCreateEndUser()
		require.NoError(t, store.Close())

		globals, stdout, _ := testGlobals("ndjson")
		cmd := &StatusCmd{StateDir: dir, NoDaemon: true}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, dir, result["state_dir"])
		assert.Equal(t, sessionID, result["session_id"])
		assert.Equal(t, endUserID, result["end_user_id"])
		assert.Contains(t, result, "session_age")
	})

	t.Run("text format renders a table", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &StatusCmd{StateDir: t.TempDir(), NoDaemon: true}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.Contains(t, output, "State dir")
		assert.Contains(t, output, "Session")
	})
}

// --- Analyze Command Tests ---

func TestAnalyzeCmd_Run(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := writeEventLog(t, tmpDir)

	t.Run("analyzes event log in text format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &AnalyzeCmd{File: logFile, Top: 5}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.Contains(t, output, "Analysis of")
		assert.Contains(t, output, "Total events: 3")
		assert.Contains(t, output, "Console errors:")
		assert.Contains(t, output, "boom")
	})

	t.Run("analyzes event log in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &AnalyzeCmd{File: logFile, Top: 5}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "analysis", result["type"])
		summary := result["summary"].(map[string]interface{})
		assert.EqualValues(t, 3, summary["total_events"])
		assert.Equal(t, true, summary["has_errors"])
		assert.Contains(t, result, "top_urls")
	})

	t.Run("where clauses narrow the summary", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &AnalyzeCmd{File: logFile, Top: 5, Where: []string{"semantic=console"}}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		summary := result["summary"].(map[string]interface{})
		assert.EqualValues(t, 1, summary["total_events"])
		assert.EqualValues(t, 1, summary["console_errors"])
	})

	t.Run("rejects a malformed where clause", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &AnalyzeCmd{File: logFile, Where: []string{"nonsense"}}

		err := cmd.Run(globals)
		assert.Error(t, err)
		assert.Contains(t, stdout.String(), "INVALID_FLAGS")
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		globals, _, _ := testGlobals("text")
		cmd := &AnalyzeCmd{File: "/nonexistent/file.ndjson"}

		err := cmd.Run(globals)
		assert.Error(t, err)
	})

	t.Run("returns error for empty file", func(t *testing.T) {
		emptyFile := filepath.Join(tmpDir, "empty.ndjson")
		require.NoError(t, os.WriteFile(emptyFile, []byte{}, 0o644))

		globals, _, _ := testGlobals("text")
		cmd := &AnalyzeCmd{File: emptyFile}

		err := cmd.Run(globals)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no events")
	})
}

// --- Replay Command Tests ---

func TestReplayCmd_Run(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := writeEventLog(t, tmpDir)

	t.Run("dry run echoes events in text format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &ReplayCmd{File: logFile, DryRun: true}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.Contains(t, output, "navigation")
		assert.Contains(t, output, "https://app.example.com/home")
		assert.Contains(t, output, "error: boom")
		assert.Contains(t, output, "checkout")
	})

	t.Run("dry run echoes events in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ReplayCmd{File: logFile, DryRun: true}

		err := cmd.Run(globals)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
		assert.Len(t, lines, 3)

		for _, line := range lines {
			var entry map[string]interface{}
			err := json.Unmarshal([]byte(line), &entry)
			require.NoError(t, err)
			assert.Equal(t, "event", entry["type"])
			assert.Equal(t, "replay", entry["session_id"])
			assert.Contains(t, entry, "event")
		}
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		globals, _, _ := testGlobals("text")
		cmd := &ReplayCmd{File: "/nonexistent/file.ndjson", DryRun: true}

		err := cmd.Run(globals)
		assert.Error(t, err)
	})

	t.Run("shows replay info when not quiet", func(t *testing.T) {
		globals, _, stderr := testGlobals("text")
		cmd := &ReplayCmd{File: logFile, DryRun: true}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stderr.String()
		assert.Contains(t, output, "Replaying events from")
		assert.Contains(t, output, "Replayed 3 events (dry run)")
	})

	t.Run("where clauses narrow the replay", func(t *testing.T) {
		globals, stdout, stderr := testGlobals("ndjson")
		cmd := &ReplayCmd{File: logFile, DryRun: true, Where: []string{"level=error"}}

		err := cmd.Run(globals)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
		assert.Len(t, lines, 1)
		assert.Contains(t, lines[0], "boom")
		assert.Contains(t, stderr.String(), "Replayed 1 events (dry run)")
	})

	t.Run("rejects instant combined with speed", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ReplayCmd{File: logFile, Instant: true, Speed: 2}

		err := cmd.Run(globals)
		assert.Error(t, err)
		assert.Contains(t, stdout.String(), "INVALID_FLAGS")
	})
}

// --- Event Log Parsing Tests ---

func TestReadEventLog(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("reads bare wire events", func(t *testing.T) {
		path := writeEventLog(t, tmpDir)

		events, err := readEventLog(path)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, event.KindSemantic, events[0].Kind)
	})

	t.Run("unwraps stream envelopes and skips other lines", func(t *testing.T) {
		path := filepath.Join(tmpDir, "stream.ndjson")
		content := strings.Join([]string{
			`{"type":"ready","schemaVersion":1,"timestamp":"2025-01-01T00:00:00Z","session_id":"s","ingest_url":"http://x"}`,
			`{"type":"event","schemaVersion":1,"session_id":"s","event":{"type":100,"data":{"kind":"console","level":"warn","message":"careful"},"timestamp":1714564800000}}`,
			`{"type":"flush","schemaVersion":1,"session_id":"s","reason":"interval","events":1,"chunks":1,"bytes":10}`,
			`{"type":3,"data":{"source":2,"payload":{"x":1}},"timestamp":1714564800500}`,
		}, "\n")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		events, err := readEventLog(path)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, event.KindSemantic, events[0].Kind)
		assert.Equal(t, event.KindIncremental, events[1].Kind)
	})

	t.Run("reports the offending line on parse errors", func(t *testing.T) {
		path := filepath.Join(tmpDir, "broken.ndjson")
		require.NoError(t, os.WriteFile(path, []byte("{\"type\":4,\"data\":{},\"timestamp\":1}\nnot json\n"), 0o644))

		_, err := readEventLog(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})
}

// --- Version Command Tests ---

func TestVersionCmd_Run(t *testing.T) {
	t.Run("outputs version in text format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &VersionCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.Contains(t, output, "swing version")
	})

	t.Run("outputs version in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &VersionCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "version", result["type"])
		assert.Contains(t, result, "version")
		assert.Contains(t, result, "commit")
	})
}

// --- Update Command Tests ---

func TestUpdateCmd_Run(t *testing.T) {
	t.Run("outputs update instructions in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &UpdateCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result UpdateOutput
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "update", result.Type)
		assert.Contains(t, result.GoInstall, "go install")
	})
}

// --- Helper Tests ---

func TestParseOptionalDuration(t *testing.T) {
	t.Run("empty and zero mean disabled", func(t *testing.T) {
		for _, in := range []string{"", "0"} {
			d, err := parseOptionalDuration(in)
			require.NoError(t, err)
			assert.Equal(t, time.Duration(0), d)
		}
	})

	t.Run("parses durations", func(t *testing.T) {
		d, err := parseOptionalDuration("5s")
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, d)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := parseOptionalDuration("abc")
		assert.Error(t, err)
	})

	t.Run("rejects negative durations", func(t *testing.T) {
		_, err := parseOptionalDuration("-5s")
		assert.Error(t, err)
	})
}

func TestResolveFormat(t *testing.T) {
	t.Run("explicit formats pass through", func(t *testing.T) {
		assert.Equal(t, "text", resolveFormat("text"))
		assert.Equal(t, "ndjson", resolveFormat("ndjson"))
	})

	t.Run("auto resolves to a concrete format", func(t *testing.T) {
		assert.Contains(t, []string{"text", "ndjson"}, resolveFormat("auto"))
	})
}

func TestEventText(t *testing.T) {
	t.Run("renders semantic events with their detail", func(t *testing.T) {
		line := eventText(event.NewConsole(1714564800000, "error", "boom"))
		assert.Contains(t, line, "console")
		assert.Contains(t, line, "error: boom")

		line = eventText(event.NewLinkClick(1714564800000, event.Target{Tag: "a"}, "Docs", "https://docs.example.com"))
		assert.Contains(t, line, "link_clicked")
		assert.Contains(t, line, "Docs -> https://docs.example.com")
	})

	t.Run("renders engine events by kind", func(t *testing.T) {
		line := eventText(event.Event{Kind: event.KindIncremental, Data: event.OpaqueData{}, Timestamp: 1714564800000})
		assert.Contains(t, line, "incremental")
	})
}

func TestKindLabel(t *testing.T) {
	assert.Equal(t, "snapshot", kindLabel(event.KindFullSnapshot))
	assert.Equal(t, "semantic", kindLabel(event.KindSemantic))
	assert.Equal(t, "type(42)", kindLabel(event.Kind(42)))
}

func TestOutputErrorCommon(t *testing.T) {
	t.Run("ndjson writes a machine-readable error line", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")

		err := outputErrorCommon(globals, "MISSING_API_KEY", "no API key configured", "pass --api-key")
		require.Error(t, err)

		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &line))
		assert.Equal(t, "error", line["type"])
		assert.Equal(t, "MISSING_API_KEY", line["code"])
		assert.Equal(t, "pass --api-key", line["hint"])
	})

	t.Run("text writes to stderr", func(t *testing.T) {
		globals, stdout, stderr := testGlobals("text")

		err := outputErrorCommon(globals, "INVALID_INTERVAL", "bad duration")
		require.Error(t, err)
		assert.Empty(t, stdout.String())
		assert.Contains(t, stderr.String(), "Error [INVALID_INTERVAL]: bad duration")
	})
}
