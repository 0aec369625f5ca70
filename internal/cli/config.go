package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adeelakhani/swing-sdk/internal/config"
)

// ConfigShowCmd shows the effective configuration
type ConfigShowCmd struct{}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}

	if globals.Format == "ndjson" {
		line := map[string]any{
			"type":    "config",
			"format":  cfg.Format,
			"level":   cfg.Level,
			"quiet":   cfg.Quiet,
			"verbose": cfg.Verbose,
			"ingest": map[string]any{
				"url":     cfg.Ingest.URL,
				"api_key": maskKey(cfg.Ingest.APIKey),
			},
			"capture": map[string]any{
				"flush_interval":  cfg.Capture.FlushInterval,
				"max_batch":       cfg.Capture.MaxBatch,
				"console_levels":  cfg.Capture.ConsoleLevels,
				"redacted_fields": cfg.Capture.RedactedFields,
				"entry_url":       cfg.Capture.EntryURL,
				"state_path":      cfg.Capture.StatePath,
			},
			"bridge": map[string]any{
				"listen": cfg.Bridge.Listen,
			},
		}
		b, err := json.Marshal(line)
		if err != nil {
			return err
		}
		fmt.Fprintln(globals.Stdout, string(b))
		return nil
	}

	fmt.Fprintln(globals.Stdout, "Current Configuration:")
	fmt.Fprintf(globals.Stdout, "  format: %s\n", cfg.Format)
	fmt.Fprintf(globals.Stdout, "  level: %s\n", cfg.Level)
	fmt.Fprintf(globals.Stdout, "  quiet: %t\n", cfg.Quiet)
	fmt.Fprintf(globals.Stdout, "  verbose: %t\n", cfg.Verbose)
	fmt.Fprintln(globals.Stdout)
	fmt.Fprintln(globals.Stdout, "Ingest:")
	fmt.Fprintf(globals.Stdout, "  url: %s\n", cfg.Ingest.URL)
	fmt.Fprintf(globals.Stdout, "  api_key: %s\n", maskKey(cfg.Ingest.APIKey))
	fmt.Fprintln(globals.Stdout)
	fmt.Fprintln(globals.Stdout, "Capture:")
	fmt.Fprintf(globals.Stdout, "  flush_interval: %s\n", cfg.Capture.FlushInterval)
	fmt.Fprintf(globals.Stdout, "  max_batch: %d\n", cfg.Capture.MaxBatch)
	fmt.Fprintf(globals.Stdout, "  console_levels: %s\n", strings.Join(cfg.Capture.ConsoleLevels, ", "))
	fmt.Fprintf(globals.Stdout, "  redacted_fields: %s\n", strings.Join(cfg.Capture.RedactedFields, ", "))
	fmt.Fprintf(globals.Stdout, "  entry_url: %s\n", cfg.Capture.EntryURL)
	fmt.Fprintf(globals.Stdout, "  state_path: %s\n", cfg.Capture.StatePath)
	fmt.Fprintln(globals.Stdout)
	fmt.Fprintln(globals.Stdout, "Bridge:")
	fmt.Fprintf(globals.Stdout, "  listen: %s\n", cfg.Bridge.Listen)
	return nil
}

// maskKey keeps secrets out of config output.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	return "***"
}

// ConfigPathCmd shows which config file is in use
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()

	if globals.Format == "ndjson" {
		b, err := json.Marshal(map[string]any{
			"type": "config_path",
			"path": path,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(globals.Stdout, string(b))
		return nil
	}

	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found (using defaults)")
	} else {
		fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	}
	return nil
}

// ConfigGenerateCmd prints a sample config file
type ConfigGenerateCmd struct{}

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	fmt.Fprint(globals.Stdout, `# swing configuration file
# Place at ~/.swing.yaml, ./swing.yaml, or /etc/swing/swing.yaml

# Output format: auto, text, or ndjson (auto picks by terminal)
format: auto

# Internal log level: debug, info, warn, error
level: info

# Suppress informational output
quiet: false

# Verbose debug logging to stderr
verbose: false

ingest:
  # Ingestion backend origin (or set SWING_INGEST_URL)
  url: https://ingest.example.com
  # Project API key (or set SWING_API_KEY)
  api_key: your-api-key

capture:
  # Upload cadence
  flush_interval: 5s
  # Buffered events that force an early flush
  max_batch: 50
  # Console levels captured as events
  console_levels:
    - error
    - warn
  # Fields masked before events are buffered
  redacted_fields:
    - password
    - card.number
  # URL the session starts on
  entry_url: ""
  # Directory session identity is persisted under (default ~/.swing)
  state_path: ""

bridge:
  # Local ingest bridge listen address
  listen: 127.0.0.1:8787
`)
	return nil
}
