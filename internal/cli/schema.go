package cli

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SchemaCmd outputs JSON Schema for swing output types
type SchemaCmd struct {
	Type []string `short:"t" help:"Output types to include (ready,event,flush,stats,session_end,error,doctor,status). Default: all"`
}

// Run executes the schema command
func (c *SchemaCmd) Run(globals *Globals) error {
	if globals.Format == "text" {
		c.outputTextHelp(globals)
		return nil
	}

	schemas := map[string]interface{}{
		"ready":       readySchema(),
		"event":       eventSchema(),
		"flush":       flushSchema(),
		"stats":       statsSchema(),
		"session_end": sessionEndSchema(),
		"error":       errorSchema(),
		"doctor":      doctorSchema(),
		"status":      statusSchema(),
	}

	// Determine which schemas to output
	typesToOutput := c.Type
	if len(typesToOutput) == 0 {
		typesToOutput = []string{"ready", "event", "flush", "stats", "session_end", "error", "doctor", "status"}
	}

	// Build output
	output := map[string]interface{}{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"title":       "Swing Output Schemas",
		"description": "JSON Schema definitions for all swing NDJSON output types",
		"definitions": map[string]interface{}{},
	}

	defs := output["definitions"].(map[string]interface{})
	for _, t := range typesToOutput {
		t = strings.ToLower(strings.TrimSpace(t))
		if schema, ok := schemas[t]; ok {
			defs[t] = schema
		}
	}

	// Output as JSON
	encoder := json.NewEncoder(globals.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func readySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Ready",
		"description": "Announces that recording is live",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type":  "string",
				"const": "ready",
			},
			"schemaVersion": map[string]interface{}{
				"type":        "integer",
				"description": "Output schema version",
			},
			"timestamp": map[string]interface{}{
				"type":        "string",
				"format":      "date-time",
				"description": "ISO8601 timestamp recording started",
			},
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Session identifier (swing_<millis>_<ulid>)",
			},
			"end_user_id": map[string]interface{}{
				"type":        "string",
				"description": "End user identifier (user_<millis>_<ulid>)",
			},
			"ingest_url": map[string]interface{}{
				"type":        "string",
				"description": "Ingestion backend origin",
			},
		},
		"required": []string{"type", "schemaVersion", "timestamp", "session_id", "ingest_url"},
	}
}

func eventSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Event",
		"description": "One pipeline event in its wire form",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type":  "string",
				"const": "event",
			},
			"schemaVersion": map[string]interface{}{
				"type": "integer",
			},
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Session the event belongs to",
			},
			"event": map[string]interface{}{
				"type":        "object",
				"description": "The wire event",
				"properties": map[string]interface{}{
					"type": map[string]interface{}{
						"type":        "integer",
						"description": "Event kind (0-6 recording engine, 100 semantic)",
					},
					"data": map[string]interface{}{
						"type":        "object",
						"description": "Kind-specific payload",
					},
					"timestamp": map[string]interface{}{
						"type":        "integer",
						"description": "Capture time in epoch milliseconds",
					},
					"delay": map[string]interface{}{
						"type":        "integer",
						"description": "Recording engine delay, when set",
					},
				},
				"required": []string{"type", "data", "timestamp"},
			},
		},
		"required": []string{"type", "schemaVersion", "session_id", "event"},
	}
}

func flushSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Flush",
		"description": "Reports one completed upload",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type":  "string",
				"const": "flush",
			},
			"schemaVersion": map[string]interface{}{
				"type": "integer",
			},
			"session_id": map[string]interface{}{
				"type": "string",
			},
			"reason": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"interval", "batch full", "manual", "final"},
				"description": "What triggered the upload",
			},
			"events": map[string]interface{}{
				"type":        "integer",
				"description": "Events uploaded",
			},
			"chunks": map[string]interface{}{
				"type":        "integer",
				"description": "Requests the batch was split into",
			},
			"bytes": map[string]interface{}{
				"type":        "integer",
				"description": "Serialized payload bytes",
			},
		},
		"required": []string{"type", "schemaVersion", "session_id", "reason", "events"},
	}
}

func statsSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Stats",
		"description": "Periodic pipeline snapshot",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type":  "string",
				"const": "stats",
			},
			"schemaVersion": map[string]interface{}{
				"type": "integer",
			},
			"timestamp": map[string]interface{}{
				"type":   "string",
				"format": "date-time",
			},
			"session_id": map[string]interface{}{
				"type": "string",
			},
			"state": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"idle", "starting", "recording", "stopping"},
				"description": "Tracker state",
			},
			"uptime_seconds": map[string]interface{}{
				"type":        "integer",
				"description": "Seconds since recording started",
			},
			"buffered": map[string]interface{}{
				"type":        "integer",
				"description": "Events waiting for the next upload",
			},
			"captured": map[string]interface{}{
				"type":        "integer",
				"description": "Events accepted since start",
			},
			"flushed": map[string]interface{}{
				"type":        "integer",
				"description": "Events uploaded since start",
			},
			"chunks": map[string]interface{}{
				"type":        "integer",
				"description": "Upload requests since start",
			},
			"bytes": map[string]interface{}{
				"type":        "integer",
				"description": "Uploaded payload bytes since start",
			},
			"failed_sends": map[string]interface{}{
				"type":        "integer",
				"description": "Failed upload attempts since start",
			},
		},
		"required": []string{"type", "schemaVersion", "timestamp", "state"},
	}
}

func sessionEndSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Session End",
		"description": "Reports the end of recording",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type":  "string",
				"const": "session_end",
			},
			"schemaVersion": map[string]interface{}{
				"type": "integer",
			},
			"session_id": map[string]interface{}{
				"type": "string",
			},
			"reason": map[string]interface{}{
				"type":        "string",
				"description": "Why recording ended (signal, duration, rotated, idle)",
			},
			"handed_off": map[string]interface{}{
				"type":        "boolean",
				"description": "Whether the final batch made it out",
			},
		},
		"required": []string{"type", "schemaVersion", "session_id", "reason", "handed_off"},
	}
}

func errorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Error",
		"description": "Error message from swing",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type":  "string",
				"const": "error",
			},
			"code": map[string]interface{}{
				"type":        "string",
				"description": "Error code (e.g., MISSING_API_KEY, INVALID_INTERVAL)",
				"enum": []string{
					"MISSING_API_KEY",
					"MISSING_INGEST_URL",
					"INVALID_INTERVAL",
					"INVALID_FLAGS",
					"INIT_FAILED",
					"FLUSH_FAILED",
					"OUTPUT_FAILED",
					"REPLAY_PARSE_FAILED",
					"STATE_DIR_FAILED",
				},
			},
			"message": map[string]interface{}{
				"type":        "string",
				"description": "Human-readable error description",
			},
			"hint": map[string]interface{}{
				"type":        "string",
				"description": "Suggested fix, when one exists",
			},
		},
		"required": []string{"type", "code", "message"},
	}
}

func doctorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Doctor Report",
		"description": "Environment check results",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type":  "string",
				"const": "doctor",
			},
			"timestamp": map[string]interface{}{
				"type":   "string",
				"format": "date-time",
			},
			"checks": map[string]interface{}{
				"type":        "array",
				"description": "Individual check results",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name":    map[string]interface{}{"type": "string"},
						"status":  map[string]interface{}{"type": "string", "enum": []string{"ok", "warning", "error"}},
						"message": map[string]interface{}{"type": "string"},
						"details": map[string]interface{}{"type": "string"},
					},
					"required": []string{"name", "status", "message"},
				},
			},
			"all_passed": map[string]interface{}{
				"type":        "boolean",
				"description": "True when every check returned ok",
			},
			"error_count": map[string]interface{}{
				"type": "integer",
			},
			"warn_count": map[string]interface{}{
				"type": "integer",
			},
		},
		"required": []string{"type", "timestamp", "checks", "all_passed"},
	}
}

func statusSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Status",
		"description": "Persisted identity and daemon state",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type":  "string",
				"const": "status",
			},
			"schemaVersion": map[string]interface{}{
				"type": "integer",
			},
			"state_dir": map[string]interface{}{
				"type":        "string",
				"description": "Directory identity is persisted under",
			},
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Live session, if one is persisted and fresh",
			},
			"session_age": map[string]interface{}{
				"type":        "string",
				"description": "Humanized time since the session was minted",
			},
			"end_user_id": map[string]interface{}{
				"type": "string",
			},
			"end_user_age": map[string]interface{}{
				"type": "string",
			},
			"daemon": map[string]interface{}{
				"type":        "object",
				"description": "Live daemon stats, when reachable",
				"properties": map[string]interface{}{
					"reachable":    map[string]interface{}{"type": "boolean"},
					"address":      map[string]interface{}{"type": "string"},
					"state":        map[string]interface{}{"type": "string"},
					"session_id":   map[string]interface{}{"type": "string"},
					"buffered":     map[string]interface{}{"type": "integer"},
					"captured":     map[string]interface{}{"type": "integer"},
					"failed_sends": map[string]interface{}{"type": "integer"},
				},
				"required": []string{"reachable"},
			},
		},
		"required": []string{"type", "schemaVersion", "state_dir"},
	}
}

// Helper to output a quick reference
func (c *SchemaCmd) outputTextHelp(globals *Globals) {
	fmt.Fprintln(globals.Stdout, "Swing Output Types:")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "  ready       - Recording is live")
	fmt.Fprintln(globals.Stdout, "  event       - One pipeline event in wire form")
	fmt.Fprintln(globals.Stdout, "  flush       - Completed upload")
	fmt.Fprintln(globals.Stdout, "  stats       - Periodic pipeline snapshot")
	fmt.Fprintln(globals.Stdout, "  session_end - Recording ended")
	fmt.Fprintln(globals.Stdout, "  error       - Error from swing")
	fmt.Fprintln(globals.Stdout, "  doctor      - Environment check results")
	fmt.Fprintln(globals.Stdout, "  status      - Persisted identity and daemon state")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "Use --format ndjson for the full JSON Schema, --type to filter: swing schema --type event,error")
}
