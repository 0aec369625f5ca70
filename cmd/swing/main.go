package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/adeelakhani/swing-sdk/internal/cli"
	"github.com/adeelakhani/swing-sdk/internal/config"
)

const quickStart = `swing - session capture pipeline for web apps and AI agents

Quick start:
  swing run --api-key KEY --ingest-url URL   Record a session
  swing status                               Inspect persisted identity
  swing replay session.ndjson                Re-send a recorded session

For help:
  swing --help                               All commands and flags
  swing help                                 Machine-readable docs (for AI agents)
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Apply config defaults before parsing
	// These will be overridden by CLI flags if specified
	vars := kong.Vars{
		"config_format": cfg.Format,
		"config_level":  cfg.Level,
	}

	ctx := kong.Parse(&c,
		kong.Name("swing"),
		kong.Description("Swing: capture browser sessions and stream them to your ingestion backend\n\nAI agents: run 'swing help --format ndjson' for complete machine-readable documentation"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	// Create globals with config fallbacks
	globals := cli.NewGlobalsWithConfig(&c, cfg)
	err = ctx.Run(globals)
	if err != nil {
		os.Exit(1)
	}
}
