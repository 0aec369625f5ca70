// Package cli implements the swing command line interface. Every command
// writes either human-readable text or NDJSON depending on --format, so the
// same binary serves people and automation.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/adeelakhani/swing-sdk/internal/config"
)

// Version and Commit are set at build time via ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

// CLI is the top-level command structure for kong.
type CLI struct {
	Format  string `help:"Output format (auto, text, ndjson)" enum:"auto,text,ndjson" default:"${config_format=auto}"`
	Level   string `help:"Internal log level (debug, info, warn, error)" enum:"debug,info,warn,error" default:"${config_level=info}"`
	Quiet   bool   `short:"q" help:"Suppress informational output"`
	Verbose bool   `short:"v" help:"Verbose debug logging to stderr"`

	Run        RunCmd        `cmd:"" help:"Capture a session and stream it to the ingestion backend"`
	Replay     ReplayCmd     `cmd:"" help:"Replay a recorded event log through the pipeline"`
	Analyze    AnalyzeCmd    `cmd:"" help:"Summarize a recorded event log"`
	Status     StatusCmd     `cmd:"" help:"Show persisted session and end-user identity"`
	Monitor    MonitorCmd    `cmd:"" help:"Live terminal view of a running capture daemon"`
	Doctor     DoctorCmd     `cmd:"" help:"Check the local environment for problems"`
	Config     ConfigCmd     `cmd:"" help:"Manage configuration"`
	Schema     SchemaCmd     `cmd:"" help:"Output JSON Schema for swing output types"`
	Completion CompletionCmd `cmd:"" help:"Generate shell completions"`
	Version    VersionCmd    `cmd:"" help:"Show version information"`
	Update     UpdateCmd     `cmd:"" help:"Show how to upgrade swing"`
	Help       HelpCmd       `cmd:"" help:"Output machine-readable CLI documentation"`
}

// ConfigCmd groups the configuration subcommands.
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"1" help:"Show current configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show which config file is in use"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print a sample config file"`
}

// Globals carries the shared flags and streams into every command's Run.
type Globals struct {
	Format  string
	Level   string
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
}

// NewGlobalsWithConfig builds Globals from parsed flags and a loaded config.
// Commands never see the "auto" format; it is resolved here.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	return &Globals{
		Format:  resolveFormat(c.Format),
		Level:   c.Level,
		Quiet:   c.Quiet,
		Verbose: c.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
}

// resolveFormat maps "auto" to text on a terminal and ndjson elsewhere.
func resolveFormat(format string) string {
	if format != "auto" {
		return format
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return "text"
	}
	return "ndjson"
}

// Debug prints a debug line to stderr when verbose is enabled.
func (g *Globals) Debug(format string, args ...interface{}) {
	if g == nil || !g.Verbose {
		return
	}
	fmt.Fprintf(g.Stderr, "[debug] "+format+"\n", args...)
}
