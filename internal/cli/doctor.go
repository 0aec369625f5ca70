package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"

	swing "github.com/adeelakhani/swing-sdk"
	"github.com/adeelakhani/swing-sdk/internal/config"
	"github.com/adeelakhani/swing-sdk/internal/storage"
)

// DoctorCmd checks the local environment for problems
type DoctorCmd struct {
	StateDir string `help:"Directory session identity is persisted under"`
	Bridge   string `help:"Bridge address to probe (default from config)"`
}

type checkResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type doctorReport struct {
	Type       string        `json:"type"`
	Timestamp  string        `json:"timestamp"`
	Checks     []checkResult `json:"checks"`
	AllPassed  bool          `json:"all_passed"`
	ErrorCount int           `json:"error_count"`
	WarnCount  int           `json:"warn_count"`
}

// Run executes the doctor command
func (c *DoctorCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}

	var checks []checkResult
	checks = append(checks, c.checkConfigFile())
	checks = append(checks, c.checkStateDir(globals, cfg)...)
	checks = append(checks, c.checkAPIKey(cfg))
	checks = append(checks, c.checkIngestEndpoint(cfg))
	checks = append(checks, c.checkBridge(cfg))

	report := doctorReport{
		Type:      "doctor",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}
	for _, check := range checks {
		switch check.Status {
		case "error":
			report.ErrorCount++
		case "warning":
			report.WarnCount++
		}
	}
	report.AllPassed = report.ErrorCount == 0 && report.WarnCount == 0

	if globals.Format == "ndjson" {
		b, err := json.Marshal(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(globals.Stdout, string(b))
	} else {
		fmt.Fprintln(globals.Stdout, "Running checks...")
		fmt.Fprintln(globals.Stdout)
		for _, check := range checks {
			fmt.Fprintf(globals.Stdout, "  [%s] %s: %s\n", check.Status, check.Name, check.Message)
			if check.Details != "" {
				fmt.Fprintf(globals.Stdout, "            %s\n", check.Details)
			}
		}
		fmt.Fprintln(globals.Stdout)
		if report.AllPassed {
			fmt.Fprintln(globals.Stdout, "All checks passed")
		} else {
			fmt.Fprintf(globals.Stdout, "%d errors, %d warnings\n", report.ErrorCount, report.WarnCount)
		}
	}

	if report.ErrorCount > 0 {
		return fmt.Errorf("%d checks failed", report.ErrorCount)
	}
	return nil
}

func (c *DoctorCmd) checkConfigFile() checkResult {
	if path := config.ConfigFile(); path != "" {
		return checkResult{Name: "config file", Status: "ok", Message: path}
	}
	return checkResult{Name: "config file", Status: "ok", Message: "none found, using defaults"}
}

func (c *DoctorCmd) checkStateDir(globals *Globals, cfg *config.Config) []checkResult {
	dir := lo.CoalesceOrEmpty(c.StateDir, cfg.Capture.StatePath)
	if dir == "" {
		var err error
		dir, err = swing.DefaultStatePath()
		if err != nil {
			return []checkResult{{Name: "state directory", Status: "error", Message: "cannot resolve home directory", Details: err.Error()}}
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return []checkResult{{Name: "state directory", Status: "error", Message: dir + " is not creatable", Details: err.Error()}}
	}
	if !c.checkWritePermission(dir) {
		return []checkResult{{Name: "state directory", Status: "error", Message: dir + " is not writable"}}
	}
	checks := []checkResult{{Name: "state directory", Status: "ok", Message: dir}}

	clk := clock.New()
	if jar, err := storage.NewJar(filepath.Join(dir, storage.JarFile), clk); err != nil {
		checks = append(checks, checkResult{Name: "identity jar", Status: "warning", Message: "cannot open", Details: err.Error()})
	} else {
		jar.Close()
		checks = append(checks, checkResult{Name: "identity jar", Status: "ok", Message: filepath.Join(dir, storage.JarFile)})
	}
	if db, err := storage.NewSQLite(filepath.Join(dir, storage.DBFile), clk); err != nil {
		checks = append(checks, checkResult{Name: "identity database", Status: "warning", Message: "cannot open, jar only", Details: err.Error()})
	} else {
		db.Close()
		checks = append(checks, checkResult{Name: "identity database", Status: "ok", Message: filepath.Join(dir, storage.DBFile)})
	}
	return checks
}

func (c *DoctorCmd) checkAPIKey(cfg *config.Config) checkResult {
	if cfg.Ingest.APIKey != "" {
		return checkResult{Name: "api key", Status: "ok", Message: "configured"}
	}
	return checkResult{
		Name:    "api key",
		Status:  "warning",
		Message: "not configured",
		Details: "set SWING_API_KEY or ingest.api_key in the config file",
	}
}

func (c *DoctorCmd) checkIngestEndpoint(cfg *config.Config) checkResult {
	if cfg.Ingest.URL == "" {
		return checkResult{
			Name:    "ingestion endpoint",
			Status:  "warning",
			Message: "not configured",
			Details: "set SWING_INGEST_URL or ingest.url in the config file",
		}
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(cfg.Ingest.URL)
	if err != nil {
		return checkResult{Name: "ingestion endpoint", Status: "warning", Message: cfg.Ingest.URL + " is unreachable", Details: err.Error()}
	}
	resp.Body.Close()
	return checkResult{Name: "ingestion endpoint", Status: "ok", Message: cfg.Ingest.URL}
}

func (c *DoctorCmd) checkBridge(cfg *config.Config) checkResult {
	addr := lo.CoalesceOrEmpty(c.Bridge, cfg.Bridge.Listen)
	if daemon := queryDaemon(addr); daemon.Reachable {
		return checkResult{Name: "bridge", Status: "ok", Message: fmt.Sprintf("daemon %s at %s", daemon.State, addr)}
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return checkResult{Name: "bridge", Status: "warning", Message: addr + " is in use by another process", Details: err.Error()}
	}
	ln.Close()
	return checkResult{Name: "bridge", Status: "ok", Message: addr + " is free"}
}

// checkWritePermission reports whether dir accepts new files.
func (c *DoctorCmd) checkWritePermission(dir string) bool {
	probe := filepath.Join(dir, ".swing-doctor")
	f, err := os.Create(probe)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)
	return true
}
