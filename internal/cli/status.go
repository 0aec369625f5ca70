package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	swing "github.com/adeelakhani/swing-sdk"
	"github.com/adeelakhani/swing-sdk/internal/config"
	"github.com/adeelakhani/swing-sdk/internal/identity"
	"github.com/adeelakhani/swing-sdk/internal/output"
	"github.com/adeelakhani/swing-sdk/internal/storage"
)

// StatusCmd shows the persisted session and end-user identity, plus live
// stats when a daemon is reachable.
type StatusCmd struct {
	StateDir string `help:"Directory session identity is persisted under"`
	Bridge   string `help:"Bridge address to query for live stats (default from config)"`
	NoDaemon bool   `help:"Skip querying the local daemon"`
}

type daemonStatus struct {
	Reachable   bool   `json:"reachable"`
	Address     string `json:"address,omitempty"`
	State       string `json:"state,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	Buffered    int    `json:"buffered,omitempty"`
	Captured    int64  `json:"captured,omitempty"`
	FailedSends int64  `json:"failed_sends,omitempty"`
}

type statusReport struct {
	Type          string        `json:"type"`
	SchemaVersion int           `json:"schemaVersion"`
	StateDir      string        `json:"state_dir"`
	SessionID     string        `json:"session_id,omitempty"`
	SessionAge    string        `json:"session_age,omitempty"`
	EndUserID     string        `json:"end_user_id,omitempty"`
	EndUserAge    string        `json:"end_user_age,omitempty"`
	Daemon        *daemonStatus `json:"daemon,omitempty"`
}

// Run executes the status command
func (c *StatusCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}

	dir := lo.CoalesceOrEmpty(c.StateDir, cfg.Capture.StatePath)
	if dir == "" {
		var err error
		dir, err = swing.DefaultStatePath()
		if err != nil {
			return outputErrorCommon(globals, "STATE_DIR_FAILED", err.Error())
		}
	}

	logger := buildLogger(globals)
	defer logger.Sync()

	clk := clock.New()
	store := storage.Open(dir, clk, logger)
	defer store.Close()
	manager := identity.NewManager(store, clk, logger, 0)

	report := statusReport{
		Type:          "status",
		SchemaVersion: output.SchemaVersion,
		StateDir:      dir,
	}
	if id, ok := manager.CurrentSession(); ok {
		report.SessionID = id
		if minted, ok := identity.MintedAt(id); ok {
			report.SessionAge = humanize.Time(minted)
		}
	}
	if id, ok := manager.CurrentEndUser(); ok {
		report.EndUserID = id
		if minted, ok := identity.MintedAt(id); ok {
			report.EndUserAge = humanize.Time(minted)
		}
	}

	if !c.NoDaemon {
		addr := lo.CoalesceOrEmpty(c.Bridge, cfg.Bridge.Listen)
		report.Daemon = queryDaemon(addr)
	}

	if globals.Format == "ndjson" {
		b, err := json.Marshal(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(globals.Stdout, string(b))
		return nil
	}

	table := tablewriter.NewWriter(globals.Stdout)
	table.Header("Field", "Value")
	table.Append([]string{"State dir", report.StateDir})
	table.Append([]string{"Session", orDash(report.SessionID)})
	if report.SessionAge != "" {
		table.Append([]string{"Session started", report.SessionAge})
	}
	table.Append([]string{"End user", orDash(report.EndUserID)})
	if report.EndUserAge != "" {
		table.Append([]string{"End user since", report.EndUserAge})
	}
	if report.Daemon != nil {
		if report.Daemon.Reachable {
			table.Append([]string{"Daemon", fmt.Sprintf("%s at %s", report.Daemon.State, report.Daemon.Address)})
			table.Append([]string{"Buffered", humanize.Comma(int64(report.Daemon.Buffered))})
			table.Append([]string{"Captured", humanize.Comma(report.Daemon.Captured)})
			if report.Daemon.FailedSends > 0 {
				table.Append([]string{"Failed sends", humanize.Comma(report.Daemon.FailedSends)})
			}
		} else {
			table.Append([]string{"Daemon", "not running"})
		}
	}
	table.Render()
	return nil
}

// queryDaemon asks a running capture daemon for its stats. Unreachable is a normal
// answer, not an error.
func queryDaemon(addr string) *daemonStatus {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/stats")
	if err != nil {
		return &daemonStatus{Reachable: false, Address: addr}
	}
	defer resp.Body.Close()

	var stats output.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return &daemonStatus{Reachable: false, Address: addr}
	}
	return &daemonStatus{
		Reachable:   true,
		Address:     addr,
		State:       stats.State,
		SessionID:   stats.SessionID,
		Buffered:    stats.Buffered,
		Captured:    stats.Captured,
		FailedSends: stats.FailedSends,
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
