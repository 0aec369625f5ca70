package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/samber/lo"

	"github.com/adeelakhani/swing-sdk/internal/config"
	"github.com/adeelakhani/swing-sdk/internal/monitor"
)

// MonitorCmd launches an interactive terminal view of a running daemon
type MonitorCmd struct {
	Bridge   string `help:"Bridge address to watch (default from config)"`
	Interval string `default:"1s" help:"Refresh interval"`
}

// Run executes the monitor command
func (c *MonitorCmd) Run(globals *Globals) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("monitor needs an interactive terminal; use 'swing status' or the run stats stream instead")
	}

	interval, err := parseOptionalDuration(c.Interval)
	if err != nil {
		return fmt.Errorf("invalid refresh interval: %w", err)
	}

	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}
	addr := lo.CoalesceOrEmpty(c.Bridge, cfg.Bridge.Listen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	globals.Debug("Starting monitor for %s", addr)
	p := tea.NewProgram(monitor.New(addr, interval), tea.WithAltScreen())

	// Handle context cancellation
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
