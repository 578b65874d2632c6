// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/tailscale"
)

// newTailscaleCommand creates the `hostkit tailscale` command tree.
func newTailscaleCommand(app *App) *cobra.Command {
	tsCmd := &cobra.Command{
		Use:     "tailscale",
		Aliases: []string{"ts"},
		Short:   "Install, connect and troubleshoot Tailscale",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	tsCmd.AddCommand(&cobra.Command{
		Use:   "setup",
		Short: "Install Tailscale, enable forwarding and log in",
		Long: `Install Tailscale, enable forwarding and log in.

"tailscale up" flags come from the tailscale_config section; the exit node
and IP forwarding settings come from network_config.`,
		Args: cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ []string) error {
			if err := requireRoot(app, "set up Tailscale"); err != nil {
				return err
			}
			return newTailscaleManager(app).Setup(ctx)
		}),
	})

	tsCmd.AddCommand(&cobra.Command{
		Use:   "debug",
		Short: "Diagnose installation, connectivity, routes and DNS",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ []string) error {
			report := newTailscaleManager(app).Diagnose(ctx)
			if code := report.ExitCode(); code != 0 {
				return &ExitError{Code: runner.ExitCode(code)}
			}
			return nil
		}),
	})

	tsCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show addresses, peers and the configured flags",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ []string) error {
			m := newTailscaleManager(app)
			st, err := m.Status(ctx)
			if err != nil {
				return err
			}
			app.printer.Box("Tailscale", tailscale.StatusLines(st))
			if app.printer.Verbose {
				app.printer.Box("Configuration", tailscale.ConfigLines(app.cfg.Tailscale, app.cfg.Network))
			}
			return nil
		}),
	})

	tsCmd.AddCommand(newTailscaleLogsCommand(app))
	return tsCmd
}

func newTailscaleManager(app *App) *tailscale.Manager {
	m := tailscale.NewManager(app.runner, app.printer, app.logger, app.cfg)
	m.DryRun = app.flags.dryRun
	m.Firewall.DryRun = app.flags.dryRun
	return m
}

type tailscaleLogFlags struct {
	lines       int
	follow      bool
	connections bool
	errors      bool
	auth        bool
	syslog      bool
	files       bool
}

func newTailscaleLogsCommand(app *App) *cobra.Command {
	var f tailscaleLogFlags
	logsCmd := &cobra.Command{
		Use:   "logs [filter]",
		Short: "View tailscaled journal entries and log files",
		Long: `View tailscaled journal entries and log files.

With no filter and no flags an interactive viewer opens when prompts are
enabled; otherwise the last journal lines are printed.`,
		Example: `  hostkit tailscale logs
  hostkit tailscale logs derp --lines 200
  hostkit tailscale logs --errors
  hostkit tailscale logs --follow`,
		Args: cobra.MaximumNArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}
			return runTailscaleLogs(ctx, app, newTailscaleManager(app), filter, f)
		}),
	}
	fl := logsCmd.Flags()
	fl.IntVarP(&f.lines, "lines", "n", tailscale.DefaultLogLines, "number of journal lines to search")
	fl.BoolVarP(&f.follow, "follow", "f", false, "stream new journal entries")
	fl.BoolVar(&f.connections, "connections", false, "peer connection events")
	fl.BoolVar(&f.errors, "errors", false, "errors and warnings")
	fl.BoolVar(&f.auth, "auth", false, "login, logout and key events")
	fl.BoolVar(&f.syslog, "syslog", false, "tailscale entries in syslog")
	fl.BoolVar(&f.files, "files", false, "list files in the tailscale log directory")
	return logsCmd
}

func (f tailscaleLogFlags) any() bool {
	return f.follow || f.connections || f.errors || f.auth || f.syslog || f.files
}

func runTailscaleLogs(ctx context.Context, app *App, m *tailscale.Manager, filter string, f tailscaleLogFlags) error {
	var (
		lines []string
		err   error
	)
	switch {
	case f.follow:
		app.printer.Info("Following tailscaled (Ctrl+C to stop)")
		return m.FollowJournal(ctx, filter, app.stdout)
	case f.connections:
		lines, err = m.ConnectionLines(ctx)
	case f.errors:
		lines, err = m.ErrorLines(ctx)
	case f.auth:
		lines, err = m.AuthLines(ctx)
	case f.syslog:
		lines, err = m.SyslogLines(f.lines)
	case f.files:
		lines, err = m.LogFiles()
	case filter == "" && !f.any() && app.cfg.UI.Interactive && !app.flags.yes:
		return m.LogMenu(ctx, app.Prompter, app.stdout)
	default:
		lines, err = m.JournalLines(ctx, filter, f.lines)
	}
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		app.printer.Warn("No matching log entries")
		return nil
	}
	fmt.Fprintln(app.stdout, strings.Join(lines, "\n"))
	return nil
}
