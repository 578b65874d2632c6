// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for hostkit.
//
// Each tool lives in its own command tree (transfer, ssh-key, pkg, service,
// firewall, ftp, tailscale, conky) built by a constructor that receives the
// shared App.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/hostkit/hostkit/internal/ui"
)

// annotationConfigOptional marks command trees that still run when the
// configuration file is broken, so it can be inspected and repaired.
const annotationConfigOptional = "hostkit/config-optional"

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// newRootCommand builds the full command tree around app.
func newRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "hostkit",
		Short: "Workstation and server setup toolkit",
		Long: ui.TitleStyle.Render("hostkit") + ui.SubtitleStyle.Render(" - Workstation and server setup toolkit") + `

hostkit wraps the tools you already use to set up and operate Linux
machines: rsync, ssh-keygen, apt/dnf/pacman, ufw, systemd, vsftpd,
Tailscale and conky. Every change goes through the same runner, so
--dry-run shows exactly which commands would run.

` + ui.SubtitleStyle.Render("Examples:") + `
  hostkit transfer ./site deploy@web1:/srv/www --preview
  hostkit ssh-key generate --type ed25519
  sudo hostkit ftp setup
  sudo hostkit tailscale debug
  hostkit config show`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.init(cmd.Context()); err != nil {
				if !configOptional(cmd) {
					return err
				}
				fmt.Fprintln(app.stderr, ui.WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, app.flags.verbose))
				return app.initDefaults(cmd.Context())
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&app.flags.config, "config", "", "config file (default is $XDG_CONFIG_HOME/hostkit/config.cue)")
	pf.BoolVar(&app.flags.dryRun, "dry-run", false, "print commands that change the system instead of running them")
	pf.StringVar(&app.flags.logFile, "log-file", "", "append a timestamped operation log to this file")
	pf.BoolVarP(&app.flags.yes, "yes", "y", false, "answer yes to every confirmation prompt")

	root.AddCommand(
		newConfigCommand(app),
		newTransferCommand(app),
		newSSHKeyCommand(app),
		newPkgCommand(app),
		newServiceCommand(app),
		newFirewallCommand(app),
		newFTPCommand(app),
		newTailscaleCommand(app),
		newConkyCommand(app),
	)
	return root
}

func configOptional(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[annotationConfigOptional]; ok {
			return true
		}
	}
	return false
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the command tree and runs it. This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}

	err = fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	if closeErr := app.close(); closeErr != nil {
		fmt.Fprintln(os.Stderr, ui.WarningStyle.Render("Warning: ")+closeErr.Error())
	}
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}
