// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/service"
	"github.com/hostkit/hostkit/internal/ui"
)

// newServiceCommand creates the `hostkit service` command tree.
func newServiceCommand(app *App) *cobra.Command {
	svcCmd := &cobra.Command{
		Use:   "service",
		Short: "Inspect and control systemd units",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	svcCmd.AddCommand(&cobra.Command{
		Use:   "status <unit>...",
		Short: "Show whether units exist, run and start at boot",
		Args:  cobra.MinimumNArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			sd := service.NewSystemd(app.runner)
			for _, unit := range args {
				app.printer.Box(unit, unitLines(ctx, sd, unit))
			}
			return nil
		}),
	})

	for _, verb := range []struct {
		name, short string
		fn          func(*service.Systemd, context.Context, string) error
	}{
		{"start", "Start units", (*service.Systemd).Start},
		{"stop", "Stop units", (*service.Systemd).Stop},
		{"restart", "Restart units", (*service.Systemd).Restart},
		{"enable", "Enable and start units", (*service.Systemd).EnableNow},
	} {
		svcCmd.AddCommand(&cobra.Command{
			Use:   verb.name + " <unit>...",
			Short: verb.short,
			Args:  cobra.MinimumNArgs(1),
			RunE: app.run(func(ctx context.Context, args []string) error {
				sd := service.NewSystemd(app.runner)
				for _, unit := range args {
					if err := verb.fn(sd, ctx, unit); err != nil {
						return err
					}
					app.printer.Success("%s %s", verb.name, unit)
				}
				return nil
			}),
		})
	}

	var jo service.JournalOptions
	logsCmd := &cobra.Command{
		Use:   "logs <unit>",
		Short: "Show journal entries of a unit",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			jo.Unit = args[0]
			if jo.Follow {
				app.printer.Info("Following %s (Ctrl+C to stop)", jo.Unit)
			}
			res, err := runner.RunChecked(ctx, app.runner, service.Journal(jo))
			if err != nil {
				return err
			}
			if !jo.Follow {
				fmt.Fprint(app.stdout, res.Stdout)
			}
			return nil
		}),
	}
	logsCmd.Flags().IntVarP(&jo.Lines, "lines", "n", 50, "number of entries to show")
	logsCmd.Flags().BoolVarP(&jo.Follow, "follow", "f", false, "stream new entries")
	logsCmd.Flags().StringVar(&jo.Since, "since", "", "only entries newer than this, e.g. \"1 hour ago\"")
	logsCmd.Flags().StringVarP(&jo.Priority, "priority", "p", "", "minimum priority, e.g. err")
	svcCmd.AddCommand(logsCmd)

	return svcCmd
}

func unitLines(ctx context.Context, sd *service.Systemd, unit string) []string {
	if !sd.Exists(ctx, unit) {
		return []string{ui.Row("Installed", ui.WarningStyle.Render("no"))}
	}
	lines := []string{
		ui.Row("Active", yesNo(sd.IsActive(ctx, unit))),
		ui.Row("Enabled", yesNo(sd.IsEnabled(ctx, unit))),
	}
	if status, err := sd.Status(ctx, unit); err == nil {
		for _, line := range strings.Split(status, "\n") {
			if state, ok := strings.CutPrefix(strings.TrimSpace(line), "Active:"); ok {
				lines = append(lines, ui.Row("State", strings.TrimSpace(state)))
				break
			}
		}
	}
	return lines
}

func yesNo(b bool) string {
	if b {
		return ui.SuccessStyle.Render("yes")
	}
	return ui.ErrorStyle.Render("no")
}
