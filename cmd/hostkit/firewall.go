// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hostkit/hostkit/internal/firewall"
	"github.com/hostkit/hostkit/internal/issue"
	"github.com/hostkit/hostkit/internal/sysinfo"
	"github.com/hostkit/hostkit/internal/ui"
)

// newFirewallCommand creates the `hostkit firewall` command tree.
func newFirewallCommand(app *App) *cobra.Command {
	fwCmd := &cobra.Command{
		Use:     "firewall",
		Aliases: []string{"ufw"},
		Short:   "Manage ufw rules with backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	fwCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether ufw is active and list its rules",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ []string) error {
			st, err := newFirewall(app).Status(ctx)
			if err != nil {
				return err
			}
			renderFirewallStatus(app, st)
			return nil
		}),
	})

	fwCmd.AddCommand(
		newRuleCommand(app, "allow", "Allow traffic to a port", (*firewall.Firewall).Allow),
		newRuleCommand(app, "deny", "Deny traffic to a port", (*firewall.Firewall).Deny),
	)

	fwCmd.AddCommand(&cobra.Command{
		Use:   "delete <rule>...",
		Short: `Delete a rule, e.g. "delete allow 21/tcp" or "delete 3"`,
		Args:  cobra.MinimumNArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			if err := requireRoot(app, "delete firewall rules"); err != nil {
				return err
			}
			ok, err := app.confirm(fmt.Sprintf("Delete rule %q?", strings.Join(args, " ")), false)
			if err != nil || !ok {
				return err
			}
			return newFirewall(app).DeleteRule(ctx, args...)
		}),
	})

	fwCmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Enable ufw, allowing the SSH port first unless keep_ssh is off",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ []string) error {
			if err := requireRoot(app, "enable the firewall"); err != nil {
				return err
			}
			sshPort := ""
			if app.cfg.Firewall.KeepSSH {
				sshPort = strconv.Itoa(app.cfg.SSH.Port)
			}
			if err := newFirewall(app).Enable(ctx, sshPort); err != nil {
				return err
			}
			app.printer.Success("Firewall enabled")
			return nil
		}),
	})

	var (
		sources []string
		proto   string
		backup  bool
	)
	hardenCmd := &cobra.Command{
		Use:   "harden <port>",
		Short: "Restrict a port to the given sources",
		Long: `Restrict a port to the given sources.

Every rule that allows the port from Anywhere is removed and one rule per
source is added. Sources are IP addresses or CIDR prefixes.`,
		Example: `  sudo hostkit firewall harden 21 --source 192.168.1.0/24 --source 100.64.0.0/10`,
		Args:    cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			if err := requireRoot(app, "harden the firewall"); err != nil {
				return err
			}
			if len(sources) == 0 {
				return issue.NewErrorContext().
					WithOperation("harden firewall").
					WithResource("port " + args[0]).
					WithSuggestion("Pass --source with an address or prefix, e.g. --source 10.0.0.0/8").
					Wrap(fmt.Errorf("%w: at least one --source is required", firewall.ErrInvalidSource)).
					Build()
			}
			fw := newFirewall(app)
			if backup {
				if _, err := fw.Backup(ctx, app.cfg.Firewall.BackupDir, time.Now()); err != nil {
					return err
				}
			}
			return fw.Harden(ctx, firewall.HardenPlan{Port: args[0], Proto: proto, Sources: sources})
		}),
	}
	hardenCmd.Flags().StringArrayVarP(&sources, "source", "s", nil, "allowed source `ADDR` or prefix (repeatable)")
	hardenCmd.Flags().StringVar(&proto, "proto", "tcp", "protocol: tcp, udp or empty for both")
	hardenCmd.Flags().BoolVar(&backup, "backup", true, "back up the rule files first")
	fwCmd.AddCommand(hardenCmd)

	fwCmd.AddCommand(&cobra.Command{
		Use:   "backup",
		Short: "Copy the ufw rule files into a timestamped backup",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ []string) error {
			if err := requireRoot(app, "back up the firewall"); err != nil {
				return err
			}
			b, err := newFirewall(app).Backup(ctx, app.cfg.Firewall.BackupDir, time.Now())
			if err != nil {
				return err
			}
			if !app.flags.dryRun {
				app.printer.Box("Backup "+b.ID, backupLines(b))
			}
			return nil
		}),
	})

	fwCmd.AddCommand(&cobra.Command{
		Use:   "backups",
		Short: "List firewall backups",
		Args:  cobra.NoArgs,
		RunE: app.run(func(context.Context, []string) error {
			list, err := firewall.ListBackups(app.cfg.Firewall.BackupDir)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				app.printer.Warn("No backups in %s", app.cfg.Firewall.BackupDir)
				return nil
			}
			for _, b := range list {
				fmt.Fprintln(app.stdout, ui.Row(b.ID,
					fmt.Sprintf("%s, %d files, %s", humanize.Time(b.Created), len(b.Files), humanize.IBytes(b.Size))))
			}
			return nil
		}),
	})

	fwCmd.AddCommand(&cobra.Command{
		Use:   "restore <backup-id>",
		Short: "Restore rule files from a backup and reload ufw",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			if err := requireRoot(app, "restore the firewall"); err != nil {
				return err
			}
			ok, err := app.confirm(fmt.Sprintf("Replace the current rules with backup %s?", args[0]), false)
			if err != nil || !ok {
				return err
			}
			_, err = newFirewall(app).Restore(ctx, app.cfg.Firewall.BackupDir, args[0])
			return err
		}),
	})

	return fwCmd
}

func newFirewall(app *App) *firewall.Firewall {
	fw := firewall.New(app.runner, app.printer, app.logger)
	fw.DryRun = app.flags.dryRun
	return fw
}

// requireRoot lets --dry-run through so plans can be inspected unprivileged.
func requireRoot(app *App, operation string) error {
	if app.flags.dryRun {
		return nil
	}
	return sysinfo.RequireRoot(operation)
}

func newRuleCommand(app *App, action, short string,
	fn func(*firewall.Firewall, context.Context, string, string, string) error,
) *cobra.Command {
	var proto, from string
	ruleCmd := &cobra.Command{
		Use:   action + " <port>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			if err := requireRoot(app, action+" firewall traffic"); err != nil {
				return err
			}
			if err := fn(newFirewall(app), ctx, args[0], proto, from); err != nil {
				return err
			}
			app.printer.Success("%s %s", action, args[0])
			return nil
		}),
	}
	ruleCmd.Flags().StringVar(&proto, "proto", "", "protocol: tcp or udp (default both)")
	ruleCmd.Flags().StringVar(&from, "from", "", "source address or prefix (default anywhere)")
	return ruleCmd
}

func renderFirewallStatus(app *App, st firewall.Status) {
	state := ui.ErrorStyle.Render("inactive")
	if st.Active {
		state = ui.SuccessStyle.Render("active")
	}
	fmt.Fprintln(app.stdout, ui.Row("Status", state))
	if len(st.Rules) == 0 {
		return
	}
	fmt.Fprintln(app.stdout)
	for _, r := range st.Rules {
		action := r.Action
		if r.IsAllow() {
			action = ui.SuccessStyle.Render(action)
		} else {
			action = ui.WarningStyle.Render(action)
		}
		line := fmt.Sprintf("  %-22s %-12s %s", r.To, action, r.From)
		if r.Comment != "" {
			line += ui.SubtitleStyle.Render("  # " + r.Comment)
		}
		fmt.Fprintln(app.stdout, line)
	}
}

func backupLines(b firewall.Backup) []string {
	return []string{
		ui.Row("Path", b.Path),
		ui.Row("Created", b.Created.Local().Format(time.DateTime)),
		ui.Row("Files", strings.Join(b.Files, ", ")),
		ui.Row("Size", humanize.IBytes(b.Size)),
	}
}
