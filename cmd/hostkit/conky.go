// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostkit/hostkit/internal/conky"
	"github.com/hostkit/hostkit/internal/pkgmgr"
	"github.com/hostkit/hostkit/internal/sysinfo"
)

// newConkyCommand creates the `hostkit conky` command tree.
func newConkyCommand(app *App) *cobra.Command {
	conkyCmd := &cobra.Command{
		Use:   "conky",
		Short: "Install a conky system monitor for the desktop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	conkyCmd.AddCommand(&cobra.Command{
		Use:   "setup",
		Short: "Install conky, write conky.conf and start it at login",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ []string) error {
			pm, err := app.Packages()
			if err != nil {
				return err
			}
			in, err := newConkyInstaller(app, pm)
			if err != nil {
				return err
			}
			return in.Install(ctx)
		}),
	})

	conkyCmd.AddCommand(&cobra.Command{
		Use:   "render",
		Short: "Print the generated conky.conf",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ []string) error {
			in, err := newConkyInstaller(app, nil)
			if err != nil {
				return err
			}
			content, err := in.Render(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, content)
			return nil
		}),
	})

	return conkyCmd
}

// newConkyInstaller targets the desktop user, who owns the files when
// hostkit runs under sudo.
func newConkyInstaller(app *App, pm pkgmgr.Manager) (*conky.Installer, error) {
	home, err := app.HomeDir()
	if err != nil {
		return nil, err
	}
	in := conky.NewInstaller(app.runner, app.printer, app.logger, app.cfg.Conky, pm, home)
	if sysinfo.IsRoot() {
		if user := sysinfo.CurrentUser(); user != "" && user != "root" {
			in.Owner = user
		}
	}
	in.DryRun = app.flags.dryRun
	return in, nil
}
