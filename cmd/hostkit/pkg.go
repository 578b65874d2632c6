// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hostkit/hostkit/internal/pkgmgr"
	"github.com/hostkit/hostkit/internal/service"
	"github.com/hostkit/hostkit/internal/sysinfo"
	"github.com/hostkit/hostkit/internal/ui"
)

// newPkgCommand creates the `hostkit pkg` command tree.
func newPkgCommand(app *App) *cobra.Command {
	pkgCmd := &cobra.Command{
		Use:     "pkg",
		Aliases: []string{"packages"},
		Short:   "Install packages and bundles with the distribution's package manager",
		Long: `Install packages and bundles with the distribution's package manager.

apt, dnf and pacman are detected from /etc/os-release. Bundles group the
packages of a development stack; some run extra steps after installing, such
as adding you to the docker group or setting a user-level npm prefix.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pkgCmd.AddCommand(&cobra.Command{
		Use:   "detect",
		Short: "Show the detected package manager",
		Args:  cobra.NoArgs,
		RunE: app.run(func(context.Context, []string) error {
			pm, err := app.Packages()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, pm.Family())
			return nil
		}),
	})

	pkgCmd.AddCommand(newPkgManagerCommand(app, "update", "Refresh the package index", cobra.NoArgs,
		func(ctx context.Context, pm pkgmgr.Manager, _ []string) error { return pm.Update(ctx) }))
	pkgCmd.AddCommand(newPkgManagerCommand(app, "upgrade", "Upgrade all installed packages", cobra.NoArgs,
		func(ctx context.Context, pm pkgmgr.Manager, _ []string) error { return pm.Upgrade(ctx) }))
	pkgCmd.AddCommand(newPkgManagerCommand(app, "install <package>...", "Install packages", cobra.MinimumNArgs(1),
		func(ctx context.Context, pm pkgmgr.Manager, args []string) error {
			return pm.Install(ctx, pkgmgr.MapNames(pm.Family(), args)...)
		}))
	pkgCmd.AddCommand(newPkgManagerCommand(app, "remove <package>...", "Remove packages", cobra.MinimumNArgs(1),
		func(ctx context.Context, pm pkgmgr.Manager, args []string) error {
			return pm.Remove(ctx, pkgmgr.MapNames(pm.Family(), args)...)
		}))

	pkgCmd.AddCommand(&cobra.Command{
		Use:   "bundle <name>...",
		Short: "Install one or more package bundles",
		Args:  cobra.MinimumNArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			if err := requireRoot(app, "install bundles"); err != nil {
				return err
			}
			in, err := newInstaller(app)
			if err != nil {
				return err
			}
			for _, name := range args {
				if err := in.InstallBundle(ctx, name); err != nil {
					return err
				}
			}
			return nil
		}),
	})

	pkgCmd.AddCommand(&cobra.Command{
		Use:   "bundles",
		Short: "List available bundles",
		Args:  cobra.NoArgs,
		RunE: app.run(func(context.Context, []string) error {
			bundles := pkgmgr.Bundles(app.cfg.Packages.Bundles)
			for _, name := range pkgmgr.BundleNames(bundles) {
				label := name
				if pkgmgr.HasHook(name) {
					label += ui.SubtitleStyle.Render(" +setup")
				}
				fmt.Fprintln(app.stdout, ui.Row(label, strings.Join(bundles[name], " ")))
			}
			return nil
		}),
	})

	var minVersion string
	toolsCmd := &cobra.Command{
		Use:   "tools [tool]...",
		Short: "Show installed versions of common development tools",
		RunE: app.run(func(ctx context.Context, args []string) error {
			names := args
			if len(names) == 0 {
				names = pkgmgr.DefaultTools
			}
			return reportTools(ctx, app, names, minVersion)
		}),
	}
	toolsCmd.Flags().StringVar(&minVersion, "min", "", "fail when any listed tool is older than `VERSION`")
	pkgCmd.AddCommand(toolsCmd)

	return pkgCmd
}

func newPkgManagerCommand(app *App, use, short string, args cobra.PositionalArgs,
	fn func(context.Context, pkgmgr.Manager, []string) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: app.run(func(ctx context.Context, args []string) error {
			pm, err := app.Packages()
			if err != nil {
				return err
			}
			return fn(ctx, pm, args)
		}),
	}
}

func newInstaller(app *App) (*pkgmgr.Installer, error) {
	pm, err := app.Packages()
	if err != nil {
		return nil, err
	}
	home, err := app.HomeDir()
	if err != nil {
		return nil, err
	}
	return &pkgmgr.Installer{
		Manager:   pm,
		Runner:    app.runner,
		Systemd:   service.NewSystemd(app.runner),
		Printer:   app.printer,
		Logger:    app.logger,
		Config:    app.cfg.Packages,
		User:      sysinfo.CurrentUser(),
		Home:      home,
		Shell:     os.Getenv("SHELL"),
		RunAsUser: sysinfo.IsRoot() && os.Getenv("SUDO_USER") != "",
	}, nil
}

func reportTools(ctx context.Context, app *App, names []string, minVersion string) error {
	tools, err := pkgmgr.ProbeTools(ctx, app.runner, names)
	if err != nil {
		return err
	}

	var tooOld []string
	for _, t := range tools {
		if !t.Installed {
			fmt.Fprintln(app.stdout, ui.Row(t.Name, ui.WarningStyle.Render("not installed")))
			continue
		}
		version := t.Version
		if version == "" {
			version = t.Raw
		}
		if minVersion != "" {
			ok, err := pkgmgr.CheckMinVersion(t.Version, minVersion)
			if err != nil || !ok {
				tooOld = append(tooOld, t.Name)
				version = ui.ErrorStyle.Render(version + " (< " + minVersion + ")")
			}
		}
		fmt.Fprintln(app.stdout, ui.Row(t.Name, version))
	}
	if len(tooOld) > 0 {
		return fmt.Errorf("older than %s: %s", minVersion, strings.Join(tooOld, ", "))
	}
	return nil
}
