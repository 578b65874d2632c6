// SPDX-License-Identifier: MPL-2.0

package pkgmgr

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/rcfile"
	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/service"
	"github.com/hostkit/hostkit/internal/ui"
)

// NPMPrefixMarker names the shell rc block that puts npm globals on PATH.
const NPMPrefixMarker = "npm-global"

type (
	// Hook runs after a bundle's packages are installed.
	Hook func(ctx context.Context, in *Installer) error

	// Installer installs bundles and runs their hooks.
	Installer struct {
		Manager Manager
		Runner  runner.Runner
		Systemd *service.Systemd
		Printer *ui.Printer
		Logger  *log.Logger
		Config  config.PackagesConfig
		// User is the human account hooks configure (docker group, npm prefix).
		User  string
		Home  string
		Shell string
		// RunAsUser wraps user-level hook commands in "sudo -u User -H" when
		// hostkit itself runs as root.
		RunAsUser bool
	}
)

var hooks = map[string]Hook{
	"docker": dockerHook,
	"code":   vscodeHook,
	"node":   npmHook,
	"python": pipHook,
	"php":    composerHook,
}

// HasHook reports whether bundle has post-install work.
func HasHook(bundle string) bool {
	_, ok := hooks[bundle]
	return ok
}

// InstallBundle installs the packages of bundle and then its hook, if any.
func (in *Installer) InstallBundle(ctx context.Context, bundle string) error {
	pkgs, err := Resolve(Bundles(in.Config.Bundles), bundle, in.Manager.Family())
	if err != nil {
		return err
	}

	missing := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		if in.Manager.IsInstalled(ctx, p) {
			in.Printer.Verbosef("%s already installed", p)
			continue
		}
		missing = append(missing, p)
	}
	if len(missing) > 0 {
		in.Printer.Info("Installing %s: %v", bundle, missing)
		if err := in.Manager.Install(ctx, missing...); err != nil {
			return err
		}
	}
	in.Printer.Success("Bundle %s installed", bundle)

	hook, ok := hooks[bundle]
	if !ok {
		return nil
	}
	if err := hook(ctx, in); err != nil {
		return fmt.Errorf("%s post-install: %w", bundle, err)
	}
	return nil
}

func dockerHook(ctx context.Context, in *Installer) error {
	if err := in.Systemd.EnableNow(ctx, "docker"); err != nil {
		return err
	}
	if in.User == "" || in.User == "root" {
		return nil
	}
	cmd := runner.Cmd("usermod", "-aG", "docker", in.User)
	cmd.Sudo = true
	if _, err := runner.RunChecked(ctx, in.Runner, cmd); err != nil {
		return err
	}
	in.Printer.Warn("Log out and back in for the docker group to apply to %s", in.User)
	return nil
}

func vscodeHook(ctx context.Context, in *Installer) error {
	for _, ext := range in.Config.VSCodeExtensions {
		if _, err := runner.RunChecked(ctx, in.Runner, in.userCmd(runner.Cmd("code", "--install-extension", ext, "--force"))); err != nil {
			in.Printer.Warn("Extension %s failed: %v", ext, err)
			continue
		}
		in.Printer.Success("Extension %s", ext)
	}
	return nil
}

// npmHook points the npm global prefix into the user's home so global
// installs need no root.
func npmHook(ctx context.Context, in *Installer) error {
	prefix := filepath.Join(in.Home, ".npm-global")
	if _, err := runner.RunChecked(ctx, in.Runner, in.userCmd(runner.Cmd("npm", "config", "set", "prefix", prefix))); err != nil {
		return err
	}
	rc := rcfile.DefaultShellRC(in.Home, in.Shell)
	if _, err := rcfile.EnsureBlock(rc, NPMPrefixMarker, []string{`export PATH="$HOME/.npm-global/bin:$PATH"`}); err != nil {
		return err
	}
	if len(in.Config.NPMGlobals) == 0 {
		return nil
	}
	cmd := runner.Cmd("npm", append([]string{"install", "-g"}, in.Config.NPMGlobals...)...)
	cmd.Env = []string{"NPM_CONFIG_PREFIX=" + prefix}
	cmd.Stream = true
	_, err := runner.RunChecked(ctx, in.Runner, in.userCmd(cmd))
	return err
}

func pipHook(ctx context.Context, in *Installer) error {
	if len(in.Config.PipPackages) == 0 {
		return nil
	}
	args := append([]string{"-m", "pip", "install", "--user"}, in.Config.PipPackages...)
	cmd := runner.Cmd("python3", args...)
	cmd.Stream = true
	_, err := runner.RunChecked(ctx, in.Runner, in.userCmd(cmd))
	return err
}

func composerHook(ctx context.Context, in *Installer) error {
	if len(in.Config.ComposerGlobals) == 0 {
		return nil
	}
	cmd := runner.Cmd("composer", append([]string{"global", "require"}, in.Config.ComposerGlobals...)...)
	cmd.Stream = true
	_, err := runner.RunChecked(ctx, in.Runner, in.userCmd(cmd))
	return err
}

// userCmd runs cmd as the human user when hostkit runs as root. Env entries
// are passed through env(1) because sudo resets the environment.
func (in *Installer) userCmd(cmd runner.Command) runner.Command {
	if !in.RunAsUser || in.User == "" || in.User == "root" {
		return cmd
	}
	args := []string{"-u", in.User, "-H"}
	if len(cmd.Env) > 0 {
		args = append(append(args, "env"), cmd.Env...)
	}
	args = append(args, cmd.Name)
	args = append(args, cmd.Args...)
	cmd.Name, cmd.Args, cmd.Env = "sudo", args, nil
	return cmd
}
