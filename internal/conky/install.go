// SPDX-License-Identifier: MPL-2.0

package conky

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/issue"
	"github.com/hostkit/hostkit/internal/pkgmgr"
	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/ui"
)

const backupTimeLayout = "20060102-150405"

// Installer installs conky and writes the user's configuration.
type Installer struct {
	Runner   runner.Runner
	Printer  *ui.Printer
	Logger   *log.Logger
	Packages pkgmgr.Manager
	Settings Settings
	// HomeDir receives .config/conky and .config/autostart.
	HomeDir string
	// Owner, when set, is given ownership of the written files. Used when
	// running under sudo on behalf of a desktop user.
	Owner  string
	DryRun bool

	now func() time.Time
}

// NewInstaller wires an Installer for home.
func NewInstaller(r runner.Runner, p *ui.Printer, logger *log.Logger, cfg config.ConkyConfig, pm pkgmgr.Manager, home string) *Installer {
	return &Installer{
		Runner:   r,
		Printer:  p,
		Logger:   logger,
		Packages: pm,
		Settings: SettingsFromConfig(cfg),
		HomeDir:  home,
		now:      time.Now,
	}
}

// ConfigPath is where conky reads its configuration.
func (in *Installer) ConfigPath() string {
	return filepath.Join(in.HomeDir, ".config", "conky", "conky.conf")
}

// AutostartPath is the XDG autostart entry.
func (in *Installer) AutostartPath() string {
	return filepath.Join(in.HomeDir, ".config", "autostart", "conky.desktop")
}

// PackageName is conky-all on Debian derivatives and conky elsewhere.
func PackageName(f pkgmgr.Family) string {
	if f == pkgmgr.FamilyApt {
		return "conky-all"
	}
	return "conky"
}

// Render resolves the interface when unset and renders conky.conf.
func (in *Installer) Render(ctx context.Context) (string, error) {
	s := in.Settings
	if s.Interface == "" {
		s.Interface = DefaultInterface(ctx, in.Runner)
	}
	return RenderConfig(s)
}

// Install installs the package, writes conky.conf (backing up an existing
// one) and the autostart entry.
func (in *Installer) Install(ctx context.Context) error {
	p := in.Printer
	content, err := in.Render(ctx)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("render conky configuration").
			WithSuggestion("Check the conky section with: hostkit config show").
			Wrap(err).
			BuildError()
	}

	p.Section("Installing conky")
	pkg := PackageName(in.Packages.Family())
	if in.Packages.IsInstalled(ctx, pkg) {
		p.Success("%s already installed", pkg)
	} else if err := in.Packages.Install(ctx, pkg); err != nil {
		return issue.WrapWithOperation(err, "install "+pkg)
	}

	p.Section("Writing configuration")
	if err := in.write(in.ConfigPath(), content, true); err != nil {
		return err
	}
	if err := in.write(in.AutostartPath(), DesktopEntry, false); err != nil {
		return err
	}
	if in.Owner != "" {
		dir := filepath.Join(in.HomeDir, ".config")
		for _, sub := range []string{"conky", "autostart"} {
			cmd := runner.Command{Name: "chown", Args: []string{"-R", in.Owner + ":", filepath.Join(dir, sub)}, Sudo: true}
			if _, err := runner.RunChecked(ctx, in.Runner, cmd); err != nil {
				return issue.WrapWithOperation(err, "hand configuration to "+in.Owner)
			}
		}
	}

	p.Success("Conky starts at your next login; run 'conky --daemonize' to start it now")
	return nil
}

func (in *Installer) write(path, content string, backup bool) error {
	old, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		old = nil
	case err != nil:
		return issue.WrapWithOperation(err, "read "+path)
	}
	if old != nil && string(old) == content {
		in.Printer.Success("%s is up to date", path)
		return nil
	}

	bak := path + ".bak." + in.now().Format(backupTimeLayout)
	if in.DryRun {
		if old != nil && backup {
			in.Printer.Info("[dry-run] back up %s to %s", path, bak)
		}
		in.Printer.Info("[dry-run] write %s", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return issue.WrapWithOperation(err, "create "+filepath.Dir(path))
	}
	if old != nil && backup {
		if err := os.WriteFile(bak, old, 0o644); err != nil {
			return issue.WrapWithOperation(err, "back up "+path)
		}
		in.Printer.Success("Backed up previous config to %s", bak)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return issue.WrapWithOperation(err, "write "+path)
	}
	in.Logger.Debug("wrote", "path", path, "bytes", len(content))
	in.Printer.Success("Wrote %s", path)
	return nil
}
