// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/hostkit/hostkit/internal/applog"
	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/pkgmgr"
	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/sysinfo"
	"github.com/hostkit/hostkit/internal/tui"
	"github.com/hostkit/hostkit/internal/ui"
)

type (
	// App wires CLI services and shared dependencies. Every command
	// constructor receives the App and reads the loaded configuration, the
	// runner and the printer from it once the root pre-run hook has run.
	App struct {
		Config   config.Provider
		Prompter tui.Prompter

		baseRunner runner.Runner
		packages   pkgmgr.Manager
		homeDir    string
		stdout     io.Writer
		stderr     io.Writer

		flags globalFlags

		cfg     *config.Config
		cfgPath string
		runner  runner.Runner
		logger  *log.Logger
		printer *ui.Printer
		oplog   *applog.OperationLog
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults. Tests supply a fake
	// runner and a static config provider.
	Dependencies struct {
		Config   config.Provider
		Runner   runner.Runner
		Prompter tui.Prompter
		// Packages skips os-release detection when set.
		Packages pkgmgr.Manager
		// HomeDir replaces the invoking user's home directory.
		HomeDir string
		Stdout  io.Writer
		Stderr  io.Writer
	}

	globalFlags struct {
		verbose bool
		config  string
		dryRun  bool
		logFile string
		yes     bool
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}

	return &App{
		Config:     deps.Config,
		Prompter:   deps.Prompter,
		baseRunner: deps.Runner,
		packages:   deps.Packages,
		homeDir:    deps.HomeDir,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
	}, nil
}

// init loads configuration and builds the logger, printer, runner and
// prompter. It runs once per invocation from the root pre-run hook.
func (a *App) init(ctx context.Context) error {
	cfg, path, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.config})
	if err != nil {
		return err
	}
	return a.setup(cfg, path)
}

// initDefaults continues with built-in defaults after a failed load.
func (a *App) initDefaults(context.Context) error {
	return a.setup(config.DefaultConfig(), "")
}

func (a *App) setup(cfg *config.Config, path string) error {
	a.cfg, a.cfgPath = cfg, path

	var err error
	verbose := a.flags.verbose || cfg.UI.Verbose
	a.logger, err = applog.New(a.stderr, applog.Options{Level: cfg.Logging.Level, Verbose: verbose})
	if err != nil {
		return err
	}

	var mirror *log.Logger
	if file := a.operationLogPath(); file != "" {
		a.oplog, err = applog.OpenOperationLog(file)
		if err != nil {
			return err
		}
		mirror = a.oplog.Logger
		a.logger.Debug("operation log", "path", file)
	}
	a.printer = ui.NewPrinter(a.stdout, mirror, verbose)

	base := a.baseRunner
	if base == nil {
		er := runner.NewExecRunner(a.logger)
		er.Stdout, er.Stderr = a.stdout, a.stderr
		base = er
	}
	a.runner = base
	if a.flags.dryRun {
		a.runner = runner.NewDryRunner(a.stdout, base)
	}

	if a.Prompter == nil {
		a.Prompter = a.defaultPrompter()
	}
	return nil
}

// close releases the operation log.
func (a *App) close() error {
	if a.oplog == nil {
		return nil
	}
	return a.oplog.Close()
}

func (a *App) operationLogPath() string {
	if a.flags.logFile != "" {
		return a.flags.logFile
	}
	if a.cfg.Logging.Enabled {
		return a.cfg.Logging.File
	}
	return ""
}

func (a *App) defaultPrompter() tui.Prompter {
	if a.flags.yes || !a.cfg.UI.Interactive {
		return tui.Unattended{AssumeYes: a.flags.yes}
	}
	pc := tui.DefaultConfig()
	pc.Theme = tui.ThemeForScheme(a.cfg.UI.ColorScheme.String())
	pc.Accessible = pc.Accessible || a.cfg.UI.Accessible
	return tui.NewPrompter(pc)
}

// Packages returns the package manager of the local distribution.
func (a *App) Packages() (pkgmgr.Manager, error) {
	if a.packages != nil {
		return a.packages, nil
	}
	family, err := pkgmgr.DetectLocal()
	if err != nil {
		return nil, err
	}
	pm, err := pkgmgr.New(family, a.runner)
	if err != nil {
		return nil, err
	}
	a.packages = pm
	return pm, nil
}

// HomeDir returns the home directory of the invoking user, following
// SUDO_USER when running under sudo.
func (a *App) HomeDir() (string, error) {
	if a.homeDir != "" {
		return a.homeDir, nil
	}
	home, err := sysinfo.HomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return home, nil
}

// confirm asks before a destructive step. --yes answers for the user.
func (a *App) confirm(title string, def bool) (bool, error) {
	if a.flags.yes {
		return true, nil
	}
	return a.Prompter.Confirm(title, def)
}
