// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hostkit/hostkit/internal/ftp"
	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/ui"
)

// newFTPCommand creates the `hostkit ftp` command tree.
func newFTPCommand(app *App) *cobra.Command {
	ftpCmd := &cobra.Command{
		Use:   "ftp",
		Short: "Set up vsftpd and manage FTP accounts",
		Long: `Set up vsftpd and manage FTP accounts.

Accounts are jailed to their home under the configured ftp_root, listed in
the vsftpd user list and given a writable files/ directory. Generated
passwords follow the password_policy section and are appended to the
credentials log.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	ftpCmd.AddCommand(&cobra.Command{
		Use:   "setup",
		Short: "Install and configure vsftpd with passive ports and firewall rules",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ []string) error {
			if err := requireRoot(app, "set up vsftpd"); err != nil {
				return err
			}
			m, err := newFTPManager(app, true)
			if err != nil {
				return err
			}
			return m.Setup(ctx)
		}),
	})

	ftpCmd.AddCommand(&cobra.Command{
		Use:   "debug [username]",
		Short: "Diagnose the FTP server, optionally for one account",
		Args:  cobra.MaximumNArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			m, err := newFTPManager(app, false)
			if err != nil {
				return err
			}
			username := ""
			if len(args) == 1 {
				username = args[0]
			}
			report := m.Diagnose(ctx, username)
			if code := report.ExitCode(); code != 0 {
				return &ExitError{Code: runner.ExitCode(code)}
			}
			return nil
		}),
	})

	ftpCmd.AddCommand(newFTPUserCommand(app), newFTPLogsCommand(app))
	return ftpCmd
}

// newFTPManager builds the vsftpd manager. Package detection is only
// needed by setup, which installs vsftpd.
func newFTPManager(app *App, needPackages bool) (*ftp.Manager, error) {
	var m *ftp.Manager
	if needPackages {
		pm, err := app.Packages()
		if err != nil {
			return nil, err
		}
		m = ftp.NewManager(app.runner, app.printer, app.logger, app.cfg, pm)
	} else {
		m = ftp.NewManager(app.runner, app.printer, app.logger, app.cfg, nil)
	}
	m.DryRun = app.flags.dryRun
	m.Firewall.DryRun = app.flags.dryRun
	return m, nil
}

func newFTPUserCommand(app *App) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Create, delete and inspect FTP accounts",
		RunE: app.run(func(ctx context.Context, _ []string) error {
			return ftpUserMenu(ctx, app)
		}),
	}

	var askPassword bool
	createCmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an FTP account with a generated password",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			if err := requireRoot(app, "create FTP users"); err != nil {
				return err
			}
			password := ""
			if askPassword {
				pw, err := promptNewSecret(app, "Password")
				if err != nil {
					return err
				}
				password = pw
			}
			m, err := newFTPManager(app, false)
			if err != nil {
				return err
			}
			creds, err := m.CreateUser(ctx, args[0], password)
			if err != nil {
				return err
			}
			app.printer.Box("FTP account", ftp.CredentialLines(creds))
			return nil
		}),
	}
	createCmd.Flags().BoolVar(&askPassword, "password", false, "prompt for a password instead of generating one")

	var keepHome bool
	deleteCmd := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete an FTP account",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			if err := requireRoot(app, "delete FTP users"); err != nil {
				return err
			}
			ok, err := app.confirm(fmt.Sprintf("Delete FTP user %s?", args[0]), false)
			if err != nil || !ok {
				return err
			}
			m, err := newFTPManager(app, false)
			if err != nil {
				return err
			}
			return m.DeleteUser(ctx, args[0], !keepHome)
		}),
	}
	deleteCmd.Flags().BoolVar(&keepHome, "keep-home", false, "leave the home directory in place")

	var askNew bool
	passwdCmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Reset the password of an FTP account",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			if err := requireRoot(app, "change FTP passwords"); err != nil {
				return err
			}
			password := ""
			if askNew {
				pw, err := promptNewSecret(app, "New password")
				if err != nil {
					return err
				}
				password = pw
			}
			m, err := newFTPManager(app, false)
			if err != nil {
				return err
			}
			pw, err := m.ChangePassword(ctx, args[0], password)
			if err != nil {
				return err
			}
			if password == "" {
				fmt.Fprintln(app.stdout, ui.Row("New password", pw))
			}
			return nil
		}),
	}
	passwdCmd.Flags().BoolVar(&askNew, "password", false, "prompt for the new password instead of generating one")

	userCmd.AddCommand(createCmd, deleteCmd, passwdCmd)

	userCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List accounts in the vsftpd user list",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ []string) error {
			m, err := newFTPManager(app, false)
			if err != nil {
				return err
			}
			users, err := m.ListUsers(ctx)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				app.printer.Warn("No FTP users in %s", app.cfg.FTP.AllowedUsersFile)
				return nil
			}
			for _, l := range ftp.RenderUserList(users) {
				fmt.Fprintln(app.stdout, l)
			}
			return nil
		}),
	})

	userCmd.AddCommand(&cobra.Command{
		Use:   "info <username>",
		Short: "Show account, group and directory details",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			m, err := newFTPManager(app, false)
			if err != nil {
				return err
			}
			d, err := m.UserInfo(ctx, args[0])
			if err != nil {
				return err
			}
			app.printer.Box("FTP user "+args[0], ftp.RenderUserInfo(d, app.cfg.FTP.AllowedUsersFile))
			return nil
		}),
	})

	userCmd.AddCommand(&cobra.Command{
		Use:   "menu",
		Short: "Manage accounts interactively",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ []string) error {
			return ftpUserMenu(ctx, app)
		}),
	})

	return userCmd
}

func ftpUserMenu(ctx context.Context, app *App) error {
	if err := requireRoot(app, "manage FTP users"); err != nil {
		return err
	}
	m, err := newFTPManager(app, false)
	if err != nil {
		return err
	}
	return m.UserMenu(ctx, app.Prompter)
}

type ftpLogFlags struct {
	follow bool
	errors bool
	logins bool
	failed bool
	user   string
}

func newFTPLogsCommand(app *App) *cobra.Command {
	var f ftpLogFlags
	logsCmd := &cobra.Command{
		Use:   "logs [log] [filter] [lines]",
		Short: "View vsftpd, syslog, auth and fail2ban logs",
		Long: `View vsftpd, syslog, auth and fail2ban logs.

Without arguments an interactive viewer opens. log is a menu number (1-4),
a file name such as auth.log, or a path. filter keeps matching lines only.`,
		Example: `  sudo hostkit ftp logs
  sudo hostkit ftp logs 1 alice 100
  sudo hostkit ftp logs auth.log --follow
  sudo hostkit ftp logs --failed`,
		Args: cobra.MaximumNArgs(3),
		RunE: app.run(func(ctx context.Context, args []string) error {
			m, err := newFTPManager(app, false)
			if err != nil {
				return err
			}
			return runFTPLogs(ctx, app, m, args, f)
		}),
	}
	fl := logsCmd.Flags()
	fl.BoolVarP(&f.follow, "follow", "f", false, "stream new lines")
	fl.BoolVar(&f.errors, "errors", false, "only errors and warnings")
	fl.BoolVar(&f.logins, "logins", false, "recent successful logins")
	fl.BoolVar(&f.failed, "failed", false, "recent failed logins")
	fl.StringVar(&f.user, "user", "", "activity of one account")
	return logsCmd
}

func runFTPLogs(ctx context.Context, app *App, m *ftp.Manager, args []string, f ftpLogFlags) error {
	n := ftp.DefaultLogLines
	if len(args) == 3 {
		v, err := strconv.Atoi(args[2])
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid line count %q", args[2])
		}
		n = v
	}

	var (
		lines []string
		err   error
	)
	switch {
	case f.logins:
		lines, err = m.RecentLogins(n)
	case f.failed:
		lines, err = m.FailedLogins(n)
	case f.user != "":
		lines, err = m.UserActivity(f.user, n)
	case len(args) == 0 && !f.follow && !f.errors:
		return m.LogMenu(ctx, app.Prompter, app.stdout)
	default:
		src := m.LogSources()[0]
		if len(args) > 0 {
			src = resolveLogSource(m.LogSources(), args[0])
		}
		filter := ""
		if len(args) > 1 {
			filter = args[1]
		}
		switch {
		case f.follow:
			app.printer.Info("Following %s (Ctrl+C to stop)", src.Path)
			return ftp.FollowLog(ctx, src.Path, filter, app.stdout)
		case f.errors:
			lines, err = ftp.ErrorLines(src.Path, n)
		default:
			lines, err = ftp.ReadLog(src.Path, filter, n)
		}
	}
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		app.printer.Warn("No matching log lines")
		return nil
	}
	fmt.Fprintln(app.stdout, strings.Join(lines, "\n"))
	return nil
}

// resolveLogSource accepts a menu key, a file name or a path.
func resolveLogSource(sources []ftp.LogSource, arg string) ftp.LogSource {
	for _, s := range sources {
		base := filepath.Base(s.Path)
		if arg == s.Key || arg == base || arg == strings.TrimSuffix(base, ".log") {
			return s
		}
	}
	return ftp.LogSource{Key: arg, Path: arg, Label: arg}
}
