// SPDX-License-Identifier: MPL-2.0

package ftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/hostkit/hostkit/internal/tui"
	"github.com/hostkit/hostkit/internal/ui"
)

const menuQuit = "q"

var userMenu = []tui.Option{
	{Key: "create", Label: "Create user"},
	{Key: "delete", Label: "Delete user"},
	{Key: "passwd", Label: "Change password"},
	{Key: "list", Label: "List users"},
	{Key: "info", Label: "Show user info"},
	{Key: menuQuit, Label: "Exit"},
}

// UserMenu runs the interactive account manager until the user quits.
// Errors of single actions are printed and the menu continues.
func (m *Manager) UserMenu(ctx context.Context, pr tui.Prompter) error {
	for {
		m.Printer.Banner("FTP USER MANAGEMENT")
		choice, err := pr.Select("Select an action", userMenu)
		if err != nil {
			return err
		}
		if choice == menuQuit {
			m.Printer.Plain("Goodbye!")
			return nil
		}
		if err := m.userAction(ctx, pr, choice); err != nil {
			if errors.Is(err, tui.ErrAborted) {
				return err
			}
			m.Printer.Error("%v", err)
		}
	}
}

func (m *Manager) userAction(ctx context.Context, pr tui.Prompter, choice string) error {
	if choice == "list" {
		users, err := m.ListUsers(ctx)
		if err != nil {
			return err
		}
		m.Printer.Box("FTP USERS", RenderUserList(users))
		return nil
	}

	validate := ValidateUsername
	if choice != "create" {
		validate = nil
	}
	name, err := pr.Input("Username", "", validate)
	if err != nil {
		return err
	}

	switch choice {
	case "create":
		password, err := m.promptPassword(pr)
		if err != nil {
			return err
		}
		creds, err := m.CreateUser(ctx, name, password)
		if err != nil {
			return err
		}
		m.Printer.Box("CREDENTIALS", CredentialLines(creds))
	case "delete":
		ok, err := pr.Confirm(fmt.Sprintf("Delete %s and its home directory?", name), false)
		if err != nil || !ok {
			return err
		}
		return m.DeleteUser(ctx, name, true)
	case "passwd":
		if !m.userExists(ctx, name) {
			return fmt.Errorf("%w: %s", ErrUserMissing, name)
		}
		password, err := m.promptPassword(pr)
		if err != nil {
			return err
		}
		newPassword, err := m.ChangePassword(ctx, name, password)
		if err != nil {
			return err
		}
		m.Printer.KV("New password", newPassword)
	case "info":
		d, err := m.UserInfo(ctx, name)
		if err != nil {
			return err
		}
		m.Printer.Box("USER INFORMATION: "+name, RenderUserInfo(d, m.Config.AllowedUsersFile))
	}
	return nil
}

// promptPassword returns an empty string when the password should be
// generated.
func (m *Manager) promptPassword(pr tui.Prompter) (string, error) {
	custom, err := pr.Confirm("Use a custom password?", false)
	if err != nil || !custom {
		return "", err
	}
	first, err := pr.Password("Password")
	if err != nil {
		return "", err
	}
	second, err := pr.Password("Confirm password")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}

// CredentialLines formats credentials for display.
func CredentialLines(c Credentials) []string {
	return []string{
		ui.Row("Username", c.Username),
		ui.Row("Password", c.Password),
		ui.Row("Home", c.Home),
		ui.Row("Upload dir", c.Files),
	}
}

// LogMenu runs the interactive log viewer, writing log lines to w.
func (m *Manager) LogMenu(ctx context.Context, pr tui.Prompter, w io.Writer) error {
	sources := m.LogSources()
	for {
		m.Printer.Banner("FTP LOG VIEWER")
		opts := make([]tui.Option, 0, len(sources)+6)
		for _, s := range sources {
			mark := "✗"
			if s.Exists() {
				mark = "✓"
			}
			opts = append(opts, tui.Option{Key: s.Key, Label: mark + " " + s.Label})
		}
		opts = append(opts,
			tui.Option{Key: "logins", Label: "Recent successful logins"},
			tui.Option{Key: "failed", Label: "Recent failed logins"},
			tui.Option{Key: "errors", Label: "Errors only"},
			tui.Option{Key: "user", Label: "User activity"},
			tui.Option{Key: "follow", Label: "Live tail"},
			tui.Option{Key: menuQuit, Label: "Exit"},
		)
		choice, err := pr.Select("Select option", opts)
		if err != nil {
			return err
		}
		if choice == menuQuit {
			return nil
		}

		lines, err := m.logAction(ctx, pr, sources, choice, w)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, tui.ErrAborted) {
				return err
			}
			m.Printer.Error("%v", err)
			continue
		}
		for _, l := range lines {
			_, _ = fmt.Fprintln(w, l)
		}
	}
}

func (m *Manager) logAction(ctx context.Context, pr tui.Prompter, sources []LogSource, choice string, w io.Writer) ([]string, error) {
	pickSource := func() (LogSource, error) {
		opts := make([]tui.Option, len(sources))
		for i, s := range sources {
			opts[i] = tui.Option{Key: s.Key, Label: s.Label}
		}
		key, err := pr.Select("Which log?", opts)
		if err != nil {
			return LogSource{}, err
		}
		for _, s := range sources {
			if s.Key == key {
				return s, nil
			}
		}
		return LogSource{}, fmt.Errorf("unknown log %q", key)
	}

	switch choice {
	case "logins":
		return m.RecentLogins(20)
	case "failed":
		return m.FailedLogins(20)
	case "errors":
		src, err := pickSource()
		if err != nil {
			return nil, err
		}
		return ErrorLines(src.Path, DefaultLogLines)
	case "user":
		name, err := pr.Input("Username", "", nil)
		if err != nil {
			return nil, err
		}
		return m.UserActivity(name, DefaultLogLines)
	case "follow":
		src, err := pickSource()
		if err != nil {
			return nil, err
		}
		filter, err := pr.Input("Filter term (empty for none)", "", nil)
		if err != nil {
			return nil, err
		}
		m.Printer.Info("Press Ctrl+C to stop")
		return nil, FollowLog(ctx, src.Path, filter, w)
	}

	for _, s := range sources {
		if s.Key != choice {
			continue
		}
		filter, err := pr.Input("Filter term (empty for none)", "", nil)
		if err != nil {
			return nil, err
		}
		count, err := pr.Input("Number of lines", strconv.Itoa(DefaultLogLines), nil)
		if err != nil {
			return nil, err
		}
		n, convErr := strconv.Atoi(count)
		if convErr != nil {
			n = DefaultLogLines
		}
		return ReadLog(s.Path, filter, n)
	}
	return nil, fmt.Errorf("unknown option %q", choice)
}
