// SPDX-License-Identifier: MPL-2.0

package ftp

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/exp/slices"

	"github.com/hostkit/hostkit/internal/issue"
	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/ui"
)

// User list statuses.
const (
	StatusActive      = "active"
	StatusMissingDirs = "missing directories"
	StatusUserMissing = "user missing"
)

var (
	// ErrInvalidUsername is returned by ValidateUsername.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrUserExists is returned when creating an account that already exists.
	ErrUserExists = errors.New("user already exists")

	usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	reservedNames   = []string{"root", "admin", "administrator", "ftp", "test"}

	credentialsHeader = []string{"Timestamp", "Username", "Password", "Home Directory", "Files Directory"}
)

type (
	// Credentials are the result of creating an account or resetting its
	// password.
	Credentials struct {
		Username string
		Password string
		Home     string
		Files    string
	}

	// UserStatus is one row of ListUsers.
	UserStatus struct {
		Name   string
		Home   string
		Status string
	}

	// UserDetails is what UserInfo reports.
	UserDetails struct {
		Account
		Groups    []string
		HomeDir   DirInfo
		FilesDir  DirInfo
		InList    bool
		ListFound bool
	}
)

// ValidateUsername checks the naming rules for FTP accounts: 3 to 32
// characters, a leading letter, then letters, digits, '-' or '_', and not
// a reserved name.
func ValidateUsername(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: username cannot be empty", ErrInvalidUsername)
	case len(name) < 3:
		return fmt.Errorf("%w: must be at least 3 characters", ErrInvalidUsername)
	case len(name) > 32:
		return fmt.Errorf("%w: must be 32 characters or less", ErrInvalidUsername)
	case !usernamePattern.MatchString(name):
		if c := name[0]; !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return fmt.Errorf("%w: must start with a letter", ErrInvalidUsername)
		}
		return fmt.Errorf("%w: only letters, numbers, hyphens and underscores are allowed", ErrInvalidUsername)
	case slices.Contains(reservedNames, strings.ToLower(name)):
		return fmt.Errorf("%w: %q is reserved", ErrInvalidUsername, name)
	}
	return nil
}

// CreateUser adds a local account for FTP use. The home under ftp_root is
// owned by root; the files/ directory inside it belongs to the user. An
// empty password is generated from the password policy. If any step after
// useradd fails the account is removed again.
func (m *Manager) CreateUser(ctx context.Context, name, password string) (Credentials, error) {
	if err := ValidateUsername(name); err != nil {
		return Credentials{}, issue.NewErrorContext().
			WithOperation("create FTP user").
			WithResource(name).
			WithIssue(issue.InvalidUsernameId).
			Wrap(err).
			BuildError()
	}
	if m.userExists(ctx, name) {
		return Credentials{}, fmt.Errorf("%w: %s", ErrUserExists, name)
	}
	if password == "" {
		generated, err := GeneratePassword(m.Policy)
		if err != nil {
			return Credentials{}, err
		}
		password = generated
	}

	creds := Credentials{
		Username: name,
		Password: password,
		Home:     m.HomeDir(name),
		Files:    filepath.Join(m.HomeDir(name), FilesDir),
	}

	m.Printer.Info("Creating user %s", name)
	if err := m.run(ctx, "useradd", "-m", "-d", creds.Home, "-s", m.Config.DefaultShell, "-G", m.Config.FTPGroup, name); err != nil {
		return Credentials{}, issue.WrapWithContext(err, "create FTP user", name)
	}

	if err := m.provision(ctx, creds); err != nil {
		m.Printer.Warn("Rolling back user %s", name)
		if rbErr := m.run(ctx, "userdel", "-r", name); rbErr != nil {
			m.Logger.Error("rollback failed", "user", name, "err", rbErr)
		}
		return Credentials{}, issue.WrapWithContext(err, "create FTP user", name)
	}

	if err := m.logCredentials(creds); err != nil {
		m.Printer.Warn("Failed to log credentials: %v", err)
	}
	m.Printer.Success("User %s created", name)
	m.Logger.Info("ftp user created", "user", name, "home", creds.Home)
	return creds, nil
}

func (m *Manager) provision(ctx context.Context, c Credentials) error {
	if err := m.setPassword(ctx, c.Username, c.Password); err != nil {
		return err
	}
	steps := [][]string{
		{"mkdir", "-p", c.Files},
		{"chown", "root:root", c.Home},
		{"chmod", "0755", c.Home},
		{"chown", c.Username + ":", c.Files},
		{"chmod", "0755", c.Files},
	}
	for _, step := range steps {
		if err := m.run(ctx, step[0], step[1:]...); err != nil {
			return err
		}
	}
	m.Printer.Success("Home %s, upload directory %s", c.Home, c.Files)
	return m.addToUserList(c.Username)
}

// setPassword feeds "user:password" to chpasswd on stdin so the secret
// never shows up in the process list.
func (m *Manager) setPassword(ctx context.Context, name, password string) error {
	cmd := runner.Command{
		Name:  "chpasswd",
		Stdin: strings.NewReader(name + ":" + password + "\n"),
		Sudo:  true,
	}
	if _, err := runner.RunChecked(ctx, m.Runner, cmd); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

// DeleteUser removes an account and drops it from the user list.
func (m *Manager) DeleteUser(ctx context.Context, name string, removeHome bool) error {
	if !m.userExists(ctx, name) {
		return fmt.Errorf("%w: %s", ErrUserMissing, name)
	}
	args := []string{}
	if removeHome {
		args = append(args, "-r")
	}
	if err := m.run(ctx, "userdel", append(args, name)...); err != nil {
		return issue.WrapWithContext(err, "delete FTP user", name)
	}
	if err := m.removeFromUserList(name); err != nil {
		return err
	}
	m.Printer.Success("User %s deleted", name)
	m.Logger.Info("ftp user deleted", "user", name, "remove_home", removeHome)
	return nil
}

// ChangePassword sets a new password, generating one when empty, and
// returns it.
func (m *Manager) ChangePassword(ctx context.Context, name, password string) (string, error) {
	if !m.userExists(ctx, name) {
		return "", fmt.Errorf("%w: %s", ErrUserMissing, name)
	}
	if password == "" {
		generated, err := GeneratePassword(m.Policy)
		if err != nil {
			return "", err
		}
		password = generated
	}
	if err := m.setPassword(ctx, name, password); err != nil {
		return "", issue.WrapWithContext(err, "change password", name)
	}
	creds := Credentials{
		Username: name,
		Password: password,
		Home:     m.HomeDir(name),
		Files:    filepath.Join(m.HomeDir(name), FilesDir),
	}
	if err := m.logCredentials(creds); err != nil {
		m.Printer.Warn("Failed to log credentials: %v", err)
	}
	m.Printer.Success("Password changed for %s", name)
	return password, nil
}

// ListUsers reports every name in the user list with its status.
func (m *Manager) ListUsers(ctx context.Context) ([]UserStatus, error) {
	names, err := ReadUserList(m.Config.AllowedUsersFile)
	if err != nil {
		return nil, issue.WrapWithContext(err, "read user list", m.Config.AllowedUsersFile)
	}
	out := make([]UserStatus, 0, len(names))
	for _, name := range names {
		st := UserStatus{Name: name, Home: "N/A", Status: StatusUserMissing}
		if m.userExists(ctx, name) {
			st.Home = m.HomeDir(name)
			st.Status = StatusActive
			if _, err := os.Stat(st.Home); err != nil {
				st.Status = StatusMissingDirs
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// RenderUserList formats ListUsers output as a table.
func RenderUserList(users []UserStatus) []string {
	lines := []string{
		fmt.Sprintf("%-20s %-40s %s", "Username", "Home Directory", "Status"),
		strings.Repeat("-", ui.BannerWidth),
	}
	for _, u := range users {
		status := ui.SuccessStyle.Render("✓ Active")
		switch u.Status {
		case StatusMissingDirs:
			status = ui.WarningStyle.Render("⚠ Missing directories")
		case StatusUserMissing:
			status = ui.ErrorStyle.Render("✗ User missing")
		}
		lines = append(lines, fmt.Sprintf("%-20s %-40s %s", u.Name, u.Home, status))
	}
	return lines
}

// UserInfo gathers the passwd entry, groups, directory ownership and user
// list presence of name.
func (m *Manager) UserInfo(ctx context.Context, name string) (UserDetails, error) {
	acct, err := m.account(ctx, name)
	if err != nil {
		return UserDetails{}, err
	}
	d := UserDetails{Account: acct}
	if out, err := runner.Output(ctx, m.Runner, "id", "-nG", name); err == nil {
		d.Groups = strings.Fields(out)
	}
	d.HomeDir = m.statDir(ctx, acct.Home)
	d.FilesDir = m.statDir(ctx, filepath.Join(acct.Home, FilesDir))

	names, err := ReadUserList(m.Config.AllowedUsersFile)
	if err == nil {
		d.ListFound = true
		d.InList = slices.Contains(names, name)
	}
	return d, nil
}

// RenderUserInfo formats UserDetails for the terminal.
func RenderUserInfo(d UserDetails, userList string) []string {
	groups := "N/A"
	if len(d.Groups) > 0 {
		groups = strings.Join(d.Groups, " ")
	}
	lines := []string{
		ui.Row("Username", d.Name),
		ui.Row("UID", d.UID),
		ui.Row("GID", d.GID),
		ui.Row("Home Directory", d.Home),
		ui.Row("Shell", d.Shell),
		ui.Row("Groups", groups),
		"",
		"Directory Status:",
	}
	dir := func(label string, info DirInfo, wantOwner string) {
		if !info.Exists {
			lines = append(lines, fmt.Sprintf("  %s: ✗ Missing - %s", label, info.Path))
			return
		}
		lines = append(lines,
			fmt.Sprintf("  %s: ✓ %s", label, info.Path),
			fmt.Sprintf("    Owner: %s:%s (should be %s)", info.Owner, info.Group, wantOwner),
			fmt.Sprintf("    Permissions: %s", info.Mode),
		)
	}
	dir("Home", d.HomeDir, "root")
	dir("Files", d.FilesDir, d.Name)

	switch {
	case !d.ListFound:
		lines = append(lines, "", fmt.Sprintf("Allowed List: ⚠ %s not found", userList))
	case d.InList:
		lines = append(lines, "", fmt.Sprintf("Allowed List: ✓ Present in %s", userList))
	default:
		lines = append(lines, "", fmt.Sprintf("Allowed List: ✗ Not in %s", userList))
	}
	return lines
}

func (m *Manager) addToUserList(name string) error {
	path := m.Config.AllowedUsersFile
	names, err := ReadUserList(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if slices.Contains(names, name) {
		m.Printer.Success("Already in allowed users list")
		return nil
	}
	if m.DryRun {
		m.Printer.Info("[dry-run] append %s to %s", name, path)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open user list: %w", err)
	}
	if _, err := fmt.Fprintln(f, name); err != nil {
		_ = f.Close()
		return fmt.Errorf("append to user list: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	m.Printer.Success("Added to allowed users list")
	return nil
}

func (m *Manager) removeFromUserList(name string) error {
	path := m.Config.AllowedUsersFile
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read user list: %w", err)
	}
	var kept []string
	for _, line := range strings.SplitAfter(string(data), "\n") {
		if line != "" && strings.TrimSpace(line) != name {
			kept = append(kept, line)
		}
	}
	if m.DryRun {
		m.Printer.Info("[dry-run] remove %s from %s", name, path)
		return nil
	}
	if err := os.WriteFile(path, []byte(strings.Join(kept, "")), 0o644); err != nil {
		return fmt.Errorf("write user list: %w", err)
	}
	m.Printer.Success("Removed from allowed users list")
	return nil
}

// logCredentials appends c to the credentials CSV. The header is written
// only when the file is new and the file is always left at mode 0600.
func (m *Manager) logCredentials(c Credentials) error {
	if !m.Logging.Enabled || m.Logging.CredentialsFile == "" {
		return nil
	}
	path := m.Logging.CredentialsFile
	if m.DryRun {
		m.Printer.Info("[dry-run] record credentials in %s", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if isNew {
		_ = w.Write(credentialsHeader)
	}
	_ = w.Write([]string{m.now().Format(time.DateTime), c.Username, c.Password, c.Home, c.Files})
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return err
	}
	m.Printer.Success("Credentials saved to %s", path)
	return nil
}
