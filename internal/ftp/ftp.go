// SPDX-License-Identifier: MPL-2.0

// Package ftp sets up vsftpd, manages the local accounts allowed to log in,
// diagnoses broken installs and views the FTP related logs.
package ftp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/firewall"
	"github.com/hostkit/hostkit/internal/pkgmgr"
	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/service"
	"github.com/hostkit/hostkit/internal/ui"
)

const (
	// Unit is the systemd unit of the FTP server.
	Unit = "vsftpd"
	// FilesDir is the writable directory inside each user's home.
	FilesDir = "files"
)

// ErrUserMissing is returned for accounts that do not exist on the host.
var ErrUserMissing = errors.New("user does not exist")

// Manager performs every FTP operation. Commands go through Runner; the
// files it owns (vsftpd.conf, the user list, the credentials CSV) are
// written directly unless DryRun is set.
type Manager struct {
	Runner   runner.Runner
	Printer  *ui.Printer
	Logger   *log.Logger
	Config   config.FTPConfig
	Policy   config.PasswordPolicyConfig
	Logging  config.LoggingConfig
	Packages pkgmgr.Manager
	Firewall *firewall.Firewall
	Systemd  *service.Systemd
	DryRun   bool

	// LogDir is where vsftpd.log, syslog and auth.log live.
	LogDir string

	dial func(network, address string, timeout time.Duration) (net.Conn, error)
	now  func() time.Time
}

// NewManager wires a Manager from the loaded configuration.
func NewManager(r runner.Runner, p *ui.Printer, logger *log.Logger, cfg *config.Config, pm pkgmgr.Manager) *Manager {
	fw := firewall.New(r, p, logger)
	return &Manager{
		Runner:   r,
		Printer:  p,
		Logger:   logger,
		Config:   cfg.FTP,
		Policy:   cfg.PasswordPolicy,
		Logging:  cfg.Logging,
		Packages: pm,
		Firewall: fw,
		Systemd:  service.NewSystemd(r),
		LogDir:   "/var/log",
		dial:     net.DialTimeout,
		now:      time.Now,
	}
}

// HomeDir is the FTP home of username under the configured root.
func (m *Manager) HomeDir(username string) string {
	return filepath.Join(m.Config.FTPRoot, username)
}

// ReadUserList returns the names in the vsftpd user list, skipping blanks
// and comments. A missing file yields no users and os.ErrNotExist.
func ReadUserList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var users []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		users = append(users, line)
	}
	return users, sc.Err()
}

// Account is one passwd entry.
type Account struct {
	Name  string
	UID   string
	GID   string
	Home  string
	Shell string
}

// ParsePasswd parses a line in /etc/passwd format.
func ParsePasswd(line string) (Account, error) {
	f := strings.Split(strings.TrimSpace(line), ":")
	if len(f) != 7 {
		return Account{}, fmt.Errorf("malformed passwd entry %q", line)
	}
	return Account{Name: f[0], UID: f[2], GID: f[3], Home: f[5], Shell: f[6]}, nil
}

// account looks name up through NSS so LDAP and other sources count too.
func (m *Manager) account(ctx context.Context, name string) (Account, error) {
	out, err := runner.Output(ctx, m.Runner, "getent", "passwd", name)
	if err != nil || out == "" {
		return Account{}, fmt.Errorf("%w: %s", ErrUserMissing, name)
	}
	return ParsePasswd(out)
}

func (m *Manager) userExists(ctx context.Context, name string) bool {
	_, err := m.account(ctx, name)
	return err == nil
}

// DirInfo describes a directory as seen by stat(1).
type DirInfo struct {
	Path   string
	Exists bool
	Owner  string
	Group  string
	Mode   string
}

func (m *Manager) statDir(ctx context.Context, path string) DirInfo {
	info := DirInfo{Path: path}
	out, err := runner.Output(ctx, m.Runner, "stat", "-c", "%U:%G %a", path)
	if err != nil {
		return info
	}
	owner, mode, ok := strings.Cut(out, " ")
	if !ok {
		return info
	}
	info.Exists = true
	info.Owner, info.Group, _ = strings.Cut(owner, ":")
	info.Mode = mode
	return info
}

// run executes a state-changing command with sudo.
func (m *Manager) run(ctx context.Context, name string, args ...string) error {
	cmd := runner.Command{Name: name, Args: args, Sudo: true}
	if _, err := runner.RunChecked(ctx, m.Runner, cmd); err != nil {
		return err
	}
	m.Logger.Debug("ran", "cmd", runner.FormatCommand(cmd))
	return nil
}
