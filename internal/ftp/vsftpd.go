// SPDX-License-Identifier: MPL-2.0

package ftp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/firewall"
	"github.com/hostkit/hostkit/internal/issue"
	"github.com/hostkit/hostkit/internal/runner"
)

const (
	// LogFile is where the rendered config points vsftpd's own log.
	LogFile = "/var/log/vsftpd.log"

	backupTimeLayout = "20060102-150405"
)

// Settings are the values substituted into vsftpd.conf.
type Settings struct {
	ListenPort  int
	PasvMinPort int
	PasvMaxPort int
	UserList    string
	LogFile     string
}

// SettingsFromConfig derives Settings from the ftp_config section.
func SettingsFromConfig(c config.FTPConfig) Settings {
	return Settings{
		ListenPort:  c.ListenPort,
		PasvMinPort: c.PasvMinPort,
		PasvMaxPort: c.PasvMaxPort,
		UserList:    c.AllowedUsersFile,
		LogFile:     LogFile,
	}
}

// PasvRange is the passive port range in ufw syntax.
func (s Settings) PasvRange() string {
	return fmt.Sprintf("%d:%d", s.PasvMinPort, s.PasvMaxPort)
}

var confTemplate = template.Must(template.New("vsftpd.conf").Parse(`# Managed by hostkit. Changes are overwritten by "hostkit ftp setup".
listen=YES
listen_ipv6=NO
listen_port={{.ListenPort}}
anonymous_enable=NO
local_enable=YES
write_enable=YES
local_umask=022
dirmessage_enable=YES
use_localtime=YES
connect_from_port_20=YES

# Homes are root-owned; files/ inside each home is the upload area.
chroot_local_user=NO

pasv_enable=YES
pasv_min_port={{.PasvMinPort}}
pasv_max_port={{.PasvMaxPort}}

userlist_enable=YES
userlist_file={{.UserList}}
userlist_deny=NO

xferlog_enable=YES
xferlog_std_format=NO
vsftpd_log_file={{.LogFile}}
log_ftp_protocol=NO

secure_chroot_dir=/var/run/vsftpd/empty
pam_service_name=vsftpd
`))

// RenderConfig renders vsftpd.conf.
func RenderConfig(s Settings) (string, error) {
	if s.LogFile == "" {
		s.LogFile = LogFile
	}
	var buf bytes.Buffer
	if err := confTemplate.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("render vsftpd.conf: %w", err)
	}
	return buf.String(), nil
}

// ParseConf reads vsftpd's key=value format. Later keys win.
func ParseConf(content string) map[string]string {
	values := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return values
}

// Setup installs and configures vsftpd: package, group, FTP root, config
// (with a timestamped backup of the previous one), user list, firewall
// and service.
func (m *Manager) Setup(ctx context.Context) error {
	p := m.Printer
	settings := SettingsFromConfig(m.Config)

	p.Section("Installing vsftpd")
	if m.Packages.IsInstalled(ctx, Unit) {
		p.Success("vsftpd already installed")
	} else if err := m.Packages.Install(ctx, Unit); err != nil {
		return issue.WrapWithOperation(err, "install vsftpd")
	}

	p.Section("Preparing accounts")
	if err := m.ensureGroup(ctx, m.Config.FTPGroup); err != nil {
		return err
	}
	for _, step := range [][]string{
		{"mkdir", "-p", m.Config.FTPRoot},
		{"chown", "root:root", m.Config.FTPRoot},
		{"chmod", "0755", m.Config.FTPRoot},
	} {
		if err := m.run(ctx, step[0], step[1:]...); err != nil {
			return issue.WrapWithOperation(err, "prepare "+m.Config.FTPRoot)
		}
	}
	p.Success("FTP root ready at %s", m.Config.FTPRoot)
	if err := m.touchUserList(); err != nil {
		return err
	}

	p.Section("Writing configuration")
	content, err := RenderConfig(settings)
	if err != nil {
		return err
	}
	if err := m.writeConfig(content); err != nil {
		return err
	}

	p.Section("Configuring firewall")
	if err := m.openFirewall(ctx, settings); err != nil {
		return err
	}

	p.Section("Starting vsftpd")
	if err := m.Systemd.Enable(ctx, Unit); err != nil {
		return issue.WrapWithOperation(err, "enable vsftpd")
	}
	if err := m.Systemd.Restart(ctx, Unit); err != nil {
		return issue.NewErrorContext().
			WithOperation("restart vsftpd").
			WithSuggestion("Inspect the unit with 'hostkit ftp debug'").
			WithIssue(issue.CommandFailedId).
			Wrap(err).
			BuildError()
	}
	p.Success("vsftpd is running on port %d", settings.ListenPort)
	m.Logger.Info("ftp setup finished", "root", m.Config.FTPRoot, "port", settings.ListenPort)
	return nil
}

func (m *Manager) ensureGroup(ctx context.Context, group string) error {
	res, err := m.Runner.Run(ctx, runner.Probe("getent", "group", group))
	if err == nil && res.Success() {
		m.Printer.Success("Group %s exists", group)
		return nil
	}
	if err := m.run(ctx, "groupadd", group); err != nil {
		return issue.WrapWithOperation(err, "create group "+group)
	}
	m.Printer.Success("Created group %s", group)
	return nil
}

// writeConfig backs up an existing config to <path>.bak.<timestamp> and
// writes content in its place.
func (m *Manager) writeConfig(content string) error {
	path := m.Config.ConfigPath
	old, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		old = nil
	case err != nil:
		return issue.WrapWithOperation(err, "read "+path)
	}

	backup := path + ".bak." + m.now().Format(backupTimeLayout)
	if m.DryRun {
		if old != nil {
			m.Printer.Info("[dry-run] back up %s to %s", path, backup)
		}
		m.Printer.Info("[dry-run] write %s", path)
		return nil
	}
	if old != nil {
		if err := os.WriteFile(backup, old, 0o644); err != nil {
			return issue.WrapWithOperation(err, "back up "+path)
		}
		m.Printer.Success("Backed up previous config to %s", backup)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return issue.WrapWithOperation(err, "write "+path)
	}
	m.Printer.Success("Wrote %s", path)
	return nil
}

func (m *Manager) touchUserList() error {
	path := m.Config.AllowedUsersFile
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if m.DryRun {
		m.Printer.Info("[dry-run] create %s", path)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return issue.WrapWithOperation(err, "create "+path)
	}
	return f.Close()
}

// openFirewall allows the control, data and passive ports. With
// allowed_networks configured each port is restricted to those networks
// instead.
func (m *Manager) openFirewall(ctx context.Context, s Settings) error {
	if !runner.Exists(m.Runner, "ufw") {
		m.Printer.Warn("ufw not installed, skipping firewall rules")
		return nil
	}
	ports := []string{strconv.Itoa(s.ListenPort), "20", s.PasvRange()}
	for _, port := range ports {
		var err error
		if len(m.Config.AllowedNetworks) > 0 {
			err = m.Firewall.Harden(ctx, firewall.HardenPlan{
				Port: port, Proto: "tcp", Sources: m.Config.AllowedNetworks,
			})
		} else {
			err = m.Firewall.Allow(ctx, port, "tcp", "")
		}
		if err != nil {
			return err
		}
	}
	m.Printer.Success("Firewall allows %s", strings.Join(ports, ", "))
	return nil
}
