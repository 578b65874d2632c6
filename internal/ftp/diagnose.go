// SPDX-License-Identifier: MPL-2.0

package ftp

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hostkit/hostkit/internal/diag"
	"github.com/hostkit/hostkit/internal/logview"
	"github.com/hostkit/hostkit/internal/runner"
)

const (
	dialTimeout = 3 * time.Second
	// recentLogLines is how many FTP related log lines are scanned for errors.
	recentLogLines = 20
)

// criticalSettings are the vsftpd.conf values this setup depends on.
var criticalSettings = []struct{ key, value, label string }{
	{"listen", "YES", "IPv4 listening"},
	{"local_enable", "YES", "Local users enabled"},
	{"write_enable", "YES", "Write permissions"},
	{"pasv_enable", "YES", "Passive mode"},
	{"userlist_enable", "YES", "User list enabled"},
	{"chroot_local_user", "NO", "Chroot disabled"},
}

var logErrorKeywords = []string{"error", "fail", "denied", "refused"}

// Diagnose checks the whole FTP stack and prints a report with suggested
// fixes. username, when set, limits the user checks to that account.
func (m *Manager) Diagnose(ctx context.Context, username string) *diag.Report {
	r := diag.NewReport(m.Printer)
	r.Start("FTP SERVER DIAGNOSTICS", m.now())

	m.checkServices(ctx, r)
	m.checkPorts(ctx, r)
	m.checkFirewall(ctx, r)
	m.checkConfiguration(r)
	m.checkUserList(ctx, r, username)
	m.checkPermissions(ctx, r)
	m.checkNetwork(ctx, r)
	m.checkLogs(r)
	if username != "" {
		m.connectionHint(r, username)
	}

	r.Summary(m.fixRules(), []string{
		"Check the router or cloud firewall for ports 21 and the passive range",
		"Verify the user's password with 'hostkit ftp user passwd'",
		"Watch the log while connecting: hostkit ftp logs --follow",
	})
	return r
}

func (m *Manager) checkServices(ctx context.Context, r *diag.Report) {
	r.Section("SERVICE STATUS")
	services := []struct {
		units    []string
		label    string
		optional bool
	}{
		{[]string{Unit}, "vsftpd (FTP Server)", false},
		{[]string{"ssh", "sshd"}, "SSH/SFTP Server", false},
		{[]string{"fail2ban"}, "fail2ban (optional)", true},
	}
	for _, s := range services {
		active := false
		for _, u := range s.units {
			if m.Systemd.IsActive(ctx, u) {
				active = true
				break
			}
		}
		switch {
		case active:
			r.Pass("%s is running", s.label)
		case s.optional:
			r.Warn("%s is not running", s.label)
		default:
			r.Fail(fmt.Sprintf("%s is not running", s.label))
			if status, err := m.Systemd.Status(ctx, s.units[0]); err == nil && status != "" {
				m.Printer.Verbosef("Status output:\n%s", status)
			}
		}
	}
}

// ListeningPorts extracts the local ports from "ss -tuln" or
// "netstat -tuln" output.
func ListeningPorts(out string) map[int]bool {
	ports := make(map[int]bool)
	for _, line := range strings.Split(out, "\n") {
		for _, field := range strings.Fields(line) {
			i := strings.LastIndex(field, ":")
			if i < 0 {
				continue
			}
			if port, err := strconv.Atoi(field[i+1:]); err == nil {
				ports[port] = true
				break
			}
		}
	}
	return ports
}

func (m *Manager) checkPorts(ctx context.Context, r *diag.Report) {
	r.Section("PORT LISTENING STATUS")
	out, err := runner.Output(ctx, m.Runner, "ss", "-tuln")
	if err != nil {
		out, err = runner.Output(ctx, m.Runner, "netstat", "-tuln")
	}
	if err != nil {
		r.Warn("Could not list listening sockets (ss and netstat unavailable)")
		return
	}
	listening := ListeningPorts(out)
	ports := []struct {
		port     int
		label    string
		optional bool
	}{
		{m.Config.ListenPort, "FTP Control", false},
		{22, "SSH/SFTP", false},
		{20, "FTP Data", true},
	}
	for _, p := range ports {
		switch {
		case listening[p.port]:
			r.Pass("Port %d (%s) is listening", p.port, p.label)
		case p.optional:
			r.Warn("Port %d (%s) not listening (normal between transfers)", p.port, p.label)
		default:
			r.Fail(fmt.Sprintf("Port %d (%s) is not listening", p.port, p.label))
		}
	}
}

func (m *Manager) checkFirewall(ctx context.Context, r *diag.Report) {
	r.Section("FIREWALL STATUS")
	if !runner.Exists(m.Runner, "ufw") {
		r.Warn("UFW firewall not installed")
		return
	}
	st, err := m.Firewall.Status(ctx)
	if err != nil {
		r.Warn("Could not read firewall status: %v", err)
		return
	}
	if !st.Active {
		r.Warn("UFW firewall is inactive")
		return
	}
	r.Pass("UFW is active")
	settings := SettingsFromConfig(m.Config)
	for _, port := range []string{strconv.Itoa(m.Config.ListenPort), "22", settings.PasvRange()} {
		if st.Allows(port) {
			r.Pass("Firewall allows port %s", port)
		} else {
			r.Fail("Firewall does not allow port " + port)
		}
	}
}

func (m *Manager) checkConfiguration(r *diag.Report) {
	r.Section("CONFIGURATION CHECKS")
	data, err := os.ReadFile(m.Config.ConfigPath)
	if err != nil {
		r.Fail("vsftpd.conf file missing", "sudo hostkit ftp setup")
		return
	}
	r.Pass("Configuration file exists: %s", m.Config.ConfigPath)

	conf := ParseConf(string(data))
	for _, s := range criticalSettings {
		if strings.EqualFold(conf[s.key], s.value) {
			r.Pass("Config has %s (%s=%s)", s.label, s.key, s.value)
		} else {
			r.Fail(fmt.Sprintf("Config missing %s (%s=%s)", s.label, s.key, s.value))
		}
	}
	if strings.EqualFold(conf["listen"], "YES") && strings.EqualFold(conf["listen_ipv6"], "YES") {
		r.Fail("IPv4 and IPv6 listen both enabled", "sudo sed -i 's/^listen_ipv6=YES/listen_ipv6=NO/' "+m.Config.ConfigPath)
	}
	if strings.EqualFold(conf["chroot_local_user"], "YES") {
		r.Warn("Chroot enabled (should be disabled)")
	}
}

func (m *Manager) checkUserList(ctx context.Context, r *diag.Report, only string) {
	r.Section("USER LIST CHECKS")
	names, err := ReadUserList(m.Config.AllowedUsersFile)
	if err != nil {
		r.Warn("User list file does not exist: %s", m.Config.AllowedUsersFile)
		return
	}
	if len(names) == 0 {
		r.Warn("User list is empty")
		return
	}
	for _, name := range names {
		if only != "" && name != only {
			continue
		}
		if !m.userExists(ctx, name) {
			r.Fail(fmt.Sprintf("User %s in list but not in system", name))
			continue
		}
		r.Pass("User %s exists", name)

		home := m.statDir(ctx, m.HomeDir(name))
		if !home.Exists {
			r.Fail(fmt.Sprintf("User %s directory missing", name))
			continue
		}
		if home.Owner != "root" {
			r.Warn("User %s home %s owned by %s, expected root", name, home.Path, home.Owner)
		}
		files := m.statDir(ctx, filepath.Join(home.Path, FilesDir))
		switch {
		case !files.Exists:
			r.Fail(fmt.Sprintf("User %s directory missing", name))
		case files.Owner != name:
			r.Warn("User %s directory ownership mismatch (%s owned by %s)", name, files.Path, files.Owner)
		default:
			r.Pass("User %s directories in place (%s %s)", name, files.Path, files.Mode)
		}
	}
}

func (m *Manager) checkPermissions(ctx context.Context, r *diag.Report) {
	r.Section("PERMISSION CHECKS")
	root := m.statDir(ctx, m.Config.FTPRoot)
	if !root.Exists {
		r.Fail("FTP root directory missing")
		return
	}
	m.Printer.KV("Permissions", root.Mode)
	m.Printer.KV("Owner", root.Owner+":"+root.Group)
	if root.Owner == "root" {
		r.Pass("FTP root owned by root")
	} else {
		r.Warn("FTP root not owned by root")
	}
}

func (m *Manager) checkNetwork(ctx context.Context, r *diag.Report) {
	r.Section("NETWORK CHECKS")
	if out, err := runner.Output(ctx, m.Runner, "hostname", "-I"); err == nil {
		m.Printer.Plain("Server IP addresses:")
		for _, ip := range strings.Fields(out) {
			m.Printer.Plain("  - %s", ip)
		}
	}
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(m.Config.ListenPort))
	conn, err := m.dial("tcp", addr, dialTimeout)
	if err != nil {
		r.Fail(fmt.Sprintf("Port %d not reachable on localhost", m.Config.ListenPort))
		return
	}
	_ = conn.Close()
	r.Pass("Port %d reachable on localhost", m.Config.ListenPort)
}

func (m *Manager) checkLogs(r *diag.Report) {
	r.Section("LOG FILE ANALYSIS")
	for _, name := range []string{"vsftpd.log", "syslog", "auth.log"} {
		path := filepath.Join(m.LogDir, name)
		lines, err := logview.Tail(path, 500)
		if err != nil {
			m.Printer.Warn("Log file not found: %s", path)
			continue
		}
		ftpLines := logview.MatchAny(lines, []string{"vsftpd", "ftp"})
		if len(ftpLines) > recentLogLines {
			ftpLines = ftpLines[len(ftpLines)-recentLogLines:]
		}
		if n := logview.CountMatches(ftpLines, logErrorKeywords); n > 0 {
			m.Printer.Warn("%s: %d error/warning entries in recent logs", path, n)
			m.Printer.Plain("  Run: hostkit ftp logs %s error", path)
		} else {
			m.Printer.Success("%s: no obvious errors in recent logs", path)
		}
	}
}

func (m *Manager) connectionHint(r *diag.Report, username string) {
	r.Section("CONNECTION TEST FOR USER: " + username)
	m.Printer.Plain("To test manually, run:")
	m.Printer.Plain("  ftp localhost %d", m.Config.ListenPort)
	m.Printer.Plain("  Username: %s", username)
	m.Printer.Plain("  Password: <enter password>")
	m.Printer.Plain("  Commands: ls, pwd, quit")
}

// fixRules maps issue messages to repair commands.
func (m *Manager) fixRules() []diag.FixRule {
	root := m.Config.FTPRoot
	group := m.Config.FTPGroup
	return []diag.FixRule{
		{
			Match: diag.Contains("is not running"),
			Lines: func(issue string) []string {
				unit := strings.Fields(issue)[0]
				if strings.HasPrefix(unit, "SSH") {
					unit = "ssh"
				}
				return []string{"sudo systemctl start " + unit, "sudo systemctl enable " + unit}
			},
		},
		{
			Match: diag.Contains("not listening"),
			Lines: diag.Static("hostkit service status vsftpd", "Check "+m.Config.ConfigPath+" for listen settings"),
		},
		{
			Match: diag.Contains("firewall does not allow"),
			Lines: func(issue string) []string {
				f := strings.Fields(issue)
				return []string{"sudo ufw allow " + f[len(f)-1] + "/tcp"}
			},
		},
		{
			Match: diag.Contains("directory missing"),
			Lines: func(issue string) []string {
				f := strings.Fields(issue)
				if f[0] != "User" {
					return []string{"sudo mkdir -p " + root, "sudo chown root:root " + root, "sudo chmod 755 " + root}
				}
				home := filepath.Join(root, f[1])
				return []string{
					"sudo mkdir -p " + filepath.Join(home, FilesDir),
					"sudo chown root:root " + home,
					"sudo chown " + f[1] + ":" + group + " " + filepath.Join(home, FilesDir),
					"sudo chmod 755 " + home,
				}
			},
		},
		{
			Match: diag.Contains("not in system"),
			Lines: func(issue string) []string {
				return []string{"hostkit ftp user create " + strings.Fields(issue)[1]}
			},
		},
		{
			Match: diag.Contains("config missing"),
			Lines: diag.Static("sudo hostkit ftp setup"),
		},
		{
			Match: diag.Contains("not reachable"),
			Lines: diag.Static("sudo systemctl restart vsftpd", "hostkit ftp logs --errors"),
		},
	}
}
