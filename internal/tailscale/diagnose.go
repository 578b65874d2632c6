// SPDX-License-Identifier: MPL-2.0

package tailscale

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/hostkit/hostkit/internal/diag"
	"github.com/hostkit/hostkit/internal/firewall"
	"github.com/hostkit/hostkit/internal/logview"
	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/sysinfo"
)

const (
	logCheckLines = 50
	maxPeersShown = 10
)

var logCheckKeywords = []string{"error", "fail", "warning"}

// Diagnose runs every check, prints the results and the summary, and
// returns the report. The CLI exits with its ExitCode.
func (m *Manager) Diagnose(ctx context.Context) *diag.Report {
	r := diag.NewReport(m.Printer)
	r.Start("TAILSCALE DIAGNOSTICS", m.now())

	m.checkInstallation(ctx, r)
	m.checkService(ctx, r)
	st, stErr := m.Status(ctx)
	m.checkAuthentication(r, st, stErr)
	if stErr == nil {
		m.checkAddresses(r, st)
		m.checkPeers(r, st)
		m.checkRoutes(st)
	}
	m.checkExitNode(ctx, r, st)
	m.checkDNS(st, stErr == nil)
	m.checkSSH()
	m.checkFirewall(ctx)
	m.checkControlPlane(ctx, r)
	m.checkLogs(ctx)

	r.Summary(fixRules(), []string{
		"Check your Tailscale admin console: " + AdminURL,
		"Review logs: sudo journalctl -u " + Unit + " -f",
		"Try restarting: sudo systemctl restart " + Unit,
	})
	return r
}

func (m *Manager) checkInstallation(ctx context.Context, r *diag.Report) {
	r.Section("INSTALLATION CHECK")
	if !runner.Exists(m.Runner, Binary) {
		r.Fail("Tailscale is not installed")
		return
	}
	r.Pass("Tailscale is installed")
	if v, err := runner.Output(ctx, m.Runner, Binary, "version"); err == nil {
		first, _, _ := strings.Cut(v, "\n")
		m.Printer.KV("Version", first)
	}
}

func (m *Manager) checkService(ctx context.Context, r *diag.Report) {
	r.Section("SERVICE STATUS")
	if m.Systemd.IsActive(ctx, Unit) {
		r.Pass("Tailscaled service is running")
	} else {
		r.Fail("Tailscaled service is not running")
		if out, err := m.Systemd.Status(ctx, Unit); err == nil && out != "" {
			m.Printer.Plain("%s", out)
		}
	}
	if m.Systemd.IsEnabled(ctx, Unit) {
		m.Printer.Success("Tailscaled enabled at boot")
	} else {
		r.Warn("Tailscaled service not enabled at boot")
	}
}

func (m *Manager) checkAuthentication(r *diag.Report, st Status, err error) {
	r.Section("AUTHENTICATION STATUS")
	switch {
	case err != nil:
		m.Printer.Verbosef("status: %v", err)
		r.Fail("Cannot check authentication status")
	case !st.LoggedIn():
		r.Fail("Tailscale is not authenticated")
		m.Printer.Plain("  Backend state: %s", st.BackendState)
		m.Printer.Plain("  To authenticate, run: sudo tailscale up")
	default:
		r.Pass("Tailscale is authenticated")
	}
}

func (m *Manager) checkAddresses(r *diag.Report, st Status) {
	r.Section("IP ADDRESS CHECK")
	if ip := st.IPv4(); ip != "" {
		r.Pass("Has IPv4 address: %s", ip)
	} else {
		r.Fail("No IPv4 address")
	}
	if ip := st.IPv6(); ip != "" {
		m.Printer.Success("IPv6 address: %s", ip)
	} else {
		m.Printer.Info("No IPv6 address")
	}
}

func (m *Manager) checkPeers(r *diag.Report, st Status) {
	r.Section("CONNECTIVITY STATUS")
	peers := st.Peers()
	if len(peers) == 0 {
		r.Warn("No Tailscale peers connected")
		return
	}
	r.Pass("Connected to %d peers (%d online)", len(peers), st.OnlinePeers())
	for i, p := range peers {
		if i == maxPeersShown {
			m.Printer.Plain("  ... and %d more peer(s)", len(peers)-maxPeersShown)
			break
		}
		state := "offline"
		if p.Online {
			state = "online"
		}
		m.Printer.Plain("  %-20s %-16s %s", p.HostName, strings.Join(p.TailscaleIPs, ","), state)
	}
}

func (m *Manager) checkRoutes(st Status) {
	m.Printer.Section("ROUTE CONFIGURATION")
	if len(m.Config.AdvertiseRoutes) > 0 {
		m.Printer.Plain("Configured routes: %s", strings.Join(m.Config.AdvertiseRoutes, ", "))
	} else {
		m.Printer.Plain("No routes configured for advertisement")
	}
	if routes := st.Routes(); len(routes) > 0 {
		m.Printer.Success("Serving routes: %s", strings.Join(routes, ", "))
	}
	m.Printer.Plain("Accepting routes: %v", m.Config.AcceptRoutes)
}

func (m *Manager) checkExitNode(ctx context.Context, r *diag.Report, st Status) {
	r.Section("EXIT NODE STATUS")
	if m.Network.ExitNode != "" {
		m.Printer.Plain("Configured exit node: %s", m.Network.ExitNode)
	}

	if m.Config.AdvertiseExitNode {
		m.Printer.Success("Advertising as exit node")
		out, err := runner.Output(ctx, m.Runner, "sysctl", ForwardIPv4)
		if err == nil && sysinfo.ParseSysctl(out)[ForwardIPv4] == "1" {
			r.Pass("IP forwarding enabled")
		} else {
			r.Fail("IP forwarding disabled (required for exit node)")
		}
	} else {
		m.Printer.Plain("Not advertising as exit node")
	}

	if es := st.ExitNodeStatus; es != nil {
		if es.Online {
			ip := "unknown"
			if len(es.TailscaleIPs) > 0 {
				ip = es.TailscaleIPs[0]
			}
			m.Printer.Success("Using exit node: %s", ip)
		} else {
			r.Warn("Exit node offline")
		}
	}
}

func (m *Manager) checkDNS(st Status, haveStatus bool) {
	m.Printer.Section("DNS CONFIGURATION")
	m.Printer.Plain("Accepting DNS: %v", m.Config.AcceptDNS)
	if haveStatus {
		if st.MagicDNSSuffix != "" {
			m.Printer.Success("MagicDNS suffix: %s", st.MagicDNSSuffix)
		} else {
			m.Printer.Warn("MagicDNS not configured")
		}
	}
	content, err := os.ReadFile(m.ResolvConf)
	if err != nil {
		return
	}
	if strings.Contains(string(content), MagicDNSResolver) {
		m.Printer.Success("Tailscale DNS configured in %s", m.ResolvConf)
	} else {
		m.Printer.Warn("Tailscale DNS not in %s", m.ResolvConf)
	}
}

func (m *Manager) checkSSH() {
	m.Printer.Section("SSH CONFIGURATION")
	if !m.Config.SSHEnabled {
		m.Printer.Warn("Tailscale SSH not enabled")
		return
	}
	m.Printer.Success("Tailscale SSH enabled in config")
	m.Printer.Plain("  Connect from other devices: ssh user@<machine-name>")
}

func (m *Manager) checkFirewall(ctx context.Context) {
	m.Printer.Section("FIREWALL STATUS")
	if !runner.Exists(m.Runner, "ufw") {
		m.Printer.Warn("UFW not installed")
		return
	}
	st, err := m.Firewall.Status(ctx)
	if err != nil {
		m.Printer.Warn("Could not read firewall status: %v", err)
		return
	}
	if !st.Active {
		m.Printer.Success("UFW is inactive (Tailscale doesn't require firewall rules)")
		return
	}
	m.Printer.Plain("UFW is active")
	if st.Allows(WireGuardPort+"/udp") || allowsTailscaleInterface(st.Rules) {
		m.Printer.Success("Tailscale port allowed")
		return
	}
	m.Printer.Warn("Tailscale port (%s/udp) not explicitly allowed", WireGuardPort)
	m.Printer.Plain("  (This is usually fine; Tailscale can work without explicit rules)")
}

func (m *Manager) checkControlPlane(ctx context.Context, r *diag.Report) {
	r.Section("CONNECTIVITY TEST")
	u, err := url.Parse(m.ControlURL)
	if err != nil || u.Hostname() == "" {
		r.Fail("Cannot resolve Tailscale coordination server")
		return
	}
	host := u.Hostname()

	lctx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()
	if addrs, err := m.lookupHost(lctx, host); err != nil || len(addrs) == 0 {
		r.Fail("Cannot resolve Tailscale coordination server")
	} else {
		r.Pass("Can resolve %s", host)
	}

	if err := m.probeHTTPS(ctx); err != nil {
		m.Printer.Verbosef("GET %s: %v", m.ControlURL, err)
		r.Fail("Cannot reach Tailscale coordination server")
	} else {
		r.Pass("Can reach %s via HTTPS", host)
	}
}

// probeHTTPS treats any response below 500 as reachable.
func (m *Manager) probeHTTPS(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.ControlURL, nil)
	if err != nil {
		return err
	}
	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

// allowsTailscaleInterface finds rules such as "allow in on tailscale0".
func allowsTailscaleInterface(rules []firewall.Rule) bool {
	for _, r := range rules {
		text := strings.ToLower(r.To + " " + r.From + " " + r.Comment)
		if r.IsAllow() && strings.Contains(text, "tailscale") {
			return true
		}
	}
	return false
}

func (m *Manager) checkLogs(ctx context.Context) {
	m.Printer.Section("LOG ANALYSIS")
	lines, err := logview.Journal(ctx, m.Runner, Unit, logCheckLines)
	if err != nil {
		m.Printer.Warn("Could not read logs")
		return
	}
	if n := logview.CountMatches(lines, logCheckKeywords); n > 0 {
		m.Printer.Warn("Found %d error/warning entries in recent logs", n)
		m.Printer.Plain("  Run: sudo journalctl -u %s -f", Unit)
		return
	}
	m.Printer.Success("No obvious errors in recent logs")
}

func fixRules() []diag.FixRule {
	return []diag.FixRule{
		{Match: diag.Contains("not installed"), Lines: diag.Static("sudo hostkit tailscale setup")},
		{Match: diag.Contains("service is not running"), Lines: diag.Static(
			"sudo systemctl start "+Unit,
			"sudo systemctl enable "+Unit,
		)},
		{Match: diag.Contains("not authenticated"), Lines: diag.Static("sudo tailscale up")},
		{Match: diag.Contains("cannot check authentication"), Lines: diag.Static(
			"sudo systemctl restart "+Unit,
			"sudo tailscale status",
		)},
		{Match: diag.Contains("no ipv4 address"), Lines: diag.Static(
			"Check authentication and connection",
			"sudo tailscale status",
		)},
		{Match: diag.Contains("ip forwarding"), Lines: diag.Static(
			"sudo sysctl -w "+ForwardIPv4+"=1",
			"echo '"+ForwardIPv4+" = 1' | sudo tee "+DefaultSysctlPath,
		)},
		{Match: diag.Contains("cannot resolve"), Lines: diag.Static(
			"Check DNS settings in /etc/resolv.conf",
			"resolvectl status",
		)},
		{Match: diag.Contains("cannot reach"), Lines: diag.Static(
			"Check internet connectivity",
			"Check firewall settings",
			"Verify no proxy blocking connections",
		)},
	}
}
