// SPDX-License-Identifier: MPL-2.0

// Package tailscale installs and logs in the Tailscale client, configures
// exit nodes and IP forwarding, diagnoses broken nodes and views the
// tailscaled logs.
package tailscale

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/firewall"
	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/service"
	"github.com/hostkit/hostkit/internal/ui"
)

const (
	// Unit is the systemd unit of the Tailscale daemon.
	Unit = "tailscaled"
	// Binary is the Tailscale CLI.
	Binary = "tailscale"

	DefaultInstallURL = "https://tailscale.com/install.sh"
	DefaultControlURL = "https://controlplane.tailscale.com"
	DefaultSysctlPath = "/etc/sysctl.d/99-tailscale.conf"
	AdminURL          = "https://login.tailscale.com/admin/machines"

	// WireGuardPort is the UDP port tailscaled listens on for direct peers.
	WireGuardPort = "41641"

	// MagicDNSResolver is the resolver address Tailscale writes into resolv.conf.
	MagicDNSResolver = "100.100.100.100"

	backendRunning = "Running"
	httpTimeout    = 5 * time.Second
)

// Sysctl keys that enable packet forwarding.
const (
	ForwardIPv4 = "net.ipv4.ip_forward"
	ForwardIPv6 = "net.ipv6.conf.all.forwarding"
)

// Manager performs every Tailscale operation.
type Manager struct {
	Runner   runner.Runner
	Printer  *ui.Printer
	Logger   *log.Logger
	Config   config.TailscaleConfig
	Network  config.NetworkConfig
	Systemd  *service.Systemd
	Firewall *firewall.Firewall
	DryRun   bool

	HTTPClient *http.Client
	InstallURL string
	ControlURL string
	SysctlPath string
	ResolvConf string
	// LogDir holds tailscale's own *.log files on distros that write them.
	LogDir string
	// SyslogPath is searched for tailscale lines when the journal is empty.
	SyslogPath string

	lookupHost func(ctx context.Context, host string) ([]string, error)
	now        func() time.Time
}

// NewManager wires a Manager from the loaded configuration.
func NewManager(r runner.Runner, p *ui.Printer, logger *log.Logger, cfg *config.Config) *Manager {
	return &Manager{
		Runner:     r,
		Printer:    p,
		Logger:     logger,
		Config:     cfg.Tailscale,
		Network:    cfg.Network,
		Systemd:    service.NewSystemd(r),
		Firewall:   firewall.New(r, p, logger),
		HTTPClient: &http.Client{Timeout: httpTimeout},
		InstallURL: DefaultInstallURL,
		ControlURL: DefaultControlURL,
		SysctlPath: DefaultSysctlPath,
		ResolvConf: "/etc/resolv.conf",
		LogDir:     "/var/log/tailscale",
		SyslogPath: "/var/log/syslog",
		lookupHost: net.DefaultResolver.LookupHost,
		now:        time.Now,
	}
}

// BuildUpArgs returns the "tailscale up" arguments for cfg. Boolean flags
// are only passed when set.
func BuildUpArgs(cfg config.TailscaleConfig) []string {
	args := []string{"up"}
	for _, f := range []struct {
		on   bool
		flag string
	}{
		{cfg.AcceptRoutes, "--accept-routes"},
		{cfg.AcceptDNS, "--accept-dns"},
		{cfg.ShieldsUp, "--shields-up"},
		{cfg.AdvertiseExitNode, "--advertise-exit-node"},
		{cfg.SSHEnabled, "--ssh"},
	} {
		if f.on {
			args = append(args, f.flag)
		}
	}
	if cfg.Hostname != "" {
		args = append(args, "--hostname", cfg.Hostname)
	}
	if cfg.Operator != "" {
		args = append(args, "--operator", cfg.Operator)
	}
	if len(cfg.AdvertiseRoutes) > 0 {
		args = append(args, "--advertise-routes", strings.Join(cfg.AdvertiseRoutes, ","))
	}
	if cfg.AuthKey != "" {
		args = append(args, "--auth-key", cfg.AuthKey)
	}
	return args
}

// RedactArgs masks the value following --auth-key.
func RedactArgs(args []string) []string {
	out := slices.Clone(args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--auth-key" {
			out[i+1] = "****"
		}
	}
	return out
}

// ExitNodeArgs returns the "tailscale set" arguments selecting the
// configured exit node, or nil when none is configured.
func ExitNodeArgs(n config.NetworkConfig) []string {
	if n.ExitNode == "" {
		return nil
	}
	args := []string{"set", "--exit-node", n.ExitNode}
	if n.ExitNodeAllowLANAccess {
		args = append(args, "--exit-node-allow-lan-access")
	}
	return args
}

// ForwardingKeys lists the sysctl keys to enable for the address families
// turned on in n.
func ForwardingKeys(n config.NetworkConfig) []string {
	var keys []string
	if n.IPv4Enabled {
		keys = append(keys, ForwardIPv4)
	}
	if n.IPv6Enabled {
		keys = append(keys, ForwardIPv6)
	}
	return keys
}

// NeedsForwarding reports whether cfg routes traffic for other hosts.
func NeedsForwarding(cfg config.TailscaleConfig) bool {
	return cfg.AdvertiseExitNode || len(cfg.AdvertiseRoutes) > 0
}

type (
	// Status is the subset of "tailscale status --json" hostkit reads.
	Status struct {
		Version        string
		BackendState   string
		TailscaleIPs   []string
		MagicDNSSuffix string
		Self           *Peer
		Peer           map[string]*Peer
		ExitNodeStatus *ExitNodeStatus
		Health         []string
	}

	// Peer is one node of the tailnet, including this one as Self.
	Peer struct {
		HostName       string
		DNSName        string
		OS             string
		TailscaleIPs   []string
		AllowedIPs     []string
		Online         bool
		ExitNode       bool
		ExitNodeOption bool
	}

	// ExitNodeStatus describes the exit node in use.
	ExitNodeStatus struct {
		ID           string
		Online       bool
		TailscaleIPs []string
	}
)

// ParseStatusJSON decodes "tailscale status --json" output.
func ParseStatusJSON(data []byte) (Status, error) {
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}, fmt.Errorf("parse tailscale status: %w", err)
	}
	return st, nil
}

// LoggedIn reports whether the backend is authenticated and running.
func (s Status) LoggedIn() bool {
	return s.BackendState == backendRunning
}

// IPv4 returns this node's first Tailscale IPv4 address.
func (s Status) IPv4() string {
	return s.firstIP(func(a netip.Addr) bool { return a.Is4() })
}

// IPv6 returns this node's first Tailscale IPv6 address.
func (s Status) IPv6() string {
	return s.firstIP(func(a netip.Addr) bool { return a.Is6() })
}

func (s Status) firstIP(match func(netip.Addr) bool) string {
	ips := s.TailscaleIPs
	if len(ips) == 0 && s.Self != nil {
		ips = s.Self.TailscaleIPs
	}
	for _, ip := range ips {
		if a, err := netip.ParseAddr(ip); err == nil && match(a) {
			return ip
		}
	}
	return ""
}

// Peers returns the other nodes sorted by host name.
func (s Status) Peers() []*Peer {
	peers := make([]*Peer, 0, len(s.Peer))
	for _, p := range s.Peer {
		if p != nil {
			peers = append(peers, p)
		}
	}
	slices.SortFunc(peers, func(a, b *Peer) int {
		return strings.Compare(a.HostName, b.HostName)
	})
	return peers
}

// OnlinePeers counts peers currently connected to the control plane.
func (s Status) OnlinePeers() int {
	n := 0
	for _, p := range s.Peer {
		if p != nil && p.Online {
			n++
		}
	}
	return n
}

// Routes returns the subnet routes this node serves: its AllowedIPs minus
// its own host addresses.
func (s Status) Routes() []string {
	if s.Self == nil {
		return nil
	}
	var routes []string
	for _, r := range s.Self.AllowedIPs {
		pfx, err := netip.ParsePrefix(r)
		if err == nil && pfx.IsSingleIP() && slices.Contains(s.Self.TailscaleIPs, pfx.Addr().String()) {
			continue
		}
		routes = append(routes, r)
	}
	return routes
}

// Status reads the daemon state. It fails when tailscale is missing or
// tailscaled is not running.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	res, err := runner.RunChecked(ctx, m.Runner, runner.Probe(Binary, "status", "--json"))
	if err != nil {
		return Status{}, err
	}
	return ParseStatusJSON([]byte(res.Stdout))
}

// LoggedIn reports whether this node is authenticated.
func (m *Manager) LoggedIn(ctx context.Context) bool {
	st, err := m.Status(ctx)
	return err == nil && st.LoggedIn()
}

// StatusLines renders a status overview for display.
func StatusLines(st Status) []string {
	lines := []string{
		ui.Row("State", st.BackendState),
		ui.Row("IPv4", orNone(st.IPv4())),
		ui.Row("IPv6", orNone(st.IPv6())),
	}
	if st.Self != nil && st.Self.DNSName != "" {
		lines = append(lines, ui.Row("DNS name", strings.TrimSuffix(st.Self.DNSName, ".")))
	}
	if st.ExitNodeStatus != nil {
		state := "offline"
		if st.ExitNodeStatus.Online {
			state = "online"
		}
		lines = append(lines, ui.Row("Exit node", strings.Join(st.ExitNodeStatus.TailscaleIPs, ", ")+" ("+state+")"))
	}
	lines = append(lines, ui.Row("Peers", fmt.Sprintf("%d (%d online)", len(st.Peer), st.OnlinePeers())))
	for _, p := range st.Peers() {
		mark := "○"
		if p.Online {
			mark = "●"
		}
		ip := ""
		if len(p.TailscaleIPs) > 0 {
			ip = p.TailscaleIPs[0]
		}
		lines = append(lines, fmt.Sprintf("  %s %-20s %-16s %s", mark, p.HostName, ip, p.OS))
	}
	return lines
}

// ConfigLines renders the effective configuration.
func ConfigLines(cfg config.TailscaleConfig, n config.NetworkConfig) []string {
	lines := []string{
		ui.Row("Accept routes", cfg.AcceptRoutes),
		ui.Row("Accept DNS", cfg.AcceptDNS),
		ui.Row("Shields up", cfg.ShieldsUp),
		ui.Row("Exit node (advertise)", cfg.AdvertiseExitNode),
		ui.Row("Tailscale SSH", cfg.SSHEnabled),
	}
	if cfg.Hostname != "" {
		lines = append(lines, ui.Row("Hostname", cfg.Hostname))
	}
	if len(cfg.AdvertiseRoutes) > 0 {
		lines = append(lines, ui.Row("Advertised routes", strings.Join(cfg.AdvertiseRoutes, ", ")))
	}
	if n.ExitNode != "" {
		lines = append(lines, ui.Row("Using exit node", n.ExitNode))
	}
	return lines
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
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
