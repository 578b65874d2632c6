// SPDX-License-Identifier: MPL-2.0

package tailscale

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/testutil"
	"github.com/hostkit/hostkit/internal/ui"
)

const statusJSON = `{
  "Version": "1.76.1-t1234",
  "BackendState": "Running",
  "TailscaleIPs": ["100.64.0.2", "fd7a:115c:a1e0::2"],
  "MagicDNSSuffix": "tail1234.ts.net",
  "Self": {
    "HostName": "web1",
    "DNSName": "web1.tail1234.ts.net.",
    "OS": "linux",
    "TailscaleIPs": ["100.64.0.2", "fd7a:115c:a1e0::2"],
    "AllowedIPs": ["100.64.0.2/32", "fd7a:115c:a1e0::2/128", "192.168.10.0/24"],
    "Online": true
  },
  "Peer": {
    "nodekey:b": {"HostName": "laptop", "OS": "macOS", "TailscaleIPs": ["100.64.0.3"], "Online": true},
    "nodekey:a": {"HostName": "backup", "OS": "linux", "TailscaleIPs": ["100.64.0.4"], "Online": false, "ExitNodeOption": true}
  },
  "ExitNodeStatus": {"ID": "n1", "Online": true, "TailscaleIPs": ["100.64.0.4/32"]}
}`

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestManager(t *testing.T, fake *testutil.FakeRunner) (*Manager, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	var out bytes.Buffer
	m := NewManager(fake, ui.NewPrinter(&out, nil, true), log.New(io.Discard), config.DefaultConfig())
	m.SysctlPath = filepath.Join(root, "sysctl.d", "99-tailscale.conf")
	m.ResolvConf = filepath.Join(root, "resolv.conf")
	m.LogDir = filepath.Join(root, "log", "tailscale")
	m.SyslogPath = filepath.Join(root, "log", "syslog")
	m.Firewall.RulesDir = filepath.Join(root, "ufw")
	m.now = func() time.Time { return fixedNow }
	m.lookupHost = func(context.Context, string) ([]string, error) {
		return nil, errors.New("no such host")
	}
	return m, &out
}

func TestBuildUpArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.TailscaleConfig
		want string
	}{
		{"defaults", config.TailscaleConfig{}, "up"},
		{
			"all flags",
			config.TailscaleConfig{
				AcceptRoutes:      true,
				AcceptDNS:         true,
				ShieldsUp:         true,
				AdvertiseExitNode: true,
				SSHEnabled:        true,
				Hostname:          "web1",
				Operator:          "deploy",
				AdvertiseRoutes:   []string{"10.0.0.0/24", "192.168.10.0/24"},
				AuthKey:           "tskey-auth-123",
			},
			"up --accept-routes --accept-dns --shields-up --advertise-exit-node --ssh --hostname web1 " +
				"--operator deploy --advertise-routes 10.0.0.0/24,192.168.10.0/24 --auth-key tskey-auth-123",
		},
		{"ssh only", config.TailscaleConfig{SSHEnabled: true}, "up --ssh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := strings.Join(BuildUpArgs(tt.cfg), " "); got != tt.want {
				t.Errorf("BuildUpArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRedactArgs(t *testing.T) {
	t.Parallel()

	args := []string{"up", "--auth-key", "tskey-secret", "--ssh"}
	got := RedactArgs(args)
	if strings.Join(got, " ") != "up --auth-key **** --ssh" {
		t.Errorf("RedactArgs() = %q", got)
	}
	if args[2] != "tskey-secret" {
		t.Error("RedactArgs modified its input")
	}
}

func TestExitNodeArgs(t *testing.T) {
	t.Parallel()

	if got := ExitNodeArgs(config.NetworkConfig{}); got != nil {
		t.Errorf("ExitNodeArgs(none) = %q", got)
	}
	got := ExitNodeArgs(config.NetworkConfig{ExitNode: "100.64.0.4", ExitNodeAllowLANAccess: true})
	if strings.Join(got, " ") != "set --exit-node 100.64.0.4 --exit-node-allow-lan-access" {
		t.Errorf("ExitNodeArgs() = %q", got)
	}
}

func TestForwardingKeys(t *testing.T) {
	t.Parallel()

	got := ForwardingKeys(config.NetworkConfig{IPv4Enabled: true, IPv6Enabled: true})
	if strings.Join(got, ",") != ForwardIPv4+","+ForwardIPv6 {
		t.Errorf("ForwardingKeys() = %q", got)
	}
	if NeedsForwarding(config.TailscaleConfig{}) {
		t.Error("NeedsForwarding() without routes or exit node")
	}
	if !NeedsForwarding(config.TailscaleConfig{AdvertiseRoutes: []string{"10.0.0.0/8"}}) {
		t.Error("NeedsForwarding() with routes = false")
	}
}

func TestParseStatusJSON(t *testing.T) {
	t.Parallel()

	st, err := ParseStatusJSON([]byte(statusJSON))
	if err != nil {
		t.Fatal(err)
	}
	if !st.LoggedIn() {
		t.Error("LoggedIn() = false")
	}
	if st.IPv4() != "100.64.0.2" || st.IPv6() != "fd7a:115c:a1e0::2" {
		t.Errorf("IPv4() = %q, IPv6() = %q", st.IPv4(), st.IPv6())
	}
	if st.MagicDNSSuffix != "tail1234.ts.net" {
		t.Errorf("MagicDNSSuffix = %q", st.MagicDNSSuffix)
	}
	peers := st.Peers()
	if len(peers) != 2 || peers[0].HostName != "backup" || peers[1].HostName != "laptop" {
		t.Errorf("Peers() order = %+v", peers)
	}
	if st.OnlinePeers() != 1 {
		t.Errorf("OnlinePeers() = %d", st.OnlinePeers())
	}
	if routes := st.Routes(); len(routes) != 1 || routes[0] != "192.168.10.0/24" {
		t.Errorf("Routes() = %q", routes)
	}
	if st.ExitNodeStatus == nil || !st.ExitNodeStatus.Online {
		t.Errorf("ExitNodeStatus = %+v", st.ExitNodeStatus)
	}

	if _, err := ParseStatusJSON([]byte("not json")); err == nil {
		t.Error("ParseStatusJSON(garbage) succeeded")
	}

	loggedOut, err := ParseStatusJSON([]byte(`{"BackendState":"NeedsLogin"}`))
	if err != nil {
		t.Fatal(err)
	}
	if loggedOut.LoggedIn() || loggedOut.IPv4() != "" || loggedOut.Routes() != nil {
		t.Errorf("logged out status = %+v", loggedOut)
	}
}

func TestStatusLines(t *testing.T) {
	t.Parallel()

	st, err := ParseStatusJSON([]byte(statusJSON))
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Join(StatusLines(st), "\n")
	for _, want := range []string{"Running", "web1.tail1234.ts.net", "2 (1 online)", "laptop", "100.64.0.4/32 (online)"} {
		if !strings.Contains(text, want) {
			t.Errorf("StatusLines() missing %q:\n%s", want, text)
		}
	}
}

func TestManagerStatus(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner().On("tailscale status --json", testutil.Response{Stdout: statusJSON})
	m, _ := newTestManager(t, fake)
	if !m.LoggedIn(t.Context()) {
		t.Error("LoggedIn() = false")
	}

	down := testutil.NewFakeRunner().On("tailscale status --json", testutil.Response{
		ExitCode: 1, Stderr: "failed to connect to local tailscaled",
	})
	m, _ = newTestManager(t, down)
	if _, err := m.Status(t.Context()); err == nil {
		t.Error("Status() succeeded with tailscaled down")
	}
}
