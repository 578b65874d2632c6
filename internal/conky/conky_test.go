// SPDX-License-Identifier: MPL-2.0

package conky

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/pkgmgr"
	"github.com/hostkit/hostkit/internal/testutil"
	"github.com/hostkit/hostkit/internal/ui"
)

func defaultSettings() Settings {
	return SettingsFromConfig(config.DefaultConfig().Conky)
}

func TestRenderConfig(t *testing.T) {
	t.Parallel()

	s := defaultSettings()
	s.Interface = "wlp3s0"
	got, err := RenderConfig(s)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"alignment = 'top_right',",
		"gap_x = 20,",
		"gap_y = 40,",
		"update_interval = 2.0,",
		"${downspeed wlp3s0}",
		"TAILSCALE",
		"conky.text = [[",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderConfig() missing %q", want)
		}
	}
	if strings.Contains(got, "vsftpd") {
		t.Error("FTP section rendered although disabled")
	}
	if !strings.HasSuffix(got, "]];\n") {
		t.Errorf("text block not closed:\n%s", got)
	}

	s.ShowTailscale = false
	s.ShowFTP = true
	s.Interface = ""
	got, err = RenderConfig(s)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "TAILSCALE") || !strings.Contains(got, "vsftpd") || !strings.Contains(got, "${addr eth0}") {
		t.Errorf("RenderConfig() =\n%s", got)
	}
}

func TestSettingsValidate(t *testing.T) {
	t.Parallel()

	s := defaultSettings()
	s.Alignment = "upper_right"
	if _, err := RenderConfig(s); !errors.Is(err, ErrInvalidAlignment) {
		t.Errorf("alignment error = %v", err)
	}
	s = defaultSettings()
	s.UpdateInterval = 0
	if err := s.Validate(); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("interval error = %v", err)
	}
}

func TestParseDefaultInterface(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"default via 192.168.1.1 dev enp0s31f6 proto dhcp src 192.168.1.20 metric 100\n": "enp0s31f6",
		"10.0.0.0/8 dev tun0\ndefault dev wg0 scope link\n":                              "wg0",
		"":                        "",
		"default via 192.168.1.1": "",
	}
	for in, want := range tests {
		if got := ParseDefaultInterface(in); got != want {
			t.Errorf("ParseDefaultInterface(%q) = %q, want %q", in, got, want)
		}
	}
}

func newTestInstaller(t *testing.T, fake *testutil.FakeRunner) (*Installer, *bytes.Buffer) {
	t.Helper()
	pm, err := pkgmgr.New(pkgmgr.FamilyApt, fake)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	in := NewInstaller(fake, ui.NewPrinter(&out, nil, true), log.New(io.Discard), config.DefaultConfig().Conky, pm, t.TempDir())
	in.now = func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }
	return in, &out
}

func TestInstall(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner().
		On("dpkg-query", testutil.Response{ExitCode: 1}).
		On("ip route show default", testutil.Response{Stdout: "default via 10.1.1.1 dev eno1 proto static\n"})
	in, out := newTestInstaller(t, fake)
	testutil.MustWriteFile(t, in.ConfigPath(), "-- old config\n")

	if err := in.Install(t.Context()); err != nil {
		t.Fatalf("Install() error = %v\n%s", err, out)
	}
	if !fake.Called("apt-get install -y conky-all") {
		t.Errorf("calls = %q", fake.Lines())
	}
	conf := testutil.MustReadFile(t, in.ConfigPath())
	if !strings.Contains(conf, "${upspeed eno1}") {
		t.Errorf("conky.conf =\n%s", conf)
	}
	if got := testutil.MustReadFile(t, in.ConfigPath()+".bak.20260314-092653"); got != "-- old config\n" {
		t.Errorf("backup = %q", got)
	}
	if got := testutil.MustReadFile(t, in.AutostartPath()); got != DesktopEntry {
		t.Errorf("autostart = %q", got)
	}
	if fake.Called("chown") {
		t.Error("chown without owner")
	}
}

func TestInstall_OwnerAndDryRun(t *testing.T) {
	t.Parallel()

	installed := testutil.Response{Stdout: "install ok installed"}
	fake := testutil.NewFakeRunner().On("dpkg-query", installed)
	in, out := newTestInstaller(t, fake)
	in.Settings.Interface = "eth1"
	in.Owner = "alice"

	if err := in.Install(t.Context()); err != nil {
		t.Fatal(err)
	}
	if fake.Called("apt-get install") {
		t.Error("installed an already present package")
	}
	call, ok := fake.Find("chown -R alice: ")
	if !ok || !call.Command.Sudo {
		t.Errorf("calls = %q", fake.Lines())
	}
	if fake.Called("ip route") {
		t.Error("interface probed although configured")
	}

	dry, dryOut := newTestInstaller(t, testutil.NewFakeRunner().On("dpkg-query", installed))
	dry.DryRun = true
	if err := dry.Install(t.Context()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Dir(dry.ConfigPath())); !errors.Is(err, os.ErrNotExist) {
		t.Error("dry run created the config directory")
	}
	if !strings.Contains(dryOut.String(), "[dry-run] write "+dry.AutostartPath()) {
		t.Errorf("output:\n%s\n%s", dryOut, out)
	}
}

func TestPackageName(t *testing.T) {
	t.Parallel()

	if PackageName(pkgmgr.FamilyApt) != "conky-all" || PackageName(pkgmgr.FamilyPacman) != "conky" {
		t.Error("unexpected package names")
	}
}
