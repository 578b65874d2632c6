// SPDX-License-Identifier: MPL-2.0

package pkgmgr

import (
	"context"
	"errors"
	"testing"

	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/testutil"
)

const ubuntuRelease = `NAME="Ubuntu"
VERSION="24.04.1 LTS (Noble Numbat)"
ID=ubuntu
ID_LIKE=debian
PRETTY_NAME="Ubuntu 24.04.1 LTS"
`

func TestParseOSRelease(t *testing.T) {
	t.Parallel()

	fields := ParseOSRelease(ubuntuRelease + "# comment\nBROKEN\nVERSION_CODENAME='noble'\n")
	tests := map[string]string{
		"ID":               "ubuntu",
		"ID_LIKE":          "debian",
		"PRETTY_NAME":      "Ubuntu 24.04.1 LTS",
		"VERSION_CODENAME": "noble",
	}
	for key, want := range tests {
		if got := fields[key]; got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if _, ok := fields["BROKEN"]; ok {
		t.Error("lines without '=' should be ignored")
	}
}

func TestDetectFamily(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		release string
		want    Family
		wantErr bool
	}{
		{"ubuntu", ubuntuRelease, FamilyApt, false},
		{"debian", "ID=debian\n", FamilyApt, false},
		{"mint via ID_LIKE", "ID=linuxmint\nID_LIKE=\"ubuntu debian\"\n", FamilyApt, false},
		{"fedora", "ID=fedora\n", FamilyDnf, false},
		{"rocky", "ID=\"rocky\"\nID_LIKE=\"rhel centos fedora\"\n", FamilyDnf, false},
		{"arch", "ID=arch\n", FamilyPacman, false},
		{"manjaro", "ID=manjaro\nID_LIKE=arch\n", FamilyPacman, false},
		{"alpine", "ID=alpine\nPRETTY_NAME=\"Alpine Linux v3.20\"\n", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DetectFamily(tt.release)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetectFamily() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnsupportedDistro) {
				t.Errorf("error = %v, want ErrUnsupportedDistro", err)
			}
			if got != tt.want {
				t.Errorf("DetectFamily() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestManager_Commands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		family  Family
		install string
		update  string
		upgrade string
		remove  string
	}{
		{FamilyApt, "apt-get install -y git curl", "apt-get update", "apt-get upgrade -y", "apt-get remove -y git"},
		{FamilyDnf, "dnf -y install git curl", "dnf -y makecache", "dnf -y upgrade", "dnf -y remove git"},
		{FamilyPacman, "pacman -S --noconfirm --needed git curl", "pacman -Sy --noconfirm", "pacman -Syu --noconfirm", "pacman -R --noconfirm git"},
	}
	for _, tt := range tests {
		t.Run(string(tt.family), func(t *testing.T) {
			t.Parallel()
			fake := testutil.NewFakeRunner()
			m, err := New(tt.family, fake)
			if err != nil {
				t.Fatal(err)
			}
			ctx := context.Background()
			if err := m.Update(ctx); err != nil {
				t.Fatal(err)
			}
			if err := m.Upgrade(ctx); err != nil {
				t.Fatal(err)
			}
			if err := m.Install(ctx, "git", "curl"); err != nil {
				t.Fatal(err)
			}
			if err := m.Remove(ctx, "git"); err != nil {
				t.Fatal(err)
			}
			want := []string{tt.update, tt.upgrade, tt.install, tt.remove}
			got := fake.Lines()
			if len(got) != len(want) {
				t.Fatalf("calls = %q, want %q", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("call %d = %q, want %q", i, got[i], want[i])
				}
			}
			for _, c := range fake.Calls() {
				if !c.Command.Sudo {
					t.Errorf("%q should run with sudo", c.Line)
				}
			}
		})
	}
}

func TestManager_AptEnvironment(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner()
	m, _ := New(FamilyApt, fake)
	if err := m.Install(context.Background(), "git"); err != nil {
		t.Fatal(err)
	}
	call, _ := fake.Find("apt-get")
	if got := runner.FormatCommand(call.Command); got != "sudo DEBIAN_FRONTEND=noninteractive apt-get install -y git" {
		t.Errorf("FormatCommand() = %q", got)
	}
}

func TestManager_InstallNothing(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner()
	m, _ := New(FamilyDnf, fake)
	if err := m.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("no command expected, got %q", fake.Lines())
	}
}

func TestManager_InstallFailure(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner().On("pacman -S", testutil.Response{ExitCode: 1, Stderr: "error: target not found: nope"})
	m, _ := New(FamilyPacman, fake)
	err := m.Install(context.Background(), "nope")
	if !errors.Is(err, runner.ErrCommandFailed) {
		t.Errorf("Install() error = %v, want ErrCommandFailed", err)
	}
}

func TestManager_IsInstalled(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner().
		On("dpkg-query -W -f=${Status} git", testutil.Response{Stdout: "install ok installed"}).
		On("dpkg-query -W -f=${Status} vim", testutil.Response{Stdout: "deinstall ok config-files"}).
		On("dpkg-query -W -f=${Status} nope", testutil.Response{ExitCode: 1})
	m, _ := New(FamilyApt, fake)
	ctx := context.Background()

	if !m.IsInstalled(ctx, "git") {
		t.Error("git should be installed")
	}
	if m.IsInstalled(ctx, "vim") {
		t.Error("removed package reported installed")
	}
	if m.IsInstalled(ctx, "nope") {
		t.Error("unknown package reported installed")
	}
	for _, c := range fake.Calls() {
		if !c.Command.ReadOnly {
			t.Errorf("%q should be read-only", c.Line)
		}
	}

	rpm := testutil.NewFakeRunner().On("rpm -q htop", testutil.Response{ExitCode: 1})
	dnf, _ := New(FamilyDnf, rpm)
	if dnf.IsInstalled(ctx, "htop") || !dnf.IsInstalled(ctx, "git") {
		t.Error("rpm -q exit status should decide")
	}
}

func TestNew_Unsupported(t *testing.T) {
	t.Parallel()
	if _, err := New("zypper", testutil.NewFakeRunner()); !errors.Is(err, ErrUnsupportedDistro) {
		t.Errorf("New() error = %v", err)
	}
}
