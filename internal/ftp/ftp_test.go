// SPDX-License-Identifier: MPL-2.0

package ftp

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/pkgmgr"
	"github.com/hostkit/hostkit/internal/testutil"
	"github.com/hostkit/hostkit/internal/ui"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestManager(t *testing.T, fake *testutil.FakeRunner) (*Manager, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.FTP.FTPRoot = filepath.Join(root, "srv")
	cfg.FTP.AllowedUsersFile = filepath.Join(root, "vsftpd.userlist")
	cfg.FTP.ConfigPath = filepath.Join(root, "vsftpd.conf")
	cfg.Logging.CredentialsFile = filepath.Join(root, "secret", "credentials.csv")

	pm, err := pkgmgr.New(pkgmgr.FamilyApt, fake)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	m := NewManager(fake, ui.NewPrinter(&out, nil, true), log.New(io.Discard), cfg, pm)
	m.LogDir = filepath.Join(root, "log")
	m.Firewall.RulesDir = filepath.Join(root, "ufw")
	m.now = func() time.Time { return fixedNow }
	m.dial = func(string, string, time.Duration) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	return m, &out
}

// withUser scripts the NSS lookup for an existing account.
func withUser(fake *testutil.FakeRunner, name, home string) *testutil.FakeRunner {
	return fake.On("getent passwd "+name, testutil.Response{
		Stdout: name + ":x:1001:1001::" + home + ":/bin/bash\n",
	})
}

func TestReadUserList(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "userlist")
	testutil.MustWriteFile(t, path, "# allowed\nalice\n\n  bob  \n#carol\n")

	got, err := ReadUserList(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("ReadUserList() = %q", got)
	}

	if _, err := ReadUserList(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestParsePasswd(t *testing.T) {
	t.Parallel()

	a, err := ParsePasswd("alice:x:1001:1002:Alice:/srv/ftp/alice:/bin/bash\n")
	if err != nil {
		t.Fatal(err)
	}
	want := Account{Name: "alice", UID: "1001", GID: "1002", Home: "/srv/ftp/alice", Shell: "/bin/bash"}
	if a != want {
		t.Errorf("ParsePasswd() = %+v, want %+v", a, want)
	}
	if _, err := ParsePasswd("alice:x:1001"); err == nil {
		t.Error("short entry parsed without error")
	}
}

func TestStatDir(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner().
		On("stat -c %U:%G %a /srv/ftp", testutil.Response{Stdout: "root:root 755\n"}).
		On("stat -c %U:%G %a /gone", testutil.Response{ExitCode: 1, Stderr: "No such file"})
	m, _ := newTestManager(t, fake)

	info := m.statDir(t.Context(), "/srv/ftp")
	if !info.Exists || info.Owner != "root" || info.Group != "root" || info.Mode != "755" {
		t.Errorf("statDir(/srv/ftp) = %+v", info)
	}
	if m.statDir(t.Context(), "/gone").Exists {
		t.Error("missing directory reported as existing")
	}
}
