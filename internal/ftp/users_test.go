// SPDX-License-Identifier: MPL-2.0

package ftp

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hostkit/hostkit/internal/testutil"
)

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		wantErr string
	}{
		{"alice", ""},
		{"web-user_2", ""},
		{"", "cannot be empty"},
		{"ab", "at least 3"},
		{strings.Repeat("a", 33), "32 characters"},
		{"1abc", "start with a letter"},
		{"al ice", "only letters"},
		{"bob.smith", "only letters"},
		{"admin", "reserved"},
		{"Root", "reserved"},
	}
	for _, tt := range tests {
		err := ValidateUsername(tt.name)
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("ValidateUsername(%q) = %v", tt.name, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidUsername) || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("ValidateUsername(%q) = %v, want %q", tt.name, err, tt.wantErr)
		}
	}
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner().On("getent passwd", testutil.Response{ExitCode: 2})
	m, out := newTestManager(t, fake)
	ctx := context.Background()

	creds, err := m.CreateUser(ctx, "alice", "")
	if err != nil {
		t.Fatalf("CreateUser() error = %v\n%s", err, out)
	}
	if len(creds.Password) != m.Policy.Length {
		t.Errorf("generated password %q", creds.Password)
	}
	home := filepath.Join(m.Config.FTPRoot, "alice")
	if creds.Home != home || creds.Files != filepath.Join(home, FilesDir) {
		t.Errorf("creds = %+v", creds)
	}

	want := []string{
		"getent passwd alice",
		"useradd -m -d " + home + " -s /bin/bash -G ftpusers alice",
		"chpasswd",
		"mkdir -p " + creds.Files,
		"chown root:root " + home,
		"chmod 0755 " + home,
		"chown alice: " + creds.Files,
		"chmod 0755 " + creds.Files,
	}
	if got := fake.Lines(); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	call, _ := fake.Find("chpasswd")
	if call.Input != "alice:"+creds.Password+"\n" {
		t.Errorf("chpasswd input = %q", call.Input)
	}
	if !call.Command.Sudo {
		t.Error("chpasswd not run with sudo")
	}

	if _, err := m.CreateUser(ctx, "bob", "s3cret-Pass"); err != nil {
		t.Fatal(err)
	}

	users, _ := ReadUserList(m.Config.AllowedUsersFile)
	if strings.Join(users, ",") != "alice,bob" {
		t.Errorf("user list = %q", users)
	}

	info, err := os.Stat(m.Logging.CredentialsFile)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("credentials mode = %v", info.Mode().Perm())
	}
	f, err := os.Open(m.Logging.CredentialsFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0][0] != "Timestamp" {
		t.Fatalf("rows = %q", rows)
	}
	if rows[2][1] != "bob" || rows[2][2] != "s3cret-Pass" || rows[2][0] != "2026-03-14 09:26:53" {
		t.Errorf("bob row = %q", rows[2])
	}
}

func TestCreateUser_RollsBackOnFailure(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner().
		On("getent passwd", testutil.Response{ExitCode: 2}).
		On("chown root:root", testutil.Response{ExitCode: 1, Stderr: "operation not permitted"})
	m, _ := newTestManager(t, fake)

	_, err := m.CreateUser(context.Background(), "alice", "pw-Value-123")
	if err == nil {
		t.Fatal("CreateUser() succeeded")
	}
	if !fake.Called("userdel -r alice") {
		t.Errorf("no rollback in %q", fake.Lines())
	}
	if _, err := ReadUserList(m.Config.AllowedUsersFile); err == nil {
		t.Error("user list written despite failure")
	}
	if _, err := os.Stat(m.Logging.CredentialsFile); err == nil {
		t.Error("credentials logged despite failure")
	}
}

func TestCreateUser_Rejects(t *testing.T) {
	t.Parallel()

	fake := withUser(testutil.NewFakeRunner(), "alice", "/srv/ftp/alice")
	m, _ := newTestManager(t, fake)
	ctx := context.Background()

	if _, err := m.CreateUser(ctx, "ftp", ""); !errors.Is(err, ErrInvalidUsername) {
		t.Errorf("reserved name error = %v", err)
	}
	if _, err := m.CreateUser(ctx, "alice", ""); !errors.Is(err, ErrUserExists) {
		t.Errorf("existing user error = %v", err)
	}
	if fake.Called("useradd") {
		t.Error("useradd ran for a rejected user")
	}
}

func TestDeleteUser(t *testing.T) {
	t.Parallel()

	fake := withUser(testutil.NewFakeRunner(), "alice", "/srv/ftp/alice")
	m, _ := newTestManager(t, fake)
	testutil.MustWriteFile(t, m.Config.AllowedUsersFile, "alice\nbob\n")

	if err := m.DeleteUser(context.Background(), "alice", true); err != nil {
		t.Fatal(err)
	}
	if !fake.Called("userdel -r alice") {
		t.Errorf("calls = %q", fake.Lines())
	}
	if got := testutil.MustReadFile(t, m.Config.AllowedUsersFile); got != "bob\n" {
		t.Errorf("user list = %q", got)
	}

	if err := m.DeleteUser(context.Background(), "carol", false); !errors.Is(err, ErrUserMissing) {
		t.Errorf("missing user error = %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	fake := withUser(testutil.NewFakeRunner(), "alice", "/srv/ftp/alice")
	m, _ := newTestManager(t, fake)

	pw, err := m.ChangePassword(context.Background(), "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	call, ok := fake.Find("chpasswd")
	if !ok || call.Input != "alice:"+pw+"\n" {
		t.Errorf("chpasswd call = %+v", call)
	}
	if !strings.Contains(testutil.MustReadFile(t, m.Logging.CredentialsFile), pw) {
		t.Error("new password not logged")
	}
}

func TestListUsers(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner()
	m, _ := newTestManager(t, fake)
	withUser(fake, "alice", filepath.Join(m.Config.FTPRoot, "alice"))
	withUser(fake, "bob", filepath.Join(m.Config.FTPRoot, "bob"))
	testutil.MustWriteFile(t, m.Config.AllowedUsersFile, "alice\nbob\ncarol\n")
	testutil.MustMkdirAll(t, filepath.Join(m.Config.FTPRoot, "alice", FilesDir), 0o755)

	users, err := m.ListUsers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{StatusActive, StatusMissingDirs, StatusUserMissing}
	if len(users) != len(want) {
		t.Fatalf("users = %+v", users)
	}
	for i, u := range users {
		if u.Status != want[i] {
			t.Errorf("%s status = %q, want %q", u.Name, u.Status, want[i])
		}
	}
	if users[2].Home != "N/A" {
		t.Errorf("missing user home = %q", users[2].Home)
	}

	lines := RenderUserList(users)
	if len(lines) != 5 || !strings.Contains(lines[2], "alice") {
		t.Errorf("RenderUserList() = %q", lines)
	}
}

func TestUserInfo(t *testing.T) {
	t.Parallel()

	fake := withUser(testutil.NewFakeRunner(), "alice", "/srv/ftp/alice").
		On("id -nG alice", testutil.Response{Stdout: "alice ftpusers\n"}).
		On("stat -c %U:%G %a /srv/ftp/alice/files", testutil.Response{Stdout: "alice:alice 755\n"}).
		On("stat -c %U:%G %a /srv/ftp/alice", testutil.Response{Stdout: "root:root 755\n"})
	m, _ := newTestManager(t, fake)
	testutil.MustWriteFile(t, m.Config.AllowedUsersFile, "alice\n")

	d, err := m.UserInfo(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if d.UID != "1001" || d.Shell != "/bin/bash" || strings.Join(d.Groups, " ") != "alice ftpusers" {
		t.Errorf("details = %+v", d)
	}
	if d.HomeDir.Owner != "root" || d.FilesDir.Owner != "alice" || !d.InList {
		t.Errorf("dirs = %+v / %+v, in list %v", d.HomeDir, d.FilesDir, d.InList)
	}
	text := strings.Join(RenderUserInfo(d, m.Config.AllowedUsersFile), "\n")
	if !strings.Contains(text, "Present in") {
		t.Errorf("RenderUserInfo() =\n%s", text)
	}

	if _, err := m.UserInfo(context.Background(), "nobody-here"); !errors.Is(err, ErrUserMissing) {
		t.Errorf("missing user error = %v", err)
	}
}
