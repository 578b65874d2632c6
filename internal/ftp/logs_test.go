// SPDX-License-Identifier: MPL-2.0

package ftp

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/hostkit/hostkit/internal/testutil"
)

const vsftpdLog = `Sat Mar 14 09:00:01 2026 [pid 101] CONNECT: Client "10.0.0.2"
Sat Mar 14 09:00:02 2026 [pid 100] [alice] OK LOGIN: Client "10.0.0.2"
Sat Mar 14 09:01:00 2026 [pid 103] [bob] FAIL LOGIN: Client "10.0.0.3"
Sat Mar 14 09:02:00 2026 [pid 104] [alice] OK UPLOAD: Client "10.0.0.2", "/files/report.pdf"
Sat Mar 14 09:03:00 2026 [pid 105] [carol] FAIL LOGIN: Client "10.0.0.4"
Sat Mar 14 09:04:00 2026 [pid 106] [alice] OK LOGIN: Client "10.0.0.2"
`

func TestLogViews(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testutil.NewFakeRunner())
	path := filepath.Join(m.LogDir, "vsftpd.log")
	testutil.MustWriteFile(t, path, vsftpdLog)

	ok, err := m.RecentLogins(20)
	if err != nil {
		t.Fatal(err)
	}
	if len(ok) != 2 {
		t.Errorf("RecentLogins() = %q", ok)
	}

	failed, err := m.FailedLogins(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || !strings.Contains(failed[0], "carol") {
		t.Errorf("FailedLogins(1) = %q", failed)
	}

	activity, err := m.UserActivity("alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(activity) != 3 {
		t.Errorf("UserActivity() = %q", activity)
	}

	errs, err := ErrorLines(path, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 2 {
		t.Errorf("ErrorLines() = %q", errs)
	}

	last, err := ReadLog(path, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(last) != 2 || !strings.Contains(last[1], "pid 106") {
		t.Errorf("ReadLog(2) = %q", last)
	}
}

func TestUserActivity_FallsBackToSyslog(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testutil.NewFakeRunner())
	testutil.MustWriteFile(t, filepath.Join(m.LogDir, "syslog"), "vsftpd: alice connected\nkernel: noise\n")

	lines, err := m.UserActivity("ALICE", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 {
		t.Errorf("UserActivity() = %q", lines)
	}
}

func TestLogSources(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testutil.NewFakeRunner())
	testutil.MustWriteFile(t, filepath.Join(m.LogDir, "auth.log"), "x\n")

	var present []string
	for _, s := range m.LogSources() {
		if s.Exists() {
			present = append(present, s.Key)
		}
	}
	if strings.Join(present, ",") != "3" {
		t.Errorf("present sources = %q", present)
	}
}
