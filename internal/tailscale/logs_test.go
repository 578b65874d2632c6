// SPDX-License-Identifier: MPL-2.0

package tailscale

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hostkit/hostkit/internal/testutil"
	"github.com/hostkit/hostkit/internal/tui"
)

func journalRunner() *testutil.FakeRunner {
	return testutil.NewFakeRunner().
		On("journalctl -u tailscaled -n 50", testutil.Response{Stdout: journalOut}).
		On("journalctl -u tailscaled -n 30", testutil.Response{Stdout: journalOut})
}

func TestJournalViews(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, journalRunner())
	ctx := t.Context()

	all, err := m.JournalLines(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("JournalLines() = %q", all)
	}

	filtered, err := m.JournalLines(ctx, "WGENGINE", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 {
		t.Errorf("JournalLines(wgengine) = %q", filtered)
	}

	conns, err := m.ConnectionLines(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(conns) != 2 {
		t.Errorf("ConnectionLines() = %q", conns)
	}

	errs, err := m.ErrorLines(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 1 || !strings.Contains(errs[0], "resolver timeout") {
		t.Errorf("ErrorLines() = %q", errs)
	}

	auth, err := m.AuthLines(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(auth) != 1 || !strings.Contains(auth[0], "authRoutine") {
		t.Errorf("AuthLines() = %q", auth)
	}
}

func TestJournalLines_Failure(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner().On("journalctl", testutil.Response{ExitCode: 1, Stderr: "No journal files were found."})
	m, _ := newTestManager(t, fake)
	if _, err := m.JournalLines(t.Context(), "", 10); err == nil {
		t.Error("JournalLines() succeeded")
	}
}

func TestSyslogAndFiles(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testutil.NewFakeRunner())
	if _, err := m.LogFiles(); !errors.Is(err, ErrNoLogDir) {
		t.Errorf("LogFiles() without dir = %v", err)
	}

	testutil.MustWriteFile(t, m.SyslogPath, "kernel: eth0 up\nweb1 tailscaled[812]: started\ncron: job\nTailscale: ready\n")
	lines, err := m.SyslogLines(50)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Errorf("SyslogLines() = %q", lines)
	}

	testutil.MustWriteFile(t, filepath.Join(m.LogDir, "b.log"), "one\ntwo\nthree\n")
	testutil.MustWriteFile(t, filepath.Join(m.LogDir, "a.log"), "x\n")
	testutil.MustWriteFile(t, filepath.Join(m.LogDir, "notes.txt"), "x\n")
	files, err := m.LogFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "a.log" {
		t.Errorf("LogFiles() = %q", files)
	}

	last, err := FileLines(files[1], "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(last, ",") != "two,three" {
		t.Errorf("FileLines() = %q", last)
	}
}

func TestFollowJournal(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner().On("journalctl -u tailscaled --no-pager -f", testutil.Response{
		Stdout: "peer laptop connected\nmagicsock: noise\npeer backup lost",
	})
	m, _ := newTestManager(t, fake)

	var w bytes.Buffer
	if err := m.FollowJournal(t.Context(), "peer", &w); err != nil {
		t.Fatal(err)
	}
	if w.String() != "peer laptop connected\npeer backup lost\n" {
		t.Errorf("followed = %q", w.String())
	}
	call, _ := fake.Find("journalctl")
	if call.Command.Stream || !call.Command.ReadOnly {
		t.Errorf("follow command = %+v", call.Command)
	}
}

func TestFollowJournal_Cancelled(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testutil.NewFakeRunner())
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := m.FollowJournal(ctx, "", &bytes.Buffer{}); err != nil {
		t.Errorf("FollowJournal() after cancel = %v", err)
	}
}

func TestLogMenu(t *testing.T) {
	t.Parallel()

	m, out := newTestManager(t, journalRunner())
	var w bytes.Buffer
	pr := tui.NewScripted(
		"journal", "peer", "50",
		"auth",
		"files",
		"q",
	)
	if err := m.LogMenu(t.Context(), pr, &w); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(w.String()), "\n")
	if len(lines) != 3 || !strings.Contains(lines[2], "authRoutine") {
		t.Errorf("lines = %q", lines)
	}
	text := out.String()
	if !strings.Contains(text, ErrNoLogDir.Error()) || !strings.Contains(text, "Goodbye!") {
		t.Errorf("output:\n%s", text)
	}
}
