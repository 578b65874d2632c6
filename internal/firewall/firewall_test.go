// SPDX-License-Identifier: MPL-2.0

package firewall

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/testutil"
	"github.com/hostkit/hostkit/internal/ui"
)

func newTestFirewall(t *testing.T, r runner.Runner) (*Firewall, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	f := New(r, ui.NewPrinter(&out, nil, false), log.New(io.Discard))
	f.RulesDir = t.TempDir()
	return f, &out
}

func TestFirewall_Rules(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner()
	f, _ := newTestFirewall(t, fake)
	ctx := context.Background()

	steps := []func() error{
		func() error { return f.Allow(ctx, "80", "tcp", "") },
		func() error { return f.Allow(ctx, "21", "", "10.0.0.5/24") },
		func() error { return f.Deny(ctx, "3306", "", "") },
		func() error { return f.DeleteRule(ctx, "allow", "80/tcp") },
		func() error { return f.Enable(ctx, "22") },
		func() error { return f.Reload(ctx) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	want := []string{
		"ufw allow 80/tcp",
		"ufw allow from 10.0.0.0/24 to any port 21",
		"ufw deny 3306",
		"ufw --force delete allow 80/tcp",
		"ufw allow 22/tcp",
		"ufw --force enable",
		"ufw reload",
	}
	got := fake.Lines()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestFirewall_InvalidInput(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner()
	f, _ := newTestFirewall(t, fake)
	ctx := context.Background()

	if err := f.Allow(ctx, "", "", ""); !errors.Is(err, ErrInvalidPort) {
		t.Errorf("empty port error = %v", err)
	}
	if err := f.Allow(ctx, "70000", "", ""); !errors.Is(err, ErrInvalidPort) {
		t.Errorf("out of range port error = %v", err)
	}
	if err := f.Allow(ctx, "22", "", "not-an-ip"); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("bad source error = %v", err)
	}
	if err := f.Allow(ctx, "ssh", "", ""); err != nil {
		t.Errorf("service names are valid: %v", err)
	}
	if len(fake.Lines()) != 1 {
		t.Errorf("only the valid rule should run: %q", fake.Lines())
	}
}

func TestFirewall_MissingUFW(t *testing.T) {
	t.Parallel()

	f, _ := newTestFirewall(t, testutil.NewFakeRunner().Missing("ufw"))
	if _, err := f.Status(context.Background()); !errors.Is(err, runner.ErrNotFound) {
		t.Errorf("Status() error = %v", err)
	}
}

func TestNormalizeSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"10.0.0.7", "10.0.0.7", false},
		{" 192.168.1.77/24 ", "192.168.1.0/24", false},
		{"100.64.0.0/10", "100.64.0.0/10", false},
		{"2001:db8::1", "2001:db8::1", false},
		{"2001:db8::/32", "2001:db8::/32", false},
		{"10.0.0.0/33", "", true},
		{"example.com", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeSource(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("NormalizeSource(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestPlanHarden(t *testing.T) {
	t.Parallel()

	st := ParseStatus(activeStatus)
	steps, err := PlanHarden(st, HardenPlan{Port: "22", Proto: "tcp", Sources: []string{"10.0.0.0/8", "100.64.0.0/10"}})
	if err != nil {
		t.Fatalf("PlanHarden() error = %v", err)
	}
	var lines []string
	for _, s := range steps {
		lines = append(lines, strings.Join(s, " "))
	}
	want := []string{
		"--force delete allow 22/tcp",
		"allow from 10.0.0.0/8 to any port 22 proto tcp",
		"allow from 100.64.0.0/10 to any port 22 proto tcp",
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("steps =\n%s", strings.Join(lines, "\n"))
	}

	if _, err := PlanHarden(st, HardenPlan{Port: "22"}); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("no sources error = %v", err)
	}
	if _, err := PlanHarden(st, HardenPlan{Port: "22", Sources: []string{"bogus"}}); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("bad source error = %v", err)
	}
}

func TestPlanHarden_PortInsideRange(t *testing.T) {
	t.Parallel()

	st := ParseStatus(activeStatus)
	steps, err := PlanHarden(st, HardenPlan{Port: "40050", Proto: "tcp", Sources: []string{"10.0.0.0/24"}})
	if err != nil {
		t.Fatalf("PlanHarden() error = %v", err)
	}
	for _, s := range steps {
		if slices.Contains(s, "delete") {
			t.Errorf("range rule deleted for a single port: %q", s)
		}
	}
	if len(steps) != 1 {
		t.Errorf("steps = %q, want only the source rule", steps)
	}
	if got := st.RangesFromAnywhere("40050/tcp"); !slices.Equal(got, []string{"40000:40100/tcp"}) {
		t.Errorf("RangesFromAnywhere() = %q", got)
	}

	fake := testutil.NewFakeRunner().On("ufw status", testutil.Response{Stdout: activeStatus})
	f, out := newTestFirewall(t, runner.NewDryRunner(&bytes.Buffer{}, fake))
	if err := f.Harden(context.Background(), HardenPlan{Port: "40050", Proto: "tcp", Sources: []string{"10.0.0.0/24"}}); err != nil {
		t.Fatalf("Harden() error = %v", err)
	}
	if !strings.Contains(out.String(), "stays open to everyone through the rule 40000:40100/tcp") {
		t.Errorf("missing range warning:\n%s", out)
	}
}

func TestFirewall_HardenDryRun(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner().On("ufw status", testutil.Response{Stdout: activeStatus})
	var printed bytes.Buffer
	f, out := newTestFirewall(t, runner.NewDryRunner(&printed, fake))

	if err := f.Harden(context.Background(), HardenPlan{Port: "21", Sources: []string{"192.168.1.0/24"}}); err != nil {
		t.Fatalf("Harden() error = %v", err)
	}
	if got := fake.Lines(); len(got) != 1 || got[0] != "ufw status" {
		t.Errorf("only the status probe should execute, got %q", got)
	}
	if !strings.Contains(printed.String(), "[dry-run] sudo ufw allow from 192.168.1.0/24 to any port 21") {
		t.Errorf("dry-run output = %q", printed.String())
	}
	if !strings.Contains(out.String(), "restricted") {
		t.Errorf("output = %q", out.String())
	}
}

func TestFirewall_BackupRestore(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner().On("iptables-save", testutil.Response{Stdout: "*filter\nCOMMIT\n"})
	f, _ := newTestFirewall(t, fake)
	testutil.MustWriteFile(t, filepath.Join(f.RulesDir, "user.rules"), "original user rules\n")
	testutil.MustWriteFile(t, filepath.Join(f.RulesDir, "before.rules"), "before\n")
	backupDir := t.TempDir()
	ctx := context.Background()

	older, err := f.Backup(ctx, backupDir, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if !strings.HasPrefix(older.ID, "20260102-030405-") {
		t.Errorf("ID = %q", older.ID)
	}
	if len(older.Files) != 3 {
		t.Errorf("Files = %q, want user.rules, before.rules and the iptables dump", older.Files)
	}

	testutil.MustWriteFile(t, filepath.Join(f.RulesDir, "user.rules"), "changed\n")
	newer, err := f.Backup(ctx, backupDir, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}

	list, err := ListBackups(backupDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("ListBackups() order = %+v", list)
	}
	if list[1].Size != older.Size || list[1].Size == 0 {
		t.Errorf("Size = %d, want %d", list[1].Size, older.Size)
	}

	if _, err := f.Restore(ctx, backupDir, "20260102"); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got := testutil.MustReadFile(t, filepath.Join(f.RulesDir, "user.rules")); got != "original user rules\n" {
		t.Errorf("user.rules = %q", got)
	}
	if !fake.Called("ufw reload") {
		t.Error("Restore() should reload ufw")
	}

	if _, err := f.Restore(ctx, backupDir, "2026"); !errors.Is(err, ErrBackupNotFound) {
		t.Errorf("ambiguous id error = %v", err)
	}
	if b, err := FindBackup(backupDir, "latest"); err != nil || b.ID != newer.ID {
		t.Errorf("FindBackup(latest) = %v, %v", b.ID, err)
	}
}

func TestFirewall_BackupEmpty(t *testing.T) {
	t.Parallel()

	f, _ := newTestFirewall(t, testutil.NewFakeRunner().Missing("iptables-save"))
	if _, err := f.Backup(context.Background(), t.TempDir(), time.Now()); err == nil {
		t.Error("Backup() without rule files should fail")
	}
	list, err := ListBackups(filepath.Join(t.TempDir(), "missing"))
	if err != nil || len(list) != 0 {
		t.Errorf("ListBackups(missing) = %v, %v", list, err)
	}
}
