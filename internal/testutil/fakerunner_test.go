// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hostkit/hostkit/internal/runner"
)

func TestFakeRunner_LongestPrefixWins(t *testing.T) {
	t.Parallel()

	f := NewFakeRunner().
		On("systemctl", Response{Stdout: "generic"}).
		On("systemctl is-active", Response{Stdout: "active", ExitCode: 0})

	res, err := f.Run(context.Background(), runner.Cmd("systemctl", "is-active", "ufw"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stdout != "active" {
		t.Errorf("Stdout = %q, want active", res.Stdout)
	}
}

func TestFakeRunner_QueuedResponses(t *testing.T) {
	t.Parallel()

	f := NewFakeRunner().
		On("id alice", Response{ExitCode: 1}).
		On("id alice", Response{Stdout: "uid=1001"})

	ctx := context.Background()
	first, _ := f.Run(ctx, runner.Cmd("id", "alice"))
	second, _ := f.Run(ctx, runner.Cmd("id", "alice"))
	third, _ := f.Run(ctx, runner.Cmd("id", "alice"))

	if first.ExitCode != 1 || second.Stdout != "uid=1001" || third.Stdout != "uid=1001" {
		t.Errorf("unexpected sequence: %d %q %q", first.ExitCode, second.Stdout, third.Stdout)
	}
}

func TestFakeRunner_RecordsInputAndMissing(t *testing.T) {
	t.Parallel()

	f := NewFakeRunner().Missing("ufw")
	ctx := context.Background()

	cmd := runner.Command{Name: "chpasswd", Stdin: strings.NewReader("bob:secret\n")}
	if _, err := f.Run(ctx, cmd); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	call, ok := f.Find("chpasswd")
	if !ok || call.Input != "bob:secret\n" {
		t.Errorf("Find(chpasswd) = %+v, %v", call, ok)
	}

	if _, err := f.LookPath("ufw"); !errors.Is(err, runner.ErrNotFound) {
		t.Errorf("LookPath(ufw) error = %v, want ErrNotFound", err)
	}
	if _, err := f.Run(ctx, runner.Cmd("ufw", "status")); !errors.Is(err, runner.ErrNotFound) {
		t.Errorf("Run(ufw) error = %v, want ErrNotFound", err)
	}
}
