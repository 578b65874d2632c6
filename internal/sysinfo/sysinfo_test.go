// SPDX-License-Identifier: MPL-2.0

package sysinfo

import (
	"errors"
	"os/user"
	"testing"

	"github.com/hostkit/hostkit/internal/issue"
)

func TestParseSysctl(t *testing.T) {
	t.Parallel()

	got := ParseSysctl(`# tailscale forwarding
net.ipv4.ip_forward = 1
net.ipv6.conf.all.forwarding=0

; legacy comment
garbage line
`)
	if len(got) != 2 {
		t.Fatalf("got %d keys: %v", len(got), got)
	}
	if got["net.ipv4.ip_forward"] != "1" || got["net.ipv6.conf.all.forwarding"] != "0" {
		t.Errorf("ParseSysctl = %v", got)
	}
}

// Tests below swap package-level hooks and therefore do not run in parallel.

func TestRequireRoot(t *testing.T) {
	orig := geteuid
	t.Cleanup(func() { geteuid = orig })

	geteuid = func() int { return 0 }
	if err := RequireRoot("create FTP user"); err != nil {
		t.Errorf("RequireRoot as root = %v", err)
	}

	geteuid = func() int { return 1000 }
	err := RequireRoot("create FTP user")
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %T, want *issue.ActionableError", err)
	}
	if ae.Operation != "create FTP user" || ae.IssueID != issue.NotRootId {
		t.Errorf("ActionableError = %+v", ae)
	}
}

func TestCurrentUser_PrefersSudoUser(t *testing.T) {
	origEuid, origUser := geteuid, currentUser
	t.Cleanup(func() { geteuid, currentUser = origEuid, origUser })

	currentUser = func() (*user.User, error) { return &user.User{Username: "root"}, nil }
	geteuid = func() int { return 0 }
	t.Setenv("SUDO_USER", "alice")
	if got := CurrentUser(); got != "alice" {
		t.Errorf("CurrentUser under sudo = %q, want alice", got)
	}

	geteuid = func() int { return 1000 }
	currentUser = func() (*user.User, error) { return &user.User{Username: "bob"}, nil }
	if got := CurrentUser(); got != "bob" {
		t.Errorf("CurrentUser = %q, want bob", got)
	}
}

func TestHostname_NotEmpty(t *testing.T) {
	t.Parallel()

	if Hostname() == "" {
		t.Error("Hostname() returned empty string")
	}
}
