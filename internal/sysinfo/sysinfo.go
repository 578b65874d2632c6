// SPDX-License-Identifier: MPL-2.0

// Package sysinfo answers questions about the local host: privileges, the
// invoking user, the hostname and kernel parameters.
package sysinfo

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/hostkit/hostkit/internal/issue"
)

var (
	geteuid     = os.Geteuid
	currentUser = user.Current
)

// IsRoot reports whether the process runs with effective UID 0.
func IsRoot() bool {
	return geteuid() == 0
}

// CurrentUser returns the human user behind the process. Under sudo this is
// SUDO_USER rather than root.
func CurrentUser() string {
	if IsRoot() {
		if su := os.Getenv("SUDO_USER"); su != "" {
			return su
		}
	}
	if u, err := currentUser(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

// HomeDir returns the home directory of CurrentUser.
func HomeDir() (string, error) {
	name := CurrentUser()
	if IsRoot() && name != "root" {
		u, err := user.Lookup(name)
		if err == nil {
			return u.HomeDir, nil
		}
	}
	return os.UserHomeDir()
}

// Hostname returns the short hostname, or "localhost" when it cannot be read.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "localhost"
	}
	if short, _, ok := strings.Cut(h, "."); ok {
		return short
	}
	return h
}

// RequireRoot fails with an actionable error unless running as root.
func RequireRoot(operation string) error {
	if IsRoot() {
		return nil
	}
	return issue.NewErrorContext().
		WithOperation(operation).
		WithSuggestion("Re-run the command with sudo").
		WithIssue(issue.NotRootId).
		Wrap(fmt.Errorf("must be run as root (effective uid %d)", geteuid())).
		BuildError()
}

// ParseSysctl parses "key = value" lines as printed by sysctl and found in
// /etc/sysctl.d drop-ins. Comments and blank lines are skipped.
func ParseSysctl(out string) map[string]string {
	values := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return values
}
