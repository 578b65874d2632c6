// SPDX-License-Identifier: MPL-2.0

// Package service controls systemd units through systemctl and builds
// journalctl invocations.
package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/hostkit/hostkit/internal/runner"
)

// statusLimit bounds the status excerpt shown in diagnostics.
const statusLimit = 500

// Systemd wraps systemctl.
type Systemd struct {
	r runner.Runner
}

// NewSystemd creates a Systemd using r.
func NewSystemd(r runner.Runner) *Systemd {
	return &Systemd{r: r}
}

// IsActive reports whether unit is active. Any failure to query counts as inactive.
func (s *Systemd) IsActive(ctx context.Context, unit string) bool {
	res, err := s.r.Run(ctx, runner.Probe("systemctl", "is-active", unit))
	return err == nil && res.Success() && strings.TrimSpace(res.Stdout) == "active"
}

// IsEnabled reports whether unit starts at boot.
func (s *Systemd) IsEnabled(ctx context.Context, unit string) bool {
	res, err := s.r.Run(ctx, runner.Probe("systemctl", "is-enabled", unit))
	return err == nil && res.Success() && strings.TrimSpace(res.Stdout) == "enabled"
}

// Exists reports whether systemd knows unit.
func (s *Systemd) Exists(ctx context.Context, unit string) bool {
	res, err := s.r.Run(ctx, runner.Probe("systemctl", "list-unit-files", unit+".service", "--no-legend"))
	return err == nil && res.Success() && strings.TrimSpace(res.Stdout) != ""
}

// Start starts unit.
func (s *Systemd) Start(ctx context.Context, unit string) error {
	return s.ctl(ctx, "start", unit)
}

// Stop stops unit.
func (s *Systemd) Stop(ctx context.Context, unit string) error {
	return s.ctl(ctx, "stop", unit)
}

// Restart restarts unit.
func (s *Systemd) Restart(ctx context.Context, unit string) error {
	return s.ctl(ctx, "restart", unit)
}

// Enable enables unit at boot.
func (s *Systemd) Enable(ctx context.Context, unit string) error {
	return s.ctl(ctx, "enable", unit)
}

// EnableNow enables and starts unit in one call.
func (s *Systemd) EnableNow(ctx context.Context, unit string) error {
	_, err := runner.RunChecked(ctx, s.r, runner.Command{
		Name: "systemctl", Args: []string{"enable", "--now", unit}, Sudo: true,
	})
	return err
}

// Status returns the first 500 bytes of "systemctl status". The command
// exits non-zero for stopped units, so its exit code is ignored.
func (s *Systemd) Status(ctx context.Context, unit string) (string, error) {
	res, err := s.r.Run(ctx, runner.Probe("systemctl", "status", unit, "--no-pager"))
	if err != nil {
		return "", err
	}
	out := res.Stdout
	if len(out) > statusLimit {
		out = out[:statusLimit]
	}
	return out, nil
}

func (s *Systemd) ctl(ctx context.Context, verb, unit string) error {
	_, err := runner.RunChecked(ctx, s.r, runner.Command{
		Name: "systemctl", Args: []string{verb, unit}, Sudo: true,
	})
	return err
}

// JournalOptions selects journal entries.
type JournalOptions struct {
	Unit   string
	Lines  int
	Follow bool
	// Since is passed to --since, e.g. "1 hour ago".
	Since string
	// Priority is passed to -p, e.g. "err".
	Priority string
}

// Journal builds a journalctl command. Follow commands stream until the
// context is cancelled.
func Journal(opts JournalOptions) runner.Command {
	args := []string{}
	if opts.Unit != "" {
		args = append(args, "-u", opts.Unit)
	}
	if opts.Lines > 0 {
		args = append(args, "-n", strconv.Itoa(opts.Lines))
	}
	if opts.Since != "" {
		args = append(args, "--since", opts.Since)
	}
	if opts.Priority != "" {
		args = append(args, "-p", opts.Priority)
	}
	args = append(args, "--no-pager")
	if opts.Follow {
		args = append(args, "-f")
		return runner.Command{Name: "journalctl", Args: args, Stream: true, ReadOnly: true}
	}
	return runner.Probe("journalctl", args...)
}
