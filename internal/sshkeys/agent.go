// SPDX-License-Identifier: MPL-2.0

package sshkeys

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/hostkit/hostkit/internal/issue"
	"github.com/hostkit/hostkit/internal/rcfile"
	"github.com/hostkit/hostkit/internal/remote"
	"github.com/hostkit/hostkit/internal/runner"
)

// AgentBlockMarker names the shell rc block that starts ssh-agent.
const AgentBlockMarker = "ssh-agent"

// AddToAgent loads the private key at path into the running ssh-agent. The
// command runs on a terminal so ssh-add can prompt for a passphrase.
func (k *Keys) AddToAgent(ctx context.Context, path string) error {
	if k.env("SSH_AUTH_SOCK") == "" {
		return issue.NewErrorContext().
			WithOperation("add key to ssh-agent").
			WithResource(path).
			WithSuggestions(
				`Start an agent with: eval "$(ssh-agent -s)"`,
				"Or run 'hostkit ssh-key add --persist' to start one from your shell rc",
			).
			WithIssue(issue.SSHAgentNotRunningId).
			Wrap(errors.New("SSH_AUTH_SOCK is not set")).
			BuildError()
	}
	cmd := runner.Cmd("ssh-add", path)
	cmd.TTY = true
	if _, err := runner.RunChecked(ctx, k.Runner, cmd); err != nil {
		return issue.WrapWithContext(err, "add key to ssh-agent", path)
	}
	k.Printer.Success("Added %s to ssh-agent", path)
	return nil
}

// AgentRCLines returns shell lines that start an agent when none is running
// and load keyPath into it.
func AgentRCLines(keyPath string) []string {
	return []string{
		`if [ -z "$SSH_AUTH_SOCK" ]; then`,
		`    eval "$(ssh-agent -s)" >/dev/null`,
		`fi`,
		`ssh-add -l >/dev/null 2>&1 || ssh-add ` + runner.Quote(keyPath) + ` 2>/dev/null`,
	}
}

// PersistAgent writes the agent autostart block into the user's shell rc file.
func (k *Keys) PersistAgent(keyPath, shell string) (string, bool, error) {
	rc := rcfile.DefaultShellRC(k.Home, shell)
	changed, err := rcfile.EnsureBlock(rc, AgentBlockMarker, AgentRCLines(keyPath))
	if err != nil {
		return rc, false, issue.WrapWithContext(err, "persist ssh-agent startup", rc)
	}
	return rc, changed, nil
}

// CopyID installs the public half of keyPath on target with ssh-copy-id.
func (k *Keys) CopyID(ctx context.Context, keyPath, target string, port int) error {
	loc, err := remote.ParseTarget(target)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("copy ssh key").
			WithResource(target).
			WithSuggestion("Use the form user@host").
			WithIssue(issue.InvalidRemotePathId).
			Wrap(err).
			BuildError()
	}
	pub := keyPath
	if !strings.HasSuffix(pub, ".pub") {
		pub += ".pub"
	}
	if !fileExists(pub) {
		return issue.WrapWithContext(errors.New("public key not found"), "copy ssh key", pub)
	}

	args := []string{"-i", pub}
	if port > 0 && port != 22 {
		args = append(args, "-p", strconv.Itoa(port))
	}
	args = append(args, loc.SSHTarget())
	cmd := runner.Cmd("ssh-copy-id", args...)
	cmd.TTY = true
	if _, err := runner.RunChecked(ctx, k.Runner, cmd); err != nil {
		return issue.WrapWithContext(err, "copy ssh key", loc.SSHTarget())
	}
	k.Printer.Success("Installed %s on %s", pub, loc.SSHTarget())
	return nil
}

// TestConnection runs a non-interactive "ssh target true" to confirm key
// based login works.
func (k *Keys) TestConnection(ctx context.Context, target string, port int, identity string) error {
	loc, err := remote.ParseTarget(target)
	if err != nil {
		return err
	}
	args := []string{"-o", "BatchMode=yes", "-o", "ConnectTimeout=5"}
	if port > 0 && port != 22 {
		args = append(args, "-p", strconv.Itoa(port))
	}
	if identity != "" {
		args = append(args, "-i", identity)
	}
	args = append(args, loc.SSHTarget(), "true")
	if _, err := runner.RunChecked(ctx, k.Runner, runner.Probe("ssh", args...)); err != nil {
		return issue.NewErrorContext().
			WithOperation("test ssh login").
			WithResource(loc.SSHTarget()).
			WithSuggestion("Copy your key first with 'hostkit ssh-key copy " + loc.SSHTarget() + "'").
			Wrap(err).
			BuildError()
	}
	k.Printer.Success("Key-based login to %s works", loc.SSHTarget())
	return nil
}

func (k *Keys) env(key string) string {
	if k.getenv == nil {
		return ""
	}
	return k.getenv(key)
}
