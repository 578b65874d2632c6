// SPDX-License-Identifier: MPL-2.0

package tailscale

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/hostkit/hostkit/internal/issue"
	"github.com/hostkit/hostkit/internal/runner"
)

const (
	maxScriptSize  = 1 << 20
	installTimeout = 10 * time.Minute
)

// ErrEmptyScript is returned for an installer download without content.
var ErrEmptyScript = errors.New("install script is empty")

// Setup installs Tailscale, enables forwarding when this node routes for
// others, logs in, selects the exit node and verifies the result. Login and
// exit node failures are reported as warnings so a later "tailscale up" can
// finish the job.
func (m *Manager) Setup(ctx context.Context) error {
	p := m.Printer
	p.Banner("TAILSCALE SETUP")

	p.Section("Installing Tailscale")
	if err := m.Install(ctx); err != nil {
		return err
	}

	if NeedsForwarding(m.Config) {
		p.Section("Enabling IP forwarding")
		if err := m.EnableForwarding(ctx); err != nil {
			return err
		}
	}

	p.Section("Starting tailscaled")
	if m.Systemd.IsActive(ctx, Unit) {
		p.Success("tailscaled is running")
	} else if err := m.Systemd.EnableNow(ctx, Unit); err != nil {
		return issue.WrapWithOperation(err, "start tailscaled")
	}

	p.Section("Authenticating")
	if err := m.Up(ctx); err != nil {
		p.Warn("Authentication did not complete: %v", err)
		p.Plain("  You can complete authentication later by running: sudo tailscale up")
	}

	if len(ExitNodeArgs(m.Network)) > 0 {
		p.Section("Configuring exit node")
		if err := m.ConfigureExitNode(ctx); err != nil {
			p.Warn("Could not select exit node %s: %v", m.Network.ExitNode, err)
		}
	}

	p.Section("Verifying")
	problems := m.Verify(ctx)
	for _, prob := range problems {
		p.Warn("%s", prob)
	}

	m.PrintSummary(ctx)
	return nil
}

// Install reports the installed version, or downloads the official install
// script, checks that it parses as shell and runs it with sh.
func (m *Manager) Install(ctx context.Context) error {
	p := m.Printer
	if runner.Exists(m.Runner, Binary) {
		version, _ := runner.Output(ctx, m.Runner, Binary, "version")
		first, _, _ := strings.Cut(version, "\n")
		p.Success("Tailscale is already installed (%s)", orNone(first))
		return nil
	}

	p.Info("Downloading %s", m.InstallURL)
	script, err := m.FetchInstallScript(ctx)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("download tailscale installer").
			WithResource(m.InstallURL).
			WithSuggestion("Check internet connectivity or install tailscale from your distribution's packages").
			Wrap(err).
			BuildError()
	}
	if err := ValidateScript(script); err != nil {
		return issue.WrapWithContext(err, "validate tailscale installer", m.InstallURL)
	}

	cmd := runner.Command{
		Name:    "sh",
		Stdin:   bytes.NewReader(script),
		Sudo:    true,
		Stream:  true,
		Timeout: installTimeout,
	}
	if _, err := runner.RunChecked(ctx, m.Runner, cmd); err != nil {
		return issue.WrapWithOperation(err, "run tailscale installer")
	}
	p.Success("Tailscale installed")
	return nil
}

// FetchInstallScript downloads the installer.
func (m *Manager) FetchInstallScript(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.InstallURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", m.InstallURL, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxScriptSize))
}

// ValidateScript checks that script is non-empty POSIX shell.
func ValidateScript(script []byte) error {
	if len(bytes.TrimSpace(script)) == 0 {
		return ErrEmptyScript
	}
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	if _, err := parser.Parse(bytes.NewReader(script), "install.sh"); err != nil {
		return fmt.Errorf("install script is not valid shell: %w", err)
	}
	return nil
}

// EnableForwarding turns on packet forwarding for the enabled address
// families now and persists it in a sysctl.d drop-in.
func (m *Manager) EnableForwarding(ctx context.Context) error {
	keys := ForwardingKeys(m.Network)
	if len(keys) == 0 {
		m.Printer.Warn("Forwarding requested but both IPv4 and IPv6 are disabled")
		return nil
	}
	var conf strings.Builder
	for _, k := range keys {
		if err := m.run(ctx, "sysctl", "-w", k+"=1"); err != nil {
			return issue.WrapWithOperation(err, "enable "+k)
		}
		fmt.Fprintf(&conf, "%s = 1\n", k)
		m.Printer.Success("Enabled %s", k)
	}

	if m.DryRun {
		m.Printer.Info("[dry-run] write %s", m.SysctlPath)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.SysctlPath), 0o755); err != nil {
		return issue.WrapWithOperation(err, "create "+filepath.Dir(m.SysctlPath))
	}
	if err := os.WriteFile(m.SysctlPath, []byte(conf.String()), 0o644); err != nil {
		return issue.WrapWithOperation(err, "write "+m.SysctlPath)
	}
	m.Printer.Success("Persisted forwarding in %s", m.SysctlPath)
	return nil
}

// Up runs "tailscale up" on the terminal so the login URL or browser flow
// reaches the user. It is skipped when the node is already logged in.
func (m *Manager) Up(ctx context.Context) error {
	if m.LoggedIn(ctx) {
		m.Printer.Success("Already authenticated")
		return nil
	}

	args := BuildUpArgs(m.Config)
	shown := runner.QuoteArgs(append([]string{Binary}, RedactArgs(args)...))
	if m.DryRun {
		m.Printer.Info("[dry-run] %s", shown)
		return nil
	}
	m.Printer.Info("Running: %s", shown)
	if m.Config.AuthKey == "" {
		m.Printer.Warn("Open the login URL printed below to authenticate this machine")
	}

	cmd := runner.Command{Name: Binary, Args: args, Sudo: true, TTY: true, Secrets: []string{m.Config.AuthKey}}
	if _, err := runner.RunChecked(ctx, m.Runner, cmd); err != nil {
		return err
	}
	m.Printer.Success("Tailscale authenticated")
	return nil
}

// ConfigureExitNode routes this node's traffic through the configured exit
// node.
func (m *Manager) ConfigureExitNode(ctx context.Context) error {
	args := ExitNodeArgs(m.Network)
	if args == nil {
		return nil
	}
	if err := m.run(ctx, Binary, args...); err != nil {
		return err
	}
	m.Printer.Success("Using exit node %s", m.Network.ExitNode)
	return nil
}

// Verify returns the problems left after setup. Passed checks are printed.
func (m *Manager) Verify(ctx context.Context) []string {
	var problems []string
	if runner.Exists(m.Runner, Binary) {
		m.Printer.Success("Tailscale binary found")
	} else {
		problems = append(problems, "Tailscale binary not found")
	}
	if m.Systemd.IsActive(ctx, Unit) {
		m.Printer.Success("tailscaled service is running")
	} else {
		problems = append(problems, "tailscaled service is not running")
	}
	if m.LoggedIn(ctx) {
		m.Printer.Success("Tailscale is authenticated")
	} else {
		problems = append(problems, "Tailscale is not authenticated")
	}
	return problems
}

// PrintSummary shows addresses, status, configuration and next steps.
func (m *Manager) PrintSummary(ctx context.Context) {
	p := m.Printer
	p.Banner("SETUP COMPLETE")

	if ip, err := runner.Output(ctx, m.Runner, Binary, "ip", "-4"); err == nil && ip != "" {
		p.KV("Tailscale IPv4", ip)
	}
	if ip, err := runner.Output(ctx, m.Runner, Binary, "ip", "-6"); err == nil && ip != "" {
		p.KV("Tailscale IPv6", ip)
	}
	if out, err := runner.Output(ctx, m.Runner, Binary, "status"); err == nil && out != "" {
		p.Section("Status")
		p.Plain("%s", out)
	}

	p.Box("CONFIGURATION", ConfigLines(m.Config, m.Network))
	p.Box("USEFUL COMMANDS", []string{
		"hostkit tailscale status       Show peers and addresses",
		"hostkit tailscale debug        Diagnose connectivity problems",
		"hostkit tailscale logs         View tailscaled logs",
		"sudo tailscale down            Disconnect from the tailnet",
	})
	p.Info("Admin console: %s", AdminURL)
}
