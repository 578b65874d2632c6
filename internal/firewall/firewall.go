// SPDX-License-Identifier: MPL-2.0

package firewall

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/hostkit/hostkit/internal/issue"
	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/ui"
)

// DefaultRulesDir holds ufw's rule files.
const DefaultRulesDir = "/etc/ufw"

var (
	// ErrInvalidSource is returned for sources that are neither an IP address
	// nor a CIDR prefix.
	ErrInvalidSource = errors.New("invalid source address")
	// ErrInvalidPort is returned for empty or malformed ports.
	ErrInvalidPort = errors.New("invalid port")
)

type (
	// Firewall drives ufw.
	Firewall struct {
		Runner  runner.Runner
		Printer *ui.Printer
		Logger  *log.Logger
		// RulesDir is where ufw keeps user.rules and friends.
		RulesDir string
		// DryRun prints file changes instead of writing them. Commands are
		// already handled by the runner.
		DryRun bool
	}

	// HardenPlan restricts Port to Sources.
	HardenPlan struct {
		Port    string
		Proto   string
		Sources []string
	}
)

// New creates a Firewall using the default rules directory.
func New(r runner.Runner, p *ui.Printer, logger *log.Logger) *Firewall {
	return &Firewall{Runner: r, Printer: p, Logger: logger, RulesDir: DefaultRulesDir}
}

// Status runs "ufw status" and parses it.
func (f *Firewall) Status(ctx context.Context) (Status, error) {
	if err := f.requireUFW(); err != nil {
		return Status{}, err
	}
	cmd := runner.Command{Name: "ufw", Args: []string{"status"}, Sudo: true, ReadOnly: true}
	res, err := runner.RunChecked(ctx, f.Runner, cmd)
	if err != nil {
		return Status{}, issue.WrapWithOperation(err, "read firewall status")
	}
	return ParseStatus(res.Stdout), nil
}

// Allow adds "ufw allow [from SRC to any port] PORT[/PROTO]".
func (f *Firewall) Allow(ctx context.Context, port, proto, from string) error {
	args, err := ruleArgs("allow", port, proto, from)
	if err != nil {
		return err
	}
	return f.ufw(ctx, args...)
}

// Deny adds a deny rule.
func (f *Firewall) Deny(ctx context.Context, port, proto, from string) error {
	args, err := ruleArgs("deny", port, proto, from)
	if err != nil {
		return err
	}
	return f.ufw(ctx, args...)
}

// DeleteRule removes a rule given in ufw syntax, e.g. "allow 21/tcp" or a
// rule number.
func (f *Firewall) DeleteRule(ctx context.Context, rule ...string) error {
	if len(rule) == 0 {
		return errors.New("no rule given")
	}
	return f.ufw(ctx, append([]string{"--force", "delete"}, rule...)...)
}

// Enable turns ufw on. When sshPort is set it is allowed first so the
// current session survives.
func (f *Firewall) Enable(ctx context.Context, sshPort string) error {
	if sshPort != "" {
		if err := f.Allow(ctx, sshPort, "tcp", ""); err != nil {
			return err
		}
	}
	return f.ufw(ctx, "--force", "enable")
}

// Reload re-reads the rule files.
func (f *Firewall) Reload(ctx context.Context) error {
	return f.ufw(ctx, "reload")
}

// PlanHarden returns the commands that restrict plan.Port to plan.Sources:
// every ALLOW rule for exactly the port from Anywhere is deleted and one rule
// per source is added. Wider ranges containing the port are not touched.
func PlanHarden(st Status, plan HardenPlan) ([][]string, error) {
	if err := validatePort(plan.Port); err != nil {
		return nil, err
	}
	if len(plan.Sources) == 0 {
		return nil, fmt.Errorf("%w: at least one source is required", ErrInvalidSource)
	}
	sources := make([]string, 0, len(plan.Sources))
	for _, s := range plan.Sources {
		norm, err := NormalizeSource(s)
		if err != nil {
			return nil, err
		}
		sources = append(sources, norm)
	}

	var steps [][]string
	for _, to := range st.AllowedFromAnywhere(portWithProto(plan.Port, plan.Proto)) {
		steps = append(steps, []string{"--force", "delete", "allow", to})
	}
	for _, src := range sources {
		step := []string{"allow", "from", src, "to", "any", "port", plan.Port}
		if plan.Proto != "" {
			step = append(step, "proto", plan.Proto)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// Harden applies PlanHarden to the live rule set.
func (f *Firewall) Harden(ctx context.Context, plan HardenPlan) error {
	st, err := f.Status(ctx)
	if err != nil {
		return err
	}
	steps, err := PlanHarden(st, plan)
	if err != nil {
		return err
	}
	for _, to := range st.RangesFromAnywhere(portWithProto(plan.Port, plan.Proto)) {
		f.Printer.Warn("Port %s stays open to everyone through the rule %s", plan.Port, to)
	}
	for _, step := range steps {
		if err := f.ufw(ctx, step...); err != nil {
			return err
		}
	}
	f.Printer.Success("Port %s restricted to %s", plan.Port, strings.Join(plan.Sources, ", "))
	return nil
}

// NormalizeSource validates an IP address or CIDR prefix and returns its
// canonical form. Prefixes are masked ("10.0.0.5/24" becomes "10.0.0.0/24").
func NormalizeSource(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidSource, s)
		}
		return p.Masked().String(), nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, s)
	}
	return a.String(), nil
}

func ruleArgs(action, port, proto, from string) ([]string, error) {
	if err := validatePort(port); err != nil {
		return nil, err
	}
	if from == "" {
		return []string{action, portWithProto(port, proto)}, nil
	}
	src, err := NormalizeSource(from)
	if err != nil {
		return nil, err
	}
	args := []string{action, "from", src, "to", "any", "port", port}
	if proto != "" {
		args = append(args, "proto", proto)
	}
	return args, nil
}

func portWithProto(port, proto string) string {
	if proto == "" || strings.Contains(port, "/") {
		return port
	}
	return port + "/" + proto
}

// portPattern accepts "22", "40000:40100", service names like "ssh", each
// with an optional "/tcp" or "/udp".
var portPattern = regexp.MustCompile(`^(?:(\d{1,5})(?::(\d{1,5}))?|[a-z][a-z0-9-]*)(?:/(?:tcp|udp))?$`)

func validatePort(port string) error {
	m := portPattern.FindStringSubmatch(port)
	if m == nil {
		return fmt.Errorf("%w: %q", ErrInvalidPort, port)
	}
	for _, n := range m[1:] {
		if n == "" {
			continue
		}
		if v, _ := strconv.Atoi(n); v < 1 || v > 65535 {
			return fmt.Errorf("%w: %q out of range", ErrInvalidPort, port)
		}
	}
	return nil
}

func (f *Firewall) ufw(ctx context.Context, args ...string) error {
	if err := f.requireUFW(); err != nil {
		return err
	}
	cmd := runner.Command{Name: "ufw", Args: args, Sudo: true}
	if _, err := runner.RunChecked(ctx, f.Runner, cmd); err != nil {
		return issue.NewErrorContext().
			WithOperation("ufw " + strings.Join(args, " ")).
			WithIssue(issue.CommandFailedId).
			Wrap(err).
			BuildError()
	}
	f.Logger.Info("ufw", "args", strings.Join(args, " "))
	return nil
}

func (f *Firewall) requireUFW() error {
	if runner.Exists(f.Runner, "ufw") {
		return nil
	}
	return issue.NewErrorContext().
		WithOperation("configure firewall").
		WithResource("ufw").
		WithSuggestion("Install it with 'hostkit pkg install ufw'").
		WithIssue(issue.ToolNotFoundId).
		Wrap(runner.ErrNotFound).
		BuildError()
}
