// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// DryRunner prints commands instead of executing them. Commands marked
// ReadOnly are forwarded to Probe so plans reflect the real host state.
type DryRunner struct {
	// Out receives one "[dry-run] <command>" line per skipped command.
	Out io.Writer
	// Probe executes read-only commands and resolves LookPath. Nil means
	// probes are skipped too and every tool is assumed present.
	Probe Runner

	mu       sync.Mutex
	commands []Command
}

// NewDryRunner creates a dry runner that forwards read-only probes.
func NewDryRunner(out io.Writer, probe Runner) *DryRunner {
	return &DryRunner{Out: out, Probe: probe}
}

// Run records cmd and returns a successful empty result.
func (d *DryRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if c.ReadOnly && d.Probe != nil {
		return d.Probe.Run(ctx, c)
	}

	d.mu.Lock()
	d.commands = append(d.commands, c)
	d.mu.Unlock()

	if d.Out != nil {
		fmt.Fprintf(d.Out, "[dry-run] %s\n", FormatCommand(c))
	}
	return &Result{Command: c}, nil
}

// LookPath delegates to Probe, or pretends every tool exists.
func (d *DryRunner) LookPath(name string) (string, error) {
	if d.Probe != nil {
		return d.Probe.LookPath(name)
	}
	return name, nil
}

// Commands returns the commands skipped so far.
func (d *DryRunner) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Command, len(d.commands))
	copy(out, d.commands)
	return out
}
