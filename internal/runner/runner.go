// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	// ErrCommandFailed is wrapped by CommandError.
	ErrCommandFailed = errors.New("command failed")
	// ErrTimeout is returned when a command exceeds its Timeout.
	ErrTimeout = errors.New("command timed out")
	// ErrNotFound is returned when the executable cannot be located.
	ErrNotFound = errors.New("executable not found")
)

type (
	// Command describes one invocation of an external program.
	Command struct {
		// Name is the program to run, resolved through PATH.
		Name string
		// Args are passed verbatim; no shell is involved.
		Args []string
		// Dir is the working directory (empty means current).
		Dir string
		// Env holds extra KEY=VALUE pairs appended to the inherited environment.
		Env []string
		// Stdin feeds the process standard input. Nil means no input.
		Stdin io.Reader
		// Timeout bounds the run. Zero means no limit beyond ctx.
		Timeout time.Duration
		// Stream additionally copies output to the runner's writers as it arrives.
		Stream bool
		// Tee, when set, receives stdout as it arrives. Stdout is still captured.
		Tee io.Writer
		// TTY runs the command under a pseudo-terminal attached to the user's terminal.
		TTY bool
		// Sudo prefixes the command with sudo when not already root.
		Sudo bool
		// ReadOnly marks probes that never modify the system; dry runs still execute them.
		ReadOnly bool
		// Secrets are values masked wherever the command is shown: dry-run
		// lines, debug logs and CommandError.
		Secrets []string
	}

	// Result holds the outcome of a finished command.
	Result struct {
		Command  Command
		ExitCode ExitCode
		Stdout   string
		Stderr   string
		Duration time.Duration
	}

	// Runner executes commands.
	Runner interface {
		Run(ctx context.Context, cmd Command) (*Result, error)
		LookPath(name string) (string, error)
	}

	// CommandError reports a command that ran but exited non-zero.
	CommandError struct {
		Command  string
		ExitCode ExitCode
		Stderr   string
	}
)

// Cmd is shorthand for a Command with only a name and arguments.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Probe is shorthand for a read-only Command.
func Probe(name string, args ...string) Command {
	return Command{Name: name, Args: args, ReadOnly: true}
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap returns ErrCommandFailed for errors.Is checks.
func (e *CommandError) Unwrap() error { return ErrCommandFailed }

// Success reports whether the result exited with status 0.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode.IsSuccess()
}

// Combined returns stdout followed by stderr.
func (r *Result) Combined() string {
	if r == nil {
		return ""
	}
	return r.Stdout + r.Stderr
}

// Check converts a non-zero exit into a *CommandError. Start failures are
// returned unchanged.
func Check(res *Result, err error) (*Result, error) {
	if err != nil {
		return res, err
	}
	if res.Success() {
		return res, nil
	}
	return res, &CommandError{
		Command:  FormatCommand(res.Command),
		ExitCode: res.ExitCode,
		Stderr:   Redact(firstLines(strings.TrimSpace(res.Stderr), 5), res.Command.Secrets),
	}
}

// RunChecked runs cmd and fails on a non-zero exit.
func RunChecked(ctx context.Context, r Runner, cmd Command) (*Result, error) {
	return Check(r.Run(ctx, cmd))
}

// Output runs a read-only probe and returns its trimmed stdout.
func Output(ctx context.Context, r Runner, name string, args ...string) (string, error) {
	res, err := Check(r.Run(ctx, Probe(name, args...)))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Exists reports whether name resolves through PATH.
func Exists(r Runner, name string) bool {
	_, err := r.LookPath(name)
	return err == nil
}

func firstLines(s string, n int) string {
	lines := strings.SplitN(s, "\n", n+1)
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	return strings.Join(lines, "\n")
}
