// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
)

// ExecRunner runs commands on the local host through os/exec.
type ExecRunner struct {
	// Stdout and Stderr receive streamed or TTY output. Nil means os.Stdout/os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
	// Stdin is attached for TTY runs. Nil means os.Stdin.
	Stdin io.Reader
	// Logger records each invocation at debug level. Nil disables logging.
	Logger *log.Logger

	geteuid func() int
}

// NewExecRunner creates a runner bound to the process standard streams.
func NewExecRunner(logger *log.Logger) *ExecRunner {
	return &ExecRunner{Logger: logger}
}

// LookPath resolves name through PATH.
func (r *ExecRunner) LookPath(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// Run executes cmd and waits for it. A non-zero exit is reported through
// Result.ExitCode with a nil error; errors are reserved for start failures,
// timeouts and cancellation.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	name, args := r.argv(c)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	if r.Logger != nil {
		r.Logger.Debug("exec", "cmd", FormatCommand(c), "tty", c.TTY)
	}

	start := time.Now()
	var (
		stdout, stderr bytes.Buffer
		err            error
	)
	if c.TTY {
		err = runTTY(cmd, r.stdin(c), io.MultiWriter(&stdout, r.stdout()))
	} else {
		cmd.Stdin = c.Stdin
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if c.Stream {
			cmd.Stdout = io.MultiWriter(&stdout, r.stdout())
			cmd.Stderr = io.MultiWriter(&stderr, r.stderr())
		}
		if c.Tee != nil {
			cmd.Stdout = io.MultiWriter(cmd.Stdout, c.Tee)
		}
		err = cmd.Run()
	}

	res := &Result{
		Command:  c,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	return res, r.classify(ctx, c, res, err)
}

func (r *ExecRunner) classify(ctx context.Context, c Command, res *Result, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ExitCode = ExitTimeout
		return fmt.Errorf("%w after %s: %s", ErrTimeout, c.Timeout, c.Name)
	case errors.Is(ctx.Err(), context.Canceled):
		res.ExitCode = ExitInterrupted
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := ExitCode(exitErr.ExitCode())
		if ok, _ := code.IsValid(); !ok {
			// Killed by a signal.
			code = 1
		}
		res.ExitCode = code
		if r.Logger != nil {
			r.Logger.Debug("exit", "cmd", c.Name, "code", code)
		}
		return nil
	}

	res.ExitCode = ExitNotFound
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, c.Name)
	}
	return fmt.Errorf("start %s: %w", c.Name, err)
}

func (r *ExecRunner) argv(c Command) (string, []string) {
	euid := os.Geteuid
	if r.geteuid != nil {
		euid = r.geteuid
	}
	if c.Sudo && euid() != 0 {
		// sudo resets the environment, so extra variables go through env(1).
		if len(c.Env) > 0 {
			args := append([]string{"env"}, c.Env...)
			return "sudo", append(append(args, c.Name), c.Args...)
		}
		return "sudo", append([]string{c.Name}, c.Args...)
	}
	return c.Name, c.Args
}

func (r *ExecRunner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *ExecRunner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

func (r *ExecRunner) stdin(c Command) io.Reader {
	switch {
	case c.Stdin != nil:
		return c.Stdin
	case r.Stdin != nil:
		return r.Stdin
	default:
		return os.Stdin
	}
}
