// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hostkit/hostkit/internal/runner"
)

type (
	// Response is the scripted outcome of a faked command.
	Response struct {
		Stdout   string
		Stderr   string
		ExitCode runner.ExitCode
		Err      error
	}

	// Call is one recorded invocation.
	Call struct {
		Command runner.Command
		// Line is the command name and arguments joined by single spaces.
		Line string
		// Input holds whatever was supplied on stdin.
		Input string
	}

	// FakeRunner is a scripted runner.Runner. Responses are matched by the
	// longest registered prefix of the call line; unmatched commands succeed
	// with empty output.
	FakeRunner struct {
		mu        sync.Mutex
		calls     []Call
		responses map[string][]Response
		missing   map[string]bool
	}
)

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		responses: make(map[string][]Response),
		missing:   make(map[string]bool),
	}
}

// On scripts the response for calls whose line starts with prefix.
// Registering the same prefix several times queues the responses; the last
// one repeats once the queue drains.
func (f *FakeRunner) On(prefix string, resp Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = append(f.responses[prefix], resp)
	return f
}

// Missing makes LookPath fail for the given tools.
func (f *FakeRunner) Missing(names ...string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.missing[n] = true
	}
	return f
}

// Run implements runner.Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	if err := ctx.Err(); err != nil {
		return &runner.Result{Command: cmd, ExitCode: runner.ExitInterrupted}, err
	}

	line := Line(cmd)
	var input string
	if cmd.Stdin != nil {
		data, _ := io.ReadAll(cmd.Stdin)
		input = string(data)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Command: cmd, Line: line, Input: input})

	if f.missing[cmd.Name] {
		return &runner.Result{Command: cmd, ExitCode: runner.ExitNotFound},
			fmt.Errorf("%w: %s", runner.ErrNotFound, cmd.Name)
	}

	resp := f.match(line)
	if cmd.Tee != nil && resp.Stdout != "" {
		_, _ = io.WriteString(cmd.Tee, resp.Stdout)
	}
	return &runner.Result{
		Command:  cmd,
		ExitCode: resp.ExitCode,
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
	}, resp.Err
}

// LookPath implements runner.Runner.
func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[name] {
		return "", fmt.Errorf("%w: %s", runner.ErrNotFound, name)
	}
	return "/usr/bin/" + name, nil
}

// Calls returns every recorded call in order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Lines returns the recorded call lines in order.
func (f *FakeRunner) Lines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.Line
	}
	return lines
}

// Called reports whether any call line starts with prefix.
func (f *FakeRunner) Called(prefix string) bool {
	_, ok := f.Find(prefix)
	return ok
}

// Find returns the first call whose line starts with prefix.
func (f *FakeRunner) Find(prefix string) (Call, bool) {
	for _, c := range f.Calls() {
		if strings.HasPrefix(c.Line, prefix) {
			return c, true
		}
	}
	return Call{}, false
}

// Line joins a command name and its arguments with single spaces.
func Line(cmd runner.Command) string {
	return strings.Join(append([]string{cmd.Name}, cmd.Args...), " ")
}

func (f *FakeRunner) match(line string) Response {
	best := ""
	found := false
	for prefix := range f.responses {
		if strings.HasPrefix(line, prefix) && (!found || len(prefix) > len(best)) {
			best, found = prefix, true
		}
	}
	if !found {
		return Response{}
	}
	queue := f.responses[best]
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[best] = queue[1:]
	}
	return resp
}
