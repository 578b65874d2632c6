// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestExecRunner_Run(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	r := NewExecRunner(nil)

	t.Run("captures output", func(t *testing.T) {
		t.Parallel()
		res, err := r.Run(context.Background(), Cmd("sh", "-c", "echo out; echo err >&2"))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if res.Stdout != "out\n" || res.Stderr != "err\n" {
			t.Errorf("stdout=%q stderr=%q", res.Stdout, res.Stderr)
		}
		if !res.Success() {
			t.Errorf("ExitCode = %d, want 0", res.ExitCode)
		}
	})

	t.Run("non-zero exit is not an error", func(t *testing.T) {
		t.Parallel()
		res, err := r.Run(context.Background(), Cmd("sh", "-c", "exit 3"))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if res.ExitCode != 3 {
			t.Errorf("ExitCode = %d, want 3", res.ExitCode)
		}
	})

	t.Run("stdin and env", func(t *testing.T) {
		t.Parallel()
		cmd := Command{
			Name:  "sh",
			Args:  []string{"-c", `read line; echo "$line-$HOSTKIT_T"`},
			Stdin: strings.NewReader("hello\n"),
			Env:   []string{"HOSTKIT_T=x"},
		}
		res, err := r.Run(context.Background(), cmd)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if res.Stdout != "hello-x\n" {
			t.Errorf("Stdout = %q", res.Stdout)
		}
	})

	t.Run("missing executable", func(t *testing.T) {
		t.Parallel()
		res, err := r.Run(context.Background(), Cmd("hostkit-definitely-missing-binary"))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		if res.ExitCode != ExitNotFound {
			t.Errorf("ExitCode = %d, want %d", res.ExitCode, ExitNotFound)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		cmd := Command{Name: "sleep", Args: []string{"5"}, Timeout: 50 * time.Millisecond}
		res, err := r.Run(context.Background(), cmd)
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("err = %v, want ErrTimeout", err)
		}
		if res.ExitCode != ExitTimeout {
			t.Errorf("ExitCode = %d, want %d", res.ExitCode, ExitTimeout)
		}
	})
}

func TestExecRunner_Stream(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	var out bytes.Buffer
	r := &ExecRunner{Stdout: &out, Stderr: &out}
	res, err := r.Run(context.Background(), Command{Name: "echo", Args: []string{"streamed"}, Stream: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.String() != "streamed\n" || res.Stdout != "streamed\n" {
		t.Errorf("streamed=%q captured=%q", out.String(), res.Stdout)
	}
}

func TestExecRunner_SudoArgv(t *testing.T) {
	t.Parallel()

	cmd := Command{Name: "ufw", Args: []string{"enable"}, Sudo: true}

	nonRoot := &ExecRunner{geteuid: func() int { return 1000 }}
	name, args := nonRoot.argv(cmd)
	if name != "sudo" || strings.Join(args, " ") != "ufw enable" {
		t.Errorf("non-root argv = %s %v", name, args)
	}

	withEnv := cmd
	withEnv.Env = []string{"DEBIAN_FRONTEND=noninteractive"}
	name, args = nonRoot.argv(withEnv)
	if name != "sudo" || strings.Join(args, " ") != "env DEBIAN_FRONTEND=noninteractive ufw enable" {
		t.Errorf("non-root argv with env = %s %v", name, args)
	}

	root := &ExecRunner{geteuid: func() int { return 0 }}
	name, args = root.argv(cmd)
	if name != "ufw" || strings.Join(args, " ") != "enable" {
		t.Errorf("root argv = %s %v", name, args)
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	ok := &Result{Command: Cmd("true")}
	if _, err := Check(ok, nil); err != nil {
		t.Errorf("Check(success) error = %v", err)
	}

	failed := &Result{Command: Cmd("ufw", "enable"), ExitCode: 1, Stderr: "ERROR: need root\n"}
	_, err := Check(failed, nil)
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("err = %v, want ErrCommandFailed", err)
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("err is %T, want *CommandError", err)
	}
	if cmdErr.ExitCode != 1 || cmdErr.Stderr != "ERROR: need root" || cmdErr.Command != "ufw enable" {
		t.Errorf("CommandError = %+v", cmdErr)
	}

	startErr := errors.New("boom")
	if _, err := Check(nil, startErr); !errors.Is(err, startErr) {
		t.Errorf("Check passes start errors through, got %v", err)
	}
}

func TestDryRunner(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	probe := &stubRunner{stdout: "active\n"}
	d := NewDryRunner(&out, probe)

	res, err := d.Run(context.Background(), Command{Name: "ufw", Args: []string{"enable"}, Sudo: true})
	if err != nil || !res.Success() {
		t.Fatalf("Run() = %+v, %v", res, err)
	}
	if got := out.String(); got != "[dry-run] sudo ufw enable\n" {
		t.Errorf("output = %q", got)
	}

	got, err := Output(context.Background(), d, "systemctl", "is-active", "ufw")
	if err != nil || got != "active" {
		t.Errorf("Output() = %q, %v; probes must reach the real runner", got, err)
	}
	if probe.calls != 1 {
		t.Errorf("probe calls = %d, want 1", probe.calls)
	}
	if n := len(d.Commands()); n != 1 {
		t.Errorf("recorded %d commands, want 1", n)
	}
}

func TestCheck_RedactsSecrets(t *testing.T) {
	t.Parallel()

	cmd := Command{
		Name:    "tailscale",
		Args:    []string{"up", "--auth-key", "tskey-auth-SECRET"},
		Sudo:    true,
		Secrets: []string{"tskey-auth-SECRET"},
	}
	_, err := Check(&Result{Command: cmd, ExitCode: 1, Stderr: "bad key tskey-auth-SECRET\n"}, nil)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("err is %T, want *CommandError", err)
	}
	if strings.Contains(err.Error(), "tskey-auth-SECRET") {
		t.Errorf("error leaks the secret: %v", err)
	}
	if cmdErr.Command != "sudo tailscale up --auth-key '****'" {
		t.Errorf("Command = %q", cmdErr.Command)
	}
	if cmdErr.Stderr != "bad key ****" {
		t.Errorf("Stderr = %q", cmdErr.Stderr)
	}
}

func TestDryRunner_RedactsSecrets(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	d := NewDryRunner(&out, &stubRunner{})
	cmd := Command{
		Name:    "ssh-keygen",
		Args:    []string{"-t", "ed25519", "-N", "correct horse"},
		Secrets: []string{"correct horse"},
	}
	if _, err := d.Run(context.Background(), cmd); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := out.String(); got != "[dry-run] ssh-keygen -t ed25519 -N '****'\n" {
		t.Errorf("output = %q", got)
	}
}

type stubRunner struct {
	stdout string
	calls  int
}

func (s *stubRunner) Run(_ context.Context, c Command) (*Result, error) {
	s.calls++
	return &Result{Command: c, Stdout: s.stdout}, nil
}

func (s *stubRunner) LookPath(name string) (string, error) { return "/usr/bin/" + name, nil }
