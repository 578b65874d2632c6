// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package runner

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// runTTY starts cmd on a pseudo-terminal so tools like ssh-keygen, ssh-add
// and tailscale up can prompt. When stdin is a terminal it is switched to
// raw mode for the duration of the run.
func runTTY(cmd *exec.Cmd, stdin io.Reader, out io.Writer) error {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	defer ptmx.Close()

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_ = pty.InheritSize(f, ptmx)
		if state, rawErr := term.MakeRaw(int(f.Fd())); rawErr == nil {
			defer func() { _ = term.Restore(int(f.Fd()), state) }()
		}
	}

	go func() { _, _ = io.Copy(ptmx, stdin) }()

	// Reading the master returns EIO once the child side closes.
	if _, copyErr := io.Copy(out, ptmx); copyErr != nil && !errors.Is(copyErr, syscall.EIO) {
		_ = cmd.Wait()
		return copyErr
	}
	return cmd.Wait()
}
