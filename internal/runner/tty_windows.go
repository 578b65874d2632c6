// SPDX-License-Identifier: MPL-2.0

//go:build windows

package runner

import (
	"io"
	"os"
	"os/exec"
)

// runTTY falls back to inherited standard streams where no pty is available.
func runTTY(cmd *exec.Cmd, stdin io.Reader, out io.Writer) error {
	cmd.Stdin = stdin
	cmd.Stdout = out
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
