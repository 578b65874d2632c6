// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"errors"
	"fmt"
	"strconv"
)

// ExitCode is a POSIX process status, 0 through 255.
type ExitCode int

// Statuses hostkit reports for runs that never produced their own.
const (
	ExitTimeout     ExitCode = 124 // same as timeout(1)
	ExitNotFound    ExitCode = 127
	ExitInterrupted ExitCode = 130
)

// ErrInvalidExitCode is matched by every InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

// InvalidExitCodeError carries a status outside 0-255, which os/exec
// reports as -1 for a process killed by a signal.
type InvalidExitCodeError struct {
	Value ExitCode
}

func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("exit code %d is outside 0-255", e.Value)
}

func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// IsValid follows the (ok, errs) convention of config.Config.IsValid.
func (c ExitCode) IsValid() (bool, []error) {
	if c >= 0 && c <= 255 {
		return true, nil
	}
	return false, []error{&InvalidExitCodeError{Value: c}}
}

func (c ExitCode) IsSuccess() bool { return c == 0 }

// Reason names the statuses hostkit assigns itself. Other codes belong to
// the wrapped tool and yield "".
func (c ExitCode) Reason() string {
	switch c {
	case ExitTimeout:
		return "timed out"
	case ExitNotFound:
		return "command not found"
	case ExitInterrupted:
		return "interrupted"
	}
	return ""
}

func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
