// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/hostkit/hostkit/internal/runner"
)

// ExitError carries the process status out of a RunE handler to Execute.
// A nil Err means the command already reported its outcome, as the
// diagnostics do, and only the status is left to set.
type ExitError struct {
	Code runner.ExitCode
	Err  error
}

func (e *ExitError) Error() string {
	switch {
	case e.Err != nil:
		return e.Err.Error()
	case e.Code.Reason() != "":
		return fmt.Sprintf("exit status %d (%s)", e.Code, e.Code.Reason())
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
