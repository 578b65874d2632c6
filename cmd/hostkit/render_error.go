// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/issue"
	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/ui"
)

// run adapts a command body to cobra. A failure is rendered once, with its
// suggestions, and returned as an ExitError so fang only sets the status.
func (a *App) run(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd.Context(), args)
		if err == nil {
			return nil
		}
		cmd.SilenceErrors = true
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Err == nil {
			return exitErr
		}
		a.renderError(err)
		return &ExitError{Code: exitCodeFor(err), Err: err}
	}
}

// renderError prints err and, in verbose mode, the catalogue entry it
// links to.
func (a *App) renderError(err error) {
	fmt.Fprintln(a.stderr, ui.ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.flags.verbose))

	var ae *issue.ActionableError
	if !a.flags.verbose || !errors.As(err, &ae) || ae.IssueID == 0 {
		return
	}
	style := "dark"
	if a.cfg != nil && a.cfg.UI.ColorScheme == config.ColorSchemeLight {
		style = "light"
	}
	renderIssue(a.stderr, ae.IssueID, style)
}

// renderIssue writes the glamour rendering of a catalogue entry.
func renderIssue(w io.Writer, id issue.Id, style string) {
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, err := entry.Render(style)
	if err != nil {
		return
	}
	fmt.Fprint(w, rendered)
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// exitCodeFor maps runner failures onto the conventional shell exit codes.
func exitCodeFor(err error) runner.ExitCode {
	switch {
	case errors.Is(err, runner.ErrTimeout):
		return runner.ExitTimeout
	case errors.Is(err, runner.ErrNotFound):
		return runner.ExitNotFound
	case errors.Is(err, context.Canceled):
		return runner.ExitInterrupted
	}
	return 1
}
