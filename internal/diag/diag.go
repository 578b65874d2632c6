// SPDX-License-Identifier: MPL-2.0

// Package diag collects the outcome of host diagnostics (FTP, Tailscale)
// as passed checks, warnings and issues, and renders the closing summary
// with suggested fixes.
package diag

import (
	"fmt"
	"strings"
	"time"

	"github.com/hostkit/hostkit/internal/ui"
)

type (
	// FixRule suggests commands for issues it matches. Rules are tried in
	// order and the first match wins.
	FixRule struct {
		Match func(issue string) bool
		Lines func(issue string) []string
	}

	// Report accumulates check results. Every Pass, Warn and Fail call also
	// prints a status line through the Printer.
	Report struct {
		Passed   []string
		Warnings []string
		Issues   []string

		printer *ui.Printer
		fixes   map[string][]string
	}
)

// NewReport creates an empty report printing through p.
func NewReport(p *ui.Printer) *Report {
	return &Report{printer: p, fixes: make(map[string][]string)}
}

// Start prints the opening banner with a timestamp.
func (r *Report) Start(title string, now time.Time) {
	r.printer.Banner(title)
	r.printer.Plain("%s", ui.Center("Started: "+now.Format(time.DateTime), ui.BannerWidth))
}

// Section prints a check group heading.
func (r *Report) Section(title string) {
	r.printer.Banner(title)
}

// Pass records a passed check.
func (r *Report) Pass(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Passed = append(r.Passed, msg)
	r.printer.Success("%s", msg)
}

// Warn records a non-critical finding.
func (r *Report) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	r.printer.Warn("%s", msg)
}

// Fail records a critical issue with optional fix commands. Issues without
// explicit fixes fall back to the FixRule catalogue in Summary.
func (r *Report) Fail(msg string, fixes ...string) {
	r.Issues = append(r.Issues, msg)
	if len(fixes) > 0 {
		r.fixes[msg] = append(r.fixes[msg], fixes...)
	}
	r.printer.Error("%s", msg)
}

// Total is the number of recorded checks.
func (r *Report) Total() int {
	return len(r.Passed) + len(r.Warnings) + len(r.Issues)
}

// ExitCode is 0 without issues and 1 otherwise. Warnings do not fail.
func (r *Report) ExitCode() int {
	if len(r.Issues) > 0 {
		return 1
	}
	return 0
}

// FixesFor returns the suggested commands for one issue.
func (r *Report) FixesFor(issue string, rules []FixRule) []string {
	if lines, ok := r.fixes[issue]; ok {
		return lines
	}
	for _, rule := range rules {
		if rule.Match(issue) {
			return rule.Lines(issue)
		}
	}
	return nil
}

// Summary prints the counts, the warning and issue lists and the numbered
// fixes. hints are printed when no issue was found.
func (r *Report) Summary(rules []FixRule, hints []string) {
	p := r.printer
	p.Banner("DIAGNOSTIC SUMMARY")
	p.Plain("Total Checks: %d", r.Total())
	p.Plain("%s", ui.SuccessStyle.Render(fmt.Sprintf("✓ Passed: %d", len(r.Passed))))
	p.Plain("%s", ui.WarningStyle.Render(fmt.Sprintf("⚠ Warnings: %d", len(r.Warnings))))
	p.Plain("%s", ui.ErrorStyle.Render(fmt.Sprintf("✗ Issues: %d", len(r.Issues))))

	if len(r.Warnings) > 0 {
		p.Plain("\nWarnings:")
		for _, w := range r.Warnings {
			p.Plain("  ⚠ %s", w)
		}
	}

	if len(r.Issues) == 0 {
		p.Plain("")
		p.Success("No critical issues found!")
		if len(hints) > 0 {
			p.Plain("\nIf you're still experiencing problems:")
			for i, h := range hints {
				p.Plain("  %d. %s", i+1, h)
			}
		}
		return
	}

	p.Plain("\nCritical Issues Found:")
	for _, issue := range r.Issues {
		p.Plain("  ✗ %s", issue)
	}

	p.Banner("SUGGESTED FIXES")
	for i, issue := range r.Issues {
		p.Plain("%d. %s", i+1, issue)
		for j, line := range r.FixesFor(issue, rules) {
			label := "   Fix: "
			if j > 0 {
				label = "        "
			}
			p.Plain("%s%s", label, ui.CmdStyle.Render(line))
		}
		p.Plain("")
	}
}

// Contains builds a FixRule matcher on a case-insensitive substring.
func Contains(sub string) func(string) bool {
	sub = strings.ToLower(sub)
	return func(issue string) bool {
		return strings.Contains(strings.ToLower(issue), sub)
	}
}

// Static builds a FixRule line producer returning fixed lines.
func Static(lines ...string) func(string) []string {
	return func(string) []string { return lines }
}
