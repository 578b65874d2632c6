// SPDX-License-Identifier: MPL-2.0

package tailscale

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/hostkit/hostkit/internal/tui"
)

var logMenu = []tui.Option{
	{Key: "journal", Label: "Tailscaled service logs (journalctl)"},
	{Key: "syslog", Label: "System log (Tailscale entries)"},
	{Key: "files", Label: "Tailscale log directory"},
	{Key: "connections", Label: "Connection logs"},
	{Key: "errors", Label: "Error and warning logs"},
	{Key: "auth", Label: "Authentication logs"},
	{Key: "follow", Label: "Live tail"},
	{Key: "q", Label: "Exit"},
}

// LogMenu runs the interactive log viewer, writing log lines to w.
func (m *Manager) LogMenu(ctx context.Context, pr tui.Prompter, w io.Writer) error {
	for {
		m.Printer.Banner("TAILSCALE LOG VIEWER")
		choice, err := pr.Select("Select option", logMenu)
		if err != nil {
			return err
		}
		if choice == "q" {
			m.Printer.Plain("Goodbye!")
			return nil
		}

		lines, err := m.logAction(ctx, pr, choice, w)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, tui.ErrAborted) {
				return err
			}
			m.Printer.Error("%v", err)
			continue
		}
		if len(lines) == 0 && choice != "follow" {
			m.Printer.Warn("No matching log entries")
		}
		for _, l := range lines {
			_, _ = fmt.Fprintln(w, l)
		}
	}
}

func (m *Manager) logAction(ctx context.Context, pr tui.Prompter, choice string, w io.Writer) ([]string, error) {
	switch choice {
	case "journal":
		filter, err := pr.Input("Filter term (empty for none)", "", nil)
		if err != nil {
			return nil, err
		}
		n, err := promptLines(pr)
		if err != nil {
			return nil, err
		}
		return m.JournalLines(ctx, filter, n)
	case "syslog":
		n, err := promptLines(pr)
		if err != nil {
			return nil, err
		}
		return m.SyslogLines(n)
	case "files":
		files, err := m.LogFiles()
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no log files found in %s", m.LogDir)
		}
		opts := make([]tui.Option, len(files))
		for i, f := range files {
			opts[i] = tui.Option{Key: f, Label: filepath.Base(f)}
		}
		path, err := pr.Select("Select file", opts)
		if err != nil {
			return nil, err
		}
		filter, err := pr.Input("Filter term (empty for none)", "", nil)
		if err != nil {
			return nil, err
		}
		n, err := promptLines(pr)
		if err != nil {
			return nil, err
		}
		return FileLines(path, filter, n)
	case "connections":
		return m.ConnectionLines(ctx)
	case "errors":
		return m.ErrorLines(ctx)
	case "auth":
		return m.AuthLines(ctx)
	case "follow":
		filter, err := pr.Input("Filter term (empty for none)", "", nil)
		if err != nil {
			return nil, err
		}
		m.Printer.Info("Press Ctrl+C to stop")
		return nil, m.FollowJournal(ctx, filter, w)
	}
	return nil, fmt.Errorf("unknown option %q", choice)
}

func promptLines(pr tui.Prompter) (int, error) {
	s, err := pr.Input("Number of lines", strconv.Itoa(DefaultLogLines), nil)
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(s)
	if convErr != nil || n <= 0 {
		return DefaultLogLines, nil
	}
	return n, nil
}
