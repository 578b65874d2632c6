// SPDX-License-Identifier: MPL-2.0

package tailscale

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/hostkit/hostkit/internal/logview"
	"github.com/hostkit/hostkit/internal/service"
)

const (
	// DefaultLogLines is the journal window of the log views.
	DefaultLogLines = 50
	authLogLines    = 30
)

// ErrNoLogDir is returned when the tailscale log directory does not exist.
var ErrNoLogDir = errors.New("tailscale log directory not found")

// JournalLines returns the last n tailscaled journal lines containing
// filter. An empty filter keeps every line.
func (m *Manager) JournalLines(ctx context.Context, filter string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultLogLines
	}
	lines, err := logview.Journal(ctx, m.Runner, Unit, n)
	if err != nil {
		return nil, err
	}
	return logview.Filter(lines, filter), nil
}

// ConnectionLines returns recent peer connection events.
func (m *Manager) ConnectionLines(ctx context.Context) ([]string, error) {
	return m.keywordLines(ctx, DefaultLogLines, logview.ConnectionKeywords)
}

// ErrorLines returns recent errors and warnings.
func (m *Manager) ErrorLines(ctx context.Context) ([]string, error) {
	return m.keywordLines(ctx, DefaultLogLines, []string{"error", "fail", "warning", "critical"})
}

// AuthLines returns recent login, logout and key events.
func (m *Manager) AuthLines(ctx context.Context) ([]string, error) {
	return m.keywordLines(ctx, authLogLines, logview.AuthKeywords)
}

func (m *Manager) keywordLines(ctx context.Context, n int, keywords []string) ([]string, error) {
	lines, err := logview.Journal(ctx, m.Runner, Unit, n)
	if err != nil {
		return nil, err
	}
	return logview.MatchAny(lines, keywords), nil
}

// SyslogLines returns the tailscale entries among the last n syslog lines.
func (m *Manager) SyslogLines(n int) ([]string, error) {
	lines, err := logview.Tail(m.SyslogPath, n)
	if err != nil {
		return nil, err
	}
	return logview.Filter(lines, "tailscale"), nil
}

// LogFiles lists the *.log files in LogDir, sorted by name.
func (m *Manager) LogFiles() ([]string, error) {
	if _, err := os.Stat(m.LogDir); err != nil {
		return nil, ErrNoLogDir
	}
	files, err := filepath.Glob(filepath.Join(m.LogDir, "*.log"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// FileLines returns the last n lines of path containing filter.
func FileLines(path, filter string, n int) ([]string, error) {
	lines, err := logview.Tail(path, n)
	if err != nil {
		return nil, err
	}
	return logview.Filter(lines, filter), nil
}

// FollowJournal streams new tailscaled journal entries matching filter to
// w until ctx is cancelled.
func (m *Manager) FollowJournal(ctx context.Context, filter string, w io.Writer) error {
	cmd := service.Journal(service.JournalOptions{Unit: Unit, Follow: true})
	lw := &lineWriter{w: w, match: logview.Matcher(filter)}
	cmd.Stream = false
	cmd.Tee = lw
	_, err := m.Runner.Run(ctx, cmd)
	lw.flush()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// lineWriter forwards complete lines accepted by match.
type lineWriter struct {
	w     io.Writer
	match func(string) bool
	buf   []byte
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			return len(p), nil
		}
		line := string(l.buf[:i])
		l.buf = l.buf[i+1:]
		if l.match(line) {
			if _, err := io.WriteString(l.w, line+"\n"); err != nil {
				return len(p), err
			}
		}
	}
}

func (l *lineWriter) flush() {
	if len(l.buf) > 0 && l.match(string(l.buf)) {
		_, _ = io.WriteString(l.w, string(l.buf)+"\n")
	}
	l.buf = nil
}
