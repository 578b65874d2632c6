// SPDX-License-Identifier: MPL-2.0

package ftp

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/hostkit/hostkit/internal/logview"
)

const (
	// DefaultLogLines is the default number of lines shown.
	DefaultLogLines = 50
	// loginWindow is how far back the login views look.
	loginWindow = 100
)

// LogSource is one log file offered by the viewer.
type LogSource struct {
	Key   string
	Path  string
	Label string
}

// Exists reports whether the file is present.
func (s LogSource) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// LogSources lists the logs relevant to FTP troubleshooting.
func (m *Manager) LogSources() []LogSource {
	return []LogSource{
		{"1", filepath.Join(m.LogDir, "vsftpd.log"), "vsftpd main log"},
		{"2", filepath.Join(m.LogDir, "syslog"), "System log (vsftpd entries)"},
		{"3", filepath.Join(m.LogDir, "auth.log"), "Authentication log"},
		{"4", filepath.Join(m.LogDir, "fail2ban.log"), "fail2ban log"},
	}
}

// ReadLog returns the last n lines of path containing filter.
func ReadLog(path, filter string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultLogLines
	}
	lines, err := logview.Tail(path, n)
	if err != nil {
		return nil, err
	}
	return logview.Filter(lines, filter), nil
}

// ErrorLines returns error and warning entries among the last n lines.
func ErrorLines(path string, n int) ([]string, error) {
	lines, err := ReadLog(path, "", n)
	if err != nil {
		return nil, err
	}
	return logview.MatchAny(lines, logview.ErrorKeywords), nil
}

// UserActivity returns lines mentioning username, from vsftpd.log or
// syslog when vsftpd.log is absent.
func (m *Manager) UserActivity(username string, n int) ([]string, error) {
	path := filepath.Join(m.LogDir, "vsftpd.log")
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(m.LogDir, "syslog")
	}
	return ReadLog(path, username, n)
}

// RecentLogins returns up to n successful logins from vsftpd.log.
func (m *Manager) RecentLogins(n int) ([]string, error) {
	return m.logins(logview.LoginOKKeywords, n)
}

// FailedLogins returns up to n failed logins from vsftpd.log.
func (m *Manager) FailedLogins(n int) ([]string, error) {
	return m.logins(logview.LoginFailKeywords, n)
}

func (m *Manager) logins(keywords []string, n int) ([]string, error) {
	lines, err := logview.Tail(filepath.Join(m.LogDir, "vsftpd.log"), loginWindow)
	if err != nil {
		return nil, err
	}
	matched := logview.MatchAny(lines, keywords)
	if n > 0 && len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched, nil
}

// FollowLog streams new lines of path containing filter to w until ctx
// is cancelled.
func FollowLog(ctx context.Context, path, filter string, w io.Writer) error {
	return logview.Follow(ctx, path, logview.Matcher(filter), w)
}
