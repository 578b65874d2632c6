// SPDX-License-Identifier: MPL-2.0

// Package logview reads, filters and follows log files and the systemd
// journal for the FTP and Tailscale log viewers.
package logview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/service"
)

// blockSize is the chunk read per step when scanning backwards.
const blockSize = 4096

// Keyword sets used by the log viewers.
var (
	ErrorKeywords      = []string{"error", "fail", "denied", "refused", "warning", "critical"}
	ConnectionKeywords = []string{"connect", "disconnect", "peer", "established", "lost"}
	AuthKeywords       = []string{"auth", "login", "logout", "key", "token"}
	LoginOKKeywords    = []string{"OK LOGIN"}
	LoginFailKeywords  = []string{"FAIL", "denied"}
)

// Tail returns the last n lines of path without reading the whole file.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return tailReader(f, info.Size(), n)
}

func tailReader(r io.ReaderAt, size int64, n int) ([]string, error) {
	if n <= 0 || size == 0 {
		return nil, nil
	}

	var (
		buf    []byte
		offset = size
	)
	for offset > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		step := int64(blockSize)
		if offset < step {
			step = offset
		}
		offset -= step
		chunk := make([]byte, step)
		if _, err := r.ReadAt(chunk, offset); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		buf = append(chunk, buf...)
	}

	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	return lines, nil
}

// Filter keeps lines containing term, case-insensitively. An empty term keeps all.
func Filter(lines []string, term string) []string {
	if term == "" {
		return lines
	}
	return MatchAny(lines, []string{term})
}

// MatchAny keeps lines containing any of keywords, case-insensitively.
func MatchAny(lines []string, keywords []string) []string {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	var out []string
	for _, line := range lines {
		if containsAny(strings.ToLower(line), lowered) {
			out = append(out, line)
		}
	}
	return out
}

// Matcher returns a predicate equivalent to MatchAny for one line. No
// keywords matches everything.
func Matcher(keywords ...string) func(string) bool {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k != "" {
			lowered = append(lowered, strings.ToLower(k))
		}
	}
	return func(line string) bool {
		return len(lowered) == 0 || containsAny(strings.ToLower(line), lowered)
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Journal returns the last n journal lines for unit.
func Journal(ctx context.Context, r runner.Runner, unit string, n int) ([]string, error) {
	res, err := runner.Check(r.Run(ctx, service.Journal(service.JournalOptions{Unit: unit, Lines: n})))
	if err != nil {
		return nil, fmt.Errorf("read journal for %s: %w", unit, err)
	}
	out := strings.TrimRight(res.Stdout, "\n")
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CountMatches counts lines matching any keyword.
func CountMatches(lines []string, keywords []string) int {
	return len(MatchAny(lines, keywords))
}
