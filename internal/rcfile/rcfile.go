// SPDX-License-Identifier: MPL-2.0

// Package rcfile maintains marked blocks in shell startup files such as
// ~/.bashrc so repeated runs replace their own lines instead of appending
// duplicates.
package rcfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var markerPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ErrInvalidMarker is returned for markers that would break the block delimiters.
var ErrInvalidMarker = errors.New("invalid block marker")

// BeginLine and EndLine return the delimiters of the block named marker.
func BeginLine(marker string) string { return "# >>> hostkit " + marker + " >>>" }

// EndLine returns the closing delimiter of the block named marker.
func EndLine(marker string) string { return "# <<< hostkit " + marker + " <<<" }

// EnsureBlock writes lines between the marker delimiters in path. An existing
// block is replaced in place; otherwise the block is appended. The file is
// created when missing. It reports whether the file changed.
func EnsureBlock(path, marker string, lines []string) (bool, error) {
	if !markerPattern.MatchString(marker) {
		return false, fmt.Errorf("%w: %q", ErrInvalidMarker, marker)
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	updated := Apply(string(data), marker, lines)
	if updated == string(data) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(updated), mode); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// Apply returns content with the block set to lines.
func Apply(content, marker string, lines []string) string {
	block := BeginLine(marker) + "\n" + strings.Join(lines, "\n") + "\n" + EndLine(marker) + "\n"

	begin := strings.Index(content, BeginLine(marker)+"\n")
	if begin >= 0 {
		rest := content[begin:]
		if end := strings.Index(rest, EndLine(marker)); end >= 0 {
			after := rest[end+len(EndLine(marker)):]
			after = strings.TrimPrefix(after, "\n")
			return content[:begin] + block + after
		}
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if content != "" {
		content += "\n"
	}
	return content + block
}

// DefaultShellRC picks ~/.zshrc for zsh users and ~/.bashrc otherwise.
func DefaultShellRC(home, shell string) string {
	if filepath.Base(shell) == "zsh" {
		return filepath.Join(home, ".zshrc")
	}
	return filepath.Join(home, ".bashrc")
}
