// SPDX-License-Identifier: MPL-2.0

package sshkeys

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrInvalidAlias is returned for Host aliases that contain whitespace or
// wildcards.
var ErrInvalidAlias = errors.New("invalid host alias")

// HostEntry is one "Host" block in ~/.ssh/config.
type HostEntry struct {
	Alias        string
	HostName     string
	User         string
	Port         int
	IdentityFile string
}

// Render formats the entry as an ssh_config block.
func (e HostEntry) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Host %s\n", e.Alias)
	if e.HostName != "" {
		fmt.Fprintf(&b, "    HostName %s\n", e.HostName)
	}
	if e.User != "" {
		fmt.Fprintf(&b, "    User %s\n", e.User)
	}
	if e.Port > 0 && e.Port != 22 {
		fmt.Fprintf(&b, "    Port %s\n", strconv.Itoa(e.Port))
	}
	if e.IdentityFile != "" {
		fmt.Fprintf(&b, "    IdentityFile %s\n", e.IdentityFile)
		b.WriteString("    IdentitiesOnly yes\n")
	}
	return b.String()
}

// HasHost reports whether the ssh_config content declares alias in any Host
// line.
func HasHost(content, alias string) bool {
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || !strings.EqualFold(fields[0], "Host") {
			continue
		}
		for _, pattern := range fields[1:] {
			if pattern == alias {
				return true
			}
		}
	}
	return false
}

// AddHostEntry appends entry to the ssh_config at configPath unless its alias
// is already declared. It reports whether the file changed.
func AddHostEntry(configPath string, entry HostEntry) (bool, error) {
	if entry.Alias == "" || strings.ContainsAny(entry.Alias, " \t*?!") {
		return false, fmt.Errorf("%w: %q", ErrInvalidAlias, entry.Alias)
	}
	if entry.HostName == "" {
		entry.HostName = entry.Alias
	}

	data, err := os.ReadFile(configPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", configPath, err)
	}
	content := string(data)
	if HasHost(content, entry.Alias) {
		return false, nil
	}

	if content != "" {
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += "\n"
	}
	content += entry.Render()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return false, err
	}
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		return false, fmt.Errorf("write %s: %w", configPath, err)
	}
	return true, nil
}
