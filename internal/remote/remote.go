// SPDX-License-Identifier: MPL-2.0

// Package remote classifies transfer endpoints as local paths or
// rsync/scp-style remote locations ("[user@]host:path").
package remote

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotRemote is returned by ParseTarget for strings without a host part.
var ErrNotRemote = errors.New("not a remote location")

var remotePattern = regexp.MustCompile(`^(?:([^@/:\s]+)@)?([^@/:\s]+):(.*)$`)

// hostPattern accepts hostnames, IPv4 addresses and ssh_config aliases.
var hostPattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

// Location is a parsed transfer endpoint.
type Location struct {
	// Raw is the input string.
	Raw    string
	User   string
	Host   string
	Path   string
	Remote bool
}

// Parse classifies s. Strings starting with "/", "./", "../" or "~" are
// always local, as is anything with a "/" before the first ":". An empty
// remote path ("host:") refers to the remote home directory.
func Parse(s string) Location {
	loc := Location{Raw: s, Path: s}
	if isExplicitlyLocal(s) {
		return loc
	}
	m := remotePattern.FindStringSubmatch(s)
	if m == nil {
		return loc
	}
	return Location{Raw: s, User: m[1], Host: m[2], Path: m[3], Remote: true}
}

// IsRemote reports whether s names a remote location.
func IsRemote(s string) bool {
	return Parse(s).Remote
}

// ParseTarget parses an SSH target "user@host" or "host" (no path).
func ParseTarget(s string) (Location, error) {
	if s == "" {
		return Location{}, fmt.Errorf("%w: empty target", ErrNotRemote)
	}
	user, host, hasUser := strings.Cut(s, "@")
	if !hasUser {
		host, user = s, ""
	}
	if hasUser && (user == "" || strings.ContainsAny(user, "/: ")) {
		return Location{}, fmt.Errorf("%w: invalid user in %q", ErrNotRemote, s)
	}
	if !hostPattern.MatchString(host) {
		return Location{}, fmt.Errorf("%w: invalid host in %q", ErrNotRemote, s)
	}
	return Location{Raw: s, User: user, Host: host, Remote: true}, nil
}

// SSHTarget returns "user@host" or "host".
func (l Location) SSHTarget() string {
	if l.User == "" {
		return l.Host
	}
	return l.User + "@" + l.Host
}

// String reassembles the location in rsync syntax.
func (l Location) String() string {
	if !l.Remote {
		return l.Path
	}
	return l.SSHTarget() + ":" + l.Path
}

func isExplicitlyLocal(s string) bool {
	switch {
	case s == "", s == ".", s == "..":
		return true
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "./"),
		strings.HasPrefix(s, "../"), strings.HasPrefix(s, "~"):
		return true
	}
	slash := strings.IndexByte(s, '/')
	colon := strings.IndexByte(s, ':')
	return colon < 0 || (slash >= 0 && slash < colon)
}
