// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/remote"
	"github.com/hostkit/hostkit/internal/runner"
)

var (
	// ErrEmptyEndpoint is returned when the source or destination is empty.
	ErrEmptyEndpoint = errors.New("source and destination are required")
	// ErrBothRemote is returned when both endpoints are remote; rsync cannot
	// copy between two remote hosts.
	ErrBothRemote = errors.New("source and destination cannot both be remote")
)

// MinProgress2Version is the first rsync release with --info=progress2.
const MinProgress2Version = "3.1.0"

var rsyncVersionPattern = regexp.MustCompile(`version\s+v?(\d+\.\d+(?:\.\d+)?)`)

// Options describes one rsync invocation.
type Options struct {
	Source      string
	Destination string

	Archive  bool
	Compress bool
	Delete   bool
	Checksum bool
	Partial  bool
	Progress bool
	DryRun   bool
	Verbose  bool
	// LegacyProgress selects --progress for rsync older than 3.1.0.
	LegacyProgress bool

	Excludes      []string
	BandwidthKBps int
	SSHPort       int
	SSHKey        string
	ExtraArgs     []string

	ArchiveFirst config.ArchiveMode
}

// Validate checks the endpoints.
func (o Options) Validate() error {
	if o.Source == "" || o.Destination == "" {
		return ErrEmptyEndpoint
	}
	if remote.IsRemote(o.Source) && remote.IsRemote(o.Destination) {
		return fmt.Errorf("%w: %s -> %s", ErrBothRemote, o.Source, o.Destination)
	}
	return nil
}

// IsRemote reports whether either endpoint is remote.
func (o Options) IsRemote() bool {
	return remote.IsRemote(o.Source) || remote.IsRemote(o.Destination)
}

// BuildArgs returns the rsync arguments for opts in a fixed order: mode
// flags, progress, bandwidth, excludes, remote shell, dry-run reporting,
// extra arguments, then source and destination.
func BuildArgs(opts Options) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var args []string
	if opts.Archive {
		args = append(args, "-a")
	}
	if opts.Verbose {
		args = append(args, "-v")
	}
	if opts.Compress {
		args = append(args, "-z")
	}
	if opts.Checksum {
		args = append(args, "-c")
	}
	if opts.Delete {
		args = append(args, "--delete")
	}
	if opts.Partial {
		args = append(args, "--partial")
	}
	if opts.Progress && !opts.DryRun {
		if opts.LegacyProgress {
			args = append(args, "--progress")
		} else {
			args = append(args, "--info=progress2")
		}
	}
	if opts.BandwidthKBps > 0 {
		args = append(args, "--bwlimit="+strconv.Itoa(opts.BandwidthKBps))
	}
	for _, pattern := range opts.Excludes {
		args = append(args, "--exclude="+pattern)
	}
	if shell := remoteShell(opts); shell != "" {
		args = append(args, "-e", shell)
	}
	if opts.DryRun {
		args = append(args, "--dry-run", "--itemize-changes", "--stats")
	}
	args = append(args, opts.ExtraArgs...)
	args = append(args, opts.Source, opts.Destination)
	return args, nil
}

// remoteShell returns the -e value when a remote endpoint needs a
// non-default port or identity.
func remoteShell(opts Options) string {
	if !opts.IsRemote() {
		return ""
	}
	argv := []string{"ssh"}
	if opts.SSHPort > 0 && opts.SSHPort != 22 {
		argv = append(argv, "-p", strconv.Itoa(opts.SSHPort))
	}
	if opts.SSHKey != "" {
		argv = append(argv, "-i", opts.SSHKey)
	}
	if len(argv) == 1 {
		return ""
	}
	return runner.QuoteArgs(argv)
}

// ParseRsyncVersion extracts the version from "rsync --version" output.
func ParseRsyncVersion(out string) (string, bool) {
	m := rsyncVersionPattern.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	return m[1], true
}
