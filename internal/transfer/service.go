// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/hostkit/hostkit/internal/issue"
	"github.com/hostkit/hostkit/internal/pkgmgr"
	"github.com/hostkit/hostkit/internal/remote"
	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/ui"
)

// rsyncExitReasons maps documented rsync exit codes to short explanations.
var rsyncExitReasons = map[int]string{
	1:   "syntax or usage error",
	2:   "protocol incompatibility",
	3:   "errors selecting input/output files or directories",
	5:   "error starting client-server protocol",
	10:  "error in socket I/O",
	11:  "error in file I/O",
	12:  "error in rsync protocol data stream",
	20:  "received SIGUSR1 or SIGINT",
	23:  "partial transfer due to error",
	24:  "partial transfer due to vanished source files",
	30:  "timeout in data send/receive",
	35:  "timeout waiting for daemon connection",
	255: "ssh connection failed",
}

type (
	// Service runs transfers and keeps the last-transfer record.
	Service struct {
		Runner  runner.Runner
		Printer *ui.Printer
		Logger  *log.Logger
		State   *StateStore
		Policy  ArchivePolicy
		// ArchiveFormat is "gz" or "xz".
		ArchiveFormat string
		// Progress receives the progress bar.
		Progress io.Writer
		// TempDir holds archives built before transfer. Empty means os.TempDir.
		TempDir string
		// DryRun skips packing and leaves the last-transfer record alone.
		// Commands go through Runner, which prints them when it is a DryRunner.
		DryRun bool

		archiver Archiver
		now      func() time.Time
	}

	// Outcome describes a finished transfer.
	Outcome struct {
		Record   Record
		Archived bool
		Duration time.Duration
	}
)

// NewService creates a Service with the given collaborators.
func NewService(r runner.Runner, p *ui.Printer, logger *log.Logger, state *StateStore, policy ArchivePolicy, format string) *Service {
	return &Service{
		Runner:        r,
		Printer:       p,
		Logger:        logger,
		State:         state,
		Policy:        policy,
		ArchiveFormat: format,
		Progress:      os.Stderr,
		now:           time.Now,
	}
}

// ExitReason explains an rsync exit status.
func ExitReason(code int) string {
	if reason, ok := rsyncExitReasons[code]; ok {
		return reason
	}
	return "unknown error"
}

// Preview runs rsync in dry-run mode and summarizes what would change. The
// command is read-only, so it executes even under a global dry run.
func (s *Service) Preview(ctx context.Context, opts Options) (DryRunSummary, error) {
	if err := s.requireRsync(); err != nil {
		return DryRunSummary{}, err
	}
	opts.DryRun = true
	opts.Progress = false
	args, err := BuildArgs(opts)
	if err != nil {
		return DryRunSummary{}, err
	}
	cmd := runner.Probe("rsync", args...)
	res, err := runner.RunChecked(ctx, s.Runner, cmd)
	if err != nil {
		return DryRunSummary{}, s.wrapFailure(err, res)
	}
	return ParseDryRun(res.Stdout), nil
}

// Run performs the transfer described by opts and records it for resume.
func (s *Service) Run(ctx context.Context, opts Options) (*Outcome, error) {
	if err := opts.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate transfer").
			WithIssue(issue.InvalidRemotePathId).
			Wrap(err).
			BuildError()
	}
	if err := s.requireRsync(); err != nil {
		return nil, err
	}
	if opts.Progress {
		opts.LegacyProgress = s.legacyProgress(ctx)
	}

	rec := NewRecord(opts, s.clock())
	sendOpts := opts

	archive, err := s.prepareArchive(ctx, opts)
	if err != nil {
		return nil, err
	}
	if archive != nil {
		defer archive.cleanup()
		sendOpts.Source = archive.file
		sendOpts.Destination = asDir(opts.Destination)
		sendOpts.Delete = false
		rec.Archived = true
	}

	res, runErr := s.rsync(ctx, sendOpts)
	if res != nil {
		rec.ExitCode = int(res.ExitCode)
		rec.Args = res.Command.Args
	}
	if runErr == nil && !res.Success() {
		runErr = &runner.CommandError{
			Command:  runner.FormatCommand(res.Command),
			ExitCode: res.ExitCode,
			Stderr:   strings.TrimSpace(res.Stderr),
		}
	}
	if runErr == nil && archive != nil {
		runErr = s.extract(ctx, opts, archive.name)
	}
	if runErr != nil && rec.ExitCode == 0 {
		rec.ExitCode = 1
	}

	if !s.DryRun {
		if err := s.State.Save(rec); err != nil {
			s.Logger.Warn("could not save transfer state", "err", err)
		}
	}

	out := &Outcome{Record: rec, Archived: archive != nil}
	if res != nil {
		out.Duration = res.Duration
	}
	s.Logger.Info("transfer finished",
		"id", rec.ID,
		"source", rec.Source,
		"destination", rec.Destination,
		"exit", rec.ExitCode,
		"archived", rec.Archived,
		"duration", out.Duration.Round(time.Millisecond))

	if runErr != nil {
		return out, s.wrapFailure(runErr, res)
	}
	return out, nil
}

// Resume re-runs the last recorded transfer, keeping partially transferred
// files and verifying appended data.
func (s *Service) Resume(ctx context.Context, progress bool) (*Outcome, error) {
	rec, err := s.Last()
	if err != nil {
		return nil, err
	}
	opts := rec.Options()
	opts.Partial = true
	opts.Progress = progress
	opts.ExtraArgs = append(opts.ExtraArgs, "--append-verify")
	s.Printer.Info("Resuming transfer %s -> %s (started %s)", rec.Source, rec.Destination,
		rec.Timestamp.Local().Format(time.DateTime))
	return s.Run(ctx, opts)
}

// Last returns the last recorded transfer.
func (s *Service) Last() (Record, error) {
	rec, err := s.State.Load()
	if errors.Is(err, ErrNoState) {
		return Record{}, issue.NewErrorContext().
			WithOperation("resume transfer").
			WithResource(s.State.Path).
			WithSuggestion("Run 'hostkit transfer <source> <destination>' first").
			WithIssue(issue.NoPreviousTransferId).
			Wrap(err).
			BuildError()
	}
	return rec, err
}

func (s *Service) rsync(ctx context.Context, opts Options) (*runner.Result, error) {
	args, err := BuildArgs(opts)
	if err != nil {
		return nil, err
	}
	cmd := runner.Command{Name: "rsync", Args: args}
	if !opts.Progress {
		cmd.Stream = true
		s.Printer.Verbosef("rsync %s", runner.QuoteArgs(args))
		return s.Runner.Run(ctx, cmd)
	}

	pw := NewProgressWriter(s.progressOut(), s.Printer.Out)
	cmd.Tee = pw
	res, err := s.Runner.Run(ctx, cmd)
	pw.Finish()
	return res, err
}

// legacyProgress reports whether the installed rsync predates progress2.
// Unknown versions are assumed to be recent.
func (s *Service) legacyProgress(ctx context.Context) bool {
	out, err := runner.Output(ctx, s.Runner, "rsync", "--version")
	if err != nil {
		return false
	}
	v, ok := ParseRsyncVersion(out)
	if !ok {
		return false
	}
	modern, err := pkgmgr.AtLeast(v, MinProgress2Version)
	if err != nil {
		s.Logger.Debug("cannot compare rsync version", "version", v, "err", err)
		return false
	}
	if !modern {
		s.Printer.Verbosef("rsync %s lacks --info=progress2; using --progress", v)
	}
	return !modern
}

type builtArchive struct {
	dir  string
	file string
	name string
}

func (a *builtArchive) cleanup() {
	if a.dir != "" {
		_ = os.RemoveAll(a.dir)
	}
}

// prepareArchive packs a local source directory when the policy asks for it.
func (s *Service) prepareArchive(ctx context.Context, opts Options) (*builtArchive, error) {
	policy := s.Policy
	if opts.ArchiveFirst != "" {
		policy.Mode = opts.ArchiveFirst
	}
	if remote.IsRemote(opts.Source) {
		return nil, nil
	}
	info, err := os.Stat(opts.Source)
	if err != nil || !info.IsDir() {
		return nil, nil
	}
	stats, err := ScanDir(opts.Source)
	if err != nil {
		return nil, err
	}
	if !policy.ShouldArchive(stats) {
		return nil, nil
	}

	format := s.ArchiveFormat
	if format == "" {
		format = FormatGzip
	}
	name := ArchiveName(opts.Source, format)
	size := humanize.IBytes(stats.TotalBytes)
	if s.DryRun {
		s.Printer.Info("[dry-run] pack %d files (%s) into %s", stats.FileCount, size, name)
		return &builtArchive{file: filepath.Join(s.tempDir(), name), name: name}, nil
	}

	dir, err := os.MkdirTemp(s.TempDir, "hostkit-transfer-")
	if err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	a := &builtArchive{dir: dir, name: name}
	a.file = filepath.Join(dir, name)

	s.Printer.Info("Packing %d files (%s) into %s", stats.FileCount, size, name)
	if err := s.archiver.Create(ctx, opts.Source, a.file, format); err != nil {
		a.cleanup()
		return nil, err
	}
	return a, nil
}

// extract unpacks the transferred archive at the destination and removes it.
// A source with a trailing slash copies directory contents, so the top-level
// directory is stripped.
func (s *Service) extract(ctx context.Context, opts Options, name string) error {
	dst := remote.Parse(opts.Destination)
	dir := strings.TrimSuffix(dst.Path, "/")
	if dst.Remote {
		dir = loginRelative(dir)
	}
	if dir == "" {
		dir = "."
	}
	tarball := path.Join(dir, name)
	tarArgs := []string{"tar", "-xf", tarball, "-C", dir}
	if strings.HasSuffix(opts.Source, "/") {
		tarArgs = append(tarArgs, "--strip-components=1")
	}

	if !dst.Remote {
		if _, err := runner.RunChecked(ctx, s.Runner, runner.Cmd(tarArgs[0], tarArgs[1:]...)); err != nil {
			return fmt.Errorf("extract archive: %w", err)
		}
		if s.DryRun {
			return nil
		}
		if err := os.Remove(tarball); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.Logger.Warn("could not remove archive", "path", tarball, "err", err)
		}
		return nil
	}

	script := runner.QuoteArgs(tarArgs) + " && rm -f " + runner.Quote(tarball)
	sshArgs := sshOptions(opts)
	sshArgs = append(sshArgs, dst.SSHTarget(), script)
	if _, err := runner.RunChecked(ctx, s.Runner, runner.Cmd("ssh", sshArgs...)); err != nil {
		return fmt.Errorf("extract archive on %s: %w", dst.Host, err)
	}
	return nil
}

// loginRelative rewrites a "~/" path relative to the directory ssh starts
// in, since a quoted tilde is never expanded by the remote shell.
func loginRelative(p string) string {
	if p == "~" {
		return "."
	}
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		return rest
	}
	return p
}

func sshOptions(opts Options) []string {
	var args []string
	if opts.SSHPort > 0 && opts.SSHPort != 22 {
		args = append(args, "-p", strconv.Itoa(opts.SSHPort))
	}
	if opts.SSHKey != "" {
		args = append(args, "-i", opts.SSHKey)
	}
	return args
}

func (s *Service) requireRsync() error {
	if runner.Exists(s.Runner, "rsync") {
		return nil
	}
	return issue.NewErrorContext().
		WithOperation("transfer files").
		WithResource("rsync").
		WithSuggestion("Install rsync with 'hostkit pkg install rsync'").
		WithIssue(issue.ToolNotFoundId).
		Wrap(runner.ErrNotFound).
		BuildError()
}

func (s *Service) wrapFailure(err error, res *runner.Result) error {
	ctx := issue.NewErrorContext().WithOperation("transfer files").Wrap(err)
	if res != nil && !res.Success() {
		code := int(res.ExitCode)
		ctx = ctx.WithSuggestion(fmt.Sprintf("rsync exit %d: %s", code, ExitReason(code)))
		if code == 23 || code == 30 || code == 20 {
			ctx = ctx.WithSuggestion("Run 'hostkit transfer resume' to continue where it stopped")
		}
		if code == 255 {
			ctx = ctx.WithSuggestion("Check SSH access with 'ssh <host> true'")
		}
	}
	return ctx.WithIssue(issue.CommandFailedId).BuildError()
}

func (s *Service) progressOut() io.Writer {
	if s.Progress != nil {
		return s.Progress
	}
	return os.Stderr
}

func (s *Service) tempDir() string {
	if s.TempDir != "" {
		return s.TempDir
	}
	return os.TempDir()
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func asDir(dst string) string {
	if strings.HasSuffix(dst, "/") || strings.HasSuffix(dst, ":") {
		return dst
	}
	return dst + "/"
}
