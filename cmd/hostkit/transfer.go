// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/transfer"
	"github.com/hostkit/hostkit/internal/ui"
)

type transferFlags struct {
	compress     bool
	checksum     bool
	deleteExtra  bool
	partial      bool
	progress     bool
	preview      bool
	excludes     []string
	bwlimit      int
	port         int
	identity     string
	archiveFirst string
}

// newTransferCommand creates the `hostkit transfer` command tree.
func newTransferCommand(app *App) *cobra.Command {
	var (
		f           transferFlags
		transferCmd *cobra.Command
	)
	transferCmd = &cobra.Command{
		Use:   "transfer <source> <destination>",
		Short: "Copy files locally or over SSH with rsync",
		Long: `Copy files locally or over SSH with rsync.

Either side may be a remote path of the form [user@]host:/path. Defaults for
compression, checksums, excludes and bandwidth come from the transfer section
of the configuration; flags override them.

With --preview, rsync first runs in its own dry-run mode and a summary of the
changes is shown before asking to proceed.`,
		Example: `  hostkit transfer ./site deploy@web1:/srv/www
  hostkit transfer backup:/var/backups ./backups --preview --exclude '*.tmp'
  hostkit transfer resume`,
		Args: cobra.ExactArgs(2),
		RunE: app.run(func(ctx context.Context, args []string) error {
			return runTransfer(ctx, app, args[0], args[1], f, transferCmd.Flags().Changed)
		}),
	}

	fl := transferCmd.Flags()
	fl.BoolVarP(&f.compress, "compress", "z", false, "compress data during the transfer")
	fl.BoolVarP(&f.checksum, "checksum", "c", false, "compare files by checksum instead of size and time")
	fl.BoolVar(&f.deleteExtra, "delete", false, "delete destination files missing from the source")
	fl.BoolVar(&f.partial, "partial", false, "keep partially transferred files")
	fl.BoolVar(&f.progress, "progress", false, "show a progress bar")
	fl.BoolVar(&f.preview, "preview", false, "summarize the changes with an rsync dry run before transferring")
	fl.StringArrayVar(&f.excludes, "exclude", nil, "exclude files matching `PATTERN` (repeatable)")
	fl.IntVar(&f.bwlimit, "bwlimit", 0, "limit bandwidth in KiB/s")
	fl.IntVarP(&f.port, "port", "p", 0, "SSH port of the remote side")
	fl.StringVarP(&f.identity, "identity", "i", "", "SSH private key for the remote side")
	fl.StringVar(&f.archiveFirst, "archive-first", "", "pack the source into a tarball first: auto, always or never")

	var resumeProgress bool
	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume the last transfer, keeping partial files",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ []string) error {
			svc, err := newTransferService(app)
			if err != nil {
				return err
			}
			out, err := svc.Resume(ctx, resumeProgress || app.cfg.Transfer.Progress)
			if err != nil {
				return err
			}
			reportTransfer(app.printer, out)
			return nil
		}),
	}
	resumeCmd.Flags().BoolVar(&resumeProgress, "progress", false, "show a progress bar")

	transferCmd.AddCommand(resumeCmd)
	transferCmd.AddCommand(&cobra.Command{
		Use:   "last",
		Short: "Show the last recorded transfer",
		Args:  cobra.NoArgs,
		RunE: app.run(func(context.Context, []string) error {
			svc, err := newTransferService(app)
			if err != nil {
				return err
			}
			rec, err := svc.Last()
			if err != nil {
				return err
			}
			app.printer.Box("Last transfer", recordLines(rec))
			return nil
		}),
	})

	return transferCmd
}

func newTransferService(app *App) (*transfer.Service, error) {
	policy, err := transfer.PolicyFromConfig(app.cfg.Transfer)
	if err != nil {
		return nil, err
	}
	store, err := transfer.DefaultStateStore(app.cfg.Transfer.StateFile)
	if err != nil {
		return nil, err
	}
	svc := transfer.NewService(app.runner, app.printer, app.logger, store, policy, app.cfg.Transfer.ArchiveFormat)
	svc.Progress = app.stderr
	svc.DryRun = app.flags.dryRun
	return svc, nil
}

// transferOptions merges the configured defaults with the flags the user set.
func transferOptions(cfg *config.Config, src, dst string, f transferFlags, changed func(string) bool) transfer.Options {
	tc := cfg.Transfer
	opts := transfer.Options{
		Source:        src,
		Destination:   dst,
		Archive:       true,
		Compress:      tc.Compress,
		Checksum:      tc.Checksum,
		Partial:       tc.Partial,
		Progress:      tc.Progress,
		Excludes:      append([]string(nil), tc.Excludes...),
		BandwidthKBps: tc.BandwidthKBps,
		SSHKey:        cfg.SSH.Identity,
	}
	if cfg.SSH.Port != 0 && cfg.SSH.Port != 22 {
		opts.SSHPort = cfg.SSH.Port
	}

	if changed("compress") {
		opts.Compress = f.compress
	}
	if changed("checksum") {
		opts.Checksum = f.checksum
	}
	if changed("partial") {
		opts.Partial = f.partial
	}
	if changed("progress") {
		opts.Progress = f.progress
	}
	if changed("bwlimit") {
		opts.BandwidthKBps = f.bwlimit
	}
	if changed("port") {
		opts.SSHPort = f.port
	}
	if changed("identity") {
		opts.SSHKey = f.identity
	}
	opts.Delete = f.deleteExtra
	opts.Excludes = append(opts.Excludes, f.excludes...)
	if f.archiveFirst != "" {
		opts.ArchiveFirst = config.ArchiveMode(f.archiveFirst)
	}
	return opts
}

func runTransfer(ctx context.Context, app *App, src, dst string, f transferFlags, changed func(string) bool) error {
	if f.archiveFirst != "" {
		if ok, errs := config.ArchiveMode(f.archiveFirst).IsValid(); !ok {
			return errs[0]
		}
	}
	svc, err := newTransferService(app)
	if err != nil {
		return err
	}
	opts := transferOptions(app.cfg, src, dst, f, changed)
	opts.Verbose = app.printer.Verbose

	if f.preview {
		summary, err := svc.Preview(ctx, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(app.stdout, transfer.RenderSummary(summary, opts))
		if summary.Changes() == 0 {
			return nil
		}
		ok, err := app.confirm("Proceed with the transfer?", false)
		if err != nil {
			return err
		}
		if !ok {
			app.printer.Warn("Transfer cancelled")
			return nil
		}
	}

	out, err := svc.Run(ctx, opts)
	if err != nil {
		return err
	}
	reportTransfer(app.printer, out)
	return nil
}

func reportTransfer(p *ui.Printer, out *transfer.Outcome) {
	how := ""
	if out.Archived {
		how = " as an archive"
	}
	p.Success("Transferred %s -> %s%s in %s", out.Record.Source, out.Record.Destination, how,
		out.Duration.Round(time.Millisecond))
	p.Verbosef("Transfer id %s", out.Record.ID)
}

func recordLines(rec transfer.Record) []string {
	status := ui.SuccessStyle.Render("succeeded")
	if rec.ExitCode != 0 {
		status = ui.ErrorStyle.Render(fmt.Sprintf("failed (exit %d: %s)", rec.ExitCode, transfer.ExitReason(rec.ExitCode)))
	}
	return []string{
		ui.Row("ID", rec.ID),
		ui.Row("Source", rec.Source),
		ui.Row("Destination", rec.Destination),
		ui.Row("When", fmt.Sprintf("%s (%s)", rec.Timestamp.Local().Format(time.DateTime), humanize.Time(rec.Timestamp))),
		ui.Row("Archived", rec.Archived),
		ui.Row("Status", status),
	}
}
