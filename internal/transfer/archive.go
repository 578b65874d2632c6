// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/hostkit/hostkit/internal/config"
)

// Archive formats.
const (
	FormatGzip = "gz"
	FormatXZ   = "xz"
)

// ErrUnsupportedFormat is returned for archive formats other than gz and xz.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

type (
	// DirStats summarizes a source directory.
	DirStats struct {
		FileCount  int
		TotalBytes uint64
	}

	// ArchivePolicy decides whether a source is packed before transfer.
	ArchivePolicy struct {
		Mode       config.ArchiveMode
		MinFiles   int
		MaxAvgSize uint64
	}

	// Archiver packs directories into compressed tarballs.
	Archiver struct{}
)

// AverageSize is the mean regular file size, zero for empty directories.
func (s DirStats) AverageSize() uint64 {
	if s.FileCount == 0 {
		return 0
	}
	return s.TotalBytes / uint64(s.FileCount)
}

// PolicyFromConfig builds an ArchivePolicy from the transfer section.
func PolicyFromConfig(cfg config.TransferConfig) (ArchivePolicy, error) {
	p := ArchivePolicy{Mode: cfg.ArchiveMode, MinFiles: cfg.ArchiveMinFiles}
	if p.Mode == "" {
		p.Mode = config.ArchiveAuto
	}
	if cfg.ArchiveMaxAvgSize != "" {
		n, err := humanize.ParseBytes(cfg.ArchiveMaxAvgSize)
		if err != nil {
			return ArchivePolicy{}, fmt.Errorf("archive_max_avg_size: %w", err)
		}
		p.MaxAvgSize = n
	}
	return p, nil
}

// ShouldArchive applies the policy to a local source directory. In auto mode
// a directory qualifies when it holds at least MinFiles regular files whose
// average size is below MaxAvgSize.
func (p ArchivePolicy) ShouldArchive(stats DirStats) bool {
	switch p.Mode {
	case config.ArchiveAlways:
		return true
	case config.ArchiveNever:
		return false
	}
	if p.MinFiles <= 0 || stats.FileCount < p.MinFiles {
		return false
	}
	return p.MaxAvgSize == 0 || stats.AverageSize() < p.MaxAvgSize
}

// ScanDir counts the regular files below path and their total size.
func ScanDir(path string) (DirStats, error) {
	var stats DirStats
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.FileCount++
		stats.TotalBytes += uint64(info.Size())
		return nil
	})
	if err != nil {
		return DirStats{}, fmt.Errorf("scan %s: %w", path, err)
	}
	return stats, nil
}

// ArchiveName returns the tarball file name for a source directory.
func ArchiveName(srcDir, format string) string {
	base := filepath.Base(filepath.Clean(srcDir))
	return base + ".tar." + format
}

// Create writes srcDir into destFile as a compressed tar. Entries are stored
// relative to the parent of srcDir so extraction recreates the directory.
// Only regular files, directories and symlinks are included.
func (Archiver) Create(ctx context.Context, srcDir, destFile, format string) (err error) {
	out, err := os.Create(destFile)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(destFile)
		}
	}()

	zw, err := compressor(out, format)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(zw)

	if err = writeTree(ctx, tw, srcDir); err != nil {
		return err
	}
	if err = tw.Close(); err != nil {
		return fmt.Errorf("finish tar: %w", err)
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("finish %s stream: %w", format, err)
	}
	return nil
}

func compressor(w io.Writer, format string) (io.WriteCloser, error) {
	switch format {
	case FormatGzip, "":
		return gzip.NewWriterLevel(w, gzip.BestSpeed)
	case FormatXZ:
		return xz.NewWriter(w)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func writeTree(ctx context.Context, tw *tar.Writer, srcDir string) error {
	root := filepath.Clean(srcDir)
	parent := filepath.Dir(root)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		mode := d.Type()
		if !mode.IsRegular() && !mode.IsDir() && mode&fs.ModeSymlink == 0 {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		var link string
		if mode&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if mode.IsDir() && !strings.HasSuffix(hdr.Name, "/") {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("tar header %s: %w", rel, err)
		}
		if !mode.IsRegular() {
			return nil
		}
		return copyFile(tw, path)
	})
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = io.Copy(w, f)
	return err
}
