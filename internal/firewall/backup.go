// SPDX-License-Identifier: MPL-2.0

package firewall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/hostkit/hostkit/internal/runner"
)

// backupTimeLayout prefixes backup directory names so they sort by age.
const backupTimeLayout = "20060102-150405"

// IPTablesDump is the file name of the iptables-save snapshot in a backup.
const IPTablesDump = "iptables.rules"

// RuleFiles are the ufw files captured by Backup.
var RuleFiles = []string{"user.rules", "user6.rules", "before.rules", "after.rules"}

// ErrBackupNotFound is returned by Restore for unknown backup IDs.
var ErrBackupNotFound = errors.New("backup not found")

// Backup is one snapshot directory.
type Backup struct {
	ID      string
	Path    string
	Created time.Time
	Files   []string
	Size    uint64
}

// Backup copies the rule files into dir/<timestamp>-<id>/ and adds an
// iptables-save dump when iptables is available.
func (f *Firewall) Backup(ctx context.Context, dir string, now time.Time) (Backup, error) {
	id := now.UTC().Format(backupTimeLayout) + "-" + uuid.NewString()[:8]
	b := Backup{ID: id, Path: filepath.Join(dir, id), Created: now.UTC().Truncate(time.Second)}

	if f.DryRun {
		f.Printer.Info("[dry-run] back up %s to %s", f.RulesDir, b.Path)
		return b, nil
	}
	if err := os.MkdirAll(b.Path, 0o700); err != nil {
		return Backup{}, fmt.Errorf("create backup directory: %w", err)
	}

	for _, name := range RuleFiles {
		n, err := copyFile(filepath.Join(f.RulesDir, name), filepath.Join(b.Path, name), 0o600)
		if errors.Is(err, os.ErrNotExist) {
			f.Logger.Debug("rule file missing", "file", name)
			continue
		}
		if err != nil {
			return Backup{}, err
		}
		b.Files = append(b.Files, name)
		b.Size += uint64(n)
	}

	if runner.Exists(f.Runner, "iptables-save") {
		cmd := runner.Command{Name: "iptables-save", Sudo: true, ReadOnly: true}
		res, err := runner.RunChecked(ctx, f.Runner, cmd)
		if err != nil {
			f.Printer.Warn("iptables-save failed: %v", err)
		} else if err := os.WriteFile(filepath.Join(b.Path, IPTablesDump), []byte(res.Stdout), 0o600); err != nil {
			return Backup{}, err
		} else {
			b.Files = append(b.Files, IPTablesDump)
			b.Size += uint64(len(res.Stdout))
		}
	}

	if len(b.Files) == 0 {
		_ = os.Remove(b.Path)
		return Backup{}, fmt.Errorf("no ufw rule files found in %s", f.RulesDir)
	}
	f.Logger.Info("firewall backup", "id", b.ID, "files", len(b.Files))
	return b, nil
}

// ListBackups returns the backups in dir, newest first.
func ListBackups(dir string) ([]Backup, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var backups []Backup
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		created, ok := parseBackupTime(e.Name())
		if !ok {
			continue
		}
		b := Backup{ID: e.Name(), Path: filepath.Join(dir, e.Name()), Created: created}
		files, err := os.ReadDir(b.Path)
		if err != nil {
			continue
		}
		for _, file := range files {
			info, err := file.Info()
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			b.Files = append(b.Files, file.Name())
			b.Size += uint64(info.Size())
		}
		backups = append(backups, b)
	}
	slices.SortFunc(backups, func(a, b Backup) int { return strings.Compare(b.ID, a.ID) })
	return backups, nil
}

// FindBackup returns the backup whose ID equals or starts with id. "latest"
// selects the newest backup.
func FindBackup(dir, id string) (Backup, error) {
	backups, err := ListBackups(dir)
	if err != nil {
		return Backup{}, err
	}
	if len(backups) == 0 {
		return Backup{}, fmt.Errorf("%w: %s is empty", ErrBackupNotFound, dir)
	}
	if id == "" || id == "latest" {
		return backups[0], nil
	}
	var found []Backup
	for _, b := range backups {
		if b.ID == id {
			return b, nil
		}
		if strings.HasPrefix(b.ID, id) {
			found = append(found, b)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return Backup{}, fmt.Errorf("%w: %q", ErrBackupNotFound, id)
	default:
		return Backup{}, fmt.Errorf("%w: %q is ambiguous (%d matches)", ErrBackupNotFound, id, len(found))
	}
}

// Restore copies the rule files of backup id back into RulesDir and reloads
// ufw. The iptables dump is informational and is not restored.
func (f *Firewall) Restore(ctx context.Context, dir, id string) (Backup, error) {
	b, err := FindBackup(dir, id)
	if err != nil {
		return Backup{}, err
	}
	for _, name := range b.Files {
		if !slices.Contains(RuleFiles, name) {
			continue
		}
		dst := filepath.Join(f.RulesDir, name)
		if f.DryRun {
			f.Printer.Info("[dry-run] restore %s -> %s", filepath.Join(b.Path, name), dst)
			continue
		}
		if _, err := copyFile(filepath.Join(b.Path, name), dst, 0o640); err != nil {
			return Backup{}, fmt.Errorf("restore %s: %w", name, err)
		}
	}
	if err := f.Reload(ctx); err != nil {
		return Backup{}, err
	}
	f.Printer.Success("Restored firewall backup %s", b.ID)
	return b, nil
}

func parseBackupTime(name string) (time.Time, bool) {
	if len(name) < len(backupTimeLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(backupTimeLayout, name[:len(backupTimeLayout)])
	return t, err == nil
}

func copyFile(src, dst string, perm os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}
