// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/testutil"
)

func TestStateStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store := &StateStore{Path: filepath.Join(t.TempDir(), "state", StateFileName)}
	if _, err := store.Load(); !errors.Is(err, ErrNoState) {
		t.Fatalf("Load() on empty store error = %v, want ErrNoState", err)
	}

	now := time.Date(2026, 3, 1, 12, 30, 45, 999, time.UTC)
	rec := NewRecord(Options{
		Source: "/data/", Destination: "web1:/srv", Compress: true,
		Excludes: []string{"*.tmp"}, SSHPort: 2222,
	}, now)
	rec.ExitCode = 23
	rec.Args = []string{"-a", "-z", "/data/", "web1:/srv"}

	if err := store.Save(rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ID != rec.ID || got.ID == "" {
		t.Errorf("ID = %q, want %q", got.ID, rec.ID)
	}
	if !got.Timestamp.Equal(now.Truncate(time.Second)) {
		t.Errorf("Timestamp = %v", got.Timestamp)
	}
	if got.ExitCode != 23 || !got.Compress || got.SSHPort != 2222 {
		t.Errorf("record = %+v", got)
	}
	if !slices.Equal(got.Args, rec.Args) || !slices.Equal(got.Excludes, rec.Excludes) {
		t.Errorf("Args = %q Excludes = %q", got.Args, got.Excludes)
	}
}

func TestStateStore_Corrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), StateFileName)
	testutil.MustWriteFile(t, path, "source = [unterminated")
	if _, err := (&StateStore{Path: path}).Load(); err == nil || errors.Is(err, ErrNoState) {
		t.Errorf("Load() error = %v, want decode error", err)
	}
}

func TestRecord_Options(t *testing.T) {
	t.Parallel()

	rec := Record{Source: "a", Destination: "h:b", Checksum: true, BandwidthKBps: 100}
	opts := rec.Options()
	if !opts.Archive || !opts.Checksum || opts.BandwidthKBps != 100 {
		t.Errorf("Options() = %+v", opts)
	}
	if opts.ArchiveFirst != config.ArchiveNever {
		t.Errorf("resumed transfers must not re-archive, got %q", opts.ArchiveFirst)
	}
}

func TestDefaultStateStore(t *testing.T) {
	root := t.TempDir()
	testutil.MustSetenv(t, "XDG_STATE_HOME", root)

	store, err := DefaultStateStore("")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "hostkit", StateFileName)
	if store.Path != want {
		t.Errorf("Path = %q, want %q", store.Path, want)
	}

	store, _ = DefaultStateStore("/tmp/custom.toml")
	if store.Path != "/tmp/custom.toml" {
		t.Errorf("override Path = %q", store.Path)
	}
}
