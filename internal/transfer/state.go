// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/hostkit/hostkit/internal/config"
)

// StateFileName is the file name of the last-transfer record.
const StateFileName = "last_transfer.toml"

// ErrNoState is returned when no transfer has been recorded yet.
var ErrNoState = errors.New("no previous transfer recorded")

type (
	// Record describes the most recent transfer.
	Record struct {
		ID          string    `toml:"id"`
		Source      string    `toml:"source"`
		Destination string    `toml:"destination"`
		Timestamp   time.Time `toml:"timestamp"`
		ExitCode    int       `toml:"exit_code"`
		Args        []string  `toml:"args"`
		Archived    bool      `toml:"archived,omitempty"`

		Compress      bool     `toml:"compress"`
		Checksum      bool     `toml:"checksum"`
		Delete        bool     `toml:"delete"`
		Excludes      []string `toml:"excludes,omitempty"`
		BandwidthKBps int      `toml:"bandwidth_kbps,omitempty"`
		SSHPort       int      `toml:"ssh_port,omitempty"`
		SSHKey        string   `toml:"ssh_key,omitempty"`
	}

	// StateStore persists the last Record as TOML.
	StateStore struct {
		Path string
	}
)

// NewRecord captures opts with a fresh ID.
func NewRecord(opts Options, now time.Time) Record {
	return Record{
		ID:            uuid.NewString(),
		Source:        opts.Source,
		Destination:   opts.Destination,
		Timestamp:     now.UTC().Truncate(time.Second),
		Compress:      opts.Compress,
		Checksum:      opts.Checksum,
		Delete:        opts.Delete,
		Excludes:      opts.Excludes,
		BandwidthKBps: opts.BandwidthKBps,
		SSHPort:       opts.SSHPort,
		SSHKey:        opts.SSHKey,
	}
}

// Options rebuilds transfer options for resuming r.
func (r Record) Options() Options {
	return Options{
		Source:        r.Source,
		Destination:   r.Destination,
		Archive:       true,
		Compress:      r.Compress,
		Checksum:      r.Checksum,
		Delete:        r.Delete,
		Excludes:      r.Excludes,
		BandwidthKBps: r.BandwidthKBps,
		SSHPort:       r.SSHPort,
		SSHKey:        r.SSHKey,
		ArchiveFirst:  config.ArchiveNever,
	}
}

// DefaultStateStore returns the store under the hostkit state directory, or
// at override when set.
func DefaultStateStore(override string) (*StateStore, error) {
	if override != "" {
		return &StateStore{Path: override}, nil
	}
	dir, err := config.StateDir()
	if err != nil {
		return nil, err
	}
	return &StateStore{Path: filepath.Join(dir, StateFileName)}, nil
}

// Save writes r, replacing any previous record.
func (s *StateStore) Save(r Record) error {
	data, err := toml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode transfer state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write transfer state: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write transfer state: %w", err)
	}
	return nil
}

// Load reads the last record. It returns ErrNoState when none exists.
func (s *StateStore) Load() (Record, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, ErrNoState
	}
	if err != nil {
		return Record{}, fmt.Errorf("read transfer state: %w", err)
	}
	var r Record
	if err := toml.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	return r, nil
}
