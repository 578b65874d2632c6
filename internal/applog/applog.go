// SPDX-License-Identifier: MPL-2.0

// Package applog builds hostkit's loggers: a leveled charm logger on stderr
// for diagnostics, and the append-only operation log that records every
// status line with a timestamp.
package applog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// Options selects logger behavior.
type Options struct {
	// Level is a charm log level name. Empty means info.
	Level string
	// Verbose forces debug level.
	Verbose bool
}

// New creates the diagnostic logger writing to w.
func New(w io.Writer, opts Options) (*log.Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Verbose {
		level = log.DebugLevel
	}

	return log.NewWithOptions(w, log.Options{
		Prefix:          "hostkit",
		Level:           level,
		ReportTimestamp: opts.Verbose,
		TimeFormat:      time.Kitchen,
	}), nil
}

// OperationLog is an append-only, timestamped log file.
type OperationLog struct {
	*log.Logger
	file *os.File
}

// OpenOperationLog opens (or creates) path for appending. The parent
// directory is created when missing.
func OpenOperationLog(path string) (*OperationLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open operation log: %w", err)
	}

	logger := log.NewWithOptions(f, log.Options{
		Level:           log.DebugLevel,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Formatter:       log.TextFormatter,
	})
	return &OperationLog{Logger: logger, file: f}, nil
}

// Path returns the file path.
func (l *OperationLog) Path() string { return l.file.Name() }

// Close closes the underlying file.
func (l *OperationLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
