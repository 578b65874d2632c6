// SPDX-License-Identifier: MPL-2.0

package logview

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Follow writes lines appended to path that satisfy match until ctx is
// cancelled. It watches the parent directory so it survives truncation and
// rotation (rename or remove followed by a new file). A nil match writes
// every line.
func Follow(ctx context.Context, path string, match func(string) bool, w io.Writer) error {
	if match == nil {
		match = func(string) bool { return true }
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("follow: resolve path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("follow: create fsnotify watcher: %w", err)
	}
	defer fsw.Close() //nolint:errcheck // best-effort cleanup

	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("follow: watch %s: %w", filepath.Dir(abs), err)
	}

	t := &tailer{path: abs, match: match, w: w}
	if err := t.open(true); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	defer t.close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create):
				t.close()
				if err := t.open(false); err != nil {
					return err
				}
				if err := t.drain(); err != nil {
					return err
				}
			case ev.Has(fsnotify.Write):
				if err := t.drain(); err != nil {
					return err
				}
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				t.close()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("follow: watcher error: %w", err)
		}
	}
}

// tailer tracks the open file, read offset and any trailing partial line.
type tailer struct {
	path    string
	match   func(string) bool
	w       io.Writer
	f       *os.File
	offset  int64
	partial string
}

func (t *tailer) open(atEnd bool) error {
	f, err := os.Open(t.path)
	if err != nil {
		return err
	}
	t.f, t.offset, t.partial = f, 0, ""
	if atEnd {
		end, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			return err
		}
		t.offset = end
	}
	return nil
}

func (t *tailer) close() {
	if t.f != nil {
		_ = t.f.Close()
		t.f = nil
	}
}

// drain reads from the current offset to EOF and emits complete lines.
func (t *tailer) drain() error {
	if t.f == nil {
		if err := t.open(false); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
	}

	info, err := t.f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < t.offset {
		// Truncated in place.
		t.offset, t.partial = 0, ""
	}
	if _, err := t.f.Seek(t.offset, io.SeekStart); err != nil {
		return err
	}

	r := bufio.NewReader(t.f)
	for {
		chunk, err := r.ReadString('\n')
		t.offset += int64(len(chunk))
		if errors.Is(err, io.EOF) {
			t.partial += chunk
			return nil
		}
		if err != nil {
			return err
		}
		line := strings.TrimRight(t.partial+chunk, "\r\n")
		t.partial = ""
		if t.match(line) {
			if _, err := fmt.Fprintln(t.w, line); err != nil {
				return err
			}
		}
	}
}
