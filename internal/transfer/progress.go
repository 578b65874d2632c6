// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/cheggaaa/pb/v3"
)

const progressTemplate = `{{bar . "[" "=" ">" " " "]"}} {{percent .}} {{string . "speed"}} ETA {{string . "eta"}}`

// progressPattern matches rsync progress lines such as
// "  1,234,567  45%   10.50MB/s    0:00:12 (xfr#3, to-chk=10/20)".
var progressPattern = regexp.MustCompile(`^\s*([\d,.]+[KMGT]?)\s+(\d{1,3})%\s+(\S+/s)\s+(\d+:\d{2}:\d{2})`)

type (
	// Progress is one parsed rsync progress update.
	Progress struct {
		Bytes   string
		Percent int
		Speed   string
		ETA     string
	}

	// ProgressWriter consumes rsync stdout and renders progress updates as a
	// pb bar. Lines that are not progress updates go to Passthrough.
	ProgressWriter struct {
		Passthrough io.Writer

		mu      sync.Mutex
		bar     *pb.ProgressBar
		pending []byte
		last    Progress
	}
)

// ParseProgress parses a single progress2 or --progress line.
func ParseProgress(line string) (Progress, bool) {
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}
	pct, err := strconv.Atoi(m[2])
	if err != nil || pct > 100 {
		return Progress{}, false
	}
	return Progress{Bytes: m[1], Percent: pct, Speed: m[3], ETA: m[4]}, true
}

// NewProgressWriter renders a bar to out.
func NewProgressWriter(out, passthrough io.Writer) *ProgressWriter {
	bar := pb.ProgressBarTemplate(progressTemplate).New(100)
	bar.SetWriter(out)
	bar.Set(pb.Static, true)
	bar.Set("speed", "")
	bar.Set("eta", "--:--:--")
	bar.Start()
	return &ProgressWriter{Passthrough: passthrough, bar: bar}
}

// Write splits p on carriage returns and newlines; rsync redraws progress
// lines with "\r".
func (w *ProgressWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexAny(w.pending, "\r\n")
		if i < 0 {
			break
		}
		line := string(w.pending[:i])
		w.pending = w.pending[i+1:]
		w.handle(line)
	}
	return len(p), nil
}

func (w *ProgressWriter) handle(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if prog, ok := ParseProgress(line); ok {
		w.last = prog
		w.bar.SetCurrent(int64(prog.Percent))
		w.bar.Set("speed", prog.Speed)
		w.bar.Set("eta", prog.ETA)
		w.bar.Write()
		return
	}
	if w.Passthrough != nil {
		_, _ = io.WriteString(w.Passthrough, line+"\n")
	}
}

// Last returns the most recent progress update.
func (w *ProgressWriter) Last() Progress {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Finish flushes any partial line and completes the bar.
func (w *ProgressWriter) Finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 {
		w.handle(string(w.pending))
		w.pending = nil
	}
	w.bar.Finish()
}
