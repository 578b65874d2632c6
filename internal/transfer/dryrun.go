// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hostkit/hostkit/internal/ui"
)

// maxSamples bounds the example paths kept per summary.
const maxSamples = 10

// DryRunSummary condenses "rsync --dry-run --itemize-changes --stats" output.
type DryRunSummary struct {
	NewFiles     int
	UpdatedFiles int
	Deleted      int
	Dirs         int
	// TotalFiles is rsync's "Number of files" (all entries considered).
	TotalFiles   int
	TotalSize    uint64
	TransferSize uint64
	Samples      []string
}

// Changes is the number of entries rsync would touch.
func (s DryRunSummary) Changes() int {
	return s.NewFiles + s.UpdatedFiles + s.Deleted + s.Dirs
}

// ParseDryRun reads itemized change lines and the --stats block. Numbers may
// carry thousands separators and a "bytes" suffix.
// When no itemized lines are present the change counts come from the
// created, deleted and transferred totals instead.
func ParseDryRun(output string) DryRunSummary {
	var (
		s      DryRunSummary
		counts statCounts
	)
	sc := bufio.NewScanner(strings.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		if key, value, ok := strings.Cut(line, ": "); ok && isStatsKey(key) {
			applyStat(&s, &counts, key, value)
			continue
		}
		parseItemized(&s, line)
	}
	if s.Changes() == 0 && counts.seen {
		counts.fill(&s)
	}
	return s
}

func parseItemized(s *DryRunSummary, line string) {
	if path, ok := strings.CutPrefix(line, "*deleting"); ok {
		s.Deleted++
		s.sample(strings.TrimSpace(path))
		return
	}
	// YXcstpoguax followed by a space and the path.
	if len(line) < 13 || line[11] != ' ' {
		return
	}
	flags, path := line[:11], line[12:]
	update, kind, attrs := flags[0], flags[1], flags[2:]

	switch {
	case kind == 'd' && update == 'c':
		s.Dirs++
		s.sample(path)
	case (update == '>' || update == '<' || update == 'c') && (kind == 'f' || kind == 'L'):
		if strings.Trim(attrs, "+") == "" {
			s.NewFiles++
		} else {
			s.UpdatedFiles++
		}
		s.sample(path)
	}
}

func (s *DryRunSummary) sample(path string) {
	if len(s.Samples) < maxSamples {
		s.Samples = append(s.Samples, path)
	}
}

func isStatsKey(key string) bool {
	switch key {
	case "Number of files", "Number of created files", "Number of deleted files",
		"Number of regular files transferred", "Total file size", "Total transferred file size":
		return true
	}
	return false
}

// statCounts holds the --stats change totals.
type statCounts struct {
	created     int
	createdDirs int
	createdRegs int
	deleted     int
	transferred int
	seen        bool
}

func (c statCounts) fill(s *DryRunSummary) {
	s.Dirs = c.createdDirs
	s.NewFiles = max(c.created-c.createdDirs, 0)
	s.UpdatedFiles = max(c.transferred-c.createdRegs, 0)
	s.Deleted = c.deleted
}

func applyStat(s *DryRunSummary, c *statCounts, key, value string) {
	switch key {
	case "Number of created files":
		c.created = int(parseNumber(value))
		c.createdDirs = breakdown(value, "dir")
		c.createdRegs = breakdown(value, "reg")
		if !strings.Contains(value, "(") {
			c.createdRegs = c.created
		}
		c.seen = true
	case "Number of deleted files":
		c.deleted = int(parseNumber(value))
		c.seen = true
	case "Number of regular files transferred":
		c.transferred = int(parseNumber(value))
		c.seen = true
	case "Number of files":
		s.TotalFiles = int(parseNumber(value))
	case "Total file size":
		s.TotalSize = parseNumber(value)
	case "Total transferred file size":
		s.TransferSize = parseNumber(value)
	}
}

// breakdown returns the count labelled kind in a value such as
// "12 (reg: 10, dir: 2)", or 0 when absent.
func breakdown(value, kind string) int {
	_, rest, ok := strings.Cut(value, "(")
	if !ok {
		return 0
	}
	for part := range strings.SplitSeq(strings.TrimSuffix(strings.TrimSpace(rest), ")"), ",") {
		label, n, ok := strings.Cut(strings.TrimSpace(part), ": ")
		if ok && label == kind {
			return int(parseNumber(n))
		}
	}
	return 0
}

// parseNumber reads the leading number of a stats value such as
// "1,234 (reg: 1,000, dir: 234)" or "12,345 bytes". Human-readable values
// ("1.23M") from rsync -h are accepted too.
func parseNumber(value string) uint64 {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0
	}
	raw := strings.ReplaceAll(fields[0], ",", "")
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return n
	}
	if n, err := humanize.ParseBytes(raw); err == nil {
		return n
	}
	return 0
}

// RenderSummary renders s as a bordered box.
func RenderSummary(s DryRunSummary, opts Options) string {
	rows := []string{
		ui.Row("Source", opts.Source),
		ui.Row("Destination", opts.Destination),
		"",
		ui.Row("New files", s.NewFiles),
		ui.Row("Updated files", s.UpdatedFiles),
		ui.Row("New directories", s.Dirs),
		ui.Row("Deleted", s.Deleted),
		ui.Row("Files considered", s.TotalFiles),
		ui.Row("Total size", humanize.IBytes(s.TotalSize)),
		ui.Row("To transfer", humanize.IBytes(s.TransferSize)),
	}
	if len(s.Samples) > 0 {
		rows = append(rows, "", ui.SubtitleStyle.Render("Examples:"))
		for _, p := range s.Samples {
			rows = append(rows, "  "+p)
		}
	}
	if s.Changes() == 0 {
		rows = append(rows, "", ui.SuccessStyle.Render("Nothing to do: destination is up to date"))
	}
	return ui.Box("Transfer preview", rows)
}
