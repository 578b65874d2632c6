// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"strings"
	"testing"
)

const sampleDryRun = `sending incremental file list
cd+++++++++ photos/
>f+++++++++ photos/a.jpg
>f+++++++++ photos/b.jpg
>f.st...... notes.txt
cL+++++++++ current -> photos
.d..t...... ./
*deleting   old/report.pdf

Number of files: 1,204 (reg: 1,100, dir: 103, link: 1)
Number of created files: 4 (reg: 2, dir: 1, link: 1)
Number of deleted files: 1 (reg: 1)
Number of regular files transferred: 3
Total file size: 2,147,483,648 bytes
Total transferred file size: 1,048,576 bytes
Literal data: 0 bytes
Matched data: 0 bytes

sent 45,678 bytes  received 321 bytes  30,666.00 bytes/sec
total size is 2,147,483,648  speedup is 46,686.56 (DRY RUN)
`

func TestParseDryRun(t *testing.T) {
	t.Parallel()

	s := ParseDryRun(sampleDryRun)

	if s.NewFiles != 3 {
		t.Errorf("NewFiles = %d, want 3", s.NewFiles)
	}
	if s.UpdatedFiles != 1 {
		t.Errorf("UpdatedFiles = %d, want 1", s.UpdatedFiles)
	}
	if s.Dirs != 1 {
		t.Errorf("Dirs = %d, want 1", s.Dirs)
	}
	if s.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", s.Deleted)
	}
	if s.TotalFiles != 1204 {
		t.Errorf("TotalFiles = %d, want 1204", s.TotalFiles)
	}
	if s.TotalSize != 2147483648 {
		t.Errorf("TotalSize = %d", s.TotalSize)
	}
	if s.TransferSize != 1048576 {
		t.Errorf("TransferSize = %d", s.TransferSize)
	}
	if s.Changes() != 6 {
		t.Errorf("Changes() = %d, want 6", s.Changes())
	}
	if len(s.Samples) == 0 || s.Samples[0] != "photos/" {
		t.Errorf("Samples = %q", s.Samples)
	}
}

func TestParseDryRun_SampleLimit(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for range 25 {
		b.WriteString(">f+++++++++ file\n")
	}
	s := ParseDryRun(b.String())
	if s.NewFiles != 25 {
		t.Errorf("NewFiles = %d, want 25", s.NewFiles)
	}
	if len(s.Samples) != maxSamples {
		t.Errorf("len(Samples) = %d, want %d", len(s.Samples), maxSamples)
	}
}

func TestParseDryRun_StatsOnly(t *testing.T) {
	t.Parallel()

	// Without --itemize-changes only the --stats block is printed.
	_, stats, _ := strings.Cut(sampleDryRun, "\n\n")
	s := ParseDryRun(stats)

	if s.NewFiles != 3 || s.UpdatedFiles != 1 || s.Dirs != 1 || s.Deleted != 1 {
		t.Errorf("summary = %+v, want 3 new, 1 updated, 1 dir, 1 deleted", s)
	}
	if s.Changes() != 6 {
		t.Errorf("Changes() = %d, want 6", s.Changes())
	}
	if len(s.Samples) != 0 {
		t.Errorf("Samples = %q, want none", s.Samples)
	}
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want uint64
	}{
		{"1,234 (reg: 1,000, dir: 234)", 1234},
		{"12,345 bytes", 12345},
		{"0", 0},
		{"1.5K", 1500},
		{"", 0},
		{"n/a", 0},
	}
	for _, tt := range tests {
		if got := parseNumber(tt.in); got != tt.want {
			t.Errorf("parseNumber(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	opts := Options{Source: "/data/", Destination: "web1:/srv"}
	out := RenderSummary(ParseDryRun(sampleDryRun), opts)
	for _, want := range []string{"Transfer preview", "/data/", "web1:/srv", "2.0 GiB", "1.0 MiB", "photos/a.jpg"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	empty := RenderSummary(DryRunSummary{}, opts)
	if !strings.Contains(empty, "up to date") {
		t.Errorf("empty summary should say up to date:\n%s", empty)
	}
}
