// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line   string
		want   Progress
		wantOK bool
	}{
		{
			line:   "      1,234,567  45%   10.50MB/s    0:00:12 (xfr#3, to-chk=10/20)",
			want:   Progress{Bytes: "1,234,567", Percent: 45, Speed: "10.50MB/s", ETA: "0:00:12"},
			wantOK: true,
		},
		{
			line:   "        32,768 100%   31.25kB/s    0:00:01",
			want:   Progress{Bytes: "32,768", Percent: 100, Speed: "31.25kB/s", ETA: "0:00:01"},
			wantOK: true,
		},
		{line: "sending incremental file list"},
		{line: "photos/a.jpg"},
	}
	for _, tt := range tests {
		got, ok := ParseProgress(tt.line)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseProgress(%q) = %+v, %v; want %+v, %v", tt.line, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestProgressWriter(t *testing.T) {
	t.Parallel()

	var bar, pass bytes.Buffer
	w := NewProgressWriter(&bar, &pass)

	chunks := []string{
		"sending incremental file list\n",
		"      10,000  10%    1.00MB/s    0:00:09\r      50,0",
		"00  50%    2.00MB/s    0:00:05\r",
		"     100,000 100%    2.50MB/s    0:00:00 (xfr#2, to-chk=0/3)\n",
		"sent 100,200 bytes",
	}
	for _, c := range chunks {
		if n, err := w.Write([]byte(c)); err != nil || n != len(c) {
			t.Fatalf("Write() = %d, %v", n, err)
		}
	}
	if got := w.Last(); got.Percent != 100 || got.Speed != "2.50MB/s" {
		t.Errorf("Last() = %+v", got)
	}
	w.Finish()

	if got := pass.String(); got != "sending incremental file list\nsent 100,200 bytes\n" {
		t.Errorf("passthrough = %q", got)
	}
	if !strings.Contains(bar.String(), "2.50MB/s") {
		t.Errorf("bar output missing speed: %q", bar.String())
	}
}
