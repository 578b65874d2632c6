// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"errors"
	"slices"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "local archive copy",
			opts: Options{Source: "src/", Destination: "/backup", Archive: true},
			want: []string{"-a", "src/", "/backup"},
		},
		{
			name: "all flags",
			opts: Options{
				Source: "/data/", Destination: "deploy@web1:/srv/data",
				Archive: true, Verbose: true, Compress: true, Checksum: true, Delete: true, Partial: true,
				Progress: true, BandwidthKBps: 500, Excludes: []string{"*.log", "node_modules"},
				SSHPort: 2222, SSHKey: "/home/me/.ssh/id_ed25519", ExtraArgs: []string{"--numeric-ids"},
			},
			want: []string{
				"-a", "-v", "-z", "-c", "--delete", "--partial", "--info=progress2", "--bwlimit=500",
				"--exclude=*.log", "--exclude=node_modules",
				"-e", "ssh -p 2222 -i /home/me/.ssh/id_ed25519",
				"--numeric-ids", "/data/", "deploy@web1:/srv/data",
			},
		},
		{
			name: "legacy progress",
			opts: Options{Source: "a", Destination: "b", Progress: true, LegacyProgress: true},
			want: []string{"--progress", "a", "b"},
		},
		{
			name: "dry run drops progress",
			opts: Options{Source: "a", Destination: "host:b", Archive: true, Progress: true, DryRun: true},
			want: []string{"-a", "--dry-run", "--itemize-changes", "--stats", "a", "host:b"},
		},
		{
			name: "default port adds no shell",
			opts: Options{Source: "a", Destination: "host:b", SSHPort: 22},
			want: []string{"a", "host:b"},
		},
		{
			name: "shell options ignored for local copies",
			opts: Options{Source: "a", Destination: "b", SSHPort: 2222},
			want: []string{"a", "b"},
		},
		{
			name: "quoted key path",
			opts: Options{Source: "host:a", Destination: "b", SSHKey: "/keys/my key"},
			want: []string{"-e", "ssh -i '/keys/my key'", "host:a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := BuildArgs(tt.opts)
			if err != nil {
				t.Fatalf("BuildArgs() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("BuildArgs() =\n  %q\nwant\n  %q", got, tt.want)
			}
		})
	}
}

func TestBuildArgs_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"empty source", Options{Destination: "b"}, ErrEmptyEndpoint},
		{"empty destination", Options{Source: "a"}, ErrEmptyEndpoint},
		{"remote to remote", Options{Source: "h1:/a", Destination: "h2:/b"}, ErrBothRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := BuildArgs(tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("BuildArgs() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseRsyncVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		out    string
		want   string
		wantOK bool
	}{
		{"rsync  version 3.2.7  protocol version 31\nCopyright (C) 1996-2022", "3.2.7", true},
		{"rsync  version v3.3.0  protocol version 32", "3.3.0", true},
		{"rsync version 2.6.9  protocol version 29", "2.6.9", true},
		{"openrsync: protocol version 29", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRsyncVersion(tt.out)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseRsyncVersion(%q) = %q, %v; want %q, %v", tt.out, got, ok, tt.want, tt.wantOK)
		}
	}
}
