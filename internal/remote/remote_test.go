// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		remote bool
		user   string
		host   string
		path   string
	}{
		{in: "user@host:/path", remote: true, user: "user", host: "host", path: "/path"},
		{in: "host:/srv/data", remote: true, host: "host", path: "/srv/data"},
		{in: "deploy@10.0.0.5:backups/", remote: true, user: "deploy", host: "10.0.0.5", path: "backups/"},
		{in: "host:", remote: true, host: "host", path: ""},
		{in: "/var/www", path: "/var/www"},
		{in: "./build:out", path: "./build:out"},
		{in: "../up", path: "../up"},
		{in: "~/Documents", path: "~/Documents"},
		{in: "dir/with:colon", path: "dir/with:colon"},
		{in: "plainfile", path: "plainfile"},
		{in: "", path: ""},
		{in: "a@b@c:/x", path: "a@b@c:/x"},
		{in: "my host:/x", path: "my host:/x"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := Parse(tt.in)
			if got.Remote != tt.remote || got.User != tt.user || got.Host != tt.host || got.Path != tt.path {
				t.Errorf("Parse(%q) = %+v", tt.in, got)
			}
			if got.Raw != tt.in {
				t.Errorf("Raw = %q", got.Raw)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want round trip to %q", got.String(), tt.in)
			}
		})
	}
}

func TestLocation_SSHTarget(t *testing.T) {
	t.Parallel()

	if got := Parse("alice@box:/x").SSHTarget(); got != "alice@box" {
		t.Errorf("SSHTarget = %q", got)
	}
	if got := Parse("box:/x").SSHTarget(); got != "box" {
		t.Errorf("SSHTarget = %q", got)
	}
}

func TestParseTarget(t *testing.T) {
	t.Parallel()

	valid := []string{"alice@server.example.com", "server", "root@192.168.1.10", "nas-01"}
	for _, s := range valid {
		if _, err := ParseTarget(s); err != nil {
			t.Errorf("ParseTarget(%q) error = %v", s, err)
		}
	}

	invalid := []string{"", "@host", "alice@", "alice@host:/path", "-oProxyCommand=x", "a b"}
	for _, s := range invalid {
		if _, err := ParseTarget(s); !errors.Is(err, ErrNotRemote) {
			t.Errorf("ParseTarget(%q) error = %v, want ErrNotRemote", s, err)
		}
	}
}
