// SPDX-License-Identifier: MPL-2.0

package runner

import "testing"

func TestFormatCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "plain words",
			cmd:  Cmd("systemctl", "restart", "vsftpd"),
			want: "systemctl restart vsftpd",
		},
		{
			name: "argument with space",
			cmd:  Cmd("rsync", "-a", "my dir/", "host:/srv"),
			want: "rsync -a 'my dir/' host:/srv",
		},
		{
			name: "empty argument",
			cmd:  Cmd("ssh-keygen", "-N", ""),
			want: "ssh-keygen -N ''",
		},
		{
			name: "sudo prefix",
			cmd:  Command{Name: "ufw", Args: []string{"reload"}, Sudo: true},
			want: "sudo ufw reload",
		},
		{
			name: "env assignment",
			cmd: Command{
				Name: "apt-get",
				Args: []string{"install", "-y", "git"},
				Env:  []string{"DEBIAN_FRONTEND=noninteractive"},
			},
			want: "DEBIAN_FRONTEND=noninteractive apt-get install -y git",
		},
		{
			name: "secret inside argument",
			cmd: Command{
				Name:    "tailscale",
				Args:    []string{"up", "--auth-key=tskey-auth-SECRET"},
				Secrets: []string{"tskey-auth-SECRET", ""},
			},
			want: "tailscale up '--auth-key=****'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatCommand(tt.cmd); got != tt.want {
				t.Errorf("FormatCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuote_SingleQuote(t *testing.T) {
	t.Parallel()

	got := Quote("it's")
	if got == "it's" {
		t.Fatalf("Quote(%q) was not quoted", "it's")
	}
}
