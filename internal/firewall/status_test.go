// SPDX-License-Identifier: MPL-2.0

package firewall

import (
	"slices"
	"testing"
)

const activeStatus = `Status: active

To                         Action      From
--                         ------      ----
22/tcp                     ALLOW       Anywhere
21                         ALLOW       10.0.0.0/24
40000:40100/tcp            ALLOW       Anywhere                   # vsftpd passive
3306                       DENY        Anywhere
Anywhere on tailscale0     ALLOW       Anywhere
22/tcp (v6)                ALLOW       Anywhere (v6)
41641/udp                  ALLOW IN    Anywhere
`

func TestParseStatus(t *testing.T) {
	t.Parallel()

	st := ParseStatus(activeStatus)
	if !st.Active {
		t.Error("Active = false")
	}
	want := []Rule{
		{To: "22/tcp", Action: "ALLOW", From: "Anywhere"},
		{To: "21", Action: "ALLOW", From: "10.0.0.0/24"},
		{To: "40000:40100/tcp", Action: "ALLOW", From: "Anywhere", Comment: "vsftpd passive"},
		{To: "3306", Action: "DENY", From: "Anywhere"},
		{To: "Anywhere on tailscale0", Action: "ALLOW", From: "Anywhere"},
		{To: "22/tcp", Action: "ALLOW", From: "Anywhere", V6: true},
		{To: "41641/udp", Action: "ALLOW IN", From: "Anywhere"},
	}
	if !slices.Equal(st.Rules, want) {
		t.Errorf("Rules =\n%+v\nwant\n%+v", st.Rules, want)
	}

	inactive := ParseStatus("Status: inactive\n")
	if inactive.Active || len(inactive.Rules) != 0 {
		t.Errorf("inactive = %+v", inactive)
	}
}

func TestParseStatus_Numbered(t *testing.T) {
	t.Parallel()

	out := "Status: active\n\n     To                         Action      From\n     --                         ------      ----\n" +
		"[ 1] 22/tcp                     ALLOW IN    Anywhere\n[ 2] 21/tcp                     ALLOW IN    192.168.1.0/24\n"
	st := ParseStatus(out)
	if len(st.Rules) != 2 || st.Rules[1].From != "192.168.1.0/24" || st.Rules[0].To != "22/tcp" {
		t.Errorf("Rules = %+v", st.Rules)
	}
}

func TestStatus_Allows(t *testing.T) {
	t.Parallel()

	st := ParseStatus(activeStatus)
	tests := []struct {
		port string
		want bool
	}{
		{"22", true},
		{"22/tcp", true},
		{"22/udp", false},
		{"21", true},
		{"40000:40100", true},
		{"40050", true},
		{"40101", false},
		{"3306", false},
		{"41641/udp", true},
		{"80", false},
	}
	for _, tt := range tests {
		if got := st.Allows(tt.port); got != tt.want {
			t.Errorf("Allows(%q) = %v, want %v", tt.port, got, tt.want)
		}
	}
}

func TestStatus_AllowedFromAnywhere(t *testing.T) {
	t.Parallel()

	st := ParseStatus(activeStatus)
	if got := st.AllowedFromAnywhere("22"); !slices.Equal(got, []string{"22/tcp"}) {
		t.Errorf("AllowedFromAnywhere(22) = %q", got)
	}
	if got := st.AllowedFromAnywhere("21"); len(got) != 0 {
		t.Errorf("AllowedFromAnywhere(21) = %q, want none", got)
	}
	if got := st.AllowedFromAnywhere("40050/tcp"); len(got) != 0 {
		t.Errorf("AllowedFromAnywhere(40050/tcp) = %q, want none for a port inside a range", got)
	}
	if got := st.AllowedFromAnywhere("40000:40100"); !slices.Equal(got, []string{"40000:40100/tcp"}) {
		t.Errorf("AllowedFromAnywhere(range) = %q", got)
	}
}
