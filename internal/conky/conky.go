// SPDX-License-Identifier: MPL-2.0

// Package conky renders a conky desktop monitor configuration and installs
// it for the invoking user.
package conky

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/exp/slices"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/runner"
)

// FallbackInterface is graphed when no default route can be found.
const FallbackInterface = "eth0"

var (
	// ErrInvalidAlignment is returned for positions conky does not know.
	ErrInvalidAlignment = errors.New("invalid alignment")
	// ErrInvalidInterval is returned for a non-positive update interval.
	ErrInvalidInterval = errors.New("update interval must be positive")

	alignments = []string{
		"top_left", "top_middle", "top_right",
		"middle_left", "middle_middle", "middle_right",
		"bottom_left", "bottom_middle", "bottom_right",
	}
)

// Settings are the values substituted into conky.conf.
type Settings struct {
	Alignment      string
	UpdateInterval float64
	Interface      string
	GapX           int
	GapY           int
	ShowTailscale  bool
	ShowFTP        bool
}

// SettingsFromConfig copies the conky section of the configuration.
func SettingsFromConfig(c config.ConkyConfig) Settings {
	return Settings{
		Alignment:      c.Alignment,
		UpdateInterval: c.UpdateInterval,
		Interface:      c.Interface,
		GapX:           c.GapX,
		GapY:           c.GapY,
		ShowTailscale:  c.ShowTailscale,
		ShowFTP:        c.ShowFTP,
	}
}

// Validate checks the values conky would reject or misrender.
func (s Settings) Validate() error {
	if !slices.Contains(alignments, s.Alignment) {
		return fmt.Errorf("%w %q (want one of %s)", ErrInvalidAlignment, s.Alignment, strings.Join(alignments, ", "))
	}
	if s.UpdateInterval <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

var confTemplate = template.Must(template.New("conky.conf").Parse(`-- Generated by hostkit. Re-run "hostkit conky setup" to regenerate.
conky.config = {
    alignment = '{{.Alignment}}',
    gap_x = {{.GapX}},
    gap_y = {{.GapY}},
    update_interval = {{printf "%.1f" .UpdateInterval}},
    background = true,
    double_buffer = true,
    own_window = true,
    own_window_type = 'desktop',
    own_window_transparent = true,
    own_window_hints = 'undecorated,below,sticky,skip_taskbar,skip_pager',
    use_xft = true,
    font = 'DejaVu Sans Mono:size=9',
    minimum_width = 280,
    default_color = 'white',
    color1 = '5fafff',
    cpu_avg_samples = 2,
    net_avg_samples = 2,
};

conky.text = [[
${color1}SYSTEM ${hr 2}${color}
${nodename} ${alignr}up ${uptime_short}
Kernel ${alignr}${kernel}
CPU ${alignr}${cpu cpu0}%
${cpubar 6}
RAM ${alignr}${mem} / ${memmax}
${membar 6}
Disk / ${alignr}${fs_used /} / ${fs_size /}
${fs_bar 6 /}

${color1}NETWORK ${hr 2}${color}
{{.Interface}} ${alignr}${addr {{.Interface}}}
Down ${downspeed {{.Interface}}} ${alignr}Up ${upspeed {{.Interface}}}
${downspeedgraph {{.Interface}} 30,130} ${alignr}${upspeedgraph {{.Interface}} 30,130}
{{- if .ShowTailscale}}

${color1}TAILSCALE ${hr 2}${color}
Service ${alignr}${execi 30 systemctl is-active tailscaled}
IP ${alignr}${execi 30 tailscale ip -4 2>/dev/null || echo offline}
{{- end}}
{{- if .ShowFTP}}

${color1}FTP ${hr 2}${color}
vsftpd ${alignr}${execi 30 systemctl is-active vsftpd}
Sessions ${alignr}${execi 30 ss -Htn state established '( sport = :21 )' | wc -l}
{{- end}}

${color1}PROCESSES ${hr 2}${color}
${top name 1} ${alignr}${top cpu 1}%
${top name 2} ${alignr}${top cpu 2}%
${top name 3} ${alignr}${top cpu 3}%
]];
`))

// RenderConfig produces conky.conf for s. An empty Interface renders as
// FallbackInterface.
func RenderConfig(s Settings) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	if s.Interface == "" {
		s.Interface = FallbackInterface
	}
	var buf bytes.Buffer
	if err := confTemplate.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("render conky.conf: %w", err)
	}
	return buf.String(), nil
}

// ParseDefaultInterface extracts the device of the first default route
// from "ip route show default" output.
func ParseDefaultInterface(out string) string {
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) == 0 || f[0] != "default" {
			continue
		}
		for i := 1; i < len(f)-1; i++ {
			if f[i] == "dev" {
				return f[i+1]
			}
		}
	}
	return ""
}

// DefaultInterface asks ip(8) for the interface of the default route.
func DefaultInterface(ctx context.Context, r runner.Runner) string {
	out, err := runner.Output(ctx, r, "ip", "route", "show", "default")
	if err != nil {
		return FallbackInterface
	}
	if dev := ParseDefaultInterface(out); dev != "" {
		return dev
	}
	return FallbackInterface
}

// DesktopEntry is the XDG autostart entry that launches conky at login.
const DesktopEntry = `[Desktop Entry]
Type=Application
Name=Conky
Comment=System monitor configured by hostkit
Exec=sh -c "sleep 10 && conky --daemonize --pause=5"
Terminal=false
X-GNOME-Autostart-enabled=true
`
