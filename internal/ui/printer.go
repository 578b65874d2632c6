// SPDX-License-Identifier: MPL-2.0

package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// BannerWidth is the width of section banners.
const BannerWidth = 80

const (
	markSuccess = "✓"
	markWarning = "⚠"
	markError   = "✗"
	markInfo    = "•"
)

// Printer writes styled status output. The zero value writes to stdout with
// no operation log.
type Printer struct {
	// Out receives all status output. Nil means os.Stdout.
	Out io.Writer
	// Log mirrors status lines with timestamps. Nil disables mirroring.
	Log *log.Logger
	// Verbose enables Verbosef output.
	Verbose bool
}

// NewPrinter creates a Printer.
func NewPrinter(out io.Writer, oplog *log.Logger, verbose bool) *Printer {
	return &Printer{Out: out, Log: oplog, Verbose: verbose}
}

func (p *Printer) out() io.Writer {
	if p == nil || p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

// Success prints a "✓" line.
func (p *Printer) Success(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.out(), SuccessStyle.Render(markSuccess+" "+msg))
	p.mirror(log.InfoLevel, msg)
}

// Warn prints a "⚠" line.
func (p *Printer) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.out(), WarningStyle.Render(markWarning+" "+msg))
	p.mirror(log.WarnLevel, msg)
}

// Error prints a "✗" line. It does not stop the program.
func (p *Printer) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.out(), ErrorStyle.Render(markError+" "+msg))
	p.mirror(log.ErrorLevel, msg)
}

// Info prints a "•" line.
func (p *Printer) Info(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.out(), markInfo+" "+msg)
	p.mirror(log.InfoLevel, msg)
}

// Plain prints an unstyled line that is not mirrored.
func (p *Printer) Plain(format string, args ...any) {
	fmt.Fprintf(p.out(), format+"\n", args...)
}

// Verbosef prints only in verbose mode.
func (p *Printer) Verbosef(format string, args ...any) {
	if p == nil || !p.Verbose {
		return
	}
	fmt.Fprintln(p.out(), VerboseStyle.Render(fmt.Sprintf(format, args...)))
}

// Cmd prints an indented command suggestion.
func (p *Printer) Cmd(line string) {
	fmt.Fprintln(p.out(), "   "+CmdStyle.Render(line))
}

// KV prints an indented, aligned key/value pair.
func (p *Printer) KV(key string, value any) {
	fmt.Fprintf(p.out(), "   %s %v\n", LabelStyle.Render(key+":"), value)
}

// Banner prints a full-width "=" banner with a centered title.
func (p *Printer) Banner(title string) {
	fmt.Fprintln(p.out())
	fmt.Fprintln(p.out(), TitleStyle.Render(Banner(title)))
	p.mirror(log.InfoLevel, "== "+title+" ==")
}

// Section prints a sub-heading.
func (p *Printer) Section(title string) {
	fmt.Fprintln(p.out())
	fmt.Fprintln(p.out(), TitleStyle.Render(title))
	fmt.Fprintln(p.out(), SubtitleStyle.Render(strings.Repeat("-", lipgloss.Width(title))))
}

// Box prints lines inside a rounded border with an optional title line.
func (p *Printer) Box(title string, lines []string) {
	fmt.Fprintln(p.out(), Box(title, lines))
}

func (p *Printer) mirror(level log.Level, msg string) {
	if p == nil || p.Log == nil {
		return
	}
	p.Log.Log(level, msg)
}

// Banner returns the three-line banner without styling.
func Banner(title string) string {
	rule := strings.Repeat("=", BannerWidth)
	return rule + "\n" + Center(title, BannerWidth) + "\n" + rule
}

// Center pads s with spaces to center it in width columns.
func Center(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	left := (width - w) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-w-left)
}

// Box renders lines in a rounded border.
func Box(title string, lines []string) string {
	body := strings.Join(lines, "\n")
	if title != "" {
		body = TitleStyle.Render(title) + "\n\n" + body
	}
	return BoxStyle.Render(body)
}

// Row renders an aligned key/value row for use inside a Box.
func Row(key string, value any) string {
	return LabelStyle.Render(key) + fmt.Sprint(value)
}
