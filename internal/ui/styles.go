// SPDX-License-Identifier: MPL-2.0

package ui

import "github.com/charmbracelet/lipgloss"

// Palette. Each colour has a darker variant for light terminal backgrounds.
var (
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#5B21B6", Dark: "#7C3AED"}
	ColorMuted     = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#6B7280"}
	ColorSuccess   = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#10B981"}
	ColorError     = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#EF4444"}
	ColorWarning   = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	ColorHighlight = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#3B82F6"}
	ColorVerbose   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

var (
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	SubtitleStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	SuccessStyle  = lipgloss.NewStyle().Foreground(ColorSuccess)
	ErrorStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorError)
	WarningStyle  = lipgloss.NewStyle().Foreground(ColorWarning)
	VerboseStyle  = lipgloss.NewStyle().Foreground(ColorVerbose)

	// CmdStyle marks shell commands, paths and suggested fixes.
	CmdStyle = lipgloss.NewStyle().Foreground(ColorHighlight)

	// BoxStyle frames summaries such as the rsync dry-run report.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1)

	// LabelStyle pads key/value labels so values line up inside a box.
	LabelStyle = lipgloss.NewStyle().Foreground(ColorMuted).Width(18)
)
