// SPDX-License-Identifier: MPL-2.0

// Package ui renders hostkit's terminal output: the shared lipgloss palette,
// status lines with check/warning/cross markers, section banners and boxes.
// A Printer can mirror every status line into the append-only operation log.
package ui
