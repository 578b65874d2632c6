// SPDX-License-Identifier: MPL-2.0

// Package tui provides the interactive prompts hostkit asks before changing a
// host: confirmations, text and password input, and menus. It wraps
// charmbracelet/huh and falls back to accessible line mode when stdin is not
// a terminal.
package tui
