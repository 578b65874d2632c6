// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

const (
	// ThemeDefault uses the base huh theme.
	ThemeDefault Theme = "default"
	// ThemeCharm uses the Charm theme.
	ThemeCharm Theme = "charm"
	// ThemeDracula uses the Dracula theme.
	ThemeDracula Theme = "dracula"
	// ThemeBase16 uses the Base16 theme, which reads well on light terminals.
	ThemeBase16 Theme = "base16"
)

var (
	// ErrAborted is returned when the user cancels a prompt.
	ErrAborted = errors.New("prompt aborted")
	// ErrNoDefault is returned by non-interactive prompters when an answer is
	// required and no default exists.
	ErrNoDefault = errors.New("no default answer in non-interactive mode")
)

type (
	// Theme represents the visual theme for prompts.
	Theme string

	// Config holds common configuration for prompts.
	Config struct {
		// Theme specifies the visual theme to use.
		Theme Theme
		// Accessible enables line mode for screen readers and pipes.
		Accessible bool
		// Input and Output default to os.Stdin and os.Stderr.
		Input  io.Reader
		Output io.Writer
	}

	// Option is one entry of a Select menu.
	Option struct {
		Key   string
		Label string
	}

	// Prompter asks the user questions.
	Prompter interface {
		Confirm(title string, def bool) (bool, error)
		Input(title, def string, validate func(string) error) (string, error)
		Password(title string) (string, error)
		Select(title string, options []Option) (string, error)
	}
)

// DefaultConfig returns the default configuration. Accessible mode is enabled
// when stdin is not a terminal or ACCESSIBLE is set. Prompts go to stderr so
// they survive stdout redirection.
func DefaultConfig() Config {
	return Config{
		Theme:      ThemeCharm,
		Accessible: !IsInputTerminal() || os.Getenv("ACCESSIBLE") != "",
		Input:      os.Stdin,
		Output:     os.Stderr,
	}
}

// ThemeForScheme maps a configured color scheme to a prompt theme.
func ThemeForScheme(scheme string) Theme {
	switch scheme {
	case "light":
		return ThemeBase16
	case "dark":
		return ThemeDracula
	default:
		return ThemeCharm
	}
}

// IsInputTerminal returns true if stdin is connected to a terminal.
func IsInputTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// getHuhTheme converts a Theme to a huh.Theme.
func getHuhTheme(t Theme) *huh.Theme {
	switch t {
	case ThemeCharm:
		return huh.ThemeCharm()
	case ThemeDracula:
		return huh.ThemeDracula()
	case ThemeBase16:
		return huh.ThemeBase16()
	default:
		return huh.ThemeBase()
	}
}
