// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// HuhPrompter implements Prompter with huh forms.
type HuhPrompter struct {
	cfg Config
}

// NewPrompter creates a huh-backed prompter.
func NewPrompter(cfg Config) *HuhPrompter {
	if cfg.Input == nil {
		cfg.Input = os.Stdin
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	return &HuhPrompter{cfg: cfg}
}

// Confirm asks a yes/no question.
func (p *HuhPrompter) Confirm(title string, def bool) (bool, error) {
	value := def
	field := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&value)
	if err := p.run(field); err != nil {
		return false, err
	}
	return value, nil
}

// Input asks for a line of text. validate may be nil.
func (p *HuhPrompter) Input(title, def string, validate func(string) error) (string, error) {
	value := def
	field := huh.NewInput().
		Title(title).
		Placeholder(def).
		Value(&value)
	if validate != nil {
		field = field.Validate(validate)
	}
	if err := p.run(field); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// Password reads a secret without echo. Accessible mode reads straight from
// the terminal because huh's line mode echoes input.
func (p *HuhPrompter) Password(title string) (string, error) {
	if p.cfg.Accessible {
		return readPassword(p.cfg.Input, p.cfg.Output, title)
	}

	var value string
	field := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&value)
	if err := p.run(field); err != nil {
		return "", err
	}
	return value, nil
}

// Select shows a menu and returns the chosen option key.
func (p *HuhPrompter) Select(title string, options []Option) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("select %q: no options", title)
	}
	huhOpts := make([]huh.Option[string], len(options))
	for i, o := range options {
		huhOpts[i] = huh.NewOption(o.Label, o.Key)
	}

	value := options[0].Key
	field := huh.NewSelect[string]().
		Title(title).
		Options(huhOpts...).
		Value(&value)
	if err := p.run(field); err != nil {
		return "", err
	}
	return value, nil
}

func (p *HuhPrompter) run(field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithTheme(getHuhTheme(p.cfg.Theme)).
		WithAccessible(p.cfg.Accessible).
		WithInput(p.cfg.Input).
		WithOutput(p.cfg.Output)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return err
	}
	return nil
}

func readPassword(in io.Reader, out io.Writer, title string) (string, error) {
	fmt.Fprintf(out, "%s: ", title)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(secret), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
