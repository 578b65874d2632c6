// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"fmt"
	"strconv"
	"sync"
)

// Unattended answers every prompt with its default. Confirm returns
// AssumeYes when set, otherwise the prompt default. Used for --yes and
// when prompts are disabled in config.
type Unattended struct {
	AssumeYes bool
}

// Confirm implements Prompter.
func (u Unattended) Confirm(_ string, def bool) (bool, error) {
	return u.AssumeYes || def, nil
}

// Input implements Prompter.
func (u Unattended) Input(title, def string, validate func(string) error) (string, error) {
	if def == "" {
		return "", fmt.Errorf("%w: %s", ErrNoDefault, title)
	}
	if validate != nil {
		if err := validate(def); err != nil {
			return "", err
		}
	}
	return def, nil
}

// Password implements Prompter.
func (u Unattended) Password(title string) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrNoDefault, title)
}

// Select implements Prompter by picking the first option.
func (u Unattended) Select(title string, options []Option) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoDefault, title)
	}
	return options[0].Key, nil
}

// Scripted replays a fixed list of answers in order. Confirm answers parse
// with strconv.ParseBool; Select answers are option keys.
type Scripted struct {
	mu      sync.Mutex
	answers []string
	// Asked records every prompt title.
	Asked []string
}

// NewScripted creates a Scripted prompter.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

func (s *Scripted) next(title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, title)
	if len(s.answers) == 0 {
		return "", fmt.Errorf("%w: no scripted answer for %q", ErrAborted, title)
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

// Confirm implements Prompter.
func (s *Scripted) Confirm(title string, _ bool) (bool, error) {
	a, err := s.next(title)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(a)
}

// Input implements Prompter.
func (s *Scripted) Input(title, _ string, validate func(string) error) (string, error) {
	a, err := s.next(title)
	if err != nil {
		return "", err
	}
	if validate != nil {
		if err := validate(a); err != nil {
			return "", err
		}
	}
	return a, nil
}

// Password implements Prompter.
func (s *Scripted) Password(title string) (string, error) {
	return s.next(title)
}

// Select implements Prompter.
func (s *Scripted) Select(title string, options []Option) (string, error) {
	a, err := s.next(title)
	if err != nil {
		return "", err
	}
	for _, o := range options {
		if o.Key == a {
			return a, nil
		}
	}
	return "", fmt.Errorf("scripted answer %q is not an option of %q", a, title)
}
