// SPDX-License-Identifier: MPL-2.0

package ftp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/hostkit/hostkit/internal/config"
)

const (
	lowerChars = "abcdefghijklmnopqrstuvwxyz"
	upperChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars = "0123456789"
	// ambiguousChars are dropped when ExcludeAmbiguous is set.
	ambiguousChars = "loIO01"
)

// ErrImpossiblePolicy is returned for policies no password can satisfy.
var ErrImpossiblePolicy = errors.New("password policy cannot be satisfied")

type charClass struct {
	name  string
	chars string
	min   int
}

func classes(p config.PasswordPolicyConfig) []charClass {
	strip := func(s string) string {
		if !p.ExcludeAmbiguous {
			return s
		}
		return strings.Map(func(r rune) rune {
			if strings.ContainsRune(ambiguousChars, r) {
				return -1
			}
			return r
		}, s)
	}

	var out []charClass
	if p.IncludeLowercase {
		out = append(out, charClass{"lowercase", strip(lowerChars), p.MinLowercase})
	}
	if p.IncludeUppercase {
		out = append(out, charClass{"uppercase", strip(upperChars), p.MinUppercase})
	}
	if p.IncludeDigits {
		out = append(out, charClass{"digits", strip(digitChars), p.MinDigits})
	}
	if p.IncludeSpecial {
		out = append(out, charClass{"special", p.SpecialChars, p.MinSpecial})
	}
	return out
}

// ValidatePolicy reports why p cannot produce a password, if it cannot.
func ValidatePolicy(p config.PasswordPolicyConfig) error {
	if p.Length <= 0 {
		return fmt.Errorf("%w: length must be positive", ErrImpossiblePolicy)
	}
	cls := classes(p)
	if len(cls) == 0 {
		return fmt.Errorf("%w: no character class enabled", ErrImpossiblePolicy)
	}
	required := 0
	for _, c := range cls {
		if c.chars == "" {
			return fmt.Errorf("%w: %s character set is empty", ErrImpossiblePolicy, c.name)
		}
		if c.min < 0 {
			return fmt.Errorf("%w: negative minimum for %s", ErrImpossiblePolicy, c.name)
		}
		required += c.min
	}
	if required > p.Length {
		return fmt.Errorf("%w: minimum counts (%d) exceed length %d", ErrImpossiblePolicy, required, p.Length)
	}
	return nil
}

// GeneratePassword builds a password from crypto/rand honouring the
// per-class minimums, then shuffles it.
func GeneratePassword(p config.PasswordPolicyConfig) (string, error) {
	if err := ValidatePolicy(p); err != nil {
		return "", err
	}

	var charset strings.Builder
	out := make([]byte, 0, p.Length)
	for _, c := range classes(p) {
		charset.WriteString(c.chars)
		for range c.min {
			b, err := pick(c.chars)
			if err != nil {
				return "", err
			}
			out = append(out, b)
		}
	}
	all := charset.String()
	for len(out) < p.Length {
		b, err := pick(all)
		if err != nil {
			return "", err
		}
		out = append(out, b)
	}

	for i := len(out) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func pick(chars string) (byte, error) {
	i, err := randInt(len(chars))
	if err != nil {
		return 0, err
	}
	return chars[i], nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return int(v.Int64()), nil
}
