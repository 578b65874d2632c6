// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Quote returns s quoted for a bash command line. Words that need no quoting
// are returned unchanged.
func Quote(s string) string {
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		// Only invalid UTF-8 gets here.
		return strconv.Quote(s)
	}
	return q
}

// QuoteArgs quotes and joins a full argv.
func QuoteArgs(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = Quote(a)
	}
	return strings.Join(parts, " ")
}

// redactedMark replaces secret values in displayed commands.
const redactedMark = "****"

// Redact replaces every non-empty secret in s.
func Redact(s string, secrets []string) string {
	for _, secret := range secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, redactedMark)
		}
	}
	return s
}

// FormatCommand renders cmd as a copy-pasteable shell line, including env
// assignments and a sudo prefix when requested. Secrets are masked.
func FormatCommand(cmd Command) string {
	var sb strings.Builder
	if cmd.Sudo {
		sb.WriteString("sudo ")
	}
	for _, kv := range cmd.Env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(Quote(Redact(value, cmd.Secrets)))
		sb.WriteString(" ")
	}
	argv := make([]string, 0, len(cmd.Args)+1)
	argv = append(argv, cmd.Name)
	for _, a := range cmd.Args {
		argv = append(argv, Redact(a, cmd.Secrets))
	}
	sb.WriteString(QuoteArgs(argv))
	return sb.String()
}
