// SPDX-License-Identifier: MPL-2.0

// Package firewall wraps ufw: it parses rule tables, applies allow/deny
// rules, restricts a port to trusted sources and keeps timestamped backups of
// the rule files.
package firewall

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

var columnSplit = regexp.MustCompile(`\s{2,}`)

type (
	// Rule is one row of "ufw status".
	Rule struct {
		To      string
		Action  string
		From    string
		V6      bool
		Comment string
	}

	// Status is the parsed output of "ufw status".
	Status struct {
		Active bool
		Rules  []Rule
	}
)

// ParseStatus parses "ufw status" (or "ufw status verbose") output.
func ParseStatus(out string) Status {
	var st Status
	inTable := false
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t")
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "Status:"):
			st.Active = strings.TrimSpace(strings.TrimPrefix(trimmed, "Status:")) == "active"
			continue
		case strings.HasPrefix(trimmed, "To ") && strings.Contains(trimmed, "Action"):
			continue
		case strings.HasPrefix(trimmed, "--"):
			inTable = true
			continue
		case trimmed == "" || !inTable:
			continue
		}
		if r, ok := parseRule(trimmed); ok {
			st.Rules = append(st.Rules, r)
		}
	}
	return st
}

func parseRule(line string) (Rule, bool) {
	// Numbered output prefixes rows with "[ 1] ".
	if strings.HasPrefix(line, "[") {
		if i := strings.Index(line, "]"); i > 0 {
			line = strings.TrimSpace(line[i+1:])
		}
	}
	var r Rule
	if body, comment, ok := strings.Cut(line, " # "); ok {
		line, r.Comment = strings.TrimSpace(body), strings.TrimSpace(comment)
	}
	cols := columnSplit.Split(line, -1)
	if len(cols) < 3 {
		return Rule{}, false
	}
	r.To, r.Action, r.From = cols[0], cols[1], strings.Join(cols[2:], " ")
	if strings.HasSuffix(r.To, " (v6)") {
		r.V6 = true
		r.To = strings.TrimSuffix(r.To, " (v6)")
	}
	r.From = strings.TrimSuffix(r.From, " (v6)")
	return r, true
}

// IsAllow reports whether the rule accepts traffic.
func (r Rule) IsAllow() bool {
	return strings.HasPrefix(r.Action, "ALLOW")
}

// FromAnywhere reports whether the rule applies to every source.
func (r Rule) FromAnywhere() bool {
	return r.From == "Anywhere"
}

// Matches reports whether the rule's destination covers port. port may carry
// a protocol ("22/tcp") or be a range ("40000:40100"). A rule without a
// protocol matches both.
func (r Rule) Matches(port string) bool {
	if r.Targets(port) {
		return true
	}
	return r.Contains(port)
}

// Targets reports whether the rule's destination is exactly port, ignoring
// a protocol on only one side.
func (r Rule) Targets(port string) bool {
	wantPort, toPort, ok := r.sameProto(port)
	return ok && wantPort == toPort
}

// Contains reports whether a single port falls inside the rule's range.
func (r Rule) Contains(port string) bool {
	wantPort, toPort, ok := r.sameProto(port)
	if !ok {
		return false
	}
	lo, hi, isRange := strings.Cut(toPort, ":")
	if !isRange || strings.Contains(wantPort, ":") {
		return false
	}
	p, err1 := strconv.Atoi(wantPort)
	l, err2 := strconv.Atoi(lo)
	h, err3 := strconv.Atoi(hi)
	return err1 == nil && err2 == nil && err3 == nil && p >= l && p <= h
}

func (r Rule) sameProto(port string) (wantPort, toPort string, ok bool) {
	wantPort, wantProto, _ := strings.Cut(port, "/")
	toPort, toProto, _ := strings.Cut(r.To, "/")
	if wantProto != "" && toProto != "" && wantProto != toProto {
		return "", "", false
	}
	return wantPort, toPort, true
}

// Allows reports whether an ALLOW rule covers port.
func (s Status) Allows(port string) bool {
	for _, r := range s.Rules {
		if r.IsAllow() && r.Matches(port) {
			return true
		}
	}
	return false
}

// AllowedFromAnywhere returns the distinct destinations of ALLOW rules for
// exactly port that accept any source. Ranges that merely contain port are
// left to RangesFromAnywhere.
func (s Status) AllowedFromAnywhere(port string) []string {
	return s.openDestinations(port, Rule.Targets)
}

// RangesFromAnywhere returns ALLOW ranges open to any source that contain
// port.
func (s Status) RangesFromAnywhere(port string) []string {
	return s.openDestinations(port, Rule.Contains)
}

func (s Status) openDestinations(port string, match func(Rule, string) bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range s.Rules {
		if !r.IsAllow() || !r.FromAnywhere() || !match(r, port) || seen[r.To] {
			continue
		}
		seen[r.To] = true
		out = append(out, r.To)
	}
	return out
}
