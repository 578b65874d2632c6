// SPDX-License-Identifier: MPL-2.0

// Package pkgmgr drives the distribution package manager (apt, dnf or
// pacman), installs named package bundles with their post-install hooks and
// reports installed tool versions.
package pkgmgr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hostkit/hostkit/internal/issue"
	"github.com/hostkit/hostkit/internal/runner"
)

// OSReleasePath is the standard location of the os-release file.
const OSReleasePath = "/etc/os-release"

// Package manager families.
const (
	FamilyApt    Family = "apt"
	FamilyDnf    Family = "dnf"
	FamilyPacman Family = "pacman"
)

// ErrUnsupportedDistro is returned when os-release names no known family.
var ErrUnsupportedDistro = errors.New("unsupported distribution")

type (
	// Family identifies a package manager.
	Family string

	// Manager installs and removes distribution packages.
	Manager interface {
		Family() Family
		Update(ctx context.Context) error
		Upgrade(ctx context.Context) error
		Install(ctx context.Context, pkgs ...string) error
		Remove(ctx context.Context, pkgs ...string) error
		IsInstalled(ctx context.Context, pkg string) bool
	}

	// argvSet lists the commands a family uses for each operation.
	argvSet struct {
		update  []string
		upgrade []string
		install []string
		remove  []string
		query   []string
		env     []string
	}

	cliManager struct {
		family Family
		argv   argvSet
		r      runner.Runner
	}
)

var families = map[Family]argvSet{
	FamilyApt: {
		update:  []string{"apt-get", "update"},
		upgrade: []string{"apt-get", "upgrade", "-y"},
		install: []string{"apt-get", "install", "-y"},
		remove:  []string{"apt-get", "remove", "-y"},
		query:   []string{"dpkg-query", "-W", "-f=${Status}"},
		env:     []string{"DEBIAN_FRONTEND=noninteractive"},
	},
	FamilyDnf: {
		update:  []string{"dnf", "-y", "makecache"},
		upgrade: []string{"dnf", "-y", "upgrade"},
		install: []string{"dnf", "-y", "install"},
		remove:  []string{"dnf", "-y", "remove"},
		query:   []string{"rpm", "-q"},
	},
	FamilyPacman: {
		update:  []string{"pacman", "-Sy", "--noconfirm"},
		upgrade: []string{"pacman", "-Syu", "--noconfirm"},
		install: []string{"pacman", "-S", "--noconfirm", "--needed"},
		remove:  []string{"pacman", "-R", "--noconfirm"},
		query:   []string{"pacman", "-Q"},
	},
}

// String returns the family name.
func (f Family) String() string { return string(f) }

// ParseOSRelease parses KEY=VALUE lines, removing surrounding quotes.
func ParseOSRelease(content string) map[string]string {
	fields := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		fields[strings.TrimSpace(key)] = value
	}
	return fields
}

// DetectFamily maps os-release ID and ID_LIKE to a package manager family.
func DetectFamily(osRelease string) (Family, error) {
	fields := ParseOSRelease(osRelease)
	ids := append([]string{fields["ID"]}, strings.Fields(fields["ID_LIKE"])...)
	for _, id := range ids {
		switch strings.ToLower(id) {
		case "debian", "ubuntu", "linuxmint", "pop", "raspbian", "kali":
			return FamilyApt, nil
		case "fedora", "rhel", "centos", "rocky", "almalinux":
			return FamilyDnf, nil
		case "arch", "manjaro", "endeavouros":
			return FamilyPacman, nil
		}
	}
	name := fields["PRETTY_NAME"]
	if name == "" {
		name = fields["ID"]
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedDistro, name)
}

// DetectLocal reads /etc/os-release and detects the family.
func DetectLocal() (Family, error) {
	data, err := os.ReadFile(OSReleasePath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", OSReleasePath, err)
	}
	fam, err := DetectFamily(string(data))
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("detect package manager").
			WithResource(OSReleasePath).
			WithSuggestion("hostkit supports Debian/Ubuntu (apt), Fedora/RHEL (dnf) and Arch (pacman)").
			WithIssue(issue.UnsupportedDistroId).
			Wrap(err).
			BuildError()
	}
	return fam, nil
}

// New returns the Manager for family.
func New(family Family, r runner.Runner) (Manager, error) {
	argv, ok := families[family]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDistro, family)
	}
	return &cliManager{family: family, argv: argv, r: r}, nil
}

func (m *cliManager) Family() Family { return m.family }

func (m *cliManager) Update(ctx context.Context) error {
	return m.run(ctx, m.argv.update, nil)
}

func (m *cliManager) Upgrade(ctx context.Context) error {
	return m.run(ctx, m.argv.upgrade, nil)
}

func (m *cliManager) Install(ctx context.Context, pkgs ...string) error {
	if len(pkgs) == 0 {
		return nil
	}
	return m.run(ctx, m.argv.install, pkgs)
}

func (m *cliManager) Remove(ctx context.Context, pkgs ...string) error {
	if len(pkgs) == 0 {
		return nil
	}
	return m.run(ctx, m.argv.remove, pkgs)
}

// IsInstalled queries the package database. dpkg-query reports removed but
// not purged packages too, so its status text is checked.
func (m *cliManager) IsInstalled(ctx context.Context, pkg string) bool {
	argv := append(append([]string{}, m.argv.query[1:]...), pkg)
	res, err := m.r.Run(ctx, runner.Probe(m.argv.query[0], argv...))
	if err != nil || !res.Success() {
		return false
	}
	if m.family == FamilyApt {
		return strings.Contains(res.Stdout, "install ok installed")
	}
	return true
}

func (m *cliManager) run(ctx context.Context, base, pkgs []string) error {
	cmd := runner.Command{
		Name:   base[0],
		Args:   append(append([]string{}, base[1:]...), pkgs...),
		Env:    m.argv.env,
		Sudo:   true,
		Stream: true,
	}
	if _, err := runner.RunChecked(ctx, m.r, cmd); err != nil {
		return issue.NewErrorContext().
			WithOperation(fmt.Sprintf("%s %s", m.family, strings.Join(base[1:], " "))).
			WithResource(strings.Join(pkgs, " ")).
			WithIssue(issue.CommandFailedId).
			Wrap(err).
			BuildError()
	}
	return nil
}
