// SPDX-License-Identifier: MPL-2.0

package pkgmgr

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"
)

// ErrUnknownBundle is returned for bundle names that are neither built in
// nor configured.
var ErrUnknownBundle = errors.New("unknown bundle")

// builtinBundles use Debian package names; MapNames translates them.
var builtinBundles = map[string][]string{
	"essentials": {"curl", "wget", "git", "vim", "htop", "unzip", "rsync", "ca-certificates"},
	"dev":        {"git", "build-essential", "curl"},
	"docker":     {"docker.io"},
	"node":       {"nodejs", "npm"},
	"php":        {"php-cli", "composer"},
	"python":     {"python3", "python3-pip", "python3-venv"},
	"code":       {"code"},
	"conky":      {"conky-all"},
}

// nameMap translates Debian package names for other families. An empty
// slice drops the package.
var nameMap = map[Family]map[string][]string{
	FamilyDnf: {
		"build-essential": {"gcc", "gcc-c++", "make"},
		"docker.io":       {"moby-engine"},
		"python3-venv":    {},
		"python-pip":      {"python3-pip"},
		"conky-all":       {"conky"},
	},
	FamilyPacman: {
		"build-essential": {"base-devel"},
		"docker.io":       {"docker"},
		"php-cli":         {"php"},
		"python3":         {"python"},
		"python3-pip":     {"python-pip"},
		"python3-venv":    {},
		"conky-all":       {"conky"},
	},
	FamilyApt: {
		"python-pip": {"python3-pip"},
	},
}

// Bundles merges configured bundles over the built-in ones.
func Bundles(configured map[string][]string) map[string][]string {
	all := make(map[string][]string, len(builtinBundles)+len(configured))
	for name, pkgs := range builtinBundles {
		all[name] = slices.Clone(pkgs)
	}
	for name, pkgs := range configured {
		all[name] = slices.Clone(pkgs)
	}
	return all
}

// BundleNames returns the sorted bundle names.
func BundleNames(bundles map[string][]string) []string {
	names := make([]string, 0, len(bundles))
	for name := range bundles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve returns the packages of bundle name for family.
func Resolve(bundles map[string][]string, name string, family Family) ([]string, error) {
	pkgs, ok := bundles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBundle, name, BundleNames(bundles))
	}
	return MapNames(family, pkgs), nil
}

// MapNames translates package names for family, dropping duplicates.
func MapNames(family Family, pkgs []string) []string {
	out := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		mapped, ok := nameMap[family][p]
		if !ok {
			mapped = []string{p}
		}
		for _, m := range mapped {
			if !slices.Contains(out, m) {
				out = append(out, m)
			}
		}
	}
	return out
}
