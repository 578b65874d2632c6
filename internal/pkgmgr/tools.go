// SPDX-License-Identifier: MPL-2.0

package pkgmgr

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hostkit/hostkit/internal/runner"
)

// probeLimit bounds concurrent version probes.
const probeLimit = 8

// DefaultTools are reported by "hostkit pkg tools".
var DefaultTools = []string{
	"git", "curl", "rsync", "docker", "node", "npm", "python3", "pip3",
	"php", "composer", "go", "code", "tailscale", "ufw", "vsftpd", "conky",
}

var (
	versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?(?:[-+~][0-9A-Za-z.]+)?`)

	versionArgs = map[string][]string{
		"go":     {"version"},
		"java":   {"-version"},
		"vsftpd": {"-v"},
		"ufw":    {"version"},
	}
)

// ToolVersion is the probe result for one tool.
type ToolVersion struct {
	Name      string
	Installed bool
	Version   string
	// Raw is the first line of the version output.
	Raw string
}

// ProbeTools runs each tool's version command concurrently and returns the
// results in the order of names.
func ProbeTools(ctx context.Context, r runner.Runner, names []string) ([]ToolVersion, error) {
	results := make([]ToolVersion, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(probeLimit)
	for i, name := range names {
		g.Go(func() error {
			results[i] = probeTool(ctx, r, name)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func probeTool(ctx context.Context, r runner.Runner, name string) ToolVersion {
	tv := ToolVersion{Name: name}
	if !runner.Exists(r, name) {
		return tv
	}
	tv.Installed = true

	args, ok := versionArgs[name]
	if !ok {
		args = []string{"--version"}
	}
	res, err := r.Run(ctx, runner.Probe(name, args...))
	if err != nil {
		return tv
	}
	// vsftpd and java print their version on stderr.
	out := strings.TrimSpace(res.Combined())
	first, _, _ := strings.Cut(out, "\n")
	tv.Raw = strings.TrimSpace(first)
	tv.Version = ExtractVersion(out)
	return tv
}

// ExtractVersion returns the first dotted version number in s.
func ExtractVersion(s string) string {
	return versionPattern.FindString(s)
}

// CheckMinVersion reports whether have satisfies the minimum want.
func CheckMinVersion(have, want string) (bool, error) {
	return AtLeast(have, want)
}
