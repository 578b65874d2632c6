// SPDX-License-Identifier: MPL-2.0

package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"

	"github.com/hostkit/hostkit/internal/runner"
)

// containerRunner runs commands inside a test container.
type containerRunner struct {
	c testcontainers.Container
}

func (r containerRunner) Run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	argv := append([]string{cmd.Name}, cmd.Args...)
	if len(cmd.Env) > 0 {
		argv = append(append([]string{"env"}, cmd.Env...), argv...)
	}
	start := time.Now()
	code, reader, err := r.c.Exec(ctx, argv, tcexec.Multiplexed())
	if err != nil {
		return &runner.Result{Command: cmd, ExitCode: runner.ExitNotFound}, err
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return &runner.Result{
		Command:  cmd,
		ExitCode: runner.ExitCode(code),
		Stdout:   string(out),
		Duration: time.Since(start),
	}, nil
}

func (r containerRunner) LookPath(name string) (string, error) {
	res, err := r.Run(context.Background(), runner.Probe("sh", "-c", "command -v "+runner.Quote(name)))
	if err != nil || !res.Success() {
		return "", fmt.Errorf("%w: %s", runner.ErrNotFound, name)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()
	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer func() { _ = provider.Close() }()
	return true
}

func TestManager_DebianContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping container integration test: no container provider")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "debian:bookworm-slim",
			Cmd:   []string{"sleep", "infinity"},
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("skipping: cannot start debian container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	r := containerRunner{c: c}
	release, err := runner.Output(ctx, r, "cat", OSReleasePath)
	if err != nil {
		t.Fatalf("read os-release: %v", err)
	}
	family, err := DetectFamily(release)
	if err != nil || family != FamilyApt {
		t.Fatalf("DetectFamily() = %q, %v", family, err)
	}

	m, err := New(family, r)
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsInstalled(ctx, "dpkg") {
		t.Error("dpkg should be installed in debian images")
	}
	if m.IsInstalled(ctx, "rsync") {
		t.Error("rsync is not part of bookworm-slim")
	}

	// The container runs as root, so sudo is never prefixed.
	if err := m.Update(ctx); err != nil {
		var ce *runner.CommandError
		if errors.As(err, &ce) {
			t.Skipf("skipping install: no network in container: %v", err)
		}
		t.Fatal(err)
	}
	if err := m.Install(ctx, "rsync"); err != nil {
		t.Fatalf("Install(rsync) error = %v", err)
	}
	if !m.IsInstalled(ctx, "rsync") {
		t.Error("rsync should be installed after Install")
	}

	tools, err := ProbeTools(ctx, r, []string{"rsync", "vsftpd"})
	if err != nil {
		t.Fatal(err)
	}
	if !tools[0].Installed || tools[0].Version == "" || tools[1].Installed {
		t.Errorf("ProbeTools() = %+v", tools)
	}
}
