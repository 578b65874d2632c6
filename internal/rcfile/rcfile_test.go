// SPDX-License-Identifier: MPL-2.0

package rcfile

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hostkit/hostkit/internal/testutil"
)

func TestApply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		lines   []string
		want    string
	}{
		{
			name:  "empty file",
			lines: []string{"export A=1"},
			want:  "# >>> hostkit env >>>\nexport A=1\n# <<< hostkit env <<<\n",
		},
		{
			name:    "append after existing content",
			content: "alias ll='ls -l'",
			lines:   []string{"export A=1"},
			want:    "alias ll='ls -l'\n\n# >>> hostkit env >>>\nexport A=1\n# <<< hostkit env <<<\n",
		},
		{
			name:    "replace existing block",
			content: "top\n# >>> hostkit env >>>\nexport A=0\n# <<< hostkit env <<<\nbottom\n",
			lines:   []string{"export A=1", "export B=2"},
			want:    "top\n# >>> hostkit env >>>\nexport A=1\nexport B=2\n# <<< hostkit env <<<\nbottom\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Apply(tt.content, "env", tt.lines); got != tt.want {
				t.Errorf("Apply() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestEnsureBlock_Idempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".bashrc")
	testutil.MustWriteFile(t, path, "# user stuff\n")

	lines := []string{`eval "$(ssh-agent -s)" >/dev/null`}
	changed, err := EnsureBlock(path, "ssh-agent", lines)
	if err != nil || !changed {
		t.Fatalf("first EnsureBlock = %v, %v", changed, err)
	}
	changed, err = EnsureBlock(path, "ssh-agent", lines)
	if err != nil || changed {
		t.Fatalf("second EnsureBlock = %v, %v; want unchanged", changed, err)
	}

	content := testutil.MustReadFile(t, path)
	if strings.Count(content, BeginLine("ssh-agent")) != 1 {
		t.Errorf("block duplicated:\n%s", content)
	}
	if !strings.HasPrefix(content, "# user stuff\n") {
		t.Errorf("user content lost:\n%s", content)
	}
}

func TestEnsureBlock_InvalidMarker(t *testing.T) {
	t.Parallel()

	_, err := EnsureBlock(filepath.Join(t.TempDir(), "rc"), "bad marker", nil)
	if !errors.Is(err, ErrInvalidMarker) {
		t.Errorf("err = %v, want ErrInvalidMarker", err)
	}
}

func TestDefaultShellRC(t *testing.T) {
	t.Parallel()

	if got := DefaultShellRC("/home/a", "/usr/bin/zsh"); got != "/home/a/.zshrc" {
		t.Errorf("zsh rc = %q", got)
	}
	if got := DefaultShellRC("/home/a", "/bin/bash"); got != "/home/a/.bashrc" {
		t.Errorf("bash rc = %q", got)
	}
}
