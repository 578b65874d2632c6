// SPDX-License-Identifier: MPL-2.0

// Package sshkeys generates, lists and distributes SSH keys by driving
// ssh-keygen, ssh-add and ssh-copy-id, and maintains ~/.ssh/config entries.
package sshkeys

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hostkit/hostkit/internal/issue"
	"github.com/hostkit/hostkit/internal/runner"
	"github.com/hostkit/hostkit/internal/sysinfo"
	"github.com/hostkit/hostkit/internal/ui"
)

// Key types accepted by Generate.
const (
	TypeEd25519 = "ed25519"
	TypeRSA     = "rsa"
	TypeECDSA   = "ecdsa"
)

// DefaultRSABits is used for RSA keys when no size is given.
const DefaultRSABits = 4096

var (
	// ErrKeyExists is returned when the key file exists and Overwrite is false.
	ErrKeyExists = errors.New("key already exists")
	// ErrInvalidKeyType is returned for key types other than ed25519, rsa and ecdsa.
	ErrInvalidKeyType = errors.New("invalid key type")
	// ErrInvalidBits is returned for key sizes the key type does not support.
	ErrInvalidBits = errors.New("invalid key size")
)

type (
	// GenerateOptions describes a new key pair.
	GenerateOptions struct {
		Type       string
		Bits       int
		Comment    string
		Path       string
		Passphrase string
		Overwrite  bool
	}

	// Keys manages keys for the invoking user.
	Keys struct {
		Runner  runner.Runner
		Printer *ui.Printer
		// Home is the home directory whose .ssh directory is managed.
		Home string

		getenv func(string) string
	}
)

// NewKeys creates a Keys manager rooted at home.
func NewKeys(r runner.Runner, p *ui.Printer, home string) *Keys {
	return &Keys{Runner: r, Printer: p, Home: home, getenv: os.Getenv}
}

// SSHDir returns the managed ~/.ssh directory.
func (k *Keys) SSHDir() string {
	return filepath.Join(k.Home, ".ssh")
}

// WithDefaults fills the type, path and comment.
func (k *Keys) WithDefaults(opts GenerateOptions) GenerateOptions {
	if opts.Type == "" {
		opts.Type = TypeEd25519
	}
	opts.Type = strings.ToLower(opts.Type)
	if opts.Type == TypeRSA && opts.Bits == 0 {
		opts.Bits = DefaultRSABits
	}
	if opts.Path == "" {
		opts.Path = filepath.Join(k.SSHDir(), "id_"+opts.Type)
	}
	if opts.Comment == "" {
		opts.Comment = sysinfo.CurrentUser() + "@" + sysinfo.Hostname()
	}
	return opts
}

// Validate checks the key type and size.
func (o GenerateOptions) Validate() error {
	switch o.Type {
	case TypeEd25519:
		if o.Bits != 0 {
			return fmt.Errorf("%w: ed25519 keys have a fixed size", ErrInvalidBits)
		}
	case TypeRSA:
		if o.Bits < 2048 || o.Bits > 16384 {
			return fmt.Errorf("%w: rsa needs 2048-16384 bits, got %d", ErrInvalidBits, o.Bits)
		}
	case TypeECDSA:
		if o.Bits != 0 && o.Bits != 256 && o.Bits != 384 && o.Bits != 521 {
			return fmt.Errorf("%w: ecdsa supports 256, 384 or 521 bits, got %d", ErrInvalidBits, o.Bits)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKeyType, o.Type)
	}
	if o.Path == "" {
		return errors.New("key path is required")
	}
	return nil
}

// BuildKeygenArgs returns the ssh-keygen arguments for opts.
func BuildKeygenArgs(opts GenerateOptions) []string {
	args := []string{"-t", opts.Type}
	if opts.Bits > 0 {
		args = append(args, "-b", strconv.Itoa(opts.Bits))
	}
	args = append(args, "-C", opts.Comment, "-f", opts.Path, "-N", opts.Passphrase)
	return args
}

// Generate creates a new key pair. Existing keys are only replaced when
// opts.Overwrite is set.
func (k *Keys) Generate(ctx context.Context, opts GenerateOptions) (GenerateOptions, error) {
	opts = k.WithDefaults(opts)
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	if !runner.Exists(k.Runner, "ssh-keygen") {
		return opts, issue.NewErrorContext().
			WithOperation("generate ssh key").
			WithResource("ssh-keygen").
			WithSuggestion("Install the OpenSSH client (openssh-client or openssh)").
			WithIssue(issue.ToolNotFoundId).
			Wrap(runner.ErrNotFound).
			BuildError()
	}

	exists := fileExists(opts.Path) || fileExists(opts.Path+".pub")
	if exists && !opts.Overwrite {
		return opts, issue.NewErrorContext().
			WithOperation("generate ssh key").
			WithResource(opts.Path).
			WithSuggestion("Pass --overwrite to replace it, or --path to choose another file").
			Wrap(ErrKeyExists).
			BuildError()
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
		return opts, fmt.Errorf("create %s: %w", filepath.Dir(opts.Path), err)
	}

	cmd := runner.Cmd("ssh-keygen", BuildKeygenArgs(opts)...)
	cmd.Secrets = []string{opts.Passphrase}
	if exists {
		// ssh-keygen asks before overwriting.
		cmd.Stdin = strings.NewReader("y\n")
	}
	if _, err := runner.RunChecked(ctx, k.Runner, cmd); err != nil {
		return opts, issue.WrapWithContext(err, "generate ssh key", opts.Path)
	}
	k.Printer.Success("Generated %s key %s", opts.Type, opts.Path)
	return opts, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
