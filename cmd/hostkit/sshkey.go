// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hostkit/hostkit/internal/issue"
	"github.com/hostkit/hostkit/internal/sshkeys"
	"github.com/hostkit/hostkit/internal/ui"
)

// newSSHKeyCommand creates the `hostkit ssh-key` command tree.
func newSSHKeyCommand(app *App) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:     "ssh-key",
		Aliases: []string{"sshkey"},
		Short:   "Generate, list and distribute SSH keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	keyCmd.AddCommand(
		newSSHKeyGenerateCommand(app),
		newSSHKeyListCommand(app),
		newSSHKeyAddCommand(app),
		newSSHKeyCopyCommand(app),
		newSSHKeyHostCommand(app),
	)
	return keyCmd
}

func newKeys(app *App) (*sshkeys.Keys, error) {
	home, err := app.HomeDir()
	if err != nil {
		return nil, err
	}
	return sshkeys.NewKeys(app.runner, app.printer, home), nil
}

// keyDir is the configured key directory, or ~/.ssh.
func keyDir(app *App, k *sshkeys.Keys) string {
	if app.cfg.SSH.KeyDir != "" {
		return app.cfg.SSH.KeyDir
	}
	return k.SSHDir()
}

// defaultKeyPath is the private key of the configured type.
func defaultKeyPath(app *App, k *sshkeys.Keys) string {
	keyType := app.cfg.SSH.KeyType
	if keyType == "" {
		keyType = sshkeys.TypeEd25519
	}
	return filepath.Join(keyDir(app, k), "id_"+keyType)
}

func newSSHKeyGenerateCommand(app *App) *cobra.Command {
	var (
		opts          sshkeys.GenerateOptions
		askPassphrase bool
	)
	genCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new key pair with ssh-keygen",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ []string) error {
			k, err := newKeys(app)
			if err != nil {
				return err
			}
			if opts.Type == "" {
				opts.Type = app.cfg.SSH.KeyType
			}
			if opts.Path == "" && app.cfg.SSH.KeyDir != "" {
				opts.Path = filepath.Join(app.cfg.SSH.KeyDir, "id_"+k.WithDefaults(opts).Type)
			}
			if askPassphrase {
				pass, err := promptNewSecret(app, "Key passphrase")
				if err != nil {
					return err
				}
				opts.Passphrase = pass
			}

			made, err := k.Generate(ctx, opts)
			if err != nil {
				return err
			}
			if app.flags.dryRun {
				return nil
			}
			info, err := sshkeys.ReadPublicKey(made.Path + ".pub")
			if err != nil {
				return err
			}
			app.printer.Box("New key", keyLines(info))
			return nil
		}),
	}
	fl := genCmd.Flags()
	fl.StringVarP(&opts.Type, "type", "t", "", "key type: ed25519, rsa or ecdsa (default from config)")
	fl.IntVarP(&opts.Bits, "bits", "b", 0, "key size in bits (rsa and ecdsa only)")
	fl.StringVarP(&opts.Comment, "comment", "C", "", "key comment (default user@hostname)")
	fl.StringVarP(&opts.Path, "path", "f", "", "private key path (default ~/.ssh/id_<type>)")
	fl.BoolVar(&opts.Overwrite, "overwrite", false, "replace an existing key")
	fl.BoolVar(&askPassphrase, "passphrase", false, "prompt for a passphrase instead of leaving the key unencrypted")
	return genCmd
}

func newSSHKeyListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List public keys with their fingerprints",
		Args:  cobra.NoArgs,
		RunE: app.run(func(context.Context, []string) error {
			k, err := newKeys(app)
			if err != nil {
				return err
			}
			dir := keyDir(app, k)
			keys, err := sshkeys.List(dir)
			if err != nil {
				return issue.WrapWithContext(err, "list ssh keys", dir)
			}
			if len(keys) == 0 {
				app.printer.Warn("No public keys in %s", dir)
				app.printer.Info("Create one with: hostkit ssh-key generate")
				return nil
			}
			for _, info := range keys {
				app.printer.Box(filepath.Base(info.Path), keyLines(info))
			}
			return nil
		}),
	}
}

func keyLines(info sshkeys.KeyInfo) []string {
	size := "-"
	if info.Bits > 0 {
		size = strconv.Itoa(info.Bits)
	}
	private := ui.SuccessStyle.Render("present")
	if !info.HasPrivate {
		private = ui.WarningStyle.Render("missing")
	}
	return []string{
		ui.Row("Path", info.Path),
		ui.Row("Type", info.Type),
		ui.Row("Bits", size),
		ui.Row("Fingerprint", info.Fingerprint),
		ui.Row("Comment", info.Comment),
		ui.Row("Private key", private),
	}
}

func newSSHKeyAddCommand(app *App) *cobra.Command {
	var (
		persist bool
		shell   string
	)
	addCmd := &cobra.Command{
		Use:   "add [private-key]",
		Short: "Load a key into ssh-agent",
		Args:  cobra.MaximumNArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			k, err := newKeys(app)
			if err != nil {
				return err
			}
			path := defaultKeyPath(app, k)
			if len(args) == 1 {
				path = args[0]
			}

			if persist {
				if shell == "" {
					shell = os.Getenv("SHELL")
				}
				if app.flags.dryRun {
					app.printer.Info("[dry-run] add ssh-agent startup for %s to your shell rc", path)
				} else {
					rc, changed, err := k.PersistAgent(path, shell)
					if err != nil {
						return err
					}
					if changed {
						app.printer.Success("ssh-agent now starts from %s", rc)
					} else {
						app.printer.Success("%s already starts ssh-agent", rc)
					}
				}
			}

			err = k.AddToAgent(ctx, path)
			var ae *issue.ActionableError
			if persist && errors.As(err, &ae) && ae.IssueID == issue.SSHAgentNotRunningId {
				app.printer.Warn("No agent in this shell; open a new terminal to load the key")
				return nil
			}
			return err
		}),
	}
	addCmd.Flags().BoolVar(&persist, "persist", false, "start ssh-agent and load the key from your shell rc")
	addCmd.Flags().StringVar(&shell, "shell", "", "shell whose rc file is edited (default $SHELL)")
	return addCmd
}

func newSSHKeyCopyCommand(app *App) *cobra.Command {
	var (
		keyPath string
		port    int
		verify  bool
	)
	copyCmd := &cobra.Command{
		Use:   "copy <user@host>",
		Short: "Install a public key on a remote host with ssh-copy-id",
		Args:  cobra.ExactArgs(1),
		RunE: app.run(func(ctx context.Context, args []string) error {
			k, err := newKeys(app)
			if err != nil {
				return err
			}
			if keyPath == "" {
				keyPath = defaultKeyPath(app, k)
			}
			if port == 0 {
				port = app.cfg.SSH.Port
			}
			if err := k.CopyID(ctx, keyPath, args[0], port); err != nil {
				return err
			}
			if !verify {
				return nil
			}
			return k.TestConnection(ctx, args[0], port, keyPath)
		}),
	}
	copyCmd.Flags().StringVarP(&keyPath, "key", "k", "", "private key whose .pub is copied (default from config)")
	copyCmd.Flags().IntVarP(&port, "port", "p", 0, "SSH port (default from config)")
	copyCmd.Flags().BoolVar(&verify, "test", false, "test key-based login afterwards")
	return copyCmd
}

func newSSHKeyHostCommand(app *App) *cobra.Command {
	var entry sshkeys.HostEntry
	hostCmd := &cobra.Command{
		Use:   "host <alias> [hostname]",
		Short: "Add a Host block to ~/.ssh/config",
		Args:  cobra.RangeArgs(1, 2),
		RunE: app.run(func(_ context.Context, args []string) error {
			k, err := newKeys(app)
			if err != nil {
				return err
			}
			entry.Alias = args[0]
			if len(args) == 2 {
				entry.HostName = args[1]
			}
			path := filepath.Join(k.SSHDir(), "config")
			if app.flags.dryRun {
				app.printer.Info("[dry-run] append to %s:", path)
				fmt.Fprint(app.stdout, entry.Render())
				return nil
			}
			changed, err := sshkeys.AddHostEntry(path, entry)
			if err != nil {
				return issue.WrapWithContext(err, "add ssh host", path)
			}
			if !changed {
				app.printer.Warn("Host %s already exists in %s", entry.Alias, path)
				return nil
			}
			app.printer.Success("Added Host %s to %s", entry.Alias, path)
			return nil
		}),
	}
	hostCmd.Flags().StringVarP(&entry.User, "user", "u", "", "remote user")
	hostCmd.Flags().IntVarP(&entry.Port, "port", "p", 0, "SSH port")
	hostCmd.Flags().StringVarP(&entry.IdentityFile, "identity", "i", "", "identity file for this host")
	return hostCmd
}

// promptNewSecret asks twice and requires both answers to match.
func promptNewSecret(app *App, title string) (string, error) {
	first, err := app.Prompter.Password(title)
	if err != nil {
		return "", err
	}
	second, err := app.Prompter.Password("Confirm " + title)
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("entries do not match")
	}
	return first, nil
}
