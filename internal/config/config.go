// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/hostkit/hostkit/internal/cueutil"
	"github.com/hostkit/hostkit/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "hostkit"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LegacyConfigFile is the JSON settings file read by the original scripts.
	LegacyConfigFile = "settings.json"

	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the hostkit configuration directory:
// $XDG_CONFIG_HOME/hostkit, defaulting to ~/.config/hostkit.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns $XDG_STATE_HOME/hostkit, defaulting to ~/.local/state/hostkit.
// It holds the last-transfer record.
func StateDir() (string, error) {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func xdgDir(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, fallback)
	}
	return filepath.Join(base, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	resolvedPath, err := resolveConfigPath(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadFileIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE or JSON syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'hostkit config show' to see the effective configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if ok, errs := cfg.IsValid(); !ok {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Fix the listed fields or remove them to use the defaults").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// resolveConfigPath picks the file to load. An explicit path must exist.
// Otherwise the first existing candidate wins: config.cue and settings.json
// in the config directory, then the same names in the working directory.
// An empty result means built-in defaults only.
func resolveConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'hostkit config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}

	candidates := []string{
		filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
		filepath.Join(cfgDir, LegacyConfigFile),
		ConfigFileName + "." + ConfigFileExt,
		LegacyConfigFile,
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c, nil
		}
	}
	return "", nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

func loadFileIntoViper(v *viper.Viper, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read JSON config: %w", err)
		}
		return nil
	}
	return loadCUEIntoViper(v, path)
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// The file decodes to map[string]any rather than Config so Viper keeps
// defaults for fields the file omits. Concrete(false) because every field is
// optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	result, err := cueutil.ParseAndDecode[map[string]any]([]byte(configSchema), data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
		cueutil.WithMaxFileSize(maxConfigFileSize),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*result.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("ui.color_scheme", d.UI.ColorScheme)
	v.SetDefault("ui.verbose", d.UI.Verbose)
	v.SetDefault("ui.interactive", d.UI.Interactive)
	v.SetDefault("ui.accessible", d.UI.Accessible)

	v.SetDefault("logging.enabled", d.Logging.Enabled)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.credentials_file", d.Logging.CredentialsFile)

	v.SetDefault("transfer.compress", d.Transfer.Compress)
	v.SetDefault("transfer.checksum", d.Transfer.Checksum)
	v.SetDefault("transfer.partial", d.Transfer.Partial)
	v.SetDefault("transfer.progress", d.Transfer.Progress)
	v.SetDefault("transfer.excludes", d.Transfer.Excludes)
	v.SetDefault("transfer.bandwidth_kbps", d.Transfer.BandwidthKBps)
	v.SetDefault("transfer.archive_mode", d.Transfer.ArchiveMode)
	v.SetDefault("transfer.archive_format", d.Transfer.ArchiveFormat)
	v.SetDefault("transfer.archive_min_files", d.Transfer.ArchiveMinFiles)
	v.SetDefault("transfer.archive_max_avg_size", d.Transfer.ArchiveMaxAvgSize)
	v.SetDefault("transfer.state_file", d.Transfer.StateFile)

	v.SetDefault("ssh.key_type", d.SSH.KeyType)
	v.SetDefault("ssh.key_dir", d.SSH.KeyDir)
	v.SetDefault("ssh.port", d.SSH.Port)
	v.SetDefault("ssh.identity", d.SSH.Identity)

	v.SetDefault("packages.bundles", d.Packages.Bundles)
	v.SetDefault("packages.vscode_extensions", d.Packages.VSCodeExtensions)
	v.SetDefault("packages.npm_globals", d.Packages.NPMGlobals)
	v.SetDefault("packages.pip_packages", d.Packages.PipPackages)
	v.SetDefault("packages.composer_globals", d.Packages.ComposerGlobals)

	v.SetDefault("firewall.backup_dir", d.Firewall.BackupDir)
	v.SetDefault("firewall.keep_ssh", d.Firewall.KeepSSH)

	v.SetDefault("ftp_config.ftp_root", d.FTP.FTPRoot)
	v.SetDefault("ftp_config.ftp_group", d.FTP.FTPGroup)
	v.SetDefault("ftp_config.default_shell", d.FTP.DefaultShell)
	v.SetDefault("ftp_config.allowed_users_file", d.FTP.AllowedUsersFile)
	v.SetDefault("ftp_config.config_path", d.FTP.ConfigPath)
	v.SetDefault("ftp_config.listen_port", d.FTP.ListenPort)
	v.SetDefault("ftp_config.pasv_min_port", d.FTP.PasvMinPort)
	v.SetDefault("ftp_config.pasv_max_port", d.FTP.PasvMaxPort)
	v.SetDefault("ftp_config.allowed_networks", d.FTP.AllowedNetworks)

	v.SetDefault("password_policy.length", d.PasswordPolicy.Length)
	v.SetDefault("password_policy.include_uppercase", d.PasswordPolicy.IncludeUppercase)
	v.SetDefault("password_policy.include_lowercase", d.PasswordPolicy.IncludeLowercase)
	v.SetDefault("password_policy.include_digits", d.PasswordPolicy.IncludeDigits)
	v.SetDefault("password_policy.include_special", d.PasswordPolicy.IncludeSpecial)
	v.SetDefault("password_policy.special_chars", d.PasswordPolicy.SpecialChars)
	v.SetDefault("password_policy.exclude_ambiguous", d.PasswordPolicy.ExcludeAmbiguous)
	v.SetDefault("password_policy.min_uppercase", d.PasswordPolicy.MinUppercase)
	v.SetDefault("password_policy.min_lowercase", d.PasswordPolicy.MinLowercase)
	v.SetDefault("password_policy.min_digits", d.PasswordPolicy.MinDigits)
	v.SetDefault("password_policy.min_special", d.PasswordPolicy.MinSpecial)

	v.SetDefault("tailscale_config.accept_routes", d.Tailscale.AcceptRoutes)
	v.SetDefault("tailscale_config.accept_dns", d.Tailscale.AcceptDNS)
	v.SetDefault("tailscale_config.shields_up", d.Tailscale.ShieldsUp)
	v.SetDefault("tailscale_config.advertise_exit_node", d.Tailscale.AdvertiseExitNode)
	v.SetDefault("tailscale_config.ssh_enabled", d.Tailscale.SSHEnabled)
	v.SetDefault("tailscale_config.hostname", d.Tailscale.Hostname)
	v.SetDefault("tailscale_config.operator", d.Tailscale.Operator)
	v.SetDefault("tailscale_config.advertise_routes", d.Tailscale.AdvertiseRoutes)
	v.SetDefault("tailscale_config.auth_key", d.Tailscale.AuthKey)

	v.SetDefault("network_config.exit_node", d.Network.ExitNode)
	v.SetDefault("network_config.exit_node_allow_lan_access", d.Network.ExitNodeAllowLANAccess)
	v.SetDefault("network_config.ipv4_enabled", d.Network.IPv4Enabled)
	v.SetDefault("network_config.ipv6_enabled", d.Network.IPv6Enabled)

	v.SetDefault("conky.alignment", d.Conky.Alignment)
	v.SetDefault("conky.update_interval", d.Conky.UpdateInterval)
	v.SetDefault("conky.interface", d.Conky.Interface)
	v.SetDefault("conky.gap_x", d.Conky.GapX)
	v.SetDefault("conky.gap_y", d.Conky.GapY)
	v.SetDefault("conky.show_tailscale", d.Conky.ShowTailscale)
	v.SetDefault("conky.show_ftp", d.Conky.ShowFTP)
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes config.cue with default values unless one exists.
// It returns the path and whether a file was created.
func CreateDefaultConfig() (string, bool, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", false, err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)

	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, true, nil
}

// Schema returns the embedded CUE schema source.
func Schema() string { return configSchema }

// MarshalJSON renders cfg in the settings.json layout.
func MarshalJSON(cfg *Config) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}
