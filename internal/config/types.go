// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"golang.org/x/exp/slices"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// ArchiveAuto archives only when the source looks like many small files.
	ArchiveAuto ArchiveMode = "auto"
	// ArchiveAlways always archives a local directory source before transfer.
	ArchiveAlways ArchiveMode = "always"
	// ArchiveNever never archives.
	ArchiveNever ArchiveMode = "never"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidArchiveMode is returned when an ArchiveMode value is not recognized.
	ErrInvalidArchiveMode = errors.New("invalid archive mode")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// ArchiveMode controls archive-before-transfer.
	ArchiveMode string

	// InvalidConfigError aggregates every field that failed validation.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the root configuration structure for hostkit.
	Config struct {
		UI             UIConfig             `json:"ui" mapstructure:"ui"`
		Logging        LoggingConfig        `json:"logging" mapstructure:"logging"`
		Transfer       TransferConfig       `json:"transfer" mapstructure:"transfer"`
		SSH            SSHConfig            `json:"ssh" mapstructure:"ssh"`
		Packages       PackagesConfig       `json:"packages" mapstructure:"packages"`
		Firewall       FirewallConfig       `json:"firewall" mapstructure:"firewall"`
		FTP            FTPConfig            `json:"ftp_config" mapstructure:"ftp_config"`
		PasswordPolicy PasswordPolicyConfig `json:"password_policy" mapstructure:"password_policy"`
		Tailscale      TailscaleConfig      `json:"tailscale_config" mapstructure:"tailscale_config"`
		Network        NetworkConfig        `json:"network_config" mapstructure:"network_config"`
		Conky          ConkyConfig          `json:"conky" mapstructure:"conky"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme ("auto", "dark", "light")
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// Interactive allows prompts. Disabled prompts take their default answer.
		Interactive bool `json:"interactive" mapstructure:"interactive"`
		// Accessible renders prompts in plain line mode for screen readers.
		Accessible bool `json:"accessible" mapstructure:"accessible"`
	}

	// LoggingConfig configures the operation log and credential log.
	LoggingConfig struct {
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// File is the append-only operation log. Empty disables it.
		File string `json:"file" mapstructure:"file"`
		// Level is the stderr log level (debug, info, warn, error).
		Level string `json:"level" mapstructure:"level"`
		// CredentialsFile records generated FTP credentials as CSV.
		CredentialsFile string `json:"credentials_file" mapstructure:"credentials_file"`
	}

	// TransferConfig holds rsync defaults.
	TransferConfig struct {
		Compress      bool        `json:"compress" mapstructure:"compress"`
		Checksum      bool        `json:"checksum" mapstructure:"checksum"`
		Partial       bool        `json:"partial" mapstructure:"partial"`
		Progress      bool        `json:"progress" mapstructure:"progress"`
		Excludes      []string    `json:"excludes" mapstructure:"excludes"`
		BandwidthKBps int         `json:"bandwidth_kbps" mapstructure:"bandwidth_kbps"`
		ArchiveMode   ArchiveMode `json:"archive_mode" mapstructure:"archive_mode"`
		// ArchiveFormat is "gz" or "xz".
		ArchiveFormat   string `json:"archive_format" mapstructure:"archive_format"`
		ArchiveMinFiles int    `json:"archive_min_files" mapstructure:"archive_min_files"`
		// ArchiveMaxAvgSize is a human size such as "64KiB".
		ArchiveMaxAvgSize string `json:"archive_max_avg_size" mapstructure:"archive_max_avg_size"`
		// StateFile overrides the last-transfer record location.
		StateFile string `json:"state_file" mapstructure:"state_file"`
	}

	// SSHConfig holds key generation and connection defaults.
	SSHConfig struct {
		KeyType string `json:"key_type" mapstructure:"key_type"`
		// KeyDir defaults to ~/.ssh when empty.
		KeyDir string `json:"key_dir" mapstructure:"key_dir"`
		Port   int    `json:"port" mapstructure:"port"`
		// Identity is passed to rsync and ssh-copy-id when set.
		Identity string `json:"identity" mapstructure:"identity"`
	}

	// PackagesConfig lists bundles and post-install extras.
	PackagesConfig struct {
		Bundles          map[string][]string `json:"bundles" mapstructure:"bundles"`
		VSCodeExtensions []string            `json:"vscode_extensions" mapstructure:"vscode_extensions"`
		NPMGlobals       []string            `json:"npm_globals" mapstructure:"npm_globals"`
		PipPackages      []string            `json:"pip_packages" mapstructure:"pip_packages"`
		ComposerGlobals  []string            `json:"composer_globals" mapstructure:"composer_globals"`
	}

	// FirewallConfig configures ufw backups.
	FirewallConfig struct {
		BackupDir string `json:"backup_dir" mapstructure:"backup_dir"`
		// KeepSSH allows the SSH port before enabling ufw.
		KeepSSH bool `json:"keep_ssh" mapstructure:"keep_ssh"`
	}

	// FTPConfig configures vsftpd and FTP user management.
	FTPConfig struct {
		FTPRoot          string   `json:"ftp_root" mapstructure:"ftp_root"`
		FTPGroup         string   `json:"ftp_group" mapstructure:"ftp_group"`
		DefaultShell     string   `json:"default_shell" mapstructure:"default_shell"`
		AllowedUsersFile string   `json:"allowed_users_file" mapstructure:"allowed_users_file"`
		ConfigPath       string   `json:"config_path" mapstructure:"config_path"`
		ListenPort       int      `json:"listen_port" mapstructure:"listen_port"`
		PasvMinPort      int      `json:"pasv_min_port" mapstructure:"pasv_min_port"`
		PasvMaxPort      int      `json:"pasv_max_port" mapstructure:"pasv_max_port"`
		AllowedNetworks  []string `json:"allowed_networks" mapstructure:"allowed_networks"`
	}

	// PasswordPolicyConfig shapes generated passwords.
	PasswordPolicyConfig struct {
		Length           int    `json:"length" mapstructure:"length"`
		IncludeUppercase bool   `json:"include_uppercase" mapstructure:"include_uppercase"`
		IncludeLowercase bool   `json:"include_lowercase" mapstructure:"include_lowercase"`
		IncludeDigits    bool   `json:"include_digits" mapstructure:"include_digits"`
		IncludeSpecial   bool   `json:"include_special" mapstructure:"include_special"`
		SpecialChars     string `json:"special_chars" mapstructure:"special_chars"`
		ExcludeAmbiguous bool   `json:"exclude_ambiguous" mapstructure:"exclude_ambiguous"`
		MinUppercase     int    `json:"min_uppercase" mapstructure:"min_uppercase"`
		MinLowercase     int    `json:"min_lowercase" mapstructure:"min_lowercase"`
		MinDigits        int    `json:"min_digits" mapstructure:"min_digits"`
		MinSpecial       int    `json:"min_special" mapstructure:"min_special"`
	}

	// TailscaleConfig maps onto "tailscale up" flags.
	TailscaleConfig struct {
		AcceptRoutes      bool     `json:"accept_routes" mapstructure:"accept_routes"`
		AcceptDNS         bool     `json:"accept_dns" mapstructure:"accept_dns"`
		ShieldsUp         bool     `json:"shields_up" mapstructure:"shields_up"`
		AdvertiseExitNode bool     `json:"advertise_exit_node" mapstructure:"advertise_exit_node"`
		SSHEnabled        bool     `json:"ssh_enabled" mapstructure:"ssh_enabled"`
		Hostname          string   `json:"hostname" mapstructure:"hostname"`
		Operator          string   `json:"operator" mapstructure:"operator"`
		AdvertiseRoutes   []string `json:"advertise_routes" mapstructure:"advertise_routes"`
		AuthKey           string   `json:"auth_key" mapstructure:"auth_key"`
	}

	// NetworkConfig covers exit node use and IP forwarding.
	NetworkConfig struct {
		ExitNode               string `json:"exit_node" mapstructure:"exit_node"`
		ExitNodeAllowLANAccess bool   `json:"exit_node_allow_lan_access" mapstructure:"exit_node_allow_lan_access"`
		IPv4Enabled            bool   `json:"ipv4_enabled" mapstructure:"ipv4_enabled"`
		IPv6Enabled            bool   `json:"ipv6_enabled" mapstructure:"ipv6_enabled"`
	}

	// ConkyConfig configures the generated conky.conf.
	ConkyConfig struct {
		Alignment      string  `json:"alignment" mapstructure:"alignment"`
		UpdateInterval float64 `json:"update_interval" mapstructure:"update_interval"`
		// Interface is the network interface to graph. Empty picks the default route.
		Interface     string `json:"interface" mapstructure:"interface"`
		GapX          int    `json:"gap_x" mapstructure:"gap_x"`
		GapY          int    `json:"gap_y" mapstructure:"gap_y"`
		ShowTailscale bool   `json:"show_tailscale" mapstructure:"show_tailscale"`
		ShowFTP       bool   `json:"show_ftp" mapstructure:"show_ftp"`
	}
)

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined schemes.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w: %q", ErrInvalidColorScheme, string(cs))}
	}
}

// String returns the string representation of the ArchiveMode.
func (m ArchiveMode) String() string { return string(m) }

// IsValid returns whether the ArchiveMode is auto, always or never.
func (m ArchiveMode) IsValid() (bool, []error) {
	switch m {
	case ArchiveAuto, ArchiveAlways, ArchiveNever:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w: %q", ErrInvalidArchiveMode, string(m))}
	}
}

// IsValid checks cross-field constraints that the CUE schema cannot see
// for JSON files: port ranges, enums and network literals.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if ok, e := c.UI.ColorScheme.IsValid(); !ok {
		errs = append(errs, e...)
	}
	if ok, e := c.Transfer.ArchiveMode.IsValid(); !ok {
		errs = append(errs, e...)
	}
	if f := c.Transfer.ArchiveFormat; f != "gz" && f != "xz" {
		errs = append(errs, fmt.Errorf("transfer.archive_format: %q is not gz or xz", f))
	}
	for name, port := range map[string]int{
		"ssh.port":                 c.SSH.Port,
		"ftp_config.listen_port":   c.FTP.ListenPort,
		"ftp_config.pasv_min_port": c.FTP.PasvMinPort,
		"ftp_config.pasv_max_port": c.FTP.PasvMaxPort,
	} {
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s: %d is not a valid port", name, port))
		}
	}
	if c.FTP.PasvMinPort > c.FTP.PasvMaxPort {
		errs = append(errs, fmt.Errorf("ftp_config: pasv_min_port %d exceeds pasv_max_port %d",
			c.FTP.PasvMinPort, c.FTP.PasvMaxPort))
	}
	for _, n := range c.FTP.AllowedNetworks {
		if !validNetwork(n) {
			errs = append(errs, fmt.Errorf("ftp_config.allowed_networks: %q is not an IP or CIDR", n))
		}
	}
	for _, r := range c.Tailscale.AdvertiseRoutes {
		if _, err := netip.ParsePrefix(r); err != nil {
			errs = append(errs, fmt.Errorf("tailscale_config.advertise_routes: %q is not a CIDR", r))
		}
	}
	if len(errs) > 0 {
		sortErrors(errs)
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func validNetwork(s string) bool {
	if _, err := netip.ParseAddr(s); err == nil {
		return true
	}
	_, err := netip.ParsePrefix(s)
	return err == nil
}

// sortErrors orders errors by message so map iteration stays deterministic.
func sortErrors(errs []error) {
	slices.SortFunc(errs, func(a, b error) int {
		return strings.Compare(a.Error(), b.Error())
	})
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Interactive: true,
		},
		Logging: LoggingConfig{
			Enabled:         true,
			Level:           "info",
			CredentialsFile: "/root/.ftp_credentials.csv",
		},
		Transfer: TransferConfig{
			Compress:          true,
			Partial:           true,
			Progress:          true,
			ArchiveMode:       ArchiveAuto,
			ArchiveFormat:     "gz",
			ArchiveMinFiles:   1000,
			ArchiveMaxAvgSize: "64KiB",
		},
		SSH: SSHConfig{
			KeyType: "ed25519",
			Port:    22,
		},
		Packages: PackagesConfig{
			Bundles: map[string][]string{},
		},
		Firewall: FirewallConfig{
			BackupDir: "/var/backups/hostkit/ufw",
			KeepSSH:   true,
		},
		FTP: FTPConfig{
			FTPRoot:          "/srv/ftp",
			FTPGroup:         "ftpusers",
			DefaultShell:     "/bin/bash",
			AllowedUsersFile: "/etc/vsftpd.userlist",
			ConfigPath:       "/etc/vsftpd.conf",
			ListenPort:       21,
			PasvMinPort:      40000,
			PasvMaxPort:      40100,
		},
		PasswordPolicy: PasswordPolicyConfig{
			Length:           16,
			IncludeUppercase: true,
			IncludeLowercase: true,
			IncludeDigits:    true,
			IncludeSpecial:   true,
			SpecialChars:     "!@#$%^&*-_=+",
			ExcludeAmbiguous: true,
			MinUppercase:     2,
			MinLowercase:     2,
			MinDigits:        2,
			MinSpecial:       2,
		},
		Network: NetworkConfig{
			IPv4Enabled: true,
		},
		Conky: ConkyConfig{
			Alignment:      "top_right",
			UpdateInterval: 2.0,
			GapX:           20,
			GapY:           40,
			ShowTailscale:  true,
		},
	}
}
