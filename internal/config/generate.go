// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// GenerateCUE renders cfg as a config.cue file that validates against the schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// hostkit configuration file\n")
	sb.WriteString("// Remove a field to fall back to its built-in default.\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose:      %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tinteractive:  %v\n", cfg.UI.Interactive)
	fmt.Fprintf(&sb, "\taccessible:   %v\n", cfg.UI.Accessible)
	sb.WriteString("}\n")

	sb.WriteString("\nlogging: {\n")
	fmt.Fprintf(&sb, "\tenabled:          %v\n", cfg.Logging.Enabled)
	fmt.Fprintf(&sb, "\tfile:             %q\n", cfg.Logging.File)
	fmt.Fprintf(&sb, "\tlevel:            %q\n", cfg.Logging.Level)
	fmt.Fprintf(&sb, "\tcredentials_file: %q\n", cfg.Logging.CredentialsFile)
	sb.WriteString("}\n")

	t := cfg.Transfer
	sb.WriteString("\ntransfer: {\n")
	fmt.Fprintf(&sb, "\tcompress:             %v\n", t.Compress)
	fmt.Fprintf(&sb, "\tchecksum:             %v\n", t.Checksum)
	fmt.Fprintf(&sb, "\tpartial:              %v\n", t.Partial)
	fmt.Fprintf(&sb, "\tprogress:             %v\n", t.Progress)
	fmt.Fprintf(&sb, "\texcludes:             %s\n", cueList(t.Excludes))
	fmt.Fprintf(&sb, "\tbandwidth_kbps:       %d\n", t.BandwidthKBps)
	fmt.Fprintf(&sb, "\tarchive_mode:         %q\n", t.ArchiveMode)
	fmt.Fprintf(&sb, "\tarchive_format:       %q\n", t.ArchiveFormat)
	fmt.Fprintf(&sb, "\tarchive_min_files:    %d\n", t.ArchiveMinFiles)
	fmt.Fprintf(&sb, "\tarchive_max_avg_size: %q\n", t.ArchiveMaxAvgSize)
	if t.StateFile != "" {
		fmt.Fprintf(&sb, "\tstate_file:           %q\n", t.StateFile)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nssh: {\n")
	fmt.Fprintf(&sb, "\tkey_type: %q\n", cfg.SSH.KeyType)
	if cfg.SSH.KeyDir != "" {
		fmt.Fprintf(&sb, "\tkey_dir:  %q\n", cfg.SSH.KeyDir)
	}
	fmt.Fprintf(&sb, "\tport:     %d\n", cfg.SSH.Port)
	if cfg.SSH.Identity != "" {
		fmt.Fprintf(&sb, "\tidentity: %q\n", cfg.SSH.Identity)
	}
	sb.WriteString("}\n")

	p := cfg.Packages
	sb.WriteString("\npackages: {\n")
	sb.WriteString("\tbundles: {\n")
	names := make([]string, 0, len(p.Bundles))
	for name := range p.Bundles {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "\t\t%q: %s\n", name, cueList(p.Bundles[name]))
	}
	sb.WriteString("\t}\n")
	fmt.Fprintf(&sb, "\tvscode_extensions: %s\n", cueList(p.VSCodeExtensions))
	fmt.Fprintf(&sb, "\tnpm_globals:       %s\n", cueList(p.NPMGlobals))
	fmt.Fprintf(&sb, "\tpip_packages:      %s\n", cueList(p.PipPackages))
	fmt.Fprintf(&sb, "\tcomposer_globals:  %s\n", cueList(p.ComposerGlobals))
	sb.WriteString("}\n")

	sb.WriteString("\nfirewall: {\n")
	fmt.Fprintf(&sb, "\tbackup_dir: %q\n", cfg.Firewall.BackupDir)
	fmt.Fprintf(&sb, "\tkeep_ssh:   %v\n", cfg.Firewall.KeepSSH)
	sb.WriteString("}\n")

	f := cfg.FTP
	sb.WriteString("\nftp_config: {\n")
	fmt.Fprintf(&sb, "\tftp_root:           %q\n", f.FTPRoot)
	fmt.Fprintf(&sb, "\tftp_group:          %q\n", f.FTPGroup)
	fmt.Fprintf(&sb, "\tdefault_shell:      %q\n", f.DefaultShell)
	fmt.Fprintf(&sb, "\tallowed_users_file: %q\n", f.AllowedUsersFile)
	fmt.Fprintf(&sb, "\tconfig_path:        %q\n", f.ConfigPath)
	fmt.Fprintf(&sb, "\tlisten_port:        %d\n", f.ListenPort)
	fmt.Fprintf(&sb, "\tpasv_min_port:      %d\n", f.PasvMinPort)
	fmt.Fprintf(&sb, "\tpasv_max_port:      %d\n", f.PasvMaxPort)
	fmt.Fprintf(&sb, "\tallowed_networks:   %s\n", cueList(f.AllowedNetworks))
	sb.WriteString("}\n")

	pp := cfg.PasswordPolicy
	sb.WriteString("\npassword_policy: {\n")
	fmt.Fprintf(&sb, "\tlength:            %d\n", pp.Length)
	fmt.Fprintf(&sb, "\tinclude_uppercase: %v\n", pp.IncludeUppercase)
	fmt.Fprintf(&sb, "\tinclude_lowercase: %v\n", pp.IncludeLowercase)
	fmt.Fprintf(&sb, "\tinclude_digits:    %v\n", pp.IncludeDigits)
	fmt.Fprintf(&sb, "\tinclude_special:   %v\n", pp.IncludeSpecial)
	fmt.Fprintf(&sb, "\tspecial_chars:     %q\n", pp.SpecialChars)
	fmt.Fprintf(&sb, "\texclude_ambiguous: %v\n", pp.ExcludeAmbiguous)
	fmt.Fprintf(&sb, "\tmin_uppercase:     %d\n", pp.MinUppercase)
	fmt.Fprintf(&sb, "\tmin_lowercase:     %d\n", pp.MinLowercase)
	fmt.Fprintf(&sb, "\tmin_digits:        %d\n", pp.MinDigits)
	fmt.Fprintf(&sb, "\tmin_special:       %d\n", pp.MinSpecial)
	sb.WriteString("}\n")

	ts := cfg.Tailscale
	sb.WriteString("\ntailscale_config: {\n")
	fmt.Fprintf(&sb, "\taccept_routes:       %v\n", ts.AcceptRoutes)
	fmt.Fprintf(&sb, "\taccept_dns:          %v\n", ts.AcceptDNS)
	fmt.Fprintf(&sb, "\tshields_up:          %v\n", ts.ShieldsUp)
	fmt.Fprintf(&sb, "\tadvertise_exit_node: %v\n", ts.AdvertiseExitNode)
	fmt.Fprintf(&sb, "\tssh_enabled:         %v\n", ts.SSHEnabled)
	fmt.Fprintf(&sb, "\thostname:            %q\n", ts.Hostname)
	fmt.Fprintf(&sb, "\toperator:            %q\n", ts.Operator)
	fmt.Fprintf(&sb, "\tadvertise_routes:    %s\n", cueList(ts.AdvertiseRoutes))
	sb.WriteString("}\n")

	n := cfg.Network
	sb.WriteString("\nnetwork_config: {\n")
	fmt.Fprintf(&sb, "\texit_node:                  %q\n", n.ExitNode)
	fmt.Fprintf(&sb, "\texit_node_allow_lan_access: %v\n", n.ExitNodeAllowLANAccess)
	fmt.Fprintf(&sb, "\tipv4_enabled:               %v\n", n.IPv4Enabled)
	fmt.Fprintf(&sb, "\tipv6_enabled:               %v\n", n.IPv6Enabled)
	sb.WriteString("}\n")

	c := cfg.Conky
	sb.WriteString("\nconky: {\n")
	fmt.Fprintf(&sb, "\talignment:       %q\n", c.Alignment)
	fmt.Fprintf(&sb, "\tupdate_interval: %s\n", cueNumber(c.UpdateInterval))
	fmt.Fprintf(&sb, "\tinterface:       %q\n", c.Interface)
	fmt.Fprintf(&sb, "\tgap_x:           %d\n", c.GapX)
	fmt.Fprintf(&sb, "\tgap_y:           %d\n", c.GapY)
	fmt.Fprintf(&sb, "\tshow_tailscale:  %v\n", c.ShowTailscale)
	fmt.Fprintf(&sb, "\tshow_ftp:        %v\n", c.ShowFTP)
	sb.WriteString("}\n")

	return sb.String()
}

func cueList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// cueNumber keeps a decimal point so CUE reads the value as a float.
func cueNumber(f float64) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
