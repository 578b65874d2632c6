// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
)

func TestArchiveMode_IsValid(t *testing.T) {
	t.Parallel()

	for _, m := range []ArchiveMode{ArchiveAuto, ArchiveAlways, ArchiveNever} {
		if ok, _ := m.IsValid(); !ok {
			t.Errorf("%q should be valid", m)
		}
	}
	ok, errs := ArchiveMode("sometimes").IsValid()
	if ok || !errors.Is(errs[0], ErrInvalidArchiveMode) {
		t.Errorf("IsValid(sometimes) = %v, %v", ok, errs)
	}
}

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"cidr and address networks", func(c *Config) {
			c.FTP.AllowedNetworks = []string{"10.0.0.0/24", "fd00::1"}
		}, true},
		{"bad color scheme", func(c *Config) { c.UI.ColorScheme = "neon" }, false},
		{"bad archive format", func(c *Config) { c.Transfer.ArchiveFormat = "zip" }, false},
		{"zero ssh port", func(c *Config) { c.SSH.Port = 0 }, false},
		{"inverted passive range", func(c *Config) { c.FTP.PasvMinPort, c.FTP.PasvMaxPort = 50000, 40000 }, false},
		{"route without prefix", func(c *Config) { c.Tailscale.AdvertiseRoutes = []string{"10.0.0.1"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			ok, errs := cfg.IsValid()
			if ok != tt.valid {
				t.Fatalf("IsValid() = %v (%v), want %v", ok, errs, tt.valid)
			}
			if !ok && !errors.Is(errs[0], ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", errs[0])
			}
		})
	}
}
