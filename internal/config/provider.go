// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// ConfigDirPath overrides the config directory lookup when set.
	ConfigDirPath string
}

// Provider loads configuration from explicit options.
type Provider interface {
	// Load returns the effective configuration and the file it came from.
	// The path is empty when only built-in defaults apply.
	Load(ctx context.Context, opts LoadOptions) (*Config, string, error)
}

type fileProvider struct{}

// NewProvider creates a configuration provider.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	return loadWithOptions(ctx, opts)
}

// StaticProvider returns a fixed configuration. Tests use it to bypass the filesystem.
type StaticProvider struct {
	Config *Config
	Path   string
}

// Load returns the wrapped configuration, or defaults when it is nil.
func (p StaticProvider) Load(context.Context, LoadOptions) (*Config, string, error) {
	if p.Config == nil {
		return DefaultConfig(), p.Path, nil
	}
	return p.Config, p.Path, nil
}
