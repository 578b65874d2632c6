// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from $XDG_CONFIG_HOME/hostkit/config.cue (defaulting to
// ~/.config/hostkit/config.cue). A legacy settings.json in the same directory, or any
// .json file passed explicitly, is read by Viper directly with the same key layout.
//
// CUE files are validated against an embedded schema (config_schema.cue). Both formats
// are then checked by Config.IsValid for constraints that span fields.
package config
