// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces the XDG lookup in ConfigDir when non-empty.
var configDirOverride string

// Reset clears the directory override. Tests call it from t.Cleanup.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride makes ConfigDir return dir. Used by tests and by the
// --config-dir style overrides of embedding programs.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
