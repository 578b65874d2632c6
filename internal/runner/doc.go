// SPDX-License-Identifier: MPL-2.0

// Package runner provides structured invocation of external system tools.
//
// Every hostkit feature is a sequence of calls to programs such as rsync,
// ufw, systemctl or tailscale. Runner captures their exit codes and output
// instead of relying on shell pipefail semantics. ExecRunner executes for
// real, optionally under a pseudo-terminal for tools that prompt the user.
// DryRunner prints the quoted command line and records it without running
// anything that changes the system.
package runner
