// SPDX-License-Identifier: MPL-2.0

// Package testutil holds test helpers: Must* wrappers that fail the test
// instead of returning errors, XDG isolation, and FakeRunner, a scripted
// runner.Runner that records every command a package would have executed.
package testutil
