// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. The Markdown catalogue in this package is rendered with
// glamour for well-known failure classes such as missing root privileges or
// an absent system tool.
package issue
