// SPDX-License-Identifier: MPL-2.0

// Package transfer wraps rsync for local and SSH transfers.
//
// It builds deterministic rsync argument lists, previews transfers with
// "rsync --dry-run --itemize-changes --stats" and summarizes the result,
// optionally packs directories of many small files into a compressed tar
// before sending, renders rsync's progress2 output as a progress bar, and
// remembers the last transfer so it can be resumed.
package transfer
