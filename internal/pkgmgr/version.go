// SPDX-License-Identifier: MPL-2.0

package pkgmgr

import (
	"fmt"

	version "github.com/knqyf263/go-deb-version"
)

// AtLeast reports whether have is the same as or newer than want. Versions
// are compared with Debian ordering rules, which also order plain upstream
// versions ("3.1.0" < "3.2.7") correctly.
func AtLeast(have, want string) (bool, error) {
	h, err := version.NewVersion(have)
	if err != nil {
		return false, fmt.Errorf("parse version %q: %w", have, err)
	}
	w, err := version.NewVersion(want)
	if err != nil {
		return false, fmt.Errorf("parse version %q: %w", want, err)
	}
	return !h.LessThan(w), nil
}
