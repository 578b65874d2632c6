// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/hostkit/hostkit/cmd/hostkit"

func main() {
	cmd.Execute()
}
