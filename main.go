// SPDX-License-Identifier: MPL-2.0

package main

import cmd "runbox-cli/cmd/runbox"

func main() {
	cmd.Execute()
}
