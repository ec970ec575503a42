// SPDX-License-Identifier: MPL-2.0

package main

import cmd "driven-cli/cmd/driven"

func main() {
	cmd.Execute()
}
