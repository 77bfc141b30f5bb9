// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/rbberger/bueno/cmd/bueno"

func main() {
	cmd.Execute()
}
