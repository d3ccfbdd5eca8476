// SPDX-License-Identifier: MPL-2.0

package main

import "gex-cli/cmd/gex"

func main() {
	cmd.Execute()
}
