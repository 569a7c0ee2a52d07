// The main package for the contactminer executable.
package main

import (
	"github.com/JakeFAU/contact-miner/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
