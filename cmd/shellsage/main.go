// Command shellsage is the CLI entrypoint: it hands off to the cli
// package for argument parsing and exits with whatever code the root
// command produces.
package main

import (
	"os"

	"github.com/shellsage/shellsage/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
