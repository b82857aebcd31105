// Command kild is the CLI entry point. All subcommand wiring lives in
// internal/cmd; main only hands off to it and maps the result to a
// process exit code.
package main

import (
	"os"

	"github.com/kild-dev/kild/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
