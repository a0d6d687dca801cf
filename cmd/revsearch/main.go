// Command revsearch searches the revision history of a file or folder and
// compares the matching revisions.
package main

import (
	"os"

	"github.com/runnerr0/revsearch/internal/cli"
)

// Version information (set via ldflags during build).
var version = "dev"

func main() {
	// The parser reports errors itself.
	if err := cli.Run(version); err != nil {
		os.Exit(1)
	}
}
