package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Search  *SearchCommand
	Compare *CompareCommand
	Show    *ShowCommand
	Import  *ImportCommand
	Status  *StatusCommand
	Prune   *PruneCommand
	Purge   *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "revsearch"
	parser.LongDescription = "Search the revision history of a file or folder by keywords and compare the matching revisions."

	cmds := &commands{
		Search:  &SearchCommand{globals: &globals, version: version},
		Compare: &CompareCommand{globals: &globals, version: version},
		Show:    &ShowCommand{globals: &globals, version: version},
		Import:  &ImportCommand{globals: &globals, version: version},
		Status:  &StatusCommand{globals: &globals, version: version},
		Prune:   &PruneCommand{globals: &globals, version: version},
		Purge:   &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("search", "Search an item's history", "Filter the history of a file or folder by keywords. Every keyword must match the revision id, owner, date or comment.", cmds.Search)
	parser.AddCommand("compare", "Compare a search result", "Diff a search result with its previous version, the latest version, another result or the working copy.", cmds.Compare)
	parser.AddCommand("show", "Print a single revision", "Print the full record of one revision, optionally with its content.", cmds.Show)
	parser.AddCommand("import", "Import a history into the mirror", "Import an exported JSON history into the local mirror database.", cmds.Import)
	parser.AddCommand("status", "Show mirror statistics", "Show mirror database statistics and imported items.", cmds.Status)
	parser.AddCommand("prune", "Remove stale mirrored items", "Remove mirrored items imported before a cutoff.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL mirror data", "Delete ALL mirror data. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the revsearch CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("revsearch %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
