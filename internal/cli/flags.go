package cli

import "database/sql"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file (.yaml or .toml)" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
	DBPath  string `long:"db-path" description:"Override the mirror database path"`
}

// SourceFlags selects the item whose history is searched.
type SourceFlags struct {
	Path     string `long:"path" description:"File or folder to search (defaults to the current directory for git)"`
	Location string `long:"location" description:"Repository root or mirror location"`
	Source   string `long:"source" description:"History source" choice:"git" choice:"store"`
}

// SearchCommand filters an item's history by keywords.
type SearchCommand struct {
	SourceFlags

	globals *GlobalFlags
	version string
}

// CompareCommand diffs a search result against another revision.
type CompareCommand struct {
	SourceFlags

	Query     string `long:"query" description:"Keywords selecting the result set"`
	Previous  int    `long:"previous" description:"Compare result N with its previous version"`
	Latest    int    `long:"latest" description:"Compare result N with the latest version"`
	Pair      string `long:"pair" description:"Compare results A and B (e.g. 1,3)"`
	Local     int    `long:"local" description:"Compare result N with the working copy"`
	LocalFile string `long:"local-file" description:"Working copy file for --local"`
	Print     bool   `long:"print" description:"Print the selected pair instead of launching the diff tool"`

	globals *GlobalFlags
	version string
}

// ShowCommand prints a single revision record.
type ShowCommand struct {
	SourceFlags

	ID      int  `long:"id" description:"Revision ID (required)"`
	Content bool `long:"content" description:"Also print the file content at that revision"`

	globals *GlobalFlags
	version string
}

// ImportCommand loads an exported history into the mirror store.
type ImportCommand struct {
	File string `long:"file" description:"JSON history file, or - for stdin (required)"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows mirror database statistics.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// PruneCommand drops mirrored items imported before a cutoff.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Remove items imported longer ago than this (e.g., 30d)" default:"30d"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
}

// PurgeCommand deletes ALL mirror data after a safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	db      *sql.DB // injectable for testing; nil means open default DB
}
