package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/revsearch/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string           `json:"version"`
	DatabasePath      string           `json:"database_path"`
	DatabaseSizeBytes int64            `json:"database_size_bytes"`
	TotalItems        int64            `json:"total_items"`
	TotalRevisions    int64            `json:"total_revisions"`
	TotalContent      int64            `json:"total_content"`
	OldestRevision    string           `json:"oldest_revision,omitempty"`
	NewestRevision    string           `json:"newest_revision,omitempty"`
	TopOwners         []ownerCountJSON `json:"top_owners"`
	Items             []itemJSON       `json:"items"`
}

type ownerCountJSON struct {
	Owner string `json:"owner"`
	Count int64  `json:"count"`
}

type itemJSON struct {
	Location    string `json:"location"`
	Path        string `json:"path"`
	IsContainer bool   `json:"is_container"`
	Revisions   int64  `json:"revisions"`
	ImportedAt  string `json:"imported_at"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	store, db, dbPath, err := openConfiguredStore(c.globals)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(store, db, dbPath)
}

// executeWithStore runs status against a provided store and db (for testing).
func (c *StatusCommand) executeWithStore(store storage.Store, db *sql.DB, dbPath string) error {
	ctx := context.Background()

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	items, err := store.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	dbSize := getDatabaseSize(db, dbPath)

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(stats, items, dbPath, dbSize)
	}
	return c.printStatusHuman(stats, items, dbPath, dbSize)
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, items []storage.Item, dbPath string, dbSize int64) error {
	fmt.Println("revsearch Status")
	fmt.Println("================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", dbPath, formatBytes(dbSize))
	fmt.Printf("Items:         %s\n", formatNumber(stats.TotalItems))
	fmt.Printf("Revisions:     %s\n", formatNumber(stats.TotalRevisions))

	// Content with percentage
	if stats.TotalRevisions > 0 {
		pct := float64(stats.TotalContent) / float64(stats.TotalRevisions) * 100
		fmt.Printf("Content:       %s (%.1f%%)\n", formatNumber(stats.TotalContent), pct)
	} else {
		fmt.Printf("Content:       %s\n", formatNumber(stats.TotalContent))
	}

	// Time range
	if stats.TotalRevisions > 0 {
		fmt.Printf("Oldest:        %s\n", stats.OldestRevision.Local().Format("2006-01-02"))
		fmt.Printf("Newest:        %s\n", stats.NewestRevision.Local().Format("2006-01-02"))
	}

	if len(stats.TopOwners) > 0 {
		fmt.Println()
		fmt.Println("Top Owners:")
		for _, o := range stats.TopOwners {
			fmt.Printf("  %-20s %s\n", o.Owner, formatNumber(o.Count))
		}
	}

	if len(items) > 0 {
		fmt.Println()
		fmt.Println("Imported Items:")
		for _, it := range items {
			path := it.Path
			if it.IsContainer {
				path += "/"
			}
			fmt.Printf("  %-30s %-16s %6s revs  %s\n",
				path, it.Location, formatNumber(it.Revisions), it.ImportedAt.Local().Format("2006-01-02 15:04"))
		}
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, items []storage.Item, dbPath string, dbSize int64) error {
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      dbPath,
		DatabaseSizeBytes: dbSize,
		TotalItems:        stats.TotalItems,
		TotalRevisions:    stats.TotalRevisions,
		TotalContent:      stats.TotalContent,
		TopOwners:         make([]ownerCountJSON, len(stats.TopOwners)),
		Items:             make([]itemJSON, len(items)),
	}

	if stats.TotalRevisions > 0 {
		out.OldestRevision = stats.OldestRevision.UTC().Format(time.RFC3339)
		out.NewestRevision = stats.NewestRevision.UTC().Format(time.RFC3339)
	}

	for i, o := range stats.TopOwners {
		out.TopOwners[i] = ownerCountJSON{Owner: o.Owner, Count: o.Count}
	}
	for i, it := range items {
		out.Items[i] = itemJSON{
			Location:    it.Location,
			Path:        it.Path,
			IsContainer: it.IsContainer,
			Revisions:   it.Revisions,
			ImportedAt:  it.ImportedAt.UTC().Format(time.RFC3339),
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it queries page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}

	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}
