package storage

import (
	"time"

	"github.com/runnerr0/revsearch/internal/history"
)

// Item is an imported file or folder.
type Item struct {
	ID          int64
	Location    string
	Path        string
	IsContainer bool
	ImportedAt  time.Time
	Revisions   int64
}

// ImportRevision is a revision to import, with optional file content.
type ImportRevision struct {
	history.Revision
	Content    string
	HasContent bool
}

// ImportRequest replaces the stored history of one item.
type ImportRequest struct {
	Location    string
	Path        string
	IsContainer bool
	Revisions   []ImportRevision
}

// ImportResult reports what an import wrote.
type ImportResult struct {
	ItemID    int64
	Revisions int
	Content   int
	Replaced  int64
}

// Content holds the stored body of a file at one revision.
type Content struct {
	ItemID     int64
	RevisionID int
	Body       string
}

// Stats holds aggregate statistics about the mirror database.
type Stats struct {
	TotalItems     int64
	TotalRevisions int64
	TotalContent   int64
	OldestRevision time.Time
	NewestRevision time.Time
	TopOwners      []OwnerCount
}

// OwnerCount pairs a revision owner with their revision count.
type OwnerCount struct {
	Owner string
	Count int64
}
