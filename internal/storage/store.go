package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/runnerr0/revsearch/internal/history"
	"github.com/runnerr0/revsearch/internal/vcs"
)

// Store defines the mirror database operations.
type Store interface {
	vcs.Source
	ImportHistory(ctx context.Context, req ImportRequest) (*ImportResult, error)
	GetItem(ctx context.Context, location, path string) (*Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	GetContent(ctx context.Context, location, path string, id int) (*Content, error)
	CountImportedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PruneImportedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeAll(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	getItem        *sql.Stmt
	insertRevision *sql.Stmt
	insertContent  *sql.Stmt
	listRevisions  *sql.Stmt
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.getItem, err = s.db.Prepare(`
		SELECT i.id, i.location, i.path, i.is_container, i.imported_at,
		       (SELECT COUNT(*) FROM revisions r WHERE r.item_id = i.id)
		FROM items i WHERE i.location = ? AND i.path = ?
	`)
	if err != nil {
		return err
	}

	s.insertRevision, err = s.db.Prepare(`
		INSERT INTO revisions (item_id, rev_id, ref, owner, ts, ts_offset, comment, server_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.insertContent, err = s.db.Prepare(`
		INSERT INTO revision_content (item_id, rev_id, body, byte_size)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.listRevisions, err = s.db.Prepare(`
		SELECT rev_id, ref, owner, ts, ts_offset, comment, server_path
		FROM revisions WHERE item_id = ?
		ORDER BY rev_id DESC
	`)
	if err != nil {
		return err
	}

	return nil
}

// timestampLayout is fixed width so stored values sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func utcOffset(t time.Time) int {
	_, offset := t.Zone()
	return offset
}

// inOffset moves t into a fixed zone offset seconds east of UTC.
func inOffset(t time.Time, offset int) time.Time {
	if offset == 0 {
		return t.UTC()
	}
	return t.In(time.FixedZone("", offset))
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05.999999999-07:00",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// audit records an action in the audit log.
func audit(ctx context.Context, e execer, action, detail string) error {
	_, err := e.ExecContext(ctx,
		"INSERT INTO audit_log (action, detail, ts) VALUES (?, ?, ?)",
		action, detail, formatTimestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

// ImportHistory replaces the stored revisions of an item in one transaction.
func (s *SQLiteStore) ImportHistory(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if strings.TrimSpace(req.Location) == "" {
		return nil, fmt.Errorf("location is empty")
	}
	if strings.TrimSpace(req.Path) == "" {
		return nil, fmt.Errorf("item path is empty")
	}

	seen := make(map[int]bool, len(req.Revisions))
	for _, r := range req.Revisions {
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: %d", history.ErrDuplicateID, r.ID)
		}
		seen[r.ID] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := formatTimestamp(time.Now())
	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (location, path, is_container, imported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(location, path) DO UPDATE SET
			is_container = excluded.is_container,
			imported_at  = excluded.imported_at
	`, req.Location, req.Path, req.IsContainer, now)
	if err != nil {
		return nil, fmt.Errorf("upsert item: %w", err)
	}

	result := &ImportResult{}
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM items WHERE location = ? AND path = ?",
		req.Location, req.Path,
	).Scan(&result.ItemID)
	if err != nil {
		return nil, fmt.Errorf("lookup item: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM revision_content WHERE item_id = ?", result.ItemID); err != nil {
		return nil, fmt.Errorf("clear content: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM revisions WHERE item_id = ?", result.ItemID)
	if err != nil {
		return nil, fmt.Errorf("clear revisions: %w", err)
	}
	result.Replaced, _ = res.RowsAffected()

	insertRevision := tx.StmtContext(ctx, s.insertRevision)
	insertContent := tx.StmtContext(ctx, s.insertContent)
	for _, r := range req.Revisions {
		_, err := insertRevision.ExecContext(ctx,
			result.ItemID, r.ID, r.Ref, r.Owner, formatTimestamp(r.Timestamp), utcOffset(r.Timestamp), r.Comment, r.ServerPath,
		)
		if err != nil {
			return nil, fmt.Errorf("insert revision %d: %w", r.ID, err)
		}
		result.Revisions++

		if !r.HasContent {
			continue
		}
		if _, err := insertContent.ExecContext(ctx, result.ItemID, r.ID, r.Content, len(r.Content)); err != nil {
			return nil, fmt.Errorf("insert content %d: %w", r.ID, err)
		}
		result.Content++
	}

	detail := fmt.Sprintf("%s %s: %d revisions", req.Location, req.Path, result.Revisions)
	if err := audit(ctx, tx, "import", detail); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	return result, nil
}

// GetItem returns an imported item.
func (s *SQLiteStore) GetItem(ctx context.Context, location, path string) (*Item, error) {
	var it Item
	var importedAt string
	err := s.getItem.QueryRowContext(ctx, location, path).Scan(
		&it.ID, &it.Location, &it.Path, &it.IsContainer, &importedAt, &it.Revisions,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s in %s", vcs.ErrItemNotFound, path, location)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	it.ImportedAt, _ = parseTimestamp(importedAt)
	return &it, nil
}

// ListItems returns every imported item, most recently imported first.
func (s *SQLiteStore) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.location, i.path, i.is_container, i.imported_at, COUNT(r.rev_id)
		FROM items i LEFT JOIN revisions r ON r.item_id = i.id
		GROUP BY i.id
		ORDER BY i.imported_at DESC, i.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		var importedAt string
		if err := rows.Scan(&it.ID, &it.Location, &it.Path, &it.IsContainer, &importedAt, &it.Revisions); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.ImportedAt, _ = parseTimestamp(importedAt)
		items = append(items, it)
	}
	return items, rows.Err()
}

// FetchHistory returns the stored history of an item, newest first.
func (s *SQLiteStore) FetchHistory(ctx context.Context, location, itemPath string) ([]history.Revision, error) {
	it, err := s.GetItem(ctx, location, itemPath)
	if err != nil {
		return nil, err
	}

	rows, err := s.listRevisions.QueryContext(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	revs := make([]history.Revision, 0, it.Revisions)
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return revs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRevision(row scanner) (history.Revision, error) {
	var r history.Revision
	var ts string
	var offset int
	if err := row.Scan(&r.ID, &r.Ref, &r.Owner, &ts, &offset, &r.Comment, &r.ServerPath); err != nil {
		return history.Revision{}, fmt.Errorf("scan revision: %w", err)
	}
	t, _ := parseTimestamp(ts)
	r.Timestamp = inOffset(t, offset)
	return r, nil
}

// GetContent returns the stored body of path at revision id. path may be
// either the imported item path or the revision's server path, so renamed
// files resolve to the name they had at that revision.
func (s *SQLiteStore) GetContent(ctx context.Context, location, path string, id int) (*Content, error) {
	var c Content
	err := s.db.QueryRowContext(ctx, `
		SELECT c.item_id, c.rev_id, c.body
		FROM revision_content c
		JOIN revisions r ON r.item_id = c.item_id AND r.rev_id = c.rev_id
		JOIN items i ON i.id = r.item_id
		WHERE i.location = ? AND c.rev_id = ? AND (r.server_path = ? OR i.path = ?)
		ORDER BY i.is_container ASC, i.id ASC
		LIMIT 1
	`, location, id, path, path).Scan(&c.ItemID, &c.RevisionID, &c.Body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s at revision %d", vcs.ErrNoContent, path, id)
		}
		return nil, fmt.Errorf("get content: %w", err)
	}
	return &c, nil
}

// Materialize writes the stored content of path at rev to a temporary file.
func (s *SQLiteStore) Materialize(ctx context.Context, location, path string, rev history.Revision) (string, func(), error) {
	noop := func() {}

	c, err := s.GetContent(ctx, location, path, rev.ID)
	if err != nil {
		return "", noop, err
	}

	f, err := os.CreateTemp("", fmt.Sprintf("revsearch-%s-*-%s", strings.ReplaceAll(rev.Spec(), "/", "_"), filepath.Base(path)))
	if err != nil {
		return "", noop, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }

	if _, err := f.WriteString(c.Body); err != nil {
		f.Close()
		cleanup()
		return "", noop, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

// CountImportedBefore counts items last imported before cutoff.
func (s *SQLiteStore) CountImportedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM items WHERE imported_at < ?", formatTimestamp(cutoff),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// PruneImportedBefore deletes items last imported before cutoff, together
// with their revisions and content.
func (s *SQLiteStore) PruneImportedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM items WHERE imported_at < ?", formatTimestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := audit(ctx, tx, "prune", fmt.Sprintf("%d items imported before %s", n, formatTimestamp(cutoff))); err != nil {
		return 0, err
	}

	return n, tx.Commit()
}

// PurgeAll deletes all items, revisions and content.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM revision_content",
		"DELETE FROM revisions",
		"DELETE FROM items",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge (%s): %w", stmt, err)
		}
	}
	return audit(ctx, s.db, "purge", "all data deleted")
}

// GetStats returns aggregate statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&stats.TotalItems)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM revisions").Scan(&stats.TotalRevisions)
	if err != nil {
		return nil, fmt.Errorf("count revisions: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM revision_content").Scan(&stats.TotalContent)
	if err != nil {
		return nil, fmt.Errorf("count content: %w", err)
	}

	// Oldest and newest (handle empty DB)
	if stats.TotalRevisions > 0 {
		var oldestStr, newestStr string
		err = s.db.QueryRowContext(ctx, "SELECT MIN(ts), MAX(ts) FROM revisions").Scan(&oldestStr, &newestStr)
		if err != nil {
			return nil, fmt.Errorf("revision time range: %w", err)
		}
		stats.OldestRevision, _ = parseTimestamp(oldestStr)
		stats.NewestRevision, _ = parseTimestamp(newestStr)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT owner, COUNT(*) as cnt FROM revisions GROUP BY owner ORDER BY cnt DESC, owner ASC LIMIT 10",
	)
	if err != nil {
		return nil, fmt.Errorf("top owners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var oc OwnerCount
		if err := rows.Scan(&oc.Owner, &oc.Count); err != nil {
			return nil, err
		}
		stats.TopOwners = append(stats.TopOwners, oc)
	}

	return stats, rows.Err()
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.getItem, s.insertRevision, s.insertContent,
		s.listRevisions,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
