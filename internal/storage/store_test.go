package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/revsearch/internal/history"
	"github.com/runnerr0/revsearch/internal/search"
	"github.com/runnerr0/revsearch/internal/vcs"
)

// openTestStore creates a migrated in-memory Store for testing.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func rev(id int, owner, comment string, ts time.Time) ImportRevision {
	return ImportRevision{Revision: history.Revision{
		ID: id, Owner: owner, Comment: comment, Timestamp: ts, ServerPath: "$/proj/main.cs",
	}}
}

func withContent(r ImportRevision, body string) ImportRevision {
	r.Content = body
	r.HasContent = true
	return r
}

func sampleRequest() ImportRequest {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return ImportRequest{
		Location: "tfs-main",
		Path:     "$/proj/main.cs",
		Revisions: []ImportRevision{
			withContent(rev(3, "alice", "bugfix for parser", base), "v3"),
			withContent(rev(7, "bob", "refactor", base.Add(48*time.Hour)), "v7"),
			rev(9, "alice", "release", base.Add(96*time.Hour)),
		},
	}
}

// --- ImportHistory ---

func TestImportHistory_Roundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	res, err := store.ImportHistory(ctx, sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Revisions)
	assert.Equal(t, 2, res.Content)
	assert.Equal(t, int64(0), res.Replaced)
	assert.NotZero(t, res.ItemID)

	revs, err := store.FetchHistory(ctx, "tfs-main", "$/proj/main.cs")
	require.NoError(t, err)
	require.Len(t, revs, 3)

	// Newest first
	assert.Equal(t, 9, revs[0].ID)
	assert.Equal(t, 7, revs[1].ID)
	assert.Equal(t, 3, revs[2].ID)

	assert.Equal(t, "alice", revs[2].Owner)
	assert.Equal(t, "bugfix for parser", revs[2].Comment)
	assert.Equal(t, "$/proj/main.cs", revs[2].ServerPath)
	assert.True(t, revs[2].Timestamp.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestImportHistory_KeepsAuthorOffset(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := `{
		"location": "tfs-main",
		"path": "$/proj/main.cs",
		"revisions": [
			{"id": 1, "owner": "al", "timestamp": "2024-02-14T23:30:00-05:00", "comment": "valentine fix"},
			{"id": 2, "owner": "al", "timestamp": "2024-02-15T08:00:00Z", "comment": "morning fix"}
		]
	}`
	req, err := ParseImportFile(strings.NewReader(doc))
	require.NoError(t, err)
	before := search.ComparisonString(req.Revisions[0].Revision)

	_, err = store.ImportHistory(ctx, *req)
	require.NoError(t, err)

	revs, err := store.FetchHistory(ctx, "tfs-main", "$/proj/main.cs")
	require.NoError(t, err)
	require.Len(t, revs, 2)

	late := revs[1]
	assert.Equal(t, 1, late.ID)
	assert.Equal(t, before, search.ComparisonString(late))
	assert.True(t, late.Timestamp.Equal(req.Revisions[0].Timestamp))
	_, offset := late.Timestamp.Zone()
	assert.Equal(t, -5*60*60, offset)
	assert.Equal(t, time.UTC, revs[0].Timestamp.Location())

	matched := search.Filter(revs, search.Tokenize("February 14"))
	require.Len(t, matched, 1)
	assert.Equal(t, 1, matched[0].ID)
}

func TestImportHistory_ReplacesPreviousImport(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.ImportHistory(ctx, sampleRequest())
	require.NoError(t, err)

	req := sampleRequest()
	req.Revisions = req.Revisions[:1]
	res, err := store.ImportHistory(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Replaced)

	revs, err := store.FetchHistory(ctx, "tfs-main", "$/proj/main.cs")
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, 3, revs[0].ID)

	items, err := store.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestImportHistory_RejectsDuplicateIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	req := sampleRequest()
	req.Revisions = append(req.Revisions, rev(7, "carol", "dup", time.Now()))

	_, err := store.ImportHistory(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, history.ErrDuplicateID)

	items, err := store.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "nothing should be written")
}

func TestImportHistory_ValidatesArguments(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	req := sampleRequest()
	req.Location = "  "
	_, err := store.ImportHistory(ctx, req)
	assert.EqualError(t, err, "location is empty")

	req = sampleRequest()
	req.Path = ""
	_, err = store.ImportHistory(ctx, req)
	assert.EqualError(t, err, "item path is empty")
}

func TestImportHistory_EmptyHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	req := sampleRequest()
	req.Revisions = nil
	_, err := store.ImportHistory(ctx, req)
	require.NoError(t, err)

	revs, err := store.FetchHistory(ctx, req.Location, req.Path)
	require.NoError(t, err)
	assert.NotNil(t, revs)
	assert.Empty(t, revs)
}

func TestImportHistory_WritesAuditLog(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.ImportHistory(ctx, sampleRequest())
	require.NoError(t, err)

	var action, detail string
	err = store.db.QueryRow("SELECT action, detail FROM audit_log ORDER BY id DESC LIMIT 1").Scan(&action, &detail)
	require.NoError(t, err)
	assert.Equal(t, "import", action)
	assert.Contains(t, detail, "3 revisions")
}

// --- FetchHistory / GetItem ---

func TestFetchHistory_UnknownItem(t *testing.T) {
	store := openTestStore(t)

	_, err := store.FetchHistory(context.Background(), "tfs-main", "$/nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, vcs.ErrItemNotFound)
}

func TestGetItem(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	req := sampleRequest()
	req.IsContainer = true
	_, err := store.ImportHistory(ctx, req)
	require.NoError(t, err)

	it, err := store.GetItem(ctx, "tfs-main", "$/proj/main.cs")
	require.NoError(t, err)
	assert.True(t, it.IsContainer)
	assert.Equal(t, int64(3), it.Revisions)
	assert.False(t, it.ImportedAt.IsZero())
}

// --- Content / Materialize ---

func TestGetContent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.ImportHistory(ctx, sampleRequest())
	require.NoError(t, err)

	c, err := store.GetContent(ctx, "tfs-main", "$/proj/main.cs", 7)
	require.NoError(t, err)
	assert.Equal(t, "v7", c.Body)
	assert.Equal(t, 7, c.RevisionID)

	_, err = store.GetContent(ctx, "tfs-main", "$/proj/main.cs", 9)
	assert.ErrorIs(t, err, vcs.ErrNoContent)
}

func TestGetContent_ResolvesServerPathInsideFolder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := withContent(rev(5, "alice", "folder change", ts), "inner body")
	r.ServerPath = "$/proj/sub/inner.cs"
	_, err := store.ImportHistory(ctx, ImportRequest{
		Location: "tfs-main", Path: "$/proj", IsContainer: true,
		Revisions: []ImportRevision{r},
	})
	require.NoError(t, err)

	c, err := store.GetContent(ctx, "tfs-main", "$/proj/sub/inner.cs", 5)
	require.NoError(t, err)
	assert.Equal(t, "inner body", c.Body)
}

func TestMaterialize(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.ImportHistory(ctx, sampleRequest())
	require.NoError(t, err)

	r := history.Revision{ID: 3}
	path, cleanup, err := store.Materialize(ctx, "tfs-main", "$/proj/main.cs", r)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v3", string(data))
	assert.True(t, strings.HasSuffix(path, "main.cs"))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "revsearch-3-"))

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestMaterialize_NamesFileByRef(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.ImportHistory(ctx, sampleRequest())
	require.NoError(t, err)

	r := history.Revision{ID: 7, Ref: "release/cs7"}
	path, cleanup, err := store.Materialize(ctx, "tfs-main", "$/proj/main.cs", r)
	require.NoError(t, err)
	defer cleanup()

	assert.True(t, strings.HasPrefix(filepath.Base(path), "revsearch-release_cs7-"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v7", string(data))
}

func TestMaterialize_NoContent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.ImportHistory(ctx, sampleRequest())
	require.NoError(t, err)

	_, cleanup, err := store.Materialize(ctx, "tfs-main", "$/proj/main.cs", history.Revision{ID: 9})
	require.Error(t, err)
	assert.ErrorIs(t, err, vcs.ErrNoContent)
	require.NotNil(t, cleanup)
	cleanup()
}

// --- Prune / Purge ---

func TestPruneImportedBefore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.ImportHistory(ctx, sampleRequest())
	require.NoError(t, err)

	n, err := store.CountImportedBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	cutoff := time.Now().Add(time.Hour)
	n, err = store.CountImportedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.PruneImportedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalItems)
	assert.Equal(t, int64(0), stats.TotalRevisions, "revisions should cascade")
	assert.Equal(t, int64(0), stats.TotalContent, "content should cascade")
}

func TestPurgeAll(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.ImportHistory(ctx, sampleRequest())
	require.NoError(t, err)

	require.NoError(t, store.PurgeAll(ctx))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalItems)
	assert.Equal(t, int64(0), stats.TotalRevisions)

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE action = 'purge'").Scan(&count))
	assert.Equal(t, 1, count)
}

// --- Stats ---

func TestGetStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalRevisions)
	assert.True(t, stats.OldestRevision.IsZero())

	_, err = store.ImportHistory(ctx, sampleRequest())
	require.NoError(t, err)

	stats, err = store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalItems)
	assert.Equal(t, int64(3), stats.TotalRevisions)
	assert.Equal(t, int64(2), stats.TotalContent)
	assert.True(t, stats.OldestRevision.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, stats.NewestRevision.Equal(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)))
	require.NotEmpty(t, stats.TopOwners)
	assert.Equal(t, "alice", stats.TopOwners[0].Owner)
	assert.Equal(t, int64(2), stats.TopOwners[0].Count)
}

// --- ParseImportFile ---

func TestParseImportFile(t *testing.T) {
	doc := `{
		"location": "tfs-main",
		"path": "$/proj/main.cs",
		"revisions": [
			{"id": 3, "owner": "alice", "timestamp": "2024-03-01T10:00:00Z", "comment": "bugfix", "content": "v3"},
			{"id": 7, "owner": "bob", "timestamp": "2024-03-03T10:00:00Z", "comment": "refactor", "server_path": "$/proj/old.cs"}
		]
	}`

	req, err := ParseImportFile(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "tfs-main", req.Location)
	require.Len(t, req.Revisions, 2)

	assert.True(t, req.Revisions[0].HasContent)
	assert.Equal(t, "v3", req.Revisions[0].Content)
	assert.Equal(t, "$/proj/main.cs", req.Revisions[0].ServerPath)

	assert.False(t, req.Revisions[1].HasContent)
	assert.Equal(t, "$/proj/old.cs", req.Revisions[1].ServerPath)
}

func TestParseImportFile_Invalid(t *testing.T) {
	_, err := ParseImportFile(strings.NewReader(`{"location": "x"}`))
	assert.EqualError(t, err, "import file: item path is empty")

	_, err = ParseImportFile(strings.NewReader(`{"path": "p"}`))
	assert.EqualError(t, err, "import file: location is empty")

	_, err = ParseImportFile(strings.NewReader(`{"location": "x", "path": "p", "bogus": 1}`))
	assert.Error(t, err)

	_, err = ParseImportFile(strings.NewReader(`not json`))
	assert.Error(t, err)
}
