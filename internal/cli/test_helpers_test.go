package cli

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/revsearch/internal/config"
	"github.com/runnerr0/revsearch/internal/history"
	"github.com/runnerr0/revsearch/internal/logging"
	"github.com/runnerr0/revsearch/internal/storage"
	"github.com/runnerr0/revsearch/internal/vcs"
)

const (
	testLocation = "tfs-main"
	testPath     = "$/proj/main.cs"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// setupStore creates a migrated in-memory store.
func setupStore(t *testing.T) (*storage.SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	runner := storage.NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, db
}

func importRev(id int, owner, comment string, day int, body string) storage.ImportRevision {
	return storage.ImportRevision{
		Revision: history.Revision{
			ID:         id,
			Owner:      owner,
			Comment:    comment,
			Timestamp:  time.Date(2024, 3, day, 10, 0, 0, 0, time.UTC),
			ServerPath: testPath,
		},
		Content:    body,
		HasContent: body != "",
	}
}

// seedHistory imports a four-revision history for testPath.
// Newest first it reads 9, 7, 5, 3.
func seedHistory(t *testing.T, store *storage.SQLiteStore) {
	t.Helper()
	_, err := store.ImportHistory(context.Background(), storage.ImportRequest{
		Location: testLocation,
		Path:     testPath,
		Revisions: []storage.ImportRevision{
			importRev(3, "alice", "bugfix for parser", 1, "v3\n"),
			importRev(5, "carol", "bugfix\r\nlexer", 2, "v5\n"),
			importRev(7, "bob", "refactor", 3, "v7\n"),
			importRev(9, "alice", "release bugfix", 4, "v9\n"),
		},
	})
	require.NoError(t, err)
}

// storeRuntime builds a runtime serving histories from store.
func storeRuntime(store storage.Store) *runtime {
	cfg := config.DefaultConfig()
	cfg.Source.Default = config.SourceStore
	cfg.Source.Location = testLocation
	return &runtime{
		cfg:     cfg,
		logger:  logging.NewDiscardLogger(),
		backend: newStoreBackend(store, testLocation),
	}
}

// recordingInvoker captures the targets handed to the diff tool.
type recordingInvoker struct {
	calls    int
	location string
	a, b     vcs.Target
}

func (r *recordingInvoker) InvokeDiff(_ context.Context, location string, a, b vcs.Target) error {
	r.calls++
	r.location = location
	r.a, r.b = a, b
	return nil
}
