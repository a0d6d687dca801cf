package cli

import (
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/revsearch/internal/navigate"
	"github.com/runnerr0/revsearch/internal/session"
	"github.com/runnerr0/revsearch/internal/storage"
)

func newCompare(query string) *CompareCommand {
	cmd := &CompareCommand{globals: &GlobalFlags{}, Query: query}
	cmd.Path = testPath
	return cmd
}

func TestCompare_PreviousUsesCanonicalHistory(t *testing.T) {
	store, _ := setupStore(t)
	seedHistory(t, store)
	inv := &recordingInvoker{}

	// Results are 9, 5, 3; the predecessor of 9 is 7 even though 7 was
	// filtered out.
	cmd := newCompare("bugfix")
	cmd.Previous = 1
	require.NoError(t, cmd.executeWith(context.Background(), storeRuntime(store), inv))

	require.Equal(t, 1, inv.calls)
	assert.Equal(t, testLocation, inv.location)
	assert.Equal(t, 9, inv.a.Revision.ID)
	assert.Equal(t, 7, inv.b.Revision.ID)
	assert.Equal(t, testPath, inv.a.Path)
}

func TestCompare_PreviousOfOldestIsInformational(t *testing.T) {
	store, _ := setupStore(t)
	seedHistory(t, store)
	inv := &recordingInvoker{}

	cmd := newCompare("bugfix")
	cmd.Previous = 3

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWith(context.Background(), storeRuntime(store), inv))
	})
	assert.Contains(t, output, "No previous version available.")
	assert.Equal(t, 0, inv.calls)
}

func TestCompare_Latest(t *testing.T) {
	store, _ := setupStore(t)
	seedHistory(t, store)
	inv := &recordingInvoker{}

	cmd := newCompare("bugfix")
	cmd.Latest = 3
	require.NoError(t, cmd.executeWith(context.Background(), storeRuntime(store), inv))

	assert.Equal(t, 3, inv.a.Revision.ID)
	assert.Equal(t, 9, inv.b.Revision.ID)
}

func TestCompare_Pair(t *testing.T) {
	store, _ := setupStore(t)
	seedHistory(t, store)
	inv := &recordingInvoker{}

	cmd := newCompare("bugfix")
	cmd.Pair = "1, 3"
	require.NoError(t, cmd.executeWith(context.Background(), storeRuntime(store), inv))

	assert.Equal(t, 9, inv.a.Revision.ID)
	assert.Equal(t, 3, inv.b.Revision.ID)
}

func TestCompare_PairErrors(t *testing.T) {
	store, _ := setupStore(t)
	seedHistory(t, store)
	inv := &recordingInvoker{}

	cmd := newCompare("bugfix")
	cmd.Pair = "2,2"
	err := cmd.executeWith(context.Background(), storeRuntime(store), inv)
	assert.ErrorIs(t, err, navigate.ErrInvalidSelection)

	cmd.Pair = "1,9"
	err = cmd.executeWith(context.Background(), storeRuntime(store), inv)
	assert.ErrorIs(t, err, navigate.ErrInvalidSelection)

	cmd.Pair = "1"
	err = cmd.executeWith(context.Background(), storeRuntime(store), inv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected A,B")

	assert.Equal(t, 0, inv.calls)
}

func TestCompare_Local(t *testing.T) {
	store, _ := setupStore(t)
	seedHistory(t, store)
	inv := &recordingInvoker{}

	local := filepath.Join(t.TempDir(), "main.cs")
	cmd := newCompare("")
	cmd.Local = 2
	cmd.LocalFile = local
	require.NoError(t, cmd.executeWith(context.Background(), storeRuntime(store), inv))

	assert.Equal(t, 7, inv.a.Revision.ID)
	assert.True(t, inv.b.Local())
	assert.Equal(t, local, inv.b.Path)
}

func TestCompare_RequiresExactlyOneMode(t *testing.T) {
	store, _ := setupStore(t)
	seedHistory(t, store)

	cmd := newCompare("")
	err := cmd.executeWith(context.Background(), storeRuntime(store), &recordingInvoker{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")

	cmd.Previous = 1
	cmd.Latest = 1
	err = cmd.executeWith(context.Background(), storeRuntime(store), &recordingInvoker{})
	require.Error(t, err)
}

func TestCompare_OutOfRangeResult(t *testing.T) {
	store, _ := setupStore(t)
	seedHistory(t, store)

	cmd := newCompare("bugfix")
	cmd.Latest = 4
	err := cmd.executeWith(context.Background(), storeRuntime(store), &recordingInvoker{})
	assert.ErrorIs(t, err, navigate.ErrInvalidSelection)
}

func TestCompare_FolderIsRejected(t *testing.T) {
	store, _ := setupStore(t)
	_, err := store.ImportHistory(context.Background(), storage.ImportRequest{
		Location:    testLocation,
		Path:        "$/proj",
		IsContainer: true,
		Revisions:   []storage.ImportRevision{importRev(1, "alice", "add", 1, ""), importRev(2, "bob", "edit", 2, "")},
	})
	require.NoError(t, err)

	cmd := &CompareCommand{globals: &GlobalFlags{}, Previous: 1}
	cmd.Path = "$/proj"
	err = cmd.executeWith(context.Background(), storeRuntime(store), &recordingInvoker{})
	assert.ErrorIs(t, err, session.ErrContainerCompare)
}

func TestCompare_Print(t *testing.T) {
	store, _ := setupStore(t)
	seedHistory(t, store)
	inv := &recordingInvoker{}

	cmd := newCompare("bugfix")
	cmd.Previous = 2
	cmd.Print = true

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWith(context.Background(), storeRuntime(store), inv))
	})
	assert.Contains(t, output, "Source: 5 ")
	assert.Contains(t, output, "Target: 3 ")
	assert.Equal(t, 0, inv.calls)
}

func TestCompare_PrintSelfComparison(t *testing.T) {
	store, _ := setupStore(t)
	seedHistory(t, store)

	cmd := newCompare("")
	cmd.Latest = 1
	cmd.Print = true

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWith(context.Background(), storeRuntime(store), &recordingInvoker{}))
	})
	assert.Contains(t, output, "Both sides are the same revision.")
}

func TestCompare_JSONOutput(t *testing.T) {
	store, _ := setupStore(t)
	seedHistory(t, store)

	cmd := newCompare("bugfix")
	cmd.globals.JSON = true
	cmd.Latest = 2

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWith(context.Background(), storeRuntime(store), &recordingInvoker{}))
	})

	var out struct {
		Session      string     `json:"session"`
		Source       jsonTarget `json:"source"`
		Target       jsonTarget `json:"target"`
		SameRevision bool       `json:"same_revision"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	require.NotNil(t, out.Source.Revision)
	assert.Equal(t, 5, out.Source.Revision.ID)
	assert.Equal(t, 9, out.Target.Revision.ID)
	assert.False(t, out.Source.Local)
	assert.False(t, out.SameRevision)
}

func TestCompare_JSONSelfComparison(t *testing.T) {
	store, _ := setupStore(t)
	seedHistory(t, store)

	cmd := newCompare("")
	cmd.globals.JSON = true
	cmd.Latest = 1

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWith(context.Background(), storeRuntime(store), &recordingInvoker{}))
	})

	var out struct {
		SameRevision bool `json:"same_revision"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	assert.True(t, out.SameRevision)
}

func TestCompare_PrintDistinctRevisions(t *testing.T) {
	store, _ := setupStore(t)
	seedHistory(t, store)

	cmd := newCompare("")
	cmd.Latest = 2
	cmd.Print = true

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWith(context.Background(), storeRuntime(store), &recordingInvoker{}))
	})
	assert.Contains(t, output, "Source:")
	assert.NotContains(t, output, "Both sides are the same revision.")
}

func TestCompare_LaunchesConfiguredTool(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	store, _ := setupStore(t)
	seedHistory(t, store)

	rt := storeRuntime(store)
	rt.cfg.Diff.Command = []string{"cat", "{left}", "{right}"}
	rt.cfg.Diff.Wait = true

	cmd := newCompare("")
	cmd.Previous = 1

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWith(context.Background(), rt, nil))
	})
	assert.Equal(t, "v9\nv7\n", output)
}
