// Package vcs defines the collaborators revsearch needs from a version
// control backend: fetching an item's history, resolving what the user has
// selected, and launching a visual diff.
package vcs

import (
	"context"
	"errors"

	"github.com/runnerr0/revsearch/internal/history"
)

var (
	ErrItemNotFound      = errors.New("specified item not found")
	ErrConnection        = errors.New("version control server unavailable")
	ErrNoSelection       = errors.New("you must select one item")
	ErrMultipleSelection = errors.New("multiple items selected")
	ErrUnsupported       = errors.New("operation is not supported for the selected item")
	ErrNoContent         = errors.New("revision content not available")
)

// Item is a file or folder under version control.
type Item struct {
	Location    string // repository root or server name
	Path        string // path inside the repository
	IsContainer bool
}

// HostContext describes the caller's environment when resolving a selection.
type HostContext struct {
	WorkDir  string
	Selected []string
}

// Target is one side of a diff. A nil Revision denotes the local working copy.
type Target struct {
	Path     string
	Revision *history.Revision
}

// Local reports whether t refers to the working copy.
func (t Target) Local() bool {
	return t.Revision == nil
}

// HistoryFetcher returns the full revision history of an item, newest first.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, location, itemPath string) ([]history.Revision, error)
}

// ItemResolver resolves the currently selected item.
type ItemResolver interface {
	ResolveSelectedItem(ctx context.Context, host HostContext) (Item, error)
}

// DiffInvoker launches an external visual diff of two targets.
type DiffInvoker interface {
	InvokeDiff(ctx context.Context, location string, a, b Target) error
}

// Materializer writes the content of a path at a revision to a local file.
// The returned cleanup func removes any temporary file and is never nil.
type Materializer interface {
	Materialize(ctx context.Context, location, path string, rev history.Revision) (string, func(), error)
}

// Source is a backend that can both fetch history and materialize content.
type Source interface {
	HistoryFetcher
	Materializer
}
