// Package navigate resolves selections in a filtered result set back to the
// canonical history and builds the revision pairs handed to a diff tool.
//
// Neighbours in a result set are not chronological neighbours, because
// filtering skips revisions. Previous and latest comparisons therefore always
// go through ResolveCanonicalIndex, which looks the selected revision up by ID
// in the unfiltered history.
package navigate

import (
	"errors"
	"fmt"

	"github.com/runnerr0/revsearch/internal/history"
)

var (
	// ErrInvalidSelection is returned for out-of-range or degenerate indices.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrNotFound means a result entry is absent from the history it was
	// supposedly derived from.
	ErrNotFound = errors.New("revision not found in history")

	// ErrNoPredecessor is an informational outcome of ComparePrevious: the
	// selected revision is the oldest one known.
	ErrNoPredecessor = errors.New("no previous version available")
)

// IsInformational reports whether err describes a normal outcome that should
// be shown to the user as a notice rather than an error.
func IsInformational(err error) bool {
	return errors.Is(err, ErrNoPredecessor)
}

// Side is one end of a comparison. Path is the revision's server path, which
// can differ between the two sides when the item was renamed.
type Side struct {
	Revision history.Revision
	Path     string
}

func sideOf(rev history.Revision) Side {
	return Side{Revision: rev, Path: rev.ServerPath}
}

// Pair is an ordered pair of revisions to diff.
type Pair struct {
	Source Side
	Target Side
}

// SelfComparison reports whether both sides are the same revision.
func (p Pair) SelfComparison() bool {
	return p.Source.Revision.ID == p.Target.Revision.ID
}

// ResolveCanonicalIndex returns the index in h of the revision at
// results[resultIndex], matching by ID.
func ResolveCanonicalIndex(h *history.History, results []history.Revision, resultIndex int) (int, error) {
	if resultIndex < 0 || resultIndex >= len(results) {
		return 0, fmt.Errorf("%w: result index %d out of range [0,%d)", ErrInvalidSelection, resultIndex, len(results))
	}
	id := results[resultIndex].ID
	i, ok := h.IndexOf(id)
	if !ok {
		return 0, fmt.Errorf("%w: revision %d", ErrNotFound, id)
	}
	return i, nil
}

func checkCanonical(h *history.History, canonicalIndex int) error {
	if canonicalIndex < 0 || canonicalIndex >= h.Len() {
		return fmt.Errorf("%w: canonical index %d out of range [0,%d)", ErrInvalidSelection, canonicalIndex, h.Len())
	}
	return nil
}

// ComparePrevious pairs the revision at canonicalIndex with its chronological
// predecessor. The oldest revision yields ErrNoPredecessor.
func ComparePrevious(h *history.History, canonicalIndex int) (Pair, error) {
	if err := checkCanonical(h, canonicalIndex); err != nil {
		return Pair{}, err
	}
	older := canonicalIndex + 1
	if older >= h.Len() {
		return Pair{}, fmt.Errorf("%w: revision %d is the oldest", ErrNoPredecessor, h.At(canonicalIndex).ID)
	}
	return Pair{Source: sideOf(h.At(canonicalIndex)), Target: sideOf(h.At(older))}, nil
}

// CompareLatest pairs the revision at canonicalIndex with the newest revision.
// Selecting the newest revision itself gives a self-comparison, which is
// returned as is.
func CompareLatest(h *history.History, canonicalIndex int) (Pair, error) {
	if err := checkCanonical(h, canonicalIndex); err != nil {
		return Pair{}, err
	}
	latest, _ := h.Latest()
	return Pair{Source: sideOf(h.At(canonicalIndex)), Target: sideOf(latest)}, nil
}

// ComparePair pairs two explicitly selected result entries.
func ComparePair(results []history.Revision, first, second int) (Pair, error) {
	n := len(results)
	if first < 0 || first >= n || second < 0 || second >= n {
		return Pair{}, fmt.Errorf("%w: indices %d,%d out of range [0,%d)", ErrInvalidSelection, first, second, n)
	}
	if first == second {
		return Pair{}, fmt.Errorf("%w: both indices are %d", ErrInvalidSelection, first)
	}
	return Pair{Source: sideOf(results[first]), Target: sideOf(results[second])}, nil
}

// PreviousOf resolves resultIndex and compares it with its predecessor.
func PreviousOf(h *history.History, results []history.Revision, resultIndex int) (Pair, error) {
	i, err := ResolveCanonicalIndex(h, results, resultIndex)
	if err != nil {
		return Pair{}, err
	}
	return ComparePrevious(h, i)
}

// LatestOf resolves resultIndex and compares it with the newest revision.
func LatestOf(h *history.History, results []history.Revision, resultIndex int) (Pair, error) {
	i, err := ResolveCanonicalIndex(h, results, resultIndex)
	if err != nil {
		return Pair{}, err
	}
	return CompareLatest(h, i)
}
