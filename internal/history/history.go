package history

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// ErrDuplicateID is returned when two revisions in one history share an ID.
var ErrDuplicateID = errors.New("duplicate revision id")

// Revision is a single immutable revision record of a file or folder.
type Revision struct {
	ID         int
	Owner      string
	Timestamp  time.Time
	Comment    string
	ServerPath string
	Ref        string // backend revision specifier; empty means the decimal ID
}

// Spec returns the backend revision specifier for r.
func (r Revision) Spec() string {
	if r.Ref != "" {
		return r.Ref
	}
	return strconv.Itoa(r.ID)
}

// History is the canonical, newest-first revision list for one item.
// The element at index i+1 is always the immediate predecessor of the
// element at index i.
type History struct {
	revisions []Revision
	index     map[int]int
}

// New builds a History from revs. The input is copied and sorted
// descending by ID, so callers may pass revisions in any order.
func New(revs []Revision) (*History, error) {
	sorted := make([]Revision, len(revs))
	copy(sorted, revs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID > sorted[j].ID
	})

	index := make(map[int]int, len(sorted))
	for i, r := range sorted {
		if _, dup := index[r.ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, r.ID)
		}
		index[r.ID] = i
	}

	return &History{revisions: sorted, index: index}, nil
}

// Len returns the number of revisions.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.revisions)
}

// At returns the revision at canonical index i. It panics if i is out of range.
func (h *History) At(i int) Revision {
	return h.revisions[i]
}

// Revisions returns a copy of the ordered revision list.
func (h *History) Revisions() []Revision {
	if h == nil {
		return []Revision{}
	}
	out := make([]Revision, len(h.revisions))
	copy(out, h.revisions)
	return out
}

// IndexOf returns the canonical index of the revision with the given ID.
func (h *History) IndexOf(id int) (int, bool) {
	if h == nil {
		return 0, false
	}
	i, ok := h.index[id]
	return i, ok
}

// Latest returns the newest revision, or false for an empty history.
func (h *History) Latest() (Revision, bool) {
	if h.Len() == 0 {
		return Revision{}, false
	}
	return h.revisions[0], true
}
