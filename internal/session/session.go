// Package session ties one history fetch to one query and the comparisons
// made from its results. A Session is immutable: a new search, or a refined
// query, yields a new Session, so result indices can never be applied to a
// history they were not derived from.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/revsearch/internal/history"
	"github.com/runnerr0/revsearch/internal/logging"
	"github.com/runnerr0/revsearch/internal/navigate"
	"github.com/runnerr0/revsearch/internal/search"
	"github.com/runnerr0/revsearch/internal/vcs"
)

// ErrContainerCompare is returned when a comparison is requested for a folder.
var ErrContainerCompare = errors.New("compare is not available for folders")

// Session holds the history and result set of a single search.
type Session struct {
	ID        string
	Item      vcs.Item
	History   *history.History
	Query     string
	Tokens    []string
	Results   []history.Revision
	CreatedAt time.Time

	logger *slog.Logger
}

// New fetches the history of item and filters it by query.
func New(ctx context.Context, fetcher vcs.HistoryFetcher, item vcs.Item, query string, logger *slog.Logger) (*Session, error) {
	if strings.TrimSpace(item.Location) == "" {
		return nil, fmt.Errorf("location is empty")
	}
	if strings.TrimSpace(item.Path) == "" {
		return nil, fmt.Errorf("item path is empty")
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	id := uuid.NewString()
	logger = logger.With("session", id)

	start := time.Now()
	revs, err := fetcher.FetchHistory(ctx, item.Location, item.Path)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	h, err := history.New(revs)
	if err != nil {
		return nil, fmt.Errorf("build history: %w", err)
	}
	logger.Debug("fetched history",
		"location", item.Location,
		"path", item.Path,
		"revisions", h.Len(),
		"elapsed", time.Since(start).String(),
	)

	s := &Session{
		ID:        id,
		Item:      item,
		History:   h,
		CreatedAt: time.Now(),
		logger:    logger,
	}
	s.apply(query)
	return s, nil
}

func (s *Session) apply(query string) {
	s.Query = query
	s.Tokens = search.Tokenize(query)
	s.Results = search.Filter(s.History.Revisions(), s.Tokens)
	s.logger.Debug("filtered history",
		"tokens", len(s.Tokens),
		"results", len(s.Results),
	)
}

// Refine runs a different query over the same history without re-fetching.
func (s *Session) Refine(query string) *Session {
	id := uuid.NewString()
	next := &Session{
		ID:        id,
		Item:      s.Item,
		History:   s.History,
		CreatedAt: time.Now(),
		logger:    s.logger.With("session", id, "refines", s.ID),
	}
	next.apply(query)
	return next
}

// Len returns the number of results.
func (s *Session) Len() int {
	return len(s.Results)
}

// Result returns the result at index i.
func (s *Session) Result(i int) (history.Revision, error) {
	if i < 0 || i >= len(s.Results) {
		return history.Revision{}, fmt.Errorf("%w: result index %d out of range [0,%d)", navigate.ErrInvalidSelection, i, len(s.Results))
	}
	return s.Results[i], nil
}

func (s *Session) checkFile() error {
	if s.Item.IsContainer {
		return fmt.Errorf("%w: %s", ErrContainerCompare, s.Item.Path)
	}
	return nil
}

// Previous compares result i with its chronological predecessor.
func (s *Session) Previous(i int) (navigate.Pair, error) {
	if err := s.checkFile(); err != nil {
		return navigate.Pair{}, err
	}
	return navigate.PreviousOf(s.History, s.Results, i)
}

// Latest compares result i with the newest revision.
func (s *Session) Latest(i int) (navigate.Pair, error) {
	if err := s.checkFile(); err != nil {
		return navigate.Pair{}, err
	}
	return navigate.LatestOf(s.History, s.Results, i)
}

// Pair compares two results directly.
func (s *Session) Pair(i, j int) (navigate.Pair, error) {
	if err := s.checkFile(); err != nil {
		return navigate.Pair{}, err
	}
	return navigate.ComparePair(s.Results, i, j)
}

// Targets converts a pair into diff targets.
func Targets(p navigate.Pair) (vcs.Target, vcs.Target) {
	src, dst := p.Source.Revision, p.Target.Revision
	return vcs.Target{Path: p.Source.Path, Revision: &src},
		vcs.Target{Path: p.Target.Path, Revision: &dst}
}

// Local pairs result i with the working copy at localPath.
func (s *Session) Local(i int, localPath string) (vcs.Target, vcs.Target, error) {
	if err := s.checkFile(); err != nil {
		return vcs.Target{}, vcs.Target{}, err
	}
	rev, err := s.Result(i)
	if err != nil {
		return vcs.Target{}, vcs.Target{}, err
	}
	if strings.TrimSpace(localPath) == "" {
		return vcs.Target{}, vcs.Target{}, fmt.Errorf("local path is empty")
	}
	path := rev.ServerPath
	if path == "" {
		path = s.Item.Path
	}
	return vcs.Target{Path: path, Revision: &rev}, vcs.Target{Path: localPath}, nil
}

// Diff hands the pair to the diff invoker.
func (s *Session) Diff(ctx context.Context, invoker vcs.DiffInvoker, p navigate.Pair) error {
	a, b := Targets(p)
	return s.DiffTargets(ctx, invoker, a, b)
}

// DiffTargets hands two targets to the diff invoker.
func (s *Session) DiffTargets(ctx context.Context, invoker vcs.DiffInvoker, a, b vcs.Target) error {
	if a.Path == "" {
		a.Path = s.Item.Path
	}
	if b.Path == "" {
		b.Path = s.Item.Path
	}
	s.logger.Info("invoking diff",
		"source", describe(a),
		"target", describe(b),
	)
	if err := invoker.InvokeDiff(ctx, s.Item.Location, a, b); err != nil {
		return fmt.Errorf("invoke diff: %w", err)
	}
	return nil
}

func describe(t vcs.Target) string {
	if t.Local() {
		return t.Path + " (local)"
	}
	return fmt.Sprintf("%s@%d", t.Path, t.Revision.ID)
}
