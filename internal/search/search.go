// Package search filters a revision history by a free-text keyword query.
//
// A query is split into tokens by Tokenize and applied by Filter. Every token
// must occur, case-insensitively, in a revision's comparison string for the
// revision to be kept. Filtering never reorders.
package search

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/runnerr0/revsearch/internal/history"
)

// LongDateLayout renders a timestamp as a long-form calendar date.
const LongDateLayout = "Monday, January 2, 2006"

// Tokenize splits raw on runs of whitespace and commas. Empty tokens are
// dropped; order, duplicates and case are preserved.
func Tokenize(raw string) []string {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if tokens == nil {
		return []string{}
	}
	return tokens
}

// ComparisonString builds the text a revision is matched against: id, owner,
// long date and comment joined by single spaces. Line breaks in the comment
// are kept as is.
func ComparisonString(rev history.Revision) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(rev.ID))
	b.WriteByte(' ')
	b.WriteString(rev.Owner)
	b.WriteByte(' ')
	b.WriteString(rev.Timestamp.Format(LongDateLayout))
	b.WriteByte(' ')
	b.WriteString(rev.Comment)
	return b.String()
}

// matcher holds case-folded tokens. A cases.Caser is stateful, so each
// matcher owns its own.
type matcher struct {
	fold   cases.Caser
	tokens []string
}

func newMatcher(tokens []string) *matcher {
	m := &matcher{fold: cases.Fold()}
	m.tokens = make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		m.tokens = append(m.tokens, m.fold.String(t))
	}
	return m
}

func (m *matcher) match(rev history.Revision) bool {
	if len(m.tokens) == 0 {
		return true
	}
	row := m.fold.String(ComparisonString(rev))
	for _, t := range m.tokens {
		if !strings.Contains(row, t) {
			return false
		}
	}
	return true
}

// Filter returns the revisions matching all tokens, in their original order.
// An empty token list returns a copy of revs.
func Filter(revs []history.Revision, tokens []string) []history.Revision {
	m := newMatcher(tokens)
	results := make([]history.Revision, 0, len(revs))
	for _, rev := range revs {
		if m.match(rev) {
			results = append(results, rev)
		}
	}
	return results
}
