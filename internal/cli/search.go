package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/revsearch/internal/history"
	"github.com/runnerr0/revsearch/internal/search"
	"github.com/runnerr0/revsearch/internal/session"
)

// Execute implements the go-flags Commander interface for SearchCommand.
func (c *SearchCommand) Execute(args []string) error {
	rt, cleanup, err := setupRuntime(c.globals, c.Source)
	if err != nil {
		return err
	}
	defer cleanup()

	return c.executeWith(context.Background(), rt, args)
}

// executeWith runs the search against a prepared runtime (for testing).
func (c *SearchCommand) executeWith(ctx context.Context, rt *runtime, args []string) error {
	s, err := openSession(ctx, rt, c.SourceFlags, strings.Join(args, " "))
	if err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		return printSessionJSON(s)
	}
	printResults(s)
	return nil
}

// openSession resolves the item selected by flags and searches its history.
func openSession(ctx context.Context, rt *runtime, flags SourceFlags, query string) (*session.Session, error) {
	item, err := rt.backend.resolve(ctx, flags.Location, flags.Path)
	if err != nil {
		return nil, describeError(err)
	}
	s, err := session.New(ctx, rt.backend.source, item, query, rt.logger)
	if err != nil {
		return nil, describeError(err)
	}
	return s, nil
}

// formatRevision renders one result line without its number.
func formatRevision(rev history.Revision, itemPath string) string {
	line := fmt.Sprintf("%-6d %-16s %-28s %s",
		rev.ID, rev.Owner, rev.Timestamp.Format(search.LongDateLayout), displayComment(rev.Comment))
	if rev.ServerPath != "" && rev.ServerPath != itemPath {
		line += fmt.Sprintf(" [%s]", rev.ServerPath)
	}
	return line
}

func printResults(s *session.Session) {
	kind := "file"
	if s.Item.IsContainer {
		kind = "folder"
	}
	fmt.Printf("History of %s %s (%s)\n", kind, s.Item.Path, s.Item.Location)
	fmt.Printf("%d results found\n", s.Len())
	if s.Len() == 0 {
		return
	}
	fmt.Println()
	for i, rev := range s.Results {
		fmt.Printf("%3d. %s\n", i+1, formatRevision(rev, s.Item.Path))
	}
}

type jsonRevision struct {
	Index      int    `json:"index,omitempty"`
	ID         int    `json:"id"`
	Owner      string `json:"owner"`
	Timestamp  string `json:"timestamp"`
	Comment    string `json:"comment"`
	ServerPath string `json:"server_path,omitempty"`
	Ref        string `json:"ref,omitempty"`
}

func toJSONRevision(rev history.Revision) jsonRevision {
	return jsonRevision{
		ID:         rev.ID,
		Owner:      rev.Owner,
		Timestamp:  rev.Timestamp.UTC().Format(time.RFC3339),
		Comment:    rev.Comment,
		ServerPath: rev.ServerPath,
		Ref:        rev.Ref,
	}
}

type jsonSearchOutput struct {
	Session     string         `json:"session"`
	Location    string         `json:"location"`
	Path        string         `json:"path"`
	IsContainer bool           `json:"is_container"`
	Query       string         `json:"query"`
	Tokens      []string       `json:"tokens"`
	Total       int            `json:"total"`
	Count       int            `json:"count"`
	Results     []jsonRevision `json:"results"`
}

func printSessionJSON(s *session.Session) error {
	out := jsonSearchOutput{
		Session:     s.ID,
		Location:    s.Item.Location,
		Path:        s.Item.Path,
		IsContainer: s.Item.IsContainer,
		Query:       s.Query,
		Tokens:      s.Tokens,
		Total:       s.History.Len(),
		Count:       s.Len(),
		Results:     make([]jsonRevision, s.Len()),
	}
	for i, rev := range s.Results {
		out.Results[i] = toJSONRevision(rev)
		out.Results[i].Index = i + 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
