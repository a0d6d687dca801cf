package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/runnerr0/revsearch/internal/history"
	"github.com/runnerr0/revsearch/internal/search"
	"github.com/runnerr0/revsearch/internal/session"
)

// Execute implements the go-flags Commander interface for ShowCommand.
func (c *ShowCommand) Execute(args []string) error {
	if c.ID == 0 {
		return fmt.Errorf("--id is required for show command")
	}

	rt, cleanup, err := setupRuntime(c.globals, c.Source)
	if err != nil {
		return err
	}
	defer cleanup()

	return c.executeWith(context.Background(), rt)
}

// executeWith prints the revision against a prepared runtime (for testing).
func (c *ShowCommand) executeWith(ctx context.Context, rt *runtime) error {
	s, err := openSession(ctx, rt, c.SourceFlags, "")
	if err != nil {
		return err
	}

	i, ok := s.History.IndexOf(c.ID)
	if !ok {
		return fmt.Errorf("revision %d not found in history of %s", c.ID, s.Item.Path)
	}
	rev := s.History.At(i)

	body, hasBody := "", false
	if c.Content {
		body, err = c.readContent(ctx, rt, s, rev)
		if err != nil {
			return err
		}
		hasBody = true
	}

	if c.globals != nil && c.globals.JSON {
		out := struct {
			jsonRevision
			Content *string `json:"content,omitempty"`
		}{jsonRevision: toJSONRevision(rev)}
		if hasBody {
			out.Content = &body
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Revision:  %d\n", rev.ID)
	if rev.Ref != "" {
		fmt.Printf("Ref:       %s\n", rev.Ref)
	}
	fmt.Printf("Owner:     %s\n", rev.Owner)
	fmt.Printf("Date:      %s %s\n", rev.Timestamp.Format(search.LongDateLayout), rev.Timestamp.Format("15:04:05 MST"))
	fmt.Printf("Path:      %s\n", rev.ServerPath)
	fmt.Println()
	fmt.Println(rev.Comment)
	if hasBody {
		fmt.Println()
		fmt.Println("--- Content ---")
		fmt.Print(body)
	}
	return nil
}

func (c *ShowCommand) readContent(ctx context.Context, rt *runtime, s *session.Session, rev history.Revision) (string, error) {
	if s.Item.IsContainer {
		return "", fmt.Errorf("content is not available for folders")
	}
	path, cleanup, err := rt.backend.source.Materialize(ctx, s.Item.Location, rev.ServerPath, rev)
	defer cleanup()
	if err != nil {
		return "", describeError(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(data), nil
}
