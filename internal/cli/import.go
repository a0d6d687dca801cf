package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/runnerr0/revsearch/internal/storage"
)

// Execute implements the go-flags Commander interface for ImportCommand.
func (c *ImportCommand) Execute(args []string) error {
	if c.File == "" {
		return fmt.Errorf("--file is required for import command")
	}

	var r io.Reader = os.Stdin
	if c.File != "-" {
		f, err := os.Open(c.File)
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	store, db, _, err := openConfiguredStore(c.globals)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(context.Background(), store, r)
}

// executeWithStore imports from r into a provided store (for testing).
func (c *ImportCommand) executeWithStore(ctx context.Context, store storage.Store, r io.Reader) error {
	req, err := storage.ParseImportFile(r)
	if err != nil {
		return err
	}

	res, err := store.ImportHistory(ctx, *req)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		out := map[string]interface{}{
			"location":  req.Location,
			"path":      req.Path,
			"item_id":   res.ItemID,
			"revisions": res.Revisions,
			"content":   res.Content,
			"replaced":  res.Replaced,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Imported %d revisions of %s (%s)\n", res.Revisions, req.Path, req.Location)
	if res.Content > 0 {
		fmt.Printf("  with content for %d revisions\n", res.Content)
	}
	if res.Replaced > 0 {
		fmt.Printf("  replaced %d previously imported revisions\n", res.Replaced)
	}
	return nil
}
