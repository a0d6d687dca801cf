package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/revsearch/internal/storage"
)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	store, db, _, err := openConfiguredStore(c.globals)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(context.Background(), store, time.Now())
}

// executeWithStore prunes a provided store relative to now (for testing).
func (c *PruneCommand) executeWithStore(ctx context.Context, store storage.Store, now time.Time) error {
	age, err := parseDuration(c.OlderThan)
	if err != nil {
		return fmt.Errorf("invalid --older-than value: %w", err)
	}
	cutoff := now.Add(-age)

	var n int64
	if c.DryRun {
		n, err = store.CountImportedBefore(ctx, cutoff)
	} else {
		n, err = store.PruneImportedBefore(ctx, cutoff)
	}
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		out := map[string]interface{}{
			"dry_run": c.DryRun,
			"cutoff":  cutoff.UTC().Format(time.RFC3339),
			"items":   n,
		}
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(out)
	}

	verb := "Pruned"
	if c.DryRun {
		verb = "Would prune"
	}
	fmt.Printf("%s %s items imported more than %s ago.\n", verb, formatNumber(n), formatDurationHuman(age))
	return nil
}
