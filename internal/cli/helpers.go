package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/runnerr0/revsearch/internal/config"
	"github.com/runnerr0/revsearch/internal/logging"
	"github.com/runnerr0/revsearch/internal/storage"
	"github.com/runnerr0/revsearch/internal/vcs"
	"github.com/runnerr0/revsearch/internal/vcs/git"
)

// loadConfig loads the config named by --config, or the default config
// file. An explicit file that cannot be loaded is an error; problems with
// the default file fall back to built-in defaults.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		cfg, err := config.Load(globals.Config)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadOrCreate()
	if err != nil {
		return config.DefaultConfig(), nil
	}
	return cfg, nil
}

// newLogger builds the command logger from config and --verbose.
func newLogger(globals *GlobalFlags, cfg *config.Config) (*slog.Logger, func() error) {
	file, _ := config.ExpandPath(cfg.Logging.File)
	return logging.Open(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		File:    file,
		Verbose: globals != nil && globals.Verbose,
	})
}

// resolveDBPath determines the SQLite database file path.
// Priority: --db-path flag > config file > default config.
func resolveDBPath(globals *GlobalFlags, cfg *config.Config) (string, error) {
	if globals != nil && globals.DBPath != "" {
		return globals.DBPath, nil
	}
	return cfg.DBPath()
}

// openStore opens the mirror database at dbPath, runs migrations, and
// returns a ready-to-use store and the underlying *sql.DB.
func openStore(dbPath string) (*storage.SQLiteStore, *sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	runner := storage.NewMigrationRunner(db)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := storage.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init store: %w", err)
	}

	return store, db, nil
}

// openConfiguredStore loads config and opens the mirror database it names.
func openConfiguredStore(globals *GlobalFlags) (*storage.SQLiteStore, *sql.DB, string, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, nil, "", err
	}
	dbPath, err := resolveDBPath(globals, cfg)
	if err != nil {
		return nil, nil, "", err
	}
	store, db, err := openStore(dbPath)
	if err != nil {
		return nil, nil, "", err
	}
	return store, db, dbPath, nil
}

// backend is a history source together with the way it resolves the item
// a command operates on.
type backend struct {
	name    string
	source  vcs.Source
	resolve func(ctx context.Context, location, path string) (vcs.Item, error)
}

// newGitBackend resolves items relative to the current directory.
func newGitBackend(cfg *config.Config, logger *slog.Logger) (*backend, error) {
	root, err := config.ExpandPath(cfg.Source.Location)
	if err != nil {
		return nil, err
	}
	b := git.New(root, git.Options{
		Binary:        cfg.Git.Binary,
		Timeout:       time.Duration(cfg.Git.TimeoutMs) * time.Millisecond,
		FollowRenames: cfg.Git.FollowRenames,
		Logger:        logger.With("backend", config.SourceGit),
	})
	return &backend{
		name:   config.SourceGit,
		source: b,
		resolve: func(ctx context.Context, location, path string) (vcs.Item, error) {
			workDir := location
			if workDir == "" {
				workDir = root
			}
			if path == "" {
				path = "."
			}
			return b.ResolveSelectedItem(ctx, vcs.HostContext{WorkDir: workDir, Selected: []string{path}})
		},
	}, nil
}

// newStoreBackend serves histories previously imported into the mirror.
func newStoreBackend(store storage.Store, defaultLocation string) *backend {
	return &backend{
		name:   config.SourceStore,
		source: store,
		resolve: func(ctx context.Context, location, path string) (vcs.Item, error) {
			if location == "" {
				location = defaultLocation
			}
			if path == "" {
				return vcs.Item{}, vcs.ErrNoSelection
			}
			it, err := store.GetItem(ctx, location, path)
			if err != nil {
				return vcs.Item{}, err
			}
			return vcs.Item{Location: it.Location, Path: it.Path, IsContainer: it.IsContainer}, nil
		},
	}
}

// runtime carries what history commands need once flags are parsed.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend *backend
}

// setupRuntime loads config, builds the logger and opens the selected
// history source. The returned cleanup func is never nil.
func setupRuntime(globals *GlobalFlags, source string) (*runtime, func(), error) {
	noop := func() {}

	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, noop, err
	}
	logger, closeLog := newLogger(globals, cfg)

	if source == "" {
		source = cfg.Source.Default
	}

	rt := &runtime{cfg: cfg, logger: logger}
	switch source {
	case config.SourceGit:
		rt.backend, err = newGitBackend(cfg, logger)
		if err != nil {
			closeLog()
			return nil, noop, err
		}
		return rt, func() { closeLog() }, nil

	case config.SourceStore:
		dbPath, err := resolveDBPath(globals, cfg)
		if err != nil {
			closeLog()
			return nil, noop, err
		}
		store, db, err := openStore(dbPath)
		if err != nil {
			closeLog()
			return nil, noop, err
		}
		rt.backend = newStoreBackend(store, cfg.Source.Location)
		return rt, func() {
			store.Close()
			db.Close()
			closeLog()
		}, nil
	}

	closeLog()
	return nil, noop, fmt.Errorf("unknown source %q", source)
}

// describeError turns backend errors into the messages shown to users.
func describeError(err error) error {
	switch {
	case errors.Is(err, vcs.ErrNoSelection):
		return fmt.Errorf("you must select one item (use --path): %w", err)
	case errors.Is(err, vcs.ErrConnection):
		return fmt.Errorf("history source unavailable: %w", err)
	}
	return err
}

// displayComment flattens a comment onto one line for list output.
func displayComment(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", " ")
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
