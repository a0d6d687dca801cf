// Package git implements the vcs collaborators on top of the git command
// line client.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/runnerr0/revsearch/internal/history"
	"github.com/runnerr0/revsearch/internal/logging"
	"github.com/runnerr0/revsearch/internal/vcs"
)

// DefaultTimeout bounds every git invocation when no timeout is configured.
const DefaultTimeout = 30 * time.Second

const (
	recordSep = "\x1e"
	fieldSep  = "\x00"

	// hash, author, author date, raw body
	logFormat = "--format=%x1e%H%x00%an%x00%aI%x00%B%x00"
)

// Options configures a Backend.
type Options struct {
	Binary        string
	Timeout       time.Duration
	FollowRenames bool
	Logger        *slog.Logger
}

// Backend answers history, selection and content requests for git
// repositories.
type Backend struct {
	root    string
	binary  string
	timeout time.Duration
	follow  bool
	logger  *slog.Logger
}

var (
	_ vcs.Source       = (*Backend)(nil)
	_ vcs.ItemResolver = (*Backend)(nil)
)

// New creates a Backend. root is used whenever a request carries no location.
func New(root string, opts Options) *Backend {
	b := &Backend{
		root:    root,
		binary:  opts.Binary,
		timeout: opts.Timeout,
		follow:  opts.FollowRenames,
		logger:  opts.Logger,
	}
	if b.binary == "" {
		b.binary = "git"
	}
	if b.timeout <= 0 {
		b.timeout = DefaultTimeout
	}
	if b.logger == nil {
		b.logger = logging.NewDiscardLogger()
	}
	return b
}

// CommandError is a git invocation that exited unsuccessfully.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// run executes git in dir and returns its raw standard output.
func (b *Backend) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.binary, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	b.logger.Debug("executing git command", "args", args, "dir", dir, "timeout", b.timeout.String())

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: git %s timed out after %s", vcs.ErrConnection, args[0], b.timeout)
		}
		return nil, &CommandError{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return out, nil
}

func (b *Backend) dir(location string) string {
	if location == "" {
		return b.root
	}
	return location
}

// FetchHistory lists every commit touching itemPath, newest first. Revision
// IDs are ordinals within the item's history with the oldest commit as 1.
func (b *Backend) FetchHistory(ctx context.Context, location, itemPath string) ([]history.Revision, error) {
	if strings.TrimSpace(itemPath) == "" {
		return nil, fmt.Errorf("item path is empty")
	}
	dir := b.dir(location)

	isDir := false
	if fi, err := os.Stat(filepath.Join(dir, itemPath)); err == nil {
		isDir = fi.IsDir()
	}

	args := []string{"log", logFormat, "--name-only"}
	// --follow only works for a single file.
	if b.follow && !isDir {
		args = append(args, "--follow")
	}
	args = append(args, "--", itemPath)

	out, err := b.run(ctx, dir, args...)
	if err != nil {
		if errors.Is(err, vcs.ErrConnection) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", vcs.ErrConnection, err)
	}

	revs, err := parseLog(string(out), itemPath, isDir)
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, fmt.Errorf("%w: %s", vcs.ErrItemNotFound, itemPath)
	}

	b.logger.Debug("fetched git history", "path", itemPath, "revisions", len(revs))
	return revs, nil
}

// parseLog decodes output produced with logFormat and --name-only.
func parseLog(out, itemPath string, isDir bool) ([]history.Revision, error) {
	records := strings.Split(out, recordSep)
	revs := make([]history.Revision, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec) == "" {
			continue
		}
		fields := strings.SplitN(rec, fieldSep, 5)
		if len(fields) != 5 {
			return nil, fmt.Errorf("malformed git log record: %q", rec)
		}

		ts, err := time.Parse(time.RFC3339, fields[2])
		if err != nil {
			return nil, fmt.Errorf("parse commit date %q: %w", fields[2], err)
		}

		serverPath := itemPath
		if !isDir {
			if name := firstLine(fields[4]); name != "" {
				serverPath = name
			}
		}

		revs = append(revs, history.Revision{
			Owner:      fields[1],
			Timestamp:  ts,
			Comment:    strings.TrimRight(fields[3], "\n"),
			ServerPath: serverPath,
			Ref:        fields[0],
		})
	}

	n := len(revs)
	for i := range revs {
		revs[i].ID = n - i
	}
	return revs, nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// ResolveSelectedItem resolves the single path selected in host to an item
// of the repository containing it.
func (b *Backend) ResolveSelectedItem(ctx context.Context, host vcs.HostContext) (vcs.Item, error) {
	switch len(host.Selected) {
	case 0:
		return vcs.Item{}, vcs.ErrNoSelection
	case 1:
	default:
		return vcs.Item{}, vcs.ErrMultipleSelection
	}

	p := host.Selected[0]
	if !filepath.IsAbs(p) {
		p = filepath.Join(host.WorkDir, p)
	}
	p = filepath.Clean(p)

	isDir := false
	if fi, err := os.Stat(p); err == nil {
		isDir = fi.IsDir()
	}

	// Resolve symlinks on the directory so the path lines up with the
	// toplevel git reports.
	dir, base := p, ""
	if !isDir {
		dir, base = filepath.Dir(p), filepath.Base(p)
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return vcs.Item{}, fmt.Errorf("%w: %s", vcs.ErrItemNotFound, p)
	}

	out, err := b.run(ctx, resolved, "rev-parse", "--show-toplevel")
	if err != nil {
		if errors.Is(err, vcs.ErrConnection) {
			return vcs.Item{}, err
		}
		return vcs.Item{}, fmt.Errorf("%w: %s is not under version control", vcs.ErrUnsupported, p)
	}
	top := strings.TrimSpace(string(out))
	if t, err := filepath.EvalSymlinks(top); err == nil {
		top = t
	}

	rel, err := filepath.Rel(top, filepath.Join(resolved, base))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return vcs.Item{}, fmt.Errorf("%w: %s is outside %s", vcs.ErrUnsupported, p, top)
	}

	return vcs.Item{
		Location:    top,
		Path:        filepath.ToSlash(rel),
		IsContainer: isDir,
	}, nil
}

// Materialize writes path as of rev to a temporary file.
func (b *Backend) Materialize(ctx context.Context, location, path string, rev history.Revision) (string, func(), error) {
	noop := func() {}
	if rev.Ref == "" {
		return "", noop, fmt.Errorf("%w: revision %d has no commit", vcs.ErrNoContent, rev.ID)
	}

	out, err := b.run(ctx, b.dir(location), "show", rev.Ref+":"+filepath.ToSlash(path))
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && isMissingPath(cmdErr.Stderr) {
			return "", noop, fmt.Errorf("%w: %s at %s", vcs.ErrNoContent, path, rev.Ref)
		}
		if errors.Is(err, vcs.ErrConnection) {
			return "", noop, err
		}
		return "", noop, fmt.Errorf("%w: %v", vcs.ErrConnection, err)
	}

	f, err := os.CreateTemp("", fmt.Sprintf("revsearch-%d-*-%s", rev.ID, filepath.Base(path)))
	if err != nil {
		return "", noop, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }

	if _, err := f.Write(out); err != nil {
		f.Close()
		cleanup()
		return "", noop, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

func isMissingPath(stderr string) bool {
	return strings.Contains(stderr, "does not exist in") ||
		strings.Contains(stderr, "exists on disk, but not in")
}
