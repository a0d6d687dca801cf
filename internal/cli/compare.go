package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/runnerr0/revsearch/internal/difftool"
	"github.com/runnerr0/revsearch/internal/navigate"
	"github.com/runnerr0/revsearch/internal/session"
	"github.com/runnerr0/revsearch/internal/vcs"
)

const noPreviousMessage = "No previous version available."

// Execute implements the go-flags Commander interface for CompareCommand.
func (c *CompareCommand) Execute(args []string) error {
	rt, cleanup, err := setupRuntime(c.globals, c.Source)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Query == "" && len(args) > 0 {
		c.Query = strings.Join(args, " ")
	}
	return c.executeWith(context.Background(), rt, nil)
}

// executeWith runs the comparison. A nil invoker launches the configured
// diff tool.
func (c *CompareCommand) executeWith(ctx context.Context, rt *runtime, invoker vcs.DiffInvoker) error {
	if err := c.validate(); err != nil {
		return err
	}

	s, err := openSession(ctx, rt, c.SourceFlags, c.Query)
	if err != nil {
		return err
	}

	a, b, self, err := c.targets(s)
	if err != nil {
		if navigate.IsInformational(err) {
			return c.printNotice(noPreviousMessage)
		}
		return err
	}

	if c.Print || (c.globals != nil && c.globals.JSON) {
		return c.printTargets(s, a, b, self)
	}

	if invoker == nil {
		invoker, err = newLauncher(rt, s)
		if err != nil {
			return err
		}
	}
	return s.DiffTargets(ctx, invoker, a, b)
}

// validate requires exactly one comparison mode.
func (c *CompareCommand) validate() error {
	modes := 0
	for _, set := range []bool{c.Previous != 0, c.Latest != 0, c.Pair != "", c.Local != 0} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return fmt.Errorf("specify exactly one of --previous, --latest, --pair or --local")
	}
	return nil
}

// targets builds the diff targets for the selected mode and reports whether
// both sides are the same revision. Result numbers on the command line are
// 1-based, as printed by search.
func (c *CompareCommand) targets(s *session.Session) (vcs.Target, vcs.Target, bool, error) {
	var (
		p   navigate.Pair
		err error
	)
	switch {
	case c.Previous != 0:
		p, err = s.Previous(c.Previous - 1)
	case c.Latest != 0:
		p, err = s.Latest(c.Latest - 1)
	case c.Pair != "":
		var first, second int
		first, second, err = parsePair(c.Pair)
		if err == nil {
			p, err = s.Pair(first-1, second-1)
		}
	case c.Local != 0:
		localPath := c.LocalFile
		if localPath == "" {
			localPath = filepath.Join(s.Item.Location, filepath.FromSlash(s.Item.Path))
		}
		a, b, err := s.Local(c.Local-1, localPath)
		return a, b, false, err
	}
	if err != nil {
		return vcs.Target{}, vcs.Target{}, false, err
	}
	a, b := session.Targets(p)
	return a, b, p.SelfComparison(), nil
}

// parsePair parses "A,B" into two result numbers.
func parsePair(s string) (int, int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid --pair %q: expected A,B", s)
	}
	first, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --pair %q: %w", s, err)
	}
	second, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --pair %q: %w", s, err)
	}
	return first, second, nil
}

func newLauncher(rt *runtime, s *session.Session) (*difftool.Launcher, error) {
	command, err := rt.cfg.DiffCommand()
	if err != nil {
		return nil, err
	}
	l, err := difftool.New(rt.backend.source, difftool.Options{
		Command: command,
		Wait:    rt.cfg.Diff.Wait,
		Logger:  rt.logger.With("session", s.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("diff tool: %w", err)
	}
	return l, nil
}

func (c *CompareCommand) printNotice(msg string) error {
	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(map[string]string{"message": msg})
	}
	fmt.Println(msg)
	return nil
}

type jsonTarget struct {
	Path     string        `json:"path"`
	Local    bool          `json:"local"`
	Revision *jsonRevision `json:"revision,omitempty"`
}

func toJSONTarget(t vcs.Target) jsonTarget {
	out := jsonTarget{Path: t.Path, Local: t.Local()}
	if !t.Local() {
		rev := toJSONRevision(*t.Revision)
		out.Revision = &rev
	}
	return out
}

func (c *CompareCommand) printTargets(s *session.Session, a, b vcs.Target, self bool) error {
	if c.globals != nil && c.globals.JSON {
		out := struct {
			Session      string     `json:"session"`
			Source       jsonTarget `json:"source"`
			Target       jsonTarget `json:"target"`
			SameRevision bool       `json:"same_revision"`
		}{s.ID, toJSONTarget(a), toJSONTarget(b), self}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Source: %s\n", describeTarget(a, s.Item.Path))
	fmt.Printf("Target: %s\n", describeTarget(b, s.Item.Path))
	if self {
		fmt.Println("Both sides are the same revision.")
	}
	return nil
}

func describeTarget(t vcs.Target, itemPath string) string {
	if t.Local() {
		return difftool.Title(t)
	}
	return formatRevision(*t.Revision, itemPath)
}
