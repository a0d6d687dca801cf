// Package difftool launches an external visual diff program for two
// revisions or a revision and the working copy.
package difftool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/runnerr0/revsearch/internal/logging"
	"github.com/runnerr0/revsearch/internal/vcs"
)

// Options configures a Launcher.
type Options struct {
	// Command is the argument template; the first element is the program.
	Command []string
	// Wait blocks until the tool exits and then removes temporary files.
	Wait   bool
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Launcher implements vcs.DiffInvoker by running a configured command.
type Launcher struct {
	materializer vcs.Materializer
	command      []string
	wait         bool
	stdout       io.Writer
	stderr       io.Writer
	logger       *slog.Logger
}

var _ vcs.DiffInvoker = (*Launcher)(nil)

// New creates a Launcher that fetches revision content from m.
func New(m vcs.Materializer, opts Options) (*Launcher, error) {
	if m == nil {
		return nil, errors.New("difftool: materializer is required")
	}
	if len(opts.Command) == 0 || opts.Command[0] == "" {
		return nil, errors.New("difftool: command is empty")
	}
	l := &Launcher{
		materializer: m,
		command:      append([]string(nil), opts.Command...),
		wait:         opts.Wait,
		stdout:       opts.Stdout,
		stderr:       opts.Stderr,
		logger:       opts.Logger,
	}
	if l.stdout == nil {
		l.stdout = os.Stdout
	}
	if l.stderr == nil {
		l.stderr = os.Stderr
	}
	if l.logger == nil {
		l.logger = logging.NewDiscardLogger()
	}
	return l, nil
}

// Title labels a diff side for tools that display one.
func Title(t vcs.Target) string {
	if t.Local() {
		return t.Path + " (local)"
	}
	return fmt.Sprintf("%s (revision %d)", t.Path, t.Revision.ID)
}

// Expand substitutes the placeholders in a command template.
func Expand(template []string, left, right, leftTitle, rightTitle string) []string {
	r := strings.NewReplacer(
		"{left_title}", leftTitle,
		"{right_title}", rightTitle,
		"{left}", left,
		"{right}", right,
	)
	out := make([]string, len(template))
	for i, arg := range template {
		out[i] = r.Replace(arg)
	}
	return out
}

// InvokeDiff materializes both sides and runs the diff tool. A non-zero
// exit status from the tool is not an error; many tools use it to report
// that the inputs differ.
func (l *Launcher) InvokeDiff(ctx context.Context, location string, a, b vcs.Target) error {
	left, cleanupLeft, err := l.resolve(ctx, location, a)
	if err != nil {
		return err
	}
	right, cleanupRight, err := l.resolve(ctx, location, b)
	if err != nil {
		cleanupLeft()
		return err
	}
	cleanup := func() {
		cleanupLeft()
		cleanupRight()
	}

	args := Expand(l.command, left, right, Title(a), Title(b))
	l.logger.Debug("launching diff tool", "args", args, "wait", l.wait)

	if !l.wait {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Stdout = l.stdout
		cmd.Stderr = l.stderr
		if err := cmd.Start(); err != nil {
			cleanup()
			return fmt.Errorf("start %s: %w", args[0], err)
		}
		// The tool still needs the files; they are left in the temp directory.
		l.logger.Debug("diff tool detached", "pid", cmd.Process.Pid, "left", left, "right", right)
		return cmd.Process.Release()
	}

	defer cleanup()
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			l.logger.Debug("diff tool exited", "code", exitErr.ExitCode())
			return nil
		}
		return fmt.Errorf("run %s: %w", args[0], err)
	}
	return nil
}

func (l *Launcher) resolve(ctx context.Context, location string, t vcs.Target) (string, func(), error) {
	if t.Local() {
		if _, err := os.Stat(t.Path); err != nil {
			return "", func() {}, fmt.Errorf("local file: %w", err)
		}
		return t.Path, func() {}, nil
	}
	path, cleanup, err := l.materializer.Materialize(ctx, location, t.Path, *t.Revision)
	if err != nil {
		return "", func() {}, fmt.Errorf("materialize %s at revision %d: %w", t.Path, t.Revision.ID, err)
	}
	return path, cleanup, nil
}
