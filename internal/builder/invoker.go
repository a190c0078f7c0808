package builder

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"git.home.luguber.info/inful/forgebuild/internal/config"
	"git.home.luguber.info/inful/forgebuild/internal/logfields"
)

// waitDelay bounds how long Run waits for the tool's output pipe to close after
// the process has been killed by a timeout.
const waitDelay = 2 * time.Second

// Runner abstracts how the build tool is executed so the orchestrator can be
// tested without the real binary.
type Runner interface {
	Run(ctx context.Context, dir string) string
}

// Invoker executes Command with Args in the workspace directory.
//
// Run never fails: a missing directory or a tool that cannot be started yields
// empty output, which classifies as success. The exit status is ignored; only
// the text on standard output decides the outcome.
type Invoker struct {
	Command string
	Args    []string
	Timeout time.Duration
	Env     []string
}

// NewInvoker creates an invoker from the build section of the configuration.
func NewInvoker(cfg config.BuildConfig) *Invoker {
	return &Invoker{
		Command: cfg.Command,
		Args:    append([]string(nil), cfg.Args...),
		Timeout: cfg.Timeout,
	}
}

// Run executes the build tool in dir and returns everything it wrote to stdout.
func (i *Invoker) Run(ctx context.Context, dir string) string {
	if stat, err := os.Stat(dir); err != nil || !stat.IsDir() {
		slog.Warn("Build directory missing, skipping build tool", logfields.Path(dir), logfields.Error(err))
		return ""
	}

	if i.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.Timeout)
		defer cancel()
	}

	// #nosec G204 - command and args come from operator configuration
	cmd := exec.CommandContext(ctx, i.Command, i.Args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	if len(i.Env) > 0 {
		cmd.Env = append(os.Environ(), i.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	slog.Debug("Invoking build tool", "command", i.Command, "args", i.Args, logfields.Path(dir))

	if err := cmd.Start(); err != nil {
		slog.Warn("Build tool could not be started", "command", i.Command, logfields.Path(dir), logfields.Error(err))
		return ""
	}
	err := cmd.Wait()

	attrs := []any{
		"command", i.Command,
		logfields.Path(dir),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())),
	}
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		slog.Warn("Build tool timed out", append(attrs, "timeout", i.Timeout)...)
	case err != nil:
		// Non-zero exit is not a failure signal on its own.
		slog.Debug("Build tool exited with error", append(attrs, logfields.Error(err))...)
	default:
		slog.Debug("Build tool finished", attrs...)
	}
	if stderr.Len() > 0 {
		slog.Debug("Build tool stderr", "error_output", stderr.String())
	}
	return stdout.String()
}

// FuncRunner adapts a function to the Runner interface.
type FuncRunner func(ctx context.Context, dir string) string

func (f FuncRunner) Run(ctx context.Context, dir string) string { return f(ctx, dir) }
