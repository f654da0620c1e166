package query

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// ExecRunner runs queries by spawning the Bazel binary.
type ExecRunner struct {
	// BazelBinary is the bazel or bazelisk executable. Defaults to "bazel".
	BazelBinary string

	// WorkspaceRoot is the directory the command runs in.
	WorkspaceRoot string

	// StartupFlags are placed before the "query" command (e.g. --output_base).
	StartupFlags []string

	// Logger receives per-invocation diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// Query implements Runner.
func (r *ExecRunner) Query(ctx context.Context, expression string, flags ...string) (Result, error) {
	binary := r.BazelBinary
	if binary == "" {
		binary = "bazel"
	}

	args := make([]string, 0, len(r.StartupFlags)+2+len(flags))
	args = append(args, r.StartupFlags...)
	args = append(args, "query", expression)
	args = append(args, flags...)

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = r.WorkspaceRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.log().Debug("bazel query finished",
		"binary", binary,
		"expression_bytes", len(expression),
		"duration", time.Since(start),
		"stdout_bytes", stdout.Len())

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, fmt.Errorf("bazel query interrupted: %w", ctxErr)
	}

	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("failed to run %s query: %w", binary, err)
		}
		result.ExitCode = exitErr.ExitCode()
		r.log().Warn("bazel query exited with non-zero status",
			"exit_code", result.ExitCode,
			"stderr", tail(stderr.String(), 2048))
	}
	return result, nil
}

func (r *ExecRunner) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// tail returns at most n trailing bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
