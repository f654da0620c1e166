package query

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/albertocavalcante/go-bzlshard/label"
	"github.com/albertocavalcante/go-bzlshard/status"
)

func patterns(ss ...string) []label.Pattern {
	out := make([]label.Pattern, len(ss))
	for i, s := range ss {
		out[i] = label.MustParsePattern(s)
	}
	return out
}

func TestExpression(t *testing.T) {
	tests := []struct {
		name          string
		includes      []label.Pattern
		excludes      []label.Pattern
		excludeManual bool
		want          string
	}{
		{
			name: "no includes",
			want: "",
		},
		{
			name:     "includes only",
			includes: patterns("//foo:all", "//bar:x"),
			want:     "(//foo:all + //bar:x)",
		},
		{
			name:     "with excludes",
			includes: patterns("//foo/..."),
			excludes: patterns("//foo/skip/..."),
			want:     "(//foo/...) - (//foo/skip/...)",
		},
		{
			name:          "manual excluded",
			includes:      patterns("//foo:all"),
			excludeManual: true,
			want:          `let t = (//foo:all) in $t except attr("tags", "[\[ ]manual[,\]]", $t)`,
		},
		{
			name:     "star selector quoted",
			includes: patterns("//foo:*"),
			want:     `("//foo:*")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expression(tt.includes, tt.excludes, tt.excludeManual); got != tt.want {
				t.Errorf("Expression() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLabels(t *testing.T) {
	out := []byte("//foo:x\n\n  //foo/bar:y  \nnot a label\n@ext//:z\n")
	got, invalid := ParseLabels(out)
	want := []string{"//foo:x", "//foo/bar:y", "@ext//:z"}
	if len(got) != len(want) {
		t.Fatalf("ParseLabels() returned %d labels, want %d: %v", len(got), len(want), got)
	}
	for i, l := range got {
		if l.String() != want[i] {
			t.Errorf("labels[%d] = %s, want %s", i, l, want[i])
		}
	}
	if len(invalid) != 1 || invalid[0] != "not a label" {
		t.Errorf("invalid = %v, want [not a label]", invalid)
	}
}

func TestParseLabels_LongLines(t *testing.T) {
	long := "//foo:" + strings.Repeat("a", 2<<20)
	out := []byte(long + "\n//foo:after\n" + strings.Repeat("x", 2<<20) + "\n//foo:last")
	got, invalid := ParseLabels(out)
	if len(got) != 3 {
		t.Fatalf("ParseLabels() returned %d labels, want 3", len(got))
	}
	if got[0].String() != long || got[1].String() != "//foo:after" || got[2].String() != "//foo:last" {
		t.Errorf("labels after a long line were lost: %s, %s", got[1], got[2])
	}
	if len(invalid) != 1 {
		t.Errorf("got %d invalid lines, want 1", len(invalid))
	}
}

func TestResult_Status(t *testing.T) {
	if (Result{ExitCode: 0}).Status() != status.Success {
		t.Error("exit 0 should be Success")
	}
	if (Result{ExitCode: 3}).Status() != status.BuildError {
		t.Error("exit 3 should be BuildError")
	}
	if (Result{ExitCode: 2}).Status() != status.FatalError {
		t.Error("exit 2 should be FatalError")
	}
}

// writeFakeBazel writes a shell script that behaves like `bazel query`.
func writeFakeBazel(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "bazel")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write fake bazel: %v", err)
	}
	return path
}

func TestExecRunner_Success(t *testing.T) {
	bin := writeFakeBazel(t, `echo "$@" >&2
echo "//foo:x"
echo "//foo/bar:y"
`)
	r := &ExecRunner{BazelBinary: bin, WorkspaceRoot: t.TempDir(), StartupFlags: []string{"--batch"}}
	res, err := r.Query(context.Background(), "//foo/...", DefaultFlags...)
	if err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if got := string(res.Stdout); got != "//foo:x\n//foo/bar:y\n" {
		t.Errorf("Stdout = %q", got)
	}
	if got := strings.TrimSpace(string(res.Stderr)); got != "--batch query //foo/... --output=label --keep_going" {
		t.Errorf("args = %q", got)
	}
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	bin := writeFakeBazel(t, `echo "//foo:x"
echo "ERROR: no such package" >&2
exit 3
`)
	r := &ExecRunner{BazelBinary: bin}
	res, err := r.Query(context.Background(), "//foo/...")
	if err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if res.ExitCode != 3 || res.Status() != status.BuildError {
		t.Errorf("ExitCode = %d, status = %v; want 3, BuildError", res.ExitCode, res.Status())
	}
	if !strings.Contains(string(res.Stdout), "//foo:x") {
		t.Errorf("partial stdout should be kept, got %q", res.Stdout)
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := &ExecRunner{BazelBinary: filepath.Join(t.TempDir(), "does-not-exist")}
	if _, err := r.Query(context.Background(), "//..."); err == nil {
		t.Error("Query() with missing binary should return an error")
	}
}

func TestExecRunner_Cancelled(t *testing.T) {
	bin := writeFakeBazel(t, "sleep 5\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &ExecRunner{BazelBinary: bin}
	_, err := r.Query(ctx, "//...")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Query() error = %v, want context.Canceled", err)
	}
}
