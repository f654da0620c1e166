package e2e

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	gobzlshard "github.com/albertocavalcante/go-bzlshard"
	"github.com/albertocavalcante/go-bzlshard/firstphase"
	"github.com/albertocavalcante/go-bzlshard/label"
	"github.com/albertocavalcante/go-bzlshard/packages"
	"github.com/albertocavalcante/go-bzlshard/query"
	"github.com/albertocavalcante/go-bzlshard/status"
)

// workspaceFiles is a small workspace built only from native rules.
var workspaceFiles = map[string]string{
	"MODULE.bazel":  `module(name = "e2e_workspace", version = "1.0.0")`,
	".bazelversion": "7.4.1",
	"app/BUILD.bazel": `
filegroup(name = "app", srcs = [":config"])
filegroup(name = "config", srcs = ["app.cfg"])
filegroup(name = "manual_only", tags = ["manual"])
`,
	"app/app.cfg": "",
	"lib/BUILD": `
filegroup(name = "core")
filegroup(name = "util", srcs = [":core"])
`,
	"lib/internal/BUILD.bazel": `filegroup(name = "impl")`,
	"docs/README.md":           "no BUILD file here",
}

// findBazel locates bazelisk or bazel on PATH, skipping the test when neither exists.
func findBazel(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}
	for _, name := range []string{"bazelisk", "bazel"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("Skipping E2E test: no bazel or bazelisk on PATH")
	return ""
}

// createTestWorkspace writes files under a fresh temporary directory.
func createTestWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
	return root
}

func newRunner(t *testing.T, bazel, root string) *query.ExecRunner {
	t.Helper()
	// A private output base keeps the test server away from the user's.
	return &query.ExecRunner{
		BazelBinary:   bazel,
		WorkspaceRoot: root,
		StartupFlags:  []string{"--output_base=" + filepath.Join(t.TempDir(), "output_base")},
	}
}

// runBazelQuery runs a plain query and returns its sorted labels.
func runBazelQuery(t *testing.T, runner query.Runner, expression string) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := runner.Query(ctx, expression, "--output=label")
	if err != nil {
		t.Fatalf("bazel query failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("bazel query exited %d:\n%s", res.ExitCode, res.Stderr)
	}
	labels, invalid := query.ParseLabels(res.Stdout)
	if len(invalid) > 0 {
		t.Fatalf("unparsable query output: %q", invalid)
	}
	return sortedStrings(labels)
}

func sortedStrings(labels []label.Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.String()
	}
	slices.Sort(out)
	return out
}

func shard(t *testing.T, runner query.Runner, root string, approach gobzlshard.Approach, patterns ...string) *gobzlshard.ShardResult {
	t.Helper()
	spec, err := label.ParseTargetsSpec(patterns)
	if err != nil {
		t.Fatalf("ParseTargetsSpec(%q): %v", patterns, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := gobzlshard.Shard(ctx, runner, gobzlshard.WorkspaceContext{
		Targets:         spec,
		WorkspaceRoot:   root,
		Approach:        approach,
		TargetShardSize: 2,
	}, gobzlshard.FeatureFlags{}, gobzlshard.WithPackageShardSize(1))
	if err != nil {
		t.Fatalf("Shard failed: %v", err)
	}
	if result.Status != status.Success {
		t.Fatalf("Shard status = %s, want %s", result.Status, status.Success)
	}
	for i, batch := range result.Targets.Batches {
		if len(batch) > 2 {
			t.Errorf("batch %d has %d targets, limit is 2", i, len(batch))
		}
	}
	return result
}

func TestE2E_ApproachesAgreeWithBazelQuery(t *testing.T) {
	bazel := findBazel(t)
	root := createTestWorkspace(t, workspaceFiles)
	runner := newRunner(t, bazel, root)

	want := runBazelQuery(t, runner, `let t = //... in $t except attr("tags", "[\[ ]manual[,\]]", $t)`)
	t.Logf("Bazel found %d non-manual targets", len(want))

	for _, approach := range []gobzlshard.Approach{gobzlshard.QueryAndShard, gobzlshard.ExpandAndShard} {
		t.Run(approach.String(), func(t *testing.T) {
			result := shard(t, runner, root, approach, "//...")
			got := sortedStrings(result.Targets.Flatten())
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s targets mismatch (-bazel +ours):\n%s", approach, diff)
			}
		})
	}
}

func TestE2E_ExcludedPackage(t *testing.T) {
	bazel := findBazel(t)
	root := createTestWorkspace(t, workspaceFiles)
	runner := newRunner(t, bazel, root)

	result := shard(t, runner, root, gobzlshard.ExpandAndShard, "//...", "-//lib/internal/...", "//app:manual_only")
	got := sortedStrings(result.Targets.Flatten())
	want := []string{"//app:app", "//app:config", "//app:manual_only", "//lib:core", "//lib:util"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestE2E_FirstPhaseMatchesBazelQuery(t *testing.T) {
	bazel := findBazel(t)
	root := createTestWorkspace(t, workspaceFiles)
	runner := newRunner(t, bazel, root)

	spec, err := label.ParseTargetsSpec([]string{"//..."})
	if err != nil {
		t.Fatal(err)
	}
	scanner := &firstphase.Scanner{Lister: &packages.Lister{Root: root}, AllowManualTargets: true}
	snapshot, err := scanner.Snapshot(context.Background(), spec)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	got := sortedStrings(snapshot.Modules)
	want := runBazelQuery(t, runner, "kind(rule, //...)")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("first-phase targets mismatch (-bazel +ours):\n%s", diff)
	}
}
