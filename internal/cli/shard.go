package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	gobzlshard "github.com/albertocavalcante/go-bzlshard"
	"github.com/albertocavalcante/go-bzlshard/firstphase"
	"github.com/albertocavalcante/go-bzlshard/label"
	"github.com/albertocavalcante/go-bzlshard/packages"
	"github.com/albertocavalcante/go-bzlshard/query"
)

// ShardOptions holds flags for the shard command.
type ShardOptions struct {
	Workspace          string
	Targets            []string
	Directories        []string
	ExcludeDirectories []string
	Approach           string
	ShardSize          int
	AllowManual        bool
	Bazel              string
	Parallelism        int
	PackageShardSize   int
	SymlinkScanDepth   int
	FirstPhase         bool
}

// NewShardCommand creates the shard command.
func NewShardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShardOptions{}

	cmd := &cobra.Command{
		Use:   "shard [patterns...]",
		Short: "Expand target patterns and split them into batches",
		Long: `Expand target patterns into concrete targets and split them into batches.

Patterns may be given as arguments or with --target. A leading "-" excludes
a pattern. The exit code is 1 when expansion failed fatally.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Targets = append(opts.Targets, args...)
			return runShard(rootOpts, opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Workspace, "workspace", "w", ".", "workspace root")
	f.StringArrayVarP(&opts.Targets, "target", "t", nil, "target pattern (repeatable, \"-\" prefix excludes)")
	f.StringArrayVar(&opts.Directories, "directory", nil, "workspace-relative directory to include (repeatable)")
	f.StringArrayVar(&opts.ExcludeDirectories, "exclude-directory", nil, "workspace-relative directory to exclude (repeatable)")
	f.StringVar(&opts.Approach, "approach", "", "expand_and_shard | query_and_shard | shard_only (default query_and_shard)")
	f.IntVar(&opts.ShardSize, "shard-size", gobzlshard.DefaultTargetShardSize, "targets per batch")
	f.BoolVar(&opts.AllowManual, "allow-manual", false, "keep targets tagged manual")
	f.StringVar(&opts.Bazel, "bazel", "bazel", "bazel binary")
	f.IntVar(&opts.Parallelism, "parallelism", 1, "concurrent expansion queries")
	f.IntVar(&opts.PackageShardSize, "package-shard-size", 0, "package wildcards per expansion query (0 uses the default)")
	f.IntVar(&opts.SymlinkScanDepth, "symlink-scan-depth", gobzlshard.DefaultSymlinkScanMaxDepth, "depth of the bazel-* symlink scan")
	f.BoolVar(&opts.FirstPhase, "first-phase", false, "shard rules read from BUILD files instead of querying bazel")

	return cmd
}

func runShard(rootOpts *RootOptions, opts *ShardOptions, cmd *cobra.Command) error {
	if err := rejectDot(rootOpts, "shard"); err != nil {
		return err
	}
	logger := newLogger(rootOpts, cmd.ErrOrStderr())

	root, err := filepath.Abs(opts.Workspace)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid workspace", err)
	}
	spec, err := label.ParseTargetsSpec(opts.Targets)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid target pattern", err)
	}
	approach, ok := gobzlshard.ParseApproach(opts.Approach)
	if !ok && opts.Approach != "" {
		logger.Warn("unknown sharding approach, using default", "approach", opts.Approach, "default", approach.String())
	}

	ws := gobzlshard.WorkspaceContext{
		Targets:                spec,
		DirectoriesIncluded:    opts.Directories,
		DirectoriesExcluded:    opts.ExcludeDirectories,
		WorkspaceRoot:          root,
		Approach:               approach,
		TargetShardSize:        opts.ShardSize,
		AllowManualTargetsSync: opts.AllowManual,
	}
	flags := gobzlshard.FeatureFlags{SymlinkScanMaxDepth: opts.SymlinkScanDepth}

	sharderOpts := []gobzlshard.Option{
		gobzlshard.WithLogger(logger),
		gobzlshard.WithParallelism(opts.Parallelism),
	}
	if opts.PackageShardSize > 0 {
		sharderOpts = append(sharderOpts, gobzlshard.WithPackageShardSize(opts.PackageShardSize))
	}
	runner := &query.ExecRunner{BazelBinary: opts.Bazel, WorkspaceRoot: root, Logger: logger}
	sharder, err := gobzlshard.NewSharder(runner, sharderOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid options", err)
	}

	var snapshot *gobzlshard.FirstPhaseSnapshot
	if opts.FirstPhase {
		fullSpec, err := ws.TargetsSpec()
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid directory", err)
		}
		symlinks, err := packages.FindBazelSymlinks(root, opts.SymlinkScanDepth)
		if err != nil {
			return WrapExitError(ExitCommandError, "cannot read workspace", err)
		}
		scanner := &firstphase.Scanner{
			Lister: &packages.Lister{
				Root:         root,
				ExcludedDirs: opts.ExcludeDirectories,
				Symlinks:     symlinks,
				Logger:       logger,
			},
			AllowManualTargets: opts.AllowManual,
			Parallelism:        opts.Parallelism,
			Logger:             logger,
		}
		snapshot, err = scanner.Snapshot(cmd.Context(), fullSpec)
		if err != nil {
			return WrapExitError(ExitCommandError, "first phase scan failed", err)
		}
	}

	result, err := sharder.Shard(cmd.Context(), ws, flags, snapshot)
	if err != nil {
		return WrapExitError(ExitCommandError, "sharding failed", err)
	}

	out := cmd.OutOrStdout()
	if done, err := writeStructured(out, rootOpts.Format, result); done {
		if err != nil {
			return err
		}
	} else {
		writeShardText(out, result)
	}

	if result.Status.IsFatal() {
		return NewExitError(ExitFailure, "target expansion failed")
	}
	return nil
}

func writeShardText(w io.Writer, result *gobzlshard.ShardResult) {
	fmt.Fprintf(w, "status: %s\n", result.Status)
	fmt.Fprintf(w, "targets: %d in %d batch(es)\n", result.Targets.Len(), len(result.Targets.Batches))
	for i, b := range result.Targets.Batches {
		fmt.Fprintf(w, "\nbatch %d (%d targets):\n", i+1, len(b))
		for _, l := range b {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}
	if len(result.Targets.Excluded) > 0 {
		fmt.Fprintln(w, "\nexcluded:")
		for _, p := range result.Targets.Excluded {
			fmt.Fprintf(w, "  -%s\n", p)
		}
	}
}
