// Package gobzlshard resolves Bazel target patterns into size-bounded batches
// of concrete targets.
//
// # Overview
//
// A sync or build over a large workspace cannot hand Bazel an arbitrary number
// of targets in one invocation. The Sharder turns a [WorkspaceContext] (target
// patterns, directories, an [Approach]) into a [ShardedTargetList] whose
// batches each fit one invocation:
//
//   - ShardOnly batches the concrete labels among the includes as-is.
//   - QueryAndShard runs one "bazel query" over the patterns.
//   - ExpandAndShard lists packages on disk for every recursive pattern and
//     queries them in package-sized chunks.
//
// # Quick Start
//
//	spec, _ := label.ParseTargetsSpec([]string{"//src/...", "-//src/legacy/..."})
//	runner := &query.ExecRunner{WorkspaceRoot: root}
//	result, err := gobzlshard.Shard(ctx, runner, gobzlshard.WorkspaceContext{
//	    Targets:       spec,
//	    WorkspaceRoot: root,
//	    Approach:      gobzlshard.ExpandAndShard,
//	}, gobzlshard.FeatureFlags{})
//
// # Failure Handling
//
// Query health is reported in [ShardResult.Status], never as an error. A
// BuildError status carries the targets that could be resolved; a FatalError
// status carries none. Errors are reserved for invalid configuration.
//
// # Thread Safety
//
// Sharder and the results it returns are safe for concurrent use.
package gobzlshard

import (
	"context"

	"github.com/albertocavalcante/go-bzlshard/query"
)

// Shard is a convenience wrapper around NewSharder and Sharder.Shard.
func Shard(ctx context.Context, runner query.Runner, ws WorkspaceContext, flags FeatureFlags, opts ...Option) (*ShardResult, error) {
	s, err := NewSharder(runner, opts...)
	if err != nil {
		return nil, err
	}
	return s.Shard(ctx, ws, flags, nil)
}
