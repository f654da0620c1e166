package gobzlshard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/albertocavalcante/go-bzlshard/batch"
	"github.com/albertocavalcante/go-bzlshard/expand"
	"github.com/albertocavalcante/go-bzlshard/label"
	"github.com/albertocavalcante/go-bzlshard/packages"
	"github.com/albertocavalcante/go-bzlshard/query"
	"github.com/albertocavalcante/go-bzlshard/status"
)

// Sharder turns a workspace configuration into batches of concrete targets.
//
// A Sharder holds no per-call state and may be used from several goroutines.
type Sharder struct {
	runner query.Runner
	cfg    *sharderConfig
}

// NewSharder creates a Sharder that resolves patterns through runner.
func NewSharder(runner query.Runner, opts ...Option) (*Sharder, error) {
	if runner == nil {
		return nil, ErrNoQueryRunner
	}
	cfg, err := newSharderConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid sharder options: %w", err)
	}
	return &Sharder{runner: runner, cfg: cfg}, nil
}

// Shard resolves the targets of ws and partitions them into batches.
//
// Configuration problems are returned as errors. Query problems are not: they
// are reported in ShardResult.Status, and a FatalError status always comes
// with an empty target list.
//
// When firstPhase is non-nil its modules are batched directly and no query
// is issued.
func (s *Sharder) Shard(ctx context.Context, ws WorkspaceContext, flags FeatureFlags, firstPhase *FirstPhaseSnapshot) (*ShardResult, error) {
	spec, err := ws.TargetsSpec()
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	size := EffectiveShardSize(ws.TargetShardSize)
	logger := s.cfg.log().With("approach", ws.Approach.String())

	if firstPhase != nil {
		logger.Debug("using first phase snapshot", "modules", len(firstPhase.Modules))
		return s.result(logger, firstPhase.Modules, spec.Excluded, size, status.Success), nil
	}

	switch ws.Approach {
	case ShardOnly:
		return s.shardOnly(logger, spec, size), nil
	case ExpandAndShard:
		return s.expandAndShard(ctx, logger, ws, flags, spec, size)
	default:
		return s.queryAndShard(ctx, logger, ws, spec, size)
	}
}

// shardOnly batches the concrete labels among the includes. Wildcards are dropped.
func (s *Sharder) shardOnly(logger *slog.Logger, spec label.TargetsSpec, size int) *ShardResult {
	targets := spec.Labels()
	if dropped := len(spec.Included) - len(targets); dropped > 0 {
		logger.Warn("dropping wildcard patterns", "count", dropped)
	}
	return s.result(logger, targets, spec.Excluded, size, status.Success)
}

// queryAndShard runs a single query over the patterns as given.
func (s *Sharder) queryAndShard(ctx context.Context, logger *slog.Logger, ws WorkspaceContext, spec label.TargetsSpec, size int) (*ShardResult, error) {
	exp, err := s.expander(logger, ws)
	if err != nil {
		return nil, err
	}
	res := exp.QueryIndividualTargets(ctx, spec.Included, spec.Excluded)
	if res.Status.IsFatal() {
		return s.fatal(logger, spec.Excluded), nil
	}
	return s.result(logger, res.Sorted(), spec.Excluded, size, res.Status), nil
}

// expandAndShard lists packages for every recursive include, substitutes the
// resulting package wildcards in place, then queries them in chunks.
func (s *Sharder) expandAndShard(ctx context.Context, logger *slog.Logger, ws WorkspaceContext, flags FeatureFlags, spec label.TargetsSpec, size int) (*ShardResult, error) {
	if ws.WorkspaceRoot == "" {
		return nil, ErrNoWorkspaceRoot
	}
	exp, err := s.expander(logger, ws)
	if err != nil {
		return nil, err
	}

	symlinks, err := packages.FindBazelSymlinks(ws.WorkspaceRoot, flags.symlinkScanMaxDepth())
	if err != nil {
		logger.Warn("workspace scan failed", "error", err)
		return s.fatal(logger, spec.Excluded), nil
	}
	lister := &packages.Lister{
		Root:         ws.WorkspaceRoot,
		ExcludedDirs: ws.DirectoriesExcluded,
		Symlinks:     symlinks,
		Logger:       logger,
	}
	listed, err := lister.ExpandPackageTargets(ctx, spec.Included)
	if err != nil {
		logger.Warn("package listing failed", "error", err)
		return s.fatal(logger, spec.Excluded), nil
	}

	substituted := substitute(spec.Included, listed)
	logger.Debug("substituted recursive patterns",
		"patterns_before", len(spec.Included),
		"patterns_after", len(substituted))

	res := exp.ExpandToSingleTargets(ctx, substituted, spec.Excluded)
	if res.Status.IsFatal() {
		return s.fatal(logger, spec.Excluded), nil
	}
	return s.result(logger, res.Sorted(), spec.Excluded, size, res.Status), nil
}

// substitute replaces each listed pattern with its expansion, keeping the
// position of every pattern relative to the others.
func substitute(patterns []label.Pattern, listed map[label.Pattern][]label.Pattern) []label.Pattern {
	out := make([]label.Pattern, 0, len(patterns))
	for _, p := range patterns {
		if expanded, ok := listed[p]; ok {
			out = append(out, expanded...)
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *Sharder) expander(logger *slog.Logger, ws WorkspaceContext) (*expand.Expander, error) {
	return expand.New(s.runner,
		expand.WithManualTargets(ws.AllowManualTargetsSync),
		expand.WithPackageShardSize(s.cfg.packageShardSize),
		expand.WithParallelism(s.cfg.parallelism),
		expand.WithLogger(logger),
	)
}

func (s *Sharder) result(logger *slog.Logger, targets []label.Label, excluded []label.Pattern, size int, st status.Status) *ShardResult {
	batches := batch.NewService(s.cfg.batcher).Batches(targets, excluded, size)
	logger.Info("sharded targets",
		"targets", len(targets),
		"batches", len(batches),
		"shard_size", size,
		"status", st.String())
	return &ShardResult{
		Targets: ShardedTargetList{Batches: batches, Excluded: excluded},
		Status:  st,
	}
}

func (s *Sharder) fatal(logger *slog.Logger, excluded []label.Pattern) *ShardResult {
	logger.Warn("target expansion failed, nothing to shard")
	return &ShardResult{
		Targets: ShardedTargetList{Excluded: excluded},
		Status:  status.FatalError,
	}
}
