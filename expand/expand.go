// Package expand resolves wildcard target patterns into concrete labels by
// querying Bazel.
//
// Large pattern lists are split into package-sized chunks before querying to
// bound the command line and the memory of each query. Chunk results are
// merged with [Result.Merge], which is associative and commutative, so chunks
// may run sequentially or concurrently with identical results.
package expand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/go-bzlshard/label"
	"github.com/albertocavalcante/go-bzlshard/query"
	"github.com/albertocavalcante/go-bzlshard/status"
)

// DefaultPackageShardSize is the number of package wildcards sent per query.
// It is independent of the final build shard size.
const DefaultPackageShardSize = 500

// errFatalChunk cancels sibling chunk queries after a fatal result.
var errFatalChunk = errors.New("fatal query result")

// Result is the set of concrete targets produced by an expansion and the
// status accumulated while producing it.
type Result struct {
	SingleTargets map[label.Label]struct{}
	Status        status.Status
}

// NewResult creates a Result from a list of labels.
func NewResult(targets []label.Label, st status.Status) Result {
	r := Result{SingleTargets: make(map[label.Label]struct{}, len(targets)), Status: st}
	for _, t := range targets {
		r.SingleTargets[t] = struct{}{}
	}
	return r
}

// Merge unions the target sets and merges the statuses. Neither operand is modified.
func (r Result) Merge(other Result) Result {
	merged := Result{
		SingleTargets: make(map[label.Label]struct{}, len(r.SingleTargets)+len(other.SingleTargets)),
		Status:        status.Merge(r.Status, other.Status),
	}
	for t := range r.SingleTargets {
		merged.SingleTargets[t] = struct{}{}
	}
	for t := range other.SingleTargets {
		merged.SingleTargets[t] = struct{}{}
	}
	return merged
}

// Contains reports whether l is among the resolved targets.
func (r Result) Contains(l label.Label) bool {
	_, ok := r.SingleTargets[l]
	return ok
}

// Sorted returns the targets in canonical order.
func (r Result) Sorted() []label.Label {
	out := make([]label.Label, 0, len(r.SingleTargets))
	for t := range r.SingleTargets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return label.Less(out[i], out[j]) })
	return out
}

// Expander turns wildcard patterns into concrete labels.
type Expander struct {
	runner             query.Runner
	allowManualTargets bool
	packageShardSize   int
	parallelism        int
	logger             *slog.Logger
}

// Option configures an Expander.
type Option func(*Expander) error

// WithManualTargets keeps targets tagged "manual" in query results.
func WithManualTargets(allow bool) Option {
	return func(e *Expander) error {
		e.allowManualTargets = allow
		return nil
	}
}

// WithPackageShardSize sets how many patterns are sent per query.
func WithPackageShardSize(n int) Option {
	return func(e *Expander) error {
		if n < 1 {
			return fmt.Errorf("package shard size must be positive, got %d", n)
		}
		e.packageShardSize = n
		return nil
	}
}

// WithParallelism sets the number of chunk queries that may run at once.
func WithParallelism(n int) Option {
	return func(e *Expander) error {
		if n < 1 {
			return fmt.Errorf("parallelism must be positive, got %d", n)
		}
		e.parallelism = n
		return nil
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Expander) error {
		e.logger = l
		return nil
	}
}

// New creates an Expander that queries through runner.
func New(runner query.Runner, opts ...Option) (*Expander, error) {
	if runner == nil {
		return nil, errors.New("expand: query runner is required")
	}
	e := &Expander{
		runner:           runner,
		packageShardSize: DefaultPackageShardSize,
		parallelism:      1,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e, nil
}

// QueryIndividualTargets runs one query for includes minus excludes.
// Failure to run the query at all is reported as FatalError with no targets.
func (e *Expander) QueryIndividualTargets(ctx context.Context, includes, excludes []label.Pattern) Result {
	if len(includes) == 0 {
		return NewResult(nil, status.Success)
	}
	expr := query.Expression(includes, excludes, !e.allowManualTargets)
	res, err := e.runner.Query(ctx, expr, query.DefaultFlags...)
	if err != nil {
		e.logger.Warn("target query failed", "patterns", len(includes), "error", err)
		return NewResult(nil, status.FatalError)
	}

	st := res.Status()
	if st.IsFatal() {
		e.logger.Warn("target query aborted", "exit_code", res.ExitCode, "patterns", len(includes))
		return NewResult(nil, status.FatalError)
	}
	targets, invalid := query.ParseLabels(res.Stdout)
	if len(invalid) > 0 {
		e.logger.Warn("ignoring unparsable query output lines", "count", len(invalid), "first", invalid[0])
	}
	e.logger.Debug("target query finished",
		"patterns", len(includes),
		"targets", len(targets),
		"status", st.String())
	return NewResult(targets, st)
}

// ExpandToSingleTargets resolves non-recursive wildcard patterns chunk by chunk.
//
// The first FatalError stops the remaining chunks and the accumulated result is
// returned with FatalError. Concrete labels among patterns that are not matched
// by an exclusion are always part of the result, even if the query dropped
// them (for example because they are tagged manual).
func (e *Expander) ExpandToSingleTargets(ctx context.Context, patterns, excludes []label.Pattern) Result {
	chunks := chunk(patterns, e.packageShardSize)
	e.logger.Debug("expanding patterns",
		"patterns", len(patterns),
		"chunks", len(chunks),
		"parallelism", e.parallelism)

	var (
		mu  sync.Mutex
		acc = NewResult(nil, status.Success)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for _, c := range chunks {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := e.QueryIndividualTargets(gctx, c, excludes)

			mu.Lock()
			defer mu.Unlock()
			if acc.Status.IsFatal() {
				// Results arriving after a fatal sibling were produced under a
				// cancelled context and are not trustworthy.
				return nil
			}
			acc = acc.Merge(res)
			if res.Status.IsFatal() {
				return errFatalChunk
			}
			return nil
		})
	}
	_ = g.Wait()

	if acc.Status.IsFatal() {
		e.logger.Warn("pattern expansion stopped on fatal error", "targets_so_far", len(acc.SingleTargets))
		return acc
	}
	if ctx.Err() != nil {
		acc.Status = status.FatalError
		return acc
	}

	spec := label.TargetsSpec{Included: patterns, Excluded: excludes}
	for _, l := range spec.Labels() {
		if !spec.IsExcluded(l) {
			acc.SingleTargets[l] = struct{}{}
		}
	}
	return acc
}

func chunk(patterns []label.Pattern, size int) [][]label.Pattern {
	if size < 1 {
		size = 1
	}
	var chunks [][]label.Pattern
	for start := 0; start < len(patterns); start += size {
		end := min(start+size, len(patterns))
		chunks = append(chunks, patterns[start:end])
	}
	return chunks
}
