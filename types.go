package gobzlshard

import (
	"fmt"
	"path"
	"strings"

	"github.com/albertocavalcante/go-bzlshard/label"
	"github.com/albertocavalcante/go-bzlshard/status"
)

const (
	// DefaultTargetShardSize is the batch size used when none is configured.
	DefaultTargetShardSize = 1000

	// MaxTargetShardSize caps the batch size regardless of configuration.
	MaxTargetShardSize = 10000

	// DefaultSymlinkScanMaxDepth is how deep the workspace is scanned for
	// bazel-* convenience symlinks.
	DefaultSymlinkScanMaxDepth = 2
)

// Approach selects how included patterns are turned into concrete targets.
type Approach int

const (
	// QueryAndShard runs one flat query over the patterns as given.
	QueryAndShard Approach = iota

	// ExpandAndShard lists packages on disk, then queries package by package.
	ExpandAndShard

	// ShardOnly batches the concrete labels among the includes without querying.
	ShardOnly
)

var approachNames = map[Approach]string{
	QueryAndShard:  "QUERY_AND_SHARD",
	ExpandAndShard: "EXPAND_AND_SHARD",
	ShardOnly:      "SHARD_ONLY",
}

// String returns the configuration spelling of the approach.
func (a Approach) String() string {
	if name, ok := approachNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Approach(%d)", int(a))
}

// ParseApproach matches s case-insensitively against the approach names.
// Empty or unknown input yields QueryAndShard with ok set to false.
func ParseApproach(s string) (a Approach, ok bool) {
	s = strings.TrimSpace(s)
	for approach, name := range approachNames {
		if strings.EqualFold(s, name) {
			return approach, true
		}
	}
	return QueryAndShard, false
}

// MarshalText implements encoding.TextMarshaler.
func (a Approach) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// WorkspaceContext is the sharding configuration of one workspace.
type WorkspaceContext struct {
	// Targets are the included and excluded target patterns.
	Targets label.TargetsSpec

	// DirectoriesIncluded are workspace-relative directories whose targets are
	// included. "." or "" means the whole workspace.
	DirectoriesIncluded []string

	// DirectoriesExcluded are workspace-relative directories whose targets are
	// excluded. They are also skipped when listing packages.
	DirectoriesExcluded []string

	// WorkspaceRoot is the absolute path of the workspace.
	WorkspaceRoot string

	Approach Approach

	// TargetShardSize is the configured batch size. See EffectiveShardSize.
	TargetShardSize int

	// AllowManualTargetsSync keeps targets tagged "manual" in query results.
	AllowManualTargetsSync bool
}

// TargetsSpec returns Targets with the configured directories appended as
// recursive patterns.
func (w WorkspaceContext) TargetsSpec() (label.TargetsSpec, error) {
	spec := label.TargetsSpec{
		Included: append([]label.Pattern(nil), w.Targets.Included...),
		Excluded: append([]label.Pattern(nil), w.Targets.Excluded...),
	}
	for _, dir := range w.DirectoriesIncluded {
		p, err := directoryPattern(dir)
		if err != nil {
			return label.TargetsSpec{}, err
		}
		spec.Included = append(spec.Included, p)
	}
	for _, dir := range w.DirectoriesExcluded {
		p, err := directoryPattern(dir)
		if err != nil {
			return label.TargetsSpec{}, err
		}
		spec.Excluded = append(spec.Excluded, p)
	}
	return spec, nil
}

func directoryPattern(dir string) (label.Pattern, error) {
	dir = strings.Trim(path.Clean(strings.TrimSpace(dir)), "/")
	if dir == "." {
		dir = ""
	}
	if strings.HasPrefix(dir, "..") {
		return label.Pattern{}, fmt.Errorf("directory %q is outside the workspace", dir)
	}
	return label.RecursiveUnder(dir), nil
}

// FeatureFlags are experiment switches supplied by the caller.
type FeatureFlags struct {
	// SymlinkScanMaxDepth bounds the search for bazel-* symlinks.
	// Zero means DefaultSymlinkScanMaxDepth.
	SymlinkScanMaxDepth int
}

func (f FeatureFlags) symlinkScanMaxDepth() int {
	if f.SymlinkScanMaxDepth <= 0 {
		return DefaultSymlinkScanMaxDepth
	}
	return f.SymlinkScanMaxDepth
}

// EffectiveShardSize returns the batch size for a configured value:
// non-positive values fall back to DefaultTargetShardSize and the result
// never exceeds MaxTargetShardSize.
func EffectiveShardSize(configured int) int {
	if configured <= 0 {
		configured = DefaultTargetShardSize
	}
	return min(configured, MaxTargetShardSize)
}

// FirstPhaseSnapshot is a lightweight view of the project computed without
// querying Bazel. When available, its modules are sharded directly.
type FirstPhaseSnapshot struct {
	Modules []label.Label `json:"modules" yaml:"modules"`
}

// ShardedTargetList is the result of sharding: ordered batches of concrete
// targets plus the exclusions that apply to every batch.
type ShardedTargetList struct {
	Batches  [][]label.Label `json:"batches" yaml:"batches"`
	Excluded []label.Pattern `json:"excluded,omitempty" yaml:"excluded,omitempty"`
}

// Len returns the total number of targets across all batches.
func (s ShardedTargetList) Len() int {
	n := 0
	for _, b := range s.Batches {
		n += len(b)
	}
	return n
}

// Flatten returns every target in batch order.
func (s ShardedTargetList) Flatten() []label.Label {
	out := make([]label.Label, 0, s.Len())
	for _, b := range s.Batches {
		out = append(out, b...)
	}
	return out
}

// TargetsSpecs returns one spec per batch, ready to hand to a Bazel invocation.
func (s ShardedTargetList) TargetsSpecs() []label.TargetsSpec {
	specs := make([]label.TargetsSpec, len(s.Batches))
	for i, b := range s.Batches {
		included := make([]label.Pattern, len(b))
		for j, l := range b {
			included[j] = label.FromLabel(l)
		}
		specs[i] = label.TargetsSpec{
			Included: included,
			Excluded: append([]label.Pattern(nil), s.Excluded...),
		}
	}
	return specs
}

// ShardResult is the outcome of Sharder.Shard.
type ShardResult struct {
	Targets ShardedTargetList `json:"targets" yaml:"targets"`
	Status  status.Status     `json:"status" yaml:"status"`
}
