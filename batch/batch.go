// Package batch partitions concrete targets into size-bounded build batches.
package batch

import (
	"sort"

	"github.com/albertocavalcante/go-bzlshard/label"
)

// Batcher is a batching strategy.
type Batcher interface {
	// CalculateTargetBatches partitions targets into batches of at most shardSize.
	// Every input target appears in exactly one batch.
	CalculateTargetBatches(targets []label.Label, excludes []label.Pattern, shardSize int) [][]label.Label
}

// Service holds the active batching strategy so it can be swapped by callers.
type Service struct {
	batcher Batcher
}

// NewService returns a Service using b, or Lexicographic when b is nil.
func NewService(b Batcher) *Service {
	if b == nil {
		b = Lexicographic{}
	}
	return &Service{batcher: b}
}

// Batches delegates to the configured strategy.
func (s *Service) Batches(targets []label.Label, excludes []label.Pattern, shardSize int) [][]label.Label {
	return s.batcher.CalculateTargetBatches(targets, excludes, shardSize)
}

// Lexicographic sorts targets by canonical string and cuts fixed-size windows.
// Targets from the same package share a prefix and land in the same or
// adjacent batches, which keeps per-batch analysis state warm.
type Lexicographic struct{}

// CalculateTargetBatches implements Batcher.
func (Lexicographic) CalculateTargetBatches(targets []label.Label, _ []label.Pattern, shardSize int) [][]label.Label {
	if shardSize < 1 {
		shardSize = 1
	}
	seen := make(map[label.Label]struct{}, len(targets))
	keyed := make([]keyedLabel, 0, len(targets))
	for _, t := range targets {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		keyed = append(keyed, keyedLabel{key: t.String(), label: t})
	}
	sort.Slice(keyed, func(i, j int) bool { return keyed[i].key < keyed[j].key })

	batches := make([][]label.Label, 0, (len(keyed)+shardSize-1)/shardSize)
	for start := 0; start < len(keyed); start += shardSize {
		end := min(start+shardSize, len(keyed))
		b := make([]label.Label, 0, end-start)
		for _, k := range keyed[start:end] {
			b = append(b, k.label)
		}
		batches = append(batches, b)
	}
	return batches
}

type keyedLabel struct {
	key   string
	label label.Label
}
