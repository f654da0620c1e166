package gobzlshard

import (
	"sort"

	"github.com/albertocavalcante/go-bzlshard/label"
)

// TargetMove is a target that is present in both lists but in a different batch.
type TargetMove struct {
	// Target is the moved label.
	Target label.Label `json:"target" yaml:"target"`

	// OldBatch is the batch index in the old list.
	OldBatch int `json:"old_batch" yaml:"old_batch"`

	// NewBatch is the batch index in the new list.
	NewBatch int `json:"new_batch" yaml:"new_batch"`
}

// ShardDiff describes the differences between two sharded target lists.
//
// Comparing the result of a previous sync with the current one tells which
// batches have to be rebuilt:
//
//	diff := DiffShards(&previous.Targets, &current.Targets)
//	if diff.IsEmpty() {
//	    return // nothing to do
//	}
type ShardDiff struct {
	// Added contains targets present in new but not in old.
	Added []label.Label `json:"added,omitempty" yaml:"added,omitempty"`

	// Removed contains targets present in old but not in new.
	Removed []label.Label `json:"removed,omitempty" yaml:"removed,omitempty"`

	// Moved contains targets whose batch index changed.
	Moved []TargetMove `json:"moved,omitempty" yaml:"moved,omitempty"`
}

// IsEmpty returns true if both lists contain the same targets in the same batches.
func (d *ShardDiff) IsEmpty() bool {
	return len(d.Added) == 0 &&
		len(d.Removed) == 0 &&
		len(d.Moved) == 0
}

// TotalChanges returns the total number of changes (added + removed + moved).
func (d *ShardDiff) TotalChanges() int {
	return len(d.Added) + len(d.Removed) + len(d.Moved)
}

// DiffShards computes the difference between two sharded target lists.
// A nil list is treated as empty. Results are sorted by label.
func DiffShards(old, new *ShardedTargetList) *ShardDiff {
	diff := &ShardDiff{}

	oldBatches := batchIndex(old)
	newBatches := batchIndex(new)

	for target, newIdx := range newBatches {
		oldIdx, existedBefore := oldBatches[target]
		switch {
		case !existedBefore:
			diff.Added = append(diff.Added, target)
		case oldIdx != newIdx:
			diff.Moved = append(diff.Moved, TargetMove{
				Target:   target,
				OldBatch: oldIdx,
				NewBatch: newIdx,
			})
		}
	}

	for target := range oldBatches {
		if _, existsNow := newBatches[target]; !existsNow {
			diff.Removed = append(diff.Removed, target)
		}
	}

	sortLabels(diff.Added)
	sortLabels(diff.Removed)
	sort.Slice(diff.Moved, func(i, j int) bool {
		return label.Less(diff.Moved[i].Target, diff.Moved[j].Target)
	})

	return diff
}

// batchIndex maps each target to the first batch it appears in.
func batchIndex(list *ShardedTargetList) map[label.Label]int {
	index := make(map[label.Label]int)
	if list == nil {
		return index
	}
	for i, b := range list.Batches {
		for _, target := range b {
			if _, seen := index[target]; !seen {
				index[target] = i
			}
		}
	}
	return index
}

func sortLabels(labels []label.Label) {
	sort.Slice(labels, func(i, j int) bool {
		return label.Less(labels[i], labels[j])
	})
}
