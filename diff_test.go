package gobzlshard

import (
	"testing"

	"github.com/albertocavalcante/go-bzlshard/label"
)

func list(batches ...[]string) *ShardedTargetList {
	l := &ShardedTargetList{}
	for _, b := range batches {
		var labels []label.Label
		for _, s := range b {
			labels = append(labels, label.MustParse(s))
		}
		l.Batches = append(l.Batches, labels)
	}
	return l
}

func TestDiffShards(t *testing.T) {
	tests := []struct {
		name        string
		old, new    *ShardedTargetList
		wantAdded   []string
		wantRemoved []string
		wantMoved   []TargetMove
	}{
		{
			name: "identical",
			old:  list([]string{"//a:a", "//b:b"}, []string{"//c:c"}),
			new:  list([]string{"//a:a", "//b:b"}, []string{"//c:c"}),
		},
		{
			name:        "added and removed",
			old:         list([]string{"//a:a", "//b:b"}),
			new:         list([]string{"//a:a", "//c:c"}),
			wantAdded:   []string{"//c:c"},
			wantRemoved: []string{"//b:b"},
		},
		{
			name: "moved to another batch",
			old:  list([]string{"//a:a", "//b:b"}, []string{"//c:c"}),
			new:  list([]string{"//a:a"}, []string{"//b:b", "//c:c"}),
			wantMoved: []TargetMove{
				{Target: label.MustParse("//b:b"), OldBatch: 0, NewBatch: 1},
			},
		},
		{
			name:      "nil old",
			old:       nil,
			new:       list([]string{"//b:b", "//a:a"}),
			wantAdded: []string{"//a:a", "//b:b"},
		},
		{
			name:        "nil new",
			old:         list([]string{"//a:a"}),
			new:         nil,
			wantRemoved: []string{"//a:a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := DiffShards(tt.old, tt.new)

			checkLabels(t, "Added", diff.Added, tt.wantAdded)
			checkLabels(t, "Removed", diff.Removed, tt.wantRemoved)
			if len(diff.Moved) != len(tt.wantMoved) {
				t.Fatalf("Moved = %v, want %v", diff.Moved, tt.wantMoved)
			}
			for i := range diff.Moved {
				if diff.Moved[i] != tt.wantMoved[i] {
					t.Errorf("Moved[%d] = %+v, want %+v", i, diff.Moved[i], tt.wantMoved[i])
				}
			}

			wantTotal := len(tt.wantAdded) + len(tt.wantRemoved) + len(tt.wantMoved)
			if diff.TotalChanges() != wantTotal {
				t.Errorf("TotalChanges() = %d, want %d", diff.TotalChanges(), wantTotal)
			}
			if diff.IsEmpty() != (wantTotal == 0) {
				t.Errorf("IsEmpty() = %v, want %v", diff.IsEmpty(), wantTotal == 0)
			}
		})
	}
}

func checkLabels(t *testing.T, field string, got []label.Label, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s = %v, want %v", field, got, want)
		return
	}
	for i := range got {
		if got[i].String() != want[i] {
			t.Errorf("%s[%d] = %s, want %s", field, i, got[i], want[i])
		}
	}
}
