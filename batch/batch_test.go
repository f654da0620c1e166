package batch

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/albertocavalcante/go-bzlshard/label"
)

func labelsN(n int) []label.Label {
	out := make([]label.Label, n)
	for i := range out {
		out[i] = label.MustParse(fmt.Sprintf("//pkg%d:t%d", i%7, i))
	}
	return out
}

func render(batches [][]label.Label) [][]string {
	out := make([][]string, len(batches))
	for i, b := range batches {
		out[i] = make([]string, len(b))
		for j, l := range b {
			out[i][j] = l.String()
		}
	}
	return out
}

func TestLexicographic_SortsAndChunks(t *testing.T) {
	in := []label.Label{
		label.MustParse("//b:2"),
		label.MustParse("//a:1"),
		label.MustParse("//b:1"),
		label.MustParse("//a/sub:1"),
		label.MustParse("//c:1"),
	}
	got := render(Lexicographic{}.CalculateTargetBatches(in, nil, 2))
	want := [][]string{
		{"//a/sub:1", "//a:1"},
		{"//b:1", "//b:2"},
		{"//c:1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
}

func TestLexicographic_SizeInvariant(t *testing.T) {
	for _, n := range []int{0, 1, 9, 100, 257} {
		for _, size := range []int{1, 3, 10, 1000} {
			in := labelsN(n)
			// Add duplicates; they must be emitted once.
			in = append(in, in[:n/2]...)
			batches := Lexicographic{}.CalculateTargetBatches(in, nil, size)

			seen := make(map[label.Label]int)
			for _, b := range batches {
				if len(b) == 0 || len(b) > size {
					t.Errorf("n=%d size=%d: batch of %d", n, size, len(b))
				}
				for _, l := range b {
					seen[l]++
				}
			}
			if len(seen) != n {
				t.Errorf("n=%d size=%d: %d distinct targets emitted", n, size, len(seen))
			}
			for l, c := range seen {
				if c != 1 {
					t.Errorf("n=%d size=%d: %s emitted %d times", n, size, l, c)
				}
			}
		}
	}
}

func TestLexicographic_Idempotent(t *testing.T) {
	in := labelsN(50)
	first := render(Lexicographic{}.CalculateTargetBatches(in, nil, 7))

	shuffled := append([]label.Label(nil), in...)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	second := render(Lexicographic{}.CalculateTargetBatches(shuffled, nil, 7))

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("batching depends on input order (-first +second):\n%s", diff)
	}

	var flat []label.Label
	for _, b := range (Lexicographic{}).CalculateTargetBatches(in, nil, 7) {
		flat = append(flat, b...)
	}
	again := render(Lexicographic{}.CalculateTargetBatches(flat, nil, 7))
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("re-sharding changed the partition (-first +again):\n%s", diff)
	}
}

func TestLexicographic_NonPositiveSize(t *testing.T) {
	got := Lexicographic{}.CalculateTargetBatches(labelsN(3), nil, 0)
	if len(got) != 3 {
		t.Errorf("size 0 should behave as 1, got %d batches", len(got))
	}
}

type singleBatcher struct{}

func (singleBatcher) CalculateTargetBatches(targets []label.Label, _ []label.Pattern, _ int) [][]label.Label {
	return [][]label.Label{targets}
}

func TestService(t *testing.T) {
	in := labelsN(4)
	if got := NewService(nil).Batches(in, nil, 2); len(got) != 2 {
		t.Errorf("default service should be lexicographic, got %d batches", len(got))
	}
	if got := NewService(singleBatcher{}).Batches(in, nil, 2); len(got) != 1 {
		t.Errorf("custom batcher should be used, got %d batches", len(got))
	}
}
