package gobzlshard

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/albertocavalcante/go-bzlshard/label"
	"github.com/albertocavalcante/go-bzlshard/status"
)

func TestParseApproach(t *testing.T) {
	tests := []struct {
		input  string
		want   Approach
		wantOK bool
	}{
		{"EXPAND_AND_SHARD", ExpandAndShard, true},
		{"expand_and_shard", ExpandAndShard, true},
		{"Query_And_Shard", QueryAndShard, true},
		{" shard_only ", ShardOnly, true},
		{"", QueryAndShard, false},
		{"shard-only", QueryAndShard, false},
	}
	for _, tt := range tests {
		got, ok := ParseApproach(tt.input)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseApproach(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
	if got := Approach(42).String(); got != "Approach(42)" {
		t.Errorf("String() = %q", got)
	}
}

func TestEffectiveShardSize(t *testing.T) {
	tests := []struct {
		configured int
		want       int
	}{
		{0, DefaultTargetShardSize},
		{-5, DefaultTargetShardSize},
		{1, 1},
		{2500, 2500},
		{MaxTargetShardSize, MaxTargetShardSize},
		{MaxTargetShardSize + 1, MaxTargetShardSize},
		{1 << 30, MaxTargetShardSize},
	}
	for _, tt := range tests {
		if got := EffectiveShardSize(tt.configured); got != tt.want {
			t.Errorf("EffectiveShardSize(%d) = %d, want %d", tt.configured, got, tt.want)
		}
	}
}

func TestWorkspaceContext_TargetsSpec(t *testing.T) {
	ws := WorkspaceContext{
		Targets:             mustSpec(t, "//app:bin", "-//app:broken"),
		DirectoriesIncluded: []string{".", "lib/", " tools "},
		DirectoriesExcluded: []string{"lib/legacy"},
	}
	spec, err := ws.TargetsSpec()
	if err != nil {
		t.Fatalf("TargetsSpec() unexpected error: %v", err)
	}
	want := []string{"//app:bin", "//...", "//lib/...", "//tools/...", "-//app:broken", "-//lib/legacy/..."}
	if diff := cmp.Diff(want, spec.Strings()); diff != "" {
		t.Errorf("TargetsSpec() mismatch (-want +got):\n%s", diff)
	}
	if len(ws.Targets.Included) != 1 {
		t.Error("TargetsSpec() must not modify the workspace context")
	}
}

func TestShardedTargetList(t *testing.T) {
	l := ShardedTargetList{
		Batches: [][]label.Label{
			{label.MustParse("//a:a"), label.MustParse("//b:b")},
			{label.MustParse("//c:c")},
		},
		Excluded: []label.Pattern{label.MustParsePattern("//x/...")},
	}
	if l.Len() != 3 {
		t.Errorf("Len() = %d, want 3", l.Len())
	}
	if got := l.Flatten(); len(got) != 3 || got[2] != label.MustParse("//c:c") {
		t.Errorf("Flatten() = %v", got)
	}

	specs := l.TargetsSpecs()
	if len(specs) != 2 {
		t.Fatalf("TargetsSpecs() returned %d specs, want 2", len(specs))
	}
	if diff := cmp.Diff([]string{"//a:a", "//b:b", "-//x/..."}, specs[0].Strings()); diff != "" {
		t.Errorf("spec 0 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"//c:c", "-//x/..."}, specs[1].Strings()); diff != "" {
		t.Errorf("spec 1 mismatch (-want +got):\n%s", diff)
	}
}

func TestShardResult_Encoding(t *testing.T) {
	res := ShardResult{
		Targets: ShardedTargetList{
			Batches:  [][]label.Label{{label.MustParse("//a:a")}},
			Excluded: []label.Pattern{label.MustParsePattern("//x/...")},
		},
		Status: status.BuildError,
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("json.Marshal() unexpected error: %v", err)
	}
	want := `{"targets":{"batches":[["//a:a"]],"excluded":["//x/..."]},"status":"BUILD_ERROR"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	out, err := yaml.Marshal(res)
	if err != nil {
		t.Fatalf("yaml.Marshal() unexpected error: %v", err)
	}
	var decoded ShardResult
	if err := yaml.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal() unexpected error: %v", err)
	}
	if decoded.Status != status.BuildError || decoded.Targets.Len() != 1 || decoded.Targets.Excluded[0].String() != "//x/..." {
		t.Errorf("decoded = %+v", decoded)
	}
}
